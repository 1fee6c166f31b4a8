package ledger

// Cadence payloads sent to the gateway. The scripts execute on the remote
// ledger and are opaque to this codebase; nothing here parses them.

const (
	// ScriptHasCollection reports whether an account exposes a Moment
	// collection capability.
	ScriptHasCollection = `
import TopShot from 0x0b2a3299cc7e2e61

access(all) fun main(account: Address): Bool {
    return getAccount(account)
        .capabilities.get<&TopShot.Collection>(/public/MomentCollection)
        .check()
}
`

	// ScriptCollectionIDs enumerates every owned Moment id.
	ScriptCollectionIDs = `
import TopShot from 0x0b2a3299cc7e2e61

access(all) fun main(account: Address): [UInt64] {
    let ref = getAccount(account)
        .capabilities.borrow<&TopShot.Collection>(/public/MomentCollection)
        ?? panic("no collection")
    return ref.getIDs()
}
`

	// ScriptMomentDetailsBatch resolves per-item detail for a batch of ids.
	ScriptMomentDetailsBatch = `
import TopShot from 0x0b2a3299cc7e2e61
import TopShotLocking from 0x0b2a3299cc7e2e61

access(all) fun main(account: Address, ids: [UInt64]): [{String: AnyStruct}] {
    let ref = getAccount(account)
        .capabilities.borrow<&TopShot.Collection>(/public/MomentCollection)
        ?? panic("no collection")
    let out: [{String: AnyStruct}] = []
    for id in ids {
        let nft = ref.borrowMoment(id: id) ?? continue
        out.append({
            "id": nft.id,
            "setID": nft.data.setID,
            "playID": nft.data.playID,
            "serialNumber": nft.data.serialNumber,
            "subeditionID": TopShot.getMomentSubedition(nftID: nft.id),
            "isLocked": TopShotLocking.isLocked(nftRef: nft)
        })
    }
    return out
}
`

	// ScriptFlowBalance reads the account's native FLOW balance.
	ScriptFlowBalance = `
import FungibleToken from 0xf233dcee88fe0abe
import FlowToken from 0x1654653399040a61

access(all) fun main(account: Address): UFix64 {
    let ref = getAccount(account)
        .capabilities.borrow<&{FungibleToken.Balance}>(/public/flowTokenBalance)
    return ref?.balance ?? 0.0
}
`

	// ScriptTokenBalance reads the account's TSHOT balance.
	ScriptTokenBalance = `
import FungibleToken from 0xf233dcee88fe0abe
import TSHOT from 0x05b67ba314000b2d

access(all) fun main(account: Address): UFix64 {
    let ref = getAccount(account)
        .capabilities.borrow<&{FungibleToken.Balance}>(/public/TSHOTTokenBalance)
    return ref?.balance ?? 0.0
}
`

	// ScriptPendingReceipt reads the open commit receipt, if any.
	ScriptPendingReceipt = `
import TSHOTExchange from 0x05b67ba314000b2d

access(all) fun main(account: Address): {String: AnyStruct}? {
    if let receipt = TSHOTExchange.getReceipt(account: account) {
        return {
            "committedAmount": receipt.betAmount,
            "requestBlockHeight": receipt.requestBlock,
            "requestId": receipt.requestUUID,
            "isRedeemable": receipt.canFullfill,
            "isFulfilled": receipt.isFulfilled
        }
    }
    return nil
}
`

	// ScriptHasChildAccounts reports whether the account has delegated
	// child accounts under hybrid custody.
	ScriptHasChildAccounts = `
import HybridCustody from 0xd8a7e05a7ac670c0

access(all) fun main(parent: Address): Bool {
    let acct = getAuthAccount<auth(Storage) &Account>(parent)
    if let manager = acct.storage.borrow<&HybridCustody.Manager>(from: HybridCustody.ManagerStoragePath) {
        return manager.getChildAddresses().length > 0
    }
    return false
}
`

	// ScriptChildAddresses enumerates the delegated child addresses.
	ScriptChildAddresses = `
import HybridCustody from 0xd8a7e05a7ac670c0

access(all) fun main(parent: Address): [Address] {
    let acct = getAuthAccount<auth(Storage) &Account>(parent)
    if let manager = acct.storage.borrow<&HybridCustody.Manager>(from: HybridCustody.ManagerStoragePath) {
        return manager.getChildAddresses()
    }
    return []
}
`
)

// State-changing payloads.
const (
	// TxSwapMomentsForTokens deposits Moments into the vault and mints
	// TSHOT one-for-one.
	TxSwapMomentsForTokens = `
import TopShot from 0x0b2a3299cc7e2e61
import TSHOTExchange from 0x05b67ba314000b2d

transaction(ids: [UInt64]) {
    prepare(signer: auth(Storage, Capabilities) &Account) {
        let collection = signer.storage
            .borrow<auth(NonFungibleToken.Withdraw) &TopShot.Collection>(from: /storage/MomentCollection)
            ?? panic("no collection")
        let moments: @[TopShot.NFT] <- []
        for id in ids {
            moments.append(<- (collection.withdraw(withdrawID: id) as! @TopShot.NFT))
        }
        TSHOTExchange.swapNFTsForTSHOT(nfts: <-moments, receiver: signer.address)
    }
}
`

	// TxCommitTokenSwap locks TSHOT and opens a receipt; the matching
	// reveal consumes it.
	TxCommitTokenSwap = `
import TSHOT from 0x05b67ba314000b2d
import TSHOTExchange from 0x05b67ba314000b2d

transaction(amount: UFix64) {
    prepare(signer: auth(Storage, Capabilities) &Account) {
        let vault = signer.storage
            .borrow<auth(FungibleToken.Withdraw) &TSHOT.Vault>(from: /storage/TSHOTTokenVault)
            ?? panic("no TSHOT vault")
        let bet <- vault.withdraw(amount: amount) as! @TSHOT.Vault
        TSHOTExchange.commitSwap(bet: <-bet, owner: signer.address)
    }
}
`

	// TxRevealTokenSwap consumes the open receipt and delivers the
	// randomized Moments.
	TxRevealTokenSwap = `
import TSHOTExchange from 0x05b67ba314000b2d

transaction() {
    prepare(signer: auth(Storage, Capabilities) &Account) {
        let receipt <- signer.storage.load<@TSHOTExchange.Receipt>(from: TSHOTExchange.ReceiptStoragePath)
            ?? panic("no receipt")
        TSHOTExchange.swapTSHOTForNFTs(address: signer.address, receipt: <-receipt)
    }
}
`
)
