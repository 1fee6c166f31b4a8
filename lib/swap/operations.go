// Package swap builds the ledger operations behind the Moment/TSHOT
// exchange: the instant Moments-for-tokens swap, and the two-phase
// commit/reveal that turns tokens back into randomized Moments.
package swap

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/flowfolio/flowfolio/internal/ledger"
	"github.com/flowfolio/flowfolio/internal/portfolio"
	"github.com/flowfolio/flowfolio/internal/txcenter"
	"github.com/flowfolio/flowfolio/lib/utils"
)

const (
	KindSwap   = "swap"
	KindCommit = "commit"
	KindReveal = "reveal"
)

var (
	// ErrReceiptOutstanding rejects a commit while one is already open.
	// The ledger enforces one receipt per account; failing early here
	// saves the user a doomed signing round-trip.
	ErrReceiptOutstanding = errors.New("a committed swap is already awaiting reveal")

	// ErrNoReceipt rejects a reveal without an open commit.
	ErrNoReceipt = errors.New("no committed swap to reveal")

	ErrInvalidAddress = errors.New("invalid account address")
	ErrNothingToSwap  = errors.New("no moments selected")
)

// MomentsForTokens swaps the selected Moments for TSHOT one-for-one.
func MomentsForTokens(account portfolio.AccountSnapshot, momentIDs []uint64) (ledger.Operation, error) {
	addr := utils.NormalizeAddress(account.Address)
	if !utils.IsValidAddress(addr) {
		return ledger.Operation{}, ErrInvalidAddress
	}
	if len(momentIDs) == 0 {
		return ledger.Operation{}, ErrNothingToSwap
	}

	return ledger.Operation{
		Kind:     KindSwap,
		Script:   ledger.TxSwapMomentsForTokens,
		Args:     []ledger.Arg{ledger.UInt64SliceArg(momentIDs)},
		Signers:  []string{addr},
		Affected: []string{addr},
		Payload: map[string]string{
			"momentCount": fmt.Sprintf("%d", len(momentIDs)),
		},
	}, nil
}

// TokensForMoments opens the commit phase: amount TSHOT is locked and a
// receipt is created for the later reveal. Rejected client-side when the
// snapshot already carries an open receipt.
func TokensForMoments(account portfolio.AccountSnapshot, amount decimal.Decimal) (ledger.Operation, error) {
	addr := utils.NormalizeAddress(account.Address)
	if !utils.IsValidAddress(addr) {
		return ledger.Operation{}, ErrInvalidAddress
	}
	if account.PendingReceipt != nil {
		return ledger.Operation{}, ErrReceiptOutstanding
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return ledger.Operation{}, fmt.Errorf("commit amount must be positive, got %s", amount)
	}
	if amount.GreaterThan(account.TokenBalance) {
		return ledger.Operation{}, fmt.Errorf("commit amount %s exceeds balance %s", amount, account.TokenBalance)
	}

	return ledger.Operation{
		Kind:     KindCommit,
		Script:   ledger.TxCommitTokenSwap,
		Args:     []ledger.Arg{ledger.UFix64Arg(amount)},
		Signers:  []string{addr},
		Affected: []string{addr},
		Payload: map[string]string{
			"amount": amount.StringFixed(8),
			// The reveal needs no further user input, so the commit
			// surfaces itself in the transaction center.
			txcenter.PayloadRevealKey: addr,
		},
	}, nil
}

// Reveal consumes the open receipt and delivers the randomized Moments.
// parentUIID links the reveal to its commit for grouped display.
func Reveal(account portfolio.AccountSnapshot, parentUIID string) (ledger.Operation, error) {
	addr := utils.NormalizeAddress(account.Address)
	if !utils.IsValidAddress(addr) {
		return ledger.Operation{}, ErrInvalidAddress
	}
	if account.PendingReceipt == nil {
		return ledger.Operation{}, ErrNoReceipt
	}

	return ledger.Operation{
		Kind:       KindReveal,
		Script:     ledger.TxRevealTokenSwap,
		Signers:    []string{addr},
		Affected:   []string{addr},
		ParentUIID: parentUIID,
		Payload: map[string]string{
			"amount": account.PendingReceipt.CommittedAmount.StringFixed(8),
		},
	}, nil
}
