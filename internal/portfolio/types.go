package portfolio

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/flowfolio/flowfolio/internal/collection"
)

// Role distinguishes the session's primary account from its delegated
// child accounts.
type Role string

const (
	RoleParent Role = "parent"
	RoleChild  Role = "child"
)

// PendingReceipt is the open commit of a two-phase swap. The ledger
// enforces at most one per account; it exists from commit confirmation
// until the matching reveal (or cancel) is confirmed.
type PendingReceipt struct {
	CommittedAmount    decimal.Decimal `json:"committedAmount"`
	RequestBlockHeight uint64          `json:"requestBlockHeight"`
	RequestID          uint64          `json:"requestId"`
	IsRedeemable       bool            `json:"isRedeemable"`
	IsFulfilled        bool            `json:"isFulfilled"`
}

// AccountSnapshot is the canonical read model for one account. It is
// written atomically: every field comes from the same fetch cycle, and a
// re-fetch replaces the whole snapshot.
type AccountSnapshot struct {
	Address       string
	Role          Role
	FlowBalance   decimal.Decimal
	TokenBalance  decimal.Decimal
	HasCollection bool
	Moments       []collection.MomentRecord
	TierCounts    map[string]int

	// PendingReceipt is present iff the account has an open commit
	// awaiting reveal.
	PendingReceipt *PendingReceipt

	LoadedAt time.Time
}

// PortfolioSnapshot is the unit the UI reads: one parent account plus its
// delegated children.
type PortfolioSnapshot struct {
	Parent   AccountSnapshot
	Children []AccountSnapshot

	// LoadingChildren brackets child discovery and loading, independent
	// of the parent's own refresh, so parent data can render while
	// children are still resolving.
	LoadingChildren bool
}

// AllAddresses returns the parent address followed by every child address.
func (p PortfolioSnapshot) AllAddresses() []string {
	addrs := make([]string, 0, 1+len(p.Children))
	if p.Parent.Address != "" {
		addrs = append(addrs, p.Parent.Address)
	}
	for _, c := range p.Children {
		addrs = append(addrs, c.Address)
	}
	return addrs
}
