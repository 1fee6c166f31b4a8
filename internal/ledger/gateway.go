package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// Value is a loosely typed value returned by the gateway. The scripts run
// on infrastructure this codebase does not control, so response shapes
// vary across contract versions; the decode helpers in this package
// convert values into strict types at the boundary.
type Value = any

// Arg is one argument passed alongside a script.
type Arg struct {
	Type  string `json:"type"`
	Value any    `json:"value"`
}

func AddressArg(addr string) Arg {
	return Arg{Type: "Address", Value: addr}
}

func StringArg(s string) Arg {
	return Arg{Type: "String", Value: s}
}

func UFix64Arg(d decimal.Decimal) Arg {
	return Arg{Type: "UFix64", Value: d.StringFixed(8)}
}

func UInt64Arg(v uint64) Arg {
	return Arg{Type: "UInt64", Value: v}
}

func UInt64SliceArg(ids []uint64) Arg {
	vals := make([]any, len(ids))
	for i, id := range ids {
		vals[i] = id
	}
	return Arg{Type: "Array", Value: vals}
}

// Status codes reported by the gateway's notification stream.
const (
	StatusCodePending   = "PENDING"
	StatusCodeFinalized = "FINALIZED"
	StatusCodeExecuted  = "EXECUTED"
	StatusCodeSealed    = "SEALED"
	StatusCodeExpired   = "EXPIRED"
)

// TxStatus is one notification about a submitted transaction.
type TxStatus struct {
	Code         string
	ErrorMessage string
}

// TxResult is the final outcome of a sealed transaction.
type TxResult struct {
	Status       string
	ErrorMessage string
}

// Gateway is the narrow interface this core consumes to talk to the
// remote ledger. It is implemented elsewhere (a real network client in
// the embedding application, stubs in tests).
type Gateway interface {
	// Query runs a read-only script and returns its result.
	Query(ctx context.Context, script string, args []Arg) (Value, error)

	// Mutate submits a state-changing transaction for the given signers
	// and returns the ledger transaction id once the gateway accepts it.
	// Submission blocks on interactive signer approval.
	Mutate(ctx context.Context, script string, args []Arg, signers []string) (string, error)

	// Subscribe streams status notifications for a submitted transaction
	// until the context is cancelled or the stream ends.
	Subscribe(ctx context.Context, txID string) (<-chan TxStatus, error)

	// AwaitSealed blocks until the transaction is sealed and returns the
	// final result.
	AwaitSealed(ctx context.Context, txID string) (TxResult, error)
}

// Operation is one user-initiated state-changing action, fully described:
// the opaque script payload, its arguments and signers, plus the bookkeeping
// the tracker and transaction center need.
type Operation struct {
	// Kind classifies the operation ("commit", "reveal", "swap", ...).
	Kind string

	Script  string
	Args    []Arg
	Signers []string

	// Affected lists every address whose state the operation can change.
	// These accounts are re-aggregated after terminal success.
	Affected []string

	// Payload carries display fields recorded by the transaction center.
	Payload map[string]string

	// ParentUIID links a reveal to the uiId of its commit.
	ParentUIID string
}
