package txtracker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/flowfolio/flowfolio/internal/ledger"
	"github.com/flowfolio/flowfolio/lib/utils"
)

// Update is one observable lifecycle change of a submitted operation.
type Update struct {
	UIID       string
	LedgerTxID string
	Kind       string
	Status     Status
	Error      string
	CreatedAt  time.Time
	Payload    map[string]string
	ParentUIID string
	Affected   []string
}

// Refresher re-aggregates one account after an operation seals. Targeted
// re-aggregation through the tracker is the only code path that refreshes
// state after a mutation.
type Refresher interface {
	Refresh(ctx context.Context, address string)
}

// RefresherFunc adapts a function to the Refresher interface.
type RefresherFunc func(ctx context.Context, address string)

func (f RefresherFunc) Refresh(ctx context.Context, address string) { f(ctx, address) }

// Tracker drives one state-changing gateway call through its lifecycle
// and emits every state change exactly once.
type Tracker struct {
	gw        ledger.Gateway
	refresher Refresher
}

// New builds a tracker. refresher may be nil when post-seal re-aggregation
// is wired elsewhere (tests, offline tools).
func New(gw ledger.Gateway, refresher Refresher) *Tracker {
	return &Tracker{gw: gw, refresher: refresher}
}

// Submit runs the operation and returns the stream of lifecycle updates.
// The channel closes after a terminal state. Submission failures are
// surfaced as an Error update, never swallowed: the user must know
// whether their funds or items moved.
func (t *Tracker) Submit(ctx context.Context, op ledger.Operation) <-chan Update {
	out := make(chan Update, 8)
	go t.run(ctx, op, out)
	return out
}

func (t *Tracker) run(ctx context.Context, op ledger.Operation, out chan<- Update) {
	defer close(out)

	uiID := uuid.NewString()
	createdAt := time.Now()
	var ledgerTxID string
	last := StatusUnknown

	emit := func(status Status, errMsg string) {
		// Duplicate states are suppressed, and the success path is
		// monotonic: a stale or repeated notification is a no-op.
		if status.Terminal() && last.Terminal() {
			return
		}
		if !status.Terminal() && status <= last {
			return
		}
		last = status
		out <- Update{
			UIID:       uiID,
			LedgerTxID: ledgerTxID,
			Kind:       op.Kind,
			Status:     status,
			Error:      errMsg,
			CreatedAt:  createdAt,
			Payload:    op.Payload,
			ParentUIID: op.ParentUIID,
			Affected:   op.Affected,
		}
	}

	// Emitted before any network call: covers the latency of the
	// interactive signing step.
	emit(StatusAwaitingApproval, "")

	txID, err := t.gw.Mutate(ctx, op.Script, op.Args, op.Signers)
	if err != nil {
		emit(StatusError, err.Error())
		return
	}
	ledgerTxID = txID
	emit(StatusPending, "")

	// The subscription lives only until a terminal state lands.
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	statuses, err := t.gw.Subscribe(subCtx, txID)
	if err != nil {
		emit(StatusError, err.Error())
		return
	}

	for st := range statuses {
		if st.ErrorMessage != "" {
			emit(StatusError, st.ErrorMessage)
			return
		}
		status, ok := statusFromCode(st.Code)
		if !ok {
			// Unrecognized code: still processing, nothing to emit.
			continue
		}
		switch status {
		case StatusExpired:
			emit(StatusExpired, "transaction expired before sealing")
			return
		case StatusSealed:
			emit(StatusSealed, "")
			cancel()
			t.refreshAffected(ctx, op)
			return
		default:
			emit(status, "")
		}
	}

	// Stream ended without a terminal notification; fall back to the
	// blocking seal wait for the final verdict.
	res, err := t.gw.AwaitSealed(ctx, txID)
	if err != nil {
		emit(StatusError, err.Error())
		return
	}
	if res.ErrorMessage != "" {
		emit(StatusError, res.ErrorMessage)
		return
	}
	emit(StatusSealed, "")
	t.refreshAffected(ctx, op)
}

func (t *Tracker) refreshAffected(ctx context.Context, op ledger.Operation) {
	if t.refresher == nil {
		return
	}
	seen := make(map[string]bool)
	for _, address := range op.Affected {
		addr := utils.NormalizeAddress(address)
		if !utils.IsValidAddress(addr) || seen[addr] {
			continue
		}
		seen[addr] = true
		log.Debug().Str("address", addr).Str("kind", op.Kind).Msg("re-aggregating after sealed operation")
		t.refresher.Refresh(ctx, addr)
	}
}
