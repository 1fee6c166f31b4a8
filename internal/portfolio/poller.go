package portfolio

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/flowfolio/flowfolio/internal/ledger"
)

// StartBalancePolling refreshes only the parent's balances on the given
// interval until ctx is cancelled. Collections are never re-enumerated
// here; the loop exists to keep headline numbers current without paying
// for a full re-fetch of potentially thousands of Moments.
func (a *Aggregator) StartBalancePolling(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go a.pollBalances(ctx, interval)
}

func (a *Aggregator) pollBalances(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Msg("balance polling stopped")
			return
		case <-ticker.C:
			a.RefreshBalances(ctx)
		}
	}
}

// RefreshBalances re-queries the parent's token and native balances and
// writes them into the stored snapshot. This is the one deliberate
// partial update: both balances come from the same cycle, and no other
// snapshot field is touched.
func (a *Aggregator) RefreshBalances(ctx context.Context) {
	a.mu.RLock()
	parent := a.parent
	a.mu.RUnlock()
	if parent == "" {
		return
	}

	tokenBalance := a.queryBalance(ctx, ledger.ScriptTokenBalance, parent)
	flowBalance := a.queryBalance(ctx, ledger.ScriptFlowBalance, parent)

	a.mu.Lock()
	snap, ok := a.accounts[parent]
	if ok {
		snap.TokenBalance = tokenBalance
		snap.FlowBalance = flowBalance
		a.accounts[parent] = snap
	}
	a.mu.Unlock()
}
