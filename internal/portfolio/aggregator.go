package portfolio

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/flowfolio/flowfolio/internal/collection"
	"github.com/flowfolio/flowfolio/internal/ledger"
	"github.com/flowfolio/flowfolio/lib/utils"
)

// Aggregator owns the canonical in-memory portfolio state. It fans the
// per-account queries out concurrently, writes each AccountSnapshot in a
// single atomic swap, and coalesces overlapping refresh requests for the
// same address onto one in-flight call.
type Aggregator struct {
	gw      ledger.Gateway
	fetcher *collection.Fetcher

	timeout          time.Duration // per gateway call; 0 disables the deadline
	childConcurrency int

	mu              sync.RWMutex
	parent          string
	accounts        map[string]AccountSnapshot
	children        []string
	loadingChildren bool

	flightMu sync.Mutex
	flight   map[string]*flightCall
}

// flightCall is one in-flight account load; later requests for the same
// address block on done and share the result.
type flightCall struct {
	done chan struct{}
	snap AccountSnapshot
}

// NewAggregator builds an aggregator over the given gateway and fetcher.
func NewAggregator(gw ledger.Gateway, fetcher *collection.Fetcher, timeout time.Duration, childConcurrency int) *Aggregator {
	if childConcurrency <= 0 {
		childConcurrency = 30
	}
	return &Aggregator{
		gw:               gw,
		fetcher:          fetcher,
		timeout:          timeout,
		childConcurrency: childConcurrency,
		accounts:         make(map[string]AccountSnapshot),
		flight:           make(map[string]*flightCall),
	}
}

// LoadAccount fetches balances, collection and pending receipt for one
// account and swaps the resulting snapshot in atomically. A second call
// for the same address while one is in flight joins the existing call
// instead of issuing duplicate queries.
//
// Read failures degrade to zero values; LoadAccount is total over its
// inputs and never returns an error.
func (a *Aggregator) LoadAccount(ctx context.Context, address string) AccountSnapshot {
	addr := utils.NormalizeAddress(address)
	if !utils.IsValidAddress(addr) {
		return AccountSnapshot{Address: addr}
	}

	a.flightMu.Lock()
	if call, ok := a.flight[addr]; ok {
		a.flightMu.Unlock()
		<-call.done
		return call.snap
	}
	call := &flightCall{done: make(chan struct{})}
	a.flight[addr] = call
	a.flightMu.Unlock()

	snap := a.loadAccount(ctx, addr)

	a.flightMu.Lock()
	delete(a.flight, addr)
	a.flightMu.Unlock()

	call.snap = snap
	close(call.done)
	return snap
}

// Refreshing reports whether a load for the address is currently in
// flight. The UI uses this to gate refresh buttons per scope.
func (a *Aggregator) Refreshing(address string) bool {
	addr := utils.NormalizeAddress(address)
	a.flightMu.Lock()
	defer a.flightMu.Unlock()
	_, ok := a.flight[addr]
	return ok
}

func (a *Aggregator) loadAccount(ctx context.Context, addr string) AccountSnapshot {
	var (
		tokenBalance decimal.Decimal
		flowBalance  decimal.Decimal
		col          collection.Result
		receipt      *PendingReceipt
	)

	// The four sub-queries complete in any order; the snapshot below is
	// assembled only after all of them settle, so no reader ever sees a
	// mixture of two fetch cycles.
	var g errgroup.Group
	g.Go(func() error {
		tokenBalance = a.queryBalance(ctx, ledger.ScriptTokenBalance, addr)
		return nil
	})
	g.Go(func() error {
		flowBalance = a.queryBalance(ctx, ledger.ScriptFlowBalance, addr)
		return nil
	})
	g.Go(func() error {
		col = a.fetcher.FetchCollection(ctx, addr)
		return nil
	})
	g.Go(func() error {
		receipt = a.queryReceipt(ctx, addr)
		return nil
	})
	_ = g.Wait()

	role := RoleChild
	a.mu.RLock()
	if addr == a.parent || a.parent == "" {
		role = RoleParent
	}
	a.mu.RUnlock()

	snap := AccountSnapshot{
		Address:        addr,
		Role:           role,
		FlowBalance:    flowBalance,
		TokenBalance:   tokenBalance,
		HasCollection:  col.HasCollection,
		Moments:        col.Items,
		TierCounts:     col.TierCounts,
		PendingReceipt: receipt,
		LoadedAt:       time.Now(),
	}

	a.mu.Lock()
	a.accounts[addr] = snap
	a.mu.Unlock()

	return snap
}

// LoadPortfolio loads the parent account, then discovers and loads its
// delegated child accounts. Parent data is visible as soon as it lands;
// child loading is bracketed by its own flag.
func (a *Aggregator) LoadPortfolio(ctx context.Context, parentAddress string) PortfolioSnapshot {
	addr := utils.NormalizeAddress(parentAddress)
	if !utils.IsValidAddress(addr) {
		return PortfolioSnapshot{}
	}

	a.mu.Lock()
	a.parent = addr
	a.mu.Unlock()

	a.LoadAccount(ctx, addr)

	a.setLoadingChildren(true)
	defer a.setLoadingChildren(false)

	childAddrs := a.discoverChildren(ctx, addr)

	if len(childAddrs) > 0 {
		var g errgroup.Group
		g.SetLimit(a.childConcurrency)
		for _, child := range childAddrs {
			g.Go(func() error {
				a.LoadAccount(ctx, child)
				return nil
			})
		}
		_ = g.Wait()
	}

	a.mu.Lock()
	a.children = childAddrs
	a.mu.Unlock()

	return a.Snapshot()
}

// Snapshot returns the current portfolio view. Account snapshots are
// value copies; their Moment slices are immutable between re-fetches.
func (a *Aggregator) Snapshot() PortfolioSnapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := PortfolioSnapshot{LoadingChildren: a.loadingChildren}
	if a.parent != "" {
		out.Parent = a.accounts[a.parent]
		if out.Parent.Address == "" {
			out.Parent.Address = a.parent
			out.Parent.Role = RoleParent
		}
	}
	for _, child := range a.children {
		if snap, ok := a.accounts[child]; ok {
			out.Children = append(out.Children, snap)
		}
	}
	return out
}

// Account returns the stored snapshot for one address, if present.
func (a *Aggregator) Account(address string) (AccountSnapshot, bool) {
	addr := utils.NormalizeAddress(address)
	a.mu.RLock()
	defer a.mu.RUnlock()
	snap, ok := a.accounts[addr]
	return snap, ok
}

// LoadingChildren reports whether child discovery/loading is in progress.
func (a *Aggregator) LoadingChildren() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.loadingChildren
}

func (a *Aggregator) setLoadingChildren(v bool) {
	a.mu.Lock()
	a.loadingChildren = v
	a.mu.Unlock()
}

// discoverChildren resolves the delegated child addresses: an existence
// check first, enumeration only when it reports true. Failures degrade to
// no children.
func (a *Aggregator) discoverChildren(ctx context.Context, parent string) []string {
	cctx, cancel := a.callCtx(ctx)
	defer cancel()

	v, err := a.gw.Query(cctx, ledger.ScriptHasChildAccounts, []ledger.Arg{ledger.AddressArg(parent)})
	if err != nil {
		log.Warn().Err(err).Str("address", parent).Msg("child existence check failed")
		return nil
	}
	if !ledger.AsBool(v) {
		return nil
	}

	ectx, ecancel := a.callCtx(ctx)
	defer ecancel()

	v, err = a.gw.Query(ectx, ledger.ScriptChildAddresses, []ledger.Arg{ledger.AddressArg(parent)})
	if err != nil {
		log.Warn().Err(err).Str("address", parent).Msg("child enumeration failed")
		return nil
	}

	seen := make(map[string]bool)
	var out []string
	for _, rv := range ledger.AsSlice(v) {
		child := utils.NormalizeAddress(ledger.AsString(rv))
		if !utils.IsValidAddress(child) || child == parent || seen[child] {
			continue
		}
		seen[child] = true
		out = append(out, child)
	}
	return out
}

func (a *Aggregator) queryBalance(ctx context.Context, script, addr string) decimal.Decimal {
	cctx, cancel := a.callCtx(ctx)
	defer cancel()

	v, err := a.gw.Query(cctx, script, []ledger.Arg{ledger.AddressArg(addr)})
	if err != nil {
		log.Warn().Err(err).Str("address", addr).Msg("balance query failed")
		return decimal.Zero
	}
	return ledger.AsDecimal(v)
}

func (a *Aggregator) queryReceipt(ctx context.Context, addr string) *PendingReceipt {
	cctx, cancel := a.callCtx(ctx)
	defer cancel()

	v, err := a.gw.Query(cctx, ledger.ScriptPendingReceipt, []ledger.Arg{ledger.AddressArg(addr)})
	if err != nil {
		log.Warn().Err(err).Str("address", addr).Msg("receipt query failed")
		return nil
	}
	return decodeReceipt(v)
}

func (a *Aggregator) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.timeout)
}

func decodeReceipt(v ledger.Value) *PendingReceipt {
	m := ledger.AsMap(v)
	if m == nil {
		return nil
	}
	return &PendingReceipt{
		CommittedAmount:    ledger.AsDecimal(m["committedAmount"]),
		RequestBlockHeight: ledger.AsUint64(m["requestBlockHeight"]),
		RequestID:          ledger.AsUint64(m["requestId"]),
		IsRedeemable:       ledger.AsBool(m["isRedeemable"]),
		IsFulfilled:        ledger.AsBool(m["isFulfilled"]),
	}
}
