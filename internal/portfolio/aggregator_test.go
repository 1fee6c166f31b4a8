package portfolio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/flowfolio/flowfolio/internal/collection"
	"github.com/flowfolio/flowfolio/internal/ledger"
)

const (
	parentAddr = "0x1d7e57aa55817448"
	childAddr1 = "0xf8d6e0586b0a20c7"
	childAddr2 = "0x179b6b1cb6755e31"
)

// scriptedGateway routes queries through a script-keyed function and
// counts executions per script.
type scriptedGateway struct {
	mu      sync.Mutex
	counts  map[string]int
	queryFn func(script string, args []ledger.Arg) (ledger.Value, error)
}

func newScriptedGateway(fn func(script string, args []ledger.Arg) (ledger.Value, error)) *scriptedGateway {
	return &scriptedGateway{counts: make(map[string]int), queryFn: fn}
}

func (s *scriptedGateway) Query(_ context.Context, script string, args []ledger.Arg) (ledger.Value, error) {
	s.mu.Lock()
	s.counts[script]++
	s.mu.Unlock()
	return s.queryFn(script, args)
}

func (s *scriptedGateway) Mutate(context.Context, string, []ledger.Arg, []string) (string, error) {
	return "", errors.New("not implemented")
}

func (s *scriptedGateway) Subscribe(context.Context, string) (<-chan ledger.TxStatus, error) {
	return nil, errors.New("not implemented")
}

func (s *scriptedGateway) AwaitSealed(context.Context, string) (ledger.TxResult, error) {
	return ledger.TxResult{}, errors.New("not implemented")
}

func (s *scriptedGateway) count(script string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[script]
}

func argAddr(args []ledger.Arg) string {
	if len(args) == 0 {
		return ""
	}
	return fmt.Sprint(args[0].Value)
}

// baseQueries answers the account scripts with fixed values and no
// collection, so tests only override what they care about.
func baseQueries(script string, args []ledger.Arg) (ledger.Value, error) {
	switch script {
	case ledger.ScriptTokenBalance:
		return "10.00000000", nil
	case ledger.ScriptFlowBalance:
		return "2.50000000", nil
	case ledger.ScriptHasCollection:
		return false, nil
	case ledger.ScriptPendingReceipt:
		return nil, nil
	case ledger.ScriptHasChildAccounts:
		return false, nil
	}
	return nil, fmt.Errorf("unexpected script")
}

func newTestAggregator(gw ledger.Gateway) *Aggregator {
	fetcher := collection.NewFetcher(gw, nil, 100, 4, 0)
	return NewAggregator(gw, fetcher, 0, 4)
}

func TestLoadAccountMergesAllQueries(t *testing.T) {
	gw := newScriptedGateway(func(script string, args []ledger.Arg) (ledger.Value, error) {
		switch script {
		case ledger.ScriptPendingReceipt:
			return map[string]any{
				"committedAmount":    "10.00000000",
				"requestBlockHeight": uint64(12345),
				"requestId":          uint64(99),
				"isRedeemable":       true,
				"isFulfilled":        false,
			}, nil
		case ledger.ScriptHasCollection:
			return true, nil
		case ledger.ScriptCollectionIDs:
			return []any{uint64(7)}, nil
		case ledger.ScriptMomentDetailsBatch:
			return []any{map[string]any{"id": uint64(7), "setID": uint64(1), "playID": uint64(2), "serialNumber": uint64(3)}}, nil
		}
		return baseQueries(script, args)
	})

	a := newTestAggregator(gw)
	snap := a.LoadAccount(context.Background(), parentAddr)

	if snap.Address != parentAddr {
		t.Fatalf("address = %q", snap.Address)
	}
	if snap.TokenBalance.String() != "10" || snap.FlowBalance.String() != "2.5" {
		t.Fatalf("balances = %s / %s", snap.TokenBalance, snap.FlowBalance)
	}
	if !snap.HasCollection || len(snap.Moments) != 1 || snap.Moments[0].ID != 7 {
		t.Fatalf("collection = %+v", snap)
	}
	if snap.PendingReceipt == nil || !snap.PendingReceipt.IsRedeemable || snap.PendingReceipt.CommittedAmount.String() != "10" {
		t.Fatalf("receipt = %+v", snap.PendingReceipt)
	}
}

func TestLoadAccountDegradesFailuresToZero(t *testing.T) {
	gw := newScriptedGateway(func(script string, args []ledger.Arg) (ledger.Value, error) {
		return nil, errors.New("gateway down")
	})

	a := newTestAggregator(gw)
	snap := a.LoadAccount(context.Background(), parentAddr)

	if !snap.TokenBalance.IsZero() || !snap.FlowBalance.IsZero() {
		t.Fatalf("expected zero balances, got %s / %s", snap.TokenBalance, snap.FlowBalance)
	}
	if snap.HasCollection || snap.PendingReceipt != nil {
		t.Fatalf("expected degraded snapshot, got %+v", snap)
	}
}

func TestInvalidAddressReturnsZeroWithoutNetwork(t *testing.T) {
	gw := newScriptedGateway(func(string, []ledger.Arg) (ledger.Value, error) {
		t.Fatal("no gateway call expected")
		return nil, nil
	})

	a := newTestAggregator(gw)
	snap := a.LoadAccount(context.Background(), "nonsense")
	if !snap.TokenBalance.IsZero() || snap.HasCollection {
		t.Fatalf("expected zero snapshot, got %+v", snap)
	}
}

func TestConcurrentLoadsJoinSingleFlight(t *testing.T) {
	gate := make(chan struct{})
	var gated int32

	gw := newScriptedGateway(func(script string, args []ledger.Arg) (ledger.Value, error) {
		if script == ledger.ScriptTokenBalance {
			if atomic.AddInt32(&gated, 1) == 1 {
				<-gate
			}
		}
		return baseQueries(script, args)
	})

	a := newTestAggregator(gw)

	var wg sync.WaitGroup
	snaps := make([]AccountSnapshot, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snaps[i] = a.LoadAccount(context.Background(), parentAddr)
		}()
	}

	// Wait until the first load is inside the gateway, then confirm the
	// scope reports as refreshing and release it.
	for atomic.LoadInt32(&gated) == 0 {
		time.Sleep(time.Millisecond)
	}
	if !a.Refreshing(parentAddr) {
		t.Fatal("expected scope to report refreshing while in flight")
	}
	close(gate)
	wg.Wait()

	if got := gw.count(ledger.ScriptTokenBalance); got != 1 {
		t.Fatalf("expected 1 token balance query across joined loads, got %d", got)
	}
	for i := 1; i < 3; i++ {
		if !snaps[i].LoadedAt.Equal(snaps[0].LoadedAt) {
			t.Fatalf("joined loads returned different snapshots: %v vs %v", snaps[i].LoadedAt, snaps[0].LoadedAt)
		}
	}
	if a.Refreshing(parentAddr) {
		t.Fatal("scope still refreshing after completion")
	}
}

func TestSnapshotNeverMixesFetchCycles(t *testing.T) {
	// Both balances always report the same generation value; a reader
	// observing a snapshot with differing balances has seen a mix of two
	// cycles.
	var gen int64 = 1

	gw := newScriptedGateway(func(script string, args []ledger.Arg) (ledger.Value, error) {
		switch script {
		case ledger.ScriptTokenBalance, ledger.ScriptFlowBalance:
			time.Sleep(time.Millisecond)
			return fmt.Sprintf("%d.00000000", atomic.LoadInt64(&gen)), nil
		}
		return baseQueries(script, args)
	})

	a := newTestAggregator(gw)

	stop := make(chan struct{})
	var torn int32
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			snap := a.Snapshot().Parent
			if snap.Address != "" && !snap.TokenBalance.Equal(snap.FlowBalance) {
				atomic.AddInt32(&torn, 1)
				return
			}
		}
	}()

	a.mu.Lock()
	a.parent = parentAddr
	a.mu.Unlock()

	for i := 0; i < 10; i++ {
		a.LoadAccount(context.Background(), parentAddr)
		atomic.AddInt64(&gen, 1)
	}
	close(stop)
	wg.Wait()

	if atomic.LoadInt32(&torn) != 0 {
		t.Fatal("reader observed a snapshot mixing two fetch cycles")
	}
}

func TestLoadPortfolioWithChildren(t *testing.T) {
	gw := newScriptedGateway(func(script string, args []ledger.Arg) (ledger.Value, error) {
		switch script {
		case ledger.ScriptHasChildAccounts:
			return true, nil
		case ledger.ScriptChildAddresses:
			// Mixed casing and a duplicate; both must collapse.
			return []any{"0xF8D6E0586B0A20C7", childAddr1, childAddr2}, nil
		}
		return baseQueries(script, args)
	})

	a := newTestAggregator(gw)
	snap := a.LoadPortfolio(context.Background(), parentAddr)

	if snap.Parent.Address != parentAddr || snap.Parent.Role != RoleParent {
		t.Fatalf("parent = %+v", snap.Parent)
	}
	if len(snap.Children) != 2 {
		t.Fatalf("expected 2 children, got %d", len(snap.Children))
	}
	for _, c := range snap.Children {
		if c.Role != RoleChild {
			t.Fatalf("child role = %q", c.Role)
		}
	}
	if snap.LoadingChildren {
		t.Fatal("loading flag still set after completion")
	}
}

func TestLoadPortfolioClearsChildrenWhenNoneRemain(t *testing.T) {
	hasChildren := int32(1)
	gw := newScriptedGateway(func(script string, args []ledger.Arg) (ledger.Value, error) {
		switch script {
		case ledger.ScriptHasChildAccounts:
			return atomic.LoadInt32(&hasChildren) == 1, nil
		case ledger.ScriptChildAddresses:
			return []any{childAddr1}, nil
		}
		return baseQueries(script, args)
	})

	a := newTestAggregator(gw)
	snap := a.LoadPortfolio(context.Background(), parentAddr)
	if len(snap.Children) != 1 {
		t.Fatalf("expected 1 child, got %d", len(snap.Children))
	}

	atomic.StoreInt32(&hasChildren, 0)
	snap = a.LoadPortfolio(context.Background(), parentAddr)
	if len(snap.Children) != 0 {
		t.Fatalf("expected children cleared, got %d", len(snap.Children))
	}
}

func TestBalancePollingRefreshesOnlyBalances(t *testing.T) {
	gw := newScriptedGateway(baseQueries)

	a := newTestAggregator(gw)
	a.LoadPortfolio(context.Background(), parentAddr)

	collectionChecks := gw.count(ledger.ScriptHasCollection)
	balancesBefore := gw.count(ledger.ScriptTokenBalance)

	ctx, cancel := context.WithCancel(context.Background())
	a.StartBalancePolling(ctx, 5*time.Millisecond)
	time.Sleep(40 * time.Millisecond)
	cancel()

	if got := gw.count(ledger.ScriptTokenBalance); got <= balancesBefore {
		t.Fatalf("expected polling to refresh balances, count stayed at %d", got)
	}
	if got := gw.count(ledger.ScriptHasCollection); got != collectionChecks {
		t.Fatalf("polling must not touch collections: %d -> %d", collectionChecks, got)
	}

	// After cancellation the loop stops issuing queries.
	time.Sleep(15 * time.Millisecond)
	settled := gw.count(ledger.ScriptTokenBalance)
	time.Sleep(20 * time.Millisecond)
	if got := gw.count(ledger.ScriptTokenBalance); got != settled {
		t.Fatalf("polling continued after cancel: %d -> %d", settled, got)
	}
}
