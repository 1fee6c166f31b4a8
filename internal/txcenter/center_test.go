package txcenter

import (
	"fmt"
	"testing"
	"time"

	"github.com/flowfolio/flowfolio/internal/txtracker"
)

type memStore struct {
	active []byte
	recent []byte
	saves  int
}

func (s *memStore) SaveTransactionLists(active, recent []byte) error {
	s.active = active
	s.recent = recent
	s.saves++
	return nil
}

func (s *memStore) LoadTransactionLists() ([]byte, []byte, error) {
	return s.active, s.recent, nil
}

func TestRecordDeduplicatesByUIID(t *testing.T) {
	c := New(nil, 0, 0)

	uiID := c.Record(Record{UIID: "ui-1", Kind: "swap", Status: "pending"})
	c.Record(Record{UIID: "ui-1", Status: "executed", LedgerTxID: "tx-9"})

	active := c.Active()
	if len(active) != 1 {
		t.Fatalf("expected 1 record, got %d", len(active))
	}
	rec := active[0]
	if rec.UIID != uiID || rec.Status != "executed" || rec.LedgerTxID != "tx-9" || rec.Kind != "swap" {
		t.Fatalf("merged record = %+v", rec)
	}
}

func TestRecordConvergesByLedgerTxID(t *testing.T) {
	c := New(nil, 0, 0)

	// First update carries only the client-side id plus the ledger id.
	c.Record(Record{UIID: "ui-1", LedgerTxID: "tx-1", Kind: "swap", Status: "pending"})

	// A later update knows only the ledger id; it must converge, not fork.
	got := c.Record(Record{LedgerTxID: "tx-1", Status: "sealed"})

	if got != "ui-1" {
		t.Fatalf("expected convergence onto ui-1, got %q", got)
	}
	if len(c.Active()) != 1 {
		t.Fatalf("expected 1 record, got %d", len(c.Active()))
	}
	if c.Active()[0].Status != "sealed" {
		t.Fatalf("status = %q", c.Active()[0].Status)
	}
}

func TestUIIDDerivedFromLedgerIDWhenAbsent(t *testing.T) {
	c := New(nil, 0, 0)
	uiID := c.Record(Record{LedgerTxID: "tx-7", Kind: "swap"})
	if uiID != "tx-7" {
		t.Fatalf("uiId = %q, want ledger-derived tx-7", uiID)
	}

	generated := c.Record(Record{Kind: "swap"})
	if generated == "" || generated == uiID {
		t.Fatalf("expected fresh uiId, got %q", generated)
	}
}

func TestRetentionBounds(t *testing.T) {
	c := New(nil, 24*time.Hour, 50)

	for i := 0; i < 60; i++ {
		uiID := c.Record(Record{UIID: fmt.Sprintf("ui-%d", i), Kind: "swap", Status: "sealed"})
		c.Complete(uiID)
	}

	if got := len(c.Recent()); got > 50 {
		t.Fatalf("recent history size %d exceeds 50", got)
	}
	if got := len(c.Active()); got != 0 {
		t.Fatalf("expected empty active set, got %d", got)
	}
}

func TestAgePruning(t *testing.T) {
	c := New(nil, 24*time.Hour, 50)
	now := time.Now()
	c.now = func() time.Time { return now }

	old := c.Record(Record{UIID: "ui-old", Kind: "swap", Status: "sealed"})
	c.Complete(old)

	now = now.Add(25 * time.Hour)
	fresh := c.Record(Record{UIID: "ui-fresh", Kind: "swap", Status: "sealed"})
	c.Complete(fresh)

	recent := c.Recent()
	if len(recent) != 1 || recent[0].UIID != "ui-fresh" {
		t.Fatalf("expected only the fresh entry, got %+v", recent)
	}
}

func TestGrouping(t *testing.T) {
	c := New(nil, 0, 0)

	commit := c.Record(Record{UIID: "ui-commit", Kind: KindCommit, Status: "sealed"})
	c.Record(Record{UIID: "ui-reveal", Kind: KindReveal, Status: "pending", ParentUIID: commit})

	// Grouping resolves from either end.
	fromCommit := c.Group("ui-commit")
	fromReveal := c.Group("ui-reveal")

	for _, group := range [][]Record{fromCommit, fromReveal} {
		if len(group) != 2 {
			t.Fatalf("expected group of 2, got %d", len(group))
		}
		if group[0].UIID != "ui-commit" || group[1].UIID != "ui-reveal" {
			t.Fatalf("group order = %s, %s", group[0].UIID, group[1].UIID)
		}
	}
}

func TestAutoSurfacingRules(t *testing.T) {
	c := New(nil, 0, 0)

	// Plain swaps require an explicit display request.
	c.Record(Record{UIID: "ui-swap", Kind: "swap", Status: "pending"})
	if c.SelectForDisplay() != nil {
		t.Fatal("plain swap must not auto-surface")
	}

	// A commit mid-flight with a known reveal payload surfaces itself.
	c.Record(Record{
		UIID:    "ui-commit",
		Kind:    KindCommit,
		Status:  "pending",
		Payload: map[string]string{PayloadRevealKey: "reveal-args"},
	})
	if got := c.SelectForDisplay(); got == nil || got.UIID != "ui-commit" {
		t.Fatalf("expected auto-surfaced commit, got %+v", got)
	}

	// Reveals always surface.
	c.Record(Record{UIID: "ui-reveal", Kind: KindReveal, Status: "pending", ParentUIID: "ui-commit"})
	if got := c.SelectForDisplay(); got == nil || got.UIID != "ui-reveal" {
		t.Fatalf("expected surfaced reveal, got %+v", got)
	}

	// Explicit request overrides.
	c.RequestDisplay("ui-swap")
	if got := c.SelectForDisplay(); got == nil || got.UIID != "ui-swap" {
		t.Fatalf("expected explicitly requested record, got %+v", got)
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	store := &memStore{}
	c := New(store, 0, 0)

	uiID := c.Record(Record{UIID: "ui-1", Kind: "swap", Status: "pending"})
	if store.saves == 0 {
		t.Fatal("expected persistence on mutation")
	}
	c.Complete(uiID)

	// A new center over the same store sees the history.
	c2 := New(store, 0, 0)
	recent := c2.Recent()
	if len(recent) != 1 || recent[0].UIID != "ui-1" {
		t.Fatalf("expected persisted history, got %+v", recent)
	}
}

func TestCorruptPersistedStateFallsBackToEmpty(t *testing.T) {
	store := &memStore{active: []byte("not json"), recent: []byte("{broken")}
	c := New(store, 0, 0)
	if len(c.Active()) != 0 || len(c.Recent()) != 0 {
		t.Fatal("expected empty sets for unreadable persisted state")
	}
}

func TestRecordUpdateCompletesTerminal(t *testing.T) {
	c := New(nil, 0, 0)

	u := txtracker.Update{
		UIID:       "ui-1",
		LedgerTxID: "tx-1",
		Kind:       KindCommit,
		Status:     txtracker.StatusPending,
	}
	c.RecordUpdate(u)
	if len(c.Active()) != 1 {
		t.Fatalf("expected active record, got %d", len(c.Active()))
	}

	u.Status = txtracker.StatusSealed
	c.RecordUpdate(u)
	if len(c.Active()) != 0 || len(c.Recent()) != 1 {
		t.Fatalf("expected terminal update to move record to history: active=%d recent=%d",
			len(c.Active()), len(c.Recent()))
	}
	if c.Recent()[0].Status != "sealed" {
		t.Fatalf("status = %q", c.Recent()[0].Status)
	}
}
