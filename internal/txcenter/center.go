package txcenter

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/flowfolio/flowfolio/internal/txtracker"
)

// Operation kinds with special grouping/surfacing behavior.
const (
	KindCommit = "commit"
	KindReveal = "reveal"
)

// PayloadRevealKey marks a commit whose reveal payload is already known,
// meaning the reveal will follow automatically once the commit seals.
const PayloadRevealKey = "revealPayload"

// Record is one tracked operation as the UI sees it. UIID is assigned
// client-side at creation and stays stable even before a ledger
// transaction id exists.
type Record struct {
	UIID       string            `json:"uiId"`
	LedgerTxID string            `json:"ledgerTxId,omitempty"`
	Kind       string            `json:"kind"`
	Status     string            `json:"status"`
	Error      string            `json:"error,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
	Payload    map[string]string `json:"payload,omitempty"`
	ParentUIID string            `json:"parentUiId,omitempty"`
}

// Store is the durable persistence for the active and recent lists. A nil
// store disables persistence.
type Store interface {
	SaveTransactionLists(active, recent []byte) error
	LoadTransactionLists() (active, recent []byte, err error)
}

// Center is the de-duplicating registry of in-flight and recently
// completed operations.
type Center struct {
	mu      sync.Mutex
	store   Store
	active  []Record
	recent  []Record
	display string // uiId currently requested for display

	maxRecent int
	maxAge    time.Duration

	now func() time.Time // test hook
}

// New builds a center, loading and pruning any persisted lists. Unreadable
// persisted state falls back to empty rather than failing.
func New(store Store, maxAge time.Duration, maxRecent int) *Center {
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	if maxRecent <= 0 {
		maxRecent = 50
	}
	c := &Center{
		store:     store,
		maxRecent: maxRecent,
		maxAge:    maxAge,
		now:       time.Now,
	}
	c.load()
	return c
}

// Record upserts an operation update and returns its uiId. Matching is
// double-keyed: first by uiId, then by ledger transaction id, so updates
// that learn the ledger id later converge onto the same record instead of
// duplicating it.
func (c *Center) Record(rec Record) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()

	if rec.UIID == "" {
		if existing := c.findActiveByLedgerID(rec.LedgerTxID); existing != nil {
			rec.UIID = existing.UIID
		} else if rec.LedgerTxID != "" {
			rec.UIID = rec.LedgerTxID
		} else {
			rec.UIID = uuid.NewString()
		}
	}

	target := c.findActiveByUIID(rec.UIID)
	if target == nil {
		target = c.findActiveByLedgerID(rec.LedgerTxID)
	}

	if target != nil {
		mergeRecord(target, rec, now)
	} else {
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = now
		}
		rec.UpdatedAt = now
		c.active = append(c.active, rec)
		target = &c.active[len(c.active)-1]
	}

	c.autoSurface(*target)
	c.persist()
	return target.UIID
}

// Complete moves an operation from the active set into recent history and
// prunes the history by age and count.
func (c *Center) Complete(uiID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.active {
		if c.active[i].UIID == uiID {
			rec := c.active[i]
			rec.UpdatedAt = c.now()
			c.active = append(c.active[:i], c.active[i+1:]...)
			c.recent = append([]Record{rec}, c.recent...)
			break
		}
	}
	c.prune()
	c.persist()
}

// Remove drops an operation from both sets.
func (c *Center) Remove(uiID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.active = deleteByUIID(c.active, uiID)
	c.recent = deleteByUIID(c.recent, uiID)
	if c.display == uiID {
		c.display = ""
	}
	c.persist()
}

// RequestDisplay marks an operation for display. Kinds without an
// auto-surfacing rule are shown only through this explicit call.
func (c *Center) RequestDisplay(uiID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.display = uiID
}

// SelectForDisplay returns the operation currently requested for display,
// or nil when nothing is surfaced.
func (c *Center) SelectForDisplay() *Record {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.display == "" {
		return nil
	}
	if rec := c.findByUIID(c.display); rec != nil {
		out := *rec
		return &out
	}
	return nil
}

// Group returns the causally related records for an operation: a commit
// with the reveals that declare it as parent, ordered commit first.
func (c *Center) Group(uiID string) []Record {
	c.mu.Lock()
	defer c.mu.Unlock()

	root := c.findByUIID(uiID)
	if root == nil {
		return nil
	}
	if root.ParentUIID != "" {
		if parent := c.findByUIID(root.ParentUIID); parent != nil {
			root = parent
		}
	}

	out := []Record{*root}
	for _, rec := range append(append([]Record{}, c.active...), c.recent...) {
		if rec.ParentUIID == root.UIID {
			out = append(out, rec)
		}
	}
	return out
}

// Active returns a copy of the in-flight set.
func (c *Center) Active() []Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Record{}, c.active...)
}

// Recent returns a copy of the completed history, newest first.
func (c *Center) Recent() []Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Record{}, c.recent...)
}

// RecordUpdate folds one tracker update into the registry, completing the
// record when the update is terminal. Returns the record's uiId.
func (c *Center) RecordUpdate(u txtracker.Update) string {
	uiID := c.Record(Record{
		UIID:       u.UIID,
		LedgerTxID: u.LedgerTxID,
		Kind:       u.Kind,
		Status:     u.Status.String(),
		Error:      u.Error,
		CreatedAt:  u.CreatedAt,
		Payload:    u.Payload,
		ParentUIID: u.ParentUIID,
	})
	if u.Status.Terminal() {
		c.Complete(uiID)
	}
	return uiID
}

// Track consumes a tracker update stream until it closes. Intended to run
// as `go center.Track(tracker.Submit(...))`.
func (c *Center) Track(updates <-chan txtracker.Update) {
	for u := range updates {
		c.RecordUpdate(u)
	}
}

func (c *Center) autoSurface(rec Record) {
	switch {
	case rec.Kind == KindReveal:
		c.display = rec.UIID
	case rec.Kind == KindCommit && !isTerminalStatus(rec.Status) && rec.Payload[PayloadRevealKey] != "":
		c.display = rec.UIID
	}
}

func (c *Center) findActiveByUIID(uiID string) *Record {
	if uiID == "" {
		return nil
	}
	for i := range c.active {
		if c.active[i].UIID == uiID {
			return &c.active[i]
		}
	}
	return nil
}

func (c *Center) findActiveByLedgerID(txID string) *Record {
	if txID == "" {
		return nil
	}
	for i := range c.active {
		if c.active[i].LedgerTxID == txID {
			return &c.active[i]
		}
	}
	return nil
}

func (c *Center) findByUIID(uiID string) *Record {
	if rec := c.findActiveByUIID(uiID); rec != nil {
		return rec
	}
	for i := range c.recent {
		if c.recent[i].UIID == uiID {
			return &c.recent[i]
		}
	}
	return nil
}

// prune enforces the retention bounds on recent history: drop entries
// older than maxAge, then trim to maxRecent keeping the newest.
func (c *Center) prune() {
	cutoff := c.now().Add(-c.maxAge)
	kept := c.recent[:0]
	for _, rec := range c.recent {
		if rec.UpdatedAt.After(cutoff) {
			kept = append(kept, rec)
		}
	}
	c.recent = kept
	if len(c.recent) > c.maxRecent {
		c.recent = c.recent[:c.maxRecent]
	}
}

func (c *Center) load() {
	if c.store == nil {
		return
	}
	active, recent, err := c.store.LoadTransactionLists()
	if err != nil {
		log.Warn().Err(err).Msg("failed to load persisted transactions")
		return
	}
	if active != nil {
		if err := json.Unmarshal(active, &c.active); err != nil {
			log.Warn().Err(err).Msg("active transaction list unreadable, starting empty")
			c.active = nil
		}
	}
	if recent != nil {
		if err := json.Unmarshal(recent, &c.recent); err != nil {
			log.Warn().Err(err).Msg("recent transaction list unreadable, starting empty")
			c.recent = nil
		}
	}
	c.prune()
	c.persist()
}

func (c *Center) persist() {
	if c.store == nil {
		return
	}
	active, err := json.Marshal(c.active)
	if err != nil {
		return
	}
	recent, err := json.Marshal(c.recent)
	if err != nil {
		return
	}
	if err := c.store.SaveTransactionLists(active, recent); err != nil {
		log.Warn().Err(err).Msg("failed to persist transaction lists")
	}
}

func mergeRecord(target *Record, rec Record, now time.Time) {
	if rec.LedgerTxID != "" {
		target.LedgerTxID = rec.LedgerTxID
	}
	if rec.Kind != "" {
		target.Kind = rec.Kind
	}
	if rec.Status != "" {
		target.Status = rec.Status
	}
	if rec.Error != "" {
		target.Error = rec.Error
	}
	if rec.ParentUIID != "" {
		target.ParentUIID = rec.ParentUIID
	}
	for k, v := range rec.Payload {
		if target.Payload == nil {
			target.Payload = make(map[string]string)
		}
		target.Payload[k] = v
	}
	target.UpdatedAt = now
}

func deleteByUIID(recs []Record, uiID string) []Record {
	for i := range recs {
		if recs[i].UIID == uiID {
			return append(recs[:i], recs[i+1:]...)
		}
	}
	return recs
}

func isTerminalStatus(status string) bool {
	return status == txtracker.StatusSealed.String() ||
		status == txtracker.StatusError.String() ||
		status == txtracker.StatusExpired.String()
}
