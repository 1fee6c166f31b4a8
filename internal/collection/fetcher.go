package collection

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/flowfolio/flowfolio/internal/ledger"
	"github.com/flowfolio/flowfolio/internal/metadata"
	"github.com/flowfolio/flowfolio/lib/utils"
)

// MomentRecord is one owned item. Identity fields come from the ledger;
// the descriptive fields are filled from the metadata cache and stay zero
// when metadata is not yet loaded. Records are replaced wholesale on each
// re-fetch of their owning account, never patched in place.
type MomentRecord struct {
	ID           uint64 `json:"id"`
	SetID        uint32 `json:"setID"`
	PlayID       uint32 `json:"playID"`
	SerialNumber uint32 `json:"serialNumber"`
	SubeditionID uint32 `json:"subeditionID,omitempty"`
	IsLocked     bool   `json:"isLocked"`

	Tier        string `json:"tier,omitempty"`
	PlayerName  string `json:"playerName,omitempty"`
	Series      uint32 `json:"series,omitempty"`
	SetName     string `json:"setName,omitempty"`
	EditionSize uint32 `json:"editionSize,omitempty"`
}

// EditionKey returns the record's metadata lookup key.
func (m MomentRecord) EditionKey() metadata.EditionKey {
	return metadata.EditionKey{SetID: m.SetID, PlayID: m.PlayID}
}

// Result is the outcome of one collection fetch. On any failure the whole
// result degrades to its zero value: a truncated Moment list is worse than
// an explicit unknown state.
type Result struct {
	HasCollection bool
	Items         []MomentRecord
	TierCounts    map[string]int
}

func emptyResult() Result {
	return Result{HasCollection: false, Items: []MomentRecord{}, TierCounts: map[string]int{}}
}

// Fetcher enumerates and resolves an account's Moment collection in
// bounded batches.
type Fetcher struct {
	gw   ledger.Gateway
	meta *metadata.Cache

	batchSize   int
	concurrency int
	timeout     time.Duration // per gateway call; 0 disables the deadline
}

// NewFetcher builds a fetcher. batchSize keeps one response under the
// gateway's practical size limit; concurrency caps simultaneous batch
// calls against the shared, rate-sensitive gateway.
func NewFetcher(gw ledger.Gateway, meta *metadata.Cache, batchSize, concurrency int, timeout time.Duration) *Fetcher {
	if batchSize <= 0 {
		batchSize = 2500
	}
	if concurrency <= 0 {
		concurrency = 30
	}
	return &Fetcher{gw: gw, meta: meta, batchSize: batchSize, concurrency: concurrency, timeout: timeout}
}

// FetchCollection returns the account's full collection, enriched with
// edition metadata, or the empty result on any failure.
func (f *Fetcher) FetchCollection(ctx context.Context, address string) Result {
	addr := utils.NormalizeAddress(address)
	if !utils.IsValidAddress(addr) {
		return emptyResult()
	}

	has, err := f.hasCollection(ctx, addr)
	if err != nil {
		log.Warn().Err(err).Str("address", addr).Msg("collection existence check failed")
		return emptyResult()
	}
	if !has {
		// Never attempt id enumeration on a non-existent collection.
		return emptyResult()
	}

	ids, err := f.collectionIDs(ctx, addr)
	if err != nil {
		log.Warn().Err(err).Str("address", addr).Msg("collection id enumeration failed")
		return emptyResult()
	}
	if len(ids) == 0 {
		return Result{HasCollection: true, Items: []MomentRecord{}, TierCounts: map[string]int{}}
	}

	items, err := f.fetchDetails(ctx, addr, ids)
	if err != nil {
		log.Warn().Err(err).Str("address", addr).Msg("collection detail fetch failed")
		return emptyResult()
	}

	f.enrich(ctx, items)

	return Result{
		HasCollection: true,
		Items:         items,
		TierCounts:    countTiers(items),
	}
}

func (f *Fetcher) hasCollection(ctx context.Context, addr string) (bool, error) {
	ctx, cancel := f.callCtx(ctx)
	defer cancel()
	v, err := f.gw.Query(ctx, ledger.ScriptHasCollection, []ledger.Arg{ledger.AddressArg(addr)})
	if err != nil {
		return false, err
	}
	return ledger.AsBool(v), nil
}

func (f *Fetcher) collectionIDs(ctx context.Context, addr string) ([]uint64, error) {
	ctx, cancel := f.callCtx(ctx)
	defer cancel()
	v, err := f.gw.Query(ctx, ledger.ScriptCollectionIDs, []ledger.Arg{ledger.AddressArg(addr)})
	if err != nil {
		return nil, err
	}
	raw := ledger.AsSlice(v)
	ids := make([]uint64, 0, len(raw))
	for _, rv := range raw {
		if id := ledger.AsUint64(rv); id != 0 {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// fetchDetails resolves item details batch by batch. Batches are
// independent and commutative, so a failing batch never cancels its
// siblings; once all calls settle, any failure degrades the whole fetch.
func (f *Fetcher) fetchDetails(ctx context.Context, addr string, ids []uint64) ([]MomentRecord, error) {
	batches := partition(ids, f.batchSize)
	results := make([][]MomentRecord, len(batches))

	var g errgroup.Group
	g.SetLimit(f.concurrency)

	for i, batch := range batches {
		g.Go(func() error {
			recs, err := f.fetchBatch(ctx, addr, batch)
			if err != nil {
				return fmt.Errorf("batch %d/%d: %w", i+1, len(batches), err)
			}
			results[i] = recs
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	items := make([]MomentRecord, 0, len(ids))
	for _, recs := range results {
		items = append(items, recs...)
	}
	return items, nil
}

func (f *Fetcher) fetchBatch(ctx context.Context, addr string, ids []uint64) ([]MomentRecord, error) {
	ctx, cancel := f.callCtx(ctx)
	defer cancel()

	v, err := f.gw.Query(ctx, ledger.ScriptMomentDetailsBatch, []ledger.Arg{
		ledger.AddressArg(addr),
		ledger.UInt64SliceArg(ids),
	})
	if err != nil {
		return nil, err
	}

	raw := ledger.AsSlice(v)
	recs := make([]MomentRecord, 0, len(raw))
	for _, rv := range raw {
		rec, ok := decodeMoment(rv)
		if !ok {
			continue
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// enrich fills descriptive fields from the metadata cache. A missing or
// still-loading catalogue leaves the identity fields intact; display is
// never blocked on metadata.
func (f *Fetcher) enrich(ctx context.Context, items []MomentRecord) {
	if f.meta == nil {
		return
	}
	editions := f.meta.Load(ctx)
	if len(editions) == 0 {
		return
	}
	for i := range items {
		entry, ok := editions[items[i].EditionKey()]
		if !ok {
			continue
		}
		items[i].Tier = entry.Tier
		items[i].PlayerName = entry.PlayerName
		items[i].Series = entry.Series
		items[i].SetName = entry.SetName
		items[i].EditionSize = entry.EditionSize
	}
}

func (f *Fetcher) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if f.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, f.timeout)
}

func decodeMoment(v ledger.Value) (MomentRecord, bool) {
	id := ledger.AsUint64(ledger.Field(v, "id"))
	if id == 0 {
		return MomentRecord{}, false
	}
	return MomentRecord{
		ID:           id,
		SetID:        ledger.AsUint32(ledger.Field(v, "setID")),
		PlayID:       ledger.AsUint32(ledger.Field(v, "playID")),
		SerialNumber: ledger.AsUint32(ledger.Field(v, "serialNumber")),
		SubeditionID: ledger.AsUint32(ledger.Field(v, "subeditionID")),
		IsLocked:     ledger.AsBool(ledger.Field(v, "isLocked")),
	}, true
}

func countTiers(items []MomentRecord) map[string]int {
	counts := make(map[string]int)
	for _, item := range items {
		if item.Tier == "" {
			continue
		}
		counts[strings.ToLower(item.Tier)]++
	}
	return counts
}

func partition(ids []uint64, size int) [][]uint64 {
	var batches [][]uint64
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		batches = append(batches, ids[start:end])
	}
	return batches
}
