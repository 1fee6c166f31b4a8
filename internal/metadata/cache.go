package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

// EditionKey identifies one catalogue entry (a specific play in a specific
// set). Every serial-numbered Moment of the same edition shares one key.
type EditionKey struct {
	SetID  uint32
	PlayID uint32
}

// Entry is the immutable descriptive record for one edition, as returned
// by the bulk metadata endpoint.
type Entry struct {
	SetID       uint32 `json:"setID"`
	PlayID      uint32 `json:"playID"`
	Tier        string `json:"tier"`
	PlayerName  string `json:"FullName"`
	SetName     string `json:"name"`
	Series      uint32 `json:"series"`
	EditionSize uint32 `json:"momentCount"`
}

// Key returns the entry's edition key.
func (e Entry) Key() EditionKey {
	return EditionKey{SetID: e.SetID, PlayID: e.PlayID}
}

// Store is the durable persistence the cache writes through. A nil store
// disables persistence and the cache becomes purely in-memory.
type Store interface {
	SaveMetadataSnapshot(timestamp int64, data []byte) error
	LoadMetadataSnapshot() (int64, []byte, error)
}

// Cache is the process-wide edition metadata cache. Load is cheap once
// warm: within the TTL it performs no network access at all.
type Cache struct {
	url   string
	ttl   time.Duration
	store Store
	rest  *resty.Client

	mu       sync.Mutex
	entries  map[EditionKey]Entry
	loadedAt time.Time

	now func() time.Time // test hook
}

// New builds a cache over the given bulk endpoint. ttl bounds how long a
// loaded snapshot is served before a full reload.
func New(url string, ttl time.Duration, store Store) *Cache {
	return &Cache{
		url:   url,
		ttl:   ttl,
		store: store,
		rest:  resty.New().SetTimeout(30 * time.Second),
		now:   time.Now,
	}
}

// Load returns the edition mapping. Resolution order: in-memory snapshot,
// durable store, then one bulk network fetch. Metadata is an enrichment,
// never a blocking dependency, so a failed fetch returns an empty mapping
// instead of an error; the next call retries.
//
// Callers interleave on the same goroutine-safe cache, and only one bulk
// fetch is in flight at a time: concurrent cold loads serialize on the
// cache mutex and all but the first are served from the fresh snapshot.
func (c *Cache) Load(ctx context.Context) map[EditionKey]Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()

	if c.entries != nil && now.Sub(c.loadedAt) < c.ttl {
		return c.entries
	}

	if m := c.loadFromStore(now); m != nil {
		return m
	}

	rows, err := c.fetchAll(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("bulk metadata fetch failed, serving empty mapping")
		return map[EditionKey]Entry{}
	}

	m := buildMapping(rows)

	if c.store != nil {
		data, err := json.Marshal(rows)
		if err == nil {
			if err := c.store.SaveMetadataSnapshot(now.UnixMilli(), data); err != nil {
				log.Warn().Err(err).Msg("failed to persist metadata snapshot")
			}
		}
	}

	c.entries = m
	c.loadedAt = now
	log.Debug().Int("editions", len(m)).Msg("edition metadata reloaded")
	return m
}

// Expired reports whether the in-memory snapshot is absent or stale.
func (c *Cache) Expired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries == nil || c.now().Sub(c.loadedAt) >= c.ttl
}

// Invalidate drops the in-memory snapshot so the next Load goes back to
// the store or the network.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = nil
	c.loadedAt = time.Time{}
}

func (c *Cache) loadFromStore(now time.Time) map[EditionKey]Entry {
	if c.store == nil {
		return nil
	}
	ts, data, err := c.store.LoadMetadataSnapshot()
	if err != nil || data == nil {
		return nil
	}
	writtenAt := time.UnixMilli(ts)
	if now.Sub(writtenAt) >= c.ttl {
		return nil
	}
	var rows []Entry
	if err := json.Unmarshal(data, &rows); err != nil {
		// Unrecognized shape: fall back to a network reload.
		log.Warn().Err(err).Msg("stored metadata snapshot unreadable, reloading")
		return nil
	}
	m := buildMapping(rows)
	c.entries = m
	c.loadedAt = writtenAt
	return m
}

func (c *Cache) fetchAll(ctx context.Context) ([]Entry, error) {
	var rows []Entry

	op := func() error {
		resp, err := c.rest.R().SetContext(ctx).SetResult(&rows).Get(c.url)
		if err != nil {
			return err
		}
		if resp.IsError() {
			return fmt.Errorf("metadata endpoint returned status %d", resp.StatusCode())
		}
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return nil, err
	}
	return rows, nil
}

func buildMapping(rows []Entry) map[EditionKey]Entry {
	m := make(map[EditionKey]Entry, len(rows))
	for _, row := range rows {
		m[row.Key()] = row
	}
	return m
}
