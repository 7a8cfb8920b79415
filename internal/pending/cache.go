package pending

import (
	"context"
	"hash/fnv"
	"log"
	"sync"
	"time"
)

const numShards = 16

// Config sizes the cache and its purge behavior.
type Config struct {
	GracePeriod   time.Duration // how long finalized entries stay visible
	SweepInterval time.Duration // purge loop cadence
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		GracePeriod:   2 * time.Minute,
		SweepInterval: 5 * time.Second,
	}
}

// Cache is a sharded keyed store of in-flight and recently-finalized
// requests. Unrelated keys never serialize against each other: lookups take
// a shard lock, mutation takes the entry lock.
type Cache struct {
	shards [numShards]*shard
	cfg    Config

	// FIFO of finalized entries in finalization order. Sweeping pops from
	// the front, so the cost is O(expired count), not a full scan.
	expMu  sync.Mutex
	expiry []expiryRecord
}

type shard struct {
	mu    sync.RWMutex
	items map[ClientRequestID]*entry
}

type entry struct {
	mu  sync.Mutex
	req Request
}

type expiryRecord struct {
	id          ClientRequestID
	finalizedAt time.Time
}

// NewCache creates an empty cache.
func NewCache(cfg Config) *Cache {
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = DefaultConfig().GracePeriod
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultConfig().SweepInterval
	}
	c := &Cache{cfg: cfg}
	for i := 0; i < numShards; i++ {
		c.shards[i] = &shard{items: make(map[ClientRequestID]*entry)}
	}
	return c
}

func (c *Cache) shardFor(id ClientRequestID) *shard {
	h := fnv.New32a()
	h.Write([]byte(id))
	return c.shards[h.Sum32()%numShards]
}

// Put inserts a new request in state PENDING. A second insert with the same
// id before purge fails with ErrDuplicateKey, never a silent overwrite.
func (c *Cache) Put(id ClientRequestID, kind Kind, payload Payload) (Request, error) {
	s := c.shardFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; ok {
		return Request{}, ErrDuplicateKey
	}
	e := &entry{req: Request{
		ClientRequestID: id,
		Kind:            kind,
		State:           StatePending,
		Payload:         payload,
		CreatedAt:       time.Now(),
	}}
	s.items[id] = e
	return e.req, nil
}

// Get returns the current snapshot for an id.
func (c *Cache) Get(id ClientRequestID) (Request, error) {
	e, ok := c.lookup(id)
	if !ok {
		return Request{}, ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.req, nil
}

func (c *Cache) lookup(id ClientRequestID) (*entry, bool) {
	s := c.shardFor(id)
	s.mu.RLock()
	e, ok := s.items[id]
	s.mu.RUnlock()
	return e, ok
}

// Option mutates request fields alongside a state transition.
type Option func(*Request)

// WithVenueRequestID records the venue correlation id.
func WithVenueRequestID(vid VenueRequestID) Option {
	return func(r *Request) {
		if r.VenueRequestID == "" {
			r.VenueRequestID = vid
		}
	}
}

// WithReason records a human-readable failure or rejection detail.
func WithReason(reason string) Option {
	return func(r *Request) { r.Reason = reason }
}

// Transition moves the request to a new state under the entry lock. State
// transitions for a single id are totally ordered: a concurrent loser gets
// ErrAlreadyFinalized / ErrAlreadyCancelled when a terminal state won the
// race, or ErrInvalidTransition for a machine violation.
func (c *Cache) Transition(id ClientRequestID, to State, opts ...Option) (Request, error) {
	e, ok := c.lookup(id)
	if !ok {
		return Request{}, ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	cur := e.req.State
	if cur.Terminal() {
		return e.req, terminalError(cur)
	}
	if !cur.canTransition(to) {
		return e.req, ErrInvalidTransition
	}

	next := e.req
	next.State = to
	for _, opt := range opts {
		opt(&next)
	}
	// Venue id is immutable once set.
	if e.req.VenueRequestID != "" {
		next.VenueRequestID = e.req.VenueRequestID
	}
	if to.Terminal() {
		next.FinalizedAt = time.Now()
	}
	e.req = next

	if to.Terminal() {
		c.enqueueExpiry(id, next.FinalizedAt)
	}
	return next, nil
}

// Amend mutates the payload of a pre-terminal request. Legal only in
// PENDING or ACKNOWLEDGED.
func (c *Cache) Amend(id ClientRequestID, mutate func(*Payload)) (Request, error) {
	e, ok := c.lookup(id)
	if !ok {
		return Request{}, ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.req.State {
	case StatePending, StateAcknowledged:
	default:
		if e.req.State.Terminal() {
			return e.req, terminalError(e.req.State)
		}
		return e.req, ErrInvalidTransition
	}
	mutate(&e.req.Payload)
	return e.req, nil
}

// MarkFinalized stamps finalized_at without removing the entry; purge picks
// it up after the grace period. Idempotent for already-stamped entries.
func (c *Cache) MarkFinalized(id ClientRequestID) error {
	e, ok := c.lookup(id)
	if !ok {
		return ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.req.State.Terminal() {
		return ErrInvalidTransition
	}
	if !e.req.FinalizedAt.IsZero() {
		return nil
	}
	e.req.FinalizedAt = time.Now()
	c.enqueueExpiry(id, e.req.FinalizedAt)
	return nil
}

func (c *Cache) enqueueExpiry(id ClientRequestID, at time.Time) {
	c.expMu.Lock()
	c.expiry = append(c.expiry, expiryRecord{id: id, finalizedAt: at})
	c.expMu.Unlock()
}

// PurgeSweep removes entries whose finalization is older than the grace
// period, in FIFO order of finalization. Removal is the last step, so a
// concurrent Get either sees the finalized snapshot or NotFound, never a
// half-removed entry. Returns the number of entries removed.
func (c *Cache) PurgeSweep() int {
	cutoff := time.Now().Add(-c.cfg.GracePeriod)

	c.expMu.Lock()
	var expired []expiryRecord
	for len(c.expiry) > 0 && !c.expiry[0].finalizedAt.After(cutoff) {
		expired = append(expired, c.expiry[0])
		c.expiry = c.expiry[1:]
	}
	c.expMu.Unlock()

	removed := 0
	for _, rec := range expired {
		s := c.shardFor(rec.id)
		s.mu.Lock()
		if e, ok := s.items[rec.id]; ok {
			e.mu.Lock()
			stillExpired := e.req.State.Terminal() && !e.req.FinalizedAt.IsZero() && !e.req.FinalizedAt.After(cutoff)
			e.mu.Unlock()
			if stillExpired {
				delete(s.items, rec.id)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// Start runs the background purge loop until the context is canceled.
func (c *Cache) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(c.cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := c.PurgeSweep(); n > 0 {
					log.Printf("pending: purged %d finalized requests", n)
				}
			}
		}
	}()
}

// Snapshot returns copies of every entry currently matching the filter.
// A nil filter matches everything.
func (c *Cache) Snapshot(filter func(Request) bool) []Request {
	var out []Request
	for _, s := range c.shards {
		s.mu.RLock()
		entries := make([]*entry, 0, len(s.items))
		for _, e := range s.items {
			entries = append(entries, e)
		}
		s.mu.RUnlock()
		for _, e := range entries {
			e.mu.Lock()
			req := e.req
			e.mu.Unlock()
			if filter == nil || filter(req) {
				out = append(out, req)
			}
		}
	}
	return out
}

// Len returns total entries across all shards.
func (c *Cache) Len() int {
	total := 0
	for _, s := range c.shards {
		s.mu.RLock()
		total += len(s.items)
		s.mu.RUnlock()
	}
	return total
}

func terminalError(s State) error {
	if s == StateCancelled {
		return ErrAlreadyCancelled
	}
	return ErrAlreadyFinalized
}
