// Package mock is a stand-in venue used for development and tests: it acks
// everything after a configurable latency and honours a token-bucket rate
// limit the way a real REST venue would.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/Chenxiao-Tian/dex-proxy-habor-sub001/internal/pending"
	"github.com/Chenxiao-Tian/dex-proxy-habor-sub001/internal/venue"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Config controls the simulated venue behavior.
type Config struct {
	Latency      time.Duration
	RequestsPerS float64 // outbound rate limit; 0 disables
	Burst        int
	RejectAll    bool // decline every submit with a terminal rejection
}

// Adapter implements venue.Adapter against no real backend.
type Adapter struct {
	cfg     Config
	limiter *rate.Limiter

	mu    sync.Mutex
	known map[pending.VenueRequestID]pending.ClientRequestID
}

// New returns a mock adapter.
func New(cfg Config) *Adapter {
	a := &Adapter{
		cfg:   cfg,
		known: make(map[pending.VenueRequestID]pending.ClientRequestID),
	}
	if cfg.RequestsPerS > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		a.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerS), burst)
	}
	return a
}

func (a *Adapter) simulate(ctx context.Context) error {
	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			return venue.ErrTimeout
		}
	}
	if a.cfg.Latency > 0 {
		select {
		case <-ctx.Done():
			return venue.ErrTimeout
		case <-time.After(a.cfg.Latency):
		}
	}
	return nil
}

func (a *Adapter) SubmitOperation(ctx context.Context, op venue.Operation) (venue.Ack, error) {
	if err := a.simulate(ctx); err != nil {
		return venue.Ack{}, err
	}
	if a.cfg.RejectAll {
		return venue.Ack{}, venue.Reject("mock venue configured to reject %s", op.Kind)
	}

	vid := pending.VenueRequestID("mock-" + uuid.NewString()[:8])
	a.mu.Lock()
	a.known[vid] = op.ClientRequestID
	a.mu.Unlock()

	return venue.Ack{VenueRequestID: vid, Status: venue.StatusAccepted}, nil
}

func (a *Adapter) Amend(ctx context.Context, id pending.VenueRequestID, _ pending.Payload) (venue.Ack, error) {
	if err := a.simulate(ctx); err != nil {
		return venue.Ack{}, err
	}
	a.mu.Lock()
	_, ok := a.known[id]
	a.mu.Unlock()
	if !ok {
		return venue.Ack{}, venue.Reject("unknown venue request %s", id)
	}
	return venue.Ack{VenueRequestID: id, Status: venue.StatusAccepted}, nil
}

func (a *Adapter) Cancel(ctx context.Context, id pending.VenueRequestID) (venue.Ack, error) {
	if err := a.simulate(ctx); err != nil {
		return venue.Ack{}, err
	}
	a.mu.Lock()
	_, ok := a.known[id]
	delete(a.known, id)
	a.mu.Unlock()
	if !ok {
		return venue.Ack{}, venue.Reject("unknown venue request %s", id)
	}
	return venue.Ack{VenueRequestID: id, Status: venue.StatusCancelled}, nil
}
