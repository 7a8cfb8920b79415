// Package coordinator drives pending requests through their lifecycle. It
// is the only component that touches both the request cache and the signer
// pool: acquire account, call the venue adapter, persist the outcome, emit
// the event, release the account.
package coordinator

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/Chenxiao-Tian/dex-proxy-habor-sub001/internal/events"
	"github.com/Chenxiao-Tian/dex-proxy-habor-sub001/internal/monitor"
	"github.com/Chenxiao-Tian/dex-proxy-habor-sub001/internal/order"
	"github.com/Chenxiao-Tian/dex-proxy-habor-sub001/internal/pending"
	"github.com/Chenxiao-Tian/dex-proxy-habor-sub001/internal/signer"
	"github.com/Chenxiao-Tian/dex-proxy-habor-sub001/internal/venue"
)

// ReasonNoResource is recorded on requests rejected for pool exhaustion.
const ReasonNoResource = "NoResourceAvailable"

// Config controls coordinator behavior.
type Config struct {
	AdapterTimeout time.Duration // per adapter call; bounds every venue I/O
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{AdapterTimeout: 5 * time.Second}
}

// Coordinator orchestrates submit/amend/cancel across cache, pool, venue
// adapters, and the event hub.
type Coordinator struct {
	cache   *pending.Cache
	pool    *signer.Pool
	hub     *events.Hub
	venues  *venue.Registry
	metrics *monitor.Metrics
	book    *order.Book // resting-order mirror for ORDER_INSERT requests
	cfg     Config
}

// New wires a coordinator. Metrics may be nil.
func New(cache *pending.Cache, pool *signer.Pool, hub *events.Hub, venues *venue.Registry, metrics *monitor.Metrics, cfg Config) *Coordinator {
	if cfg.AdapterTimeout <= 0 {
		cfg.AdapterTimeout = DefaultConfig().AdapterTimeout
	}
	return &Coordinator{cache: cache, pool: pool, hub: hub, venues: venues, metrics: metrics, book: order.NewBook(), cfg: cfg}
}

// Orders exposes the resting-order book.
func (c *Coordinator) Orders() *order.Book {
	return c.book
}

func channelFor(kind pending.Kind) events.Channel {
	switch kind {
	case pending.KindApprove, pending.KindTransfer:
		return events.ChannelTransfer
	}
	return events.ChannelOrder
}

func (c *Coordinator) publish(req pending.Request, typ events.Type) {
	c.hub.Publish(channelFor(req.Kind), events.Event{
		Type:            typ,
		ClientRequestID: string(req.ClientRequestID),
		VenueRequestID:  string(req.VenueRequestID),
		Payload:         req,
	})
}

// Submit inserts the request, acquires a signer when the kind needs one,
// invokes the venue adapter under a bounded timeout, and records the
// outcome. The signer account is released on every path, including timeout:
// account ownership is a local concern independent of whether the remote
// operation ultimately lands.
func (c *Coordinator) Submit(ctx context.Context, id pending.ClientRequestID, kind pending.Kind, payload pending.Payload) (pending.Request, error) {
	req, err := c.cache.Put(id, kind, payload)
	if err != nil {
		return pending.Request{}, err
	}
	if c.metrics != nil {
		c.metrics.IncSubmitted()
	}
	if kind == pending.KindOrderInsert {
		c.trackOrder(id, payload)
	}
	c.publish(req, events.TypeRequestPending)

	adapter, err := c.venues.Adapter(payload.Venue)
	if err != nil {
		req = c.reject(id, err.Error())
		return req, err
	}

	op := venue.Operation{Kind: kind, ClientRequestID: id, Payload: payload}
	if kind.RequiresSigner() {
		lease, err := c.pool.Allocate()
		if err != nil {
			if c.metrics != nil {
				c.metrics.IncExhausted()
			}
			req = c.reject(id, ReasonNoResource)
			return req, err
		}
		defer c.pool.Release(lease)
		op.SignerAddress = lease.Address
	}

	ack, err := c.callSubmit(ctx, adapter, op)
	if err != nil {
		if venue.Retryable(err) {
			// The operation may still land on the venue; leave the request
			// pre-terminal and let polling or the event push resolve it.
			log.Printf("coordinator: submit %s left pending after adapter error: %v", id, err)
			return req, err
		}
		req = c.reject(id, err.Error())
		return req, err
	}

	req, err = c.cache.Transition(id, pending.StateAcknowledged, pending.WithVenueRequestID(ack.VenueRequestID))
	if err != nil {
		return req, err
	}
	if kind == pending.KindOrderInsert {
		_, _ = c.book.ApplyAck(order.ClientOrderID(id), order.ExchangeOrderID(ack.VenueRequestID))
	}
	c.publish(req, events.TypeRequestAcknowledged)

	if ack.Status == venue.StatusFinalized {
		return c.Finalize(id)
	}
	return req, nil
}

func (c *Coordinator) callSubmit(ctx context.Context, adapter venue.Adapter, op venue.Operation) (venue.Ack, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.AdapterTimeout)
	defer cancel()
	start := time.Now()
	ack, err := adapter.SubmitOperation(ctx, op)
	c.observe(start)
	return ack, wrapDeadline(err)
}

// Amend updates the payload of a live request. While the venue has not yet
// acknowledged, the amend is local; once acknowledged it goes through the
// adapter first.
func (c *Coordinator) Amend(ctx context.Context, id pending.ClientRequestID, payload pending.Payload) (pending.Request, error) {
	req, err := c.cache.Get(id)
	if err != nil {
		return pending.Request{}, err
	}

	switch req.State {
	case pending.StatePending:
		return c.cache.Amend(id, func(p *pending.Payload) { *p = payload })
	case pending.StateAcknowledged:
	default:
		// Re-run the cache's own validation so the caller gets the precise
		// AlreadyFinalized / AlreadyCancelled / InvalidTransition verdict.
		return c.cache.Amend(id, func(*pending.Payload) {})
	}

	adapter, err := c.venues.Adapter(req.Payload.Venue)
	if err != nil {
		return req, err
	}
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.AdapterTimeout)
	defer cancel()
	start := time.Now()
	_, err = adapter.Amend(callCtx, req.VenueRequestID, payload)
	c.observe(start)
	if err = wrapDeadline(err); err != nil {
		return req, err
	}
	return c.cache.Amend(id, func(p *pending.Payload) { *p = payload })
}

// Cancel requests venue-side cancellation. Finalization racing ahead of the
// cancel is an expected outcome reported as ErrAlreadyFinalized, not a
// hard failure.
func (c *Coordinator) Cancel(ctx context.Context, id pending.ClientRequestID) (pending.Request, error) {
	req, err := c.cache.Transition(id, pending.StateCancelPending)
	if err != nil {
		return req, err
	}
	if req.Kind == pending.KindOrderInsert {
		_, _ = c.book.RequestCancel(order.ClientOrderID(id))
	}
	c.publish(req, events.TypeRequestCancelPending)

	adapter, err := c.venues.Adapter(req.Payload.Venue)
	if err != nil {
		return req, err
	}
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.AdapterTimeout)
	defer cancel()
	start := time.Now()
	_, err = adapter.Cancel(callCtx, req.VenueRequestID)
	c.observe(start)
	if err = wrapDeadline(err); err != nil {
		if venue.Retryable(err) {
			// Cancel may still land; stay in CANCEL_PENDING.
			return req, err
		}
		// The venue declined the cancel: the order finalized first.
		req, ferr := c.Finalize(id)
		if ferr != nil {
			return req, ferr
		}
		return req, pending.ErrAlreadyFinalized
	}

	req, err = c.cache.Transition(id, pending.StateCancelled)
	if err != nil {
		// Lost the race against a concurrent finalization.
		return req, err
	}
	if req.Kind == pending.KindOrderInsert {
		_, _ = c.book.ConfirmCancel(order.ClientOrderID(id))
	}
	if c.metrics != nil {
		c.metrics.IncCancelled()
	}
	c.publish(req, events.TypeRequestCancelled)
	return req, nil
}

// Finalize applies a venue-reported finalization. Invoked by adapters'
// event streams and by Submit when the venue fills synchronously.
// Acknowledge records a venue ack that arrived out of band, typically after
// a submit call timed out and left the request PENDING. The venue id may be
// empty when the settlement notification does not carry one.
func (c *Coordinator) Acknowledge(id pending.ClientRequestID, vid pending.VenueRequestID) (pending.Request, error) {
	req, err := c.cache.Transition(id, pending.StateAcknowledged, pending.WithVenueRequestID(vid))
	if err != nil {
		return req, err
	}
	if req.Kind == pending.KindOrderInsert {
		_, _ = c.book.ApplyAck(order.ClientOrderID(id), order.ExchangeOrderID(req.VenueRequestID))
	}
	c.publish(req, events.TypeRequestAcknowledged)
	return req, nil
}

func (c *Coordinator) Finalize(id pending.ClientRequestID) (pending.Request, error) {
	req, err := c.cache.Transition(id, pending.StateFinalized)
	if errors.Is(err, pending.ErrInvalidTransition) && req.State == pending.StatePending {
		// Settlement can land after the submit call gave up waiting on the
		// adapter. The venue confirming the operation implies the ack the
		// caller never saw.
		if req, err = c.Acknowledge(id, req.VenueRequestID); err != nil {
			return req, err
		}
		req, err = c.cache.Transition(id, pending.StateFinalized)
	}
	if err != nil {
		return req, err
	}
	if c.metrics != nil {
		c.metrics.IncFinalized()
	}
	c.publish(req, events.TypeRequestFinalized)
	if req.Kind == pending.KindOrderInsert {
		if o, oerr := c.book.Get(order.ClientOrderID(id)); oerr == nil && !o.Status.Terminal() && o.Remaining > 0 {
			_, _ = c.book.ApplyFill(order.ClientOrderID(id), o.Remaining)
		}
		c.hub.Publish(events.ChannelTrade, events.Event{
			Type:            events.TypeRequestFinalized,
			ClientRequestID: string(req.ClientRequestID),
			VenueRequestID:  string(req.VenueRequestID),
			Payload:         req,
		})
	}
	return req, nil
}

// CancelAllResult is the partial-failure outcome of CancelAll.
type CancelAllResult struct {
	Accepted []pending.ClientRequestID `json:"accepted"`
	Failed   []pending.ClientRequestID `json:"failed"`
}

// CancelAll issues best-effort cancels for every live request matching the
// kind filter (empty filter matches all kinds). Failures are collected, not
// raised: the caller gets both lists.
func (c *Coordinator) CancelAll(ctx context.Context, kindFilter pending.Kind) CancelAllResult {
	live := c.cache.Snapshot(func(r pending.Request) bool {
		if r.State.Terminal() {
			return false
		}
		return kindFilter == "" || r.Kind == kindFilter
	})

	var res CancelAllResult
	for _, r := range live {
		switch r.State {
		case pending.StateAcknowledged:
			if _, err := c.Cancel(ctx, r.ClientRequestID); err != nil {
				res.Failed = append(res.Failed, r.ClientRequestID)
			} else {
				res.Accepted = append(res.Accepted, r.ClientRequestID)
			}
		case pending.StateCancelPending:
			// Already on its way out; count as accepted.
			res.Accepted = append(res.Accepted, r.ClientRequestID)
		default:
			// Not yet acknowledged: nothing to cancel venue-side.
			res.Failed = append(res.Failed, r.ClientRequestID)
		}
	}
	return res
}

// Get returns the current snapshot for an id.
func (c *Coordinator) Get(id pending.ClientRequestID) (pending.Request, error) {
	return c.cache.Get(id)
}

func (c *Coordinator) reject(id pending.ClientRequestID, reason string) pending.Request {
	req, err := c.cache.Transition(id, pending.StateRejected, pending.WithReason(reason))
	if err != nil {
		log.Printf("coordinator: reject %s: %v", id, err)
		return req
	}
	if c.metrics != nil {
		c.metrics.IncRejected()
	}
	if req.Kind == pending.KindOrderInsert {
		_, _ = c.book.ConfirmCancel(order.ClientOrderID(id))
	}
	c.publish(req, events.TypeRequestRejected)
	return req
}

// trackOrder mirrors an ORDER_INSERT request into the resting-order book.
func (c *Coordinator) trackOrder(id pending.ClientRequestID, payload pending.Payload) {
	typ := order.TypeMarket
	if payload.Price != 0 {
		typ = order.TypeLimit
	}
	// A reused id after purge replaces its terminal book entry.
	c.book.Remove(order.ClientOrderID(id))
	if _, err := c.book.Insert(order.Order{
		ClientOrderID: order.ClientOrderID(id),
		MarketID:      payload.Market,
		Side:          order.Side(payload.Side),
		Type:          typ,
		Price:         payload.Price,
		Quantity:      payload.Quantity,
	}); err != nil {
		log.Printf("coordinator: order book insert %s: %v", id, err)
	}
}

func (c *Coordinator) observe(start time.Time) {
	if c.metrics != nil {
		c.metrics.AdapterLatency.RecordDuration(time.Since(start))
	}
}

// wrapDeadline normalizes context deadline errors into the adapter timeout
// sentinel so callers can classify with venue.Retryable / errors.Is.
func wrapDeadline(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return venue.ErrTimeout
	}
	return err
}
