// Package venue defines the capability interface every trading venue
// implements and the registry the coordinator resolves adapters from. One
// gateway, many backend protocols: the adapter for a venue is selected once
// at configuration time, never by runtime type inspection.
package venue

import (
	"context"
	"errors"
	"fmt"

	"github.com/Chenxiao-Tian/dex-proxy-habor-sub001/internal/pending"
)

// Status is the venue's view of an operation after an adapter call.
type Status string

const (
	StatusAccepted  Status = "ACCEPTED"
	StatusFinalized Status = "FINALIZED"
	StatusCancelled Status = "CANCELLED"
)

// Operation is the normalized request handed to an adapter.
type Operation struct {
	Kind            pending.Kind
	ClientRequestID pending.ClientRequestID
	Payload         pending.Payload
	SignerAddress   string // set when the operation holds a pool account
}

// Ack is a successful adapter response.
type Ack struct {
	VenueRequestID pending.VenueRequestID
	Status         Status
}

// Adapter is implemented once per venue (CEX REST/WS, chain contract).
type Adapter interface {
	SubmitOperation(ctx context.Context, op Operation) (Ack, error)
	Amend(ctx context.Context, id pending.VenueRequestID, payload pending.Payload) (Ack, error)
	Cancel(ctx context.Context, id pending.VenueRequestID) (Ack, error)
}

// ErrTimeout marks an adapter call that did not complete in time. The
// operation may still land on the venue, so the request stays pre-terminal.
var ErrTimeout = errors.New("venue adapter timeout")

// RejectionError is a terminal venue-side decline.
type RejectionError struct {
	Reason string
}

func (e *RejectionError) Error() string {
	return "venue rejected operation: " + e.Reason
}

// Reject builds a terminal rejection.
func Reject(format string, args ...any) error {
	return &RejectionError{Reason: fmt.Sprintf(format, args...)}
}

// Retryable reports whether the caller may retry the failed call. Timeouts
// and transport failures are retryable; an explicit venue rejection is not.
func Retryable(err error) bool {
	var rej *RejectionError
	if errors.As(err, &rej) {
		return false
	}
	return true
}

var ErrUnknownVenue = errors.New("no adapter registered for venue")

// Registry holds adapters keyed by venue identifier.
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register stores an adapter implementation for a venue.
func (r *Registry) Register(name string, a Adapter) {
	r.adapters[name] = a
}

// Adapter resolves the adapter for a venue name.
func (r *Registry) Adapter(name string) (Adapter, error) {
	if a, ok := r.adapters[name]; ok {
		return a, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownVenue, name)
}

// Venues lists the registered venue names.
func (r *Registry) Venues() []string {
	out := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		out = append(out, name)
	}
	return out
}
