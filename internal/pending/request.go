// Package pending is the in-flight request cache: one entry per client
// idempotency key, a per-entry state machine, and a grace-window purge so
// late duplicate lookups and amend/cancel races still resolve after a
// request finalizes.
package pending

import (
	"errors"
	"time"

	"github.com/Chenxiao-Tian/dex-proxy-habor-sub001/pkg/fixedpoint"
	"github.com/shopspring/decimal"
)

// ClientRequestID is the client-supplied idempotency key.
type ClientRequestID string

// VenueRequestID is the venue-assigned correlation id, set once on ack.
type VenueRequestID string

// Kind enumerates the operations a client may submit.
type Kind string

const (
	KindApprove     Kind = "APPROVE"
	KindTransfer    Kind = "TRANSFER"
	KindOrderInsert Kind = "ORDER_INSERT"
	KindOrderCancel Kind = "ORDER_CANCEL"
	KindOrderAmend  Kind = "ORDER_AMEND"
)

// RequiresSigner reports whether the operation consumes a signer account
// (on-chain kinds do, pure venue-side order ops do not).
func (k Kind) RequiresSigner() bool {
	switch k {
	case KindApprove, KindTransfer:
		return true
	}
	return false
}

// State is the lifecycle position of a pending request.
type State string

const (
	StatePending       State = "PENDING"
	StateAcknowledged  State = "ACKNOWLEDGED"
	StateCancelPending State = "CANCEL_PENDING"
	StateRejected      State = "REJECTED"
	StateCancelled     State = "CANCELLED"
	StateFinalized     State = "FINALIZED"
)

// Terminal reports whether the state is absorbing.
func (s State) Terminal() bool {
	switch s {
	case StateRejected, StateCancelled, StateFinalized:
		return true
	}
	return false
}

var transitions = map[State][]State{
	StatePending:       {StateAcknowledged, StateRejected},
	StateAcknowledged:  {StateFinalized, StateCancelPending},
	StateCancelPending: {StateCancelled, StateFinalized},
}

func (s State) canTransition(to State) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

var (
	ErrDuplicateKey      = errors.New("client request id already active")
	ErrNotFound          = errors.New("request not found")
	ErrInvalidTransition = errors.New("invalid request state transition")
	ErrAlreadyFinalized  = errors.New("request already finalized")
	ErrAlreadyCancelled  = errors.New("request already cancelled")
)

// Payload carries the kind-specific fields of a request. Mutable only while
// the request is pre-terminal (an amend bumps gas price, for example).
type Payload struct {
	Venue    string              `json:"venue"`
	Market   string              `json:"market,omitempty"`
	Side     string              `json:"side,omitempty"`
	Price    fixedpoint.Price    `json:"price,omitempty"`
	Quantity fixedpoint.Quantity `json:"quantity,omitempty"`
	Address  string              `json:"address,omitempty"`
	Amount   decimal.Decimal     `json:"amount,omitempty"`
	GasPrice decimal.Decimal     `json:"gas_price,omitempty"`
}

// Request is the snapshot callers observe. The cache owns the live entry;
// no caller ever receives a mutable reference into cache internals.
type Request struct {
	ClientRequestID ClientRequestID `json:"client_request_id"`
	VenueRequestID  VenueRequestID  `json:"venue_request_id,omitempty"`
	Kind            Kind            `json:"kind"`
	State           State           `json:"state"`
	Reason          string          `json:"reason,omitempty"`
	Payload         Payload         `json:"payload"`
	CreatedAt       time.Time       `json:"created_at"`
	FinalizedAt     time.Time       `json:"finalized_at,omitempty"`
}
