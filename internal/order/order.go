// Package order tracks resting orders for venue adapters that keep book
// state. All monetary math is exact scaled-integer; quantity bookkeeping
// must satisfy executed + remaining == total at every observable point.
package order

import (
	"errors"
	"time"

	"github.com/Chenxiao-Tian/dex-proxy-habor-sub001/pkg/fixedpoint"
)

// ClientOrderID is assigned by the client before submission.
type ClientOrderID string

// ExchangeOrderID is assigned by the venue on acknowledgment.
type ExchangeOrderID string

// Side denotes order side.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Type denotes basic order types.
type Type string

const (
	TypeLimit  Type = "LIMIT"
	TypeMarket Type = "MARKET"
)

// Status is the resting-order lifecycle position.
type Status string

const (
	StatusUnknown       Status = "UNKNOWN"
	StatusPendingInsert Status = "PENDING_INSERT"
	StatusOpen          Status = "OPEN"
	StatusPendingCancel Status = "PENDING_CANCEL"
	StatusCancelled     Status = "CANCELLED"
	StatusFinalised     Status = "FINALISED"
)

// Terminal reports whether the status is absorbing.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusFinalised
}

var statusNext = map[Status][]Status{
	StatusUnknown:       {StatusPendingInsert},
	StatusPendingInsert: {StatusOpen, StatusCancelled, StatusFinalised},
	StatusOpen:          {StatusPendingCancel, StatusFinalised},
	StatusPendingCancel: {StatusCancelled, StatusFinalised},
}

func (s Status) canTransition(to Status) bool {
	for _, next := range statusNext[s] {
		if next == to {
			return true
		}
	}
	return false
}

var (
	ErrDuplicateOrder    = errors.New("order already exists")
	ErrUnknownOrder      = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid order status transition")
	ErrInvalidFill       = errors.New("fill exceeds remaining quantity")
)

// Order is one resting order snapshot.
type Order struct {
	ClientOrderID   ClientOrderID       `json:"client_order_id"`
	ExchangeOrderID ExchangeOrderID     `json:"exchange_order_id,omitempty"` // empty until acknowledged
	MarketID        string              `json:"market_id"`
	Side            Side                `json:"side"`
	Type            Type                `json:"type"`
	Price           fixedpoint.Price    `json:"price"`
	Quantity        fixedpoint.Quantity `json:"quantity"`
	Remaining       fixedpoint.Quantity `json:"remaining"`
	Executed        fixedpoint.Quantity `json:"executed"`
	ExpirationTime  time.Time           `json:"expiration_time,omitempty"`
	Status          Status              `json:"status"`
}

// consistent checks the quantity invariant.
func (o *Order) consistent() bool {
	return o.Executed+o.Remaining == o.Quantity
}
