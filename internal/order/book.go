package order

import (
	"sync"

	"github.com/Chenxiao-Tian/dex-proxy-habor-sub001/pkg/fixedpoint"
)

// Book is the gateway-side view of resting orders, updated from venue
// events. Callers receive value snapshots only.
type Book struct {
	mu     sync.Mutex
	orders map[ClientOrderID]*Order
}

// NewBook creates an empty book.
func NewBook() *Book {
	return &Book{orders: make(map[ClientOrderID]*Order)}
}

// Insert registers a new order in PENDING_INSERT.
func (b *Book) Insert(o Order) (Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.orders[o.ClientOrderID]; ok {
		return Order{}, ErrDuplicateOrder
	}
	o.Status = StatusPendingInsert
	o.Remaining = o.Quantity
	o.Executed = 0
	stored := o
	b.orders[o.ClientOrderID] = &stored
	return o, nil
}

// Get returns the current snapshot.
func (b *Book) Get(id ClientOrderID) (Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.orders[id]
	if !ok {
		return Order{}, ErrUnknownOrder
	}
	return *o, nil
}

// ApplyAck records the venue acknowledgment and opens the order.
func (b *Book) ApplyAck(id ClientOrderID, exchangeID ExchangeOrderID) (Order, error) {
	return b.transition(id, StatusOpen, func(o *Order) {
		if o.ExchangeOrderID == "" {
			o.ExchangeOrderID = exchangeID
		}
	})
}

// RequestCancel marks the order cancel-pending. Cancellation is advisory
// until the venue confirms: a fill completing first resolves to FINALISED.
func (b *Book) RequestCancel(id ClientOrderID) (Order, error) {
	return b.transition(id, StatusPendingCancel, nil)
}

// ConfirmCancel resolves a pending cancel.
func (b *Book) ConfirmCancel(id ClientOrderID) (Order, error) {
	return b.transition(id, StatusCancelled, nil)
}

// ApplyFill decrements remaining by the filled quantity. A fill that
// exhausts the order finalises it.
func (b *Book) ApplyFill(id ClientOrderID, filled fixedpoint.Quantity) (Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	o, ok := b.orders[id]
	if !ok {
		return Order{}, ErrUnknownOrder
	}
	if o.Status.Terminal() {
		return *o, ErrInvalidTransition
	}
	remaining, ok2 := o.Remaining.Sub(filled)
	if !ok2 || filled <= 0 {
		return *o, ErrInvalidFill
	}
	o.Remaining = remaining
	o.Executed += filled
	if o.Remaining == 0 {
		o.Status = StatusFinalised
	} else if o.Status == StatusPendingInsert {
		// A fill implies the venue accepted the order.
		o.Status = StatusOpen
	}
	return *o, nil
}

func (b *Book) transition(id ClientOrderID, to Status, mutate func(*Order)) (Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	o, ok := b.orders[id]
	if !ok {
		return Order{}, ErrUnknownOrder
	}
	if !o.Status.canTransition(to) {
		return *o, ErrInvalidTransition
	}
	if mutate != nil {
		mutate(o)
	}
	o.Status = to
	return *o, nil
}

// Open returns snapshots of every non-terminal order.
func (b *Book) Open() []Order {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []Order
	for _, o := range b.orders {
		if !o.Status.Terminal() {
			out = append(out, *o)
		}
	}
	return out
}

// Remove drops a terminal order from the book.
func (b *Book) Remove(id ClientOrderID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if o, ok := b.orders[id]; ok && o.Status.Terminal() {
		delete(b.orders, id)
	}
}
