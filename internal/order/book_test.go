package order

import (
	"errors"
	"testing"

	"github.com/Chenxiao-Tian/dex-proxy-habor-sub001/pkg/fixedpoint"
)

func qty(t *testing.T, s string) fixedpoint.Quantity {
	t.Helper()
	q, err := fixedpoint.ParseQuantity(s)
	if err != nil {
		t.Fatalf("ParseQuantity(%q): %v", s, err)
	}
	return q
}

func insertOpen(t *testing.T, b *Book, id ClientOrderID, quantity string) Order {
	t.Helper()
	_, err := b.Insert(Order{ClientOrderID: id, MarketID: "ETH-USDC", Side: SideBuy, Quantity: qty(t, quantity)})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	o, err := b.ApplyAck(id, "X1")
	if err != nil {
		t.Fatalf("ack: %v", err)
	}
	return o
}

func TestInsertDuplicate(t *testing.T) {
	b := NewBook()
	o := Order{ClientOrderID: "c1", Quantity: qty(t, "1")}
	if _, err := b.Insert(o); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := b.Insert(o); !errors.Is(err, ErrDuplicateOrder) {
		t.Fatalf("err=%v, expected ErrDuplicateOrder", err)
	}
}

func TestQuantityInvariantAcrossFills(t *testing.T) {
	b := NewBook()
	insertOpen(t, b, "c1", "10")

	prev := qty(t, "10")
	for _, fill := range []string{"3", "2", "5"} {
		o, err := b.ApplyFill("c1", qty(t, fill))
		if err != nil {
			t.Fatalf("fill %s: %v", fill, err)
		}
		if o.Executed+o.Remaining != o.Quantity {
			t.Fatalf("invariant broken: exec=%s rem=%s total=%s", o.Executed, o.Remaining, o.Quantity)
		}
		if o.Remaining > prev {
			t.Fatalf("remaining increased: %s > %s", o.Remaining, prev)
		}
		prev = o.Remaining
	}

	o, _ := b.Get("c1")
	if o.Status != StatusFinalised || o.Remaining != 0 {
		t.Fatalf("after full fill: %+v", o)
	}
}

func TestOverfillRejected(t *testing.T) {
	b := NewBook()
	insertOpen(t, b, "c1", "1")
	if _, err := b.ApplyFill("c1", qty(t, "2")); !errors.Is(err, ErrInvalidFill) {
		t.Fatalf("err=%v, expected ErrInvalidFill", err)
	}
}

func TestCancelRacesFill(t *testing.T) {
	// A fill that completes before the cancel lands resolves to FINALISED,
	// not CANCELLED.
	b := NewBook()
	insertOpen(t, b, "c1", "1")
	if _, err := b.RequestCancel("c1"); err != nil {
		t.Fatalf("request cancel: %v", err)
	}
	o, err := b.ApplyFill("c1", qty(t, "1"))
	if err != nil {
		t.Fatalf("fill: %v", err)
	}
	if o.Status != StatusFinalised {
		t.Fatalf("status=%s, expected FINALISED", o.Status)
	}
	if _, err := b.ConfirmCancel("c1"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("late cancel err=%v, expected ErrInvalidTransition", err)
	}
}

func TestCancelConfirmed(t *testing.T) {
	b := NewBook()
	insertOpen(t, b, "c1", "1")
	_, _ = b.RequestCancel("c1")
	o, err := b.ConfirmCancel("c1")
	if err != nil || o.Status != StatusCancelled {
		t.Fatalf("confirm cancel: %+v err=%v", o, err)
	}
	// Terminal status never changes again.
	if _, err := b.ApplyFill("c1", qty(t, "1")); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("fill after cancel err=%v", err)
	}
}

func TestExchangeOrderIDSetOnce(t *testing.T) {
	b := NewBook()
	_, _ = b.Insert(Order{ClientOrderID: "c1", Quantity: qty(t, "1")})
	o, _ := b.ApplyAck("c1", "X1")
	if o.ExchangeOrderID != "X1" {
		t.Fatalf("exchange id=%s", o.ExchangeOrderID)
	}
}

func TestOpenAndRemove(t *testing.T) {
	b := NewBook()
	insertOpen(t, b, "c1", "1")
	insertOpen(t, b, "c2", "1")
	_, _ = b.ApplyFill("c2", qty(t, "1"))

	if n := len(b.Open()); n != 1 {
		t.Fatalf("open=%d, expected 1", n)
	}

	b.Remove("c1") // non-terminal, must stay
	if _, err := b.Get("c1"); err != nil {
		t.Fatal("open order removed")
	}
	b.Remove("c2")
	if _, err := b.Get("c2"); !errors.Is(err, ErrUnknownOrder) {
		t.Fatal("terminal order not removed")
	}
}
