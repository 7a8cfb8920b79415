package fixedpoint

import (
	"errors"
	"testing"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		in      string
		want    Price
		wantErr error
	}{
		{in: "0", want: 0},
		{in: "1", want: 100_000_000},
		{in: "0.00000001", want: 1},
		{in: "1234.5678", want: 123_456_780_000},
		{in: "-0.5", want: -50_000_000},
		{in: "0.000000001", wantErr: ErrPrecisionLoss},
		{in: "999999999999999999999", wantErr: ErrOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePrice(tt.in)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParsePrice(%q) err=%v, expected %v", tt.in, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePrice(%q) returned error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Fatalf("ParsePrice(%q)=%d, expected %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseQuantityRejectsNegative(t *testing.T) {
	if _, err := ParseQuantity("-1"); !errors.Is(err, ErrNegative) {
		t.Fatalf("expected ErrNegative, got %v", err)
	}
}

func TestRoundTripString(t *testing.T) {
	for _, s := range []string{"0.1", "42", "0.00000001", "123456.789"} {
		q, err := ParseQuantity(s)
		if err != nil {
			t.Fatalf("ParseQuantity(%q): %v", s, err)
		}
		if q.String() != s {
			t.Fatalf("round trip %q -> %q", s, q.String())
		}
	}
}

func TestQuantitySub(t *testing.T) {
	q, _ := ParseQuantity("5")
	o, _ := ParseQuantity("2")

	r, ok := q.Sub(o)
	if !ok || r.String() != "3" {
		t.Fatalf("5-2=%s ok=%v", r, ok)
	}

	if _, ok := o.Sub(q); ok {
		t.Fatal("2-5 should report underflow")
	}
}

func TestNotional(t *testing.T) {
	p, _ := ParsePrice("2500.5")
	q, _ := ParseQuantity("0.4")
	if got := Notional(p, q).String(); got != "1000.2" {
		t.Fatalf("notional=%s, expected 1000.2", got)
	}
}
