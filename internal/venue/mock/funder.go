package mock

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
)

// Funder simulates the gas treasury: balances live in memory and transfers
// always succeed. Drain models gas spend between top-up sweeps.
type Funder struct {
	mu       sync.Mutex
	balances map[string]decimal.Decimal
}

// NewFunder seeds every address with the same starting balance.
func NewFunder(initial decimal.Decimal, addresses ...string) *Funder {
	f := &Funder{balances: make(map[string]decimal.Decimal)}
	for _, addr := range addresses {
		f.balances[addr] = initial
	}
	return f
}

func (f *Funder) BalanceOf(_ context.Context, address string) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances[address], nil
}

func (f *Funder) Topup(_ context.Context, address string, amount decimal.Decimal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[address] = f.balances[address].Add(amount)
	return nil
}

// Drain reduces an address balance, flooring at zero.
func (f *Funder) Drain(address string, amount decimal.Decimal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b := f.balances[address].Sub(amount)
	if b.IsNegative() {
		b = decimal.Zero
	}
	f.balances[address] = b
}
