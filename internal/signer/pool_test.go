package signer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

type fakeFunder struct {
	mu       sync.Mutex
	balances map[string]decimal.Decimal
	failFor  map[string]bool
	topups   map[string]int
}

func newFakeFunder() *fakeFunder {
	return &fakeFunder{
		balances: make(map[string]decimal.Decimal),
		failFor:  make(map[string]bool),
		topups:   make(map[string]int),
	}
}

func (f *fakeFunder) BalanceOf(_ context.Context, address string) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances[address], nil
}

func (f *fakeFunder) Topup(_ context.Context, address string, amount decimal.Decimal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[address] {
		return errors.New("funding source unavailable")
	}
	f.balances[address] = f.balances[address].Add(amount)
	f.topups[address]++
	return nil
}

func testPool(t *testing.T, n int, funder Funder) *Pool {
	t.Helper()
	configs := make([]AccountConfig, n)
	for i := range configs {
		configs[i] = AccountConfig{
			Address:    string(rune('a'+i)) + "-signer",
			Credential: "key-" + string(rune('a'+i)),
		}
	}
	p, err := NewPool(configs, nil, funder, Config{
		MinBalance:    decimal.NewFromInt(100),
		TargetBalance: decimal.NewFromInt(1000),
		TopupInterval: time.Hour,
	})
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	return p
}

func TestAllocateExclusive(t *testing.T) {
	p := testPool(t, 2, nil)

	a, err := p.Allocate()
	if err != nil {
		t.Fatalf("first allocate: %v", err)
	}
	b, err := p.Allocate()
	if err != nil {
		t.Fatalf("second allocate: %v", err)
	}
	if a.Address == b.Address {
		t.Fatalf("both allocations returned %s", a.Address)
	}
	if _, err := p.Allocate(); !errors.Is(err, ErrPoolExhausted) {
		t.Fatalf("third allocate err=%v, expected ErrPoolExhausted", err)
	}

	p.Release(a)
	c, err := p.Allocate()
	if err != nil {
		t.Fatalf("allocate after release: %v", err)
	}
	if c.Address != a.Address {
		t.Fatalf("expected released account %s back, got %s", a.Address, c.Address)
	}
}

func TestConcurrentAllocateNeverDoubleIssues(t *testing.T) {
	const n = 8
	p := testPool(t, n, nil)

	var wg sync.WaitGroup
	results := make(chan Lease, n*2)
	failures := make(chan error, n*2)
	for i := 0; i < n*2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lease, err := p.Allocate()
			if err != nil {
				failures <- err
				return
			}
			results <- lease
		}()
	}
	wg.Wait()
	close(results)
	close(failures)

	seen := make(map[string]bool)
	for lease := range results {
		if seen[lease.Address] {
			t.Fatalf("account %s issued twice", lease.Address)
		}
		seen[lease.Address] = true
	}
	if len(seen) != n {
		t.Fatalf("successes=%d, expected %d", len(seen), n)
	}
	for err := range failures {
		if !errors.Is(err, ErrPoolExhausted) {
			t.Fatalf("unexpected failure: %v", err)
		}
	}
}

func TestAllocateSkipsLowBalance(t *testing.T) {
	p := testPool(t, 2, nil)
	addrs := p.Addresses()
	if err := p.SetBalance(addrs[0], decimal.NewFromInt(1)); err != nil {
		t.Fatalf("SetBalance: %v", err)
	}

	lease, err := p.Allocate()
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if lease.Address != addrs[1] {
		t.Fatalf("allocated low-balance account %s", lease.Address)
	}
	if _, err := p.Allocate(); !errors.Is(err, ErrPoolExhausted) {
		t.Fatalf("err=%v, expected ErrPoolExhausted", err)
	}
}

func TestReleaseIdempotent(t *testing.T) {
	p := testPool(t, 1, nil)
	lease, _ := p.Allocate()
	p.Release(lease)
	p.Release(lease) // second release must be a harmless no-op

	if _, err := p.Allocate(); err != nil {
		t.Fatalf("allocate after double release: %v", err)
	}
}

func TestRoundRobinSpreadsUsage(t *testing.T) {
	p := testPool(t, 3, nil)
	var order []string
	for i := 0; i < 6; i++ {
		lease, err := p.Allocate()
		if err != nil {
			t.Fatalf("allocate %d: %v", i, err)
		}
		order = append(order, lease.Address)
		p.Release(lease)
	}
	for i := 3; i < 6; i++ {
		if order[i] != order[i-3] {
			t.Fatalf("rotation broke at %d: %v", i, order)
		}
	}
	if order[0] == order[1] || order[1] == order[2] {
		t.Fatalf("no rotation: %v", order)
	}
}

func TestReplenishTopsUpToTarget(t *testing.T) {
	funder := newFakeFunder()
	p := testPool(t, 2, funder)
	addrs := p.Addresses()
	funder.mu.Lock()
	funder.balances[addrs[0]] = decimal.NewFromInt(40)
	funder.balances[addrs[1]] = decimal.NewFromInt(1000)
	funder.mu.Unlock()

	p.replenish(context.Background())

	funder.mu.Lock()
	defer funder.mu.Unlock()
	if !funder.balances[addrs[0]].Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("balance after top-up=%s", funder.balances[addrs[0]])
	}
	if funder.topups[addrs[1]] != 0 {
		t.Fatal("full account was topped up")
	}
}

func TestReplenishFailureIsolatedPerAccount(t *testing.T) {
	funder := newFakeFunder()
	p := testPool(t, 2, funder)
	addrs := p.Addresses()
	funder.mu.Lock()
	funder.failFor[addrs[0]] = true
	funder.balances[addrs[0]] = decimal.NewFromInt(10)
	funder.balances[addrs[1]] = decimal.NewFromInt(10)
	funder.mu.Unlock()

	p.replenish(context.Background())

	funder.mu.Lock()
	defer funder.mu.Unlock()
	if funder.topups[addrs[1]] != 1 {
		t.Fatal("second account not replenished after first failed")
	}
}

func TestStats(t *testing.T) {
	p := testPool(t, 3, nil)
	lease, _ := p.Allocate()
	_ = p.SetBalance(p.Addresses()[2], decimal.NewFromInt(5))

	s := p.Stats()
	if s.Total != 3 || s.InUse != 1 || s.BelowMin != 1 {
		t.Fatalf("stats=%+v", s)
	}
	p.Release(lease)
	if got := p.Stats().InUse; got != 0 {
		t.Fatalf("in_use after release=%d", got)
	}
}
