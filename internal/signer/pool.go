// Package signer serializes access to a fixed set of blockchain accounts.
// Each on-chain operation holds exactly one account from allocate to
// release; a background loop keeps every account funded above its minimum
// operating balance.
package signer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Chenxiao-Tian/dex-proxy-habor-sub001/pkg/crypto"
	"github.com/shopspring/decimal"
)

var (
	ErrPoolExhausted  = errors.New("no signer account available")
	ErrUnknownAccount = errors.New("unknown signer account")
	ErrNoAccounts     = errors.New("signer pool requires at least one account")
)

// Funder observes and replenishes account balances. On-chain gas spend is
// not tracked locally; it shows up through BalanceOf polling.
type Funder interface {
	BalanceOf(ctx context.Context, address string) (decimal.Decimal, error)
	Topup(ctx context.Context, address string, amount decimal.Decimal) error
}

// AccountConfig is one configured signer identity. Credential may be an
// ENC[vN]: blob (decrypted at pool construction) or plaintext.
type AccountConfig struct {
	Address    string `yaml:"address"`
	Credential string `yaml:"credential"`
}

// Config sizes the pool.
type Config struct {
	MinBalance    decimal.Decimal // allocate refuses accounts below this
	TargetBalance decimal.Decimal // top-up refills to this level
	TopupInterval time.Duration
}

type account struct {
	address     string
	credential  string // exclusively owned by the pool, never handed out
	balance     decimal.Decimal
	inUse       bool
	lastTopupAt time.Time
}

// Lease is the caller's handle on an allocated account. It exposes only the
// public identity; the credential stays inside the pool.
type Lease struct {
	Address string
}

// Pool is the signer/gas manager. The account set is small and fixed, so a
// single coarse lock covers all bookkeeping.
type Pool struct {
	mu       sync.Mutex
	accounts []*account
	cursor   int // round-robin start position for the next allocate

	cfg    Config
	funder Funder
}

// NewPool builds the pool from the configured account list, decrypting
// sealed credentials with the sealer (may be nil when all credentials are
// plaintext).
func NewPool(configs []AccountConfig, sealer *crypto.Sealer, funder Funder, cfg Config) (*Pool, error) {
	if len(configs) == 0 {
		return nil, ErrNoAccounts
	}
	if cfg.TopupInterval <= 0 {
		cfg.TopupInterval = 30 * time.Second
	}

	accounts := make([]*account, 0, len(configs))
	for _, ac := range configs {
		cred := ac.Credential
		if crypto.IsSealed(cred) {
			if sealer == nil {
				return nil, fmt.Errorf("account %s: %w", ac.Address, crypto.ErrKeyNotConfigured)
			}
			opened, err := sealer.Open(cred)
			if err != nil {
				return nil, fmt.Errorf("account %s: %w", ac.Address, err)
			}
			cred = opened
		}
		accounts = append(accounts, &account{
			address:    ac.Address,
			credential: cred,
			balance:    cfg.TargetBalance,
		})
	}
	return &Pool{accounts: accounts, cfg: cfg, funder: funder}, nil
}

// Allocate returns a free account with balance at or above the minimum.
// Selection is round-robin so usage spreads evenly across accounts. Fails
// with ErrPoolExhausted when none qualifies; the caller decides whether to
// retry or queue.
func (p *Pool) Allocate() (Lease, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.accounts)
	for i := 0; i < n; i++ {
		a := p.accounts[(p.cursor+i)%n]
		if a.inUse || a.balance.LessThan(p.cfg.MinBalance) {
			continue
		}
		a.inUse = true
		p.cursor = (p.cursor + i + 1) % n
		return Lease{Address: a.address}, nil
	}
	return Lease{}, ErrPoolExhausted
}

// Release returns the account to the pool. Idempotent: releasing an
// already-free account is a no-op, which covers recovery paths where
// ownership bookkeeping is uncertain.
func (p *Pool) Release(lease Lease) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, a := range p.accounts {
		if a.address == lease.Address {
			a.inUse = false
			return
		}
	}
}

// Start runs the replenishment loop until the context is canceled. One
// account's failure never blocks the others and never stops the loop.
func (p *Pool) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(p.cfg.TopupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.replenish(ctx)
			}
		}
	}()
}

func (p *Pool) replenish(ctx context.Context) {
	if p.funder == nil {
		return
	}
	for _, addr := range p.Addresses() {
		if err := p.replenishOne(ctx, addr); err != nil {
			log.Printf("signer: top-up %s failed (retrying next interval): %v", addr, err)
		}
	}
}

// replenishOne polls the observed balance and tops the account up to the
// target level. Balance reads and the transfer run without the pool lock;
// only the bookkeeping update reacquires it.
func (p *Pool) replenishOne(ctx context.Context, address string) error {
	observed, err := p.funder.BalanceOf(ctx, address)
	if err != nil {
		return fmt.Errorf("balance poll: %w", err)
	}

	p.mu.Lock()
	a := p.find(address)
	if a == nil {
		p.mu.Unlock()
		return ErrUnknownAccount
	}
	a.balance = observed
	deficit := p.cfg.TargetBalance.Sub(observed)
	p.mu.Unlock()

	if deficit.LessThanOrEqual(decimal.Zero) {
		return nil
	}
	if err := p.funder.Topup(ctx, address, deficit); err != nil {
		return fmt.Errorf("transfer: %w", err)
	}

	p.mu.Lock()
	if a := p.find(address); a != nil {
		a.balance = a.balance.Add(deficit)
		a.lastTopupAt = time.Now()
	}
	p.mu.Unlock()

	log.Printf("signer: topped up %s by %s", address, deficit)
	return nil
}

func (p *Pool) find(address string) *account {
	for _, a := range p.accounts {
		if a.address == address {
			return a
		}
	}
	return nil
}

// SetBalance overrides the tracked balance for an account. Used by tests
// and by adapters that learn balances out of band.
func (p *Pool) SetBalance(address string, balance decimal.Decimal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	a := p.find(address)
	if a == nil {
		return ErrUnknownAccount
	}
	a.balance = balance
	return nil
}

// Addresses lists the configured account identities.
func (p *Pool) Addresses() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.accounts))
	for i, a := range p.accounts {
		out[i] = a.address
	}
	return out
}

// Stats describes the current pool occupancy.
type Stats struct {
	Total    int `json:"total"`
	InUse    int `json:"in_use"`
	BelowMin int `json:"below_min"`
}

// Stats returns a point-in-time snapshot.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := Stats{Total: len(p.accounts)}
	for _, a := range p.accounts {
		if a.inUse {
			s.InUse++
		}
		if a.balance.LessThan(p.cfg.MinBalance) {
			s.BelowMin++
		}
	}
	return s
}
