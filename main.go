package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Chenxiao-Tian/dex-proxy-habor-sub001/internal/api"
	"github.com/Chenxiao-Tian/dex-proxy-habor-sub001/internal/coordinator"
	"github.com/Chenxiao-Tian/dex-proxy-habor-sub001/internal/events"
	"github.com/Chenxiao-Tian/dex-proxy-habor-sub001/internal/monitor"
	"github.com/Chenxiao-Tian/dex-proxy-habor-sub001/internal/pending"
	"github.com/Chenxiao-Tian/dex-proxy-habor-sub001/internal/signer"
	"github.com/Chenxiao-Tian/dex-proxy-habor-sub001/internal/venue"
	"github.com/Chenxiao-Tian/dex-proxy-habor-sub001/internal/venue/mock"
	"github.com/Chenxiao-Tian/dex-proxy-habor-sub001/pkg/config"
	"github.com/Chenxiao-Tian/dex-proxy-habor-sub001/pkg/crypto"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	log.Printf("starting gateway on port %s", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	buildVersion := os.Getenv("APP_VERSION")
	if buildVersion == "" {
		buildVersion = "v1.0-dev"
	}

	// Credential sealer: optional while every configured credential is
	// plaintext, required as soon as one carries the ENC[vN]: prefix.
	sealer, err := crypto.SealerFromEnv(cfg.CredentialKeyEnv, 1)
	if err != nil {
		if !errors.Is(err, crypto.ErrKeyNotConfigured) {
			log.Fatalf("credential key %s invalid: %v", cfg.CredentialKeyEnv, err)
		}
		sealer = nil
		log.Printf("credential key %s not set, sealed credentials unavailable", cfg.CredentialKeyEnv)
	}

	accounts, err := config.LoadAccounts(cfg.AccountsFile)
	if err != nil {
		if !cfg.MockVenue {
			log.Fatalf("accounts load failed: %v", err)
		}
		// Mock deployments run fine on a throwaway dev account.
		log.Printf("accounts load failed (%v), using dev account", err)
		accounts = []signer.AccountConfig{{Address: "0xdev", Credential: "dev-key"}}
	}

	hub := events.NewHub()
	metrics := monitor.NewMetrics()

	cache := pending.NewCache(pending.Config{
		GracePeriod:   cfg.CacheGracePeriod,
		SweepInterval: cfg.CacheSweepInterval,
	})
	cache.Start(ctx)

	registry := venue.NewRegistry()
	var funder signer.Funder
	if cfg.MockVenue {
		registry.Register("mock", mock.New(mock.Config{
			Latency:      time.Duration(cfg.MockLatencyMs) * time.Millisecond,
			RequestsPerS: cfg.MockRateLimit,
			Burst:        10,
		}))
		addresses := make([]string, len(accounts))
		for i, ac := range accounts {
			addresses[i] = ac.Address
		}
		funder = mock.NewFunder(cfg.PoolTargetBalance, addresses...)
		log.Printf("mock venue registered (%d signer accounts)", len(accounts))
	}

	pool, err := signer.NewPool(accounts, sealer, funder, signer.Config{
		MinBalance:    cfg.PoolMinBalance,
		TargetBalance: cfg.PoolTargetBalance,
		TopupInterval: cfg.PoolTopupInterval,
	})
	if err != nil {
		log.Fatalf("signer pool init failed: %v", err)
	}
	pool.Start(ctx)
	log.Printf("signer pool ready: %d accounts, top-up every %v", pool.Stats().Total, cfg.PoolTopupInterval)

	coord := coordinator.New(cache, pool, hub, registry, metrics, coordinator.Config{
		AdapterTimeout: cfg.AdapterTimeout,
	})

	server := api.NewServer(coord, cache, pool, hub, registry, metrics,
		api.SystemMeta{
			Version: buildVersion,
			Venues:  registry.Venues(),
		},
		cfg.JWTSecret,
		cfg.APIKey,
	)
	go func() {
		if err := server.Start(ctx, ":"+cfg.Port); err != nil {
			log.Fatalf("api server error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Println("shutting down")
}
