package main

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Chenxiao-Tian/dex-proxy-habor-sub001/internal/coordinator"
	"github.com/Chenxiao-Tian/dex-proxy-habor-sub001/internal/events"
	"github.com/Chenxiao-Tian/dex-proxy-habor-sub001/internal/monitor"
	"github.com/Chenxiao-Tian/dex-proxy-habor-sub001/internal/pending"
	"github.com/Chenxiao-Tian/dex-proxy-habor-sub001/internal/signer"
	"github.com/Chenxiao-Tian/dex-proxy-habor-sub001/internal/venue"
	"github.com/Chenxiao-Tian/dex-proxy-habor-sub001/internal/venue/mock"
	"github.com/Chenxiao-Tian/dex-proxy-habor-sub001/pkg/fixedpoint"
)

// gateway_demo assembles the coordinator against the in-memory mock venue
// and drives a few realistic request flows. It does not touch a real venue.
//
// Usage:
//   go run ./scripts/gateway_demo
//
// It will:
//   1) Submit, amend, and cancel an order.
//   2) Fire concurrent transfers to show signer pool exhaustion.
//   3) Print final metrics and pool occupancy.

func main() {
	log.Println("=== gateway demo starting ===")

	ctx := context.Background()

	cache := pending.NewCache(pending.DefaultConfig())
	hub := events.NewHub()
	metrics := monitor.NewMetrics()

	accounts := []signer.AccountConfig{
		{Address: "0xalpha", Credential: "demo-key-1"},
		{Address: "0xbeta", Credential: "demo-key-2"},
	}
	funder := mock.NewFunder(decimal.NewFromInt(10), "0xalpha", "0xbeta")
	pool, err := signer.NewPool(accounts, nil, funder, signer.Config{
		MinBalance:    decimal.NewFromInt(1),
		TargetBalance: decimal.NewFromInt(10),
		TopupInterval: time.Second,
	})
	if err != nil {
		log.Fatalf("pool init error: %v", err)
	}

	registry := venue.NewRegistry()
	registry.Register("mock", mock.New(mock.Config{Latency: 50 * time.Millisecond, RequestsPerS: 100, Burst: 10}))

	coord := coordinator.New(cache, pool, hub, registry, metrics, coordinator.DefaultConfig())

	log.Println("[SCENARIO 1] Order insert, amend, cancel")
	orderID := pending.ClientRequestID("demo-" + uuid.NewString()[:8])
	price, _ := fixedpoint.ParsePrice("1850.50")
	qty, _ := fixedpoint.ParseQuantity("0.25")
	req, err := coord.Submit(ctx, orderID, pending.KindOrderInsert, pending.Payload{
		Venue: "mock", Market: "ETH-USDC", Side: "BUY", Price: price, Quantity: qty,
	})
	if err != nil {
		log.Fatalf("submit error: %v", err)
	}
	log.Printf("submitted %s -> %s (venue id %s)", orderID, req.State, req.VenueRequestID)

	newPrice, _ := fixedpoint.ParsePrice("1851.00")
	if req, err = coord.Amend(ctx, orderID, pending.Payload{
		Venue: "mock", Market: "ETH-USDC", Side: "BUY", Price: newPrice, Quantity: qty,
	}); err != nil {
		log.Fatalf("amend error: %v", err)
	}
	log.Printf("amended %s, price now %s", orderID, req.Payload.Price)

	if req, err = coord.Cancel(ctx, orderID); err != nil {
		log.Fatalf("cancel error: %v", err)
	}
	log.Printf("cancelled %s -> %s", orderID, req.State)

	log.Println("[SCENARIO 2] Concurrent transfers against a 2-account pool")
	done := make(chan string, 3)
	for i := 0; i < 3; i++ {
		id := pending.ClientRequestID("demo-transfer-" + uuid.NewString()[:8])
		go func(id pending.ClientRequestID) {
			_, err := coord.Submit(ctx, id, pending.KindTransfer, pending.Payload{
				Venue: "mock", Address: "0xdead", Amount: decimal.NewFromInt(1),
			})
			if err != nil {
				done <- string(id) + ": " + err.Error()
				return
			}
			done <- string(id) + ": acknowledged"
		}(id)
	}
	for i := 0; i < 3; i++ {
		log.Printf("transfer result: %s", <-done)
	}

	log.Println("[SCENARIO DONE] Final state:")
	log.Printf("metrics: %+v", metrics.Snapshot())
	log.Printf("pool: %+v", pool.Stats())
	log.Printf("live requests: %d", cache.Len())

	log.Println("=== gateway demo finished ===")
}
