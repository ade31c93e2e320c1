package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"time"

	"github.com/joripage/exchange-sim/pkg/exchange"
	"github.com/joripage/exchange-sim/pkg/ledger"
	"github.com/joripage/exchange-sim/pkg/orderbook"
	"github.com/shopspring/decimal"
)

const (
	minPrice = 100.0
	maxPrice = 200.0
	minQty   = 1
	maxQty   = 100
)

func randomRequest(rng *rand.Rand, participants []string, securities []string) exchange.OrderRequest {
	side := orderbook.BUY
	if rng.Intn(2) == 0 {
		side = orderbook.SELL
	}
	price := minPrice + rng.Float64()*(maxPrice-minPrice)

	return exchange.OrderRequest{
		ParticipantID: participants[rng.Intn(len(participants))],
		Security:      securities[rng.Intn(len(securities))],
		Side:          side,
		Price:         decimal.NewFromFloat(price).Round(2),
		Qty:           int64(rng.Intn(maxQty-minQty+1) + minQty),
	}
}

func main() {
	var numOrders, numParticipants int
	var seed int64
	flag.IntVar(&numOrders, "orders", 1_000_000, "Number of orders to submit")
	flag.IntVar(&numParticipants, "participants", 100, "Number of participants")
	flag.Int64Var(&seed, "seed", time.Now().UnixNano(), "Random seed")
	flag.Parse()

	rng := rand.New(rand.NewSource(seed))
	securities := []string{"AAPL", "TSLA", "MSFT", "GOOG", "AMZN"}

	registry := ledger.NewRegistry()
	participants := make([]string, numParticipants)
	for i := range participants {
		participants[i] = fmt.Sprintf("P%04d", i+1)
		positions := make(map[string]int64, len(securities))
		for _, s := range securities {
			positions[s] = 1 << 40
		}
		if err := registry.Register(ledger.NewAccount(participants[i], decimal.Zero, decimal.NewFromInt(1<<50), positions)); err != nil {
			panic(err)
		}
	}

	secs := make([]exchange.Security, 0, len(securities))
	for _, s := range securities {
		secs = append(secs, exchange.Security{Symbol: s, ReferencePrice: decimal.NewFromInt(150)})
	}
	ex, err := exchange.New(secs, registry)
	if err != nil {
		panic(err)
	}

	ctx := context.Background()
	var totalMatched int
	var totalQty int64
	start := time.Now()
	for i := 0; i < numOrders; i++ {
		h, err := ex.SubmitOrder(ctx, randomRequest(rng, participants, securities))
		if err != nil {
			continue
		}
		for _, t := range h.Trades {
			totalMatched++
			totalQty += t.Qty
		}
	}
	elapsed := time.Since(start)

	fmt.Println("--------")
	fmt.Printf("Total Orders     : %d\n", numOrders)
	fmt.Printf("Total Matches    : %d\n", totalMatched)
	fmt.Printf("Total Matched Qty: %d\n", totalQty)
	fmt.Printf("Time Taken       : %s\n", elapsed)
	fmt.Printf("Orders/sec       : %.0f\n", float64(numOrders)/elapsed.Seconds())
}
