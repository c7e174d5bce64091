package liquidation

import (
	"context"
	"encoding/json"
	"log"
	"math/rand"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"marketboard/internal/httpx"
)

const maxEvents = 20

// Event is one liquidation row. IsSimulation is part of the contract and is
// always present: true means the row came from the demo-mode generator, not
// the exchange.
type Event struct {
	Symbol       string  `json:"symbol"`
	Side         string  `json:"side"` // "Long" | "Short" (position liquidated)
	Price        float64 `json:"price"`
	Qty          float64 `json:"qty"`
	AmountUSD    float64 `json:"amount_usd"`
	Time         int64   `json:"time"` // epoch millis
	IsSimulation bool    `json:"is_simulation"`
}

type Config struct {
	Endpoint string   // futures REST base
	Symbols  []string // pairs to poll
	// BasePrices seed the simulated events when the API is unreachable.
	// Keyed by bare symbol (BTC, ETH, ...). Configuration, not constants.
	BasePrices map[string]float64
}

// Feed polls recent force orders, degrading to simulated events when the
// futures API is unreachable. The simulation is a deliberate demo-mode
// product decision so the dashboard stays populated on restricted networks.
type Feed struct {
	cfg    Config
	client *httpx.Client

	// rnd backs the demo-mode generator and is not safe for concurrent
	// use; every access goes through mu.
	mu  sync.Mutex
	rnd *rand.Rand
}

func New(cfg Config, hc *httpx.Client) *Feed {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "https://fapi.binance.com"
	}
	return &Feed{cfg: cfg, client: hc, rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// Recent returns up to 20 events, newest first. It never fails: upstream
// trouble produces simulated rows flagged as such.
func (f *Feed) Recent(ctx context.Context) []Event {
	var events []Event
	if f.reachable(ctx) {
		events = f.fetch(ctx)
	}
	if len(events) == 0 {
		events = f.simulate(time.Now())
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Time > events[j].Time })
	if len(events) > maxEvents {
		events = events[:maxEvents]
	}
	return events
}

// reachable probes the futures API with a short timeout; the host is often
// blocked outright on domestic networks.
func (f *Feed) reachable(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	_, err := f.client.Get(probeCtx, f.cfg.Endpoint+"/fapi/v1/time", nil)
	return err == nil
}

type forceOrder struct {
	Side    string      `json:"side"`
	Price   json.Number `json:"price"`
	OrigQty json.Number `json:"origQty"`
	Time    int64       `json:"time"`
}

func (f *Feed) fetch(ctx context.Context) []Event {
	var out []Event
	for _, symbol := range f.cfg.Symbols {
		callCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		raw, err := f.client.Get(callCtx, f.cfg.Endpoint+"/fapi/v1/allForceOrders?symbol="+symbol+"&limit=5", nil)
		cancel()
		if err != nil {
			log.Printf("liquidations: %s: %v", symbol, err)
			continue
		}
		var orders []forceOrder
		if err := json.Unmarshal(raw, &orders); err != nil {
			log.Printf("liquidations: decode %s: %v", symbol, err)
			continue
		}
		for _, o := range orders {
			price, err1 := strconv.ParseFloat(o.Price.String(), 64)
			qty, err2 := strconv.ParseFloat(o.OrigQty.String(), 64)
			if err1 != nil || err2 != nil {
				continue
			}
			// a forced SELL closes a long position
			side := "Short"
			if o.Side == "SELL" {
				side = "Long"
			}
			out = append(out, Event{
				Symbol:       strings.TrimSuffix(symbol, "USDT"),
				Side:         side,
				Price:        price,
				Qty:          qty,
				AmountUSD:    price * qty,
				Time:         o.Time,
				IsSimulation: false,
			})
		}
	}
	return out
}

// simulate generates 1-3 plausible events seeded from the configured base
// prices: ±1% price jitter, tiered notional from retail to whale size,
// timestamps inside the last ten seconds.
func (f *Feed) simulate(now time.Time) []Event {
	f.mu.Lock()
	defer f.mu.Unlock()

	symbols := make([]string, 0, len(f.cfg.BasePrices))
	for s := range f.cfg.BasePrices {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	if len(symbols) == 0 {
		return nil
	}

	nowMs := now.UnixMilli()
	n := 1 + f.rnd.Intn(3)
	out := make([]Event, 0, n)
	for i := 0; i < n; i++ {
		symbol := symbols[f.rnd.Intn(len(symbols))]
		price := f.cfg.BasePrices[symbol] * (1 + f.uniform(-0.01, 0.01))

		var amount float64
		switch f.rnd.Intn(4) {
		case 0:
			amount = f.uniform(1_000, 5_000)
		case 1:
			amount = f.uniform(5_000, 20_000)
		case 2:
			amount = f.uniform(20_000, 100_000)
		default:
			amount = f.uniform(100_000, 500_000)
		}

		side := "Long"
		if f.rnd.Intn(2) == 1 {
			side = "Short"
		}
		out = append(out, Event{
			Symbol:       symbol,
			Side:         side,
			Price:        price,
			Qty:          amount / price,
			AmountUSD:    amount,
			Time:         nowMs - int64(f.rnd.Intn(10_000)),
			IsSimulation: true,
		})
	}
	return out
}

func (f *Feed) uniform(lo, hi float64) float64 {
	return lo + f.rnd.Float64()*(hi-lo)
}
