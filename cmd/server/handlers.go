package main

import (
	"context"
	"encoding/json"
	"html/template"
	"log"
	"net/http"

	"marketboard/internal/board"
	"marketboard/internal/history"
	"marketboard/internal/liquidation"
	"marketboard/internal/provider/binance"
	"marketboard/internal/provider/defillama"
	"marketboard/internal/provider/jin10"
	"marketboard/internal/quote"
)

// Narrow source interfaces so handlers can be exercised with fakes.
type feedSource interface {
	Fetch(ctx context.Context, codes []string) (map[string]quote.Normalized, error)
}

type cryptoSource interface {
	Quotes(ctx context.Context, symbols []string) map[string]quote.Normalized
	OrderBook(ctx context.Context, symbol string, limit int) (binance.Depth, error)
}

type nftSource interface {
	Floor(ctx context.Context) quote.Normalized
}

type newsSource interface {
	Flashes(ctx context.Context) ([]jin10.Item, error)
}

type stablecoinSource interface {
	Stablecoins(ctx context.Context, targets []string) (defillama.Summary, error)
}

type liquidationSource interface {
	Recent(ctx context.Context) []liquidation.Event
}

type historySource interface {
	Fetch(ctx context.Context, code string) (history.Series, error)
}

type server struct {
	assets        []board.Asset
	feedCodes     []string
	cryptoSymbols []string
	convertSymbol string
	nativeToken   string
	depthSymbol   string
	depthLimit    int
	stableTargets []string
	names         map[string]string

	feed    feedSource
	crypto  cryptoSource
	nft     nftSource
	news    newsSource
	stables stablecoinSource
	liq     liquidationSource
	hist    historySource

	tmpl *template.Template
}

func (s *server) routes() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("GET /api/prices", s.handlePrices)
	api.HandleFunc("GET /api/history/{code}", s.handleHistory)
	api.HandleFunc("GET /api/stablecoins", s.handleStablecoins)
	api.HandleFunc("GET /api/depth/btcusdt", s.handleDepth)
	api.HandleFunc("GET /api/liquidations", s.handleLiquidations)
	api.HandleFunc("GET /api/news", s.handleNews)

	mux := http.NewServeMux()
	mux.Handle("/api/", withJSONHeaders(api))
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /detail/{code}", s.handleDetail)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return withGzip(recoverPanic(mux))
}

// handlePrices assembles the full board. Every upstream call is sequential
// and best-effort: a failed source degrades to N/A rows, never an error
// status.
func (s *server) handlePrices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	feedQuotes, err := s.feed.Fetch(ctx, s.feedCodes)
	if err != nil {
		log.Printf("prices: feed: %v", err)
		feedQuotes = nil
	}
	cryptoQuotes := s.crypto.Quotes(ctx, s.cryptoSymbols)

	// the NFT floor arrives in the chain's native token; board.Build
	// converts it with the crypto quote fetched above
	nftQuotes := make(map[string]quote.Normalized)
	for _, a := range s.assets {
		if a.Source == board.SourceNFT {
			nftQuotes[a.Code] = s.nft.Floor(ctx)
		}
	}

	records := board.Build(s.assets, board.Quotes{
		Feed:   feedQuotes,
		Crypto: cryptoQuotes,
		NFT:    nftQuotes,
	}, s.convertSymbol, s.nativeToken)
	writeJSON(w, records)
}

type historyResponse struct {
	Error  string     `json:"error,omitempty"`
	Dates  []string   `json:"dates"`
	Prices []*float64 `json:"prices"`
}

func (s *server) handleHistory(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	series, err := s.hist.Fetch(r.Context(), code)
	if err != nil {
		log.Printf("history %s: %v", code, err)
		writeJSON(w, historyResponse{Error: err.Error(), Dates: []string{}, Prices: []*float64{}})
		return
	}
	writeJSON(w, historyResponse{Dates: series.Dates, Prices: series.Prices})
}

func (s *server) handleStablecoins(w http.ResponseWriter, r *http.Request) {
	summary, err := s.stables.Stablecoins(r.Context(), s.stableTargets)
	if err != nil {
		log.Printf("stablecoins: %v", err)
		summary = defillama.Summary{Coins: []defillama.Coin{}, MarketShare: map[string]float64{}}
		for _, t := range s.stableTargets {
			summary.MarketShare[t] = 0
		}
		summary.MarketShare["Others"] = 0
	}
	writeJSON(w, summary)
}

func (s *server) handleDepth(w http.ResponseWriter, r *http.Request) {
	depth, err := s.crypto.OrderBook(r.Context(), s.depthSymbol, s.depthLimit)
	if err != nil {
		log.Printf("depth %s: %v", s.depthSymbol, err)
		depth = binance.Depth{}
	}
	if depth.Bids == nil {
		depth.Bids = []binance.Level{}
	}
	if depth.Asks == nil {
		depth.Asks = []binance.Level{}
	}
	writeJSON(w, depth)
}

func (s *server) handleLiquidations(w http.ResponseWriter, r *http.Request) {
	events := s.liq.Recent(r.Context())
	if events == nil {
		events = []liquidation.Event{}
	}
	writeJSON(w, events)
}

func (s *server) handleNews(w http.ResponseWriter, r *http.Request) {
	items, err := s.news.Flashes(r.Context())
	if err != nil {
		log.Printf("news: %v", err)
	}
	if items == nil {
		items = []jin10.Item{}
	}
	writeJSON(w, items)
}

func (s *server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.ExecuteTemplate(w, "index.html", nil); err != nil {
		log.Printf("render index: %v", err)
	}
}

func (s *server) handleDetail(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	name, ok := s.names[code]
	if !ok {
		name = code
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := s.tmpl.ExecuteTemplate(w, "detail.html", struct {
		Name string
		Code string
	}{Name: name, Code: code})
	if err != nil {
		log.Printf("render detail: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.WriteHeader(http.StatusOK)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
