package binance

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"marketboard/internal/httpx"
	"marketboard/internal/quote"
)

type Config struct {
	Name     string
	Endpoint string // spot REST base, e.g. https://api.binance.com
	// Aliases maps a symbol the exchange no longer recognizes to its
	// rebranded ticker (e.g. POLUSDT -> MATICUSDT). Tried once, price only.
	Aliases map[string]string
}

// Client talks to the spot REST API.
type Client struct {
	cfg    Config
	client *httpx.Client
}

func New(cfg Config, hc *httpx.Client) *Client {
	if cfg.Name == "" {
		cfg.Name = "Binance"
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = "https://api.binance.com"
	}
	return &Client{cfg: cfg, client: hc}
}

func (c *Client) Name() string { return c.cfg.Name }

// Quotes fetches each symbol's instantaneous price plus the 24h statistics
// whose prevClosePrice is the change baseline. Failures are per-symbol: the
// symbol is omitted (after one alias retry for unrecognized tickers) and the
// rest proceed.
func (c *Client) Quotes(ctx context.Context, symbols []string) map[string]quote.Normalized {
	out := make(map[string]quote.Normalized, len(symbols))
	for _, sym := range symbols {
		price, err := c.price(ctx, sym)
		if err != nil {
			var se *httpx.StatusError
			alias := c.cfg.Aliases[sym]
			if errors.As(err, &se) && alias != "" {
				if ap, aerr := c.price(ctx, alias); aerr == nil {
					// alias path carries no prior close; zero change
					out[sym] = quote.FromPrice(ap)
					continue
				}
			}
			log.Printf("%s: quote %s: %v", c.cfg.Name, sym, err)
			continue
		}
		prev, err := c.prevClose(ctx, sym)
		if err != nil {
			log.Printf("%s: 24h stats %s: %v", c.cfg.Name, sym, err)
			prev = price
		}
		out[sym] = quote.Normalized{Price: price, PrevClose: prev}
	}
	return out
}

func (c *Client) price(ctx context.Context, symbol string) (decimal.Decimal, error) {
	callCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	raw, err := c.client.Get(callCtx, c.cfg.Endpoint+"/api/v3/ticker/price?symbol="+symbol, nil)
	if err != nil {
		return decimal.Zero, err
	}
	var body struct {
		Price json.Number `json:"price"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return decimal.Zero, fmt.Errorf("decode ticker: %w", err)
	}
	return decimal.NewFromString(body.Price.String())
}

func (c *Client) prevClose(ctx context.Context, symbol string) (decimal.Decimal, error) {
	callCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	raw, err := c.client.Get(callCtx, c.cfg.Endpoint+"/api/v3/ticker/24hr?symbol="+symbol, nil)
	if err != nil {
		return decimal.Zero, err
	}
	var body struct {
		PrevClosePrice json.Number `json:"prevClosePrice"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return decimal.Zero, fmt.Errorf("decode 24hr: %w", err)
	}
	return decimal.NewFromString(body.PrevClosePrice.String())
}

// Level is one order-book row, reshaped from the exchange's positional pairs.
type Level struct {
	Price  float64 `json:"price"`
	Amount float64 `json:"amount"`
}

type Depth struct {
	Bids []Level `json:"bids"`
	Asks []Level `json:"asks"`
}

// OrderBook fetches depth for one symbol. The exchange returns
// [["price","qty"], ...] string pairs.
func (c *Client) OrderBook(ctx context.Context, symbol string, limit int) (Depth, error) {
	callCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	url := fmt.Sprintf("%s/api/v3/depth?symbol=%s&limit=%d", c.cfg.Endpoint, symbol, limit)
	raw, err := c.client.Get(callCtx, url, nil)
	if err != nil {
		return Depth{}, err
	}
	var body struct {
		Bids [][]string `json:"bids"`
		Asks [][]string `json:"asks"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return Depth{}, fmt.Errorf("decode depth: %w", err)
	}
	return Depth{Bids: levels(body.Bids), Asks: levels(body.Asks)}, nil
}

func levels(pairs [][]string) []Level {
	out := make([]Level, 0, len(pairs))
	for _, p := range pairs {
		if len(p) < 2 {
			continue
		}
		price, err1 := strconv.ParseFloat(p[0], 64)
		amount, err2 := strconv.ParseFloat(p[1], 64)
		if err1 != nil || err2 != nil {
			continue
		}
		out = append(out, Level{Price: price, Amount: amount})
	}
	return out
}

// Klines returns daily close prices, oldest first, as (ISO date, close)
// pairs. Each kline row is a mixed array: [openTimeMs, "open", "high",
// "low", "close", ...]; only open time and close are consumed.
func (c *Client) Klines(ctx context.Context, symbol string, limit int) (dates []string, closes []float64, err error) {
	callCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	url := fmt.Sprintf("%s/api/v3/klines?symbol=%s&interval=1d&limit=%d", c.cfg.Endpoint, symbol, limit)
	raw, err := c.client.Get(callCtx, url, nil)
	if err != nil {
		return nil, nil, err
	}
	var rows [][]any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&rows); err != nil {
		return nil, nil, fmt.Errorf("decode klines: %w", err)
	}
	for _, row := range rows {
		if len(row) < 5 {
			continue
		}
		tsNum, ok := row[0].(json.Number)
		if !ok {
			continue
		}
		ts, err := tsNum.Int64()
		if err != nil {
			continue
		}
		closeStr, ok := row[4].(string)
		if !ok {
			continue
		}
		closeVal, err := strconv.ParseFloat(closeStr, 64)
		if err != nil {
			continue
		}
		dates = append(dates, time.UnixMilli(ts).UTC().Format("2006-01-02"))
		closes = append(closes, closeVal)
	}
	return dates, closes, nil
}
