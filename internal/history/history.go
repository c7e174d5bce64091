package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"marketboard/internal/jsonp"
	"marketboard/internal/provider/sina"
)

// ErrUnsupported marks asset codes absent from the ticker table. The HTTP
// layer maps it to an error payload with empty series, not a failure status.
var ErrUnsupported = errors.New("chart not available for this asset")

const seriesLen = 30

// Series is a positionally-aligned (date, price) pair of sequences. Prices
// may contain nulls for session gaps.
type Series struct {
	Dates  []string   `json:"dates"`
	Prices []*float64 `json:"prices"`
}

func emptySeries() Series {
	return Series{Dates: []string{}, Prices: []*float64{}}
}

type Config struct {
	CNEndpoint      string
	USEndpoint      string // fmt pattern: symbol twice
	FuturesEndpoint string // fmt pattern: symbol twice
	ForexEndpoint   string // fmt pattern: symbol twice
	ChartEndpoint   string // general charting fallback base URL
}

// CryptoKlines is the crypto K-line source (implemented by the binance
// client).
type CryptoKlines interface {
	Klines(ctx context.Context, symbol string, limit int) (dates []string, closes []float64, err error)
}

// Fetcher dispatches an asset code to one of five upstream history shapes.
type Fetcher struct {
	cfg     Config
	rest    *resty.Client
	crypto  CryptoKlines
	tickers map[string]string // code -> chart symbol; doubles as whitelist
}

func New(cfg Config, tickers map[string]string, crypto CryptoKlines) *Fetcher {
	rest := resty.New()
	rest.SetTimeout(10 * time.Second)
	rest.SetHeader("User-Agent", "marketboard/1.0")
	return &Fetcher{cfg: cfg, rest: rest, crypto: crypto, tickers: tickers}
}

// Fetch returns up to 30 daily closes for code, oldest first. An upstream
// with no data yields empty sequences rather than an error.
func (f *Fetcher) Fetch(ctx context.Context, code string) (Series, error) {
	ticker, ok := f.tickers[code]
	if !ok {
		return emptySeries(), ErrUnsupported
	}
	switch sina.Classify(code) {
	case sina.ClassAShare:
		return f.domestic(ctx, code)
	case sina.ClassHKShare:
		return f.chartFallback(ctx, ticker)
	case sina.ClassUSShare:
		return f.usDaily(ctx, strings.TrimPrefix(code, "gb_"))
	case sina.ClassFutures:
		return f.jsonpDaily(ctx, f.cfg.FuturesEndpoint, strings.TrimPrefix(code, "hf_"))
	case sina.ClassForex:
		return f.jsonpDaily(ctx, f.cfg.ForexEndpoint, code)
	}
	if strings.HasSuffix(code, "USDT") {
		return f.cryptoDaily(ctx, code)
	}
	return emptySeries(), ErrUnsupported
}

// domestic hits the A-share daily K-line JSON API.
func (f *Fetcher) domestic(ctx context.Context, code string) (Series, error) {
	resp, err := f.rest.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"symbol":  code,
			"scale":   "240",
			"ma":      "no",
			"datalen": strconv.Itoa(seriesLen),
		}).
		Get(f.cfg.CNEndpoint)
	if err != nil {
		return emptySeries(), err
	}
	if !resp.IsSuccess() {
		return emptySeries(), fmt.Errorf("kline: status %d", resp.StatusCode())
	}
	var bars []struct {
		Day   string      `json:"day"`
		Close json.Number `json:"close"`
	}
	if err := json.Unmarshal(resp.Body(), &bars); err != nil {
		return emptySeries(), fmt.Errorf("decode kline: %w", err)
	}
	out := emptySeries()
	for _, b := range bars {
		c, err := b.Close.Float64()
		if err != nil {
			continue
		}
		out.Dates = append(out.Dates, b.Day)
		out.Prices = append(out.Prices, &c)
	}
	return out, nil
}

// chartFallback serves HK listings through the general charting API, with
// the documented 3-attempt retry; the vendor HK K-line feed is unreliable.
func (f *Fetcher) chartFallback(ctx context.Context, ticker string) (Series, error) {
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return emptySeries(), ctx.Err()
			}
		}
		s, err := f.chartOnce(ctx, ticker)
		if err == nil && len(s.Dates) > 0 {
			return s, nil
		}
		lastErr = err
	}
	if lastErr != nil {
		return emptySeries(), lastErr
	}
	return emptySeries(), nil
}

func (f *Fetcher) chartOnce(ctx context.Context, ticker string) (Series, error) {
	var body struct {
		Chart struct {
			Result []struct {
				Timestamp  []int64 `json:"timestamp"`
				Indicators struct {
					Quote []struct {
						Close []*float64 `json:"close"`
					} `json:"quote"`
				} `json:"indicators"`
			} `json:"result"`
		} `json:"chart"`
	}
	resp, err := f.rest.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"range": "1mo", "interval": "1d"}).
		SetResult(&body).
		Get(f.cfg.ChartEndpoint + "/v8/finance/chart/" + ticker)
	if err != nil {
		return emptySeries(), err
	}
	if !resp.IsSuccess() {
		return emptySeries(), fmt.Errorf("chart: status %d", resp.StatusCode())
	}
	out := emptySeries()
	if len(body.Chart.Result) == 0 {
		return out, nil
	}
	res := body.Chart.Result[0]
	if len(res.Indicators.Quote) == 0 {
		return out, nil
	}
	closes := res.Indicators.Quote[0].Close
	for i, ts := range res.Timestamp {
		out.Dates = append(out.Dates, time.Unix(ts, 0).UTC().Format("2006-01-02"))
		if i < len(closes) {
			out.Prices = append(out.Prices, closes[i])
		} else {
			out.Prices = append(out.Prices, nil)
		}
	}
	return out, nil
}

// usDaily parses the US JSONP daily-K feed, whose pairs use "d"/"c" keys.
func (f *Fetcher) usDaily(ctx context.Context, symbol string) (Series, error) {
	return f.jsonpGet(ctx, fmt.Sprintf(f.cfg.USEndpoint, symbol, symbol), "d", "c")
}

// jsonpDaily parses the futures/forex JSONP feeds ("date"/"close" keys).
func (f *Fetcher) jsonpDaily(ctx context.Context, pattern, symbol string) (Series, error) {
	return f.jsonpGet(ctx, fmt.Sprintf(pattern, symbol, symbol), "date", "close")
}

func (f *Fetcher) jsonpGet(ctx context.Context, url, dateKey, closeKey string) (Series, error) {
	resp, err := f.rest.R().SetContext(ctx).Get(url)
	if err != nil {
		return emptySeries(), err
	}
	if !resp.IsSuccess() {
		return emptySeries(), fmt.Errorf("jsonp kline: status %d", resp.StatusCode())
	}
	out := emptySeries()
	for _, p := range jsonp.Series(string(resp.Body()), dateKey, closeKey, seriesLen) {
		c := p.Close
		out.Dates = append(out.Dates, p.Date)
		out.Prices = append(out.Prices, &c)
	}
	return out, nil
}

func (f *Fetcher) cryptoDaily(ctx context.Context, symbol string) (Series, error) {
	dates, closes, err := f.crypto.Klines(ctx, symbol, seriesLen)
	if err != nil {
		return emptySeries(), err
	}
	out := emptySeries()
	for i := range dates {
		c := closes[i]
		out.Dates = append(out.Dates, dates[i])
		out.Prices = append(out.Prices, &c)
	}
	return out, nil
}
