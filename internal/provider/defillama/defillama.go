package defillama

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

type Config struct {
	Endpoint string
	Timeout  time.Duration
}

// Client fetches stablecoin circulating-supply data.
type Client struct {
	client *resty.Client
}

func New(cfg Config) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "https://stablecoins.llama.fi"
	}
	if cfg.Timeout <= 0 {
		// the full pegged-assets payload is slow
		cfg.Timeout = 10 * time.Second
	}
	client := resty.New()
	client.SetBaseURL(cfg.Endpoint)
	client.SetTimeout(cfg.Timeout)
	return &Client{client: client}
}

// Coin is one tracked stablecoin with its 24h issuance.
type Coin struct {
	Name         string  `json:"name"`
	Symbol       string  `json:"symbol"`
	Price        float64 `json:"price"`
	TotalSupply  float64 `json:"total_supply"`
	Change24h    float64 `json:"change_24h"`
	Change24hPct float64 `json:"change_24h_pct"`
}

// Summary is the dashboard payload: the target coins plus market share of
// the USD-pegged total.
type Summary struct {
	Coins       []Coin             `json:"coins"`
	MarketShare map[string]float64 `json:"market_share"`
}

type peggedResponse struct {
	PeggedAssets []struct {
		Name        string   `json:"name"`
		Symbol      string   `json:"symbol"`
		Price       *float64 `json:"price"`
		Circulating struct {
			PeggedUSD float64 `json:"peggedUSD"`
		} `json:"circulating"`
		CirculatingPrevDay struct {
			PeggedUSD float64 `json:"peggedUSD"`
		} `json:"circulatingPrevDay"`
	} `json:"peggedAssets"`
}

// Stablecoins sums the USD-pegged supply of every listed asset and breaks
// out the target symbols; everything else lands in the "Others" share.
func (c *Client) Stablecoins(ctx context.Context, targets []string) (Summary, error) {
	var body peggedResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("includePrices", "true").
		SetResult(&body).
		Get("/stablecoins")
	if err != nil {
		return Summary{}, err
	}
	if !resp.IsSuccess() {
		return Summary{}, fmt.Errorf("stablecoins: status %d", resp.StatusCode())
	}

	wanted := make(map[string]bool, len(targets))
	for _, t := range targets {
		wanted[t] = true
	}

	out := Summary{
		Coins:       make([]Coin, 0, len(targets)),
		MarketShare: make(map[string]float64, len(targets)+1),
	}
	for _, t := range targets {
		out.MarketShare[t] = 0
	}

	var total float64
	var targeted float64
	for _, asset := range body.PeggedAssets {
		circulating := asset.Circulating.PeggedUSD
		total += circulating
		if !wanted[asset.Symbol] {
			continue
		}
		out.MarketShare[asset.Symbol] = circulating
		targeted += circulating

		prevDay := asset.CirculatingPrevDay.PeggedUSD
		change := circulating - prevDay
		pct := 0.0
		if prevDay != 0 {
			pct = change / prevDay * 100
		}
		price := 1.0
		if asset.Price != nil {
			price = *asset.Price
		}
		out.Coins = append(out.Coins, Coin{
			Name:         asset.Name,
			Symbol:       asset.Symbol,
			Price:        price,
			TotalSupply:  circulating,
			Change24h:    change,
			Change24hPct: pct,
		})
	}
	out.MarketShare["Others"] = total - targeted
	return out, nil
}
