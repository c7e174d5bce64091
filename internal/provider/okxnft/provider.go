package okxnft

import (
	"context"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"marketboard/internal/quote"
)

type Config struct {
	Name        string
	Slug        string // collection slug, e.g. liberty-cats-2
	Chain       string // e.g. Polygon
	NativeToken string // token the floor is denominated in, e.g. POL
	// FallbackFloor is the last-known floor used when the marketplace call
	// fails outright. Demo-mode population, not resilience.
	FallbackFloor decimal.Decimal
}

// Provider normalizes the marketplace floor price. The result is denominated
// in the chain's native token; the board converts it using the token's own
// crypto quote, so NFT normalization completes only after crypto
// normalization has run.
type Provider struct {
	cfg    Config
	client *Client
}

func NewProvider(cfg Config, client *Client) *Provider {
	if cfg.Name == "" {
		cfg.Name = "OKXNFT"
	}
	if cfg.Chain == "" {
		cfg.Chain = "Polygon"
	}
	if cfg.NativeToken == "" {
		cfg.NativeToken = "POL"
	}
	return &Provider{cfg: cfg, client: client}
}

func (p *Provider) Name() string { return p.cfg.Name }

// Floor always returns a quote: the live floor when the marketplace answers,
// otherwise the configured fallback flagged as an estimate.
func (p *Provider) Floor(ctx context.Context) quote.Normalized {
	callCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	col, err := p.client.CollectionDetail(callCtx, p.cfg.Slug, p.cfg.Chain)
	if err == nil {
		if floor, perr := decimal.NewFromString(col.FloorPrice.String()); perr == nil {
			return quote.Normalized{
				Price:     floor,
				PrevClose: floor,
				Currency:  p.cfg.NativeToken,
			}
		} else {
			err = perr
		}
	}
	log.Printf("%s: collection %s: %v (using fallback floor)", p.cfg.Name, p.cfg.Slug, err)
	return quote.Normalized{
		Price:      p.cfg.FallbackFloor,
		PrevClose:  p.cfg.FallbackFloor,
		Currency:   p.cfg.NativeToken,
		IsEstimate: true,
	}
}
