package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"marketboard/internal/board"
	"marketboard/internal/config"
	"marketboard/internal/httpx"
	"marketboard/internal/provider/binance"
	"marketboard/internal/provider/okxnft"
	"marketboard/internal/provider/sina"
	"marketboard/internal/quote"
)

// One-shot board assembly for inspection: fetches every price source once and
// prints the dashboard rows as JSON.
func main() {
	var configPath string
	var timeout int
	flag.StringVar(&configPath, "config", os.Getenv("CONFIG_FILE"), "path to config.json (optional)")
	flag.IntVar(&timeout, "timeout", 15, "request timeout seconds")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	httpClient := httpx.New(time.Duration(timeout) * time.Second)

	feed := sina.New(sina.Config{
		Name:     "Sina",
		Endpoint: cfg.Feed.Endpoint,
		Referer:  cfg.Feed.Referer,
	}, httpClient)
	crypto := binance.New(binance.Config{
		Name:     "Binance",
		Endpoint: cfg.Crypto.Endpoint,
		Aliases:  cfg.Crypto.Aliases,
	}, httpClient)

	fallbackFloor, err := decimal.NewFromString(cfg.NFT.FallbackFloor)
	if err != nil {
		fallbackFloor = decimal.Zero
	}
	nft := okxnft.NewProvider(okxnft.Config{
		Name:          "OKX NFT",
		Slug:          cfg.NFT.Slug,
		Chain:         cfg.NFT.Chain,
		NativeToken:   cfg.NFT.NativeToken,
		FallbackFloor: fallbackFloor,
	}, okxnft.NewClient(okxnft.WithHTTPClient(httpClient.HTTP)))

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeout)*time.Second)
	defer cancel()

	feedQuotes, err := feed.Fetch(ctx, cfg.FeedCodes())
	if err != nil {
		log.Printf("feed: %v", err)
	}

	symbols := make([]string, 0, 4)
	var haveNFT bool
	for _, a := range cfg.Assets {
		switch a.Source {
		case board.SourceCrypto:
			symbols = append(symbols, a.Code)
		case board.SourceNFT:
			haveNFT = true
		}
	}
	if cfg.NFT.ConvertSymbol != "" {
		symbols = append(symbols, cfg.NFT.ConvertSymbol)
	}
	cryptoQuotes := crypto.Quotes(ctx, symbols)

	nftQuotes := map[string]quote.Normalized{}
	if haveNFT {
		for _, a := range cfg.Assets {
			if a.Source == board.SourceNFT {
				nftQuotes[a.Code] = nft.Floor(ctx)
			}
		}
	}

	records := board.Build(cfg.Assets, board.Quotes{
		Feed:   feedQuotes,
		Crypto: cryptoQuotes,
		NFT:    nftQuotes,
	}, cfg.NFT.ConvertSymbol, cfg.NFT.NativeToken)

	b, _ := json.MarshalIndent(records, "", "  ")
	fmt.Println(string(b))
}
