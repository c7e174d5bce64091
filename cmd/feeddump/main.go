package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"golang.org/x/text/encoding/simplifiedchinese"

	"marketboard/internal/config"
	"marketboard/internal/httpx"
)

// feeddump probes the raw upstream endpoints and prints what they actually
// return, which is the fastest way to debug a source whose positional layout
// or wrapper format has shifted.
func main() {
	var configPath string
	var source string
	var timeout int
	var limit int
	flag.StringVar(&configPath, "config", os.Getenv("CONFIG_FILE"), "path to config.json (optional)")
	flag.StringVar(&source, "source", "all", "which upstream to probe: feed|crypto|nft|news|stablecoins|liquidations|all")
	flag.IntVar(&timeout, "timeout", 10, "request timeout seconds")
	flag.IntVar(&limit, "limit", 2048, "max bytes of each payload to print")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	hc := httpx.New(time.Duration(timeout) * time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeout)*time.Second)
	defer cancel()

	probes := map[string]func(){
		"feed": func() {
			url := cfg.Feed.Endpoint + strings.Join(cfg.FeedCodes(), ",")
			raw, err := hc.Get(ctx, url, map[string]string{"Referer": cfg.Feed.Referer})
			if err != nil {
				log.Printf("feed: %v", err)
				return
			}
			// the feed answers GB18030; decode before printing
			decoded, derr := simplifiedchinese.GB18030.NewDecoder().Bytes(raw)
			if derr != nil {
				decoded = raw
			}
			dump("feed", url, decoded, limit)
		},
		"crypto": func() {
			for _, sym := range cfg.Crypto.Symbols {
				url := cfg.Crypto.Endpoint + "/api/v3/ticker/price?symbol=" + sym
				raw, err := hc.Get(ctx, url, nil)
				if err != nil {
					log.Printf("crypto %s: %v", sym, err)
					continue
				}
				dump("crypto "+sym, url, raw, limit)
			}
		},
		"nft": func() {
			url := fmt.Sprintf("https://www.okx.com/api/v5/mktplace/nft/collection/detail?slug=%s&chain=%s",
				cfg.NFT.Slug, cfg.NFT.Chain)
			raw, err := hc.Get(ctx, url, map[string]string{
				"User-Agent": "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			})
			if err != nil {
				log.Printf("nft: %v", err)
				return
			}
			dump("nft", url, raw, limit)
		},
		"news": func() {
			url := fmt.Sprintf("%s/get_flash_list?channel=1&vip=1&t=%d", cfg.News.Endpoint, time.Now().UnixMilli())
			raw, err := hc.Get(ctx, url, map[string]string{
				"x-app-id":  cfg.News.AppID,
				"x-version": "1.0.0",
				"Origin":    cfg.News.Portal,
				"Referer":   cfg.News.Portal + "/",
			})
			if err != nil {
				log.Printf("news: %v", err)
				return
			}
			dump("news", url, raw, limit)
		},
		"stablecoins": func() {
			url := cfg.Stablecoins.Endpoint + "/stablecoins?includePrices=true"
			raw, err := hc.Get(ctx, url, nil)
			if err != nil {
				log.Printf("stablecoins: %v", err)
				return
			}
			dump("stablecoins", url, raw, limit)
		},
		"liquidations": func() {
			url := cfg.Liquidations.Endpoint + "/fapi/v1/time"
			raw, err := hc.Get(ctx, url, nil)
			if err != nil {
				log.Printf("liquidations: %v", err)
				return
			}
			dump("liquidations", url, raw, limit)
		},
	}

	if source == "all" {
		for _, name := range []string{"feed", "crypto", "nft", "news", "stablecoins", "liquidations"} {
			probes[name]()
		}
		return
	}
	probe, ok := probes[source]
	if !ok {
		log.Fatalf("unknown source %q", source)
	}
	probe()
}

func dump(name, url string, body []byte, limit int) {
	if len(body) > limit {
		body = body[:limit]
	}
	fmt.Printf("=== %s\nGET %s\n%s\n\n", name, url, body)
}
