package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"marketboard/internal/board"
)

type Server struct {
	Port              string `json:"port"`
	RequestTimeoutSec int    `json:"request_timeout_sec"`
}

type Feed struct {
	Endpoint string `json:"endpoint"`
	Referer  string `json:"referer"`
}

type Crypto struct {
	Endpoint    string            `json:"endpoint"`
	Symbols     []string          `json:"symbols"`
	Aliases     map[string]string `json:"aliases"`
	DepthSymbol string            `json:"depth_symbol"`
	DepthLimit  int               `json:"depth_limit"`
}

type NFT struct {
	Slug          string `json:"slug"`
	Chain         string `json:"chain"`
	NativeToken   string `json:"native_token"`
	ConvertSymbol string `json:"convert_symbol"`
	FallbackFloor string `json:"fallback_floor"`
}

type News struct {
	Endpoint string `json:"endpoint"`
	AppID    string `json:"app_id"`
	Portal   string `json:"portal"`
	Source   string `json:"source"`
}

type Stablecoins struct {
	Endpoint string   `json:"endpoint"`
	Targets  []string `json:"targets"`
}

// Liquidations drives the force-order feed. BasePrices seed the demo-mode
// generator when the futures API is unreachable; they are configuration, not
// constants, precisely because they drift.
type Liquidations struct {
	Endpoint   string             `json:"endpoint"`
	Symbols    []string           `json:"symbols"`
	BasePrices map[string]float64 `json:"base_prices"`
}

type History struct {
	CNEndpoint      string `json:"cn_endpoint"`
	USEndpoint      string `json:"us_endpoint"` // pattern: symbol twice
	FuturesEndpoint string `json:"futures_endpoint"`
	ForexEndpoint   string `json:"forex_endpoint"`
	ChartEndpoint   string `json:"chart_endpoint"` // general charting fallback
	// Tickers maps asset codes to chart symbols and doubles as the
	// supported-history whitelist.
	Tickers map[string]string `json:"tickers"`
}

// Config is loaded once at process start and read-only thereafter.
type Config struct {
	Server       Server        `json:"server"`
	Feed         Feed          `json:"feed"`
	Crypto       Crypto        `json:"crypto"`
	NFT          NFT           `json:"nft"`
	News         News          `json:"news"`
	Stablecoins  Stablecoins   `json:"stablecoins"`
	Liquidations Liquidations  `json:"liquidations"`
	History      History       `json:"history"`
	Assets       []board.Asset `json:"assets"`
}

func Default() Config {
	return Config{
		Server: Server{Port: "8080", RequestTimeoutSec: 10},
		Feed: Feed{
			Endpoint: "https://hq.sinajs.cn/list=",
			Referer:  "https://finance.sina.com.cn/",
		},
		Crypto: Crypto{
			Endpoint:    "https://api.binance.com",
			Symbols:     []string{"BTCUSDT", "ETHUSDT", "POLUSDT"},
			Aliases:     map[string]string{"POLUSDT": "MATICUSDT"},
			DepthSymbol: "BTCUSDT",
			DepthLimit:  100,
		},
		NFT: NFT{
			Slug:          "liberty-cats-2",
			Chain:         "Polygon",
			NativeToken:   "POL",
			ConvertSymbol: "POLUSDT",
			FallbackFloor: "62501.98",
		},
		News: News{
			Endpoint: "https://flash-api.jin10.com",
			AppID:    "bVBF4FyRTn5NJF5n",
			Portal:   "https://www.jin10.com",
			Source:   "金十数据",
		},
		Stablecoins: Stablecoins{
			Endpoint: "https://stablecoins.llama.fi",
			Targets:  []string{"USDT", "USDC"},
		},
		Liquidations: Liquidations{
			Endpoint: "https://fapi.binance.com",
			Symbols:  []string{"BTCUSDT", "ETHUSDT", "SOLUSDT", "DOGEUSDT", "XRPUSDT"},
			BasePrices: map[string]float64{
				"BTC": 95000, "ETH": 3500, "SOL": 180, "DOGE": 0.3, "XRP": 2.5,
			},
		},
		History: History{
			CNEndpoint:      "https://money.finance.sina.com.cn/quotes_service/api/json_v2.php/CN_MarketData.getKLineData",
			USEndpoint:      "https://stock.finance.sina.com.cn/usstock/api/jsonp_v2.php/var%%20_%s=/US_MinKService.getDailyK?symbol=%s",
			FuturesEndpoint: "https://stock2.finance.sina.com.cn/futures/api/jsonp.php/var%%20_%s=/GlobalFuturesService.getGlobalFuturesDailyKLine?symbol=%s",
			ForexEndpoint:   "https://vip.stock.finance.sina.com.cn/forex/api/jsonp.php/var%%20_%s=/NewForexService.getGlobalForexDailyKLine?symbol=%s",
			ChartEndpoint:   "https://query1.finance.yahoo.com",
			Tickers: map[string]string{
				"hf_GC":      "GC=F",
				"hf_SI":      "SI=F",
				"fx_susdcny": "CNY=X",
				"BTCUSDT":    "BTCUSDT",
				"ETHUSDT":    "ETHUSDT",
				"hk03690":    "3690.HK",
				"hk01024":    "1024.HK",
				"sh600519":   "600519.SS",
				"sh688775":   "688775.SS",
				"gb_crcl":    "CRCL",
				// the NFT collection has no chart source
			},
		},
		Assets: []board.Asset{
			{Name: "黄金 (Gold)", Code: "hf_GC", Source: board.SourceFeed, Suffix: " USD"},
			{Name: "白银 (Silver)", Code: "hf_SI", Source: board.SourceFeed, Suffix: " USD"},
			{Name: "美元/人民币 (USD/CNY)", Code: "fx_susdcny", Source: board.SourceFeed, Suffix: ""},
			{Name: "比特币 (BTC)", Code: "BTCUSDT", Source: board.SourceCrypto, Suffix: " USD"},
			{Name: "以太坊 (ETH)", Code: "ETHUSDT", Source: board.SourceCrypto, Suffix: " USD"},
			{Name: "美团 (Meituan)", Code: "hk03690", Source: board.SourceFeed, Suffix: " HKD"},
			{Name: "快手 (Kuaishou)", Code: "hk01024", Source: board.SourceFeed, Suffix: " HKD"},
			{Name: "茅台 (Moutai)", Code: "sh600519", Source: board.SourceFeed, Suffix: " CNY"},
			{Name: "影石创新 (Insta360)", Code: "sh688775", Source: board.SourceFeed, Suffix: " CNY"},
			{Name: "Circle (CRCL)", Code: "gb_crcl", Source: board.SourceFeed, Suffix: " USD"},
			{Name: "Liberty Cats NFT (OKX)", Code: "liberty-cats", Source: board.SourceNFT, Suffix: " USDT"},
		},
	}
}

// Load reads JSON config from path. If path is empty or the file does not
// exist, it returns defaults. Environment variables override select fields.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		if _, err := os.Stat("config.json"); err == nil {
			path = "config.json"
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := json.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("REQUEST_TIMEOUT_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Server.RequestTimeoutSec = x
		}
	}
	if v := os.Getenv("FEED_ENDPOINT"); v != "" {
		cfg.Feed.Endpoint = v
	}
	if v := os.Getenv("CRYPTO_ENDPOINT"); v != "" {
		cfg.Crypto.Endpoint = v
	}
	if v := os.Getenv("LIQUIDATIONS_ENDPOINT"); v != "" {
		cfg.Liquidations.Endpoint = v
	}
	if v := os.Getenv("NEWS_ENDPOINT"); v != "" {
		cfg.News.Endpoint = v
	}
	if v := os.Getenv("NEWS_APP_ID"); v != "" {
		cfg.News.AppID = v
	}
	if v := os.Getenv("STABLECOINS_ENDPOINT"); v != "" {
		cfg.Stablecoins.Endpoint = v
	}
}

// FeedCodes returns the asset codes served by the positional feed, in board
// order, for the batch list request.
func (c Config) FeedCodes() []string {
	var out []string
	for _, a := range c.Assets {
		if a.Source == board.SourceFeed {
			out = append(out, a.Code)
		}
	}
	return out
}
