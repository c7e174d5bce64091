package main

import (
	"compress/gzip"
	"context"
	"embed"
	"html/template"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"marketboard/internal/board"
	"marketboard/internal/config"
	"marketboard/internal/history"
	"marketboard/internal/httpx"
	"marketboard/internal/liquidation"
	"marketboard/internal/provider/binance"
	"marketboard/internal/provider/defillama"
	"marketboard/internal/provider/jin10"
	"marketboard/internal/provider/okxnft"
	"marketboard/internal/provider/sina"
)

//go:embed templates/*.html
var templateFS embed.FS

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	port := cfg.Server.Port
	timeout := time.Duration(cfg.Server.RequestTimeoutSec) * time.Second

	httpClient := httpx.New(timeout)

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
		log.Printf("config: nft fallback_floor %q: %v", cfg.NFT.FallbackFloor, err)
		fallbackFloor = decimal.Zero
	}
	nft := okxnft.NewProvider(okxnft.Config{
		Name:          "OKX NFT",
		Slug:          cfg.NFT.Slug,
		Chain:         cfg.NFT.Chain,
		NativeToken:   cfg.NFT.NativeToken,
		FallbackFloor: fallbackFloor,
	}, okxnft.NewClient(okxnft.WithHTTPClient(httpClient.HTTP)))

	news := jin10.New(jin10.Config{
		Endpoint: cfg.News.Endpoint,
		AppID:    cfg.News.AppID,
		Portal:   cfg.News.Portal,
		Source:   cfg.News.Source,
		Timeout:  timeout,
	})

	stables := defillama.New(defillama.Config{
		Endpoint: cfg.Stablecoins.Endpoint,
		Timeout:  timeout,
	})

	liq := liquidation.New(liquidation.Config{
		Endpoint:   cfg.Liquidations.Endpoint,
		Symbols:    cfg.Liquidations.Symbols,
		BasePrices: cfg.Liquidations.BasePrices,
	}, httpClient)

	hist := history.New(history.Config{
		CNEndpoint:      cfg.History.CNEndpoint,
		USEndpoint:      cfg.History.USEndpoint,
		FuturesEndpoint: cfg.History.FuturesEndpoint,
		ForexEndpoint:   cfg.History.ForexEndpoint,
		ChartEndpoint:   cfg.History.ChartEndpoint,
	}, cfg.History.Tickers, crypto)

	names := make(map[string]string, len(cfg.Assets))
	for _, a := range cfg.Assets {
		names[a.Code] = a.Name
	}
	var cryptoSymbols []string
	for _, a := range cfg.Assets {
		if a.Source == board.SourceCrypto {
			cryptoSymbols = append(cryptoSymbols, a.Code)
		}
	}
	// the conversion quote must be fetched even when the token itself is
	// not a board row
	if cfg.NFT.ConvertSymbol != "" && !contains(cryptoSymbols, cfg.NFT.ConvertSymbol) {
		cryptoSymbols = append(cryptoSymbols, cfg.NFT.ConvertSymbol)
	}

	s := &server{
		assets:        cfg.Assets,
		feedCodes:     cfg.FeedCodes(),
		cryptoSymbols: cryptoSymbols,
		convertSymbol: cfg.NFT.ConvertSymbol,
		nativeToken:   cfg.NFT.NativeToken,
		depthSymbol:   cfg.Crypto.DepthSymbol,
		depthLimit:    cfg.Crypto.DepthLimit,
		stableTargets: cfg.Stablecoins.Targets,
		names:         names,

		feed:    feed,
		crypto:  crypto,
		nft:     nft,
		news:    news,
		stables: stables,
		liq:     liq,
		hist:    hist,

		tmpl: template.Must(template.ParseFS(templateFS, "templates/*.html")),
	}

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("server listening on :%s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server: %v", err)
		}
	}()

	// graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func contains(xs []string, want string) bool {
	for _, x := range xs {
		if x == want {
			return true
		}
	}
	return false
}

func withJSONHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		// Basic CORS for browser usage; adjust as needed.
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withGzip compresses the response when the client supports gzip.
func withGzip(next http.Handler) http.Handler {
	var gzPool = sync.Pool{New: func() any {
		// Prefer best speed to reduce CPU usage since payloads are JSON
		w, _ := gzip.NewWriterLevel(io.Discard, gzip.BestSpeed)
		return w
	}}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			next.ServeHTTP(w, r)
			return
		}
		gz := gzPool.Get().(*gzip.Writer)
		gz.Reset(w)
		defer func() {
			_ = gz.Close()
			gz.Reset(io.Discard)
			gzPool.Put(gz)
		}()
		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Add("Vary", "Accept-Encoding")
		gw := gzipResponseWriter{ResponseWriter: w, Writer: gz}
		next.ServeHTTP(gw, r)
	})
}

type gzipResponseWriter struct {
	http.ResponseWriter
	Writer io.Writer
}

func (g gzipResponseWriter) Write(b []byte) (int, error) {
	return g.Writer.Write(b)
}

// recoverPanic protects handlers from panics.
func recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Printf("panic serving %s: %v", r.URL.Path, rec)
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
