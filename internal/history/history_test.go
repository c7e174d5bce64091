package history

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

type fakeKlines struct {
	dates  []string
	closes []float64
	err    error
}

func (f fakeKlines) Klines(_ context.Context, _ string, _ int) ([]string, []float64, error) {
	return f.dates, f.closes, f.err
}

var testTickers = map[string]string{
	"sh600519": "600519.SS",
	"hk03690":  "3690.HK",
	"gb_crcl":  "CRCL",
	"hf_GC":    "GC=F",
	"BTCUSDT":  "BTCUSDT",
}

func TestFetch_UnsupportedCode(t *testing.T) {
	f := New(Config{}, testTickers, fakeKlines{})
	s, err := f.Fetch(t.Context(), "liberty-cats")
	if !errors.Is(err, ErrUnsupported) {
		t.Fatalf("want ErrUnsupported, got %v", err)
	}
	if len(s.Dates) != 0 || len(s.Prices) != 0 {
		t.Fatalf("want empty series, got %+v", s)
	}
}

func TestFetch_DomesticKLine(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("symbol") != "sh600519" || r.URL.Query().Get("datalen") != "30" {
			t.Errorf("query: %s", r.URL.RawQuery)
		}
		fmt.Fprint(w, `[{"day":"2026-01-06","open":"1600.000","close":"1610.000"},{"day":"2026-01-07","open":"1612.000","close":"1625.500"}]`)
	}))
	defer srv.Close()

	f := New(Config{CNEndpoint: srv.URL}, testTickers, fakeKlines{})
	s, err := f.Fetch(t.Context(), "sh600519")
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Dates) != 2 || s.Dates[1] != "2026-01-07" {
		t.Fatalf("dates: %v", s.Dates)
	}
	if s.Prices[1] == nil || *s.Prices[1] != 1625.5 {
		t.Fatalf("prices: %v", s.Prices)
	}
}

func TestFetch_USJSONP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `var _crcl=([{"d":"2026-01-06","o":"80.0","c":"81.00"},{"d":"2026-01-07","o":"81.5","c":"83.23"}]);`)
	}))
	defer srv.Close()

	f := New(Config{USEndpoint: srv.URL + "/daily?var=%s&symbol=%s"}, testTickers, fakeKlines{})
	s, err := f.Fetch(t.Context(), "gb_crcl")
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Dates) != 2 || *s.Prices[1] != 83.23 {
		t.Fatalf("series: %+v", s)
	}
}

func TestFetch_FuturesJSONP_UnquotedKeys(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `var _GC=([{date:"2026-01-07",open:"4451.0",close:"4454.9"}]);`)
	}))
	defer srv.Close()

	f := New(Config{FuturesEndpoint: srv.URL + "/futures?var=%s&symbol=%s"}, testTickers, fakeKlines{})
	s, err := f.Fetch(t.Context(), "hf_GC")
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Dates) != 1 || *s.Prices[0] != 4454.9 {
		t.Fatalf("series: %+v", s)
	}
}

func TestFetch_EmptyJSONPBody_EmptySeriesNoError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `var _GC=([]);`)
	}))
	defer srv.Close()

	f := New(Config{FuturesEndpoint: srv.URL + "/futures?var=%s&symbol=%s"}, testTickers, fakeKlines{})
	s, err := f.Fetch(t.Context(), "hf_GC")
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Dates) != 0 || len(s.Prices) != 0 {
		t.Fatalf("want empty, got %+v", s)
	}
}

func TestFetch_Crypto(t *testing.T) {
	f := New(Config{}, testTickers, fakeKlines{
		dates:  []string{"2026-01-06", "2026-01-07"},
		closes: []float64{64000, 65000},
	})
	s, err := f.Fetch(t.Context(), "BTCUSDT")
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Dates) != 2 || *s.Prices[0] != 64000 {
		t.Fatalf("series: %+v", s)
	}
}

func TestFetch_ChartFallback_RetriesThenSucceeds(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			http.Error(w, "try later", http.StatusTooManyRequests)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"chart":{"result":[{"timestamp":[1767657600],"indicators":{"quote":[{"close":[119.8]}]}}]}}`)
	}))
	defer srv.Close()

	f := New(Config{ChartEndpoint: srv.URL}, testTickers, fakeKlines{})
	s, err := f.Fetch(t.Context(), "hk03690")
	if err != nil {
		t.Fatal(err)
	}
	if calls != 3 {
		t.Fatalf("want 3 attempts, got %d", calls)
	}
	if len(s.Dates) != 1 || s.Prices[0] == nil || *s.Prices[0] != 119.8 {
		t.Fatalf("series: %+v", s)
	}
}

func TestFetch_ChartFallback_NullCloseKept(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"chart":{"result":[{"timestamp":[1767657600,1767744000],"indicators":{"quote":[{"close":[119.8,null]}]}}]}}`)
	}))
	defer srv.Close()

	f := New(Config{ChartEndpoint: srv.URL}, testTickers, fakeKlines{})
	s, err := f.Fetch(t.Context(), "hk03690")
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Prices) != 2 || s.Prices[1] != nil {
		t.Fatalf("gap must stay null: %+v", s.Prices)
	}
}
