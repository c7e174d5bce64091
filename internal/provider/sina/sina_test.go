package sina

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/text/encoding/simplifiedchinese"

	"marketboard/internal/httpx"
)

func fields(n int, set map[int]string) string {
	fs := make([]string, n)
	for i := range fs {
		fs[i] = "0"
	}
	for i, v := range set {
		fs[i] = v
	}
	return strings.Join(fs, ",")
}

func TestParse_AShare(t *testing.T) {
	body := `var hq_str_sh600519="贵州茅台,1602.00,1600.00,1625.50,1630.00,1598.00";`
	out := Parse(body)
	n, ok := out["sh600519"]
	if !ok {
		t.Fatalf("sh600519 missing: %+v", out)
	}
	if n.Price.String() != "1625.5" || n.PrevClose.String() != "1600" {
		t.Fatalf("unexpected quote: price=%s prev=%s", n.Price, n.PrevClose)
	}
	if n.Change().StringFixed(2) != "25.50" || n.ChangePct().StringFixed(2) != "1.59" {
		t.Fatalf("change=%s pct=%s", n.Change(), n.ChangePct())
	}
}

func TestParse_HKShare(t *testing.T) {
	body := `var hq_str_hk03690="MEITUAN,美团,120.0,118.50,122.0,117.0,119.80,1.3";`
	n, ok := Parse(body)["hk03690"]
	if !ok {
		t.Fatal("hk03690 missing")
	}
	// price at index 6, prev close at index 3
	if n.Price.String() != "119.8" || n.PrevClose.String() != "118.5" {
		t.Fatalf("price=%s prev=%s", n.Price, n.PrevClose)
	}
}

func TestParse_USShare(t *testing.T) {
	set := map[int]string{1: "83.23", 26: "80.00"}
	body := `var hq_str_gb_crcl="` + fields(28, set) + `";`
	n, ok := Parse(body)["gb_crcl"]
	if !ok {
		t.Fatal("gb_crcl missing")
	}
	if n.Price.String() != "83.23" || n.PrevClose.String() != "80" {
		t.Fatalf("price=%s prev=%s", n.Price, n.PrevClose)
	}
}

func TestParse_Futures_EmptyPrevCloseFallsBackToPrice(t *testing.T) {
	body := `var hq_str_hf_GC="4454.9, ,4456.3,4456.6,4440.0,4450.1,22:52:54, ";`
	n, ok := Parse(body)["hf_GC"]
	if !ok {
		t.Fatal("hf_GC missing")
	}
	if n.Price.String() != "4454.9" {
		t.Fatalf("price=%s", n.Price)
	}
	// index 7 is blank -> zero change by design
	if !n.Change().IsZero() {
		t.Fatalf("want zero change, got %s", n.Change())
	}
}

func TestParse_Futures_PrevClosePresent(t *testing.T) {
	body := `var hq_str_hf_SI="52.10,x,x,x,x,x,x,51.80";`
	n, ok := Parse(body)["hf_SI"]
	if !ok {
		t.Fatal("hf_SI missing")
	}
	if n.PrevClose.String() != "51.8" {
		t.Fatalf("prev=%s", n.PrevClose)
	}
}

func TestParse_Forex_MissingPrevCloseFallsBackToPrice(t *testing.T) {
	body := `var hq_str_fx_susdcny="22:52:54,6.9932";`
	n, ok := Parse(body)["fx_susdcny"]
	if !ok {
		t.Fatal("fx_susdcny missing")
	}
	if n.Price.String() != "6.9932" || !n.Change().IsZero() {
		t.Fatalf("price=%s change=%s", n.Price, n.Change())
	}
}

func TestParse_ShortRecordOmitted(t *testing.T) {
	cases := map[string]string{
		"a-share too short": `var hq_str_sh600519="x,1.0,2.0";`,
		"hk too short":      `var hq_str_hk03690="a,b,c,1.0,2.0,3.0";`,
		"us too short":      `var hq_str_gb_crcl="` + fields(26, map[int]string{1: "83.23"}) + `";`,
		"empty assignment":  `var hq_str_sh999999="";`,
		"bad number":        `var hq_str_sh600519="x,y,abc,def";`,
	}
	for name, body := range cases {
		if out := Parse(body); len(out) != 0 {
			t.Errorf("%s: want empty result, got %+v", name, out)
		}
	}
}

func TestParse_OneBadLineDoesNotBlockOthers(t *testing.T) {
	body := `var hq_str_sh600519="x,1602.00,1600.00,1625.50";` + "\n" +
		`var hq_str_hk03690="garbage";` + "\n" +
		`var hq_str_fx_susdcny="22:52:54,6.9932,6.9950,7.0001";`
	out := Parse(body)
	if len(out) != 2 {
		t.Fatalf("want 2 parsed, got %d: %+v", len(out), out)
	}
	if out["fx_susdcny"].PrevClose.String() != "7.0001" {
		t.Fatalf("forex prev=%s", out["fx_susdcny"].PrevClose)
	}
}

func TestClassify(t *testing.T) {
	cases := map[string]Class{
		"sh600519":   ClassAShare,
		"sz000001":   ClassAShare,
		"hk01024":    ClassHKShare,
		"gb_crcl":    ClassUSShare,
		"hf_GC":      ClassFutures,
		"fx_susdcny": ClassForex,
		"BTCUSDT":    ClassUnknown,
	}
	for code, want := range cases {
		if got := Classify(code); got != want {
			t.Errorf("Classify(%s) = %v, want %v", code, got, want)
		}
	}
}

func TestFetch_DecodesGB18030(t *testing.T) {
	plain := `var hq_str_sh600519="贵州茅台,1602.00,1600.00,1625.50";` + "\n"
	encoded, err := simplifiedchinese.GB18030.NewEncoder().Bytes([]byte(plain))
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Referer") == "" {
			t.Error("missing Referer header")
		}
		w.Header().Set("Content-Type", "application/javascript; charset=GB18030")
		_, _ = w.Write(encoded)
	}))
	defer srv.Close()

	p := New(Config{Endpoint: srv.URL + "/list="}, httpx.New(2*time.Second))
	out, err := p.Fetch(t.Context(), []string{"sh600519"})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	n, ok := out["sh600519"]
	if !ok || n.Price.String() != "1625.5" {
		t.Fatalf("unexpected result: %+v", out)
	}
}

// A coalesced flight outlives the caller that started it: cancelling one
// request's context must not fail the batch for the others.
func TestFetch_DetachedFromCallerCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`var hq_str_sh600519="X,1602.00,1600.00,1625.50";` + "\n"))
	}))
	defer srv.Close()

	p := New(Config{Endpoint: srv.URL + "/list="}, httpx.New(2*time.Second))
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	out, err := p.Fetch(ctx, []string{"sh600519"})
	if err != nil {
		t.Fatalf("fetch with cancelled caller context: %v", err)
	}
	if _, ok := out["sh600519"]; !ok {
		t.Fatalf("unexpected result: %+v", out)
	}
}

func TestFetch_UpstreamErrorReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	p := New(Config{Endpoint: srv.URL + "/list="}, httpx.New(2*time.Second))
	if _, err := p.Fetch(t.Context(), []string{"sh600519"}); err == nil {
		t.Fatal("want error on non-200")
	}
}
