package sina

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/encoding/simplifiedchinese"

	"marketboard/internal/httpx"
	"marketboard/internal/quote"
)

// Class is the positional layout family of a feed record. The feed is
// undocumented; layouts were established by inspecting live responses.
type Class int

const (
	ClassUnknown Class = iota
	ClassAShare
	ClassHKShare
	ClassUSShare
	ClassFutures
	ClassForex
)

// offsets are fixed field positions in the comma-split record.
// Unverified marks positions that were asserted by inspection only and never
// confirmed against vendor documentation; treat them as conventions, not
// gospel, and keep behavior unchanged if they look wrong.
type offsets struct {
	Price           int
	PrevClose       int
	MinFields       int
	PrevCloseIsHint bool // fall back to price when the field is absent/empty
	Unverified      bool
}

var fieldOffsets = map[Class]offsets{
	ClassAShare:  {Price: 3, PrevClose: 2, MinFields: 4},
	ClassHKShare: {Price: 6, PrevClose: 3, MinFields: 7},
	ClassUSShare: {Price: 1, PrevClose: 26, MinFields: 27, Unverified: true},
	ClassFutures: {Price: 0, PrevClose: 7, MinFields: 1, PrevCloseIsHint: true, Unverified: true},
	ClassForex:   {Price: 1, PrevClose: 3, MinFields: 2, PrevCloseIsHint: true, Unverified: true},
}

// Classify maps an asset code to its record layout by prefix.
func Classify(code string) Class {
	switch {
	case strings.HasPrefix(code, "sh"), strings.HasPrefix(code, "sz"):
		return ClassAShare
	case strings.HasPrefix(code, "hk"):
		return ClassHKShare
	case strings.HasPrefix(code, "gb_"):
		return ClassUSShare
	case strings.HasPrefix(code, "hf_"):
		return ClassFutures
	case strings.HasPrefix(code, "fx_"):
		return ClassForex
	}
	return ClassUnknown
}

type Config struct {
	Name     string
	Endpoint string // list endpoint; codes are appended comma-separated
	Referer  string // required by the feed or it answers empty
}

// Provider fetches the positional quote feed for a batch of asset codes.
type Provider struct {
	cfg    Config
	client *httpx.Client

	// coalesce concurrent identical batch fetches
	sf singleflight.Group
}

func New(cfg Config, hc *httpx.Client) *Provider {
	if cfg.Name == "" {
		cfg.Name = "SinaFeed"
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = "https://hq.sinajs.cn/list="
	}
	if cfg.Referer == "" {
		cfg.Referer = "https://finance.sina.com.cn/"
	}
	return &Provider{cfg: cfg, client: hc}
}

func (p *Provider) Name() string { return p.cfg.Name }

// Fetch returns normalized quotes for the requested codes in one batch call.
// A record that fails to parse is omitted; it never fails the batch.
func (p *Provider) Fetch(ctx context.Context, codes []string) (map[string]quote.Normalized, error) {
	if len(codes) == 0 {
		return map[string]quote.Normalized{}, nil
	}
	key := strings.Join(codes, ",")
	v, err, _ := p.sf.Do(key, func() (any, error) {
		// The flight may serve several coalesced callers; detach it from
		// the first caller's cancellation so one client disconnecting does
		// not fail the others.
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		raw, err := p.client.Get(callCtx, p.cfg.Endpoint+key, map[string]string{"Referer": p.cfg.Referer})
		if err != nil {
			return nil, err
		}
		// The feed is GB18030-encoded; splitting the raw bytes as UTF-8
		// mis-parses names silently, so decode first.
		text, err := simplifiedchinese.GB18030.NewDecoder().Bytes(raw)
		if err != nil {
			return nil, err
		}
		return Parse(string(text)), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(map[string]quote.Normalized), nil
}

// Parse extracts per-code quotes from a decoded feed body of the form
//
//	var hq_str_sh600519="贵州茅台,1602.00,1600.00,1625.50,...";
//
// one assignment per line.
func Parse(body string) map[string]quote.Normalized {
	out := make(map[string]quote.Normalized)
	for _, line := range strings.Split(body, "\n") {
		code, fields, ok := splitLine(line)
		if !ok {
			continue
		}
		n, ok := parseRecord(Classify(code), fields)
		if !ok {
			continue
		}
		out[code] = n
	}
	return out
}

const varPrefix = "var hq_str_"

func splitLine(line string) (code string, fields []string, ok bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, varPrefix) {
		return "", nil, false
	}
	rest := line[len(varPrefix):]
	code, data, found := strings.Cut(rest, "=")
	if !found {
		return "", nil, false
	}
	data = strings.Trim(strings.TrimSuffix(strings.TrimSpace(data), ";"), `"`)
	if data == "" {
		// unknown code: the feed answers with an empty assignment
		return "", nil, false
	}
	return code, strings.Split(data, ","), true
}

func parseRecord(class Class, fields []string) (quote.Normalized, bool) {
	off, ok := fieldOffsets[class]
	if !ok || len(fields) < off.MinFields {
		return quote.Normalized{}, false
	}
	price, err := decimal.NewFromString(strings.TrimSpace(fields[off.Price]))
	if err != nil {
		return quote.Normalized{}, false
	}
	prev := price
	if off.PrevCloseIsHint {
		// Prior-close position is uncertain for this class; default to the
		// current price (zero change) when the field is absent or empty.
		if off.PrevClose < len(fields) {
			if s := strings.TrimSpace(fields[off.PrevClose]); s != "" {
				if v, err := decimal.NewFromString(s); err == nil {
					prev = v
				}
			}
		}
	} else {
		prev, err = decimal.NewFromString(strings.TrimSpace(fields[off.PrevClose]))
		if err != nil {
			return quote.Normalized{}, false
		}
	}
	return quote.Normalized{Price: price, PrevClose: prev}, true
}
