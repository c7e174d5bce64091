package board

import (
	"strings"

	"marketboard/internal/quote"
)

// Asset is one row of the dashboard's ordered asset table. Source selects
// which fetch result the code is looked up in.
type Asset struct {
	Name   string `json:"name"`
	Code   string `json:"code"`
	Source string `json:"source"` // "feed" | "crypto" | "nft"
	Suffix string `json:"suffix"` // display currency suffix, e.g. " USD"
}

const (
	SourceFeed   = "feed"
	SourceCrypto = "crypto"
	SourceNFT    = "nft"
)

// Record is the presentation-only shape served to the dashboard. It is
// produced fresh on every request and has no identity beyond the response.
type Record struct {
	Name      string `json:"name"`
	Code      string `json:"code"`
	Price     string `json:"price"`
	Change    string `json:"change"`
	ChangePct string `json:"change_pct"`
	Color     string `json:"color"`
}

// Quotes groups the per-source normalized quotes for one build pass.
type Quotes struct {
	Feed   map[string]quote.Normalized
	Crypto map[string]quote.Normalized
	NFT    map[string]quote.Normalized
}

// Build maps the asset table to display records. A missing quote yields an
// "N/A" placeholder rather than dropping the row, so one source failing never
// blanks the board.
//
// NFT floors arrive denominated in the chain's native token; they are
// converted to the stablecoin valuation by multiplying with the token's own
// crypto quote (convertSymbol). When that quote is unavailable the floor
// passes through unconverted and the native-token suffix is shown instead.
func Build(assets []Asset, q Quotes, convertSymbol, nativeToken string) []Record {
	out := make([]Record, 0, len(assets))
	for _, a := range assets {
		n, ok := lookup(a, q)
		if !ok {
			out = append(out, Record{
				Name: a.Name, Code: a.Code,
				Price: "N/A", Change: "0", ChangePct: "0%",
				Color: quote.ColorNone,
			})
			continue
		}

		suffix := a.Suffix
		if a.Source == SourceNFT && n.Currency == nativeToken {
			if tok, found := q.Crypto[convertSymbol]; found {
				n.Price = n.Price.Mul(tok.Price)
				n.PrevClose = n.PrevClose.Mul(tok.Price)
			} else {
				suffix = " " + nativeToken
			}
		}

		name := a.Name
		if n.IsEstimate {
			name += " (Est.)"
		}

		change := n.Change()
		out = append(out, Record{
			Name:      name,
			Code:      a.Code,
			Price:     quote.FormatPrice(n.Price) + suffix,
			Change:    change.StringFixed(2),
			ChangePct: n.ChangePct().StringFixed(2) + "%",
			Color:     quote.Color(change),
		})
	}
	return out
}

func lookup(a Asset, q Quotes) (quote.Normalized, bool) {
	var m map[string]quote.Normalized
	switch strings.ToLower(a.Source) {
	case SourceFeed:
		m = q.Feed
	case SourceCrypto:
		m = q.Crypto
	case SourceNFT:
		m = q.NFT
	default:
		return quote.Normalized{}, false
	}
	n, ok := m[a.Code]
	return n, ok
}
