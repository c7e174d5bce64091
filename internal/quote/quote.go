package quote

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Display colors follow the domestic convention: red marks a gain (zero
// included), green a loss. This is inverted from the Western mapping and is
// deliberate; do not "fix" it.
const (
	ColorGain = "red"
	ColorLoss = "green"
	ColorNone = "black"
)

// Normalized is the canonical per-asset shape every source is mapped into.
// PrevClose defaults to Price when the upstream exposes no prior close;
// the display layer treats that as a defined zero-change state, not an error.
type Normalized struct {
	Price      decimal.Decimal
	PrevClose  decimal.Decimal
	Currency   string // optional hint, e.g. "POL" for an unconverted NFT floor
	IsEstimate bool   // true when the value is a hardcoded last-known fallback
}

// FromPrice builds a quote with no prior-close signal.
func FromPrice(price decimal.Decimal) Normalized {
	return Normalized{Price: price, PrevClose: price}
}

func (n Normalized) Change() decimal.Decimal {
	return n.Price.Sub(n.PrevClose)
}

// ChangePct is the day-over-day change in percent, exactly zero when the
// prior close is zero.
func (n Normalized) ChangePct() decimal.Decimal {
	if n.PrevClose.IsZero() {
		return decimal.Zero
	}
	return n.Change().Div(n.PrevClose).Mul(decimal.NewFromInt(100))
}

// Color maps a change to its display color. Zero counts as a gain.
func Color(change decimal.Decimal) string {
	if change.Sign() >= 0 {
		return ColorGain
	}
	return ColorLoss
}

// FormatPrice renders a price with thousands separators and two decimals,
// matching the dashboard's display convention.
func FormatPrice(v decimal.Decimal) string {
	s := v.StringFixed(2)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	intPart, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := b.String() + "." + frac
	if neg {
		out = "-" + out
	}
	return out
}
