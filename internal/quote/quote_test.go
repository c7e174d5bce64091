package quote

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestChangePct_ZeroPrevClose_NoDivisionError(t *testing.T) {
	n := Normalized{Price: dec("12.5"), PrevClose: decimal.Zero}
	if got := n.ChangePct(); !got.IsZero() {
		t.Fatalf("want 0, got %s", got)
	}
}

func TestChange_Basic(t *testing.T) {
	n := Normalized{Price: dec("1625.50"), PrevClose: dec("1600.00")}
	if got := n.Change(); !got.Equal(dec("25.50")) {
		t.Fatalf("change: want 25.50, got %s", got)
	}
	pct := n.ChangePct()
	if pct.StringFixed(2) != "1.59" {
		t.Fatalf("change_pct: want 1.59, got %s", pct.StringFixed(2))
	}
}

func TestColor_ZeroChangeIsGain(t *testing.T) {
	// Boundary: zero change must use the gain color, and the mapping is the
	// domestic red-up/green-down convention.
	if got := Color(decimal.Zero); got != ColorGain {
		t.Fatalf("zero change: want %q, got %q", ColorGain, got)
	}
	if got := Color(dec("-0.01")); got != ColorLoss {
		t.Fatalf("loss: want %q, got %q", ColorLoss, got)
	}
	if ColorGain != "red" || ColorLoss != "green" {
		t.Fatalf("color convention changed: gain=%q loss=%q", ColorGain, ColorLoss)
	}
}

func TestFromPrice_DefaultsPrevCloseToPrice(t *testing.T) {
	n := FromPrice(dec("42"))
	if !n.Change().IsZero() || !n.ChangePct().IsZero() {
		t.Fatalf("no-signal quote must report zero change: %+v", n)
	}
}

func TestFormatPrice(t *testing.T) {
	cases := []struct{ in, want string }{
		{"65000", "65,000.00"},
		{"1625.5", "1,625.50"},
		{"0.3", "0.30"},
		{"-12345.678", "-12,345.68"},
		{"999", "999.00"},
		{"1234567.89", "1,234,567.89"},
	}
	for _, c := range cases {
		if got := FormatPrice(dec(c.in)); got != c.want {
			t.Errorf("FormatPrice(%s) = %q, want %q", c.in, got, c.want)
		}
	}
}
