// Package jsonp parses the JSONP-wrapped K-line feeds. The bodies are not
// valid JSON: they are variable assignments wrapping an array whose object
// keys are inconsistently quoted (sometimes "date", sometimes date), so a
// strict parse is pointless. Instead the array body is sliced out of the
// wrapper and date/close pairs are pattern-matched directly.
package jsonp

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// Extract returns the array body between the first "([" and the last "])"
// of a JSONP wrapper. ok is false when no wrapper is present.
func Extract(body string) (inner string, ok bool) {
	start := strings.Index(body, "([")
	if start < 0 {
		return "", false
	}
	end := strings.LastIndex(body, "])")
	if end < 0 || end <= start {
		return "", false
	}
	// keep the brackets: [ ... ]
	return body[start+1 : end+1], true
}

// Point is one (date, close) sample of a K-line series.
type Point struct {
	Date  string
	Close float64
}

var (
	reMu    sync.Mutex
	reCache = map[string]*regexp.Regexp{}
)

// pairRegexp matches a date value followed by a close value within one
// object, tolerating quoted and unquoted keys and quoted or bare numbers.
func pairRegexp(dateKey, closeKey string) *regexp.Regexp {
	key := dateKey + "\x00" + closeKey
	reMu.Lock()
	defer reMu.Unlock()
	if re, ok := reCache[key]; ok {
		return re
	}
	expr := fmt.Sprintf(`"?%s"?\s*:\s*"?(\d{4}-\d{2}-\d{2})"?[^{}]*?"?%s"?\s*:\s*"?(-?[0-9.]+)"?`,
		regexp.QuoteMeta(dateKey), regexp.QuoteMeta(closeKey))
	re := regexp.MustCompile(expr)
	reCache[key] = re
	return re
}

// Points scans an extracted array body for (dateKey, closeKey) pairs and
// keeps the most recent n, oldest-to-newest order preserved. Pairs with an
// unparseable close are skipped.
func Points(inner, dateKey, closeKey string, n int) []Point {
	matches := pairRegexp(dateKey, closeKey).FindAllStringSubmatch(inner, -1)
	out := make([]Point, 0, len(matches))
	for _, m := range matches {
		c, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			continue
		}
		out = append(out, Point{Date: m[1], Close: c})
	}
	if n > 0 && len(out) > n {
		out = out[len(out)-n:]
	}
	return out
}

// Series extracts the wrapper and scans it in one step. A body with no
// recognizable wrapper yields an empty series, never an error.
func Series(body, dateKey, closeKey string, n int) []Point {
	inner, ok := Extract(body)
	if !ok {
		return nil
	}
	return Points(inner, dateKey, closeKey, n)
}
