// Package timeparsing resolves the --as-of flag value into an instant.
//
// Accepted forms, tried in order:
//  1. RFC3339 timestamp (2024-07-14T00:00:00Z)
//  2. Date only (2024-07-14, midnight UTC)
//  3. Compact duration relative to now (-2d, +6h, 1w)
//  4. Natural language (yesterday, last monday)
package timeparsing

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// compactDurationRe matches [+-]?(\d+)([hdwmy]), e.g. -2d, +6h, 1w.
var compactDurationRe = regexp.MustCompile(`^([+-]?)(\d+)([hdwmy])$`)

// ParseAsOf resolves an --as-of expression against now. An empty
// expression means now itself. The result is always UTC.
func ParseAsOf(expr string, now time.Time) (time.Time, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return now.UTC(), nil
	}

	if t, err := time.Parse(time.RFC3339, expr); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse("2006-01-02", expr); err == nil {
		return t.UTC(), nil
	}
	if isCompactDuration(expr) {
		return parseCompactDuration(expr, now)
	}
	if t, ok := parseNatural(expr, now); ok {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized time expression: %q", expr)
}

func isCompactDuration(s string) bool {
	return compactDurationRe.MatchString(s)
}

// parseCompactDuration shifts now by a signed amount of hours, days,
// weeks, months or years. No sign means forward.
func parseCompactDuration(s string, now time.Time) (time.Time, error) {
	matches := compactDurationRe.FindStringSubmatch(s)
	if matches == nil {
		return time.Time{}, fmt.Errorf("not a compact duration: %q", s)
	}

	amount, err := strconv.Atoi(matches[2])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid duration amount: %q", matches[2])
	}
	if matches[1] == "-" {
		amount = -amount
	}

	switch matches[3] {
	case "h":
		return now.Add(time.Duration(amount) * time.Hour).UTC(), nil
	case "d":
		return now.AddDate(0, 0, amount).UTC(), nil
	case "w":
		return now.AddDate(0, 0, amount*7).UTC(), nil
	case "m":
		return now.AddDate(0, amount, 0).UTC(), nil
	default:
		return now.AddDate(amount, 0, 0).UTC(), nil
	}
}

// parseNatural handles free-form expressions like "yesterday" or
// "last monday".
func parseNatural(s string, now time.Time) (time.Time, bool) {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)

	result, err := w.Parse(s, now)
	if err != nil || result == nil {
		return time.Time{}, false
	}
	return result.Time, true
}
