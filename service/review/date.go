package review

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Layouts tried in order. Offsets are parsed but the wall-clock date is kept as written.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05",
	"02/01/2006",
}

const (
	// millisThreshold separates Unix seconds from Unix milliseconds.
	millisThreshold = 1_000_000_000_000

	// Timestamps outside years 0001-9999 have no YYYY-MM-DD rendering.
	minUnixSeconds = -62_135_596_800
	maxUnixSeconds = 253_402_300_799
	maxUnixMillis  = maxUnixSeconds*1000 + 999
)

// NormalizeDate renders a server date as YYYY-MM-DD. Numeric input is a Unix timestamp
// (seconds, or milliseconds from 1e12 up) read in UTC. Anything unparseable yields "".
func NormalizeDate(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	if n, err := strconv.ParseFloat(raw, 64); err == nil && isNumeric(raw) {
		var t time.Time
		switch {
		case n < minUnixSeconds || n > maxUnixMillis:
			return ""
		case n >= millisThreshold:
			t = time.UnixMilli(int64(n)).UTC()
		case n > maxUnixSeconds:
			return ""
		default:
			t = time.Unix(int64(n), 0).UTC()
		}
		return formatDate(t.Year(), t.Month(), t.Day())
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return formatDate(t.Year(), t.Month(), t.Day())
		}
	}
	return ""
}

func formatDate(year int, month time.Month, day int) string {
	return fmt.Sprintf("%04d-%02d-%02d", year, int(month), day)
}

// isNumeric rejects forms ParseFloat accepts but a timestamp never uses (Inf, NaN, hex, exponents).
func isNumeric(s string) bool {
	for i, r := range s {
		if r == '-' && i == 0 {
			continue
		}
		if (r < '0' || r > '9') && r != '.' {
			return false
		}
	}
	return true
}
