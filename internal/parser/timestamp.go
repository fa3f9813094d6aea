package parser

import (
	"math"
	"regexp"
	"strings"
	"time"
)

// Embedded-timestamp patterns, tried in order. The first is RFC3339-like
// with a mandatory zone designator, the second accepts a space separator
// and an optional fractional part with '.' or ','.
var timestampRegexps = []*regexp.Regexp{
	regexp.MustCompile(`\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:Z|[+-]\d{2}:?\d{2})`),
	regexp.MustCompile(`\d{4}-\d{2}-\d{2}[ T]\d{2}:\d{2}:\d{2}(?:[\.,]\d{1,6})?`),
}

var timestampLayouts = []string{
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999999-0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// ParseTimestamp parses an ISO-8601-like timestamp. A ',' fraction
// separator is accepted; zone-aware values are normalized to UTC.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.Replace(s, ",", ".", 1)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// guessTimestamp scans free text for an embedded timestamp. Only the first
// regexp match is considered; if it does not parse, the scan gives up
// rather than trying later matches.
func guessTimestamp(text string) *time.Time {
	for _, rx := range timestampRegexps {
		if m := rx.FindString(text); m != "" {
			if t, ok := ParseTimestamp(m); ok {
				return &t
			}
			return nil
		}
	}
	return nil
}

// fromEpoch converts a numeric timestamp to UTC. Values above 1e10 are
// taken as epoch milliseconds, everything else as epoch seconds.
func fromEpoch(v float64) time.Time {
	if v > 10_000_000_000 {
		v = v / 1000
	}
	sec, frac := math.Modf(v)
	return time.Unix(int64(sec), int64(math.Round(frac*1e9))).UTC()
}
