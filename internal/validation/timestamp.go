package validation

import (
	"fmt"
	"strings"
	"time"
)

// DefaultTimestampLayouts are tried in order. RFC 3339 is the documented
// format; the others accept common shorthand typed on a command line.
var DefaultTimestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// TimestampParser converts caller supplied strings into UTC instants.
type TimestampParser struct {
	layouts []string
}

// NewTimestampParser creates a parser accepting the given layouts, or
// DefaultTimestampLayouts when none are supplied.
func NewTimestampParser(layouts ...string) *TimestampParser {
	if len(layouts) == 0 {
		layouts = DefaultTimestampLayouts
	}
	return &TimestampParser{layouts: layouts}
}

// Parse reads raw as a timestamp. A malformed value yields a single error
// naming fieldName and quoting the offending input.
func (p *TimestampParser) Parse(raw, fieldName string) Errorable[time.Time] {
	value := strings.TrimSpace(raw)
	if value != "" {
		for _, layout := range p.layouts {
			// Layouts without a zone are read as UTC.
			if t, err := time.Parse(layout, value); err == nil {
				return Success(t.UTC())
			}
		}
	}

	return Failure[time.Time](fmt.Sprintf(
		"%s: unable to parse %q as a timestamp (expected RFC 3339, e.g. %s)",
		fieldName, raw, time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC).Format(time.RFC3339)))
}

var defaultParser = NewTimestampParser()

// DefaultTimestampParser returns the shared parser for DefaultTimestampLayouts.
func DefaultTimestampParser() *TimestampParser {
	return defaultParser
}

// ParseTimestamp parses raw with the default layouts.
func ParseTimestamp(raw, fieldName string) Errorable[time.Time] {
	return defaultParser.Parse(raw, fieldName)
}
