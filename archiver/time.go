package archiver

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// wireTimeLayout is the appliance's query time format: RFC3339 truncated to
// milliseconds, always UTC.
const wireTimeLayout = "2006-01-02T15:04:05.000Z"

// FormatTime renders a time the way the appliance expects it in from/to/at
// query parameters.
func FormatTime(t time.Time) string {
	return t.UTC().Format(wireTimeLayout)
}

// naiveLayouts are accepted shapes without zone information, interpreted in
// the caller's location.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTime parses the time strings accepted on the CLI: RFC3339 with zone,
// naive ISO shapes down to date precision (interpreted in loc), "now", and
// relative phrases such as "90 secs ago" or "1 hour ago".
func ParseTime(s string, loc *time.Location) (time.Time, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return time.Time{}, fmt.Errorf("time string is empty")
	}
	if loc == nil {
		loc = time.Local
	}

	if strings.EqualFold(trimmed, "now") {
		return time.Now(), nil
	}
	if t, ok, err := parseRelative(trimmed); ok {
		return t, err
	}

	if t, err := time.Parse(time.RFC3339Nano, trimmed); err == nil {
		return t, nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, trimmed, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported time format %q", s)
}

// relativeUnits maps the accepted phrase units onto durations.
var relativeUnits = map[string]time.Duration{
	"second": time.Second, "seconds": time.Second, "sec": time.Second, "secs": time.Second,
	"minute": time.Minute, "minutes": time.Minute, "min": time.Minute, "mins": time.Minute,
	"hour": time.Hour, "hours": time.Hour,
	"day": 24 * time.Hour, "days": 24 * time.Hour,
	"week": 7 * 24 * time.Hour, "weeks": 7 * 24 * time.Hour,
}

// parseRelative handles "<n> <unit> ago". It reports ok when the string is
// shaped like a relative phrase, even if the phrase is malformed, so that the
// caller does not misread it as an absolute timestamp.
func parseRelative(s string) (time.Time, bool, error) {
	fields := strings.Fields(strings.ToLower(s))
	if len(fields) == 0 || fields[len(fields)-1] != "ago" {
		return time.Time{}, false, nil
	}
	if len(fields) != 3 {
		return time.Time{}, true, fmt.Errorf("relative time %q: want \"<n> <unit> ago\"", s)
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil || n < 0 {
		return time.Time{}, true, fmt.Errorf("relative time %q: bad count %q", s, fields[0])
	}
	unit, ok := relativeUnits[fields[1]]
	if !ok {
		return time.Time{}, true, fmt.Errorf("relative time %q: unknown unit %q", s, fields[1])
	}
	return time.Now().Add(-time.Duration(n) * unit), true, nil
}
