// Package cli implements the user-facing input grammars: dates (ISO 8601
// and relative forms), memory sizes (1024-based units with decimals), and
// did-you-mean suggestions for mistyped function names.
package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Date parsing errors.
var (
	ErrUnparsableDate   = errors.New("unparsable date")
	ErrInvalidDateRange = errors.New("start date is after end date")
)

// Relative unit lengths. Months and years use fixed day counts.
const (
	daysPerWeek   = 7
	daysPerMonth  = 30
	daysPerYear   = 365
	hoursPerDay   = 24
	relativeParts = 3
)

// isoLayouts are tried in order for absolute dates.
var isoLayouts = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseDate parses an ISO 8601 date (YYYY-MM-DD, with optional time and
// zone) or a relative form: "N <unit>[s] ago", "today", "yesterday",
// "tomorrow", "last week|month|year". Relative months are 30 days and
// years 365 days. The reference time for relative forms is now.
func ParseDate(input string, now time.Time) (time.Time, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return time.Time{}, fmt.Errorf("%w: empty input", ErrUnparsableDate)
	}

	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t.UTC(), nil
		}
	}

	if t, ok := parseNamedDate(trimmed, now); ok {
		return t, nil
	}

	if t, ok := parseAgo(trimmed, now); ok {
		return t, nil
	}

	return time.Time{}, fmt.Errorf("%w: %q", ErrUnparsableDate, input)
}

func parseNamedDate(input string, now time.Time) (time.Time, bool) {
	switch strings.ToLower(input) {
	case "today":
		return startOfDay(now), true
	case "yesterday":
		return startOfDay(now).AddDate(0, 0, -1), true
	case "tomorrow":
		return startOfDay(now).AddDate(0, 0, 1), true
	case "last week":
		return now.AddDate(0, 0, -daysPerWeek), true
	case "last month":
		return now.AddDate(0, 0, -daysPerMonth), true
	case "last year":
		return now.AddDate(0, 0, -daysPerYear), true
	default:
		return time.Time{}, false
	}
}

// parseAgo handles "N {second|minute|hour|day|week|month|year}s? ago".
func parseAgo(input string, now time.Time) (time.Time, bool) {
	fields := strings.Fields(strings.ToLower(input))
	if len(fields) != relativeParts || fields[2] != "ago" {
		return time.Time{}, false
	}

	n, err := strconv.Atoi(fields[0])
	if err != nil || n < 0 {
		return time.Time{}, false
	}

	unit := strings.TrimSuffix(fields[1], "s")

	var d time.Duration

	switch unit {
	case "second":
		d = time.Duration(n) * time.Second
	case "minute":
		d = time.Duration(n) * time.Minute
	case "hour":
		d = time.Duration(n) * time.Hour
	case "day":
		d = time.Duration(n) * hoursPerDay * time.Hour
	case "week":
		d = time.Duration(n) * daysPerWeek * hoursPerDay * time.Hour
	case "month":
		d = time.Duration(n) * daysPerMonth * hoursPerDay * time.Hour
	case "year":
		d = time.Duration(n) * daysPerYear * hoursPerDay * time.Hour
	default:
		return time.Time{}, false
	}

	return now.Add(-d), true
}

func startOfDay(t time.Time) time.Time {
	year, month, day := t.UTC().Date()

	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// ValidateDateRange parses both bounds and checks start ≤ end.
func ValidateDateRange(start, end string, now time.Time) (since, until time.Time, err error) {
	since, err = ParseDate(start, now)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	until, err = ParseDate(end, now)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	if since.After(until) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %s > %s", ErrInvalidDateRange, start, end)
	}

	return since, until, nil
}
