package parsers

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ISODate is the canonical layout dates are normalized to before comparison
const ISODate = "2006-01-02"

// dateLayouts are tried in order. Non-padded day and month verbs accept one or
// two digits, so "4-3-2020" and "04-03-2020" parse alike.
var dateLayouts = []string{
	"2006-1-2",
	"2-1-2006",
	"1/2/2006",
	"2/1/2006",
	"2006/1/2",
	"2-Jan-2006",
	"2-January-2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"2 January 2006",
	"2006-1-2T15:04:05",
	"2006-1-2T15:04:05Z",
}

var dayMonthNameYear = regexp.MustCompile(`(?i)^(\d{1,2})[-/](\w{3,9})[-/](\d{4})`)

var monthPrefixes = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// ParseDate parses a free-form invoice date. The second return value is false
// when the input is blank, a null marker, or matches no known layout.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "null", "none":
		return time.Time{}, false
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return truncateToDay(t), true
		}
	}

	return parseDayMonthName(s)
}

// parseDayMonthName handles inputs like "4-Sept-2020" that no layout accepts,
// keying the month on its first three letters.
func parseDayMonthName(s string) (time.Time, bool) {
	m := dayMonthNameYear.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}

	day, err := strconv.Atoi(m[1])
	if err != nil {
		return time.Time{}, false
	}
	year, err := strconv.Atoi(m[3])
	if err != nil {
		return time.Time{}, false
	}
	name := strings.ToLower(m[2])
	if len(name) < 3 {
		return time.Time{}, false
	}
	month, ok := monthPrefixes[name[:3]]
	if !ok {
		return time.Time{}, false
	}

	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes 31-Feb into March; reject it instead.
	if t.Day() != day || t.Month() != month {
		return time.Time{}, false
	}
	return t, true
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// NormalizeDate returns the ISO form of a parseable date, the original string
// when it cannot be parsed, and nil for nil.
func NormalizeDate(v *string) *string {
	if v == nil {
		return nil
	}
	if t, ok := ParseDate(*v); ok {
		iso := t.Format(ISODate)
		return &iso
	}
	original := *v
	return &original
}

// NormalizeDateValue normalizes typed and untyped date values to comparable form.
func NormalizeDateValue(v interface{}) *string {
	switch d := v.(type) {
	case nil:
		return nil
	case time.Time:
		iso := d.Format(ISODate)
		return &iso
	case *time.Time:
		if d == nil {
			return nil
		}
		iso := d.Format(ISODate)
		return &iso
	case string:
		return NormalizeDate(&d)
	case *string:
		return NormalizeDate(d)
	default:
		return nil
	}
}
