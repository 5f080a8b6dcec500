package mission

import (
	"errors"
	"strings"
	"time"
)

const maxYearsAhead = 6

var (
	errDeadlineFormat = errors.New("must be a date (YYYY-MM-DD) or RFC3339 timestamp")
	errDeadlineRange  = errors.New("is outside the accepted year range")
	errDeadlinePast   = errors.New("must be in the future")
)

// ParseDeadline accepts "2006-01-02" or RFC3339 and requires a future instant
// whose year lies within [now.Year(), now.Year()+6].
func ParseDeadline(raw string, now time.Time) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		t, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			return time.Time{}, errDeadlineFormat
		}
	}
	t = t.UTC()
	if y := t.Year(); y < now.Year() || y > now.Year()+maxYearsAhead {
		return time.Time{}, errDeadlineRange
	}
	if !t.After(now) {
		return time.Time{}, errDeadlinePast
	}
	return t, nil
}
