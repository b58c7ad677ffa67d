package core

import (
	"time"

	"github.com/pkg/errors"
)

const DateLayout = "2006-01-02"

var errInvalidDate = errors.New("invalid date")

var dateLayouts = []string{DateLayout, time.RFC3339Nano, time.RFC3339}

// ParseDate parses s as a calendar date (YYYY-MM-DD or RFC 3339) and returns it as midnight UTC.
func ParseDate(s string) (time.Time, error) {
	s = CleanString(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return TruncateDate(t), nil
		}
	}
	return time.Time{}, errors.Wrapf(errInvalidDate, "parsing %q", s)
}

// TruncateDate drops the time of day of t, keeping the date as seen in UTC.
func TruncateDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today returns the current UTC date.
func Today() time.Time {
	return TruncateDate(time.Now())
}
