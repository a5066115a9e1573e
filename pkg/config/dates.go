package config

import (
	"time"

	"github.com/ajitpratap0/adharvest/pkg/errors"
)

// DateRange is an inclusive range of calendar days
type DateRange struct {
	Start time.Time
	End   time.Time
}

const isoDate = "2006-01-02"

// ParseDateRange parses YYYY-MM-DD bounds. Empty bounds default to the day
// of now.
func ParseDateRange(start, end string, now time.Time) (DateRange, error) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	s, err := parseDay(start, today, "start")
	if err != nil {
		return DateRange{}, err
	}
	e, err := parseDay(end, today, "end")
	if err != nil {
		return DateRange{}, err
	}
	if s.After(e) {
		return DateRange{}, errors.New(errors.ErrorTypeValidation, "start date must not be after end date").
			WithDetail("start_date", start).
			WithDetail("end_date", end)
	}
	return DateRange{Start: s, End: e}, nil
}

func parseDay(value string, today time.Time, which string) (time.Time, error) {
	if value == "" {
		return today, nil
	}
	t, err := time.ParseInLocation(isoDate, value, today.Location())
	if err != nil {
		return time.Time{}, errors.Newf(errors.ErrorTypeValidation,
			"wrong %s date format %q, dates must be YYYY-MM-DD", which, value)
	}
	return t, nil
}
