// Package schedule computes daemon run times from a list of daily clock
// times in a timezone, e.g. RUN_AT=06:00,18:30 with RUN_TIMEZONE=Europe/Rome.
package schedule

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
	// Embed tzdata for environments without zoneinfo.
	_ "time/tzdata"
)

const (
	minutesPerHour = 60
	maxHour        = 23
)

var (
	ErrTimeFormat     = errors.New("time must be HH:MM")
	ErrInvalidHour    = errors.New("invalid hour")
	ErrInvalidMinute  = errors.New("invalid minute")
	ErrHourOutOfRange = errors.New("hour out of range")
)

var timezoneAliases = map[string]string{
	"Asia/Nicosia": "Europe/Nicosia",
}

// Daily fires at the same clock times every day.
type Daily struct {
	loc     *time.Location
	minutes []int
}

// Parse builds a Daily from HH:MM values. Duplicates collapse; an empty
// timezone means UTC.
func Parse(times []string, timezone string) (*Daily, error) {
	loc, err := location(timezone)
	if err != nil {
		return nil, err
	}

	set := make(map[int]struct{}, len(times))

	for _, t := range times {
		if strings.TrimSpace(t) == "" {
			continue
		}

		m, err := parseTimeHM(t)
		if err != nil {
			return nil, fmt.Errorf("invalid run time %q: %w", t, err)
		}

		set[m] = struct{}{}
	}

	minutes := make([]int, 0, len(set))
	for m := range set {
		minutes = append(minutes, m)
	}

	sort.Ints(minutes)

	return &Daily{loc: loc, minutes: minutes}, nil
}

// IsEmpty reports whether no run time is configured.
func (d *Daily) IsEmpty() bool {
	return d == nil || len(d.minutes) == 0
}

// Next returns the first scheduled time strictly after after, or the zero
// time when the schedule is empty.
func (d *Daily) Next(after time.Time) time.Time {
	if d.IsEmpty() {
		return time.Time{}
	}

	local := after.In(d.loc)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, d.loc)

	// Two days always contain a candidate; a third covers DST gaps.
	for offset := 0; offset < 3; offset++ {
		date := day.AddDate(0, 0, offset)

		for _, m := range d.minutes {
			t := time.Date(date.Year(), date.Month(), date.Day(), m/minutesPerHour, m%minutesPerHour, 0, 0, d.loc)
			if t.After(after) {
				return t
			}
		}
	}

	return time.Time{}
}

func location(timezone string) (*time.Location, error) {
	timezone = strings.TrimSpace(timezone)
	if timezone == "" {
		return time.UTC, nil
	}

	if canonical, ok := timezoneAliases[timezone]; ok {
		timezone = canonical
	}

	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone: %w", err)
	}

	return loc, nil
}

func parseTimeHM(value string) (int, error) {
	normalized, err := NormalizeTimeHM(value)
	if err != nil {
		return 0, err
	}

	hour, _ := strconv.Atoi(normalized[:2])   //nolint:errcheck // validated above
	minute, _ := strconv.Atoi(normalized[3:]) //nolint:errcheck // validated above

	return hour*minutesPerHour + minute, nil
}

// NormalizeTimeHM accepts H:MM or HH:MM and returns HH:MM.
func NormalizeTimeHM(value string) (string, error) {
	value = strings.TrimSpace(value)

	parts := strings.Split(value, ":")
	if len(parts) != 2 || len(parts[1]) != 2 {
		return "", ErrTimeFormat
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return "", ErrInvalidHour
	}

	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", ErrInvalidMinute
	}

	if hour > maxHour || hour < 0 {
		return "", ErrHourOutOfRange
	}

	if minute < 0 || minute >= minutesPerHour {
		return "", ErrInvalidMinute
	}

	return fmt.Sprintf("%02d:%02d", hour, minute), nil
}
