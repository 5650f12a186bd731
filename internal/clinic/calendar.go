package clinic

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hackgods/vet-clinic-scheduling/internal/interval"
)

var (
	ErrInvalidHours    = errors.New("invalid business hours")
	ErrInvalidTimezone = errors.New("invalid clinic timezone")
)

const dateLayout = "2006-01-02"

// Location returns the clinic's time zone, falling back to UTC when the
// name is empty or unknown. Validate reports unknown names.
func (c *Clinic) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Validate checks the timezone and every opening window.
func (c *Clinic) Validate() error {
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidTimezone, c.Timezone)
		}
	}
	for day, windows := range c.Hours {
		for _, w := range windows {
			open, err := parseClock(w.Open)
			if err != nil {
				return fmt.Errorf("%w: %s open %q", ErrInvalidHours, day, w.Open)
			}
			closeAt, err := parseClock(w.Close)
			if err != nil {
				return fmt.Errorf("%w: %s close %q", ErrInvalidHours, day, w.Close)
			}
			if open >= closeAt {
				return fmt.Errorf("%w: %s %s-%s", ErrInvalidHours, day, w.Open, w.Close)
			}
		}
	}
	return nil
}

// LocalDate returns midnight of t's calendar day in the clinic's zone.
func (c *Clinic) LocalDate(t time.Time) time.Time {
	loc := c.Location()
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
}

// DayWindow is [local midnight, next local midnight) for the given date.
func (c *Clinic) DayWindow(date time.Time) interval.Interval {
	start := c.dayStart(date)
	return interval.New(start, time.Date(start.Year(), start.Month(), start.Day()+1, 0, 0, 0, 0, start.Location()))
}

// dayStart reads only the Y/M/D of date, as a day in the clinic's zone.
func (c *Clinic) dayStart(date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, c.Location())
}

// Holiday returns the holiday falling on date, if any.
func (c *Clinic) Holiday(date time.Time) (Holiday, bool) {
	key := date.Format(dateLayout)
	for _, h := range c.Holidays {
		if h.Date == key {
			return h, true
		}
	}
	return Holiday{}, false
}

// OpenIntervals resolves the weekly template for one calendar day into
// absolute intervals. Holidays are closed all day; OVERRIDE rules are applied
// later by the availability resolver.
func (c *Clinic) OpenIntervals(date time.Time) interval.Set {
	day := c.dayStart(date)
	if _, ok := c.Holiday(day); ok {
		return interval.Set{}
	}

	windows := c.Hours[day.Weekday()]
	ivs := make([]interval.Interval, 0, len(windows))
	for _, w := range windows {
		open, err := parseClock(w.Open)
		if err != nil {
			continue
		}
		closeAt, err := parseClock(w.Close)
		if err != nil {
			continue
		}
		ivs = append(ivs, interval.New(wallClock(day, open), wallClock(day, closeAt)))
	}
	return interval.Normalize(ivs...)
}

// OpenIntervalsBetween unions the calendar of every local day touched by window
// and clips the result to it.
func (c *Clinic) OpenIntervalsBetween(window interval.Interval) interval.Set {
	if !window.Valid() {
		return interval.Set{}
	}
	var out interval.Set
	day := c.LocalDate(window.Start)
	for day.Before(window.End) {
		out = interval.Union(out, c.OpenIntervals(day))
		day = time.Date(day.Year(), day.Month(), day.Day()+1, 0, 0, 0, 0, day.Location())
	}
	return out.Clip(window)
}

func (c *Clinic) IsOpenAt(t time.Time) bool {
	for _, iv := range c.OpenIntervals(c.LocalDate(t)) {
		if !t.Before(iv.Start) && t.Before(iv.End) {
			return true
		}
	}
	return false
}

// NextOpenTime returns t itself when the clinic is open, otherwise the start of
// the next opening window within two weeks. Zero time means none was found.
func (c *Clinic) NextOpenTime(t time.Time) time.Time {
	day := c.LocalDate(t)
	for i := 0; i < 14; i++ {
		for _, iv := range c.OpenIntervals(day) {
			if iv.End.After(t) {
				if iv.Start.After(t) {
					return iv.Start
				}
				return t
			}
		}
		day = time.Date(day.Year(), day.Month(), day.Day()+1, 0, 0, 0, 0, day.Location())
	}
	return time.Time{}
}

// parseClock converts "HH:MM" to minutes after midnight. "24:00" is allowed.
func parseClock(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("clock %q: want HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, err
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, err
	}
	if h == 24 && m == 0 {
		return 24 * 60, nil
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("clock %q out of range", s)
	}
	return h*60 + m, nil
}

func wallClock(day time.Time, minutes int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), 0, minutes, 0, 0, day.Location())
}
