package transcript

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	markerAM = "오전"
	markerPM = "오후"
)

// KST is the zone KakaoTalk exports are written in.
var KST = time.FixedZone("KST", 9*60*60)

var (
	ErrInvalidMarker = errors.New("transcript: invalid am/pm marker")
	ErrInvalidClock  = errors.New("transcript: invalid clock time")
	ErrInvalidDate   = errors.New("transcript: invalid calendar date")
)

// Date is a calendar day without a time component.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate validates y/m/d and rejects days the calendar does not have.
func NewDate(year, month, day int) (Date, error) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return Date{}, fmt.Errorf("%w: %04d-%02d-%02d", ErrInvalidDate, year, month, day)
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || t.Month() != time.Month(month) || t.Day() != day {
		return Date{}, fmt.Errorf("%w: %04d-%02d-%02d", ErrInvalidDate, year, month, day)
	}
	return Date{Year: year, Month: time.Month(month), Day: day}, nil
}

// DateOf returns the calendar day of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

func (d Date) IsZero() bool {
	return d == Date{}
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// ClockHour converts a 12-hour Korean clock hour to 0-23.
// 오전 12 is midnight and 오후 12 is noon.
func ClockHour(marker string, hour int) (int, error) {
	if hour < 1 || hour > 12 {
		return 0, fmt.Errorf("%w: hour %d", ErrInvalidClock, hour)
	}
	switch strings.TrimSpace(marker) {
	case markerAM:
		if hour == 12 {
			return 0, nil
		}
		return hour, nil
	case markerPM:
		if hour == 12 {
			return 12, nil
		}
		return hour + 12, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidMarker, marker)
	}
}

// ParseClock parses "H:mm" under a Korean am/pm marker into a 24-hour clock.
func ParseClock(marker, clock string) (hour, minute int, err error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(clock), ":")
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidClock, clock)
	}
	h, err := strconv.Atoi(hh)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidClock, clock)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || len(mm) != 2 || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidClock, clock)
	}
	h, err = ClockHour(marker, h)
	if err != nil {
		return 0, 0, err
	}
	return h, m, nil
}

// Normalizer turns export date and clock fragments into absolute timestamps.
type Normalizer struct {
	loc *time.Location
}

// NewNormalizer builds a normalizer for loc; nil means KST.
func NewNormalizer(loc *time.Location) Normalizer {
	if loc == nil {
		loc = KST
	}
	return Normalizer{loc: loc}
}

func (n Normalizer) location() *time.Location {
	if n.loc == nil {
		return KST
	}
	return n.loc
}

// At combines a calendar day with a marker and "H:mm" clock.
func (n Normalizer) At(day Date, marker, clock string) (time.Time, error) {
	if day.IsZero() {
		return time.Time{}, fmt.Errorf("%w: no date", ErrInvalidDate)
	}
	h, m, err := ParseClock(marker, clock)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year, day.Month, day.Day, h, m, 0, 0, n.location()), nil
}

// KoreanDate parses numeric year, month and day captures such as "2024", "1", "5".
func KoreanDate(year, month, day string) (Date, error) {
	y, err := strconv.Atoi(year)
	if err != nil {
		return Date{}, fmt.Errorf("%w: year %q", ErrInvalidDate, year)
	}
	m, err := strconv.Atoi(month)
	if err != nil {
		return Date{}, fmt.Errorf("%w: month %q", ErrInvalidDate, month)
	}
	d, err := strconv.Atoi(day)
	if err != nil {
		return Date{}, fmt.Errorf("%w: day %q", ErrInvalidDate, day)
	}
	return NewDate(y, m, d)
}
