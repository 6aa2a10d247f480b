package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"
)

// ReferenceTimezone pins "today" to the same wall-clock day for every caller.
const ReferenceTimezone = "America/Sao_Paulo"

const (
	dayLayout       = "02/01/2006"
	timestampLayout = "02/01/2006, 15:04:05"
	isoLayout       = "2006-01-02T15:04:05.000Z07:00"
)

// ErrInvalidDateRange is returned when the start date falls after the end date.
var ErrInvalidDateRange = errors.New("start date cannot be after end date")

var referenceLocation = mustLoadLocation(ReferenceTimezone)

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(fmt.Sprintf("load timezone %s: %v", name, err))
	}
	return loc
}

// ReferenceLocation returns the timezone used for day boundaries and formatting.
func ReferenceLocation() *time.Location {
	return referenceLocation
}

// DateRange is an inclusive range of days.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewDateRange builds a validated range.
func NewDateRange(start, end time.Time) (DateRange, error) {
	r := DateRange{Start: start, End: end}
	if err := r.Validate(); err != nil {
		return DateRange{}, err
	}
	return r, nil
}

// Validate rejects ranges whose end precedes their start.
func (r DateRange) Validate() error {
	if r.End.Before(r.Start) {
		return ErrInvalidDateRange
	}
	return nil
}

// Normalize widens the range to start-of-day / end-of-day in the reference timezone.
func (r DateRange) Normalize() DateRange {
	return DateRange{Start: StartOfDay(r.Start), End: EndOfDay(r.End)}
}

// Key renders the normalized range as "<startISO>:<endISO>" in UTC.
func (r DateRange) Key() string {
	n := r.Normalize()
	return n.Start.UTC().Format(isoLayout) + ":" + n.End.UTC().Format(isoLayout)
}

// StartOfDay returns midnight of t's day in the reference timezone.
func StartOfDay(t time.Time) time.Time {
	z := t.In(referenceLocation)
	return time.Date(z.Year(), z.Month(), z.Day(), 0, 0, 0, 0, referenceLocation)
}

// EndOfDay returns the last millisecond of t's day in the reference timezone.
func EndOfDay(t time.Time) time.Time {
	z := t.In(referenceLocation)
	return time.Date(z.Year(), z.Month(), z.Day(), 23, 59, 59, int(999*time.Millisecond), referenceLocation)
}

// FormatDay formats t as dd/MM/yyyy in the reference timezone.
func FormatDay(t time.Time) string {
	return t.In(referenceLocation).Format(dayLayout)
}

// FormatTimestamp formats t as "dd/MM/yyyy, HH:mm:ss" in the reference timezone.
func FormatTimestamp(t time.Time) string {
	return t.In(referenceLocation).Format(timestampLayout)
}

// ParseDate accepts a plain date (YYYY-MM-DD, read in the reference timezone)
// or a full RFC 3339 timestamp.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty date")
	}
	if t, err := time.ParseInLocation("2006-01-02", s, referenceLocation); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02T15:04:05", s, referenceLocation); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD or RFC 3339", s)
}
