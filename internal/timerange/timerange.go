// Package timerange resolves symbolic chart ranges into concrete calendar
// date windows anchored to the dashboard's fixed timezone.
package timerange

import (
	"fmt"
	"strings"
	"time"
)

// RangeToken selects a historical window relative to today.
type RangeToken string

const (
	Range1D RangeToken = "1D"
	Range1W RangeToken = "1W"
	Range1M RangeToken = "1M"
	Range3M RangeToken = "3M"
	Range6M RangeToken = "6M"
	Range1Y RangeToken = "1Y"
)

// DefaultRange is the window boundaries fall back to when they choose to
// substitute rather than reject an unknown token.
const DefaultRange = Range1M

const dateLayout = "2006-01-02"

// Tokens lists every recognized range token in display order.
func Tokens() []RangeToken {
	return []RangeToken{Range1D, Range1W, Range1M, Range3M, Range6M, Range1Y}
}

// UnknownRangeError reports a range token outside the recognized set.
type UnknownRangeError struct {
	Token string
}

func (e *UnknownRangeError) Error() string {
	return fmt.Sprintf("unknown range token %q", e.Token)
}

// location is the fixed dashboard timezone. "Today" is always computed here,
// never in the host's local zone. Singapore has no DST, so the fixed-offset
// fallback is exact when tzdata is unavailable.
var location = loadLocation()

func loadLocation() *time.Location {
	loc, err := time.LoadLocation("Asia/Singapore")
	if err != nil {
		return time.FixedZone("SGT", 8*60*60)
	}
	return loc
}

// Window is an inclusive calendar-date span, ISO formatted.
type Window struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Parse normalizes a raw token string, rejecting anything outside the
// recognized set.
func Parse(raw string) (RangeToken, error) {
	token := RangeToken(strings.ToUpper(strings.TrimSpace(raw)))
	switch token {
	case Range1D, Range1W, Range1M, Range3M, Range6M, Range1Y:
		return token, nil
	}
	return "", &UnknownRangeError{Token: raw}
}

// Resolve maps a range token to the concrete [from, to] window where to is
// today's calendar date in the fixed timezone. Pure for a given (token, now)
// pair.
func Resolve(token RangeToken, now time.Time) (Window, error) {
	local := now.In(location)
	to := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, location)

	var from time.Time
	switch token {
	case Range1D:
		from = to.AddDate(0, 0, -1)
	case Range1W:
		from = to.AddDate(0, 0, -7)
	case Range1M:
		from = addMonths(to, -1)
	case Range3M:
		from = addMonths(to, -3)
	case Range6M:
		from = addMonths(to, -6)
	case Range1Y:
		from = addMonths(to, -12)
	default:
		return Window{}, &UnknownRangeError{Token: string(token)}
	}

	return Window{From: from.Format(dateLayout), To: to.Format(dateLayout)}, nil
}

// addMonths shifts by whole calendar months, clamping the day to the target
// month's last valid day (Mar 31 - 1M = Feb 28/29) instead of letting the
// overflow spill into the next month like time.AddDate does.
func addMonths(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	anchor := time.Date(year, month+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	if last := daysIn(anchor.Year(), anchor.Month()); day > last {
		day = last
	}
	return time.Date(anchor.Year(), anchor.Month(), day, 0, 0, 0, 0, t.Location())
}

// daysIn returns the number of days in the given month.
func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
