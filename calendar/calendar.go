// Package calendar resolves NYSE trading days from the official holiday
// schedule. The calendar is authoritative for alignment decisions: trading
// days are never inferred from the presence or absence of price rows, which
// can have gaps of their own.
package calendar

import (
	"fmt"
	"time"

	"sectorflow/models"
)

// Calendar holds the ordered set of trading days over a loaded horizon.
type Calendar struct {
	start time.Time
	end   time.Time
	days  []time.Time
	index map[time.Time]int
}

// New builds a calendar covering [start, end] inclusive, both normalized to
// midnight UTC.
func New(start, end time.Time) (*Calendar, error) {
	start = models.Day(start)
	end = models.Day(end)
	if end.Before(start) {
		return nil, fmt.Errorf("calendar horizon end %s before start %s",
			end.Format("2006-01-02"), start.Format("2006-01-02"))
	}

	c := &Calendar{
		start: start,
		end:   end,
		index: make(map[time.Time]int),
	}
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if isOpen(d) {
			c.index[d] = len(c.days)
			c.days = append(c.days, d)
		}
	}
	return c, nil
}

// Horizon returns the loaded [start, end] range.
func (c *Calendar) Horizon() (time.Time, time.Time) {
	return c.start, c.end
}

// TradingDays returns the ordered trading days within [start, end],
// restricted to the loaded horizon.
func (c *Calendar) TradingDays(start, end time.Time) []time.Time {
	start = models.Day(start)
	end = models.Day(end)
	out := make([]time.Time, 0, len(c.days))
	for _, d := range c.days {
		if d.Before(start) {
			continue
		}
		if d.After(end) {
			break
		}
		out = append(out, d)
	}
	return out
}

// IsTradingDay reports whether the exchange is open on d.
func (c *Calendar) IsTradingDay(d time.Time) bool {
	_, ok := c.index[models.Day(d)]
	return ok
}

// NextTradingDay returns the earliest trading day strictly after d. It fails
// with NoTradingDayFoundError when the horizon is exhausted; callers must
// widen the horizon rather than receive a silent wrong answer.
func (c *Calendar) NextTradingDay(d time.Time) (time.Time, error) {
	d = models.Day(d)
	return c.next(d.AddDate(0, 0, 1), d)
}

// NextOnOrAfter returns d itself when d is a trading day, otherwise the next
// trading day after it. This is the remap used by the weekend-aggregated
// policy: weekend and holiday headlines fold forward, trading-day headlines
// stay put.
func (c *Calendar) NextOnOrAfter(d time.Time) (time.Time, error) {
	d = models.Day(d)
	return c.next(d, d)
}

func (c *Calendar) next(from, query time.Time) (time.Time, error) {
	for d := from; !d.After(c.end); d = d.AddDate(0, 0, 1) {
		if i, ok := c.index[d]; ok {
			return c.days[i], nil
		}
	}
	return time.Time{}, &models.NoTradingDayFoundError{After: query, Horizon: c.end}
}

// isOpen applies the NYSE schedule: weekends closed, scheduled holidays
// closed, plus the ad-hoc full-day closures.
func isOpen(d time.Time) bool {
	switch d.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	if _, closed := adHocClosures[d.Format("2006-01-02")]; closed {
		return false
	}
	return !isHoliday(d)
}

// adHocClosures lists unscheduled full-day closures (national mourning,
// weather) inside the range of years this pipeline handles.
var adHocClosures = map[string]string{
	"2001-09-11": "September 11 attacks",
	"2001-09-12": "September 11 attacks",
	"2001-09-13": "September 11 attacks",
	"2001-09-14": "September 11 attacks",
	"2012-10-29": "Hurricane Sandy",
	"2012-10-30": "Hurricane Sandy",
	"2018-12-05": "National day of mourning for George H. W. Bush",
	"2025-01-09": "National day of mourning for Jimmy Carter",
}

func isHoliday(d time.Time) bool {
	y := d.Year()
	for _, h := range holidaysForYear(y) {
		if d.Equal(h) {
			return true
		}
	}
	return false
}

func holidaysForYear(y int) []time.Time {
	hs := []time.Time{
		observed(date(y, time.January, 1)),       // New Year's Day
		nthWeekday(y, time.January, time.Monday, 3),  // Martin Luther King Jr. Day
		nthWeekday(y, time.February, time.Monday, 3), // Washington's Birthday
		goodFriday(y),
		lastWeekday(y, time.May, time.Monday), // Memorial Day
		observed(date(y, time.July, 4)),       // Independence Day
		nthWeekday(y, time.September, time.Monday, 1),   // Labor Day
		nthWeekday(y, time.November, time.Thursday, 4),  // Thanksgiving
		observed(date(y, time.December, 25)),            // Christmas
	}
	if y >= 2022 {
		hs = append(hs, observed(date(y, time.June, 19))) // Juneteenth
	}
	return hs
}

// observed shifts a fixed-date holiday to Friday when it falls on Saturday
// and to Monday when it falls on Sunday. When New Year's Day observance would
// land in the prior year the exchange does not observe it at all; the shifted
// date is still returned and simply never matches a date in year y.
func observed(d time.Time) time.Time {
	switch d.Weekday() {
	case time.Saturday:
		return d.AddDate(0, 0, -1)
	case time.Sunday:
		return d.AddDate(0, 0, 1)
	}
	return d
}

func date(y int, m time.Month, day int) time.Time {
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

// nthWeekday returns the n-th given weekday of a month.
func nthWeekday(y int, m time.Month, w time.Weekday, n int) time.Time {
	d := date(y, m, 1)
	for d.Weekday() != w {
		d = d.AddDate(0, 0, 1)
	}
	return d.AddDate(0, 0, 7*(n-1))
}

// lastWeekday returns the last given weekday of a month.
func lastWeekday(y int, m time.Month, w time.Weekday) time.Time {
	d := date(y, m+1, 1).AddDate(0, 0, -1)
	for d.Weekday() != w {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// goodFriday is two days before Easter Sunday, via the anonymous Gregorian
// computus.
func goodFriday(y int) time.Time {
	a := y % 19
	b := y / 100
	c := y % 100
	dd := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - dd - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return date(y, time.Month(month), day).AddDate(0, 0, -2)
}
