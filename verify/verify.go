// Package verify validates the next-trading-day alignment of a produced
// daily dataset. It is the consumer-side contract check: every trading day's
// target must equal the actual return realized on the chronologically next
// trading day, however many calendar days sit in between.
package verify

import (
	"math"
	"time"

	"sectorflow/logger"
	"sectorflow/models"
)

// tolerance for comparing returns read back from CSV, where formatting may
// round the last digit.
const tolerance = 1e-9

// Mismatch is one violated alignment at a specific date.
type Mismatch struct {
	Date     time.Time
	NextDate time.Time
	Got      float64 // Return_next_day stored on Date's row
	Want     float64 // Return actually realized on NextDate
}

// Report summarizes an alignment scan.
type Report struct {
	Rows            int
	TradingDays     int
	NonTradingDays  int
	Checked         int
	WeekendGaps     int // successor more than one calendar day ahead
	HolidayGaps     int // successor more than three calendar days ahead
	MissingTargets  int // trading days with a successor but no stored target
	LastDayUnfilled bool
	Mismatches      []Mismatch
}

// OK reports whether the dataset satisfies the alignment contract.
func (r Report) OK() bool {
	return len(r.Mismatches) == 0 && r.MissingTargets == 0
}

// Alignment scans the daily rows and checks every trading day against its
// successor. The rows may contain non-trading filler days; those never take
// part in the shift check.
func Alignment(rows []models.MergedDailyRow) Report {
	report := Report{Rows: len(rows)}

	trading := make([]models.MergedDailyRow, 0, len(rows))
	for _, r := range rows {
		if models.IsMissing(r.Price) {
			report.NonTradingDays++
			continue
		}
		trading = append(trading, r)
	}
	report.TradingDays = len(trading)

	for i := 0; i < len(trading); i++ {
		cur := trading[i]
		if i == len(trading)-1 {
			report.LastDayUnfilled = models.IsMissing(cur.ReturnNextDay)
			break
		}
		next := trading[i+1]
		gap := int(next.Date.Sub(cur.Date).Hours() / 24)
		if gap > 1 {
			report.WeekendGaps++
		}
		if gap > 3 {
			report.HolidayGaps++
		}

		if models.IsMissing(next.Return) {
			// Successor's own return can be missing only if the successor is
			// the first trading day of the series, which cannot happen here.
			continue
		}
		if models.IsMissing(cur.ReturnNextDay) {
			report.MissingTargets++
			continue
		}
		report.Checked++
		if math.Abs(cur.ReturnNextDay-next.Return) > tolerance {
			report.Mismatches = append(report.Mismatches, Mismatch{
				Date:     cur.Date,
				NextDate: next.Date,
				Got:      cur.ReturnNextDay,
				Want:     next.Return,
			})
		}
	}
	return report
}

// Log writes the report through the standard logger, one error entry per
// mismatch.
func (r Report) Log(log *logger.Log) {
	entry := log.WithComponent("verifier").WithFields(logger.Fields{
		"rows":             r.Rows,
		"trading_days":     r.TradingDays,
		"non_trading_days": r.NonTradingDays,
		"checked":          r.Checked,
		"weekend_gaps":     r.WeekendGaps,
		"holiday_gaps":     r.HolidayGaps,
		"missing_targets":  r.MissingTargets,
	})
	if r.OK() {
		entry.Info("next-day alignment verified")
		return
	}
	entry.Error("next-day alignment violated")
	for _, m := range r.Mismatches {
		log.WithComponent("verifier").WithFields(logger.Fields{
			"date":      m.Date.Format("2006-01-02"),
			"next_date": m.NextDate.Format("2006-01-02"),
			"got":       m.Got,
			"want":      m.Want,
		}).Error("target does not match next trading day's return")
	}
}

// CountRoundTrip checks the weekend-aggregated bookkeeping: the folded
// headline count on each trading day must equal the number of raw sector
// headlines dated in (previous trading day, trading day]. Returns the first
// offending date, or the zero time when the counts reconcile.
func CountRoundTrip(daily []models.MergedDailyRow, table *models.HeadlineTable, sector string) (time.Time, bool) {
	raw := make(map[time.Time]int)
	for _, h := range table.Records {
		if h.TaggedTo(sector) {
			raw[models.Day(h.Date)]++
		}
	}

	prev := time.Time{}
	for _, row := range daily {
		if models.IsMissing(row.Price) {
			continue
		}
		want := 0
		for d := range raw {
			if (prev.IsZero() || d.After(prev)) && !d.After(row.Date) {
				want += raw[d]
			}
		}
		got := 0
		if !models.IsMissing(row.HeadlineCount) {
			got = int(row.HeadlineCount)
		}
		if got != want {
			return row.Date, false
		}
		prev = row.Date
	}
	return time.Time{}, true
}
