// Package merge joins per-ticker return series and per-sector sentiment
// aggregates onto a common date axis. The four dataset variants differ only
// along two orthogonal axes (weekend handling, embedding columns) and are all
// produced by one Merger.
package merge

import (
	"errors"
	"sort"
	"time"

	"sectorflow/calendar"
	"sectorflow/logger"
	"sectorflow/models"
	"sectorflow/sentiment"
)

// Merger builds the daily and headline-level datasets for one sector.
type Merger struct {
	cal *calendar.Calendar
	log *logger.Entry
}

// New returns a Merger bound to a trading calendar.
func New(cal *calendar.Calendar) *Merger {
	return &Merger{
		cal: cal,
		log: logger.GetLogger().WithComponent("merger"),
	}
}

// Options selects the alignment policy for a daily merge.
type Options struct {
	Sector       string
	Policy       models.AlignmentPolicy
	MinHeadlines int
}

// Daily merges a return series (trading days only, targets already shifted)
// with the sector's sentiment aggregates.
//
// Under the weekend-present policy the output keeps every calendar day that
// has either a price row or sector headlines; non-trading days carry
// sentiment with missing price fields. Under the weekend-aggregated policy
// every headline date is first remapped to its next trading day, so each
// trading day absorbs all sentiment published since the previous one, and
// the output contains trading days only.
//
// The next-day targets arrive pre-shifted and are copied through untouched:
// no row introduced here may move them.
func (m *Merger) Daily(records []models.ReturnRecord, table *models.HeadlineTable, opts Options) ([]models.MergedDailyRow, error) {
	if err := opts.Policy.Validate(); err != nil {
		return nil, err
	}

	aggOpts := sentiment.Options{
		Sector:         opts.Sector,
		MinHeadlines:   opts.MinHeadlines,
		WithEmbeddings: opts.Policy.WithEmbeddings,
	}
	if opts.Policy.Weekend == models.WeekendAggregated {
		aggOpts.Remap = m.foldForward(opts.Sector)
	}

	aggs, err := sentiment.Aggregate(table, aggOpts)
	if err != nil {
		return nil, err
	}

	byDate := make(map[time.Time]models.DailySectorAggregate, len(aggs))
	for _, a := range aggs {
		byDate[a.Date] = a
	}

	axis := m.dateAxis(records, aggs, opts.Policy.Weekend)
	returnsByDate := make(map[time.Time]models.ReturnRecord, len(records))
	for _, r := range records {
		returnsByDate[r.Date] = r
	}

	rows := make([]models.MergedDailyRow, 0, len(axis))
	for _, d := range axis {
		row := models.MergedDailyRow{
			Date:          d,
			IsTradingDay:  m.cal.IsTradingDay(d),
			Price:         models.Missing(),
			Return:        models.Missing(),
			Sign:          models.Missing(),
			ReturnNextDay: models.Missing(),
			SignNextDay:   models.Missing(),
			AvgPositive:   models.Missing(),
			AvgNeutral:    models.Missing(),
			AvgNegative:   models.Missing(),
			HeadlineCount: models.Missing(),
			SentIndex:     models.Missing(),
		}
		if r, ok := returnsByDate[d]; ok {
			row.Price = r.Price
			row.Return = r.Return
			row.Sign = r.Sign
			row.ReturnNextDay = r.ReturnNextDay
			row.SignNextDay = r.SignNextDay
		}
		if a, ok := byDate[d]; ok {
			row.AvgPositive = a.AvgPositive
			row.AvgNeutral = a.AvgNeutral
			row.AvgNegative = a.AvgNegative
			row.HeadlineCount = float64(a.Count)
			row.SentIndex = a.SentIndex
			row.AvgEmbedding = a.AvgEmbedding
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// dateAxis is the row set of the daily table: trading-day price rows plus,
// under weekend-present, every calendar day that produced an aggregate.
func (m *Merger) dateAxis(records []models.ReturnRecord, aggs []models.DailySectorAggregate, weekend models.WeekendPolicy) []time.Time {
	seen := make(map[time.Time]struct{}, len(records)+len(aggs))
	axis := make([]time.Time, 0, len(records)+len(aggs))
	add := func(d time.Time) {
		if _, ok := seen[d]; !ok {
			seen[d] = struct{}{}
			axis = append(axis, d)
		}
	}
	for _, r := range records {
		add(r.Date)
	}
	if weekend == models.WeekendPresent {
		for _, a := range aggs {
			add(a.Date)
		}
	}
	sort.Slice(axis, func(i, j int) bool { return axis[i].Before(axis[j]) })
	return axis
}

// foldForward remaps a headline date to its own next trading day. Headlines
// past the last trading day in the horizon have no row to fold into and are
// dropped; that loss is logged, not fatal.
func (m *Merger) foldForward(sector string) sentiment.RemapFunc {
	return func(d time.Time) (time.Time, bool, error) {
		td, err := m.cal.NextOnOrAfter(d)
		if err != nil {
			var gap *models.NoTradingDayFoundError
			if errors.As(err, &gap) {
				m.log.WithFields(logger.Fields{
					"sector": sector,
					"date":   d.Format("2006-01-02"),
				}).Debug("dropping headline past last trading day in horizon")
				return time.Time{}, false, nil
			}
			return time.Time{}, false, err
		}
		return td, true, nil
	}
}

// HeadlineLevel left-joins the daily table onto every sector-tagged headline
// by date, producing the headline-granularity dataset where each headline
// carries its day's price/return/sentiment context.
//
// The join direction is strictly one daily row to many headlines. Duplicate
// dates on the daily side would fan the join out into many-to-many, so they
// are rejected before merging.
func (m *Merger) HeadlineLevel(sector string, daily []models.MergedDailyRow, table *models.HeadlineTable) ([]models.HeadlineRow, error) {
	byDate := make(map[time.Time]*models.MergedDailyRow, len(daily))
	for i := range daily {
		d := daily[i].Date
		if _, dup := byDate[d]; dup {
			return nil, &models.MergeFanOutError{Sector: sector, Date: d, Rows: 2}
		}
		byDate[d] = &daily[i]
	}

	rows := make([]models.HeadlineRow, 0, len(table.Records))
	unmatched := 0
	for _, h := range table.Records {
		if !h.TaggedTo(sector) {
			continue
		}
		row := models.HeadlineRow{HeadlineRecord: h}
		if ctx, ok := byDate[models.Day(h.Date)]; ok {
			row.Context = ctx
		} else {
			unmatched++
		}
		rows = append(rows, row)
	}
	if unmatched > 0 {
		m.log.WithFields(logger.Fields{
			"sector":    sector,
			"headlines": unmatched,
		}).Debug("headlines without a daily context row")
	}
	return rows, nil
}
