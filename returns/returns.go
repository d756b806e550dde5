// Package returns builds the per-ticker return series with next-trading-day
// target columns.
package returns

import (
	"sectorflow/models"
)

// Build computes returns, signs and next-trading-day targets from a price
// series that contains trading days only.
//
// The next-day shift happens here, on the trading-day-only series, and
// nowhere else. Rows introduced later for calendar alignment (weekends,
// holidays) must never move this mapping; that positional-shift-after-join
// mistake is exactly what this pipeline exists to avoid.
//
// The input must be strictly ascending by date: an out-of-order row fails
// with UnsortedInputError, a repeated date with DuplicateDateError. Neither
// is repaired silently, both indicate an upstream defect.
func Build(ticker string, obs []models.PriceObservation) ([]models.ReturnRecord, error) {
	for i := 1; i < len(obs); i++ {
		prev := models.Day(obs[i-1].Date)
		cur := models.Day(obs[i].Date)
		if cur.Equal(prev) {
			return nil, &models.DuplicateDateError{Ticker: ticker, Date: cur}
		}
		if cur.Before(prev) {
			return nil, &models.UnsortedInputError{Ticker: ticker, Index: i}
		}
	}

	records := make([]models.ReturnRecord, len(obs))
	for i, o := range obs {
		r := models.ReturnRecord{
			Date:          models.Day(o.Date),
			Price:         o.Price,
			Return:        models.Missing(),
			Sign:          models.Missing(),
			ReturnNextDay: models.Missing(),
			SignNextDay:   models.Missing(),
		}
		if i > 0 {
			r.Return = o.Price/obs[i-1].Price - 1
			r.Sign = sign(r.Return)
		}
		records[i] = r
	}

	// Shift while the slice still holds trading days only.
	for i := 0; i < len(records)-1; i++ {
		records[i].ReturnNextDay = records[i+1].Return
		records[i].SignNextDay = records[i+1].Sign
	}
	return records, nil
}

// sign is the standard sign function extended to 0 at zero; missing input
// stays missing.
func sign(v float64) float64 {
	switch {
	case models.IsMissing(v):
		return models.Missing()
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
