// Package sentiment aggregates headline-level FinBERT scores into one row per
// calendar day per sector.
package sentiment

import (
	"sort"
	"time"

	"sectorflow/models"
)

// RemapFunc rewrites a headline's date before grouping. Returning ok=false
// drops the headline (used for headlines past the final trading day, which
// have no row to fold into). A non-nil error aborts the aggregation.
type RemapFunc func(time.Time) (time.Time, bool, error)

// Options configures one aggregation pass.
type Options struct {
	Sector         string
	MinHeadlines   int
	WithEmbeddings bool
	// Remap, when set, is applied to every headline date before grouping.
	// The weekend-aggregated policies use it to fold weekend and holiday
	// headlines onto the next trading day.
	Remap RemapFunc
}

// Aggregate groups the sector's headlines by (possibly remapped) date and
// computes mean sentiment scores, the headline count, the sentiment index and
// optionally the element-wise mean embedding.
//
// Dates with zero matching headlines are absent from the output; joining the
// aggregates against a full date axis is the merger's responsibility. Dates
// with fewer than MinHeadlines matches keep their true Count but have every
// value field set to missing.
//
// A headline tagged to several sectors contributes independently to each
// sector's aggregation pass.
func Aggregate(table *models.HeadlineTable, opts Options) ([]models.DailySectorAggregate, error) {
	if !table.HasSector(opts.Sector) {
		return nil, &models.UnknownSectorError{Sector: opts.Sector, Known: table.Sectors}
	}

	type group struct {
		count    int
		positive float64
		neutral  float64
		negative float64
		embSum   []float64
		embCount int
	}
	groups := make(map[time.Time]*group)

	for _, h := range table.Records {
		if !h.TaggedTo(opts.Sector) {
			continue
		}
		date := models.Day(h.Date)
		if opts.Remap != nil {
			remapped, ok, err := opts.Remap(date)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			date = models.Day(remapped)
		}

		g := groups[date]
		if g == nil {
			g = &group{}
			groups[date] = g
		}
		g.count++
		g.positive += h.Positive
		g.neutral += h.Neutral
		g.negative += h.Negative
		if opts.WithEmbeddings && len(h.Embedding) > 0 {
			if g.embSum == nil {
				g.embSum = make([]float64, len(h.Embedding))
			}
			for i, v := range h.Embedding {
				if i < len(g.embSum) {
					g.embSum[i] += v
				}
			}
			g.embCount++
		}
	}

	out := make([]models.DailySectorAggregate, 0, len(groups))
	for date, g := range groups {
		agg := models.DailySectorAggregate{
			Date:   date,
			Sector: opts.Sector,
			Count:  g.count,
		}
		n := float64(g.count)
		agg.AvgPositive = g.positive / n
		agg.AvgNeutral = g.neutral / n
		agg.AvgNegative = g.negative / n
		agg.SentIndex = agg.AvgPositive - agg.AvgNegative
		if opts.WithEmbeddings && g.embCount > 0 {
			agg.AvgEmbedding = make([]float64, len(g.embSum))
			for i, v := range g.embSum {
				agg.AvgEmbedding[i] = v / float64(g.embCount)
			}
		}
		if opts.MinHeadlines > 1 && g.count < opts.MinHeadlines {
			suppress(&agg)
		}
		out = append(out, agg)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// suppress nulls every value field while keeping the true count, so that
// "too few headlines" stays distinguishable from "no headlines".
func suppress(agg *models.DailySectorAggregate) {
	agg.AvgPositive = models.Missing()
	agg.AvgNeutral = models.Missing()
	agg.AvgNegative = models.Missing()
	agg.SentIndex = models.Missing()
	agg.AvgEmbedding = nil
}
