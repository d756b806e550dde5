package models

import (
	"math"
	"time"
)

// Missing returns the sentinel used for absent numeric values. CSV output
// renders it as an empty cell, CSV input parses empty cells back into it.
func Missing() float64 {
	return math.NaN()
}

// IsMissing reports whether v carries the missing-value sentinel.
func IsMissing(v float64) bool {
	return math.IsNaN(v)
}

// Day normalizes a timestamp to midnight UTC. All merge keys in the pipeline
// are normalized dates; an un-normalized timestamp on either side of a join
// silently produces an empty intersection.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// PriceObservation is a single close price for one ticker on one trading day,
// as loaded from the preprocessed vendor snapshot. Immutable once loaded.
type PriceObservation struct {
	Date  time.Time `json:"date"`
	Price float64   `json:"price"`
}

// ReturnRecord is a trading-day row with its realized return and the
// next-trading-day target columns.
//
// ReturnNextDay at date d always equals Return of the chronologically next
// trading record strictly after d, regardless of how many non-trading
// calendar days separate the two. Return is missing on the first record,
// ReturnNextDay and SignNextDay are missing on the last.
type ReturnRecord struct {
	Date          time.Time `json:"date"`
	Price         float64   `json:"price"`
	Return        float64   `json:"return"`
	Sign          float64   `json:"sign"`
	ReturnNextDay float64   `json:"return_next_day"`
	SignNextDay   float64   `json:"sign_next_day"`
}

// HeadlineRecord is one pre-scored news headline. Sentiment scores come from
// the upstream FinBERT pass and are trusted as-is. Embedding is nil when the
// input file carries no embedding columns.
type HeadlineRecord struct {
	Date         time.Time       `json:"date"`
	Headline     string          `json:"headline"`
	SectorFlags  map[string]bool `json:"sector_flags"`
	Positive     float64         `json:"positive"`
	Neutral      float64         `json:"neutral"`
	Negative     float64         `json:"negative"`
	Embedding    []float64       `json:"embedding,omitempty"`
	IsTradingDay bool            `json:"is_trading_day"`
}

// TaggedTo reports whether the headline carries the sector's flag.
func (h HeadlineRecord) TaggedTo(sector string) bool {
	return h.SectorFlags[sector]
}

// HeadlineTable is a loaded headline snapshot together with its schema: the
// sector flag columns the file declared and the embedding dimension (0 when
// the file carries no embedding columns).
type HeadlineTable struct {
	Records      []HeadlineRecord `json:"records"`
	Sectors      []string         `json:"sectors"`
	EmbeddingDim int              `json:"embedding_dim"`
}

// HasSector reports whether the table declares a flag column for the sector.
func (t *HeadlineTable) HasSector(sector string) bool {
	for _, s := range t.Sectors {
		if s == sector {
			return true
		}
	}
	return false
}

// DailySectorAggregate is one row per (date, sector): mean sentiment scores
// over the sector's headlines that day, their count, and the polarity index.
//
// When the headline count is below the configured minimum the value fields
// are missing and AvgEmbedding is nil, but Count is always the true count so
// consumers can tell "no headlines" from "too few headlines".
type DailySectorAggregate struct {
	Date         time.Time `json:"date"`
	Sector       string    `json:"sector"`
	AvgPositive  float64   `json:"avg_positive"`
	AvgNeutral   float64   `json:"avg_neutral"`
	AvgNegative  float64   `json:"avg_negative"`
	Count        int       `json:"count"`
	SentIndex    float64   `json:"sent_index"`
	AvgEmbedding []float64 `json:"avg_embedding,omitempty"`
}

// Suppressed reports whether the aggregate's value fields were nulled by the
// minimum-headline rule.
func (a DailySectorAggregate) Suppressed() bool {
	return a.Count > 0 && IsMissing(a.AvgPositive)
}

// MergedDailyRow is one date of the final per-sector daily dataset: price and
// next-day target columns joined with the sector's sentiment aggregate.
// HeadlineCount is missing (not zero) on dates without any sector headline.
type MergedDailyRow struct {
	Date          time.Time `json:"date"`
	IsTradingDay  bool      `json:"is_trading_day"`
	Price         float64   `json:"price"`
	Return        float64   `json:"return"`
	Sign          float64   `json:"sign"`
	ReturnNextDay float64   `json:"return_next_day"`
	SignNextDay   float64   `json:"sign_next_day"`
	AvgPositive   float64   `json:"avg_positive"`
	AvgNeutral    float64   `json:"avg_neutral"`
	AvgNegative   float64   `json:"avg_negative"`
	HeadlineCount float64   `json:"headline_count"`
	SentIndex     float64   `json:"sent_index"`
	AvgEmbedding  []float64 `json:"avg_embedding,omitempty"`
	Features      []float64 `json:"features,omitempty"`
}

// HeadlineRow is one headline of the headline-granularity dataset, carrying
// its day's merged context. Context is nil when the headline's date has no
// row in the daily table (possible under the weekend-aggregated policies).
type HeadlineRow struct {
	HeadlineRecord
	Context *MergedDailyRow `json:"context,omitempty"`
}
