// Package feature derives model-input columns from the merged daily dataset:
// trailing weighted-lag combinations and standard technical indicators.
package feature

import (
	"strings"
	"time"

	talib "github.com/markcheno/go-talib"

	"sectorflow/models"
)

// Series is one derived column, aligned index-for-index with the daily rows
// it was computed from.
type Series struct {
	Name   string
	Values []float64
}

// LagSpec configures one weighted-lag column: the source column, the weight
// vector (most-recent weight last) and the output column name.
type LagSpec struct {
	Column  string    `yaml:"column"`
	Weights []float64 `yaml:"weights"`
	Name    string    `yaml:"name"`
}

// IndicatorSpec configures one technical-indicator column computed over the
// price series.
type IndicatorSpec struct {
	Kind   string `yaml:"kind"` // sma, ema, rsi
	Period int    `yaml:"period"`
	Name   string `yaml:"name"`
}

// WeightedLag produces, for each row i >= k-1, the weighted average of the
// trailing k values with weights normalized to sum to one. Earlier rows have
// insufficient history and come back missing. The window is strictly
// backward-looking: positions i-k+1..i only.
//
// A missing value anywhere in a window makes that window's output missing.
func WeightedLag(values []float64, weights []float64) ([]float64, error) {
	if len(weights) == 0 {
		return nil, &models.InvalidWeightsError{Weights: weights, Reason: "empty weight vector"}
	}
	sum := 0.0
	for _, w := range weights {
		if w < 0 {
			return nil, &models.InvalidWeightsError{Weights: weights, Reason: "negative weight"}
		}
		sum += w
	}
	if sum == 0 {
		return nil, &models.InvalidWeightsError{Weights: weights, Reason: "weights sum to zero"}
	}

	k := len(weights)
	norm := make([]float64, k)
	for i, w := range weights {
		norm[i] = w / sum
	}

	out := make([]float64, len(values))
	for i := range out {
		out[i] = models.Missing()
	}
	for i := k - 1; i < len(values); i++ {
		acc := 0.0
		missing := false
		for j := 0; j < k; j++ {
			v := values[i-k+1+j]
			if models.IsMissing(v) {
				missing = true
				break
			}
			acc += v * norm[j]
		}
		if !missing {
			out[i] = acc
		}
	}
	return out, nil
}

// Lag resolves a LagSpec against the daily rows.
func Lag(rows []models.MergedDailyRow, spec LagSpec) (Series, error) {
	values, err := DailyColumn(rows, spec.Column)
	if err != nil {
		return Series{}, err
	}
	out, err := WeightedLag(values, spec.Weights)
	if err != nil {
		return Series{}, err
	}
	return Series{Name: spec.Name, Values: out}, nil
}

// Indicator computes a talib indicator over the trading-day price series and
// aligns the result back onto the daily rows by date. Non-trading rows and
// the indicator's warm-up period come back missing.
func Indicator(rows []models.MergedDailyRow, prices []models.PriceObservation, spec IndicatorSpec) (Series, error) {
	closes := make([]float64, len(prices))
	for i, p := range prices {
		closes[i] = p.Price
	}

	var computed []float64
	var warmup int
	switch strings.ToLower(spec.Kind) {
	case "sma":
		computed = talib.Sma(closes, spec.Period)
		warmup = spec.Period - 1
	case "ema":
		computed = talib.Ema(closes, spec.Period)
		warmup = spec.Period - 1
	case "rsi":
		computed = talib.Rsi(closes, spec.Period)
		warmup = spec.Period
	default:
		return Series{}, &models.UnknownIndicatorError{Kind: spec.Kind}
	}

	byDate := make(map[time.Time]float64, len(prices))
	for i, p := range prices {
		if i < warmup {
			continue
		}
		byDate[models.Day(p.Date)] = computed[i]
	}

	values := make([]float64, len(rows))
	for i, r := range rows {
		if v, ok := byDate[r.Date]; ok {
			values[i] = v
		} else {
			values[i] = models.Missing()
		}
	}
	return Series{Name: spec.Name, Values: values}, nil
}

// DailyColumn extracts a named numeric column from the daily rows.
func DailyColumn(rows []models.MergedDailyRow, name string) ([]float64, error) {
	var pick func(models.MergedDailyRow) float64
	switch name {
	case "Price":
		pick = func(r models.MergedDailyRow) float64 { return r.Price }
	case "Return":
		pick = func(r models.MergedDailyRow) float64 { return r.Return }
	case "Sign":
		pick = func(r models.MergedDailyRow) float64 { return r.Sign }
	case "Return_next_day":
		pick = func(r models.MergedDailyRow) float64 { return r.ReturnNextDay }
	case "avg_positive":
		pick = func(r models.MergedDailyRow) float64 { return r.AvgPositive }
	case "avg_neutral":
		pick = func(r models.MergedDailyRow) float64 { return r.AvgNeutral }
	case "avg_negative":
		pick = func(r models.MergedDailyRow) float64 { return r.AvgNegative }
	case "n":
		pick = func(r models.MergedDailyRow) float64 { return r.HeadlineCount }
	case "sent_index":
		pick = func(r models.MergedDailyRow) float64 { return r.SentIndex }
	default:
		return nil, &models.UnknownColumnError{Column: name, Known: []string{
			"Price", "Return", "Sign", "Return_next_day",
			"avg_positive", "avg_neutral", "avg_negative", "n", "sent_index",
		}}
	}
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = pick(r)
	}
	return out, nil
}
