// Command verify checks a produced daily dataset file for next-trading-day
// alignment. It exits non-zero when any trading day's target does not match
// the return realized on the chronologically next trading day.
package main

import (
	"encoding/csv"
	"flag"
	"os"
	"strconv"
	"strings"
	"time"

	"sectorflow/logger"
	"sectorflow/models"
	"sectorflow/verify"
)

func main() {
	log := logger.GetLogger()

	path := flag.String("file", "", "Path to a daily dataset CSV")
	flag.Parse()

	if *path == "" {
		log.Error("missing -file argument")
		os.Exit(2)
	}

	rows, err := readDaily(*path)
	if err != nil {
		log.WithError(err).WithFields(logger.Fields{"path": *path}).Error("failed to read daily dataset")
		os.Exit(2)
	}

	report := verify.Alignment(rows)
	report.Log(log)
	if !report.OK() {
		os.Exit(1)
	}
}

// readDaily parses a daily dataset CSV back into merged rows. Only the fixed
// leading columns and the per-sector sentiment columns take part in the
// alignment check; derived feature columns are ignored.
func readDaily(path string) ([]models.MergedDailyRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	// Derived feature columns may reuse a sentiment column prefix in their
	// names; the first match is always the fixed column.
	idx := make(map[string]int)
	set := func(name string, i int) {
		if _, taken := idx[name]; !taken {
			idx[name] = i
		}
	}
	for i, col := range records[0] {
		switch {
		case strings.HasPrefix(col, "avg_positive_"):
			set("avg_positive", i)
		case strings.HasPrefix(col, "avg_neutral_"):
			set("avg_neutral", i)
		case strings.HasPrefix(col, "avg_negative_"):
			set("avg_negative", i)
		case strings.HasPrefix(col, "n_"):
			set("n", i)
		case strings.HasPrefix(col, "sent_index_"):
			set("sent_index", i)
		default:
			set(col, i)
		}
	}

	cell := func(record []string, name string) float64 {
		i, ok := idx[name]
		if !ok || record[i] == "" {
			return models.Missing()
		}
		v, err := strconv.ParseFloat(record[i], 64)
		if err != nil {
			return models.Missing()
		}
		return v
	}

	var rows []models.MergedDailyRow
	for _, record := range records[1:] {
		date, err := time.Parse("2006-01-02", record[idx["Date"]])
		if err != nil {
			return nil, err
		}
		rows = append(rows, models.MergedDailyRow{
			Date:          models.Day(date),
			IsTradingDay:  record[idx["is_trading_day"]] == "1",
			Price:         cell(record, "Price"),
			Return:        cell(record, "Return"),
			Sign:          cell(record, "Sign"),
			ReturnNextDay: cell(record, "Return_next_day"),
			SignNextDay:   cell(record, "Sign_next_day"),
			AvgPositive:   cell(record, "avg_positive"),
			AvgNeutral:    cell(record, "avg_neutral"),
			AvgNegative:   cell(record, "avg_negative"),
			HeadlineCount: cell(record, "n"),
			SentIndex:     cell(record, "sent_index"),
		})
	}
	return rows, nil
}
