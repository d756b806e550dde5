// Package reader loads the preprocessed CSV snapshots the pipeline consumes:
// per-ticker price files and the scored headline file.
package reader

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"sectorflow/logger"
	"sectorflow/models"
)

// dateLayouts are the formats the preprocessed snapshots use. The first
// matching layout wins.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return models.Day(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}

// parseFloat maps empty cells to the missing sentinel.
func parseFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return models.Missing(), nil
	}
	return strconv.ParseFloat(s, 64)
}

// Prices reads a per-ticker price snapshot with columns [Date, Price],
// trading days only, ascending. Rows are returned in file order; ordering
// and duplicate checks belong to the return builder, which rejects rather
// than repairs defective input.
func Prices(path, ticker string) ([]models.PriceObservation, error) {
	log := logger.GetLogger().WithComponent("price_reader")

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open price file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read price header: %w", err)
	}
	dateIdx, priceIdx := -1, -1
	for i, col := range header {
		switch strings.TrimSpace(col) {
		case "Date":
			dateIdx = i
		case "Price":
			priceIdx = i
		}
	}
	if dateIdx < 0 || priceIdx < 0 {
		return nil, fmt.Errorf("price file %s missing Date/Price columns (header %v)", path, header)
	}

	var obs []models.PriceObservation
	line := 1
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read price row %d: %w", line, err)
		}
		line++

		date, err := parseDate(record[dateIdx])
		if err != nil {
			return nil, fmt.Errorf("price row %d: %w", line, err)
		}
		price, err := parseFloat(record[priceIdx])
		if err != nil {
			return nil, fmt.Errorf("price row %d: %w", line, err)
		}
		if models.IsMissing(price) {
			// A trading-day snapshot has no business containing empty prices.
			return nil, fmt.Errorf("price row %d: empty price for %s", line, date.Format("2006-01-02"))
		}
		obs = append(obs, models.PriceObservation{Date: date, Price: price})
	}

	log.WithFields(logger.Fields{
		"ticker": ticker,
		"path":   path,
		"rows":   len(obs),
	}).Info("loaded price snapshot")
	logger.RecordStageRows("prices_read", len(obs))

	return obs, nil
}
