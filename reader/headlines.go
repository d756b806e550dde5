package reader

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"sectorflow/logger"
	"sectorflow/models"
)

// fixed headline-file columns; every other column is either an embedding
// column (emb_ prefix) or a sector flag column.
const (
	colDate         = "Date"
	colHeadline     = "Headline"
	colHeadlines    = "Headlines"
	colPositive     = "positive"
	colNeutral      = "neutral"
	colNegative     = "negative"
	colIsTradingDay = "is_trading_day"
	embPrefix       = "emb_"
)

type headlineSchema struct {
	date     int
	headline int
	positive int
	neutral  int
	negative int
	trading  int // -1 when absent
	flags    map[string]int
	flagCols []string
	emb      []int
}

func resolveHeadlineSchema(header []string) (*headlineSchema, error) {
	s := &headlineSchema{
		date: -1, headline: -1, positive: -1, neutral: -1, negative: -1,
		trading: -1,
		flags:   make(map[string]int),
	}
	for i, raw := range header {
		col := strings.TrimSpace(raw)
		switch col {
		case colDate:
			s.date = i
		case colHeadline, colHeadlines:
			s.headline = i
		case colPositive:
			s.positive = i
		case colNeutral:
			s.neutral = i
		case colNegative:
			s.negative = i
		case colIsTradingDay:
			s.trading = i
		default:
			if strings.HasPrefix(col, embPrefix) {
				s.emb = append(s.emb, i)
			} else if col != "" {
				s.flags[col] = i
				s.flagCols = append(s.flagCols, col)
			}
		}
	}
	if s.date < 0 || s.positive < 0 || s.neutral < 0 || s.negative < 0 {
		return nil, fmt.Errorf("headline header missing required columns (have %v)", header)
	}
	return s, nil
}

// Headlines reads the scored headline snapshot and restricts it to
// [start, end]. Headline text is cleaned the way the upstream scoring
// expects it: zero-width characters removed and whitespace collapsed.
func Headlines(path string, start, end time.Time) (*models.HeadlineTable, error) {
	log := logger.GetLogger().WithComponent("headline_reader")

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open headline file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read headline header: %w", err)
	}
	schema, err := resolveHeadlineSchema(header)
	if err != nil {
		return nil, err
	}

	start = models.Day(start)
	end = models.Day(end)

	table := &models.HeadlineTable{
		Sectors:      schema.flagCols,
		EmbeddingDim: len(schema.emb),
	}
	line := 1
	skipped := 0
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read headline row %d: %w", line, err)
		}
		line++

		date, err := parseDate(record[schema.date])
		if err != nil {
			return nil, fmt.Errorf("headline row %d: %w", line, err)
		}
		if date.Before(start) || date.After(end) {
			skipped++
			continue
		}

		h := models.HeadlineRecord{
			Date:        date,
			SectorFlags: make(map[string]bool, len(schema.flags)),
		}
		if schema.headline >= 0 {
			h.Headline = CleanHeadline(record[schema.headline])
		}
		if h.Positive, err = parseFloat(record[schema.positive]); err != nil {
			return nil, fmt.Errorf("headline row %d: positive: %w", line, err)
		}
		if h.Neutral, err = parseFloat(record[schema.neutral]); err != nil {
			return nil, fmt.Errorf("headline row %d: neutral: %w", line, err)
		}
		if h.Negative, err = parseFloat(record[schema.negative]); err != nil {
			return nil, fmt.Errorf("headline row %d: negative: %w", line, err)
		}
		for sector, idx := range schema.flags {
			h.SectorFlags[sector] = strings.TrimSpace(record[idx]) == "1"
		}
		if schema.trading >= 0 {
			h.IsTradingDay = strings.TrimSpace(record[schema.trading]) == "1"
		}
		if len(schema.emb) > 0 {
			h.Embedding = make([]float64, len(schema.emb))
			for j, idx := range schema.emb {
				if h.Embedding[j], err = parseFloat(record[idx]); err != nil {
					return nil, fmt.Errorf("headline row %d: embedding: %w", line, err)
				}
			}
		}
		table.Records = append(table.Records, h)
	}

	log.WithFields(logger.Fields{
		"path":          path,
		"rows":          len(table.Records),
		"skipped":       skipped,
		"sectors":       len(table.Sectors),
		"embedding_dim": table.EmbeddingDim,
	}).Info("loaded headline snapshot")
	logger.RecordStageRows("headlines_read", len(table.Records))

	return table, nil
}

// CleanHeadline normalizes headline text: zero-width and BOM characters are
// stripped and all runs of whitespace collapse to a single space.
func CleanHeadline(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '\u200B', '\u200C', '\u200D', '\u2060', '\uFEFF':
			continue
		}
		b.WriteRune(r)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
