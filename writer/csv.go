// Package writer persists the per-sector datasets: CSV and parquet files on
// local disk, with optional upload to S3 and row publication to Kafka.
package writer

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"sectorflow/feature"
	"sectorflow/logger"
	"sectorflow/models"
)

// DailyDataset is one finished per-sector daily table under one alignment
// policy, plus any derived feature columns to append after the fixed ones.
type DailyDataset struct {
	Sector       string
	Policy       models.AlignmentPolicy
	Rows         []models.MergedDailyRow
	Extra        []feature.Series
	EmbeddingDim int
}

// FileStem is the output file name without extension, e.g. XLE_v3.
func (d DailyDataset) FileStem() string {
	return fmt.Sprintf("%s_%s", d.Sector, d.Policy.Version())
}

// CSVWriter writes datasets under <outputDir>/<policy slug>/.
type CSVWriter struct {
	outputDir string
	log       *logger.Log
}

func NewCSVWriter(outputDir string) *CSVWriter {
	return &CSVWriter{outputDir: outputDir, log: logger.GetLogger()}
}

// formatCell renders a numeric cell; the missing sentinel becomes an empty
// cell so a round-trip through the reader reconstructs it.
func formatCell(v float64) string {
	if models.IsMissing(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// sectorColumns are the per-sector sentiment column names in output order.
func sectorColumns(sector string) []string {
	return []string{
		"avg_positive_" + sector,
		"avg_neutral_" + sector,
		"avg_negative_" + sector,
		"n_" + sector,
		"sent_index_" + sector,
	}
}

func (d DailyDataset) header() []string {
	header := []string{"Date", "is_trading_day", "Price", "Return", "Sign", "Return_next_day", "Sign_next_day"}
	header = append(header, sectorColumns(d.Sector)...)
	if d.Policy.WithEmbeddings {
		for i := 0; i < d.EmbeddingDim; i++ {
			header = append(header, fmt.Sprintf("avg_emb_%d_%s", i, d.Sector))
		}
	}
	for _, s := range d.Extra {
		header = append(header, s.Name)
	}
	return header
}

func (d DailyDataset) record(i int) []string {
	r := d.Rows[i]
	rec := []string{
		r.Date.Format("2006-01-02"),
		formatBool(r.IsTradingDay),
		formatCell(r.Price),
		formatCell(r.Return),
		formatCell(r.Sign),
		formatCell(r.ReturnNextDay),
		formatCell(r.SignNextDay),
		formatCell(r.AvgPositive),
		formatCell(r.AvgNeutral),
		formatCell(r.AvgNegative),
		formatCell(r.HeadlineCount),
		formatCell(r.SentIndex),
	}
	if d.Policy.WithEmbeddings {
		for j := 0; j < d.EmbeddingDim; j++ {
			if j < len(r.AvgEmbedding) {
				rec = append(rec, formatCell(r.AvgEmbedding[j]))
			} else {
				rec = append(rec, "")
			}
		}
	}
	for _, s := range d.Extra {
		if i < len(s.Values) {
			rec = append(rec, formatCell(s.Values[i]))
		} else {
			rec = append(rec, "")
		}
	}
	return rec
}

// WriteDaily writes the dataset to <outputDir>/<slug>/<SECTOR>_<vN>.csv and
// returns the file path.
func (w *CSVWriter) WriteDaily(ds DailyDataset) (string, error) {
	dir := filepath.Join(w.outputDir, ds.Policy.Slug())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	path := filepath.Join(dir, ds.FileStem()+".csv")

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create daily csv: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write(ds.header()); err != nil {
		return "", fmt.Errorf("write daily csv header: %w", err)
	}
	for i := range ds.Rows {
		if err := cw.Write(ds.record(i)); err != nil {
			return "", fmt.Errorf("write daily csv row %d: %w", i, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return "", fmt.Errorf("flush daily csv: %w", err)
	}

	w.log.WithComponent("csv_writer").WithFields(logger.Fields{
		"path":   path,
		"sector": ds.Sector,
		"policy": ds.Policy.Slug(),
		"rows":   len(ds.Rows),
	}).Info("daily dataset written")
	logger.RecordStageRows("daily_csv_written", len(ds.Rows))

	return path, nil
}

// WriteHeadlineLevel writes the headline-granularity dataset for one sector to
// <outputDir>/<slug>/<SECTOR>.csv. Headlines whose date has no daily row keep
// their own columns and leave the context columns empty.
func (w *CSVWriter) WriteHeadlineLevel(sector string, policy models.AlignmentPolicy, rows []models.HeadlineRow) (string, error) {
	dir := filepath.Join(w.outputDir, policy.Slug())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	path := filepath.Join(dir, sector+".csv")

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create headline csv: %w", err)
	}
	defer f.Close()

	header := []string{"Date", "Headline", "positive", "neutral", "negative", "is_trading_day",
		"Price", "Return", "Sign", "Return_next_day", "Sign_next_day"}
	header = append(header, sectorColumns(sector)...)

	cw := csv.NewWriter(f)
	if err := cw.Write(header); err != nil {
		return "", fmt.Errorf("write headline csv header: %w", err)
	}
	for i, r := range rows {
		rec := []string{
			r.Date.Format("2006-01-02"),
			r.Headline,
			formatCell(r.Positive),
			formatCell(r.Neutral),
			formatCell(r.Negative),
			formatBool(r.IsTradingDay),
		}
		if c := r.Context; c != nil {
			rec = append(rec,
				formatCell(c.Price), formatCell(c.Return), formatCell(c.Sign),
				formatCell(c.ReturnNextDay), formatCell(c.SignNextDay),
				formatCell(c.AvgPositive), formatCell(c.AvgNeutral), formatCell(c.AvgNegative),
				formatCell(c.HeadlineCount), formatCell(c.SentIndex))
		} else {
			rec = append(rec, "", "", "", "", "", "", "", "", "", "")
		}
		if err := cw.Write(rec); err != nil {
			return "", fmt.Errorf("write headline csv row %d: %w", i, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return "", fmt.Errorf("flush headline csv: %w", err)
	}

	w.log.WithComponent("csv_writer").WithFields(logger.Fields{
		"path":   path,
		"sector": sector,
		"policy": policy.Slug(),
		"rows":   len(rows),
	}).Info("headline-level dataset written")
	logger.RecordStageRows("headline_csv_written", len(rows))

	return path, nil
}
