package writer

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	parquetwriter "github.com/xitongsys/parquet-go/writer"

	"sectorflow/logger"
)

// DailyParquetRecord is the fixed parquet schema of the daily dataset. The
// schema carries no embedding or derived feature columns; those stay in the
// CSV output, which has a dynamic header.
type DailyParquetRecord struct {
	Date          string  `parquet:"name=date, type=BYTE_ARRAY, convertedtype=UTF8"`
	Sector        string  `parquet:"name=sector, type=BYTE_ARRAY, convertedtype=UTF8"`
	IsTradingDay  bool    `parquet:"name=is_trading_day, type=BOOLEAN"`
	Price         float64 `parquet:"name=price, type=DOUBLE"`
	Return        float64 `parquet:"name=return, type=DOUBLE"`
	Sign          float64 `parquet:"name=sign, type=DOUBLE"`
	ReturnNextDay float64 `parquet:"name=return_next_day, type=DOUBLE"`
	SignNextDay   float64 `parquet:"name=sign_next_day, type=DOUBLE"`
	AvgPositive   float64 `parquet:"name=avg_positive, type=DOUBLE"`
	AvgNeutral    float64 `parquet:"name=avg_neutral, type=DOUBLE"`
	AvgNegative   float64 `parquet:"name=avg_negative, type=DOUBLE"`
	HeadlineCount float64 `parquet:"name=n, type=DOUBLE"`
	SentIndex     float64 `parquet:"name=sent_index, type=DOUBLE"`
}

// memoryFileWriter implements the ParquetFile interface for in-memory writing.
type memoryFileWriter struct {
	buffer *bytes.Buffer
}

func newMemoryFileWriter() *memoryFileWriter {
	return &memoryFileWriter{buffer: &bytes.Buffer{}}
}

func (mfw *memoryFileWriter) Create(name string) (source.ParquetFile, error) { return mfw, nil }
func (mfw *memoryFileWriter) Open(name string) (source.ParquetFile, error)   { return mfw, nil }

func (mfw *memoryFileWriter) Seek(offset int64, whence int) (int64, error) {
	// Write-only buffer; the writer never seeks backwards.
	return int64(mfw.buffer.Len()), nil
}

func (mfw *memoryFileWriter) Read(b []byte) (int, error)  { return mfw.buffer.Read(b) }
func (mfw *memoryFileWriter) Write(b []byte) (int, error) { return mfw.buffer.Write(b) }
func (mfw *memoryFileWriter) Close() error                { return nil }
func (mfw *memoryFileWriter) Bytes() []byte               { return mfw.buffer.Bytes() }

// ParquetWriter writes the fixed-schema daily dataset next to the CSV output.
type ParquetWriter struct {
	outputDir   string
	compression string
	log         *logger.Log
}

func NewParquetWriter(outputDir, compression string) *ParquetWriter {
	return &ParquetWriter{outputDir: outputDir, compression: compression, log: logger.GetLogger()}
}

// Encode renders the dataset as an in-memory parquet file. Missing values
// stay NaN in the DOUBLE columns.
func (w *ParquetWriter) Encode(ds DailyDataset) ([]byte, error) {
	fw := newMemoryFileWriter()
	pw, err := parquetwriter.NewParquetWriter(fw, new(DailyParquetRecord), 4)
	if err != nil {
		return nil, fmt.Errorf("create parquet writer: %w", err)
	}

	switch w.compression {
	case "snappy":
		pw.CompressionType = parquet.CompressionCodec_SNAPPY
	case "gzip":
		pw.CompressionType = parquet.CompressionCodec_GZIP
	default:
		pw.CompressionType = parquet.CompressionCodec_UNCOMPRESSED
	}

	for _, r := range ds.Rows {
		record := DailyParquetRecord{
			Date:          r.Date.Format("2006-01-02"),
			Sector:        ds.Sector,
			IsTradingDay:  r.IsTradingDay,
			Price:         r.Price,
			Return:        r.Return,
			Sign:          r.Sign,
			ReturnNextDay: r.ReturnNextDay,
			SignNextDay:   r.SignNextDay,
			AvgPositive:   r.AvgPositive,
			AvgNeutral:    r.AvgNeutral,
			AvgNegative:   r.AvgNegative,
			HeadlineCount: r.HeadlineCount,
			SentIndex:     r.SentIndex,
		}
		if err := pw.Write(record); err != nil {
			pw.WriteStop()
			return nil, fmt.Errorf("write parquet record: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		return nil, fmt.Errorf("finalize parquet writing: %w", err)
	}
	return fw.Bytes(), nil
}

// WriteDaily writes <outputDir>/<slug>/<SECTOR>_<vN>.parquet and returns the
// file path.
func (w *ParquetWriter) WriteDaily(ds DailyDataset) (string, error) {
	data, err := w.Encode(ds)
	if err != nil {
		return "", err
	}

	dir := filepath.Join(w.outputDir, ds.Policy.Slug())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	path := filepath.Join(dir, ds.FileStem()+".parquet")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write parquet file: %w", err)
	}

	w.log.WithComponent("parquet_writer").WithFields(logger.Fields{
		"path":        path,
		"sector":      ds.Sector,
		"policy":      ds.Policy.Slug(),
		"rows":        len(ds.Rows),
		"file_size":   len(data),
		"compression": w.compression,
	}).Info("daily parquet written")

	return path, nil
}
