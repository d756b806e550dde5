// Package pipeline orchestrates a full run: load inputs once, then fan
// sectors out to a bounded worker pool that builds, verifies, and writes
// every configured dataset variant. One sector failing never aborts the
// others.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"sectorflow/calendar"
	appconfig "sectorflow/config"
	"sectorflow/feature"
	"sectorflow/logger"
	"sectorflow/merge"
	"sectorflow/models"
	"sectorflow/reader"
	"sectorflow/returns"
	"sectorflow/verify"
	"sectorflow/writer"
)

// Summary is the run's outcome, logged at the end and returned to main.
type Summary struct {
	RunID      string
	Sectors    int
	Failed     int
	Datasets   int
	Outputs    []string
	Violations int // alignment violations found by the verifier
}

// SectorResult is one sector's outcome from the worker pool.
type SectorResult struct {
	Sector     string
	Outputs    []string
	Violations int
	Err        error
}

// Pipeline holds the shared, read-only inputs of a run.
type Pipeline struct {
	cfg      *appconfig.Config
	cal      *calendar.Calendar
	table    *models.HeadlineTable
	policies []models.AlignmentPolicy
	start    time.Time
	end      time.Time

	csv      *writer.CSVWriter
	parquet  *writer.ParquetWriter
	uploader *writer.Uploader
	kafka    *writer.KafkaSink

	runID string
	log   *logger.Log
}

// New loads the headline snapshot, builds the trading calendar with its
// configured slack past the end date, and wires the enabled outputs.
func New(cfg *appconfig.Config) (*Pipeline, error) {
	log := logger.GetLogger()

	start, end, err := cfg.DateRange()
	if err != nil {
		return nil, err
	}

	cal, err := calendar.New(start, end.AddDate(0, 0, cfg.Calendar.SlackDays))
	if err != nil {
		return nil, fmt.Errorf("build trading calendar: %w", err)
	}

	table, err := reader.Headlines(cfg.Data.HeadlineFile, start, end)
	if err != nil {
		return nil, err
	}

	policies, err := cfg.Policies()
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		cfg:      cfg,
		cal:      cal,
		table:    table,
		policies: policies,
		start:    start,
		end:      end,
		runID:    uuid.New().String(),
		log:      log,
	}

	if cfg.Writer.Formats.CSV.Enabled {
		p.csv = writer.NewCSVWriter(cfg.Writer.OutputDir)
	}
	if cfg.Writer.Formats.Parquet.Enabled {
		p.parquet = writer.NewParquetWriter(cfg.Writer.OutputDir, cfg.Writer.Formats.Parquet.Compression)
	}
	if cfg.Storage.S3.Enabled {
		if p.uploader, err = writer.NewUploader(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.Storage.Kafka.Enabled {
		if p.kafka, err = writer.NewKafkaSink(cfg); err != nil {
			return nil, err
		}
	}

	log.WithComponent("pipeline").WithFields(logger.Fields{
		"run_id":    p.runID,
		"sectors":   len(cfg.Data.Sectors),
		"policies":  len(policies),
		"headlines": len(table.Records),
		"start":     start.Format("2006-01-02"),
		"end":       end.Format("2006-01-02"),
	}).Info("pipeline initialized")

	return p, nil
}

// RunID identifies this run in logs and S3 keys.
func (p *Pipeline) RunID() string { return p.runID }

// Run processes every configured sector through a bounded worker pool and
// returns the aggregated summary. The returned error is non-nil only when no
// sector succeeded or the context was canceled; partial failures are reported
// through Summary.Failed.
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	runStart := time.Now()
	summary := Summary{RunID: p.runID, Sectors: len(p.cfg.Data.Sectors)}

	workers := p.cfg.Pipeline.MaxWorkers
	if workers > len(p.cfg.Data.Sectors) {
		workers = len(p.cfg.Data.Sectors)
	}
	if workers < 1 {
		workers = 1
	}

	jobs := make(chan appconfig.SectorConfig)
	results := make(chan SectorResult)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			log := p.log.WithComponent("pipeline").WithFields(logger.Fields{"worker_id": workerID})
			for {
				select {
				case <-ctx.Done():
					log.Debug("worker stopped due to context cancellation")
					return
				case sc, ok := <-jobs:
					if !ok {
						return
					}
					outputs, violations, err := p.runSector(ctx, sc)
					select {
					case results <- SectorResult{Sector: sc.Name, Outputs: outputs, Violations: violations, Err: err}:
					case <-ctx.Done():
						return
					}
				}
			}
		}(i)
	}

	go func() {
		defer close(jobs)
		for _, sc := range p.cfg.Data.Sectors {
			select {
			case jobs <- sc:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	for res := range results {
		if res.Err != nil {
			summary.Failed++
			logger.IncrementSectorFailed()
			p.log.WithComponent("pipeline").WithError(res.Err).WithFields(logger.Fields{
				"sector":         res.Sector,
				"data_integrity": models.IsDataIntegrity(res.Err),
				"configuration":  models.IsConfiguration(res.Err),
				"calendar_gap":   models.IsCalendarGap(res.Err),
			}).Error("sector processing failed")
			continue
		}
		summary.Datasets += len(res.Outputs)
		summary.Outputs = append(summary.Outputs, res.Outputs...)
		summary.Violations += res.Violations
		logger.IncrementSectorProcessed()
	}

	if err := ctx.Err(); err != nil {
		return summary, err
	}

	p.log.WithComponent("pipeline").WithFields(logger.Fields{
		"run_id":      summary.RunID,
		"sectors":     summary.Sectors,
		"failed":      summary.Failed,
		"datasets":    summary.Datasets,
		"violations":  summary.Violations,
		"duration_ms": time.Since(runStart).Milliseconds(),
	}).Info("pipeline run finished")

	if summary.Sectors > 0 && summary.Failed == summary.Sectors {
		return summary, fmt.Errorf("all %d sectors failed", summary.Sectors)
	}
	return summary, nil
}

// runSector builds every configured dataset variant for one sector.
func (p *Pipeline) runSector(ctx context.Context, sc appconfig.SectorConfig) ([]string, int, error) {
	sectorStart := time.Now()
	log := p.log.WithComponent("pipeline").WithFields(logger.Fields{"sector": sc.Name})

	obs, err := reader.Prices(sc.PriceFilePath(p.cfg.Data.PriceDir), sc.Name)
	if err != nil {
		return nil, 0, fmt.Errorf("sector %s: %w", sc.Name, err)
	}
	obs = p.restrict(obs)
	if len(obs) == 0 {
		return nil, 0, fmt.Errorf("sector %s: no price observations in configured date range", sc.Name)
	}

	records, err := returns.Build(sc.Name, obs)
	if err != nil {
		return nil, 0, fmt.Errorf("sector %s: %w", sc.Name, err)
	}

	merger := merge.New(p.cal)
	var outputs []string
	violations := 0

	for _, policy := range p.policies {
		if err := ctx.Err(); err != nil {
			return outputs, violations, err
		}

		rows, err := merger.Daily(records, p.table, merge.Options{
			Sector:       sc.Name,
			Policy:       policy,
			MinHeadlines: p.cfg.Pipeline.MinHeadlines,
		})
		if err != nil {
			return outputs, violations, fmt.Errorf("sector %s policy %s: %w", sc.Name, policy, err)
		}

		extra, err := p.deriveFeatures(rows, obs, sc.Name)
		if err != nil {
			return outputs, violations, fmt.Errorf("sector %s policy %s: %w", sc.Name, policy, err)
		}

		if p.cfg.Verify.Enabled {
			report := verify.Alignment(rows)
			report.Log(p.log)
			violations += len(report.Mismatches) + report.MissingTargets
			if !report.OK() && p.cfg.Verify.FailFast {
				return outputs, violations, fmt.Errorf("sector %s policy %s: next-day alignment violated", sc.Name, policy)
			}
			if policy.Weekend == models.WeekendAggregated {
				if date, ok := verify.CountRoundTrip(rows, p.table, sc.Name); !ok {
					log.WithFields(logger.Fields{
						"policy": policy.Slug(),
						"date":   date.Format("2006-01-02"),
					}).Warn("folded headline count does not reconcile with raw headlines")
				}
			}
		}

		ds := writer.DailyDataset{
			Sector:       sc.Name,
			Policy:       policy,
			Rows:         rows,
			Extra:        extra,
			EmbeddingDim: p.table.EmbeddingDim,
		}

		paths, err := p.writeDataset(ctx, ds)
		if err != nil {
			return outputs, violations, fmt.Errorf("sector %s policy %s: %w", sc.Name, policy, err)
		}
		outputs = append(outputs, paths...)

		if p.cfg.Pipeline.HeadlineLevel && p.csv != nil {
			hl, err := merger.HeadlineLevel(sc.Name, rows, p.table)
			if err != nil {
				return outputs, violations, fmt.Errorf("sector %s policy %s: %w", sc.Name, policy, err)
			}
			path, err := p.csv.WriteHeadlineLevel(sc.Name, policy, hl)
			if err != nil {
				return outputs, violations, fmt.Errorf("sector %s policy %s: %w", sc.Name, policy, err)
			}
			outputs = append(outputs, path)
			if p.uploader != nil {
				if err := p.uploader.UploadFile(ctx, path, policy.Slug(), sc.Name); err != nil {
					return outputs, violations, err
				}
			}
		}
	}

	logger.LogPerformanceEntry(log, "pipeline", "sector_run", time.Since(sectorStart), logger.Fields{
		"sector":   sc.Name,
		"policies": len(p.policies),
		"outputs":  len(outputs),
	})
	return outputs, violations, nil
}

// restrict drops price observations outside the configured date range.
func (p *Pipeline) restrict(obs []models.PriceObservation) []models.PriceObservation {
	out := obs[:0]
	for _, o := range obs {
		if o.Date.Before(p.start) || o.Date.After(p.end) {
			continue
		}
		out = append(out, o)
	}
	return out
}

// deriveFeatures resolves the configured lag and indicator specs against the
// merged rows. Lag column names referencing per-sector columns use the bare
// column names; output names come from the specs.
func (p *Pipeline) deriveFeatures(rows []models.MergedDailyRow, obs []models.PriceObservation, sector string) ([]feature.Series, error) {
	var out []feature.Series
	for _, spec := range p.cfg.Features.Lags {
		s, err := feature.Lag(rows, spec)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	for _, spec := range p.cfg.Features.Indicators {
		s, err := feature.Indicator(rows, obs, spec)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// writeDataset persists one dataset in every enabled format and forwards it
// to the optional sinks.
func (p *Pipeline) writeDataset(ctx context.Context, ds writer.DailyDataset) ([]string, error) {
	var paths []string

	if p.csv != nil {
		path, err := p.csv.WriteDaily(ds)
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	if p.parquet != nil {
		path, err := p.parquet.WriteDaily(ds)
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}

	if p.uploader != nil {
		for _, path := range paths {
			if err := p.uploader.UploadFile(ctx, path, ds.Policy.Slug(), ds.Sector); err != nil {
				return paths, err
			}
		}
	}
	if p.kafka != nil {
		if err := p.kafka.PublishDaily(ctx, ds); err != nil {
			return paths, err
		}
	}

	return paths, nil
}

// Close releases the optional sinks.
func (p *Pipeline) Close() {
	if p.kafka != nil {
		if err := p.kafka.Close(); err != nil {
			p.log.WithComponent("pipeline").WithError(err).Warn("failed to close kafka sink")
		}
	}
}
