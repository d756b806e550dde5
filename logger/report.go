package logger

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

type counterStat struct {
	count int64
	rows  int64
}

var (
	sectorsProcessed int64
	sectorsFailed    int64
	warnsTotal       int64
	errorsTotal      int64
	stages           sync.Map // map[string]*counterStat
)

func recordWarn(component string) {
	atomic.AddInt64(&warnsTotal, 1)
	_ = component
}

func recordError(component string) {
	atomic.AddInt64(&errorsTotal, 1)
	_ = component
}

// IncrementSectorProcessed records a completed sector pipeline run.
func IncrementSectorProcessed() {
	atomic.AddInt64(&sectorsProcessed, 1)
}

// IncrementSectorFailed records an aborted sector pipeline run.
func IncrementSectorFailed() {
	atomic.AddInt64(&sectorsFailed, 1)
}

// RecordStageRows accumulates row counts flowing through a named pipeline
// stage (prices_read, headlines_read, daily_rows, files_written, s3_uploads,
// kafka_messages).
func RecordStageRows(stage string, rows int) {
	v, _ := stages.LoadOrStore(stage, &counterStat{})
	cs := v.(*counterStat)
	atomic.AddInt64(&cs.count, 1)
	atomic.AddInt64(&cs.rows, int64(rows))
}

func startReport(ctx context.Context, log *Log, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				logReport(ctx, log)
			}
		}
	}()
}

// StartReport begins periodic logging of system and pipeline statistics.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	startReport(ctx, log, interval)
}

// LogFinalReport emits one report immediately, used at the end of a batch run.
func LogFinalReport(ctx context.Context, log *Log) {
	logReport(ctx, log)
}

func logReport(ctx context.Context, log *Log) {
	cpuPercent, _ := cpu.Percent(0, false)
	memStats, _ := mem.VirtualMemory()
	diskStats, _ := disk.Usage("/")

	stageData := map[string]map[string]int64{}
	stages.Range(func(k, v any) bool {
		name := k.(string)
		cs := v.(*counterStat)
		stageData[name] = map[string]int64{
			"batches": atomic.LoadInt64(&cs.count),
			"rows":    atomic.LoadInt64(&cs.rows),
		}
		return true
	})

	cpuPct := 0.0
	if len(cpuPercent) > 0 {
		cpuPct = cpuPercent[0]
	}

	fields := Fields{
		"sectors_processed": atomic.LoadInt64(&sectorsProcessed),
		"sectors_failed":    atomic.LoadInt64(&sectorsFailed),
		"warns":             atomic.LoadInt64(&warnsTotal),
		"errors":            atomic.LoadInt64(&errorsTotal),
		"goroutines":        runtime.NumGoroutine(),
		"cpu_percent":       cpuPct,
		"memory_mb":         int64(memStats.Used) / 1024 / 1024,
		"disk_mb":           int64(diskStats.Used) / 1024 / 1024,
		"stages":            stageData,
	}

	log.WithComponent("report").WithFields(fields).Info("runtime report")

	var data []cwtypes.MetricDatum
	data = append(data,
		cwtypes.MetricDatum{MetricName: aws.String("Pipeline-CPUPercent"), Unit: cwtypes.StandardUnitPercent, Value: aws.Float64(cpuPct)},
		cwtypes.MetricDatum{MetricName: aws.String("Pipeline-MemoryMB"), Unit: cwtypes.StandardUnitMegabytes, Value: aws.Float64(float64(memStats.Used) / 1024 / 1024)},
		cwtypes.MetricDatum{MetricName: aws.String("Pipeline-SectorsProcessed"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&sectorsProcessed)))},
		cwtypes.MetricDatum{MetricName: aws.String("Pipeline-SectorsFailed"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&sectorsFailed)))},
		cwtypes.MetricDatum{MetricName: aws.String("Pipeline-Warns"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&warnsTotal)))},
		cwtypes.MetricDatum{MetricName: aws.String("Pipeline-Errors"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&errorsTotal)))},
	)

	for name, stats := range stageData {
		data = append(data,
			cwtypes.MetricDatum{
				MetricName: aws.String("Pipeline-StageRows"),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{{Name: aws.String("Stage"), Value: aws.String(name)}},
				Value:      aws.Float64(float64(stats["rows"])),
			},
		)
	}

	publishMetrics(ctx, data)
}
