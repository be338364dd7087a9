package logger

import (
	"context"
	"runtime"
	"sync/atomic"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

var (
	warnsFetch     int64
	warnsExport    int64
	errorsFetch    int64
	errorsExport   int64
	reportsFetched int64
	pointsFetched  int64
	filesExported  int64
	bytesExported  int64
	violations     int64
)

func recordWarn(component string) {
	switch component {
	case "dashboard_reader":
		atomic.AddInt64(&warnsFetch, 1)
	case "exporter", "s3_uploader":
		atomic.AddInt64(&warnsExport, 1)
	}
}

func recordError(component string) {
	switch component {
	case "dashboard_reader":
		atomic.AddInt64(&errorsFetch, 1)
	case "exporter", "s3_uploader":
		atomic.AddInt64(&errorsExport, 1)
	}
}

// IncrementReportFetch counts one successful dashboard report pull.
func IncrementReportFetch(points int) {
	atomic.AddInt64(&reportsFetched, 1)
	atomic.AddInt64(&pointsFetched, int64(points))
}

// IncrementExport counts one file written by the exporter.
func IncrementExport(size int64) {
	atomic.AddInt64(&filesExported, 1)
	atomic.AddInt64(&bytesExported, size)
}

// RecordViolations counts rule violations found by the model assessment.
func RecordViolations(n int) {
	atomic.AddInt64(&violations, int64(n))
}

// LogRunSummary emits one final accounting of the run and forwards the
// counters to CloudWatch when publishing is enabled. Called once from main
// before exit.
func LogRunSummary(ctx context.Context, log *Log) {
	cpuPercent, _ := cpu.Percent(0, false)
	memStats, _ := mem.VirtualMemory()

	cpuPct := 0.0
	if len(cpuPercent) > 0 {
		cpuPct = cpuPercent[0]
	}
	memMB := int64(0)
	if memStats != nil {
		memMB = int64(memStats.Used) / 1024 / 1024
	}

	fields := Fields{
		"reports_fetched": atomic.LoadInt64(&reportsFetched),
		"points_fetched":  atomic.LoadInt64(&pointsFetched),
		"files_exported":  atomic.LoadInt64(&filesExported),
		"bytes_exported":  atomic.LoadInt64(&bytesExported),
		"rule_violations": atomic.LoadInt64(&violations),
		"warns_fetch":     atomic.LoadInt64(&warnsFetch),
		"warns_export":    atomic.LoadInt64(&warnsExport),
		"errors_fetch":    atomic.LoadInt64(&errorsFetch),
		"errors_export":   atomic.LoadInt64(&errorsExport),
		"goroutines":      runtime.NumGoroutine(),
		"cpu_percent":     cpuPct,
		"memory_mb":       memMB,
	}

	log.WithComponent("summary").WithFields(fields).Info("run summary")

	data := []cwtypes.MetricDatum{
		{MetricName: aws.String("ReportsFetched"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&reportsFetched)))},
		{MetricName: aws.String("PointsFetched"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&pointsFetched)))},
		{MetricName: aws.String("FilesExported"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&filesExported)))},
		{MetricName: aws.String("BytesExported"), Unit: cwtypes.StandardUnitBytes, Value: aws.Float64(float64(atomic.LoadInt64(&bytesExported)))},
		{MetricName: aws.String("RuleViolations"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&violations)))},
		{MetricName: aws.String("FetchErrors"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&errorsFetch)))},
		{MetricName: aws.String("ExportErrors"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(atomic.LoadInt64(&errorsExport)))},
		{MetricName: aws.String("CPUPercent"), Unit: cwtypes.StandardUnitPercent, Value: aws.Float64(cpuPct)},
		{MetricName: aws.String("MemoryMB"), Unit: cwtypes.StandardUnitMegabytes, Value: aws.Float64(float64(memMB))},
	}

	publishMetrics(ctx, data)
}
