package writer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	appconfig "gridflow/config"
	"gridflow/logger"
	"gridflow/models"
)

// Exporter persists assessment results under a run-scoped directory:
//
//	<directory>/<yyyy-mm-dd>/<run-id>/aligned_series.parquet
//	<directory>/<yyyy-mm-dd>/<run-id>/metrics.parquet
//	<directory>/<yyyy-mm-dd>/<run-id>/metrics.json
//	<directory>/<yyyy-mm-dd>/<run-id>/violations.json
//
// Local writes are mandatory; the S3 mirror is best-effort.
type Exporter struct {
	config   *appconfig.ExportConfig
	uploader *s3Uploader
	log      *logger.Log
}

// NewExporter builds an exporter from the export section of the config. A
// failed S3 setup disables the mirror instead of failing the run.
func NewExporter(ctx context.Context, cfg *appconfig.ExportConfig) *Exporter {
	log := logger.GetLogger()

	e := &Exporter{config: cfg, log: log}
	if cfg.S3.Enabled {
		uploader, err := newS3Uploader(ctx, cfg.S3)
		if err != nil {
			log.WithComponent("exporter").WithError(err).Warn("s3 mirror disabled")
		} else {
			e.uploader = uploader
		}
	}
	return e
}

// ExportActivation writes the aligned series and the metric table of one
// activation assessment run.
func (e *Exporter) ExportActivation(ctx context.Context, points []models.AlignedPoint, report *models.MetricReport) error {
	dir, err := e.runDir(report.GeneratedAt, report.RunID)
	if err != nil {
		return err
	}

	if e.config.Parquet {
		data, err := seriesParquet(points)
		if err != nil {
			return fmt.Errorf("encode aligned series: %w", err)
		}
		if err := e.writeFile(ctx, dir, "aligned_series.parquet", data, "application/octet-stream"); err != nil {
			return err
		}

		data, err = metricsParquet(report)
		if err != nil {
			return fmt.Errorf("encode metric table: %w", err)
		}
		if err := e.writeFile(ctx, dir, "metrics.parquet", data, "application/octet-stream"); err != nil {
			return err
		}
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metric report: %w", err)
	}
	return e.writeFile(ctx, dir, "metrics.json", data, "application/json")
}

// ExportViolations writes the ordered rule-violation report of one model
// assessment run.
func (e *Exporter) ExportViolations(ctx context.Context, report *models.ModelReport) error {
	dir, err := e.runDir(report.GeneratedAt, report.RunID)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode violation report: %w", err)
	}
	return e.writeFile(ctx, dir, "violations.json", data, "application/json")
}

func (e *Exporter) runDir(at time.Time, runID string) (string, error) {
	dir := filepath.Join(e.config.Directory, at.UTC().Format("2006-01-02"), runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export directory %s: %w", dir, err)
	}
	return dir, nil
}

func (e *Exporter) writeFile(ctx context.Context, dir, name string, data []byte, contentType string) error {
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	logger.IncrementExport(int64(len(data)))

	e.log.WithComponent("exporter").WithFields(logger.Fields{
		"file":      path,
		"file_size": len(data),
	}).Info("export written")

	if e.uploader != nil {
		key, err := filepath.Rel(e.config.Directory, path)
		if err != nil {
			key = name
		}
		if err := e.uploader.upload(ctx, filepath.ToSlash(key), data, contentType); err != nil {
			e.log.WithComponent("s3_uploader").WithError(err).Warn("s3 mirror upload failed")
		}
	}
	return nil
}
