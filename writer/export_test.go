package writer

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	appconfig "gridflow/config"
	"gridflow/models"
)

func sampleReport() ([]models.AlignedPoint, *models.MetricReport) {
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	points := []models.AlignedPoint{
		{Timestamp: base, Activation: 10, Imbalance: -20, AbsImbalance: 20},
		{Timestamp: base.Add(15 * time.Minute), Activation: 0, Imbalance: 5, AbsImbalance: 5},
	}
	report := &models.MetricReport{
		RunID:       "run-1",
		GeneratedAt: base,
		Window:      models.Window{Start: base, End: base.Add(time.Hour)},
		Rows: []models.MetricRow{
			{Name: "total_afrr_activation_mwh", Value: 2.5},
			{Name: "coverage_ratio_total", Value: 0.4},
		},
	}
	return points, report
}

func TestExportActivation(t *testing.T) {
	dir := t.TempDir()
	e := NewExporter(context.Background(), &appconfig.ExportConfig{Directory: dir, Parquet: true})

	points, report := sampleReport()
	if err := e.ExportActivation(context.Background(), points, report); err != nil {
		t.Fatalf("ExportActivation failed: %v", err)
	}

	runDir := filepath.Join(dir, "2025-03-01", "run-1")
	for _, name := range []string{"aligned_series.parquet", "metrics.parquet", "metrics.json"} {
		info, err := os.Stat(filepath.Join(runDir, name))
		if err != nil {
			t.Errorf("expected export file %s: %v", name, err)
			continue
		}
		if info.Size() == 0 {
			t.Errorf("export file %s is empty", name)
		}
	}

	data, err := os.ReadFile(filepath.Join(runDir, "metrics.json"))
	if err != nil {
		t.Fatalf("read metrics.json: %v", err)
	}
	var decoded models.MetricReport
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("metrics.json not valid JSON: %v", err)
	}
	if decoded.RunID != "run-1" || len(decoded.Rows) != 2 {
		t.Errorf("unexpected metric report: %+v", decoded)
	}
}

func TestExportActivationParquetDisabled(t *testing.T) {
	dir := t.TempDir()
	e := NewExporter(context.Background(), &appconfig.ExportConfig{Directory: dir})

	points, report := sampleReport()
	if err := e.ExportActivation(context.Background(), points, report); err != nil {
		t.Fatalf("ExportActivation failed: %v", err)
	}

	runDir := filepath.Join(dir, "2025-03-01", "run-1")
	if _, err := os.Stat(filepath.Join(runDir, "metrics.json")); err != nil {
		t.Errorf("metrics.json missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(runDir, "aligned_series.parquet")); !os.IsNotExist(err) {
		t.Errorf("parquet written despite being disabled")
	}
}

func TestExportViolations(t *testing.T) {
	dir := t.TempDir()
	e := NewExporter(context.Background(), &appconfig.ExportConfig{Directory: dir})

	report := &models.ModelReport{
		RunID:       "run-2",
		GeneratedAt: time.Date(2025, 4, 2, 9, 30, 0, 0, time.UTC),
		ModelPath:   "model.xml",
		Violations: []models.RuleViolation{
			{Rule: "line-terminals", Asset: "L2", Description: "line without terminals"},
		},
	}
	if err := e.ExportViolations(context.Background(), report); err != nil {
		t.Fatalf("ExportViolations failed: %v", err)
	}

	// The directory date comes from the report itself, not the wall clock.
	path := filepath.Join(dir, "2025-04-02", "run-2", "violations.json")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read violations.json: %v", err)
	}
	var decoded models.ModelReport
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("violations.json not valid JSON: %v", err)
	}
	if len(decoded.Violations) != 1 || decoded.Violations[0].Asset != "L2" {
		t.Errorf("unexpected violation report: %+v", decoded)
	}
}

func TestExportFailsOnUnwritableDirectory(t *testing.T) {
	e := NewExporter(context.Background(), &appconfig.ExportConfig{
		Directory: filepath.Join(t.TempDir(), "missing", string([]byte{0})),
	})
	_, report := sampleReport()
	if err := e.ExportActivation(context.Background(), nil, report); err == nil {
		t.Fatalf("expected error for unwritable directory")
	}
}
