package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"gridflow/cgmes"
	appconfig "gridflow/config"
	"gridflow/logger"
	"gridflow/models"
	"gridflow/processor"
	"gridflow/reader/dashboard"
	"gridflow/writer"
)

func main() {
	configPath := flag.String("config", "config/config.yml", "path to the configuration file")
	runAfrr := flag.Bool("afrr", true, "run the aFRR activation assessment")
	modelPath := flag.String("model", "", "CGMES model file to assess (overrides the configured path)")
	flag.Parse()

	// Load .env if present; real environment wins.
	_ = godotenv.Load()

	cfg, err := appconfig.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.GetLogger()
	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		fmt.Fprintf(os.Stderr, "failed to configure logging: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()

	if cfg.Logging.CloudWatch.Enabled {
		logger.InitCloudWatch(cfg.Logging.CloudWatch.Region, cfg.Logging.CloudWatch.Namespace, cfg.Logging.CloudWatch.DashboardName)
	}

	log.WithComponent("main").WithFields(logger.Fields{
		"name":        cfg.Gridflow.Name,
		"version":     cfg.Gridflow.Version,
		"environment": appconfig.AppEnvironment(),
	}).Info("gridflow starting")

	exporter := writer.NewExporter(ctx, &cfg.Export)

	model := cfg.Model.Path
	if *modelPath != "" {
		model = *modelPath
	}

	failed := false

	if *runAfrr {
		if err := runActivationAssessment(ctx, cfg, exporter); err != nil {
			log.WithComponent("main").WithError(err).Error("activation assessment failed")
			failed = true
		}
	}

	if model != "" {
		if err := runModelAssessment(ctx, cfg, exporter, model); err != nil {
			log.WithComponent("main").WithError(err).Error("model assessment failed")
			failed = true
		}
	}

	logger.LogRunSummary(ctx, log)

	if failed {
		os.Exit(1)
	}
}

// runActivationAssessment pulls the aFRR activation and system imbalance
// series for the configured window, aligns them and exports the metric
// table.
func runActivationAssessment(ctx context.Context, cfg *appconfig.Config, exporter *writer.Exporter) error {
	log := logger.GetLogger().WithComponent("main")

	start, end, err := cfg.Dashboard.ParseWindow(time.Now())
	if err != nil {
		return fmt.Errorf("resolve assessment window: %w", err)
	}

	log.WithFields(logger.Fields{
		"start": start.Format(time.RFC3339),
		"end":   end.Format(time.RFC3339),
	}).Info("starting activation assessment")

	client := dashboard.NewClient(cfg)

	activation, err := client.FetchReport(ctx, cfg.Dashboard.Reports.Activation, "afrr_activation", start, end)
	if err != nil {
		return fmt.Errorf("fetch activation series: %w", err)
	}
	imbalance, err := client.FetchReport(ctx, cfg.Dashboard.Reports.Imbalance, "system_imbalance", start, end)
	if err != nil {
		return fmt.Errorf("fetch imbalance series: %w", err)
	}

	if target := cfg.Dashboard.Resolution; target > 0 {
		if activation, err = processor.Resample(activation, target); err != nil {
			return fmt.Errorf("resample activation series: %w", err)
		}
		if imbalance, err = processor.Resample(imbalance, target); err != nil {
			return fmt.Errorf("resample imbalance series: %w", err)
		}
	}

	points, err := processor.Align(activation, imbalance)
	if err != nil {
		return fmt.Errorf("align series: %w", err)
	}

	report, err := processor.ComputeMetrics(points)
	if err != nil {
		return fmt.Errorf("compute metrics: %w", err)
	}
	report.Window = models.Window{Start: start, End: end}

	for _, row := range report.Rows {
		if row.Flagged {
			// NaN must not reach the JSON formatter or CloudWatch.
			log.WithFields(logger.Fields{"metric": row.Name}).Warn("metric undefined for this window")
			continue
		}
		log.WithFields(logger.Fields{"metric": row.Name, "value": row.Value}).Info("metric computed")
		logger.PublishAssessmentMetric(ctx, row.Name, row.Value, report.RunID)
	}

	return exporter.ExportActivation(ctx, points, report)
}

// runModelAssessment parses the CGMES equipment profile, runs the
// consistency rules and exports the ordered violation report.
func runModelAssessment(ctx context.Context, cfg *appconfig.Config, exporter *writer.Exporter, path string) error {
	log := logger.GetLogger().WithComponent("main")
	log.WithFields(logger.Fields{"model": path}).Info("starting model assessment")

	doc, err := cgmes.Load(path)
	if err != nil {
		return err
	}

	log.WithFields(logger.Fields{
		"limit_elements": strings.Join(doc.LimitElementNames(), ","),
	}).Debug("limit profiles present in model")

	net := doc.Network()
	rules := cgmes.DefaultRules(cgmes.Tolerances{
		ReactiveSymmetry: cfg.Model.Rules.ReactiveSymmetryTolerance,
	})
	violations := cgmes.Evaluate(net, rules)
	logger.RecordViolations(len(violations))

	for _, v := range violations {
		log.WithFields(logger.Fields{
			"rule":  v.Rule,
			"asset": v.Asset,
		}).Warn(v.Description)
	}
	log.WithFields(logger.Fields{
		"machines":   len(net.Machines),
		"lines":      len(net.Lines),
		"violations": len(violations),
	}).Info("model assessment finished")

	report := &models.ModelReport{
		RunID:       uuid.New().String(),
		GeneratedAt: time.Now().UTC(),
		ModelPath:   path,
		Violations:  violations,
	}
	return exporter.ExportViolations(ctx, report)
}
