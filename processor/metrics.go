package processor

import (
	"math"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"gridflow/models"
)

// Metric names in report order.
const (
	MetricTotalAbsImbalance   = "total_abs_imbalance_mwh"
	MetricTotalActivation     = "total_afrr_activation_mwh"
	MetricCoverageRatio       = "coverage_ratio_total"
	MetricActivationFrequency = "activation_frequency"
	MetricCorrelation         = "corr_abs_imbalance_afrr"
	MetricActiveCoverage      = "active_period_coverage"
	MetricPeakAbsImbalance    = "peak_abs_imbalance_mwh"
	MetricPeakActivation      = "peak_afrr_activation_mwh"
)

// ComputeMetrics derives the activation assessment from an aligned join of
// the activation and imbalance series. Ratios with a zero denominator and a
// correlation over a constant series come back as NaN with the row flagged;
// they are findings, not errors.
func ComputeMetrics(points []models.AlignedPoint) (*models.MetricReport, error) {
	if len(points) == 0 {
		return nil, ErrEmptyInput
	}

	absImb := make([]float64, len(points))
	activation := make([]float64, len(points))

	var totalAbsImb, totalActivation float64
	var activeAbsImb, activeActivation float64
	activeCount := 0

	// Peaks are true maxima, seeded from the first point; an all-negative
	// activation series peaks at its largest (negative) value, not at zero.
	peakAbsImb := points[0].AbsImbalance
	peakActivation := points[0].Activation

	for i, p := range points {
		absImb[i] = p.AbsImbalance
		activation[i] = p.Activation

		totalAbsImb += p.AbsImbalance
		totalActivation += p.Activation
		if p.AbsImbalance > peakAbsImb {
			peakAbsImb = p.AbsImbalance
		}
		if p.Activation > peakActivation {
			peakActivation = p.Activation
		}
		if p.Activation > 0 {
			activeCount++
			activeAbsImb += p.AbsImbalance
			activeActivation += p.Activation
		}
	}

	coverage := math.NaN()
	if totalAbsImb != 0 {
		coverage = totalActivation / totalAbsImb
	}

	activeCoverage := math.NaN()
	if activeAbsImb != 0 {
		activeCoverage = activeActivation / activeAbsImb
	}

	frequency := float64(activeCount) / float64(len(points))
	correlation := stat.Correlation(absImb, activation, nil)

	rows := []models.MetricRow{
		{Name: MetricTotalAbsImbalance, Value: totalAbsImb},
		{Name: MetricTotalActivation, Value: totalActivation},
		{Name: MetricCoverageRatio, Value: coverage, Flagged: math.IsNaN(coverage)},
		{Name: MetricActivationFrequency, Value: frequency},
		{Name: MetricCorrelation, Value: correlation, Flagged: math.IsNaN(correlation)},
		{Name: MetricActiveCoverage, Value: activeCoverage, Flagged: math.IsNaN(activeCoverage)},
		{Name: MetricPeakAbsImbalance, Value: peakAbsImb},
		{Name: MetricPeakActivation, Value: peakActivation},
	}

	return &models.MetricReport{
		RunID:       uuid.New().String(),
		GeneratedAt: time.Now().UTC(),
		Window: models.Window{
			Start: points[0].Timestamp,
			End:   points[len(points)-1].Timestamp,
		},
		Rows: rows,
	}, nil
}
