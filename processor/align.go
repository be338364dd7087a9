package processor

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"gridflow/models"
)

// ErrEmptyInput is returned when a series carries no points where at least
// one is required.
var ErrEmptyInput = errors.New("empty input series")

// ErrResolutionMismatch is returned when two series are joined without
// sharing a resolution.
var ErrResolutionMismatch = errors.New("series resolutions differ")

// Resample buckets a series into the given resolution, averaging all points
// that fall into the same bucket. Bucket timestamps are truncated to the
// resolution in UTC. Output order is chronological.
func Resample(s *models.Series, resolution time.Duration) (*models.Series, error) {
	if resolution <= 0 {
		return nil, fmt.Errorf("resample %s: resolution must be positive", s.Name)
	}
	if len(s.Points) == 0 {
		return nil, fmt.Errorf("resample %s: %w", s.Name, ErrEmptyInput)
	}

	sums := make(map[time.Time]float64)
	counts := make(map[time.Time]int)
	for _, p := range s.Points {
		bucket := p.Timestamp.UTC().Truncate(resolution)
		sums[bucket] += p.Value
		counts[bucket]++
	}

	points := make([]models.TimePoint, 0, len(sums))
	for bucket, sum := range sums {
		points = append(points, models.TimePoint{
			Timestamp: bucket,
			Value:     sum / float64(counts[bucket]),
		})
	}
	sort.Slice(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})

	return &models.Series{
		Name:       s.Name,
		ReportID:   s.ReportID,
		Resolution: resolution,
		Points:     points,
	}, nil
}

// Align joins an activation and an imbalance series on timestamp. Both must
// already share the same non-zero resolution; timestamps present on only one
// side are dropped. An empty join is an input-validation error.
func Align(activation, imbalance *models.Series) ([]models.AlignedPoint, error) {
	if len(activation.Points) == 0 || len(imbalance.Points) == 0 {
		return nil, ErrEmptyInput
	}
	if activation.Resolution <= 0 || imbalance.Resolution <= 0 ||
		activation.Resolution != imbalance.Resolution {
		return nil, fmt.Errorf("%w: %s vs %s",
			ErrResolutionMismatch, activation.Resolution, imbalance.Resolution)
	}

	imbByTS := make(map[time.Time]float64, len(imbalance.Points))
	for _, p := range imbalance.Points {
		imbByTS[p.Timestamp.UTC()] = p.Value
	}

	points := make([]models.AlignedPoint, 0, len(activation.Points))
	for _, p := range activation.Points {
		ts := p.Timestamp.UTC()
		imb, ok := imbByTS[ts]
		if !ok {
			continue
		}
		abs := imb
		if abs < 0 {
			abs = -abs
		}
		points = append(points, models.AlignedPoint{
			Timestamp:    ts,
			Activation:   p.Value,
			Imbalance:    imb,
			AbsImbalance: abs,
		})
	}

	if len(points) == 0 {
		return nil, fmt.Errorf("no overlapping timestamps: %w", ErrEmptyInput)
	}
	return points, nil
}
