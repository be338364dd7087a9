package processor

import (
	"errors"
	"testing"
	"time"

	"gridflow/models"
)

func makeSeries(name string, start time.Time, resolution time.Duration, values []float64) *models.Series {
	points := make([]models.TimePoint, len(values))
	for i, v := range values {
		points[i] = models.TimePoint{Timestamp: start.Add(time.Duration(i) * resolution), Value: v}
	}
	return &models.Series{Name: name, Resolution: resolution, Points: points}
}

func TestResampleAverages(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	s := makeSeries("imbalance", start, 15*time.Minute, []float64{1, 2, 3, 4, 10, 20, 30, 40})

	out, err := Resample(s, time.Hour)
	if err != nil {
		t.Fatalf("Resample failed: %v", err)
	}
	if len(out.Points) != 2 {
		t.Fatalf("expected 2 buckets, got %d", len(out.Points))
	}
	if out.Points[0].Value != 2.5 {
		t.Errorf("bucket 0: expected mean 2.5, got %f", out.Points[0].Value)
	}
	if out.Points[1].Value != 25 {
		t.Errorf("bucket 1: expected mean 25, got %f", out.Points[1].Value)
	}
	if !out.Points[1].Timestamp.Equal(start.Add(time.Hour)) {
		t.Errorf("bucket 1: unexpected timestamp %s", out.Points[1].Timestamp)
	}
	if out.Resolution != time.Hour {
		t.Errorf("unexpected resolution %s", out.Resolution)
	}
}

func TestResampleEmpty(t *testing.T) {
	s := &models.Series{Name: "empty"}
	if _, err := Resample(s, time.Hour); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
}

func TestAlignJoinsOnTimestamp(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	act := makeSeries("afrr_activation", start, time.Hour, []float64{1, 2, 3})
	imb := makeSeries("imbalance", start.Add(time.Hour), time.Hour, []float64{-10, 20})

	points, err := Align(act, imb)
	if err != nil {
		t.Fatalf("Align failed: %v", err)
	}
	// Overlap is hours 1 and 2.
	if len(points) != 2 {
		t.Fatalf("expected 2 aligned points, got %d", len(points))
	}
	if points[0].Activation != 2 || points[0].Imbalance != -10 || points[0].AbsImbalance != 10 {
		t.Errorf("unexpected first point: %+v", points[0])
	}
	if points[1].Activation != 3 || points[1].AbsImbalance != 20 {
		t.Errorf("unexpected second point: %+v", points[1])
	}
}

func TestAlignResolutionMismatch(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	act := makeSeries("a", start, time.Hour, []float64{1})
	imb := makeSeries("b", start, 15*time.Minute, []float64{1})

	if _, err := Align(act, imb); !errors.Is(err, ErrResolutionMismatch) {
		t.Fatalf("expected ErrResolutionMismatch, got %v", err)
	}
}

func TestAlignNoOverlap(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	act := makeSeries("a", start, time.Hour, []float64{1, 2})
	imb := makeSeries("b", start.Add(48*time.Hour), time.Hour, []float64{1, 2})

	if _, err := Align(act, imb); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput for disjoint series, got %v", err)
	}
}

func TestAlignEmpty(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	act := makeSeries("a", start, time.Hour, nil)
	imb := makeSeries("b", start, time.Hour, []float64{1})

	if _, err := Align(act, imb); !errors.Is(err, ErrEmptyInput) {
		t.Fatalf("expected ErrEmptyInput, got %v", err)
	}
}
