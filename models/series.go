package models

import (
	"encoding/json"
	"math"
	"time"
)

// TimePoint is a single observation in a published report series.
type TimePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// Series is an ordered sequence of observations at a uniform resolution.
// Timestamps are always UTC; Resolution is zero when the source blocks
// disagree on their step and the series still needs resampling.
type Series struct {
	Name       string        `json:"name"`
	ReportID   string        `json:"report_id"`
	Resolution time.Duration `json:"resolution"`
	Points     []TimePoint   `json:"points"`
}

// AlignedPoint is one row of the activation/imbalance join. Imbalance keeps
// its sign; AbsImbalance is the magnitude the assessment metrics work on.
type AlignedPoint struct {
	Timestamp    time.Time `json:"timestamp"`
	Activation   float64   `json:"activation"`
	Imbalance    float64   `json:"imbalance"`
	AbsImbalance float64   `json:"abs_imbalance"`
}

// ExportResponse mirrors the dashboard export payload.
type ExportResponse struct {
	Data ExportData `json:"data"`
}

// ExportData holds the timeseries blocks of an export response.
type ExportData struct {
	Timeseries []ExportBlock `json:"timeseries"`
}

// ExportBlock is one contiguous run of values between two instants. The
// effective step is (To-From)/len(Values).
type ExportBlock struct {
	From   string    `json:"from"`
	To     string    `json:"to"`
	Values []float64 `json:"values"`
}

// MetricRow is a single named result of the activation assessment. Flagged
// marks values that are undefined for the given input (zero denominator,
// constant series) rather than computed.
type MetricRow struct {
	Name    string  `json:"metric"`
	Value   float64 `json:"value"`
	Flagged bool    `json:"flagged,omitempty"`
}

// MarshalJSON renders undefined values as null; encoding/json rejects NaN.
func (r MetricRow) MarshalJSON() ([]byte, error) {
	type row struct {
		Name    string   `json:"metric"`
		Value   *float64 `json:"value"`
		Flagged bool     `json:"flagged,omitempty"`
	}
	out := row{Name: r.Name, Flagged: r.Flagged}
	if !math.IsNaN(r.Value) {
		out.Value = &r.Value
	}
	return json.Marshal(out)
}

// MetricReport is the ordered metric table for one assessment run.
type MetricReport struct {
	RunID       string      `json:"run_id"`
	GeneratedAt time.Time   `json:"generated_at"`
	Window      Window      `json:"window"`
	Rows        []MetricRow `json:"rows"`
}

// Window is the half-open UTC interval an assessment covers.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}
