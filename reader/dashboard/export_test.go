package dashboard

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	appconfig "gridflow/config"
	"gridflow/models"
)

func testConfig(baseURL string) *appconfig.Config {
	return &appconfig.Config{
		Gridflow: appconfig.GridflowConfig{Name: "test", Version: "0.0"},
		Dashboard: appconfig.DashboardConfig{
			BaseURL:   baseURL,
			Timeout:   5 * time.Second,
			UserAgent: "gridflow-test",
			ConnectionPool: appconfig.ConnectionPoolConfig{
				MaxIdleConns:    1,
				MaxConnsPerHost: 1,
				IdleConnTimeout: time.Second,
			},
			RateLimit: appconfig.RateLimitConfig{RequestsPerSecond: 100, BurstSize: 1},
		},
	}
}

func TestFetchReportExpandsBlocks(t *testing.T) {
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		gotQuery = map[string]string{
			"id":               q.Get("id"),
			"output_time_zone": q.Get("output_time_zone"),
			"output_format":    q.Get("output_format"),
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"timeseries":[
			{"from":"2025-06-01T01:00:00Z","to":"2025-06-01T02:00:00Z","values":[4,5,6,7]},
			{"from":"2025-06-01T00:00:00Z","to":"2025-06-01T01:00:00Z","values":[0,1,2,3]}
		]}}`))
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL))
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)

	series, err := c.FetchReport(context.Background(), "afrr_activations", "afrr_activation", start, end)
	if err != nil {
		t.Fatalf("FetchReport failed: %v", err)
	}

	if gotQuery["id"] != "afrr_activations" || gotQuery["output_time_zone"] != "UTC" || gotQuery["output_format"] != "json" {
		t.Errorf("unexpected query parameters: %v", gotQuery)
	}

	if len(series.Points) != 8 {
		t.Fatalf("expected 8 points, got %d", len(series.Points))
	}
	if series.Resolution != 15*time.Minute {
		t.Errorf("expected 15m resolution, got %s", series.Resolution)
	}
	// Blocks arrive out of order; the series must be sorted.
	for i, want := range []float64{0, 1, 2, 3, 4, 5, 6, 7} {
		if series.Points[i].Value != want {
			t.Fatalf("point %d: expected value %f, got %f", i, want, series.Points[i].Value)
		}
	}
	wantTS := start.Add(15 * time.Minute)
	if !series.Points[1].Timestamp.Equal(wantTS) {
		t.Errorf("point 1: expected timestamp %s, got %s", wantTS, series.Points[1].Timestamp)
	}
}

func TestFetchReportMixedResolution(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"timeseries":[
			{"from":"2025-06-01T00:00:00Z","to":"2025-06-01T01:00:00Z","values":[1,2,3,4]},
			{"from":"2025-06-01T01:00:00Z","to":"2025-06-01T02:00:00Z","values":[5,6]}
		]}}`))
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL))
	series, err := c.FetchReport(context.Background(), "r", "imbalance", time.Now().Add(-time.Hour), time.Now())
	if err != nil {
		t.Fatalf("FetchReport failed: %v", err)
	}
	if series.Resolution != 0 {
		t.Errorf("mixed block steps must yield zero resolution, got %s", series.Resolution)
	}
}

func TestFetchReportHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "report not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL))
	if _, err := c.FetchReport(context.Background(), "nope", "x", time.Now().Add(-time.Hour), time.Now()); err == nil {
		t.Fatalf("expected error for non-200 response")
	}
}

func TestFetchReportEmptyPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"timeseries":[]}}`))
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL))
	if _, err := c.FetchReport(context.Background(), "r", "x", time.Now().Add(-time.Hour), time.Now()); err == nil {
		t.Fatalf("expected error for empty timeseries")
	}
}

func TestExpandBlocksRejectsInvertedBlock(t *testing.T) {
	payload := &models.ExportResponse{Data: models.ExportData{Timeseries: []models.ExportBlock{
		{From: "2025-06-01T02:00:00Z", To: "2025-06-01T01:00:00Z", Values: []float64{1}},
	}}}
	if _, err := expandBlocks(payload, "r", "x"); err == nil {
		t.Fatalf("expected error for inverted block bounds")
	}
}
