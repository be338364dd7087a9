package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"gridflow/logger"
	"gridflow/models"
)

const exportPath = "/api/v1/export"

// stampLayouts covers the timestamp spellings the export API has been seen
// to produce.
var stampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// FetchReport requests one report for the given window and returns the
// expanded time series. A transport, status or decode failure is fatal and
// surfaces to the caller; there is no retry.
func (c *Client) FetchReport(ctx context.Context, reportID, name string, start, end time.Time) (*models.Series, error) {
	log := c.log.WithComponent("dashboard_reader").WithFields(logger.Fields{
		"report": reportID,
		"series": name,
	})

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	params := url.Values{}
	params.Set("id", reportID)
	params.Set("start_date", start.UTC().Format(time.RFC3339))
	params.Set("end_date", end.UTC().Format(time.RFC3339))
	params.Set("output_time_zone", "UTC")
	params.Set("output_format", "json")

	reqURL := fmt.Sprintf("%s%s?%s", strings.TrimRight(c.config.Dashboard.BaseURL, "/"), exportPath, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for report %s: %w", reportID, err)
	}

	fetchStart := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch report %s: %w", reportID, err)
	}
	defer resp.Body.Close()

	logger.LogPerformanceEntry(log, "dashboard_reader", "api_request", time.Since(fetchStart), nil)

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("fetch report %s: unexpected status %d: %s", reportID, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload models.ExportResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode report %s: %w", reportID, err)
	}

	series, err := expandBlocks(&payload, reportID, name)
	if err != nil {
		return nil, err
	}

	log.WithFields(logger.Fields{
		"points":     len(series.Points),
		"resolution": series.Resolution.String(),
	}).Info("report fetched")
	logger.IncrementReportFetch(len(series.Points))

	return series, nil
}

// expandBlocks turns the {from,to,values} blocks of an export payload into
// evenly spaced UTC points: step = (to-from)/len(values), point i at
// from + i*step. Blocks are concatenated and sorted by timestamp.
func expandBlocks(payload *models.ExportResponse, reportID, name string) (*models.Series, error) {
	if len(payload.Data.Timeseries) == 0 {
		return nil, fmt.Errorf("report %s: payload contains no timeseries", reportID)
	}

	var points []models.TimePoint
	var resolution time.Duration
	uniform := true

	for _, block := range payload.Data.Timeseries {
		if len(block.Values) == 0 {
			continue
		}

		from, err := parseStamp(block.From)
		if err != nil {
			return nil, fmt.Errorf("report %s: invalid block start '%s': %w", reportID, block.From, err)
		}
		to, err := parseStamp(block.To)
		if err != nil {
			return nil, fmt.Errorf("report %s: invalid block end '%s': %w", reportID, block.To, err)
		}
		if !to.After(from) {
			return nil, fmt.Errorf("report %s: block end %s not after start %s", reportID, block.To, block.From)
		}

		step := to.Sub(from) / time.Duration(len(block.Values))
		if resolution == 0 {
			resolution = step
		} else if step != resolution {
			uniform = false
		}

		for i, v := range block.Values {
			points = append(points, models.TimePoint{
				Timestamp: from.Add(time.Duration(i) * step).UTC(),
				Value:     v,
			})
		}
	}

	if len(points) == 0 {
		return nil, fmt.Errorf("report %s: payload contains no values", reportID)
	}

	sort.Slice(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})

	if !uniform {
		// Mixed block steps; the caller has to resample before comparing.
		resolution = 0
	}

	return &models.Series{
		Name:       name,
		ReportID:   reportID,
		Resolution: resolution,
		Points:     points,
	}, nil
}

func parseStamp(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range stampLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
