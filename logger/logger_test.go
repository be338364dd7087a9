package logger

import (
	"sync/atomic"
	"testing"
)

func TestWithComponent(t *testing.T) {
	log := Logger()
	entry := log.WithComponent("test")
	if v, ok := entry.Entry.Data["component"]; !ok || v != "test" {
		t.Fatalf("component field missing: %v", entry.Entry.Data)
	}
}

func TestConfigureInvalidLevel(t *testing.T) {
	// Ensure environment variables do not override the provided level
	t.Setenv("LOG_LEVEL", "")

	log := Logger()
	if err := log.Configure("invalid", "json", "stdout", 0); err == nil {
		t.Fatalf("expected error for invalid level")
	}
}

func TestConfigureInvalidFormat(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	log := Logger()
	if err := log.Configure("info", "xml", "stdout", 0); err == nil {
		t.Fatalf("expected error for invalid format")
	}
}

func TestRunCounters(t *testing.T) {
	before := atomic.LoadInt64(&reportsFetched)
	IncrementReportFetch(96)
	if got := atomic.LoadInt64(&reportsFetched); got != before+1 {
		t.Errorf("report counter not incremented: %d", got)
	}

	beforeWarns := atomic.LoadInt64(&warnsFetch)
	Logger().WithComponent("dashboard_reader").Warn("boom")
	if got := atomic.LoadInt64(&warnsFetch); got != beforeWarns+1 {
		t.Errorf("warn counter not incremented: %d", got)
	}
}
