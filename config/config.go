package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Gridflow  GridflowConfig  `yaml:"gridflow"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Model     ModelConfig     `yaml:"model"`
	Export    ExportConfig    `yaml:"export"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type GridflowConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type DashboardConfig struct {
	BaseURL        string               `yaml:"base_url"`
	Reports        ReportsConfig        `yaml:"reports"`
	StartDate      string               `yaml:"start_date"`
	EndDate        string               `yaml:"end_date"`
	Resolution     time.Duration        `yaml:"resolution"`
	Timeout        time.Duration        `yaml:"timeout"`
	UserAgent      string               `yaml:"user_agent"`
	ConnectionPool ConnectionPoolConfig `yaml:"connection_pool"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit"`
}

// ReportsConfig names the dashboard report ids of the two series the
// activation assessment compares.
type ReportsConfig struct {
	Activation string `yaml:"activation"`
	Imbalance  string `yaml:"imbalance"`
}

type ConnectionPoolConfig struct {
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxConnsPerHost int           `yaml:"max_conns_per_host"`
	IdleConnTimeout time.Duration `yaml:"idle_conn_timeout"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests_per_second"`
	BurstSize         int `yaml:"burst_size"`
}

type ModelConfig struct {
	Path  string      `yaml:"path"`
	Rules RulesConfig `yaml:"rules"`
}

// RulesConfig carries the numeric tolerances of the consistency rules.
type RulesConfig struct {
	ReactiveSymmetryTolerance float64 `yaml:"reactive_symmetry_tolerance"`
}

type ExportConfig struct {
	Directory string   `yaml:"directory"`
	Parquet   bool     `yaml:"parquet"`
	S3        S3Config `yaml:"s3"`
}

type S3Config struct {
	Enabled         bool   `yaml:"enabled"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Prefix          string `yaml:"prefix"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type LoggingConfig struct {
	Level      string           `yaml:"level"`
	Format     string           `yaml:"format"`
	Output     string           `yaml:"output"`
	MaxAge     int              `yaml:"max_age"`
	CloudWatch CloudWatchConfig `yaml:"cloudwatch"`
}

type CloudWatchConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Region        string `yaml:"region"`
	Namespace     string `yaml:"namespace"`
	DashboardName string `yaml:"dashboard_name"`
}

var envPattern = regexp.MustCompile(`\$\{(\w+)\}`)

// expandEnv substitutes ${VAR} references in the raw yaml with values from
// the environment. Unset variables expand to the empty string.
func expandEnv(data []byte) []byte {
	return envPattern.ReplaceAllFunc(data, func(m []byte) []byte {
		name := envPattern.FindSubmatch(m)[1]
		return []byte(os.Getenv(string(name)))
	})
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Config{}
	if err := yaml.Unmarshal(expandEnv(data), &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&config)

	// Override S3 settings from environment variables if available
	if config.Export.S3.Enabled {
		if v := os.Getenv("AWS_ACCESS_KEY_ID"); v != "" {
			config.Export.S3.AccessKeyID = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_SECRET_ACCESS_KEY"); v != "" {
			config.Export.S3.SecretAccessKey = strings.TrimSpace(v)
		}
		if v := os.Getenv("AWS_REGION"); v != "" {
			config.Export.S3.Region = strings.TrimSpace(v)
		}
		if v := os.Getenv("S3_BUCKET"); v != "" {
			config.Export.S3.Bucket = strings.TrimSpace(v)
		}
	}
	config.Export.S3.Bucket = strings.TrimSpace(config.Export.S3.Bucket)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Dashboard.Timeout <= 0 {
		cfg.Dashboard.Timeout = 30 * time.Second
	}
	if cfg.Dashboard.UserAgent == "" {
		cfg.Dashboard.UserAgent = fmt.Sprintf("gridflow/%s", cfg.Gridflow.Version)
	}
	if cfg.Dashboard.ConnectionPool.MaxIdleConns <= 0 {
		cfg.Dashboard.ConnectionPool.MaxIdleConns = 4
	}
	if cfg.Dashboard.ConnectionPool.MaxConnsPerHost <= 0 {
		cfg.Dashboard.ConnectionPool.MaxConnsPerHost = 4
	}
	if cfg.Dashboard.ConnectionPool.IdleConnTimeout <= 0 {
		cfg.Dashboard.ConnectionPool.IdleConnTimeout = 90 * time.Second
	}
	if cfg.Dashboard.RateLimit.RequestsPerSecond <= 0 {
		cfg.Dashboard.RateLimit.RequestsPerSecond = 2
	}
	if cfg.Dashboard.RateLimit.BurstSize <= 0 {
		cfg.Dashboard.RateLimit.BurstSize = 1
	}
	if cfg.Model.Rules.ReactiveSymmetryTolerance <= 0 {
		cfg.Model.Rules.ReactiveSymmetryTolerance = 0.05
	}
	if cfg.Export.Directory == "" {
		cfg.Export.Directory = "export"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.CloudWatch.Namespace == "" {
		cfg.Logging.CloudWatch.Namespace = "GridFlow"
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Gridflow.Name == "" {
		return fmt.Errorf("gridflow.name is required")
	}
	if cfg.Gridflow.Version == "" {
		return fmt.Errorf("gridflow.version is required")
	}

	if cfg.Dashboard.BaseURL == "" {
		return fmt.Errorf("dashboard.base_url is required")
	}
	if cfg.Dashboard.Reports.Activation == "" || cfg.Dashboard.Reports.Imbalance == "" {
		return fmt.Errorf("dashboard.reports.activation and dashboard.reports.imbalance are required")
	}
	if cfg.Dashboard.StartDate != "" {
		if _, err := time.Parse(time.RFC3339, cfg.Dashboard.StartDate); err != nil {
			return fmt.Errorf("dashboard.start_date '%s' is not RFC3339: %w", cfg.Dashboard.StartDate, err)
		}
	}
	if cfg.Dashboard.EndDate != "" {
		if _, err := time.Parse(time.RFC3339, cfg.Dashboard.EndDate); err != nil {
			return fmt.Errorf("dashboard.end_date '%s' is not RFC3339: %w", cfg.Dashboard.EndDate, err)
		}
	}
	if cfg.Dashboard.Resolution < 0 {
		return fmt.Errorf("dashboard.resolution must not be negative")
	}

	if cfg.Model.Rules.ReactiveSymmetryTolerance >= 1 {
		return fmt.Errorf("model.rules.reactive_symmetry_tolerance must be below 1")
	}

	if cfg.Export.S3.Enabled {
		if cfg.Export.S3.Bucket == "" {
			return fmt.Errorf("export.s3.bucket is required when S3 is enabled")
		}
		if cfg.Export.S3.Region == "" {
			return fmt.Errorf("export.s3.region is required when S3 is enabled")
		}
		if cfg.Export.S3.AccessKeyID == "" || cfg.Export.S3.SecretAccessKey == "" {
			// Development runs without credentials fall back to local export
			// only; production-like environments fail hard.
			if IsProductionLike(AppEnvironment()) {
				return fmt.Errorf("export.s3 credentials are required when S3 is enabled")
			}
			cfg.Export.S3.Enabled = false
		}
		if cfg.Export.S3.Enabled && !isValidS3Bucket(cfg.Export.S3.Bucket) {
			return fmt.Errorf("export.s3.bucket '%s' is invalid", cfg.Export.S3.Bucket)
		}
	}

	return nil
}

var s3BucketPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

func isValidS3Bucket(bucket string) bool {
	return s3BucketPattern.MatchString(bucket)
}

// ParseWindow resolves the configured assessment window. An empty end date
// means "now"; an empty start date means one day before the end.
func (d *DashboardConfig) ParseWindow(now time.Time) (time.Time, time.Time, error) {
	end := now.UTC()
	if d.EndDate != "" {
		t, err := time.Parse(time.RFC3339, d.EndDate)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end date: %w", err)
		}
		end = t.UTC()
	}

	start := end.Add(-24 * time.Hour)
	if d.StartDate != "" {
		t, err := time.Parse(time.RFC3339, d.StartDate)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start date: %w", err)
		}
		start = t.UTC()
	}

	if !start.Before(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("start date %s is not before end date %s", start, end)
	}
	return start, end, nil
}
