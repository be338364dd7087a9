package dashboard

import (
	"net/http"

	"golang.org/x/time/rate"

	appconfig "gridflow/config"
	"gridflow/logger"
)

// Client fetches published report series from the Baltic Transparency
// Dashboard export API. One instance serves a whole run; requests go through
// a shared rate limiter so bulk pulls stay polite.
type Client struct {
	config  *appconfig.Config
	http    *http.Client
	limiter *rate.Limiter
	log     *logger.Log
}

type userAgentTransport struct {
	agent string
	base  http.RoundTripper
}

func (t userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.agent)
	return t.base.RoundTrip(req)
}

// NewClient creates a dashboard client with the configured connection pool,
// timeout and rate limit.
func NewClient(cfg *appconfig.Config) *Client {
	log := logger.GetLogger()

	transport := &http.Transport{
		MaxIdleConns:        cfg.Dashboard.ConnectionPool.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.Dashboard.ConnectionPool.MaxIdleConns,
		MaxConnsPerHost:     cfg.Dashboard.ConnectionPool.MaxConnsPerHost,
		IdleConnTimeout:     cfg.Dashboard.ConnectionPool.IdleConnTimeout,
		DisableCompression:  false,
	}

	httpClient := &http.Client{
		Transport: userAgentTransport{agent: cfg.Dashboard.UserAgent, base: transport},
		Timeout:   cfg.Dashboard.Timeout,
	}

	limiter := rate.NewLimiter(
		rate.Limit(cfg.Dashboard.RateLimit.RequestsPerSecond),
		cfg.Dashboard.RateLimit.BurstSize,
	)

	client := &Client{
		config:  cfg,
		http:    httpClient,
		limiter: limiter,
		log:     log,
	}

	log.WithComponent("dashboard_reader").WithFields(logger.Fields{
		"base_url":           cfg.Dashboard.BaseURL,
		"timeout":            cfg.Dashboard.Timeout,
		"max_conns_per_host": cfg.Dashboard.ConnectionPool.MaxConnsPerHost,
	}).Info("dashboard client initialized")

	return client
}
