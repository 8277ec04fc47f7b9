package sysinfo

import (
	"context"
	"net/http"
	"time"

	"github.com/hostwatch/hostwatch/internal/monitor"
)

// HTTPProber performs health-check requests with a hard per-probe timeout.
type HTTPProber struct {
	client *http.Client
}

// NewHTTPProber creates a prober. The timeout is applied per probe via
// context, so the client itself carries none.
func NewHTTPProber() *HTTPProber {
	return &HTTPProber{client: &http.Client{}}
}

// Probe implements monitor.HealthProber. Any transport failure (including
// the timeout firing) is reported in Err; a completed request with a
// non-2xx/3xx status is reported as unhealthy with an empty Err.
func (p *HTTPProber) Probe(ctx context.Context, url string, timeout time.Duration) monitor.ProbeResult {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return monitor.ProbeResult{Err: err.Error()}
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		return monitor.ProbeResult{ResponseSeconds: elapsed, Err: err.Error()}
	}
	defer resp.Body.Close()

	return monitor.ProbeResult{
		Healthy:         resp.StatusCode >= 200 && resp.StatusCode < 400,
		ResponseSeconds: elapsed,
	}
}
