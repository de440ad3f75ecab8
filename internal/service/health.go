package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/benbjohnson/clock"

	"xcbridgectl/internal/logger"
)

const healthTimeout = 2 * time.Second

// ErrUnhealthy is returned when /status never reports healthy.
var ErrUnhealthy = errors.New("service did not report healthy")

// Status is the subset of the service's /status response the probe reads.
type Status struct {
	Healthy      bool   `json:"healthy"`
	XcodeVersion string `json:"xcode_version"`
}

// HealthProbe queries the service's own status endpoint.
type HealthProbe struct {
	url      string
	apiKey   string
	client   *http.Client
	clock    clock.Clock
	attempts int
	interval time.Duration
}

// NewHealthProbe returns a probe for a service listening on 127.0.0.1:port.
func NewHealthProbe(port int, apiKey string, clk clock.Clock, attempts int, interval time.Duration) *HealthProbe {
	return newHealthProbe(fmt.Sprintf("http://127.0.0.1:%d/status", port), apiKey, clk, attempts, interval)
}

func newHealthProbe(url, apiKey string, clk clock.Clock, attempts int, interval time.Duration) *HealthProbe {
	if clk == nil {
		clk = clock.New()
	}
	if attempts < 1 {
		attempts = 1
	}
	return &HealthProbe{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{
			Timeout:   healthTimeout,
			Transport: &http.Transport{DisableKeepAlives: true},
		},
		clock:    clk,
		attempts: attempts,
		interval: interval,
	}
}

// Check performs a single status request.
func (h *HealthProbe) Check(ctx context.Context) (Status, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return Status{}, fmt.Errorf("failed to create status request: %w", err)
	}
	if h.apiKey != "" {
		req.Header.Set("X-API-Key", h.apiKey)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return Status{}, fmt.Errorf("status request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Status{}, fmt.Errorf("status returned HTTP %d: %s", resp.StatusCode, string(body))
	}

	var st Status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return Status{}, fmt.Errorf("failed to parse status response: %w", err)
	}
	if !st.Healthy {
		return st, ErrUnhealthy
	}
	return st, nil
}

// Wait retries Check until it succeeds or the attempts run out.
func (h *HealthProbe) Wait(ctx context.Context) (Status, error) {
	log := logger.WithComponent("health")
	var lastErr error
	for attempt := 1; attempt <= h.attempts; attempt++ {
		st, err := h.Check(ctx)
		if err == nil {
			return st, nil
		}
		lastErr = err
		log.Debug().Err(err).Int("attempt", attempt).Msg("Status probe failed")
		if attempt < h.attempts {
			h.clock.Sleep(h.interval)
		}
	}
	return Status{}, fmt.Errorf("%w after %d attempts: %v", ErrUnhealthy, h.attempts, lastErr)
}
