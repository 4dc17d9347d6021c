package external

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/c3po-initiative/dhroxy-frontend-example/internal/domain"
	"github.com/c3po-initiative/dhroxy-frontend-example/internal/metrics"
)

// HealthKitClient reads from the HealthKit bridge that syncs Apple Health data.
type HealthKitClient struct {
	httpClient *resty.Client
	breaker    *gobreaker.CircuitBreaker
	logger     *logrus.Logger
}

// NewHealthKitClient creates a HealthKit bridge client.
func NewHealthKitClient(config domain.HealthKitConfig, logger *logrus.Logger) *HealthKitClient {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(config.BaseURL, "/")).
		SetTimeout(config.Timeout).
		SetHeader("Accept", "application/json")

	return &HealthKitClient{
		httpClient: client,
		breaker:    newBreaker("HealthKit", logger),
		logger:     logger,
	}
}

// Status returns the bridge status document.
func (c *HealthKitClient) Status(ctx context.Context) Result {
	return c.get(ctx, "/api/healthkit/status", "status")
}

// Observations returns the synced observations as a Bundle.
func (c *HealthKitClient) Observations(ctx context.Context) Result {
	return c.get(ctx, "/api/healthkit/observations", "observations")
}

// BreakerState reports the HealthKit circuit breaker.
func (c *HealthKitClient) BreakerState() BreakerState {
	return breakerState(c.breaker)
}

func (c *HealthKitClient) get(ctx context.Context, path, label string) Result {
	start := time.Now()
	status := 0
	out, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.httpClient.R().SetContext(ctx).Get(path)
		if err != nil {
			return nil, err
		}
		status = resp.StatusCode()
		if resp.IsError() {
			return nil, &StatusError{Code: resp.StatusCode()}
		}
		if !json.Valid(resp.Body()) {
			return nil, errors.New("invalid JSON in response")
		}
		return json.RawMessage(resp.Body()), nil
	})
	elapsed := time.Since(start)
	resource := "healthkit_" + label

	if err != nil {
		metrics.RecordUpstreamRequest(resource, "error", elapsed)
		c.logger.WithFields(logrus.Fields{
			"path":       path,
			"status":     status,
			"latency_ms": elapsed.Milliseconds(),
		}).WithError(err).Warn("HealthKit request failed")
		return Result{Success: false, Error: breakerMessage(err), Status: status}
	}

	metrics.RecordUpstreamRequest(resource, "ok", elapsed)
	return Result{Success: true, Data: out.(json.RawMessage), Status: status}
}
