package external

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/c3po-initiative/dhroxy-frontend-example/internal/domain"
	"github.com/c3po-initiative/dhroxy-frontend-example/internal/metrics"
)

const (
	defaultMaxConcurrency = 6
	defaultLabCount       = 1000
	defaultLabSince       = "2015-01-01"
)

// FHIRClient talks to the FHIR proxy. Every call goes through a rate limiter and a
// circuit breaker; successful GET bodies are cached per credential set.
type FHIRClient struct {
	baseURL    string
	httpClient *http.Client
	rateLimit  *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	cache      *ResponseCache
	config     domain.UpstreamConfig
	logger     *logrus.Logger

	mu      sync.RWMutex
	headers map[string]string
}

// NewFHIRClient creates a FHIR proxy client. cache may be nil.
func NewFHIRClient(config domain.UpstreamConfig, cache *ResponseCache, logger *logrus.Logger) *FHIRClient {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = defaultMaxConcurrency
	}
	if config.LabCount <= 0 {
		config.LabCount = defaultLabCount
	}
	if config.LabSince == "" {
		config.LabSince = defaultLabSince
	}

	limit := rate.Inf
	if config.RateLimit > 0 {
		limit = rate.Limit(config.RateLimit)
	}

	return &FHIRClient{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		rateLimit: rate.NewLimiter(limit, 1),
		breaker:   newBreaker("FHIR", logger),
		cache:     cache,
		config:    config,
		logger:    logger,
		headers:   map[string]string{},
	}
}

// SetHeaders replaces the client's saved headers, typically the stored credentials.
func (c *FHIRClient) SetHeaders(headers map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.headers = mergeHeaders(headers)
}

// SetBaseURL points the client at another proxy.
func (c *FHIRClient) SetBaseURL(baseURL string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.baseURL = strings.TrimRight(baseURL, "/")
}

// BaseURL returns the proxy base URL in use.
func (c *FHIRClient) BaseURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.baseURL
}

// BreakerState reports the FHIR circuit breaker.
func (c *FHIRClient) BreakerState() BreakerState {
	return breakerState(c.breaker)
}

// Get fetches {base}/{path}.
func (c *FHIRClient) Get(ctx context.Context, path string) Result {
	return c.do(ctx, http.MethodGet, path, nil)
}

// Post sends body as JSON to {base}/{path}. An empty path posts to the base URL.
func (c *FHIRClient) Post(ctx context.Context, path string, body any) Result {
	payload, err := json.Marshal(body)
	if err != nil {
		return failure(fmt.Sprintf("failed to marshal request: %v", err))
	}
	return c.do(ctx, http.MethodPost, path, payload)
}

func (c *FHIRClient) GetPatient(ctx context.Context) Result {
	return c.Get(ctx, "Patient")
}

// GetLabResults fetches up to count observations.
func (c *FHIRClient) GetLabResults(ctx context.Context, count int) Result {
	return c.Get(ctx, fmt.Sprintf("Observation?_count=%d", count))
}

func (c *FHIRClient) GetConditions(ctx context.Context) Result {
	return c.Get(ctx, "Condition")
}

// GetEncounters fetches encounters, optionally filtered by identifier.
func (c *FHIRClient) GetEncounters(ctx context.Context, identifier string) Result {
	if identifier == "" {
		return c.Get(ctx, "Encounter")
	}
	return c.Get(ctx, "Encounter?identifier="+url.QueryEscape(identifier))
}

func (c *FHIRClient) GetDocuments(ctx context.Context) Result {
	return c.Get(ctx, "DocumentReference")
}

func (c *FHIRClient) GetMedicationStatements(ctx context.Context) Result {
	return c.Get(ctx, "MedicationStatement")
}

func (c *FHIRClient) GetMedicationStatement(ctx context.Context, id string) Result {
	return c.Get(ctx, "MedicationStatement/"+url.PathEscape(id))
}

func (c *FHIRClient) GetMedicationRequests(ctx context.Context) Result {
	return c.Get(ctx, "MedicationRequest")
}

func (c *FHIRClient) GetImmunizations(ctx context.Context) Result {
	return c.Get(ctx, "Immunization")
}

func (c *FHIRClient) GetImagingStudies(ctx context.Context) Result {
	return c.Get(ctx, "ImagingStudy")
}

func (c *FHIRClient) GetDiagnosticReports(ctx context.Context) Result {
	return c.Get(ctx, "DiagnosticReport")
}

func (c *FHIRClient) GetAppointments(ctx context.Context) Result {
	return c.Get(ctx, "Appointment")
}

func (c *FHIRClient) GetOrganizations(ctx context.Context) Result {
	return c.Get(ctx, "Organization")
}

func (c *FHIRClient) GetOrganization(ctx context.Context, id string) Result {
	return c.Get(ctx, "Organization/"+url.PathEscape(id))
}

// GetPatientSummary fetches the International Patient Summary document of a patient.
func (c *FHIRClient) GetPatientSummary(ctx context.Context, patientID string) Result {
	return c.Get(ctx, "Patient/"+url.PathEscape(patientID)+"/$summary")
}

// LabQuery is the observation search used by the dashboard batch.
func (c *FHIRClient) LabQuery() Query {
	return Query{
		Kind: domain.KindObservation,
		Path: fmt.Sprintf("Observation?date=ge%s&_count=%d", c.config.LabSince, c.config.LabCount),
	}
}

// DashboardQueries is the resource set the health dashboard loads at once.
func (c *FHIRClient) DashboardQueries() []Query {
	return []Query{
		{Kind: domain.KindPatient, Path: "Patient"},
		c.LabQuery(),
		{Kind: domain.KindCondition, Path: "Condition"},
		{Kind: domain.KindMedicationStatement, Path: "MedicationStatement"},
		{Kind: domain.KindImmunization, Path: "Immunization"},
		{Kind: domain.KindAppointment, Path: "Appointment"},
	}
}

// FetchAll runs the queries concurrently and keeps whatever succeeded.
func (c *FHIRClient) FetchAll(ctx context.Context, queries []Query) BatchResult {
	batch := newBatchResult()
	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, c.config.MaxConcurrency)
	)

	for _, q := range queries {
		wg.Add(1)
		go func(q Query) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			res := c.Get(ctx, q.Path)

			mu.Lock()
			defer mu.Unlock()
			if res.Success {
				batch.Succeeded[q.Kind] = res.Data
				return
			}
			batch.Failed[q.Kind] = res.Error
		}(q)
	}
	wg.Wait()

	c.logger.WithFields(logrus.Fields{
		"requested": len(queries),
		"succeeded": len(batch.Succeeded),
		"failed":    len(batch.Failed),
	}).Debug("Batch fetch completed")
	return batch
}

// Transaction posts one transaction bundle with a GET entry per query.
func (c *FHIRClient) Transaction(ctx context.Context, queries []Query) Result {
	entries := make([]domain.BundleEntry, 0, len(queries))
	for _, q := range queries {
		entries = append(entries, domain.BundleEntry{
			Request: &domain.BundleRequest{Method: http.MethodGet, URL: q.Path},
		})
	}
	return c.Post(ctx, "", domain.Bundle{
		ResourceType: string(domain.KindBundle),
		Type:         "transaction",
		Entry:        entries,
	})
}

// FetchBundle loads the queries as one transaction when the proxy supports it,
// falling back to concurrent GETs.
func (c *FHIRClient) FetchBundle(ctx context.Context, queries []Query) BatchResult {
	if c.config.UseTransactionBundle {
		res := c.Transaction(ctx, queries)
		if res.Success {
			if batch, ok := batchFromTransaction(res.Data, queries); ok {
				return batch
			}
		}
		c.logger.WithField("error", res.Error).Info("Transaction bundle unavailable, falling back to separate requests")
	}
	return c.FetchAll(ctx, queries)
}

// batchFromTransaction maps transaction-response entries back to the queries by position.
func batchFromTransaction(data json.RawMessage, queries []Query) (BatchResult, bool) {
	var bundle domain.Bundle
	if err := json.Unmarshal(data, &bundle); err != nil || bundle.ResourceType != string(domain.KindBundle) {
		return BatchResult{}, false
	}
	if len(bundle.Entry) != len(queries) {
		return BatchResult{}, false
	}

	batch := newBatchResult()
	for i, e := range bundle.Entry {
		kind := queries[i].Kind
		if e.Response != nil {
			if fields := strings.Fields(e.Response.Status); len(fields) > 0 && !strings.HasPrefix(fields[0], "2") {
				batch.Failed[kind] = "HTTP error! status: " + fields[0]
				continue
			}
		}
		if len(e.Resource) == 0 {
			batch.Failed[kind] = "empty transaction entry"
			continue
		}
		batch.Succeeded[kind] = e.Resource
	}
	return batch, true
}

func (c *FHIRClient) do(ctx context.Context, method, path string, body []byte) Result {
	c.mu.RLock()
	target := c.baseURL
	headers := mergeHeaders(
		map[string]string{"Content-Type": "application/json"},
		c.headers,
		CredentialsFrom(ctx),
	)
	c.mu.RUnlock()
	if path != "" {
		target += "/" + strings.TrimLeft(path, "/")
	}

	resource := resourceLabel(path)
	logger := c.logger.WithFields(logrus.Fields{
		"method":   method,
		"resource": resource,
	})

	cacheable := method == http.MethodGet && c.cache != nil
	var cacheKey string
	if cacheable {
		cacheKey = c.cache.Key(target, headers)
		if data, ok := c.cache.Get(ctx, cacheKey); ok {
			return Result{Success: true, Data: data, Status: http.StatusOK, Cached: true}
		}
	}

	if err := c.rateLimit.Wait(ctx); err != nil {
		return failure(fmt.Sprintf("rate limit wait failed: %v", err))
	}

	start := time.Now()
	status := 0
	out, err := c.breaker.Execute(func() (interface{}, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, reader)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/fhir+json, application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		status = resp.StatusCode

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &StatusError{Code: resp.StatusCode}
		}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}
		if !json.Valid(data) {
			return nil, errors.New("invalid JSON in response")
		}
		return json.RawMessage(data), nil
	})
	elapsed := time.Since(start)

	if err != nil {
		outcome := "error"
		if status != 0 {
			outcome = fmt.Sprintf("%d", status)
		}
		metrics.RecordUpstreamRequest(resource, outcome, elapsed)
		logger.WithFields(logrus.Fields{
			"status":     status,
			"latency_ms": elapsed.Milliseconds(),
		}).WithError(err).Warn("Upstream request failed")
		return Result{Success: false, Error: breakerMessage(err), Status: status}
	}

	data := out.(json.RawMessage)
	metrics.RecordUpstreamRequest(resource, fmt.Sprintf("%d", status), elapsed)
	logger.WithFields(logrus.Fields{
		"status":     status,
		"latency_ms": elapsed.Milliseconds(),
	}).Debug("Upstream request completed")

	if cacheable {
		c.cache.Set(ctx, cacheKey, data, 0)
	}
	return Result{Success: true, Data: data, Status: status}
}

// resourceLabel is the resource type a path addresses, used as a metric label.
func resourceLabel(path string) string {
	path = strings.TrimLeft(path, "/")
	if path == "" {
		return string(domain.KindBundle)
	}
	if i := strings.IndexAny(path, "/?"); i >= 0 {
		path = path[:i]
	}
	if !domain.ResourceKind(path).IsValid() {
		return "other"
	}
	return path
}
