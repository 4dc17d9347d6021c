package external

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/c3po-initiative/dhroxy-frontend-example/internal/domain"
)

// Result is the outcome of one upstream request. Transport failures and non-2xx
// responses are captured here and never returned as errors.
type Result struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
	Status  int             `json:"-"`
	Cached  bool            `json:"-"`
}

// Bundle decodes the result body as a FHIR bundle.
func (r Result) Bundle() (*domain.Bundle, error) {
	if !r.Success {
		return nil, fmt.Errorf("upstream request failed: %s", r.Error)
	}
	return domain.ParseBundle(r.Data)
}

func failure(message string) Result {
	return Result{Success: false, Error: message}
}

// StatusError is returned for non-2xx upstream responses.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP error! status: %d", e.Code)
}

// Query is one resource request of a batch.
type Query struct {
	Kind domain.ResourceKind `json:"kind"`
	Path string              `json:"path"`
}

// ResourceEntry is one resource of a normalized batch.
type ResourceEntry struct {
	Kind     domain.ResourceKind `json:"resourceType"`
	Resource json.RawMessage     `json:"resource"`
}

// BatchResult collects the per-kind outcome of a multi-resource fetch. One
// kind failing does not fail the batch.
type BatchResult struct {
	Succeeded map[domain.ResourceKind]json.RawMessage `json:"succeeded"`
	Failed    map[domain.ResourceKind]string          `json:"failed"`
}

func newBatchResult() BatchResult {
	return BatchResult{
		Succeeded: map[domain.ResourceKind]json.RawMessage{},
		Failed:    map[domain.ResourceKind]string{},
	}
}

// OK reports whether at least one kind succeeded.
func (b BatchResult) OK() bool {
	return len(b.Succeeded) > 0
}

// Entries flattens the successful bodies into resource entries, ordered by kind.
// Bundles are unwrapped; bare resources are kept as-is.
func (b BatchResult) Entries() []ResourceEntry {
	kinds := make([]string, 0, len(b.Succeeded))
	for k := range b.Succeeded {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)

	var out []ResourceEntry
	for _, k := range kinds {
		bundle, err := domain.ParseBundle(b.Succeeded[domain.ResourceKind(k)])
		if err != nil {
			continue
		}
		for _, e := range bundle.Entry {
			kind, err := domain.ResourceTypeOf(e.Resource)
			if err != nil {
				continue
			}
			out = append(out, ResourceEntry{Kind: kind, Resource: e.Resource})
		}
	}
	return out
}

// Bundle returns the successful body for one kind as a bundle.
func (b BatchResult) Bundle(kind domain.ResourceKind) (*domain.Bundle, bool) {
	raw, ok := b.Succeeded[kind]
	if !ok {
		return nil, false
	}
	bundle, err := domain.ParseBundle(raw)
	if err != nil {
		return nil, false
	}
	return bundle, true
}

// FHIRSource is the upstream surface the services depend on.
type FHIRSource interface {
	Get(ctx context.Context, path string) Result
	GetPatient(ctx context.Context) Result
	GetLabResults(ctx context.Context, count int) Result
	GetPatientSummary(ctx context.Context, patientID string) Result
	FetchBundle(ctx context.Context, queries []Query) BatchResult
	LabQuery() Query
	DashboardQueries() []Query
}

// HealthKitSource is the HealthKit bridge surface.
type HealthKitSource interface {
	Status(ctx context.Context) Result
	Observations(ctx context.Context) Result
}

// ChatCompleter produces one assistant reply.
type ChatCompleter interface {
	Complete(ctx context.Context, system string, messages []domain.ChatMessage) string
}
