package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c3po-initiative/dhroxy-frontend-example/internal/domain"
	"github.com/c3po-initiative/dhroxy-frontend-example/internal/profile"
)

const labBundle = `{
  "resourceType": "Bundle",
  "type": "searchset",
  "entry": [
    {"resource": {
      "resourceType": "Observation",
      "code": {"text": "Ferritin", "coding": [{"display": "Ferritin"}]},
      "valueQuantity": {"value": 900, "unit": "µg/L"},
      "effectiveDateTime": "2024-01-01T08:00:00Z",
      "interpretation": [{"coding": [{"code": "HH"}]}]
    }},
    {"resource": {
      "resourceType": "Observation",
      "code": {"text": "Ferritin", "coding": [{"display": "Ferritin"}]},
      "valueQuantity": {"value": 450, "unit": "µg/L"},
      "effectiveDateTime": "2023-06-01T08:00:00Z"
    }},
    {"resource": {
      "resourceType": "Observation",
      "code": {"text": "Natrium", "coding": [{"display": "Natrium"}]},
      "valueQuantity": {"value": 140, "unit": "mmol/L"},
      "effectiveDateTime": "2024-01-01T08:00:00Z",
      "referenceRange": [{"low": {"value": 137}, "high": {"value": 145}}]
    }}
  ]
}`

type stubLabs struct {
	observations []domain.Observation
	err          error
	calls        int
}

func (s *stubLabs) LabObservations(context.Context) ([]domain.Observation, error) {
	s.calls++
	return s.observations, s.err
}

func newTestServer(t *testing.T, opts ...ServerOption) (*Server, profile.Store) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	store := profile.NewMemoryStore()
	server, err := NewServer(store, append([]ServerOption{WithLogger(logger)}, opts...)...)
	require.NoError(t, err)
	server.now = func() time.Time { return time.Date(2024, 1, 3, 10, 0, 0, 0, time.UTC) }
	return server, store
}

func bundleParam(t *testing.T, raw string) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &out))
	return out
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func decodeResult(t *testing.T, res *mcp.CallToolResult, v any) {
	t.Helper()
	require.False(t, res.IsError, resultText(t, res))
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), v))
}

func TestNewServer(t *testing.T) {
	server, _ := newTestServer(t, WithServerInfo(ServerInfo{Name: "test", Version: "v9"}))
	assert.NotNil(t, server.MCPServer())
	assert.Equal(t, "test", server.info.Name)

	_, err := NewServer(nil)
	assert.Error(t, err)
}

func TestClassifyObservations(t *testing.T) {
	server, _ := newTestServer(t)

	res, _, err := server.handleClassifyObservations(context.Background(), nil, BundleParams{Bundle: bundleParam(t, labBundle)})
	require.NoError(t, err)

	var out struct {
		Action []json.RawMessage `json:"action"`
		OK     []json.RawMessage `json:"ok"`
	}
	decodeResult(t, res, &out)
	assert.Len(t, out.Action, 1)
	assert.Len(t, out.OK, 1)
}

func TestClassifyObservations_Source(t *testing.T) {
	tests := []struct {
		name    string
		labs    *stubLabs
		isError bool
	}{
		{"no bundle and no source", nil, true},
		{"source fails", &stubLabs{err: errors.New("HTTP error! status: 502")}, true},
		{"source answers", &stubLabs{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts []ServerOption
			if tt.labs != nil {
				opts = append(opts, WithObservationSource(tt.labs))
			}
			server, _ := newTestServer(t, opts...)

			res, _, err := server.handleClassifyObservations(context.Background(), nil, BundleParams{})
			require.NoError(t, err)
			assert.Equal(t, tt.isError, res.IsError)
			if tt.labs != nil {
				assert.Equal(t, 1, tt.labs.calls)
			}
		})
	}
}

func TestClassifyObservations_RejectsOtherResources(t *testing.T) {
	server, _ := newTestServer(t)

	res, _, err := server.handleClassifyObservations(context.Background(), nil, BundleParams{
		Bundle: map[string]any{"resourceType": "Patient", "id": "p1"},
	})
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "Patient")
}

func TestLabPanel(t *testing.T) {
	server, _ := newTestServer(t)

	res, _, err := server.handleLabPanel(context.Background(), nil, BundleParams{Bundle: bundleParam(t, labBundle)})
	require.NoError(t, err)

	var panel struct {
		Critical []json.RawMessage `json:"critical"`
		Missing  []string          `json:"missing"`
	}
	decodeResult(t, res, &panel)
	assert.NotEmpty(t, panel.Missing)
}

func TestLabTrends(t *testing.T) {
	server, _ := newTestServer(t)

	res, _, err := server.handleLabTrends(context.Background(), nil, BundleParams{Bundle: bundleParam(t, labBundle)})
	require.NoError(t, err)

	var out struct {
		Trends []domain.TestTrend `json:"trends"`
	}
	decodeResult(t, res, &out)

	var ferritin *domain.TestTrend
	for i := range out.Trends {
		if out.Trends[i].Name == "Ferritin" {
			ferritin = &out.Trends[i]
		}
	}
	require.NotNil(t, ferritin)
	assert.Len(t, ferritin.Points, 2)
	assert.Equal(t, domain.TrendRising, ferritin.Trend.Direction)
	assert.Equal(t, 100.0, ferritin.Trend.PercentChange)
}

func TestSleepSummary(t *testing.T) {
	server, _ := newTestServer(t)
	ctx := context.Background()

	res, _, err := server.handleSleepSummary(ctx, nil, SleepSummaryParams{
		Sessions: []SleepSessionParams{
			{Start: "2024-01-02T23:30:00Z", End: "2024-01-03T01:00:00Z", Stage: "Deep"},
			{Start: "2024-01-03T01:00:00Z", End: "2024-01-03T06:00:00Z", Stage: "Core"},
		},
		Days: 3,
	})
	require.NoError(t, err)

	var summary struct {
		WindowDays int `json:"window_days"`
		Nights     []struct {
			Label        string  `json:"label"`
			TotalMinutes float64 `json:"total_minutes"`
		} `json:"nights"`
	}
	decodeResult(t, res, &summary)
	assert.Equal(t, 3, summary.WindowDays)
	require.Len(t, summary.Nights, 3)
	assert.Equal(t, "I går nat", summary.Nights[1].Label)
	assert.Equal(t, 390.0, summary.Nights[1].TotalMinutes)

	tests := []struct {
		name   string
		params SleepSummaryParams
	}{
		{"no input", SleepSummaryParams{}},
		{"too many days", SleepSummaryParams{Days: 365, Sessions: []SleepSessionParams{{Start: "2024-01-02T23:30:00Z", End: "2024-01-03T01:00:00Z"}}}},
		{"bad start", SleepSummaryParams{Sessions: []SleepSessionParams{{Start: "yesterday", End: "2024-01-03T01:00:00Z"}}}},
		{"bad reference time", SleepSummaryParams{ReferenceTime: "now", Sessions: []SleepSessionParams{{Start: "2024-01-02T23:30:00Z", End: "2024-01-03T01:00:00Z"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, _, err := server.handleSleepSummary(ctx, nil, tt.params)
			require.NoError(t, err)
			assert.True(t, res.IsError)
		})
	}
}

func TestRecommendations(t *testing.T) {
	server, store := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, domain.KeyLifestyle, `{"smoker":true,"exerciseWeekly":4,"sleepHours":8}`))

	res, _, err := server.handleRecommendations(ctx, nil, RecommendationsParams{SkipLabs: true})
	require.NoError(t, err)
	var set domain.RecommendationSet
	decodeResult(t, res, &set)
	require.Len(t, set.Lifestyle, 1)
	assert.Equal(t, "smoking", set.Lifestyle[0].Rule)

	smoker := false
	res, _, err = server.handleRecommendations(ctx, nil, RecommendationsParams{
		Lifestyle: &LifestyleParams{Smoker: &smoker},
	})
	require.NoError(t, err)
	set = domain.RecommendationSet{}
	decodeResult(t, res, &set)
	assert.Empty(t, set.Lifestyle)
}

func TestExplainLabResult(t *testing.T) {
	server, _ := newTestServer(t)
	ctx := context.Background()

	res, _, err := server.handleExplainLabResult(ctx, nil, ExplainLabResultParams{
		Bundle: bundleParam(t, labBundle),
		Name:   "natr",
	})
	require.NoError(t, err)
	var out struct {
		Explanations []domain.Explanation `json:"explanations"`
	}
	decodeResult(t, res, &out)
	require.Len(t, out.Explanations, 1)
	assert.Equal(t, "Natrium", out.Explanations[0].Name)

	res, _, err = server.handleExplainLabResult(ctx, nil, ExplainLabResultParams{
		Observation: map[string]any{
			"resourceType":  "Observation",
			"code":          map[string]any{"text": "Ferritin"},
			"valueQuantity": map[string]any{"value": 12, "unit": "µg/L"},
		},
	})
	require.NoError(t, err)
	var single domain.Explanation
	decodeResult(t, res, &single)
	assert.Equal(t, "Ferritin", single.Name)

	res, _, err = server.handleExplainLabResult(ctx, nil, ExplainLabResultParams{
		Bundle: bundleParam(t, labBundle),
		Name:   "kolesterol",
	})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}
