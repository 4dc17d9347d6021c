package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/c3po-initiative/dhroxy-frontend-example/internal/domain"
	"github.com/c3po-initiative/dhroxy-frontend-example/internal/profile"
	"github.com/c3po-initiative/dhroxy-frontend-example/internal/service"
)

// Tool names
const (
	ToolClassifyObservations = "classify_observations"
	ToolLabPanel             = "lab_panel"
	ToolLabTrends            = "lab_trends"
	ToolSleepSummary         = "sleep_summary"
	ToolRecommendations      = "recommendations"
	ToolExplainLabResult     = "explain_lab_result"
)

// ToolNames lists every registered tool.
var ToolNames = []string{
	ToolClassifyObservations,
	ToolLabPanel,
	ToolLabTrends,
	ToolSleepSummary,
	ToolRecommendations,
	ToolExplainLabResult,
}

const maxSleepDays = 90

var errNoLabData = errors.New("bundle is required when no FHIR proxy is configured")

// BundleParams carries an optional FHIR Bundle of Observation resources.
type BundleParams struct {
	Bundle map[string]any `json:"bundle,omitempty" jsonschema:"FHIR Bundle of Observation resources. Omit to use the configured FHIR proxy."`
}

// SleepSessionParams is one sleep interval.
type SleepSessionParams struct {
	Start string `json:"start" jsonschema:"RFC 3339 start time"`
	End   string `json:"end" jsonschema:"RFC 3339 end time"`
	Stage string `json:"stage,omitempty" jsonschema:"Stage text such as Deep, REM, Core, Awake, InBed or Asleep"`
}

// SleepSummaryParams defines parameters for sleep_summary tool
type SleepSummaryParams struct {
	Sessions      []SleepSessionParams `json:"sessions,omitempty" jsonschema:"Sleep sessions to aggregate"`
	Bundle        map[string]any       `json:"bundle,omitempty" jsonschema:"HealthKit FHIR Bundle to read sleep sessions from instead of sessions"`
	Days          int                  `json:"days,omitempty" jsonschema:"Number of nights, 1 to 90. Defaults to 7."`
	ReferenceTime string               `json:"reference_time,omitempty" jsonschema:"RFC 3339 time the window ends at. Its offset decides night boundaries. Defaults to now."`
}

// LifestyleParams overrides stored lifestyle answers.
type LifestyleParams struct {
	Smoker         *bool `json:"smoker,omitempty"`
	AlcoholWeekly  *int  `json:"alcohol_weekly,omitempty" jsonschema:"Units of alcohol per week"`
	ExerciseWeekly *int  `json:"exercise_weekly,omitempty" jsonschema:"Hours of exercise per week"`
	SleepHours     *int  `json:"sleep_hours,omitempty" jsonschema:"Hours of sleep per night"`
}

// FamilyHistoryParams overrides stored family-history flags.
type FamilyHistoryParams struct {
	Diabetes     *bool `json:"diabetes,omitempty"`
	HeartDisease *bool `json:"heart_disease,omitempty"`
	Cancer       *bool `json:"cancer,omitempty"`
	Hypertension *bool `json:"hypertension,omitempty"`
}

// RecommendationsParams defines parameters for recommendations tool
type RecommendationsParams struct {
	Bundle        map[string]any       `json:"bundle,omitempty" jsonschema:"FHIR Bundle of Observation resources. Omit to use the configured FHIR proxy."`
	Lifestyle     *LifestyleParams     `json:"lifestyle,omitempty" jsonschema:"Lifestyle answers. Missing answers come from the stored profile."`
	FamilyHistory *FamilyHistoryParams `json:"family_history,omitempty" jsonschema:"Family history flags. Missing flags come from the stored profile."`
	SkipLabs      bool                 `json:"skip_labs,omitempty" jsonschema:"Only apply the profile rules"`
}

// ExplainLabResultParams defines parameters for explain_lab_result tool
type ExplainLabResultParams struct {
	Observation map[string]any `json:"observation,omitempty" jsonschema:"A single FHIR Observation resource"`
	Bundle      map[string]any `json:"bundle,omitempty" jsonschema:"FHIR Bundle to search when no observation is given"`
	Name        string         `json:"name,omitempty" jsonschema:"Case-insensitive test name filter, e.g. ferritin"`
}

func (s *Server) handleClassifyObservations(ctx context.Context, req *mcp.CallToolRequest, params BundleParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", ToolClassifyObservations).Info("Tool invoked")

	observations, err := s.observations(ctx, params.Bundle)
	if err != nil {
		return s.createErrorResult("Could not read observations", err), nil, nil
	}
	return s.createJSONResult(service.Classify(observations))
}

func (s *Server) handleLabPanel(ctx context.Context, req *mcp.CallToolRequest, params BundleParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", ToolLabPanel).Info("Tool invoked")

	observations, err := s.observations(ctx, params.Bundle)
	if err != nil {
		return s.createErrorResult("Could not read observations", err), nil, nil
	}
	return s.createJSONResult(service.Panel(observations))
}

func (s *Server) handleLabTrends(ctx context.Context, req *mcp.CallToolRequest, params BundleParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", ToolLabTrends).Info("Tool invoked")

	observations, err := s.observations(ctx, params.Bundle)
	if err != nil {
		return s.createErrorResult("Could not read observations", err), nil, nil
	}
	return s.createJSONResult(map[string]any{"trends": service.GroupTrends(observations)})
}

func (s *Server) handleSleepSummary(ctx context.Context, req *mcp.CallToolRequest, params SleepSummaryParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", ToolSleepSummary).Info("Tool invoked")

	days := params.Days
	if days == 0 {
		days = 7
	}
	if days < 1 || days > maxSleepDays {
		return s.createErrorResult("Invalid days", fmt.Errorf("days must be between 1 and %d, got %d", maxSleepDays, params.Days)), nil, nil
	}

	now := s.now()
	if params.ReferenceTime != "" {
		t, err := time.Parse(time.RFC3339, params.ReferenceTime)
		if err != nil {
			return s.createErrorResult("Invalid reference_time", err), nil, nil
		}
		now = t
	}

	var sessions []domain.SleepSession
	switch {
	case len(params.Sessions) > 0:
		for i, p := range params.Sessions {
			start, err := time.Parse(time.RFC3339, p.Start)
			if err != nil {
				return s.createErrorResult(fmt.Sprintf("Invalid start of session %d", i), err), nil, nil
			}
			end, err := time.Parse(time.RFC3339, p.End)
			if err != nil {
				return s.createErrorResult(fmt.Sprintf("Invalid end of session %d", i), err), nil, nil
			}
			sessions = append(sessions, domain.SleepSession{Start: start, End: end, StageText: p.Stage})
		}
	case params.Bundle != nil:
		bundle, err := parseBundle(params.Bundle)
		if err != nil {
			return s.createErrorResult("Invalid bundle", err), nil, nil
		}
		sessions = service.SleepSessionsFromObservations(service.SleepObservations(service.GroupHealthKit(bundle.Observations())))
	default:
		return s.createErrorResult("Missing required parameter", errors.New("sessions or bundle is required")), nil, nil
	}

	return s.createJSONResult(service.SummarizeSleep(sessions, days, now))
}

func (s *Server) handleRecommendations(ctx context.Context, req *mcp.CallToolRequest, params RecommendationsParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", ToolRecommendations).Info("Tool invoked")

	settings, err := profile.LoadSettings(ctx, s.store, s.logger)
	if err != nil {
		return s.createErrorResult("Could not read profile", err), nil, nil
	}
	lifestyle := settings.Lifestyle
	if l := params.Lifestyle; l != nil {
		setIf(&lifestyle.Smoker, l.Smoker)
		setIf(&lifestyle.AlcoholWeekly, l.AlcoholWeekly)
		setIf(&lifestyle.ExerciseWeekly, l.ExerciseWeekly)
		setIf(&lifestyle.SleepHours, l.SleepHours)
	}
	family := settings.FamilyHistory
	if f := params.FamilyHistory; f != nil {
		setIf(&family.Diabetes, f.Diabetes)
		setIf(&family.HeartDisease, f.HeartDisease)
		setIf(&family.Cancer, f.Cancer)
		setIf(&family.Hypertension, f.Hypertension)
	}

	var observations []domain.Observation
	if !params.SkipLabs {
		observations, err = s.observations(ctx, params.Bundle)
		if err != nil {
			if params.Bundle != nil {
				return s.createErrorResult("Could not read observations", err), nil, nil
			}
			s.logger.WithError(err).Info("Recommendations without lab data")
		}
	}

	return s.createJSONResult(service.Recommend(observations, lifestyle, family))
}

func (s *Server) handleExplainLabResult(ctx context.Context, req *mcp.CallToolRequest, params ExplainLabResultParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", ToolExplainLabResult).Info("Tool invoked")

	if params.Observation != nil {
		var o domain.Observation
		if err := remarshal(params.Observation, &o); err != nil {
			return s.createErrorResult("Invalid observation", err), nil, nil
		}
		if o.ResourceType != string(domain.KindObservation) {
			return s.createErrorResult("Invalid observation", fmt.Errorf("resourceType must be Observation, got %q", o.ResourceType)), nil, nil
		}
		return s.createJSONResult(service.Explain(&o))
	}

	observations, err := s.observations(ctx, params.Bundle)
	if err != nil {
		return s.createErrorResult("Could not read observations", err), nil, nil
	}

	explanations := service.ExplainAll(observations)
	if name := strings.ToLower(strings.TrimSpace(params.Name)); name != "" {
		filtered := explanations[:0]
		for _, e := range explanations {
			if strings.Contains(strings.ToLower(e.Name), name) {
				filtered = append(filtered, e)
			}
		}
		explanations = filtered
	}
	if len(explanations) == 0 {
		return s.createErrorResult("No matching lab results", nil), nil, nil
	}
	return s.createJSONResult(map[string]any{"explanations": explanations})
}

// observations reads the posted bundle, or fetches the lab results when none was posted.
func (s *Server) observations(ctx context.Context, raw map[string]any) ([]domain.Observation, error) {
	if raw != nil {
		bundle, err := parseBundle(raw)
		if err != nil {
			return nil, err
		}
		return bundle.Observations(), nil
	}
	if s.labs == nil {
		return nil, errNoLabData
	}
	return s.labs.LabObservations(ctx)
}

func parseBundle(raw map[string]any) (*domain.Bundle, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	kind, err := domain.ResourceTypeOf(data)
	if err != nil {
		return nil, err
	}
	if kind != domain.KindBundle && kind != domain.KindObservation {
		return nil, fmt.Errorf("expected a Bundle or Observation, got %s", kind)
	}
	return domain.ParseBundle(data)
}

func remarshal(in any, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// createJSONResult renders v as indented JSON text.
func (s *Server) createJSONResult(v any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return s.createErrorResult("Failed to encode result", err), nil, nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(data)},
		},
	}, nil, nil
}

// createErrorResult creates a standardized error result for tool calls
func (s *Server) createErrorResult(message string, err error) *mcp.CallToolResult {
	errorText := fmt.Sprintf("Error: %s", message)
	if err != nil {
		errorText += fmt.Sprintf(" - %v", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: errorText},
		},
		IsError: true,
	}
}
