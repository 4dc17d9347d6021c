package domain

import (
	"time"
)

// InterpretationCode is the lab-assigned flag on an observation.
type InterpretationCode string

const (
	INTERP_HIGH          InterpretationCode = "H"
	INTERP_CRITICAL_HIGH InterpretationCode = "HH"
	INTERP_LOW           InterpretationCode = "L"
	INTERP_CRITICAL_LOW  InterpretationCode = "LL"
	INTERP_NORMAL        InterpretationCode = "N"
)

// IsValid reports whether the code is one the classifier understands.
func (c InterpretationCode) IsValid() bool {
	switch c {
	case INTERP_HIGH, INTERP_CRITICAL_HIGH, INTERP_LOW, INTERP_CRITICAL_LOW, INTERP_NORMAL:
		return true
	default:
		return false
	}
}

// StatusTier is the severity bucket of a classified observation.
type StatusTier string

const (
	CRITICAL StatusTier = "CRITICAL"
	WARNING  StatusTier = "WARNING"
	NORMAL   StatusTier = "NORMAL"
	UNKNOWN  StatusTier = "UNKNOWN"
)

// IsValid reports whether the tier is known.
func (t StatusTier) IsValid() bool {
	switch t {
	case CRITICAL, WARNING, NORMAL, UNKNOWN:
		return true
	default:
		return false
	}
}

// Direction is the side of the normal range a value deviates to.
type Direction string

const (
	DirectionNone Direction = ""
	DirectionHigh Direction = "high"
	DirectionLow  Direction = "low"
)

// Priority is the presentation bucket used by the prioritized result view.
type Priority string

const (
	PriorityAction Priority = "action"
	PriorityWatch  Priority = "watch"
	PriorityOK     Priority = "ok"
)

// RangeNotAvailable is rendered when an observation has neither range bounds nor range text.
const RangeNotAvailable = "Referenceværdi ikke tilgængelig"

// NormalizedObservation is the uniform rendering model extracted from an Observation.
type NormalizedObservation struct {
	ID                 string             `json:"id,omitempty"`
	Name               string             `json:"name"`
	Code               string             `json:"code,omitempty"`
	Value              ValuePayload       `json:"value"`
	ValueKind          ValueKind          `json:"value_kind"`
	DisplayValue       string             `json:"display_value"`
	Unit               string             `json:"unit,omitempty"`
	IsNumeric          bool               `json:"is_numeric"`
	Date               time.Time          `json:"date,omitempty"`
	HasDate            bool               `json:"has_date"`
	End                time.Time          `json:"end,omitempty"`
	DurationMinutes    *int               `json:"duration_minutes,omitempty"`
	DurationText       string             `json:"duration_text,omitempty"`
	ReferenceRange     *ReferenceRange    `json:"-"`
	RangeText          string             `json:"reference_range"`
	InterpretationCode InterpretationCode `json:"interpretation_code,omitempty"`
	Notes              []string           `json:"notes,omitempty"`
}

// Numeric returns the numeric value when the payload is a quantity or integer.
func (n *NormalizedObservation) Numeric() (float64, bool) {
	if n == nil || n.Value == nil {
		return 0, false
	}
	return n.Value.Numeric()
}

// TestDefinition is a static named test with optional thresholds. A nil threshold is absent.
type TestDefinition struct {
	Name                  string   `json:"name"`
	Keywords              []string `json:"keywords"`
	Unit                  string   `json:"unit"`
	Category              string   `json:"category,omitempty"`
	LowCriticalThreshold  *float64 `json:"low_critical,omitempty"`
	LowWarningThreshold   *float64 `json:"low_warning,omitempty"`
	HighWarningThreshold  *float64 `json:"high_warning,omitempty"`
	HighCriticalThreshold *float64 `json:"high_critical,omitempty"`
}

// ClassifiedResult is an observation with its computed status. It is recomputed on every fetch.
type ClassifiedResult struct {
	Observation        *NormalizedObservation `json:"observation"`
	Test               string                 `json:"test,omitempty"`
	Tier               StatusTier             `json:"tier"`
	StatusLabel        string                 `json:"status_label"`
	Reason             string                 `json:"reason"`
	Recommendation     string                 `json:"recommendation"`
	Direction          Direction              `json:"direction,omitempty"`
	Priority           Priority               `json:"priority"`
	NearBoundary       bool                   `json:"near_boundary,omitempty"`
	InterpretationUsed bool                   `json:"interpretation_used"`
}

// PrioritizedResults groups classified results by priority, newest first.
type PrioritizedResults struct {
	Action  []ClassifiedResult `json:"action"`
	Watch   []ClassifiedResult `json:"watch"`
	OK      []ClassifiedResult `json:"ok"`
	Unknown []ClassifiedResult `json:"unknown"`
	Skipped int                `json:"skipped"`
}

// LabPanel is the threshold-table classification of the test registry.
type LabPanel struct {
	Critical []ClassifiedResult `json:"critical"`
	Warning  []ClassifiedResult `json:"warning"`
	Normal   []ClassifiedResult `json:"normal"`
	Missing  []string           `json:"missing,omitempty"`
}

// TrendDirection describes the sign of a percent change.
type TrendDirection string

const (
	TrendRising  TrendDirection = "rising"
	TrendFalling TrendDirection = "falling"
	TrendStable  TrendDirection = "stable"
)

// Significance grades the magnitude of a percent change.
type Significance string

const (
	SignificanceHigh   Significance = "high"
	SignificanceMedium Significance = "medium"
	SignificanceLow    Significance = "low"
	SignificanceNone   Significance = "none"
)

// TrendPoint is one dated value of a series.
type TrendPoint struct {
	Value float64   `json:"value"`
	Date  time.Time `json:"date"`
}

type TrendResult struct {
	Direction     TrendDirection `json:"direction"`
	PercentChange float64        `json:"percent_change"`
	Significance  Significance   `json:"significance"`
}

// TestTrend is the trend of one test group over a bundle.
type TestTrend struct {
	Key    string       `json:"key"`
	Name   string       `json:"name"`
	Unit   string       `json:"unit,omitempty"`
	Points []TrendPoint `json:"points"`
	Latest float64      `json:"latest"`
	Trend  TrendResult  `json:"trend"`
}

// Explanation is the patient-facing description of a lab test.
type Explanation struct {
	Name            string   `json:"name"`
	WhatIs          string   `json:"what_is"`
	NormalRange     string   `json:"normal_range"`
	FromSource      bool     `json:"from_source"`
	HighMeaning     string   `json:"high_meaning,omitempty"`
	LowMeaning      string   `json:"low_meaning,omitempty"`
	DoctorQuestions []string `json:"doctor_questions"`
	RelatedTests    []string `json:"related_tests"`
	Status          string   `json:"status"`
	StatusLabel     string   `json:"status_label"`
	DisplayValue    string   `json:"display_value"`
	Unit            string   `json:"unit,omitempty"`
	AnalysisCode    string   `json:"analysis_code,omitempty"`
}

// DashboardTest is one named test on a health dashboard.
type DashboardTest struct {
	Name        string   `json:"name"`
	Keywords    []string `json:"keywords"`
	Target      string   `json:"target"`
	Description string   `json:"description"`
}

// DashboardDefinition is a static panel of related tests.
type DashboardDefinition struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Tests       []DashboardTest `json:"tests"`
}

// DashboardValue is one historical value of a dashboard test.
type DashboardValue struct {
	Display   string    `json:"display"`
	Value     float64   `json:"value"`
	IsNumeric bool      `json:"is_numeric"`
	Unit      string    `json:"unit,omitempty"`
	Date      time.Time `json:"date"`
}

// DashboardTestResult is a dashboard test with its matched data.
type DashboardTestResult struct {
	DashboardTest
	HasData       bool             `json:"has_data"`
	Latest        *DashboardValue  `json:"latest,omitempty"`
	History       []DashboardValue `json:"history,omitempty"`
	ChangePercent *float64         `json:"change_percent,omitempty"`
	Trend         string           `json:"trend,omitempty"`
}

// Dashboard is a built dashboard panel.
type Dashboard struct {
	ID              string                `json:"id"`
	Name            string                `json:"name"`
	Description     string                `json:"description"`
	Tests           []DashboardTestResult `json:"tests"`
	TestsWithData   int                   `json:"tests_with_data"`
	CoveragePercent int                   `json:"coverage_percent"`
}
