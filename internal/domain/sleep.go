package domain

import (
	"time"
)

// SleepStage is a physiological stage bucket.
type SleepStage string

const (
	StageDeep   SleepStage = "deep"
	StageREM    SleepStage = "rem"
	StageCore   SleepStage = "core"
	StageAwake  SleepStage = "awake"
	StageInBed  SleepStage = "inBed"
	StageAsleep SleepStage = "asleep"
)

// SleepStages lists every stage in display order.
var SleepStages = []SleepStage{StageDeep, StageREM, StageCore, StageAwake, StageInBed, StageAsleep}

// SleepSession is one raw interval-based sleep observation.
type SleepSession struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	StageText string    `json:"stage_text"`
}

// SessionSummary is a session attributed to a night.
type SessionSummary struct {
	Start           time.Time  `json:"start"`
	End             time.Time  `json:"end"`
	DurationMinutes float64    `json:"duration_minutes"`
	Stage           SleepStage `json:"stage"`
	StageLabel      string     `json:"stage_label"`
}

// StageDurations holds minutes per stage.
type StageDurations struct {
	Deep   float64 `json:"deep"`
	REM    float64 `json:"rem"`
	Core   float64 `json:"core"`
	Awake  float64 `json:"awake"`
	InBed  float64 `json:"inBed"`
	Asleep float64 `json:"asleep"`
}

// Add adds minutes to the given stage.
func (d *StageDurations) Add(stage SleepStage, minutes float64) {
	switch stage {
	case StageDeep:
		d.Deep += minutes
	case StageREM:
		d.REM += minutes
	case StageCore:
		d.Core += minutes
	case StageAwake:
		d.Awake += minutes
	case StageInBed:
		d.InBed += minutes
	default:
		d.Asleep += minutes
	}
}

// Get returns the minutes recorded for stage.
func (d StageDurations) Get(stage SleepStage) float64 {
	switch stage {
	case StageDeep:
		return d.Deep
	case StageREM:
		return d.REM
	case StageCore:
		return d.Core
	case StageAwake:
		return d.Awake
	case StageInBed:
		return d.InBed
	default:
		return d.Asleep
	}
}

// SleepNight aggregates the sessions attributed to one calendar date.
type SleepNight struct {
	CalendarDate string           `json:"calendar_date"`
	Weekday      string           `json:"weekday"`
	TotalMinutes float64          `json:"total_minutes"`
	TotalText    string           `json:"total_text"`
	Sessions     []SessionSummary `json:"sessions"`
	Stages       StageDurations   `json:"stage_durations"`
	Warnings     []string         `json:"warnings,omitempty"`
}

// HealthKitGroup is a set of HealthKit observations sharing a type identifier.
type HealthKitGroup struct {
	Code         string        `json:"code"`
	Display      string        `json:"display"`
	Observations []Observation `json:"observations"`
}

// HealthKitStatus is the bridge's status document, passed through as reported.
type HealthKitStatus map[string]any
