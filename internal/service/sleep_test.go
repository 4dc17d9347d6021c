package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c3po-initiative/dhroxy-frontend-example/internal/domain"
)

func at(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, value)
	require.NoError(t, err)
	return ts
}

func TestNightKey(t *testing.T) {
	tests := []struct {
		start string
		want  string
	}{
		{"2024-01-02T23:30:00Z", "2024-01-02"},
		{"2024-01-03T01:00:00Z", "2024-01-02"},
		{"2024-01-03T11:59:00Z", "2024-01-02"},
		{"2024-01-03T12:00:00Z", "2024-01-03"},
		{"2024-03-01T02:00:00Z", "2024-02-29"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NightKey(at(t, tt.start)), tt.start)
	}
}

func TestAggregate(t *testing.T) {
	now := at(t, "2024-01-03T10:00:00Z")
	sessions := []domain.SleepSession{
		{Start: at(t, "2024-01-03T01:00:00Z"), End: at(t, "2024-01-03T06:00:00Z"), StageText: "Core"},
		{Start: at(t, "2024-01-02T23:30:00Z"), End: at(t, "2024-01-03T01:00:00Z"), StageText: "Deep"},
		{Start: at(t, "2023-12-01T23:00:00Z"), End: at(t, "2023-12-02T06:00:00Z"), StageText: "Core"},
	}

	nights := Aggregate(sessions, 7, now)
	require.Len(t, nights, 7)
	assert.Equal(t, "2023-12-28", nights[0].CalendarDate)
	assert.Equal(t, "2024-01-03", nights[6].CalendarDate)

	night := nights[5]
	assert.Equal(t, "2024-01-02", night.CalendarDate)
	assert.Equal(t, "tir", night.Weekday)
	assert.Equal(t, 390.0, night.TotalMinutes)
	assert.Equal(t, "6t 30m", night.TotalText)
	assert.Equal(t, 90.0, night.Stages.Deep)
	assert.Equal(t, 300.0, night.Stages.Core)
	require.Len(t, night.Sessions, 2)
	assert.Equal(t, domain.StageDeep, night.Sessions[0].Stage)
	assert.Equal(t, "Dyb søvn", night.Sessions[0].StageLabel)
	assert.Empty(t, night.Warnings)

	for i, n := range nights {
		if i == 5 {
			continue
		}
		assert.Zero(t, n.TotalMinutes, n.CalendarDate)
		assert.Equal(t, "0t", n.TotalText)
		assert.NotNil(t, n.Sessions)
	}
}

func TestAggregate_NonPositiveDuration(t *testing.T) {
	now := at(t, "2024-01-03T10:00:00Z")
	sessions := []domain.SleepSession{
		{Start: at(t, "2024-01-02T23:00:00Z"), End: at(t, "2024-01-03T07:00:00Z"), StageText: "Asleep"},
		{Start: at(t, "2024-01-03T02:00:00Z"), End: at(t, "2024-01-03T01:30:00Z"), StageText: "Asleep"},
	}

	nights := Aggregate(sessions, 2, now)
	require.Len(t, nights, 2)
	night := nights[0]
	assert.Equal(t, 450.0, night.TotalMinutes)
	require.Len(t, night.Warnings, 1)
	assert.Contains(t, night.Warnings[0], "-30")
}

func TestAggregate_Location(t *testing.T) {
	cph, err := time.LoadLocation("Europe/Copenhagen")
	if err != nil {
		t.Skip("timezone data not available")
	}
	now := time.Date(2024, 1, 3, 10, 0, 0, 0, cph)
	// 11:30 UTC is 12:30 in Copenhagen, so the session belongs to the same date.
	sessions := []domain.SleepSession{
		{Start: at(t, "2024-01-03T11:30:00Z"), End: at(t, "2024-01-03T12:00:00Z"), StageText: "Asleep"},
	}
	nights := Aggregate(sessions, 1, now)
	require.Len(t, nights, 1)
	assert.Equal(t, 30.0, nights[0].TotalMinutes)
}

func TestAggregate_EmptyWindow(t *testing.T) {
	assert.Empty(t, Aggregate(nil, 0, time.Now()))
}

func TestAggregate_NoSessions(t *testing.T) {
	nights := Aggregate(nil, 7, at(t, "2024-01-03T10:00:00Z"))
	require.Len(t, nights, 7)
	for _, night := range nights {
		assert.Equal(t, domain.StageDurations{}, night.Stages, night.CalendarDate)
		assert.Zero(t, night.TotalMinutes, night.CalendarDate)
	}
	assert.Equal(t, "2023-12-28", nights[0].CalendarDate)
	assert.Equal(t, "2024-01-03", nights[6].CalendarDate)
}

func TestNightLabel(t *testing.T) {
	now := at(t, "2024-01-03T10:00:00Z")
	assert.Equal(t, "I nat", NightLabel(domain.SleepNight{CalendarDate: "2024-01-03"}, now))
	assert.Equal(t, "I går nat", NightLabel(domain.SleepNight{CalendarDate: "2024-01-02"}, now))
	assert.Equal(t, "søn 31/12", NightLabel(domain.SleepNight{CalendarDate: "2023-12-31"}, now))
}

func TestSleepPipeline(t *testing.T) {
	heartRate := labObservation("Puls", 60, "bpm", "2024-01-02T22:00:00Z")
	heartRate.Code.Coding[0].System = "http://developer.apple.com/documentation/healthkit"
	heartRate.Code.Coding[0].Code = "HKQuantityTypeIdentifierHeartRate"

	observations := []domain.Observation{
		heartRate,
		sleepObservation("2024-01-02T23:30:00Z", "2024-01-03T01:00:00Z", "Deep"),
		sleepObservation("2024-01-03T01:00:00Z", "2024-01-03T02:00:00Z", "REM"),
	}

	groups := GroupHealthKit(observations)
	require.Len(t, groups, 2)
	assert.Equal(t, "Puls", groups[0].Display)
	assert.Equal(t, "Søvn", groups[1].Display)

	sleep := SleepObservations(groups)
	require.Len(t, sleep, 2)
	assert.Equal(t, "2024-01-03T01:00:00Z", sleep[0].EffectivePeriod.Start)

	sessions := SleepSessionsFromObservations(sleep)
	require.Len(t, sessions, 2)
	assert.Equal(t, "REM", sessions[0].StageText)

	nights := Aggregate(sessions, 3, at(t, "2024-01-03T10:00:00Z"))
	assert.Equal(t, 150.0, nights[1].TotalMinutes)
	assert.Equal(t, 60.0, nights[1].Stages.REM)
}
