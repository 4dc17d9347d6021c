package service

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/c3po-initiative/dhroxy-frontend-example/internal/domain"
)

// SleepAnalysisCode is the HealthKit type identifier of sleep-analysis observations.
const SleepAnalysisCode = "HKCategoryTypeIdentifierSleepAnalysis"

const nightKeyLayout = "2006-01-02"

var danishWeekdays = [...]string{"søn", "man", "tir", "ons", "tor", "fre", "lør"}

// NightKey returns the calendar night a session starting at start belongs to. Sessions
// starting before noon count toward the previous date.
func NightKey(start time.Time) string {
	if start.Hour() < 12 {
		start = start.AddDate(0, 0, -1)
	}
	return start.Format(nightKeyLayout)
}

// Aggregate buckets sessions into exactly windowDays nights ending with the calendar
// date of referenceNow, oldest first. Nights are keyed in referenceNow's location and
// nights without sessions are zero-filled. Sessions attributed to nights outside the
// window are ignored.
func Aggregate(sessions []domain.SleepSession, windowDays int, referenceNow time.Time) []domain.SleepNight {
	if windowDays <= 0 {
		return []domain.SleepNight{}
	}
	loc := referenceNow.Location()

	nights := make([]domain.SleepNight, windowDays)
	index := make(map[string]int, windowDays)
	for i := 0; i < windowDays; i++ {
		day := referenceNow.AddDate(0, 0, i-(windowDays-1))
		key := day.Format(nightKeyLayout)
		nights[i] = domain.SleepNight{
			CalendarDate: key,
			Weekday:      danishWeekdays[day.Weekday()],
			TotalText:    FormatDuration(0),
			Sessions:     []domain.SessionSummary{},
		}
		index[key] = i
	}

	ordered := make([]domain.SleepSession, len(sessions))
	copy(ordered, sessions)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Start.Before(ordered[j].Start) })

	for _, s := range ordered {
		start := s.Start.In(loc)
		idx, ok := index[NightKey(start)]
		if !ok {
			continue
		}
		night := &nights[idx]

		minutes := s.End.Sub(s.Start).Minutes()
		stage := SleepStageDictionary.Classify(s.StageText)
		if minutes <= 0 {
			night.Warnings = append(night.Warnings, fmt.Sprintf(
				"Session %s-%s har en varighed på %s minutter",
				start.Format("15:04"), s.End.In(loc).Format("15:04"), domain.FormatNumber(minutes)))
		}

		night.TotalMinutes += minutes
		night.Stages.Add(stage, minutes)
		night.Sessions = append(night.Sessions, domain.SessionSummary{
			Start:           start,
			End:             s.End.In(loc),
			DurationMinutes: minutes,
			Stage:           stage,
			StageLabel:      SleepStageLabels[stage],
		})
	}

	for i := range nights {
		nights[i].TotalText = FormatDuration(nights[i].TotalMinutes)
	}
	return nights
}

// SleepSessionsFromObservations extracts sessions from sleep-analysis observations.
// Start and end come from the effective period, falling back to effectiveDateTime;
// the stage text from the coded value, the quantity unit or code.text.
func SleepSessionsFromObservations(observations []domain.Observation) []domain.SleepSession {
	var sessions []domain.SleepSession
	for i := range observations {
		o := &observations[i]
		var startText, endText string
		if o.EffectivePeriod != nil {
			startText, endText = o.EffectivePeriod.Start, o.EffectivePeriod.End
		}
		start, ok := domain.ParseFHIRTime(firstNonEmpty(startText, o.EffectiveDateTime), nil)
		if !ok {
			continue
		}
		end, ok := domain.ParseFHIRTime(firstNonEmpty(endText, o.EffectiveDateTime), nil)
		if !ok {
			end = start
		}

		var stageText string
		if o.ValueCodeableConcept != nil {
			stageText = firstNonEmpty(o.ValueCodeableConcept.Text, o.ValueCodeableConcept.FirstCoding().Display)
		}
		if stageText == "" && o.ValueQuantity != nil {
			stageText = o.ValueQuantity.Unit
		}
		sessions = append(sessions, domain.SleepSession{
			Start:     start,
			End:       end,
			StageText: firstNonEmpty(stageText, o.Code.Text, "Sleep"),
		})
	}
	return sessions
}

// NightLabel returns "I nat" for today's date, "I går nat" for yesterday's and a
// short Danish date otherwise.
func NightLabel(night domain.SleepNight, now time.Time) string {
	switch night.CalendarDate {
	case now.Format(nightKeyLayout):
		return "I nat"
	case now.AddDate(0, 0, -1).Format(nightKeyLayout):
		return "I går nat"
	}
	d, err := time.ParseInLocation(nightKeyLayout, night.CalendarDate, now.Location())
	if err != nil {
		return night.CalendarDate
	}
	return fmt.Sprintf("%s %d/%d", danishWeekdays[d.Weekday()], d.Day(), int(d.Month()))
}

// GroupHealthKit groups HealthKit observations by their apple.com coding (else the
// first coding, else "unknown"). Each group is sorted newest first; groups are ordered
// by display name.
func GroupHealthKit(observations []domain.Observation) []domain.HealthKitGroup {
	index := map[string]int{}
	var groups []domain.HealthKitGroup
	for _, o := range observations {
		key := healthKitCode(&o)
		idx, ok := index[key]
		if !ok {
			groups = append(groups, domain.HealthKitGroup{
				Code:    key,
				Display: firstNonEmpty(o.Code.Text, o.Code.FirstCoding().Display, key),
			})
			idx = len(groups) - 1
			index[key] = idx
		}
		groups[idx].Observations = append(groups[idx].Observations, o)
	}

	for i := range groups {
		obs := groups[i].Observations
		sort.SliceStable(obs, func(a, b int) bool {
			return effectiveStart(&obs[a]).After(effectiveStart(&obs[b]))
		})
	}
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].Display < groups[j].Display })
	return groups
}

// SleepObservations returns the sleep-analysis group's observations, if any.
func SleepObservations(groups []domain.HealthKitGroup) []domain.Observation {
	for _, g := range groups {
		if g.Code == SleepAnalysisCode {
			return g.Observations
		}
	}
	return nil
}

func healthKitCode(o *domain.Observation) string {
	for _, c := range o.Code.Coding {
		if strings.Contains(c.System, "apple.com") && c.Code != "" {
			return c.Code
		}
	}
	return firstNonEmpty(o.Code.FirstCoding().Code, "unknown")
}

func effectiveStart(o *domain.Observation) time.Time {
	var start string
	if o.EffectivePeriod != nil {
		start = o.EffectivePeriod.Start
	}
	t, _ := domain.ParseFHIRTime(firstNonEmpty(o.EffectiveDateTime, start), nil)
	return t
}
