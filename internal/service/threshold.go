package service

import (
	"sort"
	"strings"
	"time"

	"github.com/c3po-initiative/dhroxy-frontend-example/internal/domain"
)

// ThresholdStatus is the outcome of a threshold-table check.
type ThresholdStatus struct {
	Tier      domain.StatusTier
	Direction domain.Direction
	Label     string
}

// ClassifyThreshold evaluates value against def in strict order: low critical, high
// critical, low warning, high warning. The first breached threshold wins, so a
// critical breach is never masked by a warning one.
func ClassifyThreshold(value float64, def domain.TestDefinition) ThresholdStatus {
	switch {
	case def.LowCriticalThreshold != nil && value < *def.LowCriticalThreshold:
		return ThresholdStatus{domain.CRITICAL, domain.DirectionLow, "Kritisk lav"}
	case def.HighCriticalThreshold != nil && value > *def.HighCriticalThreshold:
		return ThresholdStatus{domain.CRITICAL, domain.DirectionHigh, "Kritisk høj"}
	case def.LowWarningThreshold != nil && value < *def.LowWarningThreshold:
		return ThresholdStatus{domain.WARNING, domain.DirectionLow, "Lav"}
	case def.HighWarningThreshold != nil && value > *def.HighWarningThreshold:
		return ThresholdStatus{domain.WARNING, domain.DirectionHigh, "Forhøjet"}
	}
	return ThresholdStatus{domain.NORMAL, domain.DirectionNone, "Normal"}
}

// LatestValue is the newest parseable value of a test found in a batch.
type LatestValue struct {
	Observation *domain.Observation
	Name        string
	Value       float64
	Unit        string
	Date        time.Time
	RangeText   string
}

// FindLatestValue returns the newest observation whose code.text (else first coding
// display) contains one of keywords. Recency is by effectiveDateTime, then issued.
// The value is the quantity, else a numeric string; an unparseable newest value
// counts as no data.
func FindLatestValue(observations []domain.Observation, keywords []string) (*LatestValue, bool) {
	type candidate struct {
		obs  *domain.Observation
		date time.Time
	}
	var matching []candidate
	for i := range observations {
		o := &observations[i]
		name := strings.ToLower(o.TextName())
		if !matchesAny(name, keywords) {
			continue
		}
		date, _ := domain.ParseFHIRTime(firstNonEmpty(o.EffectiveDateTime, o.Issued), nil)
		matching = append(matching, candidate{obs: o, date: date})
	}
	if len(matching) == 0 {
		return nil, false
	}
	sort.SliceStable(matching, func(i, j int) bool {
		return matching[i].date.After(matching[j].date)
	})

	latest := matching[0].obs
	lv := &LatestValue{
		Observation: latest,
		Name:        latest.TextName(),
		Date:        matching[0].date,
	}
	if r := latest.Range(); r != nil {
		lv.RangeText = r.Text
	}
	switch {
	case latest.ValueQuantity != nil && latest.ValueQuantity.Value != nil:
		lv.Value = *latest.ValueQuantity.Value
		lv.Unit = latest.ValueQuantity.Unit
	case latest.ValueString != nil:
		v, ok := domain.ParseNumber(*latest.ValueString)
		if !ok {
			return nil, false
		}
		lv.Value = v
	default:
		return nil, false
	}
	return lv, true
}

// AnalyzeLabPanel evaluates every registry definition against the latest of the
// observations assigned to it. Definitions without usable data are listed in Missing.
func AnalyzeLabPanel(observations []domain.Observation, registry []domain.TestDefinition) domain.LabPanel {
	panel := domain.LabPanel{
		Critical: []domain.ClassifiedResult{},
		Warning:  []domain.ClassifiedResult{},
		Normal:   []domain.ClassifiedResult{},
	}
	assigned := AssignObservations(observations, registry)
	for i, def := range registry {
		lv, ok := FindLatestValue(assigned[i], def.Keywords)
		if !ok {
			panel.Missing = append(panel.Missing, def.Name)
			continue
		}
		status := ClassifyThreshold(lv.Value, def)

		unit := lv.Unit
		if unit == "" {
			unit = def.Unit
		}
		name := lv.Name
		if name == "" {
			name = def.Name
		}
		value := domain.QuantityValue{Value: lv.Value, Unit: unit}
		result := domain.ClassifiedResult{
			Observation: &domain.NormalizedObservation{
				ID:           lv.Observation.ID,
				Name:         name,
				Value:        value,
				ValueKind:    value.Kind(),
				DisplayValue: value.Display(),
				Unit:         unit,
				IsNumeric:    true,
				Date:         lv.Date,
				HasDate:      !lv.Date.IsZero(),
				RangeText:    firstNonEmpty(lv.RangeText, domain.RangeNotAvailable),
			},
			Test:        def.Name,
			Tier:        status.Tier,
			StatusLabel: status.Label,
			Direction:   status.Direction,
			Priority:    priorityForTier(status.Tier),
		}
		switch status.Tier {
		case domain.CRITICAL:
			panel.Critical = append(panel.Critical, result)
		case domain.WARNING:
			panel.Warning = append(panel.Warning, result)
		default:
			panel.Normal = append(panel.Normal, result)
		}
	}
	return panel
}

func priorityForTier(t domain.StatusTier) domain.Priority {
	switch t {
	case domain.CRITICAL:
		return domain.PriorityAction
	case domain.WARNING, domain.UNKNOWN:
		return domain.PriorityWatch
	default:
		return domain.PriorityOK
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
