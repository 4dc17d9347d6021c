package service

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/c3po-initiative/dhroxy-frontend-example/internal/domain"
)

const analysisCodePrefix = "Analysekode:"

// Normalize extracts the uniform rendering record from an observation. It returns
// false when the observation carries neither a value nor a timing field; such
// observations must be skipped by the caller.
//
// Timing prefers a single instant (effectiveDateTime, effectiveInstant), then the
// start of effectivePeriod, then issued. When a period has both ends the duration
// in whole minutes is kept as well.
func Normalize(o *domain.Observation, loc *time.Location) (*domain.NormalizedObservation, bool) {
	if o == nil {
		return nil, false
	}
	if loc == nil {
		loc = time.UTC
	}

	value := domain.MapValue(o)
	n := &domain.NormalizedObservation{
		ID:                 o.ID,
		Name:               o.DisplayName(),
		Code:               o.Code.FirstCoding().Code,
		Value:              value,
		ValueKind:          value.Kind(),
		DisplayValue:       value.Display(),
		ReferenceRange:     o.Range(),
		RangeText:          RangeText(o.Range()),
		InterpretationCode: o.InterpretationCode(),
	}
	if q, ok := value.(domain.QuantityValue); ok {
		n.Unit = q.Unit
		if n.Unit == "" && o.ValueQuantity != nil {
			n.Unit = o.ValueQuantity.Code
		}
	}
	_, n.IsNumeric = value.Numeric()

	for _, note := range o.Note {
		if note.Text != "" {
			n.Notes = append(n.Notes, note.Text)
		}
	}

	n.Date, n.HasDate = observationTime(o, loc)
	if p := o.EffectivePeriod; p != nil {
		end, okEnd := domain.ParseFHIRTime(p.End, loc)
		start, okStart := domain.ParseFHIRTime(p.Start, loc)
		if okEnd {
			n.End = end
		}
		if okStart && okEnd {
			minutes := DurationMinutes(start, end)
			n.DurationMinutes = &minutes
			n.DurationText = FormatDuration(float64(minutes))
		}
	}

	if !domain.IsRepresentable(value) && !n.HasDate {
		return nil, false
	}
	return n, true
}

// NormalizeAll normalizes a batch and reports how many observations were skipped.
func NormalizeAll(observations []domain.Observation, loc *time.Location) ([]*domain.NormalizedObservation, int) {
	out := make([]*domain.NormalizedObservation, 0, len(observations))
	skipped := 0
	for i := range observations {
		n, ok := Normalize(&observations[i], loc)
		if !ok {
			skipped++
			continue
		}
		out = append(out, n)
	}
	return out, skipped
}

func observationTime(o *domain.Observation, loc *time.Location) (time.Time, bool) {
	candidates := []string{o.EffectiveDateTime, o.EffectiveInstant}
	if o.EffectivePeriod != nil {
		candidates = append(candidates, o.EffectivePeriod.Start)
	}
	candidates = append(candidates, o.Issued)
	for _, c := range candidates {
		if t, ok := domain.ParseFHIRTime(c, loc); ok {
			return t, true
		}
	}
	return time.Time{}, false
}

// DurationMinutes returns end minus start in whole minutes, truncated toward zero.
// Negative results are returned as-is.
func DurationMinutes(start, end time.Time) int {
	return int(end.Sub(start) / time.Minute)
}

// FormatDuration renders minutes as "{h}t {m}m", dropping a zero part:
// 0 -> "0t", 45 -> "45m", 120 -> "2t", 135 -> "2t 15m".
func FormatDuration(minutes float64) string {
	if math.IsNaN(minutes) || minutes == 0 {
		return "0t"
	}
	if minutes < 0 {
		return "-" + FormatDuration(-minutes)
	}
	total := int(math.Round(minutes))
	hours, mins := total/60, total%60
	switch {
	case total == 0:
		return "0t"
	case hours == 0:
		return fmt.Sprintf("%dm", mins)
	case mins == 0:
		return fmt.Sprintf("%dt", hours)
	default:
		return fmt.Sprintf("%dt %dm", hours, mins)
	}
}

// RangeText renders a reference range. Free text wins; otherwise the bounds are
// synthesized. A range with neither yields domain.RangeNotAvailable, never "".
func RangeText(r *domain.ReferenceRange) string {
	if r == nil {
		return domain.RangeNotAvailable
	}
	if t := strings.TrimSpace(r.Text); t != "" {
		return t
	}
	low, hasLow := r.LowValue()
	high, hasHigh := r.HighValue()
	unit := r.Unit()

	var s string
	switch {
	case hasLow && hasHigh:
		s = fmt.Sprintf("%s - %s", domain.FormatNumber(low), domain.FormatNumber(high))
	case hasLow:
		s = "> " + domain.FormatNumber(low)
	case hasHigh:
		s = "< " + domain.FormatNumber(high)
	default:
		return domain.RangeNotAvailable
	}
	if unit != "" {
		s += " " + unit
	}
	return s
}

// AnalysisCode returns the lab analysis code from an "Analysekode:" note, else the
// first coding code.
func AnalysisCode(o *domain.Observation) string {
	for _, note := range o.Note {
		if strings.HasPrefix(note.Text, analysisCodePrefix) {
			return strings.TrimSpace(strings.TrimPrefix(note.Text, analysisCodePrefix))
		}
	}
	return o.Code.FirstCoding().Code
}
