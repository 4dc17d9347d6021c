package service

import (
	"sort"

	"github.com/c3po-initiative/dhroxy-frontend-example/internal/domain"
)

// Multipliers applied to reference bounds when no interpretation code is present.
const (
	criticalHighFactor = 1.5
	criticalLowFactor  = 0.5
	nearHighFactor     = 0.9
)

type verdict struct {
	tier      domain.StatusTier
	direction domain.Direction
	priority  domain.Priority
	label     string
	reason    string
	advice    string
	near      bool
}

var (
	verdictNormal = verdict{
		tier: domain.NORMAL, priority: domain.PriorityOK, label: "Normal",
		reason: "Værdien er inden for normalområdet", advice: "Ingen handling nødvendig",
	}
	verdictUnknown = verdict{
		tier: domain.UNKNOWN, priority: domain.PriorityWatch, label: "Status ukendt",
		reason: "Værdien kan ikke vurderes uden referenceområde eller fortolkning",
		advice: "Spørg din læge, hvis du er i tvivl",
	}
)

// ClassifyObservation runs the interpretation-code-first classification over one
// normalized observation. An H, HH, L, LL or N code always overrides the range check.
func ClassifyObservation(n *domain.NormalizedObservation) domain.ClassifiedResult {
	v, fromCode := classify(n)
	return domain.ClassifiedResult{
		Observation:        n,
		Tier:               v.tier,
		StatusLabel:        v.label,
		Reason:             v.reason,
		Recommendation:     v.advice,
		Direction:          v.direction,
		Priority:           v.priority,
		NearBoundary:       v.near,
		InterpretationUsed: fromCode,
	}
}

func classify(n *domain.NormalizedObservation) (verdict, bool) {
	if n == nil {
		return verdictUnknown, false
	}

	switch n.InterpretationCode {
	case domain.INTERP_CRITICAL_HIGH, domain.INTERP_CRITICAL_LOW:
		v := verdict{
			tier: domain.CRITICAL, priority: domain.PriorityAction,
			reason: "Værdien ligger langt uden for normalområdet", advice: "Kontakt din læge snarest",
		}
		if n.InterpretationCode == domain.INTERP_CRITICAL_HIGH {
			v.direction, v.label = domain.DirectionHigh, "Kritisk høj"
		} else {
			v.direction, v.label = domain.DirectionLow, "Kritisk lav"
		}
		return v, true

	case domain.INTERP_HIGH, domain.INTERP_LOW:
		high := n.InterpretationCode == domain.INTERP_HIGH
		v := verdict{tier: domain.WARNING, direction: domain.DirectionLow}
		if high {
			v.direction = domain.DirectionHigh
		}
		if CriticalTestDictionary.Classify(n.Name) {
			v.priority = domain.PriorityAction
			v.label = pick(high, "Forhøjet", "For lav")
			v.reason = v.label + " værdi af vigtig parameter"
			v.advice = "Tal med din læge ved næste besøg"
			return v, true
		}
		v.priority = domain.PriorityWatch
		v.label = pick(high, "Let forhøjet", "Let lav")
		v.reason = "Værdien er uden for normalområdet"
		v.advice = "Hold øje med ved næste blodprøve"
		return v, true

	case domain.INTERP_NORMAL:
		return verdictNormal, true
	}

	if value, ok := n.Numeric(); ok {
		return classifyAgainstRange(value, n.ReferenceRange), false
	}
	if domain.IsRepresentable(n.Value) {
		return classifyText(n.Value.Display()), false
	}
	return verdictUnknown, false
}

func classifyAgainstRange(value float64, r *domain.ReferenceRange) verdict {
	low, hasLow := r.LowValue()
	high, hasHigh := r.HighValue()
	if !hasLow && !hasHigh {
		return verdictUnknown
	}

	switch {
	case hasHigh && value > high*criticalHighFactor:
		return verdict{
			tier: domain.CRITICAL, direction: domain.DirectionHigh, priority: domain.PriorityAction,
			label: "Betydeligt forhøjet", reason: "Værdien er markant over normalområdet", advice: "Kontakt din læge",
		}
	case hasLow && value < low*criticalLowFactor:
		return verdict{
			tier: domain.CRITICAL, direction: domain.DirectionLow, priority: domain.PriorityAction,
			label: "Betydeligt lav", reason: "Værdien er markant under normalområdet", advice: "Kontakt din læge",
		}
	case hasHigh && value > high:
		return verdict{
			tier: domain.WARNING, direction: domain.DirectionHigh, priority: domain.PriorityWatch,
			label: "Let forhøjet", reason: "Værdien er lige uden for normalområdet", advice: "Hold øje med ved næste blodprøve",
		}
	case hasLow && value < low:
		return verdict{
			tier: domain.WARNING, direction: domain.DirectionLow, priority: domain.PriorityWatch,
			label: "Let lav", reason: "Værdien er lige uden for normalområdet", advice: "Hold øje med ved næste blodprøve",
		}
	case hasHigh && value > high*nearHighFactor:
		return verdict{
			tier: domain.WARNING, direction: domain.DirectionHigh, priority: domain.PriorityWatch, near: true,
			label: "Tæt på grænsen", reason: "Værdien er i den høje ende af normalt",
			advice: "Ingen handling nødvendig, men vær opmærksom",
		}
	}
	return verdictNormal
}

func classifyText(text string) verdict {
	switch TextResultDictionary.Classify(text) {
	case FindingNegative:
		v := verdictNormal
		if label, ok := TextResultLabel(text); ok {
			v.label = label
		}
		return v
	case FindingPositive:
		label, ok := TextResultLabel(text)
		if !ok {
			label = "Afvigende"
		}
		return verdict{
			tier: domain.WARNING, direction: domain.DirectionHigh, priority: domain.PriorityWatch,
			label: label, reason: "Resultatet viser et fund, der kræver opmærksomhed",
			advice: "Tal med din læge om resultatet",
		}
	}
	return verdictUnknown
}

// Prioritize classifies a batch and splits it into action, watch and ok lists,
// each sorted newest first. Unknown results and skipped observations are reported
// separately so they are never counted as normal.
func Prioritize(observations []domain.Observation) domain.PrioritizedResults {
	normalized, skipped := NormalizeAll(observations, nil)
	out := domain.PrioritizedResults{
		Action:  []domain.ClassifiedResult{},
		Watch:   []domain.ClassifiedResult{},
		OK:      []domain.ClassifiedResult{},
		Unknown: []domain.ClassifiedResult{},
		Skipped: skipped,
	}
	for _, n := range normalized {
		if n.Name == "" {
			n.Name = "Ukendt test"
		}
		r := ClassifyObservation(n)
		switch {
		case r.Tier == domain.UNKNOWN:
			out.Unknown = append(out.Unknown, r)
		case r.Priority == domain.PriorityAction:
			out.Action = append(out.Action, r)
		case r.Priority == domain.PriorityWatch:
			out.Watch = append(out.Watch, r)
		default:
			out.OK = append(out.OK, r)
		}
	}
	for _, list := range [][]domain.ClassifiedResult{out.Action, out.Watch, out.OK, out.Unknown} {
		sortNewestFirst(list)
	}
	return out
}

func sortNewestFirst(results []domain.ClassifiedResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Observation.Date.After(results[j].Observation.Date)
	})
}

func pick(cond bool, a, b string) string {
	if cond {
		return a
	}
	return b
}
