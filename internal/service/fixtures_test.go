package service

import (
	"github.com/c3po-initiative/dhroxy-frontend-example/internal/domain"
)

type observationOption func(*domain.Observation)

func labObservation(name string, value float64, unit, date string, opts ...observationOption) domain.Observation {
	o := domain.Observation{
		ResourceType:      string(domain.KindObservation),
		Code:              domain.CodeableConcept{Text: name, Coding: []domain.Coding{{Display: name}}},
		ValueQuantity:     &domain.Quantity{Value: domain.Float(value), Unit: unit},
		EffectiveDateTime: date,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func textObservation(name, text, date string, opts ...observationOption) domain.Observation {
	o := domain.Observation{
		ResourceType:      string(domain.KindObservation),
		Code:              domain.CodeableConcept{Text: name, Coding: []domain.Coding{{Display: name}}},
		ValueString:       &text,
		EffectiveDateTime: date,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func withRange(low, high float64) observationOption {
	return func(o *domain.Observation) {
		o.ReferenceRange = []domain.ReferenceRange{{
			Low:  &domain.Quantity{Value: domain.Float(low)},
			High: &domain.Quantity{Value: domain.Float(high)},
		}}
	}
}

func withInterpretation(code domain.InterpretationCode) observationOption {
	return func(o *domain.Observation) {
		o.Interpretation = []domain.CodeableConcept{{Coding: []domain.Coding{{Code: string(code)}}}}
	}
}

func withCode(code string) observationOption {
	return func(o *domain.Observation) {
		o.Code.Coding[0].Code = code
	}
}

func withNote(text string) observationOption {
	return func(o *domain.Observation) {
		o.Note = append(o.Note, domain.Annotation{Text: text})
	}
}

func sleepObservation(start, end, stage string) domain.Observation {
	return domain.Observation{
		ResourceType: string(domain.KindObservation),
		Code: domain.CodeableConcept{
			Text:   "Søvn",
			Coding: []domain.Coding{{System: "http://developer.apple.com/documentation/healthkit", Code: SleepAnalysisCode}},
		},
		ValueCodeableConcept: &domain.CodeableConcept{Text: stage},
		EffectivePeriod:      &domain.Period{Start: start, End: end},
	}
}
