package service

import (
	"strings"

	"github.com/c3po-initiative/dhroxy-frontend-example/internal/domain"
)

// Explanation statuses.
const (
	ExplainHigh    = "high"
	ExplainLow     = "low"
	ExplainNormal  = "normal"
	ExplainUnknown = "unknown"
)

var explainStatusLabels = map[string]string{
	ExplainHigh:    "Opmærksomhed påkrævet",
	ExplainLow:     "Under normalområde",
	ExplainNormal:  "Normal",
	ExplainUnknown: "Status ukendt",
}

type explanationEntry struct {
	key             string
	whatIs          string
	normalRange     string
	highMeaning     string
	lowMeaning      string
	doctorQuestions []string
	relatedTests    []string
}

// explanationTable is matched in order against the lowercased test name.
var explanationTable = []explanationEntry{
	{
		key:         "Kreatinin",
		whatIs:      "Kreatinin er et affaldsstof fra dine muskler som nyrerne normalt renser ud. Det viser hvor godt dine nyrer fungerer.",
		normalRange: "60-105 μmol/L",
		highMeaning: "Høj værdi kan tyde på nedsat nyrefunktion. Kan også skyldes dehydrering, meget muskelmasse, eller visse lægemidler.",
		lowMeaning:  "Lav værdi ses sjældent og er normalt ikke bekymrende. Kan skyldes lav muskelmasse.",
		doctorQuestions: []string{
			"Skal vi tjekke mine nyrer grundigere?",
			"Er der noget i min medicin der påvirker mine nyrer?",
			"Hvornår skal jeg have taget en ny prøve?",
		},
		relatedTests: []string{"eGFR", "Urinstof", "Albumin/kreatinin-ratio"},
	},
	{
		key:         "Hæmoglobin",
		whatIs:      "Hæmoglobin er det protein i røde blodlegemer der transporterer ilt rundt i kroppen. Det viser om du har blodmangel (anæmi).",
		normalRange: "Mænd: 8.3-10.5 mmol/L, Kvinder: 7.3-9.5 mmol/L",
		highMeaning: "Høj værdi kan skyldes dehydrering, rygning, eller sjældnere blodsygdomme.",
		lowMeaning:  "Lav værdi betyder blodmangel (anæmi). Kan skyldes jernmangel, B12-mangel, kronisk sygdom, eller blødning.",
		doctorQuestions: []string{
			"Hvad er årsagen til min blodmangel?",
			"Skal jeg tage jerntilskud?",
			"Er der grund til yderligere undersøgelser?",
		},
		relatedTests: []string{"Ferritin", "Jern", "B12", "Folat", "MCV"},
	},
	{
		key:         "Kolesterol",
		whatIs:      "Kolesterol er et fedtstof i blodet. For meget kan føre til åreforkalkning og øget risiko for blodpropper.",
		normalRange: "Under 5.0 mmol/L (total)",
		highMeaning: "Forhøjet kolesterol øger risiko for hjertekarsygdom. Kan skyldes kost, arv, eller underliggende sygdom.",
		lowMeaning:  "Meget lavt kolesterol er sjældent et problem, men kan ses ved alvorlig sygdom.",
		doctorQuestions: []string{
			"Skal jeg ændre min kost?",
			"Er der behov for kolesterolsænkende medicin?",
			"Hvordan er min samlede risiko for hjertesygdom?",
		},
		relatedTests: []string{"LDL", "HDL", "Triglycerid"},
	},
	{
		key:         "HbA1c",
		whatIs:      "HbA1c (langtidsblodsukker) viser dit gennemsnitlige blodsukker over de sidste 2-3 måneder. Bruges til at opdage og følge diabetes.",
		normalRange: "Under 42 mmol/mol (under 6.0%)",
		highMeaning: "Forhøjet værdi kan betyde prædiabetes eller diabetes. Jo højere, jo dårligere blodsukkerregulering.",
		lowMeaning:  "Lav værdi er normalt godt. Meget lav kan ses ved blodtab eller visse blodsygdomme.",
		doctorQuestions: []string{
			"Har jeg diabetes eller er jeg i risiko?",
			"Hvad kan jeg gøre for at forbedre min værdi?",
			"Hvor tit skal jeg have det målt?",
		},
		relatedTests: []string{"Faste-glucose", "Glucose"},
	},
	{
		key:         "CRP",
		whatIs:      "CRP (C-reaktivt protein) er en inflammationsmarkør. Det stiger ved infektion, betændelse eller vævsskade.",
		normalRange: "Under 8 mg/L (ofte under 5 mg/L)",
		highMeaning: "Forhøjet værdi viser at kroppen reagerer på noget - infektion, betændelse, skade. Siger ikke hvad det er.",
		lowMeaning:  "Lav/normal værdi tyder på fravær af akut betændelse.",
		doctorQuestions: []string{
			"Hvad kan være årsagen til den forhøjede værdi?",
			"Er der behov for yderligere undersøgelser?",
			"Hvornår bør værdien kontrolleres igen?",
		},
		relatedTests: []string{"Leukocytter", "SR", "Temperatur"},
	},
	{
		key:         "TSH",
		whatIs:      "TSH (thyroideastimulerende hormon) styrer skjoldbruskkirtlen. Det viser om din stofskiftekirtler fungerer normalt.",
		normalRange: "0.4-4.0 mIU/L",
		highMeaning: "Høj TSH tyder på langsomt stofskifte (lavt stofskifte/hypothyreose). Skjoldbruskkirtlen arbejder for lidt.",
		lowMeaning:  "Lav TSH tyder på for højt stofskifte (hyperthyreose). Skjoldbruskkirtlen arbejder for meget.",
		doctorQuestions: []string{
			"Har jeg problemer med stofskiftet?",
			"Skal jeg have medicin?",
			"Hvilke symptomer skal jeg være opmærksom på?",
		},
		relatedTests: []string{"T3", "T4", "Anti-TPO"},
	},
	{
		key:         "D-vitamin",
		whatIs:      "D-vitamin er vigtigt for knogler, muskler og immunforsvar. De fleste danskere har for lavt D-vitamin om vinteren.",
		normalRange: "Over 50 nmol/L (optimalt: 75-150 nmol/L)",
		highMeaning: "For højt D-vitamin (over 200 nmol/L) er sjældent, men kan ske ved overdosering af tilskud.",
		lowMeaning:  "Lavt D-vitamin er meget almindeligt. Kan give træthed, muskelsmerter og øget infektionsrisiko.",
		doctorQuestions: []string{
			"Hvor meget tilskud skal jeg tage?",
			"Hvornår skal jeg have det målt igen?",
			"Er der andre årsager til mine symptomer?",
		},
		relatedTests: []string{"Calcium", "Fosfat", "PTH"},
	},
}

var (
	covidKeywords        = []string{"sars-cov", "covid", "corona"}
	microbiologyKeywords = []string{"dyrkning", "resistens", "bakterie"}
)

// Explain builds the patient-facing explanation of one lab observation. The
// observation's own reference range wins over the static table's range.
func Explain(o *domain.Observation) domain.Explanation {
	name := firstNonEmpty(o.DisplayName(), "Ukendt test")
	lower := strings.ToLower(name)

	sourceRange, fromSource := observationRange(o)
	entry := lookupExplanation(name, lower)
	value := domain.MapValue(o)
	status := explainStatus(o, value)

	exp := domain.Explanation{
		Name:            name,
		WhatIs:          entry.whatIs,
		NormalRange:     entry.normalRange,
		FromSource:      fromSource,
		HighMeaning:     entry.highMeaning,
		LowMeaning:      entry.lowMeaning,
		DoctorQuestions: entry.doctorQuestions,
		RelatedTests:    entry.relatedTests,
		Status:          status,
		StatusLabel:     explainStatusLabel(value, status),
		AnalysisCode:    AnalysisCode(o),
	}
	if fromSource {
		exp.NormalRange = sourceRange
	}
	if domain.IsRepresentable(value) {
		exp.DisplayValue = value.Display()
	}
	if q, ok := value.(domain.QuantityValue); ok {
		exp.Unit = q.Unit
	}
	return exp
}

// ExplainAll explains every observation in order.
func ExplainAll(observations []domain.Observation) []domain.Explanation {
	out := make([]domain.Explanation, 0, len(observations))
	for i := range observations {
		out = append(out, Explain(&observations[i]))
	}
	return out
}

func lookupExplanation(name, lower string) explanationEntry {
	for _, e := range explanationTable {
		if strings.Contains(lower, strings.ToLower(e.key)) {
			return e
		}
	}
	switch {
	case matchesAny(lower, covidKeywords):
		return explanationEntry{
			whatIs:      name + " er en test for coronavirus (SARS-CoV-2), der forårsager COVID-19. Testen undersøger om du har virusset i kroppen.",
			normalRange: "Ikke påvist = Negativ",
			highMeaning: "Påvist betyder at coronavirus er fundet i prøven. Du bør isolere dig og følge sundhedsmyndighedernes anbefalinger.",
			lowMeaning:  "Ikke påvist er det normale resultat og betyder at testen ikke fandt coronavirus.",
			doctorQuestions: []string{
				"Skal jeg isolere mig?",
				"Hvornår kan jeg teste igen hvis jeg har symptomer?",
				"Skal mine nærmeste kontakter også testes?",
			},
			relatedTests: []string{"Antistof-test"},
		}
	case matchesAny(lower, microbiologyKeywords):
		return explanationEntry{
			whatIs:      name + " er en mikrobiologisk undersøgelse der dyrker og identificerer eventuelle bakterier i prøven.",
			normalRange: "Ingen vækst = Normal",
			highMeaning: "Hvis der findes bakterier, vil der ofte være information om hvilken type og hvilken antibiotika der virker.",
			lowMeaning:  "Ingen vækst eller normal flora er typisk et godt tegn.",
			doctorQuestions: []string{
				"Er der fundet noget der kræver behandling?",
				"Hvilken antibiotika anbefales hvis nødvendigt?",
				"Skal prøven gentages?",
			},
			relatedTests: []string{"CRP", "Leukocytter"},
		}
	}
	return explanationEntry{
		whatIs:      name + " er en laboratorietest. Spørg din læge om hvad denne specifikke test måler.",
		normalRange: domain.RangeNotAvailable,
		highMeaning: "En høj eller afvigende værdi kan have forskellige betydninger. Din læge kan forklare hvad det betyder for dig.",
		lowMeaning:  "En lav værdi kan have forskellige betydninger. Din læge kan forklare hvad det betyder for dig.",
		doctorQuestions: []string{
			"Hvad måler denne test præcist?",
			"Hvad betyder resultatet for mig?",
			"Er der behov for yderligere undersøgelser?",
		},
		relatedTests: []string{},
	}
}

// observationRange renders the observation's first reference range, reporting false
// when it carries neither text nor bounds.
func observationRange(o *domain.Observation) (string, bool) {
	r := o.Range()
	if r == nil {
		return "", false
	}
	text := RangeText(r)
	if text == domain.RangeNotAvailable {
		return "", false
	}
	if r.Text == "" && r.Unit() == "" && o.ValueQuantity != nil && o.ValueQuantity.Unit != "" {
		text += " " + o.ValueQuantity.Unit
	}
	return text, true
}

func explainStatus(o *domain.Observation, value domain.ValuePayload) string {
	switch o.InterpretationCode() {
	case domain.INTERP_HIGH, domain.INTERP_CRITICAL_HIGH:
		return ExplainHigh
	case domain.INTERP_LOW, domain.INTERP_CRITICAL_LOW:
		return ExplainLow
	case domain.INTERP_NORMAL:
		return ExplainNormal
	}

	if v, ok := value.Numeric(); ok {
		r := o.Range()
		if r == nil {
			return ExplainUnknown
		}
		if high, ok := r.HighValue(); ok && v > high {
			return ExplainHigh
		}
		if low, ok := r.LowValue(); ok && v < low {
			return ExplainLow
		}
		return ExplainNormal
	}

	if !domain.IsRepresentable(value) {
		return ExplainUnknown
	}
	switch TextResultDictionary.Classify(value.Display()) {
	case FindingNegative:
		return ExplainNormal
	case FindingPositive:
		return ExplainHigh
	}
	return ExplainUnknown
}

func explainStatusLabel(value domain.ValuePayload, status string) string {
	if _, numeric := value.Numeric(); numeric || !domain.IsRepresentable(value) {
		switch status {
		case ExplainNormal:
			return "Inden for normalområde"
		case ExplainHigh:
			return "Over normalområde"
		case ExplainLow:
			return "Under normalområde"
		}
		return explainStatusLabels[status]
	}
	if label, ok := TextResultLabel(value.Display()); ok {
		return label
	}
	return explainStatusLabels[status]
}
