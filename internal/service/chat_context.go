package service

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/c3po-initiative/dhroxy-frontend-example/internal/domain"
)

// NoLabData is the context line used when no observations are loaded.
const NoLabData = "Ingen labdata tilgængelig"

const labPromptHeader = `Du er en dansk sundhedsassistent der hjælper patienter med at forstå deres laboratoriesvar (blodprøver).

VIGTIGE REGLER:
1. Svar ALTID på dansk
2. Brug et enkelt, forståeligt sprog (8. klasses niveau)
3. Forklar fagudtryk i parentes når du bruger dem
4. Giv konkrete, handlingsrettede råd
5. Henvis ALTID til læge ved alvorlige spørgsmål
6. Vær empatisk og beroligende
7. Du må IKKE stille diagnoser - kun forklare hvad værdierne generelt betyder

PATIENTENS LABSVAR:
`

const labPromptFooter = `

Når patienten spørger:
- Om en specifik test: Forklar hvad den måler, hvad normale værdier er, og hvad afvigelser kan betyde
- Om sammenhænge: Forklar hvordan forskellige tests relaterer til hinanden
- Om hvad de skal gøre: Giv generelle råd og henvis til læge for specifikke anbefalinger
- Om bekymringer: Vær beroligende men ærlig, og anbefal at tale med læge`

// FormatLabContext renders one line per observation:
// "- name: value unit (status) [Ref: low-high] - dd.mm.yyyy".
func FormatLabContext(observations []domain.Observation) string {
	if len(observations) == 0 {
		return NoLabData
	}
	lines := make([]string, 0, len(observations))
	for i := range observations {
		lines = append(lines, formatLabLine(&observations[i]))
	}
	return strings.Join(lines, "\n")
}

func formatLabLine(o *domain.Observation) string {
	var b strings.Builder
	b.WriteString("- ")
	b.WriteString(firstNonEmpty(o.DisplayName(), "Ukendt"))
	b.WriteString(": ")
	if o.ValueQuantity != nil && o.ValueQuantity.Value != nil {
		b.WriteString(strings.TrimSpace(domain.FormatNumber(*o.ValueQuantity.Value) + " " +
			firstNonEmpty(o.ValueQuantity.Unit, o.ValueQuantity.Code)))
	} else {
		b.WriteString("Ingen værdi")
	}

	status := "Normal"
	switch o.InterpretationCode() {
	case domain.INTERP_HIGH, domain.INTERP_CRITICAL_HIGH:
		status = "Forhøjet"
	case domain.INTERP_LOW, domain.INTERP_CRITICAL_LOW:
		status = "For lav"
	}
	fmt.Fprintf(&b, " (%s)", status)

	low, hasLow := o.Range().LowValue()
	high, hasHigh := o.Range().HighValue()
	if hasLow || hasHigh {
		lowText, highText := "?", "?"
		if hasLow {
			lowText = domain.FormatNumber(low)
		}
		if hasHigh {
			highText = domain.FormatNumber(high)
		}
		fmt.Fprintf(&b, " [Ref: %s-%s]", lowText, highText)
	}
	if t, ok := domain.ParseFHIRTime(o.EffectiveDateTime, nil); ok {
		b.WriteString(" - ")
		b.WriteString(t.Format("02.01.2006"))
	}
	return b.String()
}

// BuildLabSystemPrompt is the system prompt of the lab-result chat.
func BuildLabSystemPrompt(observations []domain.Observation) string {
	return labPromptHeader + FormatLabContext(observations) + labPromptFooter
}

// BuildHealthSystemPrompt is the system prompt of the general health chat. It embeds
// the lifestyle answers, socio-economic notes and family history of the profile.
func BuildHealthSystemPrompt(settings *domain.Settings, observations []domain.Observation) string {
	var b strings.Builder
	b.WriteString("Du er en dansk sundhedsagent der hjælper patienten med at forstå deres helbred.\n\n")

	b.WriteString("LABSVAR FRA SUNDHED.DK (FHIR):\n")
	b.WriteString(FormatLabContext(observations))

	l := settings.Lifestyle
	b.WriteString("\n\nKRAM-FAKTORER:\n")
	fmt.Fprintf(&b, "- Rygning: %s\n", pick(l.Smoker, "Ryger", "Ikke-ryger"))
	fmt.Fprintf(&b, "- Alkohol: %d genstande/uge\n", l.AlcoholWeekly)
	fmt.Fprintf(&b, "- Motion: %d gange/uge\n", l.ExerciseWeekly)
	fmt.Fprintf(&b, "- Søvn: %d timer/nat\n", l.SleepHours)
	for _, key := range sortedKeys(l.Notes) {
		fmt.Fprintf(&b, "- %s: %s\n", key, l.Notes[key])
	}

	b.WriteString("\nSOCIOØKONOMISKE FORHOLD:\n")
	var social map[string]any
	if len(settings.Social) > 0 && json.Unmarshal(settings.Social, &social) == nil {
		for _, key := range sortedKeys(social) {
			fmt.Fprintf(&b, "%s: %v\n", key, social[key])
		}
	}

	f := settings.FamilyHistory
	b.WriteString("\nFAMILIESYGDOMSHISTORIK:\n")
	for _, flag := range []struct {
		set   bool
		label string
	}{
		{f.Diabetes, "Diabetes"},
		{f.HeartDisease, "Hjertesygdom"},
		{f.Cancer, "Kræft"},
		{f.Hypertension, "Forhøjet blodtryk"},
	} {
		if flag.set {
			fmt.Fprintf(&b, "- %s i familien\n", flag.label)
		}
	}
	for _, m := range f.Members {
		fmt.Fprintf(&b, "%s: %s\n", m.Relation, m.Condition)
	}

	b.WriteString("\nGiv personlige, kontekstbaserede sundhedsråd på dansk. Vær empatisk og professionel.\n")
	return b.String()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
