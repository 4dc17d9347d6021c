package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c3po-initiative/dhroxy-frontend-example/internal/domain"
)

func classifyOne(t *testing.T, o domain.Observation) domain.ClassifiedResult {
	t.Helper()
	n, ok := Normalize(&o, nil)
	require.True(t, ok)
	return ClassifyObservation(n)
}

func TestClassifyObservation_InterpretationCode(t *testing.T) {
	tests := []struct {
		name       string
		obs        domain.Observation
		wantTier   domain.StatusTier
		wantPrio   domain.Priority
		wantLabel  string
		wantDirect domain.Direction
	}{
		{
			name:       "critical high code",
			obs:        labObservation("Ferritin", 900, "µg/L", "2024-03-01", withInterpretation(domain.INTERP_CRITICAL_HIGH)),
			wantTier:   domain.CRITICAL,
			wantPrio:   domain.PriorityAction,
			wantLabel:  "Kritisk høj",
			wantDirect: domain.DirectionHigh,
		},
		{
			name:       "critical low code",
			obs:        labObservation("Ferritin", 2, "µg/L", "2024-03-01", withInterpretation(domain.INTERP_CRITICAL_LOW)),
			wantTier:   domain.CRITICAL,
			wantPrio:   domain.PriorityAction,
			wantLabel:  "Kritisk lav",
			wantDirect: domain.DirectionLow,
		},
		{
			name:       "high flag on critical test",
			obs:        labObservation("Hæmoglobin", 11, "mmol/L", "2024-03-01", withInterpretation(domain.INTERP_HIGH)),
			wantTier:   domain.WARNING,
			wantPrio:   domain.PriorityAction,
			wantLabel:  "Forhøjet",
			wantDirect: domain.DirectionHigh,
		},
		{
			name:       "low flag on ordinary test",
			obs:        labObservation("Ferritin", 20, "µg/L", "2024-03-01", withInterpretation(domain.INTERP_LOW)),
			wantTier:   domain.WARNING,
			wantPrio:   domain.PriorityWatch,
			wantLabel:  "Let lav",
			wantDirect: domain.DirectionLow,
		},
		{
			name:      "normal code overrides the range",
			obs:       labObservation("Ferritin", 500, "µg/L", "2024-03-01", withRange(15, 300), withInterpretation(domain.INTERP_NORMAL)),
			wantTier:  domain.NORMAL,
			wantPrio:  domain.PriorityOK,
			wantLabel: "Normal",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := classifyOne(t, tt.obs)
			assert.Equal(t, tt.wantTier, r.Tier)
			assert.Equal(t, tt.wantPrio, r.Priority)
			assert.Equal(t, tt.wantLabel, r.StatusLabel)
			assert.Equal(t, tt.wantDirect, r.Direction)
			assert.True(t, r.InterpretationUsed)
		})
	}
}

func TestClassifyObservation_ReferenceRange(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		wantTier domain.StatusTier
		wantNear bool
		wantDir  domain.Direction
	}{
		{"far above", 31, domain.CRITICAL, false, domain.DirectionHigh},
		{"far below", 4, domain.CRITICAL, false, domain.DirectionLow},
		{"just above", 21, domain.WARNING, false, domain.DirectionHigh},
		{"just below", 8, domain.WARNING, false, domain.DirectionLow},
		{"upper tenth of range", 19, domain.WARNING, true, domain.DirectionHigh},
		{"inside", 15, domain.NORMAL, false, domain.DirectionNone},
		{"on the upper bound", 20, domain.WARNING, true, domain.DirectionHigh},
		{"on the lower bound", 10, domain.NORMAL, false, domain.DirectionNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := classifyOne(t, labObservation("Kalcium", tt.value, "mmol/L", "2024-03-01", withRange(10, 20)))
			assert.Equal(t, tt.wantTier, r.Tier)
			assert.Equal(t, tt.wantNear, r.NearBoundary)
			assert.Equal(t, tt.wantDir, r.Direction)
			assert.False(t, r.InterpretationUsed)
		})
	}
}

func TestClassifyObservation_Unknown(t *testing.T) {
	r := classifyOne(t, labObservation("Kalcium", 12, "mmol/L", "2024-03-01"))
	assert.Equal(t, domain.UNKNOWN, r.Tier)
	assert.Equal(t, domain.PriorityWatch, r.Priority)
	assert.Equal(t, "Status ukendt", r.StatusLabel)
}

func TestClassifyObservation_TextResults(t *testing.T) {
	tests := []struct {
		text      string
		wantTier  domain.StatusTier
		wantLabel string
	}{
		{"SARS-CoV-2 ikke påvist", domain.NORMAL, "Ikke påvist"},
		{"Påvist", domain.WARNING, "Påvist"},
		{"Negativ", domain.NORMAL, "Ikke påvist"},
		{"Abnorm", domain.WARNING, "Afvigende"},
		{"Abnormal", domain.WARNING, "Afvigende"},
		{"Normal", domain.NORMAL, "Normal"},
		{"Se kommentar", domain.UNKNOWN, "Status ukendt"},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			r := classifyOne(t, textObservation("Covid test", tt.text, "2024-03-01"))
			assert.Equal(t, tt.wantTier, r.Tier)
			assert.Equal(t, tt.wantLabel, r.StatusLabel)
		})
	}
}

func TestPrioritize(t *testing.T) {
	observations := []domain.Observation{
		labObservation("Ferritin", 900, "µg/L", "2024-01-01", withInterpretation(domain.INTERP_CRITICAL_HIGH)),
		labObservation("Ferritin", 950, "µg/L", "2024-03-01", withInterpretation(domain.INTERP_CRITICAL_HIGH)),
		labObservation("Kalcium", 21, "mmol/L", "2024-02-01", withRange(10, 20)),
		labObservation("Natrium", 140, "mmol/L", "2024-02-01", withRange(137, 145), withInterpretation(domain.INTERP_NORMAL)),
		labObservation("Magnesium", 0.9, "mmol/L", "2024-02-01"),
		{ResourceType: "Observation", Code: domain.CodeableConcept{Text: "Tom"}},
	}

	out := Prioritize(observations)

	require.Len(t, out.Action, 2)
	assert.Equal(t, "2024-03-01", out.Action[0].Observation.Date.Format("2006-01-02"))
	assert.Len(t, out.Watch, 1)
	assert.Len(t, out.OK, 1)
	require.Len(t, out.Unknown, 1)
	assert.Equal(t, "Magnesium", out.Unknown[0].Observation.Name)
	assert.Equal(t, 1, out.Skipped)
}

func TestPrioritize_Empty(t *testing.T) {
	out := Prioritize(nil)
	assert.Empty(t, out.Action)
	assert.NotNil(t, out.Action)
	assert.Zero(t, out.Skipped)
}

func TestKeywordDictionary_Order(t *testing.T) {
	assert.Equal(t, FindingNegative, TextResultDictionary.Classify("ikke påvist"))
	assert.Equal(t, FindingPositive, TextResultDictionary.Classify("ABNORM fund"))
	assert.Equal(t, FindingUnknown, TextResultDictionary.Classify("ukendt"))

	_, ok := TextResultDictionary.Lookup("ukendt")
	assert.False(t, ok)

	assert.Equal(t, domain.StageDeep, SleepStageDictionary.Classify("Deep sleep"))
	assert.Equal(t, domain.StageCore, SleepStageDictionary.Classify("Light"))
	assert.Equal(t, domain.StageInBed, SleepStageDictionary.Classify("In bed"))
	assert.Equal(t, domain.StageAsleep, SleepStageDictionary.Classify("Sleep"))
	assert.True(t, CriticalTestDictionary.Classify("P-Kalium"))
}
