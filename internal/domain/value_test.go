package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeObservation(t *testing.T, raw string) *Observation {
	t.Helper()
	var o Observation
	require.NoError(t, json.Unmarshal([]byte(raw), &o))
	return &o
}

func TestMapValue(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		wantKind    ValueKind
		wantDisplay string
		wantNumeric bool
		wantNumber  float64
	}{
		{
			name:        "quantity",
			raw:         `{"resourceType":"Observation","code":{"text":"Hæmoglobin"},"valueQuantity":{"value":8.7,"unit":"mmol/L"}}`,
			wantKind:    VALUE_QUANTITY,
			wantDisplay: "8.7",
			wantNumeric: true,
			wantNumber:  8.7,
		},
		{
			name:        "string",
			raw:         `{"resourceType":"Observation","code":{"text":"SARS-CoV-2"},"valueString":"SARS-CoV-2 ikke påvist"}`,
			wantKind:    VALUE_TEXT,
			wantDisplay: "SARS-CoV-2 ikke påvist",
		},
		{
			name:        "coded concept text wins",
			raw:         `{"resourceType":"Observation","code":{},"valueCodeableConcept":{"text":"Negativ","coding":[{"display":"Negative","code":"260385009"}]}}`,
			wantKind:    VALUE_CODED,
			wantDisplay: "Negativ",
		},
		{
			name:        "coded concept display fallback",
			raw:         `{"resourceType":"Observation","code":{},"valueCodeableConcept":{"coding":[{"display":"Deep sleep","code":"3"}]}}`,
			wantKind:    VALUE_CODED,
			wantDisplay: "Deep sleep",
		},
		{
			name:        "coded concept code fallback",
			raw:         `{"resourceType":"Observation","code":{},"valueCodeableConcept":{"coding":[{"code":"HKCategoryValueSleepAnalysisAsleepREM"}]}}`,
			wantKind:    VALUE_CODED,
			wantDisplay: "HKCategoryValueSleepAnalysisAsleepREM",
		},
		{
			name:        "boolean true",
			raw:         `{"resourceType":"Observation","code":{},"valueBoolean":true}`,
			wantKind:    VALUE_BOOLEAN,
			wantDisplay: "Positive",
		},
		{
			name:        "boolean false",
			raw:         `{"resourceType":"Observation","code":{},"valueBoolean":false}`,
			wantKind:    VALUE_BOOLEAN,
			wantDisplay: "Negative",
		},
		{
			name:        "integer",
			raw:         `{"resourceType":"Observation","code":{},"valueInteger":8421}`,
			wantKind:    VALUE_INTEGER,
			wantDisplay: "8421",
			wantNumeric: true,
			wantNumber:  8421,
		},
		{
			name:     "no value",
			raw:      `{"resourceType":"Observation","code":{"text":"Note"}}`,
			wantKind: VALUE_UNREPRESENTABLE,
		},
		{
			name:     "quantity without value",
			raw:      `{"resourceType":"Observation","code":{},"valueQuantity":{"unit":"mmol/L"}}`,
			wantKind: VALUE_UNREPRESENTABLE,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := MapValue(decodeObservation(t, tt.raw))
			require.NotNil(t, v)
			assert.Equal(t, tt.wantKind, v.Kind())
			assert.Equal(t, tt.wantDisplay, v.Display())

			n, ok := v.Numeric()
			assert.Equal(t, tt.wantNumeric, ok)
			if tt.wantNumeric {
				assert.InDelta(t, tt.wantNumber, n, 1e-9)
			}
		})
	}
}

func TestMapValueNilObservation(t *testing.T) {
	v := MapValue(nil)
	assert.False(t, IsRepresentable(v))
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"5.2", 5.2, true},
		{" 5,2 ", 5.2, true},
		{"-1", -1, true},
		{"5.2 mmol/L", 5.2, true},
		{"<5", 0, false},
		{"", 0, false},
		{"positiv", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseNumber(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "4", FormatNumber(4))
	assert.Equal(t, "4.25", FormatNumber(4.25))
	assert.Equal(t, "-0.5", FormatNumber(-0.5))
}
