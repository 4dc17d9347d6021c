package service

import (
	"strings"

	"github.com/c3po-initiative/dhroxy-frontend-example/internal/domain"
)

// KeywordEntry maps any of its keywords to Result.
type KeywordEntry[T any] struct {
	Keywords []string
	Result   T
}

// KeywordDictionary classifies free text by case-insensitive substring match.
// Entries are checked in order and the first match wins; the order is part of
// the dictionary's contract.
type KeywordDictionary[T any] struct {
	Name    string
	Version string
	Entries []KeywordEntry[T]
	Default T
}

// Lookup returns the result of the first entry with a keyword contained in text,
// or the default and false when nothing matches.
func (d KeywordDictionary[T]) Lookup(text string) (T, bool) {
	lower := strings.ToLower(text)
	for _, e := range d.Entries {
		for _, kw := range e.Keywords {
			if strings.Contains(lower, kw) {
				return e.Result, true
			}
		}
	}
	return d.Default, false
}

// Classify returns the looked-up result, falling back to the default.
func (d KeywordDictionary[T]) Classify(text string) T {
	r, _ := d.Lookup(text)
	return r
}

// SleepStageDictionary maps HealthKit sleep-analysis text to a stage.
var SleepStageDictionary = KeywordDictionary[domain.SleepStage]{
	Name:    "sleep-stage",
	Version: "1",
	Entries: []KeywordEntry[domain.SleepStage]{
		{Keywords: []string{"deep"}, Result: domain.StageDeep},
		{Keywords: []string{"rem"}, Result: domain.StageREM},
		{Keywords: []string{"core", "light"}, Result: domain.StageCore},
		{Keywords: []string{"awake"}, Result: domain.StageAwake},
		{Keywords: []string{"bed"}, Result: domain.StageInBed},
	},
	Default: domain.StageAsleep,
}

// SleepStageLabels are the Danish display labels per stage.
var SleepStageLabels = map[domain.SleepStage]string{
	domain.StageDeep:   "Dyb søvn",
	domain.StageREM:    "REM",
	domain.StageCore:   "Let søvn",
	domain.StageAwake:  "Vågen",
	domain.StageInBed:  "I sengen",
	domain.StageAsleep: "Sovende",
}

// TextFinding is the reading of a free-text lab result.
type TextFinding string

const (
	FindingNegative TextFinding = "negative"
	FindingPositive TextFinding = "positive"
	FindingUnknown  TextFinding = "unknown"
)

// TextResultDictionary reads free-text results such as "SARS-CoV-2 ikke påvist".
// "ikke påvist" must stay ahead of "påvist", and "abnorm" ahead of "normal", since
// each later keyword is a substring of the earlier one.
var TextResultDictionary = KeywordDictionary[TextFinding]{
	Name:    "text-result",
	Version: "1",
	Entries: []KeywordEntry[TextFinding]{
		{Keywords: []string{"ikke påvist", "negativ"}, Result: FindingNegative},
		{Keywords: []string{"abnorm"}, Result: FindingPositive},
		{Keywords: []string{"normal"}, Result: FindingNegative},
		{Keywords: []string{"positiv", "påvist"}, Result: FindingPositive},
	},
	Default: FindingUnknown,
}

// TextResultLabel returns "Ikke påvist" or "Påvist" for detection-style results, and
// false for text that is neither.
func TextResultLabel(text string) (string, bool) {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "ikke påvist"), strings.Contains(lower, "negativ"):
		return "Ikke påvist", true
	case strings.Contains(lower, "påvist"), strings.Contains(lower, "positiv"):
		return "Påvist", true
	default:
		return "", false
	}
}

// CriticalTestDictionary flags tests where any H/L flag needs a doctor's attention.
var CriticalTestDictionary = KeywordDictionary[bool]{
	Name:    "critical-test",
	Version: "1",
	Entries: []KeywordEntry[bool]{
		{Keywords: []string{"hæmoglobin", "glucose", "kalium", "natrium", "kreatinin", "troponin"}, Result: true},
	},
	Default: false,
}
