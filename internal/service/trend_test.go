package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c3po-initiative/dhroxy-frontend-example/internal/domain"
)

func series(values ...float64) []domain.TrendPoint {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	points := make([]domain.TrendPoint, len(values))
	for i, v := range values {
		points[i] = domain.TrendPoint{Value: v, Date: start.AddDate(0, i, 0)}
	}
	return points
}

func TestTrend(t *testing.T) {
	tests := []struct {
		name    string
		points  []domain.TrendPoint
		wantDir domain.TrendDirection
		wantPct float64
		wantSig domain.Significance
	}{
		{"single point", series(5), domain.TrendStable, 0, domain.SignificanceNone},
		{"no points", nil, domain.TrendStable, 0, domain.SignificanceNone},
		{"zero first value", series(0, 10), domain.TrendStable, 0, domain.SignificanceNone},
		{"small change", series(100, 103), domain.TrendStable, 3, domain.SignificanceNone},
		{"low rise", series(100, 107), domain.TrendRising, 7, domain.SignificanceLow},
		{"last three only", series(10, 11, 12, 13), domain.TrendRising, 18.2, domain.SignificanceMedium},
		{"steep fall", series(100, 70), domain.TrendFalling, -30, domain.SignificanceHigh},
		{"exactly five percent", series(100, 105), domain.TrendStable, 5, domain.SignificanceNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Trend(tt.points)
			assert.Equal(t, tt.wantDir, got.Direction)
			assert.InDelta(t, tt.wantPct, got.PercentChange, 0.001)
			assert.Equal(t, tt.wantSig, got.Significance)
		})
	}
}

func TestGroupTrends(t *testing.T) {
	observations := []domain.Observation{
		labObservation("Ferritin", 60, "µg/L", "2024-03-01", withCode("NPU19763")),
		labObservation("HbA1c", 40, "mmol/mol", "2024-01-01", withCode("NPU27300")),
		labObservation("Ferritin", 40, "µg/L", "2024-01-01", withCode("NPU19763")),
		textObservation("Covid", "Ikke påvist", "2024-01-01"),
		labObservation("Ferritin", 50, "µg/L", "2024-02-01", withCode("NPU19763")),
	}

	groups := GroupTrends(observations)
	require.Len(t, groups, 2)

	ferritin := groups[0]
	assert.Equal(t, "NPU19763", ferritin.Key)
	assert.Equal(t, "Ferritin", ferritin.Name)
	assert.Equal(t, "µg/L", ferritin.Unit)
	require.Len(t, ferritin.Points, 3)
	assert.Equal(t, 40.0, ferritin.Points[0].Value)
	assert.Equal(t, 60.0, ferritin.Latest)
	assert.Equal(t, domain.TrendRising, ferritin.Trend.Direction)
	assert.InDelta(t, 50.0, ferritin.Trend.PercentChange, 0.001)

	assert.Equal(t, "NPU27300", groups[1].Key)
	assert.Equal(t, domain.TrendStable, groups[1].Trend.Direction)
}
