package service

import (
	"math"
	"sort"

	"github.com/c3po-initiative/dhroxy-frontend-example/internal/domain"
)

const trendWindow = 3

var stableTrend = domain.TrendResult{
	Direction:     domain.TrendStable,
	PercentChange: 0,
	Significance:  domain.SignificanceNone,
}

// Trend computes the percent change between the first and last of the most recent
// three points of an ascending series. Fewer than two points, or a zero first value,
// yield a stable trend with no significance.
func Trend(points []domain.TrendPoint) domain.TrendResult {
	if len(points) < 2 {
		return stableTrend
	}
	window := points
	if len(window) > trendWindow {
		window = window[len(window)-trendWindow:]
	}
	first, last := window[0].Value, window[len(window)-1].Value
	if first == 0 {
		return stableTrend
	}

	change := (last - first) / first * 100
	if math.IsNaN(change) || math.IsInf(change, 0) {
		return stableTrend
	}

	result := domain.TrendResult{
		Direction:     domain.TrendStable,
		PercentChange: math.Round(change*10) / 10,
		Significance:  domain.SignificanceNone,
	}
	switch {
	case change > 5:
		result.Direction = domain.TrendRising
	case change < -5:
		result.Direction = domain.TrendFalling
	}

	abs := math.Abs(change)
	switch {
	case abs > 20:
		result.Significance = domain.SignificanceHigh
	case abs > 10:
		result.Significance = domain.SignificanceMedium
	case abs > 5:
		result.Significance = domain.SignificanceLow
	}
	return result
}

// GroupTrends groups observations with a quantity value by coding code (else code.text, else
// "unknown"), sorts each group ascending by date and computes its trend. Groups are
// returned in first-seen order.
func GroupTrends(observations []domain.Observation) []domain.TestTrend {
	index := map[string]int{}
	var groups []domain.TestTrend

	for i := range observations {
		o := &observations[i]
		if o.ValueQuantity == nil || o.ValueQuantity.Value == nil {
			continue
		}
		key := firstNonEmpty(o.Code.FirstCoding().Code, o.Code.Text, "unknown")
		idx, seen := index[key]
		if !seen {
			groups = append(groups, domain.TestTrend{
				Key:  key,
				Name: firstNonEmpty(o.Code.FirstCoding().Display, o.Code.Text, "Ukendt test"),
				Unit: firstNonEmpty(o.ValueQuantity.Unit, o.ValueQuantity.Code),
			})
			idx = len(groups) - 1
			index[key] = idx
		}
		var start string
		if o.EffectivePeriod != nil {
			start = o.EffectivePeriod.Start
		}
		date, _ := domain.ParseFHIRTime(firstNonEmpty(o.EffectiveDateTime, start), nil)
		groups[idx].Points = append(groups[idx].Points, domain.TrendPoint{Value: *o.ValueQuantity.Value, Date: date})
	}

	for i := range groups {
		pts := groups[i].Points
		sort.SliceStable(pts, func(a, b int) bool { return pts[a].Date.Before(pts[b].Date) })
		groups[i].Latest = pts[len(pts)-1].Value
		groups[i].Trend = Trend(pts)
	}
	return groups
}
