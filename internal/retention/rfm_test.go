package retention

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuintileEdges(t *testing.T) {
	values := []float64{10, 3, 7, 1, 9, 5, 2, 8, 4, 6}
	edges := quintileEdges(values)
	assert.Equal(t, [4]float64{2, 4, 6, 8}, edges)
}

func TestQuintileEdgesEmpty(t *testing.T) {
	assert.Equal(t, [4]float64{}, quintileEdges(nil))
}

func TestScoreQuintile(t *testing.T) {
	edges := [4]float64{2, 4, 6, 8}
	tests := []struct {
		value    float64
		expected int
	}{
		{0, 1},
		{2, 1}, // equal to an edge does not exceed it
		{2.5, 2},
		{4.5, 3},
		{6.5, 4},
		{8, 4},
		{9, 5},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, scoreQuintile(tt.value, edges), "value %v", tt.value)
	}
}

func TestScoreQuintileDegenerateEdges(t *testing.T) {
	// When every edge collapses to the same point, anything above it
	// scores 5 and anything at or below it scores 1.
	edges := [4]float64{0, 0, 0, 0}
	assert.Equal(t, 1, scoreQuintile(0, edges))
	assert.Equal(t, 5, scoreQuintile(1, edges))
}

func TestSegmentName(t *testing.T) {
	tests := []struct {
		r, f     int
		expected string
	}{
		{5, 5, "Champions"},
		{4, 4, "Champions"},
		{2, 5, "Loyal"},
		{3, 4, "Loyal"},
		{5, 3, "Potential Loyalist"},
		{4, 2, "Potential Loyalist"},
		{5, 1, "New Customers"},
		{4, 1, "Promising"},
		{3, 2, "Need Attention"},
		{3, 3, "Need Attention"},
		{2, 1, "About To Sleep"},
		{2, 2, "About To Sleep"},
		{1, 3, "At Risk"},
		{2, 3, "At Risk"},
		// r=1, f>=4 matches At Risk before Can't Lose; first match wins.
		{1, 4, "At Risk"},
		{1, 1, "Lost"},
		{1, 2, "Lost"},
		{3, 1, "Others"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, segmentName(tt.r, tt.f), "r=%d f=%d", tt.r, tt.f)
	}
}

func TestSegmentCustomersAggregation(t *testing.T) {
	// A: three recent orders; B: one order two months earlier. With two
	// customers the quintile edges collapse, so A scores (5,5) and B (1,1).
	invoices := invoiceMap(
		invoice("I1", "A", time.Date(2023, 1, 10, 0, 0, 0, 0, time.UTC), 20, false, 1),
		invoice("I2", "A", time.Date(2023, 2, 10, 0, 0, 0, 0, time.UTC), 20, false, 1),
		invoice("I3", "A", time.Date(2023, 3, 10, 0, 0, 0, 0, time.UTC), 20, false, 1),
		invoice("I4", "B", time.Date(2023, 1, 5, 0, 0, 0, 0, time.UTC), 10, false, 1),
	)

	result := mustBuild(t, monthConfig(), invoices)
	require.Len(t, result.Segments, 2)

	champions := result.Segments[0]
	assert.Equal(t, "Champions", champions.Segment)
	assert.Equal(t, 1, champions.Customers)
	assert.Equal(t, 1, champions.Repeaters)
	assert.Equal(t, 3, champions.Orders)
	assert.Equal(t, 60.0, champions.Revenue)
	assert.Equal(t, 20.0, champions.AOV)
	assert.Equal(t, 100.0, champions.RepeatRate)

	lost := result.Segments[1]
	assert.Equal(t, "Lost", lost.Segment)
	assert.Equal(t, 1, lost.Customers)
	assert.Equal(t, 0, lost.Repeaters)
	assert.Equal(t, 10.0, lost.Revenue)
	assert.Equal(t, 0.0, lost.RepeatRate)

	require.Len(t, result.SegmentBars, 2)
	assert.Equal(t, SegmentBar{Label: "Champions", Value: 60.0}, result.SegmentBars[0])
}

func TestSegmentBarsClampNegativeRevenue(t *testing.T) {
	cfg := monthConfig()
	cfg.IncludeReturns = true
	invoices := invoiceMap(
		invoice("I1", "A", time.Date(2023, 1, 10, 0, 0, 0, 0, time.UTC), 30, false, 1),
		invoice("C2", "B", time.Date(2023, 1, 12, 0, 0, 0, 0, time.UTC), -5, true, 1),
	)

	result := mustBuild(t, cfg, invoices)
	for _, bar := range result.SegmentBars {
		assert.GreaterOrEqual(t, bar.Value, 0.0, "bar %s", bar.Label)
	}
}

func TestDaysBetween(t *testing.T) {
	from := time.Date(2023, 1, 5, 0, 0, 0, 0, time.UTC)
	to := time.Date(2023, 3, 10, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 64.0, daysBetween(from, to))
	assert.Equal(t, 0.0, daysBetween(to, to))
}
