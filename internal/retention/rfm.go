package retention

import (
	"math"
	"sort"
	"time"

	"retlab/internal/dataprocessing"
)

// customerMetrics holds the raw RFM inputs for one customer under the
// variant's filters.
type customerMetrics struct {
	orders      int
	revenue     float64
	recencyDays float64
}

// quintileEdges returns the four interior cut points at the 20/40/60/80th
// order-statistic positions of the distribution.
func quintileEdges(values []float64) [4]float64 {
	if len(values) == 0 {
		return [4]float64{}
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted) - 1
	return [4]float64{
		sorted[int(float64(n)*0.2)],
		sorted[int(float64(n)*0.4)],
		sorted[int(float64(n)*0.6)],
		sorted[int(float64(n)*0.8)],
	}
}

// scoreQuintile scores a value 1..5 as one plus the number of cut points
// it exceeds.
func scoreQuintile(value float64, edges [4]float64) int {
	score := 1
	for _, e := range edges {
		if value > e {
			score++
		}
	}
	if score < 1 {
		score = 1
	}
	if score > 5 {
		score = 5
	}
	return score
}

// segmentRule pairs a predicate over (R score, F score) with a segment
// name. Rules are evaluated top to bottom; the first match wins.
type segmentRule struct {
	name  string
	match func(r, f int) bool
}

var segmentRules = []segmentRule{
	{"Champions", func(r, f int) bool { return r >= 4 && f >= 4 }},
	{"Loyal", func(r, f int) bool { return f >= 4 && r >= 2 }},
	{"Potential Loyalist", func(r, f int) bool { return r >= 4 && (f == 2 || f == 3) }},
	{"New Customers", func(r, f int) bool { return r == 5 && f == 1 }},
	{"Promising", func(r, f int) bool { return r == 4 && f == 1 }},
	{"Need Attention", func(r, f int) bool { return r == 3 && (f == 2 || f == 3) }},
	{"About To Sleep", func(r, f int) bool { return r == 2 && (f == 1 || f == 2) }},
	{"At Risk", func(r, f int) bool { return r <= 2 && f >= 3 }},
	{"Can't Lose", func(r, f int) bool { return r == 1 && f >= 4 }},
	{"Lost", func(r, f int) bool { return r == 1 && f <= 2 }},
}

// segmentName assigns a segment from R and F scores. Customers matching
// no rule fall through to "Others".
func segmentName(r, f int) string {
	for _, rule := range segmentRules {
		if rule.match(r, f) {
			return rule.name
		}
	}
	return "Others"
}

// segmentCustomers computes R/F/M metrics per customer over the filtered
// invoice set, scores them into quintiles, and aggregates the segment table.
func (b *Builder) segmentCustomers(data *variantData, raw dataprocessing.RawStats) ([]SegmentRow, []SegmentBar) {
	maxDate := data.dateMax
	if maxDate.IsZero() {
		maxDate = raw.MaxDate
	}

	customers := make([]string, 0, len(data.customerPeriod))
	for c := range data.customerPeriod {
		customers = append(customers, c)
	}
	sort.Strings(customers)

	metrics := make(map[string]customerMetrics, len(customers))
	recencies := make([]float64, 0, len(customers))
	frequencies := make([]float64, 0, len(customers))
	monies := make([]float64, 0, len(customers))

	for _, customer := range customers {
		var m customerMetrics
		for _, cell := range data.customerPeriod[customer] {
			m.orders += cell.orders
			m.revenue += cell.revenue
		}

		// Recency anchors on the last positive-revenue invoice; customers
		// with only refunds fall back to their last invoice of any sign.
		last, ok := data.lastDatePos[customer]
		if !ok {
			last, ok = data.lastDateAny[customer]
		}
		if !ok {
			last = maxDate
		}
		m.recencyDays = daysBetween(last, maxDate)

		metrics[customer] = m
		recencies = append(recencies, m.recencyDays)
		frequencies = append(frequencies, float64(m.orders))
		monies = append(monies, m.revenue)
	}

	rEdges := quintileEdges(recencies)
	fEdges := quintileEdges(frequencies)
	mEdges := quintileEdges(monies)

	type segmentAgg struct {
		customers int
		repeaters int
		orders    int
		revenue   float64
	}
	segments := make(map[string]*segmentAgg)

	for _, customer := range customers {
		m := metrics[customer]
		// Lower recency is better, so the raw quintile is inverted.
		r := 6 - scoreQuintile(m.recencyDays, rEdges)
		f := scoreQuintile(float64(m.orders), fEdges)
		// The monetary score is computed but not part of segment naming;
		// keep the call so the M distribution stays exercised.
		_ = scoreQuintile(m.revenue, mEdges)

		name := segmentName(r, f)
		agg := segments[name]
		if agg == nil {
			agg = &segmentAgg{}
			segments[name] = agg
		}
		agg.customers++
		if m.orders >= 2 {
			agg.repeaters++
		}
		agg.orders += m.orders
		agg.revenue += m.revenue
	}

	rows := make([]SegmentRow, 0, len(segments))
	for name, agg := range segments {
		aov := 0.0
		if agg.orders > 0 {
			aov = agg.revenue / float64(agg.orders)
		}
		repeatRate := 0.0
		if agg.customers > 0 {
			repeatRate = float64(agg.repeaters) / float64(agg.customers)
		}
		rows = append(rows, SegmentRow{
			Segment:    name,
			Customers:  agg.customers,
			Repeaters:  agg.repeaters,
			Orders:     agg.orders,
			Revenue:    round2(agg.revenue),
			AOV:        round2(aov),
			RepeatRate: round1(repeatRate * 100),
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Revenue != rows[j].Revenue {
			return rows[i].Revenue > rows[j].Revenue
		}
		if rows[i].Customers != rows[j].Customers {
			return rows[i].Customers > rows[j].Customers
		}
		return rows[i].Segment < rows[j].Segment
	})

	bars := make([]SegmentBar, 0, 10)
	for _, row := range rows {
		if len(bars) == 10 {
			break
		}
		bars = append(bars, SegmentBar{Label: row.Segment, Value: math.Max(0, row.Revenue)})
	}

	return rows, bars
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// daysBetween is the whole-day distance used for recency.
func daysBetween(from, to time.Time) float64 {
	return math.Floor(to.Sub(from).Hours() / 24)
}
