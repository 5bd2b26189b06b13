package retention

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Granularity selects the period bucketing for a variant.
type Granularity string

const (
	// GranularityMonth buckets invoices by calendar month (YYYY-MM).
	GranularityMonth Granularity = "month"
	// GranularityWeek buckets invoices by ISO week (YYYY-WW).
	GranularityWeek Granularity = "week"
)

// String returns the granularity name.
func (g Granularity) String() string {
	return string(g)
}

// PeriodKey derives the period key for a timestamp. Both encodings are
// zero-padded and year-major, so lexicographic order is chronological.
func (g Granularity) PeriodKey(t time.Time) string {
	if g == GranularityWeek {
		year, week := t.ISOWeek()
		return fmt.Sprintf("%04d-%02d", year, week)
	}
	return fmt.Sprintf("%04d-%02d", t.Year(), int(t.Month()))
}

// VariantConfig identifies one of the eight configuration variants.
type VariantConfig struct {
	Granularity      Granularity `json:"granularity" validate:"required,oneof=month week"`
	IncludeReturns   bool        `json:"include_returns"`
	IncludeAnonymous bool        `json:"include_anon"`
	MaxOffsets       int         `json:"max_offsets" validate:"gte=1"`
}

var validate = validator.New()

// Validate checks the variant configuration.
func (c VariantConfig) Validate() error {
	return validate.Struct(c)
}

// Slug returns the deterministic variant name used in artifact file names,
// e.g. "variant_month_ret0_anon1".
func (c VariantConfig) Slug() string {
	return fmt.Sprintf("variant_%s_ret%d_anon%d",
		c.Granularity, boolFlag(c.IncludeReturns), boolFlag(c.IncludeAnonymous))
}

func boolFlag(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Matrix is a cohort-by-offset grid of retention percentages. Rows are
// cohorts that actually have members, columns are offsets 0..horizon.
type Matrix struct {
	Cohorts []string    `json:"cohorts"`
	Offsets []int       `json:"offsets"`
	Values  [][]float64 `json:"values"`
}

// IsEmpty reports whether the matrix has no cohorts, offsets, or values.
func (m Matrix) IsEmpty() bool {
	return len(m.Cohorts) == 0 || len(m.Offsets) == 0 || len(m.Values) == 0
}

// SegmentRow is one row of the per-segment RFM summary table.
type SegmentRow struct {
	Segment    string  `json:"segment"`
	Customers  int     `json:"customers"`
	Repeaters  int     `json:"repeaters"`
	Orders     int     `json:"orders"`
	Revenue    float64 `json:"revenue"`
	AOV        float64 `json:"aov"`
	RepeatRate float64 `json:"repeat_rate"`
}

// SegmentBar is one entry of the top-segments revenue bar data.
type SegmentBar struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// SanityCheck is one labelled diagnostic with a formatted value and a
// pass/fail flag.
type SanityCheck struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Value string `json:"value"`
	OK    bool   `json:"ok"`
}

// CountryRevenue is one entry of the top-countries table.
type CountryRevenue struct {
	Country string  `json:"country"`
	Revenue float64 `json:"revenue"`
}

// VariantResult is everything computed for one configuration variant.
type VariantResult struct {
	Config           VariantConfig
	CohortMatrix     Matrix
	RevenueMatrix    Matrix
	Segments         []SegmentRow
	SegmentBars      []SegmentBar
	Checks           []SanityCheck
	TopCountries     []CountryRevenue
	RowsAfterFilters int
}
