package retention

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"retlab/internal/dataprocessing"
	pipeerrors "retlab/internal/errors"
)

// Builder computes the retention matrices, RFM segments, and sanity
// diagnostics for one configuration variant. The invoice map passed to
// Build is treated as read-only, so independent builders can run
// concurrently over the same map.
type Builder struct {
	cfg    VariantConfig
	logger *slog.Logger
}

// NewBuilder creates a builder for the given variant configuration.
func NewBuilder(cfg VariantConfig, logger *slog.Logger) (*Builder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid variant config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{cfg: cfg, logger: logger}, nil
}

// periodCell accumulates order count and net revenue for one
// (customer, period) pair.
type periodCell struct {
	orders  int
	revenue float64
}

// variantData is the per-variant fold over the filtered invoice set.
type variantData struct {
	// customerPeriod maps customer -> period key -> cell.
	customerPeriod map[string]map[string]*periodCell
	lastDateAny    map[string]time.Time
	lastDatePos    map[string]time.Time
	countryRevenue map[string]float64
	// invoiceValuesPos collects positive invoice revenues for the p99 check.
	invoiceValuesPos []float64
	rowsAfterFilters int
	// dateMax anchors RFM recency within the filtered set.
	dateMax time.Time
}

// Build runs the full variant computation against the finalized invoice map.
func (b *Builder) Build(invoices map[string]*dataprocessing.InvoiceAggregate, raw dataprocessing.RawStats) (*VariantResult, error) {
	data := b.fold(invoices)

	periodKeys := b.periodAxis(data)
	if len(periodKeys) == 0 {
		return nil, pipeerrors.NewWithDetails(pipeerrors.CodeEmptyMatrix,
			fmt.Sprintf("no data after filters for %s", b.cfg.Slug()),
			b.cfg)
	}
	periodIndex := make(map[string]int, len(periodKeys))
	for i, p := range periodKeys {
		periodIndex[p] = i
	}

	cohortByCustomer := assignCohorts(data.customerPeriod, periodIndex)

	cohortsUsed := usedCohorts(cohortByCustomer)
	if len(cohortsUsed) == 0 {
		return nil, pipeerrors.NewWithDetails(pipeerrors.CodeEmptyMatrix,
			fmt.Sprintf("no cohorts computed for %s", b.cfg.Slug()),
			b.cfg)
	}

	maxPossible := (len(periodKeys) - 1) - cohortsUsed[0]
	if maxPossible < 0 {
		return nil, pipeerrors.NewWithDetails(pipeerrors.CodeEmptyMatrix,
			fmt.Sprintf("negative horizon for %s", b.cfg.Slug()),
			b.cfg)
	}
	horizon := maxPossible
	if b.cfg.MaxOffsets < horizon {
		horizon = b.cfg.MaxOffsets
	}

	cohortMatrix, revenueMatrix := b.buildMatrices(data, periodKeys, periodIndex, cohortByCustomer, cohortsUsed, horizon)
	if cohortMatrix.IsEmpty() || revenueMatrix.IsEmpty() {
		return nil, pipeerrors.NewWithDetails(pipeerrors.CodeEmptyMatrix,
			fmt.Sprintf("empty retention matrix for %s", b.cfg.Slug()),
			b.cfg)
	}

	segments, bars := b.segmentCustomers(data, raw)
	checks, topCountries := b.sanityChecks(data, raw)

	b.logger.Debug("variant built",
		"variant", b.cfg.Slug(),
		"periods", len(periodKeys),
		"cohorts", len(cohortsUsed),
		"horizon", horizon,
		"customers", len(data.customerPeriod),
	)

	return &VariantResult{
		Config:           b.cfg,
		CohortMatrix:     cohortMatrix,
		RevenueMatrix:    revenueMatrix,
		Segments:         segments,
		SegmentBars:      bars,
		Checks:           checks,
		TopCountries:     topCountries,
		RowsAfterFilters: data.rowsAfterFilters,
	}, nil
}

// fold applies the variant filters and buckets each surviving invoice into
// its customer-period cell. Invoices are visited in sorted id order so
// floating-point accumulation is reproducible across runs.
func (b *Builder) fold(invoices map[string]*dataprocessing.InvoiceAggregate) *variantData {
	data := &variantData{
		customerPeriod: make(map[string]map[string]*periodCell),
		lastDateAny:    make(map[string]time.Time),
		lastDatePos:    make(map[string]time.Time),
		countryRevenue: make(map[string]float64),
	}

	ids := make([]string, 0, len(invoices))
	for id := range invoices {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		inv := invoices[id]
		if !b.cfg.IncludeReturns && inv.IsReturn {
			continue
		}

		customer := inv.CustomerID
		if customer == "" {
			if !b.cfg.IncludeAnonymous {
				continue
			}
			// Anonymous invoices never pool into a shared customer; each
			// becomes its own single-invoice pseudo-customer.
			customer = "anon:" + inv.Invoice
		}

		period := b.cfg.Granularity.PeriodKey(inv.InvoiceDate)
		data.rowsAfterFilters += inv.LineCount

		if data.dateMax.IsZero() || inv.InvoiceDate.After(data.dateMax) {
			data.dateMax = inv.InvoiceDate
		}

		cp := data.customerPeriod[customer]
		if cp == nil {
			cp = make(map[string]*periodCell)
			data.customerPeriod[customer] = cp
		}
		cell := cp[period]
		if cell == nil {
			cell = &periodCell{}
			cp[period] = cell
		}
		cell.orders++
		cell.revenue += inv.Revenue

		data.countryRevenue[inv.Country] += inv.Revenue

		if last, ok := data.lastDateAny[customer]; !ok || inv.InvoiceDate.After(last) {
			data.lastDateAny[customer] = inv.InvoiceDate
		}
		if inv.Revenue > 0 {
			if last, ok := data.lastDatePos[customer]; !ok || inv.InvoiceDate.After(last) {
				data.lastDatePos[customer] = inv.InvoiceDate
			}
			data.invoiceValuesPos = append(data.invoiceValuesPos, inv.Revenue)
		}
	}

	return data
}

// periodAxis returns the distinct period keys in ascending order. The
// sorted sequence is the variant's time axis; indices into it are the
// period indices used everywhere downstream.
func (b *Builder) periodAxis(data *variantData) []string {
	distinct := make(map[string]struct{})
	for _, cp := range data.customerPeriod {
		for p := range cp {
			distinct[p] = struct{}{}
		}
	}
	keys := make([]string, 0, len(distinct))
	for p := range distinct {
		keys = append(keys, p)
	}
	sort.Strings(keys)
	return keys
}

// assignCohorts assigns each customer the earliest period index with
// positive orders and positive revenue, falling back to the earliest
// period with any orders, then to index 0.
func assignCohorts(customerPeriod map[string]map[string]*periodCell, periodIndex map[string]int) map[string]int {
	cohorts := make(map[string]int, len(customerPeriod))
	for customer, cp := range customerPeriod {
		posIdx, anyIdx := -1, -1
		for p, cell := range cp {
			idx := periodIndex[p]
			if cell.orders > 0 {
				if anyIdx == -1 || idx < anyIdx {
					anyIdx = idx
				}
				if cell.revenue > 0 && (posIdx == -1 || idx < posIdx) {
					posIdx = idx
				}
			}
		}
		switch {
		case posIdx >= 0:
			cohorts[customer] = posIdx
		case anyIdx >= 0:
			cohorts[customer] = anyIdx
		default:
			cohorts[customer] = 0
		}
	}
	return cohorts
}

// usedCohorts returns the distinct cohort indices that actually have
// members, ascending.
func usedCohorts(cohortByCustomer map[string]int) []int {
	distinct := make(map[int]struct{})
	for _, idx := range cohortByCustomer {
		distinct[idx] = struct{}{}
	}
	out := make([]int, 0, len(distinct))
	for idx := range distinct {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}

// buildMatrices produces the count-retention and revenue-retention
// matrices for the variant.
func (b *Builder) buildMatrices(
	data *variantData,
	periodKeys []string,
	periodIndex map[string]int,
	cohortByCustomer map[string]int,
	cohortsUsed []int,
	horizon int,
) (Matrix, Matrix) {
	offsets := make([]int, horizon+1)
	for i := range offsets {
		offsets[i] = i
	}

	cohortSize := make(map[int]int, len(cohortsUsed))
	retCounts := make(map[int][]int, len(cohortsUsed))
	revSums := make(map[int][]float64, len(cohortsUsed))
	revBase := make(map[int]float64, len(cohortsUsed))
	for _, c := range cohortsUsed {
		retCounts[c] = make([]int, horizon+1)
		revSums[c] = make([]float64, horizon+1)
	}

	customers := make([]string, 0, len(data.customerPeriod))
	for c := range data.customerPeriod {
		customers = append(customers, c)
	}
	sort.Strings(customers)

	for _, customer := range customers {
		cp := data.customerPeriod[customer]
		cohort := cohortByCustomer[customer]
		cohortSize[cohort]++

		for p, cell := range cp {
			off := periodIndex[p] - cohort
			if off < 0 || off > horizon {
				continue
			}
			if cell.orders > 0 && cell.revenue > 0 {
				retCounts[cohort][off]++
			}
			revSums[cohort][off] += cell.revenue
		}

		// The revenue base is each member's own founding-period revenue,
		// restricted to members whose founding revenue is positive.
		if cell, ok := cp[periodKeys[cohort]]; ok && cell.revenue > 0 {
			revBase[cohort] += cell.revenue
		}
	}

	labels := make([]string, len(cohortsUsed))
	countValues := make([][]float64, len(cohortsUsed))
	revenueValues := make([][]float64, len(cohortsUsed))

	for i, cohort := range cohortsUsed {
		labels[i] = periodKeys[cohort]
		countRow := make([]float64, horizon+1)
		revenueRow := make([]float64, horizon+1)
		size := cohortSize[cohort]
		base := revBase[cohort]

		for off := 0; off <= horizon; off++ {
			if size > 0 {
				countRow[off] = clampPercent(100 * float64(retCounts[cohort][off]) / float64(size))
			}
			// A zero or negative base yields 0, not an error: a cohort whose
			// founding-period revenue is net-negative retains nothing by definition.
			if base > 0 {
				revenueRow[off] = clampPercent(100 * revSums[cohort][off] / base)
			}
		}
		countValues[i] = countRow
		revenueValues[i] = revenueRow
	}

	cohortMatrix := Matrix{Cohorts: labels, Offsets: offsets, Values: countValues}
	revenueMatrix := Matrix{Cohorts: labels, Offsets: offsets, Values: revenueValues}
	return cohortMatrix, revenueMatrix
}

// clampPercent clamps to [0,100] and rounds to one decimal place.
func clampPercent(v float64) float64 {
	if v < 0 {
		v = 0
	}
	if v > 100 {
		v = 100
	}
	return math.Round(v*10) / 10
}

// Variants returns the eight standard configuration variants in their
// canonical order, applying maxOffsetsFor per granularity.
func Variants(maxOffsetsFor func(Granularity) int) []VariantConfig {
	var out []VariantConfig
	for _, g := range []Granularity{GranularityMonth, GranularityWeek} {
		for _, ret := range []bool{false, true} {
			for _, anon := range []bool{false, true} {
				out = append(out, VariantConfig{
					Granularity:      g,
					IncludeReturns:   ret,
					IncludeAnonymous: anon,
					MaxOffsets:       maxOffsetsFor(g),
				})
			}
		}
	}
	return out
}

// ReturnsDefinition documents the return/cancellation rule applied by the
// aggregation pass, for artifact metadata.
const ReturnsDefinition = "Invoice startswith '" + dataprocessing.ReturnMarker + "' OR Quantity < 0 treated as returns/cancellations"

// RetentionDefinition documents the retention rule, for artifact metadata.
const RetentionDefinition = "share of cohort customers with >=1 order in offset period (with positive net revenue)"
