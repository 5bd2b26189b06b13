package exporter

import (
	"time"

	"retlab/internal/dataprocessing"
	"retlab/internal/retention"
)

// Definitions documents the filtering rules baked into an artifact so a
// consumer can interpret the matrices without reading this code.
type Definitions struct {
	Returns   string `json:"returns"`
	Retention string `json:"retention"`
}

// Meta is the artifact header block.
type Meta struct {
	Dataset          string                    `json:"dataset"`
	GeneratedAt      string                    `json:"generated_at"`
	Variant          retention.VariantConfig   `json:"variant"`
	RawRows          int                       `json:"raw_rows"`
	RowsAfterFilters int                       `json:"rows_after_filters"`
	DateMin          *string                   `json:"date_min"`
	DateMax          *string                   `json:"date_max"`
	MaxOffsets       int                       `json:"max_offsets"`
	Definitions      Definitions               `json:"definitions"`
}

// Sanity bundles the diagnostics block of an artifact.
type Sanity struct {
	Checks       []retention.SanityCheck    `json:"checks"`
	TopCountries []retention.CountryRevenue `json:"top_countries"`
}

// Artifact is the complete JSON document written per variant.
type Artifact struct {
	Meta          Meta                   `json:"meta"`
	Sanity        Sanity                 `json:"sanity"`
	CohortMatrix  retention.Matrix       `json:"cohort_matrix"`
	RevenueMatrix retention.Matrix       `json:"revenue_matrix"`
	Segments      []retention.SegmentRow `json:"segments"`
	SegmentBars   []retention.SegmentBar `json:"segment_bars"`
}

// BuildArtifact assembles the artifact document for one variant result.
// generatedAt is passed in so every artifact of a run carries the same
// timestamp.
func BuildArtifact(dataset string, generatedAt time.Time, result *retention.VariantResult, raw dataprocessing.RawStats) Artifact {
	return Artifact{
		Meta: Meta{
			Dataset:          dataset,
			GeneratedAt:      generatedAt.UTC().Format("2006-01-02T15:04:05Z"),
			Variant:          result.Config,
			RawRows:          raw.TotalRows,
			RowsAfterFilters: result.RowsAfterFilters,
			// The date range reflects the raw dataset, not the variant's
			// filtered view, matching the sanity date_range check.
			DateMin: dateString(raw.MinDate),
			DateMax: dateString(raw.MaxDate),
			MaxOffsets:       result.Config.MaxOffsets,
			Definitions: Definitions{
				Returns:   retention.ReturnsDefinition,
				Retention: retention.RetentionDefinition,
			},
		},
		Sanity: Sanity{
			Checks:       result.Checks,
			TopCountries: result.TopCountries,
		},
		CohortMatrix:  result.CohortMatrix,
		RevenueMatrix: result.RevenueMatrix,
		Segments:      result.Segments,
		SegmentBars:   result.SegmentBars,
	}
}

// dateString formats a date as YYYY-MM-DD, nil when unset.
func dateString(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := t.Format("2006-01-02")
	return &s
}
