package exporter

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retlab/internal/dataprocessing"
	"retlab/internal/retention"
)

func sampleResult() *retention.VariantResult {
	return &retention.VariantResult{
		Config: retention.VariantConfig{
			Granularity:      retention.GranularityMonth,
			IncludeReturns:   false,
			IncludeAnonymous: true,
			MaxOffsets:       12,
		},
		CohortMatrix: retention.Matrix{
			Cohorts: []string{"2023-01"},
			Offsets: []int{0, 1},
			Values:  [][]float64{{100.0, 50.0}},
		},
		RevenueMatrix: retention.Matrix{
			Cohorts: []string{"2023-01"},
			Offsets: []int{0, 1},
			Values:  [][]float64{{100.0, 42.5}},
		},
		Segments: []retention.SegmentRow{
			{Segment: "Champions", Customers: 2, Repeaters: 2, Orders: 5, Revenue: 150.0, AOV: 30.0, RepeatRate: 100.0},
		},
		SegmentBars: []retention.SegmentBar{
			{Label: "Champions", Value: 150.0},
		},
		Checks: []retention.SanityCheck{
			{Key: "total_rows", Label: "Total rows", Value: "7", OK: true},
		},
		TopCountries: []retention.CountryRevenue{
			{Country: "United Kingdom", Revenue: 150.0},
		},
		RowsAfterFilters: 7,
	}
}

func sampleRawStats() dataprocessing.RawStats {
	return dataprocessing.RawStats{
		TotalRows: 9,
		MinDate:   time.Date(2023, 1, 3, 10, 0, 0, 0, time.UTC),
		MaxDate:   time.Date(2023, 2, 20, 16, 30, 0, 0, time.UTC),
	}
}

func TestBuildArtifactMeta(t *testing.T) {
	generatedAt := time.Date(2023, 6, 1, 12, 30, 45, 0, time.UTC)

	artifact := BuildArtifact("online_retail", generatedAt, sampleResult(), sampleRawStats())

	assert.Equal(t, "online_retail", artifact.Meta.Dataset)
	assert.Equal(t, "2023-06-01T12:30:45Z", artifact.Meta.GeneratedAt)
	assert.Equal(t, 9, artifact.Meta.RawRows)
	assert.Equal(t, 7, artifact.Meta.RowsAfterFilters)
	require.NotNil(t, artifact.Meta.DateMin)
	assert.Equal(t, "2023-01-03", *artifact.Meta.DateMin)
	require.NotNil(t, artifact.Meta.DateMax)
	assert.Equal(t, "2023-02-20", *artifact.Meta.DateMax)
	assert.Equal(t, 12, artifact.Meta.MaxOffsets)
	assert.NotEmpty(t, artifact.Meta.Definitions.Returns)
	assert.NotEmpty(t, artifact.Meta.Definitions.Retention)
}

func TestBuildArtifactNilDates(t *testing.T) {
	artifact := BuildArtifact("d", time.Now(), sampleResult(), dataprocessing.RawStats{})
	assert.Nil(t, artifact.Meta.DateMin)
	assert.Nil(t, artifact.Meta.DateMax)
}

func TestBuildArtifactDateRangeFromRawStats(t *testing.T) {
	// The raw range must be reported even when variant filters removed
	// the boundary invoices, so artifacts across variants agree on the
	// dataset's span.
	raw := sampleRawStats()
	raw.MinDate = time.Date(2022, 12, 24, 9, 0, 0, 0, time.UTC)
	raw.MaxDate = time.Date(2023, 3, 1, 18, 0, 0, 0, time.UTC)

	artifact := BuildArtifact("online_retail", time.Now(), sampleResult(), raw)
	require.NotNil(t, artifact.Meta.DateMin)
	assert.Equal(t, "2022-12-24", *artifact.Meta.DateMin)
	require.NotNil(t, artifact.Meta.DateMax)
	assert.Equal(t, "2023-03-01", *artifact.Meta.DateMax)
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "variant_month_ret0_anon1.json", Filename("variant_month_ret0_anon1"))
}

func TestWriterWritesArtifact(t *testing.T) {
	dir := t.TempDir()
	writer := NewWriter(filepath.Join(dir, "out"), nil)

	artifact := BuildArtifact("online_retail",
		time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC),
		sampleResult(), dataprocessing.RawStats{TotalRows: 9})

	path, err := writer.Write(artifact)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "out", "variant_month_ret0_anon1.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded Artifact
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, artifact.Meta, decoded.Meta)
	assert.Equal(t, artifact.CohortMatrix, decoded.CohortMatrix)
	assert.Equal(t, artifact.RevenueMatrix, decoded.RevenueMatrix)
	assert.Equal(t, artifact.Segments, decoded.Segments)
}

func TestWriterStableOutput(t *testing.T) {
	dir := t.TempDir()
	writer := NewWriter(dir, nil)

	artifact := BuildArtifact("online_retail",
		time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC),
		sampleResult(), dataprocessing.RawStats{TotalRows: 9})

	path1, err := writer.Write(artifact)
	require.NoError(t, err)
	first, err := os.ReadFile(path1)
	require.NoError(t, err)

	path2, err := writer.Write(artifact)
	require.NoError(t, err)
	second, err := os.ReadFile(path2)
	require.NoError(t, err)

	assert.Equal(t, path1, path2)
	assert.Equal(t, first, second)
}

func TestWriterFailsOnUnwritableDir(t *testing.T) {
	// A file where the output directory should be makes MkdirAll fail.
	dir := t.TempDir()
	blocked := filepath.Join(dir, "blocked")
	require.NoError(t, os.WriteFile(blocked, []byte("x"), 0o644))

	writer := NewWriter(filepath.Join(blocked, "out"), nil)
	_, err := writer.Write(BuildArtifact("d", time.Now(), sampleResult(), dataprocessing.RawStats{}))
	require.Error(t, err)
}
