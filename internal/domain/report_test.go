package domain

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClampConfidence(t *testing.T) {
	for _, c := range []float64{-5, -0.01, 0, 0.42, 1, 1.7, 1e9, math.Inf(1), math.Inf(-1), math.NaN()} {
		got := ClampConfidence(c)
		assert.GreaterOrEqual(t, got, 0.0)
		assert.LessOrEqual(t, got, 1.0)
	}
	assert.Equal(t, 1.0, ClampConfidence(1.7))
	assert.Equal(t, 0.42, ClampConfidence(0.42))
}

func TestNormalizeRiskLevel(t *testing.T) {
	assert.Equal(t, RiskHigh, NormalizeRiskLevel("HIGH"))
	assert.Equal(t, RiskLow, NormalizeRiskLevel(" low "))
	assert.Equal(t, RiskMedium, NormalizeRiskLevel("medium"))
	assert.Equal(t, RiskMedium, NormalizeRiskLevel("catastrophic"))
	assert.Equal(t, RiskMedium, NormalizeRiskLevel(""))
}

func TestAnalysisResultNormalize(t *testing.T) {
	r := (&AnalysisResult{RiskLevel: "unknown", Confidence: 3}).Normalize()

	assert.Equal(t, RiskMedium, r.RiskLevel)
	assert.Equal(t, 1.0, r.Confidence)
	assert.NotNil(t, r.Recommendations)
	assert.False(t, r.Timestamp.IsZero())
}

func TestAnalysisRequestValidate(t *testing.T) {
	err := AnalysisRequest{AnalysisType: AnalysisStockPrediction}.Validate()
	assert.ErrorIs(t, err, ErrInvalidInput)

	err = AnalysisRequest{AnalysisType: AnalysisSalesTrends, Items: []InventoryItem{{ID: "1"}}}.Validate()
	assert.ErrorIs(t, err, ErrInvalidInput, "sales trends operate on the sales series")

	err = AnalysisRequest{AnalysisType: AnalysisStockPrediction, Items: []InventoryItem{{ID: "1"}}}.Validate()
	assert.NoError(t, err)
}

func TestNewReportDefinitionRejectsInvertedRange(t *testing.T) {
	now := time.Now()
	_, err := NewReportDefinition(ReportInventory, "x", &DateRange{Start: now, End: now.Add(-time.Hour)}, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = NewDateRange(now, now.Add(-time.Hour))
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestReportDefinitionValidate(t *testing.T) {
	def, err := NewReportDefinition("bogus", "", nil, nil)
	require.NoError(t, err)

	first := def.Validate()
	second := def.Validate()

	assert.Equal(t, first, second)
	assert.Len(t, first, 2)
	assert.Contains(t, first[0]+first[1], "Invalid report type: bogus")
	assert.Contains(t, first[0]+first[1], "Report name cannot be empty")

	def.Type = ReportInventory
	def.Name = strings.Repeat("a", 256)
	assert.Equal(t, []string{"Report name cannot exceed 255 characters"}, def.Validate())

	def.Name = "Weekly stock"
	assert.Empty(t, def.Validate())
}

func TestReportDefinitionCloneIsDeep(t *testing.T) {
	def, err := NewReportDefinition(ReportInventory, "stock", LastDays(time.Now(), 7), map[string]any{
		"category": []any{"a", "b"},
		"nested":   map[string]any{"k": "v"},
	})
	require.NoError(t, err)
	def.Metadata[MetadataMaxRecords] = 100
	def.Columns = []string{"id"}

	clone := def.Clone()
	clone.Metadata[MetadataTestMode] = true
	clone.Filters["nested"].(map[string]any)["k"] = "changed"
	clone.Filters["category"].([]any)[0] = "z"
	clone.Columns[0] = "name"
	clone.DateRange.Start = time.Time{}

	assert.NotContains(t, def.Metadata, MetadataTestMode)
	assert.Equal(t, "v", def.Filters["nested"].(map[string]any)["k"])
	assert.Equal(t, "a", def.Filters["category"].([]any)[0])
	assert.Equal(t, "id", def.Columns[0])
	assert.False(t, def.DateRange.Start.IsZero())
	assert.True(t, clone.TestMode())
	assert.Equal(t, 100, clone.MaxRecords(1000))
}

func TestEffectiveColumns(t *testing.T) {
	def := &ReportDefinition{Type: ReportInventory}
	assert.Contains(t, def.EffectiveColumns(), "minStockLevel")

	def.Columns = []string{"id", "quantity"}
	assert.Equal(t, []string{"id", "quantity"}, def.EffectiveColumns())
}

func TestReportResultFactories(t *testing.T) {
	def := &ReportDefinition{Type: ReportInventory, Name: "x"}

	ok := NewSuccessResult(def, map[string]any{"lowStockCount": 1}, []Record{{"id": "1"}}, nil, nil)
	assert.True(t, ok.IsSuccess())
	assert.Equal(t, 1, ok.Summary()["recordCount"])
	assert.NotEmpty(t, ok.ID())

	failed := NewErrorResult(def, "boom", 12.5)
	assert.Equal(t, ReportStatusError, failed.Status())
	assert.Equal(t, map[string]any{"recordCount": 0, "error": true}, failed.Summary())
	assert.Equal(t, "boom", failed.ErrorMessage())
	assert.Equal(t, 12.5, failed.ExecutionTimeMs())
}

func TestReportResultPage(t *testing.T) {
	details := make([]Record, 0, 120)
	for i := 0; i < 120; i++ {
		details = append(details, Record{"i": i})
	}
	res := NewSuccessResult(&ReportDefinition{}, nil, details, nil, nil)

	page := res.Page(3, 50)
	assert.Len(t, page.Data, 20)
	assert.Equal(t, 3, page.TotalPages)
	assert.False(t, page.HasNext)
	assert.True(t, page.HasPrevious)

	page = res.Page(99, 50)
	assert.Equal(t, 3, page.CurrentPage)

	empty := NewSuccessResult(&ReportDefinition{}, nil, nil, nil, nil)
	assert.Equal(t, 1, empty.Page(0, 10).TotalPages)
	assert.Empty(t, empty.Page(0, 10).Data)
}

func TestValidationErrorUnwraps(t *testing.T) {
	err := NewValidationError([]string{"a", "b"})
	assert.True(t, errors.Is(err, ErrValidationFailed))
	assert.Nil(t, NewValidationError(nil))

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"a", "b"}, verr.Errors)
}

func TestReportScheduleValidate(t *testing.T) {
	s := &ReportSchedule{
		Definition: &ReportDefinition{Type: ReportInventory, Name: "x"},
		Frequency:  "yearly",
		Formats:    []string{"pdf"},
		Recipients: []Recipient{{Email: "not-an-email"}},
	}

	err := s.Validate()
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.ElementsMatch(t, []string{
		"Invalid frequency: yearly. Valid frequencies: hourly, daily, weekly, monthly, custom",
		"Invalid format: pdf. Valid formats: json, csv, xlsx",
		"Invalid recipient email: not-an-email",
	}, verr.Errors)

	s.Frequency = FrequencyDaily
	s.Formats = []string{"csv", "excel"}
	s.Recipients = []Recipient{{Email: "ops@example.com"}}
	assert.NoError(t, s.Validate())
}

func TestReportScheduleValidateRequiredFields(t *testing.T) {
	s := &ReportSchedule{Frequency: FrequencyCustom}

	err := s.Validate()
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.ElementsMatch(t, []string{
		"schedule requires a report definition",
		"custom frequency requires a cron spec",
		"schedule requires at least one recipient",
	}, verr.Errors)

	s.Definition = &ReportDefinition{Type: ReportInventory, Name: "Nightly"}
	s.CronSpec = "*/15 * * * *"
	s.Recipients = []Recipient{{Email: "ops@example.com", Name: "Ops"}}
	assert.NoError(t, s.Validate())
}
