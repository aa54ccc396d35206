package ai

import (
	"strings"
	"testing"

	"github.com/andresuchdata/stockinsight/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantKey string
		wantErr bool
	}{
		{"flat object", `answer: {"a": 1}`, "a", false},
		{"one nested level", `x {"a": {"b": 2}, "c": 3} y`, "c", false},
		{"first object wins", `{"first": 1} {"second": 2}`, "first", false},
		{"no braces", "nothing here", "", true},
		{"invalid json", `{not json}`, "", true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractJSONObject(tt.text)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrParseFailure)
				return
			}
			require.NoError(t, err)
			assert.Contains(t, got, tt.wantKey)
		})
	}
}

func TestExtractJSONObjectDepthLimit(t *testing.T) {
	// Two nested levels are beyond the pattern; only the innermost pair matches.
	got, err := extractJSONObject(`{"a": {"b": {"c": 1}}}`)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"b": map[string]any{"c": float64(1)}}, got)
}

func TestParseAnalysisDefaultsAndCoercion(t *testing.T) {
	res, err := parseAnalysis(`{"riskLevel":"EXTREME","confidence":"0.4","recommendations":["a","b"]}`, domain.AnalysisAnomalyDetection)
	require.NoError(t, err)

	assert.Equal(t, domain.RiskMedium, res.RiskLevel)
	assert.Equal(t, 0.4, res.Confidence)
	assert.Equal(t, []string{"a", "b"}, res.Recommendations)
	assert.Equal(t, defaultAnalysisText, res.Analysis)
	assert.Equal(t, domain.AnalysisAnomalyDetection, res.AnalysisType)

	res, err = parseAnalysis(`{}`, domain.AnalysisRiskAssessment)
	require.NoError(t, err)
	assert.Equal(t, defaultAnalysisConfidence, res.Confidence)
	assert.Empty(t, res.Recommendations)
}

func TestParseAnalysisRejectsBadConfidence(t *testing.T) {
	_, err := parseAnalysis(`{"confidence":"very high"}`, domain.AnalysisRiskAssessment)
	assert.ErrorIs(t, err, domain.ErrParseFailure)
}

func TestFallbackAnalysisTruncates(t *testing.T) {
	res := fallbackAnalysis(strings.Repeat("x", 500), domain.AnalysisStockPrediction)
	assert.Len(t, res.Analysis, 200)
	assert.True(t, res.IsFallback)
	assert.Equal(t, []string{"Review inventory levels manually"}, res.Recommendations)

	assert.Equal(t, defaultAnalysisText, fallbackAnalysis("   ", domain.AnalysisStockPrediction).Analysis)
}

func TestParseReport(t *testing.T) {
	p, err := parseReport(`Here you go: {"title":"Weekly","summary":{"totalItems":3},"keyFindings":["k1"],"recommendations":["r1"]}`, "weekly_summary")
	require.NoError(t, err)

	assert.Equal(t, "Weekly", p.Title)
	assert.JSONEq(t, `{"totalItems":3}`, p.Summary)
	assert.Equal(t, []string{"k1"}, p.KeyFindings)
	assert.Equal(t, []string{"r1"}, p.Recommendations)
	assert.Equal(t, "weekly_summary", p.ReportType)

	fb := fallbackReport(strings.Repeat("y", 300), "summary")
	assert.Len(t, fb.KeyFindings[0], 100)
	assert.Equal(t, []string{"Review report manually"}, fb.Recommendations)
	assert.True(t, fb.IsFallback)
}
