package ai

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/andresuchdata/stockinsight/internal/domain"
	"github.com/spf13/cast"
)

// jsonObjectPattern matches the first {...} in free text, allowing at most one
// level of nested braces. Deeper objects are not recognized.
var jsonObjectPattern = regexp.MustCompile(`\{[^{}]*\{[^{}]*\}[^{}]*\}|\{[^{}]*\}`)

const (
	defaultAnalysisText       = "Analysis completed"
	defaultAnalysisConfidence = 0.8
	fallbackConfidence        = 0.6
	generatedByFallbackParser = "fallback_parser"
)

func extractJSONObject(text string) (map[string]any, error) {
	match := jsonObjectPattern.FindString(text)
	if match == "" {
		return nil, fmt.Errorf("%w: no json object in response", domain.ErrParseFailure)
	}

	var out map[string]any
	if err := json.Unmarshal([]byte(match), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrParseFailure, err)
	}
	return out, nil
}

// lookup returns the first present key. Models answer in camel or snake case.
func lookup(m map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func parseAnalysis(text string, analysisType domain.AnalysisType) (*domain.AnalysisResult, error) {
	fields, err := extractJSONObject(text)
	if err != nil {
		return nil, err
	}

	result := &domain.AnalysisResult{
		AnalysisType: analysisType,
		Analysis:     defaultAnalysisText,
		RiskLevel:    domain.RiskMedium,
		Confidence:   defaultAnalysisConfidence,
	}

	if v, ok := lookup(fields, "analysis", "summary"); ok {
		s, err := cast.ToStringE(v)
		if err != nil {
			return nil, fmt.Errorf("%w: analysis: %v", domain.ErrParseFailure, err)
		}
		if s != "" {
			result.Analysis = s
		}
	}
	if v, ok := lookup(fields, "riskLevel", "risk_level"); ok {
		result.RiskLevel = domain.NormalizeRiskLevel(cast.ToString(v))
	}
	if v, ok := lookup(fields, "confidence"); ok {
		c, err := cast.ToFloat64E(v)
		if err != nil {
			return nil, fmt.Errorf("%w: confidence: %v", domain.ErrParseFailure, err)
		}
		result.Confidence = c
	}
	if v, ok := lookup(fields, "recommendations"); ok {
		recs, err := cast.ToStringSliceE(v)
		if err != nil {
			return nil, fmt.Errorf("%w: recommendations: %v", domain.ErrParseFailure, err)
		}
		result.Recommendations = recs
	}
	if v, ok := lookup(fields, "trend_direction", "trendDirection"); ok {
		result.Trend = &domain.Trend{
			Direction:  cast.ToString(v),
			GrowthRate: cast.ToFloat64(fields["growth_rate"]),
		}
	}

	return result.Normalize(), nil
}

// fallbackAnalysis keeps the head of an unparseable answer.
func fallbackAnalysis(text string, analysisType domain.AnalysisType) *domain.AnalysisResult {
	analysis := strings.TrimSpace(truncate(text, 200))
	if analysis == "" {
		analysis = defaultAnalysisText
	}
	return (&domain.AnalysisResult{
		AnalysisType:    analysisType,
		Analysis:        analysis,
		RiskLevel:       domain.RiskMedium,
		Confidence:      fallbackConfidence,
		Recommendations: []string{"Review inventory levels manually"},
		GeneratedBy:     generatedByFallbackParser,
		IsFallback:      true,
		Timestamp:       time.Now().UTC(),
	}).Normalize()
}

func parseReport(text, reportType string) (*domain.ReportPayload, error) {
	fields, err := extractJSONObject(text)
	if err != nil {
		return nil, err
	}

	payload := &domain.ReportPayload{
		ReportType: reportType,
		Confidence: defaultAnalysisConfidence,
	}
	if v, ok := lookup(fields, "title"); ok {
		payload.Title = cast.ToString(v)
	}
	if v, ok := lookup(fields, "summary"); ok {
		// Some models answer with a nested summary object.
		if m, isMap := v.(map[string]any); isMap {
			raw, _ := json.Marshal(m)
			payload.Summary = string(raw)
		} else {
			payload.Summary = cast.ToString(v)
		}
	}
	if v, ok := lookup(fields, "keyFindings", "key_findings", "key_insights"); ok {
		findings, err := cast.ToStringSliceE(v)
		if err != nil {
			return nil, fmt.Errorf("%w: keyFindings: %v", domain.ErrParseFailure, err)
		}
		payload.KeyFindings = findings
	}
	if v, ok := lookup(fields, "recommendations"); ok {
		recs, err := cast.ToStringSliceE(v)
		if err != nil {
			return nil, fmt.Errorf("%w: recommendations: %v", domain.ErrParseFailure, err)
		}
		payload.Recommendations = recs
	}
	if v, ok := lookup(fields, "confidence"); ok {
		payload.Confidence = cast.ToFloat64(v)
	}

	return payload.Normalize(), nil
}

func fallbackReport(text, reportType string) *domain.ReportPayload {
	finding := strings.TrimSpace(truncate(text, 100))
	if finding == "" {
		finding = "Report generated"
	}
	return (&domain.ReportPayload{
		ReportType:      reportType,
		KeyFindings:     []string{finding},
		Recommendations: []string{"Review report manually"},
		Confidence:      fallbackConfidence,
		GeneratedBy:     generatedByFallbackParser,
		IsFallback:      true,
	}).Normalize()
}
