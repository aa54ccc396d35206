package domain

import (
	"encoding/json"
	"math"
	"time"

	"github.com/google/uuid"
)

// ReportResult is produced exactly once per generation call through
// NewSuccessResult or NewErrorResult. Post-processing mutates it only via the
// setters below, before it is cached.
type ReportResult struct {
	id              string
	definition      *ReportDefinition
	status          ReportStatus
	summary         map[string]any
	details         []Record
	insights        []Insight
	recommendations []Recommendation
	executionTimeMs float64
	errorMessage    string
	generatedAt     time.Time
}

func NewSuccessResult(def *ReportDefinition, summary map[string]any, details []Record, insights []Insight, recommendations []Recommendation) *ReportResult {
	if summary == nil {
		summary = map[string]any{}
	}
	if _, ok := summary["recordCount"]; !ok {
		summary["recordCount"] = len(details)
	}
	return &ReportResult{
		id:              uuid.NewString(),
		definition:      def,
		status:          ReportStatusSuccess,
		summary:         summary,
		details:         nonNilRecords(details),
		insights:        nonNilInsights(insights),
		recommendations: nonNilRecommendations(recommendations),
		generatedAt:     time.Now().UTC(),
	}
}

func NewErrorResult(def *ReportDefinition, message string, executionTimeMs float64) *ReportResult {
	return &ReportResult{
		id:              uuid.NewString(),
		definition:      def,
		status:          ReportStatusError,
		summary:         map[string]any{"recordCount": 0, "error": true},
		details:         []Record{},
		insights:        []Insight{},
		recommendations: []Recommendation{},
		executionTimeMs: executionTimeMs,
		errorMessage:    message,
		generatedAt:     time.Now().UTC(),
	}
}

func (r *ReportResult) ID() string { return r.id }
func (r *ReportResult) Definition() *ReportDefinition { return r.definition }
func (r *ReportResult) Status() ReportStatus { return r.status }
func (r *ReportResult) Summary() map[string]any { return r.summary }
func (r *ReportResult) Details() []Record { return r.details }
func (r *ReportResult) Insights() []Insight { return r.insights }
func (r *ReportResult) Recommendations() []Recommendation { return r.recommendations }
func (r *ReportResult) ExecutionTimeMs() float64 { return r.executionTimeMs }
func (r *ReportResult) ErrorMessage() string { return r.errorMessage }
func (r *ReportResult) GeneratedAt() time.Time { return r.generatedAt }
func (r *ReportResult) IsSuccess() bool { return r.status == ReportStatusSuccess }
func (r *ReportResult) RecordCount() int { return len(r.details) }

func (r *ReportResult) SetExecutionTime(ms float64) { r.executionTimeMs = Round(ms, 2) }

func (r *ReportResult) SetSummaryValue(key string, value any) { r.summary[key] = value }

func (r *ReportResult) SetInsights(insights []Insight) { r.insights = nonNilInsights(insights) }

func (r *ReportResult) AppendInsights(insights ...Insight) {
	r.insights = append(r.insights, insights...)
}

func (r *ReportResult) SetRecommendations(recs []Recommendation) {
	r.recommendations = nonNilRecommendations(recs)
}

// PaginatedDetails is a page view over the result details.
type PaginatedDetails struct {
	Data        []Record `json:"data"`
	TotalItems  int      `json:"total_items"`
	CurrentPage int      `json:"current_page"`
	PerPage     int      `json:"per_page"`
	TotalPages  int      `json:"total_pages"`
	HasNext     bool     `json:"has_next"`
	HasPrevious bool     `json:"has_previous"`
}

// Page clamps page into [1, totalPages] and returns that slice of details.
func (r *ReportResult) Page(page, perPage int) PaginatedDetails {
	if perPage <= 0 {
		perPage = 50
	}
	total := len(r.details)
	totalPages := int(math.Max(1, math.Ceil(float64(total)/float64(perPage))))
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}

	start := (page - 1) * perPage
	end := start + perPage
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	return PaginatedDetails{
		Data:        r.details[start:end],
		TotalItems:  total,
		CurrentPage: page,
		PerPage:     perPage,
		TotalPages:  totalPages,
		HasNext:     page < totalPages,
		HasPrevious: page > 1,
	}
}

type reportResultJSON struct {
	ID              string            `json:"id"`
	Definition      *ReportDefinition `json:"definition"`
	Status          ReportStatus      `json:"status"`
	Summary         map[string]any    `json:"summary"`
	Details         []Record          `json:"details"`
	Insights        []Insight         `json:"insights"`
	Recommendations []Recommendation  `json:"recommendations"`
	Metadata        resultMetadata    `json:"metadata"`
	ErrorMessage    string            `json:"error_message,omitempty"`
	GeneratedAt     time.Time         `json:"generated_at"`
}

type resultMetadata struct {
	ExecutionTimeMs float64      `json:"execution_time_ms"`
	RecordCount     int          `json:"record_count"`
	Status          ReportStatus `json:"status"`
}

func (r *ReportResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(reportResultJSON{
		ID:              r.id,
		Definition:      r.definition,
		Status:          r.status,
		Summary:         r.summary,
		Details:         r.details,
		Insights:        r.insights,
		Recommendations: r.recommendations,
		Metadata: resultMetadata{
			ExecutionTimeMs: r.executionTimeMs,
			RecordCount:     len(r.details),
			Status:          r.status,
		},
		ErrorMessage: r.errorMessage,
		GeneratedAt:  r.generatedAt,
	})
}

func nonNilRecords(v []Record) []Record {
	if v == nil {
		return []Record{}
	}
	return v
}

func nonNilInsights(v []Insight) []Insight {
	if v == nil {
		return []Insight{}
	}
	return v
}

func nonNilRecommendations(v []Recommendation) []Recommendation {
	if v == nil {
		return []Recommendation{}
	}
	return v
}
