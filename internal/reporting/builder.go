package reporting

import (
	"context"

	"github.com/andresuchdata/stockinsight/internal/ai"
	"github.com/andresuchdata/stockinsight/internal/domain"
)

// Builder produces results for one report type. Builders return errors; the
// service turns them into error results.
type Builder interface {
	Type() domain.ReportType
	RequiresDateRange() bool
	Build(ctx context.Context, def *domain.ReportDefinition) (*domain.ReportResult, error)
	BuildRealTime(ctx context.Context, def *domain.ReportDefinition) (*domain.ReportResult, error)
	BuildPredictive(ctx context.Context, def *domain.ReportDefinition, forecastDays int) (*domain.ReportResult, error)
	BuildComparative(ctx context.Context, def *domain.ReportDefinition, previous *domain.ReportResult) (*domain.ReportResult, error)
}

// AI is the part of the dispatcher builders consult for insight.
type AI interface {
	IsAvailable(ctx context.Context) bool
	Generate(ctx context.Context, req domain.ReportRequest) (*domain.ReportPayload, error)
	AnalyzeOrFallback(ctx context.Context, req domain.AnalysisRequest) (*domain.AnalysisResult, error)
	Status(ctx context.Context) ai.Status
}

var _ AI = (*ai.Service)(nil)
