package ai

import (
	"context"

	"github.com/andresuchdata/stockinsight/internal/domain"
)

// Strategy names.
const (
	StrategyOllama = "ollama"
	StrategyLocal  = "local"
	StrategyRules  = "rules"
)

// Strategy is one interchangeable analysis backend.
type Strategy interface {
	Name() string
	// Analyze fails with domain.ErrInvalidInput when the request subject is
	// empty. Algorithm failures degrade to a result tagged IsFallback.
	Analyze(ctx context.Context, req domain.AnalysisRequest) (*domain.AnalysisResult, error)
	Generate(ctx context.Context, req domain.ReportRequest) (*domain.ReportPayload, error)
	// IsAvailable never returns an error; any probe failure reads as false.
	IsAvailable(ctx context.Context) bool
}
