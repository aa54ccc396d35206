package ai

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/andresuchdata/stockinsight/internal/config"
	"github.com/andresuchdata/stockinsight/internal/domain"
	"github.com/andresuchdata/stockinsight/internal/metrics"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	outcomeSuccess     = "success"
	outcomeError       = "error"
	outcomeUnavailable = "unavailable"
	outcomeFallback    = "fallback"
)

// Service dispatches to a single active strategy. Strategies are never raced
// or compared; resilience comes from each strategy's own fallback plus the
// explicit rule based step in AnalyzeOrFallback and GenerateOrFallback.
type Service struct {
	mu       sync.RWMutex
	enabled  bool
	order    []string
	registry map[string]Strategy
	active   Strategy
	fallback Strategy

	stats   *statsTracker
	metrics *metrics.Recorder
	logger  *zerolog.Logger
}

type Option func(*Service)

func WithMetrics(m *metrics.Recorder) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the logger handed to the remote strategy.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.logger = &l }
}

func NewService(enabled bool, opts ...Option) *Service {
	s := &Service{
		enabled:  enabled,
		registry: make(map[string]Strategy),
		fallback: NewRuleStrategy(),
		stats:    newStatsTracker(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewServiceFromConfig registers the ollama and local strategies and activates
// the configured one.
func NewServiceFromConfig(cfg config.AIConfig, opts ...Option) (*Service, error) {
	s := NewService(cfg.Enabled, opts...)
	s.Register(NewLocalStrategy(cfg.MLEnabled))
	ollama := NewOllamaStrategy(cfg)
	if s.logger != nil {
		ollama.logger = *s.logger
	}
	s.Register(ollama)

	if cfg.Strategy != "" {
		if err := s.SetStrategy(cfg.Strategy); err != nil {
			return nil, err
		}
	}
	log.Info().
		Bool("enabled", cfg.Enabled).
		Str("strategy", s.ActiveStrategy()).
		Msg("ai: service initialized")
	return s, nil
}

// Register adds st to the registry. The first registered strategy becomes
// active.
func (s *Service) Register(st Strategy) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.registry[st.Name()]; !exists {
		s.order = append(s.order, st.Name())
	}
	s.registry[st.Name()] = st
	if s.active == nil {
		s.active = st
	}
}

func (s *Service) SetStrategy(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.registry[name]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownStrategy, name)
	}
	s.active = st
	log.Info().Str("strategy", name).Msg("ai: active strategy changed")
	return nil
}

func (s *Service) ActiveStrategy() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.active == nil {
		return ""
	}
	return s.active.Name()
}

// Strategies returns registered names in registration order.
func (s *Service) Strategies() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}

func (s *Service) Enabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled
}

func (s *Service) current() (Strategy, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active, s.enabled
}

func (s *Service) IsAvailable(ctx context.Context) bool {
	st, enabled := s.current()
	return enabled && st != nil && st.IsAvailable(ctx)
}

// Analyze calls the active strategy and propagates its errors.
func (s *Service) Analyze(ctx context.Context, req domain.AnalysisRequest) (*domain.AnalysisResult, error) {
	st, enabled := s.current()
	if !enabled || st == nil {
		return nil, domain.ErrAIUnavailable
	}

	start := time.Now()
	res, err := st.Analyze(ctx, req)
	s.record(st.Name(), start, err)
	if err != nil {
		return nil, err
	}
	return res.Normalize(), nil
}

func (s *Service) Generate(ctx context.Context, req domain.ReportRequest) (*domain.ReportPayload, error) {
	st, enabled := s.current()
	if !enabled || st == nil {
		return nil, domain.ErrAIUnavailable
	}

	start := time.Now()
	payload, err := st.Generate(ctx, req)
	s.record(st.Name(), start, err)
	if err != nil {
		return nil, err
	}
	return payload.Normalize(), nil
}

// AnalyzeOrFallback tries the active strategy once and answers from the rule
// based strategy when it is unavailable or fails. Invalid input is returned
// unchanged since no strategy can answer it.
func (s *Service) AnalyzeOrFallback(ctx context.Context, req domain.AnalysisRequest) (*domain.AnalysisResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if s.IsAvailable(ctx) {
		res, err := s.Analyze(ctx, req)
		if err == nil {
			return res, nil
		}
		log.Warn().Err(err).
			Str("strategy", s.ActiveStrategy()).
			Str("analysis_type", string(req.AnalysisType)).
			Msg("ai: analysis failed, falling back to rules")
	} else {
		s.recordUnavailable()
	}

	res, err := s.fallback.Analyze(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("fallback analysis: %w", err)
	}
	s.recordFallback(string(req.AnalysisType))
	res.IsFallback = true
	return res.Normalize(), nil
}

func (s *Service) GenerateOrFallback(ctx context.Context, req domain.ReportRequest) (*domain.ReportPayload, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if s.IsAvailable(ctx) {
		payload, err := s.Generate(ctx, req)
		if err == nil {
			return payload, nil
		}
		log.Warn().Err(err).
			Str("strategy", s.ActiveStrategy()).
			Str("report_type", req.ReportType).
			Msg("ai: report generation failed, falling back to rules")
	} else {
		s.recordUnavailable()
	}

	payload, err := s.fallback.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("fallback report: %w", err)
	}
	s.recordFallback("report_" + req.ReportType)
	payload.IsFallback = true
	return payload.Normalize(), nil
}

// Status describes the dispatcher for the status endpoint.
type Status struct {
	Enabled    bool                     `json:"enabled"`
	Available  bool                     `json:"available"`
	Active     string                   `json:"active_strategy"`
	Strategies map[string]bool          `json:"strategies"`
	Stats      map[string]StrategyStats `json:"stats"`
	CheckedAt  time.Time                `json:"checked_at"`
}

func (s *Service) Status(ctx context.Context) Status {
	s.mu.RLock()
	strategies := make(map[string]Strategy, len(s.registry))
	for k, v := range s.registry {
		strategies[k] = v
	}
	s.mu.RUnlock()

	avail := make(map[string]bool, len(strategies))
	for name, st := range strategies {
		avail[name] = st.IsAvailable(ctx)
	}

	active := s.ActiveStrategy()
	enabled := s.Enabled()
	return Status{
		Enabled:    enabled,
		Available:  enabled && avail[active],
		Active:     active,
		Strategies: avail,
		Stats:      s.stats.snapshot(),
		CheckedAt:  time.Now().UTC(),
	}
}

// Stats returns per-strategy call statistics.
func (s *Service) Stats() map[string]StrategyStats {
	return s.stats.snapshot()
}

func (s *Service) record(strategy string, start time.Time, err error) {
	outcome := outcomeSuccess
	if err != nil {
		outcome = outcomeError
	}
	s.stats.record(strategy, time.Since(start), err)
	s.metrics.AICall(strategy, outcome)
}

func (s *Service) recordUnavailable() {
	name := s.ActiveStrategy()
	s.stats.unavailable(name)
	s.metrics.AICall(name, outcomeUnavailable)
}

func (s *Service) recordFallback(operation string) {
	s.stats.fallback(s.ActiveStrategy())
	s.metrics.AICall(s.fallback.Name(), outcomeFallback)
	s.metrics.Fallback(operation)
}
