package reporting

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/andresuchdata/stockinsight/internal/config"
	"github.com/andresuchdata/stockinsight/internal/domain"
	"github.com/andresuchdata/stockinsight/internal/metrics"
	"github.com/rs/zerolog/log"
)

const testModeMaxRecords = 10

var (
	ErrExportDisabled    = errors.New("report export is not configured")
	ErrSchedulerDisabled = errors.New("report scheduler is not configured")
)

// Exporter renders results into files.
type Exporter interface {
	Export(ctx context.Context, result *domain.ReportResult, format string) (*domain.ExportJob, error)
	Status(id string) (*domain.ExportJob, error)
}

// Scheduler runs report schedules periodically.
type Scheduler interface {
	Schedule(s *domain.ReportSchedule) (string, error)
	Cancel(id string) error
}

// ValidationReport lists every problem found in a definition.
type ValidationReport struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// ReportTypeInfo describes a registered report type.
type ReportTypeInfo struct {
	Type              domain.ReportType `json:"type"`
	Name              string            `json:"name"`
	Description       string            `json:"description"`
	RequiresDateRange bool              `json:"requiresDateRange"`
	DefaultColumns    []string          `json:"defaultColumns"`
}

var typeDescriptions = map[domain.ReportType][2]string{
	domain.ReportInventory:     {"Inventory Report", "Stock levels, value and health of inventory items"},
	domain.ReportAIPerformance: {"AI Performance Report", "Availability and call statistics of AI strategies"},
	domain.ReportUserActivity:  {"User Activity Report", "User sessions and actions"},
	domain.ReportSystemAudit:   {"System Audit Report", "Audit trail of system events"},
}

type Service struct {
	mu        sync.RWMutex
	builders  map[domain.ReportType]Builder
	cache     *ReportCache
	metrics   *metrics.Recorder
	exporter  Exporter
	scheduler Scheduler
	now       func() time.Time
}

type Option func(*serviceOptions)

type serviceOptions struct {
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
	metrics    *metrics.Recorder
	exporter   Exporter
}

func WithClock(now func() time.Time) Option {
	return func(o *serviceOptions) { o.now = now }
}

func WithMetrics(m *metrics.Recorder) Option {
	return func(o *serviceOptions) { o.metrics = m }
}

func WithExporter(e Exporter) Option {
	return func(o *serviceOptions) { o.exporter = e }
}

func WithCacheTTL(ttl time.Duration) Option {
	return func(o *serviceOptions) { o.ttl = ttl }
}

func WithCacheMaxEntries(n int) Option {
	return func(o *serviceOptions) { o.maxEntries = n }
}

// WithReportingConfig applies the cache settings of cfg.
func WithReportingConfig(cfg config.ReportingConfig) Option {
	return func(o *serviceOptions) {
		if cfg.CacheTTLSeconds > 0 {
			o.ttl = time.Duration(cfg.CacheTTLSeconds) * time.Second
		}
		if cfg.CacheMaxEntries > 0 {
			o.maxEntries = cfg.CacheMaxEntries
		}
	}
}

// NewService registers builders by their Type. A later builder replaces an
// earlier one of the same type.
func NewService(builders []Builder, opts ...Option) *Service {
	o := serviceOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	s := &Service{
		builders: make(map[domain.ReportType]Builder, len(builders)),
		cache:    NewReportCache(o.ttl, o.maxEntries, o.now),
		metrics:  o.metrics,
		exporter: o.exporter,
		now:      o.now,
	}
	for _, b := range builders {
		s.builders[b.Type()] = b
	}
	return s
}

// AttachScheduler wires the scheduler after construction since the scheduler
// itself generates reports through this service.
func (s *Service) AttachScheduler(sch Scheduler) {
	s.mu.Lock()
	s.scheduler = sch
	s.mu.Unlock()
}

func (s *Service) builder(t domain.ReportType) (Builder, error) {
	s.mu.RLock()
	b, ok := s.builders[t]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedReportType, t)
	}
	return b, nil
}

func (s *Service) elapsedMs(start time.Time) float64 {
	return float64(s.now().Sub(start)) / float64(time.Millisecond)
}

// GenerateReport returns a cached result when one is live for the
// definition's cache key. Otherwise it validates, builds and caches. Build
// failures come back as an error result, not as an error.
func (s *Service) GenerateReport(ctx context.Context, def *domain.ReportDefinition) (*domain.ReportResult, error) {
	if def == nil {
		return nil, fmt.Errorf("%w: report definition is required", domain.ErrInvalidInput)
	}
	start := s.now()

	b, err := s.builder(def.Type)
	if err != nil {
		return nil, err
	}

	useCache := !def.TestMode()
	key := CacheKey(def)
	if useCache {
		if cached, ok := s.cache.Get(key); ok {
			s.metrics.CacheHit()
			log.Debug().Str("report_type", string(def.Type)).Str("cache_key", key).Msg("reporting: cache hit")
			return cached, nil
		}
		s.metrics.CacheMiss()
	}

	if errs := s.validate(def); len(errs) > 0 {
		return nil, domain.NewValidationError(errs)
	}

	result, err := callBuilder(def, func() (*domain.ReportResult, error) {
		return b.Build(ctx, def)
	})
	elapsed := s.elapsedMs(start)
	if err != nil {
		log.Error().Err(err).Str("report_type", string(def.Type)).Str("report_id", def.ID).Msg("reporting: build failed")
		result = domain.NewErrorResult(def, err.Error(), domain.Round(elapsed, 2))
		s.metrics.ObserveReport(string(def.Type), string(result.Status()), s.now().Sub(start))
		return result, nil
	}

	result.SetExecutionTime(elapsed)
	s.metrics.ObserveReport(string(def.Type), string(result.Status()), s.now().Sub(start))
	if useCache {
		s.cache.Set(key, result)
	}

	log.Info().
		Str("report_type", string(def.Type)).
		Str("report_id", def.ID).
		Int("records", result.RecordCount()).
		Float64("execution_ms", result.ExecutionTimeMs()).
		Msg("reporting: report generated")
	return result, nil
}

// callBuilder turns a builder panic into an ordinary build error.
func callBuilder(def *domain.ReportDefinition, fn func() (*domain.ReportResult, error)) (result *domain.ReportResult, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Interface("panic", rec).Str("report_type", string(def.Type)).Msg("reporting: builder panicked")
			result, err = nil, fmt.Errorf("report builder panicked: %v", rec)
		}
	}()
	result, err = fn()
	if err == nil && result == nil {
		err = fmt.Errorf("report builder returned no result")
	}
	return result, err
}

func (s *Service) validate(def *domain.ReportDefinition) []string {
	errs := def.Validate()

	s.mu.RLock()
	b, ok := s.builders[def.Type]
	s.mu.RUnlock()
	switch {
	case !ok:
		errs = append(errs, fmt.Sprintf("Report type '%s' is not supported", def.Type))
	case b.RequiresDateRange() && def.DateRange == nil:
		errs = append(errs, fmt.Sprintf("Report type '%s' requires a date range", def.Type))
	}
	return errs
}

// ValidateReportDefinition has no side effects, so repeated calls agree.
func (s *Service) ValidateReportDefinition(def *domain.ReportDefinition) ValidationReport {
	if def == nil {
		return ValidationReport{Errors: []string{"Report definition is required"}}
	}
	errs := s.validate(def)
	if errs == nil {
		errs = []string{}
	}
	return ValidationReport{Valid: len(errs) == 0, Errors: errs}
}

// derived runs fn against the builder of def.Type. Unsupported operations
// surface as errors; any other builder failure becomes an error result.
func (s *Service) derived(def *domain.ReportDefinition, fn func(Builder) (*domain.ReportResult, error)) (*domain.ReportResult, error) {
	start := s.now()
	b, err := s.builder(def.Type)
	if err != nil {
		return nil, err
	}

	result, err := callBuilder(def, func() (*domain.ReportResult, error) {
		return fn(b)
	})
	elapsed := s.elapsedMs(start)
	if err != nil {
		if errors.Is(err, domain.ErrUnsupportedReportType) {
			return nil, err
		}
		log.Error().Err(err).Str("report_type", string(def.Type)).Msg("reporting: derived report failed")
		return domain.NewErrorResult(def, err.Error(), domain.Round(elapsed, 2)), nil
	}
	result.SetExecutionTime(elapsed)
	s.metrics.ObserveReport(string(def.Type), string(result.Status()), s.now().Sub(start))
	return result, nil
}

// GenerateRealTimeReport is never cached.
func (s *Service) GenerateRealTimeReport(ctx context.Context, reportType domain.ReportType, filters map[string]any) (*domain.ReportResult, error) {
	def := domain.NewSimpleDefinition(reportType, fmt.Sprintf("Real-time %s report", reportType), filters)
	return s.derived(def, func(b Builder) (*domain.ReportResult, error) {
		return b.BuildRealTime(ctx, def)
	})
}

func (s *Service) GeneratePredictiveReport(ctx context.Context, reportType domain.ReportType, forecastDays int) (*domain.ReportResult, error) {
	def := domain.NewSimpleDefinition(reportType, fmt.Sprintf("Predictive %s report", reportType), nil)
	def.Metadata["forecast_days"] = forecastDays
	return s.derived(def, func(b Builder) (*domain.ReportResult, error) {
		return b.BuildPredictive(ctx, def, forecastDays)
	})
}

// GenerateComparativeReport builds def and appends insights describing the
// change since previous.
func (s *Service) GenerateComparativeReport(ctx context.Context, def *domain.ReportDefinition, previous *domain.ReportResult) (*domain.ReportResult, error) {
	if def == nil {
		return nil, fmt.Errorf("%w: report definition is required", domain.ErrInvalidInput)
	}
	if errs := s.validate(def); len(errs) > 0 {
		if _, err := s.builder(def.Type); err != nil {
			return nil, err
		}
		return nil, domain.NewValidationError(errs)
	}
	return s.derived(def, func(b Builder) (*domain.ReportResult, error) {
		return b.BuildComparative(ctx, def, previous)
	})
}

// TestReportGeneration builds a capped, uncached copy of def. The caller's
// definition is not modified.
func (s *Service) TestReportGeneration(ctx context.Context, def *domain.ReportDefinition) (*domain.ReportResult, error) {
	if def == nil {
		return nil, fmt.Errorf("%w: report definition is required", domain.ErrInvalidInput)
	}
	trial := def.Clone()
	trial.Metadata[domain.MetadataTestMode] = true
	trial.Metadata[domain.MetadataMaxRecords] = testModeMaxRecords
	return s.GenerateReport(ctx, trial)
}

// AvailableReportTypes lists registered types ordered by name.
func (s *Service) AvailableReportTypes() []ReportTypeInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ReportTypeInfo, 0, len(s.builders))
	for t, b := range s.builders {
		desc := typeDescriptions[t]
		if desc[0] == "" {
			desc[0] = string(t)
		}
		out = append(out, ReportTypeInfo{
			Type:              t,
			Name:              desc[0],
			Description:       desc[1],
			RequiresDateRange: b.RequiresDateRange(),
			DefaultColumns:    (&domain.ReportDefinition{Type: t}).EffectiveColumns(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

func (s *Service) CacheStats() CacheStats { return s.cache.Stats() }

func (s *Service) ClearCache() {
	s.cache.Clear()
	log.Info().Msg("reporting: cache cleared")
}

// SetCacheTTL returns the effective TTL in seconds, at least 60.
func (s *Service) SetCacheTTL(seconds int) int {
	ttl := s.cache.SetTTL(time.Duration(seconds) * time.Second)
	return int(ttl / time.Second)
}

// AnalyzeReportTrends compares current against previous.
func (s *Service) AnalyzeReportTrends(current, previous *domain.ReportResult) TrendAnalysis {
	var t domain.ReportType
	if current != nil && current.Definition() != nil {
		t = current.Definition().Type
	}
	return analyzeTrends(t, []*domain.ReportResult{previous, current})
}

func (s *Service) ExportReport(ctx context.Context, result *domain.ReportResult, format string) (*domain.ExportJob, error) {
	if s.exporter == nil {
		return nil, ErrExportDisabled
	}
	if result == nil {
		return nil, fmt.Errorf("%w: report result is required", domain.ErrInvalidInput)
	}
	return s.exporter.Export(ctx, result, format)
}

func (s *Service) ExportStatus(id string) (*domain.ExportJob, error) {
	if s.exporter == nil {
		return nil, domain.ErrExportNotFound
	}
	return s.exporter.Status(id)
}

func (s *Service) ScheduleReport(schedule *domain.ReportSchedule) (string, error) {
	s.mu.RLock()
	sch := s.scheduler
	s.mu.RUnlock()
	if sch == nil {
		return "", ErrSchedulerDisabled
	}
	if schedule != nil && schedule.Definition != nil {
		if errs := s.validate(schedule.Definition); len(errs) > 0 {
			return "", domain.NewValidationError(errs)
		}
	}
	return sch.Schedule(schedule)
}

func (s *Service) CancelSchedule(id string) error {
	s.mu.RLock()
	sch := s.scheduler
	s.mu.RUnlock()
	if sch == nil {
		return domain.ErrScheduleNotFound
	}
	return sch.Cancel(id)
}
