package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/andresuchdata/stockinsight/internal/domain"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

const defaultRunTimeout = 5 * time.Minute

var frequencySpecs = map[domain.ScheduleFrequency]string{
	domain.FrequencyHourly:  "@hourly",
	domain.FrequencyDaily:   "0 8 * * *",
	domain.FrequencyWeekly:  "0 9 * * 1",
	domain.FrequencyMonthly: "0 10 1 * *",
}

// ReportGenerator produces a report for a definition.
type ReportGenerator interface {
	GenerateReport(ctx context.Context, def *domain.ReportDefinition) (*domain.ReportResult, error)
}

// Exporter writes a generated report in one format.
type Exporter interface {
	Export(ctx context.Context, result *domain.ReportResult, format string) (*domain.ExportJob, error)
}

type entry struct {
	schedule *domain.ReportSchedule
	cronID   cron.EntryID
	spec     cron.Schedule
}

type Scheduler struct {
	cron       *cron.Cron
	generator  ReportGenerator
	exporter   Exporter
	runTimeout time.Duration
	now        func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
}

type Option func(*Scheduler)

func WithRunTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.runTimeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// New creates a stopped scheduler. Runs of the same schedule never overlap.
func New(generator ReportGenerator, exporter Exporter, opts ...Option) *Scheduler {
	s := &Scheduler{
		cron:       cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DiscardLogger))),
		generator:  generator,
		exporter:   exporter,
		runTimeout: defaultRunTimeout,
		now:        func() time.Time { return time.Now().UTC() },
		entries:    make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CronSpec returns the cron expression for the schedule's frequency.
func CronSpec(s *domain.ReportSchedule) (string, error) {
	if s.Frequency == domain.FrequencyCustom {
		return s.CronSpec, nil
	}
	spec, ok := frequencySpecs[s.Frequency]
	if !ok {
		return "", fmt.Errorf("%w: unknown frequency %q", domain.ErrInvalidInput, s.Frequency)
	}
	return spec, nil
}

// Schedule validates and registers s, returning its id. Disabled schedules
// are kept but never run.
func (s *Scheduler) Schedule(sched *domain.ReportSchedule) (string, error) {
	if sched == nil {
		return "", fmt.Errorf("%w: schedule is required", domain.ErrInvalidInput)
	}
	if err := sched.Validate(); err != nil {
		return "", err
	}
	specText, err := CronSpec(sched)
	if err != nil {
		return "", err
	}
	spec, err := cron.ParseStandard(specText)
	if err != nil {
		return "", domain.NewValidationError([]string{fmt.Sprintf("Invalid cron spec %q: %v", specText, err)})
	}

	stored := *sched
	stored.Definition = sched.Definition.Clone()
	stored.Formats = append([]string(nil), sched.Formats...)
	stored.Recipients = append([]domain.Recipient(nil), sched.Recipients...)
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = s.now()
	}
	next := spec.Next(s.now())
	stored.NextRun = &next

	e := &entry{schedule: &stored, spec: spec}

	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.entries[stored.ID]; ok {
		s.cron.Remove(old.cronID)
	}
	if stored.Enabled {
		id := stored.ID
		e.cronID = s.cron.Schedule(spec, cron.FuncJob(func() { _ = s.run(id) }))
	}
	s.entries[stored.ID] = e

	log.Info().
		Str("schedule_id", stored.ID).
		Str("report_type", string(stored.Definition.Type)).
		Str("cron", specText).
		Bool("enabled", stored.Enabled).
		Msg("scheduler: report scheduled")
	return stored.ID, nil
}

func (s *Scheduler) Cancel(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrScheduleNotFound, id)
	}
	if e.cronID != 0 {
		s.cron.Remove(e.cronID)
	}
	delete(s.entries, id)
	log.Info().Str("schedule_id", id).Msg("scheduler: schedule cancelled")
	return nil
}

// List returns copies of all schedules ordered by creation time.
func (s *Scheduler) List() []domain.ReportSchedule {
	s.mu.Lock()
	out := make([]domain.ReportSchedule, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, *e.schedule)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (s *Scheduler) Start() {
	s.cron.Start()
	log.Info().Int("schedules", len(s.List())).Msg("scheduler: started")
}

// Stop waits for running jobs to finish or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		log.Info().Msg("scheduler: stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunNow executes schedule id immediately, outside the cron timetable.
func (s *Scheduler) RunNow(id string) error {
	s.mu.Lock()
	_, ok := s.entries[id]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrScheduleNotFound, id)
	}
	return s.run(id)
}

func (s *Scheduler) run(id string) error {
	s.mu.Lock()
	e, ok := s.entries[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrScheduleNotFound, id)
	}
	def := e.schedule.Definition.Clone()
	formats := append([]string(nil), e.schedule.Formats...)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.runTimeout)
	defer cancel()

	started := s.now()
	result, err := s.generator.GenerateReport(ctx, def)
	s.markRun(id, started)
	if err != nil {
		log.Error().Err(err).Str("schedule_id", id).Msg("scheduler: report generation failed")
		return err
	}
	if !result.IsSuccess() {
		log.Warn().Str("schedule_id", id).Str("error", result.ErrorMessage()).Msg("scheduler: report finished with error")
		return nil
	}

	for _, format := range formats {
		if s.exporter == nil {
			break
		}
		job, err := s.exporter.Export(ctx, result, format)
		if err != nil {
			log.Error().Err(err).Str("schedule_id", id).Str("format", format).Msg("scheduler: export failed")
			continue
		}
		log.Info().Str("schedule_id", id).Str("job_id", job.ID).Str("format", format).Msg("scheduler: export completed")
	}
	return nil
}

func (s *Scheduler) markRun(id string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return
	}
	e.schedule.LastRun = &at
	next := e.spec.Next(at)
	e.schedule.NextRun = &next
}
