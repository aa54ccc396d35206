package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/andresuchdata/stockinsight/internal/domain"
	"github.com/andresuchdata/stockinsight/internal/storage"
	"github.com/rs/zerolog/log"
)

const objectPrefix = "exports/"

// Exporter writes report results to files under dir and optionally publishes
// them to object storage. Jobs are kept in memory for status lookups.
type Exporter struct {
	dir     string
	storage storage.ObjectStorage
	now     func() time.Time

	mu   sync.RWMutex
	jobs map[string]*domain.ExportJob
}

type Option func(*Exporter)

// WithStorage uploads every export and uses the object URL as download URL.
func WithStorage(s storage.ObjectStorage) Option {
	return func(e *Exporter) { e.storage = s }
}

func WithClock(now func() time.Time) Option {
	return func(e *Exporter) { e.now = now }
}

func New(dir string, opts ...Option) *Exporter {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "stockinsight-exports")
	}
	e := &Exporter{
		dir:  dir,
		now:  func() time.Time { return time.Now().UTC() },
		jobs: make(map[string]*domain.ExportJob),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Exporter) fileName(result *domain.ReportResult, format string) string {
	reportType := "report"
	if def := result.Definition(); def != nil && def.Type != "" {
		reportType = string(def.Type)
	}
	return fmt.Sprintf("%s_%s_%s.%s", reportType, result.ID(), e.now().Format("20060102T150405"), format)
}

// Export renders result in format and returns the finished job. A failed
// export returns the failed job together with the error.
func (e *Exporter) Export(ctx context.Context, result *domain.ReportResult, format string) (*domain.ExportJob, error) {
	normalized, ok := domain.ParseExportFormat(format)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, format)
	}
	if result == nil {
		return nil, fmt.Errorf("%w: report result is required", domain.ErrInvalidInput)
	}

	job := domain.NewExportJob(result.ID(), normalized)
	job.Metadata["record_count"] = result.RecordCount()
	e.put(job)

	e.update(job.ID, func(j *domain.ExportJob) { j.MarkStarted() })
	path, size, url, err := e.render(ctx, job.ID, result, normalized)
	if err != nil {
		log.Error().Err(err).Str("job_id", job.ID).Str("format", normalized).Msg("export: failed")
		snapshot := e.update(job.ID, func(j *domain.ExportJob) { j.MarkFailed(err) })
		return snapshot, err
	}

	snapshot := e.update(job.ID, func(j *domain.ExportJob) { j.MarkCompleted(path, size, url) })
	log.Info().
		Str("job_id", job.ID).
		Str("format", normalized).
		Str("path", path).
		Int64("size", size).
		Msg("export: completed")
	return snapshot, nil
}

func (e *Exporter) render(ctx context.Context, jobID string, result *domain.ReportResult, format string) (string, int64, string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", 0, "", fmt.Errorf("failed creating export directory %s: %w", e.dir, err)
	}
	name := e.fileName(result, format)
	path := filepath.Join(e.dir, name)

	var err error
	switch format {
	case "json":
		err = writeJSON(result, path)
	case "csv":
		err = writeCSV(result, path)
	case "xlsx":
		err = writeXLSX(result, path)
	}
	if err != nil {
		return "", 0, "", err
	}
	e.update(jobID, func(j *domain.ExportJob) { j.Progress = 70 })

	info, err := os.Stat(path)
	if err != nil {
		return "", 0, "", fmt.Errorf("failed to stat export %s: %w", path, err)
	}

	if e.storage == nil {
		return path, info.Size(), "", nil
	}
	if err := ctx.Err(); err != nil {
		return "", 0, "", err
	}
	key := objectPrefix + name
	if _, err := e.storage.UploadFile(ctx, key, path, contentTypes[format]); err != nil {
		return "", 0, "", err
	}
	return path, info.Size(), e.storage.ObjectURL(key), nil
}

func (e *Exporter) put(job *domain.ExportJob) {
	e.mu.Lock()
	e.jobs[job.ID] = job
	e.mu.Unlock()
}

// update applies fn under the lock and returns a copy of the job.
func (e *Exporter) update(id string, fn func(*domain.ExportJob)) *domain.ExportJob {
	e.mu.Lock()
	defer e.mu.Unlock()
	job := e.jobs[id]
	fn(job)
	return copyJob(job)
}

func copyJob(j *domain.ExportJob) *domain.ExportJob {
	c := *j
	c.Metadata = make(map[string]any, len(j.Metadata))
	for k, v := range j.Metadata {
		c.Metadata[k] = v
	}
	return &c
}

func (e *Exporter) Status(id string) (*domain.ExportJob, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	job, ok := e.jobs[strings.TrimSpace(id)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrExportNotFound, id)
	}
	return copyJob(job), nil
}

// Jobs returns all known jobs, newest first.
func (e *Exporter) Jobs() []*domain.ExportJob {
	e.mu.RLock()
	out := make([]*domain.ExportJob, 0, len(e.jobs))
	for _, j := range e.jobs {
		out = append(out, copyJob(j))
	}
	e.mu.RUnlock()

	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.After(out[k].CreatedAt) })
	return out
}
