package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// ExportJob tracks a single report export.
type ExportJob struct {
	ID           string         `json:"id"`
	ReportID     string         `json:"report_id"`
	Format       string         `json:"format"`
	Status       ExportStatus   `json:"status"`
	FilePath     string         `json:"file_path,omitempty"`
	FileSize     int64          `json:"file_size,omitempty"`
	DownloadURL  string         `json:"download_url,omitempty"`
	Progress     float64        `json:"progress"`
	ErrorMessage string         `json:"error_message,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	StartedAt    *time.Time     `json:"started_at,omitempty"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
}

func NewExportJob(reportID, format string) *ExportJob {
	return &ExportJob{
		ID:        uuid.NewString(),
		ReportID:  reportID,
		Format:    format,
		Status:    ExportPending,
		Metadata:  map[string]any{},
		CreatedAt: time.Now().UTC(),
	}
}

func (j *ExportJob) MarkStarted() {
	now := time.Now().UTC()
	j.Status = ExportProcessing
	j.StartedAt = &now
	j.Progress = 10
}

func (j *ExportJob) MarkCompleted(path string, size int64, downloadURL string) {
	now := time.Now().UTC()
	j.Status = ExportCompleted
	j.FilePath = path
	j.FileSize = size
	j.DownloadURL = downloadURL
	j.Progress = 100
	j.CompletedAt = &now
}

func (j *ExportJob) MarkFailed(err error) {
	now := time.Now().UTC()
	j.Status = ExportFailed
	j.ErrorMessage = err.Error()
	j.CompletedAt = &now
}

func (j *ExportJob) IsFinished() bool {
	return j.Status == ExportCompleted || j.Status == ExportFailed
}

type ScheduleFrequency string

const (
	FrequencyHourly  ScheduleFrequency = "hourly"
	FrequencyDaily   ScheduleFrequency = "daily"
	FrequencyWeekly  ScheduleFrequency = "weekly"
	FrequencyMonthly ScheduleFrequency = "monthly"
	FrequencyCustom  ScheduleFrequency = "custom"
)

type Recipient struct {
	Email string `json:"email" validate:"required,email"`
	Name  string `json:"name,omitempty"`
}

// ReportSchedule runs a definition periodically and exports each format.
type ReportSchedule struct {
	ID         string            `json:"id"`
	Definition *ReportDefinition `json:"definition" validate:"required"`
	Frequency  ScheduleFrequency `json:"frequency" validate:"required,oneof=hourly daily weekly monthly custom"`
	CronSpec   string            `json:"cron_spec,omitempty" validate:"required_if=Frequency custom"`
	Formats    []string          `json:"formats" validate:"dive,export_format"`
	Recipients []Recipient       `json:"recipients" validate:"required,min=1,dive"`
	Enabled    bool              `json:"enabled"`
	LastRun    *time.Time        `json:"last_run,omitempty"`
	NextRun    *time.Time        `json:"next_run,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// Validate reports every problem with the schedule in one error.
func (s *ReportSchedule) Validate() error {
	err := structValidator.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return NewValidationError([]string{err.Error()})
	}
	errs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		errs = append(errs, s.describe(fe))
	}
	return NewValidationError(errs)
}

func (s *ReportSchedule) describe(fe validator.FieldError) string {
	if fe.Tag() == "export_format" {
		return fmt.Sprintf("Invalid format: %v. Valid formats: json, csv, xlsx", fe.Value())
	}
	if strings.HasPrefix(fe.StructNamespace(), "ReportSchedule.Definition.") {
		return describeFieldError(s.Definition, fe)
	}
	switch fe.StructField() {
	case "Definition":
		return "schedule requires a report definition"
	case "Frequency":
		return fmt.Sprintf("Invalid frequency: %s. Valid frequencies: hourly, daily, weekly, monthly, custom", s.Frequency)
	case "CronSpec":
		return "custom frequency requires a cron spec"
	case "Recipients":
		return "schedule requires at least one recipient"
	case "Email":
		return fmt.Sprintf("Invalid recipient email: %v", fe.Value())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}
