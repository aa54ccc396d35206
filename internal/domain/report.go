package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/spf13/cast"
)

type ReportType string

const (
	ReportInventory     ReportType = "inventory"
	ReportUserActivity  ReportType = "user_activity"
	ReportAIPerformance ReportType = "ai_performance"
	ReportSystemAudit   ReportType = "system_audit"
	ReportCustom        ReportType = "custom"
)

const (
	MetadataMaxRecords = "max_records"
	MetadataTestMode   = "test_mode"
)

var defaultColumns = map[ReportType][]string{
	ReportInventory: {
		"id", "name", "description", "quantity", "price", "category",
		"supplier", "minStockLevel", "createdAt", "updatedAt",
	},
	ReportUserActivity: {
		"userId", "username", "email", "role", "lastLogin",
		"loginCount", "sessionDuration", "actionsPerformed",
	},
	ReportAIPerformance: {
		"analysisId", "analysisType", "success", "confidence",
		"responseTime", "modelUsed", "timestamp",
	},
	ReportSystemAudit: {
		"eventId", "eventType", "userId", "resource",
		"timestamp", "details", "ipAddress",
	},
}

var structValidator = newStructValidator()

func newStructValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("export_format", func(fl validator.FieldLevel) bool {
		_, ok := ParseExportFormat(fl.Field().String())
		return ok
	})
	return v
}

// DateRange is an inclusive time window. Start never follows End once
// constructed through NewDateRange.
type DateRange struct {
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Timezone string    `json:"timezone,omitempty"`
}

func NewDateRange(start, end time.Time) (*DateRange, error) {
	if start.After(end) {
		return nil, fmt.Errorf("%w: start date must not be after end date", ErrInvalidInput)
	}
	return &DateRange{Start: start, End: end, Timezone: "UTC"}, nil
}

// LastDays returns the window ending at now and spanning days days.
func LastDays(now time.Time, days int) *DateRange {
	return &DateRange{Start: now.AddDate(0, 0, -days), End: now, Timezone: "UTC"}
}

func (r *DateRange) Days() int {
	return int(r.End.Sub(r.Start).Hours()/24) + 1
}

// ReportDefinition describes what report to build. Builders treat it as
// read-only; derivative requests operate on a Clone.
type ReportDefinition struct {
	ID          string         `json:"id"`
	Type        ReportType     `json:"type" validate:"required,oneof=inventory user_activity ai_performance system_audit custom"`
	Name        string         `json:"name" validate:"required,max=255"`
	Description string         `json:"description,omitempty"`
	Filters     map[string]any `json:"filters"`
	Sorting     []SortField    `json:"sorting"`
	DateRange   *DateRange     `json:"date_range,omitempty"`
	Columns     []string       `json:"columns"`
	Metadata    map[string]any `json:"metadata"`
	CreatedAt   time.Time      `json:"created_at"`
}

// NewReportDefinition creates a definition with a fresh id.
func NewReportDefinition(reportType ReportType, name string, dateRange *DateRange, filters map[string]any) (*ReportDefinition, error) {
	if dateRange != nil && dateRange.Start.After(dateRange.End) {
		return nil, fmt.Errorf("%w: start date must not be after end date", ErrInvalidInput)
	}
	if filters == nil {
		filters = map[string]any{}
	}
	return &ReportDefinition{
		ID:        uuid.NewString(),
		Type:      reportType,
		Name:      name,
		Filters:   filters,
		DateRange: dateRange,
		Metadata:  map[string]any{},
		CreatedAt: time.Now().UTC(),
	}, nil
}

// NewSimpleDefinition builds a definition for derivative requests such as
// real-time and predictive reports, which carry no date range.
func NewSimpleDefinition(reportType ReportType, name string, filters map[string]any) *ReportDefinition {
	def, _ := NewReportDefinition(reportType, name, nil, filters)
	return def
}

// Validate returns the list of structural problems, empty when valid.
func (d *ReportDefinition) Validate() []string {
	var errs []string

	if err := structValidator.Struct(d); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				errs = append(errs, describeFieldError(d, fe))
			}
		} else {
			errs = append(errs, err.Error())
		}
	}

	if d.Name != "" && strings.TrimSpace(d.Name) == "" {
		errs = append(errs, "Report name cannot be empty")
	}

	for _, column := range d.Columns {
		if strings.TrimSpace(column) == "" {
			errs = append(errs, "Column names must be non-empty strings")
			break
		}
	}

	if d.DateRange != nil && d.DateRange.Start.After(d.DateRange.End) {
		errs = append(errs, "Invalid date range: start date must not be after end date")
	}

	return errs
}

func describeFieldError(d *ReportDefinition, fe validator.FieldError) string {
	switch fe.Field() {
	case "Type":
		return fmt.Sprintf("Invalid report type: %s. Valid types are: inventory, user_activity, ai_performance, system_audit, custom", d.Type)
	case "Name":
		if fe.Tag() == "max" {
			return "Report name cannot exceed 255 characters"
		}
		return "Report name cannot be empty"
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}

// EffectiveColumns returns the requested columns or the type's defaults.
func (d *ReportDefinition) EffectiveColumns() []string {
	if len(d.Columns) > 0 {
		return d.Columns
	}
	if cols, ok := defaultColumns[d.Type]; ok {
		return cols
	}
	return []string{"id", "name", "timestamp"}
}

// MaxRecords reads metadata max_records, falling back to def.
func (d *ReportDefinition) MaxRecords(def int) int {
	if raw, ok := d.Metadata[MetadataMaxRecords]; ok {
		if n, err := cast.ToIntE(raw); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func (d *ReportDefinition) TestMode() bool {
	return cast.ToBool(d.Metadata[MetadataTestMode])
}

// Clone returns a deep copy so derivative requests never mutate the caller's
// definition.
func (d *ReportDefinition) Clone() *ReportDefinition {
	if d == nil {
		return nil
	}
	c := *d
	c.Filters = deepCopyMap(d.Filters)
	c.Metadata = deepCopyMap(d.Metadata)
	c.Columns = append([]string(nil), d.Columns...)
	c.Sorting = append([]SortField(nil), d.Sorting...)
	if d.DateRange != nil {
		dr := *d.DateRange
		c.DateRange = &dr
	}
	return &c
}

func deepCopyMap(src map[string]any) map[string]any {
	if src == nil {
		return map[string]any{}
	}
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = deepCopyValue(v)
	}
	return dst
}

func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopyMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = deepCopyValue(e)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	case []int:
		return append([]int(nil), t...)
	default:
		return v
	}
}

type Insight struct {
	Type     string `json:"type"`
	Message  string `json:"message"`
	Priority string `json:"priority"`
}

type Recommendation struct {
	Type     string `json:"type"`
	Priority string `json:"priority"`
	Action   string `json:"action"`
	Impact   string `json:"impact,omitempty"`
	Timeline string `json:"timeline,omitempty"`
}

// Record is one row of report details keyed by column.
type Record map[string]any
