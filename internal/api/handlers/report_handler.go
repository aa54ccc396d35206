package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/andresuchdata/stockinsight/internal/domain"
	"github.com/andresuchdata/stockinsight/internal/reporting"
	"github.com/gin-gonic/gin"
)

type ReportHandler struct {
	service *reporting.Service
}

func NewReportHandler(svc *reporting.Service) *ReportHandler {
	return &ReportHandler{service: svc}
}

type dateRangeRequest struct {
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Timezone string    `json:"timezone"`
}

type definitionRequest struct {
	Type        string             `json:"type"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Filters     map[string]any     `json:"filters"`
	Sorting     []domain.SortField `json:"sorting"`
	DateRange   *dateRangeRequest  `json:"dateRange"`
	Columns     []string           `json:"columns"`
	Metadata    map[string]any     `json:"metadata"`
}

func (r *definitionRequest) toDefinition() (*domain.ReportDefinition, error) {
	var dr *domain.DateRange
	if r.DateRange != nil {
		var err error
		dr, err = domain.NewDateRange(r.DateRange.Start, r.DateRange.End)
		if err != nil {
			return nil, err
		}
		if r.DateRange.Timezone != "" {
			dr.Timezone = r.DateRange.Timezone
		}
	}

	def, err := domain.NewReportDefinition(domain.ReportType(strings.TrimSpace(r.Type)), r.Name, dr, r.Filters)
	if err != nil {
		return nil, err
	}
	def.Description = r.Description
	def.Sorting = r.Sorting
	def.Columns = r.Columns
	if r.Metadata != nil {
		def.Metadata = r.Metadata
	}
	return def, nil
}

func bindDefinition(c *gin.Context) (*domain.ReportDefinition, bool) {
	var req definitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid report definition")
		return nil, false
	}
	def, err := req.toDefinition()
	if err != nil {
		writeError(c, "invalid report definition", err)
		return nil, false
	}
	return def, true
}

// writeReport answers with the result, or with one page of its details when
// ?page= is given. Error results are reported with status 500.
func writeReport(c *gin.Context, res *domain.ReportResult) {
	status := http.StatusOK
	if !res.IsSuccess() {
		status = http.StatusInternalServerError
	}

	if raw := c.Query("page"); raw != "" {
		page, _ := strconv.Atoi(raw)
		perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "50"))
		c.JSON(status, gin.H{"report": res, "page": res.Page(page, perPage)})
		return
	}
	c.JSON(status, res)
}

func (h *ReportHandler) Generate(c *gin.Context) {
	def, ok := bindDefinition(c)
	if !ok {
		return
	}
	res, err := h.service.GenerateReport(c.Request.Context(), def)
	if err != nil {
		writeError(c, "failed to generate report", err)
		return
	}
	writeReport(c, res)
}

func (h *ReportHandler) Validate(c *gin.Context) {
	def, ok := bindDefinition(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.service.ValidateReportDefinition(def))
}

func (h *ReportHandler) Test(c *gin.Context) {
	def, ok := bindDefinition(c)
	if !ok {
		return
	}
	res, err := h.service.TestReportGeneration(c.Request.Context(), def)
	if err != nil {
		writeError(c, "failed to run test report", err)
		return
	}
	writeReport(c, res)
}

func (h *ReportHandler) Types(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"types": h.service.AvailableReportTypes()})
}

// queryFilters turns query parameters into report filters. Repeated or comma
// separated values become lists.
func queryFilters(c *gin.Context) map[string]any {
	filters := map[string]any{}
	for key, values := range c.Request.URL.Query() {
		if key == "page" || key == "per_page" || key == "days" {
			continue
		}
		list := splitList(values)
		switch len(list) {
		case 0:
		case 1:
			filters[key] = list[0]
		default:
			filters[key] = list
		}
	}
	return filters
}

func (h *ReportHandler) RealTime(c *gin.Context) {
	res, err := h.service.GenerateRealTimeReport(c.Request.Context(), domain.ReportType(c.Param("type")), queryFilters(c))
	if err != nil {
		writeError(c, "failed to generate real-time report", err)
		return
	}
	writeReport(c, res)
}

func (h *ReportHandler) Predictive(c *gin.Context) {
	res, err := h.service.GeneratePredictiveReport(c.Request.Context(), domain.ReportType(c.Param("type")), queryDays(c, 30))
	if err != nil {
		writeError(c, "failed to generate predictive report", err)
		return
	}
	writeReport(c, res)
}

func (h *ReportHandler) CacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.CacheStats())
}

func (h *ReportHandler) ClearCache(c *gin.Context) {
	h.service.ClearCache()
	c.JSON(http.StatusOK, gin.H{"message": "report cache cleared"})
}

type cacheTTLRequest struct {
	TTLSeconds int `json:"ttlSeconds" binding:"required,gt=0"`
}

func (h *ReportHandler) SetCacheTTL(c *gin.Context) {
	var req cacheTTLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "ttlSeconds must be a positive integer")
		return
	}
	c.JSON(http.StatusOK, gin.H{"ttlSeconds": h.service.SetCacheTTL(req.TTLSeconds)})
}

type exportRequest struct {
	Definition definitionRequest `json:"definition"`
	Format     string            `json:"format" binding:"required"`
}

// Export generates the report for the definition and exports it.
func (h *ReportHandler) Export(c *gin.Context) {
	var req exportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "definition and format are required")
		return
	}
	if _, ok := domain.ParseExportFormat(req.Format); !ok {
		writeError(c, "invalid export format", fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, req.Format))
		return
	}
	def, err := req.Definition.toDefinition()
	if err != nil {
		writeError(c, "invalid report definition", err)
		return
	}

	res, err := h.service.GenerateReport(c.Request.Context(), def)
	if err != nil {
		writeError(c, "failed to generate report", err)
		return
	}
	if !res.IsSuccess() {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "report generation failed", "details": res.ErrorMessage()})
		return
	}

	job, err := h.service.ExportReport(c.Request.Context(), res, req.Format)
	if err != nil {
		if job != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed", "job": job})
			return
		}
		writeError(c, "export failed", err)
		return
	}
	c.JSON(http.StatusCreated, job)
}

func (h *ReportHandler) ExportStatus(c *gin.Context) {
	job, err := h.service.ExportStatus(c.Param("id"))
	if err != nil {
		writeError(c, "export job not found", err)
		return
	}
	c.JSON(http.StatusOK, job)
}

type scheduleRequest struct {
	Definition definitionRequest        `json:"definition"`
	Frequency  domain.ScheduleFrequency `json:"frequency" binding:"required"`
	CronSpec   string                   `json:"cronSpec"`
	Formats    []string                 `json:"formats"`
	Recipients []domain.Recipient       `json:"recipients"`
	Enabled    *bool                    `json:"enabled"`
}

func (h *ReportHandler) Schedule(c *gin.Context) {
	var req scheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "definition and frequency are required")
		return
	}
	def, err := req.Definition.toDefinition()
	if err != nil {
		writeError(c, "invalid report definition", err)
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	id, err := h.service.ScheduleReport(&domain.ReportSchedule{
		Definition: def,
		Frequency:  req.Frequency,
		CronSpec:   req.CronSpec,
		Formats:    req.Formats,
		Recipients: req.Recipients,
		Enabled:    enabled,
	})
	if err != nil {
		writeError(c, "failed to schedule report", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (h *ReportHandler) CancelSchedule(c *gin.Context) {
	if err := h.service.CancelSchedule(c.Param("id")); err != nil {
		writeError(c, "failed to cancel schedule", err)
		return
	}
	c.Status(http.StatusNoContent)
}
