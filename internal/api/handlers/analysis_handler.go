package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/andresuchdata/stockinsight/internal/ai"
	"github.com/andresuchdata/stockinsight/internal/domain"
	"github.com/andresuchdata/stockinsight/internal/service"
	"github.com/gin-gonic/gin"
)

type AnalysisHandler struct {
	service *service.AnalysisService
	ai      *ai.Service
}

func NewAnalysisHandler(svc *service.AnalysisService, aiSvc *ai.Service) *AnalysisHandler {
	return &AnalysisHandler{service: svc, ai: aiSvc}
}

type outcome interface {
	OK() bool
}

// respond writes an orchestrator result. Data source failures are reported
// as 503 with the same body shape.
func respond(c *gin.Context, res outcome) {
	if !res.OK() {
		c.JSON(http.StatusServiceUnavailable, res)
		return
	}
	c.JSON(http.StatusOK, res)
}

// splitList accepts repeated params and comma separated values:
//
//	?category=a&category=b
//	?category=a,b
func splitList(values []string) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if _, ok := seen[part]; ok {
				continue
			}
			seen[part] = struct{}{}
			out = append(out, part)
		}
	}
	return out
}

func parseInventoryFilter(c *gin.Context) domain.InventoryFilter {
	return domain.InventoryFilter{
		CategoryIDs: splitList(c.QueryArray("category")),
		SupplierID:  strings.TrimSpace(c.Query("supplier")),
		Search:      strings.TrimSpace(c.Query("search")),
	}
}

func queryDays(c *gin.Context, def int) int {
	days, err := strconv.Atoi(c.DefaultQuery("days", strconv.Itoa(def)))
	if err != nil || days <= 0 {
		return def
	}
	return days
}

func (h *AnalysisHandler) Comprehensive(c *gin.Context) {
	respond(c, h.service.Comprehensive(c.Request.Context(), parseInventoryFilter(c)))
}

func (h *AnalysisHandler) Weekly(c *gin.Context) {
	respond(c, h.service.WeeklyReport(c.Request.Context()))
}

func (h *AnalysisHandler) Monitor(c *gin.Context) {
	respond(c, h.service.MonitorCriticalItems(c.Request.Context()))
}

func (h *AnalysisHandler) Predict(c *gin.Context) {
	respond(c, h.service.PredictNeeds(c.Request.Context(), queryDays(c, 30)))
}

func (h *AnalysisHandler) Optimize(c *gin.Context) {
	respond(c, h.service.Optimize(c.Request.Context()))
}

func (h *AnalysisHandler) SalesTrends(c *gin.Context) {
	respond(c, h.service.SalesTrends(c.Request.Context(), queryDays(c, 30)))
}

func (h *AnalysisHandler) Status(c *gin.Context) {
	respond(c, h.service.AIStatus(c.Request.Context()))
}

type setStrategyRequest struct {
	Strategy string `json:"strategy" binding:"required"`
}

// SetStrategy switches the active AI strategy.
func (h *AnalysisHandler) SetStrategy(c *gin.Context) {
	var req setStrategyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "strategy is required")
		return
	}
	if h.ai == nil {
		writeError(c, "ai is not configured", domain.ErrAIUnavailable)
		return
	}
	if err := h.ai.SetStrategy(strings.TrimSpace(req.Strategy)); err != nil {
		writeError(c, "failed to switch strategy", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"active_strategy": h.ai.ActiveStrategy(),
		"strategies":      h.ai.Strategies(),
	})
}
