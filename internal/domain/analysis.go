package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

type AnalysisType string

const (
	AnalysisSalesTrends             AnalysisType = "sales_trends"
	AnalysisInventoryTurnover       AnalysisType = "inventory_turnover"
	AnalysisStockOptimization       AnalysisType = "stock_optimization"
	AnalysisPurchaseRecommendations AnalysisType = "purchase_recommendations"
	AnalysisSafetyStock             AnalysisType = "safety_stock"
	AnalysisStockPrediction         AnalysisType = "stock_prediction"
	AnalysisAnomalyDetection        AnalysisType = "anomaly_detection"
	AnalysisRiskAssessment          AnalysisType = "risk_assessment"
	AnalysisComprehensive           AnalysisType = "comprehensive_analysis"
)

type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// NormalizeRiskLevel maps any value outside {low, medium, high} to medium.
func NormalizeRiskLevel(raw string) RiskLevel {
	switch RiskLevel(strings.ToLower(strings.TrimSpace(raw))) {
	case RiskLow:
		return RiskLow
	case RiskHigh:
		return RiskHigh
	default:
		return RiskMedium
	}
}

// ClampConfidence forces c into [0,1]. NaN becomes 0.
func ClampConfidence(c float64) float64 {
	if math.IsNaN(c) {
		return 0
	}
	return math.Max(0, math.Min(1, c))
}

// AnalysisRequest is the immutable input of a strategy call. Which collection
// must be populated depends on the analysis type, see Subject.
type AnalysisRequest struct {
	AnalysisType AnalysisType      `json:"analysis_type"`
	Items        []InventoryItem   `json:"items,omitempty"`
	Sales        []SalesPoint      `json:"sales,omitempty"`
	Stock        []StockProfile    `json:"stock,omitempty"`
	Suppliers    []SupplierProfile `json:"suppliers,omitempty"`
	PeriodDays   int               `json:"period_days"`
}

// Subject returns the size of the collection the analysis type operates on.
func (r AnalysisRequest) Subject() (string, int) {
	switch r.AnalysisType {
	case AnalysisSalesTrends, AnalysisSafetyStock:
		return "sales", len(r.Sales)
	case AnalysisStockOptimization:
		return "stock", len(r.Stock)
	case AnalysisPurchaseRecommendations:
		return "suppliers", len(r.Suppliers)
	default:
		return "items", len(r.Items)
	}
}

// Validate rejects requests whose subject collection is empty.
func (r AnalysisRequest) Validate() error {
	if r.AnalysisType == "" {
		return fmt.Errorf("%w: analysis type is required", ErrInvalidInput)
	}
	if r.PeriodDays < 0 {
		return fmt.Errorf("%w: period days must not be negative", ErrInvalidInput)
	}
	name, n := r.Subject()
	if n == 0 {
		return fmt.Errorf("%w: %s must be a non-empty collection", ErrInvalidInput, name)
	}
	return nil
}

// Trend describes the direction of a sales series.
type Trend struct {
	Direction         string  `json:"direction"`
	Slope             float64 `json:"slope"`
	GrowthRate        float64 `json:"growth_rate"`
	AverageDailySales float64 `json:"average_daily_sales"`
	TotalSales        float64 `json:"total_sales"`
	DataPoints        int     `json:"data_points"`
}

type StockOptimization struct {
	ItemID           string  `json:"item_id"`
	Name             string  `json:"name"`
	CurrentStock     int     `json:"current_stock"`
	OptimalStock     int     `json:"optimal_stock"`
	ReorderPoint     float64 `json:"reorder_point"`
	SafetyStock      float64 `json:"safety_stock"`
	PotentialSavings float64 `json:"potential_savings"`
}

type SupplierScore struct {
	SupplierID     string  `json:"supplier_id"`
	Name           string  `json:"name"`
	Score          float64 `json:"score"`
	Recommendation string  `json:"recommendation"`
}

type Anomaly struct {
	ItemID   string `json:"item_id"`
	ItemName string `json:"item_name"`
	Kind     string `json:"kind"`
	Detail   string `json:"detail"`
}

// Forecast is the stock prediction for a horizon of Days.
type Forecast struct {
	Days            int        `json:"days"`
	ProjectedDemand float64    `json:"projected_demand"`
	ReorderQuantity int        `json:"reorder_quantity"`
	DaysOfCover     float64    `json:"days_of_cover"`
	DepletionDate   *time.Time `json:"depletion_date"`
}

// AnalysisResult is the typed output of Strategy.Analyze.
type AnalysisResult struct {
	AnalysisType    AnalysisType        `json:"analysis_type"`
	Analysis        string              `json:"analysis"`
	RiskLevel       RiskLevel           `json:"risk_level"`
	Confidence      float64             `json:"confidence"`
	Recommendations []string            `json:"recommendations"`
	Trend           *Trend              `json:"trend,omitempty"`
	Optimizations   []StockOptimization `json:"optimizations,omitempty"`
	SupplierScores  []SupplierScore     `json:"supplier_scores,omitempty"`
	Anomalies       []Anomaly           `json:"anomalies,omitempty"`
	Forecast        *Forecast           `json:"forecast,omitempty"`
	Metrics         map[string]float64  `json:"metrics,omitempty"`
	GeneratedBy     string              `json:"generated_by"`
	IsFallback      bool                `json:"is_fallback"`
	Timestamp       time.Time           `json:"timestamp"`
}

// Normalize enforces the confidence and risk level invariants in place.
func (r *AnalysisResult) Normalize() *AnalysisResult {
	r.Confidence = ClampConfidence(r.Confidence)
	r.RiskLevel = NormalizeRiskLevel(string(r.RiskLevel))
	if r.Recommendations == nil {
		r.Recommendations = []string{}
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}
	return r
}

// ReportRequest is the input of Strategy.Generate.
type ReportRequest struct {
	ReportType string           `json:"report_type"`
	Items      []InventoryItem  `json:"items"`
	Summary    InventorySummary `json:"summary"`
	PeriodDays int              `json:"period_days"`
}

func (r ReportRequest) Validate() error {
	if len(r.Items) == 0 {
		return fmt.Errorf("%w: items must be a non-empty collection", ErrInvalidInput)
	}
	return nil
}

type ReportSection struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// ReportPayload is the narrative output of Strategy.Generate.
type ReportPayload struct {
	ReportType      string          `json:"report_type"`
	Title           string          `json:"title"`
	Summary         string          `json:"summary"`
	KeyFindings     []string        `json:"key_findings"`
	Recommendations []string        `json:"recommendations"`
	Sections        []ReportSection `json:"sections"`
	Confidence      float64         `json:"confidence"`
	GeneratedBy     string          `json:"generated_by"`
	IsFallback      bool            `json:"is_fallback"`
	GeneratedAt     time.Time       `json:"generated_at"`
}

func (p *ReportPayload) Normalize() *ReportPayload {
	p.Confidence = ClampConfidence(p.Confidence)
	if p.KeyFindings == nil {
		p.KeyFindings = []string{}
	}
	if p.Recommendations == nil {
		p.Recommendations = []string{}
	}
	if p.Sections == nil {
		p.Sections = []ReportSection{}
	}
	if p.GeneratedAt.IsZero() {
		p.GeneratedAt = time.Now().UTC()
	}
	return p
}
