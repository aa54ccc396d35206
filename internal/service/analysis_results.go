package service

import (
	"time"

	"github.com/andresuchdata/stockinsight/internal/ai"
	"github.com/andresuchdata/stockinsight/internal/domain"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// ResultMeta is embedded in every orchestrator result. Fields are never
// omitted so fallback and non-fallback results share one key set.
type ResultMeta struct {
	Status      string    `json:"status"`
	IsFallback  bool      `json:"is_fallback"`
	Error       string    `json:"error"`
	GeneratedAt time.Time `json:"generated_at"`
}

func (m ResultMeta) OK() bool { return m.Status == StatusSuccess }

type CriticalItems struct {
	LowStock   []domain.InventoryItem `json:"low_stock"`
	OutOfStock []domain.InventoryItem `json:"out_of_stock"`
}

type OptimizationBatch struct {
	Optimizations         []domain.StockOptimization `json:"optimizations"`
	TotalPotentialSavings float64                    `json:"total_potential_savings"`
	BatchesProcessed      int                        `json:"batches_processed"`
}

type PerformanceMetrics struct {
	ExecutionTimeSeconds float64 `json:"execution_time_seconds"`
	HeapAllocMB          float64 `json:"heap_alloc_mb"`
	Goroutines           int     `json:"goroutines"`
	GoVersion            string  `json:"go_version"`
}

type ComprehensiveAnalysis struct {
	ResultMeta
	Summary           domain.InventorySummary `json:"summary"`
	RiskAssessment    domain.RiskLevel        `json:"risk_assessment"`
	AIInsights        []string                `json:"ai_insights"`
	SalesTrends       *domain.AnalysisResult  `json:"sales_trends"`
	StockOptimization OptimizationBatch       `json:"stock_optimization"`
	CriticalItems     CriticalItems           `json:"critical_items"`
	ItemsAnalyzed     int                     `json:"items_analyzed"`
	Performance       PerformanceMetrics      `json:"performance_metrics"`
}

type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Type  string    `json:"type"`
}

type ExecutiveSummary struct {
	Overview        string   `json:"overview"`
	KeyFindings     []string `json:"key_findings"`
	Recommendations []string `json:"recommendations"`
	GeneratedBy     string   `json:"generated_by"`
}

type KeyMetrics struct {
	TotalInventoryValue  float64 `json:"total_inventory_value"`
	AveragePrice         float64 `json:"average_price"`
	LowStockCount        int     `json:"low_stock_count"`
	OutOfStockCount      int     `json:"out_of_stock_count"`
	HealthScore          float64 `json:"health_score"`
	HealthStatus         string  `json:"health_status"`
	OutOfStockPercentage float64 `json:"out_of_stock_percentage"`
	UnitsSold            float64 `json:"units_sold"`
	Revenue              float64 `json:"revenue"`
}

type ActionItem struct {
	Priority string `json:"priority"`
	Action   string `json:"action"`
}

type WeeklyReport struct {
	ResultMeta
	Period           Period                 `json:"period"`
	ExecutiveSummary ExecutiveSummary       `json:"executive_summary"`
	KeyMetrics       KeyMetrics             `json:"key_metrics"`
	ActionItems      []ActionItem           `json:"action_items"`
	TrendAnalysis    *domain.AnalysisResult `json:"trend_analysis"`
	Performance      PerformanceMetrics     `json:"performance_metrics"`
}

const (
	AlertLowStock   = "low_stock"
	AlertOutOfStock = "out_of_stock"
)

type Alert struct {
	Type                string     `json:"type"`
	ItemID              string     `json:"item_id"`
	ItemName            string     `json:"item_name"`
	CurrentStock        int        `json:"current_stock"`
	MinStock            int        `json:"min_stock"`
	Urgency             string     `json:"urgency"`
	PredictedOutOfStock *time.Time `json:"predicted_out_of_stock"`
	RecommendedAction   string     `json:"recommended_action"`
}

type MonitorSummary struct {
	LowStockCount   int `json:"low_stock_count"`
	OutOfStockCount int `json:"out_of_stock_count"`
	UrgentAlerts    int `json:"urgent_alerts"`
}

type CriticalItemsReport struct {
	ResultMeta
	Alerts             []Alert          `json:"alerts"`
	RiskLevel          domain.RiskLevel `json:"risk_level"`
	TotalCriticalItems int              `json:"total_critical_items"`
	Summary            MonitorSummary   `json:"summary"`
}

type PredictionReport struct {
	ResultMeta
	ForecastPeriod     int                    `json:"forecast_period"`
	PredictionSummary  *domain.AnalysisResult `json:"prediction_summary"`
	SalesTrends        *domain.AnalysisResult `json:"sales_trends"`
	RecommendedActions *domain.AnalysisResult `json:"recommended_actions"`
	ConfidenceScore    float64                `json:"confidence_score"`
}

type SavingsAnalysis struct {
	TotalPotentialSavings float64            `json:"total_potential_savings"`
	ItemSavings           map[string]float64 `json:"item_savings"`
	SavingsPercentage     float64            `json:"savings_percentage"`
}

type ImplementationPlan struct {
	Phase1          string   `json:"phase_1"`
	Phase2          string   `json:"phase_2"`
	Phase3          string   `json:"phase_3"`
	KeyMetrics      []string `json:"key_metrics"`
	SuccessCriteria string   `json:"success_criteria"`
}

type OptimizationReport struct {
	ResultMeta
	OptimizationResults *domain.AnalysisResult `json:"optimization_results"`
	SavingsAnalysis     SavingsAnalysis        `json:"savings_analysis"`
	ImplementationPlan  ImplementationPlan     `json:"implementation_plan"`
	TotalItemsOptimized int                    `json:"total_items_optimized"`
}

type SalesTrendReport struct {
	ResultMeta
	PeriodDays int                    `json:"period_days"`
	DataPoints int                    `json:"data_points"`
	TotalSales float64                `json:"total_sales"`
	Revenue    float64                `json:"revenue"`
	Trend      *domain.AnalysisResult `json:"trend"`
}

type AIStatusReport struct {
	ResultMeta
	AI ai.Status `json:"ai"`
}
