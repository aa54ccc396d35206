package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/andresuchdata/stockinsight/internal/domain"
)

const analysisJSONShape = `{
  "analysis": "string",
  "riskLevel": "low|medium|high",
  "confidence": 0.0-1.0,
  "recommendations": ["string"]
}`

// promptItemLimit bounds how many records are serialized into one prompt.
const promptItemLimit = 200

func analysisPrompt(req domain.AnalysisRequest) (string, error) {
	var (
		subject string
		payload any
	)
	switch name, _ := req.Subject(); name {
	case "sales":
		subject, payload = "SALES DATA", req.Sales
	case "stock":
		subject, payload = "STOCK PROFILES", capSlice(req.Stock)
	case "suppliers":
		subject, payload = "SUPPLIERS", req.Suppliers
	default:
		subject, payload = "INVENTORY ITEMS", capSlice(req.Items)
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(analysisInstruction(req.AnalysisType, req.PeriodDays))
	fmt.Fprintf(&b, "\n\n%s:\n%s\n\n", subject, data)
	b.WriteString("Respond with a single JSON object in this format:\n")
	b.WriteString(analysisJSONShape)
	return b.String(), nil
}

func analysisInstruction(t domain.AnalysisType, periodDays int) string {
	switch t {
	case domain.AnalysisSalesTrends:
		return fmt.Sprintf("You are an inventory analyst. Analyze the sales series over the last %d days. Identify the trend direction, growth rate and any seasonality.", periodOrDefault(periodDays))
	case domain.AnalysisInventoryTurnover:
		return "You are an inventory analyst. Estimate inventory turnover for each item and flag slow moving stock."
	case domain.AnalysisStockOptimization:
		return "You are an inventory analyst. Propose optimal stock levels and reorder points for each profile."
	case domain.AnalysisPurchaseRecommendations:
		return "You are a purchasing analyst. Rank the suppliers and recommend where to place purchase orders."
	case domain.AnalysisSafetyStock:
		return "You are an inventory analyst. Calculate safety stock levels from the demand variability of the sales series."
	case domain.AnalysisStockPrediction:
		return fmt.Sprintf("You are an inventory analyst. Predict stock needs for the next %d days and when items will run out.", periodOrDefault(periodDays))
	case domain.AnalysisAnomalyDetection:
		return "Detect anomalies in the inventory data such as negative quantities, negative prices or implausible stock."
	case domain.AnalysisRiskAssessment:
		return "Assess stock-out risk across the inventory. Name the items that need immediate action."
	default:
		return "Analyze the following inventory data and give actionable insight."
	}
}

func reportPrompt(req domain.ReportRequest) (string, error) {
	items, err := json.MarshalIndent(capSlice(req.Items), "", "  ")
	if err != nil {
		return "", err
	}
	summary, err := json.Marshal(req.Summary)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	switch req.ReportType {
	case "weekly_summary":
		b.WriteString("Write a weekly inventory summary for store management.")
	case "executive":
		b.WriteString("Write a short executive inventory report. Focus on risk and money.")
	case "detailed":
		b.WriteString("Write a detailed inventory report with one section per problem area.")
	default:
		b.WriteString("Write an inventory summary report.")
	}
	fmt.Fprintf(&b, "\n\nSUMMARY:\n%s\n\nINVENTORY ITEMS:\n%s\n\n", summary, items)
	b.WriteString("Respond with a single JSON object in this format:\n")
	fmt.Fprintf(&b, `{
  "reportType": %q,
  "title": "string",
  "summary": "string",
  "keyFindings": ["string"],
  "recommendations": ["string"],
  "confidence": 0.0-1.0
}`, req.ReportType)
	return b.String(), nil
}

func periodOrDefault(days int) int {
	if days <= 0 {
		return 30
	}
	return days
}

func capSlice[T any](s []T) []T {
	if len(s) > promptItemLimit {
		return s[:promptItemLimit]
	}
	return s
}
