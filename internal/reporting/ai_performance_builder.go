package reporting

import (
	"context"
	"fmt"
	"sort"

	"github.com/andresuchdata/stockinsight/internal/domain"
)

// AIPerformanceBuilder reports strategy availability and the dispatcher's
// per-strategy call statistics.
type AIPerformanceBuilder struct {
	ai AI
}

func NewAIPerformanceBuilder(aiSvc AI) *AIPerformanceBuilder {
	return &AIPerformanceBuilder{ai: aiSvc}
}

func (b *AIPerformanceBuilder) Type() domain.ReportType { return domain.ReportAIPerformance }

func (b *AIPerformanceBuilder) RequiresDateRange() bool { return false }

func (b *AIPerformanceBuilder) Build(ctx context.Context, def *domain.ReportDefinition) (*domain.ReportResult, error) {
	if b.ai == nil {
		return nil, domain.ErrAIUnavailable
	}
	status := b.ai.Status(ctx)

	names := make([]string, 0, len(status.Strategies))
	for name := range status.Strategies {
		names = append(names, name)
	}
	sort.Strings(names)

	var (
		calls, failures, fallbacks int64
		latencySum                 float64
		latencyN                   int
	)
	details := make([]domain.Record, 0, len(names))
	limit := def.MaxRecords(len(names))
	for _, name := range names {
		st := status.Stats[name]
		calls += st.Calls
		failures += st.Failures
		fallbacks += st.Fallbacks
		if st.Calls > 0 {
			latencySum += st.AvgLatencyMs
			latencyN++
		}
		if len(details) >= limit {
			continue
		}
		details = append(details, domain.Record{
			"strategy":     name,
			"available":    status.Strategies[name],
			"active":       name == status.Active,
			"calls":        st.Calls,
			"failures":     st.Failures,
			"unavailable":  st.Unavailable,
			"fallbacks":    st.Fallbacks,
			"successRate":  domain.Round(st.SuccessRate(), 2),
			"avgLatencyMs": domain.Round(st.AvgLatencyMs, 2),
			"lastError":    st.LastError,
			"lastCalledAt": st.LastCalledAt,
		})
	}

	successRate := 0.0
	if calls > 0 {
		successRate = domain.Round(float64(calls-failures)/float64(calls)*100, 2)
	}
	avgLatency := 0.0
	if latencyN > 0 {
		avgLatency = domain.Round(latencySum/float64(latencyN), 2)
	}

	summary := map[string]any{
		"recordCount":    len(details),
		"enabled":        status.Enabled,
		"available":      status.Available,
		"activeStrategy": status.Active,
		"totalCalls":     calls,
		"totalFailures":  failures,
		"totalFallbacks": fallbacks,
		"successRate":    successRate,
		"avgLatencyMs":   avgLatency,
	}

	var insights []domain.Insight
	var recs []domain.Recommendation
	switch {
	case !status.Enabled:
		insights = append(insights, domain.Insight{Type: "info", Message: "AI analysis is disabled", Priority: "low"})
	case !status.Available:
		insights = append(insights, domain.Insight{Type: "warning", Message: fmt.Sprintf("Active strategy %q is unavailable; rule-based fallback in use", status.Active), Priority: "high"})
		recs = append(recs, domain.Recommendation{
			Type:     "infrastructure",
			Priority: "high",
			Action:   "Check connectivity of the active AI strategy or switch strategy",
			Impact:   "Restore AI-enhanced analysis",
		})
	}
	if calls > 0 && successRate < 90 {
		insights = append(insights, domain.Insight{Type: "warning", Message: fmt.Sprintf("AI success rate is %.1f%%", successRate), Priority: "medium"})
	}
	if fallbacks > 0 {
		insights = append(insights, domain.Insight{Type: "info", Message: fmt.Sprintf("%d analyses were served by the rule-based fallback", fallbacks), Priority: "low"})
	}

	return domain.NewSuccessResult(def, summary, details, insights, recs), nil
}

func (b *AIPerformanceBuilder) BuildRealTime(ctx context.Context, def *domain.ReportDefinition) (*domain.ReportResult, error) {
	return b.Build(ctx, def)
}

func (b *AIPerformanceBuilder) BuildPredictive(context.Context, *domain.ReportDefinition, int) (*domain.ReportResult, error) {
	return nil, fmt.Errorf("%w: predictive %s reports", domain.ErrUnsupportedReportType, domain.ReportAIPerformance)
}

func (b *AIPerformanceBuilder) BuildComparative(ctx context.Context, def *domain.ReportDefinition, previous *domain.ReportResult) (*domain.ReportResult, error) {
	res, err := b.Build(ctx, def)
	if err != nil {
		return nil, err
	}
	if previous != nil && previous.IsSuccess() {
		prev, _ := summaryNumber(previous, "successRate")
		curr, _ := summaryNumber(res, "successRate")
		t := compareMetric("successRate", prev, curr)
		res.AppendInsights(domain.Insight{
			Type:     "comparison",
			Message:  fmt.Sprintf("AI success rate is %s (%.1f%% to %.1f%%)", t.Direction, prev, curr),
			Priority: "low",
		})
	}
	return res, nil
}
