package reporting

import (
	"fmt"
	"math"

	"github.com/andresuchdata/stockinsight/internal/domain"
	"github.com/spf13/cast"
)

const (
	TrendUp     = "up"
	TrendDown   = "down"
	TrendStable = "stable"

	// Relative changes within this percentage are reported as stable.
	stableBandPercent = 5.0
)

// MetricTrend compares one numeric summary value across two results.
type MetricTrend struct {
	Metric        string  `json:"metric"`
	Previous      float64 `json:"previous"`
	Current       float64 `json:"current"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"changePercent"`
	Direction     string  `json:"direction"`
}

// TrendAnalysis is the comparison of a series of results of one report type,
// ordered oldest first.
type TrendAnalysis struct {
	ReportType   domain.ReportType `json:"reportType"`
	Reports      int               `json:"reports"`
	Metrics      []MetricTrend     `json:"metrics"`
	Insights     []domain.Insight  `json:"insights"`
	Insufficient bool              `json:"insufficientData"`
}

var trendMetrics = []string{
	"healthScore", "totalValue", "totalQuantity", "lowStockCount", "outOfStockCount", "recordCount",
}

// Metrics where a rise is bad news.
var inverseMetrics = map[string]bool{
	"lowStockCount":   true,
	"outOfStockCount": true,
}

func compareMetric(name string, prev, curr float64) MetricTrend {
	t := MetricTrend{
		Metric:   name,
		Previous: prev,
		Current:  curr,
		Change:   domain.Round(curr-prev, 2),
	}
	switch {
	case prev != 0:
		t.ChangePercent = domain.Round((curr-prev)/math.Abs(prev)*100, 2)
	case curr != 0:
		t.ChangePercent = 100
	}

	switch {
	case math.Abs(t.ChangePercent) <= stableBandPercent:
		t.Direction = TrendStable
	case t.Change > 0:
		t.Direction = TrendUp
	default:
		t.Direction = TrendDown
	}
	return t
}

func summaryNumber(res *domain.ReportResult, key string) (float64, bool) {
	v, ok := res.Summary()[key]
	if !ok || v == nil {
		return 0, false
	}
	f, err := cast.ToFloat64E(v)
	return f, err == nil
}

// analyzeTrends compares the first and last successful result. Fewer than two
// successful results yields an empty analysis flagged as insufficient.
func analyzeTrends(reportType domain.ReportType, results []*domain.ReportResult) TrendAnalysis {
	ok := make([]*domain.ReportResult, 0, len(results))
	for _, r := range results {
		if r != nil && r.IsSuccess() {
			ok = append(ok, r)
		}
	}

	out := TrendAnalysis{
		ReportType: reportType,
		Reports:    len(ok),
		Metrics:    []MetricTrend{},
		Insights:   []domain.Insight{},
	}
	if len(ok) < 2 {
		out.Insufficient = true
		out.Insights = append(out.Insights, domain.Insight{
			Type:     "info",
			Message:  "At least two successful reports are required for trend analysis",
			Priority: "low",
		})
		return out
	}

	first, last := ok[0], ok[len(ok)-1]
	for _, name := range trendMetrics {
		prev, okPrev := summaryNumber(first, name)
		curr, okCurr := summaryNumber(last, name)
		if !okPrev || !okCurr {
			continue
		}
		t := compareMetric(name, prev, curr)
		out.Metrics = append(out.Metrics, t)
		if t.Direction != TrendStable {
			out.Insights = append(out.Insights, trendInsight(t))
		}
	}
	return out
}

func trendInsight(t MetricTrend) domain.Insight {
	worse := (t.Direction == TrendUp) == inverseMetrics[t.Metric]
	in := domain.Insight{
		Type:     "positive",
		Message:  fmt.Sprintf("%s went %s by %.1f%%", t.Metric, t.Direction, math.Abs(t.ChangePercent)),
		Priority: "low",
	}
	if worse {
		in.Type = "warning"
		in.Priority = "medium"
	}
	return in
}

// comparativeInsights describes how current differs from previous on health
// and stock alerts.
func comparativeInsights(current, previous *domain.ReportResult) []domain.Insight {
	if previous == nil || !previous.IsSuccess() {
		return []domain.Insight{{
			Type:     "info",
			Message:  "No previous report available for comparison",
			Priority: "low",
		}}
	}

	var out []domain.Insight
	if prev, ok := summaryNumber(previous, "healthScore"); ok {
		if curr, ok := summaryNumber(current, "healthScore"); ok {
			delta := domain.Round(curr-prev, 1)
			switch {
			case delta > 0:
				out = append(out, domain.Insight{Type: "positive", Message: fmt.Sprintf("Health score improved by %.1f points", delta), Priority: "low"})
			case delta < 0:
				out = append(out, domain.Insight{Type: "warning", Message: fmt.Sprintf("Health score dropped by %.1f points", -delta), Priority: "high"})
			default:
				out = append(out, domain.Insight{Type: "info", Message: "Health score unchanged since previous report", Priority: "low"})
			}
		}
	}

	for _, m := range []struct{ key, label string }{
		{"lowStockCount", "Low stock items"},
		{"outOfStockCount", "Out of stock items"},
	} {
		prev, okPrev := summaryNumber(previous, m.key)
		curr, okCurr := summaryNumber(current, m.key)
		if !okPrev || !okCurr || prev == curr {
			continue
		}
		if curr > prev {
			out = append(out, domain.Insight{Type: "warning", Message: fmt.Sprintf("%s increased from %d to %d", m.label, int(prev), int(curr)), Priority: "medium"})
		} else {
			out = append(out, domain.Insight{Type: "positive", Message: fmt.Sprintf("%s decreased from %d to %d", m.label, int(prev), int(curr)), Priority: "low"})
		}
	}
	return out
}
