package reporting

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/andresuchdata/stockinsight/internal/ai"
	"github.com/andresuchdata/stockinsight/internal/domain"
)

// fakeRepo applies the quantity, category and search predicates of the
// filter in memory.
type fakeRepo struct {
	items      []domain.InventoryItem
	err        error
	listCalls  atomic.Int32
	lastFilter domain.InventoryFilter
	mu         sync.Mutex
	// panics makes every read fail with a runtime panic
	panics bool
}

func (f *fakeRepo) maybePanic() {
	if f.panics {
		var counts map[string]int
		counts["reads"]++
	}
}

func (f *fakeRepo) List(_ context.Context, filter domain.InventoryFilter, opts domain.ListOptions) ([]domain.InventoryItem, error) {
	f.listCalls.Add(1)
	f.maybePanic()
	f.mu.Lock()
	f.lastFilter = filter
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}

	out := []domain.InventoryItem{}
	for _, item := range f.items {
		if filter.QuantityBelow != nil && item.Quantity >= *filter.QuantityBelow {
			continue
		}
		if filter.QuantityEquals != nil && item.Quantity != *filter.QuantityEquals {
			continue
		}
		if filter.QuantityMin != nil && item.Quantity < *filter.QuantityMin {
			continue
		}
		if len(filter.CategoryIDs) > 0 && !contains(filter.CategoryIDs, item.CategoryID) {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(item.Name), strings.ToLower(filter.Search)) {
			continue
		}
		out = append(out, item)
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (f *fakeRepo) filter() domain.InventoryFilter {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastFilter
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func (f *fakeRepo) LowStock(_ context.Context, threshold int) ([]domain.InventoryItem, error) {
	f.maybePanic()
	if f.err != nil {
		return nil, f.err
	}
	out := []domain.InventoryItem{}
	for _, item := range f.items {
		if item.Quantity > 0 && item.Quantity <= threshold {
			out = append(out, item)
		}
	}
	return out, nil
}

func (f *fakeRepo) OutOfStock(context.Context) ([]domain.InventoryItem, error) {
	f.maybePanic()
	if f.err != nil {
		return nil, f.err
	}
	out := []domain.InventoryItem{}
	for _, item := range f.items {
		if item.IsOutOfStock() {
			out = append(out, item)
		}
	}
	return out, nil
}

func (f *fakeRepo) DailySales(context.Context, int) ([]domain.SalesPoint, error) {
	return nil, f.err
}

func (f *fakeRepo) Suppliers(context.Context) ([]domain.SupplierProfile, error) {
	return nil, f.err
}

type fakeAI struct {
	available  bool
	findings   []string
	genErr     error
	prediction *domain.AnalysisResult
	status     ai.Status
	genCalls   atomic.Int32
}

func (f *fakeAI) IsAvailable(context.Context) bool { return f.available }

func (f *fakeAI) Generate(_ context.Context, req domain.ReportRequest) (*domain.ReportPayload, error) {
	f.genCalls.Add(1)
	if f.genErr != nil {
		return nil, f.genErr
	}
	return (&domain.ReportPayload{ReportType: req.ReportType, KeyFindings: f.findings}).Normalize(), nil
}

func (f *fakeAI) AnalyzeOrFallback(_ context.Context, req domain.AnalysisRequest) (*domain.AnalysisResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if f.prediction != nil {
		return f.prediction, nil
	}
	return (&domain.AnalysisResult{
		AnalysisType: req.AnalysisType,
		Analysis:     "rule based forecast",
		RiskLevel:    domain.RiskMedium,
		Confidence:   0.5,
		GeneratedBy:  "rules",
		IsFallback:   true,
	}).Normalize(), nil
}

func (f *fakeAI) Status(context.Context) ai.Status { return f.status }

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func inventoryFixture() []domain.InventoryItem {
	updated := time.Date(2026, 5, 30, 0, 0, 0, 0, time.UTC)
	return []domain.InventoryItem{
		{ID: "a", Name: "Bolt", Quantity: 2, Price: 1.5, CategoryID: "hardware", MinStockLevel: 20, UpdatedAt: updated},
		{ID: "b", Name: "Nut", Quantity: 3, Price: 0.5, CategoryID: "hardware", MinStockLevel: 20, UpdatedAt: updated},
		{ID: "c", Name: "Washer", Quantity: 4, Price: 0.2, CategoryID: "hardware", MinStockLevel: 20, UpdatedAt: updated},
		{ID: "d", Name: "Drill", Quantity: 25, Price: 80, CategoryID: "tools", MinStockLevel: 5, UpdatedAt: updated},
		{ID: "e", Name: "Saw", Quantity: 30, Price: 35, CategoryID: "tools", MinStockLevel: 5, UpdatedAt: updated},
	}
}
