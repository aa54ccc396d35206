package service

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/andresuchdata/stockinsight/internal/domain"
)

type fakeRepo struct {
	items     []domain.InventoryItem
	sales     []domain.SalesPoint
	suppliers []domain.SupplierProfile
	err       error
	listCalls atomic.Int32
}

func (f *fakeRepo) List(_ context.Context, _ domain.InventoryFilter, opts domain.ListOptions) ([]domain.InventoryItem, error) {
	f.listCalls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	items := f.items
	if opts.Limit > 0 && len(items) > opts.Limit {
		items = items[:opts.Limit]
	}
	return items, nil
}

func (f *fakeRepo) LowStock(_ context.Context, _ int) ([]domain.InventoryItem, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := []domain.InventoryItem{}
	for _, item := range f.items {
		if item.IsLowStock() {
			out = append(out, item)
		}
	}
	return out, nil
}

func (f *fakeRepo) OutOfStock(_ context.Context) ([]domain.InventoryItem, error) {
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

func (f *fakeRepo) DailySales(_ context.Context, _ int) ([]domain.SalesPoint, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.sales, nil
}

func (f *fakeRepo) Suppliers(_ context.Context) ([]domain.SupplierProfile, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.suppliers, nil
}

// memoryCache round-trips values through JSON like the redis cache does.
type memoryCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: map[string][]byte{}}
}

func (m *memoryCache) Get(_ context.Context, key string, dest any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (m *memoryCache) Set(_ context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.data[key] = raw
	m.mu.Unlock()
	return nil
}

func (m *memoryCache) InvalidateAll(context.Context) error {
	m.mu.Lock()
	m.data = map[string][]byte{}
	m.mu.Unlock()
	return nil
}

func sampleItems() []domain.InventoryItem {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	return []domain.InventoryItem{
		{ID: "1", Name: "Hammer", Quantity: 2, Price: 12, CategoryID: "tools", SupplierID: "s1", MinStockLevel: 20, UpdatedAt: now},
		{ID: "2", Name: "Wrench", Quantity: 0, Price: 8, CategoryID: "tools", SupplierID: "s1", MinStockLevel: 10, UpdatedAt: now},
		{ID: "3", Name: "Shovel", Quantity: 40, Price: 25, CategoryID: "garden", SupplierID: "s2", MinStockLevel: 10, UpdatedAt: now},
		{ID: "4", Name: "Rake", Quantity: 15, Price: 18, CategoryID: "garden", SupplierID: "s2", MinStockLevel: 5, UpdatedAt: now},
		{ID: "5", Name: "Gloves", Quantity: 1, Price: 4, CategoryID: "safety", MinStockLevel: 30, UpdatedAt: now},
	}
}

func sampleSales(days int) []domain.SalesPoint {
	start := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	out := make([]domain.SalesPoint, days)
	for i := range out {
		q := float64(10 + i)
		out[i] = domain.SalesPoint{Date: start.AddDate(0, 0, i), Quantity: q, Revenue: q * 5}
	}
	return out
}
