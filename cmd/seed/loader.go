package main

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/andresuchdata/stockinsight/internal/domain"
	"github.com/andresuchdata/stockinsight/internal/repository"
	"github.com/andresuchdata/stockinsight/pkg/logger"
	"github.com/spf13/cast"
	"golang.org/x/sync/errgroup"
)

// ingester is the write side the loaders need.
type ingester interface {
	UpsertSupplier(ctx context.Context, supplier *domain.SupplierProfile) error
	UpsertItem(ctx context.Context, item *domain.InventoryItem) error
	InsertMovement(ctx context.Context, m *repository.Movement) error
}

// batch runs fn against an ingester whose writes are kept only when fn
// succeeds.
type batch func(ctx context.Context, fn func(ingester) error) error

// row gives access to a CSV record by header name.
type row struct {
	index  map[string]int
	record []string
	line   int
}

func (r row) get(col string) string {
	idx, ok := r.index[col]
	if !ok || idx >= len(r.record) {
		return ""
	}
	return strings.TrimSpace(r.record[idx])
}

func (r row) int(col string, def int) (int, error) {
	raw := r.get(col)
	if raw == "" {
		return def, nil
	}
	v, err := cast.ToIntE(raw)
	if err != nil {
		return 0, fmt.Errorf("line %d: column %s: %w", r.line, col, err)
	}
	return v, nil
}

func (r row) float(col string, def float64) (float64, error) {
	raw := r.get(col)
	if raw == "" {
		return def, nil
	}
	v, err := cast.ToFloat64E(raw)
	if err != nil {
		return 0, fmt.Errorf("line %d: column %s: %w", r.line, col, err)
	}
	return v, nil
}

// readCSV calls fn for every record of path. Header names are matched case
// insensitively and required columns must be present.
func readCSV(path string, required []string, fn func(row) error) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open file %s: %w", path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("failed to read CSV header of %s: %w", path, err)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, col := range required {
		if _, ok := index[col]; !ok {
			return fmt.Errorf("%s: missing column %q", path, col)
		}
	}

	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		line++
		if err != nil {
			return fmt.Errorf("%s: failed to read record: %w", path, err)
		}
		if err := fn(row{index: index, record: record, line: line}); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
}

func parseSupplier(r row) (*domain.SupplierProfile, error) {
	s := &domain.SupplierProfile{ID: r.get("id"), Name: r.get("name")}
	if s.ID == "" || s.Name == "" {
		return nil, fmt.Errorf("line %d: supplier id and name are required", r.line)
	}
	var err error
	if s.LeadTimeDays, err = r.int("lead_time_days", 7); err != nil {
		return nil, err
	}
	if s.ReliabilityScore, err = r.float("reliability_score", 0.5); err != nil {
		return nil, err
	}
	if s.CostScore, err = r.float("cost_score", 0.5); err != nil {
		return nil, err
	}
	return s, nil
}

func parseItem(r row) (*domain.InventoryItem, error) {
	item := &domain.InventoryItem{
		ID:          r.get("id"),
		Name:        r.get("name"),
		Description: r.get("description"),
		CategoryID:  r.get("category_id"),
		SupplierID:  r.get("supplier_id"),
	}
	if item.ID == "" || item.Name == "" {
		return nil, fmt.Errorf("line %d: item id and name are required", r.line)
	}
	var err error
	if item.Quantity, err = r.int("quantity", 0); err != nil {
		return nil, err
	}
	if item.Quantity < 0 {
		return nil, fmt.Errorf("line %d: quantity cannot be negative", r.line)
	}
	if item.Price, err = r.float("price", 0); err != nil {
		return nil, err
	}
	if item.MinStockLevel, err = r.int("min_stock_level", 0); err != nil {
		return nil, err
	}
	return item, nil
}

var movementTypes = map[string]bool{"in": true, "out": true, "adjust": true}

func parseMovement(r row) (*repository.Movement, error) {
	m := &repository.Movement{ItemID: r.get("item_id"), Type: strings.ToLower(r.get("movement_type"))}
	if m.ItemID == "" {
		return nil, fmt.Errorf("line %d: item_id is required", r.line)
	}
	if !movementTypes[m.Type] {
		return nil, fmt.Errorf("line %d: unknown movement type %q", r.line, m.Type)
	}
	var err error
	if m.Quantity, err = r.int("quantity", 0); err != nil {
		return nil, err
	}
	if m.UnitPrice, err = r.float("unit_price", 0); err != nil {
		return nil, err
	}
	if raw := r.get("moved_at"); raw != "" {
		m.MovedAt, err = parseTime(raw)
		if err != nil {
			return nil, fmt.Errorf("line %d: moved_at: %w", r.line, err)
		}
	}
	return m, nil
}

func parseTime(raw string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", raw)
}

// seedSuppliers upserts suppliers from path, or dataDir/suppliers.csv when
// path is empty. The file is loaded as one batch.
func seedSuppliers(ctx context.Context, run batch, dataDir, path string) (int, error) {
	if path == "" {
		path = filepath.Join(dataDir, "suppliers.csv")
	}
	count := 0
	err := run(ctx, func(repo ingester) error {
		count = 0
		return readCSV(path, []string{"id", "name"}, func(r row) error {
			s, err := parseSupplier(r)
			if err != nil {
				return err
			}
			if err := repo.UpsertSupplier(ctx, s); err != nil {
				return err
			}
			count++
			return nil
		})
	})
	if err != nil {
		return 0, err
	}
	logger.Log.Info().Str("file", path).Int("rows", count).Msg("suppliers seeded")
	return count, nil
}

func seedItems(ctx context.Context, run batch, dataDir, path string) (int, error) {
	if path == "" {
		path = filepath.Join(dataDir, "items.csv")
	}
	count := 0
	err := run(ctx, func(repo ingester) error {
		count = 0
		return readCSV(path, []string{"id", "name", "quantity"}, func(r row) error {
			item, err := parseItem(r)
			if err != nil {
				return err
			}
			if err := repo.UpsertItem(ctx, item); err != nil {
				return err
			}
			count++
			return nil
		})
	})
	if err != nil {
		return 0, err
	}
	logger.Log.Info().Str("file", path).Int("rows", count).Msg("items seeded")
	return count, nil
}

// seedMovements loads the given files, or every CSV under dataDir/movements,
// with a bounded number of concurrent files. Each file is its own batch and
// the first failure cancels the remaining files.
func seedMovements(ctx context.Context, run batch, dataDir string, files []string, workers int) (int, error) {
	if len(files) == 0 {
		var err error
		files, err = collectCSVFiles(filepath.Join(dataDir, "movements"))
		if err != nil {
			return 0, fmt.Errorf("error walking movements directory: %w", err)
		}
	}
	if len(files) == 0 {
		logger.Log.Warn().Str("dir", dataDir).Msg("no movement CSV files found")
		return 0, nil
	}
	if workers < 1 {
		workers = 1
	}

	var total int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, path := range files {
		path := path
		g.Go(func() error {
			var n int64
			err := run(gctx, func(repo ingester) error {
				n = 0
				return readCSV(path, []string{"item_id", "movement_type", "quantity"}, func(r row) error {
					if err := gctx.Err(); err != nil {
						return err
					}
					m, err := parseMovement(r)
					if err != nil {
						return err
					}
					if err := repo.InsertMovement(gctx, m); err != nil {
						return err
					}
					n++
					return nil
				})
			})
			if err != nil {
				return err
			}
			atomic.AddInt64(&total, n)
			logger.Log.Info().Str("file", path).Int64("rows", n).Msg("movements seeded")
			return nil
		})
	}
	err := g.Wait()
	return int(atomic.LoadInt64(&total)), err
}

func collectCSVFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == root {
				return fs.SkipDir
			}
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".csv") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}
