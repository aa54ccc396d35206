package postgres

import (
	"fmt"
	"strings"

	"github.com/andresuchdata/stockinsight/internal/domain"
)

// sortColumns whitelists sortable fields. Keys accept API and column names.
var sortColumns = map[string]string{
	"id":            "id",
	"name":          "name",
	"quantity":      "quantity",
	"price":         "price",
	"minStockLevel": "min_stock_level",
	"min_stock":     "min_stock_level",
	"createdAt":     "created_at",
	"created_at":    "created_at",
	"updatedAt":     "updated_at",
	"updated_at":    "updated_at",
}

// buildInventoryFilterClause turns filter into " AND ..." predicates with
// positional args starting at $startIndex.
func buildInventoryFilterClause(filter domain.InventoryFilter, alias string, startIndex int) (string, []any, int) {
	var (
		clauses []string
		args    []any
	)
	idx := startIndex
	a := normalizeAlias(alias)

	if len(filter.CategoryIDs) > 0 {
		placeholders := make([]string, len(filter.CategoryIDs))
		for i, id := range filter.CategoryIDs {
			placeholders[i] = fmt.Sprintf("$%d", idx)
			args = append(args, id)
			idx++
		}
		clauses = append(clauses, fmt.Sprintf("%scategory_id IN (%s)", a, strings.Join(placeholders, ",")))
	}

	if filter.SupplierID != "" {
		clauses = append(clauses, fmt.Sprintf("%ssupplier_id = $%d", a, idx))
		args = append(args, filter.SupplierID)
		idx++
	}

	if filter.QuantityMin != nil {
		clauses = append(clauses, fmt.Sprintf("%squantity >= $%d", a, idx))
		args = append(args, *filter.QuantityMin)
		idx++
	}
	if filter.QuantityBelow != nil {
		clauses = append(clauses, fmt.Sprintf("%squantity < $%d", a, idx))
		args = append(args, *filter.QuantityBelow)
		idx++
	}
	if filter.QuantityEquals != nil {
		clauses = append(clauses, fmt.Sprintf("%squantity = $%d", a, idx))
		args = append(args, *filter.QuantityEquals)
		idx++
	}

	if filter.UpdatedFrom != nil {
		clauses = append(clauses, fmt.Sprintf("%supdated_at >= $%d", a, idx))
		args = append(args, *filter.UpdatedFrom)
		idx++
	}
	if filter.UpdatedTo != nil {
		clauses = append(clauses, fmt.Sprintf("%supdated_at <= $%d", a, idx))
		args = append(args, *filter.UpdatedTo)
		idx++
	}

	if s := strings.TrimSpace(filter.Search); s != "" {
		clauses = append(clauses, fmt.Sprintf("(%[1]sname ILIKE $%[2]d OR %[1]sdescription ILIKE $%[2]d)", a, idx))
		args = append(args, "%"+s+"%")
		idx++
	}

	if len(clauses) == 0 {
		return "", nil, idx
	}
	return " AND " + strings.Join(clauses, " AND "), args, idx
}

// buildOrderClause ignores fields outside sortColumns.
func buildOrderClause(sort []domain.SortField, alias string) string {
	a := normalizeAlias(alias)
	var parts []string
	for _, f := range sort {
		col, ok := sortColumns[f.Field]
		if !ok {
			continue
		}
		dir := "ASC"
		if f.Desc {
			dir = "DESC"
		}
		parts = append(parts, fmt.Sprintf("%s%s %s", a, col, dir))
	}
	if len(parts) == 0 {
		return " ORDER BY " + a + "name ASC"
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}

func normalizeAlias(alias string) string {
	if alias == "" {
		return ""
	}
	if !strings.HasSuffix(alias, ".") {
		return alias + "."
	}
	return alias
}
