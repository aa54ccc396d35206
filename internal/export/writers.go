package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/andresuchdata/stockinsight/internal/domain"
	"github.com/spf13/cast"
	"github.com/xuri/excelize/v2"
)

var contentTypes = map[string]string{
	"json": "application/json",
	"csv":  "text/csv",
	"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// detailColumns orders detail columns by the definition first, then any
// extra keys found in the records in alphabetical order.
func detailColumns(result *domain.ReportResult) []string {
	var columns []string
	seen := map[string]bool{}
	if def := result.Definition(); def != nil {
		for _, c := range def.EffectiveColumns() {
			if !seen[c] {
				seen[c] = true
				columns = append(columns, c)
			}
		}
	}

	var extra []string
	for _, rec := range result.Details() {
		for k := range rec {
			if !seen[k] {
				seen[k] = true
				extra = append(extra, k)
			}
		}
	}
	sort.Strings(extra)
	return append(columns, extra...)
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case time.Time:
		if t.IsZero() {
			return ""
		}
		return t.UTC().Format(time.RFC3339)
	case *time.Time:
		if t == nil {
			return ""
		}
		return t.UTC().Format(time.RFC3339)
	}
	if s, err := cast.ToStringE(v); err == nil {
		return s
	}
	return fmt.Sprint(v)
}

func writeJSON(result *domain.ReportResult, path string) error {
	raw, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report %s: %w", result.ID(), err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write json file %s: %w", path, err)
	}
	return nil
}

func writeCSV(result *domain.ReportResult, path string) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create csv file %s: %w", path, err)
	}
	defer out.Close()

	w := csv.NewWriter(out)
	columns := detailColumns(result)
	if err := w.Write(columns); err != nil {
		return fmt.Errorf("failed to write csv header to %s: %w", path, err)
	}

	row := make([]string, len(columns))
	for _, rec := range result.Details() {
		for i, c := range columns {
			row[i] = formatValue(rec[c])
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write csv row to %s: %w", path, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush csv file %s: %w", path, err)
	}
	return nil
}

const (
	sheetSummary  = "Summary"
	sheetDetails  = "Details"
	sheetInsights = "Insights"
)

// writeXLSX lays the result out on three sheets: summary key/value pairs,
// detail rows and insights followed by recommendations.
func writeXLSX(result *domain.ReportResult, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetSummary); err != nil {
		return fmt.Errorf("failed to name summary sheet: %w", err)
	}
	for _, name := range []string{sheetDetails, sheetInsights} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", name, err)
		}
	}

	summaryKeys := make([]string, 0, len(result.Summary()))
	for k := range result.Summary() {
		summaryKeys = append(summaryKeys, k)
	}
	sort.Strings(summaryKeys)

	rows := [][]any{{"Metric", "Value"}}
	for _, k := range summaryKeys {
		rows = append(rows, []any{k, formatValue(result.Summary()[k])})
	}
	if err := writeRows(f, sheetSummary, rows); err != nil {
		return err
	}

	columns := detailColumns(result)
	header := make([]any, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	rows = [][]any{header}
	for _, rec := range result.Details() {
		row := make([]any, len(columns))
		for i, c := range columns {
			row[i] = cellValue(rec[c])
		}
		rows = append(rows, row)
	}
	if err := writeRows(f, sheetDetails, rows); err != nil {
		return err
	}

	rows = [][]any{{"Kind", "Type", "Priority", "Message"}}
	for _, in := range result.Insights() {
		rows = append(rows, []any{"insight", in.Type, in.Priority, in.Message})
	}
	for _, r := range result.Recommendations() {
		rows = append(rows, []any{"recommendation", r.Type, r.Priority, r.Action})
	}
	if err := writeRows(f, sheetInsights, rows); err != nil {
		return err
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save xlsx file %s: %w", path, err)
	}
	return nil
}

// cellValue keeps numbers numeric in the sheet.
func cellValue(v any) any {
	switch v.(type) {
	case int, int32, int64, float32, float64, bool:
		return v
	default:
		return formatValue(v)
	}
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		row := row
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d of sheet %s: %w", i+1, sheet, err)
		}
	}
	return nil
}
