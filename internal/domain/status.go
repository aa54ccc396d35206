package domain

import "strings"

type ReportStatus string

const (
	ReportStatusSuccess ReportStatus = "success"
	ReportStatusError   ReportStatus = "error"
)

type ExportStatus string

const (
	ExportPending    ExportStatus = "pending"
	ExportProcessing ExportStatus = "processing"
	ExportCompleted  ExportStatus = "completed"
	ExportFailed     ExportStatus = "failed"
)

// Urgency of a critical-item alert.
const (
	UrgencyCritical = "critical"
	UrgencyHigh     = "high"
	UrgencyMedium   = "medium"
	UrgencyLow      = "low"
)

var exportFormats = map[string]string{
	"json":  "json",
	"csv":   "csv",
	"xlsx":  "xlsx",
	"excel": "xlsx",
}

// ParseExportFormat normalizes a user supplied export format (case-insensitive).
func ParseExportFormat(raw string) (string, bool) {
	format, ok := exportFormats[strings.ToLower(strings.TrimSpace(raw))]

	return format, ok
}

// UrgencyFor grades how close an item is to running out relative to its
// minimum stock level.
func UrgencyFor(item InventoryItem) string {
	minStock := item.MinStockLevel
	if minStock < 1 {
		minStock = 1
	}
	ratio := float64(item.Quantity) / float64(minStock)

	switch {
	case ratio <= 0.1:
		return UrgencyCritical
	case ratio <= 0.3:
		return UrgencyHigh
	case ratio <= 0.6:
		return UrgencyMedium
	default:
		return UrgencyLow
	}
}
