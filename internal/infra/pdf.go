package infra

// pdf.go — inventory report generation using go-pdf/fpdf.
// Renders an A4 table of every toolkit and its variants: stock count,
// threshold, derived status, and acquisition value where a unit cost is set.
// The output file is saved to storagePath/inventory_{timestamp}.pdf.

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"fieldops/internal/model"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"
)

// GenerateInventoryReport writes the stock report PDF and returns its path.
// storagePath is created if needed.
func GenerateInventoryReport(toolkits []model.Toolkit, storagePath string) (string, error) {
	if err := os.MkdirAll(storagePath, 0755); err != nil {
		return "", fmt.Errorf("pdf: create storage dir: %w", err)
	}

	now := time.Now()
	filePath := filepath.Join(storagePath, fmt.Sprintf("inventory_%s.pdf", now.Format("20060102_150405")))

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(12, 14, 12)
	pdf.AddPage()

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 24

	// ── Header ───────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(contentW, 8, "Toolkit Inventory Report", "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(contentW, 5, now.Format("02/01/2006 15:04"), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	colName := contentW * 0.26
	colVariant := contentW * 0.24
	colStock := contentW * 0.12
	colMin := contentW * 0.12
	colStatus := contentW * 0.12
	colValue := contentW * 0.14

	grandTotal := 0
	grandValue := decimal.Zero

	for _, t := range toolkits {
		// Toolkit heading line
		pdf.SetFont("Helvetica", "B", 10)
		heading := fmt.Sprintf("%s  (%s) — total %d, %s", t.Name, t.Type, t.TotalStock, t.OverallStatus)
		pdf.CellFormat(contentW, 6, heading, "", 1, "L", false, 0, "")

		pdf.SetFont("Helvetica", "B", 8)
		pdf.CellFormat(colName, 5, "", "B", 0, "L", false, 0, "")
		pdf.CellFormat(colVariant, 5, "Size / Color", "B", 0, "L", false, 0, "")
		pdf.CellFormat(colStock, 5, "Stock", "B", 0, "C", false, 0, "")
		pdf.CellFormat(colMin, 5, "Min", "B", 0, "C", false, 0, "")
		pdf.CellFormat(colStatus, 5, "Status", "B", 0, "C", false, 0, "")
		pdf.CellFormat(colValue, 5, "Value", "B", 1, "R", false, 0, "")

		pdf.SetFont("Helvetica", "", 8)
		for _, v := range t.Variants {
			label := variantLabel(v)
			value := ""
			if v.UnitCost != nil {
				lineValue := v.UnitCost.Mul(decimal.NewFromInt(int64(v.StockCount)))
				grandValue = grandValue.Add(lineValue)
				value = "$" + lineValue.StringFixed(2)
			}
			pdf.CellFormat(colName, 5, "", "", 0, "L", false, 0, "")
			pdf.CellFormat(colVariant, 5, label, "", 0, "L", false, 0, "")
			pdf.CellFormat(colStock, 5, fmt.Sprintf("%d", v.StockCount), "", 0, "C", false, 0, "")
			pdf.CellFormat(colMin, 5, fmt.Sprintf("%d", v.MinStockLevel), "", 0, "C", false, 0, "")
			pdf.CellFormat(colStatus, 5, string(v.Status), "", 0, "C", false, 0, "")
			pdf.CellFormat(colValue, 5, value, "", 1, "R", false, 0, "")
		}

		grandTotal += t.TotalStock
		pdf.Ln(2)
	}

	// ── Totals ────────────────────────────────────────────────────────────────
	pdf.Line(12, pdf.GetY(), pageW-12, pdf.GetY())
	pdf.Ln(2)
	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(contentW*0.74, 6, fmt.Sprintf("Total units in stock: %d", grandTotal), "", 0, "L", false, 0, "")
	if !grandValue.IsZero() {
		pdf.CellFormat(contentW*0.26, 6, "Value: $"+grandValue.StringFixed(2), "", 1, "R", false, 0, "")
	} else {
		pdf.Ln(6)
	}

	if err := pdf.OutputFileAndClose(filePath); err != nil {
		return "", fmt.Errorf("pdf: write file: %w", err)
	}
	return filePath, nil
}

func variantLabel(v model.Variant) string {
	size, color := v.Size, v.Color
	if size == "" {
		size = "N/A"
	}
	if color == "" {
		color = "N/A"
	}
	label := size + " / " + color
	if len(label) > 28 {
		label = label[:27] + "…"
	}
	return label
}
