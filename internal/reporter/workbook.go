package reporter

import (
	"fmt"
	"io"

	"marketplace-profit-reconciler/internal/reconciler"

	"github.com/xuri/excelize/v2"
)

// Workbook sheet names. The per-order table, the aggregate stats and the
// status breakdown each get a named section.
const (
	sheetOrders  = "Reconciled Orders"
	sheetSummary = "Summary"
	sheetStatus  = "Status Breakdown"
)

// generateWorkbook renders the result as an XLSX workbook and writes it to w.
func (rg *ReportGenerator) generateWorkbook(result *reconciler.Result, w io.Writer) error {
	wb := excelize.NewFile()
	defer wb.Close()

	if err := writeOrdersSheet(wb, result); err != nil {
		return err
	}
	if err := writeSummarySheet(wb, result); err != nil {
		return err
	}
	if err := writeStatusSheet(wb, result); err != nil {
		return err
	}

	// The default sheet created by excelize is replaced by our sections.
	if err := wb.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("failed to drop default sheet: %w", err)
	}
	if idx, err := wb.GetSheetIndex(sheetOrders); err == nil {
		wb.SetActiveSheet(idx)
	}

	if err := wb.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeOrdersSheet(wb *excelize.File, result *reconciler.Result) error {
	if _, err := wb.NewSheet(sheetOrders); err != nil {
		return fmt.Errorf("failed to create orders sheet: %w", err)
	}

	header := make([]interface{}, len(orderColumns))
	for i, col := range orderColumns {
		header[i] = col
	}
	if err := wb.SetSheetRow(sheetOrders, "A1", &header); err != nil {
		return err
	}

	for i := range result.Orders {
		o := &result.Orders[i]
		settlement, _ := o.Settlement.Float64()
		productCost, _ := o.ProductCost.Float64()
		packagingCost, _ := o.PackagingCost.Float64()
		netProfit, _ := o.NetProfit.Float64()

		row := []interface{}{
			o.OrderID, o.SKU, o.Quantity, o.Status,
			settlement, productCost, packagingCost, netProfit,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := wb.SetSheetRow(sheetOrders, cell, &row); err != nil {
			return err
		}
	}

	return nil
}

func writeSummarySheet(wb *excelize.File, result *reconciler.Result) error {
	if _, err := wb.NewSheet(sheetSummary); err != nil {
		return fmt.Errorf("failed to create summary sheet: %w", err)
	}

	stats := result.Stats
	toFloat := func(d interface{ Float64() (float64, bool) }) float64 {
		f, _ := d.Float64()
		return f
	}

	rows := [][]interface{}{
		{"Orders reconciled", stats.OrderCount},
		{"Total settlement", toFloat(stats.TotalSettlement)},
		{"Total product cost", toFloat(stats.TotalProductCost)},
		{"Total packaging cost", toFloat(stats.TotalPackagingCost)},
		{"Ads overhead", toFloat(stats.TotalAdsCost)},
		{"Miscellaneous cost", toFloat(stats.MiscCost)},
		{"Net profit/loss", toFloat(stats.NetProfitLoss)},
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		r := row
		if err := wb.SetSheetRow(sheetSummary, cell, &r); err != nil {
			return err
		}
	}

	return nil
}

func writeStatusSheet(wb *excelize.File, result *reconciler.Result) error {
	if _, err := wb.NewSheet(sheetStatus); err != nil {
		return fmt.Errorf("failed to create status sheet: %w", err)
	}

	header := []interface{}{"status", "orders"}
	if err := wb.SetSheetRow(sheetStatus, "A1", &header); err != nil {
		return err
	}

	for i, status := range sortedStatuses(result.Stats.StatusCounts) {
		label := status
		if label == "" {
			label = "(none)"
		}
		row := []interface{}{label, result.Stats.StatusCounts[status]}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := wb.SetSheetRow(sheetStatus, cell, &row); err != nil {
			return err
		}
	}

	return nil
}
