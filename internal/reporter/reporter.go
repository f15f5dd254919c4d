// Package reporter renders a reconciliation result as a console summary,
// JSON, CSV, or an XLSX workbook with named sections.
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"marketplace-profit-reconciler/internal/models"
	"marketplace-profit-reconciler/internal/reconciler"
)

// Format represents the output format for reports.
type Format string

const (
	FormatConsole Format = "console"
	FormatJSON    Format = "json"
	FormatCSV     Format = "csv"
	FormatXLSX    Format = "xlsx"
)

// ReportConfig holds configuration for report generation.
type ReportConfig struct {
	Format Format
	// MaxConsoleRows caps the per-order rows printed in console format;
	// zero prints all rows.
	MaxConsoleRows int
	CSVDelimiter   rune
	// IncludeWarnings controls whether run warnings are rendered.
	IncludeWarnings bool
}

// DefaultReportConfig returns a default report configuration.
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:          FormatConsole,
		MaxConsoleRows:  10,
		CSVDelimiter:    ',',
		IncludeWarnings: true,
	}
}

// Validate validates the report configuration.
func (c *ReportConfig) Validate() error {
	switch c.Format {
	case FormatConsole, FormatJSON, FormatCSV, FormatXLSX:
	default:
		return fmt.Errorf("invalid report format: %s", c.Format)
	}
	if c.MaxConsoleRows < 0 {
		return fmt.Errorf("max console rows cannot be negative")
	}
	return nil
}

// ReportGenerator renders reconciliation results.
type ReportGenerator struct {
	config *ReportConfig
}

// NewReportGenerator creates a ReportGenerator.
func NewReportGenerator(config *ReportConfig) (*ReportGenerator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid report configuration: %w", err)
	}
	return &ReportGenerator{config: config}, nil
}

// GenerateReport writes the result to the writer in the configured format.
func (rg *ReportGenerator) GenerateReport(result *reconciler.Result, w io.Writer) error {
	switch rg.config.Format {
	case FormatJSON:
		return rg.generateJSON(result, w)
	case FormatCSV:
		return rg.generateCSV(result, w)
	case FormatXLSX:
		return rg.generateWorkbook(result, w)
	default:
		return rg.generateConsole(result, w)
	}
}

func (rg *ReportGenerator) generateJSON(result *reconciler.Result, w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

var orderColumns = []string{
	"order_id", "sku", "quantity", "status",
	"settlement", "product_cost", "packaging_cost", "net_profit",
}

func orderRow(o *models.ReconciledOrder) []string {
	return []string{
		o.OrderID,
		o.SKU,
		strconv.Itoa(o.Quantity),
		o.Status,
		o.Settlement.StringFixed(2),
		o.ProductCost.StringFixed(2),
		o.PackagingCost.StringFixed(2),
		o.NetProfit.StringFixed(2),
	}
}

func (rg *ReportGenerator) generateCSV(result *reconciler.Result, w io.Writer) error {
	writer := csv.NewWriter(w)
	writer.Comma = rg.config.CSVDelimiter

	if err := writer.Write(orderColumns); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for i := range result.Orders {
		if err := writer.Write(orderRow(&result.Orders[i])); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func (rg *ReportGenerator) generateConsole(result *reconciler.Result, w io.Writer) error {
	stats := result.Stats

	fmt.Fprintln(w, "RECONCILIATION SUMMARY")
	fmt.Fprintln(w, strings.Repeat("=", 50))
	fmt.Fprintf(w, "%-24s %d\n", "Orders reconciled:", stats.OrderCount)
	fmt.Fprintf(w, "%-24s %s\n", "Total settlement:", stats.TotalSettlement.StringFixed(2))
	fmt.Fprintf(w, "%-24s %s\n", "Total product cost:", stats.TotalProductCost.StringFixed(2))
	fmt.Fprintf(w, "%-24s %s\n", "Total packaging cost:", stats.TotalPackagingCost.StringFixed(2))
	fmt.Fprintf(w, "%-24s %s\n", "Ads overhead:", stats.TotalAdsCost.StringFixed(2))
	fmt.Fprintf(w, "%-24s %s\n", "Miscellaneous cost:", stats.MiscCost.StringFixed(2))
	fmt.Fprintf(w, "%-24s %s\n", "Net profit/loss:", stats.NetProfitLoss.StringFixed(2))

	if len(stats.StatusCounts) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "STATUS BREAKDOWN")
		fmt.Fprintln(w, strings.Repeat("-", 50))
		for _, status := range sortedStatuses(stats.StatusCounts) {
			label := status
			if label == "" {
				label = "(none)"
			}
			fmt.Fprintf(w, "%-32s %d\n", label, stats.StatusCounts[status])
		}
	}

	rows := len(result.Orders)
	if rg.config.MaxConsoleRows > 0 && rows > rg.config.MaxConsoleRows {
		rows = rg.config.MaxConsoleRows
	}
	if rows > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "FIRST %d ORDERS\n", rows)
		fmt.Fprintln(w, strings.Repeat("-", 50))
		for i := 0; i < rows; i++ {
			o := &result.Orders[i]
			fmt.Fprintf(w, "%-24s %10s  %10s\n", o.OrderID, o.Settlement.StringFixed(2), o.NetProfit.StringFixed(2))
		}
	}

	if rg.config.IncludeWarnings && len(result.Warnings) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "WARNINGS")
		fmt.Fprintln(w, strings.Repeat("-", 50))
		for _, warning := range result.Warnings {
			fmt.Fprintf(w, "- %s\n", warning)
		}
	}

	return nil
}

func sortedStatuses(counts map[string]int) []string {
	statuses := make([]string, 0, len(counts))
	for status := range counts {
		statuses = append(statuses, status)
	}
	sort.Strings(statuses)
	return statuses
}
