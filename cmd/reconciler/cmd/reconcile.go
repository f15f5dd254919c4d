package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"marketplace-profit-reconciler/cmd/reconciler/config"
	"marketplace-profit-reconciler/internal/reconciler"
	"marketplace-profit-reconciler/internal/reporter"
	"marketplace-profit-reconciler/internal/schema"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flags for the reconcile command
var (
	orderFile        string
	paymentFiles     []string
	costFile         string
	packagingFee     string
	defaultUnitCost  string
	miscCost         string
	statusPrecedence string
	outputFormat     string
	outputFile       string
)

// reconcileCmd represents the reconcile command
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile marketplace orders with payment settlements",
	Long: `Reconcile joins the master order export with one or more payment
settlement exports, sums split settlements per order, attributes product and
packaging costs by order status, and reports per-order and aggregate
profit/loss.

This command requires:
- A master order export (CSV or XLSX)
- One or more payment settlement exports (CSV or XLSX)

Examples:
  # Basic reconciliation
  reconciler reconcile --order-file orders.csv --payment-files payments.xlsx

  # Settlements split across payment cycles, with a cost reference table
  reconciler reconcile --order-file orders.csv \
    --payment-files same_period.xlsx,next_period.xlsx \
    --cost-file costs.csv --packaging-fee 5 --default-unit-cost 40

  # Workbook report
  reconciler reconcile --order-file orders.csv --payment-files payments.xlsx \
    --output-format xlsx --output-file profit_report.xlsx`,

	PreRunE: validateReconcileFlags,
	RunE:    runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	// Required flags
	reconcileCmd.Flags().StringVarP(&orderFile, "order-file", "r", "", "path to master order export (required)")
	reconcileCmd.Flags().StringSliceVarP(&paymentFiles, "payment-files", "p", []string{}, "comma-separated paths to payment settlement exports (required)")

	// Cost inputs
	reconcileCmd.Flags().StringVarP(&costFile, "cost-file", "c", "", "path to SKU cost reference table (optional)")
	reconcileCmd.Flags().StringVar(&packagingFee, "packaging-fee", "0", "flat packaging fee per dispatched order")
	reconcileCmd.Flags().StringVar(&defaultUnitCost, "default-unit-cost", "0", "fallback unit cost for SKUs missing from the cost table")
	reconcileCmd.Flags().StringVar(&miscCost, "misc-cost", "0", "miscellaneous run-level cost (negative for recoveries)")

	// Behaviour flags
	reconcileCmd.Flags().StringVar(&statusPrecedence, "status-precedence", "timestamp", "status precedence when an order settles in multiple sheets: timestamp, file-order")

	// Output flags
	reconcileCmd.Flags().StringVarP(&outputFormat, "output-format", "f", "console", "output format: console, json, csv, xlsx")
	reconcileCmd.Flags().StringVarP(&outputFile, "output-file", "o", "", "output file path (default: stdout)")

	// Mark required flags
	reconcileCmd.MarkFlagRequired("order-file")
	reconcileCmd.MarkFlagRequired("payment-files")

	// Bind flags to viper
	viper.BindPFlag("order-file", reconcileCmd.Flags().Lookup("order-file"))
	viper.BindPFlag("payment-files", reconcileCmd.Flags().Lookup("payment-files"))
	viper.BindPFlag("cost-file", reconcileCmd.Flags().Lookup("cost-file"))
	viper.BindPFlag("packaging-fee", reconcileCmd.Flags().Lookup("packaging-fee"))
	viper.BindPFlag("default-unit-cost", reconcileCmd.Flags().Lookup("default-unit-cost"))
	viper.BindPFlag("misc-cost", reconcileCmd.Flags().Lookup("misc-cost"))
	viper.BindPFlag("status-precedence", reconcileCmd.Flags().Lookup("status-precedence"))
	viper.BindPFlag("output-format", reconcileCmd.Flags().Lookup("output-format"))
	viper.BindPFlag("output-file", reconcileCmd.Flags().Lookup("output-file"))
}

func validateReconcileFlags(cmd *cobra.Command, args []string) error {
	// Get values from viper (allows override from config file)
	orderFile = viper.GetString("order-file")
	paymentFiles = viper.GetStringSlice("payment-files")
	costFile = viper.GetString("cost-file")
	packagingFee = viper.GetString("packaging-fee")
	defaultUnitCost = viper.GetString("default-unit-cost")
	miscCost = viper.GetString("misc-cost")
	statusPrecedence = viper.GetString("status-precedence")
	outputFormat = viper.GetString("output-format")
	outputFile = viper.GetString("output-file")

	// Validate required flags
	if orderFile == "" {
		return fmt.Errorf("order-file is required")
	}
	if len(paymentFiles) == 0 {
		return fmt.Errorf("at least one payment-file is required")
	}

	// Validate file existence. Payment files are deliberately not checked
	// here: an unreadable payment file is a per-file warning at run time,
	// not a flag error.
	if err := validateFileExists(orderFile, "order file"); err != nil {
		return err
	}
	if costFile != "" {
		if err := validateFileExists(costFile, "cost file"); err != nil {
			return err
		}
	}

	// Validate scalar cost inputs
	fee, err := decimal.NewFromString(packagingFee)
	if err != nil {
		return fmt.Errorf("invalid packaging fee %q: %w", packagingFee, err)
	}
	if fee.IsNegative() {
		return fmt.Errorf("packaging fee cannot be negative")
	}

	fallback, err := decimal.NewFromString(defaultUnitCost)
	if err != nil {
		return fmt.Errorf("invalid default unit cost %q: %w", defaultUnitCost, err)
	}
	if fallback.IsNegative() {
		return fmt.Errorf("default unit cost cannot be negative")
	}

	if _, err := decimal.NewFromString(miscCost); err != nil {
		return fmt.Errorf("invalid misc cost %q: %w", miscCost, err)
	}

	// Validate status precedence
	validPrecedence := map[string]bool{"timestamp": true, "file-order": true}
	if !validPrecedence[statusPrecedence] {
		return fmt.Errorf("invalid status precedence '%s'. Valid values: timestamp, file-order", statusPrecedence)
	}

	// Validate output format
	validFormats := map[string]bool{"console": true, "json": true, "csv": true, "xlsx": true}
	if !validFormats[outputFormat] {
		return fmt.Errorf("invalid output format '%s'. Valid formats: console, json, csv, xlsx", outputFormat)
	}
	if outputFormat == "xlsx" && outputFile == "" {
		return fmt.Errorf("output-file is required for xlsx output")
	}

	// Validate output file directory exists if specified
	if outputFile != "" {
		dir := filepath.Dir(outputFile)
		if dir != "." {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				return fmt.Errorf("output directory does not exist: %s", dir)
			}
		}
	}

	return nil
}

func validateFileExists(filePath, description string) error {
	if filePath == "" {
		return fmt.Errorf("%s path cannot be empty", description)
	}

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return fmt.Errorf("%s does not exist: %s", description, filePath)
	}
	if err != nil {
		return fmt.Errorf("error accessing %s: %w", description, err)
	}

	if info.IsDir() {
		return fmt.Errorf("%s is a directory, expected a file: %s", description, filePath)
	}

	return nil
}

func runReconcile(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if viper.GetBool("verbose") {
		fmt.Fprintf(os.Stderr, "Starting reconciliation...\n")
		fmt.Fprintf(os.Stderr, "Order file: %s\n", orderFile)
		fmt.Fprintf(os.Stderr, "Payment files: %s\n", strings.Join(paymentFiles, ", "))
		if costFile != "" {
			fmt.Fprintf(os.Stderr, "Cost file: %s\n", costFile)
		}
		fmt.Fprintf(os.Stderr, "Output format: %s\n", outputFormat)
	}

	serviceConfig, err := config.CreateServiceConfig(statusPrecedence)
	if err != nil {
		return fmt.Errorf("failed to create service config: %w", err)
	}

	service, err := reconciler.NewService(serviceConfig)
	if err != nil {
		return fmt.Errorf("failed to create reconciliation service: %w", err)
	}

	request, err := config.CreateRequest(orderFile, paymentFiles, costFile, packagingFee, defaultUnitCost, miscCost)
	if err != nil {
		return fmt.Errorf("failed to create reconciliation request: %w", err)
	}

	result, err := service.Run(ctx, request)
	if err != nil {
		return fmt.Errorf("reconciliation failed: %w", err)
	}

	// Generate report
	reportConfig := config.CreateReportConfig(outputFormat)
	reportGenerator, err := reporter.NewReportGenerator(reportConfig)
	if err != nil {
		return fmt.Errorf("failed to create report generator: %w", err)
	}

	// Determine output destination
	var output *os.File
	if outputFile != "" {
		output, err = os.Create(outputFile)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer output.Close()
	} else {
		output = os.Stdout
	}

	if err := reportGenerator.GenerateReport(result, output); err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}

	// Show completion message
	if viper.GetBool("verbose") {
		fmt.Fprintf(os.Stderr, "\nReconciliation completed successfully.\n")
		fmt.Fprintf(os.Stderr, "Reconciled %d orders, net profit/loss %s.\n",
			result.Stats.OrderCount, result.Stats.NetProfitLoss.StringFixed(2))
		for _, resolution := range result.Resolutions {
			if resolution.Outcome != schema.OutcomeResolved {
				fmt.Fprintf(os.Stderr, "Sheet %s/%s: %s\n", resolution.Source, resolution.Sheet, resolution.Outcome)
			}
		}
		if len(result.Warnings) > 0 {
			fmt.Fprintf(os.Stderr, "Warnings: %d\n", len(result.Warnings))
		}
		fmt.Fprintf(os.Stderr, "Processing time: %v\n", result.Duration)
	}

	return nil
}
