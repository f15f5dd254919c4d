// Package config assembles component configurations from CLI inputs.
package config

import (
	"fmt"

	"marketplace-profit-reconciler/internal/aggregator"
	"marketplace-profit-reconciler/internal/costing"
	"marketplace-profit-reconciler/internal/reconciler"
	"marketplace-profit-reconciler/internal/reporter"
	"marketplace-profit-reconciler/internal/schema"

	"github.com/shopspring/decimal"
)

// CreateServiceConfig creates the reconciliation service configuration.
func CreateServiceConfig(statusPrecedence string) (*reconciler.Config, error) {
	config := reconciler.DefaultConfig()
	config.HeaderSearchDepth = schema.DefaultSearchDepth

	switch statusPrecedence {
	case "", "timestamp":
		config.Aggregation = &aggregator.Config{StatusPrecedence: aggregator.PrecedenceTimestamp}
	case "file-order":
		config.Aggregation = &aggregator.Config{StatusPrecedence: aggregator.PrecedenceFileOrder}
	default:
		return nil, fmt.Errorf("unknown status precedence: %s", statusPrecedence)
	}

	config.Policy = costing.DefaultStatusPolicy()

	return config, nil
}

// CreateRequest builds a reconciliation request from raw CLI values. The
// scalar cost inputs are parsed here so the engine only ever sees decimals.
func CreateRequest(orderFile string, paymentFiles []string, costFile, packagingFee, defaultUnitCost, miscCost string) (*reconciler.Request, error) {
	fee, err := decimal.NewFromString(packagingFee)
	if err != nil {
		return nil, fmt.Errorf("invalid packaging fee %q: %w", packagingFee, err)
	}

	fallback, err := decimal.NewFromString(defaultUnitCost)
	if err != nil {
		return nil, fmt.Errorf("invalid default unit cost %q: %w", defaultUnitCost, err)
	}

	misc, err := decimal.NewFromString(miscCost)
	if err != nil {
		return nil, fmt.Errorf("invalid misc cost %q: %w", miscCost, err)
	}

	return &reconciler.Request{
		OrderFile:       orderFile,
		PaymentFiles:    paymentFiles,
		CostFile:        costFile,
		PackagingFee:    fee,
		DefaultUnitCost: fallback,
		MiscCost:        misc,
	}, nil
}

// CreateReportConfig creates a report configuration for the specified output
// format.
func CreateReportConfig(format string) *reporter.ReportConfig {
	config := reporter.DefaultReportConfig()

	switch format {
	case "json":
		config.Format = reporter.FormatJSON
	case "csv":
		config.Format = reporter.FormatCSV
		config.CSVDelimiter = ','
	case "xlsx":
		config.Format = reporter.FormatXLSX
	default:
		config.Format = reporter.FormatConsole
		config.MaxConsoleRows = 10
	}

	return config
}
