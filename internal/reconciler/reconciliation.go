// Package reconciler orchestrates a reconciliation run: schema resolution of
// the input files, payment aggregation, the order join, cost attribution and
// the aggregate summary.
//
// A run is single-threaded and synchronous. It either completes and returns
// a full Result or fails and returns nothing; per-file and per-sheet
// problems are recovered into warnings, and only the absence of any usable
// data for a mandatory input escalates to a run-level failure.
package reconciler

import (
	"context"
	"fmt"
	"time"

	"marketplace-profit-reconciler/internal/aggregator"
	"marketplace-profit-reconciler/internal/costing"
	"marketplace-profit-reconciler/internal/models"
	"marketplace-profit-reconciler/internal/schema"
	"marketplace-profit-reconciler/internal/summary"
	"marketplace-profit-reconciler/internal/tabular"
	"marketplace-profit-reconciler/pkg/errors"
	"marketplace-profit-reconciler/pkg/logger"

	"github.com/shopspring/decimal"
)

// Config holds the service-level configuration shared across runs.
type Config struct {
	// HeaderSearchDepth is the number of header-row offsets the schema
	// resolver tries per sheet.
	HeaderSearchDepth int
	// Aggregation controls settlement aggregation, including status
	// precedence.
	Aggregation *aggregator.Config
	// Policy is the status-classification policy for cost attribution.
	Policy *costing.StatusPolicy
}

// DefaultConfig returns the default service configuration.
func DefaultConfig() *Config {
	return &Config{
		HeaderSearchDepth: schema.DefaultSearchDepth,
		Aggregation:       aggregator.DefaultConfig(),
		Policy:            costing.DefaultStatusPolicy(),
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.HeaderSearchDepth < 1 {
		return fmt.Errorf("header search depth must be at least 1, got %d", c.HeaderSearchDepth)
	}
	if c.Aggregation == nil {
		return fmt.Errorf("aggregation configuration is required")
	}
	if err := c.Aggregation.Validate(); err != nil {
		return fmt.Errorf("invalid aggregation config: %w", err)
	}
	if c.Policy == nil {
		return fmt.Errorf("status policy is required")
	}
	return c.Policy.Validate()
}

// Request describes one reconciliation run.
type Request struct {
	OrderFile    string
	PaymentFiles []string
	// CostFile is optional; without it every SKU falls back to
	// DefaultUnitCost.
	CostFile string

	PackagingFee    decimal.Decimal
	DefaultUnitCost decimal.Decimal
	// MiscCost may be negative to represent recoveries.
	MiscCost decimal.Decimal
}

// Validate validates the request.
func (r *Request) Validate() error {
	if r.OrderFile == "" {
		return fmt.Errorf("order file path is required")
	}
	if len(r.PaymentFiles) == 0 {
		return fmt.Errorf("at least one payment file is required")
	}
	if r.PackagingFee.IsNegative() {
		return fmt.Errorf("packaging fee cannot be negative: %s", r.PackagingFee)
	}
	if r.DefaultUnitCost.IsNegative() {
		return fmt.Errorf("default unit cost cannot be negative: %s", r.DefaultUnitCost)
	}
	return nil
}

// Result is the complete outcome of one run.
type Result struct {
	Orders      []models.ReconciledOrder `json:"orders"`
	Stats       *models.AggregateStats   `json:"stats"`
	Resolutions []schema.Resolution      `json:"-"`
	Warnings    []string                 `json:"warnings,omitempty"`
	ProcessedAt time.Time                `json:"processed_at"`
	Duration    time.Duration            `json:"duration"`
}

// Service runs reconciliations.
type Service struct {
	config *Config
	log    logger.Logger
}

// NewService creates a reconciliation service.
func NewService(config *Config) (*Service, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &Service{
		config: config,
		log:    logger.GetGlobalLogger().WithComponent("reconciler"),
	}, nil
}

// Run executes the full pipeline for one request: order master, cost book,
// payment aggregation, join, cost attribution, aggregate stats.
func (s *Service) Run(ctx context.Context, request *Request) (*Result, error) {
	if err := request.Validate(); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	started := time.Now()
	result := &Result{ProcessedAt: started}

	orders, err := s.loadOrders(request, result)
	if err != nil {
		return nil, err
	}

	book, err := s.loadCostBook(request, result)
	if err != nil {
		return nil, err
	}

	paymentSheets, err := s.loadPaymentSheets(request, result)
	if err != nil {
		return nil, err
	}

	agg, err := aggregator.New(s.config.Aggregation)
	if err != nil {
		return nil, err
	}
	aggregated := agg.Aggregate(paymentSheets)

	attributor, err := costing.NewAttributor(&costing.Config{
		PackagingFee: request.PackagingFee,
		Policy:       s.config.Policy,
	})
	if err != nil {
		return nil, err
	}

	result.Orders = s.join(orders, aggregated, book, attributor)
	result.Stats = summary.Summarize(result.Orders, aggregated.AdsOverhead, request.MiscCost)
	result.Duration = time.Since(started)

	s.log.WithFields(logger.Fields{
		"orders":          result.Stats.OrderCount,
		"net_profit_loss": result.Stats.NetProfitLoss.String(),
		"duration":        result.Duration.String(),
	}).Info("Reconciliation run complete")

	return result, nil
}

// loadOrders reads the master order export and collapses duplicate order ids
// keeping the first occurrence.
func (s *Service) loadOrders(request *Request, result *Result) ([]models.OrderRecord, error) {
	file, err := tabular.LoadFile(request.OrderFile)
	if err != nil {
		return nil, err
	}

	required := []schema.Field{schema.FieldOrderID}
	optional := []schema.Field{schema.FieldSKU, schema.FieldQuantity, schema.FieldStatus}

	var mapping *schema.Mapping
	var sheet *tabular.Sheet
	for i := range file.Sheets {
		resolution := schema.Resolve(file.Path, &file.Sheets[i], required, optional, s.config.HeaderSearchDepth)
		result.Resolutions = append(result.Resolutions, resolution)
		if resolution.Outcome == schema.OutcomeResolved {
			mapping = resolution.Mapping
			sheet = &file.Sheets[i]
			break
		}
	}

	if mapping == nil {
		return nil, errors.ReconciliationError(errors.CodeNoOrderData, "order file resolution",
			lastResolutionError(result.Resolutions))
	}

	var orders []models.OrderRecord
	seen := make(map[string]bool)

	for _, row := range sheet.DataRows(mapping.HeaderOffset) {
		if tabular.IsEmptyRow(row) {
			continue
		}

		idCell, _ := mapping.Cell(row, schema.FieldOrderID)
		key := models.NormalizeOrderID(idCell)
		if key == "" {
			continue
		}
		if seen[key] {
			continue
		}
		seen[key] = true

		order := models.OrderRecord{OrderID: key, Quantity: 1}
		if cell, ok := mapping.Cell(row, schema.FieldSKU); ok {
			order.SKU = cell
		}
		if cell, ok := mapping.Cell(row, schema.FieldQuantity); ok {
			order.Quantity = models.ParseQuantity(cell)
		}
		if cell, ok := mapping.Cell(row, schema.FieldStatus); ok {
			order.Status = cell
		}

		orders = append(orders, order)
	}

	if len(orders) == 0 {
		return nil, errors.ReconciliationError(errors.CodeNoOrderData, "order file resolution", nil)
	}

	s.log.WithFields(logger.Fields{
		"file":   request.OrderFile,
		"orders": len(orders),
	}).Info("Loaded order master")

	return orders, nil
}

// loadCostBook reads the cost reference table. The table's first two columns
// are used positionally when keyword matching fails. The cost file is the
// sole source of unit costs, so a supplied-but-unreadable file is fatal.
func (s *Service) loadCostBook(request *Request, result *Result) (*models.CostBook, error) {
	book := models.NewCostBook(request.DefaultUnitCost)
	if request.CostFile == "" {
		return book, nil
	}

	file, err := tabular.LoadFile(request.CostFile)
	if err != nil {
		return nil, err
	}

	for i := range file.Sheets {
		sheet := &file.Sheets[i]
		resolution := schema.Resolve(file.Path, sheet,
			[]schema.Field{schema.FieldSKU, schema.FieldUnitCost}, nil, s.config.HeaderSearchDepth)
		result.Resolutions = append(result.Resolutions, resolution)

		switch resolution.Outcome {
		case schema.OutcomeResolved:
			m := resolution.Mapping
			for _, row := range sheet.DataRows(m.HeaderOffset) {
				sku, _ := m.Cell(row, schema.FieldSKU)
				costCell, _ := m.Cell(row, schema.FieldUnitCost)
				addCostRule(book, sku, costCell)
			}
		case schema.OutcomeFailed:
			// Positional fallback: first column is the SKU, second the
			// unit cost, header row assumed at the top.
			for _, row := range sheet.DataRows(0) {
				addCostRule(book, tabular.Cell(row, 0), tabular.Cell(row, 1))
			}
		default:
			continue
		}

		if book.Len() > 0 {
			break
		}
	}

	s.log.WithFields(logger.Fields{
		"file": request.CostFile,
		"skus": book.Len(),
	}).Info("Loaded cost reference table")

	return book, nil
}

func addCostRule(book *models.CostBook, sku, costCell string) {
	if models.NormalizeSKU(sku) == "" {
		return
	}
	cost, ok := models.ParseAmount(costCell)
	if !ok || cost.IsNegative() {
		return
	}
	book.Set(sku, cost)
}

// loadPaymentSheets loads every payment file, resolving the first usable
// data sheet per file. Unopenable or unresolvable files are downgraded to
// warnings; the run fails only when no file yields any usable sheet.
func (s *Service) loadPaymentSheets(request *Request, result *Result) ([]aggregator.PaymentSheet, error) {
	required := []schema.Field{schema.FieldOrderID, schema.FieldSettlement}
	optional := []schema.Field{schema.FieldStatus, schema.FieldObservedAt, schema.FieldAdsCost}

	var sheets []aggregator.PaymentSheet

	for _, path := range request.PaymentFiles {
		file, err := tabular.LoadFile(path)
		if err != nil {
			warning := fmt.Sprintf("skipping payment file %s: %v", path, err)
			result.Warnings = append(result.Warnings, warning)
			s.log.WithError(err).WithField("file", path).Warn("Skipping unopenable payment file")
			continue
		}

		resolved := false
		for i := range file.Sheets {
			resolution := schema.Resolve(file.Path, &file.Sheets[i], required, optional, s.config.HeaderSearchDepth)
			result.Resolutions = append(result.Resolutions, resolution)

			if resolution.Outcome == schema.OutcomeResolved {
				sheets = append(sheets, aggregator.PaymentSheet{
					Source:  path,
					Sheet:   &file.Sheets[i],
					Mapping: resolution.Mapping,
				})
				resolved = true
				// One data sheet per export; the rest are disclaimers.
				break
			}
		}

		if !resolved {
			warning := fmt.Sprintf("no usable payment data in %s", path)
			result.Warnings = append(result.Warnings, warning)
			s.log.WithField("file", path).Warn("No usable payment data in file")
		}
	}

	if len(sheets) == 0 {
		return nil, errors.NoValidPaymentSourceError(request.PaymentFiles)
	}

	s.log.WithFields(logger.Fields{
		"files_supplied": len(request.PaymentFiles),
		"sheets_usable":  len(sheets),
	}).Info("Resolved payment sheets")

	return sheets, nil
}

// join produces exactly one ReconciledOrder per master order, in master
// order, with settlement defaulting to zero when no payment matched. The
// payment-side latest status overrides the master status when present.
func (s *Service) join(
	orders []models.OrderRecord,
	aggregated *aggregator.Result,
	book *models.CostBook,
	attributor *costing.Attributor,
) []models.ReconciledOrder {

	reconciled := make([]models.ReconciledOrder, 0, len(orders))

	for i := range orders {
		order := orders[i]

		settlement := decimal.Zero
		if total, ok := aggregated.Totals[order.Key()]; ok {
			settlement = total.TotalAmount
			if total.LatestStatus != "" {
				order.Status = total.LatestStatus
			}
		}

		attr := attributor.Attribute(&order, book)

		reconciled = append(reconciled, models.ReconciledOrder{
			OrderID:       order.OrderID,
			SKU:           order.SKU,
			Quantity:      order.Quantity,
			Status:        order.Status,
			Settlement:    settlement,
			ProductCost:   attr.ProductCost,
			PackagingCost: attr.PackagingCost,
			NetProfit:     settlement.Sub(attr.ProductCost).Sub(attr.PackagingCost),
		})
	}

	return reconciled
}

func lastResolutionError(resolutions []schema.Resolution) error {
	for i := len(resolutions) - 1; i >= 0; i-- {
		if resolutions[i].Err != nil {
			return resolutions[i].Err
		}
	}
	return nil
}
