// Package aggregator consumes resolved payment sheets and produces one
// settlement total and one winning status per order id, plus the run-level
// advertising overhead.
package aggregator

import (
	"fmt"

	"marketplace-profit-reconciler/internal/models"
	"marketplace-profit-reconciler/internal/schema"
	"marketplace-profit-reconciler/internal/tabular"
	"marketplace-profit-reconciler/pkg/logger"

	"github.com/shopspring/decimal"
)

// StatusPrecedence selects how the winning status is chosen when an order id
// has settlement entries in multiple sheets.
type StatusPrecedence string

const (
	// PrecedenceTimestamp prefers the entry with the most recent observed
	// timestamp; entries without timestamps fall back to processing order
	// among themselves but never displace a timestamped winner.
	PrecedenceTimestamp StatusPrecedence = "timestamp"
	// PrecedenceFileOrder makes the entry encountered last in file/sheet
	// processing order win, even when timestamps are present.
	PrecedenceFileOrder StatusPrecedence = "file-order"
)

// Config holds aggregation options.
type Config struct {
	StatusPrecedence StatusPrecedence
}

// DefaultConfig returns the default aggregation configuration.
func DefaultConfig() *Config {
	return &Config{StatusPrecedence: PrecedenceTimestamp}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.StatusPrecedence {
	case PrecedenceTimestamp, PrecedenceFileOrder:
		return nil
	default:
		return fmt.Errorf("invalid status precedence: %q", c.StatusPrecedence)
	}
}

// PaymentSheet is a payment sheet whose schema has already been resolved.
type PaymentSheet struct {
	Source  string
	Sheet   *tabular.Sheet
	Mapping *schema.Mapping
}

// Result is the outcome of aggregating every payment sheet of a run.
type Result struct {
	// Totals maps normalized order id to the summed settlement.
	Totals map[string]*models.SettlementTotal
	// AdsOverhead is the absolute value of each sheet's ads-cost column
	// total, summed across sheets. It is a run-level figure, never
	// allocated per order.
	AdsOverhead decimal.Decimal
	// EntryCount is the number of settlement rows consumed.
	EntryCount int
	// DroppedRows counts rows discarded for a missing order id.
	DroppedRows int
	// RecoveredAmounts counts cells that failed numeric coercion and were
	// treated as zero.
	RecoveredAmounts int
}

// Aggregator groups settlement entries by order id and sums their amounts.
type Aggregator struct {
	config *Config
	log    logger.Logger
}

// New creates an Aggregator.
func New(config *Config) (*Aggregator, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Aggregator{
		config: config,
		log:    logger.GetGlobalLogger().WithComponent("aggregator"),
	}, nil
}

// Aggregate consumes the payment sheets in order. Amounts for the same order
// id are always summed across every sheet and file; only the status follows
// the configured precedence rule.
func (a *Aggregator) Aggregate(sheets []PaymentSheet) *Result {
	result := &Result{
		Totals:      make(map[string]*models.SettlementTotal),
		AdsOverhead: decimal.Zero,
	}

	for _, ps := range sheets {
		a.consumeSheet(ps, result)
	}

	a.log.WithFields(logger.Fields{
		"orders":            len(result.Totals),
		"entries":           result.EntryCount,
		"dropped_rows":      result.DroppedRows,
		"recovered_amounts": result.RecoveredAmounts,
		"ads_overhead":      result.AdsOverhead.String(),
	}).Info("Aggregated payment sheets")

	return result
}

func (a *Aggregator) consumeSheet(ps PaymentSheet, result *Result) {
	log := a.log.WithFields(logger.Fields{"source": ps.Source, "sheet": ps.Sheet.Name})

	adsTotal := decimal.Zero
	hasAds := ps.Mapping.Has(schema.FieldAdsCost)

	for _, row := range ps.Sheet.DataRows(ps.Mapping.HeaderOffset) {
		if tabular.IsEmptyRow(row) {
			continue
		}

		// The ads column is a sheet-level total independent of the order
		// grouping, so it is summed even for rows without an order id.
		if hasAds {
			if cell, _ := ps.Mapping.Cell(row, schema.FieldAdsCost); cell != "" {
				if amount, ok := models.ParseAmount(cell); ok {
					adsTotal = adsTotal.Add(amount)
				}
			}
		}

		entry, ok := a.readEntry(ps, row, result)
		if !ok {
			continue
		}

		a.apply(entry, result)
	}

	if hasAds && !adsTotal.IsZero() {
		result.AdsOverhead = result.AdsOverhead.Add(adsTotal.Abs())
		log.WithField("ads_total", adsTotal.String()).Debug("Accumulated ads overhead from sheet")
	}
}

// readEntry lifts one row into a PaymentEntry. Rows without an order id are
// dropped; unparseable amounts are recovered as zero and counted, never
// fatal.
func (a *Aggregator) readEntry(ps PaymentSheet, row []string, result *Result) (*models.PaymentEntry, bool) {
	idCell, _ := ps.Mapping.Cell(row, schema.FieldOrderID)
	orderID := models.NormalizeOrderID(idCell)
	if orderID == "" {
		result.DroppedRows++
		return nil, false
	}

	amountCell, _ := ps.Mapping.Cell(row, schema.FieldSettlement)
	amount, parsed := models.ParseAmount(amountCell)
	if !parsed {
		result.RecoveredAmounts++
		a.log.WithFields(logger.Fields{
			"source":   ps.Source,
			"sheet":    ps.Sheet.Name,
			"order_id": orderID,
			"value":    amountCell,
		}).Debug("Unparseable settlement amount treated as zero")
	}

	entry := &models.PaymentEntry{
		OrderID: orderID,
		Amount:  amount,
		Source:  ps.Source,
	}

	if cell, ok := ps.Mapping.Cell(row, schema.FieldStatus); ok {
		entry.Status = cell
	}
	if cell, ok := ps.Mapping.Cell(row, schema.FieldObservedAt); ok {
		entry.ObservedAt = models.ParseObservedAt(cell)
	}

	return entry, true
}

// apply folds one entry into the running totals. The amount is always added;
// the status follows the precedence rule.
func (a *Aggregator) apply(entry *models.PaymentEntry, result *Result) {
	result.EntryCount++

	total, exists := result.Totals[entry.OrderID]
	if !exists {
		total = &models.SettlementTotal{
			OrderID:     entry.OrderID,
			TotalAmount: decimal.Zero,
		}
		result.Totals[entry.OrderID] = total
	}

	total.TotalAmount = total.TotalAmount.Add(entry.Amount)
	total.EntryCount++

	if entry.Status == "" {
		return
	}

	switch a.config.StatusPrecedence {
	case PrecedenceFileOrder:
		total.LatestStatus = entry.Status
		total.LatestObserved = entry.ObservedAt
	default: // PrecedenceTimestamp
		if entry.ObservedAt != nil {
			if total.LatestObserved == nil || !entry.ObservedAt.Before(*total.LatestObserved) {
				total.LatestStatus = entry.Status
				total.LatestObserved = entry.ObservedAt
			}
		} else if total.LatestObserved == nil {
			// Among timestampless entries, last processed wins.
			total.LatestStatus = entry.Status
		}
	}
}
