// Package models defines the data model of the reconciliation engine and the
// value-coercion helpers used when lifting raw sheet cells into it.
package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
)

// OrderRecord is one row of the master order export. Immutable once loaded;
// exactly one record exists per order id (duplicates collapse keeping the
// first occurrence).
type OrderRecord struct {
	OrderID  string `json:"order_id"`
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
	Status   string `json:"status"`
}

// Validate performs basic validation on the OrderRecord.
func (o *OrderRecord) Validate() error {
	if strings.TrimSpace(o.OrderID) == "" {
		return fmt.Errorf("order id cannot be empty")
	}
	if o.Quantity < 0 {
		return fmt.Errorf("quantity cannot be negative: %d", o.Quantity)
	}
	return nil
}

// Key returns the normalized join key for the order.
func (o *OrderRecord) Key() string {
	return NormalizeOrderID(o.OrderID)
}

// PaymentEntry is one settlement row from a payment sheet. Zero, one, or many
// entries may exist per order id across files and sheets.
type PaymentEntry struct {
	OrderID    string          `json:"order_id"`
	Amount     decimal.Decimal `json:"amount"`
	Status     string          `json:"status,omitempty"`
	ObservedAt *time.Time      `json:"observed_at,omitempty"`
	Source     string          `json:"source,omitempty"`
}

// Key returns the normalized join key for the entry.
func (p *PaymentEntry) Key() string {
	return NormalizeOrderID(p.OrderID)
}

// SettlementTotal is the derived per-order settlement: the sum of every
// matching PaymentEntry amount plus the winning status.
type SettlementTotal struct {
	OrderID        string          `json:"order_id"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	LatestStatus   string          `json:"latest_status,omitempty"`
	LatestObserved *time.Time      `json:"latest_observed,omitempty"`
	EntryCount     int             `json:"entry_count"`
}

// ReconciledOrder is the join of an OrderRecord with its SettlementTotal and
// the attributed costs. Net profit is settlement minus product and packaging
// cost; advertising overhead is deducted only at the aggregate level.
type ReconciledOrder struct {
	OrderID       string          `json:"order_id"`
	SKU           string          `json:"sku"`
	Quantity      int             `json:"quantity"`
	Status        string          `json:"status"`
	Settlement    decimal.Decimal `json:"settlement"`
	ProductCost   decimal.Decimal `json:"product_cost"`
	PackagingCost decimal.Decimal `json:"packaging_cost"`
	NetProfit     decimal.Decimal `json:"net_profit"`
}

// AggregateStats is the run-level summary, computed once and read-only
// thereafter. StatusCounts buckets on raw status strings with original
// casing preserved.
type AggregateStats struct {
	OrderCount         int             `json:"order_count"`
	TotalSettlement    decimal.Decimal `json:"total_settlement"`
	TotalProductCost   decimal.Decimal `json:"total_product_cost"`
	TotalPackagingCost decimal.Decimal `json:"total_packaging_cost"`
	TotalAdsCost       decimal.Decimal `json:"total_ads_cost"`
	MiscCost           decimal.Decimal `json:"misc_cost"`
	NetProfitLoss      decimal.Decimal `json:"net_profit_loss"`
	StatusCounts       map[string]int  `json:"status_counts"`
}

// CostBook holds the per-SKU unit costs loaded once per run from the cost
// reference table. Lookups are by exact normalized-SKU match with a
// configured default for unknown SKUs.
type CostBook struct {
	costs       map[string]decimal.Decimal
	defaultCost decimal.Decimal
}

// NewCostBook creates an empty cost book with the given fallback unit cost.
func NewCostBook(defaultCost decimal.Decimal) *CostBook {
	return &CostBook{
		costs:       make(map[string]decimal.Decimal),
		defaultCost: defaultCost,
	}
}

// Set records the unit cost for a SKU. The key is normalized; later entries
// for the same normalized SKU overwrite earlier ones.
func (cb *CostBook) Set(sku string, unitCost decimal.Decimal) {
	key := NormalizeSKU(sku)
	if key == "" {
		return
	}
	cb.costs[key] = unitCost
}

// UnitCost returns the unit cost for a SKU, falling back to the configured
// default (which may be zero) when the SKU is absent.
func (cb *CostBook) UnitCost(sku string) decimal.Decimal {
	if cost, ok := cb.costs[NormalizeSKU(sku)]; ok {
		return cost
	}
	return cb.defaultCost
}

// Len returns the number of SKUs in the book.
func (cb *CostBook) Len() int {
	return len(cb.costs)
}

// DefaultCost returns the configured fallback unit cost.
func (cb *CostBook) DefaultCost() decimal.Decimal {
	return cb.defaultCost
}

// NormalizeOrderID trims and uppercases an order id so that matching across
// files is case- and whitespace-insensitive.
func NormalizeOrderID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// NormalizeSKU lowercases and trims a SKU for cost-book lookups.
func NormalizeSKU(sku string) string {
	return strings.ToLower(strings.TrimSpace(sku))
}

// NormalizeStatus uppercases a status string and strips non-alphanumerics
// for policy classification. The raw string is retained elsewhere for
// display.
func NormalizeStatus(status string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(status) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ParseAmount coerces a cell into a decimal amount. Currency symbols and
// thousands separators are stripped before parsing; truly non-numeric values
// return zero with ok=false so the caller can count the recovery without
// failing the row.
func ParseAmount(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}

	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
		case r == ',', r == ' ', r == ' ':
			// thousands separators
		case r == '₹', r == '$', r == '€', r == '£':
			// currency symbols
		case r == '(' || r == ')':
			// accounting negatives are rare in settlement exports; treat
			// parentheses as noise rather than sign
		default:
			return decimal.Zero, false
		}
	}

	d, err := decimal.NewFromString(b.String())
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// ParseQuantity coerces a cell into a quantity. Missing or unparseable
// quantities default to 1: a master-export row represents one sold unit
// unless it says otherwise. Negative values are rejected the same way.
func ParseQuantity(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 1
	}

	// Excel frequently renders integer quantities as "2.0".
	if f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64); err == nil {
		q := int(f)
		if q < 0 || float64(q) != f {
			return 1
		}
		if q == 0 {
			return 0
		}
		return q
	}

	return 1
}

// observedAtFormats are the timestamp layouts seen in settlement exports.
var observedAtFormats = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"02-01-2006",
	"02/01/2006",
	"01/02/2006",
	"2006/01/02",
	"Jan 2, 2006",
	"2 Jan 2006",
}

// ParseObservedAt parses an optional settlement timestamp, returning nil when
// the cell is empty or matches no known layout.
func ParseObservedAt(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	for _, format := range observedAtFormats {
		if t, err := time.Parse(format, s); err == nil {
			return &t
		}
	}
	return nil
}
