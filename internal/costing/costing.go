// Package costing decides, per order, whether product cost and packaging
// cost apply, driven by a configurable status-classification policy.
package costing

import (
	"fmt"
	"strings"

	"marketplace-profit-reconciler/internal/models"

	"github.com/shopspring/decimal"
)

// StatusPolicy partitions order statuses into cost-bearing, dispatch-bearing
// and cancelled classes. Matching is by substring containment on the
// normalized status (uppercased, non-alphanumerics stripped), so "Door Step
// Exchanged" matches the EXCHANGE keyword.
type StatusPolicy struct {
	// CostBearingKeywords mark statuses in which the product cost is
	// considered incurred.
	CostBearingKeywords []string
	// CancelledKeywords mark explicit cancellation. Cancelled statuses are
	// always excluded from dispatch-bearing regardless of other matches.
	CancelledKeywords []string
}

// DefaultStatusPolicy returns the standard marketplace policy: delivered,
// exchanged and lost-in-transit orders bear product cost; everything except
// cancellations bears packaging cost.
func DefaultStatusPolicy() *StatusPolicy {
	return &StatusPolicy{
		CostBearingKeywords: []string{"DELIVERED", "EXCHANGE", "LOST"},
		CancelledKeywords:   []string{"CANCELLED", "CANCELED"},
	}
}

// Validate validates the policy.
func (p *StatusPolicy) Validate() error {
	if len(p.CancelledKeywords) == 0 {
		return fmt.Errorf("status policy requires at least one cancelled keyword")
	}
	for _, kw := range append(append([]string{}, p.CostBearingKeywords...), p.CancelledKeywords...) {
		if models.NormalizeStatus(kw) != kw {
			return fmt.Errorf("policy keyword %q is not in normalized form", kw)
		}
	}
	return nil
}

// Classification is the policy's verdict for one status.
type Classification struct {
	// Raw is the original status string, retained for display.
	Raw string
	// Normalized is the form the policy matched on.
	Normalized string
	// Unknown marks a missing or empty status. Unknown statuses are
	// deliberately classified as cost-bearing=false, dispatch-bearing=true:
	// the order still incurred packaging but the product cost is not
	// assumed. This conservative default is explicit, not accidental.
	Unknown bool
	// Cancelled marks explicit cancellation.
	Cancelled bool
	// CostBearing reports whether product cost applies.
	CostBearing bool
	// DispatchBearing reports whether packaging cost applies.
	DispatchBearing bool
}

// Classify evaluates one status against the policy.
func (p *StatusPolicy) Classify(status string) Classification {
	normalized := models.NormalizeStatus(status)

	c := Classification{
		Raw:        status,
		Normalized: normalized,
	}

	if normalized == "" {
		c.Unknown = true
		c.DispatchBearing = true
		return c
	}

	if containsAny(normalized, p.CancelledKeywords) {
		c.Cancelled = true
		return c
	}

	c.CostBearing = containsAny(normalized, p.CostBearingKeywords)
	c.DispatchBearing = true
	return c
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// Config holds the run-level cost inputs. There are no process-wide
// defaults: the packaging fee and fallback unit cost arrive here from
// configuration.
type Config struct {
	PackagingFee decimal.Decimal
	Policy       *StatusPolicy
}

// DefaultConfig returns a zero-fee configuration with the default policy.
func DefaultConfig() *Config {
	return &Config{
		PackagingFee: decimal.Zero,
		Policy:       DefaultStatusPolicy(),
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.PackagingFee.IsNegative() {
		return fmt.Errorf("packaging fee cannot be negative: %s", c.PackagingFee)
	}
	if c.Policy == nil {
		return fmt.Errorf("status policy is required")
	}
	return c.Policy.Validate()
}

// Attribution is the per-order cost verdict.
type Attribution struct {
	ProductCost   decimal.Decimal
	PackagingCost decimal.Decimal
	Class         Classification
}

// Attributor applies the cost policy to orders.
type Attributor struct {
	config *Config
}

// NewAttributor creates an Attributor.
func NewAttributor(config *Config) (*Attributor, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Attributor{config: config}, nil
}

// Attribute decides product and packaging cost for one order. Product cost is
// unit cost times quantity for cost-bearing statuses; packaging cost is the
// flat fee for dispatch-bearing statuses; cancelled orders incur neither.
func (a *Attributor) Attribute(order *models.OrderRecord, book *models.CostBook) Attribution {
	class := a.config.Policy.Classify(order.Status)

	attr := Attribution{
		ProductCost:   decimal.Zero,
		PackagingCost: decimal.Zero,
		Class:         class,
	}

	if class.CostBearing {
		unitCost := book.UnitCost(order.SKU)
		attr.ProductCost = unitCost.Mul(decimal.NewFromInt(int64(order.Quantity)))
	}

	if class.DispatchBearing {
		attr.PackagingCost = a.config.PackagingFee
	}

	return attr
}
