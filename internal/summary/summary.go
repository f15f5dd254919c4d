// Package summary computes the run-level aggregate statistics from the
// per-order reconciled table.
package summary

import (
	"marketplace-profit-reconciler/internal/models"

	"github.com/shopspring/decimal"
)

// Summarize folds the per-order table into AggregateStats.
//
// Status counts bucket on raw status strings with original casing preserved:
// "Delivered " and "delivered" count separately. Normalization is a policy
// concern, not a reporting one. The final profit/loss deducts the run-level
// advertising overhead and miscellaneous cost, neither of which is allocated
// per order.
func Summarize(orders []models.ReconciledOrder, adsOverhead, miscCost decimal.Decimal) *models.AggregateStats {
	stats := &models.AggregateStats{
		OrderCount:         len(orders),
		TotalSettlement:    decimal.Zero,
		TotalProductCost:   decimal.Zero,
		TotalPackagingCost: decimal.Zero,
		TotalAdsCost:       adsOverhead,
		MiscCost:           miscCost,
		StatusCounts:       make(map[string]int),
	}

	for i := range orders {
		o := &orders[i]
		stats.TotalSettlement = stats.TotalSettlement.Add(o.Settlement)
		stats.TotalProductCost = stats.TotalProductCost.Add(o.ProductCost)
		stats.TotalPackagingCost = stats.TotalPackagingCost.Add(o.PackagingCost)
		stats.StatusCounts[o.Status]++
	}

	stats.NetProfitLoss = stats.TotalSettlement.
		Sub(stats.TotalProductCost).
		Sub(stats.TotalPackagingCost).
		Sub(adsOverhead).
		Sub(miscCost)

	return stats
}
