package aggregator

import (
	"testing"

	"marketplace-profit-reconciler/internal/schema"
	"marketplace-profit-reconciler/internal/tabular"

	"github.com/shopspring/decimal"
)

func paymentSheet(t *testing.T, source, name string, rows [][]string) PaymentSheet {
	t.Helper()

	sheet := &tabular.Sheet{Name: name, Rows: rows}
	res := schema.Resolve(source, sheet,
		[]schema.Field{schema.FieldOrderID, schema.FieldSettlement},
		[]schema.Field{schema.FieldStatus, schema.FieldAdsCost, schema.FieldObservedAt},
		schema.DefaultSearchDepth)
	if res.Outcome != schema.OutcomeResolved {
		t.Fatalf("sheet %s/%s did not resolve: %v", source, name, res.Err)
	}
	return PaymentSheet{Source: source, Sheet: sheet, Mapping: res.Mapping}
}

func total(t *testing.T, result *Result, orderID string) decimal.Decimal {
	t.Helper()
	st, ok := result.Totals[orderID]
	if !ok {
		t.Fatalf("no settlement total for %s", orderID)
	}
	return st.TotalAmount
}

func TestAggregateSumsAcrossSheets(t *testing.T) {
	agg, err := New(nil)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	sheets := []PaymentSheet{
		paymentSheet(t, "april.csv", "Order Payments", [][]string{
			{"Sub Order No", "Final Settlement Amount"},
			{"S1", "120.00"},
			{"S2", "80.00"},
			{"S1", "30.00"},
		}),
		paymentSheet(t, "may.csv", "Order Payments", [][]string{
			{"Sub Order No", "Final Settlement Amount"},
			{"S1", "-15.00"},
			{"S3", "200.00"},
		}),
	}

	result := agg.Aggregate(sheets)

	if got := total(t, result, "S1"); !got.Equal(decimal.NewFromInt(135)) {
		t.Errorf("S1 total = %s, want 135", got)
	}
	if got := total(t, result, "S2"); !got.Equal(decimal.NewFromInt(80)) {
		t.Errorf("S2 total = %s, want 80", got)
	}
	if got := total(t, result, "S3"); !got.Equal(decimal.NewFromInt(200)) {
		t.Errorf("S3 total = %s, want 200", got)
	}
	if result.EntryCount != 5 {
		t.Errorf("EntryCount = %d, want 5", result.EntryCount)
	}

	// Conservation: the sum of per-order totals equals the sum of all
	// entry amounts.
	sum := decimal.Zero
	for _, st := range result.Totals {
		sum = sum.Add(st.TotalAmount)
	}
	if !sum.Equal(decimal.NewFromInt(415)) {
		t.Errorf("sum of totals = %s, want 415", sum)
	}
}

func TestAggregateNormalizesOrderIDs(t *testing.T) {
	agg, _ := New(nil)

	result := agg.Aggregate([]PaymentSheet{
		paymentSheet(t, "p.csv", "Sheet1", [][]string{
			{"Sub Order No", "Final Settlement Amount"},
			{" s1 ", "100"},
			{"S1", "50"},
		}),
	})

	if len(result.Totals) != 1 {
		t.Fatalf("Totals has %d keys, want 1", len(result.Totals))
	}
	if got := total(t, result, "S1"); !got.Equal(decimal.NewFromInt(150)) {
		t.Errorf("S1 total = %s, want 150", got)
	}
}

func TestAggregateDropsAndRecovers(t *testing.T) {
	agg, _ := New(nil)

	result := agg.Aggregate([]PaymentSheet{
		paymentSheet(t, "p.csv", "Sheet1", [][]string{
			{"Sub Order No", "Final Settlement Amount"},
			{"", "100"},          // no order id: dropped
			{"S1", "not a sum"},  // unparseable: recovered as zero
			{"S1", "40"},
			{"", "", ""},         // blank row: ignored entirely
		}),
	})

	if result.DroppedRows != 1 {
		t.Errorf("DroppedRows = %d, want 1", result.DroppedRows)
	}
	if result.RecoveredAmounts != 1 {
		t.Errorf("RecoveredAmounts = %d, want 1", result.RecoveredAmounts)
	}
	if result.EntryCount != 2 {
		t.Errorf("EntryCount = %d, want 2", result.EntryCount)
	}
	if got := total(t, result, "S1"); !got.Equal(decimal.NewFromInt(40)) {
		t.Errorf("S1 total = %s, want 40", got)
	}
}

func TestAggregateAdsOverhead(t *testing.T) {
	agg, _ := New(nil)

	result := agg.Aggregate([]PaymentSheet{
		paymentSheet(t, "p.csv", "Sheet1", [][]string{
			{"Sub Order No", "Final Settlement Amount", "Total Ads Cost"},
			{"S1", "100", "-120"},
			{"S2", "50", "-80"},
			{"", "", "-50"}, // ads accrues even without an order id
		}),
		paymentSheet(t, "q.csv", "Sheet1", [][]string{
			{"Sub Order No", "Final Settlement Amount", "Total Ads Cost"},
			{"S3", "75", "60"},
			{"S4", "25", "0"},
		}),
	})

	// Each sheet's column total is taken as an absolute deduction:
	// |-250| + |60| = 310.
	if !result.AdsOverhead.Equal(decimal.NewFromInt(310)) {
		t.Errorf("AdsOverhead = %s, want 310", result.AdsOverhead)
	}
	if result.DroppedRows != 1 {
		t.Errorf("DroppedRows = %d, want 1", result.DroppedRows)
	}
}

func TestAggregateNoAdsColumn(t *testing.T) {
	agg, _ := New(nil)

	result := agg.Aggregate([]PaymentSheet{
		paymentSheet(t, "p.csv", "Sheet1", [][]string{
			{"Sub Order No", "Final Settlement Amount"},
			{"S1", "100"},
			{"S2", "50"},
		}),
	})

	if !result.AdsOverhead.IsZero() {
		t.Errorf("AdsOverhead = %s, want 0", result.AdsOverhead)
	}
}

func TestStatusPrecedenceTimestamp(t *testing.T) {
	agg, err := New(&Config{StatusPrecedence: PrecedenceTimestamp})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	// The older sheet is processed last, but the newer timestamp still wins.
	result := agg.Aggregate([]PaymentSheet{
		paymentSheet(t, "may.csv", "Sheet1", [][]string{
			{"Sub Order No", "Final Settlement Amount", "Order Status", "Settlement Date"},
			{"S1", "100", "Delivered", "2024-05-10"},
			{"S9", "10", "Delivered", "2024-05-11"},
		}),
		paymentSheet(t, "april.csv", "Sheet1", [][]string{
			{"Sub Order No", "Final Settlement Amount", "Order Status", "Settlement Date"},
			{"S1", "20", "Shipped", "2024-04-02"},
			{"S9", "10", "Shipped", "2024-04-03"},
		}),
	})

	st := result.Totals["S1"]
	if st == nil {
		t.Fatal("no total for S1")
	}
	if st.LatestStatus != "Delivered" {
		t.Errorf("LatestStatus = %q, want %q", st.LatestStatus, "Delivered")
	}
	if !st.TotalAmount.Equal(decimal.NewFromInt(120)) {
		t.Errorf("TotalAmount = %s, want 120", st.TotalAmount)
	}
}

func TestStatusPrecedenceTimestampFallsBackToOrder(t *testing.T) {
	agg, _ := New(&Config{StatusPrecedence: PrecedenceTimestamp})

	// No timestamps anywhere: among timestampless entries the last one
	// processed wins.
	result := agg.Aggregate([]PaymentSheet{
		paymentSheet(t, "a.csv", "Sheet1", [][]string{
			{"Sub Order No", "Final Settlement Amount", "Order Status"},
			{"S1", "10", "Shipped"},
			{"S9", "10", "Shipped"},
		}),
		paymentSheet(t, "b.csv", "Sheet1", [][]string{
			{"Sub Order No", "Final Settlement Amount", "Order Status"},
			{"S1", "10", "Delivered"},
			{"S9", "10", "Delivered"},
		}),
	})

	if got := result.Totals["S1"].LatestStatus; got != "Delivered" {
		t.Errorf("LatestStatus = %q, want %q", got, "Delivered")
	}
}

func TestStatusPrecedenceTimestampedBeatsTimestampless(t *testing.T) {
	agg, _ := New(&Config{StatusPrecedence: PrecedenceTimestamp})

	result := agg.Aggregate([]PaymentSheet{
		paymentSheet(t, "a.csv", "Sheet1", [][]string{
			{"Sub Order No", "Final Settlement Amount", "Order Status", "Settlement Date"},
			{"S1", "10", "Delivered", "2024-04-02"},
			{"S9", "10", "Delivered", "2024-04-02"},
		}),
		paymentSheet(t, "b.csv", "Sheet1", [][]string{
			{"Sub Order No", "Final Settlement Amount", "Order Status"},
			{"S1", "10", "Return Pending"},
			{"S9", "10", "Return Pending"},
		}),
	})

	if got := result.Totals["S1"].LatestStatus; got != "Delivered" {
		t.Errorf("LatestStatus = %q, want %q", got, "Delivered")
	}
}

func TestStatusPrecedenceFileOrder(t *testing.T) {
	agg, err := New(&Config{StatusPrecedence: PrecedenceFileOrder})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	result := agg.Aggregate([]PaymentSheet{
		paymentSheet(t, "may.csv", "Sheet1", [][]string{
			{"Sub Order No", "Final Settlement Amount", "Order Status", "Settlement Date"},
			{"S1", "100", "Delivered", "2024-05-10"},
			{"S9", "10", "Delivered", "2024-05-11"},
		}),
		paymentSheet(t, "april.csv", "Sheet1", [][]string{
			{"Sub Order No", "Final Settlement Amount", "Order Status", "Settlement Date"},
			{"S1", "20", "Shipped", "2024-04-02"},
			{"S9", "10", "Shipped", "2024-04-03"},
		}),
	})

	// File order ignores timestamps: the last processed entry wins.
	if got := result.Totals["S1"].LatestStatus; got != "Shipped" {
		t.Errorf("LatestStatus = %q, want %q", got, "Shipped")
	}
}

func TestStatusBlankNeverOverwrites(t *testing.T) {
	agg, _ := New(&Config{StatusPrecedence: PrecedenceFileOrder})

	result := agg.Aggregate([]PaymentSheet{
		paymentSheet(t, "a.csv", "Sheet1", [][]string{
			{"Sub Order No", "Final Settlement Amount", "Order Status"},
			{"S1", "10", "Delivered"},
			{"S1", "5", ""},
		}),
	})

	if got := result.Totals["S1"].LatestStatus; got != "Delivered" {
		t.Errorf("LatestStatus = %q, want %q", got, "Delivered")
	}
}

func TestConfigValidate(t *testing.T) {
	if err := (&Config{StatusPrecedence: "random"}).Validate(); err == nil {
		t.Error("invalid precedence passed validation")
	}
	if _, err := New(&Config{StatusPrecedence: "random"}); err == nil {
		t.Error("New accepted an invalid precedence")
	}
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("default config failed validation: %v", err)
	}
}
