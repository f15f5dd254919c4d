package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		ok       bool
	}{
		{"plain", "120.50", "120.5", true},
		{"integer", "30", "30", true},
		{"negative", "-45.25", "-45.25", true},
		{"thousands separator", "1,234.56", "1234.56", true},
		{"rupee symbol", "₹ 1,234.56", "1234.56", true},
		{"dollar symbol", "$99.99", "99.99", true},
		{"leading and trailing spaces", "  250.00  ", "250", true},
		{"empty", "", "0", false},
		{"whitespace only", "   ", "0", false},
		{"text", "not available", "0", false},
		{"mixed garbage", "12abc", "0", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseAmount(tt.input)
			if ok != tt.ok {
				t.Errorf("ParseAmount(%q) ok = %v, want %v", tt.input, ok, tt.ok)
			}
			expected, _ := decimal.NewFromString(tt.expected)
			if !got.Equal(expected) {
				t.Errorf("ParseAmount(%q) = %s, want %s", tt.input, got, expected)
			}
		})
	}
}

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int
	}{
		{"plain", "2", 2},
		{"excel float", "2.0", 2},
		{"zero", "0", 0},
		{"missing defaults to one", "", 1},
		{"whitespace defaults to one", "  ", 1},
		{"text defaults to one", "two", 1},
		{"negative defaults to one", "-3", 1},
		{"fractional defaults to one", "1.5", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseQuantity(tt.input); got != tt.expected {
				t.Errorf("ParseQuantity(%q) = %d, want %d", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNormalizeOrderID(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{" s123 ", "S123"},
		{"S123", "S123"},
		{"s123", "S123"},
		{"", ""},
		{"  ", ""},
	}

	for _, tt := range tests {
		if got := NormalizeOrderID(tt.input); got != tt.expected {
			t.Errorf("NormalizeOrderID(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestNormalizeStatus(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Delivered", "DELIVERED"},
		{" delivered ", "DELIVERED"},
		{"Lost-In-Transit", "LOSTINTRANSIT"},
		{"Door Step Exchanged", "DOORSTEPEXCHANGED"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := NormalizeStatus(tt.input); got != tt.expected {
			t.Errorf("NormalizeStatus(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestCostBook(t *testing.T) {
	book := NewCostBook(decimal.NewFromInt(40))
	book.Set("A1", decimal.NewFromInt(50))
	book.Set(" b2 ", decimal.NewFromInt(60))

	tests := []struct {
		name     string
		sku      string
		expected int64
	}{
		{"exact", "a1", 50},
		{"case insensitive", "A1", 50},
		{"whitespace insensitive", " A1 ", 50},
		{"normalized at load", "B2", 60},
		{"missing falls back to default", "UNKNOWN", 40},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := book.UnitCost(tt.sku); !got.Equal(decimal.NewFromInt(tt.expected)) {
				t.Errorf("UnitCost(%q) = %s, want %d", tt.sku, got, tt.expected)
			}
		})
	}

	if book.Len() != 2 {
		t.Errorf("Len() = %d, want 2", book.Len())
	}
}

func TestCostBookZeroDefault(t *testing.T) {
	book := NewCostBook(decimal.Zero)
	if got := book.UnitCost("anything"); !got.IsZero() {
		t.Errorf("UnitCost with zero default = %s, want 0", got)
	}
}

func TestParseObservedAt(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected *time.Time
	}{
		{"iso date", "2024-03-15", timePtr(2024, 3, 15)},
		{"indian date", "15-03-2024", timePtr(2024, 3, 15)},
		{"empty", "", nil},
		{"garbage", "soon", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseObservedAt(tt.input)
			if tt.expected == nil {
				if got != nil {
					t.Errorf("ParseObservedAt(%q) = %v, want nil", tt.input, got)
				}
				return
			}
			if got == nil || !got.Equal(*tt.expected) {
				t.Errorf("ParseObservedAt(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func timePtr(year int, month time.Month, day int) *time.Time {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestOrderRecordValidate(t *testing.T) {
	valid := OrderRecord{OrderID: "S1", SKU: "A1", Quantity: 1}
	if err := valid.Validate(); err != nil {
		t.Errorf("valid record failed validation: %v", err)
	}

	empty := OrderRecord{Quantity: 1}
	if err := empty.Validate(); err == nil {
		t.Error("record without order id passed validation")
	}

	negative := OrderRecord{OrderID: "S1", Quantity: -1}
	if err := negative.Validate(); err == nil {
		t.Error("record with negative quantity passed validation")
	}
}
