// Package schema discovers semantically-named columns inside arbitrary
// tabular sheets whose headers are unknown, possibly offset by a banner row,
// and named inconsistently across marketplace exports.
//
// Matching is an explicit, ordered keyword table over normalized header
// names with a deterministic first-match rule: columns are scanned in sheet
// order and the first column whose normalized name contains any keyword for
// a field is accepted.
package schema

import (
	"strings"
	"unicode"

	"marketplace-profit-reconciler/internal/tabular"
	"marketplace-profit-reconciler/pkg/errors"
	"marketplace-profit-reconciler/pkg/logger"
)

// Field identifies a semantic column the engine cares about.
type Field string

const (
	FieldOrderID    Field = "order_id"
	FieldStatus     Field = "status"
	FieldSKU        Field = "sku"
	FieldQuantity   Field = "quantity"
	FieldSettlement Field = "settlement_amount"
	FieldAdsCost    Field = "ads_cost"
	FieldObservedAt Field = "observed_at"
	FieldUnitCost   Field = "unit_cost"
)

// fieldKeywords is the ordered keyword table. Keywords are compared against
// normalized header names via substring containment.
var fieldKeywords = map[Field][]string{
	FieldOrderID:    {"suborder", "orderid", "orderno"},
	FieldStatus:     {"orderstatus", "livestatus", "status"},
	FieldSKU:        {"sku", "productcode", "stylecode"},
	FieldQuantity:   {"quantity", "qty"},
	FieldSettlement: {"finalsettlement", "settlementamount", "payoutamount"},
	FieldAdsCost:    {"totaladscost", "adscost", "adcost"},
	FieldObservedAt: {"settlementdate", "paymentdate", "payoutdate", "date"},
	FieldUnitCost:   {"unitcost", "costprice", "purchaseprice", "cost"},
}

// MinDataRows is the minimum number of data rows for a sheet to be treated as
// a data sheet. Shorter sheets are disclaimers or instructions and are
// skipped without error.
const MinDataRows = 2

// DefaultSearchDepth is the number of header-row offsets tried before giving
// up. Depth 2 handles exports with a banner or title row above the header.
const DefaultSearchDepth = 2

// NormalizeHeader lowercases a header name and strips whitespace,
// underscores, and punctuation, so that "Sub Order No " and "SUB_ORDER.NO"
// compare equal.
func NormalizeHeader(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Column is a resolved concrete column.
type Column struct {
	Index  int
	Header string
}

// Mapping maps semantic fields to concrete columns of one sheet under a
// chosen header offset.
type Mapping struct {
	HeaderOffset int
	Headers      []string
	Columns      map[Field]Column
}

// Has reports whether the field was resolved.
func (m *Mapping) Has(f Field) bool {
	_, ok := m.Columns[f]
	return ok
}

// Index returns the column index for the field, or -1 when unresolved.
func (m *Mapping) Index(f Field) int {
	if col, ok := m.Columns[f]; ok {
		return col.Index
	}
	return -1
}

// Cell returns the value of the field's column in the given row, and whether
// the field is mapped at all.
func (m *Mapping) Cell(row []string, f Field) (string, bool) {
	col, ok := m.Columns[f]
	if !ok {
		return "", false
	}
	return tabular.Cell(row, col.Index), true
}

// Outcome classifies the result of resolving one sheet.
type Outcome string

const (
	// OutcomeResolved means the mandatory fields were located.
	OutcomeResolved Outcome = "resolved"
	// OutcomeSkipped means the sheet has too few data rows to be a data
	// sheet and was ignored without error.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeFailed means a mandatory field could not be located after all
	// header-offset attempts.
	OutcomeFailed Outcome = "failed"
)

// Resolution is the explicit per-sheet result aggregated by the caller.
// There is no silent empty return: every sheet examined produces exactly one
// Resolution.
type Resolution struct {
	Source  string
	Sheet   string
	Outcome Outcome
	Mapping *Mapping
	Err     error
}

// Resolve locates the required and optional semantic fields in a sheet.
//
// Required fields are mandatory: if any of them cannot be located, the
// resolver retries with the header assumed one row lower (up to searchDepth
// attempts) and then fails with a SchemaNotFound error naming the columns it
// actually saw. Optional fields degrade gracefully: an unresolved optional
// field is simply absent from the mapping.
func Resolve(source string, sheet *tabular.Sheet, required, optional []Field, searchDepth int) Resolution {
	log := logger.GetGlobalLogger().WithComponent("schema").WithFields(logger.Fields{
		"source": source,
		"sheet":  sheet.Name,
	})

	if searchDepth < 1 {
		searchDepth = 1
	}

	if len(sheet.DataRows(0)) < MinDataRows {
		log.WithField("rows", sheet.RowCount()).Debug("Sheet has too few data rows, skipping")
		return Resolution{Source: source, Sheet: sheet.Name, Outcome: OutcomeSkipped}
	}

	wanted := make([]Field, 0, len(required)+len(optional))
	wanted = append(wanted, required...)
	wanted = append(wanted, optional...)

	var firstHeaders []string
	var firstMissing Field

	for offset := 0; offset < searchDepth; offset++ {
		headers := sheet.Header(offset)
		if headers == nil || len(sheet.DataRows(offset)) < MinDataRows {
			break
		}

		mapping := mapHeaders(headers, wanted)
		mapping.HeaderOffset = offset

		missing := missingField(mapping, required)
		if missing == "" {
			log.WithFields(logger.Fields{
				"header_offset": offset,
				"fields":        len(mapping.Columns),
			}).Debug("Resolved sheet schema")
			return Resolution{Source: source, Sheet: sheet.Name, Outcome: OutcomeResolved, Mapping: mapping}
		}

		// The first attempted header row is what the operator sees at the
		// top of the sheet; report that one on failure.
		if firstHeaders == nil {
			firstHeaders = headers
			firstMissing = missing
		}
		log.WithFields(logger.Fields{
			"header_offset": offset,
			"missing_field": string(missing),
		}).Debug("Mandatory field not found at this header offset")
	}

	err := errors.SchemaNotFoundError(source, sheet.Name, string(firstMissing), trimHeaders(firstHeaders))
	return Resolution{Source: source, Sheet: sheet.Name, Outcome: OutcomeFailed, Err: err}
}

// mapHeaders scans columns in sheet order and assigns each wanted field the
// first column whose normalized name contains any of its keywords.
func mapHeaders(headers []string, wanted []Field) *Mapping {
	normalized := make([]string, len(headers))
	for i, h := range headers {
		normalized[i] = NormalizeHeader(h)
	}

	mapping := &Mapping{
		Headers: headers,
		Columns: make(map[Field]Column, len(wanted)),
	}

	for _, field := range wanted {
		keywords := fieldKeywords[field]
		for idx, name := range normalized {
			if name == "" {
				continue
			}
			if containsAny(name, keywords) {
				mapping.Columns[field] = Column{Index: idx, Header: strings.TrimSpace(headers[idx])}
				break
			}
		}
	}

	return mapping
}

func containsAny(name string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(name, kw) {
			return true
		}
	}
	return false
}

func missingField(mapping *Mapping, required []Field) Field {
	for _, f := range required {
		if !mapping.Has(f) {
			return f
		}
	}
	return ""
}

func trimHeaders(headers []string) []string {
	out := make([]string, 0, len(headers))
	for _, h := range headers {
		h = strings.TrimSpace(h)
		if h != "" {
			out = append(out, h)
		}
	}
	return out
}
