package filter

import (
	"math"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"estate_crm_backend/internal/pipeline/domain"
)

// Apply narrows each column's items to those matching spec. The column
// layout and the relative order of surviving items are preserved, and the
// input is never modified.
func Apply(columns []domain.Column, spec Spec) []domain.Column {
	out := make([]domain.Column, len(columns))
	for i, col := range columns {
		items := make([]domain.Lead, 0, len(col.Items))
		for _, item := range col.Items {
			if Matches(item, spec) {
				items = append(items, item)
			}
		}
		out[i] = domain.Column{Status: col.Status, Label: col.Label, Items: items}
	}
	return out
}

// Matches reports whether item satisfies every active criterion of spec.
// The status criterion is checked even though board columns already group
// by status.
func Matches(item domain.Lead, spec Spec) bool {
	if spec.Status != nil && item.Status != *spec.Status {
		return false
	}
	if len(spec.Tags) > 0 && !hasAnyTag(item.Tags, spec.Tags) {
		return false
	}
	if spec.AssignedTo != nil {
		want := *spec.AssignedTo
		if item.AssignedTo != want && item.AssignedToName != want {
			return false
		}
	}
	if spec.MinBudget != "" || spec.MaxBudget != "" {
		if !budgetInRange(item.Budget, spec.MinBudget, spec.MaxBudget) {
			return false
		}
	}
	if spec.Location != "" &&
		!strings.Contains(strings.ToLower(item.DesiredLocation), strings.ToLower(spec.Location)) {
		return false
	}
	if spec.PurchaseTimeframe != "" && item.PurchaseTimeframe != spec.PurchaseTimeframe {
		return false
	}
	if spec.PropertyType != "" && item.PropertyType != spec.PropertyType {
		return false
	}
	return true
}

func hasAnyTag(have, want []string) bool {
	for _, tag := range want {
		if slices.Contains(have, tag) {
			return true
		}
	}
	return false
}

// budgetInRange requires a budget on the item; an unset min is 0 and an
// unset max is unbounded.
func budgetInRange(budget, minBudget, maxBudget string) bool {
	if budget == "" {
		return false
	}
	value := ExtractNumericValue(budget)
	lo := int64(0)
	if minBudget != "" {
		lo = ExtractNumericValue(minBudget)
	}
	hi := int64(math.MaxInt64)
	if maxBudget != "" {
		hi = ExtractNumericValue(maxBudget)
	}
	return value >= lo && value <= hi
}

// ExtractNumericValue keeps only the decimal digits of value and parses
// them, so "1 200 000€" yields 1200000. No digits yields 0; a digit run
// too long for int64 saturates at math.MaxInt64.
func ExtractNumericValue(value string) int64 {
	var digits strings.Builder
	for _, r := range value {
		if r <= unicode.MaxASCII && unicode.IsDigit(r) {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return 0
	}
	n, err := strconv.ParseInt(digits.String(), 10, 64)
	if err != nil {
		return math.MaxInt64
	}
	return n
}
