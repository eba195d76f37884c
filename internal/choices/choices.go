// Package choices republishes the bookable-date selector shown on the intake
// form. The label list is rebuilt from the ledger window and replaces the
// provider's list wholesale; partial edits are never attempted.
package choices

import (
	"context"
	"fmt"
	"sort"

	"github.com/mvillareal/intake-scheduler/internal/dates"
)

// Publisher replaces the form's full choice list with labels.
type Publisher interface {
	ReplaceAll(ctx context.Context, labels []string) error
}

// BuildLabels renders one label per bookable date with remaining capacity,
// in ascending date order. availability maps yyyy-mm-dd to the minimum
// left-count across categories; dates with zero left or failing validation
// are omitted so the form cannot offer them.
func BuildLabels(ctx context.Context, availability map[string]int, validator *dates.Validator) []string {
	keys := make([]string, 0, len(availability))
	for k := range availability {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	labels := make([]string, 0, len(keys))
	for _, k := range keys {
		left := availability[k]
		if left <= 0 {
			continue
		}
		d, err := dates.Parse(k)
		if err != nil {
			continue
		}
		if !validator.IsValidBusinessDate(ctx, d) {
			continue
		}
		labels = append(labels, Label(d, left))
	}
	return labels
}

// Label renders a single choice. The machine-readable date rides along in
// brackets so submissions can be parsed back with dates.ExtractDate.
func Label(d dates.Date, left int) string {
	noun := "slots"
	if left == 1 {
		noun = "slot"
	}
	return fmt.Sprintf("%s - %d %s left [%s]", d.DisplayLabel(), left, noun, d)
}
