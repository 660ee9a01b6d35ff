package arr

import (
	"strings"

	"golang.org/x/text/cases"
)

// NormalizeLabel returns the comparison key for a tag label: Unicode case
// folded with runs of whitespace collapsed to one space.
func NormalizeLabel(label string) string {
	// Casers are stateful and not safe to share across goroutines.
	return strings.Join(strings.Fields(cases.Fold().String(label)), " ")
}
