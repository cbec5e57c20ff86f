package service

import (
	"fmt"
	"strings"

	"github.com/pmonasterio/vaquita/internal/database/repository"
)

// FormatPaymentSummary renders a reconciliation outcome for the payer.
// Pure function of its inputs, no I/O.
func FormatPaymentSummary(paid []repository.Item, remainder *repository.Item) string {
	if len(paid) == 0 {
		return "❌ Could not process the payment. No matching items were found."
	}

	lines := []string{"✅ Payment processed successfully\n", "Items paid:"}
	total := 0.0
	for _, it := range paid {
		lines = append(lines, fmt.Sprintf("• %s: $%.2f", it.Description, it.Total))
		total += it.Total
	}
	lines = append(lines, fmt.Sprintf("\nTotal: $%.2f", total))

	if remainder != nil {
		lines = append(lines, fmt.Sprintf("\n⚠️ Payment was insufficient. Created an item for the outstanding balance: $%.2f", remainder.Total))
		lines = append(lines, "Please complete the remaining payment.")
	}
	return strings.Join(lines, "\n")
}
