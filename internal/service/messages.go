package service

import (
	"fmt"
	"strings"

	"github.com/pmonasterio/vaquita/internal/database/repository"
)

// Replies shared across the message pipeline.
const (
	NoActiveSessionReply       = "There is no active session for this user."
	TooManyActiveSessionsReply = "You have more than one active session. Close the extra ones and try again."
	UnknownUserReply           = "I don't recognize this phone number yet."
	ShareInstructionReply      = "To invite more people to this session, forward the following message:"
	GenericFailureReply        = "Something went wrong on our side. Please try again."
)

// BuildShareCodeMessage renders the forwardable join message. The code is
// what the dispatcher looks for in inbound text to join a session.
func BuildShareCodeMessage(session repository.Session) string {
	return fmt.Sprintf("Join my vaquita session %q! Code: %s", session.Description, session.ShareCode)
}

// BuildInvoiceCreatedMessage confirms a booked receipt, listing every
// created item with its id so people can refer to them later.
func BuildInvoiceCreatedMessage(invoice repository.Invoice, items []repository.Item) string {
	lines := []string{
		fmt.Sprintf("🧾 Invoice %d — %s", invoice.ID, invoice.Description),
		"Items:",
	}
	total := 0.0
	for _, it := range items {
		lines = append(lines, fmt.Sprintf("• (%d) %s: $%.2f", it.ID, it.Description, it.Total))
		total += it.Total
	}
	lines = append(lines, fmt.Sprintf("\nTotal with tip: $%.2f", total))
	return strings.Join(lines, "\n")
}
