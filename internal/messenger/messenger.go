// Package messenger delivers outbound WhatsApp messages. Delivery is
// fire-and-forget from the caller's point of view: failures are logged and
// never feed back into ledger state.
package messenger

import "context"

// Sender sends a text message to a phone number.
type Sender interface {
	SendText(ctx context.Context, to, body string) error
}
