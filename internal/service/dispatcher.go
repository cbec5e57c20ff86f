package service

import (
	"context"
	"errors"
	"log/slog"
	"regexp"

	"github.com/pmonasterio/vaquita/internal/database/repository"
	"github.com/pmonasterio/vaquita/internal/messenger"
	"github.com/pmonasterio/vaquita/internal/metrics"
	"github.com/pmonasterio/vaquita/internal/oracle"
)

// InboundMessage is a parsed WhatsApp message. Webhook payload decoding
// and OCR happen upstream; exactly one of Text, Receipt, Transfer carries
// the content.
type InboundMessage struct {
	From     string    `json:"from"`
	Text     string    `json:"text,omitempty"`
	Receipt  *Receipt  `json:"receipt,omitempty"`
	Transfer *Transfer `json:"transfer,omitempty"`
}

// Transfer is an OCR-derived bank transfer: the amount that moved plus
// whatever free text accompanied it.
type Transfer struct {
	Amount float64 `json:"amount"`
	Note   string  `json:"note"`
}

// shareCodeRe finds a session share code (a UUID) anywhere in a forwarded
// join message.
var shareCodeRe = regexp.MustCompile(`[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)

// Dispatcher routes inbound messages to the matching service and sends
// the replies. Sending is fire-and-forget: a failed delivery is logged
// and never rolls back ledger state.
type Dispatcher struct {
	Provider   oracle.Provider
	Matcher    *Matcher
	Reconciler *Reconciler
	Invoices   *InvoiceService
	Sessions   *SessionService
	Agent      *AgentService
	Sender     messenger.Sender
}

// Handle processes one inbound message end to end.
func (d *Dispatcher) Handle(ctx context.Context, msg InboundMessage) {
	switch {
	case msg.Transfer != nil:
		metrics.MessagesTotal.WithLabelValues("transfer").Inc()
		d.send(ctx, msg.From, d.handleTransfer(ctx, msg.From, *msg.Transfer))
	case msg.Receipt != nil:
		metrics.MessagesTotal.WithLabelValues("receipt").Inc()
		for _, reply := range d.handleReceipt(ctx, msg.From, *msg.Receipt) {
			d.send(ctx, msg.From, reply)
		}
	default:
		metrics.MessagesTotal.WithLabelValues("text").Inc()
		d.send(ctx, msg.From, d.handleText(ctx, msg.From, msg.Text))
	}
}

// handleText joins a session when the text carries a share code, and
// otherwise treats the text as a bot command.
func (d *Dispatcher) handleText(ctx context.Context, from, text string) string {
	if code := shareCodeRe.FindString(text); code != "" {
		session, err := d.Sessions.Join(ctx, from, code)
		switch {
		case err == nil:
			return "✅ You joined " + session.Description + "."
		case errors.Is(err, ErrSessionClosed):
			return "That session is already closed."
		case errors.Is(err, repository.ErrNotFound):
			return "I could not find an account or session for that code."
		default:
			slog.Error("dispatcher: join failed", "err", err)
			return GenericFailureReply
		}
	}

	reply, err := d.Agent.HandleCommand(ctx, from, text)
	if err != nil {
		slog.Error("dispatcher: command failed", "err", err)
		return GenericFailureReply
	}
	return reply
}

// handleReceipt books the receipt as an invoice and returns the
// confirmation, the share instruction, and the forwardable join message.
func (d *Dispatcher) handleReceipt(ctx context.Context, from string, receipt Receipt) []string {
	invoice, items, err := d.Invoices.CreateFromReceipt(ctx, from, receipt)
	switch {
	case errors.Is(err, repository.ErrTooManyActiveSessions):
		return []string{TooManyActiveSessionsReply}
	case errors.Is(err, repository.ErrNoActiveSession):
		return []string{NoActiveSessionReply}
	case errors.Is(err, repository.ErrNotFound):
		return []string{UnknownUserReply}
	case err != nil:
		slog.Error("dispatcher: receipt ingest failed", "err", err)
		return []string{GenericFailureReply}
	}

	session, err := d.Sessions.Get(ctx, invoice.SessionID)
	if err != nil {
		slog.Error("dispatcher: session lookup failed", "session_id", invoice.SessionID, "err", err)
		return []string{BuildInvoiceCreatedMessage(invoice, items)}
	}
	return []string{
		BuildInvoiceCreatedMessage(invoice, items),
		ShareInstructionReply,
		BuildShareCodeMessage(session),
	}
}

// handleTransfer runs the payment pipeline: extract the intent from the
// transfer note, match it against the payer's session, reconcile, and
// render the summary.
func (d *Dispatcher) handleTransfer(ctx context.Context, from string, transfer Transfer) string {
	intent := d.extractIntent(ctx, transfer.Note)

	match, err := d.Matcher.MatchPayment(ctx, from, intent, transfer.Amount)
	if err != nil {
		if errors.Is(err, repository.ErrTooManyActiveSessions) {
			return TooManyActiveSessionsReply
		}
		slog.Error("dispatcher: matching failed", "err", err)
		return GenericFailureReply
	}

	outcome, err := d.Reconciler.Reconcile(ctx, match, from)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return UnknownUserReply
		}
		slog.Error("dispatcher: reconciliation failed", "err", err)
		return GenericFailureReply
	}
	metrics.ReconciliationsTotal.WithLabelValues(match.PaymentStatus).Inc()
	return FormatPaymentSummary(outcome.PaidItems, outcome.Remainder)
}

// extractIntent degrades an oracle failure into a non-payment intent so
// the pipeline lands on the apology path instead of aborting.
func (d *Dispatcher) extractIntent(ctx context.Context, note string) oracle.PaymentIntent {
	intent, err := d.Provider.ExtractIntent(ctx, note)
	if err != nil {
		metrics.OracleFailures.Inc()
		slog.Error("dispatcher: intent extraction failed", "err", err)
		return oracle.PaymentIntent{Description: "error: " + err.Error()}
	}
	return intent
}

func (d *Dispatcher) send(ctx context.Context, to, body string) {
	if body == "" {
		return
	}
	if err := d.Sender.SendText(ctx, to, body); err != nil {
		slog.Error("dispatcher: send failed", "to", to, "err", err)
	}
}
