package service

import (
	"context"
	"errors"
	"log/slog"
	"math"

	"github.com/pmonasterio/vaquita/internal/database/repository"
	"github.com/pmonasterio/vaquita/internal/metrics"
	"github.com/pmonasterio/vaquita/internal/oracle"
)

// matchConfidenceThreshold is the floor below which an oracle match is
// treated as no-match.
const matchConfidenceThreshold = 0.5

// moneyEpsilon tolerates floating rounding when classifying payments.
const moneyEpsilon = 0.01

// Payment statuses.
const (
	PaymentExact     = "exact"
	PaymentOverpaid  = "overpaid"
	PaymentUnderpaid = "underpaid"
)

// ItemMatch links one accepted claim to a ledger item.
type ItemMatch struct {
	ItemID            int64
	InvoiceID         int64
	Description       string
	UnitPrice         float64
	Total             float64
	MatchedFromIntent string
}

// MatchResult is the outcome of resolving a payment intent against the
// ledger. MatchedItems preserves claim input order.
type MatchResult struct {
	MatchedItems   []ItemMatch
	ExpectedAmount float64
	ActualAmount   float64
	Difference     float64
	PaymentStatus  string
}

// Matcher resolves payment intents against unpaid items in the payer's
// active session. Read-only: it never mutates the ledger.
type Matcher struct {
	Users    *repository.UserRepo
	Sessions *repository.SessionRepo
	Items    *repository.ItemRepo
	Provider oracle.Provider
}

// MatchPayment runs the full matching pipeline: candidate lookup, oracle
// matching, and acceptance policy. Oracle failures degrade to an empty
// match set; ErrTooManyActiveSessions is surfaced so the caller can ask
// the user to clarify.
func (m *Matcher) MatchPayment(ctx context.Context, payerPhone string, intent oracle.PaymentIntent, amount float64) (MatchResult, error) {
	candidates, err := m.unpaidCandidates(ctx, payerPhone)
	if err != nil {
		return MatchResult{}, err
	}
	resp := m.matchItems(ctx, intent, candidates)
	return m.buildResult(ctx, resp, amount)
}

// unpaidCandidates returns every unpaid item in the payer's active session
// in creation order. A missing user or absent session yields an empty set;
// multiple active sessions propagate for clarification.
func (m *Matcher) unpaidCandidates(ctx context.Context, payerPhone string) ([]repository.Item, error) {
	user, err := m.Users.GetByPhone(ctx, payerPhone)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			slog.Warn("matcher: unknown payer phone", "phone", payerPhone)
			return nil, nil
		}
		return nil, err
	}
	session, err := m.Sessions.GetActiveByOwner(ctx, user.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNoActiveSession) {
			slog.Warn("matcher: no active session", "user_id", user.ID)
			return nil, nil
		}
		return nil, err
	}
	return m.Items.ListUnpaidBySession(ctx, session.ID)
}

// matchItems delegates to the oracle with the full candidate set. Empty
// claims, no candidates, or oracle failure all produce an empty response;
// nothing downstream distinguishes them.
func (m *Matcher) matchItems(ctx context.Context, intent oracle.PaymentIntent, candidates []repository.Item) oracle.MatchResponse {
	if !intent.IsPayment || len(intent.ItemsPaid) == 0 {
		return oracle.MatchResponse{}
	}
	if len(candidates) == 0 {
		slog.Warn("matcher: no unpaid items available to match")
		return oracle.MatchResponse{}
	}

	req := oracle.MatchRequest{Claims: intent.ItemsPaid}
	for _, it := range candidates {
		req.Candidates = append(req.Candidates, oracle.CandidateItem{
			ID:          it.ID,
			Description: it.Description,
			UnitPrice:   it.UnitPrice,
			Total:       it.Total,
			IsPaid:      it.IsPaid,
		})
	}

	resp, err := m.Provider.MatchItems(ctx, req)
	if err != nil {
		metrics.OracleFailures.Inc()
		slog.Error("matcher: oracle failure", "err", err)
		return oracle.MatchResponse{}
	}
	return resp
}

// buildResult applies the acceptance policy to the oracle's choices:
// reject confidence below threshold, degrade duplicate item ids to
// no-match keeping the first claim, drop matches outside the first
// accepted match's invoice, and skip rows that vanished. Accepted matches
// stay in claim input order.
func (m *Matcher) buildResult(ctx context.Context, resp oracle.MatchResponse, amount float64) (MatchResult, error) {
	var (
		matched      []ItemMatch
		expected     float64
		firstInvoice int64
		seen         = map[int64]struct{}{}
	)
	for _, choice := range resp.Matches {
		if choice.MatchedItemID == nil || choice.Confidence < matchConfidenceThreshold {
			slog.Warn("matcher: skipping low confidence match",
				"claim", choice.IntentDescription, "confidence", choice.Confidence)
			continue
		}
		id := *choice.MatchedItemID
		if _, dup := seen[id]; dup {
			slog.Warn("matcher: duplicate item id, keeping first claim", "item_id", id)
			continue
		}

		item, err := m.Items.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				slog.Warn("matcher: matched item no longer exists", "item_id", id)
				continue
			}
			return MatchResult{}, err
		}
		if firstInvoice == 0 {
			firstInvoice = item.InvoiceID
		} else if item.InvoiceID != firstInvoice {
			slog.Warn("matcher: dropping match outside first invoice",
				"item_id", id, "invoice_id", item.InvoiceID, "first_invoice_id", firstInvoice)
			continue
		}
		seen[id] = struct{}{}

		matched = append(matched, ItemMatch{
			ItemID:            item.ID,
			InvoiceID:         item.InvoiceID,
			Description:       item.Description,
			UnitPrice:         item.UnitPrice,
			Total:             item.Total,
			MatchedFromIntent: choice.IntentDescription,
		})
		expected += item.Total
	}

	difference := amount - expected
	return MatchResult{
		MatchedItems:   matched,
		ExpectedAmount: expected,
		ActualAmount:   amount,
		Difference:     difference,
		PaymentStatus:  classifyPayment(difference),
	}, nil
}

func classifyPayment(difference float64) string {
	switch {
	case math.Abs(difference) < moneyEpsilon:
		return PaymentExact
	case difference > 0:
		return PaymentOverpaid
	default:
		return PaymentUnderpaid
	}
}
