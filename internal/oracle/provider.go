// Package oracle is the boundary to the semantic-matching capability.
// Adapters return plain errors; callers convert failures into empty results
// before anything downstream mutates state.
package oracle

import "context"

// Provider defines the oracle methods used by services.
type Provider interface {
	// ExtractIntent parses free text into a payment intent. Text that is
	// not about a payment is a valid result (IsPayment false), not an error.
	ExtractIntent(ctx context.Context, message string) (PaymentIntent, error)
	// MatchItems scores each claim against the full candidate set.
	MatchItems(ctx context.Context, req MatchRequest) (MatchResponse, error)
	// RouteCommand classifies free text into a bot action with its payload.
	RouteCommand(ctx context.Context, text string) (AgentAction, error)
}

// IntentClaim is one item the user says they paid for.
type IntentClaim struct {
	Description string  `json:"item_description"`
	Quantity    int     `json:"quantity"`
	Confidence  float64 `json:"confidence"`
}

// PaymentIntent is the structured reading of a payment message.
type PaymentIntent struct {
	ItemsPaid   []IntentClaim `json:"items_paid"`
	IsPayment   bool          `json:"is_payment"`
	Description string        `json:"payment_description"`
}

// CandidateItem is one unpaid ledger row offered to the oracle.
type CandidateItem struct {
	ID          int64   `json:"id"`
	Description string  `json:"description"`
	UnitPrice   float64 `json:"unit_price"`
	Total       float64 `json:"total"`
	IsPaid      bool    `json:"is_paid"`
}

// MatchRequest carries the claims and the full candidate set. Candidates
// must never be truncated; the oracle sees everything that is unpaid.
type MatchRequest struct {
	Claims     []IntentClaim   `json:"claims"`
	Candidates []CandidateItem `json:"candidates"`
}

// MatchChoice is the oracle's verdict for one claim. A nil MatchedItemID
// means no reasonable match exists.
type MatchChoice struct {
	IntentDescription string  `json:"intent_description"`
	MatchedItemID     *int64  `json:"matched_item_id"`
	Confidence        float64 `json:"match_confidence"`
	Reasoning         string  `json:"reasoning"`
}

// MatchResponse preserves claim input order in Matches.
type MatchResponse struct {
	Matches []MatchChoice `json:"matches"`
}

// ActionType enumerates bot commands the router can emit.
type ActionType string

const (
	ActionCreateSession ActionType = "create_session"
	ActionCloseSession  ActionType = "close_session"
	ActionAssignItem    ActionType = "assign_item_to_user"
	ActionUnknown       ActionType = "unknown"
)

// AgentAction is a routing decision plus the payload for that action.
// Exactly one payload field is expected to be set, matching Action.
type AgentAction struct {
	Action        ActionType         `json:"action"`
	CreateSession *CreateSessionData `json:"create_session_data"`
	CloseSession  *CloseSessionData  `json:"close_session_data"`
	AssignItem    *AssignItemData    `json:"assign_item_to_user_data"`
	Unknown       *UnknownData       `json:"unknown_data"`
}

type CreateSessionData struct {
	Description string `json:"description"`
}

type CloseSessionData struct {
	SessionID          *int64 `json:"session_id"`
	SessionDescription string `json:"session_description"`
}

type AssignItemData struct {
	ItemID          *int64 `json:"item_id"`
	UserID          *int64 `json:"user_id"`
	UserName        string `json:"user_name"`
	InvoiceID       *int64 `json:"invoice_id"`
	ItemDescription string `json:"item_description"`
}

type UnknownData struct {
	Reason          string `json:"reason"`
	SuggestedAction string `json:"suggested_action"`
}
