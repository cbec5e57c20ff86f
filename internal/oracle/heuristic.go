package oracle

import (
	"context"
	"strconv"
	"strings"

	"github.com/agnivade/levenshtein"
)

// HeuristicProvider is a lightweight, offline implementation of Provider.
// It is deterministic, which makes it usable for demos and local runs
// without an API key. Real deployments use OpenAIProvider.
type HeuristicProvider struct{}

func NewHeuristicProvider() *HeuristicProvider { return &HeuristicProvider{} }

var paymentVerbs = []string{"paid", "pay ", "payed", "transferred", "wired", "sent"}

var claimStopwords = map[string]struct{}{
	"for": {}, "the": {}, "a": {}, "an": {}, "my": {}, "our": {},
	"i": {}, "we": {}, "just": {}, "already": {}, "some": {}, "of": {},
}

// ExtractIntent looks for a payment verb, then reads the trailing phrase as
// a comma/"and"-separated item list. A leading count on a phrase becomes
// that many single-unit claims.
func (h *HeuristicProvider) ExtractIntent(ctx context.Context, message string) (PaymentIntent, error) {
	lower := strings.ToLower(message)

	verbAt := -1
	verbLen := 0
	for _, v := range paymentVerbs {
		if i := strings.Index(lower, v); i >= 0 && (verbAt == -1 || i < verbAt) {
			verbAt, verbLen = i, len(v)
		}
	}
	if verbAt == -1 {
		return PaymentIntent{IsPayment: false}, nil
	}

	rest := strings.TrimSpace(lower[verbAt+verbLen:])
	rest = strings.NewReplacer(",", " and ", "+", " and ").Replace(rest)

	var claims []IntentClaim
	for _, phrase := range strings.Split(rest, " and ") {
		desc, count := cleanClaim(phrase)
		if desc == "" {
			continue
		}
		for i := 0; i < count; i++ {
			claims = append(claims, IntentClaim{Description: desc, Quantity: 1, Confidence: 0.8})
		}
	}
	if len(claims) == 0 {
		return PaymentIntent{IsPayment: false}, nil
	}
	return PaymentIntent{ItemsPaid: claims, IsPayment: true, Description: strings.TrimSpace(message)}, nil
}

// cleanClaim strips stopwords and a leading count from one claim phrase.
func cleanClaim(phrase string) (string, int) {
	count := 1
	var kept []string
	for _, w := range strings.Fields(phrase) {
		w = strings.Trim(w, ".!?")
		if w == "" {
			continue
		}
		if n, err := strconv.Atoi(w); err == nil && n > 0 && len(kept) == 0 {
			count = n
			continue
		}
		if _, skip := claimStopwords[w]; skip {
			continue
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " "), count
}

// MatchItems scores every claim against every unpaid candidate and keeps
// the best-scoring candidate, first in order on ties.
func (h *HeuristicProvider) MatchItems(ctx context.Context, req MatchRequest) (MatchResponse, error) {
	out := MatchResponse{}
	for _, claim := range req.Claims {
		var bestID *int64
		bestScore := 0.0
		for _, cand := range req.Candidates {
			if cand.IsPaid {
				continue
			}
			score := similarity(claim.Description, cand.Description)
			if score > bestScore {
				id := cand.ID
				bestID, bestScore = &id, score
			}
		}
		choice := MatchChoice{
			IntentDescription: claim.Description,
			Confidence:        bestScore,
			Reasoning:         "string similarity",
		}
		if bestID != nil && bestScore >= 0.3 {
			choice.MatchedItemID = bestID
		}
		out.Matches = append(out.Matches, choice)
	}
	return out, nil
}

// similarity combines containment, word-level edit distance, and token
// overlap into a [0,1] score.
func similarity(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return 0.9
	}

	best := 0.0
	for _, wa := range strings.Fields(a) {
		for _, wb := range strings.Fields(b) {
			d := levenshtein.ComputeDistance(wa, wb)
			l := len(wa)
			if len(wb) > l {
				l = len(wb)
			}
			if l == 0 {
				continue
			}
			if s := 1 - float64(d)/float64(l); s > best {
				best = s
			}
		}
	}
	if ov := tokenOverlap(a, b); ov > best {
		best = ov
	}
	return best
}

// tokenOverlap is a token intersection-over-union ratio in [0,1].
func tokenOverlap(a, b string) float64 {
	aTokens := tokenSet(a)
	bTokens := tokenSet(b)
	if len(aTokens) == 0 || len(bTokens) == 0 {
		return 0
	}
	intersect := 0
	for t := range aTokens {
		if _, ok := bTokens[t]; ok {
			intersect++
		}
	}
	union := len(aTokens) + len(bTokens) - intersect
	return float64(intersect) / float64(union)
}

func tokenSet(s string) map[string]struct{} {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == '-' || r == '_' || r == '/' })
	out := make(map[string]struct{}, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out[p] = struct{}{}
		}
	}
	return out
}

// RouteCommand recognizes a few fixed phrasings; everything else is unknown.
func (h *HeuristicProvider) RouteCommand(ctx context.Context, text string) (AgentAction, error) {
	lower := strings.ToLower(text)

	switch {
	case strings.Contains(lower, "new session") || strings.Contains(lower, "create a session") ||
		strings.Contains(lower, "open a tab") || strings.Contains(lower, "start a tab"):
		desc := afterKeyword(text, "for")
		if desc == "" {
			desc = "group tab"
		}
		return AgentAction{Action: ActionCreateSession, CreateSession: &CreateSessionData{Description: desc}}, nil

	case strings.Contains(lower, "close") && (strings.Contains(lower, "session") || strings.Contains(lower, "tab")):
		data := &CloseSessionData{}
		if id, ok := firstNumber(lower); ok {
			data.SessionID = &id
		} else {
			data.SessionDescription = afterKeyword(text, "close")
		}
		return AgentAction{Action: ActionCloseSession, CloseSession: data}, nil

	case strings.Contains(lower, "assign") || strings.Contains(lower, "owes"):
		data := &AssignItemData{}
		if id, ok := firstNumber(lower); ok {
			data.ItemID = &id
		}
		if name := afterKeyword(text, "to"); name != "" {
			data.UserName = name
		}
		return AgentAction{Action: ActionAssignItem, AssignItem: data}, nil
	}

	return AgentAction{
		Action:  ActionUnknown,
		Unknown: &UnknownData{Reason: "no recognizable command in text"},
	}, nil
}

// afterKeyword returns the trimmed text following the first standalone
// occurrence of kw, or "".
func afterKeyword(text, kw string) string {
	fields := strings.Fields(text)
	for i, f := range fields {
		if strings.EqualFold(strings.Trim(f, ".,!?"), kw) && i+1 < len(fields) {
			return strings.Trim(strings.Join(fields[i+1:], " "), ".,!? ")
		}
	}
	return ""
}

func firstNumber(s string) (int64, bool) {
	for _, f := range strings.Fields(s) {
		f = strings.Trim(f, "#.,!?")
		if n, err := strconv.ParseInt(f, 10, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}
