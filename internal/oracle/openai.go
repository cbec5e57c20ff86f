package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIProvider backs the oracle with chat completions.
type OpenAIProvider struct {
	apiKey string
	model  string
	client openai.Client
	ready  bool
}

func NewOpenAIProvider(apiKey, model string) *OpenAIProvider {
	return &OpenAIProvider{apiKey: strings.TrimSpace(apiKey), model: strings.TrimSpace(model)}
}

var ErrNoAPIKey = fmt.Errorf("oracle: openai api key not configured")

func (p *OpenAIProvider) ensureClient() error {
	if p.apiKey == "" {
		return ErrNoAPIKey
	}
	if !p.ready {
		p.client = openai.NewClient(option.WithAPIKey(p.apiKey))
		p.ready = true
	}
	return nil
}

const extractSystemPrompt = `You are an assistant that extracts payment intents from WhatsApp messages.
Decide whether the message says the user paid for something, and extract every item mentioned.
If a quantity is mentioned, emit one claim per unit ("I paid 2 burgers" becomes two claims of quantity 1).
If no quantity is mentioned, assume one. Normalize descriptions and tolerate typos.
If the message is NOT about a payment, set is_payment to false and leave items_paid empty.
Return ONLY valid JSON with keys: items_paid (array of objects with item_description (string), quantity (number), confidence (number 0-1)), is_payment (boolean), payment_description (string).`

func (p *OpenAIProvider) ExtractIntent(ctx context.Context, message string) (PaymentIntent, error) {
	if err := p.ensureClient(); err != nil {
		return PaymentIntent{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, 8*time.Second)
	defer cancel()

	respText, err := p.callChat(ctx, extractSystemPrompt, "User message:\n"+message+"\n\nExtract the payment intent.")
	if err != nil {
		return PaymentIntent{}, err
	}
	var out PaymentIntent
	if err := decodeJSON(respText, &out); err != nil {
		return PaymentIntent{}, fmt.Errorf("oracle: parse intent: %w", err)
	}
	for i := range out.ItemsPaid {
		out.ItemsPaid[i].Confidence = clamp01(out.ItemsPaid[i].Confidence)
		if out.ItemsPaid[i].Quantity < 1 {
			out.ItemsPaid[i].Quantity = 1
		}
	}
	return out, nil
}

const matchSystemPrompt = `You are an expert at semantic matching between item descriptions.
Match each claim against the database items:
- Look for semantic similarity ("drink" can match "Coca Cola", "Sprite", and so on).
- "pizza" should match items whose description contains "pizza".
- When several unpaid items fit equally well, choose the first available one.
- If nothing fits a claim, set matched_item_id to null.
- Use match_confidence for certainty (1.0 = very sure, below 0.5 = poor match).
Return ONLY valid JSON with keys: matches (array of objects with intent_description (string), matched_item_id (number or null), match_confidence (number 0-1), reasoning (string)).`

func (p *OpenAIProvider) MatchItems(ctx context.Context, req MatchRequest) (MatchResponse, error) {
	if err := p.ensureClient(); err != nil {
		return MatchResponse{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, 8*time.Second)
	defer cancel()

	payload, _ := json.Marshal(req)
	respText, err := p.callChat(ctx, matchSystemPrompt, "Input JSON:\n"+string(payload))
	if err != nil {
		return MatchResponse{}, err
	}
	var out MatchResponse
	if err := decodeJSON(respText, &out); err != nil {
		return MatchResponse{}, fmt.Errorf("oracle: parse matches: %w", err)
	}
	for i := range out.Matches {
		out.Matches[i].Confidence = clamp01(out.Matches[i].Confidence)
	}
	return out, nil
}

const routeSystemPrompt = `You are the command router for a split-bill WhatsApp bot.
Classify the user's text into exactly one action:
- create_session: start a new group tab; extract a description.
- close_session: close a tab; extract session_id or a partial session_description.
- assign_item_to_user: record who owes an item; extract item_id (or invoice_id plus item_description) and user_id or user_name.
- unknown: anything else; give a reason and optionally a suggested_action.
Return ONLY valid JSON with keys: action (string), create_session_data, close_session_data, assign_item_to_user_data, unknown_data (objects or null).
create_session_data has description (string). close_session_data has session_id (number or null) and session_description (string).
assign_item_to_user_data has item_id, user_id, invoice_id (numbers or null) and user_name, item_description (strings).
unknown_data has reason and suggested_action (strings).`

func (p *OpenAIProvider) RouteCommand(ctx context.Context, text string) (AgentAction, error) {
	if err := p.ensureClient(); err != nil {
		return AgentAction{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, 8*time.Second)
	defer cancel()

	respText, err := p.callChat(ctx, routeSystemPrompt, "User text:\n"+text)
	if err != nil {
		return AgentAction{}, err
	}
	var out AgentAction
	if err := decodeJSON(respText, &out); err != nil {
		return AgentAction{}, fmt.Errorf("oracle: parse action: %w", err)
	}
	return out, nil
}

func (p *OpenAIProvider) callChat(ctx context.Context, system, user string) (string, error) {
	model := p.model
	if model == "" {
		model = "gpt-4o-mini"
	}
	completion, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(model),
		Temperature: openai.Float(0),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
	})
	if err != nil {
		return "", err
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("oracle: empty completion")
	}
	return strings.TrimSpace(completion.Choices[0].Message.Content), nil
}

// decodeJSON tolerates markdown code fences around the model output.
func decodeJSON(s string, v interface{}) error {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return json.Unmarshal([]byte(strings.TrimSpace(s)), v)
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
