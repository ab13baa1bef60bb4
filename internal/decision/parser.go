package decision

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"kalshi-llm-bot/internal/logger"
	"kalshi-llm-bot/internal/types"
)

// fallbackReason is the reasoning attached to the safe default whenever
// the model's output cannot be recovered.
const fallbackReason = "Failed to parse AI response"

const schemaJSON = `{
	"type": "object",
	"properties": {
		"action": {"type": "string", "enum": ["BUY", "SELL", "PASS"]},
		"side": {"type": "string", "enum": ["yes", "no"]},
		"shares": {"type": "integer", "minimum": 0},
		"max_price_cents": {"type": "integer", "minimum": 0},
		"reasoning": {"type": "string"}
	},
	"required": ["action", "reasoning"]
}`

var decisionSchema = jsonschema.MustCompileString("decision.json", schemaJSON)

// Parse recovers a structured trade decision from whatever text the
// brain returned. Total function: any input that fails extraction or
// schema validation degrades to a safe PASS, never an error. An
// unparseable response must never turn into an order.
func Parse(ctx context.Context, raw string) types.TradeDecision {
	jsonStr, ok := extractJSON(raw)
	if !ok {
		logger.Warn(ctx, "No JSON object found in brain response, defaulting to PASS")
		return passFallback()
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(jsonStr)), &obj); err != nil {
		logger.Warn(ctx, "Brain response JSON parse failed, defaulting to PASS", "error", err)
		return passFallback()
	}
	normalize(obj)

	if err := decisionSchema.Validate(obj); err != nil {
		logger.Warn(ctx, "Brain decision failed schema validation, defaulting to PASS", "error", err)
		return passFallback()
	}

	d := types.TradeDecision{Action: obj["action"].(string)}
	if s, ok := obj["side"].(string); ok {
		d.Side = &s
	}
	if n, ok := obj["shares"].(float64); ok {
		shares := int(n)
		d.Shares = &shares
	}
	if n, ok := obj["max_price_cents"].(float64); ok {
		price := int(n)
		d.MaxPriceCents = &price
	}
	if s, ok := obj["reasoning"].(string); ok {
		d.Reasoning = s
	}
	return d
}

// extractJSON tries three shapes in order: a json-labelled fenced code
// block, text that is a bare object once trimmed, and finally the span
// between the first '{' and the last '}'.
func extractJSON(raw string) (string, bool) {
	if i := strings.Index(raw, "```json"); i >= 0 {
		start := i + len("```json")
		rest := raw[start:]
		if j := strings.Index(rest, "```"); j >= 0 {
			return rest[:j], true
		}
		return rest, true
	}
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "{") {
		return trimmed, true
	}
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1], true
	}
	return "", false
}

// normalize folds case before validation: the action token is accepted
// case-insensitively and side is stored lowercase to match ledger rows.
func normalize(obj map[string]any) {
	if s, ok := obj["action"].(string); ok {
		obj["action"] = strings.ToUpper(strings.TrimSpace(s))
	}
	if s, ok := obj["side"].(string); ok {
		obj["side"] = strings.ToLower(strings.TrimSpace(s))
	}
}

func passFallback() types.TradeDecision {
	return types.TradeDecision{Action: types.ActionPass, Reasoning: fallbackReason}
}
