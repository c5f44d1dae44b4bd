package api

import (
	"encoding/json"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"kidsmoney/internal/action"
)

const actionSchemaURL = "kidsmoney://schemas/action.json"

func actionSchema() map[string]any {
	kinds := make([]string, 0, len(action.Kinds))
	for _, k := range action.Kinds {
		kinds = append(kinds, string(k))
	}
	str := func(max int) map[string]any { return map[string]any{"type": "string", "maxLength": max} }
	nonNeg := map[string]any{"type": "integer", "minimum": 0}
	rate := map[string]any{"type": []string{"number", "string"}}

	return map[string]any{
		"$schema":              "http://json-schema.org/draft-07/schema#",
		"type":                 "object",
		"required":             []string{"kind"},
		"additionalProperties": false,
		"properties": map[string]any{
			"kind":      map[string]any{"type": "string", "enum": kinds},
			"actorId":   str(64),
			"key":       str(action.MaxKeyLength),
			"stockId":   str(16),
			"forbidden": map[string]any{"type": "boolean"},
			"quantity":  nonNeg,
			"amount":    nonNeg,
			"landId":    str(64),
			"targetId":  str(64),
			"requestId": str(64),
			"callId":    str(64),
			"item":      str(64),
			"job":       str(64),
			"score":     nonNeg,
			"name":      str(64),
			"role":      str(16),
			"body":      str(action.MaxMessageLength * 2),
			"approve":   map[string]any{"type": "boolean"},
			"running":   map[string]any{"type": "boolean"},
			"land": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"properties": map[string]any{
					"kind":    str(16),
					"name":    str(64),
					"x":       map[string]any{"type": "integer"},
					"y":       map[string]any{"type": "integer"},
					"price":   nonNeg,
					"publish": map[string]any{"type": "boolean"},
				},
			},
			"settings": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"properties": map[string]any{
					"taxRate":          rate,
					"depositRate":      rate,
					"loanRate":         rate,
					"salaryMultiplier": rate,
					"loanCap":          nonNeg,
					"turnDurationMs":   nonNeg,
				},
			},
			"proposal": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"required":             []string{"title", "effect"},
				"properties": map[string]any{
					"title":      str(120),
					"durationMs": nonNeg,
					"effect": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"kind":    str(32),
							"taxRate": rate,
							"amount":  nonNeg,
						},
					},
				},
			},
		},
	}
}

func compileActionSchema() (*jsonschema.Schema, error) {
	raw, err := json.Marshal(actionSchema())
	if err != nil {
		return nil, err
	}
	return jsonschema.CompileString(actionSchemaURL, string(raw))
}
