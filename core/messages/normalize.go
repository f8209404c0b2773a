package messages

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Normalize converts one raw line into a Message. It never fails: shapes it
// does not recognize become KindUnknown with the payload preserved.
func Normalize(raw Raw) Message {
	switch Kind(raw.Type()) {
	case KindAssistant:
		return normalizeAssistant(raw)
	case KindToolUse:
		return normalizeToolUse(raw)
	case KindToolResult:
		return normalizeToolResult(raw)
	case KindResult:
		return normalizeResult(raw)
	case KindSystem:
		return normalizeSystem(raw)
	case KindError:
		return normalizeError(raw)
	case KindRaw:
		text, _ := raw["content"].(string)
		return Message{Kind: KindRaw, Text: text, Raw: raw}
	default:
		return Message{Kind: KindUnknown, Raw: raw}
	}
}

func normalizeAssistant(raw Raw) Message {
	message, _ := raw["message"].(map[string]any)
	content, _ := message["content"].([]any)

	var parts []string
	for _, block := range content {
		switch block := block.(type) {
		case map[string]any:
			if blockType, _ := block["type"].(string); blockType == "text" {
				text, _ := block["text"].(string)
				parts = append(parts, text)
			}
		case string:
			parts = append(parts, block)
		}
	}

	return Message{
		Kind: KindAssistant,
		Text: strings.TrimSpace(strings.Join(parts, " ")),
		Raw:  raw,
	}
}

func normalizeToolUse(raw Raw) Message {
	name := firstString(raw, "tool", "name")
	if name == "" {
		name = "unknown"
	}

	var input map[string]any
	for _, key := range []string{"input", "arguments"} {
		if value, ok := raw[key]; ok {
			input, _ = value.(map[string]any)
			break
		}
	}
	if input == nil {
		input = map[string]any{}
	}

	return Message{
		Kind:      KindToolUse,
		Text:      Announce(name, input),
		ToolName:  name,
		ToolInput: input,
		Raw:       raw,
	}
}

func normalizeToolResult(raw Raw) Message {
	value, ok := raw["result"]
	if !ok {
		value = raw["output"]
	}

	var result string
	switch value := value.(type) {
	case nil:
	case []any:
		items := make([]string, len(value))
		for i, item := range value {
			items[i] = stringify(item)
		}
		result = strings.Join(items, "\n")
	default:
		result = stringify(value)
	}

	return Message{
		Kind:       KindToolResult,
		ToolResult: result,
		IsError:    truthy(raw["is_error"]) || truthy(raw["error"]),
		Raw:        raw,
	}
}

func normalizeResult(raw Raw) Message {
	text := "Done"
	if value, ok := raw["result"]; ok && value != nil {
		text = stringify(value)
	}

	return Message{
		Kind:    KindResult,
		Text:    text,
		IsError: truthy(raw["is_error"]),
		Raw:     raw,
	}
}

func normalizeSystem(raw Raw) Message {
	text := firstString(raw, "message", "text", "subtype")
	if text == "" {
		text = "System notice"
	}
	return Message{Kind: KindSystem, Text: text, Raw: raw}
}

func normalizeError(raw Raw) Message {
	detail := ""
	for _, key := range []string{"error", "message"} {
		if value, ok := raw[key]; ok && value != nil {
			detail = stringify(value)
			break
		}
	}
	if strings.TrimSpace(detail) == "" {
		detail = "An error occurred"
	}

	return Message{
		Kind:    KindError,
		Text:    "Error: " + detail,
		IsError: true,
		Raw:     raw,
	}
}

func firstString(raw Raw, keys ...string) string {
	for _, key := range keys {
		if value, ok := raw[key].(string); ok && value != "" {
			return value
		}
	}
	return ""
}

// stringify renders a decoded JSON value the way it would read in a log:
// strings as is, structured values as compact JSON.
func stringify(value any) string {
	switch value := value.(type) {
	case nil:
		return ""
	case string:
		return value
	case map[string]any, []any:
		encoded, err := json.Marshal(value)
		if err != nil {
			return fmt.Sprint(value)
		}
		return string(encoded)
	default:
		return fmt.Sprint(value)
	}
}

// truthy follows JSON truthiness: false, null, 0, "" and empty containers
// are false.
func truthy(value any) bool {
	switch value := value.(type) {
	case nil:
		return false
	case bool:
		return value
	case string:
		return value != ""
	case float64:
		return value != 0
	case map[string]any:
		return len(value) > 0
	case []any:
		return len(value) > 0
	default:
		return true
	}
}
