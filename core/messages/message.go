// Package messages turns the assistant CLI's line-delimited JSON output into
// a single normalized message model.
package messages

// Raw is one decoded line of the assistant's structured output.
type Raw map[string]any

// Type returns the line's type discriminator, or "" when it is missing or
// not a string.
func (r Raw) Type() string {
	t, _ := r["type"].(string)
	return t
}

type Kind string

const (
	KindAssistant  Kind = "assistant"
	KindToolUse    Kind = "tool_use"
	KindToolResult Kind = "tool_result"
	KindResult     Kind = "result"
	KindSystem     Kind = "system"
	KindError      Kind = "error"
	KindRaw        Kind = "raw"
	KindUnknown    Kind = "unknown"
)

func (k Kind) String() string { return string(k) }

// Message is the normalized form of one structured line.
type Message struct {
	Kind Kind
	// Text is the speakable text of the message. For tool uses it holds the
	// announcement.
	Text       string
	ToolName   string
	ToolInput  map[string]any
	ToolResult string
	IsError    bool
	// Raw is the original payload, untouched.
	Raw Raw
}

// HasText reports whether the message carries non-blank text.
func (m Message) HasText() bool {
	for _, r := range m.Text {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return true
		}
	}
	return false
}

// ErrorLine builds the raw line the bridge injects when the assistant could
// not be run or its output could not be read.
func ErrorLine(err error) Raw {
	return Raw{"type": string(KindError), "error": err.Error(), "origin": OriginBridge}
}

// RawLine wraps an output line that is not a JSON object.
func RawLine(line string) Raw {
	return Raw{"type": string(KindRaw), "content": line}
}

// OriginBridge marks error lines produced locally instead of by the CLI.
const OriginBridge = "bridge"

// FromBridge reports whether the message is an error produced locally by the
// bridge rather than one reported by the assistant.
func (m Message) FromBridge() bool {
	origin, _ := m.Raw["origin"].(string)
	return m.Kind == KindError && origin == OriginBridge
}
