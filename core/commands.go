package orchestration

import (
	"strings"
	"unicode"
)

type command int

const (
	commandNone command = iota
	commandQuit
	commandReset
	commandStop
)

func (c command) String() string {
	switch c {
	case commandQuit:
		return "quit"
	case commandReset:
		return "reset"
	case commandStop:
		return "stop"
	default:
		return "none"
	}
}

var commandVocabulary = map[string]command{
	"quit":    commandQuit,
	"goodbye": commandQuit,
	"exit":    commandQuit,
	"bye":     commandQuit,

	"new conversation": commandReset,
	"start over":       commandReset,
	"reset":            commandReset,
	"clear":            commandReset,

	"stop":       commandStop,
	"cancel":     commandStop,
	"nevermind":  commandStop,
	"never mind": commandStop,
}

// classifyCommand matches a transcript against the voice command vocabulary.
// Matching ignores case, surrounding whitespace and the punctuation speech
// recognition adds around short phrases ("Goodbye.", "Never mind!").
func classifyCommand(transcript string) command {
	return commandVocabulary[normalizeCommand(transcript)]
}

func normalizeCommand(transcript string) string {
	text := strings.ToLower(strings.TrimSpace(transcript))
	text = strings.TrimFunc(text, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSpace(r)
	})
	return strings.Join(strings.Fields(text), " ")
}
