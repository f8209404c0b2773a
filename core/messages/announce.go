package messages

import (
	"fmt"
	"strings"
)

// Announce returns the short phrase spoken when the assistant starts using a
// tool.
func Announce(tool string, input map[string]any) string {
	switch tool {
	case "Read":
		return "Reading " + baseName(inputString(input, "file_path", "a file"))
	case "Write":
		return "Writing " + baseName(inputString(input, "file_path", "a file"))
	case "Edit":
		return "Editing " + baseName(inputString(input, "file_path", "a file"))
	case "Bash":
		if fields := strings.Fields(inputString(input, "command", "")); len(fields) > 0 {
			return "Running " + fields[0]
		}
		return "Running a command"
	case "Glob":
		return "Searching for " + inputString(input, "pattern", "files")
	case "Grep":
		return "Searching for " + inputString(input, "pattern", "text")
	case "Task":
		return "Starting " + inputString(input, "description", "a task")
	case "WebFetch":
		return "Fetching " + inputString(input, "url", "a webpage")
	case "WebSearch":
		return "Searching for " + inputString(input, "query", "the web")
	case "TodoWrite":
		return "Updating task list"
	case "AskUserQuestion":
		return "Asking a question"
	default:
		return fmt.Sprintf("Using %s", tool)
	}
}

func inputString(input map[string]any, key, fallback string) string {
	if value, ok := input[key].(string); ok && strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

// baseName strips directories under either path separator convention.
func baseName(path string) string {
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		return path[i+1:]
	}
	return path
}
