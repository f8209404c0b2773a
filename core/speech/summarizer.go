// Package speech turns normalized assistant messages into short spoken
// fragments and plays them back in order.
package speech

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/koscakluka/ema-voicecode/core/messages"
)

// Fragment is one unit of text queued for synthesis.
type Fragment struct {
	Text string
	// Kind is the kind of message the fragment was made from.
	Kind messages.Kind
}

const (
	maxErrorLength     = 100
	shortCommandLines  = 3
	shortCommandWords  = 30
	fileListRatio      = 0.5
	searchResultRatio  = 0.3
	numberedLinesRatio = 0.5
)

var (
	fencedCode = regexp.MustCompile("```[\\s\\S]*?```")
	inlineCode = regexp.MustCompile("`[^`]+`")
	whitespace = regexp.MustCompile(`\s+`)
	bold       = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	italic     = regexp.MustCompile(`\*([^*]+)\*`)
	heading    = regexp.MustCompile(`#{1,6}\s*`)

	commandOutputPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?m)^\s*\d+\s+`),
		regexp.MustCompile(`total \d+`),
		regexp.MustCompile(`commit [a-f0-9]+`),
		regexp.MustCompile(`(?m)^\s*-`),
	}
	numberedLine = regexp.MustCompile(`^\s*\d+[\s|:]`)
)

type Summarizer struct {
	config Config
}

func NewSummarizer(config Config) *Summarizer {
	if config.MaxResultWords <= 0 {
		config.MaxResultWords = DefaultConfig().MaxResultWords
	}
	if config.MaxFileList <= 0 {
		config.MaxFileList = DefaultConfig().MaxFileList
	}
	return &Summarizer{config: config}
}

// ToSpeech returns the fragment to speak for msg, or false when nothing
// should be said.
func (s *Summarizer) ToSpeech(msg messages.Message) (Fragment, bool) {
	var text string
	switch msg.Kind {
	case messages.KindAssistant, messages.KindResult:
		text = s.cleanText(msg.Text)
	case messages.KindToolUse:
		if s.config.AnnounceToolUse {
			text = msg.Text
		}
	case messages.KindToolResult:
		if s.config.SummarizeToolResult {
			text = s.summarizeResult(msg.ToolResult, msg.IsError)
		}
	case messages.KindError:
		text = msg.Text
	}

	if strings.TrimSpace(text) == "" {
		return Fragment{}, false
	}
	return Fragment{Text: text, Kind: msg.Kind}, true
}

func (s *Summarizer) cleanText(text string) string {
	if s.config.SkipCodeBlocks {
		text = fencedCode.ReplaceAllString(text, "")
		text = inlineCode.ReplaceAllString(text, "")
	}
	text = strings.TrimSpace(whitespace.ReplaceAllString(text, " "))
	text = bold.ReplaceAllString(text, "$1")
	text = italic.ReplaceAllString(text, "$1")
	text = heading.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// summarizeResult classifies a tool result by shape. The classifiers are
// tried in order and the first match wins.
func (s *Summarizer) summarizeResult(result string, isError bool) string {
	if result == "" {
		return ""
	}

	if isError {
		firstLine, _, _ := strings.Cut(strings.TrimSpace(result), "\n")
		return "Error: " + truncateRunes(firstLine, maxErrorLength)
	}

	switch {
	case looksLikeFileList(result):
		return s.summarizeFileList(result)
	case looksLikeSearchResult(result):
		return summarizeSearchResult(result)
	case looksLikeCommandOutput(result):
		return summarizeCommandOutput(result)
	case looksLikeFileContent(result):
		return fmt.Sprintf("Read %d lines of content", len(lines(result)))
	default:
		return truncateWords(result, s.config.MaxResultWords)
	}
}

func looksLikeFileList(text string) bool {
	rows := lines(text)
	if len(rows) < 2 {
		return false
	}

	pathLike := 0
	for _, line := range rows {
		if strings.ContainsAny(line, `/\`) || strings.HasSuffix(line, ".py") || strings.HasSuffix(line, ".ts") {
			pathLike++
		}
	}
	return float64(pathLike) > float64(len(rows))*fileListRatio
}

func (s *Summarizer) summarizeFileList(text string) string {
	paths := nonEmptyLines(text)
	count := len(paths)

	switch {
	case count == 0:
		return "No files found"
	case count == 1:
		return "Found one file: " + baseName(paths[0])
	case count <= s.config.MaxFileList:
		return fmt.Sprintf("Found %d files: %s", count, strings.Join(baseNames(paths), ", "))
	default:
		named := baseNames(paths[:s.config.MaxFileList])
		return fmt.Sprintf("Found %d files: %s, and %d more", count, strings.Join(named, ", "), count-s.config.MaxFileList)
	}
}

func looksLikeSearchResult(text string) bool {
	rows := lines(text)

	marked := 0
	for _, line := range rows {
		fields := strings.Split(line, ":")
		if len(fields) > 1 && strings.IndexFunc(fields[1], unicode.IsDigit) >= 0 {
			marked++
		}
	}
	return float64(marked) > float64(len(rows))*searchResultRatio
}

func summarizeSearchResult(text string) string {
	matches := nonEmptyLines(text)
	if len(matches) == 0 {
		return "No matches found"
	}

	files := map[string]struct{}{}
	var firstFile string
	for _, line := range matches {
		if file, _, ok := strings.Cut(line, ":"); ok {
			if len(files) == 0 {
				firstFile = file
			}
			files[file] = struct{}{}
		}
	}

	if len(files) == 1 {
		return fmt.Sprintf("Found %d matches in %s", len(matches), baseName(firstFile))
	}
	return fmt.Sprintf("Found %d matches across %d files", len(matches), len(files))
}

func looksLikeCommandOutput(text string) bool {
	for _, pattern := range commandOutputPatterns {
		if pattern.MatchString(text) {
			return true
		}
	}
	return false
}

func summarizeCommandOutput(text string) string {
	if n := len(lines(text)); n > shortCommandLines {
		return fmt.Sprintf("Command completed with %d lines of output", n)
	}
	return truncateWords(text, shortCommandWords)
}

func looksLikeFileContent(text string) bool {
	rows := lines(text)

	numbered := 0
	for _, line := range rows {
		if numberedLine.MatchString(line) {
			numbered++
		}
	}
	return float64(numbered) > float64(len(rows))*numberedLinesRatio
}

func truncateWords(text string, maxWords int) string {
	words := strings.Fields(text)
	if len(words) <= maxWords {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:maxWords], " ") + "..."
}

func truncateRunes(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}

// lines splits trimmed text into lines, keeping blank ones.
func lines(text string) []string {
	return strings.Split(strings.TrimSpace(text), "\n")
}

func nonEmptyLines(text string) []string {
	var out []string
	for _, line := range lines(text) {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

func baseName(path string) string {
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		return path[i+1:]
	}
	return path
}

func baseNames(paths []string) []string {
	names := make([]string, len(paths))
	for i, path := range paths {
		names[i] = baseName(path)
	}
	return names
}
