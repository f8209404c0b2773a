package speech

type Config struct {
	// AnnounceToolUse speaks a short phrase whenever the assistant starts a
	// tool.
	AnnounceToolUse bool
	// SummarizeToolResult speaks a summary of every tool result.
	SummarizeToolResult bool
	// MaxResultWords caps results that fall through every classifier.
	MaxResultWords int
	// SkipCodeBlocks strips fenced and inline code from spoken text.
	SkipCodeBlocks bool
	// MaxFileList is how many file names a file list summary reads out.
	MaxFileList int
}

func DefaultConfig() Config {
	return Config{
		AnnounceToolUse:     true,
		SummarizeToolResult: true,
		MaxResultWords:      100,
		SkipCodeBlocks:      true,
		MaxFileList:         5,
	}
}
