package assistant

import "time"

const (
	DefaultPath        = "claude"
	DefaultModel       = "sonnet"
	DefaultMaxLineSize = 16 * 1024 * 1024
	DefaultWaitDelay   = 2 * time.Second
	DefaultExitTimeout = 5 * time.Second
)

type Config struct {
	// Path is the assistant executable.
	Path string
	// Args are placed before the generated arguments.
	Args []string
	// Env is appended to the current environment of every invocation.
	Env              []string
	WorkingDirectory string
	Model            string
	// SkipPermissions passes --dangerously-skip-permissions so tools run
	// without interactive confirmation.
	SkipPermissions bool
	// MaxLineSize bounds a single line of output.
	MaxLineSize int
	// WaitDelay is how long pipes are kept open after the process is killed.
	WaitDelay time.Duration
	// ExitTimeout bounds how long ResetSession waits for a cancelled
	// invocation to exit.
	ExitTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Path:            DefaultPath,
		Model:           DefaultModel,
		SkipPermissions: true,
		MaxLineSize:     DefaultMaxLineSize,
		WaitDelay:       DefaultWaitDelay,
		ExitTimeout:     DefaultExitTimeout,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.Path == "" {
		c.Path = defaults.Path
	}
	if c.Model == "" {
		c.Model = defaults.Model
	}
	if c.MaxLineSize <= 0 {
		c.MaxLineSize = defaults.MaxLineSize
	}
	if c.WaitDelay <= 0 {
		c.WaitDelay = defaults.WaitDelay
	}
	if c.ExitTimeout <= 0 {
		c.ExitTimeout = defaults.ExitTimeout
	}
	return c
}
