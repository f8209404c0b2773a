// Package assistant runs the external coding assistant CLI, one subprocess
// per prompt, and streams its line-delimited JSON output.
package assistant

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/koscakluka/ema-voicecode/core/messages"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var ErrInvocationActive = errors.New("an assistant invocation is already running")

// Bridge owns at most one live assistant invocation at a time.
type Bridge struct {
	config Config

	mu      sync.Mutex
	session Session
	// resume is set once the assistant has answered in the current session
	resume bool
	active *invocation
}

type invocation struct {
	cmd       *exec.Cmd
	cancel    context.CancelFunc
	cancelled atomic.Bool
	done      chan struct{}
}

func New(config Config) *Bridge {
	config = config.withDefaults()
	return &Bridge{
		config:  config,
		session: newSession(config, ""),
	}
}

func (b *Bridge) Session() Session {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.session
}

// IsRunning reports whether an assistant subprocess is alive.
func (b *Bridge) IsRunning() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active != nil
}

// Execute runs the assistant with prompt and returns its output, one decoded
// line at a time. Lines that are not JSON objects come back as raw lines.
// Launch failures, read failures and unexpected exits end the sequence with
// a single error line. The sequence can be consumed once; the subprocess is
// killed when the consumer stops early.
func (b *Bridge) Execute(ctx context.Context, prompt string) iter.Seq[messages.Raw] {
	return func(yield func(messages.Raw) bool) {
		ctx, span := tracer.Start(ctx, "execute assistant")
		defer span.End()

		inv, session, stdout, stderr, err := b.start(ctx, prompt)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			yield(messages.ErrorLine(err))
			return
		}
		span.SetAttributes(
			attribute.String("session.id", session.ID),
			attribute.String("session.model", session.Model),
		)

		var (
			lines      int
			sawResult  bool
			waitErr    error
			finishOnce sync.Once
		)
		finish := func() {
			finishOnce.Do(func() {
				waitErr = b.finish(inv)
				span.SetAttributes(attribute.Int("response.lines", lines))
			})
		}
		defer finish()

		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 0, 64*1024), b.config.MaxLineSize)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}

			var raw messages.Raw
			if err := json.Unmarshal([]byte(line), &raw); err != nil || raw == nil {
				raw = messages.RawLine(line)
			} else {
				b.markResumable(session)
				if raw.Type() == string(messages.KindResult) {
					sawResult = true
				}
			}

			lines++
			if !yield(raw) {
				inv.cancelled.Store(true)
				inv.cancel()
				return
			}
		}
		scanErr := scanner.Err()
		if scanErr != nil {
			inv.cancel()
		}
		finish()

		if inv.cancelled.Load() || ctx.Err() != nil {
			return
		}

		switch {
		case scanErr != nil:
			err = fmt.Errorf("failed to read assistant output: %w", scanErr)
		case waitErr != nil && !sawResult:
			err = fmt.Errorf("assistant exited: %w%s", waitErr, stderr.Summary())
		default:
			return
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		yield(messages.ErrorLine(err))
	}
}

func (b *Bridge) start(ctx context.Context, prompt string) (*invocation, Session, io.Reader, *tailBuffer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.active != nil {
		return nil, Session{}, nil, nil, ErrInvocationActive
	}

	session := b.session
	invocationCtx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(invocationCtx, b.config.Path, args(b.config, session, b.resume, prompt)...)
	cmd.Dir = session.WorkingDirectory
	if len(b.config.Env) > 0 {
		cmd.Env = append(os.Environ(), b.config.Env...)
	}
	configureProcessGroup(cmd)
	cmd.Cancel = func() error {
		if err := killProcessTree(cmd.Process); err != nil {
			logger.Warn("failed to kill assistant process tree", "error", err, "pid", cmd.Process.Pid)
		}
		return nil
	}
	cmd.WaitDelay = b.config.WaitDelay

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, Session{}, nil, nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr := newTailBuffer(4096)
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, Session{}, nil, nil, fmt.Errorf("failed to start assistant: %w", err)
	}

	inv := &invocation{cmd: cmd, cancel: cancel, done: make(chan struct{})}
	b.active = inv
	logger.Debug("started assistant", "pid", cmd.Process.Pid, "session_id", session.ID, "resume", b.resume)
	return inv, session, stdout, stderr, nil
}

// finish waits for the subprocess, which also closes its pipes, and clears
// the active invocation.
func (b *Bridge) finish(inv *invocation) error {
	err := inv.cmd.Wait()
	inv.cancel()

	b.mu.Lock()
	if b.active == inv {
		b.active = nil
	}
	b.mu.Unlock()
	close(inv.done)
	return err
}

func (b *Bridge) markResumable(session Session) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session.ID == session.ID {
		b.resume = true
	}
}

// Cancel kills the active invocation, including every process it spawned.
// It is safe to call at any time and more than once.
func (b *Bridge) Cancel() {
	b.mu.Lock()
	inv := b.active
	b.mu.Unlock()
	if inv == nil {
		return
	}
	if inv.cancelled.Swap(true) {
		return
	}
	logger.Debug("cancelling assistant", "pid", inv.cmd.Process.Pid)
	inv.cancel()
}

// ResetSession cancels any active invocation, waits for it to exit and
// starts a new session with a fresh identifier.
func (b *Bridge) ResetSession() Session {
	b.mu.Lock()
	inv := b.active
	b.mu.Unlock()

	if inv != nil {
		b.Cancel()
		select {
		case <-inv.done:
		case <-time.After(b.config.ExitTimeout):
			logger.Warn("assistant did not exit after cancellation", "pid", inv.cmd.Process.Pid)
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.session = newSession(b.config, b.session.ID)
	b.resume = false
	logger.Info("started new assistant session", "session_id", b.session.ID)
	return b.session
}
