package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	orchestration "github.com/koscakluka/ema-voicecode/core"
	"github.com/koscakluka/ema-voicecode/core/assistant"
	"github.com/koscakluka/ema-voicecode/core/events"
	"github.com/koscakluka/ema-voicecode/core/speech"
	"github.com/muesli/reflow/wordwrap"
)

const maxEntries = 200

type (
	stateMsg       orchestration.TurnState
	transcriptMsg  string
	partialMsg     string
	fragmentMsg    speech.Fragment
	interruptedMsg struct{}
	sessionMsg     string
	runDoneMsg     struct{ err error }
)

type entryRole int

const (
	roleUser entryRole = iota
	roleAssistant
	roleNotice
)

type entry struct {
	role entryRole
	text string
}

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#f3f3ff")).
			Background(lipgloss.Color("#5a3fc0")).
			Padding(0, 1)
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#01cdfe")).Bold(true)
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#05ffa1"))
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#f3f3ff"))
	noticeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#9ca3d8")).Italic(true)
	helpStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#9ca3d8"))
)

type model struct {
	orchestrator *orchestration.Orchestrator
	session      assistant.Session

	spinner spinner.Model
	state   orchestration.TurnState
	partial string
	entries []entry
	width   int
	height  int
	err     error
}

func newModel(session assistant.Session) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = statusStyle
	return model{session: session, spinner: s, width: 80, height: 24}
}

func (m model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.orchestrator.Stop()
		case " ":
			m.orchestrator.Interrupt()
		}
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
	case stateMsg:
		m.state = orchestration.TurnState(msg)
	case partialMsg:
		m.partial = strings.TrimSpace(m.partial + " " + string(msg))
	case transcriptMsg:
		m.partial = ""
		m.push(entry{role: roleUser, text: string(msg)})
	case fragmentMsg:
		m.push(entry{role: roleAssistant, text: msg.Text})
	case interruptedMsg:
		m.push(entry{role: roleNotice, text: "interrupted"})
	case sessionMsg:
		m.session.ID = string(msg)
		m.push(entry{role: roleNotice, text: "new conversation"})
	case runDoneMsg:
		m.err = msg.err
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *model) push(e entry) {
	m.entries = append(m.entries, e)
	if len(m.entries) > maxEntries {
		m.entries = m.entries[len(m.entries)-maxEntries:]
	}
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("ema-voicecode · %s · session %s", m.session.Model, shortID(m.session.ID))))
	b.WriteString("\n\n")

	lines := m.renderEntries()
	// header, status and help take five rows
	if room := m.height - 5; room > 0 && len(lines) > room {
		lines = lines[len(lines)-room:]
	}
	b.WriteString(strings.Join(lines, "\n"))
	b.WriteString("\n\n")

	b.WriteString(m.status())
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("space interrupt · q quit · say \"goodbye\" to exit"))
	return b.String()
}

func (m model) renderEntries() []string {
	width := max(m.width-4, 20)
	var lines []string
	for _, e := range m.entries {
		var prefix string
		var style lipgloss.Style
		switch e.role {
		case roleUser:
			prefix, style = "you  ", userStyle
		case roleAssistant:
			prefix, style = "     ", assistantStyle
		default:
			prefix, style = "  -- ", noticeStyle
		}
		for i, line := range strings.Split(wordwrap.String(e.text, width-len(prefix)), "\n") {
			if i > 0 {
				prefix = strings.Repeat(" ", len(prefix))
			}
			lines = append(lines, style.Render(prefix+line))
		}
	}
	return lines
}

func (m model) status() string {
	switch m.state {
	case orchestration.StateListening:
		return statusStyle.Render("● listening")
	case orchestration.StateProcessing:
		if m.partial != "" {
			return m.spinner.View() + statusStyle.Render(" transcribing ") + userStyle.Render(m.partial)
		}
		return m.spinner.View() + statusStyle.Render(" transcribing")
	case orchestration.StateExecuting:
		return m.spinner.View() + statusStyle.Render(" working")
	case orchestration.StateSpeaking:
		return statusStyle.Render("♪ speaking")
	default:
		return statusStyle.Render("○ waiting for speech")
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// runTUI runs the orchestrator behind a terminal status view. Quitting the
// view stops the orchestrator, and the view exits when the orchestrator does.
// It returns only after Run has returned.
func runTUI(ctx context.Context, session assistant.Session, opts []orchestration.OrchestratorOption) error {
	var program *tea.Program
	opts = append(opts,
		orchestration.WithStateChangedCallback(func(from, to orchestration.TurnState) {
			program.Send(stateMsg(to))
		}),
		orchestration.WithTranscriptionCallback(func(transcript string) {
			program.Send(transcriptMsg(transcript))
		}),
		orchestration.WithFragmentCallback(func(fragment speech.Fragment) {
			program.Send(fragmentMsg(fragment))
		}),
		orchestration.WithInterruptionCallback(func() {
			program.Send(interruptedMsg{})
		}),
		orchestration.WithEventHandler(func(event events.Event) {
			switch event := event.(type) {
			case events.SessionReset:
				program.Send(sessionMsg(event.SessionID))
			case events.UserTranscriptPartial:
				program.Send(partialMsg(event.Segment))
			}
		}),
	)
	orchestrator := orchestration.NewOrchestrator(opts...)

	m := newModel(session)
	m.orchestrator = orchestrator
	program = tea.NewProgram(m, tea.WithAltScreen())

	go func() {
		<-ctx.Done()
		orchestrator.Stop()
	}()
	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		program.Send(runDoneMsg{err: orchestrator.Run(ctx)})
	}()

	final, err := program.Run()
	orchestrator.Stop()
	// the audio device is closed after return, so Run must have let go of it
	<-runDone
	if err != nil {
		return fmt.Errorf("terminal ui failed: %w", err)
	}
	if m, ok := final.(model); ok && m.err != nil {
		return m.err
	}
	return nil
}
