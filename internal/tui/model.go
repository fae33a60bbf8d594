// Package tui is the terminal front end of the console: a listing of the
// host's targets and a console view per target.
package tui

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/labring/devbox-console/pkg/console"
	"github.com/labring/devbox-console/pkg/errors"
)

const (
	requestTimeout = 10 * time.Second

	headerHeight = 1
	footerHeight = 2
)

// LoginHint is shown when the session is gone
const LoginHint = "session expired or missing, run `devbox-console login`"

// Backend is what the UI needs from the host
type Backend interface {
	ListTargets(ctx context.Context, s console.Session) ([]string, error)
	console.LogReader
	console.CommandExecutor
}

// Options configures the UI
type Options struct {
	Backend Backend
	Session *console.SessionContext
	// Target opens its console right away; empty starts at the listing
	Target string
	View   console.ViewConfig
}

type mode int

const (
	modeListing mode = iota
	modeConsole
)

// Model is the root bubbletea model
type Model struct {
	ctx  context.Context
	opts Options
	send func(tea.Msg)

	mode    mode
	targets []string
	cursor  int
	loading bool

	gen      int
	view     *console.View
	viewport viewport.Model
	input    textinput.Model
	sending  bool

	width, height int
	notice        string
	exitMessage   string
	quitting      bool
}

// New creates the model. SetSend must be called before the program runs.
func New(ctx context.Context, opts Options) *Model {
	in := textinput.New()
	in.Placeholder = "command"
	in.Prompt = "> "
	in.CharLimit = 4096
	in.Cursor.SetMode(cursor.CursorStatic)

	return &Model{
		ctx:      ctx,
		opts:     opts,
		send:     func(tea.Msg) {},
		viewport: viewport.New(80, 20),
		input:    in,
	}
}

// SetSend connects view callbacks to the running program, usually p.Send
func (m *Model) SetSend(send func(tea.Msg)) { m.send = send }

// ExitMessage is what the CLI prints after the program ends
func (m *Model) ExitMessage() string { return m.exitMessage }

func (m *Model) Init() tea.Cmd {
	if m.opts.Target == "" {
		m.loading = true
		return m.loadTargets()
	}
	return m.open(m.opts.Target)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, m.quit("")
		}
		if m.mode == modeConsole {
			return m, m.consoleKey(msg)
		}
		return m, m.listingKey(msg)

	case tea.MouseMsg:
		if m.mode == modeConsole {
			m.hover(msg)
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
		return m, nil

	case targetsMsg:
		return m, m.targetsLoaded(msg)

	case appendedMsg:
		if msg.gen == m.gen && m.view != nil {
			m.refresh(msg.src.take())
		}
		return m, nil

	case noticeMsg:
		if msg.gen == m.gen {
			m.notice = describe(msg.err)
		}
		return m, nil

	case navigateMsg:
		if msg.gen != m.gen {
			return m, nil
		}
		if msg.toLogin {
			return m, m.quit(LoginHint)
		}
		return m, m.backToListing()

	case submittedMsg:
		if msg.gen != m.gen {
			return m, nil
		}
		m.sending = false
		switch {
		case msg.err == nil:
			if m.input.Value() == msg.text {
				m.input.Reset()
			}
			m.notice = ""
		case !errors.IsTerminal(msg.err):
			// the view handles terminal errors by navigating away
			m.notice = describe(msg.err)
		}
		return m, nil
	}

	if m.mode == modeConsole {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) listingKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "q", "esc":
		return m.quit("")
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.targets)-1 {
			m.cursor++
		}
	case "r":
		m.loading = true
		return m.loadTargets()
	case "enter":
		if len(m.targets) == 0 {
			return nil
		}
		return m.open(m.targets[m.cursor])
	}
	return nil
}

func (m *Model) consoleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		return m.backToListing()
	case "enter":
		if m.sending {
			return nil
		}
		return m.submit()
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return cmd
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return cmd
}

// hover maps the pointer being over the transcript to inspect mode
func (m *Model) hover(msg tea.MouseMsg) {
	inside := msg.Y >= headerHeight && msg.Y < headerHeight+m.viewport.Height
	if inside == m.view.Transcript().Inspecting() {
		return
	}
	m.view.SetInspecting(inside)
	if !inside {
		m.viewport.GotoBottom()
	}
}

func (m *Model) open(target string) tea.Cmd {
	m.closeView()
	m.gen++
	events := &viewEvents{gen: m.gen, send: m.send}

	view, err := console.Open(m.ctx, target, console.ViewDeps{
		Session:   m.opts.Session,
		Reader:    m.opts.Backend,
		Executor:  m.opts.Backend,
		Navigator: events,
		Notifier:  events,
		OnAppend:  events.appended,
		Config:    m.opts.View,
	})
	if err != nil {
		// Open already asked to navigate
		slog.Debug("console not opened", slog.String("target", target), slog.String("error", err.Error()))
		return nil
	}

	m.view = view
	m.mode = modeConsole
	m.notice = ""
	m.sending = false
	m.input.Reset()
	m.viewport.SetContent("")
	m.layout()
	return m.input.Focus()
}

func (m *Model) closeView() {
	if m.view == nil {
		return
	}
	m.view.Close()
	m.view = nil
}

func (m *Model) backToListing() tea.Cmd {
	if m.view != nil {
		if err := m.view.Err(); err != nil {
			m.notice = describe(err)
		}
	}
	m.closeView()
	m.gen++
	m.mode = modeListing
	m.input.Blur()
	m.loading = true
	return m.loadTargets()
}

func (m *Model) loadTargets() tea.Cmd {
	backend, session := m.opts.Backend, m.opts.Session.Session()
	ctx := m.ctx
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, requestTimeout)
		defer cancel()
		names, err := backend.ListTargets(ctx, session)
		return targetsMsg{names: names, err: err}
	}
}

func (m *Model) targetsLoaded(msg targetsMsg) tea.Cmd {
	m.loading = false
	if msg.err != nil {
		if errors.Classify(msg.err) == errors.KindAuth {
			if err := m.opts.Session.Clear(); err != nil {
				slog.Error("failed to clear session", slog.String("error", err.Error()))
			}
			return m.quit(LoginHint)
		}
		m.notice = describe(msg.err)
		return nil
	}
	m.targets = msg.names
	if m.cursor >= len(m.targets) {
		m.cursor = max(len(m.targets)-1, 0)
	}
	return nil
}

func (m *Model) submit() tea.Cmd {
	view, text, gen := m.view, m.input.Value(), m.gen
	ctx := m.ctx
	m.sending = true
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, requestTimeout)
		defer cancel()
		return submittedMsg{gen: gen, text: text, err: view.Submit(ctx, text)}
	}
}

func (m *Model) refresh(scroll bool) {
	m.viewport.SetContent(m.view.Transcript().String())
	if scroll {
		m.viewport.GotoBottom()
	}
}

func (m *Model) layout() {
	if m.width > 0 {
		m.viewport.Width = m.width
		m.input.Width = max(m.width-len(m.input.Prompt)-1, 1)
	}
	if m.height > 0 {
		m.viewport.Height = max(m.height-headerHeight-footerHeight, 1)
	}
}

func (m *Model) quit(message string) tea.Cmd {
	m.exitMessage = message
	m.quitting = true
	m.closeView()
	return tea.Quit
}

func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	if m.mode == modeConsole && m.view != nil {
		return m.consoleView()
	}
	return m.listingView()
}

func (m *Model) listingView() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("devbox servers"))
	b.WriteString("\n\n")

	switch {
	case m.loading:
		b.WriteString(itemStyle.Render("loading..."))
		b.WriteString("\n")
	case len(m.targets) == 0:
		b.WriteString(itemStyle.Render("no servers"))
		b.WriteString("\n")
	}
	if !m.loading {
		for i, name := range m.targets {
			if i == m.cursor {
				b.WriteString(selectedStyle.Render("> " + name))
			} else {
				b.WriteString(itemStyle.Render(name))
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	if m.notice != "" {
		b.WriteString(noticeStyle.Render(m.notice))
		b.WriteString("\n")
	}
	b.WriteString(helpStyle.Render("↑/↓ select · enter open · r refresh · q quit"))
	return b.String()
}

func (m *Model) consoleView() string {
	state := modeStyle.Render("following")
	if m.view.Transcript().Inspecting() {
		state = inspectStyle.Render("inspecting")
	}
	header := fmt.Sprintf("%s %s", titleStyle.Render(m.view.Target()), state)

	status := helpStyle.Render("enter send · esc servers · ctrl+c quit")
	if m.notice != "" {
		status = noticeStyle.Render(m.notice)
	}

	return strings.Join([]string{header, m.viewport.View(), m.input.View(), status}, "\n")
}

// describe renders an error for the status line
func describe(err error) string {
	var apiErr *errors.APIError
	if stderrors.As(err, &apiErr) {
		if apiErr.Details != "" && errors.Classify(err) == errors.KindTransient {
			return apiErr.Message + ": " + apiErr.Details
		}
		return apiErr.Message
	}
	return err.Error()
}
