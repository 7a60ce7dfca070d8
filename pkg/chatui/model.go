// Package chatui is an interactive terminal client for the dialogue
// controller.
package chatui

import (
	"context"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/entrhq/medisimple/pkg/dialogue"
	"github.com/entrhq/medisimple/pkg/types"
)

// Responder answers one chat turn.
type Responder interface {
	Respond(ctx context.Context, sessionID, query string) dialogue.Reply
}

// Options configures the chat client.
type Options struct {
	SessionID string
	Model     string

	// Copy writes text to the system clipboard. Defaults to
	// clipboard.WriteAll.
	Copy func(string) error
}

// Run starts the client and blocks until the user quits.
func Run(ctx context.Context, r Responder, opts Options) error {
	m := newModel(ctx, r, opts)
	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}

type entry struct {
	role types.MessageRole
	text string
}

// replyMsg carries a finished turn back into the update loop.
type replyMsg struct {
	reply dialogue.Reply
}

type model struct {
	ctx       context.Context
	responder Responder
	opts      Options

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer

	entries []entry
	busy    bool
	status  string
	isError bool

	width  int
	height int
	ready  bool
}

func newModel(ctx context.Context, r Responder, opts Options) *model {
	if opts.SessionID == "" {
		opts.SessionID = "terminal"
	}
	if opts.Copy == nil {
		opts.Copy = clipboard.WriteAll
	}

	in := textinput.New()
	in.Placeholder = "Ask about a condition, symptom or medicine..."
	in.Prompt = "› "
	in.CharLimit = 0
	in.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = thinkingStyle

	return &model{
		ctx:       ctx,
		responder: r,
		opts:      opts,
		viewport:  viewport.New(80, 20),
		input:     in,
		spinner:   sp,
	}
}

func (m *model) Init() tea.Cmd {
	return textinput.Blink
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			return m, m.submit()
		case tea.KeyCtrlY:
			m.copyLastReply()
			return m, nil
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case replyMsg:
		m.busy = false
		m.entries = append(m.entries, entry{role: types.RoleAssistant, text: msg.reply.Text})
		m.setStatus("", false)
		if msg.reply.Path == dialogue.PathFailed {
			m.setStatus("last turn failed; see the log for details", true)
		}
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit sends the input as a new turn unless one is in flight.
func (m *model) submit() tea.Cmd {
	query := strings.TrimSpace(m.input.Value())
	if m.busy || query == "" {
		return nil
	}
	m.input.Reset()
	m.busy = true
	m.entries = append(m.entries, entry{role: types.RoleUser, text: query})
	m.refresh()

	ctx, r, session := m.ctx, m.responder, m.opts.SessionID
	ask := func() tea.Msg {
		return replyMsg{reply: r.Respond(ctx, session, query)}
	}
	return tea.Batch(ask, m.spinner.Tick)
}

func (m *model) copyLastReply() {
	for i := len(m.entries) - 1; i >= 0; i-- {
		if m.entries[i].role != types.RoleAssistant {
			continue
		}
		if err := m.opts.Copy(m.entries[i].text); err != nil {
			m.setStatus("copy failed: "+err.Error(), true)
			return
		}
		m.setStatus("copied reply to clipboard", false)
		return
	}
	m.setStatus("nothing to copy yet", false)
}

func (m *model) setStatus(s string, isError bool) {
	m.status = s
	m.isError = isError
}

func (m *model) resize(width, height int) {
	m.width, m.height = width, height

	// header, tips, status bar and the bordered input take 7 rows
	vpHeight := height - 7
	if vpHeight < 3 {
		vpHeight = 3
	}
	m.viewport.Width = width
	m.viewport.Height = vpHeight
	m.input.Width = width - 6

	wrap := width - 4
	if wrap < 20 {
		wrap = 20
	}
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(wrap))
	if err == nil {
		m.renderer = r
	}
	m.ready = true
	m.refresh()
}

func (m *model) refresh() {
	m.viewport.SetContent(m.transcript())
	m.viewport.GotoBottom()
}

func (m *model) transcript() string {
	var b strings.Builder
	for _, e := range m.entries {
		if e.role == types.RoleUser {
			b.WriteString(userStyle.Render("You: "))
			b.WriteString(e.text)
			b.WriteString("\n\n")
			continue
		}
		b.WriteString(assistantStyle.Render("MediSimple:"))
		b.WriteString("\n")
		b.WriteString(m.renderMarkdown(e.text))
		b.WriteString("\n")
	}
	return b.String()
}

func (m *model) renderMarkdown(text string) string {
	if m.renderer != nil {
		if out, err := m.renderer.Render(text); err == nil {
			return strings.TrimRight(out, "\n") + "\n"
		}
	}
	return replyStyle.Render(text) + "\n"
}

func (m *model) View() string {
	if !m.ready {
		return "\n  Initializing..."
	}

	var b strings.Builder
	b.WriteString(headerStyle.Render("MediSimple"))
	if m.opts.Model != "" {
		b.WriteString(tipsStyle.Render("  · " + m.opts.Model))
	}
	b.WriteString("\n")
	b.WriteString(tipsStyle.Render("enter to send · ctrl+y copy last reply · esc to quit"))
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.statusLine())
	b.WriteString("\n")
	b.WriteString(inputBoxStyle.Width(m.width - 2).Render(m.input.View()))
	return b.String()
}

func (m *model) statusLine() string {
	switch {
	case m.busy:
		return statusBarStyle.Render(m.spinner.View() + thinkingStyle.Render(" Looking that up..."))
	case m.isError:
		return statusBarStyle.Render(errorStyle.Render(m.status))
	default:
		return statusBarStyle.Render(m.status)
	}
}
