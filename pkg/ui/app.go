// Package ui is the terminal front end of the chat client.
package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/go-go-golems/coachchat/pkg/chat"
	"github.com/go-go-golems/coachchat/pkg/chatclient"
	"github.com/go-go-golems/coachchat/pkg/persona"
)

// stateMsg carries a new session snapshot into the update loop.
type stateMsg chatclient.State

type sendDoneMsg struct{ err error }

// Model is the bubbletea model driving a chatclient.Session.
type Model struct {
	ctx     context.Context
	session *chatclient.Session
	persona *persona.Persona
	logger  zerolog.Logger
	copy    func(string) error

	state    chatclient.State
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	status   string

	width  int
	height int
	ready  bool
}

func New(ctx context.Context, session *chatclient.Session, p *persona.Persona, logger zerolog.Logger) Model {
	in := textinput.New()
	in.Placeholder = "Ask your coach..."
	in.Prompt = "> "
	in.CharLimit = 2000
	in.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		ctx:     ctx,
		session: session,
		persona: p,
		logger:  logger.With().Str("component", "ui").Logger(),
		copy:    clipboard.WriteAll,
		input:   in,
		spinner: sp,
	}
}

// Run starts the program and blocks until the user quits.
func Run(ctx context.Context, session *chatclient.Session, p *persona.Persona, logger zerolog.Logger) error {
	prog := tea.NewProgram(New(ctx, session, p, logger), tea.WithAltScreen(), tea.WithContext(ctx))
	session.OnChange(func(st chatclient.State) { prog.Send(stateMsg(st)) })
	if _, err := prog.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return errors.Wrap(err, "run chat ui")
	}
	return nil
}

func (m Model) Init() tea.Cmd {
	session, ctx := m.session, m.ctx
	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
		func() tea.Msg {
			session.Bootstrap(ctx)
			return stateMsg(session.State())
		},
	)
}

func (m Model) send(text string) tea.Cmd {
	session, ctx := m.session, m.ctx
	return func() tea.Msg {
		return sendDoneMsg{err: session.SendMessage(ctx, text)}
	}
}

func (m Model) regenerate() tea.Cmd {
	session, ctx := m.session, m.ctx
	return func() tea.Msg {
		return sendDoneMsg{err: session.Regenerate(ctx)}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.input.Width = max(10, msg.Width-4)
		if !m.ready {
			m.viewport = viewport.New(msg.Width, m.viewportHeight())
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = m.viewportHeight()
		}
		m.refresh()
		return m, nil

	case stateMsg:
		m.state = chatclient.State(msg)
		if m.ready {
			m.viewport.Height = m.viewportHeight()
		}
		m.refresh()
		return m, nil

	case sendDoneMsg:
		switch {
		case msg.err == nil:
			m.status = ""
		case errors.Is(msg.err, chatclient.ErrTurnInFlight):
			m.status = "Still answering, please wait."
		case errors.Is(msg.err, chatclient.ErrNothingToRegenerate):
			m.status = "Nothing to regenerate yet."
		case errors.Is(msg.err, chatclient.ErrEmptyMessage):
			m.status = ""
		default:
			m.logger.Error().Err(msg.err).Msg("send failed")
			m.status = msg.err.Error()
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.state.Loading {
			m.refresh()
		}
		return m, cmd

	case tea.KeyMsg:
		if cmd, handled := m.handleKey(msg); handled {
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	if m.ready {
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch msg.String() {
	case "ctrl+c", "esc":
		return tea.Quit, true
	case "enter":
		text := m.input.Value()
		if strings.TrimSpace(text) == "" || m.state.Loading || !m.state.HistoryLoaded {
			return nil, true
		}
		m.input.Reset()
		m.status = ""
		return m.send(text), true
	case "ctrl+r":
		if m.state.Loading || !m.state.HistoryLoaded {
			return nil, true
		}
		return m.regenerate(), true
	case "ctrl+y":
		m.copyLastReply()
		return nil, true
	}
	if m.state.ShowSuggestions && !m.state.Loading && m.input.Value() == "" && len(msg.Runes) == 1 {
		if r := msg.Runes[0]; r >= '1' && r <= '9' {
			idx := int(r - '1')
			if idx < len(m.persona.Suggestions) {
				return m.send(m.persona.Suggestions[idx]), true
			}
		}
	}
	return nil, false
}

func (m *Model) copyLastReply() {
	for i := len(m.state.Messages) - 1; i >= 0; i-- {
		msg := m.state.Messages[i]
		if msg.Role != chat.RoleAI || msg.Text == "" {
			continue
		}
		if err := m.copy(msg.Text); err != nil {
			m.logger.Warn().Err(err).Msg("clipboard write failed")
			m.status = "Could not copy to clipboard."
			return
		}
		m.status = "Copied last reply."
		return
	}
	m.status = "No reply to copy."
}

func (m Model) viewportHeight() int {
	// title, input, status and help lines
	h := m.height - 4
	if m.state.ShowSuggestions {
		h -= len(m.persona.Suggestions) + 1
	}
	return max(1, h)
}

func (m *Model) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderMessages())
	m.viewport.GotoBottom()
}

func (m Model) renderMessages() string {
	width := max(20, m.width-4)
	var sb strings.Builder
	last := len(m.state.Messages) - 1
	for i, msg := range m.state.Messages {
		label := userLabelStyle.Render("You")
		if msg.Role == chat.RoleAI {
			label = aiLabelStyle.Render("Coach")
		}
		text := msg.Text
		if i == last && msg.Role == chat.RoleAI && text == "" && m.state.Loading {
			text = m.spinner.View()
		}
		sb.WriteString(label)
		sb.WriteString("\n")
		sb.WriteString(bubbleStyle.Width(width).Render(text))
		sb.WriteString("\n\n")
	}
	return sb.String()
}

func (m Model) View() string {
	if !m.state.HistoryLoaded {
		text := fmt.Sprintf("%s %s", m.spinner.View(), m.persona.LoadingText)
		if m.width == 0 {
			return text
		}
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, loadingStyle.Render(text))
	}
	if !m.ready {
		return "\n  Initializing..."
	}

	var sb strings.Builder
	sb.WriteString(titleStyle.Render(m.title()))
	sb.WriteString("\n")
	sb.WriteString(m.viewport.View())
	sb.WriteString("\n")
	if m.state.ShowSuggestions {
		for i, s := range m.persona.Suggestions {
			if i >= 9 {
				break
			}
			sb.WriteString(suggestionStyle.Render(fmt.Sprintf("%d. %s", i+1, s)))
			sb.WriteString("\n")
		}
	}
	sb.WriteString(m.input.View())
	sb.WriteString("\n")
	if m.status != "" {
		sb.WriteString(statusStyle.Render(m.status))
	} else if m.state.Loading {
		sb.WriteString(statusStyle.Render(m.spinner.View() + " thinking..."))
	}
	sb.WriteString("\n")
	sb.WriteString(helpStyle.Render("enter send • ctrl+r regenerate • ctrl+y copy reply • esc quit"))
	return sb.String()
}

func (m Model) title() string {
	if m.persona.Name == "" {
		return "AI Coach"
	}
	return m.persona.Name
}
