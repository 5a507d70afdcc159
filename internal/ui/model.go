package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"gwi.com/chatsync/internal/core"
)

type viewMsg core.View

type resultMsg struct {
	status string
	err    error
}

// Model is the terminal chat client. It renders the views a core.Session
// publishes and turns input lines into session calls.
type Model struct {
	ctx     context.Context
	session *core.Session

	views     <-chan core.View
	cancelSub func()
	view      core.View

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer

	width, height int
	ready         bool
	listing       bool
	status        string
}

func New(ctx context.Context, session *core.Session) Model {
	views, cancel := session.Subscribe()

	ti := textinput.New()
	ti.Placeholder = "Send a message or /help"
	ti.CharLimit = 4000
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = pendingStyle

	return Model{
		ctx:       ctx,
		session:   session,
		views:     views,
		cancelSub: cancel,
		input:     ti,
		spinner:   sp,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, waitForView(m.views))
}

func waitForView(views <-chan core.View) tea.Cmd {
	return func() tea.Msg {
		v, ok := <-views
		if !ok {
			return nil
		}
		return viewMsg(v)
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()

	case viewMsg:
		m.view = core.View(msg)
		if m.view.Generating {
			m.input.Blur()
		} else {
			m.input.Focus()
		}
		m.refreshContent()
		return m, waitForView(m.views)

	case resultMsg:
		m.status = msg.status
		if msg.err != nil {
			m.status = errorStyle.Render(msg.err.Error())
		}
		m.refreshContent()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.cancelSub()
			return m, tea.Quit
		case tea.KeyEnter:
			return m.submitLine()
		}
	}

	var cmd tea.Cmd
	if m.input.Focused() {
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m Model) submitLine() (tea.Model, tea.Cmd) {
	line := m.input.Value()
	if strings.TrimSpace(line) == "" {
		return m, nil
	}
	c, err := parseCommand(line)
	if err != nil {
		m.status = errorStyle.Render(err.Error())
		return m, nil
	}
	if c.kind == cmdSubmit && m.view.Generating {
		m.status = noticeStyle.Render("Wait for the reply to finish.")
		return m, nil
	}

	m.input.Reset()
	m.status = ""
	m.listing = c.kind == cmdChats

	switch c.kind {
	case cmdLogout:
		m.session.SignOut()
		m.cancelSub()
		return m, tea.Quit
	case cmdQuit:
		m.cancelSub()
		return m, tea.Quit
	}
	return m, m.run(c)
}

// run performs c off the UI goroutine; its outcome arrives as a resultMsg
// and the resulting view through the subscription.
func (m Model) run(c command) tea.Cmd {
	ctx, session := m.ctx, m.session
	convs := m.view.Conversations
	current := m.view.ConversationID

	return func() tea.Msg {
		switch c.kind {
		case cmdSubmit:
			_, err := session.Submit(ctx, c.text)
			return resultMsg{err: err}
		case cmdNew:
			return resultMsg{err: session.Select(ctx, "", "")}
		case cmdChats:
			_, err := session.Conversations(ctx)
			return resultMsg{err: err}
		case cmdOpen:
			if c.index > len(convs) {
				return resultMsg{err: fmt.Errorf("no chat #%d; run /chats", c.index)}
			}
			conv := convs[c.index-1]
			return resultMsg{err: session.Select(ctx, conv.ID, conv.Title)}
		case cmdDelete:
			if current == "" {
				return resultMsg{err: core.ErrNoConversation}
			}
			if err := session.Delete(ctx, current); err != nil {
				return resultMsg{err: err}
			}
			return resultMsg{status: "Chat deleted."}
		case cmdRename:
			if current == "" {
				return resultMsg{err: core.ErrNoConversation}
			}
			return resultMsg{err: session.Rename(ctx, current, c.text)}
		case cmdRefresh:
			err := session.Refresh(ctx)
			if errors.Is(err, core.ErrNoConversation) {
				err = nil
			}
			return resultMsg{err: err}
		}
		return nil
	}
}

func (m *Model) resize() {
	headerHeight, footerHeight := 1, 3
	height := m.height - headerHeight - footerHeight
	if height < 1 {
		height = 1
	}
	if !m.ready {
		m.viewport = viewport.New(m.width, height)
		m.ready = true
	} else {
		m.viewport.Width = m.width
		m.viewport.Height = height
	}
	m.input.Width = m.width - 4

	wrap := m.width - 4
	if wrap < 20 {
		wrap = 20
	}
	renderer, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(wrap))
	if err == nil {
		m.renderer = renderer
	}
	m.refreshContent()
}

func (m *Model) refreshContent() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(renderTranscript(m.view, m.listing, m.renderer))
	m.viewport.GotoBottom()
}

func (m Model) View() string {
	if !m.ready {
		return "Loading…"
	}

	title := m.view.Title
	if m.view.ConversationID == "" {
		title = "New chat"
	}
	header := titleStyle.Render(title)

	status := m.status
	switch {
	case m.view.Generating:
		status = m.spinner.View() + pendingStyle.Render(" Generating a reply…")
	case m.view.Notice != "":
		status = noticeStyle.Render(m.view.Notice)
	case status == "":
		status = helpStyle.Render(helpText)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.viewport.View(),
		status,
		m.input.View(),
	)
}
