package ui

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gwi.com/chatsync/internal/core"
	"gwi.com/chatsync/internal/model"
)

func TestParseCommand(t *testing.T) {
	c, err := parseCommand("  hello there ")
	require.NoError(t, err)
	assert.Equal(t, cmdSubmit, c.kind)
	assert.Equal(t, "hello there", c.text)

	c, err = parseCommand("/open 2")
	require.NoError(t, err)
	assert.Equal(t, cmdOpen, c.kind)
	assert.Equal(t, 2, c.index)

	c, err = parseCommand("/rename Star charts")
	require.NoError(t, err)
	assert.Equal(t, "Star charts", c.text)

	for _, bad := range []string{"/open", "/open zero", "/open 0", "/rename", "/jump"} {
		_, err := parseCommand(bad)
		assert.Error(t, err, bad)
	}
}

func TestRenderTranscript(t *testing.T) {
	welcome := renderTranscript(core.View{
		Conversations: []model.Conversation{{ID: "c1", Title: "Droids"}},
	}, false, nil)
	assert.Contains(t, welcome, "Welcome")
	assert.Contains(t, welcome, "1. Droids")

	out := renderTranscript(core.View{
		ConversationID: "c1",
		Messages: []model.Message{
			{ID: "a", Query: "first", Response: "done"},
			{ID: "b", Query: "second", Generating: true},
			{ID: "c", Query: "third", Errored: true},
		},
	}, false, nil)
	assert.Contains(t, out, "first")
	assert.Contains(t, out, "done")
	assert.Contains(t, out, "…")
	assert.Contains(t, out, "could not be generated")
	assert.NotContains(t, out, "Welcome")
}

func TestInputDisabledWhileGenerating(t *testing.T) {
	s := core.NewSession(core.Options{})
	defer s.Close()

	m := New(context.Background(), s)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	m = next.(Model)

	next, _ = m.Update(viewMsg(core.View{ConversationID: "c1", Generating: true}))
	m = next.(Model)
	assert.False(t, m.input.Focused())
	assert.Contains(t, m.View(), "Generating")

	m.input.SetValue("another")
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	assert.Nil(t, cmd)
	assert.Equal(t, "another", m.input.Value())

	next, _ = m.Update(viewMsg(core.View{ConversationID: "c1"}))
	m = next.(Model)
	assert.True(t, m.input.Focused())
}

func TestSubmitWithoutAuthReportsError(t *testing.T) {
	s := core.NewSession(core.Options{})
	defer s.Close()

	m := New(context.Background(), s)
	m.input.SetValue("hello")
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	require.NotNil(t, cmd)
	assert.Empty(t, m.input.Value())

	res, ok := cmd().(resultMsg)
	require.True(t, ok)
	assert.ErrorIs(t, res.err, core.ErrUnauthenticated)
}

type stubAuth struct{ signedOut bool }

func (a *stubAuth) Authenticated() bool { return !a.signedOut }
func (a *stubAuth) UserID() string      { return "u1" }
func (a *stubAuth) SignOut()            { a.signedOut = true }

func TestLogoutSignsOutAndQuits(t *testing.T) {
	c, err := parseCommand("/logout")
	require.NoError(t, err)
	assert.Equal(t, cmdLogout, c.kind)

	authn := &stubAuth{}
	s := core.NewSession(core.Options{Auth: authn})
	defer s.Close()

	m := New(context.Background(), s)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	m = next.(Model)

	m.input.SetValue("/logout")
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.True(t, authn.signedOut)
}
