package tui

import (
	"context"
	"iter"
	"testing"

	"summarizer-agents/segment"
	"summarizer-agents/summarizer"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSummarizer struct {
	segments []segment.Segment
	texts    []string
	ctx      context.Context
}

func (f *fakeSummarizer) Agents() []string {
	return []string{"Condensed", "Descriptive"}
}

func (f *fakeSummarizer) Stream(ctx context.Context, name, text string) (iter.Seq[segment.Segment], error) {
	f.ctx = ctx
	if text == "" {
		return nil, summarizer.ErrNoText
	}
	f.texts = append(f.texts, name+": "+text)
	return func(yield func(segment.Segment) bool) {
		for _, s := range f.segments {
			if !yield(s) {
				return
			}
		}
	}, nil
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	model, ok := next.(Model)
	require.True(t, ok)
	return model, cmd
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "ctrl+s":
		return tea.KeyMsg{Type: tea.KeyCtrlS}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func sized(t *testing.T, m Model) Model {
	t.Helper()
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 24})
	return m
}

func TestNew_SkipsPickerForKnownAgent(t *testing.T) {
	m := New(&fakeSummarizer{}, "Descriptive")
	assert.Equal(t, stateInput, m.state)
	assert.Equal(t, "Descriptive", m.agent)

	m = New(&fakeSummarizer{}, "Unknown")
	assert.Equal(t, statePick, m.state)
	assert.Empty(t, m.agent)
}

func TestModel_PickAgent(t *testing.T) {
	m := sized(t, New(&fakeSummarizer{}, ""))

	m, _ = update(t, m, key("enter"))
	assert.Equal(t, stateInput, m.state)
	assert.Equal(t, "Condensed", m.agent)
	assert.Contains(t, m.View(), "Condensed")

	m, _ = update(t, m, key("esc"))
	assert.Equal(t, statePick, m.state)
}

func TestModel_SubmitRejectsEmptyText(t *testing.T) {
	service := &fakeSummarizer{}
	m := sized(t, New(service, "Condensed"))

	m, cmd := update(t, m, key("ctrl+s"))
	assert.Nil(t, cmd)
	assert.Equal(t, stateInput, m.state)
	assert.Equal(t, summarizer.NoTextMessage, m.status)
	assert.Empty(t, service.texts)
}

func TestModel_StreamsSegments(t *testing.T) {
	service := &fakeSummarizer{segments: []segment.Segment{
		{Text: "Title", Paragraph: true},
		{Text: "First point."},
		{Text: summarizer.CouldNotConnectText, Err: assert.AnError},
	}}
	m := sized(t, New(service, "Condensed"))
	m.input.SetValue("Some long text.")

	m, cmd := update(t, m, key("ctrl+s"))
	require.NotNil(t, cmd)
	assert.Equal(t, stateStreaming, m.state)
	assert.Equal(t, []string{"Condensed: Some long text."}, service.texts)

	// Drive the producer and consumer directly instead of through a program.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	segs, err := service.Stream(ctx, m.agent, "Some long text.")
	require.NoError(t, err)
	assert.Nil(t, pump(ctx, segs, m.ch)())

	for {
		msg := waitForSegment(m.ch)()
		m, _ = update(t, m, msg)
		if _, done := msg.(streamDoneMsg); done {
			break
		}
	}

	assert.Equal(t, stateDone, m.state)
	assert.Len(t, m.segments, 3)
	assert.Equal(t, "Title\n\nFirst point.", m.markdown())
	assert.Equal(t, []string{summarizer.CouldNotConnectText}, m.errorLines())
	assert.Equal(t, "Condensed finished (3 segments)", m.status)
}

func TestModel_StreamFollowsRunContext(t *testing.T) {
	service := &fakeSummarizer{segments: []segment.Segment{{Text: "Only."}}}
	parent, cancel := context.WithCancel(context.Background())
	m := sized(t, New(service, "Condensed").WithContext(parent))
	m.input.SetValue("text")

	m, cmd := update(t, m, key("ctrl+s"))
	require.NotNil(t, cmd)
	require.NotNil(t, service.ctx)
	assert.NoError(t, service.ctx.Err())

	cancel()
	assert.ErrorIs(t, service.ctx.Err(), context.Canceled)
	m.stop()
}

func TestModel_CancelDropsLateMessages(t *testing.T) {
	service := &fakeSummarizer{segments: []segment.Segment{{Text: "Only."}}}
	m := sized(t, New(service, "Condensed"))
	m.input.SetValue("text")

	m, _ = update(t, m, key("ctrl+s"))
	stale := m.ch

	m, _ = update(t, m, key("esc"))
	assert.Equal(t, stateDone, m.state)
	assert.Equal(t, "Cancelled", m.status)
	assert.Nil(t, m.cancel)

	m, _ = update(t, m, key("n"))
	require.Equal(t, stateInput, m.state)
	m.input.SetValue("again")
	m, _ = update(t, m, key("ctrl+s"))
	require.Equal(t, stateStreaming, m.state)

	m, _ = update(t, m, segmentMsg{ch: stale, seg: segment.Segment{Text: "Late."}})
	m, _ = update(t, m, streamDoneMsg{ch: stale})
	assert.Equal(t, stateStreaming, m.state)
	assert.Empty(t, m.segments)
}

func TestModel_Quit(t *testing.T) {
	m := sized(t, New(&fakeSummarizer{}, "Condensed"))
	m.input.SetValue("text")
	m, _ = update(t, m, key("ctrl+s"))

	m, cmd := update(t, m, key("ctrl+c"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.True(t, m.quitting)
	assert.Nil(t, m.cancel)
	assert.Contains(t, m.View(), "Goodbye")
}
