// Package tui is a terminal interface for picking an agent, pasting text and
// watching the summary stream in.
package tui

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"strings"

	"summarizer-agents/segment"
	"summarizer-agents/summarizer"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

// Summarizer is the part of the summarization service the interface needs.
type Summarizer interface {
	Agents() []string
	Stream(ctx context.Context, name, text string) (iter.Seq[segment.Segment], error)
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			MarginBottom(1)

	errorStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#EF4444")).
			Padding(0, 1)

	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))
	helpStyle   = lipgloss.NewStyle().Faint(true)
)

type state int

const (
	statePick state = iota
	stateInput
	stateStreaming
	stateDone
)

// segmentBuffer bounds how far the producer may run ahead of the view.
const segmentBuffer = 16

// Stream messages carry their channel so that late ones from a cancelled
// stream are dropped.
type segmentMsg struct {
	ch  <-chan segment.Segment
	seg segment.Segment
}

type streamDoneMsg struct{ ch <-chan segment.Segment }

type agentItem string

func (a agentItem) Title() string       { return string(a) }
func (a agentItem) Description() string { return "Summarize with the " + string(a) + " agent" }
func (a agentItem) FilterValue() string { return string(a) }

// Model is the bubbletea model driving the interface.
type Model struct {
	service Summarizer
	ctx     context.Context

	state    state
	agent    string
	status   string
	list     list.Model
	input    textarea.Model
	spinner  spinner.Model
	viewport viewport.Model
	renderer *glamour.TermRenderer

	segments []segment.Segment
	ch       chan segment.Segment
	cancel   context.CancelFunc

	width, height int
	ready         bool
	quitting      bool
}

// New builds the model. When agent names a known agent the picker is skipped.
func New(service Summarizer, agent string) Model {
	names := service.Agents()
	items := make([]list.Item, len(names))
	for i, name := range names {
		items[i] = agentItem(name)
	}

	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Choose an agent"
	l.SetShowStatusBar(false)

	ta := textarea.New()
	ta.Placeholder = "Paste the text to summarize..."
	ta.ShowLineNumbers = false
	ta.CharLimit = 0

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#7C3AED"))

	m := Model{
		service: service,
		list:    l,
		input:   ta,
		spinner: s,
		status:  "Select an agent and press Enter",
	}
	if slices.Contains(names, agent) {
		m.agent = agent
		m.state = stateInput
		m.status = "Paste your text, then press ctrl+s to summarize"
		m.input.Focus()
	}
	return m
}

func (m Model) Init() tea.Cmd {
	if m.state == stateInput {
		return textarea.Blink
	}
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.stop()
			m.quitting = true
			return m, tea.Quit
		}
		return m.handleKey(msg)

	case spinner.TickMsg:
		if m.state == stateStreaming {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}

	case segmentMsg:
		if m.state != stateStreaming || msg.ch != m.ch {
			return m, nil
		}
		m.segments = append(m.segments, msg.seg)
		m.refresh()
		return m, waitForSegment(m.ch)

	case streamDoneMsg:
		if m.state != stateStreaming || msg.ch != m.ch {
			return m, nil
		}
		m.stop()
		m.state = stateDone
		m.status = fmt.Sprintf("%s finished (%d segments)", m.agent, len(m.segments))
		m.refresh()
	}

	return m, tea.Batch(cmds...)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.state {
	case statePick:
		if msg.String() == "enter" && m.list.FilterState() != list.Filtering {
			item, ok := m.list.SelectedItem().(agentItem)
			if !ok {
				return m, nil
			}
			m.agent = string(item)
			m.state = stateInput
			m.status = "Paste your text, then press ctrl+s to summarize"
			return m, m.input.Focus()
		}
		m.list, cmd = m.list.Update(msg)

	case stateInput:
		switch msg.String() {
		case "esc":
			m.input.Blur()
			m.state = statePick
			m.status = "Select an agent and press Enter"
			return m, nil
		case "ctrl+s":
			return m.submit()
		}
		m.input, cmd = m.input.Update(msg)

	case stateStreaming:
		if msg.String() == "esc" {
			m.stop()
			m.state = stateDone
			m.status = "Cancelled"
			m.refresh()
		}

	case stateDone:
		switch msg.String() {
		case "q":
			m.quitting = true
			return m, tea.Quit
		case "n":
			m.input.Reset()
			m.state = stateInput
			m.status = "Paste your text, then press ctrl+s to summarize"
			return m, m.input.Focus()
		case "a":
			m.state = statePick
			m.status = "Select an agent and press Enter"
			return m, nil
		}
		m.viewport, cmd = m.viewport.Update(msg)
	}

	return m, cmd
}

// WithContext returns a copy of m whose streams end when ctx is done.
func (m Model) WithContext(ctx context.Context) Model {
	m.ctx = ctx
	return m
}

// submit validates the input and starts streaming the summary.
func (m Model) submit() (tea.Model, tea.Cmd) {
	parent := m.ctx
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	segs, err := m.service.Stream(ctx, m.agent, m.input.Value())
	if err != nil {
		cancel()
		m.status = rejection(err, m.agent)
		return m, nil
	}

	m.input.Blur()
	m.cancel = cancel
	m.ch = make(chan segment.Segment, segmentBuffer)
	m.segments = nil
	m.state = stateStreaming
	m.status = "Summarizing with " + m.agent + "..."
	m.refresh()

	return m, tea.Batch(m.spinner.Tick, pump(ctx, segs, m.ch), waitForSegment(m.ch))
}

func (m *Model) stop() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}

func rejection(err error, agent string) string {
	switch {
	case errors.Is(err, summarizer.ErrNoText):
		return summarizer.NoTextMessage
	case errors.Is(err, summarizer.ErrAgentNotFound), errors.Is(err, summarizer.ErrNoAgent):
		return summarizer.NotFoundMessage(agent)
	default:
		return err.Error()
	}
}

// pump forwards segments into ch until the stream ends or ctx is cancelled.
func pump(ctx context.Context, segs iter.Seq[segment.Segment], ch chan<- segment.Segment) tea.Cmd {
	return func() tea.Msg {
		defer close(ch)
		for seg := range segs {
			select {
			case ch <- seg:
			case <-ctx.Done():
				return nil
			}
		}
		return nil
	}
}

func waitForSegment(ch <-chan segment.Segment) tea.Cmd {
	return func() tea.Msg {
		seg, ok := <-ch
		if !ok {
			return streamDoneMsg{ch: ch}
		}
		return segmentMsg{ch: ch, seg: seg}
	}
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height
	bodyHeight := max(height-6, 3)

	m.list.SetSize(width, bodyHeight)
	m.input.SetWidth(width)
	m.input.SetHeight(bodyHeight)

	if !m.ready {
		m.viewport = viewport.New(width, bodyHeight)
		m.ready = true
	} else {
		m.viewport.Width = width
		m.viewport.Height = bodyHeight
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(max(width-4, 20)),
	)
	if err == nil {
		m.renderer = renderer
	}
	m.refresh()
}

// markdown is the summary so far with error segments left out.
func (m Model) markdown() string {
	return segment.Join(func(yield func(segment.Segment) bool) {
		for _, seg := range m.segments {
			if !seg.IsError() && !yield(seg) {
				return
			}
		}
	})
}

func (m Model) errorLines() []string {
	var out []string
	for _, seg := range m.segments {
		if seg.IsError() {
			out = append(out, seg.String())
		}
	}
	return out
}

func (m *Model) refresh() {
	if !m.ready {
		return
	}

	var b strings.Builder
	content := m.markdown()
	if m.renderer != nil && content != "" {
		if rendered, err := m.renderer.Render(content); err == nil {
			content = strings.TrimRight(rendered, "\n")
		}
	}
	b.WriteString(content)
	for _, e := range m.errorLines() {
		b.WriteString("\n" + errorStyle.Render(e))
	}

	m.viewport.SetContent(b.String())
	m.viewport.GotoBottom()
}

func (m Model) View() string {
	if m.quitting {
		return "\nGoodbye! 👋\n"
	}

	header := titleStyle.Render("📝 Summarizer Agents")
	if m.agent != "" {
		header = titleStyle.Render("📝 " + m.agent)
	}

	var body, help string
	switch m.state {
	case statePick:
		body = m.list.View()
		help = "enter: select • /: filter • ctrl+c: quit"
	case stateInput:
		body = m.input.View()
		help = "ctrl+s: summarize • esc: agents • ctrl+c: quit"
	case stateStreaming:
		body = m.viewport.View()
		help = "esc: cancel • ctrl+c: quit"
	case stateDone:
		body = m.viewport.View()
		help = "↑/↓: scroll • n: new text • a: agents • q: quit"
	}

	status := statusStyle.Render(m.status)
	if m.state == stateStreaming {
		status = m.spinner.View() + " " + status
	}

	return header + "\n" + body + "\n" + status + "\n" + helpStyle.Render(help)
}

// Run starts the interface and blocks until the user quits or ctx is done.
func Run(ctx context.Context, service Summarizer, agent string) error {
	program := tea.NewProgram(New(service, agent).WithContext(ctx), tea.WithAltScreen(), tea.WithContext(ctx))
	final, err := program.Run()
	if m, ok := final.(Model); ok {
		m.stop()
	}
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("run tui: %w", err)
	}
	return nil
}
