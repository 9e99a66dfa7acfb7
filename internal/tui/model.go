package tui

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"docrag/internal/bridge"
	"docrag/internal/domain"
	"docrag/internal/service"
)

// RAGPort is the TUI-facing subset of the RAG service.
type RAGPort interface {
	IndexDocument(ctx context.Context, path string) (service.IndexReport, error)
	Answer(ctx context.Context, question string) (domain.Answer, error)
}

type lineKind int

const (
	lineUser lineKind = iota
	lineAssistant
	lineSystem
	lineError
)

type chatLine struct {
	kind lineKind
	text string
}

// eventMsg carries one bridge event into the Bubble Tea loop together with
// the channel to keep reading from.
type eventMsg[T any] struct {
	event  bridge.Event[T]
	events <-chan bridge.Event[T]
}

func waitFor[T any](events <-chan bridge.Event[T]) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return nil
		}
		return eventMsg[T]{event: ev, events: events}
	}
}

// Model is the Bubble Tea model for the chat application.
type Model struct {
	service  RAGPort
	bridge   *bridge.Bridge
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	lines    []chatLine
	files    []string
	status   string
	busy     bool
	ready    bool
}

// New creates a new TUI model. Work is dispatched on b so the caller can wait
// for in-flight invocations after the program exits.
func New(svc RAGPort, b *bridge.Bridge) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question, or /index <path>"
	ti.Focus()
	ti.CharLimit = 0

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	vp := viewport.New(0, 0)
	return Model{
		service:  svc,
		bridge:   b,
		input:    ti,
		viewport: vp,
		spinner:  sp,
		status:   "Ready. Index a document with /index <path>.",
	}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

// Busy reports whether an index or answer invocation is running.
func (m Model) Busy() bool { return m.busy }

// Update handles key, window and bridge events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, ch := chatBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header+files, status, input, spacer
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-ch)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		case "enter":
			if m.busy {
				return m, nil
			}
			return m.submit(strings.TrimSpace(m.input.Value()))
		}
		if m.busy {
			return m, nil
		}

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case eventMsg[service.IndexReport]:
		return m.onIndexEvent(msg)

	case eventMsg[domain.Answer]:
		return m.onAnswerEvent(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit(text string) (tea.Model, tea.Cmd) {
	if text == "" {
		return m, nil
	}
	m.input.SetValue("")

	switch {
	case text == "/quit":
		return m, tea.Quit
	case text == "/index" || strings.HasPrefix(text, "/index "):
		path := strings.TrimSpace(strings.TrimPrefix(text, "/index"))
		if path == "" {
			m.status = "Usage: /index <path>"
			return m, nil
		}
		return m.startIndex(path)
	default:
		return m.startAnswer(text)
	}
}

func (m Model) startIndex(path string) (tea.Model, tea.Cmd) {
	name := filepath.Base(path)
	inv := bridge.Go(m.bridge, "index "+name, func(ctx context.Context, report bridge.Reporter) (service.IndexReport, error) {
		report("Indexing " + name + "...")
		return m.service.IndexDocument(ctx, path)
	})
	m.busy = true
	m.status = "Indexing " + name + "..."
	return m, tea.Batch(m.spinner.Tick, waitFor(inv.Events()))
}

func (m Model) startAnswer(question string) (tea.Model, tea.Cmd) {
	m.addLine(lineUser, question)
	inv := bridge.Go(m.bridge, "answer", func(ctx context.Context, report bridge.Reporter) (domain.Answer, error) {
		report("Thinking...")
		return m.service.Answer(ctx, question)
	})
	m.busy = true
	m.status = "Thinking..."
	return m, tea.Batch(m.spinner.Tick, waitFor(inv.Events()))
}

func (m Model) onIndexEvent(msg eventMsg[service.IndexReport]) (tea.Model, tea.Cmd) {
	ev := msg.event
	switch ev.Kind {
	case bridge.Progress:
		m.status = ev.Message
		return m, waitFor(msg.events)
	case bridge.Completed:
		m.busy = false
		r := ev.Value
		if !r.Indexed {
			m.status = fmt.Sprintf("Failed to index %s: %s", r.Source, r.Reason)
			m.addLine(lineError, m.status)
			return m, nil
		}
		m.files = append(m.files, r.Source)
		m.status = fmt.Sprintf("Indexed %s (%d chunks)", r.Source, r.Chunks)
		m.addLine(lineSystem, m.status)
	case bridge.Failed:
		m.busy = false
		m.status = "Indexing failed"
		m.addLine(lineError, ev.Message)
	}
	return m, nil
}

func (m Model) onAnswerEvent(msg eventMsg[domain.Answer]) (tea.Model, tea.Cmd) {
	ev := msg.event
	switch ev.Kind {
	case bridge.Progress:
		m.status = ev.Message
		return m, waitFor(msg.events)
	case bridge.Completed:
		m.busy = false
		m.status = "Ready"
		m.addLine(lineAssistant, ev.Value.Text)
	case bridge.Failed:
		m.busy = false
		m.status = "Question failed"
		m.addLine(lineError, ev.Message)
	}
	return m, nil
}

func (m *Model) addLine(kind lineKind, text string) {
	m.lines = append(m.lines, chatLine{kind: kind, text: text})
	m.refresh()
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderChat())
	m.viewport.GotoBottom()
}

// View renders the header, chat transcript, input box and status line.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render("docrag")
	files := mutedStyle.Render("Indexed: none")
	if len(m.files) > 0 {
		files = mutedStyle.Render("Indexed: " + strings.Join(m.files, ", "))
	}
	status := statusStyle.Render(m.status)
	if m.busy {
		status = m.spinner.View() + " " + status
	}
	chat := chatBoxStyle.Render(m.viewport.View())
	input := queryBoxStyle.Render(m.input.View())
	return header + "\n" + files + "\n" + chat + "\n" + input + "\n" + status
}

func (m Model) renderChat() string {
	if len(m.lines) == 0 {
		return mutedStyle.Render("No messages yet.")
	}
	var b strings.Builder
	for i, l := range m.lines {
		if i > 0 {
			b.WriteString("\n\n")
		}
		switch l.kind {
		case lineUser:
			b.WriteString(userStyle.Render("You: ") + l.text)
		case lineAssistant:
			b.WriteString(assistantStyle.Render("Assistant: ") + l.text)
		case lineError:
			b.WriteString(errorStyle.Render("Error: " + l.text))
		default:
			b.WriteString(mutedStyle.Render(l.text))
		}
	}
	return b.String()
}

var (
	chatBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	headerStyle    = lipgloss.NewStyle().Bold(true)
	mutedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	spinnerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("13"))
)
