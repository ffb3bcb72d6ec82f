package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ragchat/internal/domain"
	"ragchat/internal/rag"
)

// ChatPort is the TUI-facing subset of the RAG service.
type ChatPort interface {
	Query(ctx context.Context, user string, req domain.QueryRequest) (*domain.QueryResponse, error)
	ListDocuments(ctx context.Context, user string) ([]domain.DocumentInfo, error)
}

type turn struct {
	question string
	resp     *domain.QueryResponse
	err      string
}

// answerMsg carries the result of a query started by the model.
type answerMsg struct {
	question string
	resp     *domain.QueryResponse
	err      error
}

type docsMsg struct {
	docs []domain.DocumentInfo
	err  error
}

// Model is the Bubble Tea model for the chat client.
type Model struct {
	service  ChatPort
	user     string
	selected []string
	timeout  time.Duration

	input    textinput.Model
	viewport viewport.Model
	turns    []turn
	status   string
	pending  bool
	ready    bool
}

// New creates a chat model for user, optionally restricted to the given documents.
func New(service ChatPort, user string, selected []string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about your documents, /docs to list them"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		service:  service,
		user:     user,
		selected: selected,
		timeout:  2 * time.Minute,
		input:    ti,
		viewport: vp,
		status:   fmt.Sprintf("Signed in as %s. Enter to send, Ctrl+C to quit.", user),
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and result events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, th := transcriptBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header, scope, status, spacer
		vh := msg.Height - reserved
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-th)
		m.refresh()
		return m, nil
	case answerMsg:
		m.pending = false
		t := turn{question: msg.question, resp: msg.resp}
		if msg.err != nil {
			t.err = rag.UserMessage(msg.err)
			m.status = "Error: " + t.err
		} else {
			m.status = fmt.Sprintf("Answered in %s mode", msg.resp.Mode)
		}
		m.turns = append(m.turns, t)
		m.refresh()
		return m, nil
	case docsMsg:
		m.pending = false
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			return m, nil
		}
		m.status = describeDocs(msg.docs)
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			return m.submit()
		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	q := strings.TrimSpace(m.input.Value())
	if q == "" || m.pending {
		return m, nil
	}
	m.input.SetValue("")
	switch {
	case q == "/docs":
		m.pending = true
		m.status = "Loading documents..."
		return m, m.listDocs()
	case q == "/all":
		m.selected = nil
		m.status = "Searching all documents"
		return m, nil
	case strings.HasPrefix(q, "/doc "):
		m.selected = splitNames(strings.TrimPrefix(q, "/doc "))
		m.status = "Restricted to " + strings.Join(m.selected, ", ")
		return m, nil
	case q == "/clear":
		m.turns = nil
		m.refresh()
		return m, nil
	}
	m.pending = true
	m.status = "Thinking..."
	return m, m.ask(q)
}

func (m Model) ask(question string) tea.Cmd {
	svc, user, timeout := m.service, m.user, m.timeout
	req := domain.QueryRequest{Question: question, SelectedDocuments: append([]string(nil), m.selected...)}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		resp, err := svc.Query(ctx, user, req)
		return answerMsg{question: question, resp: resp, err: err}
	}
}

func (m Model) listDocs() tea.Cmd {
	svc, user := m.service, m.user
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		docs, err := svc.ListDocuments(ctx, user)
		return docsMsg{docs: docs, err: err}
	}
}

// View renders the transcript, input box and status line.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("RAG Chat")
	scope := "all documents"
	if len(m.selected) > 0 {
		scope = strings.Join(m.selected, ", ")
	}
	scopeLine := dimStyle.Render("scope: " + scope)
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	transcript := transcriptBoxStyle.Render(m.viewport.View())
	return header + "\n" + scopeLine + "\n" + transcript + "\n" + input + "\n" + status
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m Model) renderTranscript() string {
	if len(m.turns) == 0 {
		return "No messages yet."
	}
	var b strings.Builder
	for i, t := range m.turns {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(questionStyle.Render("you: " + t.question))
		b.WriteString("\n")
		if t.err != "" {
			b.WriteString(errorStyle.Render(t.err))
			continue
		}
		b.WriteString(t.resp.Answer)
		if meta := answerMeta(t.resp); meta != "" {
			b.WriteString("\n")
			b.WriteString(dimStyle.Render(meta))
		}
	}
	return b.String()
}

func answerMeta(r *domain.QueryResponse) string {
	var parts []string
	if len(r.Sources) > 0 {
		parts = append(parts, "sources: "+strings.Join(r.Sources, ", "))
	}
	if r.Confidence != nil {
		parts = append(parts, fmt.Sprintf("confidence=%.3f", *r.Confidence))
	}
	return strings.Join(parts, "  ")
}

func describeDocs(docs []domain.DocumentInfo) string {
	if len(docs) == 0 {
		return "No documents uploaded."
	}
	names := make([]string, len(docs))
	for i, d := range docs {
		names[i] = fmt.Sprintf("%s (%d chunks)", d.Name, d.Chunks)
	}
	return "Documents: " + strings.Join(names, ", ")
}

func splitNames(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

var (
	transcriptBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	questionStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	errorStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle           = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)
