package tui

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/LetsFonseca/CelestiAI/internal/domain"
	"github.com/LetsFonseca/CelestiAI/internal/service"
	"github.com/LetsFonseca/CelestiAI/internal/session"
)

// Responder is the TUI-facing subset of the RAG service.
type Responder interface {
	Respond(ctx context.Context, history []domain.Message, question string) (service.Reply, error)
}

// answerMsg carries the outcome of a background Respond call.
type answerMsg struct {
	question string
	reply    service.Reply
	err      error
}

// Model is the Bubble Tea model for the chat.
type Model struct {
	ctx       context.Context
	responder Responder
	session   *session.Session
	input     textinput.Model
	viewport  viewport.Model
	status    string
	ready     bool
	lastQuery string
}

// New creates a chat model around sess. status is shown until the first
// question is asked.
func New(ctx context.Context, responder Responder, sess *session.Session, status string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Type your astrology question here..."
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{ctx: ctx, responder: responder, session: sess, input: ti, viewport: vp, status: status}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and answer events. The session is only
// touched here, on the program goroutine.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, th := transcriptBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 1 + 1 + qh + 1 // header, status, input box, spacer
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-th)
		m.input.Width = max(10, msg.Width-6)
		m.refresh()
		return m, nil
	case answerMsg:
		if msg.err != nil {
			m.session.Fail(msg.err)
			m.status = "Error: " + msg.err.Error()
		} else {
			m.session.Complete(msg.reply.Answer, msg.reply.Context)
			m.status = fmt.Sprintf("Answered using %d chunk(s).", len(msg.reply.Results))
			m.lastQuery = msg.question
		}
		m.refresh()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD || msg.Type == tea.KeyEsc {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q, err := m.session.Begin(m.input.Value())
			switch {
			case errors.Is(err, session.ErrEmptyQuestion):
				return m, nil
			case errors.Is(err, session.ErrBusy):
				m.status = "Still thinking about your last question..."
				return m, nil
			case err != nil:
				m.status = "Error: " + err.Error()
				return m, nil
			}
			m.input.Reset()
			m.status = "Consulting the stars..."
			m.refresh()
			return m, m.ask(m.session.History(), q)
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

func (m Model) ask(history []domain.Message, q string) tea.Cmd {
	return func() tea.Msg {
		reply, err := m.responder.Respond(m.ctx, history, q)
		return answerMsg{question: q, reply: reply, err: err}
	}
}

// View renders the header, transcript, input box and status line.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render("🔮 CelestIA - Zodiac Chat")
	transcript := transcriptBoxStyle.Render(m.viewport.View())
	input := queryBoxStyle.Render(m.input.View())
	status := statusStyle.Render(m.status)
	return header + "\n" + transcript + "\n" + input + "\n" + status
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m Model) renderTranscript() string {
	width := max(20, m.viewport.Width-4)
	var b strings.Builder
	for i, msg := range m.session.Messages() {
		if i > 0 {
			b.WriteString("\n\n")
		}
		switch {
		case msg.Kind == domain.KindContext:
			body := highlightBestSentence(msg.Content, m.lastQuery)
			b.WriteString(contextStyle.Width(width).Render("Context:\n" + body))
		case msg.Role == domain.RoleUser:
			b.WriteString(userStyle.Render("You: ") + lipgloss.NewStyle().Width(width).Render(msg.Content))
		default:
			b.WriteString(assistantStyle.Render("CelestIA: ") + lipgloss.NewStyle().Width(width).Render(msg.Content))
		}
	}
	return b.String()
}

var (
	headerStyle        = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("13"))
	transcriptBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	statusStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	userStyle          = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	assistantStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("13"))
	contextStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	highlightStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	unicodeWordRe      = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentenceRe         = regexp.MustCompile(`[^.!?]+[.!?]*`)
)

// highlightBestSentence emphasizes the sentence sharing most words with the
// question, which is usually the one the answer came from.
func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	sentences := sentenceRe.FindAllString(text, -1)
	if len(sentences) == 0 {
		sentences = []string{strings.TrimSpace(text)}
	}
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 {
		return strings.TrimSpace(text)
	}
	bestIdx := 0
	bestScore := 0
	for i, s := range sentences {
		if score := tokenOverlapScore(qTokens, s); score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	for i := range sentences {
		sent := strings.TrimSpace(sentences[i])
		if i == bestIdx && bestScore > 0 {
			sentences[i] = highlightStyle.Render(sent)
		} else {
			sentences[i] = sent
		}
	}
	return strings.Join(sentences, " ")
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	seen := map[string]struct{}{}
	for _, t := range unicodeWordRe.FindAllString(strings.ToLower(sentence), -1) {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}
