// Package session keeps the transcript of one chat.
package session

import (
	"errors"
	"strings"

	"github.com/LetsFonseca/CelestiAI/internal/domain"
)

// DefaultGreeting opens every session.
const DefaultGreeting = "Hi there! Tell me a sign or a birth date, and I'll explain! 👀"

var (
	ErrBusy          = errors.New("session is already answering a question")
	ErrEmptyQuestion = errors.New("question is empty")
)

// State is the session's position in the question/answer cycle.
type State int

const (
	Idle State = iota
	Answering
)

func (s State) String() string {
	if s == Answering {
		return "answering"
	}
	return "idle"
}

// Options configures a new session.
type Options struct {
	Greeting string
	// ShowContext appends the retrieved context as an extra assistant
	// message after each answer.
	ShowContext bool
}

// Session is an append-only transcript with a two-state machine. It is not
// safe for concurrent use; callers mutate it from one goroutine.
type Session struct {
	opts     Options
	state    State
	messages []domain.Message
	pending  int
}

func New(opts Options) *Session {
	if opts.Greeting == "" {
		opts.Greeting = DefaultGreeting
	}
	return &Session{
		opts: opts,
		messages: []domain.Message{
			{Role: domain.RoleAssistant, Content: opts.Greeting, Kind: domain.KindGreeting},
		},
		pending: -1,
	}
}

func (s *Session) State() State { return s.state }

// Begin records the user's question and moves to Answering. It returns the
// trimmed question.
func (s *Session) Begin(question string) (string, error) {
	if s.state == Answering {
		return "", ErrBusy
	}
	q := strings.TrimSpace(question)
	if q == "" {
		return "", ErrEmptyQuestion
	}
	s.messages = append(s.messages, domain.Message{Role: domain.RoleUser, Content: q, Kind: domain.KindTurn})
	s.pending = len(s.messages) - 1
	s.state = Answering
	return q, nil
}

// Complete appends the answer, plus the context when ShowContext is set,
// and returns to Idle.
func (s *Session) Complete(answer, context string) {
	if s.state != Answering {
		return
	}
	s.messages = append(s.messages, domain.Message{Role: domain.RoleAssistant, Content: answer, Kind: domain.KindTurn})
	if s.opts.ShowContext && context != "" {
		s.messages = append(s.messages, domain.Message{Role: domain.RoleAssistant, Content: context, Kind: domain.KindContext})
	}
	s.state = Idle
	s.pending = -1
}

// Fail returns to Idle without an answer. The unanswered question is
// dropped from History so later prompts never show a dangling turn.
func (s *Session) Fail(error) {
	if s.state != Answering {
		return
	}
	s.state = Idle
	s.pending = -1
}

// History returns answered turns in order, without the in-flight question
// or unanswered questions.
func (s *Session) History() []domain.Message {
	var out []domain.Message
	for i, m := range s.messages {
		if m.Kind != domain.KindTurn || i == s.pending {
			continue
		}
		if m.Role == domain.RoleUser && !s.answered(i) {
			continue
		}
		out = append(out, m)
	}
	return out
}

func (s *Session) answered(i int) bool {
	for _, m := range s.messages[i+1:] {
		if m.Kind != domain.KindTurn {
			continue
		}
		return m.Role == domain.RoleAssistant
	}
	return false
}

// Messages returns a copy of the full transcript.
func (s *Session) Messages() []domain.Message {
	out := make([]domain.Message, len(s.messages))
	copy(out, s.messages)
	return out
}
