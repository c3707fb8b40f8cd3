package session

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LetsFonseca/CelestiAI/internal/domain"
)

func TestNew_SeedsGreeting(t *testing.T) {
	s := New(Options{})

	msgs := s.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, domain.RoleAssistant, msgs[0].Role)
	assert.Equal(t, DefaultGreeting, msgs[0].Content)
	assert.Equal(t, domain.KindGreeting, msgs[0].Kind)
	assert.Equal(t, Idle, s.State())
	assert.Empty(t, s.History())
}

func TestBeginComplete(t *testing.T) {
	s := New(Options{})

	q, err := s.Begin("  What element is Aries?  ")
	require.NoError(t, err)
	assert.Equal(t, "What element is Aries?", q)
	assert.Equal(t, Answering, s.State())
	assert.Empty(t, s.History(), "in-flight question is not history")

	_, err = s.Begin("another")
	assert.ErrorIs(t, err, ErrBusy)

	s.Complete("Fire.", "Aries is a fire sign")
	assert.Equal(t, Idle, s.State())
	assert.Equal(t, []domain.Message{
		{Role: domain.RoleUser, Content: "What element is Aries?", Kind: domain.KindTurn},
		{Role: domain.RoleAssistant, Content: "Fire.", Kind: domain.KindTurn},
	}, s.History())
	assert.Len(t, s.Messages(), 3)
}

func TestBegin_EmptyQuestion(t *testing.T) {
	s := New(Options{})
	_, err := s.Begin("   ")
	assert.ErrorIs(t, err, ErrEmptyQuestion)
	assert.Equal(t, Idle, s.State())
	assert.Len(t, s.Messages(), 1)
}

func TestComplete_ShowContext(t *testing.T) {
	s := New(Options{ShowContext: true, Greeting: "hello"})
	_, err := s.Begin("Leo?")
	require.NoError(t, err)
	s.Complete("Sun.", "Leo is ruled by the Sun")

	msgs := s.Messages()
	require.Len(t, msgs, 4)
	assert.Equal(t, "hello", msgs[0].Content)
	assert.Equal(t, domain.Message{Role: domain.RoleAssistant, Content: "Leo is ruled by the Sun", Kind: domain.KindContext}, msgs[3])
	assert.Len(t, s.History(), 2)
}

func TestFail_ReturnsToIdleWithoutAnswer(t *testing.T) {
	s := New(Options{})
	_, err := s.Begin("first")
	require.NoError(t, err)
	s.Fail(errors.New("store down"))

	assert.Equal(t, Idle, s.State())
	assert.Len(t, s.Messages(), 2)
	assert.Empty(t, s.History())

	_, err = s.Begin("second")
	require.NoError(t, err)
	s.Complete("answer", "")
	assert.Equal(t, []domain.Message{
		{Role: domain.RoleUser, Content: "second", Kind: domain.KindTurn},
		{Role: domain.RoleAssistant, Content: "answer", Kind: domain.KindTurn},
	}, s.History())
}

func TestCompleteWhenIdleIsIgnored(t *testing.T) {
	s := New(Options{})
	s.Complete("stray", "")
	s.Fail(nil)
	assert.Len(t, s.Messages(), 1)
}

func TestMessagesIsACopy(t *testing.T) {
	s := New(Options{})
	s.Messages()[0].Content = "changed"
	assert.Equal(t, DefaultGreeting, s.Messages()[0].Content)
}
