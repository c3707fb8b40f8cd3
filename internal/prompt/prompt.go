// Package prompt renders the text sent to the language model.
package prompt

import (
	"strings"

	"github.com/LetsFonseca/CelestiAI/internal/domain"
)

// Placeholders recognized in a template.
const (
	HistoryPlaceholder  = "{{history}}"
	ContextPlaceholder  = "{{context}}"
	QuestionPlaceholder = "{{question}}"
)

// DefaultTemplate keeps the model on the retrieved material.
const DefaultTemplate = `You are a friendly astrology assistant. You answer using the same language that the user talk with you.
You MUST use ONLY the information provided in the context below.
If the answer is not in the context, say that it is not in your material.
If the user asks for future prediction, say you do not predict the future.

{{history}}Context:
{{context}}

User question:
{{question}}

Answer (short, clear, friendly):`

const historyHeader = "Conversation so far:\n"

// Options configures an Assembler. Zero budgets mean unlimited.
type Options struct {
	Template        string
	IncludeHistory  bool
	MaxContextChars int
	MaxHistoryChars int
}

// Input is everything a single prompt is built from.
type Input struct {
	// Context holds chunk texts, most similar first.
	Context  []string
	History  []domain.Message
	Question string
}

type Assembler struct {
	opts Options
}

func NewAssembler(opts Options) *Assembler {
	if strings.TrimSpace(opts.Template) == "" {
		opts.Template = DefaultTemplate
	}
	return &Assembler{opts: opts}
}

// Assemble fills the template. Context chunks are separated by a blank
// line; history renders as User:/Assistant: lines in order.
func (a *Assembler) Assemble(in Input) string {
	history := ""
	if a.opts.IncludeHistory {
		if lines := fitHistory(historyLines(in.History), a.opts.MaxHistoryChars); len(lines) > 0 {
			history = historyHeader + strings.Join(lines, "\n") + "\n\n"
		}
	}
	context := strings.Join(fitContext(in.Context, a.opts.MaxContextChars), "\n\n")

	return strings.NewReplacer(
		HistoryPlaceholder, history,
		ContextPlaceholder, context,
		QuestionPlaceholder, in.Question,
	).Replace(a.opts.Template)
}

func historyLines(msgs []domain.Message) []string {
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if m.Kind != domain.KindTurn {
			continue
		}
		switch m.Role {
		case domain.RoleUser:
			lines = append(lines, "User: "+m.Content)
		case domain.RoleAssistant:
			lines = append(lines, "Assistant: "+m.Content)
		}
	}
	return lines
}

// fitContext keeps the leading chunks whose joined length fits max.
func fitContext(chunks []string, max int) []string {
	if max <= 0 {
		return chunks
	}
	total := 0
	for i, c := range chunks {
		n := runeLen(c)
		if i > 0 {
			n += 2
		}
		if total+n > max {
			return chunks[:i]
		}
		total += n
	}
	return chunks
}

// fitHistory keeps the most recent lines whose joined length fits max.
func fitHistory(lines []string, max int) []string {
	if max <= 0 {
		return lines
	}
	total := 0
	for i := len(lines) - 1; i >= 0; i-- {
		n := runeLen(lines[i])
		if i < len(lines)-1 {
			n++
		}
		if total+n > max {
			return lines[i+1:]
		}
		total += n
	}
	return lines
}

func runeLen(s string) int { return len([]rune(s)) }
