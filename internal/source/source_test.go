package source

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LetsFonseca/CelestiAI/internal/parser"
)

func TestTextFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signs.txt")
	require.NoError(t, os.WriteFile(path, []byte("\n  Aries \xff is a fire sign.\n\n"), 0o644))

	doc, err := TextFile(path)
	require.NoError(t, err)

	assert.Equal(t, "signs.txt", doc.Source)
	assert.Equal(t, "Aries  is a fire sign.", doc.Text)
}

func TestTextFile_Missing(t *testing.T) {
	_, err := TextFile(filepath.Join(t.TempDir(), "missing.txt"))
	assert.ErrorIs(t, err, parser.ErrNotFound)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestReader(t *testing.T) {
	doc, err := Reader(strings.NewReader("  Leo loves the spotlight.\n"), StdinName)
	require.NoError(t, err)
	assert.Equal(t, Document{Source: "stdin", Text: "Leo loves the spotlight."}, doc)
}

type fakeParser struct{ text string }

func (f fakeParser) Markdown(context.Context, string) (string, error)      { return f.text, nil }
func (f fakeParser) MarkdownBytes(context.Context, []byte) (string, error) { return f.text, nil }
func (f fakeParser) Text(context.Context, string) (string, error)          { return f.text, nil }
func (f fakeParser) TextBytes(context.Context, []byte) (string, error)     { return f.text, nil }

func TestParsed(t *testing.T) {
	reg := parser.NewRegistry()
	_, err := Parsed(context.Background(), reg, "pdf", "/tmp/book.pdf")
	assert.ErrorIs(t, err, parser.ErrNoParser)

	reg.Register("pdf", fakeParser{text: "Virgo is analytical."})
	doc, err := Parsed(context.Background(), reg, "pdf", "/tmp/book.pdf")
	require.NoError(t, err)
	assert.Equal(t, Document{Source: "book.pdf", Text: "Virgo is analytical."}, doc)
}
