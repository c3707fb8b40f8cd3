// Package source reads the raw text handed to an ingestion run.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/LetsFonseca/CelestiAI/internal/parser"
)

// StdinName is the Document.Source of text read from standard input.
const StdinName = "stdin"

// Document is one input to ingestion.
type Document struct {
	Source string
	Text   string
}

// TextFile reads a UTF-8 file. Invalid byte sequences are dropped and the
// result is trimmed.
func TextFile(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Document{}, fmt.Errorf("%w: %s: %w", parser.ErrNotFound, path, err)
		}
		return Document{}, fmt.Errorf("read %s: %w", path, err)
	}
	return Document{Source: filepath.Base(path), Text: clean(data)}, nil
}

// Reader reads everything from r, typically os.Stdin.
func Reader(r io.Reader, name string) (Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Document{}, fmt.Errorf("read %s: %w", name, err)
	}
	return Document{Source: name, Text: clean(data)}, nil
}

// Parsed extracts plain text from path with the parser registered for format.
func Parsed(ctx context.Context, reg *parser.Registry, format, path string) (Document, error) {
	p, err := reg.Lookup(format)
	if err != nil {
		return Document{}, err
	}
	text, err := p.Text(ctx, path)
	if err != nil {
		return Document{}, err
	}
	return Document{Source: filepath.Base(path), Text: text}, nil
}

func clean(data []byte) string {
	return strings.TrimSpace(strings.ToValidUTF8(string(data), ""))
}
