// Package parser turns binary documents into text ready for chunking.
package parser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

var (
	// ErrNotFound is returned for a path that does not exist. It wraps
	// os.ErrNotExist.
	ErrNotFound = errors.New("document not found")
	// ErrUnsupported is returned for content the parser cannot read.
	ErrUnsupported = errors.New("unsupported document format")
	// ErrNoParser is returned by Registry.Lookup for an unregistered format.
	ErrNoParser = errors.New("no parser registered")
)

// Parser converts a document into a markdown-like string or plain text.
type Parser interface {
	Markdown(ctx context.Context, path string) (string, error)
	MarkdownBytes(ctx context.Context, data []byte) (string, error)
	Text(ctx context.Context, path string) (string, error)
	TextBytes(ctx context.Context, data []byte) (string, error)
}

var markup = strings.NewReplacer("<!-- image -->", "", "#", "", "*", "")

// StripMarkup removes heading and emphasis markers and image placeholders,
// then trims surrounding whitespace. Other markup is left as is.
func StripMarkup(md string) string {
	return strings.TrimSpace(markup.Replace(md))
}

// Registry maps a format name such as "pdf" to its parser.
type Registry struct {
	mu      sync.RWMutex
	parsers map[string]Parser
}

func NewRegistry() *Registry {
	return &Registry{parsers: make(map[string]Parser)}
}

func normalize(format string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(format), "."))
}

func (r *Registry) Register(format string, p Parser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parsers[normalize(format)] = p
}

// Lookup returns the parser for format, or an error wrapping ErrNoParser.
func (r *Registry) Lookup(format string) (Parser, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.parsers[normalize(format)]
	if !ok {
		return nil, fmt.Errorf("%w for %q", ErrNoParser, format)
	}
	return p, nil
}

// Default returns a registry with every built-in parser.
func Default() *Registry {
	r := NewRegistry()
	r.Register("pdf", NewPDF())
	return r
}
