package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
)

var pdfMagic = []byte("%PDF-")

// PDF extracts the text layer of PDF documents page by page.
type PDF struct{}

func NewPDF() *PDF { return &PDF{} }

func (p *PDF) Markdown(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s: %w", ErrNotFound, path, err)
		}
		return "", fmt.Errorf("read pdf %s: %w", path, err)
	}
	md, err := p.MarkdownBytes(ctx, data)
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	return md, nil
}

// MarkdownBytes returns the pages separated by blank lines.
func (p *PDF) MarkdownBytes(ctx context.Context, data []byte) (md string, err error) {
	// the pdf package panics on some malformed cross-reference tables
	defer func() {
		if r := recover(); r != nil {
			md, err = "", fmt.Errorf("%w: %v", ErrUnsupported, r)
		}
	}()
	if !bytes.HasPrefix(bytes.TrimLeft(data, "\x00\t\r\n "), pdfMagic) {
		return "", ErrUnsupported
	}
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	pages := make([]string, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", i, err)
		}
		if text = strings.TrimSpace(text); text != "" {
			pages = append(pages, text)
		}
	}
	return strings.Join(pages, "\n\n"), nil
}

func (p *PDF) Text(ctx context.Context, path string) (string, error) {
	md, err := p.Markdown(ctx, path)
	if err != nil {
		return "", err
	}
	return StripMarkup(md), nil
}

func (p *PDF) TextBytes(ctx context.Context, data []byte) (string, error) {
	md, err := p.MarkdownBytes(ctx, data)
	if err != nil {
		return "", err
	}
	return StripMarkup(md), nil
}
