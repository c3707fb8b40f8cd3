package parser

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildPDF writes a minimal single-font PDF with one text line per page.
func buildPDF(pages ...string) []byte {
	var objs []string
	n := len(pages)
	// 1 catalog, 2 pages, 3 font, then a page and a content stream per page
	kids := ""
	for i := 0; i < n; i++ {
		kids += fmt.Sprintf("%d 0 R ", 4+2*i)
	}
	objs = append(objs,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids, n),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	)
	for i, text := range pages {
		stream := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
		objs = append(objs,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 5+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream),
		)
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, o := range objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, o)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return buf.Bytes()
}

func TestPDF_MarkdownBytes(t *testing.T) {
	md, err := NewPDF().MarkdownBytes(context.Background(), buildPDF("Aries is a fire sign", "Taurus is an earth sign"))
	require.NoError(t, err)

	assert.Contains(t, md, "Aries is a fire sign")
	assert.Contains(t, md, "Taurus is an earth sign")
	assert.Contains(t, md, "\n\n")
}

func TestPDF_TextFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zodiac.pdf")
	require.NoError(t, os.WriteFile(path, buildPDF("Leo is ruled by the Sun"), 0o644))

	text, err := NewPDF().Text(context.Background(), path)
	require.NoError(t, err)
	assert.Contains(t, text, "Leo is ruled by the Sun")
}

func TestPDF_MissingFile(t *testing.T) {
	_, err := NewPDF().Text(context.Background(), filepath.Join(t.TempDir(), "nope.pdf"))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestPDF_NotAPDF(t *testing.T) {
	_, err := NewPDF().TextBytes(context.Background(), []byte("just some text"))
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = NewPDF().TextBytes(context.Background(), []byte("%PDF-1.4\ngarbage"))
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestStripMarkup(t *testing.T) {
	in := "  # Aries\n\n**Fire** sign <!-- image -->\n- ruled by Mars  "
	assert.Equal(t, "Aries\n\nFire sign \n- ruled by Mars", StripMarkup(in))
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	_, err := r.Lookup("pdf")
	assert.ErrorIs(t, err, ErrNoParser)

	r.Register("PDF", NewPDF())
	p, err := r.Lookup(".pdf")
	require.NoError(t, err)
	assert.NotNil(t, p)

	_, err = Default().Lookup("pdf")
	assert.NoError(t, err)
}
