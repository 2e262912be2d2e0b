// Package pdf extracts page text from PDF handbooks using a pure Go reader.
package pdf

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/fwojciec/handbook"
	"github.com/ledongthuc/pdf"
)

// Compile-time interface verification.
var _ handbook.Ingestor = (*Ingestor)(nil)

// wordGap is the TJ adjustment, in thousandths of a text unit, beyond which
// two strings are treated as separate words.
const wordGap = -250

// Ingestor reads PDF files and returns one page record per page.
// Text fragments on a line are joined with a single space; each text line
// becomes a line of the page content.
type Ingestor struct{}

// NewIngestor creates a new Ingestor.
func NewIngestor() *Ingestor {
	return &Ingestor{}
}

// Ingest parses the PDF at source.
func (i *Ingestor) Ingest(ctx context.Context, source string) (_ *handbook.Corpus, err error) {
	if _, err := os.Stat(source); errors.Is(err, os.ErrNotExist) {
		return nil, handbook.Errorf(handbook.ENOTFOUND, "handbook document not found")
	} else if err != nil {
		return nil, handbook.Errorf(handbook.ENOTFOUND, "handbook document unreadable")
	}

	// The reader panics on some malformed input.
	defer func() {
		if r := recover(); r != nil {
			err = handbook.Errorf(handbook.EMALFORMED, "handbook document could not be parsed")
		}
	}()

	f, r, err := pdf.Open(source)
	if err != nil {
		return nil, handbook.Errorf(handbook.EMALFORMED, "handbook document could not be parsed")
	}
	defer f.Close()

	n := r.NumPage()
	pages := make([]handbook.PageRecord, 0, n)
	for num := 1; num <= n; num++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pages = append(pages, handbook.PageRecord{
			Page:    num,
			Content: pageText(r.Page(num)),
		})
	}

	return handbook.NewCorpus(pages)
}

// pageText interprets the page's content streams and collects shown text.
func pageText(p pdf.Page) string {
	if p.V.IsNull() {
		return ""
	}

	var t textCollector
	contents := p.V.Key("Contents")
	if contents.Kind() == pdf.Array {
		for i := 0; i < contents.Len(); i++ {
			t.interpret(p, contents.Index(i))
		}
	} else {
		t.interpret(p, contents)
	}
	t.newline()

	return strings.Join(t.lines, "\n")
}

type textCollector struct {
	enc   pdf.TextEncoding
	line  []string
	lines []string
}

func (t *textCollector) interpret(p pdf.Page, strm pdf.Value) {
	if strm.Kind() != pdf.Stream {
		return
	}
	pdf.Interpret(strm, func(stk *pdf.Stack, op string) {
		args := make([]pdf.Value, stk.Len())
		for i := len(args) - 1; i >= 0; i-- {
			args[i] = stk.Pop()
		}

		switch op {
		case "Tf":
			if len(args) == 2 {
				t.enc = p.Font(args[0].Name()).Encoder()
			}
		case "Td", "TD":
			if len(args) == 2 && args[1].Float64() != 0 {
				t.newline()
			}
		case "T*", "Tm", "ET":
			t.newline()
		case "Tj":
			if len(args) == 1 {
				t.show(t.decode(args[0]))
			}
		case "'":
			t.newline()
			if len(args) == 1 {
				t.show(t.decode(args[0]))
			}
		case "\"":
			t.newline()
			if len(args) == 3 {
				t.show(t.decode(args[2]))
			}
		case "TJ":
			if len(args) == 1 && args[0].Kind() == pdf.Array {
				t.show(t.decodeArray(args[0]))
			}
		}
	})
}

func (t *textCollector) decode(v pdf.Value) string {
	if v.Kind() != pdf.String {
		return ""
	}
	if t.enc == nil {
		return v.RawString()
	}
	return t.enc.Decode(v.RawString())
}

func (t *textCollector) decodeArray(arr pdf.Value) string {
	var sb strings.Builder
	for i := 0; i < arr.Len(); i++ {
		v := arr.Index(i)
		switch v.Kind() {
		case pdf.String:
			sb.WriteString(t.decode(v))
		case pdf.Integer, pdf.Real:
			if v.Float64() <= wordGap {
				sb.WriteByte(' ')
			}
		}
	}
	return sb.String()
}

func (t *textCollector) show(s string) {
	if s = strings.TrimSpace(s); s != "" {
		t.line = append(t.line, s)
	}
}

func (t *textCollector) newline() {
	if len(t.line) == 0 {
		return
	}
	t.lines = append(t.lines, strings.Join(t.line, " "))
	t.line = t.line[:0]
}
