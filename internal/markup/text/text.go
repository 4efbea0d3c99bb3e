// Package text treats plain text as a sequence of paragraphs separated by
// blank lines.
package text

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/0mp/rstfmt/internal/doctree"
	"github.com/0mp/rstfmt/internal/markup"
)

// Name is the dialect name used for lookup.
const Name = "text"

// Dialect implements markup.Dialect for plain text.
type Dialect struct{}

func (Dialect) Name() string { return Name }

func (Dialect) Parse(src string) (*doctree.Node, error) { return Parse(src) }

func (Dialect) Format(doc *doctree.Node, width markup.Width) (string, error) {
	return Format(doc, width)
}

func init() {
	markup.Register(Dialect{}, ".txt", ".text")
}

// Parse splits src into paragraphs. Whitespace-only lines count as blank.
func Parse(src string) (*doctree.Node, error) {
	scanner := bufio.NewScanner(strings.NewReader(src))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	doc := doctree.New(doctree.Document)
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			doc.Append(doctree.New(doctree.Paragraph, doctree.NewText(current.String())))
			current.Reset()
		}
	}

	line := 0
	for scanner.Scan() {
		line++
		l := scanner.Text()
		if strings.TrimSpace(l) == "" {
			flush()
			continue
		}
		if current.Len() > 0 {
			current.WriteString("\n")
		}
		current.WriteString(strings.TrimSpace(l))
	}
	if err := scanner.Err(); err != nil {
		return nil, &markup.ParseError{Dialect: Name, Line: line + 1, Msg: err.Error()}
	}
	flush()
	return doc, nil
}

// Format wraps each paragraph to width.
func Format(doc *doctree.Node, width markup.Width) (string, error) {
	if doc.Kind != doctree.Document {
		return "", fmt.Errorf("text: expected a Document, got %s", doc.Kind)
	}
	blocks := make([][]string, 0, len(doc.Children))
	for _, p := range doc.Children {
		if p.Kind != doctree.Paragraph {
			return "", fmt.Errorf("text: cannot format %s", p.Kind)
		}
		for _, c := range p.Children {
			if c.Kind != doctree.Text {
				return "", fmt.Errorf("text: cannot format %s inline", c.Kind)
			}
		}
		blocks = append(blocks, markup.Wrap(doctree.TextContents(p), width))
	}
	return markup.Lines(markup.JoinBlocks(blocks...)), nil
}
