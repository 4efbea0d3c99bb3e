// Package rst parses and formats the subset of reStructuredText that rstfmt
// understands: sections, paragraphs, bullet, enumerated and definition
// lists, block quotes, literal and code blocks, comments, hyperlink targets,
// transitions, the note/warning/hint admonitions, and the inline markup that
// can appear inside them. Other directives, substitution definitions and
// tables are kept verbatim.
package rst

import (
	"github.com/0mp/rstfmt/internal/doctree"
	"github.com/0mp/rstfmt/internal/markup"
)

// Name is the dialect name used for lookup.
const Name = "rst"

// Dialect implements markup.Dialect for reStructuredText.
type Dialect struct{}

func (Dialect) Name() string { return Name }

func (Dialect) Parse(src string) (*doctree.Node, error) { return Parse(src) }

func (Dialect) Format(doc *doctree.Node, width markup.Width) (string, error) {
	return Format(doc, width)
}

func init() {
	markup.Register(Dialect{}, ".rst", ".rest")
}
