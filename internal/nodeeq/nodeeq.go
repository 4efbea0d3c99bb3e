// Package nodeeq decides whether two document trees are the same for
// formatting purposes: identical structure and attributes, prose compared
// word by word, and embedded code compared after canonical formatting.
package nodeeq

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/0mp/rstfmt/internal/codefmt"
	"github.com/0mp/rstfmt/internal/doctree"
)

// ComparedAttrs are the attributes whose values must match on non-leaf
// nodes. Everything else is layout.
var ComparedAttrs = []string{doctree.AttrName, doctree.AttrRefName, doctree.AttrRefURI}

// Reason classifies the first divergence found between two trees.
type Reason string

const (
	DifferentType        Reason = "different type"
	DifferentText        Reason = "different text"
	DifferentAttributes  Reason = "different attributes"
	DifferentCode        Reason = "different code"
	DifferentNumChildren Reason = "different num children"
)

// Mismatch describes where and why two trees diverge.
type Mismatch struct {
	Reason Reason
	Path   []string // kind[index] steps from the root to A and B
	A, B   *doctree.Node
	Detail string
}

func (m *Mismatch) Error() string {
	msg := fmt.Sprintf("%s at %s", m.Reason, m.Location())
	if m.Detail != "" {
		msg += "\n" + m.Detail
	}
	return msg
}

// Location renders Path as a slash-separated string.
func (m *Mismatch) Location() string {
	return strings.Join(m.Path, "/")
}

// Oracle compares trees. The zero value is usable: it logs through
// slog.Default and canonicalizes Go code blocks.
type Oracle struct {
	Log  *slog.Logger
	Code codefmt.Registry
}

var defaultOracle Oracle

// Equal compares a and b with the default oracle.
func Equal(a, b *doctree.Node) bool {
	return defaultOracle.Equal(a, b)
}

// Equal reports whether a and b are equivalent, logging the first mismatch.
func (o Oracle) Equal(a, b *doctree.Node) bool {
	return o.Check(a, b) == nil
}

// Check is Compare plus the diagnostic log line Equal emits.
func (o Oracle) Check(a, b *doctree.Node) *Mismatch {
	m := o.Compare(a, b)
	if m == nil {
		return nil
	}
	log := o.Log
	if log == nil {
		log = slog.Default()
	}
	log.Info(string(m.Reason), "path", m.Location(), "detail", m.Detail)
	return m
}

// Compare returns nil when a and b are equivalent, or the first mismatch in
// pre-order otherwise.
func (o Oracle) Compare(a, b *doctree.Node) *Mismatch {
	code := o.Code
	if code == nil {
		code = codefmt.Default()
	}
	c := comparer{code: code}
	return c.compare(a, b, []string{kindName(a, b)})
}

// kindName labels a path step by the first non-nil side.
func kindName(a, b *doctree.Node) string {
	if a == nil {
		return describeKind(b)
	}
	return describeKind(a)
}

type comparer struct {
	code codefmt.Registry
}

func (c comparer) compare(a, b *doctree.Node, path []string) *Mismatch {
	if a == nil || b == nil {
		if a == b {
			return nil
		}
		return &Mismatch{
			Reason: DifferentType, Path: path, A: a, B: b,
			Detail: fmt.Sprintf("%s != %s", describeKind(a), describeKind(b)),
		}
	}
	if a.Kind != b.Kind {
		return &Mismatch{
			Reason: DifferentType, Path: path, A: a, B: b,
			Detail: fmt.Sprintf("%s != %s", a.Kind, b.Kind),
		}
	}

	if a.Kind == doctree.Text {
		if slices.Equal(strings.Fields(a.Text), strings.Fields(b.Text)) {
			return nil
		}
		return &Mismatch{
			Reason: DifferentText, Path: path, A: a, B: b,
			Detail: fmt.Sprintf("%q != %q", a.Text, b.Text),
		}
	}

	for _, k := range ComparedAttrs {
		av, aok := a.Attr(k)
		bv, bok := b.Attr(k)
		if aok != bok || av != bv {
			return &Mismatch{
				Reason: DifferentAttributes, Path: path, A: a, B: b,
				Detail: fmt.Sprintf("%v\n%v", a.Attrs, b.Attrs),
			}
		}
	}

	if a.Kind == doctree.LiteralBlock {
		if format, ok := c.code.Lookup(a.Classes); ok {
			ra := format(doctree.TextContents(a))
			rb := format(doctree.TextContents(b))
			if ra == rb {
				return nil
			}
			return &Mismatch{
				Reason: DifferentCode, Path: path, A: a, B: b,
				Detail: fmt.Sprintf("%s\n%s", describeCode(ra), describeCode(rb)),
			}
		}
	}

	if len(a.Children) != len(b.Children) {
		return &Mismatch{
			Reason: DifferentNumChildren, Path: path, A: a, B: b,
			Detail: listChildren(1, a) + listChildren(2, b),
		}
	}
	for i := range a.Children {
		ca, cb := a.Children[i], b.Children[i]
		step := fmt.Sprintf("%s[%d]", kindName(ca, cb), i)
		if m := c.compare(ca, cb, append(slices.Clip(path), step)); m != nil {
			return m
		}
	}
	return nil
}

func describeCode(r codefmt.Result) string {
	if !r.OK {
		return "<unparseable>"
	}
	return fmt.Sprintf("%q", r.Text)
}

func listChildren(side int, n *doctree.Node) string {
	var b strings.Builder
	for i, c := range n.Children {
		fmt.Fprintf(&b, "%d %d %s\n", side, i, doctree.Describe(c))
	}
	return b.String()
}

func describeKind(n *doctree.Node) string {
	if n == nil {
		return "<nil>"
	}
	return n.Kind.String()
}
