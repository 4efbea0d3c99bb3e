// Package markdown maps CommonMark documents onto the shared document tree
// using goldmark, and formats trees back to canonical Markdown.
package markdown

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/0mp/rstfmt/internal/doctree"
	"github.com/0mp/rstfmt/internal/markup"
)

// Name is the dialect name used for lookup.
const Name = "markdown"

// Dialect implements markup.Dialect for Markdown.
type Dialect struct{}

func (Dialect) Name() string { return Name }

func (Dialect) Parse(src string) (*doctree.Node, error) { return Parse(src) }

func (Dialect) Format(doc *doctree.Node, width markup.Width) (string, error) {
	return Format(doc, width)
}

func init() {
	markup.Register(Dialect{}, ".md", ".markdown")
}

// Parse converts Markdown into a tree. Headings open nested sections the
// way reStructuredText titles do.
func Parse(src string) (*doctree.Node, error) {
	source := []byte(src)
	md := goldmark.New()
	reader := text.NewReader(source)
	root := md.Parser().Parse(reader)

	c := &converter{src: source}
	doc := doctree.New(doctree.Document)

	// Walk the top-level blocks and nest them under heading levels.
	type stackEntry struct {
		node  *doctree.Node
		level int
	}
	stack := []stackEntry{{node: doc, level: 0}}

	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		if h, ok := n.(*ast.Heading); ok {
			inline, err := c.inlines(h)
			if err != nil {
				return nil, err
			}
			title := doctree.New(doctree.Title, inline...)
			sec := doctree.New(doctree.Section, title).
				SetAttr(doctree.AttrName, markup.NormalizeName(doctree.TextContents(title)))

			// Pop stack until we find a parent with lower level.
			for len(stack) > 1 && stack[len(stack)-1].level >= h.Level {
				stack = stack[:len(stack)-1]
			}
			stack[len(stack)-1].node.Append(sec)
			stack = append(stack, stackEntry{node: sec, level: h.Level})
			continue
		}
		block, err := c.block(n)
		if err != nil {
			return nil, err
		}
		stack[len(stack)-1].node.Append(block)
	}
	return doc, nil
}

type converter struct {
	src []byte
}

func (c *converter) errorf(n ast.Node, msg string) error {
	return &markup.ParseError{Dialect: Name, Line: c.line(n), Msg: msg}
}

// line finds the 1-based source line of a block, or 0 when the node
// carries no segments.
func (c *converter) line(n ast.Node) int {
	for ; n != nil; n = n.Parent() {
		if n.Type() != ast.TypeBlock {
			continue
		}
		if lines := n.Lines(); lines != nil && lines.Len() > 0 {
			return bytes.Count(c.src[:lines.At(0).Start], []byte("\n")) + 1
		}
	}
	return 0
}

func (c *converter) blocks(parent ast.Node) ([]*doctree.Node, error) {
	var out []*doctree.Node
	for n := parent.FirstChild(); n != nil; n = n.NextSibling() {
		b, err := c.block(n)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func (c *converter) block(n ast.Node) (*doctree.Node, error) {
	switch node := n.(type) {
	case *ast.Paragraph, *ast.TextBlock:
		inline, err := c.inlines(node)
		if err != nil {
			return nil, err
		}
		return doctree.New(doctree.Paragraph, inline...), nil
	case *ast.List:
		kind := doctree.BulletList
		if node.IsOrdered() {
			kind = doctree.EnumeratedList
		}
		items, err := c.blocks(node)
		if err != nil {
			return nil, err
		}
		return doctree.New(kind, items...), nil
	case *ast.ListItem:
		children, err := c.blocks(node)
		if err != nil {
			return nil, err
		}
		return doctree.New(doctree.ListItem, children...), nil
	case *ast.Blockquote:
		children, err := c.blocks(node)
		if err != nil {
			return nil, err
		}
		return doctree.New(doctree.BlockQuote, children...), nil
	case *ast.FencedCodeBlock:
		lit := doctree.New(doctree.LiteralBlock, doctree.NewText(c.lines(node)))
		if lang := node.Language(c.src); len(lang) > 0 {
			lit.Classes = []string{"code", strings.ToLower(string(lang))}
		}
		return lit, nil
	case *ast.CodeBlock:
		return doctree.New(doctree.LiteralBlock, doctree.NewText(c.lines(node))), nil
	case *ast.ThematicBreak:
		return doctree.New(doctree.Transition), nil
	case *ast.Heading:
		return nil, c.errorf(node, "headings are not allowed inside containers")
	case *ast.HTMLBlock:
		return nil, c.errorf(node, "raw HTML is not supported")
	}
	return nil, c.errorf(n, "unsupported block "+n.Kind().String())
}

// lines joins the raw content lines of a code block without the final
// line ending.
func (c *converter) lines(n ast.Node) string {
	var buf bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		buf.Write(line.Value(c.src))
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

// inlines converts the inline children of n, merging adjacent text
// segments into a single leaf.
func (c *converter) inlines(n ast.Node) ([]*doctree.Node, error) {
	var out []*doctree.Node
	var buf bytes.Buffer
	flush := func() {
		if buf.Len() > 0 {
			out = append(out, doctree.NewText(buf.String()))
			buf.Reset()
		}
	}

	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		switch node := child.(type) {
		case *ast.Text:
			buf.Write(node.Value(c.src))
			if node.HardLineBreak() || node.SoftLineBreak() {
				buf.WriteByte('\n')
			}
		case *ast.String:
			buf.Write(node.Value)
		case *ast.Emphasis:
			kind := doctree.Emphasis
			if node.Level >= 2 {
				kind = doctree.Strong
			}
			inner, err := c.inlines(node)
			if err != nil {
				return nil, err
			}
			flush()
			out = append(out, doctree.New(kind, inner...))
		case *ast.CodeSpan:
			flush()
			out = append(out, doctree.New(doctree.Literal, doctree.NewText(c.rawText(node))))
		case *ast.Link:
			inner, err := c.inlines(node)
			if err != nil {
				return nil, err
			}
			flush()
			ref := doctree.New(doctree.Reference, inner...)
			ref.SetAttr(doctree.AttrName, strings.Join(strings.Fields(doctree.TextContents(ref)), " "))
			ref.SetAttr(doctree.AttrRefURI, string(node.Destination))
			out = append(out, ref)
		case *ast.AutoLink:
			flush()
			label := string(node.Label(c.src))
			uri := string(node.URL(c.src))
			if node.AutoLinkType == ast.AutoLinkEmail {
				uri = "mailto:" + uri
			}
			out = append(out, doctree.New(doctree.Reference, doctree.NewText(label)).
				SetAttr(doctree.AttrName, label).
				SetAttr(doctree.AttrRefURI, uri))
		case *ast.Image:
			return nil, c.errorf(n, "images are not supported")
		case *ast.RawHTML:
			return nil, c.errorf(n, "inline HTML is not supported")
		default:
			return nil, c.errorf(n, "unsupported inline "+child.Kind().String())
		}
	}
	flush()
	return out, nil
}

func (c *converter) rawText(n ast.Node) string {
	var buf bytes.Buffer
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		if t, ok := child.(*ast.Text); ok {
			buf.Write(t.Value(c.src))
		}
	}
	return buf.String()
}
