package rst

import (
	"fmt"
	"strings"

	"github.com/0mp/rstfmt/internal/doctree"
	"github.com/0mp/rstfmt/internal/markup"
)

// sectionChars are the underline characters used for each section depth.
const sectionChars = "=-~^\"'#*+"

type context struct {
	width        markup.Width
	sectionDepth int
}

func (c context) indent(n int) context {
	c.width = c.width.Sub(n)
	return c
}

// Format renders a tree as canonical reStructuredText.
func Format(doc *doctree.Node, width markup.Width) (string, error) {
	lines, err := fmtNode(doc, context{width: width})
	if err != nil {
		return "", err
	}
	return markup.Lines(lines), nil
}

func fmtNode(n *doctree.Node, ctx context) ([]string, error) {
	switch n.Kind {
	case doctree.Document:
		return fmtBlocks(n.Children, ctx)
	case doctree.Section:
		return fmtSection(n, ctx)
	case doctree.Paragraph:
		text, err := inlineText(n.Children)
		if err != nil {
			return nil, err
		}
		return fmtParagraph(text, ctx.width), nil
	case doctree.BulletList:
		return fmtItems(n, "- ", ctx)
	case doctree.EnumeratedList:
		return fmtItems(n, "#. ", ctx)
	case doctree.BlockQuote:
		lines, err := fmtBlocks(n.Children, ctx.indent(3))
		return markup.Indent("   ", lines), err
	case doctree.LiteralBlock:
		head := ".. code::"
		if lang := n.Language(); lang != "" {
			head += " " + lang
		}
		lines := []string{head}
		if text := doctree.TextContents(n); text != "" {
			lines = append(lines, "")
			lines = append(lines, markup.Indent("   ", strings.Split(text, "\n"))...)
		}
		return lines, nil
	case doctree.Comment:
		lines := []string{".."}
		if text := doctree.TextContents(n); strings.TrimSpace(text) != "" {
			lines = append(lines, markup.Indent("   ", strings.Split(text, "\n"))...)
		}
		return lines, nil
	case doctree.Target:
		return []string{fmtTarget(n)}, nil
	case doctree.Transition:
		return []string{"----"}, nil
	case doctree.DefinitionList:
		return fmtDefinitions(n, ctx)
	case doctree.Table:
		return strings.Split(doctree.TextContents(n), "\n"), nil
	case doctree.Directive:
		return fmtDirective(n)
	case doctree.Note, doctree.Warning, doctree.Hint:
		body, err := fmtBlocks(n.Children, ctx.indent(3))
		if err != nil {
			return nil, err
		}
		lines := []string{".. " + strings.ToLower(n.Kind.String()) + "::"}
		if len(body) > 0 {
			lines = append(lines, "")
			lines = append(lines, markup.Indent("   ", body)...)
		}
		return lines, nil
	}
	return nil, fmt.Errorf("rst: cannot format %s as a block", n.Kind)
}

// fmtParagraph wraps text and joins the first two lines while they would
// read back as a section title or a table border.
func fmtParagraph(text string, width markup.Width) []string {
	lines := markup.Wrap(text, width)
	for len(lines) > 1 && opensBlock(lines[0], lines[1]) {
		lines = append([]string{lines[0] + " " + lines[1]}, lines[2:]...)
	}
	return lines
}

func opensBlock(first, second string) bool {
	return titleLike(first, second) || isGridBorder(first) || isSimpleBorder(first)
}

func fmtBlocks(children []*doctree.Node, ctx context) ([]string, error) {
	blocks := make([][]string, 0, len(children))
	for _, c := range children {
		lines, err := fmtNode(c, ctx)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, lines)
	}
	return markup.JoinBlocks(blocks...), nil
}

func fmtSection(n *doctree.Node, ctx context) ([]string, error) {
	ctx.sectionDepth++
	if ctx.sectionDepth > len(sectionChars) {
		return nil, fmt.Errorf("rst: sections nested deeper than %d levels", len(sectionChars))
	}
	var blocks [][]string
	for _, c := range n.Children {
		if c.Kind == doctree.Title {
			text, err := inlineText(c.Children)
			if err != nil {
				return nil, err
			}
			text = strings.Join(strings.Fields(text), " ")
			under := strings.Repeat(sectionChars[ctx.sectionDepth-1:ctx.sectionDepth], max(markup.DisplayWidth(text), 1))
			blocks = append(blocks, []string{text, under})
			continue
		}
		lines, err := fmtNode(c, ctx)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, lines)
	}
	return markup.JoinBlocks(blocks...), nil
}

func fmtItems(n *doctree.Node, bullet string, ctx context) ([]string, error) {
	rest := strings.Repeat(" ", len(bullet))
	blocks := make([][]string, 0, len(n.Children))
	for _, item := range n.Children {
		body, err := fmtBlocks(item.Children, ctx.indent(len(bullet)))
		if err != nil {
			return nil, err
		}
		if len(body) == 0 {
			blocks = append(blocks, []string{strings.TrimSpace(bullet)})
			continue
		}
		blocks = append(blocks, markup.Hang(bullet, rest, body))
	}
	return markup.JoinBlocks(blocks...), nil
}

func fmtDefinitions(n *doctree.Node, ctx context) ([]string, error) {
	blocks := make([][]string, 0, len(n.Children))
	for _, item := range n.Children {
		var lines []string
		for _, c := range item.Children {
			switch c.Kind {
			case doctree.Term:
				text, err := inlineText(c.Children)
				if err != nil {
					return nil, err
				}
				lines = append(lines, strings.Join(strings.Fields(text), " "))
			case doctree.Definition:
				body, err := fmtBlocks(c.Children, ctx.indent(3))
				if err != nil {
					return nil, err
				}
				lines = append(lines, markup.Indent("   ", body)...)
			default:
				return nil, fmt.Errorf("rst: cannot format %s in a definition list", c.Kind)
			}
		}
		blocks = append(blocks, lines)
	}
	return markup.JoinBlocks(blocks...), nil
}

// fmtDirective writes a directive back as it was read. A body that does not
// start with options is set off by a blank line.
func fmtDirective(n *doctree.Node) ([]string, error) {
	if len(n.Children) != 2 {
		return nil, fmt.Errorf("rst: directive needs an argument and a body, got %d children", len(n.Children))
	}
	name, _ := n.Attr(doctree.AttrName)
	head := ".. "
	if sub, ok := n.Attr(doctree.AttrRefName); ok {
		head += "|" + sub + "| "
	}
	head += name + "::"
	if arg := doctree.TextContents(n.Children[0]); arg != "" {
		head += " " + arg
	}
	lines := []string{head}
	body := doctree.TextContents(n.Children[1])
	if body == "" {
		return lines, nil
	}
	if !strings.HasPrefix(body, ":") {
		lines = append(lines, "")
	}
	return append(lines, markup.Indent("   ", strings.Split(body, "\n"))...), nil
}

func fmtTarget(n *doctree.Node) string {
	name, _ := n.Attr(doctree.AttrName)
	if strings.ContainsAny(name, ":`") {
		name = "`" + name + "`"
	}
	line := ".. _" + name + ":"
	if uri, ok := n.Attr(doctree.AttrRefURI); ok && uri != "" {
		line += " " + uri
	}
	return line
}

// inlineText flattens inline nodes back into markup source on one logical
// line; wrapping happens afterwards on whitespace.
func inlineText(nodes []*doctree.Node) (string, error) {
	var b strings.Builder
	for _, n := range nodes {
		switch n.Kind {
		case doctree.Text:
			b.WriteString(n.Text)
		case doctree.Emphasis:
			b.WriteString("*" + doctree.TextContents(n) + "*")
		case doctree.Strong:
			b.WriteString("**" + doctree.TextContents(n) + "**")
		case doctree.Literal:
			b.WriteString("``" + doctree.TextContents(n) + "``")
		case doctree.TitleReference:
			b.WriteString("`" + doctree.TextContents(n) + "`")
		case doctree.Reference:
			b.WriteString(fmtReference(n))
		case doctree.Role:
			name, _ := n.Attr(doctree.AttrName)
			b.WriteString(":" + name + ":`" + doctree.TextContents(n) + "`")
		case doctree.SubstitutionReference:
			b.WriteString("|" + doctree.TextContents(n) + "|")
		default:
			return "", fmt.Errorf("rst: cannot format %s inline", n.Kind)
		}
	}
	return b.String(), nil
}

func fmtReference(n *doctree.Node) string {
	title := doctree.TextContents(n)
	if uri, ok := n.Attr(doctree.AttrRefURI); ok {
		return "`" + title + " <" + uri + ">`__"
	}
	if isSimpleName(title) {
		return title + "_"
	}
	return "`" + title + "`_"
}

func isSimpleName(s string) bool {
	return s != "" && simpleNameEnd(s, 0) == len(s)
}
