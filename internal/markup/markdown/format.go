package markdown

import (
	"fmt"
	"strings"

	"github.com/0mp/rstfmt/internal/doctree"
	"github.com/0mp/rstfmt/internal/markup"
)

// maxHeading is the deepest ATX heading level.
const maxHeading = 6

// Adjacent lists of the same kind alternate markers so they stay separate
// lists when reparsed.
var (
	bulletMarkers  = [2]string{"- ", "* "}
	orderedMarkers = [2]string{"1. ", "1) "}
)

type context struct {
	width markup.Width
	depth int
}

// Format renders a tree as canonical Markdown.
func Format(doc *doctree.Node, width markup.Width) (string, error) {
	lines, err := fmtNode(doc, context{width: width}, 0)
	if err != nil {
		return "", err
	}
	return markup.Lines(lines), nil
}

func fmtNode(n *doctree.Node, ctx context, alt int) ([]string, error) {
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
		return wrapParagraph(text, ctx.width), nil
	case doctree.BulletList:
		return fmtItems(n, bulletMarkers[alt], ctx)
	case doctree.EnumeratedList:
		return fmtItems(n, orderedMarkers[alt], ctx)
	case doctree.BlockQuote:
		ctx.width = ctx.width.Sub(2)
		body, err := fmtBlocks(n.Children, ctx)
		if err != nil {
			return nil, err
		}
		if len(body) == 0 {
			return []string{">"}, nil
		}
		out := make([]string, len(body))
		for i, l := range body {
			if l == "" {
				out[i] = ">"
				continue
			}
			out[i] = "> " + l
		}
		return out, nil
	case doctree.LiteralBlock:
		return fmtCode(n), nil
	case doctree.Transition:
		return []string{"---"}, nil
	}
	return nil, fmt.Errorf("markdown: cannot format %s as a block", n.Kind)
}

// wrapParagraph wraps text but never breaks a line before a word that would
// open a block at the start of a line, or after a backslash that would make
// the break a hard line break. Text holds its source escapes verbatim, so
// nothing is escaped here.
func wrapParagraph(text string, width markup.Width) []string {
	var out []string
	for _, l := range markup.Wrap(text, width) {
		if n := len(out); n > 0 && (opensBlock(firstWord(l)) || hardBreak(out[n-1])) {
			out[n-1] += " " + l
			continue
		}
		out = append(out, l)
	}
	return out
}

func firstWord(l string) string {
	if i := strings.IndexByte(l, ' '); i >= 0 {
		return l[:i]
	}
	return l
}

// opensBlock reports whether a line starting with w can interrupt a
// paragraph: setext underlines, thematic breaks, list markers, ATX
// headings, block quotes, fences and HTML.
func opensBlock(w string) bool {
	switch {
	case w == "":
		return false
	case strings.Trim(w, "-=*_+") == "":
		return true
	case strings.Trim(w, "#") == "" && len(w) <= maxHeading:
		return true
	case w[0] == '>' || w[0] == '<':
		return true
	case strings.HasPrefix(w, "```") || strings.HasPrefix(w, "~~~"):
		return true
	}
	return isOrderedMarker(w)
}

// isOrderedMarker matches "1." and "1)" with up to nine digits.
func isOrderedMarker(w string) bool {
	if len(w) < 2 || len(w) > 10 || !strings.ContainsRune(".)", rune(w[len(w)-1])) {
		return false
	}
	return strings.Trim(w[:len(w)-1], "0123456789") == ""
}

// hardBreak reports whether l ends in an unescaped backslash.
func hardBreak(l string) bool {
	return (len(l) - len(strings.TrimRight(l, "\\")))%2 == 1
}

func fmtBlocks(children []*doctree.Node, ctx context) ([]string, error) {
	blocks := make([][]string, 0, len(children))
	alt := 0
	for i, c := range children {
		if i > 0 && isList(c) && children[i-1].Kind == c.Kind {
			alt = 1 - alt
		} else {
			alt = 0
		}
		lines, err := fmtNode(c, ctx, alt)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, lines)
	}
	return markup.JoinBlocks(blocks...), nil
}

func isList(n *doctree.Node) bool {
	return n.Kind == doctree.BulletList || n.Kind == doctree.EnumeratedList
}

func fmtSection(n *doctree.Node, ctx context) ([]string, error) {
	ctx.depth++
	if ctx.depth > maxHeading {
		return nil, fmt.Errorf("markdown: sections nested deeper than %d levels", maxHeading)
	}
	var rest []*doctree.Node
	var heading []string
	for _, c := range n.Children {
		if c.Kind != doctree.Title {
			rest = append(rest, c)
			continue
		}
		text, err := inlineText(c.Children)
		if err != nil {
			return nil, err
		}
		heading = []string{strings.TrimSpace(strings.Repeat("#", ctx.depth) + " " + strings.Join(strings.Fields(text), " "))}
	}
	body, err := fmtBlocks(rest, ctx)
	if err != nil {
		return nil, err
	}
	return markup.JoinBlocks(heading, body), nil
}

func fmtItems(n *doctree.Node, marker string, ctx context) ([]string, error) {
	rest := strings.Repeat(" ", len(marker))
	ctx.width = ctx.width.Sub(len(marker))
	blocks := make([][]string, 0, len(n.Children))
	for _, item := range n.Children {
		body, err := fmtBlocks(item.Children, ctx)
		if err != nil {
			return nil, err
		}
		if len(body) == 0 {
			blocks = append(blocks, []string{strings.TrimSpace(marker)})
			continue
		}
		blocks = append(blocks, markup.Hang(marker, rest, body))
	}
	return markup.JoinBlocks(blocks...), nil
}

// fmtCode renders a fenced code block whose fence is longer than any
// backtick run in the content.
func fmtCode(n *doctree.Node) []string {
	text := doctree.TextContents(n)
	fence := strings.Repeat("`", max(3, longestRun(text, '`')+1))
	lines := []string{fence + n.Language()}
	if text != "" {
		lines = append(lines, strings.Split(text, "\n")...)
	}
	return append(lines, fence)
}

func longestRun(s string, c byte) int {
	best, run := 0, 0
	for i := 0; i < len(s); i++ {
		if s[i] != c {
			run = 0
			continue
		}
		run++
		best = max(best, run)
	}
	return best
}

// inlineText flattens inline nodes back into Markdown source.
func inlineText(nodes []*doctree.Node) (string, error) {
	var b strings.Builder
	for _, n := range nodes {
		switch n.Kind {
		case doctree.Text:
			b.WriteString(n.Text)
		case doctree.Emphasis, doctree.Strong:
			inner, err := inlineText(n.Children)
			if err != nil {
				return "", err
			}
			delim := "*"
			if n.Kind == doctree.Strong {
				delim = "**"
			}
			b.WriteString(delim + inner + delim)
		case doctree.Literal:
			b.WriteString(codeSpan(doctree.TextContents(n)))
		case doctree.Reference:
			s, err := fmtReference(n)
			if err != nil {
				return "", err
			}
			b.WriteString(s)
		default:
			return "", fmt.Errorf("markdown: cannot format %s inline", n.Kind)
		}
	}
	return b.String(), nil
}

func codeSpan(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	fence := strings.Repeat("`", longestRun(text, '`')+1)
	if strings.HasPrefix(text, "`") || strings.HasSuffix(text, "`") {
		text = " " + text + " "
	}
	return fence + text + fence
}

func fmtReference(n *doctree.Node) (string, error) {
	uri, ok := n.Attr(doctree.AttrRefURI)
	if !ok {
		return "", fmt.Errorf("markdown: reference %q has no URI", doctree.TextContents(n))
	}
	inner, err := inlineText(n.Children)
	if err != nil {
		return "", err
	}
	if inner == uri && strings.Contains(uri, ":") && !strings.ContainsAny(uri, " <>") {
		return "<" + uri + ">", nil
	}
	if strings.ContainsAny(uri, " ()") {
		uri = "<" + uri + ">"
	}
	return "[" + inner + "](" + uri + ")", nil
}
