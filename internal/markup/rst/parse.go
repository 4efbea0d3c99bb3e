package rst

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/0mp/rstfmt/internal/doctree"
	"github.com/0mp/rstfmt/internal/markup"
)

// adornments are the characters accepted in section underlines and
// transitions.
const adornments = "=-~^\"'#*+`:.<>_"

// Parse turns a reStructuredText document into a tree.
func Parse(src string) (*doctree.Node, error) {
	p := &parser{lines: splitLines(src)}
	return p.document()
}

type parser struct {
	lines  []string
	offset int // source line of lines[0], 0-based
	pos    int
}

func (p *parser) errorf(format string, args ...any) error {
	return &markup.ParseError{Dialect: Name, Line: p.offset + p.pos + 1, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) eof() bool { return p.pos >= len(p.lines) }

func (p *parser) line() string { return p.lines[p.pos] }

func (p *parser) skipBlank() {
	for !p.eof() && p.line() == "" {
		p.pos++
	}
}

// child returns a parser over a dedented slice of lines starting at the
// given index of p.lines.
func (p *parser) child(lines []string, at int) *parser {
	return &parser{lines: lines, offset: p.offset + at}
}

type openSection struct {
	node  *doctree.Node
	level int
}

func (p *parser) document() (*doctree.Node, error) {
	doc := doctree.New(doctree.Document)
	stack := []openSection{{node: doc}}
	var levels []byte

	for {
		p.skipBlank()
		if p.eof() {
			return doc, nil
		}
		if text, ch, ok := p.sectionTitle(); ok {
			level := strings.IndexByte(string(levels), ch) + 1
			if level == 0 {
				levels = append(levels, ch)
				level = len(levels)
			}
			if level > stack[len(stack)-1].level+1 {
				return nil, p.errorf("title level inconsistent: %q", text)
			}
			for stack[len(stack)-1].level >= level {
				stack = stack[:len(stack)-1]
			}
			title := doctree.New(doctree.Title, parseInline(text)...)
			sec := doctree.New(doctree.Section, title).
				SetAttr(doctree.AttrName, markup.NormalizeName(doctree.TextContents(title)))
			stack[len(stack)-1].node.Append(sec)
			stack = append(stack, openSection{node: sec, level: level})
			p.pos += 2
			continue
		}
		nodes, err := p.block()
		if err != nil {
			return nil, err
		}
		stack[len(stack)-1].node.Append(nodes...)
	}
}

// body parses a sequence of blocks where section titles are not allowed.
func (p *parser) body() ([]*doctree.Node, error) {
	var out []*doctree.Node
	for {
		p.skipBlank()
		if p.eof() {
			return out, nil
		}
		nodes, err := p.block()
		if err != nil {
			return nil, err
		}
		out = append(out, nodes...)
	}
}

func (p *parser) sectionTitle() (string, byte, bool) {
	if p.pos+1 >= len(p.lines) {
		return "", 0, false
	}
	text, under := p.line(), p.lines[p.pos+1]
	if !titleLike(text, under) {
		return "", 0, false
	}
	return text, under[0], true
}

// titleLike reports whether text underlined by under reads as a section
// title.
func titleLike(text, under string) bool {
	if indentOf(text) > 0 || isAdornment(text) || !isAdornment(under) {
		return false
	}
	return len(under) >= markup.DisplayWidth(text)
}

// block parses one block starting at a non-blank line.
func (p *parser) block() ([]*doctree.Node, error) {
	l := p.line()
	if isGridBorder(l) || isSimpleBorder(l) {
		if n := p.table(); n != nil {
			return []*doctree.Node{n}, nil
		}
	}
	switch {
	case indentOf(l) > 0:
		n, err := p.blockQuote()
		return one(n, err)
	case isAdornment(l) && len(l) >= 4 && (p.pos+1 == len(p.lines) || p.lines[p.pos+1] == ""):
		p.pos++
		return []*doctree.Node{doctree.New(doctree.Transition)}, nil
	case l == ".." || strings.HasPrefix(l, ".. "):
		n, err := p.explicit()
		return one(n, err)
	case bulletMarker(l) != "":
		n, err := p.list(doctree.BulletList, bulletMarker)
		return one(n, err)
	case enumMarker(l) != "":
		n, err := p.list(doctree.EnumeratedList, enumMarker)
		return one(n, err)
	case p.definitionStart():
		n, err := p.definitionList()
		return one(n, err)
	}
	return p.paragraph()
}

func one(n *doctree.Node, err error) ([]*doctree.Node, error) {
	if err != nil {
		return nil, err
	}
	return []*doctree.Node{n}, nil
}

// indented collects the lines from p.pos that are blank or indented, stops at
// the first line with no indentation, and drops trailing blank lines.
func (p *parser) indented() []string {
	start := p.pos
	for !p.eof() && (p.line() == "" || indentOf(p.line()) > 0) {
		p.pos++
	}
	for p.pos > start && p.lines[p.pos-1] == "" {
		p.pos--
	}
	return p.lines[start:p.pos]
}

func (p *parser) blockQuote() (*doctree.Node, error) {
	at := p.pos
	lines := dedent(p.indented(), -1)
	children, err := p.child(lines, at).body()
	if err != nil {
		return nil, err
	}
	return doctree.New(doctree.BlockQuote, children...), nil
}

func (p *parser) paragraph() ([]*doctree.Node, error) {
	var lines []string
	for !p.eof() && p.line() != "" {
		lines = append(lines, strings.TrimSpace(p.line()))
		p.pos++
	}
	text := strings.Join(lines, "\n")

	if !strings.HasSuffix(text, "::") {
		return []*doctree.Node{doctree.New(doctree.Paragraph, parseInline(text)...)}, nil
	}

	// A paragraph ending in "::" introduces a literal block.
	body := text[:len(text)-2]
	switch {
	case strings.TrimSpace(body) == "":
		text = ""
	case unicode.IsSpace(rune(body[len(body)-1])):
		text = strings.TrimRightFunc(body, unicode.IsSpace)
	default:
		text = body + ":"
	}

	var out []*doctree.Node
	switch {
	case text == "":
	case isAdornment(text) && len(text) >= 4:
		// Left alone on its line the text would read back as a transition.
		out = append(out, doctree.New(doctree.Transition))
	default:
		out = append(out, doctree.New(doctree.Paragraph, parseInline(text)...))
	}
	save := p.pos
	p.skipBlank()
	if p.eof() || indentOf(p.line()) == 0 {
		p.pos = save
		return out, nil
	}
	content := strings.Join(dedent(p.indented(), -1), "\n")
	out = append(out, doctree.New(doctree.LiteralBlock, doctree.NewText(content)))
	return out, nil
}

// list parses consecutive items sharing the marker style of the first one.
func (p *parser) list(kind doctree.Kind, marker func(string) string) (*doctree.Node, error) {
	list := doctree.New(kind)
	style := markerStyle(marker(p.line()))
	for {
		m := marker(p.line())
		at := p.pos
		first := strings.TrimLeft(p.line()[len(m):], " ")
		col := len(p.line()) - len(first)
		if first == "" {
			col = len(m) + 1
		}
		p.pos++
		rest := p.indented()
		lines := append([]string{first}, dedent(rest, col)...)
		children, err := p.child(lines, at).body()
		if err != nil {
			return nil, err
		}
		list.Append(doctree.New(doctree.ListItem, children...))

		save := p.pos
		p.skipBlank()
		if p.eof() {
			return list, nil
		}
		if next := marker(p.line()); next == "" || markerStyle(next) != style {
			p.pos = save
			return list, nil
		}
	}
}

// definitionStart reports whether the current line is a term: a line
// followed directly by an indented one.
func (p *parser) definitionStart() bool {
	if p.eof() || p.pos+1 >= len(p.lines) {
		return false
	}
	l, next := p.line(), p.lines[p.pos+1]
	switch {
	case l == "" || indentOf(l) > 0:
		return false
	case l == ".." || strings.HasPrefix(l, ".. "):
		return false
	case bulletMarker(l) != "" || enumMarker(l) != "":
		return false
	case isGridBorder(l) || isSimpleBorder(l):
		return false
	}
	return next != "" && indentOf(next) > 0
}

func (p *parser) definitionList() (*doctree.Node, error) {
	list := doctree.New(doctree.DefinitionList)
	for {
		term := doctree.New(doctree.Term, parseInline(p.line())...)
		p.pos++
		at := p.pos
		children, err := p.child(dedent(p.indented(), -1), at).body()
		if err != nil {
			return nil, err
		}
		list.Append(doctree.New(doctree.DefinitionListItem, term, doctree.New(doctree.Definition, children...)))

		save := p.pos
		p.skipBlank()
		if !p.definitionStart() {
			p.pos = save
			return list, nil
		}
	}
}

// table collects a grid or simple table: a contiguous block of lines that
// starts and ends with a border. It returns nil and leaves p.pos alone for
// anything else.
func (p *parser) table() *doctree.Node {
	start := p.pos
	grid := p.line()[0] == '+'
	border := isSimpleBorder
	if grid {
		border = isGridBorder
	}
	end := start + 1
	for end < len(p.lines) && p.lines[end] != "" {
		if grid && p.lines[end][0] != '+' && p.lines[end][0] != '|' {
			return nil
		}
		end++
	}
	if end-start < 2 || !border(p.lines[end-1]) {
		return nil
	}
	p.pos = end
	return doctree.New(doctree.Table, doctree.NewText(strings.Join(p.lines[start:end], "\n")))
}

// isGridBorder matches "+---+" and "+===+" lines.
func isGridBorder(l string) bool {
	if len(l) < 3 || l[0] != '+' || l[len(l)-1] != '+' || (l[1] != '-' && l[1] != '=') {
		return false
	}
	return strings.Trim(l, "+-=") == ""
}

// isSimpleBorder matches "===  ===" lines with at least two columns.
func isSimpleBorder(l string) bool {
	cols := strings.Fields(l)
	if len(cols) < 2 || indentOf(l) > 0 {
		return false
	}
	for _, c := range cols {
		if strings.Trim(c, "=") != "" {
			return false
		}
	}
	return true
}

func markerStyle(m string) string {
	if m == "#." || strings.TrimRight(m, "0123456789.") == "" {
		return "enum"
	}
	return m
}

func bulletMarker(l string) string {
	if l == "" || !strings.ContainsRune("-*+", rune(l[0])) {
		return ""
	}
	if len(l) == 1 || l[1] == ' ' {
		return l[:1]
	}
	return ""
}

func enumMarker(l string) string {
	i := strings.IndexByte(l, '.')
	if i <= 0 || (i+1 < len(l) && l[i+1] != ' ') {
		return ""
	}
	num := l[:i]
	if num != "#" && strings.Trim(num, "0123456789") != "" {
		return ""
	}
	return l[:i+1]
}

// explicit parses a block starting with "..": a directive, a hyperlink
// target or a comment.
func (p *parser) explicit() (*doctree.Node, error) {
	at := p.pos
	head := strings.TrimSpace(strings.TrimPrefix(p.line(), ".."))
	p.pos++

	if strings.HasPrefix(head, "_") {
		return p.target(head[1:])
	}
	if sub, rest, ok := substitution(head); ok {
		if name, arg, ok := directiveHead(rest); ok {
			n := p.rawDirective(name, arg)
			return n.SetAttr(doctree.AttrRefName, sub), nil
		}
	}
	if name, arg, ok := directiveHead(head); ok {
		return p.directive(name, arg, at)
	}

	var lines []string
	if head != "" {
		lines = append(lines, head)
	}
	// An empty comment is closed by a blank line.
	if head != "" || (!p.eof() && p.line() != "") {
		lines = append(lines, dedent(p.indented(), -1)...)
	}
	return doctree.New(doctree.Comment, doctree.NewText(strings.Join(lines, "\n"))), nil
}

func (p *parser) target(def string) (*doctree.Node, error) {
	var name, uri string
	if strings.HasPrefix(def, "`") {
		end := strings.Index(def[1:], "`:")
		if end < 0 {
			p.pos--
			return nil, p.errorf("malformed hyperlink target %q", def)
		}
		name, uri = def[1:end+1], def[end+3:]
	} else {
		end := strings.Index(def, ":")
		if end < 0 {
			p.pos--
			return nil, p.errorf("malformed hyperlink target %q", def)
		}
		name, uri = def[:end], def[end+1:]
	}
	for _, l := range p.indented() {
		uri += l
	}
	uri = strings.Join(strings.Fields(uri), "")

	n := doctree.New(doctree.Target).SetAttr(doctree.AttrName, markup.NormalizeName(name))
	if uri != "" {
		n.SetAttr(doctree.AttrRefURI, uri)
	}
	return n, nil
}

var admonitions = map[string]doctree.Kind{
	"note":    doctree.Note,
	"warning": doctree.Warning,
	"hint":    doctree.Hint,
}

func (p *parser) directive(name, arg string, at int) (*doctree.Node, error) {
	switch name {
	case "code", "code-block", "sourcecode":
		rest := p.indented()
		lines := dedent(rest, -1)
		// Options sit directly below the directive line.
		for len(lines) > 0 && strings.HasPrefix(lines[0], ":") {
			lines = lines[1:]
		}
		for len(lines) > 0 && lines[0] == "" {
			lines = lines[1:]
		}
		n := doctree.New(doctree.LiteralBlock, doctree.NewText(strings.Join(lines, "\n")))
		n.Classes = []string{"code"}
		if lang := strings.Fields(arg); len(lang) > 0 {
			n.Classes = append(n.Classes, strings.ToLower(lang[0]))
		}
		return n, nil
	}

	kind, ok := admonitions[name]
	if !ok {
		return p.rawDirective(name, arg), nil
	}
	var lines []string
	if arg != "" {
		lines = append(lines, arg)
	}
	lines = append(lines, dedent(p.indented(), -1)...)
	children, err := p.child(lines, at).body()
	if err != nil {
		return nil, err
	}
	return doctree.New(kind, children...), nil
}

// rawDirective keeps a directive rstfmt does not interpret: its argument
// line and its dedented body, options included, are formatted verbatim.
func (p *parser) rawDirective(name, arg string) *doctree.Node {
	lines := dedent(p.indented(), -1)
	for len(lines) > 0 && lines[0] == "" {
		lines = lines[1:]
	}
	return doctree.New(doctree.Directive,
		doctree.NewText(arg),
		doctree.NewText(strings.Join(lines, "\n")),
	).SetAttr(doctree.AttrName, name)
}

// directiveHead splits "name:: argument" into the lowercased name and the
// argument.
func directiveHead(head string) (name, arg string, ok bool) {
	i := strings.Index(head, "::")
	if i <= 0 || !isDirectiveName(head[:i]) {
		return "", "", false
	}
	return strings.ToLower(head[:i]), strings.TrimSpace(head[i+2:]), true
}

// substitution splits "|name| rest" into the whitespace-collapsed name and
// the rest of the line.
func substitution(head string) (name, rest string, ok bool) {
	if !strings.HasPrefix(head, "|") {
		return "", "", false
	}
	end := strings.Index(head[1:], "|") + 1
	if end <= 1 || isSpaceAt(head, 1) || isSpaceAt(head, end-1) {
		return "", "", false
	}
	name = strings.Join(strings.Fields(head[1:end]), " ")
	return name, strings.TrimSpace(head[end+1:]), true
}

// isDirectiveName accepts simple reference names, which covers
// domain-qualified names such as "py:function".
func isDirectiveName(s string) bool {
	return isSimpleName(s)
}

func isAdornment(l string) bool {
	if l == "" || !strings.ContainsRune(adornments, rune(l[0])) {
		return false
	}
	return strings.Count(l, l[:1]) == len(l)
}

func indentOf(l string) int {
	return len(l) - len(strings.TrimLeft(l, " "))
}

// dedent removes n leading spaces from every line, or the common
// indentation when n is negative. Lines indented less than n lose only the
// spaces they have.
func dedent(lines []string, n int) []string {
	if n < 0 {
		n = -1
		for _, l := range lines {
			if l == "" {
				continue
			}
			if in := indentOf(l); n < 0 || in < n {
				n = in
			}
		}
	}
	out := make([]string, len(lines))
	for i, l := range lines {
		cut := min(n, indentOf(l))
		if cut > 0 {
			l = l[cut:]
		}
		out[i] = l
	}
	return out
}

func splitLines(src string) []string {
	src = strings.ReplaceAll(src, "\r\n", "\n")
	src = strings.ReplaceAll(src, "\r", "\n")
	lines := strings.Split(src, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(expandTabs(l), " ")
	}
	return lines
}

func expandTabs(l string) string {
	if !strings.Contains(l, "\t") {
		return l
	}
	var b strings.Builder
	col := 0
	for _, r := range l {
		if r == '\t' {
			pad := 8 - col%8
			b.WriteString(strings.Repeat(" ", pad))
			col += pad
			continue
		}
		b.WriteRune(r)
		col++
	}
	return b.String()
}
