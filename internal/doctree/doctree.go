package doctree

import "strings"

// Kind identifies the element type of a Node.
type Kind uint8

const (
	Document Kind = iota
	Section
	Title
	Paragraph
	BulletList
	EnumeratedList
	ListItem
	BlockQuote
	LiteralBlock
	Comment
	Target
	Transition
	Note
	Warning
	Hint
	DefinitionList
	DefinitionListItem
	Term
	Definition
	Table
	Directive
	Emphasis
	Strong
	Literal
	TitleReference
	Reference
	Role
	SubstitutionReference
	Text
)

var kindNames = [...]string{
	Document:              "Document",
	Section:               "Section",
	Title:                 "Title",
	Paragraph:             "Paragraph",
	BulletList:            "BulletList",
	EnumeratedList:        "EnumeratedList",
	ListItem:              "ListItem",
	BlockQuote:            "BlockQuote",
	LiteralBlock:          "LiteralBlock",
	Comment:               "Comment",
	Target:                "Target",
	Transition:            "Transition",
	Note:                  "Note",
	Warning:               "Warning",
	Hint:                  "Hint",
	DefinitionList:        "DefinitionList",
	DefinitionListItem:    "DefinitionListItem",
	Term:                  "Term",
	Definition:            "Definition",
	Table:                 "Table",
	Directive:             "Directive",
	Emphasis:              "Emphasis",
	Strong:                "Strong",
	Literal:               "Literal",
	TitleReference:        "TitleReference",
	Reference:             "Reference",
	Role:                  "Role",
	SubstitutionReference: "SubstitutionReference",
	Text:                  "Text",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Kind(?)"
}

// IsInline reports whether nodes of this kind live inside paragraph text.
func (k Kind) IsInline() bool {
	switch k {
	case Emphasis, Strong, Literal, TitleReference, Reference, Role, SubstitutionReference, Text:
		return true
	}
	return false
}

// Attribute keys shared by parsers and formatters.
const (
	AttrName    = "name"
	AttrRefName = "refname"
	AttrRefURI  = "refuri"
)

// Node is one element of a parsed document. Text nodes carry their payload
// in Text and never have children.
type Node struct {
	Kind     Kind
	Children []*Node
	Attrs    map[string]string
	Classes  []string
	Text     string
}

// New creates a node of the given kind holding children.
func New(kind Kind, children ...*Node) *Node {
	return &Node{Kind: kind, Children: children}
}

// NewText creates a Text leaf.
func NewText(s string) *Node {
	return &Node{Kind: Text, Text: s}
}

// Append adds children and returns n for chaining.
func (n *Node) Append(children ...*Node) *Node {
	n.Children = append(n.Children, children...)
	return n
}

// Attr returns the attribute value and whether it is present.
func (n *Node) Attr(key string) (string, bool) {
	if n.Attrs == nil {
		return "", false
	}
	v, ok := n.Attrs[key]
	return v, ok
}

// SetAttr sets an attribute and returns n for chaining.
func (n *Node) SetAttr(key, value string) *Node {
	if n.Attrs == nil {
		n.Attrs = make(map[string]string)
	}
	n.Attrs[key] = value
	return n
}

// HasClass reports whether c is in the node's class list.
func (n *Node) HasClass(c string) bool {
	for _, have := range n.Classes {
		if have == c {
			return true
		}
	}
	return false
}

// Language returns the first class that is not the generic "code" marker,
// which for literal blocks is the language of the embedded code.
func (n *Node) Language() string {
	for _, c := range n.Classes {
		if c != "code" {
			return c
		}
	}
	return ""
}

// TextContents concatenates the payload of every Text node in the subtree,
// in document order, with no separator.
func TextContents(n *Node) string {
	var b strings.Builder
	for d := range Walk(n) {
		if d.Kind == Text {
			b.WriteString(d.Text)
		}
	}
	return b.String()
}
