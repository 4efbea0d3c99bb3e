package rst

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/0mp/rstfmt/internal/doctree"
	"github.com/0mp/rstfmt/internal/markup"
)

const (
	openers = "-:/'\"<([{"
	closers = "-.,:;!?\\/'\")]}>"
)

// parseInline splits paragraph text into Text leaves and inline markup.
// Inline markup does not nest.
func parseInline(text string) []*doctree.Node {
	var out []*doctree.Node
	var plain strings.Builder
	flush := func() {
		if plain.Len() > 0 {
			out = append(out, doctree.NewText(plain.String()))
			plain.Reset()
		}
	}
	emit := func(n *doctree.Node) {
		flush()
		out = append(out, n)
	}

	for i := 0; i < len(text); {
		if startAllowed(text, i) {
			if n, next, ok := markupAt(text, i); ok {
				emit(n)
				i = next
				continue
			}
			if j := simpleNameEnd(text, i); j > i {
				if isRefUnderscore(text, j) {
					name := text[i:j]
					emit(referenceByName(name))
					i = j + 1
					continue
				}
				plain.WriteString(text[i:j])
				i = j
				continue
			}
		}
		_, size := utf8.DecodeRuneInString(text[i:])
		plain.WriteString(text[i : i+size])
		i += size
	}
	flush()
	return out
}

// markupAt recognizes inline markup whose start-string begins at i.
func markupAt(text string, i int) (*doctree.Node, int, bool) {
	rest := text[i:]
	switch {
	case strings.HasPrefix(rest, "``"):
		inner, next, ok := delimited(text, i, "``", "``")
		if !ok {
			return nil, 0, false
		}
		return doctree.New(doctree.Literal, doctree.NewText(inner)), next, true
	case strings.HasPrefix(rest, "**"):
		inner, next, ok := delimited(text, i, "**", "**")
		if !ok {
			return nil, 0, false
		}
		return doctree.New(doctree.Strong, doctree.NewText(inner)), next, true
	case strings.HasPrefix(rest, "*"):
		inner, next, ok := delimited(text, i, "*", "*")
		if !ok {
			return nil, 0, false
		}
		return doctree.New(doctree.Emphasis, doctree.NewText(inner)), next, true
	case strings.HasPrefix(rest, "`"):
		return interpreted(text, i)
	case strings.HasPrefix(rest, ":"):
		return role(text, i)
	case strings.HasPrefix(rest, "|"):
		inner, next, ok := delimited(text, i, "|", "|")
		if !ok {
			return nil, 0, false
		}
		return doctree.New(doctree.SubstitutionReference, doctree.NewText(inner)).
			SetAttr(doctree.AttrRefName, strings.Join(strings.Fields(inner), " ")), next, true
	}
	return nil, 0, false
}

// role handles :name:`text` starting at i.
func role(text string, i int) (*doctree.Node, int, bool) {
	end := simpleNameEnd(text, i+1)
	if end == i+1 || !strings.HasPrefix(text[end:], ":`") {
		return nil, 0, false
	}
	inner, next, ok := delimited(text, end+1, "`", "`")
	if !ok {
		return nil, 0, false
	}
	return doctree.New(doctree.Role, doctree.NewText(inner)).
		SetAttr(doctree.AttrName, text[i+1:end]), next, true
}

// interpreted handles `text`, `text`_ and `text`__ starting at i.
func interpreted(text string, i int) (*doctree.Node, int, bool) {
	from := i + 1
	if from >= len(text) || isSpaceAt(text, from) {
		return nil, 0, false
	}
	for j := from + 1; j < len(text); j++ {
		if text[j] != '`' || isSpaceAt(text, j-1) {
			continue
		}
		suffix := 0
		switch {
		case strings.HasPrefix(text[j+1:], "__"):
			suffix = 2
		case strings.HasPrefix(text[j+1:], "_"):
			suffix = 1
		}
		after := j + 1 + suffix
		if after < len(text) && !endAllowed(text, after) {
			continue
		}
		inner := text[from:j]
		if suffix > 0 {
			return interpretedReference(inner), after, true
		}
		return doctree.New(doctree.TitleReference, doctree.NewText(inner)), after, true
	}
	return nil, 0, false
}

// delimited finds the end-string closing a start-string at i and returns the
// text between them plus the index just past the end-string.
func delimited(text string, i int, start, end string) (string, int, bool) {
	from := i + len(start)
	if from >= len(text) || isSpaceAt(text, from) {
		return "", 0, false
	}
	for j := from + 1; j <= len(text)-len(end); j++ {
		if !strings.HasPrefix(text[j:], end) || isSpaceAt(text, j-1) {
			continue
		}
		after := j + len(end)
		if after < len(text) && !endAllowed(text, after) {
			continue
		}
		return text[from:j], after, true
	}
	return "", 0, false
}

// interpretedReference builds a Reference from the contents of `...`_,
// which is either "title <uri>" or a reference name.
func interpretedReference(inner string) *doctree.Node {
	if strings.HasSuffix(inner, ">") {
		if lt := strings.LastIndex(inner, "<"); lt >= 0 {
			title := strings.TrimSpace(inner[:lt])
			uri := strings.Join(strings.Fields(inner[lt+1:len(inner)-1]), "")
			if title == "" {
				title = uri
			}
			return doctree.New(doctree.Reference, doctree.NewText(title)).
				SetAttr(doctree.AttrName, strings.Join(strings.Fields(title), " ")).
				SetAttr(doctree.AttrRefURI, uri)
		}
	}
	return referenceByName(inner)
}

func referenceByName(name string) *doctree.Node {
	return doctree.New(doctree.Reference, doctree.NewText(name)).
		SetAttr(doctree.AttrName, strings.Join(strings.Fields(name), " ")).
		SetAttr(doctree.AttrRefName, markup.NormalizeName(name))
}

// simpleNameEnd returns the end of a simple reference name starting at i:
// alphanumerics joined by single internal "-_.+:" characters. It returns i
// when no name starts there.
func simpleNameEnd(text string, i int) int {
	j := i
	for j < len(text) {
		r, size := utf8.DecodeRuneInString(text[j:])
		if isAlnum(r) {
			j += size
			continue
		}
		if strings.ContainsRune("-_.+:", r) && j > i && j+size < len(text) {
			if next, _ := utf8.DecodeRuneInString(text[j+size:]); isAlnum(next) {
				j += size
				continue
			}
		}
		break
	}
	return j
}

// isRefUnderscore reports whether a single "_" at j ends a reference name.
func isRefUnderscore(text string, j int) bool {
	if j >= len(text) || text[j] != '_' {
		return false
	}
	after := j + 1
	return after == len(text) || (text[after] != '_' && endAllowed(text, after))
}

func isAlnum(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isSpaceAt(text string, i int) bool {
	r, _ := utf8.DecodeRuneInString(text[i:])
	return unicode.IsSpace(r)
}

func startAllowed(text string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(text[:i])
	return unicode.IsSpace(r) || strings.ContainsRune(openers, r)
}

func endAllowed(text string, i int) bool {
	r, _ := utf8.DecodeRuneInString(text[i:])
	return unicode.IsSpace(r) || strings.ContainsRune(closers, r)
}
