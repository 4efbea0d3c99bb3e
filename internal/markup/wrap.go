package markup

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// Wrap splits text on whitespace and greedily packs the words into lines no
// wider than width display columns. A word wider than the width gets a line
// of its own; a width below 1 puts every word on its own line.
func Wrap(text string, width Width) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	if !width.Bounded() {
		return []string{strings.Join(words, " ")}
	}

	var lines []string
	var buf []string
	n := 0
	for _, w := range words {
		ww := runewidth.StringWidth(w)
		n2 := n + ww
		if len(buf) > 0 {
			n2++
		}
		if len(buf) > 0 && n2 > int(width) {
			lines = append(lines, strings.Join(buf, " "))
			buf = buf[:0]
			n2 = ww
		}
		buf = append(buf, w)
		n = n2
	}
	if len(buf) > 0 {
		lines = append(lines, strings.Join(buf, " "))
	}
	return lines
}

// Indent prefixes every non-empty line.
func Indent(prefix string, lines []string) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		if l != "" {
			l = prefix + l
		}
		out[i] = l
	}
	return out
}

// Hang prefixes the first line with first and the rest with rest, keeping
// empty lines empty.
func Hang(first, rest string, lines []string) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		switch {
		case l == "":
		case i == 0:
			l = first + l
		default:
			l = rest + l
		}
		out[i] = l
	}
	return out
}

// JoinBlocks concatenates blocks of lines with a blank line between each.
// Empty blocks are skipped.
func JoinBlocks(blocks ...[]string) []string {
	var out []string
	for _, b := range blocks {
		if len(b) == 0 {
			continue
		}
		if len(out) > 0 {
			out = append(out, "")
		}
		out = append(out, b...)
	}
	return out
}

// Lines joins lines into a document with a trailing newline.
func Lines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}

// DisplayWidth is the number of terminal columns s occupies.
func DisplayWidth(s string) int {
	return runewidth.StringWidth(s)
}
