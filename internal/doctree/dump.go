package doctree

import (
	"bufio"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/fatih/color"
)

// maxDumpText is the number of runes of a Text payload shown by Dump.
const maxDumpText = 100

// Dumper writes a human-readable outline of a tree, one node per line,
// indented by depth.
type Dumper struct {
	// Color renders kind names in blue. Leave it off for files.
	Color bool
}

// Dump writes an uncoloured outline of n to w.
func Dump(w io.Writer, n *Node) error {
	return Dumper{}.Dump(w, n)
}

func (d Dumper) Dump(w io.Writer, n *Node) error {
	kindColor := color.New(color.FgBlue)
	if d.Color {
		kindColor.EnableColor()
	} else {
		kindColor.DisableColor()
	}

	bw := bufio.NewWriter(w)
	for depth, node := range WalkDepth(n) {
		bw.WriteString(strings.Repeat("    ", depth))
		bw.WriteString("- ")
		bw.WriteString(kindColor.Sprint(node.Kind.String()))
		bw.WriteByte(' ')
		if node.Kind == Text {
			bw.WriteString(strconv.Quote(truncate(node.Text, maxDumpText)))
		} else {
			bw.WriteString(formatAttrs(node))
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// Describe renders a single node the way Dump does, without indentation.
func Describe(n *Node) string {
	if n.Kind == Text {
		return n.Kind.String() + " " + strconv.Quote(truncate(n.Text, maxDumpText))
	}
	return n.Kind.String() + " " + formatAttrs(n)
}

// formatAttrs renders the non-empty attributes and classes of n as a map
// literal with sorted keys.
func formatAttrs(n *Node) string {
	var parts []string
	for _, k := range slices.Sorted(maps.Keys(n.Attrs)) {
		if v := n.Attrs[k]; v != "" {
			parts = append(parts, fmt.Sprintf("%s: %q", k, v))
		}
	}
	if len(n.Classes) > 0 {
		parts = append(parts, fmt.Sprintf("classes: [%s]", strings.Join(n.Classes, " ")))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
