// Package markup defines the parse/format contract every supported markup
// dialect implements, plus helpers shared between dialects.
package markup

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/0mp/rstfmt/internal/doctree"
)

// Width is a line-wrap target. Unbounded disables wrapping.
type Width int

// Unbounded never breaks lines.
const Unbounded Width = 0

// Bounded reports whether w limits line length.
func (w Width) Bounded() bool { return w != Unbounded }

// Sub narrows a bounded width by n columns. The result may be zero or
// negative, which wraps every word onto its own line.
func (w Width) Sub(n int) Width {
	if !w.Bounded() {
		return w
	}
	s := int(w) - n
	if s == int(Unbounded) {
		// Keep "no room left" distinct from Unbounded.
		s = -1
	}
	return Width(s)
}

func (w Width) String() string {
	if !w.Bounded() {
		return "unbounded"
	}
	return strconv.Itoa(int(w))
}

// ParseWidth accepts a positive integer, or "0", "none" or "unbounded".
func ParseWidth(s string) (Width, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "0", "none", "unbounded", "":
		return Unbounded, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid width %q: %w", s, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid width %q: must not be negative", s)
	}
	return Width(n), nil
}

// Dialect parses documents into trees and formats trees back to text.
// Format must be deterministic for a given tree and width.
type Dialect interface {
	Name() string
	Parse(src string) (*doctree.Node, error)
	Format(doc *doctree.Node, width Width) (string, error)
}

// ParseError reports malformed input.
type ParseError struct {
	Dialect string
	Line    int // 1-based; 0 when unknown
	Msg     string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s: line %d: %s", e.Dialect, e.Line, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Dialect, e.Msg)
}

var (
	mu         sync.RWMutex
	dialects   = map[string]Dialect{}
	extensions = map[string]string{}
)

// Register makes a dialect available by name and by file extension.
func Register(d Dialect, exts ...string) {
	mu.Lock()
	defer mu.Unlock()
	dialects[d.Name()] = d
	for _, ext := range exts {
		extensions[strings.ToLower(ext)] = d.Name()
	}
}

// Lookup returns a registered dialect by name.
func Lookup(name string) (Dialect, error) {
	mu.RLock()
	defer mu.RUnlock()
	d, ok := dialects[name]
	if !ok {
		return nil, fmt.Errorf("unknown dialect: %s", name)
	}
	return d, nil
}

// ForFile returns the dialect for a filename's extension.
func ForFile(filename string) (Dialect, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	mu.RLock()
	name, ok := extensions[ext]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
	return Lookup(name)
}

// IsSupportedExtension checks if a file extension has a dialect.
func IsSupportedExtension(filename string) bool {
	mu.RLock()
	defer mu.RUnlock()
	_, ok := extensions[strings.ToLower(filepath.Ext(filename))]
	return ok
}

// Names lists registered dialects in sorted order.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(dialects))
	for n := range dialects {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// NormalizeName collapses whitespace and lower-cases a reference name.
func NormalizeName(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
