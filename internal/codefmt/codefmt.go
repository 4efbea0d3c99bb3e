// Package codefmt canonicalizes code snippets embedded in documents so that
// two literal blocks can be compared by meaning rather than layout.
package codefmt

import "go/format"

// Result is the outcome of canonicalizing a snippet. The zero value is
// Unparseable.
type Result struct {
	Text string
	OK   bool
}

// Unparseable marks a snippet that is not valid code in its language. Two
// unparseable results compare equal to each other and to nothing else.
var Unparseable = Result{}

// Ok wraps successfully formatted text.
func Ok(text string) Result {
	return Result{Text: text, OK: true}
}

// Func canonicalizes a snippet.
type Func func(src string) Result

// Registry maps a language class (as found on literal blocks) to its
// canonical formatter.
type Registry map[string]Func

// Default returns the registry used when none is configured.
func Default() Registry {
	return Registry{
		"go":     Go,
		"golang": Go,
	}
}

// Lookup returns the formatter for the first class that has one.
func (r Registry) Lookup(classes []string) (Func, bool) {
	for _, c := range classes {
		if f, ok := r[c]; ok {
			return f, true
		}
	}
	return nil, false
}

// Only returns a registry restricted to the named languages. Unknown names
// are ignored.
func (r Registry) Only(langs ...string) Registry {
	out := make(Registry, len(langs))
	for _, l := range langs {
		if f, ok := r[l]; ok {
			out[l] = f
		}
	}
	return out
}

// Go formats src with gofmt. Complete files, declaration lists and
// statement lists are all accepted.
func Go(src string) Result {
	out, err := format.Source([]byte(src))
	if err != nil {
		return Unparseable
	}
	return Ok(string(out))
}
