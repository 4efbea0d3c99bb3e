package markup

import (
	"errors"
	"strings"
	"testing"

	"github.com/0mp/rstfmt/internal/doctree"
)

func TestWrap(t *testing.T) {
	tests := []struct {
		text  string
		width Width
		want  []string
	}{
		{"the quick brown fox", 10, []string{"the quick", "brown fox"}},
		{"the quick brown fox", 9, []string{"the quick", "brown fox"}},
		{"the quick brown fox", 8, []string{"the", "quick", "brown", "fox"}},
		{"a  b\n c", 80, []string{"a b c"}},
		{"a b c", 1, []string{"a", "b", "c"}},
		{"a b c", -3, []string{"a", "b", "c"}},
		{"supercalifragilistic is long", 5, []string{"supercalifragilistic", "is", "long"}},
		{"one two three", Unbounded, []string{"one two three"}},
		{"   ", 10, nil},
	}
	for _, tt := range tests {
		got := Wrap(tt.text, tt.width)
		if strings.Join(got, "|") != strings.Join(tt.want, "|") || len(got) != len(tt.want) {
			t.Errorf("Wrap(%q, %d): expected %q, got %q", tt.text, tt.width, tt.want, got)
		}
	}
}

func TestWrap_DisplayWidth(t *testing.T) {
	// Each CJK character takes two columns.
	got := Wrap("日本 語", 4)
	if len(got) != 2 {
		t.Errorf("expected wide runes to wrap by display width, got %q", got)
	}
}

func TestWidth(t *testing.T) {
	if Unbounded.Bounded() {
		t.Errorf("expected Unbounded to be unbounded")
	}
	if Unbounded.Sub(3) != Unbounded {
		t.Errorf("expected Sub to keep Unbounded")
	}
	if Width(3).Sub(3) == Unbounded {
		t.Errorf("expected exhausted width to stay bounded")
	}
	if Width(72).Sub(2) != 70 {
		t.Errorf("expected 70, got %d", Width(72).Sub(2))
	}
	if Unbounded.String() != "unbounded" || Width(8).String() != "8" {
		t.Errorf("unexpected String output")
	}
}

func TestParseWidth(t *testing.T) {
	for in, want := range map[string]Width{"72": 72, "none": Unbounded, "0": Unbounded, " 13 ": 13} {
		got, err := ParseWidth(in)
		if err != nil {
			t.Fatalf("ParseWidth(%q): unexpected error: %v", in, err)
		}
		if got != want {
			t.Errorf("ParseWidth(%q): expected %d, got %d", in, want, got)
		}
	}
	for _, in := range []string{"-1", "wide"} {
		if _, err := ParseWidth(in); err == nil {
			t.Errorf("ParseWidth(%q): expected error", in)
		}
	}
}

func TestHangAndIndent(t *testing.T) {
	got := Hang("- ", "  ", []string{"a", "", "b"})
	want := []string{"- a", "", "  b"}
	if strings.Join(got, "\n") != strings.Join(want, "\n") {
		t.Errorf("expected %q, got %q", want, got)
	}
	if Indent("   ", []string{"", "x"})[1] != "   x" {
		t.Errorf("unexpected indent result")
	}
}

func TestJoinBlocks(t *testing.T) {
	got := JoinBlocks([]string{"a"}, nil, []string{"b", "c"})
	if Lines(got) != "a\n\nb\nc\n" {
		t.Errorf("unexpected join result %q", Lines(got))
	}
	if Lines(nil) != "" {
		t.Errorf("expected empty document for no lines")
	}
}

func TestNormalizeName(t *testing.T) {
	if got := NormalizeName("  Getting\n  Started "); got != "getting started" {
		t.Errorf("expected %q, got %q", "getting started", got)
	}
}

type stubDialect struct{}

func (stubDialect) Name() string { return "stub" }
func (stubDialect) Parse(string) (*doctree.Node, error) { return doctree.New(doctree.Document), nil }
func (stubDialect) Format(*doctree.Node, Width) (string, error) { return "", nil }

func TestRegistry(t *testing.T) {
	Register(stubDialect{}, ".stub")

	d, err := ForFile("notes.STUB")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Name() != "stub" {
		t.Errorf("expected stub dialect, got %s", d.Name())
	}
	if !IsSupportedExtension("x.stub") {
		t.Errorf("expected .stub to be supported")
	}
	if _, err := ForFile("x.unknown"); err == nil {
		t.Errorf("expected error for unknown extension")
	}
	if _, err := Lookup("nope"); err == nil {
		t.Errorf("expected error for unknown dialect")
	}
}

func TestParseError(t *testing.T) {
	var err error = &ParseError{Dialect: "rst", Line: 4, Msg: "bad"}
	var pe *ParseError
	if !errors.As(err, &pe) || pe.Line != 4 {
		t.Fatalf("expected ParseError")
	}
	if err.Error() != "rst: line 4: bad" {
		t.Errorf("unexpected message %q", err.Error())
	}
}
