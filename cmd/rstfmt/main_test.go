package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"

	"github.com/0mp/rstfmt/internal/doctree"
	"github.com/0mp/rstfmt/internal/markup"
	"github.com/0mp/rstfmt/internal/markup/text"
	"github.com/0mp/rstfmt/internal/roundtrip"
)

// execute runs the CLI with fresh flag values and returns stdout.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	for _, k := range []string{"RSTFMT_WIDTH", "RSTFMT_WIDTHS", "RSTFMT_ARTIFACT_DIR", "RSTFMT_KEEP_GOING", "RSTFMT_LOG_LEVEL"} {
		t.Setenv(k, "")
	}
	t.Setenv("RSTFMT_JOBS", "2")

	reset := func(fs *pflag.FlagSet) {
		fs.VisitAll(func(f *pflag.Flag) {
			f.Value.Set(f.DefValue)
			f.Changed = false
		})
	}
	reset(rootCmd.PersistentFlags())
	for _, c := range rootCmd.Commands() {
		reset(c.Flags())
	}

	var stdout, stderr bytes.Buffer
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	_, err := rootCmd.ExecuteC()
	return stdout.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFmt_Stdin(t *testing.T) {
	out, err := execute(t, "The quick brown fox jumps over the lazy dog.\n", "fmt", "-w", "20")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "The quick brown fox\njumps over the lazy\ndog.\n"
	if out != want {
		t.Errorf("expected %q, got %q", want, out)
	}
}

func TestFmt_InPlace(t *testing.T) {
	path := writeFile(t, "README.md", "Title\n=====\n")
	out, err := execute(t, "", "fmt", "-i", path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "reformatted "+path+"\n" {
		t.Errorf("unexpected output %q", out)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "# Title\n" {
		t.Errorf("expected rewritten file, got %q", data)
	}

	// Already formatted files are left alone.
	out, err = execute(t, "", "fmt", "-i", path)
	if err != nil || out != "" {
		t.Errorf("expected a silent no-op, got %q, %v", out, err)
	}
}

func TestFmt_Errors(t *testing.T) {
	if _, err := execute(t, "", "fmt", "-i"); err == nil {
		t.Errorf("expected --in-place without paths to fail")
	}
	if _, err := execute(t, "x", "fmt", "-w", "wide"); err == nil {
		t.Errorf("expected a bad width to fail")
	}
	path := writeFile(t, "notes.adoc", "x\n")
	if _, err := execute(t, "", "fmt", path); err == nil {
		t.Errorf("expected an unknown extension to fail")
	}
}

func TestCheck_OK(t *testing.T) {
	path := writeFile(t, "doc.rst", "Title\n=====\n\nSome *text* here.\n\n- one\n- two\n")
	out, err := execute(t, "", "--color", "off", "check", "--artifacts", t.TempDir(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "ok "+path) || !strings.Contains(out, "checked 1 files") {
		t.Errorf("unexpected output %q", out)
	}
}

// cliLossy drops the last paragraph when formatting.
type cliLossy struct{ text.Dialect }

func (cliLossy) Name() string { return "cli-lossy" }

func (cliLossy) Format(doc *doctree.Node, w markup.Width) (string, error) {
	kept := doc.Children[:max(len(doc.Children)-1, 0)]
	return text.Format(doctree.New(doctree.Document, kept...), w)
}

func TestCheck_Failure(t *testing.T) {
	markup.Register(cliLossy{}, ".lossy")
	path := writeFile(t, "doc.lossy", "One.\n\nTwo.\n")
	artifacts := t.TempDir()

	out, err := execute(t, "", "--color", "off", "--quiet", "check", "--artifacts", artifacts, "--widths", "8", path)
	if err == nil || !strings.Contains(err.Error(), "1 of 1 files failed") {
		t.Fatalf("expected a check failure, got %v", err)
	}
	if !strings.Contains(out, "FAIL "+path) || !strings.Contains(out, "different num children at Document") {
		t.Errorf("unexpected output %q", out)
	}
	dump, err := os.ReadFile(filepath.Join(artifacts, "000-doc.lossy", "dump1.txt"))
	if err != nil {
		t.Fatalf("expected artifacts: %v", err)
	}
	if !strings.HasPrefix(string(dump), "- Document {}\n") {
		t.Errorf("unexpected dump %q", dump)
	}
}

func TestDump(t *testing.T) {
	path := writeFile(t, "doc.md", "Hello *world*\n")
	out, err := execute(t, "", "--color", "off", "dump", path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "- Document {}\n" +
		"    - Paragraph {}\n" +
		"        - Text \"Hello \"\n" +
		"        - Emphasis {}\n" +
		"            - Text \"world\"\n"
	if out != want {
		t.Errorf("expected:\n%s\ngot:\n%s", want, out)
	}

	if _, err := execute(t, "", "--color", "sometimes", "dump", path); err == nil {
		t.Errorf("expected an invalid --color to fail")
	}
}

func TestDialects(t *testing.T) {
	out, err := execute(t, "", "dialects")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, want := range []string{"markdown\n", "rst\n", "text\n"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in %q", want, out)
		}
	}
}

func TestHasFailure(t *testing.T) {
	f := &roundtrip.Failure{Dialect: "rst", Width: 8, Property: roundtrip.RoundTrip}
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"bare", f, true},
		{"wrapped", fmt.Errorf("doc.rst: %w", f), true},
		{"wrapped join", fmt.Errorf("doc.rst: %w", errors.Join(errors.New("disk full"), f)), true},
		{"parse error", &markup.ParseError{Dialect: "rst", Line: 3, Msg: "bad"}, false},
	}
	for _, tt := range tests {
		if got := hasFailure(tt.err); got != tt.want {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.want, got)
		}
	}
}
