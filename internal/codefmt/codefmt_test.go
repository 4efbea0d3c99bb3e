package codefmt

import "testing"

func TestGo_Canonicalizes(t *testing.T) {
	a, b := Go("x=1"), Go("x  =  1")
	if !a.OK || !b.OK {
		t.Fatalf("expected both snippets to parse, got %+v and %+v", a, b)
	}
	if a != b {
		t.Errorf("expected identical canonical forms, got %q and %q", a.Text, b.Text)
	}
}

func TestGo_FullFile(t *testing.T) {
	want := "package main\n\nfunc main() {\n\tprintln(1)\n}\n"
	r := Go("package main\nfunc main(){\n   println(1)\n}\n")
	if !r.OK {
		t.Fatalf("expected file to parse")
	}
	if r.Text != want {
		t.Errorf("expected %q, got %q", want, r.Text)
	}
}

func TestGo_Unparseable(t *testing.T) {
	for _, src := range []string{"x=", ")(", "func {"} {
		if r := Go(src); r != Unparseable {
			t.Errorf("src=%q: expected Unparseable, got %+v", src, r)
		}
	}
}

func TestUnparseable_DistinctFromEmpty(t *testing.T) {
	if Ok("") == Unparseable {
		t.Errorf("formatted empty text must differ from Unparseable")
	}
}

func TestRegistry_Lookup(t *testing.T) {
	r := Default()
	if _, ok := r.Lookup([]string{"code", "go"}); !ok {
		t.Errorf("expected go formatter")
	}
	if _, ok := r.Lookup([]string{"code", "python"}); ok {
		t.Errorf("expected no python formatter")
	}
	if _, ok := r.Lookup(nil); ok {
		t.Errorf("expected no formatter for empty classes")
	}
}

func TestRegistry_Only(t *testing.T) {
	r := Default().Only("go", "rust")
	if len(r) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(r))
	}
	if _, ok := r["go"]; !ok {
		t.Errorf("expected go entry")
	}
}
