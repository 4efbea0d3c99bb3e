// Package roundtrip checks that a dialect's formatter preserves document
// structure and is idempotent across a matrix of line widths.
package roundtrip

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/0mp/rstfmt/internal/doctree"
	"github.com/0mp/rstfmt/internal/markup"
	"github.com/0mp/rstfmt/internal/nodeeq"
)

// DefaultWidths mixes pathological, realistic and unbounded widths.
var DefaultWidths = []markup.Width{1, 2, 3, 5, 8, 13, 34, 55, 89, 144, 72, markup.Unbounded}

// Artifact names written on failure.
const (
	ArtifactDump1 = "dump1.txt"
	ArtifactDump2 = "dump2.txt"
	ArtifactOut1  = "out1.txt"
	ArtifactOut2  = "out2.txt"
)

// Property names the guarantee a failed check broke.
type Property string

const (
	// RoundTrip: reparsing the formatted output yields an equivalent tree.
	RoundTrip Property = "roundtrip"
	// Idempotence: formatting the reparsed tree reproduces the output.
	Idempotence Property = "idempotence"
)

// Failure is returned when a formatted document breaks a property.
type Failure struct {
	Dialect   string
	Width     markup.Width
	Property  Property
	Mismatch  *nodeeq.Mismatch // nil for Idempotence
	Artifacts []string
}

func (f *Failure) Error() string {
	msg := fmt.Sprintf("%s: width %s: %s check failed", f.Dialect, f.Width, f.Property)
	if f.Mismatch != nil {
		msg += ": " + string(f.Mismatch.Reason) + " at " + f.Mismatch.Location()
	}
	return msg
}

type options struct {
	widths    []markup.Width
	sink      Sink
	oracle    *nodeeq.Oracle
	log       *slog.Logger
	keepGoing bool
}

// Option configures Run.
type Option func(*options)

// WithWidths replaces DefaultWidths.
func WithWidths(widths ...markup.Width) Option {
	return func(o *options) { o.widths = widths }
}

// WithSink sets where failure artifacts go. The default discards them.
func WithSink(s Sink) Option {
	return func(o *options) { o.sink = s }
}

// WithOracle sets the tree comparison. The default canonicalizes Go code
// blocks and logs through the Run logger.
func WithOracle(oracle nodeeq.Oracle) Option {
	return func(o *options) { o.oracle = &oracle }
}

// WithLogger sets the logger for progress and mismatch diagnostics.
func WithLogger(log *slog.Logger) Option {
	return func(o *options) { o.log = log }
}

// KeepGoing tests every width instead of stopping at the first failure.
// Artifacts get a width suffix so failures do not overwrite each other.
func KeepGoing() Option {
	return func(o *options) { o.keepGoing = true }
}

// Run formats input with d at every width, reparses the output and checks
// both properties. input is a *doctree.Node, a string or a []byte; text is
// parsed once with d and parse errors are returned unchanged.
//
// On the first failing width Run writes four artifacts to the sink and
// returns a *Failure. With KeepGoing it checks every width and joins the
// failures.
func Run(d markup.Dialect, input any, opts ...Option) error {
	o := options{widths: DefaultWidths, sink: Discard}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = slog.Default()
	}
	oracle := nodeeq.Oracle{Log: o.log}
	if o.oracle != nil {
		oracle = *o.oracle
	}

	ref, err := reference(d, input)
	if err != nil {
		return err
	}

	var errs []error
	for _, w := range o.widths {
		err := check(d, ref, w, oracle, o)
		if err == nil {
			o.log.Debug("round trip ok", "dialect", d.Name(), "width", w.String())
			continue
		}
		if !o.keepGoing {
			return err
		}
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func reference(d markup.Dialect, input any) (*doctree.Node, error) {
	switch in := input.(type) {
	case *doctree.Node:
		return in, nil
	case string:
		return d.Parse(in)
	case []byte:
		return d.Parse(string(in))
	}
	return nil, fmt.Errorf("roundtrip: unsupported input type %T", input)
}

func check(d markup.Dialect, ref *doctree.Node, w markup.Width, oracle nodeeq.Oracle, o options) error {
	out1, err := d.Format(ref, w)
	if err != nil {
		return fmt.Errorf("width %s: format: %w", w, err)
	}
	tree2, err := d.Parse(out1)
	if err != nil {
		return fmt.Errorf("width %s: reparse: %w", w, err)
	}
	out2, err := d.Format(tree2, w)
	if err != nil {
		return fmt.Errorf("width %s: second format: %w", w, err)
	}

	f := &Failure{Dialect: d.Name(), Width: w}
	if m := oracle.Check(ref, tree2); m != nil {
		f.Property, f.Mismatch = RoundTrip, m
	} else if out1 != out2 {
		f.Property = Idempotence
	} else {
		return nil
	}

	suffix := ""
	if o.keepGoing {
		suffix = "-w" + w.String()
	}
	o.log.Warn("round trip failed", "dialect", d.Name(), "width", w.String(), "property", string(f.Property))
	names, werr := writeArtifacts(o.sink, suffix, ref, tree2, out1, out2)
	f.Artifacts = names
	if werr != nil {
		return errors.Join(f, werr)
	}
	return f
}

type artifact struct {
	name  string
	write func(io.Writer) error
}

// writeArtifacts writes every artifact even when an earlier one fails and
// closes each writer before moving on.
func writeArtifacts(sink Sink, suffix string, ref, tree2 *doctree.Node, out1, out2 string) ([]string, error) {
	text := func(s string) func(io.Writer) error {
		return func(w io.Writer) error {
			_, err := io.WriteString(w, s+"\n")
			return err
		}
	}
	dump := func(n *doctree.Node) func(io.Writer) error {
		return func(w io.Writer) error { return doctree.Dump(w, n) }
	}
	artifacts := []artifact{
		{ArtifactDump1, dump(ref)},
		{ArtifactDump2, dump(tree2)},
		{ArtifactOut1, text(out1)},
		{ArtifactOut2, text(out2)},
	}

	var names []string
	var errs []error
	for _, a := range artifacts {
		name := withSuffix(a.name, suffix)
		if err := writeArtifact(sink, name, a.write); err != nil {
			errs = append(errs, fmt.Errorf("write artifact %s: %w", name, err))
			continue
		}
		names = append(names, name)
	}
	return names, errors.Join(errs...)
}

func writeArtifact(sink Sink, name string, write func(io.Writer) error) error {
	w, err := sink.Create(name)
	if err != nil {
		return err
	}
	werr := write(w)
	return errors.Join(werr, w.Close())
}

// withSuffix inserts suffix before the extension: dump1.txt -> dump1-w13.txt.
func withSuffix(name, suffix string) string {
	if suffix == "" {
		return name
	}
	const ext = ".txt"
	return name[:len(name)-len(ext)] + suffix + ext
}
