// Package diagnostic defines the error taxonomy shared by the lexer/parser,
// compiler, resolver, VM, and assembly (de)serializer (spec §7). Every
// diagnostic carries a Kind for programmatic handling — the CLI maps kinds to
// exit codes — and is wrapped with github.com/pkg/errors so a captured stack
// trace survives propagation across package boundaries for --stats/debug
// output, the same discipline nspcc-dev/neo-go's node services use around
// their own typed errors.
package diagnostic

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind discriminates the five error taxonomies named in spec §7. It is not a
// Go error type itself — it labels a Diagnostic so callers can switch on it
// without type-asserting a concrete struct per kind.
type Kind int

const (
	KindParse Kind = iota
	KindCompile
	KindLink
	KindRuntime
	KindAssemblyIO
)

func (k Kind) String() string {
	switch k {
	case KindParse:
		return "parse error"
	case KindCompile:
		return "compile error"
	case KindLink:
		return "link error"
	case KindRuntime:
		return "runtime error"
	case KindAssemblyIO:
		return "assembly I/O error"
	default:
		return "error"
	}
}

// Diagnostic is one reported error: its kind, a human message, and — for
// parse/compile errors — a source position. The wrapped cause (when present)
// carries the github.com/pkg/errors stack trace.
type Diagnostic struct {
	Kind    Kind
	Message string
	Line    int
	Column  int
	cause   error
}

func (d *Diagnostic) Error() string {
	if d.Line > 0 {
		if d.Column > 0 {
			return fmt.Sprintf("%s at line %d, column %d: %s", d.Kind, d.Line, d.Column, d.Message)
		}
		return fmt.Sprintf("%s at line %d: %s", d.Kind, d.Line, d.Message)
	}
	return fmt.Sprintf("%s: %s", d.Kind, d.Message)
}

// Unwrap exposes the wrapped cause so errors.Is/errors.As from both the
// standard library and github.com/pkg/errors can see through a Diagnostic.
func (d *Diagnostic) Unwrap() error { return d.cause }

// New builds a Diagnostic with no source position, capturing a stack trace
// via github.com/pkg/errors.
func New(kind Kind, format string, args ...interface{}) *Diagnostic {
	msg := fmt.Sprintf(format, args...)
	return &Diagnostic{Kind: kind, Message: msg, cause: errors.New(msg)}
}

// At builds a Diagnostic carrying a source line/column, for parse and
// compile errors.
func At(kind Kind, line, column int, format string, args ...interface{}) *Diagnostic {
	msg := fmt.Sprintf(format, args...)
	return &Diagnostic{Kind: kind, Message: msg, Line: line, Column: column, cause: errors.New(msg)}
}

// Wrap attaches kind and a stack trace to an existing error, via
// github.com/pkg/errors.Wrapf, preserving err as the cause.
func Wrap(kind Kind, err error, format string, args ...interface{}) *Diagnostic {
	wrapped := errors.Wrapf(err, format, args...)
	return &Diagnostic{Kind: kind, Message: wrapped.Error(), cause: wrapped}
}

// ExitCode maps a diagnostic's kind to the CLI's exit-code contract (spec
// §6.1/§7): parse/compile/link failures are configuration-time problems (1),
// runtime and assembly-I/O failures happen while actually running (2).
func (d *Diagnostic) ExitCode() int {
	switch d.Kind {
	case KindParse, KindCompile, KindLink:
		return 1
	default:
		return 2
	}
}

// ExitCodeFor inspects err for a wrapped *Diagnostic and returns its exit
// code, defaulting to 1 for any other error (an unexpected internal failure
// is still a configuration-time problem from the CLI's point of view).
func ExitCodeFor(err error) int {
	var d *Diagnostic
	if errors.As(err, &d) {
		return d.ExitCode()
	}
	return 1
}

// StackTrace returns the formatted stack frames captured at the point the
// diagnostic was constructed, for --stats/debug output. Empty when the
// underlying cause does not carry one (should not happen for diagnostics
// built via New/At/Wrap).
func (d *Diagnostic) StackTrace() string {
	type stackTracer interface {
		StackTrace() errors.StackTrace
	}
	if st, ok := d.cause.(stackTracer); ok {
		return fmt.Sprintf("%+v", st.StackTrace())
	}
	return ""
}
