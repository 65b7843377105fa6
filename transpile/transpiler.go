// Package transpile rewrites JCL source text into C text.
//
// The rewrite is textual and line oriented. Each non-blank line goes through
// a fixed sequence of passes: directive detection, literal protection,
// normalization, identifier substitution, keyword substitution, strlen cast,
// literal restoration with format translation, terminator insertion and
// side-effect injection. There is no parser; the C compiler validates the
// result.
package transpile

import (
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/nevindra/jcl"
)

// Preamble starts every generated program. The headers are emitted whether
// or not the source includes them.
const Preamble = "// Generated by the jcl transpiler.\n" +
	"#include <stdio.h>\n" +
	"#include <stdlib.h>\n" +
	"#include <string.h>\n" +
	"#include <locale.h>\n\n"

// Transpiler converts JCL source text to C. It is safe for concurrent use.
type Transpiler struct {
	tables    *Tables
	normalize bool
	logger    *slog.Logger
}

var _ jcl.Transpiler = (*Transpiler)(nil)

// Option configures a Transpiler.
type Option func(*Transpiler)

// WithLogger sets a logger that receives a debug record per transpilation.
func WithLogger(l *slog.Logger) Option {
	return func(t *Transpiler) { t.logger = l }
}

// WithoutNormalization disables NFC composition and width folding of code
// outside literals.
func WithoutNormalization() Option {
	return func(t *Transpiler) { t.normalize = false }
}

// New returns a Transpiler using tables. A nil tables uses DefaultTables.
func New(tables *Tables, opts ...Option) *Transpiler {
	if tables == nil {
		tables = DefaultTables()
	}
	t := &Transpiler{tables: tables, normalize: true}
	for _, o := range opts {
		o(t)
	}
	if t.logger == nil {
		t.logger = slog.New(slog.DiscardHandler)
	}
	return t
}

// Transpile returns the C text for source. The same source always yields
// the same bytes.
func (t *Transpiler) Transpile(source string) (string, error) {
	lines := splitLines(source)
	st := &state{tables: t.tables, normalize: t.normalize}
	out := make([]string, 0, len(lines))
	for i, line := range lines {
		emitted, err := st.line(line)
		if err != nil {
			return "", &jcl.TranspileError{Line: i + 1, Reason: err.Error()}
		}
		out = append(out, emitted...)
	}
	t.logger.Debug("transpile: done", "source_lines", len(lines), "target_lines", len(out))
	return Preamble + strings.Join(out, "\n"), nil
}

// splitLines splits on any line ending. A final line ending does not start
// an extra empty line.
func splitLines(source string) []string {
	source = strings.ReplaceAll(source, "\r\n", "\n")
	source = strings.ReplaceAll(source, "\r", "\n")
	source = strings.TrimSuffix(source, "\n")
	if source == "" {
		return nil
	}
	return strings.Split(source, "\n")
}

// state carries what one transpilation needs to remember across lines.
type state struct {
	tables    *Tables
	normalize bool
	// pendingLocale is set when the entry point signature was seen but its
	// body has not opened yet.
	pendingLocale bool
}

// line runs every pass over one source line and returns the target lines it
// produces.
func (s *state) line(raw string) ([]string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return []string{raw}, nil
	}
	indent := raw[:len(raw)-len(strings.TrimLeftFunc(raw, unicode.IsSpace))]
	if s.normalize {
		indent = normalizeCode(indent)
	}

	probe := trimmed
	if s.normalize {
		probe = normalizeCode(trimmed)
	}
	if d, ok := directive(probe, s.tables); ok {
		return []string{indent + d}, nil
	}

	if strings.ContainsRune(trimmed, placeholderOpen) || strings.ContainsRune(trimmed, placeholderClose) {
		return nil, fmt.Errorf("reserved character U+%04X in source", placeholderOpen)
	}

	code, literals := protectLiterals(trimmed)
	if s.normalize {
		code = normalizeCode(code)
	}
	code = substituteIdentifiers(code, s.tables.identifiers)
	code = substituteKeywords(code, s.tables.keywords)
	code = castStrlen(code)

	code, lost, ok := restoreLiterals(code, literals, s.tables.formats)
	if !ok {
		return nil, fmt.Errorf("string literal %d could not be restored", lost+1)
	}

	code = terminate(code)
	return s.inject(indent, code), nil
}

// inject appends the statements the generated program needs after output
// calls and at the start of the entry point body.
func (s *state) inject(indent, code string) []string {
	// A prototype has no body to open.
	if isEntryPoint(code) && !isPrototype(code) {
		s.pendingLocale = true
	}
	if s.pendingLocale {
		if i := strings.Index(code, "{"); i >= 0 {
			s.pendingLocale = false
			if i == len(strings.TrimRightFunc(code, unicode.IsSpace))-1 {
				return []string{indent + code, indent + "    " + localeStatement}
			}
			code = code[:i+1] + " " + localeStatement + code[i+1:]
		}
	}
	if isOutputCall(code) {
		return []string{indent + code, indent + flushStatement}
	}
	return []string{indent + code}
}
