package transpile

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// Each pass below takes one line and returns the rewritten line. They run in
// the order listed in Transpiler.line and never see another line.

const (
	includeMarker = "組み込む<"
	defineMarker  = "定義 "

	// Placeholder delimiters come from the private use area so that no
	// keyword, identifier or normalization pass can alter them.
	placeholderOpen  = '\uE000'
	placeholderClose = '\uE001'

	localeStatement = `setlocale(LC_ALL, "ja_JP.UTF-8");`
	flushStatement  = "fflush(stdout);"
)

// directive recognizes the include and define forms. The trailing line
// comment and statement terminator are ignored.
func directive(trimmed string, tables *Tables) (string, bool) {
	clean := trimmed
	if i := strings.Index(clean, "//"); i >= 0 {
		clean = clean[:i]
	}
	clean = strings.TrimSpace(clean)
	clean = strings.TrimSpace(strings.TrimSuffix(clean, ";"))

	switch {
	case strings.HasPrefix(clean, includeMarker) && strings.HasSuffix(clean, ">"):
		name := clean[len(includeMarker) : len(clean)-1]
		return "#include <" + tables.Header(name) + ">", true
	case strings.HasPrefix(clean, defineMarker):
		return "#define " + clean[len(defineMarker):], true
	}
	return "", false
}

var literalPattern = regexp.MustCompile(`"((?:[^"\\]|\\.)*)"`)

func placeholder(i int) string {
	return string(placeholderOpen) + strconv.Itoa(i) + string(placeholderClose)
}

// protectLiterals replaces every double-quoted literal with a placeholder
// and returns the literal contents in order of appearance.
func protectLiterals(line string) (string, []string) {
	var literals []string
	out := literalPattern.ReplaceAllStringFunc(line, func(m string) string {
		literals = append(literals, m[1:len(m)-1])
		return placeholder(len(literals) - 1)
	})
	return out, literals
}

// normalizeCode composes decomposed kana and folds full-width ASCII forms
// (parentheses, operators, digits, ideographic space) to plain ASCII.
func normalizeCode(line string) string {
	return width.Fold.String(norm.NFC.String(line))
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// replaceWord replaces occurrences of word that are not adjacent to another
// letter, digit or underscore on either side.
func replaceWord(line, word, repl string) string {
	if word == "" {
		return line
	}
	var b strings.Builder
	pos := 0
	for {
		i := strings.Index(line[pos:], word)
		if i < 0 {
			b.WriteString(line[pos:])
			return b.String()
		}
		start, end := pos+i, pos+i+len(word)
		// Neighbours are read from the whole line, not from what is left.
		before, _ := utf8.DecodeLastRuneInString(line[:start])
		after, _ := utf8.DecodeRuneInString(line[end:])
		bounded := (start == 0 || !isWordRune(before)) &&
			(end == len(line) || !isWordRune(after))
		b.WriteString(line[pos:start])
		if bounded {
			b.WriteString(repl)
		} else {
			b.WriteString(word)
		}
		pos = end
	}
}

func substituteIdentifiers(line string, ids []Identifier) string {
	for _, id := range ids {
		line = replaceWord(line, id.Name, id.Target)
	}
	return line
}

func substituteKeywords(line string, entries []Entry) string {
	for _, e := range entries {
		if e.Kind != KindKeyword {
			continue
		}
		line = strings.ReplaceAll(line, e.Phrase, e.Token)
	}
	return line
}

const (
	strlenCall = "strlen("
	intCast    = "(int)"
)

// castStrlen casts string length results to int, since size_t arguments
// do not match the %d conversions JCL programs use for lengths.
func castStrlen(line string) string {
	var b strings.Builder
	rest := line
	for {
		i := strings.Index(rest, strlenCall)
		if i < 0 {
			b.WriteString(rest)
			return b.String()
		}
		prev, _ := utf8.DecodeLastRuneInString(rest[:i])
		emitted := b.String() + rest[:i]
		needsCast := (i == 0 || !isIdentByte(prev)) && !strings.HasSuffix(emitted, intCast)
		b.WriteString(rest[:i])
		if needsCast {
			b.WriteString(intCast)
		}
		b.WriteString(strlenCall)
		rest = rest[i+len(strlenCall):]
	}
}

func isIdentByte(r rune) bool {
	return r == '_' || ('a' <= r && r <= 'z') || ('A' <= r && r <= 'Z') || ('0' <= r && r <= '9')
}

// callContext says whether the literal at position pos is an argument of an
// output call, an input call, or neither.
type callContext int

const (
	contextNone callContext = iota
	contextOutput
	contextInput
)

// contextAt looks for the nearest call before pos. fprintf and sprintf end
// in "printf(", fscanf and sscanf in "scanf(".
func contextAt(line string, pos int) callContext {
	prefix := line[:pos]
	out := strings.LastIndex(prefix, "printf(")
	in := strings.LastIndex(prefix, "scanf(")
	switch {
	case out < 0 && in < 0:
		return contextNone
	case out > in:
		return contextOutput
	default:
		return contextInput
	}
}

// translateFormats rewrites format words inside one literal.
func translateFormats(content string, entries []Entry, ctx callContext) string {
	for _, e := range entries {
		switch e.Kind {
		case KindFormat:
			content = strings.ReplaceAll(content, e.Phrase, e.Token)
		case KindFormatContextual:
			switch ctx {
			case contextOutput:
				content = strings.ReplaceAll(content, e.Phrase, e.Token)
			case contextInput:
				content = strings.ReplaceAll(content, e.Phrase, e.ScanToken)
			}
		}
	}
	return content
}

// restoreLiterals puts every literal back in place of its placeholder and
// translates its format words. Call contexts are read from the line while
// all literals are still hidden. A placeholder that is missing or duplicated
// cannot be restored; its index is returned with ok false.
func restoreLiterals(line string, literals []string, formats []Entry) (string, int, bool) {
	contexts := make([]callContext, len(literals))
	for i := range literals {
		ph := placeholder(i)
		if strings.Count(line, ph) != 1 {
			return "", i, false
		}
		contexts[i] = contextAt(line, strings.Index(line, ph))
	}
	for i, lit := range literals {
		restored := `"` + translateFormats(lit, formats, contexts[i]) + `"`
		line = strings.Replace(line, placeholder(i), restored, 1)
	}
	return line, 0, true
}

var controlKeywords = []string{"if", "else", "for", "while", "switch", "do"}

// startsWithWord reports whether line begins with kw as a whole word.
func startsWithWord(line, kw string) bool {
	if !strings.HasPrefix(line, kw) {
		return false
	}
	if len(line) == len(kw) {
		return true
	}
	return !isIdentByte(rune(line[len(kw)]))
}

func startsControlBlock(line string) bool {
	for _, kw := range controlKeywords {
		if startsWithWord(line, kw) {
			return true
		}
	}
	return false
}

// splitComment splits a trailing // comment off line, ignoring // inside
// string and character literals.
func splitComment(line string) (code, comment string) {
	var quote byte
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '/' && i+1 < len(line) && line[i+1] == '/':
			return line[:i], line[i:]
		}
	}
	return line, ""
}

// isEntryPoint reports whether line is the program entry point signature.
func isEntryPoint(line string) bool {
	return strings.HasPrefix(line, "int main(")
}

// isPrototype reports whether line is a declaration ending in a terminator.
func isPrototype(line string) bool {
	code, _ := splitComment(line)
	return strings.HasSuffix(strings.TrimRightFunc(code, unicode.IsSpace), ";")
}

// isOutputCall reports whether line is an output-call statement.
func isOutputCall(line string) bool {
	return strings.HasPrefix(line, "printf(")
}

// terminate appends a statement terminator where the line needs one. An
// entry point signature whose body opens on a later line is left alone.
func terminate(line string) string {
	if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
		return line
	}
	code, comment := splitComment(line)
	code = strings.TrimRightFunc(code, unicode.IsSpace)
	if code == "" {
		return line
	}
	switch {
	case strings.HasSuffix(code, "{"),
		strings.HasSuffix(code, "}"),
		strings.HasSuffix(code, ";"),
		strings.HasSuffix(code, "},"),
		startsControlBlock(code),
		isEntryPoint(code) && strings.HasSuffix(code, ")"):
		return line
	}
	return code + ";" + line[len(code):len(line)-len(comment)] + comment
}
