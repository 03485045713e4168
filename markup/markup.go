// Package markup tokenizes CNL statement text into typed emphasis spans.
//
// The conventions are the ones authors already type in markdown:
//
//	*x* or _x_    italic: a quantifier in names, a unit in values
//	**x** or __x__ bold: a qualifier
//	++x++         an adverb
//	[x]           a modality, only when it ends the statement
//
// Unbalanced markers are literal text. When spans nest, the outermost
// span wins and the inner markers stay in its text.
package markup

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Kind identifies what a token means.
type Kind int

const (
	Plain Kind = iota
	Quantifier
	Qualifier
	Adverb
	Modality
	Unit
)

// String returns the name of the kind.
func (k Kind) String() string {
	switch k {
	case Plain:
		return "plain"
	case Quantifier:
		return "quantifier"
	case Qualifier:
		return "qualifier"
	case Adverb:
		return "adverb"
	case Modality:
		return "modality"
	case Unit:
		return "unit"
	default:
		return "unknown"
	}
}

// Context selects how italic spans are read.
type Context int

const (
	// NameContext reads italic as a quantifier (headings, relation targets).
	NameContext Context = iota
	// ValueContext reads italic as a unit (attribute values).
	ValueContext
)

// Token is one span of tokenized text.
type Token struct {
	Kind Kind
	// Text is the span content without its markers.
	Text string
	// Raw is the span exactly as it appeared in the input.
	Raw string
}

// Tokenize splits s into plain and marked-up tokens in a single pass.
// Concatenating the Raw fields of the result reproduces s.
func Tokenize(s string, ctx Context) []Token {
	var tokens []Token
	var plain strings.Builder

	flush := func() {
		if plain.Len() == 0 {
			return
		}
		text := plain.String()
		tokens = append(tokens, Token{Kind: Plain, Text: text, Raw: text})
		plain.Reset()
	}

	for i := 0; i < len(s); {
		if tok, end, ok := spanAt(s, i, ctx); ok {
			flush()
			tokens = append(tokens, tok)
			i = end
			continue
		}
		// A double marker that did not open a span is literal as a pair,
		// so its second half cannot open a single-marker span.
		if isDoubleMarker(s, i) {
			plain.WriteString(s[i : i+2])
			i += 2
			continue
		}
		plain.WriteByte(s[i])
		i++
	}
	flush()

	return tokens
}

func isDoubleMarker(s string, i int) bool {
	if i+1 >= len(s) || s[i] != s[i+1] {
		return false
	}
	return s[i] == '*' || s[i] == '_' || s[i] == '+'
}

// spanAt tries to open a span at byte offset i.
func spanAt(s string, i int, ctx Context) (Token, int, bool) {
	rest := s[i:]
	switch {
	case strings.HasPrefix(rest, "++"):
		return double(s, i, "++", Adverb)
	case strings.HasPrefix(rest, "**"):
		return double(s, i, "**", Qualifier)
	case strings.HasPrefix(rest, "__"):
		if !wordBoundaryBefore(s, i) {
			return Token{}, 0, false
		}
		return double(s, i, "__", Qualifier)
	case rest[0] == '*' || rest[0] == '_':
		if rest[0] == '_' && !wordBoundaryBefore(s, i) {
			return Token{}, 0, false
		}
		kind := Quantifier
		if ctx == ValueContext {
			kind = Unit
		}
		return single(s, i, kind)
	case rest[0] == '[':
		return modality(s, i)
	}
	return Token{}, 0, false
}

// double reads a span delimited by a two-character marker.
func double(s string, i int, delim string, kind Kind) (Token, int, bool) {
	start := i + len(delim)
	j := strings.Index(s[start:], delim)
	if j < 0 {
		return Token{}, 0, false
	}
	closeAt := start + j
	end := closeAt + len(delim)
	if delim == "__" && !wordBoundaryAfter(s, end) {
		return Token{}, 0, false
	}
	text := s[start:closeAt]
	if !validContent(text) {
		return Token{}, 0, false
	}
	return Token{Kind: kind, Text: text, Raw: s[i:end]}, end, true
}

// single reads an italic span. Doubled markers inside it belong to a
// nested bold span and are skipped over.
func single(s string, i int, kind Kind) (Token, int, bool) {
	marker := s[i]
	for j := i + 1; j < len(s); j++ {
		if s[j] != marker {
			continue
		}
		if j+1 < len(s) && s[j+1] == marker {
			j++
			continue
		}
		end := j + 1
		if marker == '_' && !wordBoundaryAfter(s, end) {
			continue
		}
		text := s[i+1 : j]
		if !validContent(text) {
			return Token{}, 0, false
		}
		return Token{Kind: kind, Text: text, Raw: s[i:end]}, end, true
	}
	return Token{}, 0, false
}

// modality reads a bracketed span that closes the statement. Brackets
// are matched by depth so an outer bracket keeps its inner ones.
func modality(s string, i int) (Token, int, bool) {
	depth := 0
	for j := i; j < len(s); j++ {
		switch s[j] {
		case '[':
			depth++
		case ']':
			depth--
			if depth > 0 {
				continue
			}
			end := j + 1
			if strings.TrimSpace(s[end:]) != "" {
				return Token{}, 0, false
			}
			text := s[i+1 : j]
			if strings.TrimSpace(text) == "" {
				return Token{}, 0, false
			}
			return Token{Kind: Modality, Text: strings.TrimSpace(text), Raw: s[i:end]}, end, true
		}
	}
	return Token{}, 0, false
}

// validContent rejects empty spans and spans padded with whitespace,
// which markdown also refuses to treat as emphasis.
func validContent(text string) bool {
	if text == "" {
		return false
	}
	first, _ := utf8.DecodeRuneInString(text)
	last, _ := utf8.DecodeLastRuneInString(text)
	return !unicode.IsSpace(first) && !unicode.IsSpace(last)
}

func wordBoundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return !isWordRune(r)
}

func wordBoundaryAfter(s string, end int) bool {
	if end >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[end:])
	return !isWordRune(r)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
