package markup

import "strings"

// ExtractQuantifier returns the first italic span of a name and the text
// left once that span is removed.
func ExtractQuantifier(s string) (string, string) {
	return extractFirst(s, NameContext, Quantifier)
}

// ExtractQualifier returns the first bold span and the residual text.
func ExtractQualifier(s string) (string, string) {
	return extractFirst(s, NameContext, Qualifier)
}

// ExtractAdverb returns the first ++adverb++ span and the residual text.
func ExtractAdverb(s string) (string, string) {
	return extractFirst(s, NameContext, Adverb)
}

// ExtractModality returns the trailing [modality] span and the residual
// text. A bracket that does not end the statement is not a modality.
func ExtractModality(s string) (string, string) {
	return extractFirst(s, NameContext, Modality)
}

// ExtractUnit returns the italic span that ends a value and the residual
// text. An italic span followed by anything other than whitespace is part
// of the value, and the value is returned unchanged.
func ExtractUnit(s string) (string, string) {
	tokens := Tokenize(s, ValueContext)
	at := len(tokens) - 1
	for at >= 0 && tokens[at].Kind == Plain && strings.TrimSpace(tokens[at].Raw) == "" {
		at--
	}
	if at < 0 || tokens[at].Kind != Unit {
		return "", Collapse(s)
	}
	return tokens[at].Text, residual(tokens, at)
}

// StripMarkup removes emphasis markers while keeping their text, drops
// adverb and modality spans entirely, and collapses whitespace.
func StripMarkup(s string) string {
	var sb strings.Builder
	for _, tok := range Tokenize(s, NameContext) {
		switch tok.Kind {
		case Adverb, Modality:
			sb.WriteByte(' ')
		case Plain:
			sb.WriteString(tok.Raw)
		default:
			sb.WriteString(tok.Text)
		}
	}
	return Collapse(sb.String())
}

// Collapse trims s and folds every whitespace run into one space.
func Collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func extractFirst(s string, ctx Context, kind Kind) (string, string) {
	tokens := Tokenize(s, ctx)
	for i, tok := range tokens {
		if tok.Kind == kind {
			return tok.Text, residual(tokens, i)
		}
	}
	return "", Collapse(s)
}

// residual rebuilds the raw text without the token at skip.
func residual(tokens []Token, skip int) string {
	var sb strings.Builder
	for i, tok := range tokens {
		if i == skip {
			sb.WriteByte(' ')
			continue
		}
		sb.WriteString(tok.Raw)
	}
	return Collapse(sb.String())
}
