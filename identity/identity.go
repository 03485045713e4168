// Package identity derives stable node ids from CNL names.
//
// The same composition runs for section headings and relation targets, so
// "**capital** Delhi" under a heading and as a target resolve to the same
// node.
package identity

import (
	"strings"
	"unicode"

	"github.com/c360studio/semcnl/markup"
)

// NodeIdentity is the decomposed identity of a name.
type NodeIdentity struct {
	BaseName    string `json:"base_name"`
	Qualifier   string `json:"qualifier,omitempty"`
	Quantifier  string `json:"quantifier,omitempty"`
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	// Type is the trailing [Type] annotation of a heading, if any.
	Type string `json:"type,omitempty"`
}

// Valid reports whether the identity resolved to a usable id.
func (n NodeIdentity) Valid() bool {
	return n.BaseName != "" && n.ID != ""
}

// Compose extracts quantifier, qualifier and base name from raw and
// derives the node id. It is pure: equal input always gives equal output.
func Compose(raw string) NodeIdentity {
	typ, rest := markup.ExtractModality(raw)
	quantifier, rest := markup.ExtractQuantifier(rest)
	qualifier, rest := markup.ExtractQualifier(rest)
	base := markup.StripMarkup(rest)

	n := FromParts(quantifier, qualifier, base)
	n.DisplayName = markup.Collapse(raw)
	n.Type = typ
	return n
}

// FromParts rebuilds an identity from already extracted parts.
func FromParts(quantifier, qualifier, base string) NodeIdentity {
	quantifier = markup.Collapse(quantifier)
	qualifier = markup.Collapse(qualifier)
	base = markup.Collapse(base)
	return NodeIdentity{
		BaseName:    base,
		Qualifier:   qualifier,
		Quantifier:  quantifier,
		ID:          ID(quantifier, qualifier, base),
		DisplayName: Display(quantifier, qualifier, base),
	}
}

// ID joins the non-empty parts with underscores and slugs the result.
// An empty base name yields an empty id.
func ID(quantifier, qualifier, base string) string {
	if Slug(base) == "" {
		return ""
	}
	parts := make([]string, 0, 3)
	for _, p := range []string{quantifier, qualifier, base} {
		if s := Slug(p); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, "_")
}

// Display renders the parts back into CNL markup.
func Display(quantifier, qualifier, base string) string {
	var parts []string
	if quantifier != "" {
		parts = append(parts, "*"+quantifier+"*")
	}
	if qualifier != "" {
		parts = append(parts, "**"+qualifier+"**")
	}
	if base != "" {
		parts = append(parts, base)
	}
	return strings.Join(parts, " ")
}

// Slug lowercases s and folds every run of characters other than letters
// and digits into a single underscore.
func Slug(s string) string {
	var sb strings.Builder
	pending := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pending && sb.Len() > 0 {
				sb.WriteByte('_')
			}
			pending = false
			sb.WriteRune(unicode.ToLower(r))
			continue
		}
		pending = true
	}
	return sb.String()
}
