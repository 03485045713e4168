package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDocument_HasFrontmatter(t *testing.T) {
	tests := []struct {
		name string
		doc  *Document
		want bool
	}{
		{"nil map", &Document{}, false},
		{"empty map", &Document{Frontmatter: map[string]any{}}, false},
		{"with title", &Document{Frontmatter: map[string]any{"title": "Geography"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.doc.HasFrontmatter())
		})
	}
}

func TestDocument_FrontmatterString(t *testing.T) {
	doc := &Document{Frontmatter: map[string]any{"graph": "asia", "version": 3}}
	assert.Equal(t, "asia", doc.FrontmatterString("graph"))
	assert.Empty(t, doc.FrontmatterString("version"))
	assert.Empty(t, doc.FrontmatterString("missing"))
	assert.Empty(t, (&Document{}).FrontmatterString("graph"))
}

func TestDocument_HasErrors(t *testing.T) {
	doc := &Document{Diagnostics: []Diagnostic{
		{Line: 3, Severity: SeverityWarning, Kind: KindMalformedStatement},
	}}
	assert.False(t, doc.HasErrors())

	doc.Diagnostics = append(doc.Diagnostics, Diagnostic{Line: 9, Severity: SeverityError, Kind: KindUnterminatedBlock})
	assert.True(t, doc.HasErrors())
}

func TestDiagnostic_String(t *testing.T) {
	d := Diagnostic{Line: 12, Severity: SeverityWarning, Kind: KindMalformedStatement, Message: "unrecognized statement"}
	assert.Equal(t, "line 12: warning: unrecognized statement", d.String())
}
