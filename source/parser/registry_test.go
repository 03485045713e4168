package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_GetByMimeType(t *testing.T) {
	r := NewRegistry()

	t.Run("direct match", func(t *testing.T) {
		p := r.GetByMimeType("text/x-cnl")
		require.NotNil(t, p)
		assert.Equal(t, "text/x-cnl", p.MimeType())
	})

	t.Run("CanParse fallback for markdown", func(t *testing.T) {
		assert.NotNil(t, r.GetByMimeType("text/markdown"))
	})

	t.Run("no parser for PDF", func(t *testing.T) {
		assert.Nil(t, r.GetByMimeType("application/pdf"))
	})
}

func TestRegistry_GetByExtension(t *testing.T) {
	r := NewRegistry()

	tests := []struct {
		filename string
		wantNil  bool
	}{
		{"graph.cnl", false},
		{"graph.md", false},
		{"graph.MARKDOWN", false},
		{"notes.txt", false},
		{"paper.pdf", true},
		{"noextension", true},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			assert.Equal(t, !tt.wantNil, r.Supports(tt.filename))
		})
	}
}

func TestRegistry_Parse(t *testing.T) {
	r := NewRegistry()

	t.Run("success", func(t *testing.T) {
		doc, err := r.Parse("asia.cnl", []byte("# India\n:::\n<has capital> Delhi\n:::\n"))
		require.NoError(t, err)
		assert.Equal(t, "asia.cnl", doc.Filename)
		assert.Len(t, doc.Sections, 1)
	})

	t.Run("error when no parser", func(t *testing.T) {
		_, err := r.Parse("paper.pdf", []byte("content"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no parser for file type")
	})
}
