// Package parser turns CNL markdown into sections and statements.
package parser

import (
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/c360studio/semcnl/source"
	"gopkg.in/yaml.v3"
	"lukechampine.com/blake3"
)

// CNLParser parses CNL markdown documents with optional YAML frontmatter.
type CNLParser struct{}

// NewCNLParser creates a new CNL parser.
func NewCNLParser() *CNLParser {
	return &CNLParser{}
}

// Parse parses a CNL document read from filename.
func (p *CNLParser) Parse(filename string, content []byte) (*source.Document, error) {
	doc := p.ParseText(string(content))
	doc.ID = generateID(filename, content)
	doc.Filename = filepath.Base(filename)
	return doc, nil
}

// ParseText parses CNL text: frontmatter, then sections, then the CNL
// block of every section. Problems are reported as diagnostics; parsing
// never fails.
func (p *CNLParser) ParseText(text string) *source.Document {
	doc := &source.Document{
		ID:      generateID("", []byte(text)),
		Content: text,
		Body:    text,
	}

	if strings.HasPrefix(text, "---\n") || strings.HasPrefix(text, "---\r\n") {
		frontmatter, body, err := extractFrontmatter(text)
		if err != nil {
			doc.Diagnostics = append(doc.Diagnostics, source.Diagnostic{
				Line:     1,
				Severity: source.SeverityWarning,
				Kind:     source.KindMalformedStatement,
				Message:  fmt.Sprintf("frontmatter ignored: %v", err),
			})
		} else {
			doc.Frontmatter = frontmatter
			doc.Body = body
		}
	}

	firstLine := strings.Count(text[:len(text)-len(doc.Body)], "\n") + 1
	seg := Segment(doc.Body, firstLine)
	doc.GraphDescription = seg.GraphDescription
	doc.Diagnostics = append(doc.Diagnostics, seg.Diagnostics...)

	for _, sec := range seg.Sections {
		if !sec.Identity.Valid() {
			doc.Diagnostics = append(doc.Diagnostics, source.Diagnostic{
				Line:     sec.Line,
				Severity: source.SeverityWarning,
				Kind:     source.KindUnresolvableTarget,
				Message:  fmt.Sprintf("heading %q has no name; its block is skipped", sec.HeadingText),
			})
			continue
		}
		block := ParseBlock(sec.ID(), sec.BlockLines)
		sec.Relations = block.Relations
		sec.Attributes = block.Attributes
		sec.Targets = block.Targets
		doc.Diagnostics = append(doc.Diagnostics, block.Diagnostics...)
		doc.Sections = append(doc.Sections, sec)
	}

	sortDiagnostics(doc.Diagnostics)
	return doc
}

// CanParse returns true if this parser can handle the given MIME type.
func (p *CNLParser) CanParse(mimeType string) bool {
	switch mimeType {
	case "text/x-cnl", "text/markdown", "text/x-markdown", "text/plain":
		return true
	default:
		return false
	}
}

// MimeType returns the primary MIME type for this parser.
func (p *CNLParser) MimeType() string {
	return "text/x-cnl"
}

// sortDiagnostics orders diagnostics by line, keeping the order of
// diagnostics reported for the same line.
func sortDiagnostics(diags []source.Diagnostic) {
	for i := 1; i < len(diags); i++ {
		for j := i; j > 0 && diags[j].Line < diags[j-1].Line; j-- {
			diags[j], diags[j-1] = diags[j-1], diags[j]
		}
	}
}

// extractFrontmatter parses YAML frontmatter from markdown content.
// Returns the parsed frontmatter map, the remaining body, and any error.
func extractFrontmatter(content string) (map[string]any, string, error) {
	const delimiter = "---"

	start := len(delimiter)
	if len(content) > start && content[start] == '\r' {
		start++
	}
	if len(content) > start && content[start] == '\n' {
		start++
	}

	closeIdx := strings.Index(content[start:], "\n"+delimiter)
	if closeIdx == -1 {
		return nil, content, fmt.Errorf("no closing frontmatter delimiter")
	}

	yamlContent := content[start : start+closeIdx]

	// Body starts on the line after the closing delimiter.
	bodyStart := start + closeIdx + 1 + len(delimiter)
	if bodyStart < len(content) && content[bodyStart] == '\r' {
		bodyStart++
	}
	if bodyStart < len(content) && content[bodyStart] == '\n' {
		bodyStart++
	}

	var frontmatter map[string]any
	if err := yaml.Unmarshal([]byte(yamlContent), &frontmatter); err != nil {
		return nil, content, fmt.Errorf("parse YAML frontmatter: %w", err)
	}

	return frontmatter, content[bodyStart:], nil
}

// generateID creates a stable document ID from filename and content hash.
func generateID(filename string, content []byte) string {
	base := filepath.Base(filename)
	name := sanitizeID(strings.TrimSuffix(base, filepath.Ext(base)))
	if filename == "" || name == "" {
		name = "inline"
	}

	sum := blake3.Sum256(content)
	return fmt.Sprintf("doc.%s.%s", name, hex.EncodeToString(sum[:])[:12])
}

// sanitizeID makes a string safe for use as an entity ID.
func sanitizeID(s string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r == '-' || r == '_' || r == ' ':
			sb.WriteRune('-')
		}
	}
	return sb.String()
}
