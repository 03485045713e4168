// Package source provides the value types produced by parsing a CNL document.
package source

import (
	"fmt"

	"github.com/c360studio/semcnl/identity"
)

// Severity ranks a diagnostic.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// DiagnosticKind classifies a diagnostic.
type DiagnosticKind string

const (
	// KindMalformedStatement marks a CNL line matching no statement form.
	KindMalformedStatement DiagnosticKind = "malformed_statement"

	// KindUnterminatedBlock marks a CNL fence left open at the next heading
	// or at the end of the document.
	KindUnterminatedBlock DiagnosticKind = "unterminated_block"

	// KindUnresolvableTarget marks a relation whose target has no base name.
	KindUnresolvableTarget DiagnosticKind = "unresolvable_target"

	// KindSchemaAdvisory marks a schema mismatch. It never rejects a statement.
	KindSchemaAdvisory DiagnosticKind = "schema_advisory"
)

// Diagnostic reports a problem found while parsing. Diagnostics never
// abort a parse.
type Diagnostic struct {
	// Line is the 1-based line in the original text.
	Line     int            `json:"line"`
	Severity Severity       `json:"severity"`
	Kind     DiagnosticKind `json:"kind"`
	Message  string         `json:"message"`
	// Text is the offending source line, when there is one.
	Text string `json:"text,omitempty"`
}

// String formats the diagnostic as "line N: severity: message".
func (d Diagnostic) String() string {
	return fmt.Sprintf("line %d: %s: %s", d.Line, d.Severity, d.Message)
}

// RelationEdge is a relation declared in a CNL block.
type RelationEdge struct {
	SourceID     string `json:"source_id"`
	TargetID     string `json:"target_id"`
	RelationName string `json:"relation"`
	Adverb       string `json:"adverb,omitempty"`
	Modality     string `json:"modality,omitempty"`
	Quantifier   string `json:"quantifier,omitempty"`
	Qualifier    string `json:"qualifier,omitempty"`
	// TargetName is the target's base name with markup stripped.
	TargetName string `json:"target_name"`
	// InverseDerivable is set when the schema names an inverse relation.
	InverseDerivable bool `json:"inverse_derivable,omitempty"`

	// Line is where the edge was declared. Not persisted.
	Line int `json:"-"`
}

// AttributeEdge is an attribute declared in a CNL block. Value is kept raw.
type AttributeEdge struct {
	SourceID      string `json:"source_id"`
	AttributeName string `json:"attribute"`
	Value         string `json:"value"`
	Unit          string `json:"unit,omitempty"`
	Adverb        string `json:"adverb,omitempty"`
	Modality      string `json:"modality,omitempty"`

	// Line is where the edge was declared. Not persisted.
	Line int `json:"-"`
}

// Line is one numbered line of source text.
type Line struct {
	Number int
	Text   string
}

// Section is a heading that owns a CNL block.
type Section struct {
	HeadingText string
	Level       int
	// Line is the heading's line number.
	Line     int
	Identity identity.NodeIdentity
	// NodeType is the heading's [Type] annotation.
	NodeType    string
	Description string

	// CNLBlockText is the block content without its fences.
	CNLBlockText string
	// BlockLines are the block lines with their line numbers. A section
	// with several blocks has them concatenated in order.
	BlockLines []Line
	// BlockLine is the line number of the first line inside the block.
	BlockLine int
	// Terminated is false when the block was never closed.
	Terminated bool

	Relations  []RelationEdge
	Attributes []AttributeEdge
	// Targets are the identities of every resolvable relation target, in
	// statement order.
	Targets []identity.NodeIdentity
}

// ID returns the node id of the section heading.
func (s *Section) ID() string {
	return s.Identity.ID
}

// Document is a parsed CNL document.
type Document struct {
	// ID is a stable identifier derived from filename and content.
	ID string `json:"id"`

	// Filename is the original filename, if known.
	Filename string `json:"filename,omitempty"`

	// Content is the raw document text.
	Content string `json:"content"`

	// Frontmatter holds YAML frontmatter when present.
	Frontmatter map[string]any `json:"frontmatter,omitempty"`

	// Body is the content after the frontmatter.
	Body string `json:"body"`

	// GraphDescription is the text before the first parseable section.
	GraphDescription string `json:"graph_description,omitempty"`

	Sections    []Section    `json:"-"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
}

// HasFrontmatter returns true if the document has YAML frontmatter.
func (d *Document) HasFrontmatter() bool {
	return len(d.Frontmatter) > 0
}

// FrontmatterString returns a string frontmatter field, or "" when it is
// missing or not a string.
func (d *Document) FrontmatterString(key string) string {
	if d.Frontmatter == nil {
		return ""
	}
	if s, ok := d.Frontmatter[key].(string); ok {
		return s
	}
	return ""
}

// HasErrors reports whether any diagnostic has error severity.
func (d *Document) HasErrors() bool {
	for _, diag := range d.Diagnostics {
		if diag.Severity == SeverityError {
			return true
		}
	}
	return false
}
