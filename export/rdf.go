// Package export renders composed graphs as RDF.
package export

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/c360studio/semcnl/graph"
	"github.com/c360studio/semcnl/identity"
	"github.com/c360studio/semcnl/vocabulary/cnl"
	"github.com/c360studio/semstreams/vocabulary"
)

// Profile determines which type assertions are included in the export.
type Profile string

const (
	// ProfileMinimal types every node as cnl:Node only.
	ProfileMinimal Profile = "minimal"

	// ProfileTyped adds prov:Entity and a class for the node's heading type.
	ProfileTyped Profile = "typed"
)

// Format specifies the output serialization format.
type Format string

const (
	// FormatTurtle produces Turtle (.ttl) output.
	FormatTurtle Format = "turtle"

	// FormatNTriples produces N-Triples (.nt) output.
	FormatNTriples Format = "ntriples"

	// FormatJSONLD produces JSON-LD (.jsonld) output.
	FormatJSONLD Format = "jsonld"
)

const rdfType = "http://www.w3.org/1999/02/22-rdf-syntax-ns#type"

// IRI is an object that refers to a resource rather than a literal.
type IRI string

// Statement is one predicate and object of an exported subject.
type Statement struct {
	Predicate string
	Object    any
}

// Subject is an exported resource with its types and statements.
type Subject struct {
	IRI        string
	Types      []string
	Statements []Statement
}

// Exporter renders graph documents as RDF.
type Exporter struct {
	profile Profile
	// now stamps cnl.node.composed_at; nil omits it.
	now func() time.Time
}

// NewExporter creates an exporter with the given profile.
func NewExporter(profile Profile) *Exporter {
	return &Exporter{profile: profile}
}

// WithTimestamp stamps every node with the time now returns.
func (e *Exporter) WithTimestamp(now func() time.Time) *Exporter {
	e.now = now
	return e
}

// ParseFormat maps a format name or file extension to a Format.
func ParseFormat(s string) (Format, error) {
	s = strings.ToLower(strings.TrimPrefix(s, "."))
	for f, info := range FormatRegistry {
		if s == string(f) || "."+s == info.Extension {
			return f, nil
		}
	}
	if s == "json-ld" {
		return FormatJSONLD, nil
	}
	return "", fmt.Errorf("unsupported format: %s", s)
}

// Export serializes doc to the specified format.
func (e *Exporter) Export(doc *graph.Document, format Format) (string, error) {
	subjects := e.Subjects(doc)
	switch format {
	case FormatTurtle:
		return toTurtle(subjects), nil
	case FormatNTriples:
		return toNTriples(subjects), nil
	case FormatJSONLD:
		return toJSONLD(subjects), nil
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

// Subjects converts doc into exportable subjects: the graph first, then
// one subject per node in document order.
func (e *Exporter) Subjects(doc *graph.Document) []Subject {
	graphIRI := GraphIRI(doc.UserID, doc.GraphID)

	g := Subject{IRI: graphIRI, Types: []string{cnl.ClassGraph}}
	if doc.GraphDescription != "" {
		g.Statements = append(g.Statements, Statement{cnl.NodeDescription, doc.GraphDescription})
	}

	subjects := []Subject{g}
	for _, rec := range doc.Records {
		subjects = append(subjects, e.recordSubject(doc.UserID, graphIRI, rec))
	}
	return subjects
}

func (e *Exporter) recordSubject(userID, graphIRI string, rec graph.NodeRecord) Subject {
	s := Subject{
		IRI:   NodeIRI(userID, rec.ID),
		Types: e.typesFor(rec),
	}
	add := func(pred string, obj any) {
		s.Statements = append(s.Statements, Statement{Predicate: pred, Object: obj})
	}

	add(cnl.NodeName, rec.Name)
	add(cnl.NodeBaseName, identity.Compose(rec.Name).BaseName)
	add(cnl.NodeState, rec.State)
	add(cnl.NodeGraph, IRI(graphIRI))
	if rec.Type != "" {
		add(cnl.NodeType, rec.Type)
	}
	if rec.Description != "" {
		add(cnl.NodeDescription, rec.Description)
	}
	if e.now != nil {
		add(cnl.NodeComposedAt, e.now().UTC())
	}
	for _, rel := range rec.Relations {
		add(cnl.RelationPredicate(rel.RelationName), IRI(NodeIRI(userID, rel.TargetID)))
	}
	for _, attr := range rec.Attributes {
		add(cnl.AttributePredicate(attr.AttributeName), graph.AttributeObject(attr.Value, attr.Unit))
	}
	return s
}

func (e *Exporter) typesFor(rec graph.NodeRecord) []string {
	types := []string{cnl.ClassNode}
	if e.profile != ProfileTyped {
		return types
	}
	types = append(types, vocabulary.ProvEntity)
	if slug := identity.Slug(rec.Type); slug != "" {
		types = append(types, cnl.Namespace+"type/"+slug)
	}
	return types
}

// NodeIRI returns the IRI of a user's node.
// Example: ("ada", "capital_delhi") -> "https://semcnl.dev/entity/ada/node/capital_delhi"
func NodeIRI(userID, nodeID string) string {
	return fmt.Sprintf("%s%s/node/%s", cnl.EntityNamespace, userSegment(userID), url.PathEscape(nodeID))
}

// GraphIRI returns the IRI of a user's graph.
func GraphIRI(userID, graphID string) string {
	return fmt.Sprintf("%s%s/graph/%s", cnl.EntityNamespace, userSegment(userID), url.PathEscape(graphID))
}

func userSegment(userID string) string {
	if s := identity.Slug(userID); s != "" {
		return s
	}
	return "local"
}

// defaultPrefixes returns the standard namespace prefixes for RDF export.
func defaultPrefixes() map[string]string {
	return map[string]string{
		"rdf":    "http://www.w3.org/1999/02/22-rdf-syntax-ns#",
		"rdfs":   "http://www.w3.org/2000/01/rdf-schema#",
		"xsd":    "http://www.w3.org/2001/XMLSchema#",
		"dc":     "http://purl.org/dc/terms/",
		"skos":   "http://www.w3.org/2004/02/skos/core#",
		"prov":   "http://www.w3.org/ns/prov#",
		"cnl":    cnl.Namespace,
		"rel":    cnl.RelationNamespace,
		"attr":   cnl.AttributeNamespace,
		"entity": cnl.EntityNamespace,
	}
}

func toTurtle(subjects []Subject) string {
	w := NewTurtleWriter()
	w.WritePrefixes()
	for _, s := range subjects {
		w.WriteSubject(s)
	}
	return w.String()
}

func toNTriples(subjects []Subject) string {
	w := NewNTriplesWriter()
	for _, s := range subjects {
		w.WriteSubject(s)
	}
	return w.String()
}

func toJSONLD(subjects []Subject) string {
	w := NewJSONLDWriter()
	for _, s := range subjects {
		w.AddSubject(s)
	}
	return w.String()
}

// escapeString escapes special characters in strings for RDF serialization.
func escapeString(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, "\r", "\\r")
	s = strings.ReplaceAll(s, "\t", "\\t")
	return s
}
