package export

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/c360studio/semcnl/vocabulary/cnl"
)

// FormatInfo describes an export format.
type FormatInfo struct {
	Name      Format
	MIMEType  string
	Extension string
	// Description is shown in CLI help.
	Description string
}

// FormatRegistry lists the supported formats.
var FormatRegistry = map[Format]FormatInfo{
	FormatTurtle: {
		Name:        FormatTurtle,
		MIMEType:    "text/turtle",
		Extension:   ".ttl",
		Description: "Turtle, one block per node",
	},
	FormatNTriples: {
		Name:        FormatNTriples,
		MIMEType:    "application/n-triples",
		Extension:   ".nt",
		Description: "N-Triples, one triple per line",
	},
	FormatJSONLD: {
		Name:        FormatJSONLD,
		MIMEType:    "application/ld+json",
		Extension:   ".jsonld",
		Description: "JSON-LD with an @graph of nodes",
	},
}

// GetFormatInfo returns metadata for a format.
func GetFormatInfo(format Format) (FormatInfo, bool) {
	info, ok := FormatRegistry[format]
	return info, ok
}

const xsdNamespace = "http://www.w3.org/2001/XMLSchema#"

// localName matches the local parts that are written as prefixed names.
var localName = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_-]*$`)

// TurtleWriter writes subjects as Turtle blocks. IRIs under a declared
// prefix are compacted when the local part needs no escaping.
type TurtleWriter struct {
	prefixes map[string]string
	sb       strings.Builder
}

// NewTurtleWriter creates a Turtle writer with the default prefixes.
func NewTurtleWriter() *TurtleWriter {
	return &TurtleWriter{prefixes: defaultPrefixes()}
}

// SetPrefix declares a namespace prefix. Call it before WritePrefixes.
func (w *TurtleWriter) SetPrefix(prefix, iri string) {
	w.prefixes[prefix] = iri
}

// WritePrefixes writes the prefix declarations in prefix order.
func (w *TurtleWriter) WritePrefixes() {
	keys := make([]string, 0, len(w.prefixes))
	for k := range w.prefixes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, prefix := range keys {
		fmt.Fprintf(&w.sb, "@prefix %s: <%s> .\n", prefix, w.prefixes[prefix])
	}
	w.sb.WriteString("\n")
}

// WriteSubject writes s as one block: its types on the first line, then
// one predicate per line. A subject with nothing to say is skipped.
func (w *TurtleWriter) WriteSubject(s Subject) {
	var lines []string
	if len(s.Types) > 0 {
		types := make([]string, len(s.Types))
		for i, t := range s.Types {
			types[i] = w.term(t)
		}
		lines = append(lines, "a "+strings.Join(types, ", "))
	}
	for _, st := range s.Statements {
		lines = append(lines, w.term(cnl.PredicateIRI(st.Predicate))+" "+w.object(st.Object))
	}
	if len(lines) == 0 {
		return
	}

	w.sb.WriteString(w.term(s.IRI))
	for i, line := range lines {
		end := " ;"
		if i == len(lines)-1 {
			end = " ."
		}
		w.sb.WriteString("\n    " + line + end)
	}
	w.sb.WriteString("\n\n")
}

// term writes iri as a prefixed name when the longest matching namespace
// leaves a plain local part, and as <iri> otherwise.
func (w *TurtleWriter) term(iri string) string {
	best, bestNS := "", ""
	for prefix, ns := range w.prefixes {
		if len(ns) > len(bestNS) && strings.HasPrefix(iri, ns) && localName.MatchString(iri[len(ns):]) {
			best, bestNS = prefix, ns
		}
	}
	if bestNS == "" {
		return "<" + iri + ">"
	}
	return best + ":" + iri[len(bestNS):]
}

func (w *TurtleWriter) object(obj any) string {
	switch v := obj.(type) {
	case IRI:
		return w.term(string(v))
	case time.Time:
		return quote(v.Format(time.RFC3339)) + "^^" + w.term(xsdNamespace+"dateTime")
	default:
		return literal(obj, func(dt string) string { return w.term(xsdNamespace + dt) })
	}
}

// String returns the accumulated Turtle output.
func (w *TurtleWriter) String() string {
	return w.sb.String()
}

// NTriplesWriter writes subjects as N-Triples.
type NTriplesWriter struct {
	sb strings.Builder
}

// NewNTriplesWriter creates a new N-Triples writer.
func NewNTriplesWriter() *NTriplesWriter {
	return &NTriplesWriter{}
}

// WriteSubject writes one type triple per type, then one triple per
// statement.
func (w *NTriplesWriter) WriteSubject(s Subject) {
	for _, t := range s.Types {
		w.WriteTriple(s.IRI, rdfType, IRI(t))
	}
	for _, st := range s.Statements {
		w.WriteTriple(s.IRI, cnl.PredicateIRI(st.Predicate), st.Object)
	}
}

// WriteTriple writes a single triple.
func (w *NTriplesWriter) WriteTriple(subject, predicate string, object any) {
	fmt.Fprintf(&w.sb, "<%s> <%s> %s .\n", subject, predicate, w.object(object))
}

func (w *NTriplesWriter) object(obj any) string {
	full := func(dt string) string { return "<" + xsdNamespace + dt + ">" }
	switch v := obj.(type) {
	case IRI:
		return "<" + string(v) + ">"
	case time.Time:
		return quote(v.Format(time.RFC3339)) + "^^" + full("dateTime")
	default:
		return literal(obj, full)
	}
}

// String returns the accumulated N-Triples output.
func (w *NTriplesWriter) String() string {
	return w.sb.String()
}

// literal formats a non-IRI object. datatype renders an XSD datatype name
// in the writer's syntax.
func literal(obj any, datatype func(string) string) string {
	switch v := obj.(type) {
	case string:
		return quote(v)
	case int, int32, int64:
		return quote(fmt.Sprintf("%d", v)) + "^^" + datatype("integer")
	case float32, float64:
		return quote(fmt.Sprintf("%v", v)) + "^^" + datatype("decimal")
	case bool:
		return quote(fmt.Sprintf("%t", v)) + "^^" + datatype("boolean")
	default:
		return quote(fmt.Sprint(v))
	}
}

func quote(s string) string {
	return `"` + escapeString(s) + `"`
}

// JSONLDDocument is the JSON-LD form of an export.
type JSONLDDocument struct {
	Context map[string]any `json:"@context"`
	Graph   []JSONLDNode   `json:"@graph"`
}

// JSONLDNode is one subject of a JSON-LD export. Properties are keyed by
// full predicate IRI.
type JSONLDNode struct {
	ID         string         `json:"@id"`
	Type       []string       `json:"@type,omitempty"`
	Properties map[string]any `json:"-"`
}

// MarshalJSON flattens Properties next to @id and @type.
func (n JSONLDNode) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(n.Properties)+2)
	for k, v := range n.Properties {
		m[k] = v
	}
	m["@id"] = n.ID
	if len(n.Type) > 0 {
		m["@type"] = n.Type
	}
	return json.Marshal(m)
}

// UnmarshalJSON collects every key other than @id and @type into
// Properties.
func (n *JSONLDNode) UnmarshalJSON(data []byte) error {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	n.Properties = make(map[string]any)
	for k, raw := range m {
		var err error
		switch k {
		case "@id":
			err = json.Unmarshal(raw, &n.ID)
		case "@type":
			err = json.Unmarshal(raw, &n.Type)
		default:
			var v any
			err = json.Unmarshal(raw, &v)
			n.Properties[k] = v
		}
		if err != nil {
			return fmt.Errorf("decode %s: %w", k, err)
		}
	}
	return nil
}

// JSONLDWriter collects subjects into a JSON-LD document.
type JSONLDWriter struct {
	doc JSONLDDocument
}

// NewJSONLDWriter creates a JSON-LD writer whose context declares the
// default prefixes.
func NewJSONLDWriter() *JSONLDWriter {
	ctx := make(map[string]any)
	for k, v := range defaultPrefixes() {
		ctx[k] = v
	}
	return &JSONLDWriter{doc: JSONLDDocument{Context: ctx, Graph: []JSONLDNode{}}}
}

// AddSubject adds s to the graph. A predicate stated more than once
// becomes an array in statement order.
func (w *JSONLDWriter) AddSubject(s Subject) {
	props := make(map[string]any)
	for _, st := range s.Statements {
		key := cnl.PredicateIRI(st.Predicate)
		val := jsonldValue(st.Object)
		switch prev := props[key].(type) {
		case nil:
			props[key] = val
		case []any:
			props[key] = append(prev, val)
		default:
			props[key] = []any{prev, val}
		}
	}
	w.doc.Graph = append(w.doc.Graph, JSONLDNode{ID: s.IRI, Type: s.Types, Properties: props})
}

func jsonldValue(obj any) any {
	switch v := obj.(type) {
	case IRI:
		return map[string]any{"@id": string(v)}
	case time.Time:
		return map[string]any{"@value": v.Format(time.RFC3339), "@type": "xsd:dateTime"}
	default:
		return v
	}
}

// String returns the indented JSON-LD document. encoding/json sorts map
// keys, so the output is stable.
func (w *JSONLDWriter) String() string {
	data, err := json.MarshalIndent(w.doc, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

// ParseJSONLD decodes JSON-LD written by JSONLDWriter.
func ParseJSONLD(jsonStr string) (*JSONLDDocument, error) {
	var doc JSONLDDocument
	if err := json.Unmarshal([]byte(jsonStr), &doc); err != nil {
		return nil, fmt.Errorf("parse JSON-LD: %w", err)
	}
	return &doc, nil
}
