package graph

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/c360studio/semcnl/identity"
	"github.com/c360studio/semcnl/source"
	"lukechampine.com/blake3"
)

// MarshalCanonical encodes doc in its canonical form: indented JSON with
// nodes and edges in document order. Equal documents encode to equal bytes.
func MarshalCanonical(doc *Document) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal graph %s: %w", doc.GraphID, err)
	}
	return data, nil
}

// UnmarshalCanonical decodes a document written by MarshalCanonical.
func UnmarshalCanonical(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal graph: %w", err)
	}
	return &doc, nil
}

// Hash returns the hex BLAKE3 digest of the canonical form.
func Hash(doc *Document) (string, error) {
	data, err := MarshalCanonical(doc)
	if err != nil {
		return "", err
	}
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// RenderCNL writes doc back as CNL markdown. Parsing the output yields the
// same node set and the same edges per node.
//
// A node gets a section when the graph declared one or when it has a
// description. Descriptions are written after the block so that any
// headings they contain stay decorative.
func RenderCNL(doc *Document) string {
	var sb strings.Builder
	if desc := strings.TrimSpace(doc.GraphDescription); desc != "" {
		sb.WriteString(desc)
		sb.WriteString("\n")
	}

	for _, rec := range doc.Records {
		if !rec.Section && rec.Description == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("# ")
		sb.WriteString(headingFor(rec))
		sb.WriteString("\n\n:::\n")
		for _, rel := range rec.Relations {
			sb.WriteString(relationLine(rel))
			sb.WriteString("\n")
		}
		for _, attr := range rec.Attributes {
			sb.WriteString(attributeLine(attr))
			sb.WriteString("\n")
		}
		sb.WriteString(":::\n")
		if desc := strings.TrimSpace(rec.Description); desc != "" {
			sb.WriteString("\n")
			sb.WriteString(desc)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func headingFor(rec NodeRecord) string {
	heading := rec.Name
	id := identity.Compose(heading)
	if id.ID != rec.ID {
		heading = rec.ID
		id = identity.Compose(heading)
	}
	if rec.Type != "" && id.Type == "" {
		heading += " [" + rec.Type + "]"
	}
	return heading
}

func relationLine(rel source.RelationEdge) string {
	var sb strings.Builder
	if rel.Adverb != "" {
		sb.WriteString("++" + rel.Adverb + "++ ")
	}
	sb.WriteString("<" + rel.RelationName + "> ")
	sb.WriteString(identity.Display(rel.Quantifier, rel.Qualifier, rel.TargetName))
	if rel.Modality != "" {
		sb.WriteString(" [" + rel.Modality + "]")
	}
	return sb.String()
}

func attributeLine(attr source.AttributeEdge) string {
	var sb strings.Builder
	if attr.Adverb != "" {
		sb.WriteString("++" + attr.Adverb + "++ ")
	}
	sb.WriteString("has " + attr.AttributeName + ": " + attr.Value)
	if attr.Unit != "" {
		sb.WriteString(" *" + attr.Unit + "*")
	}
	if attr.Modality != "" {
		sb.WriteString(" [" + attr.Modality + "]")
	}
	return sb.String()
}

// Equivalent reports whether a and b have the same node set and, for every
// node, the same multiset of relation and attribute edges.
func Equivalent(a, b *Document) bool {
	ea, eb := edgeSets(a), edgeSets(b)
	if len(ea) != len(eb) {
		return false
	}
	for id, edges := range ea {
		other, ok := eb[id]
		if !ok || len(edges) != len(other) {
			return false
		}
		for i := range edges {
			if edges[i] != other[i] {
				return false
			}
		}
	}
	return true
}

// edgeSets maps every node id to its sorted edge keys.
func edgeSets(doc *Document) map[string][]string {
	sets := make(map[string][]string, len(doc.Nodes))
	for _, id := range doc.Nodes {
		sets[id] = nil
	}
	for _, rec := range doc.Records {
		keys := sets[rec.ID]
		for _, rel := range rec.Relations {
			keys = append(keys, strings.Join([]string{
				"rel", rel.RelationName, rel.TargetID, rel.Adverb, rel.Modality,
			}, "\x00"))
		}
		for _, attr := range rec.Attributes {
			keys = append(keys, strings.Join([]string{
				"attr", attr.AttributeName, attr.Value, attr.Unit, attr.Adverb, attr.Modality,
			}, "\x00"))
		}
		sort.Strings(keys)
		sets[rec.ID] = keys
	}
	return sets
}
