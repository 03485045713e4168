// Package graph composes parsed CNL into graph documents and serializes
// them.
//
// A Document is rebuilt from the node registry on every parse. It is never
// patched in place, so description edits made outside the document show up
// the next time it is composed.
package graph

import (
	"errors"
	"fmt"

	"github.com/c360studio/semcnl/registry"
	"github.com/c360studio/semcnl/source"
	"github.com/c360studio/semcnl/vocabulary/cnl"
)

// ErrUnknownNode is returned when a composed id is missing from the registry.
var ErrUnknownNode = errors.New("node missing from registry")

// Document is one composed graph.
type Document struct {
	GraphID          string `json:"graph_id"`
	UserID           string `json:"user_id,omitempty"`
	GraphDescription string `json:"graph_description,omitempty"`
	// Nodes lists every node of the graph in first-seen order.
	Nodes   []string     `json:"nodes"`
	Records []NodeRecord `json:"records"`
}

// NodeRecord is a registry node as seen from one graph.
type NodeRecord struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Type        string `json:"type,omitempty"`
	Description string `json:"description,omitempty"`
	// State is "stub" or "complete".
	State string `json:"state"`
	// Section is true when the graph has a section for the node.
	Section    bool                   `json:"section,omitempty"`
	Relations  []source.RelationEdge  `json:"relations,omitempty"`
	Attributes []source.AttributeEdge `json:"attributes,omitempty"`
}

// Record returns the record of id.
func (d *Document) Record(id string) (NodeRecord, bool) {
	for _, r := range d.Records {
		if r.ID == id {
			return r, true
		}
	}
	return NodeRecord{}, false
}

// Lookup resolves a node id against a registry snapshot.
type Lookup func(id string) (*registry.Node, bool)

// Compose builds the document of graphID. sectionIDs are the section node
// ids in document order; each section's relation targets follow it. Every
// record is read through lookup, so records reflect the registry rather
// than the parse that triggered the composition.
func Compose(graphID, description string, sectionIDs []string, lookup Lookup) (*Document, error) {
	doc := &Document{
		GraphID:          graphID,
		GraphDescription: description,
		Nodes:            []string{},
		Records:          []NodeRecord{},
	}

	nodes := make(map[string]*registry.Node)
	add := func(id string) (*registry.Node, error) {
		if n, ok := nodes[id]; ok {
			return n, nil
		}
		n, ok := lookup(id)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownNode, id)
		}
		nodes[id] = n
		doc.Nodes = append(doc.Nodes, id)
		doc.Records = append(doc.Records, recordOf(n, graphID))
		return n, nil
	}

	expanded := make(map[string]bool)
	for _, id := range sectionIDs {
		n, err := add(id)
		if err != nil {
			return nil, err
		}
		if expanded[id] {
			continue
		}
		expanded[id] = true
		for _, rel := range n.StatementsFor(graphID).Relations {
			if _, err := add(rel.TargetID); err != nil {
				return nil, err
			}
		}
	}
	return doc, nil
}

func recordOf(n *registry.Node, graphID string) NodeRecord {
	st := n.StatementsFor(graphID)
	rec := NodeRecord{
		ID:          n.ID,
		Name:        n.Name,
		Type:        n.Type,
		Description: n.Description,
		State:       cnl.StateStub,
		Section:     st.Section,
		Relations:   append([]source.RelationEdge(nil), st.Relations...),
		Attributes:  append([]source.AttributeEdge(nil), st.Attributes...),
	}
	if _, ok := n.Detail().(registry.Complete); ok {
		rec.State = cnl.StateComplete
	}
	return rec
}
