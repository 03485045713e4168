package registry

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/c360studio/semcnl/source"
)

// Detail is the descriptive state of a node: Stub or Complete.
type Detail interface {
	isDetail()
}

// Stub is a node that has been referenced but never described.
type Stub struct{}

// Complete is a node with a description.
type Complete struct {
	Description string
}

func (Stub) isDetail()     {}
func (Complete) isDetail() {}

// Statements are the edges one graph declares under a node.
type Statements struct {
	// Section is true when the graph has a section for the node, as
	// opposed to only pointing at it.
	Section    bool                   `json:"section,omitempty"`
	Relations  []source.RelationEdge  `json:"relations,omitempty"`
	Attributes []source.AttributeEdge `json:"attributes,omitempty"`
}

// Equal reports whether s and o declare the same edges. Source line
// numbers are not stored and are ignored.
func (s Statements) Equal(o Statements) bool {
	if s.Section != o.Section || len(s.Relations) != len(o.Relations) || len(s.Attributes) != len(o.Attributes) {
		return false
	}
	for i, rel := range s.Relations {
		other := o.Relations[i]
		rel.Line, other.Line = 0, 0
		if rel != other {
			return false
		}
	}
	for i, attr := range s.Attributes {
		other := o.Attributes[i]
		attr.Line, other.Line = 0, 0
		if attr != other {
			return false
		}
	}
	return true
}

// Node is a registry record. One node exists per id per user and is shared
// by every graph that mentions it.
type Node struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Type        string `json:"type,omitempty"`
	Description string `json:"description,omitempty"`
	// Graphs is the sorted set of graph ids that mention the node.
	Graphs     []string              `json:"graphs"`
	Statements map[string]Statements `json:"statements,omitempty"`
	CreatedAt  time.Time             `json:"created_at"`
	UpdatedAt  time.Time             `json:"updated_at"`
}

// Detail returns Stub until the node has a description.
func (n *Node) Detail() Detail {
	if n.Description == "" {
		return Stub{}
	}
	return Complete{Description: n.Description}
}

// InGraph reports whether graphID is in the node's membership set.
func (n *Node) InGraph(graphID string) bool {
	i := sort.SearchStrings(n.Graphs, graphID)
	return i < len(n.Graphs) && n.Graphs[i] == graphID
}

// IsOrphan reports whether no graph mentions the node any more.
func (n *Node) IsOrphan() bool {
	return len(n.Graphs) == 0
}

// StatementsFor returns the edges graphID declares under the node.
func (n *Node) StatementsFor(graphID string) Statements {
	if n.Statements == nil {
		return Statements{}
	}
	return n.Statements[graphID]
}

// addGraph inserts graphID keeping Graphs sorted. It reports whether the
// set changed.
func (n *Node) addGraph(graphID string) bool {
	i := sort.SearchStrings(n.Graphs, graphID)
	if i < len(n.Graphs) && n.Graphs[i] == graphID {
		return false
	}
	n.Graphs = append(n.Graphs, "")
	copy(n.Graphs[i+1:], n.Graphs[i:])
	n.Graphs[i] = graphID
	return true
}

func (n *Node) removeGraph(graphID string) bool {
	i := sort.SearchStrings(n.Graphs, graphID)
	if i >= len(n.Graphs) || n.Graphs[i] != graphID {
		return false
	}
	n.Graphs = append(n.Graphs[:i], n.Graphs[i+1:]...)
	return true
}

func (n *Node) clone() *Node {
	c := *n
	c.Graphs = append([]string(nil), n.Graphs...)
	if n.Statements != nil {
		c.Statements = make(map[string]Statements, len(n.Statements))
		for g, st := range n.Statements {
			c.Statements[g] = Statements{
				Section:    st.Section,
				Relations:  append([]source.RelationEdge(nil), st.Relations...),
				Attributes: append([]source.AttributeEdge(nil), st.Attributes...),
			}
		}
	}
	return &c
}

// Snapshot is the whole registry of one user.
type Snapshot struct {
	Nodes map[string]*Node `json:"nodes"`
	// Revision is the store revision the snapshot was loaded at. Zero means
	// the user has no stored registry yet.
	Revision uint64 `json:"-"`
}

// NewSnapshot returns an empty snapshot.
func NewSnapshot() *Snapshot {
	return &Snapshot{Nodes: make(map[string]*Node)}
}

// Get returns the node with id.
func (s *Snapshot) Get(id string) (*Node, bool) {
	n, ok := s.Nodes[id]
	return n, ok
}

// IDs returns all node ids in sorted order.
func (s *Snapshot) IDs() []string {
	ids := make([]string, 0, len(s.Nodes))
	for id := range s.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clone returns a deep copy.
func (s *Snapshot) Clone() *Snapshot {
	c := &Snapshot{Nodes: make(map[string]*Node, len(s.Nodes)), Revision: s.Revision}
	for id, n := range s.Nodes {
		c.Nodes[id] = n.clone()
	}
	return c
}

// MarshalSnapshot encodes a snapshot for storage.
func MarshalSnapshot(s *Snapshot) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal registry snapshot: %w", err)
	}
	return data, nil
}

// UnmarshalSnapshot decodes a stored snapshot. The revision is left for
// the caller to set.
func UnmarshalSnapshot(data []byte) (*Snapshot, error) {
	s := NewSnapshot()
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("unmarshal registry snapshot: %w", err)
	}
	if s.Nodes == nil {
		s.Nodes = make(map[string]*Node)
	}
	return s, nil
}
