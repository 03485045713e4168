package cnl

import (
	"strings"

	"github.com/c360studio/semcnl/identity"
	"github.com/c360studio/semstreams/vocabulary"
)

// Node predicates.
const (
	// NodeName is the display name, markup preserved.
	NodeName = "cnl.node.name"

	// NodeBaseName is the name with markup stripped.
	NodeBaseName = "cnl.node.base_name"

	// NodeDescription is the free-text description of a complete node.
	NodeDescription = "cnl.node.description"

	// NodeType is the [Type] annotation of the node's heading.
	NodeType = "cnl.node.type"

	// NodeState is "stub" or "complete".
	NodeState = "cnl.node.state"

	// NodeGraph links a node to a graph that mentions it.
	NodeGraph = "cnl.node.graph"

	// NodeComposedAt is the RFC3339 time the node was last composed.
	NodeComposedAt = "cnl.node.composed_at"
)

// Prefixes of statement-derived predicates.
const (
	RelationPrefix  = "cnl.rel."
	AttributePrefix = "cnl.attr."
)

// Node state values.
const (
	StateStub     = "stub"
	StateComplete = "complete"
)

// RelationPredicate returns the predicate for a CNL relation name.
func RelationPredicate(name string) string {
	return RelationPrefix + identity.Slug(name)
}

// AttributePredicate returns the predicate for a CNL attribute name.
func AttributePredicate(name string) string {
	return AttributePrefix + identity.Slug(name)
}

// IsRelation reports whether the predicate's object is a node reference.
func IsRelation(predicate string) bool {
	if strings.HasPrefix(predicate, RelationPrefix) {
		return true
	}
	meta := vocabulary.GetPredicateMetadata(predicate)
	return meta != nil && meta.DataType == "entity_id"
}

// PredicateIRI returns the IRI for a predicate: the registered standard
// IRI when there is one, otherwise an IRI under the CNL namespace.
func PredicateIRI(predicate string) string {
	if meta := vocabulary.GetPredicateMetadata(predicate); meta != nil && meta.StandardIRI != "" {
		return meta.StandardIRI
	}
	switch {
	case strings.HasPrefix(predicate, RelationPrefix):
		return RelationNamespace + strings.TrimPrefix(predicate, RelationPrefix)
	case strings.HasPrefix(predicate, AttributePrefix):
		return AttributeNamespace + strings.TrimPrefix(predicate, AttributePrefix)
	default:
		return Namespace + predicate
	}
}

func init() {
	vocabulary.Register(NodeName,
		vocabulary.WithDescription("Display name of the node, markup preserved"),
		vocabulary.WithDataType("string"),
		vocabulary.WithIRI(vocabulary.SkosPrefLabel))

	vocabulary.Register(NodeBaseName,
		vocabulary.WithDescription("Base name of the node with quantifier and qualifier removed"),
		vocabulary.WithDataType("string"),
		vocabulary.WithIRI(vocabulary.DcTitle))

	vocabulary.Register(NodeDescription,
		vocabulary.WithDescription("Free-text description of the node"),
		vocabulary.WithDataType("string"),
		vocabulary.WithIRI(Namespace+"description"))

	vocabulary.Register(NodeType,
		vocabulary.WithDescription("Type annotation from the node heading"),
		vocabulary.WithDataType("string"),
		vocabulary.WithIRI(Namespace+"type"))

	vocabulary.Register(NodeState,
		vocabulary.WithDescription("Node detail state: stub or complete"),
		vocabulary.WithDataType("string"),
		vocabulary.WithIRI(Namespace+"state"))

	vocabulary.Register(NodeGraph,
		vocabulary.WithDescription("Graph that mentions the node"),
		vocabulary.WithDataType("string"),
		vocabulary.WithIRI(Namespace+"graph"))

	vocabulary.Register(NodeComposedAt,
		vocabulary.WithDescription("Time the node was last composed"),
		vocabulary.WithDataType("datetime"),
		vocabulary.WithIRI(vocabulary.ProvGeneratedAtTime))
}
