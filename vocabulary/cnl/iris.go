package cnl

// Namespace is the base IRI prefix for CNL vocabulary terms.
const Namespace = "https://semcnl.dev/ontology/cnl/"

// EntityNamespace is the base IRI for node instances.
const EntityNamespace = "https://semcnl.dev/entity/"

// Class IRIs.
const (
	// ClassNode is any node composed from a CNL document.
	// Extends: prov:Entity
	ClassNode = Namespace + "Node"

	// ClassGraph is a CNL document composed into a graph.
	ClassGraph = Namespace + "Graph"
)

// Property namespaces for statement-derived predicates.
const (
	RelationNamespace  = Namespace + "relation/"
	AttributeNamespace = Namespace + "attribute/"
)
