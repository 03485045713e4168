package pipeline

import (
	"github.com/c360studio/semcnl/graph"
	"github.com/c360studio/semcnl/registry"
	"github.com/c360studio/semcnl/schema"
	"github.com/c360studio/semcnl/source"
)

// applyDocument replaces graphID's content in the registry with doc and
// composes the result. Nodes the document no longer mentions lose their
// membership and become orphans unless another graph holds them. Nodes
// whose edges and membership are unchanged are left untouched.
func applyDocument(txn *registry.Txn, graphID string, doc *source.Document) (*graph.Document, error) {
	members := make(map[string]bool)
	sections := make(map[string]bool)
	for i := range doc.Sections {
		sec := &doc.Sections[i]
		sections[sec.ID()] = true
		members[sec.ID()] = true
		for _, target := range sec.Targets {
			members[target.ID] = true
		}
	}
	for _, id := range txn.GraphNodes(graphID) {
		var err error
		switch {
		case !members[id]:
			err = txn.RemoveGraphMembership(id, graphID)
		case !sections[id]:
			err = txn.ClearStatements(id, graphID)
		}
		if err != nil {
			return nil, err
		}
	}

	var order []string
	stmts := make(map[string]registry.Statements)
	for i := range doc.Sections {
		sec := &doc.Sections[i]
		id := sec.ID()

		txn.DeclareSection(sec.Identity, sec.NodeType, graphID)
		if sec.Description != "" {
			if err := txn.SetDescription(id, sec.Description); err != nil {
				return nil, err
			}
		}
		for _, target := range sec.Targets {
			txn.GetOrCreate(target.ID, target.DisplayName, graphID)
		}

		st, seen := stmts[id]
		if !seen {
			order = append(order, id)
		}
		st.Section = true
		st.Relations = append(st.Relations, sec.Relations...)
		st.Attributes = append(st.Attributes, sec.Attributes...)
		stmts[id] = st
	}

	for _, id := range order {
		if err := txn.SetStatements(id, graphID, stmts[id]); err != nil {
			return nil, err
		}
	}

	sectionIDs := make([]string, 0, len(doc.Sections))
	for i := range doc.Sections {
		sectionIDs = append(sectionIDs, doc.Sections[i].ID())
	}
	return graph.Compose(graphID, doc.GraphDescription, sectionIDs, txn.Node)
}

// schemaTuples describes every statement of doc for schema checking.
// Target types come from the registry, so a target typed by a heading in
// another graph is still known.
func schemaTuples(txn *registry.Txn, doc *source.Document) []schema.Tuple {
	var tuples []schema.Tuple
	for i := range doc.Sections {
		sec := &doc.Sections[i]
		sourceType := sec.NodeType
		if sourceType == "" {
			if n, ok := txn.Node(sec.ID()); ok {
				sourceType = n.Type
			}
		}
		for _, rel := range sec.Relations {
			t := schema.Tuple{
				Name:       rel.RelationName,
				Kind:       schema.KindRelation,
				SourceType: sourceType,
				Line:       rel.Line,
			}
			if n, ok := txn.Node(rel.TargetID); ok {
				t.TargetType = n.Type
			}
			tuples = append(tuples, t)
		}
		for _, attr := range sec.Attributes {
			tuples = append(tuples, schema.Tuple{
				Name:       attr.AttributeName,
				Kind:       schema.KindAttribute,
				SourceType: sourceType,
				Line:       attr.Line,
			})
		}
	}
	return tuples
}
