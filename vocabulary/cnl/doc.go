// Package cnl provides vocabulary predicates for nodes composed from CNL
// documents.
//
// Fixed predicates describe a node (name, description, type, state,
// graph membership). Relations and attributes authored in CNL are open
// ended, so their predicates are derived from the statement name with
// RelationPredicate and AttributePredicate.
//
// Import this package to auto-register predicates:
//
//	import _ "github.com/c360studio/semcnl/vocabulary/cnl"
package cnl
