// Package schema checks CNL statements against an optional relation and
// attribute schema.
//
// The schema is advisory. A mismatch produces a diagnostic and never
// rejects a statement.
package schema

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/c360studio/semcnl/markup"
	"github.com/c360studio/semcnl/source"
	"gopkg.in/yaml.v3"
)

// Kind is the statement form a tuple was produced from.
type Kind string

const (
	KindRelation  Kind = "relation"
	KindAttribute Kind = "attribute"
)

// Tuple is the schema-relevant shape of one statement.
type Tuple struct {
	Name       string `json:"name"`
	Kind       Kind   `json:"kind"`
	SourceType string `json:"source_type,omitempty"`
	// TargetType is empty for attributes and for untyped targets.
	TargetType string `json:"target_type,omitempty"`
	Line       int    `json:"line,omitempty"`
}

// RelationRule constrains one relation name.
type RelationRule struct {
	Domain []string `yaml:"domain"`
	Range  []string `yaml:"range"`
	// Inverse names the relation that holds in the other direction.
	Inverse string `yaml:"inverse"`
}

// AttributeRule constrains one attribute name.
type AttributeRule struct {
	Domain []string `yaml:"domain"`
}

// Schema is a set of relation and attribute rules. Names and types match
// case-insensitively.
type Schema struct {
	// Closed reports names missing from the schema.
	Closed     bool                     `yaml:"closed"`
	Relations  map[string]RelationRule  `yaml:"relations"`
	Attributes map[string]AttributeRule `yaml:"attributes"`
}

// Load reads a schema file.
func Load(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("schema %s: %w", path, err)
	}
	return s, nil
}

// Parse decodes a YAML schema.
func Parse(data []byte) (*Schema, error) {
	var raw Schema
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}

	s := &Schema{
		Closed:     raw.Closed,
		Relations:  make(map[string]RelationRule, len(raw.Relations)),
		Attributes: make(map[string]AttributeRule, len(raw.Attributes)),
	}
	for name, rule := range raw.Relations {
		key := normalize(name)
		if key == "" {
			return nil, fmt.Errorf("relation with empty name")
		}
		s.Relations[key] = RelationRule{
			Domain:  normalizeAll(rule.Domain),
			Range:   normalizeAll(rule.Range),
			Inverse: markup.Collapse(rule.Inverse),
		}
	}
	for name, rule := range raw.Attributes {
		key := normalize(name)
		if key == "" {
			return nil, fmt.Errorf("attribute with empty name")
		}
		s.Attributes[key] = AttributeRule{Domain: normalizeAll(rule.Domain)}
	}
	return s, nil
}

// Inverse returns the inverse name of a relation, if the schema has one.
func (s *Schema) Inverse(relation string) (string, bool) {
	if s == nil {
		return "", false
	}
	rule, ok := s.Relations[normalize(relation)]
	if !ok || rule.Inverse == "" {
		return "", false
	}
	return rule.Inverse, true
}

// Check returns the advisory messages for one tuple. Types that are not
// known are never reported.
func (s *Schema) Check(t Tuple) []string {
	if s == nil {
		return nil
	}
	var msgs []string
	switch t.Kind {
	case KindRelation:
		rule, ok := s.Relations[normalize(t.Name)]
		if !ok {
			if s.Closed {
				msgs = append(msgs, fmt.Sprintf("relation %q is not in the schema", t.Name))
			}
			return msgs
		}
		if !allowed(rule.Domain, t.SourceType) {
			msgs = append(msgs, fmt.Sprintf("relation %q expects a source of type %s, got %s",
				t.Name, strings.Join(rule.Domain, " or "), t.SourceType))
		}
		if !allowed(rule.Range, t.TargetType) {
			msgs = append(msgs, fmt.Sprintf("relation %q expects a target of type %s, got %s",
				t.Name, strings.Join(rule.Range, " or "), t.TargetType))
		}
	case KindAttribute:
		rule, ok := s.Attributes[normalize(t.Name)]
		if !ok {
			if s.Closed {
				msgs = append(msgs, fmt.Sprintf("attribute %q is not in the schema", t.Name))
			}
			return msgs
		}
		if !allowed(rule.Domain, t.SourceType) {
			msgs = append(msgs, fmt.Sprintf("attribute %q expects a node of type %s, got %s",
				t.Name, strings.Join(rule.Domain, " or "), t.SourceType))
		}
	}
	return msgs
}

// Advise checks every tuple and returns one info diagnostic per message.
func (s *Schema) Advise(tuples []Tuple) []source.Diagnostic {
	var diags []source.Diagnostic
	for _, t := range tuples {
		for _, msg := range s.Check(t) {
			diags = append(diags, source.Diagnostic{
				Line:     t.Line,
				Severity: source.SeverityInfo,
				Kind:     source.KindSchemaAdvisory,
				Message:  msg,
			})
		}
	}
	return diags
}

// RelationNames returns the relation names in the schema, sorted.
func (s *Schema) RelationNames() []string {
	names := make([]string, 0, len(s.Relations))
	for name := range s.Relations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func allowed(types []string, typ string) bool {
	if len(types) == 0 || typ == "" {
		return true
	}
	typ = normalize(typ)
	for _, t := range types {
		if t == typ {
			return true
		}
	}
	return false
}

func normalize(s string) string {
	return strings.ToLower(markup.Collapse(s))
}

func normalizeAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if n := normalize(s); n != "" {
			out = append(out, n)
		}
	}
	return out
}
