package schema

import (
	"testing"

	"github.com/c360studio/semcnl/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadGeo(t *testing.T) *Schema {
	t.Helper()
	s, err := Load("testdata/geo.yaml")
	require.NoError(t, err)
	return s
}

func TestLoad(t *testing.T) {
	s := loadGeo(t)
	assert.Equal(t, []string{"borders", "has capital", "located in"}, s.RelationNames())
	assert.Len(t, s.Attributes, 2)

	_, err := Load("testdata/missing.yaml")
	assert.Error(t, err)
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte("relations: [not, a, map]"))
	assert.Error(t, err)

	_, err = Parse([]byte("relations:\n  \"  \":\n    inverse: x\n"))
	assert.Error(t, err)
}

func TestInverse(t *testing.T) {
	s := loadGeo(t)

	inv, ok := s.Inverse("Has  Capital")
	assert.True(t, ok)
	assert.Equal(t, "is capital of", inv)

	_, ok = s.Inverse("located in")
	assert.False(t, ok)

	var none *Schema
	_, ok = none.Inverse("borders")
	assert.False(t, ok)
}

func TestCheck(t *testing.T) {
	s := loadGeo(t)

	tests := []struct {
		name  string
		tuple Tuple
		want  int
	}{
		{"matching relation", Tuple{Name: "has capital", Kind: KindRelation, SourceType: "country", TargetType: "City"}, 0},
		{"untyped source is not reported", Tuple{Name: "has capital", Kind: KindRelation, TargetType: "City"}, 0},
		{"wrong domain", Tuple{Name: "has capital", Kind: KindRelation, SourceType: "City", TargetType: "City"}, 1},
		{"wrong domain and range", Tuple{Name: "borders", Kind: KindRelation, SourceType: "City", TargetType: "River"}, 2},
		{"no range constraint", Tuple{Name: "located in", Kind: KindRelation, SourceType: "City", TargetType: "Anything"}, 0},
		{"unknown relation in open schema", Tuple{Name: "flows into", Kind: KindRelation}, 0},
		{"matching attribute", Tuple{Name: "Area", Kind: KindAttribute, SourceType: "Country"}, 0},
		{"wrong attribute domain", Tuple{Name: "area", Kind: KindAttribute, SourceType: "River"}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, s.Check(tt.tuple), tt.want)
		})
	}
}

func TestCheck_ClosedSchema(t *testing.T) {
	s, err := Parse([]byte("closed: true\nrelations:\n  borders: {}\n"))
	require.NoError(t, err)

	assert.Len(t, s.Check(Tuple{Name: "flows into", Kind: KindRelation}), 1)
	assert.Len(t, s.Check(Tuple{Name: "area", Kind: KindAttribute}), 1)
	assert.Empty(t, s.Check(Tuple{Name: "borders", Kind: KindRelation}))
}

func TestAdvise(t *testing.T) {
	s := loadGeo(t)
	diags := s.Advise([]Tuple{
		{Name: "has capital", Kind: KindRelation, SourceType: "Country", TargetType: "City", Line: 3},
		{Name: "borders", Kind: KindRelation, SourceType: "Country", TargetType: "City", Line: 4},
	})

	require.Len(t, diags, 1)
	assert.Equal(t, 4, diags[0].Line)
	assert.Equal(t, source.SeverityInfo, diags[0].Severity)
	assert.Equal(t, source.KindSchemaAdvisory, diags[0].Kind)
	assert.Contains(t, diags[0].Message, "borders")

	var none *Schema
	assert.Empty(t, none.Advise([]Tuple{{Name: "x", Kind: KindRelation}}))
}
