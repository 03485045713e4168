package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompose(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want NodeIdentity
	}{
		{
			name: "plain name",
			raw:  "India",
			want: NodeIdentity{BaseName: "India", ID: "india", DisplayName: "India"},
		},
		{
			name: "qualifier",
			raw:  "**capital** Delhi",
			want: NodeIdentity{BaseName: "Delhi", Qualifier: "capital", ID: "capital_delhi", DisplayName: "**capital** Delhi"},
		},
		{
			name: "quantifier and qualifier",
			raw:  "*some* **coastal** cities",
			want: NodeIdentity{
				BaseName:    "cities",
				Qualifier:   "coastal",
				Quantifier:  "some",
				ID:          "some_coastal_cities",
				DisplayName: "*some* **coastal** cities",
			},
		},
		{
			name: "heading type annotation",
			raw:  "India [Country]",
			want: NodeIdentity{BaseName: "India", ID: "india", DisplayName: "India [Country]", Type: "Country"},
		},
		{
			name: "punctuation folds to underscores",
			raw:  "St. John's  Wood",
			want: NodeIdentity{BaseName: "St. John's Wood", ID: "st_john_s_wood", DisplayName: "St. John's Wood"},
		},
		{
			name: "empty base",
			raw:  "*many*",
			want: NodeIdentity{Quantifier: "many", DisplayName: "*many*"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compose(tt.raw))
		})
	}
}

func TestCompose_Deterministic(t *testing.T) {
	a := Compose("  **Capital**   DELHI ")
	b := Compose("**capital** Delhi")
	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, "capital_delhi", a.ID)
	assert.True(t, a.Valid())
	assert.False(t, Compose("++often++").Valid())
}

func TestFromParts_MatchesCompose(t *testing.T) {
	c := Compose("*all* **major** rivers")
	f := FromParts(c.Quantifier, c.Qualifier, c.BaseName)
	assert.Equal(t, c.ID, f.ID)
	assert.Equal(t, c.ID, Compose(f.DisplayName).ID)
}

func TestSlug(t *testing.T) {
	tests := map[string]string{
		"New Delhi":       "new_delhi",
		"  --edge--  ":    "edge",
		"Zürich":          "zürich",
		"v2.0 release":    "v2_0_release",
		"":                "",
		"***":             "",
		"already_slugged": "already_slugged",
	}
	for in, want := range tests {
		assert.Equal(t, want, Slug(in), in)
	}
}
