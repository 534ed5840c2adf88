package surface

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"A.B":           "A.B",
		"~A.B":          "A.B",
		"*REMOVED*A.B":  "A.B",
		"*REMOVED*~A.B": "A.B",
		"~*REMOVED*A.B": "*REMOVED*A.B",
		"":              "",
	}
	for in, want := range cases {
		assert.Equal(t, want, Normalize(in), "input %q", in)
	}
}

func TestCompareOrdering_IgnoresMarkers(t *testing.T) {
	assert.Equal(t, 0, CompareOrdering("B", "*REMOVED*B"))
	assert.Equal(t, 0, CompareOrdering("~B", "B"))
	assert.Negative(t, CompareOrdering("*REMOVED*A", "B"))
	assert.Positive(t, CompareOrdering("~C", "*REMOVED*B"))
}

func TestCompareOrdering_IsOrdinal(t *testing.T) {
	// Upper case sorts before lower case byte-wise.
	assert.Negative(t, CompareOrdering("Z", "a"))
}

func TestEqualIdentity_RespectsMarkers(t *testing.T) {
	assert.True(t, EqualIdentity("B", "B"))
	assert.False(t, EqualIdentity("B", "*REMOVED*B"))
	assert.False(t, EqualIdentity("B", "~B"))
}

func TestSortEntries_InterleavesRemoved(t *testing.T) {
	entries := []string{"C", "*REMOVED*B", "~D", "A"}
	SortEntries(entries)
	assert.Equal(t, []string{"A", "*REMOVED*B", "C", "~D"}, entries)
}

func TestMarkerPredicates(t *testing.T) {
	assert.True(t, IsRemoved("*REMOVED*X"))
	assert.False(t, IsRemoved("X"))
	assert.True(t, IsOblivious("~X"))
	assert.True(t, IsOblivious("*REMOVED*~X"))
	assert.False(t, IsOblivious("X"))
}
