package surface

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromExtraction(t *testing.T) {
	s := FromExtraction([]string{"B", "A", "B"}, []string{"~C.M() -> string", "A"})

	assert.True(t, s.HasNullableEnable())
	assert.Equal(t, []string{"A", "B"}, s.PublicAPIs())
	assert.Equal(t, []string{"A", "~C.M() -> string"}, s.ObliviousEntries())
	assert.Equal(t, 2, s.Count())
	assert.True(t, s.Contains("A"))
	assert.False(t, s.Contains("~A"))
}

func TestRestore(t *testing.T) {
	s := Restore(false, []string{"A!"}, []string{"B", "~A"})

	assert.False(t, s.HasNullableEnable())
	assert.Equal(t, []string{"~A", "B"}, s.PublicAPIs())
	assert.Equal(t, []string{"A!"}, s.NullableEntries())
}

func TestAccessorsReturnCopies(t *testing.T) {
	s := FromExtraction([]string{"A"}, []string{"A"})

	s.PublicAPIs()[0] = "changed"
	s.NullableEntries()[0] = "changed"
	s.ObliviousEntries()[0] = "changed"

	assert.Equal(t, []string{"A"}, s.PublicAPIs())
	assert.Equal(t, []string{"A"}, s.ObliviousEntries())
}
