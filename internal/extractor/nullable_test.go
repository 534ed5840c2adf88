package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNullableContext(t *testing.T) {
	src := []byte(`namespace A
{
#nullable enable
    class B {}
#nullable disable warnings
    class C {}
#nullable disable
    class D {}
  #nullable restore annotations
    class E {}
}
`)

	t.Run("DefaultDisabled", func(t *testing.T) {
		ctx := scanNullableContext(src, false)
		assert.False(t, ctx.enabledAt(0))
		assert.True(t, ctx.enabledAt(3))
		assert.True(t, ctx.enabledAt(5), "warnings-only directives keep annotations")
		assert.False(t, ctx.enabledAt(7))
		assert.False(t, ctx.enabledAt(9), "restore returns to the project default")
	})

	t.Run("DefaultEnabled", func(t *testing.T) {
		ctx := scanNullableContext(src, true)
		assert.True(t, ctx.enabledAt(0))
		assert.False(t, ctx.enabledAt(7))
		assert.True(t, ctx.enabledAt(9))
	})

	t.Run("NoDirectives", func(t *testing.T) {
		ctx := scanNullableContext([]byte("class A {}\n"), true)
		assert.True(t, ctx.enabledAt(0))
		assert.Empty(t, ctx.changes)
	})
}
