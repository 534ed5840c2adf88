package analysis

import (
	"testing"

	"apisurface/internal/surface"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		entry string
		want  Kind
	}{
		{"Lib.Widget", KindType},
		{"Lib.Box<T>", KindType},
		{"Lib.Widget.Widget(string! name) -> void", KindConstructor},
		{"Lib.Box<T>.Box() -> void", KindConstructor},
		{"*REMOVED*Lib.Widget.Widget() -> void", KindConstructor},
		{"static Lib.Widget.Create() -> Lib.Widget!", KindMethod},
		{"~Lib.Widget.Format(int value) -> string", KindMethod},
		{"virtual Lib.Callback.Invoke() -> void", KindMethod},
		{"static Lib.Money.operator +(Lib.Money a, Lib.Money b) -> Lib.Money", KindOperator},
		{"static Lib.Money.implicit operator decimal(Lib.Money m) -> decimal", KindOperator},
		{"Lib.Widget.Name.get -> string!", KindAccessor},
		{"Lib.Widget.Name.set -> void", KindAccessor},
		{"Lib.Money.Amount.init -> void", KindAccessor},
		{"Lib.Widget.this[int index].get -> int", KindAccessor},
		{"Lib.Shape.Circle = 0 -> Lib.Shape", KindEnumMember},
		{"const Lib.Widget.MaxSize = 10 -> int", KindField},
		{"static readonly Lib.Widget.Default -> string!", KindField},
		{"Lib.Widget.Changed -> System.EventHandler?", KindField},
	}
	for _, tt := range tests {
		t.Run(tt.entry, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.entry))
		})
	}
}

func TestSummarize(t *testing.T) {
	current := surface.FromExtraction(
		[]string{
			"Lib.Widget",
			"Lib.Widget.Name.get -> string?",
			"Lib.Widget.Widget() -> void",
			"Lib.Widget.Resize(int size) -> void",
			"Lib.Gadget",
		},
		nil,
	)
	shipped := surface.ParseLines([]string{
		"#nullable enable",
		"Lib.Widget",
		"Lib.Widget.Name.get -> string!",
		"Lib.Widget.Widget() -> void",
		"Lib.Widget.Grow() -> void",
	}, false)

	report := Summarize(current.GenerateUnshippedDiff(shipped))

	assert.Equal(t, []string{"Lib.Gadget", "Lib.Widget.Resize(int size) -> void"}, report.Added)
	assert.Equal(t, []string{"Lib.Widget.Grow() -> void"}, report.Removed)
	assert.Equal(t, []Transition{{
		From: "Lib.Widget.Name.get -> string!",
		To:   "Lib.Widget.Name.get -> string?",
	}}, report.Nullable)
	assert.Equal(t, map[Kind]int{KindType: 1, KindMethod: 1}, report.Additions)
	assert.Equal(t, map[Kind]int{KindMethod: 1}, report.Removals)
	assert.True(t, report.Breaking())
	assert.False(t, report.Empty())
}

func TestSummarize_ObliviousToAnnotated(t *testing.T) {
	diff := surface.ParseLines([]string{
		"#nullable enable",
		"*REMOVED*~Lib.Widget.Format(int value) -> string",
		"Lib.Widget.Format(int value) -> string!",
	}, true)

	report := Summarize(diff)

	assert.Empty(t, report.Added)
	assert.Empty(t, report.Removed)
	assert.Len(t, report.Nullable, 1)
	assert.False(t, report.Breaking())
}

func TestSummarize_Empty(t *testing.T) {
	report := Summarize(surface.New())
	assert.True(t, report.Empty())
	assert.False(t, report.Breaking())
}
