package extractor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func extractLibrary(t *testing.T, opts Options) *Extraction {
	t.Helper()
	src := NewCSharpSource(opts)
	ext, err := src.Extract(context.Background(),
		filepath.Join("testdata", "Library"),
		[]string{filepath.Join("testdata", "Shared")})
	require.NoError(t, err)
	require.Len(t, ext.Oblivious, len(ext.Nullable), "both renderings cover the same declarations")
	return ext
}

func TestCSharpSource_Extract(t *testing.T) {
	ext := extractLibrary(t, Options{})

	t.Run("Types", func(t *testing.T) {
		for _, want := range []string{
			"Sample.Widgets.Widget",
			"Sample.Widgets.Widget.Part",
			"Sample.Widgets.SealedWidget",
			"Sample.Widgets.IWidgetFactory",
			"Sample.Widgets.Shape",
			"Sample.Widgets.Point",
			"Sample.Widgets.WidgetCallback",
			"Sample.Widgets.WidgetExtensions",
			"Sample.Widgets.WidgetBase",
			"Sample.Widgets.Money",
			"Sample.Legacy.OldApi",
		} {
			assert.Contains(t, ext.Nullable, want)
		}
	})

	t.Run("Members", func(t *testing.T) {
		for _, want := range []string{
			"Sample.Widgets.Widget.Widget(string! name) -> void",
			"Sample.Widgets.Widget.Name.get -> string!",
			"Sample.Widgets.Widget.Description.get -> string?",
			"Sample.Widgets.Widget.Description.set -> void",
			"Sample.Widgets.Widget.Count.get -> int",
			"const Sample.Widgets.Widget.MaxSize = 10 -> int",
			"static readonly Sample.Widgets.Widget.DefaultName -> string!",
			"Sample.Widgets.Widget.Changed -> System.EventHandler?",
			"Sample.Widgets.Widget.Rename(string! name, bool notify = false) -> void",
			"Sample.Widgets.Widget.LoadAsync(System.Threading.CancellationToken cancellationToken = default(System.Threading.CancellationToken)) -> System.Threading.Tasks.Task<string!>!",
			"static Sample.Widgets.Widget.Create(params string![]! names) -> Sample.Widgets.Widget!",
			"Sample.Widgets.Widget.Convert<T>(T value) -> T",
			"virtual Sample.Widgets.Widget.OnChanged() -> void",
			"Sample.Widgets.Widget.Part.Part() -> void",
			"Sample.Widgets.Widget.Part.Size -> int",
			"Sample.Widgets.SealedWidget.SealedWidget() -> void",
			"override Sample.Widgets.SealedWidget.ToString() -> string!",
			"Sample.Widgets.IWidgetFactory.Build(string! name) -> Sample.Widgets.Widget!",
			"Sample.Widgets.IWidgetFactory.Label.get -> string?",
			"Sample.Widgets.Point.Point() -> void",
			"Sample.Widgets.Point.X -> int",
			"readonly Sample.Widgets.Point.Y -> int",
			"virtual Sample.Widgets.WidgetCallback.Invoke(Sample.Widgets.Widget! widget, int code) -> void",
			"static Sample.Widgets.WidgetExtensions.Describe(this Sample.Widgets.Widget! widget) -> string!",
			"Sample.Widgets.WidgetBase.WidgetBase() -> void",
			"abstract Sample.Widgets.WidgetBase.Compute(int input) -> int",
		} {
			assert.Contains(t, ext.Nullable, want)
		}
	})

	t.Run("EnumValues", func(t *testing.T) {
		for _, want := range []string{
			"Sample.Widgets.Shape.Circle = 0 -> Sample.Widgets.Shape",
			"Sample.Widgets.Shape.Square = 5 -> Sample.Widgets.Shape",
			"Sample.Widgets.Shape.Triangle = 6 -> Sample.Widgets.Shape",
			"Sample.Widgets.Shape.Flagged = 16 -> Sample.Widgets.Shape",
		} {
			assert.Contains(t, ext.Nullable, want)
		}
	})

	t.Run("Records", func(t *testing.T) {
		for _, want := range []string{
			"Sample.Widgets.Money.Money(decimal Amount, string! Currency) -> void",
			"Sample.Widgets.Money.Amount.get -> decimal",
			"Sample.Widgets.Money.Amount.init -> void",
			"Sample.Widgets.Money.Currency.get -> string!",
			"Sample.Widgets.Money.Currency.init -> void",
		} {
			assert.Contains(t, ext.Nullable, want)
		}
	})

	t.Run("SearchPathTypesResolveButAreNotEmitted", func(t *testing.T) {
		assert.Contains(t, ext.Nullable, "Sample.Widgets.Consumer.Current.get -> Sample.Shared.Handle")
		assert.Contains(t, ext.Nullable, "Sample.Widgets.Consumer.Registry.get -> Sample.Shared.Registry!")
		assert.NotContains(t, ext.Nullable, "Sample.Shared.Handle")
		assert.NotContains(t, ext.Nullable, "Sample.Shared.Registry")
	})

	t.Run("HiddenMembers", func(t *testing.T) {
		for _, entry := range ext.Nullable {
			assert.NotContains(t, entry, "Hidden")
			assert.NotContains(t, entry, "Secret")
			assert.NotContains(t, entry, "PrivatePart")
			assert.NotContains(t, entry, "InternalThing")
			assert.NotContains(t, entry, "NotVisible")
			assert.NotContains(t, entry, "Count.set")
		}
		assert.NotContains(t, ext.Nullable, "Sample.Widgets.WidgetExtensions.WidgetExtensions() -> void")
	})

	t.Run("DisabledContextIsOblivious", func(t *testing.T) {
		for _, want := range []string{
			"Sample.Legacy.OldApi.OldApi() -> void",
			"~Sample.Legacy.OldApi.Name.get -> string",
			"~Sample.Legacy.OldApi.Name.set -> void",
			"Sample.Legacy.OldApi.Id.get -> int",
			"Sample.Legacy.OldApi.Id.set -> void",
			"~Sample.Legacy.OldApi.Format(int value) -> string",
		} {
			assert.Contains(t, ext.Nullable, want)
		}
	})

	t.Run("ObliviousRendering", func(t *testing.T) {
		for _, want := range []string{
			"Sample.Widgets.Widget",
			"~Sample.Widgets.Widget.Name.get -> string",
			"Sample.Widgets.Widget.Count.get -> int",
			"~Sample.Widgets.Widget.Description.get -> string",
			"Sample.Widgets.Widget.Changed -> System.EventHandler",
			"~static Sample.Widgets.Widget.Create(params string[] names) -> Sample.Widgets.Widget",
			"~Sample.Legacy.OldApi.Name.get -> string",
		} {
			assert.Contains(t, ext.Oblivious, want)
		}
		for _, entry := range ext.Oblivious {
			assert.NotContains(t, entry, "!")
		}
	})
}

func TestCSharpSource_NullableOverride(t *testing.T) {
	disabled := false
	ext := extractLibrary(t, Options{Nullable: &disabled})

	assert.Contains(t, ext.Nullable, "~Sample.Widgets.Widget.Name.get -> string")
	assert.Contains(t, ext.Nullable, "Sample.Widgets.Widget.Count.get -> int")
	assert.NotContains(t, ext.Nullable, "Sample.Widgets.Widget.Name.get -> string!")
}

func TestCSharpSource_SingleFile(t *testing.T) {
	src := NewCSharpSource(Options{})
	ext, err := src.Extract(context.Background(), filepath.Join("testdata", "Library", "Legacy.cs"), nil)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{
		"Sample.Legacy.OldApi",
		"Sample.Legacy.OldApi.OldApi() -> void",
		"~Sample.Legacy.OldApi.Name.get -> string",
		"~Sample.Legacy.OldApi.Name.set -> void",
		"Sample.Legacy.OldApi.Id.get -> int",
		"Sample.Legacy.OldApi.Id.set -> void",
		"~Sample.Legacy.OldApi.Format(int value) -> string",
	}, ext.Nullable)
}

func TestCSharpSource_Sources(t *testing.T) {
	library := filepath.Join("testdata", "Library")
	shared := filepath.Join("testdata", "Shared")

	t.Run("DeclarationsAreEmitted", func(t *testing.T) {
		src := NewCSharpSource(Options{Sources: []string{shared}})
		ext, err := src.Extract(context.Background(), library, nil)
		require.NoError(t, err)

		for _, want := range []string{
			"Sample.Shared.Handle",
			"Sample.Shared.Handle.Value -> int",
			"Sample.Shared.Registry",
			"Sample.Shared.Registry.Registry() -> void",
			"Sample.Widgets.Consumer.Registry.get -> Sample.Shared.Registry!",
			"Sample.Widgets.Widget",
		} {
			assert.Contains(t, ext.Nullable, want)
		}
	})

	t.Run("OverlappingRootsParseOnce", func(t *testing.T) {
		base := extractLibrary(t, Options{})
		ext := extractLibrary(t, Options{Sources: []string{library, shared}})

		assert.Len(t, ext.Nullable, len(base.Nullable)+5)
		seen := map[string]bool{}
		for _, entry := range ext.Nullable {
			assert.False(t, seen[entry], "duplicate entry %s", entry)
			seen[entry] = true
		}
	})
}

func TestCSharpSource_ParamsArrays(t *testing.T) {
	dir := t.TempDir()
	src := `#nullable enable
namespace N
{
    public class W
    {
        public static void Create() {}
        public static void Create(params string[] names) {}
        public void Log(int level, params object[] args) {}
        public W([Obsolete] params int[] values) {}
    }
}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "W.cs"), []byte(src), 0o644))

	ext, err := NewCSharpSource(Options{}).Extract(context.Background(), dir, nil)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{
		"N.W",
		"N.W.W(params int[]! values) -> void",
		"static N.W.Create() -> void",
		"static N.W.Create(params string![]! names) -> void",
		"N.W.Log(int level, params object![]! args) -> void",
	}, ext.Nullable)
	assert.ElementsMatch(t, []string{
		"N.W",
		"~N.W.W(params int[] values) -> void",
		"static N.W.Create() -> void",
		"~static N.W.Create(params string[] names) -> void",
		"~N.W.Log(int level, params object[] args) -> void",
	}, ext.Oblivious)
}

func TestCSharpSource_Errors(t *testing.T) {
	src := NewCSharpSource(Options{})

	t.Run("MissingTarget", func(t *testing.T) {
		_, err := src.Extract(context.Background(), filepath.Join(t.TempDir(), "missing"), nil)
		assert.Error(t, err)
	})

	t.Run("Cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := src.Extract(ctx, filepath.Join("testdata", "Library"), nil)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestNew(t *testing.T) {
	for kind, want := range map[string]any{
		"csharp": &CSharpSource{},
		"":       &CSharpSource{},
		"dump":   &Dump{},
	} {
		src, err := New(kind, Options{})
		require.NoError(t, err)
		assert.IsType(t, want, src)
	}

	_, err := New("cecil", Options{})
	assert.Error(t, err)
}
