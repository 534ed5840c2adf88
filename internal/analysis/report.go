package analysis

import (
	"slices"
	"strings"

	"apisurface/internal/surface"
)

// Kind classifies an API entry by the declaration it describes.
type Kind string

const (
	KindType        Kind = "type"
	KindConstructor Kind = "constructor"
	KindMethod      Kind = "method"
	KindOperator    Kind = "operator"
	KindAccessor    Kind = "accessor"
	KindField       Kind = "field"
	KindEnumMember  Kind = "enum member"
)

var memberModifiers = []string{"static", "virtual", "abstract", "override", "sealed", "const", "readonly"}

// Transition pairs a removed entry with the added entry that differs from it
// only in nullability annotations.
type Transition struct {
	From string
	To   string
}

// ChangeReport summarizes an unshipped delta.
type ChangeReport struct {
	Added     []string
	Removed   []string
	Nullable  []Transition
	Additions map[Kind]int
	Removals  map[Kind]int
}

// Breaking reports whether anything shipped was removed outright.
func (r *ChangeReport) Breaking() bool {
	return len(r.Removed) > 0
}

// Empty reports whether the delta holds no changes.
func (r *ChangeReport) Empty() bool {
	return len(r.Added) == 0 && len(r.Removed) == 0 && len(r.Nullable) == 0
}

// Summarize builds a report from a diff produced by GenerateUnshippedDiff.
// A removal and an addition whose signatures match once annotations are
// stripped are reported as a nullability transition instead.
func Summarize(diff *surface.Surface) *ChangeReport {
	report := &ChangeReport{
		Additions: make(map[Kind]int),
		Removals:  make(map[Kind]int),
	}

	var added, removed []string
	for _, e := range diff.PublicAPIs() {
		if surface.IsRemoved(e) {
			removed = append(removed, strings.TrimPrefix(e, surface.RemovedPrefix))
			continue
		}
		added = append(added, e)
	}

	pending := make(map[string][]string, len(added))
	for _, e := range added {
		k := annotationKey(e)
		pending[k] = append(pending[k], e)
	}

	for _, e := range removed {
		k := annotationKey(e)
		if to := pending[k]; len(to) > 0 {
			report.Nullable = append(report.Nullable, Transition{From: e, To: to[0]})
			pending[k] = to[1:]
			continue
		}
		report.Removed = append(report.Removed, e)
		report.Removals[Classify(e)]++
	}

	for _, e := range added {
		k := annotationKey(e)
		if !slices.Contains(pending[k], e) {
			continue
		}
		report.Added = append(report.Added, e)
		report.Additions[Classify(e)]++
	}

	return report
}

// annotationKey drops the oblivious marker and reference-type annotations.
// Value-type "?" is dropped too; the key is only used for pairing.
func annotationKey(entry string) string {
	entry = strings.TrimPrefix(entry, surface.ObliviousPrefix)
	return strings.Map(func(r rune) rune {
		if r == '!' || r == '?' {
			return -1
		}
		return r
	}, entry)
}

// Classify returns the declaration kind of entry.
func Classify(entry string) Kind {
	entry = surface.Normalize(entry)
	decl, ret, hasReturn := strings.Cut(entry, " -> ")
	if !hasReturn {
		return KindType
	}

	mods, decl := splitModifiers(decl)

	if name, _, ok := strings.Cut(decl, "("); ok {
		switch {
		case strings.Contains(name, "operator "):
			return KindOperator
		case isConstructor(name):
			return KindConstructor
		default:
			return KindMethod
		}
	}

	name, _, hasValue := strings.Cut(decl, " = ")
	switch {
	case strings.HasSuffix(name, ".get"), strings.HasSuffix(name, ".set"), strings.HasSuffix(name, ".init"):
		return KindAccessor
	case hasValue && len(mods) == 0 && container(name) == ret:
		return KindEnumMember
	default:
		return KindField
	}
}

func splitModifiers(decl string) ([]string, string) {
	var mods []string
	for {
		word, rest, ok := strings.Cut(decl, " ")
		if !ok || !slices.Contains(memberModifiers, word) {
			return mods, decl
		}
		mods = append(mods, word)
		decl = rest
	}
}

// isConstructor reports whether the last two name segments match, with
// generic arguments removed from the type segment.
func isConstructor(name string) bool {
	name = stripGenerics(name)
	i := strings.LastIndex(name, ".")
	if i < 0 {
		return false
	}
	typ := name[:i]
	if j := strings.LastIndex(typ, "."); j >= 0 {
		typ = typ[j+1:]
	}
	return typ == name[i+1:]
}

func container(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[:i]
	}
	return ""
}

func stripGenerics(s string) string {
	var b strings.Builder
	depth := 0
	for _, r := range s {
		switch {
		case r == '<':
			depth++
		case r == '>':
			depth--
		case depth == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}
