// Package surface models the public API surface of a library as canonical
// text entries and computes deltas between a shipped baseline and the
// current surface.
//
// A Surface keeps two parallel entry sets: one rendered with nullability
// annotations and one rendered without them (the oblivious rendering). The
// active set, returned by PublicAPIs, is chosen by HasNullableEnable.
//
// Surfaces are populated once, by loading a PublicAPI file, by FromExtraction
// or as the output of GenerateUnshippedDiff or Ship, and are immutable
// afterwards. Accessors return copies so two Surfaces never share storage.
package surface

import "slices"

// Surface is one view of a library's public API.
type Surface struct {
	nullableEnable bool
	nullable       []string
	oblivious      []string
}

// New returns an empty surface with the nullable-enable header set.
func New() *Surface {
	return &Surface{nullableEnable: true}
}

// FromExtraction builds a surface from the two entry lists produced by a
// symbol extractor. The lists are copied, deduplicated and sorted; the
// result is always evaluated in nullable-aware mode.
func FromExtraction(nullable, oblivious []string) *Surface {
	s := New()
	s.nullable = normalizeSet(nullable)
	s.oblivious = normalizeSet(oblivious)
	return s
}

// Restore rebuilds a surface from previously persisted parts, such as a
// history record. Both lists are copied, deduplicated and sorted.
func Restore(nullableEnable bool, nullable, oblivious []string) *Surface {
	return &Surface{
		nullableEnable: nullableEnable,
		nullable:       normalizeSet(nullable),
		oblivious:      normalizeSet(oblivious),
	}
}

// withActive builds a surface whose active set is entries. The inactive set
// stays empty.
func withActive(nullableEnable bool, entries []string) *Surface {
	s := &Surface{nullableEnable: nullableEnable}
	if nullableEnable {
		s.nullable = entries
	} else {
		s.oblivious = entries
	}
	return s
}

func normalizeSet(entries []string) []string {
	out := dedupIdentity(slices.Clone(entries))
	SortEntries(out)
	return out
}

// HasNullableEnable reports whether the file form starts with the
// "#nullable enable" header, which also selects the active entry set.
func (s *Surface) HasNullableEnable() bool {
	return s.nullableEnable
}

// NullableEntries returns a copy of the nullable-annotated entries.
func (s *Surface) NullableEntries() []string {
	return slices.Clone(s.nullable)
}

// ObliviousEntries returns a copy of the oblivious entries.
func (s *Surface) ObliviousEntries() []string {
	return slices.Clone(s.oblivious)
}

// PublicAPIs returns a copy of the active entry set.
func (s *Surface) PublicAPIs() []string {
	return slices.Clone(s.active())
}

// Count is the number of entries in the active set.
func (s *Surface) Count() int {
	return len(s.active())
}

// Contains reports whether entry is in the active set (identity comparison).
func (s *Surface) Contains(entry string) bool {
	return slices.ContainsFunc(s.active(), func(e string) bool { return EqualIdentity(e, entry) })
}

func (s *Surface) active() []string {
	if s.nullableEnable {
		return s.nullable
	}
	return s.oblivious
}
