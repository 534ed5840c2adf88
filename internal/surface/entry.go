package surface

import (
	"slices"
	"strings"
)

const (
	// NullableEnableHeader is the optional first line of a PublicAPI file.
	NullableEnableHeader = "#nullable enable"

	// RemovedPrefix marks an entry that was shipped but is no longer present.
	RemovedPrefix = "*REMOVED*"

	// ObliviousPrefix marks an entry whose signature lacks nullability annotations.
	ObliviousPrefix = "~"
)

// Normalize strips a leading removal marker and then a leading oblivious
// marker. The result is the ordering key of the entry.
func Normalize(entry string) string {
	entry = strings.TrimPrefix(entry, RemovedPrefix)
	return strings.TrimPrefix(entry, ObliviousPrefix)
}

// CompareOrdering orders entries by their normalized form using a byte-wise
// comparison. "*REMOVED*B" sorts next to "B" and "~B".
func CompareOrdering(a, b string) int {
	return strings.Compare(Normalize(a), Normalize(b))
}

// EqualIdentity reports whether two entries are the same value, markers
// included. Set membership always goes through this comparer.
func EqualIdentity(a, b string) bool {
	return a == b
}

// IsRemoved reports whether entry carries the removal marker.
func IsRemoved(entry string) bool {
	return strings.HasPrefix(entry, RemovedPrefix)
}

// IsOblivious reports whether entry carries the oblivious marker, looking
// past a removal marker if present.
func IsOblivious(entry string) bool {
	return strings.HasPrefix(strings.TrimPrefix(entry, RemovedPrefix), ObliviousPrefix)
}

// SortEntries sorts entries in place with the ordering comparer. The sort is
// stable so entries sharing a key keep their relative order.
func SortEntries(entries []string) {
	slices.SortStableFunc(entries, CompareOrdering)
}

// dedupIdentity returns entries with exact duplicates removed, keeping the
// first occurrence.
func dedupIdentity(entries []string) []string {
	seen := make(map[string]struct{}, len(entries))
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	return out
}

// exceptIdentity returns the entries of a that are not in b, compared with
// the identity comparer. Order of a is preserved.
func exceptIdentity(a, b []string) []string {
	drop := make(map[string]struct{}, len(b))
	for _, e := range b {
		drop[e] = struct{}{}
	}
	out := make([]string, 0, len(a))
	for _, e := range a {
		if _, ok := drop[e]; ok {
			continue
		}
		out = append(out, e)
	}
	return out
}
