package surface

import (
	"slices"
	"strings"
)

// IsEquivalentTo reports whether s and other hold the same entries,
// ignoring order, duplicates, blank entries and the oblivious marker. The
// removal marker is significant.
func (s *Surface) IsEquivalentTo(other *Surface) bool {
	return slices.Equal(equivalenceKeys(s.active()), equivalenceKeys(other.active()))
}

func equivalenceKeys(entries []string) []string {
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		k := strings.TrimSpace(e)
		if strings.HasPrefix(k, ObliviousPrefix) {
			k = strings.TrimSpace(k[len(ObliviousPrefix):])
		}
		if k == "" {
			continue
		}
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return slices.Compact(keys)
}
