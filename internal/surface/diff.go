package surface

// GenerateUnshippedDiff computes the delta from shipped to s.
//
// Entries present now but not shipped are emitted as-is. Entries shipped but
// no longer present are emitted with the removal marker, except those that
// still appear in s's oblivious rendering: such a removal only reflects the
// member gaining nullability annotations. The result inherits shipped's
// header so an existing unshipped file keeps its style.
func (s *Surface) GenerateUnshippedDiff(shipped *Surface) *Surface {
	current := s.active()
	baseline := shipped.active()

	added := exceptIdentity(current, baseline)

	removed := exceptIdentity(baseline, current)
	removed = exceptIdentity(removed, s.oblivious)

	entries := make([]string, 0, len(added)+len(removed))
	entries = append(entries, added...)
	for _, e := range removed {
		entries = append(entries, RemovedPrefix+e)
	}
	entries = dedupIdentity(entries)
	SortEntries(entries)

	return withActive(shipped.nullableEnable, entries)
}

// Ship folds an unshipped delta into a shipped baseline and returns the new
// baseline. Removal-marked entries delete their unprefixed counterpart; all
// other unshipped entries are added. The header follows shipped.
func Ship(shipped, unshipped *Surface) *Surface {
	var additions, removals []string
	for _, e := range unshipped.active() {
		if IsRemoved(e) {
			removals = append(removals, e[len(RemovedPrefix):])
			continue
		}
		additions = append(additions, e)
	}

	entries := exceptIdentity(shipped.active(), removals)
	entries = append(entries, additions...)
	entries = dedupIdentity(entries)
	SortEntries(entries)

	return withActive(shipped.nullableEnable, entries)
}

// Empty returns an entry-less surface with the same header as s. It is what
// an unshipped file looks like right after shipping.
func (s *Surface) Empty() *Surface {
	return &Surface{nullableEnable: s.nullableEnable}
}
