package domain

import "sort"

// IsUpdated reports whether a working copy structurally differs from its
// baseline: any person whose owned record-id set differs from the same-id
// person on the other side, comparing a person missing from either side
// against an empty record list. This is a membership diff, not a field-level
// diff; field values are not edited in this workflow. A record-less person
// present on only one side (a freshly created placeholder) compares clean;
// the placeholder registers as dirty once it receives its first record.
// Either side being nil means there is nothing to compare.
func IsUpdated(current *WorkingMatch, baseline *PotentialMatch) bool {
	if current == nil || baseline == nil {
		return false
	}
	baselineIDs := make(map[string][]string, len(baseline.Persons))
	for _, p := range baseline.Persons {
		baselineIDs[p.ID] = sortedRecordIDs(p)
	}
	for id, p := range current.Persons {
		if !equalStrings(sortedRecordIDs(p), baselineIDs[id]) {
			return true
		}
		delete(baselineIDs, id)
	}
	for _, ids := range baselineIDs {
		if len(ids) > 0 {
			return true
		}
	}
	return false
}

func sortedRecordIDs(p Person) []string {
	ids := p.RecordIDs()
	sort.Strings(ids)
	return ids
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
