package domain

// HighestMatchProbabilities computes, in one pass over a potential match's
// results, the maximum match probability referencing each record id (as
// either side of the comparison). Records never referenced by a result are
// absent from the map; callers must treat absence as "no known probability",
// not zero. A nil or empty results slice yields an empty map.
func HighestMatchProbabilities(results []MatchResult) map[string]float64 {
	out := make(map[string]float64, len(results))
	for _, res := range results {
		if cur, ok := out[res.PersonRecordLID]; !ok || res.MatchProbability > cur {
			out[res.PersonRecordLID] = res.MatchProbability
		}
		if cur, ok := out[res.PersonRecordRID]; !ok || res.MatchProbability > cur {
			out[res.PersonRecordRID] = res.MatchProbability
		}
	}
	return out
}
