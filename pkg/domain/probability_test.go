package domain

import "testing"

func TestHighestMatchProbabilities(t *testing.T) {
	t.Run("empty results yield empty map", func(t *testing.T) {
		if got := HighestMatchProbabilities(nil); len(got) != 0 {
			t.Fatalf("expected empty map, got %v", got)
		}
		if got := HighestMatchProbabilities([]MatchResult{}); len(got) != 0 {
			t.Fatalf("expected empty map, got %v", got)
		}
	})

	t.Run("maximum across both sides", func(t *testing.T) {
		results := []MatchResult{
			{PersonRecordLID: "r1", PersonRecordRID: "r2", MatchProbability: 0.4},
			{PersonRecordLID: "r2", PersonRecordRID: "r3", MatchProbability: 0.9},
			{PersonRecordLID: "r1", PersonRecordRID: "r3", MatchProbability: 0.7},
		}
		got := HighestMatchProbabilities(results)
		want := map[string]float64{"r1": 0.7, "r2": 0.9, "r3": 0.9}
		if len(got) != len(want) {
			t.Fatalf("got %d entries, want %d", len(got), len(want))
		}
		for id, prob := range want {
			if got[id] != prob {
				t.Errorf("record %s: got %v, want %v", id, got[id], prob)
			}
		}
	})

	t.Run("unreferenced record absent", func(t *testing.T) {
		results := []MatchResult{{PersonRecordLID: "r1", PersonRecordRID: "r2", MatchProbability: 0.5}}
		got := HighestMatchProbabilities(results)
		if _, ok := got["r3"]; ok {
			t.Fatal("r3 should not have an entry")
		}
	})
}
