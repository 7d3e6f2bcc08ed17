package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestSeedFromFile(t *testing.T) {
	fixture := `{
		"persons": [
			{"records": [{"id": "r1", "first_name": "Jo", "data_source": "north"}]},
			{"records": [{"id": "r2", "first_name": "Joe", "data_source": "east"}]}
		],
		"potential_matches": [
			{"person_indexes": [0, 1], "results": [
				{"person_record_l_id": "r1", "person_record_r_id": "r2", "match_probability": 0.7}
			]}
		]
	}`
	path := filepath.Join(t.TempDir(), "seed.json")
	if err := os.WriteFile(path, []byte(fixture), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	s := testStore(t)
	ctx := context.Background()
	if err := s.SeedFromFile(ctx, path); err != nil {
		t.Fatalf("seed: %v", err)
	}

	persons, _, err := s.ListPersonSummaries(ctx, nil, PageRequest{})
	if err != nil {
		t.Fatalf("list persons: %v", err)
	}
	if len(persons) != 2 {
		t.Fatalf("%d persons", len(persons))
	}
	matches, _, err := s.ListPotentialMatchSummaries(ctx, nil, PageRequest{})
	if err != nil {
		t.Fatalf("list matches: %v", err)
	}
	if len(matches) != 1 || matches[0].MaxMatchProbability != 0.7 {
		t.Fatalf("matches = %+v", matches)
	}

	// Non-empty registry: a second run is a no-op.
	if err := s.SeedFromFile(ctx, path); err != nil {
		t.Fatalf("reseed: %v", err)
	}
	persons, _, err = s.ListPersonSummaries(ctx, nil, PageRequest{})
	if err != nil {
		t.Fatalf("list persons: %v", err)
	}
	if len(persons) != 2 {
		t.Fatalf("%d persons after reseed", len(persons))
	}

	t.Run("bad index", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "bad.json")
		if err := os.WriteFile(bad, []byte(`{"persons": [], "potential_matches": [{"person_indexes": [3]}]}`), 0o644); err != nil {
			t.Fatalf("write fixture: %v", err)
		}
		if err := testStore(t).SeedFromFile(context.Background(), bad); err == nil {
			t.Fatal("out-of-range index accepted")
		}
	})
}
