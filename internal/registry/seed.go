package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"linkreview/pkg/domain"
)

// seedFixture is the JSON shape accepted by SeedFromFile. Potential matches
// reference persons by their index in the persons array, since registry ids
// are assigned during the load.
type seedFixture struct {
	Persons []struct {
		Records []domain.PersonRecord `json:"records"`
	} `json:"persons"`
	PotentialMatches []struct {
		PersonIndexes []int                `json:"person_indexes"`
		Results       []domain.MatchResult `json:"results"`
	} `json:"potential_matches"`
}

// SeedFromFile loads fixture persons and potential matches from a JSON file.
// A registry that already holds persons is left untouched, so durable stores
// survive restarts without duplicating fixtures.
func (s *Store) SeedFromFile(ctx context.Context, path string) error {
	existing, _, err := s.ListPersonSummaries(ctx, nil, PageRequest{PageSize: 1})
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		s.logger.Info("seed skipped, registry not empty", "path", path)
		return nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}
	var fixture seedFixture
	if err := json.Unmarshal(raw, &fixture); err != nil {
		return fmt.Errorf("parse seed file %q: %w", path, err)
	}

	personIDs := make([]string, 0, len(fixture.Persons))
	for i, fp := range fixture.Persons {
		created, err := s.AddPerson(ctx, fp.Records)
		if err != nil {
			return fmt.Errorf("seed person %d: %w", i, err)
		}
		personIDs = append(personIDs, created.ID)
	}
	for i, fm := range fixture.PotentialMatches {
		ids := make([]string, 0, len(fm.PersonIndexes))
		for _, idx := range fm.PersonIndexes {
			if idx < 0 || idx >= len(personIDs) {
				return fmt.Errorf("seed potential match %d: person index %d out of range", i, idx)
			}
			ids = append(ids, personIDs[idx])
		}
		if _, err := s.AddPotentialMatch(ctx, ids, fm.Results); err != nil {
			return fmt.Errorf("seed potential match %d: %w", i, err)
		}
	}
	s.logger.Info("seed loaded", "path", path, "persons", len(fixture.Persons), "potential_matches", len(fixture.PotentialMatches))
	return nil
}
