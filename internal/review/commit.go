package review

import (
	"context"
	"fmt"
	"sort"

	"linkreview/pkg/domain"
)

// MatchPersonRecords commits the working copy of a match to the registry.
// Every person of the working copy becomes one update entry carrying its
// final record membership; placeholders with zero records are skipped, and
// only persisted persons carry id and version (a placeholder entry signals
// "create"). The write is all-or-nothing: on failure nothing local changes.
// On success the match's baseline, working copy, summary, and selection are
// purged, since the registry now owns the resolved persons, and the summary
// list is refetched.
func (s *Session) MatchPersonRecords(ctx context.Context, matchID string) error {
	started := s.nowFn()
	ctx, span := s.tracer.Start(ctx, "review.match_person_records")

	s.mu.Lock()
	wm, ok := s.currentMatches[matchID]
	if !ok {
		s.mu.Unlock()
		err := NoWorkingCopyError{MatchID: matchID}
		s.logger.Warn("commit rejected", "match_id", matchID, "error", err)
		span.End(err)
		s.finishOp(ctx, "review.match_person_records", started, err)
		return err
	}
	if wm.ID != matchID {
		s.mu.Unlock()
		err := fmt.Errorf("working copy id %q does not match requested id %q", wm.ID, matchID)
		s.logger.Warn("commit rejected", "match_id", matchID, "error", err)
		span.End(err)
		s.finishOp(ctx, "review.match_person_records", started, err)
		return err
	}
	updates := buildPersonUpdates(wm)
	version := wm.Version
	s.mu.Unlock()

	if err := s.client.MatchPersonRecords(ctx, matchID, version, updates); err != nil {
		s.logger.Warn("commit failed", "match_id", matchID, "error", err)
		span.End(err)
		s.finishOp(ctx, "review.match_person_records", started, err)
		return err
	}

	s.mu.Lock()
	delete(s.baselineMatches, matchID)
	delete(s.currentMatches, matchID)
	delete(s.expanded, matchID)
	kept := s.matchSummaries[:0:0]
	for _, sum := range s.matchSummaries {
		if sum.ID != matchID {
			kept = append(kept, sum)
		}
	}
	s.matchSummaries = kept
	if s.selectedMatch == matchID {
		s.selectedMatch = ""
	}
	s.mu.Unlock()

	s.logger.Info("potential match committed", "match_id", matchID, "persons", len(updates))
	span.End(nil)
	s.finishOp(ctx, "review.match_person_records", started, nil)

	return s.FetchSummaries(ctx)
}

// buildPersonUpdates converts a working copy into the registry's update
// payload: persisted persons ordered by id, then placeholders by suffix.
func buildPersonUpdates(wm domain.WorkingMatch) []domain.PersonUpdate {
	persisted := make([]domain.Person, 0, len(wm.Persons))
	placeholders := make([]domain.Person, 0)
	for _, p := range wm.Persons {
		if p.IsPlaceholder() {
			if len(p.Records) == 0 {
				continue
			}
			placeholders = append(placeholders, p)
			continue
		}
		persisted = append(persisted, p)
	}
	sort.Slice(persisted, func(i, j int) bool { return persisted[i].ID < persisted[j].ID })
	sort.Slice(placeholders, func(i, j int) bool {
		ni, _ := domain.PlaceholderSuffix(placeholders[i].ID)
		nj, _ := domain.PlaceholderSuffix(placeholders[j].ID)
		return ni < nj
	})

	updates := make([]domain.PersonUpdate, 0, len(persisted)+len(placeholders))
	for _, p := range persisted {
		id := p.ID
		upd := domain.PersonUpdate{ID: &id, NewPersonRecordIDs: p.RecordIDs()}
		if p.Version != nil {
			v := *p.Version
			upd.Version = &v
		}
		updates = append(updates, upd)
	}
	for _, p := range placeholders {
		updates = append(updates, domain.PersonUpdate{NewPersonRecordIDs: p.RecordIDs()})
	}
	return updates
}
