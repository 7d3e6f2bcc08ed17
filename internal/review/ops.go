package review

import (
	"fmt"

	"linkreview/pkg/domain"
)

// Structural edit operations. All of them act on the current working copies
// only; baselines stay untouched until a fetch or commit replaces them. Edits
// are copy-on-write on exactly the paths they touch, so unchanged persons
// keep their prior record slices.

// MovePersonRecord reassigns a record to another person within the working
// copy of a match. Moving a record onto its current owner is a no-op.
func (s *Session) MovePersonRecord(matchID string, record domain.PersonRecord, toPersonID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	wm, ok := s.currentMatches[matchID]
	if !ok {
		err := NoWorkingCopyError{MatchID: matchID}
		s.logger.Warn("move rejected", "match_id", matchID, "error", err)
		return err
	}
	if record.PersonID == toPersonID {
		return nil
	}
	source, ok := wm.Persons[record.PersonID]
	if !ok {
		err := fmt.Errorf("person %q not in working copy of match %q", record.PersonID, matchID)
		s.logger.Warn("move rejected", "match_id", matchID, "error", err)
		return err
	}
	dest, ok := wm.Persons[toPersonID]
	if !ok {
		err := fmt.Errorf("person %q not in working copy of match %q", toPersonID, matchID)
		s.logger.Warn("move rejected", "match_id", matchID, "error", err)
		return err
	}

	var moved *domain.PersonRecord
	kept := make([]domain.PersonRecord, 0, len(source.Records))
	for _, rec := range source.Records {
		if rec.ID == record.ID && moved == nil {
			cp := domain.ClonePersonRecord(rec)
			moved = &cp
			continue
		}
		kept = append(kept, rec)
	}
	if moved == nil {
		err := fmt.Errorf("record %q not owned by person %q in match %q", record.ID, record.PersonID, matchID)
		s.logger.Warn("move rejected", "match_id", matchID, "error", err)
		return err
	}
	moved.PersonID = toPersonID

	source.Records = kept
	dest.Records = append(append([]domain.PersonRecord(nil), dest.Records...), *moved)
	wm.Persons[record.PersonID] = source
	wm.Persons[toPersonID] = dest
	s.currentMatches[matchID] = wm
	return nil
}

// CreateNewPerson inserts an empty placeholder person into the working copy
// of a match, allocating the next placeholder suffix. With merge set, every
// other person's records move into the new person (sources are emptied, not
// removed) and the merge dialog closes. Returns the new person's id.
func (s *Session) CreateNewPerson(matchID string, merge bool) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wm, ok := s.currentMatches[matchID]
	if !ok {
		err := NoWorkingCopyError{MatchID: matchID}
		s.logger.Warn("create person rejected", "match_id", matchID, "error", err)
		return "", err
	}

	maxSuffix := 0
	for id := range wm.Persons {
		if n, ok := domain.PlaceholderSuffix(id); ok && n > maxSuffix {
			maxSuffix = n
		}
	}
	newID := domain.PlaceholderID(maxSuffix + 1)
	created := domain.Person{
		ID:      newID,
		Created: s.nowFn(),
		Records: []domain.PersonRecord{},
	}

	if merge {
		for id, p := range wm.Persons {
			if len(p.Records) == 0 {
				continue
			}
			for _, rec := range p.Records {
				cp := domain.ClonePersonRecord(rec)
				cp.PersonID = newID
				created.Records = append(created.Records, cp)
			}
			p.Records = []domain.PersonRecord{}
			wm.Persons[id] = p
		}
		s.mergeDialogOpen = false
	}

	wm.Persons[newID] = created
	s.currentMatches[matchID] = wm
	s.logger.Debug("placeholder person created", "match_id", matchID, "person_id", newID, "merge", merge)
	return newID, nil
}

// MergePersons moves every record of the selected match's working copy into
// the target person, emptying the other persons without removing them: an
// emptied person may still serve as a merge target later. Valid only in
// match mode with a selection. The merge dialog closes regardless of
// outcome.
func (s *Session) MergePersons(targetPersonID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { s.mergeDialogOpen = false }()

	if !s.matchMode {
		err := PreconditionError{Op: "merge persons", Reason: "not in match mode"}
		s.logger.Warn("merge rejected", "error", err)
		return err
	}
	if s.selectedMatch == "" {
		err := PreconditionError{Op: "merge persons", Reason: "no potential match selected"}
		s.logger.Warn("merge rejected", "error", err)
		return err
	}
	matchID := s.selectedMatch
	wm, ok := s.currentMatches[matchID]
	if !ok {
		err := NoWorkingCopyError{MatchID: matchID}
		s.logger.Warn("merge rejected", "match_id", matchID, "error", err)
		return err
	}
	target, ok := wm.Persons[targetPersonID]
	if !ok {
		err := fmt.Errorf("person %q not in working copy of match %q", targetPersonID, matchID)
		s.logger.Warn("merge rejected", "match_id", matchID, "error", err)
		return err
	}

	merged := append([]domain.PersonRecord(nil), target.Records...)
	for id, p := range wm.Persons {
		if id == targetPersonID || len(p.Records) == 0 {
			continue
		}
		for _, rec := range p.Records {
			cp := domain.ClonePersonRecord(rec)
			cp.PersonID = targetPersonID
			merged = append(merged, cp)
		}
		p.Records = []domain.PersonRecord{}
		wm.Persons[id] = p
	}
	target.Records = merged
	wm.Persons[targetPersonID] = target
	s.currentMatches[matchID] = wm
	return nil
}

// ResetCurrentPotentialMatch discards local edits by rederiving the working
// copy from the baseline, recomputing derived metadata.
func (s *Session) ResetCurrentPotentialMatch(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	baseline, ok := s.baselineMatches[id]
	if !ok {
		err := NoBaselineError{Kind: "potential match", ID: id}
		s.logger.Warn("reset rejected", "match_id", id, "error", err)
		return err
	}
	s.currentMatches[id] = domain.NewWorkingMatch(baseline)
	return nil
}

// ResetCurrentPerson discards local edits by rederiving the working person
// from its baseline.
func (s *Session) ResetCurrentPerson(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	baseline, ok := s.baselinePersons[id]
	if !ok {
		err := NoBaselineError{Kind: "person", ID: id}
		s.logger.Warn("reset rejected", "person_id", id, "error", err)
		return err
	}
	s.currentPersons[id] = domain.ClonePerson(baseline)
	return nil
}
