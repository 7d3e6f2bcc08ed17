package review

import (
	"context"

	"linkreview/pkg/domain"
)

// Fetch paths. Each network call runs outside the session mutex; its result
// is applied only if no newer request for the same key was issued in the
// meantime (generation tokens), and baseline replacement is gated on the
// fetched version differing from the cached one so redundant fetches never
// disturb in-progress edits.

func (s *Session) nextGen(key string) uint64 {
	s.fetchGen[key]++
	return s.fetchGen[key]
}

func (s *Session) genCurrent(key string, gen uint64) bool {
	return s.fetchGen[key] == gen
}

// FetchDataSources loads the data-source list once and caches it for the
// session.
func (s *Session) FetchDataSources(ctx context.Context) error {
	started := s.nowFn()
	ctx, span := s.tracer.Start(ctx, "review.fetch_data_sources")
	s.mu.Lock()
	if s.dataSources != nil {
		s.mu.Unlock()
		span.End(nil)
		return nil
	}
	s.mu.Unlock()

	sources, err := s.client.FetchDataSources(ctx)
	if err != nil {
		s.logger.Warn("data source fetch failed", "error", err)
		span.End(err)
		s.finishOp(ctx, "review.fetch_data_sources", started, err)
		return err
	}
	s.mu.Lock()
	s.dataSources = sources
	if s.dataSources == nil {
		s.dataSources = []domain.DataSource{}
	}
	s.mu.Unlock()
	span.End(nil)
	s.finishOp(ctx, "review.fetch_data_sources", started, nil)
	return nil
}

// FetchPotentialMatch loads a potential match and applies it under the
// version gate: a new id or changed version replaces the baseline and
// rederives the working copy; an identical version leaves local edits alone.
// A not-found or transport error leaves prior state untouched.
func (s *Session) FetchPotentialMatch(ctx context.Context, id string) error {
	started := s.nowFn()
	ctx, span := s.tracer.Start(ctx, "review.fetch_potential_match")
	key := "potential-match:" + id
	s.mu.Lock()
	gen := s.nextGen(key)
	s.mu.Unlock()

	fetched, err := s.client.FetchPotentialMatch(ctx, id)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.logger.Warn("potential match fetch failed", "match_id", id, "error", err)
		span.End(err)
		s.finishOp(ctx, "review.fetch_potential_match", started, err)
		return err
	}
	if !s.genCurrent(key, gen) {
		s.logger.Debug("dropping stale potential match response", "match_id", id)
		span.End(nil)
		s.finishOp(ctx, "review.fetch_potential_match", started, nil)
		return nil
	}
	if cached, ok := s.baselineMatches[id]; ok && cached.Version == fetched.Version {
		span.End(nil)
		s.finishOp(ctx, "review.fetch_potential_match", started, nil)
		return nil
	}
	s.baselineMatches[id] = domain.ClonePotentialMatch(fetched)
	s.currentMatches[id] = domain.NewWorkingMatch(fetched)
	span.End(nil)
	s.finishOp(ctx, "review.fetch_potential_match", started, nil)
	return nil
}

// FetchPerson loads a person under the same version gate and staleness guard
// as FetchPotentialMatch.
func (s *Session) FetchPerson(ctx context.Context, id string) error {
	started := s.nowFn()
	ctx, span := s.tracer.Start(ctx, "review.fetch_person")
	key := "person:" + id
	s.mu.Lock()
	gen := s.nextGen(key)
	s.mu.Unlock()

	fetched, err := s.client.FetchPerson(ctx, id)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.logger.Warn("person fetch failed", "person_id", id, "error", err)
		span.End(err)
		s.finishOp(ctx, "review.fetch_person", started, err)
		return err
	}
	if !s.genCurrent(key, gen) {
		s.logger.Debug("dropping stale person response", "person_id", id)
		span.End(nil)
		s.finishOp(ctx, "review.fetch_person", started, nil)
		return nil
	}
	if cached, ok := s.baselinePersons[id]; ok && versionsEqual(cached.Version, fetched.Version) {
		span.End(nil)
		s.finishOp(ctx, "review.fetch_person", started, nil)
		return nil
	}
	s.baselinePersons[id] = domain.ClonePerson(fetched)
	s.currentPersons[id] = domain.ClonePerson(fetched)
	span.End(nil)
	s.finishOp(ctx, "review.fetch_person", started, nil)
	return nil
}

func versionsEqual(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// FetchSummaries refreshes the summary list of the current mode with the
// active search terms. The cache is replaced wholesale; working copies whose
// ids left the result set are evicted, and a selection that fell out of the
// set is cleared.
func (s *Session) FetchSummaries(ctx context.Context) error {
	started := s.nowFn()
	ctx, span := s.tracer.Start(ctx, "review.fetch_summaries")
	s.mu.Lock()
	matchMode := s.matchMode
	terms := s.searchTerms.Clone()
	var key string
	if matchMode {
		key = "summaries:potential-matches"
	} else {
		key = "summaries:persons"
	}
	gen := s.nextGen(key)
	s.mu.Unlock()

	var err error
	if matchMode {
		var summaries []domain.PotentialMatchSummary
		summaries, err = s.client.FetchPotentialMatches(ctx, terms)
		if err == nil {
			s.mu.Lock()
			if s.genCurrent(key, gen) {
				s.applyMatchSummaries(summaries)
			} else {
				s.logger.Debug("dropping stale potential match summaries")
			}
			s.mu.Unlock()
		}
	} else {
		var summaries []domain.PersonSummary
		summaries, err = s.client.FetchPersons(ctx, terms)
		if err == nil {
			s.mu.Lock()
			if s.genCurrent(key, gen) {
				s.applyPersonSummaries(summaries)
			} else {
				s.logger.Debug("dropping stale person summaries")
			}
			s.mu.Unlock()
		}
	}
	if err != nil {
		s.logger.Warn("summary fetch failed", "match_mode", matchMode, "error", err)
	}
	span.End(err)
	s.finishOp(ctx, "review.fetch_summaries", started, err)
	return err
}

// applyMatchSummaries installs a fresh summary set. Callers hold the mutex.
func (s *Session) applyMatchSummaries(summaries []domain.PotentialMatchSummary) {
	if summaries == nil {
		summaries = []domain.PotentialMatchSummary{}
	}
	s.matchSummaries = summaries
	live := make(map[string]struct{}, len(summaries))
	for _, sum := range summaries {
		live[sum.ID] = struct{}{}
	}
	for id := range s.baselineMatches {
		if _, ok := live[id]; !ok {
			delete(s.baselineMatches, id)
			delete(s.currentMatches, id)
		}
	}
	if s.selectedMatch != "" {
		if _, ok := live[s.selectedMatch]; !ok {
			s.selectedMatch = ""
		}
	}
}

// applyPersonSummaries installs a fresh summary set. Callers hold the mutex.
func (s *Session) applyPersonSummaries(summaries []domain.PersonSummary) {
	if summaries == nil {
		summaries = []domain.PersonSummary{}
	}
	s.personSummaries = summaries
	live := make(map[string]struct{}, len(summaries))
	for _, sum := range summaries {
		live[sum.ID] = struct{}{}
	}
	for id := range s.baselinePersons {
		if _, ok := live[id]; !ok {
			delete(s.baselinePersons, id)
			delete(s.currentPersons, id)
		}
	}
	if s.selectedPerson != "" {
		if _, ok := live[s.selectedPerson]; !ok {
			s.selectedPerson = ""
		}
	}
}

// ClearSearchTerms drops every filter term and refetches the summary list.
func (s *Session) ClearSearchTerms(ctx context.Context) error {
	s.mu.Lock()
	s.searchTerms = make(domain.SearchTerms)
	s.mu.Unlock()
	return s.FetchSummaries(ctx)
}
