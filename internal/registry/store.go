package registry

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"linkreview/internal/observability"
	"linkreview/pkg/domain"
)

// Store is the registry-side implementation of Client backed by a persistence
// layer. It serves summary projections, entity detail, and the sole write
// path that resolves a potential match.
type Store struct {
	persist domain.PersistentStore
	logger  observability.Logger
	metrics observability.MetricsRecorder
	tracer  observability.Tracer
	nowFn   func() time.Time
	idFn    func() string
}

// StoreOption adjusts Store construction.
type StoreOption func(*Store)

// WithStoreLogger installs a logger.
func WithStoreLogger(l observability.Logger) StoreOption {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStoreMetrics installs a metrics recorder.
func WithStoreMetrics(m observability.MetricsRecorder) StoreOption {
	return func(s *Store) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithStoreTracer installs a tracer.
func WithStoreTracer(t observability.Tracer) StoreOption {
	return func(s *Store) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithStoreClock overrides the time source, primarily for tests.
func WithStoreClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.nowFn = now
		}
	}
}

// WithStoreIDGenerator overrides registry id allocation, primarily for tests.
func WithStoreIDGenerator(id func() string) StoreOption {
	return func(s *Store) {
		if id != nil {
			s.idFn = id
		}
	}
}

// NewStore constructs a Store on top of the given persistence backend.
func NewStore(persist domain.PersistentStore, opts ...StoreOption) *Store {
	s := &Store{
		persist: persist,
		logger:  observability.NopLogger{},
		metrics: observability.NopMetrics{},
		tracer:  observability.NopTracer{},
		nowFn:   func() time.Time { return time.Now().UTC() },
		idFn:    newID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) observe(ctx context.Context, op string, started time.Time, err error) {
	s.metrics.Observe(ctx, op, err == nil, s.nowFn().Sub(started))
}

// FetchDataSources implements Client. Sources are derived from the records on
// hand: every distinct record data_source name, sorted.
func (s *Store) FetchDataSources(ctx context.Context) ([]domain.DataSource, error) {
	started := s.nowFn()
	ctx, span := s.tracer.Start(ctx, "registry.fetch_data_sources")
	var out []domain.DataSource
	err := s.persist.View(ctx, func(view domain.TransactionView) error {
		seen := map[string]struct{}{}
		for _, p := range view.ListPersons() {
			for _, rec := range p.Records {
				if rec.DataSource != "" {
					seen[rec.DataSource] = struct{}{}
				}
			}
		}
		names := make([]string, 0, len(seen))
		for name := range seen {
			names = append(names, name)
		}
		sort.Strings(names)
		out = make([]domain.DataSource, 0, len(names))
		for _, name := range names {
			out = append(out, domain.DataSource{Name: name})
		}
		return nil
	})
	span.End(err)
	s.observe(ctx, "registry.fetch_data_sources", started, err)
	return out, err
}

// FetchPersons implements Client with default paging.
func (s *Store) FetchPersons(ctx context.Context, terms domain.SearchTerms) ([]domain.PersonSummary, error) {
	summaries, _, err := s.ListPersonSummaries(ctx, terms, PageRequest{})
	return summaries, err
}

// FetchPotentialMatches implements Client with default paging.
func (s *Store) FetchPotentialMatches(ctx context.Context, terms domain.SearchTerms) ([]domain.PotentialMatchSummary, error) {
	summaries, _, err := s.ListPotentialMatchSummaries(ctx, terms, PageRequest{})
	return summaries, err
}

// PageRequest is a one-based page window. Zero values select the defaults.
type PageRequest struct {
	Page     int
	PageSize int
}

// Paging bounds. A requested size above the maximum is clamped.
const (
	DefaultPageSize = 50
	MaxPageSize     = 1000
)

func (p PageRequest) normalize() PageRequest {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	return p
}

// paginate slices a window of n items, fetching awareness of one extra row to
// decide has_next without counting the full set.
func paginate(n int, req PageRequest) (start, end int, page domain.Pagination) {
	req = req.normalize()
	start = (req.Page - 1) * req.PageSize
	if start > n {
		start = n
	}
	end = start + req.PageSize
	if end > n {
		end = n
	}
	page = domain.Pagination{
		Page:        req.Page,
		PageSize:    req.PageSize,
		HasNext:     start+req.PageSize < n,
		HasPrevious: req.Page > 1,
	}
	if page.HasNext {
		next := req.Page + 1
		page.NextPage = &next
	}
	if page.HasPrevious {
		prev := req.Page - 1
		page.PreviousPage = &prev
	}
	return start, end, page
}

// ListPersonSummaries returns the filtered person list projection plus paging
// metadata. Terms combine as AND filters; record-level terms require a single
// record satisfying all of them.
func (s *Store) ListPersonSummaries(ctx context.Context, terms domain.SearchTerms, req PageRequest) ([]domain.PersonSummary, domain.Pagination, error) {
	started := s.nowFn()
	ctx, span := s.tracer.Start(ctx, "registry.list_persons")
	var (
		summaries []domain.PersonSummary
		page      domain.Pagination
	)
	err := s.persist.View(ctx, func(view domain.TransactionView) error {
		persons := view.ListPersons()
		matched := make([]domain.Person, 0, len(persons))
		for _, p := range persons {
			if personMatchesTerms(p, terms) {
				matched = append(matched, p)
			}
		}
		sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })
		var start, end int
		start, end, page = paginate(len(matched), req)
		summaries = make([]domain.PersonSummary, 0, end-start)
		for _, p := range matched[start:end] {
			summaries = append(summaries, summarizePerson(p))
		}
		return nil
	})
	span.End(err)
	s.observe(ctx, "registry.list_persons", started, err)
	return summaries, page, err
}

// ListPotentialMatchSummaries returns the filtered potential-match list
// projection plus paging metadata.
func (s *Store) ListPotentialMatchSummaries(ctx context.Context, terms domain.SearchTerms, req PageRequest) ([]domain.PotentialMatchSummary, domain.Pagination, error) {
	started := s.nowFn()
	ctx, span := s.tracer.Start(ctx, "registry.list_potential_matches")
	var (
		summaries []domain.PotentialMatchSummary
		page      domain.Pagination
	)
	err := s.persist.View(ctx, func(view domain.TransactionView) error {
		rows := view.ListPotentialMatches()
		type joined struct {
			row     domain.PotentialMatchRecord
			persons []domain.Person
		}
		matched := make([]joined, 0, len(rows))
		for _, row := range rows {
			persons := make([]domain.Person, 0, len(row.PersonIDs))
			for _, pid := range row.PersonIDs {
				if p, ok := view.FindPerson(pid); ok {
					persons = append(persons, p)
				}
			}
			if matchMatchesTerms(row, persons, terms) {
				matched = append(matched, joined{row: row, persons: persons})
			}
		}
		sort.Slice(matched, func(i, j int) bool { return matched[i].row.ID < matched[j].row.ID })
		var start, end int
		start, end, page = paginate(len(matched), req)
		summaries = make([]domain.PotentialMatchSummary, 0, end-start)
		for _, j := range matched[start:end] {
			summaries = append(summaries, summarizeMatch(j.row, j.persons))
		}
		return nil
	})
	span.End(err)
	s.observe(ctx, "registry.list_potential_matches", started, err)
	return summaries, page, err
}

// FetchPerson implements Client.
func (s *Store) FetchPerson(ctx context.Context, id string) (domain.Person, error) {
	started := s.nowFn()
	ctx, span := s.tracer.Start(ctx, "registry.fetch_person")
	var out domain.Person
	err := s.persist.View(ctx, func(view domain.TransactionView) error {
		p, ok := view.FindPerson(id)
		if !ok {
			return NotFoundError{Kind: "person", ID: id}
		}
		out = domain.ClonePerson(p)
		return nil
	})
	span.End(err)
	s.observe(ctx, "registry.fetch_person", started, err)
	return out, err
}

// FetchPotentialMatch implements Client. The wire shape is composed by
// joining the row's person ids against the person bucket.
func (s *Store) FetchPotentialMatch(ctx context.Context, id string) (domain.PotentialMatch, error) {
	started := s.nowFn()
	ctx, span := s.tracer.Start(ctx, "registry.fetch_potential_match")
	var out domain.PotentialMatch
	err := s.persist.View(ctx, func(view domain.TransactionView) error {
		row, ok := view.FindPotentialMatch(id)
		if !ok {
			return NotFoundError{Kind: "potential match", ID: id}
		}
		out = domain.PotentialMatch{
			ID:      row.ID,
			Version: row.Version,
			Created: row.Created,
			Results: append([]domain.MatchResult(nil), row.Results...),
			Persons: make([]domain.Person, 0, len(row.PersonIDs)),
		}
		for _, pid := range row.PersonIDs {
			p, ok := view.FindPerson(pid)
			if !ok {
				return fmt.Errorf("potential match %q references missing person %q", id, pid)
			}
			out.Persons = append(out.Persons, domain.ClonePerson(p))
		}
		return nil
	})
	span.End(err)
	s.observe(ctx, "registry.fetch_potential_match", started, err)
	return out, err
}

// MatchPersonRecords implements Client: the write path that resolves a
// potential match. The whole update applies in one transaction or not at all.
//
// Semantics: the match's version must equal the supplied version. Updates
// naming an existing person must match that person's version; the version is
// bumped. Updates without an id create a person with a fresh registry id at
// version 1. Every named record is reassigned to its update's person. Persons
// of the match left unnamed keep only the records no update claimed; emptied
// persons are retained. The potential match row is deleted on success.
func (s *Store) MatchPersonRecords(ctx context.Context, matchID string, version int64, updates []domain.PersonUpdate) error {
	started := s.nowFn()
	ctx, span := s.tracer.Start(ctx, "registry.match_person_records")
	err := s.persist.RunInTransaction(ctx, func(tx domain.Transaction) error {
		row, ok := tx.FindPotentialMatch(matchID)
		if !ok {
			return NotFoundError{Kind: "potential match", ID: matchID}
		}
		if row.Version != version {
			return ConflictError{Kind: "potential match", ID: matchID, Expected: version, Actual: row.Version}
		}

		// Index every record currently owned by the match's persons.
		recordsByID := map[string]domain.PersonRecord{}
		claimed := map[string]string{}
		for _, pid := range row.PersonIDs {
			p, ok := tx.FindPerson(pid)
			if !ok {
				return fmt.Errorf("potential match %q references missing person %q", matchID, pid)
			}
			for _, rec := range p.Records {
				recordsByID[rec.ID] = rec
			}
		}

		for i, upd := range updates {
			for _, recID := range upd.NewPersonRecordIDs {
				if _, ok := recordsByID[recID]; !ok {
					return fmt.Errorf("person record %q is not part of potential match %q", recID, matchID)
				}
				if owner, dup := claimed[recID]; dup {
					return fmt.Errorf("person record %q claimed twice (update %d, already by %q)", recID, i, owner)
				}
				claimed[recID] = fmt.Sprintf("update-%d", i)
			}
		}

		collect := func(ownerID string, ids []string) []domain.PersonRecord {
			records := make([]domain.PersonRecord, 0, len(ids))
			for _, recID := range ids {
				rec := domain.ClonePersonRecord(recordsByID[recID])
				rec.PersonID = ownerID
				rec.HighestMatchProbability = nil
				records = append(records, rec)
			}
			return records
		}

		updatedIDs := map[string]struct{}{}
		for _, upd := range updates {
			if upd.ID == nil {
				// Placeholder promotion: a brand-new person owning the
				// claimed records, starting at version 1.
				id := s.idFn()
				one := int64(1)
				created := domain.Person{
					ID:      id,
					Version: &one,
					Created: s.nowFn(),
					Records: collect(id, upd.NewPersonRecordIDs),
				}
				if _, err := tx.CreatePerson(created); err != nil {
					return err
				}
				s.logger.Info("person created from match resolution", "person_id", id, "match_id", matchID, "records", len(created.Records))
				continue
			}
			pid := *upd.ID
			updatedIDs[pid] = struct{}{}
			if _, err := tx.UpdatePerson(pid, func(p *domain.Person) error {
				if upd.Version == nil || p.Version == nil || *p.Version != *upd.Version {
					actual := int64(0)
					if p.Version != nil {
						actual = *p.Version
					}
					expected := int64(0)
					if upd.Version != nil {
						expected = *upd.Version
					}
					return ConflictError{Kind: "person", ID: pid, Expected: expected, Actual: actual}
				}
				next := *p.Version + 1
				p.Version = &next
				p.Records = collect(pid, upd.NewPersonRecordIDs)
				return nil
			}); err != nil {
				return err
			}
		}

		// Persons the updates did not name keep whatever nobody claimed.
		for _, pid := range row.PersonIDs {
			if _, ok := updatedIDs[pid]; ok {
				continue
			}
			if _, err := tx.UpdatePerson(pid, func(p *domain.Person) error {
				kept := make([]domain.PersonRecord, 0, len(p.Records))
				for _, rec := range p.Records {
					if _, taken := claimed[rec.ID]; !taken {
						kept = append(kept, rec)
					}
				}
				if p.Version != nil {
					next := *p.Version + 1
					p.Version = &next
				}
				p.Records = kept
				return nil
			}); err != nil {
				return err
			}
		}

		return tx.DeletePotentialMatch(matchID)
	})
	span.End(err)
	s.observe(ctx, "registry.match_person_records", started, err)
	if err != nil {
		s.logger.Warn("match resolution failed", "match_id", matchID, "error", err)
		return err
	}
	s.logger.Info("potential match resolved", "match_id", matchID)
	return nil
}

// AddPerson stores a person with a fresh registry id at version 1. Used by
// fixture seeding and record import.
func (s *Store) AddPerson(ctx context.Context, records []domain.PersonRecord) (domain.Person, error) {
	var out domain.Person
	err := s.persist.RunInTransaction(ctx, func(tx domain.Transaction) error {
		id := s.idFn()
		one := int64(1)
		p := domain.Person{ID: id, Version: &one, Created: s.nowFn()}
		p.Records = make([]domain.PersonRecord, 0, len(records))
		for _, rec := range records {
			cp := domain.ClonePersonRecord(rec)
			if cp.ID == "" {
				cp.ID = s.idFn()
			}
			cp.PersonID = id
			cp.HighestMatchProbability = nil
			p.Records = append(p.Records, cp)
		}
		created, err := tx.CreatePerson(p)
		if err != nil {
			return err
		}
		out = created
		return nil
	})
	return out, err
}

// AddPotentialMatch stores a potential-match row over existing persons.
func (s *Store) AddPotentialMatch(ctx context.Context, personIDs []string, results []domain.MatchResult) (domain.PotentialMatchRecord, error) {
	var out domain.PotentialMatchRecord
	err := s.persist.RunInTransaction(ctx, func(tx domain.Transaction) error {
		for _, pid := range personIDs {
			if _, ok := tx.FindPerson(pid); !ok {
				return NotFoundError{Kind: "person", ID: pid}
			}
		}
		row := domain.PotentialMatchRecord{
			ID:        s.idFn(),
			Version:   1,
			Created:   s.nowFn(),
			PersonIDs: append([]string(nil), personIDs...),
			Results:   append([]domain.MatchResult(nil), results...),
		}
		created, err := tx.CreatePotentialMatch(row)
		if err != nil {
			return err
		}
		out = created
		return nil
	})
	return out, err
}

// ListAllRecords returns every person record in the registry, used by export.
func (s *Store) ListAllRecords(ctx context.Context) ([]domain.PersonRecord, error) {
	var out []domain.PersonRecord
	err := s.persist.View(ctx, func(view domain.TransactionView) error {
		persons := view.ListPersons()
		sort.Slice(persons, func(i, j int) bool { return persons[i].ID < persons[j].ID })
		for _, p := range persons {
			for _, rec := range p.Records {
				out = append(out, domain.ClonePersonRecord(rec))
			}
		}
		return nil
	})
	return out, err
}

func summarizePerson(p domain.Person) domain.PersonSummary {
	first, last := displayName(p.Records)
	return domain.PersonSummary{
		ID:          p.ID,
		FirstName:   first,
		LastName:    last,
		DataSources: distinctSources(p.Records),
		RecordCount: len(p.Records),
		Created:     p.Created,
	}
}

func summarizeMatch(row domain.PotentialMatchRecord, persons []domain.Person) domain.PotentialMatchSummary {
	var records []domain.PersonRecord
	recordCount := 0
	for _, p := range persons {
		records = append(records, p.Records...)
		recordCount += len(p.Records)
	}
	first, last := displayName(records)
	maxProb := 0.0
	for _, res := range row.Results {
		if res.MatchProbability > maxProb {
			maxProb = res.MatchProbability
		}
	}
	return domain.PotentialMatchSummary{
		ID:                  row.ID,
		FirstName:           first,
		LastName:            last,
		DataSources:         distinctSources(records),
		PersonCount:         len(persons),
		RecordCount:         recordCount,
		MaxMatchProbability: maxProb,
		Created:             row.Created,
	}
}

// displayName picks the first non-empty first/last name pair in record order.
func displayName(records []domain.PersonRecord) (string, string) {
	first, last := "", ""
	for _, rec := range records {
		if first == "" && rec.FirstName != "" {
			first = rec.FirstName
		}
		if last == "" && rec.LastName != "" {
			last = rec.LastName
		}
		if first != "" && last != "" {
			break
		}
	}
	return first, last
}

func distinctSources(records []domain.PersonRecord) []string {
	seen := map[string]struct{}{}
	for _, rec := range records {
		if rec.DataSource != "" {
			seen[rec.DataSource] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func personMatchesTerms(p domain.Person, terms domain.SearchTerms) bool {
	for key, value := range terms {
		if value == "" {
			continue
		}
		if key == domain.TermPersonID {
			if !containsFold(p.ID, value) {
				return false
			}
			continue
		}
		if !anyRecordMatches(p.Records, key, value) {
			return false
		}
	}
	return true
}

func matchMatchesTerms(row domain.PotentialMatchRecord, persons []domain.Person, terms domain.SearchTerms) bool {
	for key, value := range terms {
		if value == "" {
			continue
		}
		if key == domain.TermPersonID {
			hit := false
			for _, pid := range row.PersonIDs {
				if containsFold(pid, value) {
					hit = true
					break
				}
			}
			if !hit {
				return false
			}
			continue
		}
		hit := false
		for _, p := range persons {
			if anyRecordMatches(p.Records, key, value) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	return true
}

func anyRecordMatches(records []domain.PersonRecord, key, value string) bool {
	field, err := domain.ParseRecordField(key)
	if err != nil {
		return false
	}
	for _, rec := range records {
		if containsFold(field.Value(rec), value) {
			return true
		}
	}
	return false
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
