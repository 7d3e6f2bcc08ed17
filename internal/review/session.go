// Package review implements the reviewer-side reconciliation engine: an
// editable working copy of potential matches kept in sync with the immutable
// registry baseline, structural edit operations, dirty detection, and the
// commit path back to the registry.
package review

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"linkreview/internal/observability"
	"linkreview/internal/registry"
	"linkreview/pkg/domain"
)

// Session holds one reviewer's working state. All access is serialized by an
// internal mutex: UI callbacks and completed network calls may arrive from
// different goroutines.
//
// The central design device is the baseline/current duality: baselines are
// replaced only by version-gated fetches and commits; every structural edit
// acts on the current working copies alone.
type Session struct {
	mu      sync.Mutex
	client  registry.Client
	logger  observability.Logger
	metrics observability.MetricsRecorder
	tracer  observability.Tracer
	nowFn   func() time.Time

	matchMode       bool
	selectedPerson  string
	selectedMatch   string
	panelCollapsed  bool
	mergeDialogOpen bool

	dataSources []domain.DataSource

	baselineMatches map[string]domain.PotentialMatch
	currentMatches  map[string]domain.WorkingMatch
	baselinePersons map[string]domain.Person
	currentPersons  map[string]domain.Person

	personSummaries []domain.PersonSummary
	matchSummaries  []domain.PotentialMatchSummary

	// expanded pins records for side-by-side comparison, keyed by the
	// selected summary id.
	expanded map[string]map[string]domain.PersonRecord

	searchTerms domain.SearchTerms

	// fetchGen guards against stale fetch responses: a response applies only
	// when its generation is still the latest issued for that key.
	fetchGen map[string]uint64
}

// Option adjusts Session construction.
type Option func(*Session)

// WithLogger installs a logger.
func WithLogger(l observability.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics installs a metrics recorder.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(s *Session) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithTracer installs a tracer.
func WithTracer(t observability.Tracer) Option {
	return func(s *Session) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithClock overrides the time source, primarily for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.nowFn = now
		}
	}
}

// NewSession constructs a review session over the given registry client.
func NewSession(client registry.Client, opts ...Option) *Session {
	s := &Session{
		client:          client,
		logger:          observability.NopLogger{},
		metrics:         observability.NopMetrics{},
		tracer:          observability.NopTracer{},
		nowFn:           func() time.Time { return time.Now().UTC() },
		baselineMatches: make(map[string]domain.PotentialMatch),
		currentMatches:  make(map[string]domain.WorkingMatch),
		baselinePersons: make(map[string]domain.Person),
		currentPersons:  make(map[string]domain.Person),
		expanded:        make(map[string]map[string]domain.PersonRecord),
		searchTerms:     make(domain.SearchTerms),
		fetchGen:        make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetMatchMode switches between browsing persons and potential matches. The
// prior selection of each mode is retained across switches.
func (s *Session) SetMatchMode(on bool) {
	s.mu.Lock()
	s.matchMode = on
	s.mu.Unlock()
}

// MatchMode reports whether the session browses potential matches.
func (s *Session) MatchMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.matchMode
}

// SelectSummary sets the selected id for the current mode. The browsing panel
// follows the target's pinned comparison set: collapsed when the target has
// pinned records, open otherwise.
func (s *Session) SelectSummary(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.matchMode {
		s.selectedMatch = id
	} else {
		s.selectedPerson = id
	}
	s.panelCollapsed = len(s.expanded[id]) > 0
}

// SelectedPersonID returns the person selection.
func (s *Session) SelectedPersonID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedPerson
}

// SelectedPotentialMatchID returns the potential-match selection.
func (s *Session) SelectedPotentialMatchID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedMatch
}

// PanelCollapsed reports whether the browsing panel is collapsed in favor of
// the comparison view.
func (s *Session) PanelCollapsed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.panelCollapsed
}

// OpenMergeDialog marks the merge-confirmation dialog open.
func (s *Session) OpenMergeDialog() {
	s.mu.Lock()
	s.mergeDialogOpen = true
	s.mu.Unlock()
}

// MergeDialogOpen reports the merge-confirmation dialog state.
func (s *Session) MergeDialogOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mergeDialogOpen
}

// selectionKey returns the summary id the comparison set is keyed by, per the
// current mode. Callers hold the mutex.
func (s *Session) selectionKey() string {
	if s.matchMode {
		return s.selectedMatch
	}
	return s.selectedPerson
}

// ToggleExpandedRecord pins or unpins a record for side-by-side comparison
// under the current selection. The browsing panel collapses while any record
// is pinned and re-expands when the set empties.
func (s *Session) ToggleExpandedRecord(recordID string, rec domain.PersonRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := s.selectionKey()
	if key == "" {
		return
	}
	set := s.expanded[key]
	if set == nil {
		set = make(map[string]domain.PersonRecord)
		s.expanded[key] = set
	}
	if _, pinned := set[recordID]; pinned {
		delete(set, recordID)
	} else {
		set[recordID] = domain.ClonePersonRecord(rec)
	}
	s.panelCollapsed = len(set) > 0
}

// ClearExpandedRecords empties the pinned set for the current selection and
// forces the browsing panel open.
func (s *Session) ClearExpandedRecords() {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := s.selectionKey()
	if key != "" {
		delete(s.expanded, key)
	}
	s.panelCollapsed = false
}

// ExpandedRecords returns the pinned records for the current selection,
// sorted by record id.
func (s *Session) ExpandedRecords() []domain.PersonRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.expanded[s.selectionKey()]
	out := make([]domain.PersonRecord, 0, len(set))
	for _, rec := range set {
		out = append(out, domain.ClonePersonRecord(rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// UpdateSearchTerm sets one filter term; an empty value removes it.
func (s *Session) UpdateSearchTerm(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if value == "" {
		delete(s.searchTerms, key)
		return
	}
	s.searchTerms[key] = value
}

// SearchTerms returns a copy of the active filter terms.
func (s *Session) SearchTerms() domain.SearchTerms {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.searchTerms.Clone()
}

// DataSources returns the cached data-source list.
func (s *Session) DataSources() []domain.DataSource {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.DataSource(nil), s.dataSources...)
}

// CurrentPotentialMatch returns a copy of the working match, if present.
func (s *Session) CurrentPotentialMatch(id string) (domain.WorkingMatch, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wm, ok := s.currentMatches[id]
	if !ok {
		return domain.WorkingMatch{}, false
	}
	return domain.CloneWorkingMatch(wm), true
}

// BaselinePotentialMatch returns a copy of the fetched baseline, if present.
func (s *Session) BaselinePotentialMatch(id string) (domain.PotentialMatch, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.baselineMatches[id]
	if !ok {
		return domain.PotentialMatch{}, false
	}
	return domain.ClonePotentialMatch(m), true
}

// CurrentPerson returns a copy of the working person, if present.
func (s *Session) CurrentPerson(id string) (domain.Person, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.currentPersons[id]
	if !ok {
		return domain.Person{}, false
	}
	return domain.ClonePerson(p), true
}

// PersonSummaries returns the cached person summary list.
func (s *Session) PersonSummaries() []domain.PersonSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.PersonSummary(nil), s.personSummaries...)
}

// PotentialMatchSummaries returns the cached potential-match summary list.
func (s *Session) PotentialMatchSummaries() []domain.PotentialMatchSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.PotentialMatchSummary(nil), s.matchSummaries...)
}

// IsMatchUpdated reports whether the working copy of a match structurally
// differs from its baseline.
func (s *Session) IsMatchUpdated(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	wm, okCur := s.currentMatches[id]
	base, okBase := s.baselineMatches[id]
	if !okCur || !okBase {
		return false
	}
	return domain.IsUpdated(&wm, &base)
}

func (s *Session) finishOp(ctx context.Context, op string, started time.Time, err error) {
	s.metrics.Observe(ctx, op, err == nil, s.nowFn().Sub(started))
}

// NoWorkingCopyError reports an edit against a match with no working copy.
type NoWorkingCopyError struct {
	MatchID string
}

func (e NoWorkingCopyError) Error() string {
	return fmt.Sprintf("no working copy for potential match %q", e.MatchID)
}

// NoBaselineError reports a reset with no fetched baseline to derive from.
type NoBaselineError struct {
	Kind string
	ID   string
}

func (e NoBaselineError) Error() string {
	return fmt.Sprintf("no baseline for %s %q", e.Kind, e.ID)
}

// PreconditionError reports an operation attempted outside its required mode
// or selection state.
type PreconditionError struct {
	Op     string
	Reason string
}

func (e PreconditionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}
