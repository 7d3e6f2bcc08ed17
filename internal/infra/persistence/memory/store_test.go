package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"linkreview/pkg/domain"
)

func int64p(v int64) *int64 { return &v }

func seedPerson(t *testing.T, s *Store, id string) domain.Person {
	t.Helper()
	var out domain.Person
	err := s.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		var err error
		out, err = tx.CreatePerson(domain.Person{
			ID:      id,
			Version: int64p(1),
			Records: []domain.PersonRecord{{ID: id + "-r1", PersonID: id, FirstName: "Jo"}},
		})
		return err
	})
	if err != nil {
		t.Fatalf("seed %s: %v", id, err)
	}
	return out
}

func TestTransactionRollback(t *testing.T) {
	s := NewStore()
	seedPerson(t, s, "p1")

	boom := errors.New("boom")
	err := s.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if err := tx.DeletePerson("p1"); err != nil {
			t.Fatalf("delete inside tx: %v", err)
		}
		if _, err := tx.CreatePerson(domain.Person{ID: "p2", Version: int64p(1)}); err != nil {
			t.Fatalf("create inside tx: %v", err)
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v", err)
	}

	if _, ok := s.GetPerson("p1"); !ok {
		t.Fatal("p1 lost despite rollback")
	}
	if _, ok := s.GetPerson("p2"); ok {
		t.Fatal("p2 survived rollback")
	}
}

func TestTransactionCommitIsolation(t *testing.T) {
	s := NewStore()
	p := seedPerson(t, s, "p1")

	// Mutating the returned copy must not touch store state.
	p.Records[0].FirstName = "changed"
	got, ok := s.GetPerson("p1")
	if !ok {
		t.Fatal("p1 missing")
	}
	if got.Records[0].FirstName != "Jo" {
		t.Fatal("caller mutation leaked into store")
	}

	err := s.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.UpdatePerson("p1", func(cp *domain.Person) error {
			cp.Records = append(cp.Records, domain.PersonRecord{ID: "p1-r2", PersonID: "p1"})
			*cp.Version++
			return nil
		})
		return err
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ = s.GetPerson("p1")
	if len(got.Records) != 2 || *got.Version != 2 {
		t.Fatalf("person = %+v", got)
	}
}

func TestTransactionErrors(t *testing.T) {
	s := NewStore()
	seedPerson(t, s, "p1")
	ctx := context.Background()

	t.Run("duplicate id", func(t *testing.T) {
		err := s.RunInTransaction(ctx, func(tx domain.Transaction) error {
			_, err := tx.CreatePerson(domain.Person{ID: "p1"})
			return err
		})
		var dup domain.ErrDuplicateID
		if !errors.As(err, &dup) {
			t.Fatalf("error = %v, want ErrDuplicateID", err)
		}
	})

	t.Run("missing id", func(t *testing.T) {
		err := s.RunInTransaction(ctx, func(tx domain.Transaction) error {
			_, err := tx.CreatePerson(domain.Person{})
			return err
		})
		var missing domain.ErrMissingID
		if !errors.As(err, &missing) {
			t.Fatalf("error = %v, want ErrMissingID", err)
		}
	})

	t.Run("update absent", func(t *testing.T) {
		err := s.RunInTransaction(ctx, func(tx domain.Transaction) error {
			_, err := tx.UpdatePerson("ghost", func(*domain.Person) error { return nil })
			return err
		})
		var notFound domain.ErrNotFound
		if !errors.As(err, &notFound) {
			t.Fatalf("error = %v, want ErrNotFound", err)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		if err := s.RunInTransaction(cancelled, func(domain.Transaction) error { return nil }); err == nil {
			t.Fatal("cancelled context accepted")
		}
	})
}

func TestCreatedTimestamp(t *testing.T) {
	s := NewStore()
	fixed := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return fixed })
	p := seedPerson(t, s, "p1")
	if !p.Created.Equal(fixed) {
		t.Fatalf("created = %v", p.Created)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := NewStore()
	seedPerson(t, s, "p1")
	seedPerson(t, s, "p2")
	err := s.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreatePotentialMatch(domain.PotentialMatchRecord{
			ID:        "m1",
			Version:   3,
			PersonIDs: []string{"p1", "p2"},
			Results:   []domain.MatchResult{{PersonRecordLID: "p1-r1", PersonRecordRID: "p2-r1", MatchProbability: 0.8}},
		})
		return err
	})
	if err != nil {
		t.Fatalf("seed match: %v", err)
	}

	snap := s.ExportState()
	if len(snap.Persons) != 2 || len(snap.PotentialMatches) != 1 {
		t.Fatalf("snapshot = %d persons, %d matches", len(snap.Persons), len(snap.PotentialMatches))
	}

	restored := NewStore()
	restored.ImportState(snap)
	got, ok := restored.GetPotentialMatch("m1")
	if !ok {
		t.Fatal("match missing after import")
	}
	if got.Version != 3 || len(got.PersonIDs) != 2 || len(got.Results) != 1 {
		t.Fatalf("match = %+v", got)
	}
	if _, ok := restored.GetPerson("p2"); !ok {
		t.Fatal("person missing after import")
	}

	// Snapshot slices are clones; mutating them leaves the source store alone.
	snap.Persons[0].Records[0].FirstName = "changed"
	orig, _ := s.GetPerson("p1")
	if orig.Records[0].FirstName != "Jo" {
		t.Fatal("snapshot mutation leaked into store")
	}
}
