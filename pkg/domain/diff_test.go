package domain

import (
	"testing"
	"time"
)

func testMatch() PotentialMatch {
	v1 := int64(1)
	v2 := int64(4)
	return PotentialMatch{
		ID:      "m1",
		Version: 2,
		Created: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		Persons: []Person{
			{ID: "p1", Version: &v1, Records: []PersonRecord{
				{ID: "r1", PersonID: "p1", FirstName: "Ada"},
				{ID: "r2", PersonID: "p1", FirstName: "Ada"},
			}},
			{ID: "p2", Version: &v2, Records: []PersonRecord{
				{ID: "r3", PersonID: "p2", FirstName: "Ade"},
			}},
		},
		Results: []MatchResult{
			{PersonRecordLID: "r1", PersonRecordRID: "r3", MatchProbability: 0.92},
			{PersonRecordLID: "r2", PersonRecordRID: "r3", MatchProbability: 0.81},
		},
	}
}

func TestIsUpdated(t *testing.T) {
	t.Run("nil sides are never dirty", func(t *testing.T) {
		base := testMatch()
		wm := NewWorkingMatch(base)
		if IsUpdated(nil, &base) || IsUpdated(&wm, nil) {
			t.Fatal("nil side must compare clean")
		}
	})

	t.Run("fresh derivation is clean", func(t *testing.T) {
		base := testMatch()
		wm := NewWorkingMatch(base)
		if IsUpdated(&wm, &base) {
			t.Fatal("unedited working copy reported dirty")
		}
	})

	t.Run("record reassignment is dirty", func(t *testing.T) {
		base := testMatch()
		wm := NewWorkingMatch(base)
		p1 := wm.Persons["p1"]
		p2 := wm.Persons["p2"]
		moved := p1.Records[0]
		moved.PersonID = "p2"
		p1.Records = p1.Records[1:]
		p2.Records = append(p2.Records, moved)
		wm.Persons["p1"] = p1
		wm.Persons["p2"] = p2
		if !IsUpdated(&wm, &base) {
			t.Fatal("reassignment not detected")
		}
	})

	t.Run("empty extra person is clean", func(t *testing.T) {
		base := testMatch()
		wm := NewWorkingMatch(base)
		wm.Persons["new-person-1"] = Person{ID: "new-person-1", Records: []PersonRecord{}}
		if IsUpdated(&wm, &base) {
			t.Fatal("record-less placeholder reported dirty")
		}
	})

	t.Run("extra person with records is dirty", func(t *testing.T) {
		base := testMatch()
		wm := NewWorkingMatch(base)
		p1 := wm.Persons["p1"]
		moved := p1.Records[0]
		moved.PersonID = "new-person-1"
		p1.Records = p1.Records[1:]
		wm.Persons["p1"] = p1
		wm.Persons["new-person-1"] = Person{ID: "new-person-1", Records: []PersonRecord{moved}}
		if !IsUpdated(&wm, &base) {
			t.Fatal("populated placeholder not detected")
		}
	})

	t.Run("baseline person absent from working copy", func(t *testing.T) {
		base := testMatch()
		wm := NewWorkingMatch(base)
		delete(wm.Persons, "p2")
		if !IsUpdated(&wm, &base) {
			t.Fatal("missing person with records not detected")
		}
		emptied := base
		emptied.Persons = append([]Person{}, base.Persons...)
		emptied.Persons[1] = Person{ID: "p2", Records: nil}
		wm2 := NewWorkingMatch(emptied)
		delete(wm2.Persons, "p2")
		if IsUpdated(&wm2, &emptied) {
			t.Fatal("missing record-less person reported dirty")
		}
	})

	t.Run("placeholder with records compares against empty", func(t *testing.T) {
		base := testMatch()
		wm := NewWorkingMatch(base)
		// keep person count equal by swapping one person for a placeholder
		delete(wm.Persons, "p2")
		wm.Persons["new-person-1"] = Person{ID: "new-person-1", Records: []PersonRecord{
			{ID: "r3", PersonID: "new-person-1"},
		}}
		if !IsUpdated(&wm, &base) {
			t.Fatal("placeholder membership not detected")
		}
	})
}

func TestNewWorkingMatchDerivedMetadata(t *testing.T) {
	base := testMatch()
	wm := NewWorkingMatch(base)
	r1 := wm.Persons["p1"].Records[0]
	if r1.HighestMatchProbability == nil || *r1.HighestMatchProbability != 0.92 {
		t.Fatalf("r1 probability = %v, want 0.92", r1.HighestMatchProbability)
	}
	r3 := wm.Persons["p2"].Records[0]
	if r3.HighestMatchProbability == nil || *r3.HighestMatchProbability != 0.92 {
		t.Fatalf("r3 probability = %v, want 0.92", r3.HighestMatchProbability)
	}
	// baseline stays unannotated
	if base.Persons[0].Records[0].HighestMatchProbability != nil {
		t.Fatal("baseline record was annotated")
	}
}

func TestPlaceholderHelpers(t *testing.T) {
	if PlaceholderID(3) != "new-person-3" {
		t.Fatalf("unexpected placeholder id %q", PlaceholderID(3))
	}
	if n, ok := PlaceholderSuffix("new-person-7"); !ok || n != 7 {
		t.Fatalf("suffix = %d/%v", n, ok)
	}
	if _, ok := PlaceholderSuffix("p1"); ok {
		t.Fatal("p1 is not a placeholder")
	}
	if _, ok := PlaceholderSuffix("new-person-x"); ok {
		t.Fatal("non-numeric suffix accepted")
	}
	if !(Person{ID: "new-person-1"}).IsPlaceholder() {
		t.Fatal("placeholder not recognized")
	}
	if (Person{ID: "abc123"}).IsPlaceholder() {
		t.Fatal("registry id misclassified")
	}
}
