package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"linkreview/internal/blob"
	"linkreview/internal/infra/persistence/memory"
	"linkreview/internal/registry"
	"linkreview/internal/transfer"
	"linkreview/pkg/domain"
)

func testServer(t *testing.T) (*httptest.Server, *registry.Store, blob.Store, *transfer.Service) {
	t.Helper()
	seq := 0
	store := registry.NewStore(memory.NewStore(),
		registry.WithStoreIDGenerator(func() string {
			seq++
			return fmt.Sprintf("id-%02d", seq)
		}),
		registry.WithStoreClock(func() time.Time {
			return time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
		}),
	)
	blobs := blob.NewMemory()
	transfers := transfer.NewService(store, blobs, nil)
	srv := httptest.NewServer(NewHandler(store, blobs, transfers, nil))
	t.Cleanup(srv.Close)
	return srv, store, blobs, transfers
}

func seed(t *testing.T, store *registry.Store) (domain.Person, domain.Person, domain.PotentialMatchRecord) {
	t.Helper()
	ctx := context.Background()
	p1, err := store.AddPerson(ctx, []domain.PersonRecord{
		{ID: "r1", FirstName: "Jo", DataSource: "north"},
		{ID: "r2", FirstName: "Jo", DataSource: "south"},
	})
	if err != nil {
		t.Fatalf("seed person: %v", err)
	}
	p2, err := store.AddPerson(ctx, []domain.PersonRecord{
		{ID: "r3", FirstName: "Joe", DataSource: "east"},
	})
	if err != nil {
		t.Fatalf("seed person: %v", err)
	}
	match, err := store.AddPotentialMatch(ctx, []string{p1.ID, p2.ID}, []domain.MatchResult{
		{PersonRecordLID: "r1", PersonRecordRID: "r3", MatchProbability: 0.9},
	})
	if err != nil {
		t.Fatalf("seed match: %v", err)
	}
	return p1, p2, match
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestHandlerReads(t *testing.T) {
	srv, store, _, _ := testServer(t)
	p1, _, match := seed(t, store)

	t.Run("data sources", func(t *testing.T) {
		var payload struct {
			DataSources []domain.DataSource `json:"data_sources"`
		}
		if code := getJSON(t, srv.URL+"/api/v1/data-sources", &payload); code != http.StatusOK {
			t.Fatalf("status %d", code)
		}
		if len(payload.DataSources) != 3 {
			t.Fatalf("sources = %v", payload.DataSources)
		}
	})

	t.Run("person detail", func(t *testing.T) {
		var payload struct {
			Person domain.Person `json:"person"`
		}
		if code := getJSON(t, srv.URL+"/api/v1/persons/"+p1.ID, &payload); code != http.StatusOK {
			t.Fatalf("status %d", code)
		}
		if payload.Person.ID != p1.ID || len(payload.Person.Records) != 2 {
			t.Fatalf("person = %+v", payload.Person)
		}
	})

	t.Run("person not found", func(t *testing.T) {
		if code := getJSON(t, srv.URL+"/api/v1/persons/absent", nil); code != http.StatusNotFound {
			t.Fatalf("status %d", code)
		}
	})

	t.Run("match detail", func(t *testing.T) {
		var payload struct {
			PotentialMatch domain.PotentialMatch `json:"potential_match"`
		}
		if code := getJSON(t, srv.URL+"/api/v1/potential-matches/"+match.ID, &payload); code != http.StatusOK {
			t.Fatalf("status %d", code)
		}
		if len(payload.PotentialMatch.Persons) != 2 || len(payload.PotentialMatch.Results) != 1 {
			t.Fatalf("match = %+v", payload.PotentialMatch)
		}
	})

	t.Run("summaries with pagination", func(t *testing.T) {
		var payload struct {
			Persons    []domain.PersonSummary `json:"persons"`
			Pagination domain.Pagination      `json:"pagination"`
		}
		if code := getJSON(t, srv.URL+"/api/v1/persons?page=1&page_size=1", &payload); code != http.StatusOK {
			t.Fatalf("status %d", code)
		}
		if len(payload.Persons) != 1 || !payload.Pagination.HasNext {
			t.Fatalf("payload = %+v", payload)
		}
	})

	t.Run("filtered summaries", func(t *testing.T) {
		var payload struct {
			Persons []domain.PersonSummary `json:"persons"`
		}
		if code := getJSON(t, srv.URL+"/api/v1/persons?data_source=north", &payload); code != http.StatusOK {
			t.Fatalf("status %d", code)
		}
		if len(payload.Persons) != 1 || payload.Persons[0].ID != p1.ID {
			t.Fatalf("persons = %v", payload.Persons)
		}
	})
}

func TestHandlerMatchWrite(t *testing.T) {
	srv, store, _, _ := testServer(t)
	p1, p2, match := seed(t, store)

	t.Run("conflict returns 409 with versions", func(t *testing.T) {
		body, _ := json.Marshal(domain.MatchUpdate{Version: match.Version + 4})
		resp, err := http.Post(srv.URL+"/api/v1/potential-matches/"+match.ID+"/match", "application/json", bytes.NewReader(body))
		if err != nil {
			t.Fatalf("post: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusConflict {
			t.Fatalf("status %d", resp.StatusCode)
		}
		var env struct {
			Actual int64 `json:"actual_version"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if env.Actual != match.Version {
			t.Fatalf("actual = %d", env.Actual)
		}
	})

	t.Run("successful resolution", func(t *testing.T) {
		update := domain.MatchUpdate{
			Version: match.Version,
			PersonUpdates: []domain.PersonUpdate{
				{ID: &p1.ID, Version: p1.Version, NewPersonRecordIDs: []string{"r1", "r2", "r3"}},
				{ID: &p2.ID, Version: p2.Version, NewPersonRecordIDs: nil},
			},
		}
		body, _ := json.Marshal(update)
		resp, err := http.Post(srv.URL+"/api/v1/potential-matches/"+match.ID+"/match", "application/json", bytes.NewReader(body))
		if err != nil {
			t.Fatalf("post: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNoContent {
			t.Fatalf("status %d", resp.StatusCode)
		}
		if code := getJSON(t, srv.URL+"/api/v1/potential-matches/"+match.ID, nil); code != http.StatusNotFound {
			t.Fatalf("resolved match still served: %d", code)
		}
	})
}

func TestHandlerRoundTripWithHTTPClient(t *testing.T) {
	srv, store, _, _ := testServer(t)
	p1, _, match := seed(t, store)
	client := registry.NewHTTPClient(srv.URL, srv.Client())
	ctx := context.Background()

	fetched, err := client.FetchPotentialMatch(ctx, match.ID)
	if err != nil {
		t.Fatalf("fetch match: %v", err)
	}
	if fetched.ID != match.ID || len(fetched.Persons) != 2 {
		t.Fatalf("fetched = %+v", fetched)
	}

	person, err := client.FetchPerson(ctx, p1.ID)
	if err != nil {
		t.Fatalf("fetch person: %v", err)
	}
	if person.ID != p1.ID {
		t.Fatalf("person = %+v", person)
	}

	summaries, err := client.FetchPotentialMatches(ctx, domain.SearchTerms{domain.TermFirstName: "jo"})
	if err != nil {
		t.Fatalf("fetch summaries: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("summaries = %v", summaries)
	}

	err = client.MatchPersonRecords(ctx, match.ID, match.Version+9, nil)
	var conflict registry.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("error = %v, want ConflictError", err)
	}

	_, err = client.FetchPerson(ctx, "absent")
	var notFound registry.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("error = %v, want NotFoundError", err)
	}
}

func TestHandlerStorageAndTransfer(t *testing.T) {
	srv, store, blobs, transfers := testServer(t)
	seed(t, store)

	t.Run("backends", func(t *testing.T) {
		var payload struct {
			Driver          string `json:"driver"`
			SupportsPresign bool   `json:"supports_presign"`
		}
		if code := getJSON(t, srv.URL+"/api/v1/storage/backends", &payload); code != http.StatusOK {
			t.Fatalf("status %d", code)
		}
		if payload.Driver != "memory" || payload.SupportsPresign {
			t.Fatalf("payload = %+v", payload)
		}
	})

	t.Run("storage test endpoint", func(t *testing.T) {
		resp, err := http.Post(srv.URL+"/api/v1/storage/test", "application/json", strings.NewReader(`{"uri":"mem://exports/out.csv"}`))
		if err != nil {
			t.Fatalf("post: %v", err)
		}
		defer resp.Body.Close()
		var payload struct {
			OK  bool   `json:"ok"`
			Key string `json:"key"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !payload.OK || payload.Key != "exports/out.csv" {
			t.Fatalf("payload = %+v", payload)
		}
	})

	t.Run("export job lifecycle", func(t *testing.T) {
		resp, err := http.Post(srv.URL+"/api/v1/person-records/export", "application/json", strings.NewReader(`{"uri":"mem://exports/records.csv"}`))
		if err != nil {
			t.Fatalf("post: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusAccepted {
			t.Fatalf("status %d", resp.StatusCode)
		}
		var payload struct {
			Job transfer.Job `json:"job"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
			t.Fatalf("decode: %v", err)
		}
		transfers.Wait()

		var jobPayload struct {
			Job transfer.Job `json:"job"`
		}
		if code := getJSON(t, srv.URL+"/api/v1/person-records/jobs/"+payload.Job.ID, &jobPayload); code != http.StatusOK {
			t.Fatalf("status %d", code)
		}
		if jobPayload.Job.Status != transfer.StatusSucceeded {
			t.Fatalf("job = %+v", jobPayload.Job)
		}
		if jobPayload.Job.RecordCount != 3 {
			t.Fatalf("record count = %d", jobPayload.Job.RecordCount)
		}
		if _, err := blobs.Head(context.Background(), "exports/records.csv"); err != nil {
			t.Fatalf("exported blob missing: %v", err)
		}
	})
}
