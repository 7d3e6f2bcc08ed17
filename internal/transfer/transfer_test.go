package transfer

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"linkreview/internal/blob"
	"linkreview/internal/infra/persistence/memory"
	"linkreview/internal/registry"
	"linkreview/pkg/domain"
)

func TestCSVRoundTrip(t *testing.T) {
	records := []domain.PersonRecord{
		{ID: "r1", PersonID: "p1", FirstName: "Jo", LastName: "Nash", BirthDate: "1980-01-02", DataSource: "north", SourcePersonID: "src-1"},
		{ID: "r2", PersonID: "p2", FirstName: "Joe", City: "Salem", State: "MA", DataSource: "east"},
	}
	var buf bytes.Buffer
	if err := WriteRecords(&buf, records); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := ReadRecords(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != len(records) {
		t.Fatalf("%d records", len(got))
	}
	for i := range records {
		if got[i] != records[i] {
			t.Fatalf("record %d: got %+v, want %+v", i, got[i], records[i])
		}
	}
}

func TestReadRecordsValidation(t *testing.T) {
	t.Run("empty payload", func(t *testing.T) {
		if _, err := ReadRecords(strings.NewReader("")); err == nil {
			t.Fatal("missing header accepted")
		}
	})

	t.Run("unknown column", func(t *testing.T) {
		_, err := ReadRecords(strings.NewReader("first_name,favourite_color\nJo,green\n"))
		if _, ok := err.(InvalidFormatError); !ok {
			t.Fatalf("error = %v, want InvalidFormatError", err)
		}
	})

	t.Run("ragged row", func(t *testing.T) {
		_, err := ReadRecords(strings.NewReader("first_name,last_name\nJo\n"))
		if _, ok := err.(InvalidFormatError); !ok {
			t.Fatalf("error = %v, want InvalidFormatError", err)
		}
	})

	t.Run("subset of columns", func(t *testing.T) {
		got, err := ReadRecords(strings.NewReader("first_name,data_source\nJo,north\n"))
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if len(got) != 1 || got[0].FirstName != "Jo" || got[0].DataSource != "north" {
			t.Fatalf("got %+v", got)
		}
	})
}

func TestParseStorageURI(t *testing.T) {
	cases := []struct {
		name    string
		uri     string
		driver  blob.Driver
		wantKey string
		wantErr bool
	}{
		{"s3 uri", "s3://review-bucket/imports/in.csv", blob.DriverS3, "imports/in.csv", false},
		{"s3 uri wrong driver", "s3://review-bucket/in.csv", blob.DriverMemory, "", true},
		{"s3 invalid bucket", "s3://Bad_Bucket/in.csv", blob.DriverS3, "", true},
		{"s3 missing key", "s3://review-bucket", blob.DriverS3, "", true},
		{"file uri", "file:///exports/out.csv", blob.DriverFilesystem, "exports/out.csv", false},
		{"file uri wrong driver", "file:///out.csv", blob.DriverS3, "", true},
		{"mem uri", "mem://jobs/out.csv", blob.DriverMemory, "jobs/out.csv", false},
		{"bare key", "plain/key.csv", blob.DriverFilesystem, "plain/key.csv", false},
		{"empty", "  ", blob.DriverMemory, "", true},
		{"unknown scheme", "ftp://host/x.csv", blob.DriverFilesystem, "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			key, err := ParseStorageURI(tc.uri, tc.driver)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got key %q", key)
				}
				return
			}
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if key != tc.wantKey {
				t.Fatalf("key = %q, want %q", key, tc.wantKey)
			}
		})
	}
}

func testService(t *testing.T) (*Service, *registry.Store, blob.Store) {
	t.Helper()
	seq := 0
	store := registry.NewStore(memory.NewStore(),
		registry.WithStoreIDGenerator(func() string {
			seq++
			return fmt.Sprintf("id-%02d", seq)
		}),
	)
	blobs := blob.NewMemory()
	svc := NewService(store, blobs, nil)
	jobSeq := 0
	svc.idFn = func() string {
		jobSeq++
		return fmt.Sprintf("job-%02d", jobSeq)
	}
	svc.SetClock(func() time.Time { return time.Date(2025, 7, 2, 9, 0, 0, 0, time.UTC) })
	return svc, store, blobs
}

func TestImportJob(t *testing.T) {
	svc, store, blobs := testService(t)
	csv := "first_name,last_name,data_source\nJo,Nash,north\nJoe,Nash,east\n"
	if _, err := blobs.Put(context.Background(), "imports/in.csv", strings.NewReader(csv), blob.PutOptions{ContentType: "text/csv"}); err != nil {
		t.Fatalf("put: %v", err)
	}

	job, err := svc.StartImport("mem://imports/in.csv")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if job.Status != StatusQueued || job.Kind != KindImport {
		t.Fatalf("job = %+v", job)
	}
	svc.Wait()

	done, ok := svc.GetJob(job.ID)
	if !ok {
		t.Fatal("job vanished")
	}
	if done.Status != StatusSucceeded || done.RecordCount != 2 {
		t.Fatalf("job = %+v", done)
	}

	records, err := store.ListAllRecords(context.Background())
	if err != nil {
		t.Fatalf("list records: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("%d records imported", len(records))
	}
	owners := map[string]bool{}
	for _, rec := range records {
		if rec.PersonID == "" || rec.ID == "" {
			t.Fatalf("record missing ids: %+v", rec)
		}
		owners[rec.PersonID] = true
	}
	if len(owners) != 2 {
		t.Fatalf("%d owners, want one person per row", len(owners))
	}
}

func TestImportJobFailure(t *testing.T) {
	svc, _, _ := testService(t)
	job, err := svc.StartImport("mem://imports/missing.csv")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	svc.Wait()
	done, _ := svc.GetJob(job.ID)
	if done.Status != StatusFailed || done.Error == "" {
		t.Fatalf("job = %+v", done)
	}
}

func TestExportJob(t *testing.T) {
	svc, store, blobs := testService(t)
	ctx := context.Background()
	if _, err := store.AddPerson(ctx, []domain.PersonRecord{{FirstName: "Jo", DataSource: "north"}}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	job, err := svc.StartExport("mem://exports/out.csv")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	svc.Wait()
	done, _ := svc.GetJob(job.ID)
	if done.Status != StatusSucceeded || done.RecordCount != 1 {
		t.Fatalf("job = %+v", done)
	}

	_, body, err := blobs.Get(ctx, "exports/out.csv")
	if err != nil {
		t.Fatalf("get blob: %v", err)
	}
	defer body.Close()
	records, err := ReadRecords(body)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if len(records) != 1 || records[0].FirstName != "Jo" {
		t.Fatalf("records = %+v", records)
	}
}

func TestStartRejectsInvalidURI(t *testing.T) {
	svc, _, _ := testService(t)
	if _, err := svc.StartImport("s3://bucket/in.csv"); err == nil {
		t.Fatal("mismatched scheme accepted")
	}
	if _, ok := svc.GetJob("job-01"); ok {
		t.Fatal("job registered despite rejection")
	}
}
