package versions

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/metorial/runhistory/internal/models"
)

func seedStore(t *testing.T, store *Store, file string, count int) []models.IndexEntry {
	t.Helper()
	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.Local)

	var entries []models.IndexEntry
	for i := 0; i < count; i++ {
		ts := base.Add(time.Duration(i) * time.Minute)
		record := &models.RunRecord{
			Timestamp: ts.Format(models.TimestampLayout),
			File:      file,
			GitCommit: fmt.Sprintf("c%d", i),
			GitBranch: "main",
			Output:    fmt.Sprintf("run %d\n", i),
		}
		name, err := store.WriteRecord(VersionFileName(file, ts), record)
		if err != nil {
			t.Fatalf("Failed to write record: %v", err)
		}
		entry := models.IndexEntry{File: file, Timestamp: record.Timestamp, VersionFile: name, GitCommit: record.GitCommit}
		if err := store.AppendIndex(entry); err != nil {
			t.Fatalf("Failed to append index: %v", err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestLoadIndexMissing(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "versions"))

	entries, err := store.LoadIndex()
	if err != nil {
		t.Fatalf("Expected no error for missing index, got %v", err)
	}

	if len(entries) != 0 {
		t.Errorf("Expected empty index, got %d entries", len(entries))
	}
}

func TestLoadIndexRejectsUnknownFields(t *testing.T) {
	store := NewStore(t.TempDir())
	data := `[{"file":"a.py","timestamp":"2025-01-01T00:00:00.000000","version_file":"a.json","git_commit":"x","extra":1}]`
	if err := os.WriteFile(store.IndexPath(), []byte(data), 0644); err != nil {
		t.Fatalf("Failed to write index: %v", err)
	}

	entries, err := store.LoadIndex()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if len(entries) != 0 {
		t.Errorf("Expected malformed index to load as empty, got %d entries", len(entries))
	}
}

func TestVersionsNewestFirst(t *testing.T) {
	store := NewStore(t.TempDir())
	seedStore(t, store, "a.py", 4)
	seedStore(t, store, "b.py", 2)

	versions, err := store.Versions("a.py")
	if err != nil {
		t.Fatalf("Failed to list versions: %v", err)
	}

	if len(versions) != 4 {
		t.Fatalf("Expected 4 versions, got %d", len(versions))
	}

	for i := 1; i < len(versions); i++ {
		if versions[i-1].Timestamp <= versions[i].Timestamp {
			t.Errorf("Versions not newest first at %d: %s <= %s", i, versions[i-1].Timestamp, versions[i].Timestamp)
		}
	}
}

func TestSelectLatest(t *testing.T) {
	store := NewStore(t.TempDir())
	entries := seedStore(t, store, "a.py", 3)

	entry, total, err := store.Select("a.py", 1)
	if err != nil {
		t.Fatalf("Failed to select version: %v", err)
	}

	if total != 3 {
		t.Errorf("Expected 3 versions, got %d", total)
	}

	if *entry != entries[2] {
		t.Errorf("Expected newest entry %+v, got %+v", entries[2], *entry)
	}
}

func TestSelectOutOfRange(t *testing.T) {
	store := NewStore(t.TempDir())
	seedStore(t, store, "a.py", 2)

	for _, version := range []int{0, 3, -1} {
		_, _, err := store.Select("a.py", version)

		var rangeErr *VersionRangeError
		if !errors.As(err, &rangeErr) {
			t.Fatalf("Expected VersionRangeError for version %d, got %v", version, err)
		}

		if rangeErr.Available != 2 {
			t.Errorf("Expected 2 available versions, got %d", rangeErr.Available)
		}
	}
}

func TestSelectUnknownFile(t *testing.T) {
	store := NewStore(t.TempDir())
	seedStore(t, store, "a.py", 1)

	_, _, err := store.Select("a", 1)
	if !errors.Is(err, ErrNoVersions) {
		t.Errorf("Expected ErrNoVersions for substring match, got %v", err)
	}
}

func TestLoadRecordMalformed(t *testing.T) {
	store := NewStore(t.TempDir())

	cases := map[string]string{
		"missing_file.json": `{"timestamp":"2025-01-01T00:00:00.000000","git_commit":"x","git_branch":"y","output":"","error":"","returncode":0}`,
		"unknown.json":      `{"timestamp":"t","file":"a.py","git_commit":"x","git_branch":"y","output":"","error":"","returncode":0,"stdout":""}`,
		"wrong_type.json":   `{"timestamp":"t","file":"a.py","returncode":"zero"}`,
	}
	for name, data := range cases {
		if err := os.WriteFile(filepath.Join(store.Dir(), name), []byte(data), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}

		if _, err := store.LoadRecord(name); !errors.Is(err, ErrMalformedRecord) {
			t.Errorf("Expected ErrMalformedRecord for %s, got %v", name, err)
		}
	}
}

func TestLoadRecordRejectsPathTraversal(t *testing.T) {
	store := NewStore(t.TempDir())

	if _, err := store.LoadRecord("../secret.json"); !errors.Is(err, ErrMalformedRecord) {
		t.Errorf("Expected ErrMalformedRecord, got %v", err)
	}
}

func TestWriteRecordKeepsExistingRecord(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "versions"))
	ts := time.Date(2025, 1, 1, 12, 0, 0, 0, time.Local)

	var names []string
	for _, file := range []string{"a.py", "a.sh", "a.py"} {
		record := &models.RunRecord{
			Timestamp: ts.Format(models.TimestampLayout),
			File:      file,
			Output:    "from " + file,
		}
		name, err := store.WriteRecord(VersionFileName(file, ts), record)
		if err != nil {
			t.Fatalf("Failed to write record for %s: %v", file, err)
		}
		names = append(names, name)
	}

	want := []string{"a_20250101_120000.json", "a_20250101_120000_2.json", "a_20250101_120000_3.json"}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Expected record name %s, got %s", want[i], names[i])
		}
	}

	record, err := store.LoadRecord(names[1])
	if err != nil {
		t.Fatalf("Failed to load record: %v", err)
	}

	if record.File != "a.sh" || record.Output != "from a.sh" {
		t.Errorf("Expected a.sh record to survive, got %+v", record)
	}
}

func TestLoadEntryRejectsRecordOfAnotherFile(t *testing.T) {
	store := NewStore(t.TempDir())
	entries := seedStore(t, store, "a.py", 1)

	entry := entries[0]
	entry.File = "a.sh"

	if _, err := store.LoadEntry(&entry); !errors.Is(err, ErrMalformedRecord) {
		t.Errorf("Expected ErrMalformedRecord for mismatched record, got %v", err)
	}

	if _, err := store.LoadEntry(&entries[0]); err != nil {
		t.Errorf("Expected matching entry to load, got %v", err)
	}
}

func TestVersionFileName(t *testing.T) {
	ts := time.Date(2024, 12, 31, 23, 59, 58, 0, time.UTC)

	if name := VersionFileName("leccion1.py", ts); name != "leccion1_20241231_235958.json" {
		t.Errorf("Unexpected version file name %s", name)
	}
}

func TestSaveIndexWritesArray(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "versions"))

	if err := store.SaveIndex(nil); err != nil {
		t.Fatalf("Failed to save index: %v", err)
	}

	data, err := os.ReadFile(store.IndexPath())
	if err != nil {
		t.Fatalf("Failed to read index: %v", err)
	}

	if string(data) != "[]\n" {
		t.Errorf("Expected empty JSON array, got %q", data)
	}
}
