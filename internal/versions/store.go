// Package versions persists run records and the index that points at them.
//
// Layout of the store directory:
//
//	index.json                           ordered list of index entries
//	<scriptBase>_<YYYYMMDD_HHMMSS>.json  one run record per execution
//	<scriptBase>_<YYYYMMDD_HHMMSS>_N.json  same, when the name was taken
//
// The index is read fully, appended and rewritten wholesale on every update.
// There is no locking: concurrent writers race and the last one wins.
package versions

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/metorial/runhistory/internal/models"
)

const IndexFile = "index.json"

var (
	ErrNoVersions      = errors.New("no versions recorded")
	ErrMalformedRecord = errors.New("malformed record")
)

// VersionRangeError is returned when a 1-based version number falls outside
// the recorded versions of a file.
type VersionRangeError struct {
	File      string
	Requested int
	Available int
}

func (e *VersionRangeError) Error() string {
	return fmt.Sprintf("only %d version(s) available for %s, requested %d", e.Available, e.File, e.Requested)
}

type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) IndexPath() string {
	return filepath.Join(s.dir, IndexFile)
}

// LoadIndex reads the whole index. A missing index is empty; so is one that
// cannot be parsed, which is logged rather than returned.
func (s *Store) LoadIndex() ([]models.IndexEntry, error) {
	data, err := os.ReadFile(s.IndexPath())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}

	var entries []models.IndexEntry
	if err := decodeStrict(data, &entries); err != nil {
		log.Printf("Ignoring unparsable index %s: %v", s.IndexPath(), err)
		return nil, nil
	}

	for i := range entries {
		if err := entries[i].Validate(); err != nil {
			log.Printf("Ignoring unparsable index %s: entry %d: %v", s.IndexPath(), i, err)
			return nil, nil
		}
	}

	return entries, nil
}

func (s *Store) SaveIndex(entries []models.IndexEntry) error {
	if entries == nil {
		entries = []models.IndexEntry{}
	}
	return s.writeJSON(IndexFile, entries)
}

// AppendIndex performs the read-modify-rewrite cycle for one entry.
func (s *Store) AppendIndex(entry models.IndexEntry) error {
	entries, err := s.LoadIndex()
	if err != nil {
		return err
	}
	return s.SaveIndex(append(entries, entry))
}

// VersionFileName names the record of script written at t.
func VersionFileName(script string, t time.Time) string {
	base := strings.TrimSuffix(script, filepath.Ext(script))
	return fmt.Sprintf("%s_%s.json", base, t.Format(models.VersionStampLayout))
}

// WriteRecord stores record under name, or under name with a numeric
// suffix when that file already exists, and returns the name it used.
// Existing records are never overwritten.
func (s *Store) WriteRecord(name string, record *models.RunRecord) (string, error) {
	if err := record.Validate(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}

	tmp, err := s.writeTemp(name, record)
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp)

	final, err := s.reserve(name)
	if err != nil {
		return "", err
	}

	if err := os.Rename(tmp, filepath.Join(s.dir, final)); err != nil {
		return "", fmt.Errorf("rename %s: %w", final, err)
	}

	return final, nil
}

// reserve claims the first free variant of name: a.json, a_2.json, a_3.json...
func (s *Store) reserve(name string) (string, error) {
	base := strings.TrimSuffix(name, ".json")
	candidate := name

	for n := 2; ; n++ {
		f, err := os.OpenFile(filepath.Join(s.dir, candidate), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			f.Close()
			return candidate, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("reserve %s: %w", candidate, err)
		}
		candidate = fmt.Sprintf("%s_%d.json", base, n)
	}
}

func (s *Store) LoadRecord(name string) (*models.RunRecord, error) {
	if name != filepath.Base(name) {
		return nil, fmt.Errorf("%w: version file %q escapes the store", ErrMalformedRecord, name)
	}

	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return nil, fmt.Errorf("read record %s: %w", name, err)
	}

	var record models.RunRecord
	if err := decodeStrict(data, &record); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedRecord, name, err)
	}
	if err := record.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedRecord, name, err)
	}

	return &record, nil
}

// LoadEntry loads the record an index entry points at and checks that it
// belongs to the same script.
func (s *Store) LoadEntry(entry *models.IndexEntry) (*models.RunRecord, error) {
	record, err := s.LoadRecord(entry.VersionFile)
	if err != nil {
		return nil, err
	}

	if record.File != entry.File {
		return nil, fmt.Errorf("%w: %s belongs to %s, not %s", ErrMalformedRecord, entry.VersionFile, record.File, entry.File)
	}

	return record, nil
}

// Versions returns the index entries of file, newest first.
func (s *Store) Versions(file string) ([]models.IndexEntry, error) {
	entries, err := s.LoadIndex()
	if err != nil {
		return nil, err
	}

	var versions []models.IndexEntry
	for _, entry := range entries {
		if entry.File == file {
			versions = append(versions, entry)
		}
	}
	SortNewestFirst(versions)

	return versions, nil
}

// Select resolves a 1-based version number (1 = most recent) of file and
// returns the entry together with the number of recorded versions.
func (s *Store) Select(file string, version int) (*models.IndexEntry, int, error) {
	versions, err := s.Versions(file)
	if err != nil {
		return nil, 0, err
	}

	if len(versions) == 0 {
		return nil, 0, fmt.Errorf("%w for %s", ErrNoVersions, file)
	}

	if version < 1 || version > len(versions) {
		return nil, len(versions), &VersionRangeError{File: file, Requested: version, Available: len(versions)}
	}

	return &versions[version-1], len(versions), nil
}

// SortNewestFirst orders entries by timestamp, descending. Timestamps share
// one fixed-width layout so the string order is the chronological order.
func SortNewestFirst(entries []models.IndexEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp > entries[j].Timestamp
	})
}

func (s *Store) writeJSON(name string, v interface{}) error {
	tmp, err := s.writeTemp(name, v)
	if err != nil {
		return err
	}
	defer os.Remove(tmp)

	if err := os.Rename(tmp, filepath.Join(s.dir, name)); err != nil {
		return fmt.Errorf("rename %s: %w", name, err)
	}

	return nil
}

// writeTemp encodes v into a temp file next to name and returns its path.
func (s *Store) writeTemp(name string, v interface{}) (string, error) {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return "", fmt.Errorf("create versions dir: %w", err)
	}

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return "", fmt.Errorf("encode %s: %w", name, err)
	}

	tmp, err := os.CreateTemp(s.dir, "."+name+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close %s: %w", name, err)
	}

	return tmp.Name(), nil
}

func decodeStrict(data []byte, v interface{}) error {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return err
	}
	if _, err := decoder.Token(); err != io.EOF {
		return fmt.Errorf("trailing data after JSON document")
	}
	return nil
}
