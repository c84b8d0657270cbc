package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"io/fs"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/borgmon/schedule-reminder/pkg/logger"
	"github.com/borgmon/schedule-reminder/pkg/models"
	"github.com/spf13/afero"
)

var (
	// ErrLegacyFormat is surfaced when the document root is a flat list.
	// The contents are discarded, not migrated.
	ErrLegacyFormat = errors.New("legacy list-shaped schedule document is not supported")
	// ErrMalformed is surfaced when the document cannot be decoded
	ErrMalformed = errors.New("malformed schedule document")
)

// Document maps a YYYY-MM-DD date key to the entries of that date
type Document map[string][]models.ScheduleEntry

// Dates returns the document's date keys in ascending order
func (d Document) Dates() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ScheduleStore persists the date-partitioned schedule as a single JSON file.
//
// Every read goes back to the file, so changes made by another goroutine or
// process are always picked up. Every mutation is a read-modify-write of the
// whole document, written to a temporary file and renamed over the target so
// readers never observe a partially written document.
type ScheduleStore struct {
	fs   afero.Fs
	path string
	log  logger.Logger

	// serializes read-modify-write cycles inside this process; reads are unlocked
	writeMu sync.Mutex

	// fingerprint of the last rejected file contents, warned about once
	rejectMu sync.Mutex
	rejected uint64
	rejectOK bool
}

// NewScheduleStore creates a store for the document at path on fsys
func NewScheduleStore(fsys afero.Fs, path string, log logger.Logger) *ScheduleStore {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return &ScheduleStore{
		fs:   fsys,
		path: path,
		log:  logger.Default(log),
	}
}

// Path returns the location of the schedule document
func (s *ScheduleStore) Path() string {
	return s.path
}

// Load returns a snapshot of the whole document
func (s *ScheduleStore) Load() (Document, error) {
	return s.read(), nil
}

// LoadForDate returns the entries of date sorted by time, or an empty slice
func (s *ScheduleStore) LoadForDate(date time.Time) ([]models.ScheduleEntry, error) {
	entries := s.read()[models.DateKey(date)]
	out := make([]models.ScheduleEntry, len(entries))
	copy(out, entries)
	sortEntries(out)
	return out, nil
}

// AddEntry appends entry to date and keeps the date sorted. Duplicates are kept.
func (s *ScheduleStore) AddEntry(date time.Time, entry models.ScheduleEntry) error {
	if err := entry.Validate(); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	doc := s.read()
	key := models.DateKey(date)
	doc[key] = append(doc[key], entry)
	sortEntries(doc[key])

	if err := s.write(doc); err != nil {
		return fmt.Errorf("failed to add entry %q on %s: %w", entry.String(), key, err)
	}
	return nil
}

// DeleteEntry removes the first entry on date equal to entry.
// It reports false when nothing matched; that is not an error.
func (s *ScheduleStore) DeleteEntry(date time.Time, entry models.ScheduleEntry) (bool, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	doc := s.read()
	key := models.DateKey(date)
	entries := doc[key]

	idx := -1
	for i, e := range entries {
		if e == entry {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.log.Warning("No entry %q on %s to delete", entry.String(), key)
		return false, nil
	}

	entries = append(entries[:idx], entries[idx+1:]...)
	if len(entries) == 0 {
		delete(doc, key)
	} else {
		doc[key] = entries
	}

	if err := s.write(doc); err != nil {
		return false, fmt.Errorf("failed to delete entry %q on %s: %w", entry.String(), key, err)
	}
	return true, nil
}

// Merge adds every entry that is not already present on its date in a single
// read-modify-write and returns how many were added
func (s *ScheduleStore) Merge(batch map[string][]models.ScheduleEntry) (int, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	doc := s.read()
	added := 0
	for key, entries := range batch {
		if _, err := models.ParseDateKey(key); err != nil {
			s.log.Warning("Skipping entries with invalid date key %q", key)
			continue
		}
		for _, entry := range entries {
			if err := entry.Validate(); err != nil {
				s.log.Warning("Skipping invalid entry %q on %s: %v", entry.String(), key, err)
				continue
			}
			if containsEntry(doc[key], entry) {
				continue
			}
			doc[key] = append(doc[key], entry)
			added++
		}
		if len(doc[key]) > 0 {
			sortEntries(doc[key])
		}
	}

	if added == 0 {
		return 0, nil
	}
	if err := s.write(doc); err != nil {
		return 0, fmt.Errorf("failed to merge %d entries: %w", added, err)
	}
	return added, nil
}

// read loads the document, treating any failure as an empty schedule
func (s *ScheduleStore) read() Document {
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.log.Warning("Failed to read schedule file %s: %v", s.path, err)
		}
		return Document{}
	}

	doc, err := decodeDocument(data)
	if err != nil {
		if s.firstRejection(data) {
			s.log.Warning("Ignoring schedule file %s: %v", s.path, err)
		}
		return Document{}
	}
	s.clearRejection()
	return doc
}

// firstRejection reports whether data differs from the last rejected contents
func (s *ScheduleStore) firstRejection(data []byte) bool {
	h := fnv.New64a()
	h.Write(data)
	sum := h.Sum64()

	s.rejectMu.Lock()
	defer s.rejectMu.Unlock()
	if s.rejectOK && s.rejected == sum {
		return false
	}
	s.rejected, s.rejectOK = sum, true
	return true
}

func (s *ScheduleStore) clearRejection() {
	s.rejectMu.Lock()
	s.rejectOK = false
	s.rejectMu.Unlock()
}

// write replaces the document atomically via temp file and rename
func (s *ScheduleStore) write(doc Document) error {
	data, err := encodeDocument(doc)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := afero.TempFile(s.fs, dir, ".schedules-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		s.fs.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		s.fs.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		s.fs.Remove(tmpName)
		return err
	}

	if err := s.fs.Rename(tmpName, s.path); err != nil {
		s.fs.Remove(tmpName)
		return err
	}
	return nil
}

func decodeDocument(data []byte) (Document, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return Document{}, nil
	}

	switch data[0] {
	case '[':
		return nil, ErrLegacyFormat
	case '{':
	default:
		return nil, ErrMalformed
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	// Keep the in-memory invariants even if the file was edited by hand
	for key, entries := range doc {
		if len(entries) == 0 {
			delete(doc, key)
			continue
		}
		sortEntries(entries)
	}
	if doc == nil {
		doc = Document{}
	}
	return doc, nil
}

func encodeDocument(doc Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func sortEntries(entries []models.ScheduleEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Time < entries[j].Time
	})
}

func containsEntry(entries []models.ScheduleEntry, entry models.ScheduleEntry) bool {
	for _, e := range entries {
		if e == entry {
			return true
		}
	}
	return false
}
