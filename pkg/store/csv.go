// Package store is the local, authoritative record store: one CSV file with
// a fixed header, appended to by rewriting the whole file atomically.
package store

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"idea-harvest/pkg/domain"
	"idea-harvest/pkg/logging"
)

var (
	// ErrCorruptStore means the file exists but is not a record store.
	ErrCorruptStore = errors.New("record store is corrupt")
	// ErrRewriteMismatch means the rewritten file did not read back as written;
	// the previous file is left in place.
	ErrRewriteMismatch = errors.New("rewritten store does not match")
)

// CSVStore keeps every CanonicalRecord ever persisted, in append order.
type CSVStore struct {
	path string
	mu   sync.Mutex
	log  *slog.Logger
}

func NewCSVStore(path string) *CSVStore {
	return &CSVStore{path: path, log: logging.New("store")}
}

// Path is the backing file.
func (s *CSVStore) Path() string {
	return s.path
}

// ReadAll returns every stored record. A missing file is an empty store.
func (s *CSVStore) ReadAll(ctx context.Context) ([]domain.CanonicalRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return readFile(s.path)
}

// Append adds records after the existing ones. The full file is written to a
// temporary sibling, synced, read back and verified, then renamed over the
// original, so a crash leaves either the old or the new file.
func (s *CSVStore) Append(ctx context.Context, records []domain.CanonicalRecord) error {
	if len(records) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := readFile(s.path)
	if err != nil {
		return err
	}
	all := append(existing, records...)

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp store: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op after a successful rename

	if err := writeRecords(tmp, all); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp store: %w", err)
	}

	written, err := readFile(tmpPath)
	if err != nil {
		return err
	}
	if err := verify(all, written); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("replace store: %w", err)
	}
	s.log.Info("appended records", "appended", len(records), "total", len(all), "path", s.path)
	return nil
}

// Find returns the record with id.
func (s *CSVStore) Find(ctx context.Context, id string) (domain.CanonicalRecord, bool, error) {
	records, err := s.ReadAll(ctx)
	if err != nil {
		return domain.CanonicalRecord{}, false, err
	}
	i := slices.IndexFunc(records, func(r domain.CanonicalRecord) bool { return r.ID == id })
	if i < 0 {
		return domain.CanonicalRecord{}, false, nil
	}
	return records[i], true, nil
}

func readFile(path string) ([]domain.CanonicalRecord, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(domain.RecordHeader)

	header, err := r.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read header: %v", ErrCorruptStore, err)
	}
	if !slices.Equal(header, domain.RecordHeader) {
		return nil, fmt.Errorf("%w: unexpected header %v", ErrCorruptStore, header)
	}

	var records []domain.CanonicalRecord
	for line := 2; ; line++ {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrCorruptStore, line, err)
		}
		rec, err := domain.RecordFromRow(row)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrCorruptStore, line, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func writeRecords(w io.Writer, records []domain.CanonicalRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(domain.RecordHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := cw.WriteAll(domain.Rows(records)); err != nil {
		return fmt.Errorf("write records: %w", err)
	}
	return nil
}

func verify(want, got []domain.CanonicalRecord) error {
	if len(want) != len(got) {
		return fmt.Errorf("%w: wrote %d records, read back %d", ErrRewriteMismatch, len(want), len(got))
	}
	for i := range want {
		if want[i].ID != got[i].ID {
			return fmt.Errorf("%w: record %d is %q, expected %q", ErrRewriteMismatch, i, got[i].ID, want[i].ID)
		}
	}
	return nil
}
