package dataset

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"canceldash/internal/dataprocessing"
	"canceldash/internal/validation"
	"canceldash/pkg/contracts/domain"
)

// ErrNotLoaded is returned when a snapshot is requested before the
// first successful load.
var ErrNotLoaded = errors.New("dataset: source not loaded")

// Snapshot is one immutable load of the normalized, derived dataset.
// Callers must treat Records as read-only; every filter and aggregate
// operation produces fresh values from it.
type Snapshot struct {
	records    []domain.CancellationRecord
	sourcePath string
	hash       string
	loadedAt   time.Time
}

// Records returns the normalized records in source order.
func (s *Snapshot) Records() []domain.CancellationRecord { return s.records }

// Hash returns the hex-encoded content hash of the source file the
// snapshot was built from.
func (s *Snapshot) Hash() string { return s.hash }

// SourcePath returns the path the snapshot was loaded from.
func (s *Snapshot) SourcePath() string { return s.sourcePath }

// LoadedAt returns when the snapshot was built.
func (s *Snapshot) LoadedAt() time.Time { return s.loadedAt }

// Len returns the number of records.
func (s *Snapshot) Len() int { return len(s.records) }

// Store loads the source file once and caches the resulting snapshot,
// keyed by the content hash of the source. Reload swaps the cached
// snapshot only when the content actually changed, so repeated watch
// events on an unchanged file are cheap no-ops.
type Store struct {
	sourcePath string
	logger     *slog.Logger
	validator  *validation.FileValidator

	mu       sync.RWMutex
	snapshot *Snapshot
}

// NewStore creates a store for the given source file. No I/O happens
// until Load is called.
func NewStore(sourcePath string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		sourcePath: sourcePath,
		logger:     logger.With(slog.String("component", "dataset.store")),
		validator:  validation.NewFileValidator(logger),
	}
}

// Load reads, normalizes and derives the source dataset and installs it
// as the cached snapshot. A parse or schema failure leaves any
// previously cached snapshot in place.
func (s *Store) Load(ctx context.Context) (*Snapshot, error) {
	if err := s.validator.ValidateSourceFile(s.sourcePath); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.sourcePath)
	if err != nil {
		return nil, fmt.Errorf("read source %s: %w", s.sourcePath, err)
	}

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	records, err := parseSource(s.sourcePath, data)
	if err != nil {
		return nil, err
	}

	snapshot := &Snapshot{
		records:    records,
		sourcePath: s.sourcePath,
		hash:       hash,
		loadedAt:   time.Now(),
	}

	s.mu.Lock()
	s.snapshot = snapshot
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "dataset loaded",
		slog.String("source", s.sourcePath),
		slog.String("hash", hash[:12]),
		slog.Int("records", len(records)))

	return snapshot, nil
}

// Snapshot returns the cached snapshot, or ErrNotLoaded before the
// first successful Load.
func (s *Store) Snapshot(ctx context.Context) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snapshot == nil {
		return nil, ErrNotLoaded
	}
	return s.snapshot, nil
}

// Reload re-reads the source and swaps the cached snapshot when its
// content hash changed. It reports whether a new snapshot was
// installed.
func (s *Store) Reload(ctx context.Context) (bool, error) {
	if err := s.validator.ValidateSourceFile(s.sourcePath); err != nil {
		return false, err
	}

	data, err := os.ReadFile(s.sourcePath)
	if err != nil {
		return false, fmt.Errorf("read source %s: %w", s.sourcePath, err)
	}

	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	s.mu.RLock()
	current := s.snapshot
	s.mu.RUnlock()

	if current != nil && current.hash == hash {
		s.logger.DebugContext(ctx, "source unchanged, keeping cached snapshot",
			slog.String("hash", hash[:12]))
		return false, nil
	}

	records, err := parseSource(s.sourcePath, data)
	if err != nil {
		return false, err
	}

	snapshot := &Snapshot{
		records:    records,
		sourcePath: s.sourcePath,
		hash:       hash,
		loadedAt:   time.Now(),
	}

	s.mu.Lock()
	s.snapshot = snapshot
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "dataset reloaded",
		slog.String("hash", hash[:12]),
		slog.Int("records", len(records)))

	return true, nil
}

// parseSource dispatches on the source extension: the POS system
// exports the same schema as CSV and as an Excel workbook.
func parseSource(path string, data []byte) ([]domain.CancellationRecord, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return dataprocessing.ParseWorkbook(path)
	}
	return dataprocessing.ParseCSV(bytes.NewReader(data))
}
