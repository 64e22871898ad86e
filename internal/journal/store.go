// Package journal persists bounded, append-only JSON logs: the per-terminal
// session history and sales journal, and the global error journal.
//
// A journal file holds a single pretty-printed JSON array, oldest entry
// first. Reads are lenient: a missing, empty or corrupt file is treated as an
// empty journal. Writes go through a filelock.Guard and replace the file
// atomically.
package journal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"

	"github.com/LISSConsulting/LISSTech.SATHub/internal/filelock"
	"github.com/LISSConsulting/LISSTech.SATHub/internal/logging"
)

// indent matches the four-space layout operators already diff by hand.
const indent = "    "

// Store reads and writes journals of entries of type T.
type Store[T any] struct {
	Guard  filelock.Guard
	Logger *slog.Logger
}

// NewStore returns a Store using guard for writes.
func NewStore[T any](guard filelock.Guard, logger *slog.Logger) Store[T] {
	if logger == nil {
		logger = logging.Discard()
	}
	guard.Logger = logger
	return Store[T]{Guard: guard, Logger: logger}
}

// Load returns the entries stored at path. It never fails: unreadable or
// malformed content yields an empty slice and a warning. Elements that do
// not decode as T are skipped; the file itself is left untouched.
func (s Store[T]) Load(path string) []T {
	entries, skipped, err := decodeFile[T](path)
	if err != nil {
		s.logger().Warn("journal unreadable, starting empty", "path", path, "error", err)
		return []T{}
	}
	if skipped > 0 {
		s.logger().Warn("journal entries of unexpected shape skipped", "path", path, "skipped", skipped)
	}
	return entries
}

// Append adds entry as the newest element of the journal at path, evicting
// the oldest entries so the journal never exceeds capacity. Existing
// elements are kept verbatim, including ones other writers stored in a
// shape T cannot represent; only content that is not a JSON array is
// replaced. When the write cannot be completed the entry is dropped and an
// error wrapping filelock.ErrWriteConflict is returned.
func (s Store[T]) Append(ctx context.Context, path string, entry T, capacity int) error {
	if capacity <= 0 {
		return fmt.Errorf("journal: append %s: capacity must be > 0", path)
	}
	value, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("journal: append %s: %w", path, err)
	}
	return s.Guard.Do(ctx, path, func() error {
		elements, err := readElements(path)
		if err != nil {
			s.logger().Warn("journal unreadable, rewriting", "path", path, "error", err)
			elements = nil
		}
		for len(elements) >= capacity {
			elements = elements[1:]
		}
		elements = append(elements, jsontext.Value(value))
		return writeFile(path, elements)
	})
}

// Write replaces the journal at path with entries.
func (s Store[T]) Write(ctx context.Context, path string, entries []T) error {
	return s.Guard.Do(ctx, path, func() error {
		return writeFile(path, entries)
	})
}

func (s Store[T]) logger() *slog.Logger {
	if s.Logger == nil {
		return logging.Discard()
	}
	return s.Logger
}

// readElements returns the raw elements of the JSON array at path. A
// missing or empty file is an empty journal.
func readElements(path string) ([]jsontext.Value, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []jsontext.Value{}, nil
		}
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return []jsontext.Value{}, nil
	}
	var elements []jsontext.Value
	if err := json.Unmarshal(data, &elements); err != nil {
		return nil, err
	}
	if elements == nil {
		elements = []jsontext.Value{}
	}
	return elements, nil
}

// decodeFile decodes each element of the journal at path on its own and
// reports how many did not fit T.
func decodeFile[T any](path string) ([]T, int, error) {
	elements, err := readElements(path)
	if err != nil {
		return nil, 0, err
	}
	entries := make([]T, 0, len(elements))
	skipped := 0
	for _, v := range elements {
		var e T
		if err := json.Unmarshal(v, &e); err != nil {
			skipped++
			continue
		}
		entries = append(entries, e)
	}
	return entries, skipped, nil
}

// writeFile replaces path using a write-then-rename so readers never observe
// a partially written journal.
func writeFile[T any](path string, entries []T) error {
	if entries == nil {
		entries = []T{}
	}
	data, err := json.Marshal(entries,
		jsontext.WithIndent(indent),
		jsontext.SpaceAfterColon(true),
		json.Deterministic(true),
	)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	if _, writeErr := tmp.Write(data); writeErr != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write: %w", writeErr)
	}
	if closeErr := tmp.Close(); closeErr != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close: %w", closeErr)
	}
	if renameErr := os.Rename(tmp.Name(), path); renameErr != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("finalize: %w", renameErr)
	}
	return nil
}
