// Package report archives finished backtest results as JSON documents in a
// pluggable byte store. Local filesystem and S3-compatible backends are
// provided.
package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/northbeck/papertrade/internal/backtest"
	"github.com/northbeck/papertrade/internal/core"
)

// Storage is the byte-level backend a Store writes through.
type Storage interface {
	// Write stores data at the given path, creating it if needed.
	Write(ctx context.Context, path string, data []byte) error

	// Read retrieves the data stored at the given path.
	Read(ctx context.Context, path string) ([]byte, error)

	// List returns all stored paths under the prefix.
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes the data at the given path.
	Delete(ctx context.Context, path string) error

	// Exists reports whether data exists at the given path.
	Exists(ctx context.Context, path string) (bool, error)
}

const resultPrefix = "backtests"

// Store persists backtest results under backtests/<key>.json.
type Store struct {
	backend Storage
}

// NewStore creates a Store over the given backend.
func NewStore(backend Storage) *Store {
	return &Store{backend: backend}
}

// Save archives the result under the given key, overwriting any previous
// document with the same key.
func (s *Store) Save(ctx context.Context, key string, result *backtest.Result) error {
	if err := validateKey(key); err != nil {
		return err
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return core.WrapError(core.ErrStorageFailed, fmt.Errorf("encode report %s: %w", key, err))
	}
	if err := s.backend.Write(ctx, resultPath(key), data); err != nil {
		return core.WrapError(core.ErrStorageFailed, fmt.Errorf("write report %s: %w", key, err))
	}
	return nil
}

// Load retrieves the result archived under the given key.
func (s *Store) Load(ctx context.Context, key string) (*backtest.Result, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	data, err := s.backend.Read(ctx, resultPath(key))
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, fmt.Errorf("read report %s: %w", key, err))
	}
	var result backtest.Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, fmt.Errorf("decode report %s: %w", key, err))
	}
	return &result, nil
}

// List returns the keys of all archived results in sorted order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	paths, err := s.backend.List(ctx, resultPrefix)
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, fmt.Errorf("list reports: %w", err))
	}

	var keys []string
	for _, p := range paths {
		p = strings.TrimPrefix(p, resultPrefix+"/")
		if !strings.HasSuffix(p, ".json") {
			continue
		}
		keys = append(keys, strings.TrimSuffix(p, ".json"))
	}
	sort.Strings(keys)
	return keys, nil
}

// Exists reports whether a result is archived under the given key.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}
	ok, err := s.backend.Exists(ctx, resultPath(key))
	if err != nil {
		return false, core.WrapError(core.ErrStorageFailed, fmt.Errorf("stat report %s: %w", key, err))
	}
	return ok, nil
}

// Delete removes the result archived under the given key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := s.backend.Delete(ctx, resultPath(key)); err != nil {
		return core.WrapError(core.ErrStorageFailed, fmt.Errorf("delete report %s: %w", key, err))
	}
	return nil
}

func resultPath(key string) string {
	return resultPrefix + "/" + key + ".json"
}

// validateKey rejects keys that would escape the backtests/ prefix or map to
// surprising backend paths.
func validateKey(key string) error {
	switch {
	case key == "":
		return core.WrapError(core.ErrStorageFailed, errors.New("empty report key"))
	case strings.ContainsAny(key, `/\`), strings.Contains(key, ".."):
		return core.WrapError(core.ErrStorageFailed, fmt.Errorf("invalid report key %q", key))
	}
	return nil
}
