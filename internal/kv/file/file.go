// Package file stores kv entries as one JSON file per key under a directory.
package file

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type record struct {
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Value     []byte     `json:"value"`
}

// Store keeps each key in its own file. Writes go through a temp file and a
// rename so readers never observe a partial record. Expired entries are
// removed when read and in bulk by Sweep.
type Store struct {
	dir string
	now func() time.Time
}

// NewStore opens a store rooted at dir, creating the directory if needed.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("kv dir is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create kv dir: %w", err)
	}
	return &Store{dir: dir, now: time.Now}, nil
}

// WithClock replaces the time source.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Get returns the value for key. An expired entry is deleted and reported
// as missing.
func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read kv entry: %w", err)
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, false, fmt.Errorf("decode kv entry: %w", err)
	}
	if rec.ExpiresAt != nil && !s.now().Before(*rec.ExpiresAt) {
		_ = os.Remove(s.path(key))
		return nil, false, nil
	}
	return rec.Value, true, nil
}

// Set writes value under key. A non-positive ttl never expires.
func (s *Store) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	rec := record{Value: value}
	if ttl > 0 {
		exp := s.now().Add(ttl)
		rec.ExpiresAt = &exp
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode kv entry: %w", err)
	}
	tmp, err := os.CreateTemp(s.dir, ".kv-*")
	if err != nil {
		return fmt.Errorf("create temp entry: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write temp entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp entry: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(key)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("commit kv entry: %w", err)
	}
	return nil
}

// Delete removes key; a missing key is not an error.
func (s *Store) Delete(_ context.Context, key string) error {
	err := os.Remove(s.path(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete kv entry: %w", err)
	}
	return nil
}

// Sweep removes every expired entry file and reports how many were dropped.
// Temp files and entries that cannot be read or decoded are left alone.
func (s *Store) Sweep() int {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0
	}
	now := s.now()
	n := 0
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != ".json" {
			continue
		}
		path := filepath.Join(s.dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var rec record
		if err := json.Unmarshal(data, &rec); err != nil {
			continue
		}
		if rec.ExpiresAt == nil || now.Before(*rec.ExpiresAt) {
			continue
		}
		if err := os.Remove(path); err == nil {
			n++
		}
	}
	return n
}

// Keys are hashed so arbitrary strings map to safe file names.
func (s *Store) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(s.dir, hex.EncodeToString(sum[:])+".json")
}
