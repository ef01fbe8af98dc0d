// Package filestore implements credential.Store on a TOML file, one
// [[models]] table per configured model in insertion order.
package filestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/michaelbrown/codetutor/internal/credential"
)

type document struct {
	Models []credential.Credential `toml:"models"`
}

// Store reads and rewrites the file on every call. The mutex makes each
// read-modify-write atomic within this process.
type Store struct {
	path string
	mu   sync.Mutex
}

var _ credential.Store = (*Store)(nil)

// Open returns a store for path. The file is created on first write.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating credentials directory: %w", err)
	}
	s := &Store{path: path}
	// surface a malformed file at startup rather than on first use
	if _, err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Get(_ context.Context) ([]credential.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	return doc.Models, nil
}

func (s *Store) Upsert(_ context.Context, c credential.Credential) error {
	if c.ModelName == "" {
		return fmt.Errorf("model name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}

	found := false
	for i := range doc.Models {
		if doc.Models[i].ModelName != c.ModelName {
			continue
		}
		if c.BaseURL != "" {
			doc.Models[i].BaseURL = c.BaseURL
		}
		if c.APIKey != "" {
			doc.Models[i].APIKey = c.APIKey
		}
		found = true
		break
	}
	if !found {
		doc.Models = append(doc.Models, c)
	}
	return s.save(doc)
}

func (s *Store) Delete(_ context.Context, modelName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}

	kept := doc.Models[:0]
	for _, m := range doc.Models {
		if m.ModelName != modelName {
			kept = append(kept, m)
		}
	}
	if len(kept) == len(doc.Models) {
		return fmt.Errorf("%w: %s", credential.ErrNotFound, modelName)
	}
	doc.Models = kept
	return s.save(doc)
}

func (s *Store) Close() error { return nil }

func (s *Store) load() (*document, error) {
	var doc document
	if _, err := toml.DecodeFile(s.path, &doc); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &doc, nil
		}
		return nil, fmt.Errorf("reading %s: %w", s.path, err)
	}
	return &doc, nil
}

func (s *Store) save(doc *document) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(doc); err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing credentials: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing credentials file: %w", err)
	}
	return nil
}
