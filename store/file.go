package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/chazu/xenoscript/graph"
)

const fileExt = ".json"

// FileStore keeps one JSON document per namespace in a directory.
type FileStore struct {
	dir string
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating store dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the store directory.
func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) path(namespace string) string {
	return filepath.Join(s.dir, namespace+fileExt)
}

// Load reads a namespace document.
func (s *FileStore) Load(ctx context.Context, namespace string) (*graph.Graph, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := ValidateName(namespace); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(namespace))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, namespace)
		}
		return nil, fmt.Errorf("reading namespace %s: %w", namespace, err)
	}
	g := graph.New(namespace)
	if err := json.Unmarshal(data, g); err != nil {
		return nil, fmt.Errorf("parsing namespace %s: %w", namespace, err)
	}
	log.Debugf("loaded %s from %s (%d nodes)", namespace, s.dir, g.Len())
	return g, nil
}

// Save writes the whole namespace through a temp file and rename, so a
// crash never leaves a half-written document.
func (s *FileStore) Save(ctx context.Context, g *graph.Graph) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ValidateName(g.Namespace()); err != nil {
		return err
	}
	data, err := json.MarshalIndent(g.Document(), "", "  ")
	if err != nil {
		return fmt.Errorf("encoding namespace %s: %w", g.Namespace(), err)
	}

	tmp, err := os.CreateTemp(s.dir, "."+g.Namespace()+"-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("writing namespace %s: %w", g.Namespace(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing namespace %s: %w", g.Namespace(), err)
	}
	if err := os.Rename(tmp.Name(), s.path(g.Namespace())); err != nil {
		return fmt.Errorf("replacing namespace %s: %w", g.Namespace(), err)
	}
	log.Debugf("saved %s to %s (%d nodes)", g.Namespace(), s.dir, g.Len())
	return nil
}

// List returns stored namespace names, sorted.
func (s *FileStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", s.dir, err)
	}
	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != fileExt {
			continue
		}
		names = append(names, strings.TrimSuffix(name, fileExt))
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes a namespace document.
func (s *FileStore) Delete(ctx context.Context, namespace string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ValidateName(namespace); err != nil {
		return err
	}
	if err := os.Remove(s.path(namespace)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, namespace)
		}
		return fmt.Errorf("deleting namespace %s: %w", namespace, err)
	}
	return nil
}

// Close is a no-op.
func (s *FileStore) Close() error { return nil }
