// Package store persists namespaces. Every backend stores whole graphs:
// there is no partial load or save.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/chazu/xenoscript/graph"
)

var log = commonlog.GetLogger("xeno.store")

var (
	// ErrNotFound is returned when a namespace does not exist.
	ErrNotFound = errors.New("namespace not found")
	// ErrInvalidName is returned for namespace names that cannot be stored.
	ErrInvalidName = errors.New("invalid namespace name")
)

// Store loads and saves namespaces.
type Store interface {
	Load(ctx context.Context, namespace string) (*graph.Graph, error)
	Save(ctx context.Context, g *graph.Graph) error
	List(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, namespace string) error
	Close() error
}

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Open returns the backend named by kind rooted at path. For the file
// backend path is a directory; for sqlite it is the database file.
func Open(kind, path string) (Store, error) {
	switch kind {
	case "", BackendFile:
		return NewFileStore(path)
	case BackendSQLite:
		return NewSQLiteStore(path)
	}
	return nil, fmt.Errorf("unknown store backend %q", kind)
}

// ValidateName rejects names that would escape the store or hide files.
func ValidateName(namespace string) error {
	switch {
	case namespace == "":
		return fmt.Errorf("%w: empty", ErrInvalidName)
	case strings.ContainsAny(namespace, `/\`):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidName, namespace)
	case strings.HasPrefix(namespace, "."):
		return fmt.Errorf("%w: %q starts with a dot", ErrInvalidName, namespace)
	}
	return nil
}
