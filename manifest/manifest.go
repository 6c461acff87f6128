// Package manifest handles xeno.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/chazu/xenoscript/graph"
)

// FileName is the manifest file looked up by FindAndLoad.
const FileName = "xeno.toml"

// Defaults applied when a manifest leaves a value empty.
const (
	DefaultNamespace  = "default"
	DefaultProvenance = "organic"
	DefaultBackend    = "file"
	DefaultStorePath  = ".xeno"
	DefaultAddr       = "localhost:4567"
)

// Manifest represents a xeno.toml project configuration.
type Manifest struct {
	Project Project `toml:"project"`
	Source  Source  `toml:"source"`
	Session Session `toml:"session"`
	Store   Store   `toml:"store"`
	Server  Server  `toml:"server"`
	Log     Log     `toml:"log"`

	// Dir is the directory containing the xeno.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name      string `toml:"name"`
	Namespace string `toml:"namespace"`
}

// Source configures where .xeno files live.
type Source struct {
	Dirs  []string `toml:"dirs"`
	Entry string   `toml:"entry"`
}

// Session configures new executor sessions.
type Session struct {
	Provenance string `toml:"provenance"`
}

// Store selects the persistence backend.
type Store struct {
	Backend string `toml:"backend"`
	Path    string `toml:"path"`
}

// Server configures `xeno serve`.
type Server struct {
	Addr string `toml:"addr"`
}

// Log configures commonlog.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Default returns the configuration used when no xeno.toml exists, rooted
// at dir.
func Default(dir string) *Manifest {
	m := &Manifest{Dir: dir}
	m.applyDefaults()
	return m
}

func (m *Manifest) applyDefaults() {
	if m.Project.Namespace == "" {
		m.Project.Namespace = NamespaceFor(m.Project.Name)
	}
	if len(m.Source.Dirs) == 0 {
		m.Source.Dirs = []string{"."}
	}
	if m.Session.Provenance == "" {
		m.Session.Provenance = DefaultProvenance
	}
	if m.Store.Backend == "" {
		m.Store.Backend = DefaultBackend
	}
	if m.Store.Path == "" {
		m.Store.Path = DefaultStorePath
		if m.Store.Backend == "sqlite" {
			m.Store.Path = filepath.Join(DefaultStorePath, "xeno.db")
		}
	}
	if m.Server.Addr == "" {
		m.Server.Addr = DefaultAddr
	}
}

// Load parses a xeno.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	if prov := m.Session.Provenance; prov != "" && prov != string(graph.Unknown) && graph.ParseProvenance(prov) == graph.Unknown {
		return nil, fmt.Errorf("%s: unknown session provenance %q", path, prov)
	}

	m.applyDefaults()
	if IsReservedNamespace(m.Project.Namespace) {
		return nil, fmt.Errorf("%s: namespace %q is a reserved word", path, m.Project.Namespace)
	}
	return &m, nil
}

// FindAndLoad walks up from startDir to find a xeno.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// SourceDirPaths returns absolute paths for the configured source directories.
func (m *Manifest) SourceDirPaths() []string {
	var paths []string
	for _, d := range m.Source.Dirs {
		paths = append(paths, m.resolve(d))
	}
	return paths
}

// EntryPath returns the entry file path, or "" when none is configured.
func (m *Manifest) EntryPath() string {
	if m.Source.Entry == "" {
		return ""
	}
	return m.resolve(m.Source.Entry)
}

// StorePath returns the store location relative to the manifest directory.
func (m *Manifest) StorePath() string {
	return m.resolve(m.Store.Path)
}

// Provenance returns the provenance new sessions declare with.
func (m *Manifest) Provenance() graph.Provenance {
	return graph.ParseProvenance(m.Session.Provenance)
}

func (m *Manifest) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}
