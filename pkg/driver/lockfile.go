package driver

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Lockfile records the dependencies resolved for a suite so repeated runs
// use identical artifact packs. It lives next to suite.yml as suite.lock.
type Lockfile struct {
	Path     string           `yaml:"-"`
	Root     string           `yaml:"root"`
	Tool     string           `yaml:"tool,omitempty"`
	Packages []*LockedPackage `yaml:"packages,omitempty"`
}

// LockedPackage pins one resolved dependency.
type LockedPackage struct {
	Name     string `yaml:"name"`
	Version  string `yaml:"version,omitempty"`
	Source   string `yaml:"source,omitempty"`
	Revision string `yaml:"revision,omitempty"`
	Dir      string `yaml:"dir,omitempty"`
}

// NewLockfile creates an empty lockfile for the given suite.
func NewLockfile(root, tool string) *Lockfile {
	return &Lockfile{
		Root: SanitizeName(root),
		Tool: strings.TrimSpace(tool),
	}
}

// LoadLockfile reads suite.lock from disk. A missing file surfaces as
// os.ErrNotExist so callers can distinguish "never installed" from damage.
func LoadLockfile(path string) (*Lockfile, error) {
	if path == "" {
		return nil, fmt.Errorf("lockfile: empty path")
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("lockfile: resolve %s: %w", path, err)
	}
	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, err
	}
	var lock Lockfile
	if err := yaml.Unmarshal(data, &lock); err != nil {
		return nil, fmt.Errorf("lockfile: parse %s: %w", absPath, err)
	}
	lock.Path = absPath
	for _, pkg := range lock.Packages {
		if pkg == nil {
			continue
		}
		if pkg.Name == "" {
			return nil, fmt.Errorf("lockfile: %s contains a package without a name", absPath)
		}
	}
	return &lock, nil
}

// WriteLockfile persists the lockfile with packages in deterministic order.
func WriteLockfile(lock *Lockfile, path string) error {
	if lock == nil {
		return fmt.Errorf("lockfile: nothing to write")
	}
	if path == "" {
		path = lock.Path
	}
	if path == "" {
		return fmt.Errorf("lockfile: no destination path")
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("lockfile: resolve %s: %w", path, err)
	}

	sort.Slice(lock.Packages, func(i, j int) bool {
		if lock.Packages[i] == nil || lock.Packages[j] == nil {
			return lock.Packages[j] == nil
		}
		return lock.Packages[i].Name < lock.Packages[j].Name
	})

	data, err := yaml.Marshal(lock)
	if err != nil {
		return fmt.Errorf("lockfile: encode: %w", err)
	}
	if err := os.WriteFile(absPath, data, 0o644); err != nil {
		return fmt.Errorf("lockfile: write %s: %w", absPath, err)
	}
	lock.Path = absPath
	return nil
}

// Find returns the locked entry for a dependency, if present.
func (l *Lockfile) Find(name string) *LockedPackage {
	if l == nil {
		return nil
	}
	key := SanitizeName(name)
	for _, pkg := range l.Packages {
		if pkg != nil && SanitizeName(pkg.Name) == key {
			return pkg
		}
	}
	return nil
}

// Upsert replaces or appends a locked entry, reporting whether the set of
// packages actually changed.
func (l *Lockfile) Upsert(pkg *LockedPackage) bool {
	if l == nil || pkg == nil {
		return false
	}
	key := SanitizeName(pkg.Name)
	for i, existing := range l.Packages {
		if existing != nil && SanitizeName(existing.Name) == key {
			if *existing == *pkg {
				return false
			}
			l.Packages[i] = pkg
			return true
		}
	}
	l.Packages = append(l.Packages, pkg)
	return true
}
