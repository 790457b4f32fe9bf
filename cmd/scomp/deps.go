package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/r8vnhill/s-comp/pkg/driver"
)

func runDeps(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "scomp deps requires a subcommand (install, update)")
		return 1
	}
	switch args[0] {
	case "install":
		if len(args) > 1 {
			fmt.Fprintf(os.Stderr, "scomp deps install does not take arguments (received %s)\n", strings.Join(args[1:], " "))
			return 1
		}
		return runDepsInstall()
	case "update":
		return runDepsUpdate(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown deps subcommand %q\n", args[0])
		return 1
	}
}

func runDepsInstall() int {
	suite, cacheDir, code := loadSuiteAndCache()
	if code != 0 {
		return code
	}

	fmt.Fprintf(os.Stdout, "Suite: %s\n", suite.Path)
	fmt.Fprintf(os.Stdout, "Dependencies: %d\n", len(suite.Dependencies))
	fmt.Fprintf(os.Stdout, "Cache directory: %s\n", cacheDir)

	lockPath := filepath.Join(suite.Dir(), "suite.lock")
	lock, lockCreated, code := loadOrCreateLockfile(suite, lockPath)
	if code != 0 {
		return code
	}

	installer := newDependencyInstaller(suite, cacheDir)
	changed, logs, err := installer.Install(lock)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to resolve dependencies: %v\n", err)
		return 1
	}
	for _, line := range logs {
		fmt.Fprintln(os.Stdout, line)
	}

	if changed || lockCreated {
		action := "Updated"
		if lockCreated {
			action = "Created"
		}
		if err := driver.WriteLockfile(lock, lockPath); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write lockfile: %v\n", err)
			return 1
		}
		fmt.Fprintf(os.Stdout, "%s suite.lock: %s\n", action, lock.Path)
	} else {
		fmt.Fprintf(os.Stdout, "suite.lock already up to date: %s\n", lock.Path)
	}

	fmt.Fprintln(os.Stdout, "Dependencies installed.")
	return 0
}

func runDepsUpdate(targets []string) int {
	suite, cacheDir, code := loadSuiteAndCache()
	if code != 0 {
		return code
	}

	updateSet := make(map[string]struct{})
	if len(targets) > 0 {
		declared := make(map[string]struct{}, len(suite.Dependencies))
		for name := range suite.Dependencies {
			declared[driver.SanitizeName(name)] = struct{}{}
		}
		for _, target := range targets {
			sanitized := driver.SanitizeName(target)
			if _, ok := declared[sanitized]; !ok {
				fmt.Fprintf(os.Stderr, "dependency %q not declared in suite\n", target)
				return 1
			}
			updateSet[sanitized] = struct{}{}
		}
	}

	lockPath := filepath.Join(suite.Dir(), "suite.lock")
	lock, lockCreated, code := loadOrCreateLockfile(suite, lockPath)
	if code != 0 {
		return code
	}

	if len(updateSet) == 0 {
		lock.Packages = nil
	} else {
		filtered := make([]*driver.LockedPackage, 0, len(lock.Packages))
		for _, pkg := range lock.Packages {
			if pkg == nil {
				continue
			}
			if _, ok := updateSet[driver.SanitizeName(pkg.Name)]; ok {
				continue
			}
			filtered = append(filtered, pkg)
		}
		lock.Packages = filtered
	}

	installer := newDependencyInstaller(suite, cacheDir)
	changed, logs, err := installer.Install(lock)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to update dependencies: %v\n", err)
		return 1
	}
	for _, line := range logs {
		fmt.Fprintln(os.Stdout, line)
	}

	if changed || lockCreated {
		if err := driver.WriteLockfile(lock, lockPath); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write lockfile: %v\n", err)
			return 1
		}
		fmt.Fprintf(os.Stdout, "Updated suite.lock: %s\n", lock.Path)
	} else {
		fmt.Fprintln(os.Stdout, "Dependencies already up to date.")
	}
	return 0
}

func loadSuiteAndCache() (*driver.Suite, string, int) {
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to determine working directory: %v\n", err)
		return nil, "", 1
	}
	suitePath, err := findSuite(cwd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "unable to locate suite.yml: %v\n", err)
		return nil, "", 1
	}
	suite, err := driver.LoadSuite(suitePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read suite: %v\n", err)
		return nil, "", 1
	}
	cacheDir, err := resolveScompHome()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to resolve SCOMP_HOME: %v\n", err)
		return nil, "", 1
	}
	return suite, cacheDir, 0
}

func loadOrCreateLockfile(suite *driver.Suite, lockPath string) (*driver.Lockfile, bool, int) {
	lock, err := driver.LoadLockfile(lockPath)
	created := false
	switch {
	case err == nil:
		if lock.Root != suite.Name {
			fmt.Fprintf(os.Stderr, "lockfile root %q does not match suite name %q\n", lock.Root, suite.Name)
			return nil, false, 1
		}
	case errors.Is(err, os.ErrNotExist):
		lock = driver.NewLockfile(suite.Name, cliToolVersion)
		lock.Path = lockPath
		created = true
	default:
		fmt.Fprintf(os.Stderr, "failed to read lockfile: %v\n", err)
		return nil, false, 1
	}
	lock.Path = lockPath
	lock.Tool = cliToolVersion
	return lock, created, 0
}

// dependencyInstaller resolves suite dependencies into the cache and pins
// them in the lockfile.
type dependencyInstaller struct {
	suite    *driver.Suite
	cacheDir string
}

func newDependencyInstaller(suite *driver.Suite, cacheDir string) *dependencyInstaller {
	return &dependencyInstaller{suite: suite, cacheDir: cacheDir}
}

// Install resolves every declared dependency, reusing locked entries whose
// cached copies are intact. It reports whether the lockfile changed.
func (inst *dependencyInstaller) Install(lock *driver.Lockfile) (bool, []string, error) {
	changed := false
	var logs []string

	for _, name := range inst.suite.SortedDependencyNames() {
		dep := inst.suite.Dependencies[name]
		if dep == nil {
			continue
		}
		sanitized := driver.SanitizeName(name)

		var pkg *driver.LockedPackage
		var err error
		switch {
		case dep.Path != "":
			pkg, err = inst.resolvePath(sanitized, dep)
		case dep.Git != "":
			pkg, err = inst.resolveGit(sanitized, dep, lock)
		default:
			pkg, err = inst.resolveRegistry(sanitized, dep)
		}
		if err != nil {
			return changed, logs, fmt.Errorf("dependency %q: %w", name, err)
		}
		if lock.Upsert(pkg) {
			changed = true
			logs = append(logs, fmt.Sprintf("Resolved %s -> %s", name, pkg.Dir))
		} else {
			logs = append(logs, fmt.Sprintf("Using cached %s (%s)", name, pkg.Dir))
		}
	}
	return changed, logs, nil
}

func (inst *dependencyInstaller) resolvePath(name string, dep *driver.DependencySpec) (*driver.LockedPackage, error) {
	dir := dep.Path
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(inst.suite.Dir(), filepath.FromSlash(dep.Path))
	}
	dir = filepath.Clean(dir)
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("path %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path %s is not a directory", dir)
	}
	return &driver.LockedPackage{
		Name:   name,
		Source: "path",
		Dir:    dir,
	}, nil
}

func (inst *dependencyInstaller) resolveGit(name string, dep *driver.DependencySpec, lock *driver.Lockfile) (*driver.LockedPackage, error) {
	label := "HEAD"
	switch {
	case dep.Tag != "":
		label = dep.Tag
	case dep.Branch != "":
		label = dep.Branch
	case dep.Rev != "":
		label = dep.Rev
	}
	dir := filepath.Join(inst.cacheDir, "pkg", "src", name, driver.SanitizeName(label))

	// Reuse the cached clone when the lock still points at it.
	if existing := lock.Find(name); existing != nil &&
		existing.Source == dep.Git && existing.Dir == dir && existing.Version == label {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return existing, nil
		}
	}

	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("clear cache dir %s: %w", dir, err)
	}
	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	cloneOpts := &git.CloneOptions{URL: dep.Git}
	switch {
	case dep.Tag != "":
		cloneOpts.ReferenceName = plumbing.NewTagReferenceName(dep.Tag)
		cloneOpts.SingleBranch = true
	case dep.Branch != "":
		cloneOpts.ReferenceName = plumbing.NewBranchReferenceName(dep.Branch)
		cloneOpts.SingleBranch = true
	}

	repo, err := git.PlainClone(dir, false, cloneOpts)
	if err != nil {
		return nil, fmt.Errorf("clone %s: %w", dep.Git, err)
	}
	if dep.Rev != "" {
		worktree, err := repo.Worktree()
		if err != nil {
			return nil, fmt.Errorf("worktree: %w", err)
		}
		if err := worktree.Checkout(&git.CheckoutOptions{Hash: plumbing.NewHash(dep.Rev)}); err != nil {
			return nil, fmt.Errorf("checkout %s: %w", dep.Rev, err)
		}
	}
	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("resolve HEAD: %w", err)
	}

	return &driver.LockedPackage{
		Name:     name,
		Version:  label,
		Source:   dep.Git,
		Revision: head.Hash().String(),
		Dir:      dir,
	}, nil
}

func (inst *dependencyInstaller) resolveRegistry(name string, dep *driver.DependencySpec) (*driver.LockedPackage, error) {
	root := dep.Registry
	if root == "" {
		root = strings.TrimSpace(os.Getenv("SCOMP_REGISTRY"))
	}
	if root == "" {
		return nil, fmt.Errorf("registry dependency requires a registry path (set SCOMP_REGISTRY)")
	}
	pkgRoot := filepath.Join(root, name)
	entries, err := os.ReadDir(pkgRoot)
	if err != nil {
		return nil, fmt.Errorf("registry %s: %w", pkgRoot, err)
	}

	var versions []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		ok, err := driver.VersionMatches(dep.Version, entry.Name())
		if err != nil {
			continue
		}
		if ok {
			versions = append(versions, entry.Name())
		}
	}
	if len(versions) == 0 {
		return nil, fmt.Errorf("no version in %s satisfies %q", pkgRoot, dep.Version)
	}
	sort.Slice(versions, func(i, j int) bool {
		return driver.CompareVersions(versions[i], versions[j]) > 0
	})
	chosen := versions[0]

	return &driver.LockedPackage{
		Name:    name,
		Version: chosen,
		Source:  "registry:" + root,
		Dir:     filepath.Join(pkgRoot, chosen),
	}, nil
}
