package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/r8vnhill/s-comp/pkg/driver"
	"github.com/r8vnhill/s-comp/pkg/harness"
)

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(strings.TrimSpace(contents)+"\n"), 0o644); err != nil {
		t.Fatalf("write file %s: %v", path, err)
	}
}

func TestFindSuite(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "suite.yml"), "name: test")
	child := filepath.Join(root, "build", "deep")
	if err := os.MkdirAll(child, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	found, err := findSuite(child)
	if err != nil {
		t.Fatalf("findSuite returned error: %v", err)
	}
	want := filepath.Join(root, "suite.yml")
	if found != want {
		t.Fatalf("findSuite = %q, want %q", found, want)
	}
}

func TestFindSuiteMissing(t *testing.T) {
	dir := t.TempDir()
	if _, err := findSuite(dir); err == nil {
		t.Fatalf("expected error when no suite.yml exists")
	}
}

func TestResolveScompHomeEnv(t *testing.T) {
	tmp := t.TempDir()
	target := filepath.Join(tmp, "cache")
	t.Setenv("SCOMP_HOME", target)

	got, err := resolveScompHome()
	if err != nil {
		t.Fatalf("resolveScompHome error: %v", err)
	}
	if got != target {
		t.Fatalf("resolveScompHome = %q, want %q", got, target)
	}
}

func TestResolveScompHomeDefault(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("SCOMP_HOME", "")
	t.Setenv("HOME", tmp)

	got, err := resolveScompHome()
	if err != nil {
		t.Fatalf("resolveScompHome error: %v", err)
	}
	if want := filepath.Join(tmp, ".scomp"); got != want {
		t.Fatalf("resolveScompHome = %q, want %q", got, want)
	}
}

func TestLoadLockfileForSuite_NoDepsMissingLock(t *testing.T) {
	root := t.TempDir()
	suite := &driver.Suite{Path: filepath.Join(root, "suite.yml"), Name: "nodeps"}
	lock, err := loadLockfileForSuite(suite)
	if err != nil {
		t.Fatalf("loadLockfileForSuite returned error: %v", err)
	}
	if lock != nil {
		t.Fatalf("expected nil lock when no dependencies, got %#v", lock)
	}
}

func TestLoadLockfileForSuite_WithDepsMissingLock(t *testing.T) {
	root := t.TempDir()
	suite := &driver.Suite{
		Path: filepath.Join(root, "suite.yml"),
		Name: "withdeps",
		Dependencies: map[string]*driver.DependencySpec{
			"fixtures": {Version: "~> 0.1"},
		},
	}
	_, err := loadLockfileForSuite(suite)
	if err == nil {
		t.Fatalf("expected error when lockfile missing with dependencies")
	}
	if !strings.Contains(err.Error(), "suite.lock missing") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadLockfileForSuite_RootMismatch(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "suite.lock"), "root: other")
	suite := &driver.Suite{Path: filepath.Join(root, "suite.yml"), Name: "mine"}
	if _, err := loadLockfileForSuite(suite); err == nil || !strings.Contains(err.Error(), "does not match") {
		t.Fatalf("expected root mismatch error, got %v", err)
	}
}

func TestRunVersionAndUsage(t *testing.T) {
	if code := run([]string{"--version"}); code != 0 {
		t.Fatalf("--version exit code = %d", code)
	}
	if code := run([]string{"--help"}); code != 0 {
		t.Fatalf("--help exit code = %d", code)
	}
	if code := run(nil); code != 1 {
		t.Fatalf("bare invocation exit code = %d, want 1", code)
	}
}

func TestRunStubToFile(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "main.c")
	if code := runStub([]string{"-o", output}); code != 0 {
		t.Fatalf("runStub exit code = %d", code)
	}
	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("read stub: %v", err)
	}
	if !strings.Contains(string(data), `asm("our_code_starts_here")`) {
		t.Fatalf("stub content unexpected:\n%s", data)
	}

	if code := runStub([]string{"--bogus"}); code != 1 {
		t.Fatalf("unknown option exit code = %d, want 1", code)
	}
}

func TestReportResults(t *testing.T) {
	verdict := int64(42)
	results := []harness.Result{
		{Case: "forty_two", Passed: true, Verdict: &verdict},
		{Case: "traps", Passed: true},
		{Case: "broken", Detail: "program exited with code 1"},
	}
	var b strings.Builder
	code := reportResults(&b, results)
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	out := b.String()
	for _, want := range []string{
		"ok   forty_two (42)",
		"ok   traps (expected failure)",
		"FAIL broken: program exited with code 1",
		"2 passed, 1 failed",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("report missing %q:\n%s", want, out)
		}
	}

	var ok strings.Builder
	if code := reportResults(&ok, results[:2]); code != 0 {
		t.Fatalf("all-pass exit code = %d, want 0", code)
	}
}

func TestLockedPackageDirs(t *testing.T) {
	root := t.TempDir()
	present := filepath.Join(root, "pack")
	if err := os.MkdirAll(present, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	lock := &driver.Lockfile{
		Packages: []*driver.LockedPackage{
			{Name: "present", Dir: present},
			{Name: "absent", Dir: filepath.Join(root, "gone")},
			{Name: "nodir"},
		},
	}
	dirs := lockedPackageDirs(lock)
	if len(dirs) != 1 || dirs[0] != present {
		t.Fatalf("lockedPackageDirs = %v", dirs)
	}
}
