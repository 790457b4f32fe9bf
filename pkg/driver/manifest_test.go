package driver

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeSuite(t *testing.T, dir, contents string) string {
	t.Helper()
	path := filepath.Join(dir, "suite.yml")
	if err := os.WriteFile(path, []byte(strings.TrimSpace(contents)+"\n"), 0o644); err != nil {
		t.Fatalf("write suite: %v", err)
	}
	return path
}

func TestLoadSuite(t *testing.T) {
	dir := t.TempDir()
	path := writeSuite(t, dir, `
name: snake-tests
version: 0.1.0
authors: Course Staff
dependencies:
  fixtures:
    git: https://example.com/fixtures.git
    tag: v0.3.0
cases:
  - name: forty_two
    artifact: build/forty_two.s
    expect: 42
  - name: negative
    artifact: build/negative.s
    expect: -1
  - name: traps
    artifact: build/overflow.s
    expect_error: true
`)

	suite, err := LoadSuite(path)
	if err != nil {
		t.Fatalf("LoadSuite returned error: %v", err)
	}
	if suite.Name != "snake-tests" {
		t.Fatalf("suite name = %q", suite.Name)
	}
	if len(suite.Authors) != 1 || suite.Authors[0] != "Course Staff" {
		t.Fatalf("authors = %#v", suite.Authors)
	}
	if len(suite.Cases) != 3 {
		t.Fatalf("cases = %#v", suite.Cases)
	}

	c, ok := suite.FindCase("forty_two")
	if !ok {
		t.Fatalf("forty_two not found")
	}
	if c.Expect == nil || *c.Expect != 42 {
		t.Fatalf("forty_two expect = %#v", c.Expect)
	}
	if c.Artifact != "build/forty_two.s" {
		t.Fatalf("forty_two artifact = %q", c.Artifact)
	}

	traps, ok := suite.FindCase("traps")
	if !ok || !traps.ExpectError || traps.Expect != nil {
		t.Fatalf("traps case unexpected: %#v", traps)
	}

	dep := suite.Dependencies["fixtures"]
	if dep == nil || dep.Git != "https://example.com/fixtures.git" || dep.Tag != "v0.3.0" {
		t.Fatalf("fixtures dependency unexpected: %#v", dep)
	}
}

func TestLoadSuiteExpectZeroIsPresent(t *testing.T) {
	dir := t.TempDir()
	path := writeSuite(t, dir, `
name: zero
cases:
  - name: zero
    artifact: build/zero.s
    expect: 0
`)
	suite, err := LoadSuite(path)
	if err != nil {
		t.Fatalf("LoadSuite returned error: %v", err)
	}
	c, _ := suite.FindCase("zero")
	if c.Expect == nil || *c.Expect != 0 {
		t.Fatalf("expect 0 must survive as a present value, got %#v", c.Expect)
	}
}

func TestLoadSuiteRejectsUnknownFields(t *testing.T) {
	dir := t.TempDir()
	path := writeSuite(t, dir, `
name: typo
casez:
  - name: x
`)
	if _, err := LoadSuite(path); err == nil {
		t.Fatalf("expected strict decoding to reject unknown fields")
	}
}

func TestLoadSuiteValidation(t *testing.T) {
	dir := t.TempDir()
	path := writeSuite(t, dir, `
name: ""
dependencies:
  broken:
    git: https://example.com/a.git
    version: "1.0"
    tag: v1
    branch: main
cases:
  - name: dup
    artifact: a.s
    expect: 1
  - name: dup
    artifact: b.s
    expect: 2
  - name: both
    artifact: c.s
    expect: 3
    expect_error: true
  - name: neither
    artifact: d.s
  - name: missing_artifact
    expect: 4
`)
	_, err := LoadSuite(path)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %T: %v", err, err)
	}
	for _, want := range []string{
		"name must be provided",
		`case "dup" declared more than once`,
		`case "both" declares both expect and expect_error`,
		`case "neither" must declare expect or expect_error`,
		`case "missing_artifact" missing artifact`,
		"git dependencies cannot also specify version",
		"rev, tag, and branch are mutually exclusive",
	} {
		if !strings.Contains(verr.Error(), want) {
			t.Fatalf("validation error missing %q:\n%v", want, verr)
		}
	}
}

func TestLoadSuiteEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "suite.yml")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadSuite(path); err == nil || !strings.Contains(err.Error(), "is empty") {
		t.Fatalf("expected empty-file error, got %v", err)
	}
}

func TestDependencyShorthandVersion(t *testing.T) {
	dir := t.TempDir()
	path := writeSuite(t, dir, `
name: shorthand
dependencies:
  fixtures: "~> 0.3"
cases:
  - name: x
    artifact: x.s
    expect: 1
`)
	suite, err := LoadSuite(path)
	if err != nil {
		t.Fatalf("LoadSuite returned error: %v", err)
	}
	dep := suite.Dependencies["fixtures"]
	if dep == nil || dep.Version != "~> 0.3" {
		t.Fatalf("shorthand dependency = %#v", dep)
	}
}

func TestSanitizeName(t *testing.T) {
	cases := map[string]string{
		"Snake Tests":  "snake_tests",
		"fixtures/v2":  "fixtures_v2",
		"  spaced  ":   "spaced",
		"UPPER-case_1": "upper-case_1",
	}
	for input, want := range cases {
		if got := SanitizeName(input); got != want {
			t.Fatalf("SanitizeName(%q) = %q, want %q", input, got, want)
		}
	}
}
