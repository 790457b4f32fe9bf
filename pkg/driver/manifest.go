package driver

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Suite represents the parsed contents of suite.yml: a set of compiled test
// artifacts plus the result each one must report through the runner.
type Suite struct {
	Path         string
	Name         string
	Version      string
	Authors      []string
	Dependencies map[string]*DependencySpec
	Cases        []*CaseSpec
}

// CaseSpec describes one test case from the manifest. Exactly one of Expect
// and ExpectError is set: either the artifact must report the given 64-bit
// result, or it is expected to trap before reporting one.
type CaseSpec struct {
	Name        string
	Artifact    string
	Expect      *int64
	ExpectError bool
}

// DependencySpec describes an artifact pack the suite pulls in before
// running: a git repository, a local path, or a registry version.
type DependencySpec struct {
	Version  string
	Git      string
	Rev      string
	Tag      string
	Branch   string
	Path     string
	Registry string
}

// ValidationError aggregates suite manifest validation failures.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return "suite: invalid configuration"
	}
	var b strings.Builder
	b.WriteString("suite validation failed:")
	for _, issue := range e.Issues {
		b.WriteString("\n- ")
		b.WriteString(issue)
	}
	return b.String()
}

// LoadSuite parses suite.yml from disk, returning a validated suite.
func LoadSuite(path string) (*Suite, error) {
	if path == "" {
		return nil, fmt.Errorf("suite: empty path")
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("suite: resolve %s: %w", path, err)
	}
	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("suite: open %s: %w", absPath, err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)

	var raw suiteFile
	if err := decoder.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("suite: %s is empty", absPath)
		}
		return nil, fmt.Errorf("suite: parse %s: %w", absPath, err)
	}

	suite := raw.toSuite(absPath)
	if err := suite.validate(); err != nil {
		return nil, err
	}
	return suite, nil
}

// Dir returns the directory holding the manifest; case artifacts resolve
// relative to it.
func (s *Suite) Dir() string {
	if s == nil || s.Path == "" {
		return ""
	}
	return filepath.Dir(s.Path)
}

// FindCase looks up a case by name.
func (s *Suite) FindCase(name string) (*CaseSpec, bool) {
	if s == nil {
		return nil, false
	}
	name = strings.TrimSpace(name)
	for _, c := range s.Cases {
		if c != nil && c.Name == name {
			return c, true
		}
	}
	return nil, false
}

func (s *Suite) validate() error {
	var errs ValidationError
	if s.Name == "" {
		errs.Issues = append(errs.Issues, "name must be provided")
	}
	for i, author := range s.Authors {
		if author == "" {
			errs.Issues = append(errs.Issues, fmt.Sprintf("authors[%d] must be a non-empty string", i))
		}
	}

	seen := make(map[string]struct{}, len(s.Cases))
	for i, c := range s.Cases {
		if c == nil {
			continue
		}
		label := c.Name
		if label == "" {
			label = fmt.Sprintf("cases[%d]", i)
			errs.Issues = append(errs.Issues, fmt.Sprintf("%s missing name", label))
		} else if _, dup := seen[c.Name]; dup {
			errs.Issues = append(errs.Issues, fmt.Sprintf("case %q declared more than once", c.Name))
		} else {
			seen[c.Name] = struct{}{}
		}
		if c.Artifact == "" {
			errs.Issues = append(errs.Issues, fmt.Sprintf("case %q missing artifact", label))
		}
		switch {
		case c.Expect == nil && !c.ExpectError:
			errs.Issues = append(errs.Issues, fmt.Sprintf("case %q must declare expect or expect_error", label))
		case c.Expect != nil && c.ExpectError:
			errs.Issues = append(errs.Issues, fmt.Sprintf("case %q declares both expect and expect_error", label))
		}
	}

	for depName, dep := range s.Dependencies {
		if dep == nil {
			continue
		}
		dep.normalize()
		for _, issue := range dep.validate() {
			errs.Issues = append(errs.Issues, fmt.Sprintf("dependencies.%s: %s", depName, issue))
		}
	}

	if len(errs.Issues) > 0 {
		return &errs
	}
	return nil
}

func (d *DependencySpec) normalize() {
	if d == nil {
		return
	}
	d.Version = strings.TrimSpace(d.Version)
	d.Git = strings.TrimSpace(d.Git)
	d.Rev = strings.TrimSpace(d.Rev)
	d.Tag = strings.TrimSpace(d.Tag)
	d.Branch = strings.TrimSpace(d.Branch)
	d.Path = strings.TrimSpace(d.Path)
	d.Registry = strings.TrimSpace(d.Registry)
}

func (d *DependencySpec) validate() []string {
	var errs []string
	if d == nil {
		return errs
	}

	if d.Path != "" && (d.Version != "" || d.Git != "") {
		errs = append(errs, "path overrides cannot specify version or git source")
	}
	if d.Git != "" && d.Version != "" {
		errs = append(errs, "git dependencies cannot also specify version")
	}
	if d.Registry != "" && (d.Git != "" || d.Path != "") {
		errs = append(errs, "registry overrides apply only to registry-based version dependencies")
	}

	refs := 0
	for _, ref := range []string{d.Rev, d.Tag, d.Branch} {
		if ref != "" {
			refs++
		}
	}
	if refs > 0 && d.Git == "" {
		errs = append(errs, "rev, tag, and branch require a git source")
	}
	if refs > 1 {
		errs = append(errs, "rev, tag, and branch are mutually exclusive")
	}

	if d.Version == "" && d.Git == "" && d.Path == "" {
		errs = append(errs, "must specify version, git, or path")
	}

	if d.Version != "" && !isValidVersionConstraint(d.Version) {
		errs = append(errs, fmt.Sprintf("invalid version constraint %q", d.Version))
	}
	return errs
}

var versionConstraintPattern = regexp.MustCompile(`^(~>|>=|<=|>|<|=|\^)?\s*[0-9]+(\.[0-9]+){0,2}([0-9A-Za-z\-\+\.]*)?$`)

func isValidVersionConstraint(input string) bool {
	s := strings.TrimSpace(input)
	if s == "" {
		return false
	}
	if s == "*" {
		return true
	}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" || !versionConstraintPattern.MatchString(part) {
			return false
		}
	}
	return true
}

// SanitizeName normalizes dependency and suite names to a stable cache key.
func SanitizeName(name string) string {
	name = strings.TrimSpace(strings.ToLower(name))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		case r == ' ', r == '.', r == '/':
			b.WriteRune('_')
		}
	}
	return b.String()
}

type suiteFile struct {
	Name         string        `yaml:"name"`
	Version      string        `yaml:"version"`
	Authors      stringList    `yaml:"authors"`
	Dependencies dependencyMap `yaml:"dependencies"`
	Cases        []*caseYAML   `yaml:"cases"`
}

type caseYAML struct {
	Name        string `yaml:"name"`
	Artifact    string `yaml:"artifact"`
	Expect      *int64 `yaml:"expect"`
	ExpectError bool   `yaml:"expect_error"`
}

type dependencyMap map[string]*DependencySpec

type stringList []string

func (sf suiteFile) toSuite(path string) *Suite {
	suite := &Suite{
		Path:         path,
		Name:         SanitizeName(sf.Name),
		Version:      strings.TrimSpace(sf.Version),
		Authors:      sf.Authors.Clone(),
		Dependencies: cloneDependencyMap(sf.Dependencies),
		Cases:        make([]*CaseSpec, 0, len(sf.Cases)),
	}
	for _, c := range sf.Cases {
		if c == nil {
			continue
		}
		spec := &CaseSpec{
			Name:        strings.TrimSpace(c.Name),
			Artifact:    strings.TrimSpace(c.Artifact),
			ExpectError: c.ExpectError,
		}
		if c.Expect != nil {
			value := *c.Expect
			spec.Expect = &value
		}
		suite.Cases = append(suite.Cases, spec)
	}
	return suite
}

func cloneDependencyMap(src dependencyMap) map[string]*DependencySpec {
	out := make(map[string]*DependencySpec, len(src))
	for name, dep := range src {
		if dep == nil {
			continue
		}
		out[name] = dep.clone()
	}
	return out
}

func (d *DependencySpec) clone() *DependencySpec {
	if d == nil {
		return nil
	}
	copy := *d
	return &copy
}

// SortedDependencyNames returns dependency names in deterministic order.
func (s *Suite) SortedDependencyNames() []string {
	names := make([]string, 0, len(s.Dependencies))
	for name := range s.Dependencies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (l stringList) Clone() []string {
	if len(l) == 0 {
		return nil
	}
	out := make([]string, 0, len(l))
	for _, item := range l {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}

func (l *stringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		if value.Tag == "!!null" || strings.TrimSpace(value.Value) == "" {
			*l = nil
			return nil
		}
		*l = stringList{strings.TrimSpace(value.Value)}
		return nil
	case yaml.SequenceNode:
		items := make([]string, 0, len(value.Content))
		for _, node := range value.Content {
			var str string
			if err := node.Decode(&str); err != nil {
				return err
			}
			str = strings.TrimSpace(str)
			if str == "" {
				continue
			}
			items = append(items, str)
		}
		*l = stringList(items)
		return nil
	case yaml.AliasNode:
		return l.UnmarshalYAML(value.Alias)
	case 0:
		*l = nil
		return nil
	default:
		return fmt.Errorf("suite: expected string or sequence for list but found %s", value.ShortTag())
	}
}

func (dm *dependencyMap) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == 0 {
		*dm = make(dependencyMap)
		return nil
	}
	if value.Kind == yaml.ScalarNode && value.Tag == "!!null" {
		*dm = make(dependencyMap)
		return nil
	}
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("suite: dependencies must be a mapping")
	}
	result := make(dependencyMap, len(value.Content)/2)
	for i := 0; i < len(value.Content); i += 2 {
		keyNode := value.Content[i]
		valNode := value.Content[i+1]

		var key string
		if err := keyNode.Decode(&key); err != nil {
			return err
		}
		key = strings.TrimSpace(key)
		if key == "" {
			return fmt.Errorf("suite: dependency names must be non-empty")
		}
		var dep DependencySpec
		if err := dep.unmarshalYAML(valNode); err != nil {
			return fmt.Errorf("suite: dependency %q: %w", key, err)
		}
		result[key] = dep.clone()
	}
	*dm = result
	return nil
}

func (d *DependencySpec) unmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		if value.Tag == "!!null" || strings.TrimSpace(value.Value) == "" {
			*d = DependencySpec{}
			return nil
		}
		*d = DependencySpec{Version: strings.TrimSpace(value.Value)}
		return nil
	case yaml.MappingNode:
		var raw struct {
			Version  string `yaml:"version"`
			Git      string `yaml:"git"`
			Rev      string `yaml:"rev"`
			Tag      string `yaml:"tag"`
			Branch   string `yaml:"branch"`
			Path     string `yaml:"path"`
			Registry string `yaml:"registry"`
		}
		if err := value.Decode(&raw); err != nil {
			return err
		}
		*d = DependencySpec{
			Version:  strings.TrimSpace(raw.Version),
			Git:      strings.TrimSpace(raw.Git),
			Rev:      strings.TrimSpace(raw.Rev),
			Tag:      strings.TrimSpace(raw.Tag),
			Branch:   strings.TrimSpace(raw.Branch),
			Path:     strings.TrimSpace(raw.Path),
			Registry: strings.TrimSpace(raw.Registry),
		}
		return nil
	case yaml.AliasNode:
		return d.unmarshalYAML(value.Alias)
	default:
		return fmt.Errorf("expected string or mapping, found %s", value.ShortTag())
	}
}
