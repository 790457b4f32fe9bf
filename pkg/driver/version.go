package driver

import (
	"fmt"
	"strconv"
	"strings"
)

// Registry dependencies carry version constraints in the manifest shorthand
// (`^1.2`, `~> 0.3.1`, `>= 1.0, < 2`). Resolution picks the highest
// available version satisfying every comma-separated part.

type version struct {
	parts [3]int
	n     int
	extra string
}

func parseVersion(input string) (version, error) {
	var v version
	s := strings.TrimSpace(input)
	if s == "" {
		return v, fmt.Errorf("version: empty")
	}
	body := s
	if i := strings.IndexAny(s, "-+"); i >= 0 {
		body = s[:i]
		v.extra = s[i:]
	}
	segments := strings.Split(body, ".")
	if len(segments) > 3 {
		return v, fmt.Errorf("version: %q has too many segments", input)
	}
	for i, segment := range segments {
		value, err := strconv.Atoi(segment)
		if err != nil || value < 0 {
			return v, fmt.Errorf("version: invalid segment %q in %q", segment, input)
		}
		v.parts[i] = value
		v.n = i + 1
	}
	return v, nil
}

func (v version) compare(o version) int {
	for i := 0; i < 3; i++ {
		switch {
		case v.parts[i] < o.parts[i]:
			return -1
		case v.parts[i] > o.parts[i]:
			return 1
		}
	}
	// A pre-release suffix sorts before the bare version.
	switch {
	case v.extra == o.extra:
		return 0
	case v.extra == "":
		return 1
	case o.extra == "":
		return -1
	case v.extra < o.extra:
		return -1
	default:
		return 1
	}
}

// CompareVersions orders two concrete versions. Malformed input sorts low
// so resolution never prefers it.
func CompareVersions(a, b string) int {
	va, errA := parseVersion(a)
	vb, errB := parseVersion(b)
	switch {
	case errA != nil && errB != nil:
		return strings.Compare(a, b)
	case errA != nil:
		return -1
	case errB != nil:
		return 1
	}
	return va.compare(vb)
}

// VersionMatches reports whether a concrete version satisfies a constraint
// expression. Comma-separated parts must all hold.
func VersionMatches(constraint, candidate string) (bool, error) {
	constraint = strings.TrimSpace(constraint)
	if constraint == "" {
		return false, fmt.Errorf("version: empty constraint")
	}
	if constraint == "*" {
		_, err := parseVersion(candidate)
		return err == nil, err
	}
	v, err := parseVersion(candidate)
	if err != nil {
		return false, err
	}
	for _, part := range strings.Split(constraint, ",") {
		ok, err := matchesPart(strings.TrimSpace(part), v)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func matchesPart(part string, v version) (bool, error) {
	op := "="
	rest := part
	for _, candidate := range []string{"~>", ">=", "<=", ">", "<", "=", "^"} {
		if strings.HasPrefix(part, candidate) {
			op = candidate
			rest = strings.TrimSpace(part[len(candidate):])
			break
		}
	}
	bound, err := parseVersion(rest)
	if err != nil {
		return false, fmt.Errorf("version: constraint %q: %w", part, err)
	}
	cmp := v.compare(bound)
	switch op {
	case "=":
		return cmp == 0, nil
	case ">":
		return cmp > 0, nil
	case ">=":
		return cmp >= 0, nil
	case "<":
		return cmp < 0, nil
	case "<=":
		return cmp <= 0, nil
	case "^":
		// Same major, at least the bound.
		return v.parts[0] == bound.parts[0] && cmp >= 0, nil
	case "~>":
		// Pessimistic: at least the bound, fixed in every segment above
		// the last one given.
		if cmp < 0 {
			return false, nil
		}
		for i := 0; i < bound.n-1; i++ {
			if v.parts[i] != bound.parts[i] {
				return false, nil
			}
		}
		return true, nil
	default:
		return false, fmt.Errorf("version: unsupported operator %q", op)
	}
}
