// Package toolchain locates the system C compiler and drives the link step
// that joins the entry stub with a compiled artifact.
package toolchain

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// ErrNoCompiler reports that no usable C compiler was found.
var ErrNoCompiler = errors.New("toolchain: no C compiler found (set CC or install cc/gcc/clang)")

// candidates are probed in order when CC is unset.
var candidates = []string{"cc", "gcc", "clang"}

// Toolchain wraps a resolved C compiler and the environment its
// invocations run under.
type Toolchain struct {
	CC         string
	Env        []string
	ExtraFlags []string
}

// Find resolves the C compiler: the CC environment variable wins, then the
// usual names on PATH.
func Find() (*Toolchain, error) {
	env := BuildEnv()
	if cc := strings.TrimSpace(os.Getenv("CC")); cc != "" {
		path, err := exec.LookPath(cc)
		if err != nil {
			return nil, fmt.Errorf("toolchain: CC=%q: %w", cc, err)
		}
		return &Toolchain{CC: path, Env: env}, nil
	}
	for _, name := range candidates {
		if path, err := exec.LookPath(name); err == nil {
			return &Toolchain{CC: path, Env: env}, nil
		}
	}
	return nil, ErrNoCompiler
}

// Compile links the stub source and the artifact into an executable at
// output. The artifact may be assembly or an object file; the compiler
// driver dispatches on the extension either way.
func (tc *Toolchain) Compile(stub, artifact, output string) error {
	if tc == nil || tc.CC == "" {
		return ErrNoCompiler
	}
	args := []string{"-o", output, stub, artifact}
	if len(tc.ExtraFlags) > 0 {
		args = append(append([]string{}, tc.ExtraFlags...), args...)
	}
	cmd := exec.Command(tc.CC, args...)
	cmd.Env = tc.Env
	out, err := cmd.CombinedOutput()
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if msg == "" {
			return fmt.Errorf("toolchain: %s failed: %w", tc.CC, err)
		}
		return fmt.Errorf("toolchain: %s failed: %w\n%s", tc.CC, err, msg)
	}
	return nil
}

// essentialVars are passed through to compiler subprocesses; everything
// else from the parent environment is dropped.
var essentialVars = []string{
	"PATH",
	"HOME",
	"USERPROFILE",
	"TEMP",
	"TMP",
	"TMPDIR",
	"CFLAGS",
	"LDFLAGS",
	"SDKROOT",
}

// BuildEnv assembles a filtered environment for compiler invocations.
func BuildEnv() []string {
	env := []string{}
	for _, key := range essentialVars {
		if val := os.Getenv(key); val != "" {
			env = append(env, key+"="+val)
		}
	}
	return env
}

// MergeEnv merges additional KEY=VALUE pairs into base, with later values
// overriding earlier ones.
func MergeEnv(base []string, additional ...string) []string {
	result := make([]string, len(base))
	copy(result, base)
	for _, add := range additional {
		parts := strings.SplitN(add, "=", 2)
		if len(parts) != 2 {
			continue
		}
		result = setEnvKey(result, parts[0], parts[1])
	}
	return result
}

func setEnvKey(env []string, key, value string) []string {
	prefix := key + "="
	for i, e := range env {
		if strings.HasPrefix(e, prefix) {
			env[i] = key + "=" + value
			return env
		}
	}
	return append(env, key+"="+value)
}

func hasEnvKey(env []string, key string) bool {
	prefix := key + "="
	for _, e := range env {
		if strings.HasPrefix(e, prefix) {
			return true
		}
	}
	return false
}
