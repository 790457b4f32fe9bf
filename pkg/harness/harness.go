// Package harness builds compiled test artifacts into runnable programs and
// checks the results they report against a suite manifest.
package harness

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/r8vnhill/s-comp/pkg/driver"
	"github.com/r8vnhill/s-comp/pkg/shim"
	"github.com/r8vnhill/s-comp/pkg/toolchain"
)

// Result captures the outcome of one case.
type Result struct {
	Case    string
	Passed  bool
	Verdict *int64
	Detail  string
}

// Runner builds artifacts against the entry stub and executes them in a
// scratch directory.
type Runner struct {
	Toolchain *toolchain.Toolchain
	WorkDir   string
	Dialect   shim.Dialect

	stubPath string
}

// New prepares a runner rooted at workDir, creating it if needed.
func New(tc *toolchain.Toolchain, workDir string) (*Runner, error) {
	if tc == nil {
		return nil, toolchain.ErrNoCompiler
	}
	if workDir == "" {
		return nil, fmt.Errorf("harness: work directory required")
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("harness: create work directory: %w", err)
	}
	return &Runner{Toolchain: tc, WorkDir: workDir}, nil
}

// Build links an artifact with the entry stub, returning the path of the
// produced executable. The stub source is written once per runner.
func (r *Runner) Build(artifact, name string) (string, error) {
	if r.stubPath == "" {
		stub := filepath.Join(r.WorkDir, "main.c")
		opts := shim.Options{Dialect: r.Dialect}
		data := shim.Stub(opts)
		if err := os.WriteFile(stub, []byte(data), 0o644); err != nil {
			return "", fmt.Errorf("harness: write stub: %w", err)
		}
		r.stubPath = stub
	}
	if name == "" {
		base := filepath.Base(artifact)
		name = base[:len(base)-len(filepath.Ext(base))]
	}
	output := filepath.Join(r.WorkDir, driver.SanitizeName(name)+".bin")
	if err := r.Toolchain.Compile(r.stubPath, artifact, output); err != nil {
		return "", err
	}
	return output, nil
}

// Execute runs a built program and captures its standard output. The exit
// code is reported separately from execution errors: a program that traps
// is a result, not a harness failure.
func Execute(bin string) (stdout []byte, exitCode int, err error) {
	cmd := exec.Command(bin)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return out, exitErr.ExitCode(), nil
		}
		return nil, 0, fmt.Errorf("harness: execute %s: %w", bin, err)
	}
	return out, 0, nil
}

// RunArtifact builds and executes a single artifact, returning its raw
// output and exit code.
func (r *Runner) RunArtifact(artifact string) ([]byte, int, error) {
	bin, err := r.Build(artifact, "")
	if err != nil {
		return nil, 0, err
	}
	return Execute(bin)
}

// RunCase builds and executes one case. artifactPath is the resolved
// on-disk location of the case's artifact.
func (r *Runner) RunCase(c *driver.CaseSpec, artifactPath string) Result {
	result := Result{Case: c.Name}

	bin, err := r.Build(artifactPath, c.Name)
	if err != nil {
		result.Detail = fmt.Sprintf("build: %v", err)
		return result
	}
	out, code, err := Execute(bin)
	if err != nil {
		result.Detail = err.Error()
		return result
	}

	verdict, parseErr := driver.ParseVerdict(out)

	if c.ExpectError {
		if code != 0 || parseErr != nil {
			result.Passed = true
			return result
		}
		result.Detail = fmt.Sprintf("expected failure but program reported %d", verdict)
		return result
	}

	if code != 0 {
		result.Detail = fmt.Sprintf("program exited with code %d", code)
		return result
	}
	if parseErr != nil {
		result.Detail = parseErr.Error()
		return result
	}
	result.Verdict = &verdict
	if c.Expect != nil && verdict != *c.Expect {
		result.Detail = fmt.Sprintf("program reported %d, want %d", verdict, *c.Expect)
		return result
	}
	result.Passed = true
	return result
}

// ArtifactResolver maps a manifest artifact reference to an on-disk path.
type ArtifactResolver func(artifact string) (string, error)

// RunSuite executes every case in manifest order. resolve may be nil, in
// which case artifacts resolve relative to the suite directory.
func (r *Runner) RunSuite(suite *driver.Suite, resolve ArtifactResolver) ([]Result, error) {
	if suite == nil {
		return nil, fmt.Errorf("harness: nil suite")
	}
	if resolve == nil {
		resolve = SuiteDirResolver(suite)
	}
	results := make([]Result, 0, len(suite.Cases))
	for _, c := range suite.Cases {
		if c == nil {
			continue
		}
		path, err := resolve(c.Artifact)
		if err != nil {
			results = append(results, Result{Case: c.Name, Detail: err.Error()})
			continue
		}
		results = append(results, r.RunCase(c, path))
	}
	return results, nil
}

// SuiteDirResolver resolves artifacts relative to the suite manifest,
// falling back to the given extra directories in order.
func SuiteDirResolver(suite *driver.Suite, extra ...string) ArtifactResolver {
	return func(artifact string) (string, error) {
		if filepath.IsAbs(artifact) {
			if _, err := os.Stat(artifact); err == nil {
				return artifact, nil
			}
			return "", fmt.Errorf("harness: artifact %s not found", artifact)
		}
		dirs := append([]string{suite.Dir()}, extra...)
		for _, dir := range dirs {
			if dir == "" {
				continue
			}
			candidate := filepath.Join(dir, filepath.FromSlash(artifact))
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate, nil
			}
		}
		return "", fmt.Errorf("harness: artifact %q not found under %v", artifact, dirs)
	}
}

// Summarize counts passed and failed results.
func Summarize(results []Result) (passed, failed int) {
	for _, res := range results {
		if res.Passed {
			passed++
		} else {
			failed++
		}
	}
	return passed, failed
}
