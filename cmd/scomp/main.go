package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/r8vnhill/s-comp/pkg/driver"
	"github.com/r8vnhill/s-comp/pkg/harness"
	"github.com/r8vnhill/s-comp/pkg/shim"
	"github.com/r8vnhill/s-comp/pkg/toolchain"
)

const cliToolVersion = "scomp 0.1.0-dev"

var errSuiteNotFound = errors.New("suite.yml not found")

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 1
	}

	switch args[0] {
	case "--help", "-h":
		printUsage()
		return 0
	case "--version", "-V", "version":
		fmt.Fprintln(os.Stdout, cliToolVersion)
		return 0
	case "run":
		return runArtifact(args[1:])
	case "test":
		return runSuite(args[1:])
	case "stub":
		return runStub(args[1:])
	case "deps":
		return runDeps(args[1:])
	default:
		// Bare artifact path shortcut: `scomp build/forty_two.s`.
		return runArtifact(args)
	}
}

func runArtifact(args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "scomp run requires exactly one artifact path")
		return 1
	}
	artifact := strings.TrimSpace(args[0])
	if artifact == "" {
		fmt.Fprintln(os.Stderr, "scomp run requires an artifact path")
		return 1
	}
	if _, err := os.Stat(artifact); err != nil {
		fmt.Fprintf(os.Stderr, "artifact %s: %v\n", artifact, err)
		return 1
	}

	tc, err := toolchain.Find()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	workDir, err := os.MkdirTemp("", "scomp-run-")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create work directory: %v\n", err)
		return 1
	}
	defer os.RemoveAll(workDir)

	runner, err := harness.New(tc, workDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	out, code, err := runner.RunArtifact(artifact)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	os.Stdout.Write(out)
	return code
}

func runSuite(args []string) int {
	var suitePath string
	switch len(args) {
	case 0:
		found, err := findSuite(".")
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			return 1
		}
		suitePath = found
	case 1:
		suitePath = args[0]
		if info, err := os.Stat(suitePath); err == nil && info.IsDir() {
			suitePath = filepath.Join(suitePath, "suite.yml")
		}
	default:
		fmt.Fprintf(os.Stderr, "unexpected arguments: %s\n", strings.Join(args[1:], " "))
		return 1
	}

	suite, err := driver.LoadSuite(suitePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load suite: %v\n", err)
		return 1
	}
	lock, err := loadLockfileForSuite(suite)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}

	tc, err := toolchain.Find()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	workDir, err := os.MkdirTemp("", "scomp-test-")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create work directory: %v\n", err)
		return 1
	}
	defer os.RemoveAll(workDir)

	runner, err := harness.New(tc, workDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}

	resolver := harness.SuiteDirResolver(suite, lockedPackageDirs(lock)...)
	results, err := runner.RunSuite(suite, resolver)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	return reportResults(os.Stdout, results)
}

func reportResults(w io.Writer, results []harness.Result) int {
	for _, res := range results {
		switch {
		case res.Passed && res.Verdict != nil:
			fmt.Fprintf(w, "ok   %s (%d)\n", res.Case, *res.Verdict)
		case res.Passed:
			fmt.Fprintf(w, "ok   %s (expected failure)\n", res.Case)
		default:
			fmt.Fprintf(w, "FAIL %s: %s\n", res.Case, res.Detail)
		}
	}
	passed, failed := harness.Summarize(results)
	fmt.Fprintf(w, "%d passed, %d failed\n", passed, failed)
	if failed > 0 {
		return 1
	}
	return 0
}

func runStub(args []string) int {
	opts := shim.Options{}
	output := ""
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-o", "--output":
			if i+1 >= len(args) {
				fmt.Fprintf(os.Stderr, "%s requires a file path\n", args[i])
				return 1
			}
			i++
			output = args[i]
		case "--msvc":
			opts.Dialect = shim.DialectMSVC
		case "--symbol":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--symbol requires a name")
				return 1
			}
			i++
			opts.Symbol = args[i]
		default:
			fmt.Fprintf(os.Stderr, "unknown stub option %q\n", args[i])
			return 1
		}
	}

	if output == "" {
		if err := shim.WriteStub(os.Stdout, opts); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write stub: %v\n", err)
			return 1
		}
		return 0
	}
	if err := os.WriteFile(output, []byte(shim.Stub(opts)), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write %s: %v\n", output, err)
		return 1
	}
	return 0
}

func findSuite(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("resolve start directory %q: %w", start, err)
	}
	if info, statErr := os.Stat(dir); statErr == nil && !info.IsDir() {
		dir = filepath.Dir(dir)
	}
	origin := dir
	for {
		candidate := filepath.Join(dir, "suite.yml")
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return candidate, nil
		}
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no suite.yml found from %s upwards: %w", origin, errSuiteNotFound)
		}
		dir = parent
	}
}

func resolveScompHome() (string, error) {
	if home := strings.TrimSpace(os.Getenv("SCOMP_HOME")); home != "" {
		abs, err := filepath.Abs(home)
		if err != nil {
			return "", fmt.Errorf("resolve SCOMP_HOME %q: %w", home, err)
		}
		return abs, nil
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve user home: %w", err)
	}
	return filepath.Join(userHome, ".scomp"), nil
}

func loadLockfileForSuite(suite *driver.Suite) (*driver.Lockfile, error) {
	if suite == nil {
		return nil, nil
	}
	lockPath := filepath.Join(suite.Dir(), "suite.lock")
	lock, err := driver.LoadLockfile(lockPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if len(suite.Dependencies) > 0 {
				return nil, fmt.Errorf("suite.lock missing for %q; run `scomp deps install`", suite.Name)
			}
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read lockfile %s: %w", lockPath, err)
	}
	if lock.Root != suite.Name {
		return nil, fmt.Errorf("lockfile root %q does not match suite name %q", lock.Root, suite.Name)
	}
	return lock, nil
}

func lockedPackageDirs(lock *driver.Lockfile) []string {
	if lock == nil {
		return nil
	}
	dirs := make([]string, 0, len(lock.Packages))
	for _, pkg := range lock.Packages {
		if pkg == nil || pkg.Dir == "" {
			continue
		}
		if info, err := os.Stat(pkg.Dir); err == nil && info.IsDir() {
			dirs = append(dirs, pkg.Dir)
		}
	}
	return dirs
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  scomp run <artifact>")
	fmt.Fprintln(os.Stderr, "  scomp <artifact>")
	fmt.Fprintln(os.Stderr, "  scomp test [suite.yml]")
	fmt.Fprintln(os.Stderr, "  scomp stub [-o file] [--msvc] [--symbol name]")
	fmt.Fprintln(os.Stderr, "  scomp deps install")
	fmt.Fprintln(os.Stderr, "  scomp deps update [dependency ...]")
}
