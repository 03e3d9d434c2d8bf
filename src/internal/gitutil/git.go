package gitutil

import (
	"bytes"
	"fmt"
	"os/exec"
	"strings"
)

// Runner abstracts command execution for testability.
type Runner interface {
	Run(name string, args ...string) (stdout string, stderr string, err error)
}

type defaultRunner struct{}

// Run executes the named program with args and returns stdout, stderr, and error.
func (defaultRunner) Run(name string, args ...string) (string, string, error) {
	cmd := exec.Command(name, args...)
	var out, errB bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errB
	err := cmd.Run()
	return out.String(), errB.String(), err
}

var runner Runner = defaultRunner{}

// Commit stages the given paths and commits them with message.
// Treats "nothing to commit" as success.
func Commit(paths []string, message string) error {
	if len(paths) == 0 {
		return nil
	}
	if err := gitAdd(paths); err != nil {
		return err
	}
	if noChange, err := gitCommit(message, paths); err != nil && !noChange {
		return err
	}
	return nil
}

// IsNotRepository reports whether err came from running git outside a work tree.
func IsNotRepository(err error) bool {
	return err != nil && strings.Contains(err.Error(), "not a git repository")
}

// gitAdd stages additions and modifications for the provided paths.
func gitAdd(paths []string) error {
	args := append([]string{"add", "--"}, paths...)
	if _, stderr, err := runner.Run("git", args...); err != nil {
		return fmt.Errorf("git add failed: %v: %s", err, stderr)
	}
	return nil
}

// gitCommit commits only the given paths. It returns (noChange=true) when
// there is nothing to commit, which callers treat as success.
func gitCommit(message string, paths []string) (noChange bool, err error) {
	args := append([]string{"commit", "-m", message, "--"}, paths...)
	stdout, stderr, runErr := runner.Run("git", args...)
	if runErr == nil {
		return false, nil
	}
	combined := append([]byte(stderr), []byte(stdout)...)
	if bytes.Contains(combined, []byte("nothing to commit")) ||
		bytes.Contains(combined, []byte("no changes added to commit")) ||
		bytes.Contains(combined, []byte("working tree clean")) {
		return true, nil
	}
	return false, fmt.Errorf("git commit failed: %v: %s%s", runErr, stderr, stdout)
}
