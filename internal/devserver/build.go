// SPDX-License-Identifier: MPL-2.0

package devserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"

	"fedkit/pkg/fedfile"
)

// ErrBuildFailed is the sentinel matched by errors.Is for failed builds.
var ErrBuildFailed = errors.New("build script failed")

// BuildError reports a build script that exited non-zero.
type BuildError struct {
	// ExitCode is the script's exit status.
	ExitCode int
}

// Error implements the error interface for BuildError.
func (e *BuildError) Error() string {
	return fmt.Sprintf("build script exited with status %d", e.ExitCode)
}

// Unwrap returns ErrBuildFailed for errors.Is() compatibility.
func (e *BuildError) Unwrap() error { return ErrBuildFailed }

// BuildRunner executes a fedfile's build script with an embedded POSIX
// shell, so builds behave the same on every platform without requiring a
// system /bin/sh.
type BuildRunner struct {
	ff *fedfile.Fedfile

	// Stdout and Stderr receive the script's output. Nil values default
	// to the process streams.
	Stdout io.Writer
	Stderr io.Writer
}

// NewBuildRunner creates a runner for the fedfile's build script. The
// script syntax is validated eagerly so a broken script fails at startup
// rather than on the first rebuild.
func NewBuildRunner(ff *fedfile.Fedfile) (*BuildRunner, error) {
	if ff.Build.Script == "" {
		return nil, nil // nothing to run; dist dir is managed externally
	}
	if _, err := syntax.NewParser().Parse(strings.NewReader(ff.Build.Script), "build"); err != nil {
		return nil, fmt.Errorf("build script syntax: %w", err)
	}
	return &BuildRunner{ff: ff}, nil
}

// Run executes the build script in the fedfile's directory.
func (b *BuildRunner) Run(ctx context.Context) error {
	prog, err := syntax.NewParser().Parse(strings.NewReader(b.ff.Build.Script), "build")
	if err != nil {
		return fmt.Errorf("parse build script: %w", err)
	}

	stdout := b.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	stderr := b.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	runner, err := interp.New(
		interp.Dir(b.ff.Dir()),
		interp.Env(expand.ListEnviron(os.Environ()...)),
		interp.StdIO(nil, stdout, stderr),
	)
	if err != nil {
		return fmt.Errorf("create interpreter: %w", err)
	}

	if err := runner.Run(ctx, prog); err != nil {
		var status interp.ExitStatus
		if errors.As(err, &status) {
			return &BuildError{ExitCode: int(status)}
		}
		return fmt.Errorf("run build script: %w", err)
	}
	return nil
}
