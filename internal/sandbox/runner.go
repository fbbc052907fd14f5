// Package sandbox launches an allowlisted text-processing utility with no
// shell, no network, a read-only root filesystem, and a private /tmp, using
// bubblewrap (bwrap) for namespace isolation when available.
package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"syscall"
	"time"

	"github.com/google/uuid"

	"mcpshell/internal/container"
)

// ErrCommandNotAllowed is returned when the requested command is not an
// exact allowlist entry.
var ErrCommandNotAllowed = errors.New("command not allowed")

// ErrSandboxUnavailable is returned by NewRunner when bwrap cannot be found
// and the process is not itself running inside a container.
var ErrSandboxUnavailable = errors.New("sandbox facility unavailable")

// TimeoutError is returned when a command exceeds its deadline. JobID
// correlates the failure with the invocation's log/trace records.
type TimeoutError struct {
	Command string
	Limit   time.Duration
	JobID   string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("command %q exceeded timeout %s", e.Command, e.Limit)
}

// ExitFailureError is returned only when a command exits non-zero, its
// stdout was empty, and its stderr was non-empty — the rule that
// distinguishes a parser error from ordinary "no match" Unix semantics.
type ExitFailureError struct {
	Command  string
	ExitCode int
	Stderr   string
	JobID    string
}

func (e *ExitFailureError) Error() string { return e.Stderr }

// standardBindPaths are read-only bind-mounted into the sandbox's otherwise
// empty root, covering the filesystem locations the allowlisted utilities
// need to resolve their dynamic linker and any locale/terminfo data.
var standardBindPaths = []string{"/usr", "/bin", "/lib", "/lib64", "/etc", "/sbin"}

// Runner launches allowlisted commands inside a bwrap sandbox, or, when the
// process already runs inside a container, directly (the host is assumed to
// provide equivalent isolation).
type Runner struct {
	bwrapPath string
	direct    bool
}

// NewRunner locates bwrap on PATH. If it isn't found, construction only
// succeeds when the process is itself running inside a container.
func NewRunner() (*Runner, error) {
	path, err := exec.LookPath("bwrap")
	if err == nil {
		return &Runner{bwrapPath: path}, nil
	}
	if container.Detected() {
		return &Runner{direct: true}, nil
	}
	return nil, ErrSandboxUnavailable
}

// NewDirectRunner builds a Runner that never shells out to bwrap, running
// allowlisted commands directly instead. Tests use this to exercise command
// dispatch on machines without bwrap installed, mirroring the
// registry.Client WithInContainer override pattern.
func NewDirectRunner() *Runner {
	return &Runner{direct: true}
}

// Run executes an allowlisted command with stdin piped from upstream,
// bounded by timeout. It returns a lazy reader over the command's stdout;
// the non-zero-exit error rule (§4.4) is only decided once the process has
// exited, so a read past the last byte the process actually wrote may
// surface as an error instead of io.EOF when that rule applies.
func (r *Runner) Run(ctx context.Context, argv []string, stdin io.Reader, timeout time.Duration) (io.ReadCloser, error) {
	if len(argv) == 0 {
		return nil, errors.New("sandbox: empty argv")
	}
	if !Allowed(argv[0]) {
		return nil, fmt.Errorf("%w: %s (allowed: %v)", ErrCommandNotAllowed, argv[0], Allowlist)
	}
	jobID := uuid.NewString()

	runCtx, cancel := context.WithTimeout(ctx, timeout)

	var cmd *exec.Cmd
	if r.direct {
		cmd = exec.CommandContext(runCtx, argv[0], argv[1:]...)
	} else {
		cmd = exec.CommandContext(runCtx, r.bwrapPath, bwrapArgs(argv)...)
	}
	cmd.Env = []string{"PATH=/usr/bin:/bin"}
	cmd.Stdin = stdin
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid:    true, // new process session
		Pdeathsig: syscall.SIGKILL,
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("sandbox: %w", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	pr, pw := io.Pipe()
	counting := &countingWriter{w: pw}

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("sandbox: starting %s: %w", argv[0], err)
	}

	go func() {
		defer cancel()
		_, copyErr := io.Copy(counting, stdout)
		waitErr := cmd.Wait()

		finalErr := decideOutcome(argv[0], jobID, timeout, waitErr, runCtx.Err(), counting.n, stderr.String())
		if finalErr == nil && copyErr != nil {
			finalErr = copyErr
		}
		pw.CloseWithError(finalErr)
	}()

	return pr, nil
}

func decideOutcome(command, jobID string, timeout time.Duration, waitErr, ctxErr error, stdoutBytes int64, stderrText string) error {
	if errors.Is(ctxErr, context.DeadlineExceeded) {
		return &TimeoutError{Command: command, Limit: timeout, JobID: jobID}
	}
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		code := exitErr.ExitCode()
		if code != 0 && stdoutBytes == 0 && stderrText != "" {
			return &ExitFailureError{Command: command, ExitCode: code, Stderr: stderrText, JobID: jobID}
		}
		// Non-zero exit with any stdout, or with empty stderr, is ordinary
		// Unix pipe semantics (e.g. a matcher exiting 1 on "no matches")
		// and is not an error.
		return nil
	}
	if waitErr != nil {
		return fmt.Errorf("sandbox: %s: %w", command, waitErr)
	}
	return nil
}

// countingWriter tracks how many bytes have flowed through w, needed to
// apply the "empty stdout" half of the exit-failure rule.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// bwrapArgs builds the bwrap invocation: fresh root filesystem with
// read-only binds of the standard system paths, fresh /proc and /dev, a
// private tmpfs /tmp as the working directory, no network, a new session,
// and dies-with-parent semantics — never a shell, argv is passed through
// unchanged after the "--" separator.
func bwrapArgs(argv []string) []string {
	args := []string{
		"--unshare-all",
		"--die-with-parent",
		"--new-session",
		"--proc", "/proc",
		"--dev", "/dev",
		"--tmpfs", "/tmp",
		"--chdir", "/tmp",
		"--setenv", "PATH", "/usr/bin:/bin",
	}
	for _, p := range standardBindPaths {
		args = append(args, "--ro-bind-try", p, p)
	}
	args = append(args, "--")
	args = append(args, argv...)
	return args
}
