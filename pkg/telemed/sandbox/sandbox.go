// Package sandbox runs untrusted user code inside a resource-capped Docker
// container by shelling out to the docker CLI. Two directories are
// bind-mounted: the documents area at /mnt/docs and the scratch/output area
// at /mnt/out. Every run is bounded by a wall-clock budget and the container
// is removed on every exit path.
package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Failure classification. A non-zero exit inside the container is NOT an
// error: it is reported through Result so the caller can relay stderr.
var (
	// ErrUnavailable means the Docker daemon could not be reached.
	ErrUnavailable = errors.New("sandbox: docker daemon unavailable")

	// ErrTimeout means the wall-clock budget elapsed and the container was
	// force-removed.
	ErrTimeout = errors.New("sandbox: execution timed out")
)

// Config holds sandbox settings.
type Config struct {
	// Image is the preferred task image; FallbackImage is used with a
	// warning when Image is not present locally.
	Image         string
	FallbackImage string

	// Timeout is the wall-clock budget for one run. Generous so user code
	// can pip-install once.
	Timeout time.Duration

	// MemoryMB and CPUShares cap the container.
	MemoryMB  int
	CPUShares int

	// AllowNetwork keeps container networking enabled.
	AllowNetwork bool

	// DocsDir and ScratchDir are mounted at /mnt/docs and /mnt/out.
	DocsDir    string
	ScratchDir string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Image:         "agent-sandbox:latest",
		FallbackImage: "python:3.10-slim",
		Timeout:       120 * time.Second,
		MemoryMB:      512,
		CPUShares:     512,
		AllowNetwork:  true,
		DocsDir:       "docs",
		ScratchDir:    ".tmp",
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Image == "" && c.FallbackImage == "" {
		return fmt.Errorf("sandbox: an image is required")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("sandbox: timeout must be positive")
	}
	if c.MemoryMB <= 0 {
		return fmt.Errorf("sandbox: memory limit must be positive")
	}
	return nil
}

// Result is the outcome of one sandbox run.
type Result struct {
	// Status is "success" for exit code 0, "error" otherwise.
	Status   string
	ExitCode int
	Stdout   string
	Stderr   string
}

// ExecFunc runs the docker binary with args and returns its separated output
// streams. Injectable so tests can simulate every failure mode without a
// Docker daemon.
type ExecFunc func(ctx context.Context, args ...string) (stdout, stderr string, err error)

// Executor submits code to the sandbox.
type Executor struct {
	cfg    Config
	logger *slog.Logger
	exec   ExecFunc
}

// New creates an Executor. A nil exec uses the real docker CLI.
func New(cfg Config, logger *slog.Logger, execFn ExecFunc) (*Executor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	if execFn == nil {
		execFn = runDocker
	}
	return &Executor{
		cfg:    cfg,
		logger: logger.With("component", "sandbox"),
		exec:   execFn,
	}, nil
}

// Run executes code (python -c style) to completion or timeout. The returned
// error is nil, ErrUnavailable or ErrTimeout; code bugs surface through the
// Result, never as an error.
func (e *Executor) Run(ctx context.Context, code string) (*Result, error) {
	if _, _, err := e.exec(ctx, "version", "--format", "{{.Server.Version}}"); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	image := e.resolveImage(ctx)
	name := "telemed-sandbox-" + uuid.NewString()[:8]

	args := []string{
		"run", "-d", "--name", name,
		"--memory", fmt.Sprintf("%dm", e.cfg.MemoryMB),
		"--cpu-shares", strconv.Itoa(e.cfg.CPUShares),
	}
	if !e.cfg.AllowNetwork {
		args = append(args, "--network", "none")
	}
	docsAbs, _ := filepath.Abs(e.cfg.DocsDir)
	scratchAbs, _ := filepath.Abs(e.cfg.ScratchDir)
	args = append(args,
		"-v", docsAbs+":/mnt/docs",
		"-v", scratchAbs+":/mnt/out",
		image, "python", "-c", code,
	)

	if _, stderr, err := e.exec(ctx, args...); err != nil {
		return nil, fmt.Errorf("%w: starting container: %v (%s)", ErrUnavailable, err, strings.TrimSpace(stderr))
	}
	// The container exists from here on; remove it on every path.
	defer e.remove(name)

	waitCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	waitOut, _, err := e.exec(waitCtx, "wait", name)
	if err != nil {
		if waitCtx.Err() != nil {
			e.logger.Warn("execution exceeded budget, removing container",
				"container", name, "timeout", e.cfg.Timeout)
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("%w: waiting for container: %v", ErrUnavailable, err)
	}
	exitCode, err := strconv.Atoi(strings.TrimSpace(waitOut))
	if err != nil {
		return nil, fmt.Errorf("%w: unexpected wait output %q", ErrUnavailable, waitOut)
	}

	stdout, stderr, err := e.exec(ctx, "logs", name)
	if err != nil {
		return nil, fmt.Errorf("%w: reading logs: %v", ErrUnavailable, err)
	}

	res := &Result{
		Status:   "success",
		ExitCode: exitCode,
		Stdout:   stdout,
		Stderr:   stderr,
	}
	if exitCode != 0 {
		res.Status = "error"
	}
	return res, nil
}

// resolveImage prefers the configured task image and falls back to the
// generic runtime image with a warning when it is absent locally.
func (e *Executor) resolveImage(ctx context.Context) string {
	if e.cfg.Image == "" {
		return e.cfg.FallbackImage
	}
	if _, _, err := e.exec(ctx, "image", "inspect", e.cfg.Image); err != nil {
		if e.cfg.FallbackImage != "" {
			e.logger.Warn("task image not found, using fallback (slower, fewer libraries)",
				"image", e.cfg.Image, "fallback", e.cfg.FallbackImage)
			return e.cfg.FallbackImage
		}
	}
	return e.cfg.Image
}

// remove force-removes the container. Best effort: the daemon may already
// have dropped it.
func (e *Executor) remove(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if _, stderr, err := e.exec(ctx, "rm", "-f", name); err != nil {
		e.logger.Debug("container removal failed", "container", name,
			"error", err, "stderr", strings.TrimSpace(stderr))
	}
}

// runDocker executes the docker CLI with separated output streams.
func runDocker(ctx context.Context, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, "docker", args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}
