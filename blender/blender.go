// Package blender runs Blender headless to turn saved component plans into
// .blend scene files. The bridge script is embedded in the binary and
// deployed to a temporary file for every run, so the runner works without
// any on-disk installation besides Blender itself.
package blender

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/meshflow/config"
	"github.com/BaSui01/meshflow/types"
)

//go:embed build_scene.py
var bridgeScript []byte

// EnvBinary overrides Blender executable discovery when set.
const EnvBinary = "MESHFLOW_BLENDER"

const defaultTimeout = 10 * time.Minute

// candidatePaths lists well-known install locations checked after PATH.
var candidatePaths = []string{
	"/Applications/Blender.app/Contents/MacOS/Blender",
	"/usr/bin/blender",
	"/usr/local/bin/blender",
	`C:\Program Files\Blender Foundation\Blender 3.x\blender.exe`,
	`C:\Program Files\Blender Foundation\Blender 4.x\blender.exe`,
}

// Runner invokes Blender in background mode over a plan JSON and reports the
// .blend file it produced. It satisfies the pipeline's scene builder contract.
type Runner struct {
	binary  string
	timeout time.Duration
	logger  *zap.Logger
}

// NewRunner resolves the Blender executable and returns a ready runner.
func NewRunner(cfg config.BlenderConfig, logger *zap.Logger) (*Runner, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	binary, err := Discover(cfg.Binary)
	if err != nil {
		return nil, err
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Runner{
		binary:  binary,
		timeout: timeout,
		logger:  logger.With(zap.String("component", "blender")),
	}, nil
}

// Binary reports the resolved Blender executable path.
func (r *Runner) Binary() string { return r.binary }

// Discover locates the Blender executable. An explicit path wins, then the
// MESHFLOW_BLENDER environment variable, then PATH, then the usual install
// locations per platform.
func Discover(binary string) (string, error) {
	if binary != "" {
		if _, err := os.Stat(binary); err != nil {
			return "", types.NewError(types.ErrBlenderNotFound,
				fmt.Sprintf("configured blender binary %q not found", binary)).WithCause(err)
		}
		return binary, nil
	}
	if env := os.Getenv(EnvBinary); env != "" {
		if _, err := os.Stat(env); err != nil {
			return "", types.NewError(types.ErrBlenderNotFound,
				fmt.Sprintf("%s points at %q which does not exist", EnvBinary, env)).WithCause(err)
		}
		return env, nil
	}
	if path, err := exec.LookPath("blender"); err == nil {
		return path, nil
	}
	for _, candidate := range candidatePaths {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", types.NewError(types.ErrBlenderNotFound,
		"blender executable not found; install Blender or set "+EnvBinary)
}

// Build runs Blender over jsonPath and returns the path of the .blend file
// written next to it. The run is bounded by the configured timeout.
func (r *Runner) Build(ctx context.Context, jsonPath string) (string, error) {
	scriptPath, cleanup, err := r.deployScript()
	if err != nil {
		return "", err
	}
	defer cleanup()

	blendPath := strings.TrimSuffix(jsonPath, filepath.Ext(jsonPath)) + ".blend"

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.binary, "--background", "--python", scriptPath, "--", jsonPath)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	r.logger.Info("building scene",
		zap.String("binary", r.binary),
		zap.String("json", jsonPath))

	runErr := cmd.Run()
	elapsed := time.Since(start)
	if stdout.Len() > 0 {
		r.logger.Debug("blender stdout", zap.String("output", stdout.String()))
	}
	if stderr.Len() > 0 {
		r.logger.Debug("blender stderr", zap.String("output", stderr.String()))
	}

	if runErr != nil {
		if ctx.Err() != nil {
			r.logger.Error("blender run aborted",
				zap.Duration("elapsed", elapsed),
				zap.Error(ctx.Err()))
			return "", types.NewError(types.ErrBlenderFailed,
				fmt.Sprintf("blender aborted after %s", elapsed.Round(time.Millisecond))).WithCause(ctx.Err())
		}
		r.logger.Error("blender exited with an error",
			zap.Duration("elapsed", elapsed),
			zap.String("stderr", lastLines(stderr.String(), 5)),
			zap.Error(runErr))
		return "", types.NewError(types.ErrBlenderFailed, "blender exited with an error").WithCause(runErr)
	}

	if _, err := os.Stat(blendPath); err != nil {
		r.logger.Error("blender exited cleanly but wrote no scene",
			zap.String("expected", blendPath),
			zap.String("stdout", lastLines(stdout.String(), 5)))
		return "", types.NewError(types.ErrBlenderFailed,
			fmt.Sprintf("blender exited cleanly but %s was not written", blendPath))
	}

	r.logger.Info("scene built",
		zap.String("blend", blendPath),
		zap.Duration("elapsed", elapsed))
	return blendPath, nil
}

// deployScript writes the embedded bridge to a temporary file for one run.
func (r *Runner) deployScript() (string, func(), error) {
	dir, err := os.MkdirTemp("", "meshflow-blender-")
	if err != nil {
		return "", nil, fmt.Errorf("create bridge script dir: %w", err)
	}
	path := filepath.Join(dir, "build_scene.py")
	if err := os.WriteFile(path, bridgeScript, 0o644); err != nil {
		_ = os.RemoveAll(dir)
		return "", nil, fmt.Errorf("write bridge script: %w", err)
	}
	return path, func() { _ = os.RemoveAll(dir) }, nil
}

// lastLines returns up to n trailing non-empty lines of s, joined for logging.
func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	keep := make([]string, 0, n)
	for i := len(lines) - 1; i >= 0 && len(keep) < n; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			keep = append([]string{line}, keep...)
		}
	}
	return strings.Join(keep, " | ")
}
