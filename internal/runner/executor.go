package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/metorial/runhistory/internal/models"
)

// waitDelay bounds how long Wait blocks on pipes still held by grandchildren
// after the script itself has been killed.
const waitDelay = 2 * time.Second

type ScriptExecutor struct {
	interpreters map[string]string
	timeout      time.Duration
}

func NewScriptExecutor(interpreters map[string]string, timeout time.Duration) *ScriptExecutor {
	return &ScriptExecutor{
		interpreters: interpreters,
		timeout:      timeout,
	}
}

// Execute runs the script at path and always returns a result. Timeouts and
// launch failures are reported through the result, never as an error.
func (e *ScriptExecutor) Execute(ctx context.Context, path string) *models.RunResult {
	result := &models.RunResult{File: filepath.Base(path)}

	argv, err := e.command(path)
	if err != nil {
		return launchFailure(result, err)
	}

	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)
	cmd.Dir = filepath.Dir(path)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	start := time.Now()
	runErr := cmd.Run()
	result.Duration = time.Since(start)

	return settle(result, runErr, cmd.ProcessState, runCtx.Err(), ctx.Err(), stdout.String(), stderr.String())
}

// settle classifies a finished command. A process that exited on its own is
// judged by its exit status alone, even if the deadline passed meanwhile or
// a grandchild kept the pipes open past waitDelay.
func settle(result *models.RunResult, runErr error, state *os.ProcessState, runCtxErr, parentErr error, stdout, stderr string) *models.RunResult {
	if state != nil && state.Exited() {
		result.ReturnCode = state.ExitCode()
		result.Output = stdout
		result.Error = stderr
		return result
	}

	switch {
	case errors.Is(runCtxErr, context.DeadlineExceeded) && parentErr == nil:
		result.TimedOut = true
		result.Error = models.TimeoutMarker
		result.ReturnCode = models.SentinelReturnCode
		return result
	case parentErr != nil:
		result.Output = stdout
		result.Error = "Cancelled"
		result.ReturnCode = models.SentinelReturnCode
		return result
	}

	var exitErr *exec.ExitError
	if runErr != nil && !errors.As(runErr, &exitErr) {
		return launchFailure(result, runErr)
	}

	// Killed by a signal from outside the batch.
	result.ReturnCode = models.SentinelReturnCode
	if state != nil {
		result.ReturnCode = state.ExitCode()
	}
	result.Output = stdout
	result.Error = stderr
	return result
}

func (e *ScriptExecutor) command(path string) ([]string, error) {
	ext := filepath.Ext(path)
	interpreter, ok := e.interpreters[ext]
	if !ok {
		return nil, fmt.Errorf("no interpreter configured for %q", ext)
	}

	argv := strings.Fields(interpreter)
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty interpreter for %q", ext)
	}

	return append(argv, path), nil
}

func launchFailure(result *models.RunResult, err error) *models.RunResult {
	result.LaunchFailed = true
	result.Output = ""
	result.Error = err.Error()
	result.ReturnCode = models.SentinelReturnCode
	return result
}
