package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/Coding-Simba/bank-statement-converter-unified-sub002/internal/logger"
)

// killGrace is how long a killed worker may take to release its pipes.
const killGrace = 2 * time.Second

// Process runs each request in a fresh child process: the same binary
// started with WorkerArg. The child gets its own scratch directory as
// TMPDIR, which is removed once the child is gone, however it ended.
type Process struct {
	// Path is the worker binary; empty means the running executable.
	Path string
	// Env is added to the child's environment.
	Env []string
}

// NewProcess returns a runner that re-executes the running binary.
func NewProcess() (*Process, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locate executable: %w", err)
	}
	return &Process{Path: exe}, nil
}

// Run implements Runner. The child is killed, with every process it
// started, when ctx ends.
func (p *Process) Run(ctx context.Context, req Request) (Response, error) {
	log := logger.FromContext(ctx)
	path := p.Path
	if path == "" {
		exe, err := os.Executable()
		if err != nil {
			return Response{Attempt: emptyAttempt(req)}, fmt.Errorf("locate executable: %w", err)
		}
		path = exe
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return Response{Attempt: emptyAttempt(req)}, fmt.Errorf("encode request: %w", err)
	}
	scratch, err := os.MkdirTemp("", "stmt-worker-*")
	if err != nil {
		return Response{Attempt: emptyAttempt(req)}, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	cmd := exec.CommandContext(ctx, path, WorkerArg)
	cmd.Env = append(append(os.Environ(), p.Env...), "TMPDIR="+scratch)
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = killGrace
	isolate(cmd)

	started := time.Now()
	runErr := cmd.Run()
	if stderr.Len() > 0 {
		log.Debug().Str("strategy", req.Strategy).Str("worker_stderr", strings.TrimSpace(stderr.String())).Msg("worker output")
	}
	if ctx.Err() != nil {
		log.Warn().Str("strategy", req.Strategy).Dur("elapsed", time.Since(started)).Msg("strategy worker killed")
		return Response{Attempt: emptyAttempt(req)}, timeout(ctx, req.Strategy)
	}

	var resp Response
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		if runErr != nil {
			return Response{Attempt: emptyAttempt(req)}, fmt.Errorf("%w: %s: %v", ErrWorkerCrashed, req.Strategy, runErr)
		}
		return Response{Attempt: emptyAttempt(req)}, fmt.Errorf("%w: %s: bad response: %v", ErrWorkerCrashed, req.Strategy, err)
	}
	return resp, nil
}
