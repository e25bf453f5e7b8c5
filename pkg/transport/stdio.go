// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"slices"
	"sync"
	"time"

	"github.com/wanquanY/Plan-A-sub001/pkg/logger"
)

// shutdownGracePeriod is how long Close waits for a subprocess to exit after
// its stdin is closed before killing it.
const shutdownGracePeriod = 5 * time.Second

// Process is a stdio transport backed by a child process.
type Process struct {
	*lineTransport

	cmd     *exec.Cmd
	stdin   io.WriteCloser
	stdoutR *io.PipeReader

	done    chan struct{}
	waitMu  sync.Mutex
	waitErr error
}

// StartProcess launches cfg.Command and attaches to its standard streams.
func StartProcess(ctx context.Context, cfg Config) (*Process, error) {
	if cfg.Command == "" {
		return nil, errors.New("stdio transport requires a command")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cmd := exec.Command(cfg.Command, cfg.Args...) //nolint:gosec // command comes from operator configuration
	cmd.Env = buildEnv(cfg.Env)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdoutR, stdoutW := io.Pipe()
	cmd.Stdout = stdoutW

	var stderrR *io.PipeReader
	if cfg.Stderr != nil {
		cmd.Stderr = cfg.Stderr
	} else {
		var stderrW *io.PipeWriter
		stderrR, stderrW = io.Pipe()
		cmd.Stderr = stderrW
		defer func() {
			if cmd.Process == nil {
				_ = stderrW.Close()
			}
		}()
	}

	if err := cmd.Start(); err != nil {
		_ = stdoutW.Close()
		return nil, fmt.Errorf("start %s: %w", cfg.Command, err)
	}

	p := &Process{
		cmd:     cmd,
		stdin:   stdin,
		stdoutR: stdoutR,
		done:    make(chan struct{}),
	}
	p.lineTransport = newLineTransport(KindStdio, stdoutR, stdin, p.shutdown)

	if stderrR != nil {
		go logStderr(cfg.Command, stderrR)
	}

	go func() {
		err := cmd.Wait()
		p.waitMu.Lock()
		p.waitErr = err
		p.waitMu.Unlock()
		_ = stdoutW.Close()
		if w, ok := cmd.Stderr.(*io.PipeWriter); ok {
			_ = w.Close()
		}
		close(p.done)
	}()

	logger.Debugw("started tool server process", "command", cfg.Command, "pid", cmd.Process.Pid)
	return p, nil
}

// Pid returns the child process id.
func (p *Process) Pid() int {
	return p.cmd.Process.Pid
}

// Exited is closed once the child process has been reaped.
func (p *Process) Exited() <-chan struct{} {
	return p.done
}

// ExitErr returns the result of waiting on the child, once it has exited.
func (p *Process) ExitErr() error {
	p.waitMu.Lock()
	defer p.waitMu.Unlock()
	return p.waitErr
}

func (p *Process) shutdown() error {
	_ = p.stdin.Close()
	_ = p.stdoutR.Close()

	select {
	case <-p.done:
	case <-time.After(shutdownGracePeriod):
		logger.Warnw("tool server did not exit after stdin closed, killing", "pid", p.cmd.Process.Pid)
		if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			return fmt.Errorf("kill process: %w", err)
		}
		<-p.done
	}
	return nil
}

func buildEnv(extra map[string]string) []string {
	env := os.Environ()
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		env = append(env, k+"="+extra[k])
	}
	return env
}

func logStderr(command string, r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), MaxLineSize)
	for scanner.Scan() {
		logger.Debugw("tool server stderr", "command", command, "line", scanner.Text())
	}
}
