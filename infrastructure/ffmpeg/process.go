package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	pkgerrors "github.com/Skryldev/voiceclip/pkg/errors"
)

// Process represents a running FFmpeg-family subprocess.
type Process struct {
	cmd         *exec.Cmd
	cancel      context.CancelFunc
	stdin       io.WriteCloser
	stderr      *bytes.Buffer
	stopTimeout time.Duration

	done     chan struct{}
	waitErr  error
	killed   bool
	killMu   sync.Mutex
	stopOnce sync.Once
}

// StartProcess launches binary with args. The process is tied to ctx.
func StartProcess(ctx context.Context, binary string, args []string, stopTimeout time.Duration) (*Process, error) {
	ctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(ctx, binary, args...)

	stdinPipe, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		cancel()
		_ = stdinPipe.Close()
		return nil, fmt.Errorf("start %s: %w", binary, err)
	}

	p := &Process{
		cmd:         cmd,
		cancel:      cancel,
		stdin:       stdinPipe,
		stderr:      &stderr,
		stopTimeout: stopTimeout,
		done:        make(chan struct{}),
	}
	go func() {
		p.waitErr = cmd.Wait()
		cancel()
		close(p.done)
	}()
	return p, nil
}

// Stop sends "q" so ffmpeg writes its trailer, then waits. A process that does
// not exit within the stop timeout is killed.
func (p *Process) Stop() error {
	p.stopOnce.Do(func() {
		_, _ = io.WriteString(p.stdin, "q\n")
		_ = p.stdin.Close()
	})

	timer := time.NewTimer(p.stopTimeout)
	defer timer.Stop()
	select {
	case <-p.done:
		return p.exitErr()
	case <-timer.C:
		_ = p.Kill()
		return pkgerrors.NewFFmpegError("process did not stop in time", p.cmd.Args, -1, p.stderr.String(), context.DeadlineExceeded)
	}
}

// Kill terminates the process and waits for it to exit.
func (p *Process) Kill() error {
	p.killMu.Lock()
	p.killed = true
	p.killMu.Unlock()
	p.cancel()
	<-p.done
	return nil
}

// Wait blocks until the process exits.
func (p *Process) Wait() error {
	<-p.done
	return p.exitErr()
}

// Done is closed once the process has exited.
func (p *Process) Done() <-chan struct{} { return p.done }

func (p *Process) exitErr() error {
	p.killMu.Lock()
	killed := p.killed
	p.killMu.Unlock()
	if p.waitErr == nil || killed {
		return nil
	}
	return pkgerrors.NewFFmpegError("process exited with error", p.cmd.Args, exitCode(p.waitErr), p.stderr.String(), p.waitErr)
}
