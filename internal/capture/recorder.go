// Package capture records audio by running an external capture command and
// collecting its standard output.
package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

var (
	ErrNotRecording     = errors.New("not recording")
	ErrAlreadyRecording = errors.New("already recording")
)

// Recorder produces one finished audio buffer per Start/Stop pair. There is
// no partial delivery: Stop blocks until the whole recording is available.
type Recorder interface {
	Start(ctx context.Context) error
	Stop() ([]byte, error)
	Recording() bool
}

const defaultStopTimeout = 3 * time.Second

// CommandRecorder runs Command with Args (prefixed by "-D Device" when a
// device is set) and treats its stdout as the recording. Stop interrupts the
// process and waits for it to flush.
type CommandRecorder struct {
	Command     string
	Args        []string
	Device      string
	StopTimeout time.Duration

	mu  sync.Mutex
	cur *run
}

type run struct {
	cmd    *exec.Cmd
	stdout bytes.Buffer
	stderr bytes.Buffer
	done   chan struct{}
	err    error // set before done is closed
}

func NewCommandRecorder(command string, args []string, device string) *CommandRecorder {
	return &CommandRecorder{Command: command, Args: args, Device: device}
}

func (r *CommandRecorder) argv() []string {
	var args []string
	if r.Device != "" {
		args = append(args, "-D", r.Device)
	}
	return append(args, r.Args...)
}

func (r *CommandRecorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cur != nil {
		return ErrAlreadyRecording
	}

	cur := &run{done: make(chan struct{})}
	cur.cmd = exec.CommandContext(ctx, r.Command, r.argv()...) //nolint:gosec
	cur.cmd.Stdout = &cur.stdout
	cur.cmd.Stderr = &cur.stderr
	if err := cur.cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", r.Command, err)
	}

	go func() {
		cur.err = cur.cmd.Wait()
		close(cur.done)
	}()
	r.cur = cur
	return nil
}

func (r *CommandRecorder) Recording() bool {
	r.mu.Lock()
	cur := r.cur
	r.mu.Unlock()
	if cur == nil {
		return false
	}
	select {
	case <-cur.done:
		return false
	default:
		return true
	}
}

// Done is closed when the capture process exits, whether or not Stop was
// called. It is nil when nothing was started.
func (r *CommandRecorder) Done() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cur == nil {
		return nil
	}
	return r.cur.done
}

func (r *CommandRecorder) Stop() ([]byte, error) {
	r.mu.Lock()
	cur := r.cur
	r.cur = nil
	r.mu.Unlock()

	if cur == nil {
		return nil, ErrNotRecording
	}

	interrupted := false
	select {
	case <-cur.done:
	default:
		interrupted = true
		_ = cur.cmd.Process.Signal(os.Interrupt)
		timeout := r.StopTimeout
		if timeout <= 0 {
			timeout = defaultStopTimeout
		}
		select {
		case <-cur.done:
		case <-time.After(timeout):
			_ = cur.cmd.Process.Kill()
			<-cur.done
		}
	}

	data := cur.stdout.Bytes()
	if cur.err != nil {
		var exitErr *exec.ExitError
		if !(interrupted && errors.As(cur.err, &exitErr)) {
			return data, fmt.Errorf("%s: %w%s", r.Command, cur.err, stderrDetail(cur.stderr.String()))
		}
	}
	return data, nil
}

func stderrDetail(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if len(s) > 200 {
		s = s[:200]
	}
	return ": " + s
}
