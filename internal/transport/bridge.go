package transport

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultWriteTimeout bounds one packet write to the helper.
const DefaultWriteTimeout = 100 * time.Millisecond

const (
	// maxPendingSends caps the sends waiting on the bridge; more are dropped.
	maxPendingSends = 8
	// closeGrace is how long Close waits for the helper to exit on its own.
	closeGrace = 2 * time.Second
)

var (
	// ErrBridgeClosed is returned by Send after Close.
	ErrBridgeClosed = errors.New("bridge closed")
	// ErrBridgeBusy is returned when too many sends are already waiting.
	ErrBridgeBusy = errors.New("bridge busy, packet dropped")
)

// Bridge forwards packets to a long-running helper process, typically one
// that owns the radio link to the actuator. Each packet is written to the
// helper's stdin as a 4-byte big-endian length followed by the wire bytes.
// After a failed or timed-out write the helper is killed; the next Send
// starts a new one.
type Bridge struct {
	Command string
	Args    []string
	// WriteTimeout defaults to DefaultWriteTimeout when zero.
	WriteTimeout time.Duration

	pending atomic.Int32

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  *os.File
	starts int
	closed bool
}

// NewBridge creates a Bridge for the given helper command. The helper is
// started lazily on the first Send.
func NewBridge(command string, args ...string) *Bridge {
	return &Bridge{Command: command, Args: args}
}

// Send writes one framed packet to the helper. It never blocks longer than
// the write timeout plus the writes queued ahead of it.
func (b *Bridge) Send(ctx context.Context, p Packet) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if b.pending.Add(1) > maxPendingSends {
		b.pending.Add(-1)
		return ErrBridgeBusy
	}
	defer b.pending.Add(-1)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBridgeClosed
	}
	if err := b.ensureStarted(); err != nil {
		return err
	}

	data := p.Bytes()
	frame := make([]byte, 4+len(data))
	binary.BigEndian.PutUint32(frame, uint32(len(data)))
	copy(frame[4:], data)

	timeout := b.WriteTimeout
	if timeout <= 0 {
		timeout = DefaultWriteTimeout
	}
	b.stdin.SetWriteDeadline(time.Now().Add(timeout))

	if _, err := b.stdin.Write(frame); err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			log.Printf("bridge: helper stopped reading, restarting on next send")
		} else {
			log.Printf("bridge: write failed, restarting on next send: %v", err)
		}
		b.stop(true)
		return fmt.Errorf("write packet: %w", err)
	}
	return nil
}

// Name returns "bridge".
func (b *Bridge) Name() string { return "bridge" }

// Starts returns how many times the helper has been started.
func (b *Bridge) Starts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.starts
}

// Close closes the helper's stdin and waits for it to exit, killing it if
// it is still running after a short grace period.
func (b *Bridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return b.stop(false)
}

func (b *Bridge) ensureStarted() error {
	if b.cmd != nil {
		return nil
	}

	// os.Pipe rather than StdinPipe: the write end must support deadlines.
	r, w, err := os.Pipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}
	cmd := exec.Command(b.Command, b.Args...)
	cmd.Stdin = r
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr

	err = cmd.Start()
	r.Close()
	if err != nil {
		w.Close()
		return fmt.Errorf("start bridge %s: %w", b.Command, err)
	}

	b.cmd = cmd
	b.stdin = w
	b.starts++
	log.Printf("bridge: started %s (pid %d)", b.Command, cmd.Process.Pid)
	return nil
}

func (b *Bridge) stop(kill bool) error {
	if b.cmd == nil {
		return nil
	}
	cmd := b.cmd
	b.stdin.Close()
	b.cmd = nil
	b.stdin = nil

	if kill {
		cmd.Process.Kill()
		cmd.Wait()
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()
	select {
	case err := <-done:
		return err
	case <-time.After(closeGrace):
		log.Printf("bridge: helper did not exit, killing it")
		cmd.Process.Kill()
		<-done
		return nil
	}
}
