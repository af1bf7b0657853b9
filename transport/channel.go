// Package transport provides framed, bidirectional message exchange with one
// long-lived child worker process over its standard input/output streams.
//
// A Channel owns the child's lifecycle. Reads go through a single-owner pump
// goroutine so that Receive can honor context deadlines without competing
// readers on the pipe. The transport performs no retries; failures propagate
// to the RPC layer.
package transport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/aidconnect/hub/core/jsonrpc"
)

// Lines larger than this are rejected rather than buffered without bound.
const maxLineBytes = 4 * 1024 * 1024

// killGrace is how long Close waits for the child to exit after closing
// stdin and signalling termination before killing it.
const killGrace = time.Second

type inbound struct {
	resp *jsonrpc.Response
	err  error
}

// Channel is a line-delimited duplex connection to one child process. A
// Channel must have exactly one owner; concurrent senders or receivers must
// serialize above this layer.
type Channel struct {
	w   io.WriteCloser
	cmd *exec.Cmd

	incoming chan inbound

	mu     sync.Mutex
	closed bool
	wErr   error
}

// Spawn starts the given command with piped stdio and returns a live Channel.
// The child's stderr is passed through to the hub's stderr.
func Spawn(name string, args ...string) (*Channel, error) {
	cmd := exec.Command(name, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("spawn %s: %w", name, err)
	}

	c := newChannel(stdin, stdout)
	c.cmd = cmd
	return c, nil
}

// NewPipe builds a Channel over arbitrary streams. Used by tests to stand in
// a scripted peer for a child process.
func NewPipe(w io.WriteCloser, r io.Reader) *Channel {
	return newChannel(w, r)
}

func newChannel(w io.WriteCloser, r io.Reader) *Channel {
	c := &Channel{
		w:        w,
		incoming: make(chan inbound, 8),
	}
	go c.pump(r)
	return c
}

// pump is the single reader of the child's stdout. It decodes one envelope
// per line and hands them to Receive. On end-of-input it closes the incoming
// queue, which Receive reports as ErrChannelClosed.
func (c *Channel) pump(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var resp jsonrpc.Response
		if err := json.Unmarshal(line, &resp); err != nil {
			c.incoming <- inbound{err: fmt.Errorf("%w: %v", ErrChannelDecode, err)}
			continue
		}
		c.incoming <- inbound{resp: &resp}
	}
	close(c.incoming)
}

// Send serializes the envelope to a single line and writes it followed by a
// newline. Fails with ErrChannelWrite once the child has exited or its input
// stream is closed.
func (c *Channel) Send(req jsonrpc.Request) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("%w: marshal: %v", ErrChannelWrite, err)
	}
	if bytes.ContainsRune(data, '\n') {
		return fmt.Errorf("%w: envelope contains newline", ErrChannelWrite)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrChannelClosed
	}
	if c.wErr != nil {
		return c.wErr
	}
	if _, err := c.w.Write(append(data, '\n')); err != nil {
		c.wErr = fmt.Errorf("%w: %v", ErrChannelWrite, err)
		return c.wErr
	}
	return nil
}

// Receive blocks until one full envelope is available, the context expires,
// or the channel dies. End-of-input yields ErrChannelClosed; an undecodable
// line yields ErrChannelDecode and leaves the channel readable.
func (c *Channel) Receive(ctx context.Context) (*jsonrpc.Response, error) {
	select {
	case in, ok := <-c.incoming:
		if !ok {
			return nil, ErrChannelClosed
		}
		return in.resp, in.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close closes the write side, requests process termination, then waits
// briefly for exit before forcibly killing. Idempotent.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	err := c.w.Close()

	if c.cmd != nil && c.cmd.Process != nil {
		c.cmd.Process.Signal(os.Interrupt)
		done := make(chan struct{})
		go func() {
			c.cmd.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(killGrace):
			c.cmd.Process.Kill()
			<-done
		}
	}
	return err
}
