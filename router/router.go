// Package router maps logical tool names onto the workers that serve them.
//
// The descriptor table is built once at startup and read-only thereafter.
// Worker handles are spawned lazily on first use, shared across sessions,
// and torn down when their channel dies; the next invocation respawns fresh.
package router

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/aidconnect/hub/core/jsonrpc"
	"github.com/aidconnect/hub/mcp"
	"github.com/aidconnect/hub/observability"
	"github.com/aidconnect/hub/transport"
)

// Router event types.
const (
	EventWorkerSpawn observability.EventType = "router.worker.spawn"
	EventWorkerDead  observability.EventType = "router.worker.dead"
	EventMissingArgs observability.EventType = "router.args.missing"
)

// Descriptor binds a logical tool name to the worker role and remote tool
// name that serve it. Args maps parameter names to primitive type tags and
// is used only for presence checks, never coercion.
type Descriptor struct {
	Name       string            `json:"name"`
	Worker     string            `json:"worker"`
	RemoteName string            `json:"remote_name,omitempty"`
	Args       map[string]string `json:"args,omitempty"`
}

// WorkerSpec is the command line that spawns a worker role.
type WorkerSpec struct {
	Command string   `json:"command"`
	Args    []string `json:"args,omitempty"`
}

// Option configures a Router.
type Option func(*Router)

// WithObserver sets the event observer.
func WithObserver(o observability.Observer) Option {
	return func(r *Router) { r.observer = o }
}

// WithCallTimeout sets the per-call deadline applied to worker RPC clients.
func WithCallTimeout(d time.Duration) Option {
	return func(r *Router) { r.callTimeout = d }
}

// WithSpawner overrides how worker channels are created. Tests use this to
// substitute in-memory pipes for real child processes.
func WithSpawner(spawn func(spec WorkerSpec) (*transport.Channel, error)) Option {
	return func(r *Router) { r.spawn = spawn }
}

// Router resolves and invokes tools. Safe for concurrent use: the handle
// table is guarded by a mutex, spawn-if-absent collapses concurrent spawns
// of one role through singleflight, and each worker's RPC client serializes
// calls on its channel.
type Router struct {
	specs       map[string]WorkerSpec
	tools       map[string]Descriptor
	info        jsonrpc.ClientInfo
	callTimeout time.Duration
	observer    observability.Observer
	spawn       func(spec WorkerSpec) (*transport.Channel, error)

	mu      sync.Mutex
	workers map[string]*mcp.Client
	flight  singleflight.Group
}

// New builds a Router from worker specs and tool descriptors. Descriptors
// referencing an unregistered worker role are rejected.
func New(specs map[string]WorkerSpec, descriptors []Descriptor, info jsonrpc.ClientInfo, opts ...Option) (*Router, error) {
	r := &Router{
		specs:   specs,
		tools:   make(map[string]Descriptor, len(descriptors)),
		info:    info,
		workers: make(map[string]*mcp.Client),
		spawn: func(spec WorkerSpec) (*transport.Channel, error) {
			return transport.Spawn(spec.Command, spec.Args...)
		},
	}
	for _, opt := range opts {
		opt(r)
	}

	for _, d := range descriptors {
		if _, ok := specs[d.Worker]; !ok {
			return nil, fmt.Errorf("%w: %s (tool %s)", ErrUnknownWorker, d.Worker, d.Name)
		}
		if d.RemoteName == "" {
			d.RemoteName = d.Name
		}
		r.tools[d.Name] = d
	}
	return r, nil
}

// Tools returns the registered descriptors' logical names.
func (r *Router) Tools() []Descriptor {
	out := make([]Descriptor, 0, len(r.tools))
	for _, d := range r.tools {
		out = append(out, d)
	}
	return out
}

// Known reports whether a logical tool name is registered.
func (r *Router) Known(name string) bool {
	_, ok := r.tools[name]
	return ok
}

// Invoke resolves the logical name, spawns and handshakes the owning worker
// if it is not live, and delegates the call. Remote tool errors and call
// timeouts come back as errors for the orchestrator to surface as
// observations; a dead channel additionally discards the worker handle so
// the next invocation respawns.
func (r *Router) Invoke(ctx context.Context, name string, args map[string]any) (string, error) {
	desc, ok := r.tools[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	r.checkArgs(ctx, desc, args)

	client, err := r.worker(ctx, desc.Worker)
	if err != nil {
		return "", err
	}

	result, err := client.CallTool(ctx, desc.RemoteName, args)
	if err != nil {
		if errors.Is(err, transport.ErrChannelClosed) || errors.Is(err, mcp.ErrCallTimeout) {
			r.discard(ctx, desc.Worker, client, err)
		}
		return "", err
	}
	return result, nil
}

// Close tears down all live worker handles.
func (r *Router) Close() error {
	r.mu.Lock()
	workers := r.workers
	r.workers = make(map[string]*mcp.Client)
	r.mu.Unlock()

	var firstErr error
	for _, c := range workers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// worker returns the live handle for a role, spawning and handshaking it if
// absent. Concurrent callers for the same role share one spawn attempt.
func (r *Router) worker(ctx context.Context, role string) (*mcp.Client, error) {
	r.mu.Lock()
	if c, ok := r.workers[role]; ok {
		r.mu.Unlock()
		return c, nil
	}
	r.mu.Unlock()

	v, err, _ := r.flight.Do(role, func() (any, error) {
		r.mu.Lock()
		if c, ok := r.workers[role]; ok {
			r.mu.Unlock()
			return c, nil
		}
		r.mu.Unlock()

		spec := r.specs[role]
		ch, err := r.spawn(spec)
		if err != nil {
			return nil, fmt.Errorf("spawn worker %s: %w", role, err)
		}

		client := mcp.NewClient(ch, r.callTimeout)
		if err := client.Initialize(ctx, r.info); err != nil {
			client.Close()
			return nil, fmt.Errorf("worker %s: %w", role, err)
		}

		observability.Emit(ctx, r.observer, EventWorkerSpawn, observability.LevelInfo, "router", map[string]any{
			"role":    role,
			"command": spec.Command,
		})

		r.mu.Lock()
		r.workers[role] = client
		r.mu.Unlock()
		return client, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*mcp.Client), nil
}

// discard drops a dead handle so the next invocation respawns lazily. Only
// the exact handle that failed is removed, in case a respawn already
// replaced it.
func (r *Router) discard(ctx context.Context, role string, client *mcp.Client, cause error) {
	r.mu.Lock()
	if r.workers[role] == client {
		delete(r.workers, role)
	}
	r.mu.Unlock()
	client.Close()

	observability.Emit(ctx, r.observer, EventWorkerDead, observability.LevelWarning, "router", map[string]any{
		"role":  role,
		"cause": cause.Error(),
	})
}

// checkArgs notes declared parameters missing from the call. Missing values
// are passed through unset rather than defaulted; the remote tool owns its
// own defaults.
func (r *Router) checkArgs(ctx context.Context, desc Descriptor, args map[string]any) {
	var missing []string
	for param := range desc.Args {
		if _, ok := args[param]; !ok {
			missing = append(missing, param)
		}
	}
	if len(missing) > 0 {
		observability.Emit(ctx, r.observer, EventMissingArgs, observability.LevelVerbose, "router", map[string]any{
			"tool":    desc.Name,
			"missing": missing,
		})
	}
}
