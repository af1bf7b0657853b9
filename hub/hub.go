// Package hub implements the conversational orchestrator: the loop that
// owns per-session history, asks the language model for a plan, executes
// tool calls through the router, feeds observations back, and produces the
// final reply for each user turn.
//
//	h, err := hub.New(cfg)
//	reply, err := h.Converse(ctx, "", "weather in Reston?")
package hub

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aidconnect/hub/core/jsonrpc"
	"github.com/aidconnect/hub/core/protocol"
	"github.com/aidconnect/hub/model"
	"github.com/aidconnect/hub/observability"
	"github.com/aidconnect/hub/plan"
	"github.com/aidconnect/hub/router"
	"github.com/aidconnect/hub/session"
)

// clientInfo identifies this hub to workers during the handshake.
var clientInfo = jsonrpc.ClientInfo{Name: "aidconnect-hub", Version: "0.2.0"}

// Reply is the outcome of one user turn.
type Reply struct {
	SessionID string           `json:"session_id"`
	Text      string           `json:"reply"`
	ToolCalls []ToolCallRecord `json:"-"`
}

// ToolCallRecord logs one tool invocation made during a turn.
type ToolCallRecord struct {
	Name      string
	Arguments map[string]any
	Result    string
	IsError   bool
}

// ToolInvoker abstracts the router for testability.
type ToolInvoker interface {
	Invoke(ctx context.Context, name string, args map[string]any) (string, error)
	Known(name string) bool
	Tools() []router.Descriptor
	Close() error
}

// Option configures a Hub after config-driven initialization.
type Option func(*Hub)

// WithModel overrides the config-created model client.
func WithModel(m model.Client) Option {
	return func(h *Hub) { h.model = m }
}

// WithRouter overrides the config-created tool router.
func WithRouter(r ToolInvoker) Option {
	return func(h *Hub) { h.router = r }
}

// WithSessions overrides the config-created session store.
func WithSessions(s *session.Store) Option {
	return func(h *Hub) { h.sessions = s }
}

// WithObserver overrides the default NoOpObserver.
func WithObserver(o observability.Observer) Option {
	return func(h *Hub) { h.observer = o }
}

// WithShortcut overrides the deterministic pre-parsing matchers. Passing
// nil disables shortcuts entirely.
func WithShortcut(fn func(string) (plan.ToolCall, bool)) Option {
	return func(h *Hub) { h.shortcut = fn }
}

// Hub is the orchestration runtime. Turns for different sessions run fully
// in parallel; turns for one session serialize through the session's turn
// lock.
type Hub struct {
	model        model.Client
	router       ToolInvoker
	sessions     *session.Store
	observer     observability.Observer
	maxToolCalls int
	systemPrompt string
	shortcut     func(string) (plan.ToolCall, bool)
}

// New creates a Hub from configuration. Functional options applied after
// initialization can override any subsystem for testing.
func New(cfg *Config, opts ...Option) (*Hub, error) {
	m, err := model.New(&cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to create model client: %w", err)
	}

	rt, err := router.New(cfg.Workers, cfg.Tools, clientInfo,
		router.WithCallTimeout(secondsToDuration(cfg.CallTimeoutSec)))
	if err != nil {
		return nil, fmt.Errorf("failed to create router: %w", err)
	}

	maxCalls := cfg.MaxToolCalls
	if maxCalls <= 0 {
		maxCalls = defaultMaxToolCalls
	}

	h := &Hub{
		model:        m,
		router:       rt,
		sessions:     session.NewStore(cfg.Session),
		observer:     observability.NoOpObserver{},
		maxToolCalls: maxCalls,
		systemPrompt: cfg.SystemPrompt,
		shortcut:     plan.Shortcut,
	}

	for _, opt := range opts {
		opt(h)
	}

	return h, nil
}

// Close tears down all live worker handles.
func (h *Hub) Close() error {
	return h.router.Close()
}

// Tools returns the logical names of the registered tools, sorted.
func (h *Hub) Tools() []string {
	descriptors := h.router.Tools()
	names := make([]string, 0, len(descriptors))
	for _, d := range descriptors {
		names = append(names, d.Name)
	}
	sort.Strings(names)
	return names
}

// Converse runs one user turn to completion: append the message, plan with
// the model, execute at most maxToolCalls tool round-trips, and return the
// final reply. An empty sessionID starts a new session whose id is returned
// in the Reply.
func (h *Hub) Converse(ctx context.Context, sessionID, message string) (*Reply, error) {
	sess := h.sessions.GetOrCreate(sessionID)
	sess.BeginTurn()
	defer sess.EndTurn()

	if sess.Len() == 0 && h.systemPrompt != "" {
		sess.Append(protocol.NewMessage(protocol.RoleSystem, h.systemPrompt))
	}
	sess.Append(protocol.NewMessage(protocol.RoleUser, message))

	reply := &Reply{SessionID: sess.ID()}

	observability.Emit(ctx, h.observer, EventTurnStart, observability.LevelInfo, "hub.Converse", map[string]any{
		"session":        sess.ID(),
		"message_length": len(message),
	})

	// Deterministic safety net: recognize common phrasings without asking
	// the model whether to call a tool. The model is consulted only to
	// phrase the final answer from the result.
	if h.shortcut != nil {
		if tc, ok := h.shortcut(message); ok && h.router.Known(tc.Name) {
			observability.Emit(ctx, h.observer, EventShortcut, observability.LevelVerbose, "hub.Converse", map[string]any{
				"tool": tc.Name,
			})
			return h.finishShortcut(ctx, sess, reply, tc)
		}
	}

	out, err := h.model.Chat(ctx, sess.Messages())
	if err != nil {
		return reply, fmt.Errorf("model call failed: %w", err)
	}

	for i := 0; i < h.maxToolCalls; i++ {
		if err := ctx.Err(); err != nil {
			return reply, err
		}

		tc, ok := plan.Parse(out).(plan.ToolCall)
		if !ok {
			return h.finish(ctx, sess, reply, out)
		}

		observability.Emit(ctx, h.observer, EventPlan, observability.LevelVerbose, "hub.Converse", map[string]any{
			"iteration": i + 1,
			"tool":      tc.Name,
		})

		if !h.router.Known(tc.Name) {
			// Not on the allow-list: never reaches a worker. Record the
			// refusal and let the model recover; this costs an iteration.
			sess.Append(protocol.UnsupportedToolNote(tc.Name))
			out, err = h.model.Chat(ctx, sess.Messages())
			if err != nil {
				return reply, fmt.Errorf("model call failed: %w", err)
			}
			continue
		}

		record := h.execute(ctx, sess, tc)
		reply.ToolCalls = append(reply.ToolCalls, record)

		out, err = h.model.Chat(ctx, sess.Messages())
		if err != nil {
			return reply, fmt.Errorf("model call failed: %w", err)
		}
	}

	// Budget exhausted while the model still wants a tool: return its last
	// output without further execution.
	observability.Emit(ctx, h.observer, EventError, observability.LevelWarning, "hub.Converse", map[string]any{
		"session": sess.ID(),
		"error":   "tool call budget exhausted",
	})
	return h.finish(ctx, sess, reply, out)
}

// execute invokes one tool and appends the observation pair to history. Any
// invocation error becomes the result text; the model must be allowed to
// see failures rather than crash the turn.
func (h *Hub) execute(ctx context.Context, sess *session.Session, tc plan.ToolCall) ToolCallRecord {
	observability.Emit(ctx, h.observer, EventToolCall, observability.LevelVerbose, "hub.Converse", map[string]any{
		"tool": tc.Name,
	})

	record := ToolCallRecord{Name: tc.Name, Arguments: tc.Arguments}

	result, err := h.router.Invoke(ctx, tc.Name, tc.Arguments)
	if err != nil {
		result = fmt.Sprintf("[TOOL ERROR] %v", err)
		record.IsError = true
	}
	record.Result = result

	sess.Append(protocol.ToolCalledNote(tc.Name, tc.Arguments))
	sess.Append(protocol.ToolResultNote(tc.Name, result))

	observability.Emit(ctx, h.observer, EventToolComplete, observability.LevelVerbose, "hub.Converse", map[string]any{
		"tool":  tc.Name,
		"error": record.IsError,
	})
	return record
}

// finishShortcut executes the synthesized call, then asks the model once to
// phrase the final answer from the tool result.
func (h *Hub) finishShortcut(ctx context.Context, sess *session.Session, reply *Reply, tc plan.ToolCall) (*Reply, error) {
	record := h.execute(ctx, sess, tc)
	reply.ToolCalls = append(reply.ToolCalls, record)

	out, err := h.model.Chat(ctx, sess.Messages())
	if err != nil {
		return reply, fmt.Errorf("model call failed: %w", err)
	}
	return h.finish(ctx, sess, reply, out)
}

func (h *Hub) finish(ctx context.Context, sess *session.Session, reply *Reply, out string) (*Reply, error) {
	sess.Append(protocol.NewMessage(protocol.RoleAssistant, out))
	reply.Text = out

	observability.Emit(ctx, h.observer, EventReply, observability.LevelInfo, "hub.Converse", map[string]any{
		"session":      sess.ID(),
		"reply_length": len(out),
		"tool_calls":   len(reply.ToolCalls),
	})
	return reply, nil
}

func secondsToDuration(sec float64) time.Duration {
	return time.Duration(sec * float64(time.Second))
}
