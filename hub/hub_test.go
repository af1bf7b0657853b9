package hub

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/aidconnect/hub/core/protocol"
	"github.com/aidconnect/hub/router"
)

// scriptModel replays canned outputs and records every message list it saw.
type scriptModel struct {
	outputs []string
	calls   [][]protocol.Message
	err     error
}

func (m *scriptModel) Chat(ctx context.Context, messages []protocol.Message) (string, error) {
	m.calls = append(m.calls, append([]protocol.Message(nil), messages...))
	if m.err != nil {
		return "", m.err
	}
	i := len(m.calls) - 1
	if i >= len(m.outputs) {
		i = len(m.outputs) - 1
	}
	return m.outputs[i], nil
}

// fakeInvoker serves a fixed tool table without any worker processes.
type fakeInvoker struct {
	results map[string]string
	err     error
	calls   []invocation
}

type invocation struct {
	name string
	args map[string]any
}

func (f *fakeInvoker) Invoke(ctx context.Context, name string, args map[string]any) (string, error) {
	f.calls = append(f.calls, invocation{name: name, args: args})
	if f.err != nil {
		return "", f.err
	}
	return f.results[name], nil
}

func (f *fakeInvoker) Known(name string) bool {
	_, ok := f.results[name]
	return ok
}

func (f *fakeInvoker) Tools() []router.Descriptor {
	out := make([]router.Descriptor, 0, len(f.results))
	for name := range f.results {
		out = append(out, router.Descriptor{Name: name})
	}
	return out
}

func (f *fakeInvoker) Close() error { return nil }

func newTestHub(t *testing.T, m *scriptModel, inv *fakeInvoker, opts ...Option) *Hub {
	t.Helper()
	cfg := DefaultConfig()
	all := append([]Option{WithModel(m), WithRouter(inv)}, opts...)
	h, err := New(&cfg, all...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return h
}

func TestConversePlainReply(t *testing.T) {
	m := &scriptModel{outputs: []string{"Hello!"}}
	inv := &fakeInvoker{results: map[string]string{}}
	h := newTestHub(t, m, inv)

	reply, err := h.Converse(context.Background(), "", "Hi")
	if err != nil {
		t.Fatalf("Converse() error = %v", err)
	}
	if reply.Text != "Hello!" {
		t.Errorf("reply = %q, want Hello!", reply.Text)
	}
	if reply.SessionID == "" {
		t.Error("expected a session id")
	}
	if len(reply.ToolCalls) != 0 {
		t.Errorf("tool calls = %d, want 0", len(reply.ToolCalls))
	}
	if len(m.calls) != 1 {
		t.Errorf("model calls = %d, want 1", len(m.calls))
	}

	// model saw system prompt then the user message
	seen := m.calls[0]
	if len(seen) != 2 {
		t.Fatalf("model saw %d messages, want 2", len(seen))
	}
	if seen[0].Role != protocol.RoleSystem {
		t.Errorf("first role = %q, want system", seen[0].Role)
	}
	if seen[1].Role != protocol.RoleUser || seen[1].Content != "Hi" {
		t.Errorf("second message = %+v", seen[1])
	}
}

func TestConverseToolCallRoundTrip(t *testing.T) {
	m := &scriptModel{outputs: []string{
		`<tool_call>{"name": "fema_query", "arguments": {"dataset": "DisasterDeclarationsSummaries"}}</tool_call>`,
		"There were 3 declarations this month.",
	}}
	inv := &fakeInvoker{results: map[string]string{"fema_query": `{"count": 3}`}}
	h := newTestHub(t, m, inv)

	reply, err := h.Converse(context.Background(), "", "any recent disaster declarations?")
	if err != nil {
		t.Fatalf("Converse() error = %v", err)
	}
	if reply.Text != "There were 3 declarations this month." {
		t.Errorf("reply = %q", reply.Text)
	}
	if len(inv.calls) != 1 || inv.calls[0].name != "fema_query" {
		t.Fatalf("invocations = %+v, want one fema_query", inv.calls)
	}
	if got := inv.calls[0].args["dataset"]; got != "DisasterDeclarationsSummaries" {
		t.Errorf("dataset arg = %v", got)
	}
	if len(reply.ToolCalls) != 1 || reply.ToolCalls[0].Result != `{"count": 3}` {
		t.Errorf("records = %+v", reply.ToolCalls)
	}

	// the second model call must include the observation pair
	if len(m.calls) != 2 {
		t.Fatalf("model calls = %d, want 2", len(m.calls))
	}
	second := m.calls[1]
	var sawCalled, sawResult bool
	for _, msg := range second {
		if msg.Role == protocol.RoleAssistant && strings.Contains(msg.Content, "tool fema_query called") {
			sawCalled = true
		}
		if msg.Role == protocol.RoleUser && strings.HasPrefix(msg.Content, "TOOL_RESULT(fema_query):") {
			sawResult = true
		}
	}
	if !sawCalled || !sawResult {
		t.Errorf("observation pair missing: called=%v result=%v", sawCalled, sawResult)
	}
}

func TestConverseBudgetBoundsToolCalls(t *testing.T) {
	fragment := `<tool_call>{"name": "get_weather", "arguments": {"city": "Reston"}}</tool_call>`
	m := &scriptModel{outputs: []string{fragment}}
	inv := &fakeInvoker{results: map[string]string{"get_weather": "{}"}}
	h := newTestHub(t, m, inv, WithShortcut(nil))

	reply, err := h.Converse(context.Background(), "", "keep calling tools forever")
	if err != nil {
		t.Fatalf("Converse() error = %v", err)
	}
	if len(inv.calls) != 3 {
		t.Errorf("invocations = %d, want 3 (budget)", len(inv.calls))
	}
	// one planning call plus one follow-up per executed tool
	if len(m.calls) != 4 {
		t.Errorf("model calls = %d, want 4", len(m.calls))
	}
	// budget exhausted: the stuck output comes back as the final reply
	if reply.Text != fragment {
		t.Errorf("reply = %q, want last model output", reply.Text)
	}
}

func TestConverseUnsupportedTool(t *testing.T) {
	m := &scriptModel{outputs: []string{
		`<tool_call>{"name": "rm_rf", "arguments": {}}</tool_call>`,
		"I cannot do that.",
	}}
	inv := &fakeInvoker{results: map[string]string{"get_weather": "{}"}}
	h := newTestHub(t, m, inv)

	reply, err := h.Converse(context.Background(), "", "delete everything")
	if err != nil {
		t.Fatalf("Converse() error = %v", err)
	}
	if len(inv.calls) != 0 {
		t.Fatalf("invocations = %d, want 0 for an unsupported tool", len(inv.calls))
	}
	if reply.Text != "I cannot do that." {
		t.Errorf("reply = %q", reply.Text)
	}

	// the refusal observation was fed back to the model
	second := m.calls[1]
	var sawNote bool
	for _, msg := range second {
		if strings.Contains(msg.Content, "unsupported tool 'rm_rf'") {
			sawNote = true
		}
	}
	if !sawNote {
		t.Error("unsupported tool note missing from model input")
	}
}

func TestConverseToolErrorBecomesObservation(t *testing.T) {
	m := &scriptModel{outputs: []string{
		`<tool_call>{"name": "get_weather", "arguments": {"city": "Reston"}}</tool_call>`,
		"The weather service is unavailable right now.",
	}}
	inv := &fakeInvoker{
		results: map[string]string{"get_weather": ""},
		err:     errors.New("worker handshake failed"),
	}
	h := newTestHub(t, m, inv, WithShortcut(nil))

	reply, err := h.Converse(context.Background(), "", "check conditions please")
	if err != nil {
		t.Fatalf("Converse() error = %v", err)
	}
	if len(reply.ToolCalls) != 1 || !reply.ToolCalls[0].IsError {
		t.Fatalf("records = %+v, want one errored call", reply.ToolCalls)
	}
	if !strings.Contains(reply.ToolCalls[0].Result, "worker handshake failed") {
		t.Errorf("record result = %q", reply.ToolCalls[0].Result)
	}

	second := m.calls[1]
	var sawError bool
	for _, msg := range second {
		if strings.HasPrefix(msg.Content, "TOOL_RESULT(get_weather):") &&
			strings.Contains(msg.Content, "worker handshake failed") {
			sawError = true
		}
	}
	if !sawError {
		t.Error("tool error observation missing from model input")
	}
	if reply.Text != "The weather service is unavailable right now." {
		t.Errorf("reply = %q", reply.Text)
	}
}

func TestConverseShortcut(t *testing.T) {
	m := &scriptModel{outputs: []string{"Sunny and 21C in Reston."}}
	inv := &fakeInvoker{results: map[string]string{"get_weather": `{"current_weather": {"temperature": 21}}`}}
	h := newTestHub(t, m, inv)

	reply, err := h.Converse(context.Background(), "", "What's the weather in Reston?")
	if err != nil {
		t.Fatalf("Converse() error = %v", err)
	}
	if len(inv.calls) != 1 {
		t.Fatalf("invocations = %d, want exactly 1", len(inv.calls))
	}
	if inv.calls[0].name != "get_weather" || inv.calls[0].args["city"] != "Reston" {
		t.Errorf("invocation = %+v", inv.calls[0])
	}
	// shortcut path consults the model once, to phrase the answer
	if len(m.calls) != 1 {
		t.Errorf("model calls = %d, want 1", len(m.calls))
	}
	if reply.Text != "Sunny and 21C in Reston." {
		t.Errorf("reply = %q", reply.Text)
	}
}

func TestConverseShortcutSkippedForUnknownTool(t *testing.T) {
	m := &scriptModel{outputs: []string{"I have no weather source."}}
	inv := &fakeInvoker{results: map[string]string{}} // nothing registered
	h := newTestHub(t, m, inv)

	reply, err := h.Converse(context.Background(), "", "What's the weather in Reston?")
	if err != nil {
		t.Fatalf("Converse() error = %v", err)
	}
	if len(inv.calls) != 0 {
		t.Errorf("invocations = %d, want 0", len(inv.calls))
	}
	if reply.Text != "I have no weather source." {
		t.Errorf("reply = %q", reply.Text)
	}
}

func TestConverseSessionContinuity(t *testing.T) {
	m := &scriptModel{outputs: []string{"First reply.", "Second reply."}}
	inv := &fakeInvoker{results: map[string]string{}}
	h := newTestHub(t, m, inv)

	ctx := context.Background()
	first, err := h.Converse(ctx, "", "turn one")
	if err != nil {
		t.Fatalf("first Converse() error = %v", err)
	}
	second, err := h.Converse(ctx, first.SessionID, "turn two")
	if err != nil {
		t.Fatalf("second Converse() error = %v", err)
	}
	if second.SessionID != first.SessionID {
		t.Errorf("session id changed: %q -> %q", first.SessionID, second.SessionID)
	}

	// second model call sees the whole history
	seen := m.calls[1]
	if len(seen) != 4 {
		t.Fatalf("model saw %d messages on turn two, want 4", len(seen))
	}
	want := []string{"turn one", "First reply.", "turn two"}
	for i, content := range want {
		if seen[i+1].Content != content {
			t.Errorf("history[%d] = %q, want %q", i+1, seen[i+1].Content, content)
		}
	}
}

func TestToolsSorted(t *testing.T) {
	m := &scriptModel{outputs: []string{""}}
	inv := &fakeInvoker{results: map[string]string{
		"search_shelters": "", "get_weather": "", "fema_query": "",
	}}
	h := newTestHub(t, m, inv)

	got := h.Tools()
	want := []string{"fema_query", "get_weather", "search_shelters"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Tools() = %v, want %v", got, want)
	}
}

func TestConverseModelError(t *testing.T) {
	m := &scriptModel{err: errors.New("upstream 503")}
	inv := &fakeInvoker{results: map[string]string{}}
	h := newTestHub(t, m, inv)

	if _, err := h.Converse(context.Background(), "", "Hi"); err == nil {
		t.Fatal("expected an error when the model fails")
	}
}
