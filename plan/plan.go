// Package plan extracts the model's structured decision out of its free-text
// output: either a single tool call or plain text. The parser is isolated
// from the model and the orchestrator so its grammar can be tested on its
// own.
package plan

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Decision is the parsed form of one model output: a ToolCall or PlainText.
type Decision interface {
	isDecision()
}

// ToolCall is the model's decision to invoke a tool.
type ToolCall struct {
	Name      string
	Arguments map[string]any
}

func (ToolCall) isDecision() {}

// PlainText is a model output with no tool-call fragment: the final answer.
type PlainText string

func (PlainText) isDecision() {}

var (
	tagRe    = regexp.MustCompile(`(?s)<tool_call>(.*?)</tool_call>`)
	fencedRe = regexp.MustCompile("(?is)```json\\s*(\\{.*?\\})\\s*```")
)

// Parse scans the model output for at most one well-formed tool-call
// fragment. Accepted shapes, in order of precedence:
//
//	<tool_call>{"name":..., "arguments":{...}}</tool_call>
//	a fenced ```json block or the raw output as a single JSON object
//	carrying {"call_tool":{"name":...,"arguments":{...}}} or
//	{"plan":{"need_tool":true,"tool":...,"arguments":{...}}}
//
// Anything else is the final answer.
func Parse(text string) Decision {
	if m := tagRe.FindStringSubmatch(text); m != nil {
		if tc, ok := decodeNameArgs(m[1]); ok {
			return tc
		}
	}

	var candidates []string
	for _, m := range fencedRe.FindAllStringSubmatch(text, -1) {
		candidates = append(candidates, m[1])
	}
	if trimmed := strings.TrimSpace(text); strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}") {
		candidates = append(candidates, trimmed)
	}

	for _, c := range candidates {
		var envelope struct {
			CallTool json.RawMessage `json:"call_tool"`
			Plan     *struct {
				NeedTool  bool            `json:"need_tool"`
				Tool      string          `json:"tool"`
				Arguments json.RawMessage `json:"arguments"`
			} `json:"plan"`
		}
		if err := json.Unmarshal([]byte(c), &envelope); err != nil {
			continue
		}
		if envelope.CallTool != nil {
			if tc, ok := decodeNameArgs(string(envelope.CallTool)); ok {
				return tc
			}
		}
		if p := envelope.Plan; p != nil && p.NeedTool && p.Tool != "" {
			args := map[string]any{}
			if p.Arguments != nil {
				json.Unmarshal(p.Arguments, &args)
			}
			return ToolCall{Name: p.Tool, Arguments: args}
		}
	}

	return PlainText(text)
}

func decodeNameArgs(raw string) (ToolCall, bool) {
	var body struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &body); err != nil || body.Name == "" {
		return ToolCall{}, false
	}
	if body.Arguments == nil {
		body.Arguments = map[string]any{}
	}
	return ToolCall{Name: body.Name, Arguments: body.Arguments}, true
}
