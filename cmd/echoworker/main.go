// Command echoworker is a minimal stdio worker used for local testing and
// demos. It speaks line-delimited JSON-RPC: initialize handshake, tools/list,
// and tools/call for an echo tool plus a canned get_weather.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"github.com/aidconnect/hub/core/jsonrpc"
)

// request is the inbound envelope with params left raw for per-method
// decoding.
type request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

type handler func(args map[string]any) jsonrpc.ToolResult

var tools = map[string]handler{
	"echo": func(args map[string]any) jsonrpc.ToolResult {
		text, _ := args["text"].(string)
		return textResult(text)
	},
	"get_weather": func(args map[string]any) jsonrpc.ToolResult {
		city, _ := args["city"].(string)
		if city == "" {
			return errorResult("city is required")
		}
		payload, _ := json.Marshal(map[string]any{
			"current_weather": map[string]any{
				"temperature": 21.5,
				"windspeed":   8.0,
				"weathercode": 1,
			},
			"_geo": map[string]any{"city": city},
		})
		return textResult(string(payload))
	},
}

func main() {
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	enc := json.NewEncoder(os.Stdout)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req request
		if err := json.Unmarshal(line, &req); err != nil {
			continue
		}

		switch req.Method {
		case "initialize":
			reply(enc, req.ID, map[string]any{
				"protocolVersion": "2024-11-05",
				"capabilities":    map[string]any{"tools": map[string]any{}},
				"serverInfo":      map[string]any{"name": "echoworker", "version": "0.1.0"},
			})
		case "notifications/initialized":
			// notification, no response
		case "tools/list":
			reply(enc, req.ID, map[string]any{"tools": toolList()})
		case "tools/call":
			var params jsonrpc.CallToolParams
			if err := json.Unmarshal(req.Params, &params); err != nil {
				replyError(enc, req.ID, -32602, "invalid params")
				continue
			}
			h, ok := tools[params.Name]
			if !ok {
				replyError(enc, req.ID, -32601, fmt.Sprintf("unknown tool: %s", params.Name))
				continue
			}
			reply(enc, req.ID, h(params.Arguments))
		default:
			if req.ID != nil {
				replyError(enc, req.ID, -32601, fmt.Sprintf("unknown method: %s", req.Method))
			}
		}
	}
}

func toolList() []map[string]any {
	out := make([]map[string]any, 0, len(tools))
	for name := range tools {
		out = append(out, map[string]any{"name": name})
	}
	return out
}

func textResult(text string) jsonrpc.ToolResult {
	return jsonrpc.ToolResult{Content: []jsonrpc.ContentItem{{Type: "text", Text: text}}}
}

func errorResult(text string) jsonrpc.ToolResult {
	return jsonrpc.ToolResult{
		Content: []jsonrpc.ContentItem{{Type: "text", Text: text}},
		IsError: true,
	}
}

func reply(enc *json.Encoder, id *int64, result any) {
	raw, _ := json.Marshal(result)
	enc.Encode(map[string]any{
		"jsonrpc": jsonrpc.Version,
		"id":      id,
		"result":  json.RawMessage(raw),
	})
}

func replyError(enc *json.Encoder, id *int64, code int, message string) {
	enc.Encode(map[string]any{
		"jsonrpc": jsonrpc.Version,
		"id":      id,
		"error":   map[string]any{"code": code, "message": message},
	})
}
