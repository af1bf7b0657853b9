package hub

import "github.com/aidconnect/hub/observability"

// Hub event types emitted during the conversational loop.
const (
	EventTurnStart    observability.EventType = "hub.turn.start"
	EventShortcut     observability.EventType = "hub.shortcut"
	EventPlan         observability.EventType = "hub.plan"
	EventToolCall     observability.EventType = "hub.tool.call"
	EventToolComplete observability.EventType = "hub.tool.complete"
	EventReply        observability.EventType = "hub.reply"
	EventError        observability.EventType = "hub.error"
)
