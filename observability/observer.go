// Package observability provides event-based observability for the hub
// runtime. Severity levels align with OpenTelemetry SeverityNumbers so
// events translate to OTel collectors without mapping tables.
package observability

import (
	"context"
	"log/slog"
	"time"
)

// Level represents event severity aligned with OTel SeverityNumber ranges.
type Level int

const (
	LevelVerbose Level = 5  // OTel DEBUG (5-8)
	LevelInfo    Level = 9  // OTel INFO (9-12)
	LevelWarning Level = 13 // OTel WARN (13-16)
	LevelError   Level = 17 // OTel ERROR (17-20)
)

// String returns the OTel severity text for the level.
func (l Level) String() string {
	switch {
	case l <= 8:
		return "DEBUG"
	case l <= 12:
		return "INFO"
	case l <= 16:
		return "WARN"
	default:
		return "ERROR"
	}
}

// SlogLevel maps this level to the corresponding slog.Level.
func (l Level) SlogLevel() slog.Level {
	switch {
	case l <= 8:
		return slog.LevelDebug
	case l <= 12:
		return slog.LevelInfo
	case l <= 16:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

// EventType identifies the kind of event. Each subsystem defines its own
// constants using this type (e.g. "hub.turn.start", "router.worker.spawn").
type EventType string

// Event is an observability event emitted by hub subsystems.
type Event struct {
	Type      EventType
	Level     Level
	Timestamp time.Time
	Source    string
	Data      map[string]any
}

// Observer receives events from subsystems for logging, tracing, or metrics.
type Observer interface {
	OnEvent(ctx context.Context, event Event)
}

// Emit is a convenience wrapper that stamps the event time and forwards it.
// A nil observer discards the event.
func Emit(ctx context.Context, o Observer, t EventType, level Level, source string, data map[string]any) {
	if o == nil {
		return
	}
	o.OnEvent(ctx, Event{
		Type:      t,
		Level:     level,
		Timestamp: time.Now(),
		Source:    source,
		Data:      data,
	})
}
