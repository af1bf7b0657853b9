package hub

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/aidconnect/hub/model"
	"github.com/aidconnect/hub/router"
	"github.com/aidconnect/hub/session"
)

const (
	defaultMaxToolCalls   = 3
	defaultCallTimeoutSec = 30
)

// Config holds initialization parameters for all hub subsystems.
type Config struct {
	Model          model.Config                 `json:"model"`
	Session        session.Config               `json:"session"`
	Workers        map[string]router.WorkerSpec `json:"workers,omitempty"`
	Tools          []router.Descriptor          `json:"tools,omitempty"`
	MaxToolCalls   int                          `json:"max_tool_calls,omitempty"`
	CallTimeoutSec float64                      `json:"call_timeout_sec,omitempty"`
	SystemPrompt   string                       `json:"system_prompt,omitempty"`
}

// DefaultConfig returns a Config with the stock worker command, the default
// tool allow-list, and sensible loop bounds.
func DefaultConfig() Config {
	return Config{
		Model:          model.DefaultConfig(),
		Session:        session.DefaultConfig(),
		Workers:        defaultWorkers(),
		Tools:          defaultTools(),
		MaxToolCalls:   defaultMaxToolCalls,
		CallTimeoutSec: defaultCallTimeoutSec,
		SystemPrompt:   SystemToolUse,
	}
}

func defaultWorkers() map[string]router.WorkerSpec {
	return map[string]router.WorkerSpec{
		"hub": {Command: "python3", Args: []string{"hub_server.py"}},
	}
}

// defaultTools is the static allow-list: logical name, owning worker role,
// and the argument schema used for presence checks.
func defaultTools() []router.Descriptor {
	return []router.Descriptor{
		{Name: "get_weather", Worker: "hub", Args: map[string]string{"city": "string"}},
		{Name: "disaster_plan", Worker: "hub", Args: map[string]string{"city": "string", "hazard": "string"}},
		{Name: "fema_query", Worker: "hub", Args: map[string]string{
			"dataset": "string", "filter": "string", "select": "string",
			"orderby": "string", "top": "number", "skip": "number",
		}},
		{Name: "arcgis_query", Worker: "hub", Args: map[string]string{
			"data_api_url": "string", "where": "string", "fields": "string",
			"limit": "number", "offset": "number", "bbox": "string",
		}},
		{Name: "search_shelters", Worker: "hub", Args: map[string]string{
			"name": "string", "lat": "number", "lon": "number",
			"max_distance_km": "number", "k": "number",
		}},
		{Name: "search_volunteers", Worker: "hub", Args: map[string]string{
			"name": "string", "lat": "number", "lon": "number",
			"max_distance_km": "number", "k": "number",
		}},
	}
}

// Merge applies non-zero values from source into c, delegating to each
// subsystem's Merge method.
func (c *Config) Merge(source *Config) {
	c.Model.Merge(&source.Model)
	c.Session.Merge(&source.Session)

	if len(source.Workers) > 0 {
		c.Workers = source.Workers
	}
	if len(source.Tools) > 0 {
		c.Tools = source.Tools
	}
	if source.MaxToolCalls > 0 {
		c.MaxToolCalls = source.MaxToolCalls
	}
	if source.CallTimeoutSec > 0 {
		c.CallTimeoutSec = source.CallTimeoutSec
	}
	if source.SystemPrompt != "" {
		c.SystemPrompt = source.SystemPrompt
	}
}

// LoadConfig reads a JSON config file and merges it over the defaults.
func LoadConfig(filename string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var loaded Config
	if err := json.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.Merge(&loaded)
	return &cfg, nil
}
