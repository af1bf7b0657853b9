package plan

import (
	"regexp"
	"strings"
)

// Tool names synthesized by the deterministic shortcuts. They must match
// the logical names registered with the router.
const (
	WeatherTool    = "get_weather"
	SheltersTool   = "search_shelters"
	VolunteersTool = "search_volunteers"
)

var weatherPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)weather.*?\bin\s+([a-zA-Z][a-zA-Z\s,.]+)`),
	regexp.MustCompile(`(?i)temperature.*?\bin\s+([a-zA-Z][a-zA-Z\s,.]+)`),
	regexp.MustCompile(`(?i)forecast.*?\bfor\s+([a-zA-Z][a-zA-Z\s,.]+)`),
}

var shelterPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)find.*shelters?.*\bin\s+([a-zA-Z][a-zA-Z\s,.]+)`),
	regexp.MustCompile(`(?i)shelters?\s+near\s+([a-zA-Z][a-zA-Z\s,.]+)`),
	regexp.MustCompile(`(?i)list.*shelters?`),
}

var volunteerPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)find.*volunteers?.*\bin\s+([a-zA-Z][a-zA-Z\s,.]+)`),
	regexp.MustCompile(`(?i)volunteers?\s+near\s+([a-zA-Z][a-zA-Z\s,.]+)`),
	regexp.MustCompile(`(?i)list.*volunteers?`),
}

var fillerRe = regexp.MustCompile(`(?i)\b(today|now|currently|the)\b`)

// Shortcut applies the deterministic pattern matchers against raw user text
// and synthesizes a tool call when one fires. This exists because the model
// does not always reliably choose to call a tool; it is a safety net for
// common phrasings, not a replacement for the planning loop.
func Shortcut(userText string) (ToolCall, bool) {
	for _, re := range weatherPatterns {
		if m := re.FindStringSubmatch(userText); m != nil {
			if city := cleanPlace(m[1]); city != "" {
				return ToolCall{Name: WeatherTool, Arguments: map[string]any{"city": city}}, true
			}
		}
	}
	if tc, ok := matchSearch(shelterPatterns, SheltersTool, userText); ok {
		return tc, true
	}
	if tc, ok := matchSearch(volunteerPatterns, VolunteersTool, userText); ok {
		return tc, true
	}
	return ToolCall{}, false
}

func matchSearch(patterns []*regexp.Regexp, tool, userText string) (ToolCall, bool) {
	for _, re := range patterns {
		m := re.FindStringSubmatch(userText)
		if m == nil {
			continue
		}
		args := map[string]any{}
		if len(m) > 1 {
			if place := cleanPlace(m[1]); place != "" {
				args["name"] = place
			}
		}
		return ToolCall{Name: tool, Arguments: args}, true
	}
	return ToolCall{}, false
}

func cleanPlace(s string) string {
	s = fillerRe.ReplaceAllString(s, "")
	s = strings.Trim(s, " \t.,?!")
	return strings.Join(strings.Fields(s), " ")
}
