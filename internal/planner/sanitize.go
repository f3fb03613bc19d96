package planner

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// TaskSuggestion is a generated task proposal.
type TaskSuggestion struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Points      int    `json:"points"`
}

// Valid reports whether s can become a task.
func (s TaskSuggestion) Valid() bool {
	return strings.TrimSpace(s.Title) != "" &&
		strings.TrimSpace(s.Description) != "" &&
		s.Points > 0
}

// StripCodeFences removes a leading ``` or ```json fence and a trailing ```
// fence, trimming whitespace around and between them.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if rest, ok := strings.CutPrefix(s, "```"); ok {
		if len(rest) >= 4 && strings.EqualFold(rest[:4], "json") {
			rest = rest[4:]
		}
		s = strings.TrimSpace(rest)
	}
	if rest, ok := strings.CutSuffix(s, "```"); ok {
		s = strings.TrimSpace(rest)
	}
	return s
}

type rawSuggestion struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Points      json.RawMessage `json:"points"`
}

// ParseSuggestions decodes generator output into suggestions. Output that is
// not a JSON array yields an empty list. Elements that are not objects, or
// that lack a title or description, or whose points are missing,
// non-integer or not positive, are dropped; dropped counts them. Surviving
// elements keep their order.
func ParseSuggestions(raw string) (suggestions []TaskSuggestion, dropped int) {
	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(StripCodeFences(raw)), &elems); err != nil {
		return []TaskSuggestion{}, 0
	}

	suggestions = make([]TaskSuggestion, 0, len(elems))
	for _, elem := range elems {
		s, ok := decodeSuggestion(elem)
		if !ok {
			dropped++
			continue
		}
		suggestions = append(suggestions, s)
	}
	return suggestions, dropped
}

func decodeSuggestion(elem json.RawMessage) (TaskSuggestion, bool) {
	var rs rawSuggestion
	if err := json.Unmarshal(elem, &rs); err != nil {
		return TaskSuggestion{}, false
	}
	points, ok := parsePoints(rs.Points)
	if !ok {
		return TaskSuggestion{}, false
	}
	s := TaskSuggestion{
		Title:       strings.TrimSpace(rs.Title),
		Description: strings.TrimSpace(rs.Description),
		Points:      points,
	}
	return s, s.Valid()
}

// parsePoints accepts a JSON number with an integral value. Strings, null
// and fractional numbers are rejected.
func parsePoints(raw json.RawMessage) (int, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] == '"' || bytes.Equal(raw, []byte("null")) {
		return 0, false
	}
	if n, err := strconv.ParseInt(string(raw), 10, 32); err == nil {
		return int(n), true
	}
	f, err := strconv.ParseFloat(string(raw), 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}
