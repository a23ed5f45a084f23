// Package intake turns one raw inbound message into a reply, a set of
// executed side-effect actions and a thread update. It is the only entry
// point for tenant messages regardless of channel.
package intake

import (
	"encoding/json"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"rental_portal_backend/platform/logger"
)

// Known action discriminators. Anything else is an unknown action, which the
// executor records as a no-op instead of failing.
const (
	ActionMaintenanceRequest = "maintenance_request"
	ActionAlertManager       = "alert_manager"
)

// MaintenanceRequestAction asks for a maintenance ticket to be opened.
type MaintenanceRequestAction struct {
	Description string
	Priority    string
}

// AlertManagerAction asks for the property owner to be notified.
type AlertManagerAction struct {
	Message string
	Urgency string
}

// Action is the closed union of everything a reply block can request. Type
// holds the raw discriminator; exactly one variant pointer is set for known
// types, none for unknown ones.
type Action struct {
	Type        string
	Maintenance *MaintenanceRequestAction
	Alert       *AlertManagerAction
}

// dedupeKey is the equivalence key: the (type, description, priority) triple
// with missing fields as empty strings.
func (a Action) dedupeKey() string {
	description, priority := "", ""
	if a.Maintenance != nil {
		description = a.Maintenance.Description
		priority = a.Maintenance.Priority
	}
	return a.Type + "\x00" + description + "\x00" + priority
}

// rawAction is the wire shape of an embedded block before it is narrowed
// into a variant.
type rawAction struct {
	Action      string `json:"action"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	Message     string `json:"message"`
	Urgency     string `json:"urgency"`
}

// ExtractActions scans reply text for embedded structured blocks, parses the
// ones carrying an action discriminator and returns them in order of
// appearance, together with the reply text with every action block removed.
// Malformed action blocks are logged and skipped; the prose always survives.
func ExtractActions(reply string, log *logger.Logger) ([]Action, string) {
	var actions []Action
	var kept strings.Builder

	i := 0
	for i < len(reply) {
		start := strings.IndexByte(reply[i:], '{')
		if start < 0 {
			kept.WriteString(reply[i:])
			break
		}
		start += i
		kept.WriteString(reply[i:start])

		block, end := balancedObject(reply, start)
		if !strings.Contains(block, `"action"`) && !strings.Contains(block, "'action'") && !strings.Contains(block, "action:") {
			// Not an action block; keep the text as-is and move past the brace.
			kept.WriteByte(reply[start])
			i = start + 1
			continue
		}

		action, ok := parseActionBlock(block)
		if ok {
			actions = append(actions, action)
		} else if log != nil {
			log.Warn("malformed action block skipped", "block", truncateForLog(block))
		}
		// Drop the block from the tenant-facing text either way.
		i = end
	}

	return actions, tidyReply(kept.String())
}

// balancedObject returns the object starting at reply[start] and the index
// just past it. Braces inside string literals do not count. An unterminated
// object extends to the end of the text.
func balancedObject(s string, start int) (string, int) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], i + 1
			}
		}
	}
	return s[start:], len(s)
}

func parseActionBlock(block string) (Action, bool) {
	var raw rawAction
	if err := json.Unmarshal([]byte(block), &raw); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(block)
		if repairErr != nil {
			return Action{}, false
		}
		if err := json.Unmarshal([]byte(repaired), &raw); err != nil {
			return Action{}, false
		}
	}
	if raw.Action == "" {
		return Action{}, false
	}

	action := Action{Type: raw.Action}
	switch raw.Action {
	case ActionMaintenanceRequest:
		action.Maintenance = &MaintenanceRequestAction{
			Description: raw.Description,
			Priority:    raw.Priority,
		}
	case ActionAlertManager:
		action.Alert = &AlertManagerAction{
			Message: raw.Message,
			Urgency: raw.Urgency,
		}
	}
	return action, true
}

// tidyReply removes leftover code-fence markers and collapses the blank runs
// that stripping blocks leaves behind.
func tidyReply(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")

	lines := strings.Split(s, "\n")
	var out []string
	blank := 0
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			blank++
			if blank > 1 {
				continue
			}
		} else {
			blank = 0
		}
		out = append(out, strings.TrimRight(line, " \t"))
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

func truncateForLog(s string) string {
	const max = 200
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
