package alert

import (
	"encoding/json"
	"fmt"
)

// FormatPayload builds the webhook body for the given format.
func FormatPayload(format string, event Event) ([]byte, error) {
	switch format {
	case "slack":
		return formatSlack(event)
	case "pagerduty":
		return formatPagerDuty(event)
	default:
		return json.Marshal(event)
	}
}

func formatSlack(event Event) ([]byte, error) {
	payload := map[string]any{
		"blocks": []any{
			map[string]any{
				"type": "header",
				"text": map[string]any{
					"type": "plain_text",
					"text": fmt.Sprintf("jib gateway: %s %s", event.Decision, event.Operation),
				},
			},
			map[string]any{
				"type": "section",
				"fields": []any{
					map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Repository:* %s", event.Repository)},
					map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Kind:* %s", event.Kind)},
					map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Reason:* %s", event.Reason)},
					map[string]any{"type": "mrkdwn", "text": fmt.Sprintf("*Request:* %s", event.RequestID)},
				},
			},
		},
	}
	return json.Marshal(payload)
}

func formatPagerDuty(event Event) ([]byte, error) {
	payload := map[string]any{
		"event_action": "trigger",
		"payload": map[string]any{
			"summary":  fmt.Sprintf("jib gateway %s %s: %s", event.Decision, event.Operation, event.Repository),
			"severity": severityFor(event.Kind),
			"source":   "jib-gateway",
			"custom_details": map[string]any{
				"operation":  event.Operation,
				"repository": event.Repository,
				"kind":       event.Kind,
				"reason":     event.Reason,
				"request_id": event.RequestID,
			},
		},
	}
	return json.Marshal(payload)
}

// severityFor ranks denial kinds. Blocked commands and policy violations
// point at an agent probing its limits.
func severityFor(kind string) string {
	switch kind {
	case "command_blocked", "policy_violation", "binary_tamper":
		return "critical"
	case "branch_not_owned", "pr_not_owned", "merge_blocked":
		return "warning"
	case "":
		return "info"
	default:
		return "error"
	}
}
