package assistant

import (
	"fmt"
	"strings"
)

const replySystemPrompt = `You are a professional, friendly virtual property manager replying to a tenant on behalf of the property owner.

Guidelines:
- Answer the tenant's question directly using the property details provided.
- Keep replies short and conversational; the tenant may be reading on a phone.
- Never invent property details, prices, or policies that were not provided.
- If the tenant reports a problem with the property, include a maintenance request block.
- If the situation needs the owner's personal attention (emergencies, legal issues, complaints about neighbors, anything you cannot resolve), include a manager alert block.

Action blocks are JSON objects embedded in your reply, each on its own lines:

{"action": "maintenance_request", "description": "<what is broken and where>", "priority": "<emergency|urgent|normal|low>"}

{"action": "alert_manager", "message": "<what the owner needs to know>", "urgency": "<emergency|urgent|normal|low>"}

Emit an action block only when warranted. The blocks are removed before the reply reaches the tenant, so write the reply text as if they were not there.`

const escalationSystemPrompt = `You review a tenant conversation and decide whether it needs a human property manager to take over.

Signals: rising frustration or anger, repeated unresolved complaints, legal threats, safety concerns, requests the assistant cannot fulfil.

Respond with only a JSON object:
{"is_escalating": <true|false>, "confidence": <0.0-1.0>, "reasoning": "<one sentence>"}`

const categorizeSystemPrompt = `You label a tenant conversation with a topic and subtopic.

Topics: maintenance, payments, lease, amenities, complaints, move_in_out, general.

Respond with only a JSON object:
{"topic": "<topic>", "subtopic": "<short free-form label or empty>"}`

const summarizeSystemPrompt = `Summarize the tenant conversation in at most three sentences. State the tenant's concern, what was done, and anything still open. Respond with plain text only.`

const similaritySystemPrompt = `You compare two conversation threads from the same tenant and decide whether they are related.

Relationship types: same_issue, follow_up, related_area, unrelated.

Respond with only a JSON object:
{"confidence": <0.0-1.0>, "relationship": "<type>"}`

func buildReplyPrompt(input ReplyInput) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Property: %s\n", input.Property.Address)
	if input.Property.OwnerName != "" {
		fmt.Fprintf(&b, "Owner: %s\n", input.Property.OwnerName)
	}
	writeKV(&b, "Amenities", input.Property.Amenities)
	writeKV(&b, "House rules", input.Property.Rules)

	fmt.Fprintf(&b, "\nTenant: %s", input.Tenant.Name)
	if input.Tenant.Unit != "" {
		fmt.Fprintf(&b, " (unit %s)", input.Tenant.Unit)
	}
	fmt.Fprintf(&b, "\nChannel: %s\n", input.Channel)

	if len(input.History) > 0 {
		b.WriteString("\nRecent conversation:\n")
		for _, ex := range input.History {
			fmt.Fprintf(&b, "Tenant: %s\n", ex.Inbound)
			if ex.Reply != "" {
				fmt.Fprintf(&b, "You: %s\n", ex.Reply)
			}
		}
	}

	fmt.Fprintf(&b, "\nNew message from tenant:\n%s\n", input.NewMessage)
	return b.String()
}

func writeKV(b *strings.Builder, label string, values map[string]any) {
	if len(values) == 0 {
		return
	}
	fmt.Fprintf(b, "%s:\n", label)
	for k, v := range values {
		fmt.Fprintf(b, "  %s: %v\n", k, v)
	}
}
