package intake

import "strings"

// smsMaxLength is the longest reply Twilio accepts in one request.
const smsMaxLength = 1600

// FormatForChannel adapts the cleaned reply text to the outbound channel.
// Action blocks are already stripped by extraction; SMS additionally gets
// truncated to the provider limit.
func FormatForChannel(channel, reply string) string {
	reply = strings.TrimSpace(reply)
	if channel == ChannelSMS {
		return truncateRunes(reply, smsMaxLength)
	}
	return reply
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
