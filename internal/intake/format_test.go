package intake

import (
	"strings"
	"testing"
)

func TestFormatForChannelSMSTruncation(t *testing.T) {
	long := strings.Repeat("water heater update. ", 200)
	out := FormatForChannel(ChannelSMS, long)
	if len([]rune(out)) > smsMaxLength {
		t.Fatalf("sms reply length = %d, want <= %d", len([]rune(out)), smsMaxLength)
	}
	if !strings.HasSuffix(out, "...") {
		t.Fatalf("truncated reply should end with ellipsis: %q", out[len(out)-10:])
	}
}

func TestFormatForChannelSMSShortUntouched(t *testing.T) {
	reply := "The plumber arrives tomorrow at 9am."
	if out := FormatForChannel(ChannelSMS, reply); out != reply {
		t.Fatalf("short sms reply changed: %q", out)
	}
}

func TestFormatForChannelEmailNotTruncated(t *testing.T) {
	long := strings.Repeat("details ", 500)
	out := FormatForChannel(ChannelEmail, long)
	if len(out) < len(long)-1 {
		t.Fatalf("email reply truncated: %d < %d", len(out), len(long))
	}
}

func TestFormatForChannelTrimsWhitespace(t *testing.T) {
	if out := FormatForChannel(ChannelAPI, "  hello \n"); out != "hello" {
		t.Fatalf("got %q, want %q", out, "hello")
	}
}
