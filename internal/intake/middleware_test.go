package intake

import (
	"net/url"
	"strconv"
	"testing"
	"time"
)

func TestTwilioSignatureKnownVector(t *testing.T) {
	// Vector from Twilio's security documentation.
	authToken := "12345"
	requestURL := "https://mycompany.com/myapp.php?foo=1&bar=2"
	form := url.Values{
		"CallSid": {"CA1234567890ABCDE"},
		"Caller":  {"+14158675309"},
		"Digits":  {"1234"},
		"From":    {"+14158675309"},
		"To":      {"+18005551212"},
	}

	got := twilioSignature(authToken, requestURL, form)
	want := "RSOYDt4T1cUTdK1PDd93/VVr8B8="
	if got != want {
		t.Fatalf("twilioSignature = %q, want %q", got, want)
	}
}

func TestTwilioSignatureParameterOrderIndependent(t *testing.T) {
	a := url.Values{"B": {"2"}, "A": {"1"}}
	b := url.Values{"A": {"1"}, "B": {"2"}}
	if twilioSignature("token", "https://example.com/webhooks/sms", a) != twilioSignature("token", "https://example.com/webhooks/sms", b) {
		t.Fatal("signature must not depend on map iteration order")
	}
}

func TestEmailSignatureRoundTrip(t *testing.T) {
	secret := "whsec_test"
	id := "msg_123"
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	body := []byte(`{"from":"tenant@example.com","text":"hi"}`)

	sig := emailSignature(secret, id, timestamp, body)
	header := "v1," + sig

	if !signatureListContains(header, sig) {
		t.Fatal("valid signature rejected")
	}
	if signatureListContains("v1,AAAA", sig) {
		t.Fatal("invalid signature accepted")
	}
}

func TestSignatureListContainsMultipleEntries(t *testing.T) {
	sig := emailSignature("secret", "id", "1700000000", []byte("body"))
	header := "v1,old-rotated-signature v1," + sig

	if !signatureListContains(header, sig) {
		t.Fatal("signature list with rotated keys rejected the valid entry")
	}
}

func TestSignatureListIgnoresUnknownVersions(t *testing.T) {
	sig := emailSignature("secret", "id", "1700000000", []byte("body"))
	if signatureListContains("v2,"+sig, sig) {
		t.Fatal("unknown signature version accepted")
	}
}
