package intake

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"rental_portal_backend/platform/config"
)

// signatureTolerance bounds how old an email webhook timestamp may be.
const signatureTolerance = 5 * time.Minute

// TwilioSignatureMiddleware verifies the X-Twilio-Signature header: the
// base64 HMAC-SHA1 of the full request URL plus all sorted POST parameters,
// keyed with the account auth token. Verification is disabled in development.
func TwilioSignatureMiddleware(cfg config.WebhookConfig, authToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !cfg.IsWebhookVerificationEnabled() {
			c.Next()
			return
		}
		if authToken == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "webhook verification not configured"})
			return
		}

		if err := c.Request.ParseForm(); err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid form payload"})
			return
		}

		url := cfg.GetPublicBaseURL() + c.Request.URL.RequestURI()
		expected := twilioSignature(authToken, url, c.Request.PostForm)
		provided := c.GetHeader("X-Twilio-Signature")

		if provided == "" || !hmac.Equal([]byte(expected), []byte(provided)) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "signature verification failed"})
			return
		}
		c.Next()
	}
}

// twilioSignature computes Twilio's request signature: URL, then each POST
// parameter name and value appended in lexicographic order, HMAC-SHA1.
func twilioSignature(authToken, url string, form map[string][]string) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var payload strings.Builder
	payload.WriteString(url)
	for _, k := range keys {
		for _, v := range form[k] {
			payload.WriteString(k)
			payload.WriteString(v)
		}
	}

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(payload.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// EmailSignatureMiddleware verifies inbound email webhooks signed in the
// svix style: webhook-id, webhook-timestamp and webhook-signature headers,
// where the signature is "v1," + base64 HMAC-SHA256 over "id.timestamp.body".
// Verification is disabled in development.
func EmailSignatureMiddleware(cfg config.WebhookConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !cfg.IsWebhookVerificationEnabled() {
			c.Next()
			return
		}
		secret := cfg.GetEmailWebhookSecret()
		if secret == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "webhook verification not configured"})
			return
		}

		id := c.GetHeader("webhook-id")
		timestamp := c.GetHeader("webhook-timestamp")
		signature := c.GetHeader("webhook-signature")
		if id == "" || timestamp == "" || signature == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "missing signature headers"})
			return
		}

		ts, err := strconv.ParseInt(timestamp, 10, 64)
		if err != nil || absDuration(time.Since(time.Unix(ts, 0))) > signatureTolerance {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "stale webhook timestamp"})
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "unreadable body"})
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		expected := emailSignature(secret, id, timestamp, body)
		if !signatureListContains(signature, expected) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "signature verification failed"})
			return
		}
		c.Next()
	}
}

func emailSignature(secret, id, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(id + "." + timestamp + "."))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// signatureListContains checks the space-separated "v1,<sig>" list against
// the expected signature in constant time per entry.
func signatureListContains(header, expected string) bool {
	for _, entry := range strings.Fields(header) {
		parts := strings.SplitN(entry, ",", 2)
		if len(parts) != 2 || parts[0] != "v1" {
			continue
		}
		if hmac.Equal([]byte(parts[1]), []byte(expected)) {
			return true
		}
	}
	return false
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
