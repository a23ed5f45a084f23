// Package sms provides the Twilio SMS transport collaborator.
package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"rental_portal_backend/platform/config"
	"rental_portal_backend/platform/crypto"
	"rental_portal_backend/platform/logger"
	"rental_portal_backend/platform/phone"
)

const defaultBaseURL = "https://api.twilio.com"

// Client sends SMS messages through the Twilio REST API.
// Returns nil from NewClient when SMS is not configured; all methods are
// nil-safe so callers can wire it unconditionally.
type Client struct {
	baseURL    string
	accountSID string
	authToken  string
	from       string
	http       *http.Client
	log        *logger.Logger
}

type twilioMessageResponse struct {
	SID     string `json:"sid"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// NewClient creates a Twilio client from config. The auth token may be stored
// envelope-encrypted (enc:v1: prefix); it is decrypted with the credential
// master key and only ever logged in masked form.
func NewClient(cfg config.TwilioConfig, log *logger.Logger) (*Client, error) {
	if !cfg.IsSMSEnabled() {
		return nil, nil
	}

	authToken, err := crypto.Decrypt(cfg.GetTwilioAuthToken(), cfg.GetCredentialMasterKey())
	if err != nil {
		return nil, fmt.Errorf("decrypt twilio auth token: %w", err)
	}

	log.Info("sms transport configured",
		"accountSid", cfg.GetTwilioAccountSID(),
		"authToken", crypto.Mask(authToken),
		"from", cfg.GetTwilioFromNumber(),
	)

	return &Client{
		baseURL:    defaultBaseURL,
		accountSID: cfg.GetTwilioAccountSID(),
		authToken:  authToken,
		from:       cfg.GetTwilioFromNumber(),
		http:       &http.Client{Timeout: 10 * time.Second},
		log:        log,
	}, nil
}

// AuthToken returns the decrypted auth token for webhook signature checks.
func (c *Client) AuthToken() string {
	if c == nil {
		return ""
	}
	return c.authToken
}

// Send delivers a text message and returns the provider delivery id.
func (c *Client) Send(ctx context.Context, to string, body string) (string, error) {
	if c == nil {
		return "", fmt.Errorf("sms transport not configured")
	}

	form := url.Values{}
	form.Set("To", phone.NormalizeE164(to))
	form.Set("From", c.from)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.baseURL, c.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.accountSID, c.authToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("twilio request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, _ := io.ReadAll(resp.Body)

	var parsed twilioMessageResponse
	_ = json.Unmarshal(data, &parsed)

	if resp.StatusCode >= http.StatusBadRequest {
		detail := parsed.Message
		if detail == "" {
			detail = strings.TrimSpace(string(data))
		}
		return "", fmt.Errorf("twilio returned %d: %s", resp.StatusCode, detail)
	}

	c.log.Info("sms sent", "to", phone.NormalizeE164(to), "sid", parsed.SID)
	return parsed.SID, nil
}
