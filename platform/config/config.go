// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// TwilioConfig provides settings for the SMS transport.
type TwilioConfig interface {
	GetTwilioAccountSID() string
	GetTwilioAuthToken() string
	GetTwilioFromNumber() string
	GetCredentialMasterKey() string
	IsSMSEnabled() bool
}

// SMTPConfig provides settings for the email transport.
type SMTPConfig interface {
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFromName() string
	GetEmailFromAddress() string
	IsEmailEnabled() bool
}

// AssistantConfig provides settings for the reply-generation collaborator.
type AssistantConfig interface {
	GetAssistantAPIKey() string
	GetAssistantBaseURL() string
	GetAssistantModel() string
	GetAssistantTimeout() time.Duration
	IsAssistantEnabled() bool
}

// SchedulerConfig provides settings for the asynq scheduler and sweeps.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetSweepInterval() time.Duration
	GetDefaultInactivityHours() int
}

// WebhookConfig provides settings for inbound webhook verification.
type WebhookConfig interface {
	GetEmailWebhookSecret() string
	GetTwilioAuthToken() string
	GetPublicBaseURL() string
	IsWebhookVerificationEnabled() bool
}

// StorageConfig provides settings for MinIO S3-compatible storage.
type StorageConfig interface {
	GetMinIOEndpoint() string
	GetMinIOAccessKey() string
	GetMinIOSecretKey() string
	GetMinIOUseSSL() bool
	GetAttachmentBucket() string
	IsStorageEnabled() bool
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                    string
	HTTPAddr               string
	DatabaseURL            string
	CORSAllowAll           bool
	CORSOrigins            []string
	CORSAllowCreds         bool
	PublicBaseURL          string
	TwilioAccountSID       string
	TwilioAuthToken        string
	TwilioFromNumber       string
	CredentialMasterKey    string
	SMTPHost               string
	SMTPPort               int
	SMTPUsername           string
	SMTPPassword           string
	EmailFromName          string
	EmailFromAddress       string
	EmailEnabled           bool
	EmailWebhookSecret     string
	AssistantAPIKey        string
	AssistantBaseURL       string
	AssistantModel         string
	AssistantTimeout       time.Duration
	RedisURL               string
	RedisTLSInsecure       bool
	AsynqQueueName         string
	AsynqConcurrency       int
	SweepInterval          time.Duration
	DefaultInactivityHours int
	MinIOEndpoint          string
	MinIOAccessKey         string
	MinIOSecretKey         string
	MinIOUseSSL            bool
	AttachmentBucket       string
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// HTTPConfig implementation
func (c *Config) GetHTTPAddr() string      { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool    { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool  { return c.CORSAllowCreds }

// TwilioConfig implementation
func (c *Config) GetTwilioAccountSID() string    { return c.TwilioAccountSID }
func (c *Config) GetTwilioAuthToken() string     { return c.TwilioAuthToken }
func (c *Config) GetTwilioFromNumber() string    { return c.TwilioFromNumber }
func (c *Config) GetCredentialMasterKey() string { return c.CredentialMasterKey }
func (c *Config) IsSMSEnabled() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioFromNumber != ""
}

// SMTPConfig implementation
func (c *Config) GetSMTPHost() string         { return c.SMTPHost }
func (c *Config) GetSMTPPort() int            { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string     { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string     { return c.SMTPPassword }
func (c *Config) GetEmailFromName() string    { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }
func (c *Config) IsEmailEnabled() bool        { return c.EmailEnabled && c.SMTPHost != "" }

// AssistantConfig implementation
func (c *Config) GetAssistantAPIKey() string         { return c.AssistantAPIKey }
func (c *Config) GetAssistantBaseURL() string        { return c.AssistantBaseURL }
func (c *Config) GetAssistantModel() string          { return c.AssistantModel }
func (c *Config) GetAssistantTimeout() time.Duration { return c.AssistantTimeout }
func (c *Config) IsAssistantEnabled() bool           { return c.AssistantAPIKey != "" }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string                { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool          { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string          { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int           { return c.AsynqConcurrency }
func (c *Config) GetSweepInterval() time.Duration    { return c.SweepInterval }
func (c *Config) GetDefaultInactivityHours() int     { return c.DefaultInactivityHours }

// WebhookConfig implementation
func (c *Config) GetEmailWebhookSecret() string { return c.EmailWebhookSecret }
func (c *Config) GetPublicBaseURL() string      { return c.PublicBaseURL }
func (c *Config) IsWebhookVerificationEnabled() bool {
	return !strings.EqualFold(c.Env, "development")
}

// StorageConfig implementation
func (c *Config) GetMinIOEndpoint() string   { return c.MinIOEndpoint }
func (c *Config) GetMinIOAccessKey() string  { return c.MinIOAccessKey }
func (c *Config) GetMinIOSecretKey() string  { return c.MinIOSecretKey }
func (c *Config) GetMinIOUseSSL() bool       { return c.MinIOUseSSL }
func (c *Config) GetAttachmentBucket() string { return c.AttachmentBucket }
func (c *Config) IsStorageEnabled() bool     { return c.MinIOEndpoint != "" }

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:4200"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	emailEnabled := strings.EqualFold(getEnv("EMAIL_ENABLED", "true"), "true")

	cfg := &Config{
		Env:                    getEnv("APP_ENV", "development"),
		HTTPAddr:               getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:            getEnv("DATABASE_URL", ""),
		CORSAllowAll:           corsAllowAll,
		CORSOrigins:            corsOrigins,
		CORSAllowCreds:         strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		PublicBaseURL:          getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),
		TwilioAccountSID:       getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:        getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioFromNumber:       getEnv("TWILIO_FROM_NUMBER", ""),
		CredentialMasterKey:    getEnv("CREDENTIAL_MASTER_KEY", ""),
		SMTPHost:               getEnv("SMTP_HOST", ""),
		SMTPPort:               mustInt(getEnv("SMTP_PORT", "587")),
		SMTPUsername:           getEnv("SMTP_USERNAME", ""),
		SMTPPassword:           getEnv("SMTP_PASSWORD", ""),
		EmailFromName:          getEnv("EMAIL_FROM_NAME", "Property Management"),
		EmailFromAddress:       getEnv("EMAIL_FROM_ADDRESS", ""),
		EmailEnabled:           emailEnabled,
		EmailWebhookSecret:     getEnv("EMAIL_WEBHOOK_SECRET", ""),
		AssistantAPIKey:        getEnv("ASSISTANT_API_KEY", ""),
		AssistantBaseURL:       getEnv("ASSISTANT_BASE_URL", ""),
		AssistantModel:         getEnv("ASSISTANT_MODEL", ""),
		AssistantTimeout:       mustDuration(getEnv("ASSISTANT_TIMEOUT", "30s")),
		RedisURL:               getEnv("REDIS_URL", ""),
		RedisTLSInsecure:       strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:         getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency:       mustInt(getEnv("ASYNQ_CONCURRENCY", "10")),
		SweepInterval:          mustDuration(getEnv("THREAD_SWEEP_INTERVAL", "1h")),
		DefaultInactivityHours: mustInt(getEnv("DEFAULT_INACTIVITY_HOURS", "72")),
		MinIOEndpoint:          getEnv("MINIO_ENDPOINT", ""),
		MinIOAccessKey:         getEnv("MINIO_ACCESS_KEY", ""),
		MinIOSecretKey:         getEnv("MINIO_SECRET_KEY", ""),
		MinIOUseSSL:            strings.EqualFold(getEnv("MINIO_USE_SSL", "false"), "true"),
		AttachmentBucket:       getEnv("MINIO_BUCKET_ATTACHMENTS", "message-attachments"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.EmailEnabled && cfg.SMTPHost != "" && cfg.EmailFromAddress == "" {
		return nil, fmt.Errorf("EMAIL_FROM_ADDRESS is required when email is enabled")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}
	if cfg.DefaultInactivityHours <= 0 {
		cfg.DefaultInactivityHours = 72
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Hour
	}
	if cfg.AssistantTimeout <= 0 {
		cfg.AssistantTimeout = 30 * time.Second
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}

func mustInt(value string) int {
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return result
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}
