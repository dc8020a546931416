package profile

import (
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	defaultTimeout  = 90 * time.Second
	defaultPageSize = 10
	maxPageSize     = 100
)

// Profile is the configuration of the supervaani client.
type Profile struct {
	// Backend base URL, e.g. https://supervaani.example.edu
	BaseURL string
	// Email identifies the signed-in user. Empty means signed out.
	Email string
	// AccessToken, when set, resolves the email from UserInfoURL instead.
	AccessToken string
	UserInfoURL string
	// IDToken, when set, supplies the email from its claims. IDTokenSecret
	// enables HMAC signature verification.
	IDToken       string
	IDTokenSecret string

	Mode     string
	LogLevel string
	// Timeout bounds every backend call.
	Timeout   time.Duration
	PageSize  int
	RateLimit float64 // requests per second, 0 is unlimited

	MetricsAddr string
	DevAddr     string
	Version     string
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsAuthenticated reports whether an identity source is configured.
func (p *Profile) IsAuthenticated() bool {
	return p.Email != "" || p.AccessToken != "" || p.IDToken != ""
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// FromEnv loads the settings that are never passed as flags.
func (p *Profile) FromEnv() {
	p.AccessToken = getEnvOrDefault("SUPERVAANI_ACCESS_TOKEN", p.AccessToken)
	p.UserInfoURL = getEnvOrDefault("SUPERVAANI_USERINFO_URL", p.UserInfoURL)
	p.IDToken = getEnvOrDefault("SUPERVAANI_ID_TOKEN", p.IDToken)
	p.IDTokenSecret = getEnvOrDefault("SUPERVAANI_ID_TOKEN_SECRET", p.IDTokenSecret)
}

func (p *Profile) Validate() error {
	if p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "dev"
	}
	p.LogLevel = strings.ToLower(strings.TrimSpace(p.LogLevel))
	if p.LogLevel == "" {
		p.LogLevel = "info"
	}

	p.BaseURL = strings.TrimRight(strings.TrimSpace(p.BaseURL), "/")
	if p.BaseURL == "" {
		return errors.New("backend url is required")
	}
	u, err := url.Parse(p.BaseURL)
	if err != nil {
		return errors.Wrapf(err, "invalid backend url %q", p.BaseURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.Errorf("backend url %q must use http or https", p.BaseURL)
	}

	p.Email = strings.TrimSpace(p.Email)
	if p.Email != "" && !strings.Contains(p.Email, "@") {
		return errors.Errorf("invalid email %q", p.Email)
	}

	if p.Timeout < 0 {
		return errors.Errorf("timeout must not be negative, got %s", p.Timeout)
	}
	if p.Timeout == 0 {
		p.Timeout = defaultTimeout
	}
	if p.PageSize <= 0 {
		p.PageSize = defaultPageSize
	}
	if p.PageSize > maxPageSize {
		return errors.Errorf("page size must be at most %d, got %d", maxPageSize, p.PageSize)
	}
	if p.RateLimit < 0 {
		return errors.Errorf("rate limit must not be negative, got %v", p.RateLimit)
	}
	return nil
}
