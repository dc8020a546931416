package identity

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

// DefaultUserInfoURL is the Microsoft Graph profile endpoint used by the Azure AD sign-in.
const DefaultUserInfoURL = "https://graph.microsoft.com/oidc/userinfo"

// OAuth2Provider resolves the email of the token owner from an OIDC userinfo endpoint.
// The first successful lookup is cached for the lifetime of the provider.
type OAuth2Provider struct {
	tokens      oauth2.TokenSource
	userInfoURL string
	logger      *slog.Logger

	mu    sync.Mutex
	email string
}

// NewOAuth2Provider creates a provider backed by tokens. An empty userInfoURL selects DefaultUserInfoURL.
func NewOAuth2Provider(tokens oauth2.TokenSource, userInfoURL string, logger *slog.Logger) *OAuth2Provider {
	if userInfoURL == "" {
		userInfoURL = DefaultUserInfoURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OAuth2Provider{
		tokens:      tokens,
		userInfoURL: userInfoURL,
		logger:      logger,
	}
}

// StaticToken wraps a raw access token as a TokenSource.
func StaticToken(accessToken string) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
}

func (p *OAuth2Provider) Identity(ctx context.Context) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.email != "" {
		return p.email, true
	}

	email, err := p.fetch(ctx)
	if err != nil {
		p.logger.Warn("failed to resolve identity", "url", p.userInfoURL, "error", err)
		return "", false
	}
	p.email = email
	return email, email != ""
}

func (p *OAuth2Provider) fetch(ctx context.Context) (string, error) {
	client := oauth2.NewClient(ctx, p.tokens)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, http.NoBody)
	if err != nil {
		return "", errors.Wrap(err, "failed to build userinfo request")
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "failed to call userinfo endpoint")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("userinfo endpoint returned status %d", resp.StatusCode)
	}

	var claims struct {
		Email             string `json:"email"`
		Mail              string `json:"mail"`
		UserPrincipalName string `json:"userPrincipalName"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&claims); err != nil {
		return "", errors.Wrap(err, "failed to decode userinfo response")
	}

	for _, v := range []string{claims.Email, claims.Mail, claims.UserPrincipalName} {
		if v != "" {
			return v, nil
		}
	}
	return "", errors.New("userinfo response has no email claim")
}
