package identity

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// emailClaims are tried in order; Azure AD puts the address in preferred_username or upn
// when the optional email claim is not configured.
var emailClaims = []string{"email", "preferred_username", "upn"}

// IDTokenProvider reads the user's email from the claims of an OpenID Connect ID token.
type IDTokenProvider struct {
	raw     string
	keyFunc jwt.Keyfunc
	logger  *slog.Logger
	now     func() time.Time
}

// NewIDTokenProvider creates a provider for rawToken. With a nil keyFunc the
// signature is not checked, only the expiry, which suits a token the local
// sign-in flow already verified.
func NewIDTokenProvider(rawToken string, keyFunc jwt.Keyfunc, logger *slog.Logger) *IDTokenProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &IDTokenProvider{
		raw:     strings.TrimSpace(rawToken),
		keyFunc: keyFunc,
		logger:  logger,
		now:     time.Now,
	}
}

// HMACKey returns a Keyfunc that accepts tokens signed with secret using an HS* algorithm.
func HMACKey(secret []byte) jwt.Keyfunc {
	return func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %s", t.Method.Alg())
		}
		return secret, nil
	}
}

func (p *IDTokenProvider) Identity(context.Context) (string, bool) {
	email, err := p.parse()
	if err != nil {
		p.logger.Warn("failed to read id token", "error", err)
		return "", false
	}
	return email, true
}

func (p *IDTokenProvider) parse() (string, error) {
	if p.raw == "" {
		return "", errors.New("id token is empty")
	}
	claims := jwt.MapClaims{}
	if p.keyFunc != nil {
		if _, err := jwt.ParseWithClaims(p.raw, claims, p.keyFunc, jwt.WithTimeFunc(p.now)); err != nil {
			return "", errors.Wrap(err, "invalid id token")
		}
	} else {
		if _, _, err := jwt.NewParser().ParseUnverified(p.raw, claims); err != nil {
			return "", errors.Wrap(err, "malformed id token")
		}
		exp, err := claims.GetExpirationTime()
		if err != nil {
			return "", errors.Wrap(err, "invalid exp claim")
		}
		if exp != nil && !p.now().Before(exp.Time) {
			return "", errors.New("id token is expired")
		}
	}

	for _, name := range emailClaims {
		if v, ok := claims[name].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), nil
		}
	}
	return "", errors.New("id token has no email claim")
}
