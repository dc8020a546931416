// Package identity supplies the caller identity the backend addresses users by.
// Authentication itself happens elsewhere; a Provider only reports its outcome.
package identity

import (
	"context"
	"net/url"
	"strings"
)

// Provider reports the authenticated user's email, or ok=false when nobody is signed in.
type Provider interface {
	Identity(ctx context.Context) (email string, ok bool)
}

// componentUnescaper undoes the escapes QueryEscape applies to characters
// that a URI component may carry literally.
var componentUnescaper = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// UserID converts an email into the path segment used by the backend API.
// Everything but letters, digits and -_.!~*'() is percent-encoded, so "@"
// becomes %40 and "+" becomes %2B.
func UserID(email string) string {
	return componentUnescaper.Replace(url.QueryEscape(strings.ToLower(strings.TrimSpace(email))))
}

type staticProvider struct {
	email string
}

// Static returns a Provider that always reports email. An empty email means no identity.
func Static(email string) Provider {
	return &staticProvider{email: strings.TrimSpace(email)}
}

func (p *staticProvider) Identity(context.Context) (string, bool) {
	return p.email, p.email != ""
}

// None returns a Provider that never has an identity.
func None() Provider {
	return &staticProvider{}
}
