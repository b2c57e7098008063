// Package auth verifies bearer credentials presented on incoming
// connections. Token issuance belongs to the identity service; only
// verification lives here.
package auth

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/lumina-learn/lumina/pkg/config"
)

// Identity is the verified caller identity a successful resolution yields.
type Identity struct {
	UserID string
	Email  string
}

// AuthError describes a credential failure. It is fatal to the connection
// attempt: the caller must close with a policy-violation code and never
// upgrade the connection to a live session.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed: %s", e.Reason)
}

// Resolver extracts and verifies one bearer credential per request.
type Resolver struct {
	verifier *Verifier
}

// NewResolver creates a Resolver from auth configuration.
func NewResolver(cfg config.AuthConfig) *Resolver {
	return &Resolver{verifier: NewVerifier(cfg)}
}

// Authenticate resolves a verified identity from the request.
//
// Three channels may carry the credential; precedence is fixed as query
// parameter, then cookie, then Authorization header. The first non-empty
// channel wins and the others are ignored — channels are never mixed.
func (r *Resolver) Authenticate(req *http.Request) (*Identity, error) {
	token := ExtractToken(req)
	if token == "" {
		return nil, &AuthError{Reason: "missing authentication token"}
	}

	claims, err := r.verifier.Verify(token)
	if err != nil {
		return nil, &AuthError{Reason: err.Error()}
	}

	if claims.Subject == "" {
		return nil, &AuthError{Reason: "token does not identify a user"}
	}

	return &Identity{
		UserID: claims.Subject,
		Email:  claims.Email,
	}, nil
}

// ExtractToken pulls the raw credential off the request using the fixed
// channel precedence. Returns "" when no channel carries one.
func ExtractToken(req *http.Request) string {
	if token := req.URL.Query().Get("token"); token != "" {
		return token
	}
	if c, err := req.Cookie("token"); err == nil && c.Value != "" {
		return c.Value
	}
	if h := req.Header.Get("Authorization"); h != "" {
		token := strings.TrimPrefix(h, "Bearer ")
		if token != h {
			return strings.TrimSpace(token)
		}
	}
	return ""
}
