package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lumina-learn/lumina/pkg/config"
)

// Claims is the subset of JWT claims the orchestrator cares about.
type Claims struct {
	Subject   string `json:"sub"`
	Email     string `json:"email"`
	Issuer    string `json:"iss"`
	Audience  string `json:"aud"`
	ExpiresAt int64  `json:"exp"`
	NotBefore int64  `json:"nbf"`
}

type jwtHeader struct {
	Alg string `json:"alg"`
	Typ string `json:"typ"`
}

// Verifier checks HS256-signed bearer tokens against the shared secret.
type Verifier struct {
	secret   []byte
	issuer   string
	audience string
	leeway   time.Duration

	// now is swappable for expiry tests.
	now func() time.Time
}

// NewVerifier creates a Verifier from auth configuration.
func NewVerifier(cfg config.AuthConfig) *Verifier {
	return &Verifier{
		secret:   []byte(cfg.SigningSecret),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		leeway:   cfg.Leeway,
		now:      time.Now,
	}
}

// Verify parses and validates a compact JWT: signature, algorithm,
// issuer, audience, and the exp/nbf window (with configured leeway).
func (v *Verifier) Verify(token string) (*Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, errors.New("invalid token format")
	}

	headerJSON, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, fmt.Errorf("decode token header: %w", err)
	}
	payloadJSON, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("decode token payload: %w", err)
	}
	signature, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return nil, fmt.Errorf("decode token signature: %w", err)
	}

	var header jwtHeader
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return nil, fmt.Errorf("parse token header: %w", err)
	}
	if header.Alg != "HS256" {
		return nil, fmt.Errorf("unsupported token alg %q", header.Alg)
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(parts[0] + "." + parts[1]))
	if !hmac.Equal(mac.Sum(nil), signature) {
		return nil, errors.New("invalid token signature")
	}

	var claims Claims
	if err := json.Unmarshal(payloadJSON, &claims); err != nil {
		return nil, fmt.Errorf("parse token claims: %w", err)
	}

	if v.issuer != "" && claims.Issuer != v.issuer {
		return nil, errors.New("invalid token issuer")
	}
	if v.audience != "" && claims.Audience != v.audience {
		return nil, errors.New("invalid token audience")
	}

	now := v.now()
	if claims.ExpiresAt != 0 && now.After(time.Unix(claims.ExpiresAt, 0).Add(v.leeway)) {
		return nil, errors.New("token expired")
	}
	if claims.NotBefore != 0 && now.Before(time.Unix(claims.NotBefore, 0).Add(-v.leeway)) {
		return nil, errors.New("token not yet valid")
	}

	return &claims, nil
}
