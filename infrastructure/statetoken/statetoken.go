package statetoken

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"
)

// DefaultTTL bounds how long an issued handshake token stays valid.
const DefaultTTL = 10 * time.Minute

// Payload is the handshake context carried through the OAuth redirect round
// trip. It is signed, not stored; the signature is the integrity mechanism.
type Payload struct {
	UserID   string `json:"uid"`
	Nonce    string `json:"nonce"`
	IssuedAt int64  `json:"ts"` // unix milliseconds
	Context  string `json:"context,omitempty"`
	FlowID   string `json:"flowId,omitempty"`
}

// Codec issues and verifies signed state tokens. The zero value is unusable;
// construct with New.
type Codec struct {
	secret []byte
	ttl    time.Duration
}

func New(secret string, ttl time.Duration) *Codec {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Codec{secret: []byte(secret), ttl: ttl}
}

// SelectSecret picks the signing secret: the provider's own secret when
// configured, then the shared service secret. The final fallback is only
// acceptable in development.
func SelectSecret(providerSecret, appSecret string) string {
	if providerSecret != "" {
		return providerSecret
	}
	if appSecret != "" {
		return appSecret
	}
	return "dev-secret"
}

// NewNonce returns a random URL-safe nonce for a handshake payload.
func NewNonce() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

// Issue serializes the payload, signs it with HMAC-SHA256 and returns
// base64url(payload) "." base64url(mac). IssuedAt is stamped when zero.
func (c *Codec) Issue(p Payload) (string, error) {
	if p.IssuedAt == 0 {
		p.IssuedAt = time.Now().UnixMilli()
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	mac := hmac.New(sha256.New, c.secret)
	mac.Write(raw)
	sig := mac.Sum(nil)
	return base64.RawURLEncoding.EncodeToString(raw) + "." + base64.RawURLEncoding.EncodeToString(sig), nil
}

// Verify decodes and authenticates a token. It returns ok=false for any
// malformed, forged or expired token without distinguishing why.
func (c *Codec) Verify(token string) (Payload, bool) {
	var p Payload
	parts := strings.Split(token, ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return p, false
	}
	raw, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return p, false
	}
	sig, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return p, false
	}
	mac := hmac.New(sha256.New, c.secret)
	mac.Write(raw)
	if !hmac.Equal(mac.Sum(nil), sig) {
		return p, false
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return Payload{}, false
	}
	issued := time.UnixMilli(p.IssuedAt)
	if p.IssuedAt <= 0 || time.Since(issued) > c.ttl {
		return Payload{}, false
	}
	return p, true
}
