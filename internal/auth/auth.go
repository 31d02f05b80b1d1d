// Package auth issues and verifies the opaque session tokens required at
// websocket handshake and on authenticated REST routes.
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

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 10

// ErrInvalidToken is returned for malformed, tampered, or expired tokens.
var ErrInvalidToken = errors.New("invalid token")

// Identity is the authenticated subject carried by a token.
type Identity struct {
	UserID   uuid.UUID `json:"uid"`
	Username string    `json:"name"`
	// ExpiresAt is a unix timestamp.
	ExpiresAt int64 `json:"exp"`
}

// HashPassword hashes a plaintext password with bcrypt.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether the plaintext matches the stored hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// TokenService mints and verifies HMAC-signed session tokens.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	clock  clockwork.Clock
}

// NewTokenService creates a token service. The secret must be non-empty.
func NewTokenService(secret []byte, ttl time.Duration, clock clockwork.Clock) *TokenService {
	return &TokenService{secret: secret, ttl: ttl, clock: clock}
}

// Mint issues a token for the given user.
func (ts *TokenService) Mint(userID uuid.UUID, username string) (string, error) {
	identity := Identity{
		UserID:    userID,
		Username:  username,
		ExpiresAt: ts.clock.Now().Add(ts.ttl).Unix(),
	}
	payload, err := json.Marshal(identity)
	if err != nil {
		return "", fmt.Errorf("failed to marshal token payload: %w", err)
	}

	encoded := base64.RawURLEncoding.EncodeToString(payload)
	return encoded + "." + ts.sign(encoded), nil
}

// Verify checks the signature and expiry and returns the identity.
func (ts *TokenService) Verify(token string) (*Identity, error) {
	encoded, sig, found := strings.Cut(token, ".")
	if !found {
		return nil, ErrInvalidToken
	}
	if !hmac.Equal([]byte(ts.sign(encoded)), []byte(sig)) {
		return nil, ErrInvalidToken
	}

	payload, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, ErrInvalidToken
	}
	var identity Identity
	if err := json.Unmarshal(payload, &identity); err != nil {
		return nil, ErrInvalidToken
	}
	if ts.clock.Now().Unix() >= identity.ExpiresAt {
		return nil, ErrInvalidToken
	}
	return &identity, nil
}

func (ts *TokenService) sign(encoded string) string {
	mac := hmac.New(sha256.New, ts.secret)
	mac.Write([]byte(encoded))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
