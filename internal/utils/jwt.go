package utils // package utils provides helper functions for token creation and hashing

import (
	"crypto/rand"   // secure random number generation
	"crypto/sha256" // SHA‑256 hashing for refresh tokens
	"encoding/hex"  // hex encoding and decoding functions
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
	"github.com/google/uuid"
)

// AccessToken represents a signed JWT access token along with its expiry
// and its unique id.  The id is what the blacklist records on logout.
type AccessToken struct {
	Token string    // the serialized JWT string
	ID    string    // jti claim
	Exp   time.Time // the UTC expiration time
}

// RefreshToken represents a long‑lived token used to obtain new access tokens.
// Only a SHA‑256 hash of Raw is stored in the database.
type RefreshToken struct {
	Raw string    // raw token string returned to the client
	Exp time.Time // UTC expiration time
}

// Subject is the identity carried by an access token.
type Subject struct {
	UserID uint64
	Role   string
	Name   string
	Email  string
}

// Claims are the verified contents of an access token.
type Claims struct {
	Subject
	ID        string
	ExpiresAt time.Time
}

// NewAccessToken builds and signs an HS256 JWT for a user.  The token
// carries sub, role, name, email, a random jti, exp and iat.
func NewAccessToken(secret string, s Subject, ttlMin int) (AccessToken, error) {
	now := time.Now().UTC()
	exp := now.Add(time.Duration(ttlMin) * time.Minute)
	jti := uuid.NewString()
	claims := jwt.MapClaims{
		"sub":   s.UserID,
		"role":  s.Role,
		"name":  s.Name,
		"email": s.Email,
		"jti":   jti,
		"exp":   exp.Unix(),
		"iat":   now.Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, ID: jti, Exp: exp}, nil
}

// ErrInvalidToken covers every reason a token is refused: bad signature,
// wrong algorithm, expiry or malformed claims.
var ErrInvalidToken = errors.New("invalid token")

// ParseAccessToken verifies raw with secret and extracts its claims.  Only
// HMAC signatures are accepted.
func ParseAccessToken(secret, raw string) (Claims, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithExpirationRequired())
	if err != nil || !tok.Valid {
		return Claims{}, ErrInvalidToken
	}
	mc, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, ErrInvalidToken
	}
	// numeric claims decode as float64
	sub, ok := mc["sub"].(float64)
	if !ok || sub < 1 {
		return Claims{}, ErrInvalidToken
	}
	exp, err := mc.GetExpirationTime()
	if err != nil || exp == nil {
		return Claims{}, ErrInvalidToken
	}
	c := Claims{
		Subject:   Subject{UserID: uint64(sub)},
		ExpiresAt: exp.Time,
	}
	c.Role, _ = mc["role"].(string)
	c.Name, _ = mc["name"].(string)
	c.Email, _ = mc["email"].(string)
	c.ID, _ = mc["jti"].(string)
	return c, nil
}

// NewRefreshToken returns a cryptographically secure random token (raw) and
// its expiration time.  The ttlDays parameter controls how many days the
// refresh token is valid.
func NewRefreshToken(ttlDays int) (RefreshToken, error) {
	raw, err := randomHex(48) // 48 bytes -> 96 hex chars
	if err != nil {
		return RefreshToken{}, err
	}
	return RefreshToken{
		Raw: raw,
		Exp: time.Now().UTC().Add(time.Duration(ttlDays) * 24 * time.Hour),
	}, nil
}

// HashRefreshRaw returns the SHA‑256 hash of the raw refresh token as a hex
// string.
func HashRefreshRaw(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
