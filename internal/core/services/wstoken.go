package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"marketchat/internal/core/domain"
)

const (
	DefaultWSTokenTTL = 24 * time.Hour
	MinSecretLength   = 8
)

var ErrWeakSecret = errors.New("ws auth secret must be at least 8 bytes")

// WSClaims is the verified content of a gateway connection token.
type WSClaims struct {
	UserID    string
	ExpiresAt time.Time
}

// WSTokenService mints and verifies the short-lived tokens that authenticate a gateway
// connection. A token is base64url(JSON{uid, exp}) "." base64url(HMAC-SHA256(payload)),
// with exp in epoch milliseconds.
type WSTokenService struct {
	secret []byte
	now    func() time.Time
}

func NewWSTokenService(secret string) (*WSTokenService, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrWeakSecret
	}
	return &WSTokenService{secret: []byte(secret), now: time.Now}, nil
}

// WithClock replaces the time source, for tests.
func (s *WSTokenService) WithClock(now func() time.Time) *WSTokenService {
	s.now = now
	return s
}

type wsTokenPayload struct {
	UID string `json:"uid"`
	Exp int64  `json:"exp"`
}

func (s *WSTokenService) Issue(userID string, ttl time.Duration) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", domain.ErrInvalidUserID
	}
	if ttl <= 0 {
		ttl = DefaultWSTokenTTL
	}
	raw, err := json.Marshal(wsTokenPayload{UID: userID, Exp: s.now().Add(ttl).UnixMilli()})
	if err != nil {
		return "", err
	}
	payload := base64.RawURLEncoding.EncodeToString(raw)
	return payload + "." + s.sign(payload), nil
}

// Verify returns domain.ErrInvalidToken for every failure without saying which check failed.
func (s *WSTokenService) Verify(token string) (WSClaims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 2 {
		return WSClaims{}, domain.ErrInvalidToken
	}
	payload, sig := parts[0], parts[1]
	if subtle.ConstantTimeCompare([]byte(sig), []byte(s.sign(payload))) != 1 {
		return WSClaims{}, domain.ErrInvalidToken
	}

	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(payload, "="))
	if err != nil {
		return WSClaims{}, domain.ErrInvalidToken
	}
	var claims map[string]any
	if err := json.Unmarshal(raw, &claims); err != nil || claims == nil {
		return WSClaims{}, domain.ErrInvalidToken
	}
	uid, ok := claims["uid"].(string)
	if !ok || uid == "" {
		return WSClaims{}, domain.ErrInvalidToken
	}
	exp, ok := claims["exp"].(float64)
	if !ok || exp < float64(s.now().UnixMilli()) {
		return WSClaims{}, domain.ErrInvalidToken
	}
	return WSClaims{UserID: uid, ExpiresAt: time.UnixMilli(int64(exp))}, nil
}

func (s *WSTokenService) sign(payload string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
