package services

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"marketchat/internal/core/domain"
)

const DefaultSessionTTL = 24 * time.Hour

// SessionTokenService validates the end-user bearer tokens of the API tier. Issuing them
// belongs to the account service; GenerateToken exists for local runs and tests.
type SessionTokenService struct {
	secretKey []byte
	issuer    string
}

func NewSessionTokenService(secret, issuer string) *SessionTokenService {
	if issuer == "" {
		issuer = "marketchat"
	}
	return &SessionTokenService{
		secretKey: []byte(secret),
		issuer:    issuer,
	}
}

func (s *SessionTokenService) GenerateToken(userID string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    s.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secretKey)
}

// ValidateToken parses the JWT and returns its subject, the user id.
func (s *SessionTokenService) ValidateToken(tokenStr string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secretKey, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return "", domain.ErrUnauthorized
	}
	if claims.Subject == "" {
		return "", domain.ErrUnauthorized
	}
	return claims.Subject, nil
}
