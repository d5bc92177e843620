package service

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"musicjam/internal/model"
)

var ErrInvalidToken = errors.New("invalid or expired token")

// AuthService validates member tokens issued by the identity provider. The
// provider itself (sign-in, token refresh) is outside this system; we only
// share its signing secret.
type AuthService struct {
	jwtSecret []byte
}

func NewAuthService(secret string) *AuthService {
	return &AuthService{jwtSecret: []byte(secret)}
}

// ValidateMemberToken validates a member JWT and returns the identity it
// carries.
func (s *AuthService) ValidateMemberToken(tokenString string) (*model.Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &model.MemberClaims{}, func(token *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*model.MemberClaims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}

	return &model.Identity{
		UserID:        claims.UserID,
		DisplayName:   claims.DisplayName,
		AvatarURL:     claims.AvatarURL,
		PlaybackToken: claims.PlaybackToken,
	}, nil
}

// MintMemberToken signs a member token locally. Used by the client binary
// and tests when no real identity provider is in front of the server.
func (s *AuthService) MintMemberToken(identity *model.Identity, ttl time.Duration) (string, error) {
	claims := &model.MemberClaims{
		UserID:        identity.UserID,
		DisplayName:   identity.DisplayName,
		AvatarURL:     identity.AvatarURL,
		PlaybackToken: identity.PlaybackToken,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}
