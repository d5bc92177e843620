package model

import "github.com/golang-jwt/jwt/v5"

// MemberClaims are JWT claims minted by the identity provider for a signed-in
// member. PlaybackToken is the member's access token for the external
// playback source, carried opaquely.
type MemberClaims struct {
	UserID        string `json:"userId"`
	DisplayName   string `json:"displayName"`
	AvatarURL     string `json:"avatarUrl,omitempty"`
	PlaybackToken string `json:"playbackToken,omitempty"`
	jwt.RegisteredClaims
}

// Identity is the resolved member identity attached to a request context.
type Identity struct {
	UserID        string
	DisplayName   string
	AvatarURL     string
	PlaybackToken string
}
