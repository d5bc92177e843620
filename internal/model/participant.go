package model

import "time"

// Participant is one member of a jam. Each row is written only by the user
// it represents; every other member just reads it.
type Participant struct {
	ID          string    `json:"id" bson:"_id,omitempty"`
	JamID       string    `json:"jamId" bson:"jamId"`
	UserID      string    `json:"userId" bson:"userId"`
	DisplayName string    `json:"displayName" bson:"displayName"`
	AvatarURL   string    `json:"avatarUrl" bson:"avatarUrl"`
	// TrackID is nil when nothing was detected playing. IsPlaying is stored
	// independently but only means something while TrackID is set.
	TrackID       *string   `json:"trackId" bson:"trackId"`
	IsPlaying     bool      `json:"isPlaying" bson:"isPlaying"`
	LastUpdatedAt time.Time `json:"lastUpdatedAt" bson:"lastUpdatedAt"`
	JoinedAt      time.Time `json:"joinedAt" bson:"joinedAt"`
}
