package model

import "time"

// Jam is a short-lived listening session that members join by code.
type Jam struct {
	ID         string    `json:"id" bson:"_id,omitempty"`
	Code       string    `json:"code" bson:"code"`
	HostUserID string    `json:"hostUserId" bson:"hostUserId"`
	CreatedAt  time.Time `json:"createdAt" bson:"createdAt"`
	IsActive   bool      `json:"isActive" bson:"isActive"`
}
