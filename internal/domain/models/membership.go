// internal/domain/models/membership.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	MemberRoleOwner  = "owner"
	MemberRoleAdmin  = "admin"
	MemberRoleMember = "member"
)

// Membership is the authoritative join between users and channels.
// Exactly one document per (channel_id, user_id); role is a scalar.
type Membership struct {
	ID                primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	ChannelID         primitive.ObjectID  `bson:"channel_id" json:"channelId"`
	UserID            primitive.ObjectID  `bson:"user_id" json:"userId"`
	AgencyID          primitive.ObjectID  `bson:"agency_id" json:"agencyId"`
	Role              string              `bson:"role" json:"role"` // "owner" | "admin" | "member"
	Muted             bool                `bson:"muted" json:"muted"`
	LastReadMessageID *primitive.ObjectID `bson:"last_read_message_id,omitempty" json:"lastReadMessageId,omitempty"`
	JoinedAt          time.Time           `bson:"joined_at" json:"joinedAt"`
}
