// internal/domain/models/channel.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"
)

// Channel is a group conversation or, when IsDirect is set, a 1:1 conversation.
//
// NOTE:
//   - Members are not embedded. The channel_memberships collection is authoritative.
//   - NameCI is unique per agency for non-direct channels only.
//   - DirectKey is "<lowHex>:<highHex>" for direct channels and empty otherwise.
type Channel struct {
	ID         primitive.ObjectID `bson:"_id" json:"id"`
	AgencyID   primitive.ObjectID `bson:"agency_id" json:"agencyId"`
	Name       string             `bson:"name" json:"name"`
	NameCI     string             `bson:"name_ci" json:"-"`
	Visibility string             `bson:"visibility" json:"visibility"`
	IsDirect   bool               `bson:"is_direct" json:"isDirect"`
	DirectKey  string             `bson:"direct_key,omitempty" json:"-"`
	Active     bool               `bson:"active" json:"active"`
	CreatedBy  primitive.ObjectID `bson:"created_by" json:"createdBy"`

	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

// IsPublic reports whether any user in the channel's agency may read and post.
func (c Channel) IsPublic() bool {
	return c.Visibility == VisibilityPublic && !c.IsDirect
}

// IsValidVisibility reports whether v is a known visibility value.
func IsValidVisibility(v string) bool {
	return v == VisibilityPublic || v == VisibilityPrivate
}
