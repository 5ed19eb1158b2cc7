// internal/domain/models/notification.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Notification belongs to one user. It is not cascaded when the message
// that produced it is deleted.
type Notification struct {
	ID        primitive.ObjectID  `bson:"_id" json:"id"`
	UserID    primitive.ObjectID  `bson:"user_id" json:"userId"`
	AgencyID  primitive.ObjectID  `bson:"agency_id" json:"agencyId"`
	Title     string              `bson:"title" json:"title"`
	Message   string              `bson:"message" json:"message"`
	Link      string              `bson:"link" json:"link"`
	ChannelID *primitive.ObjectID `bson:"channel_id,omitempty" json:"channelId,omitempty"`
	IsRead    bool                `bson:"is_read" json:"isRead"`
	CreatedAt time.Time           `bson:"created_at" json:"createdAt"`
	ReadAt    *time.Time          `bson:"read_at,omitempty" json:"readAt,omitempty"`
}
