// internal/domain/models/deliverystatus.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	DeliveryDelivered = "delivered"
	DeliveryRead      = "read"
)

// DeliveryStatus is created lazily on the first acknowledgement for a
// (message, user) pair. No row means "sent, not yet delivered".
// Status only ever moves delivered → read.
type DeliveryStatus struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	MessageID   primitive.ObjectID `bson:"message_id" json:"messageId"`
	ChannelID   primitive.ObjectID `bson:"channel_id" json:"channelId"`
	UserID      primitive.ObjectID `bson:"user_id" json:"userId"`
	Status      string             `bson:"status" json:"status"`
	DeliveredAt time.Time          `bson:"delivered_at" json:"deliveredAt"`
	ReadAt      *time.Time         `bson:"read_at,omitempty" json:"readAt,omitempty"`
}

// IsValidDeliveryStatus reports whether s is an acknowledgement clients may send.
func IsValidDeliveryStatus(s string) bool {
	return s == DeliveryDelivered || s == DeliveryRead
}
