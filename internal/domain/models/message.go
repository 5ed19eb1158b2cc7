// internal/domain/models/message.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Message is immutable after creation except for the soft-delete flag.
type Message struct {
	ID              primitive.ObjectID  `bson:"_id" json:"id"`
	ChannelID       primitive.ObjectID  `bson:"channel_id" json:"channelId"`
	SenderID        primitive.ObjectID  `bson:"sender_id" json:"senderId"`
	Content         string              `bson:"content" json:"content"`
	ParentMessageID *primitive.ObjectID `bson:"parent_message_id,omitempty" json:"parentMessageId,omitempty"`
	IsDeleted       bool                `bson:"is_deleted" json:"isDeleted"`
	CreatedAt       time.Time           `bson:"created_at" json:"createdAt"`
}
