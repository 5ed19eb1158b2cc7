// Package events defines the live protocol: JSON frames of the form
// {"type": "...", "data": {...}} carrying a closed set of payloads.
//
// Inbound frames decode into one of the Inbound types below. Unknown types
// and unknown fields are rejected, as are payloads failing validation.
// Outbound frames are built with the constructor helpers and encoded once,
// then fanned out as raw bytes.
package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/stratachat/internal/domain/models"
	"github.com/go-playground/validator/v10"
)

// Inbound event types.
const (
	TypeJoin             = "join"
	TypeLeave            = "leave"
	TypeSetActiveChannel = "setActiveChannel"
	TypeTyping           = "typing"
	TypeSendMessage      = "sendMessage"
	TypeAck              = "ack"
)

// Outbound event types.
const (
	TypeJoined          = "joined"
	TypeLeft            = "left"
	TypeError           = "error"
	TypeMessage         = "message"
	TypeNotification    = "notification"
	TypeUnreadIndicator = "unreadIndicator"
	TypeMessageDeleted  = "messageDeleted"
	// TypeTyping is shared by both directions.
)

var (
	ErrMalformed   = errors.New("malformed event")
	ErrUnknownType = errors.New("unknown event type")
	ErrInvalid     = errors.New("invalid event payload")
)

var validate = validator.New()

// Envelope is the wire frame.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Inbound is implemented only by the inbound payload types in this package.
type Inbound interface {
	inbound()
	Type() string
}

type Join struct {
	ChannelID string `json:"channelId" validate:"required,mongodb"`
}

type Leave struct {
	ChannelID string `json:"channelId" validate:"required,mongodb"`
}

// SetActiveChannel with a null or absent channelId clears the active channel.
type SetActiveChannel struct {
	ChannelID *string `json:"channelId" validate:"omitempty,mongodb"`
}

type Typing struct {
	ChannelID string `json:"channelId" validate:"required,mongodb"`
	IsTyping  bool   `json:"isTyping"`
}

type SendMessage struct {
	ChannelID       string  `json:"channelId" validate:"required,mongodb"`
	Content         string  `json:"content" validate:"required"`
	ParentMessageID *string `json:"parentMessageId" validate:"omitempty,mongodb"`
}

type Ack struct {
	MessageID string `json:"messageId" validate:"required,mongodb"`
	Status    string `json:"status" validate:"required,oneof=delivered read"`
}

func (Join) inbound()             {}
func (Leave) inbound()            {}
func (SetActiveChannel) inbound() {}
func (Typing) inbound()           {}
func (SendMessage) inbound()      {}
func (Ack) inbound()              {}

func (Join) Type() string             { return TypeJoin }
func (Leave) Type() string            { return TypeLeave }
func (SetActiveChannel) Type() string { return TypeSetActiveChannel }
func (Typing) Type() string           { return TypeTyping }
func (SendMessage) Type() string      { return TypeSendMessage }
func (Ack) Type() string              { return TypeAck }

// Decode parses one inbound frame.
func Decode(raw []byte) (Inbound, error) {
	var env Envelope
	if err := strictUnmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var ev Inbound
	switch env.Type {
	case TypeJoin:
		ev = &Join{}
	case TypeLeave:
		ev = &Leave{}
	case TypeSetActiveChannel:
		ev = &SetActiveChannel{}
	case TypeTyping:
		ev = &Typing{}
	case TypeSendMessage:
		ev = &SendMessage{}
	case TypeAck:
		ev = &Ack{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}

	data := env.Data
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		data = []byte("{}")
	}
	if err := strictUnmarshal(data, ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := validate.Struct(ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return deref(ev), nil
}

func deref(ev Inbound) Inbound {
	switch v := ev.(type) {
	case *Join:
		return *v
	case *Leave:
		return *v
	case *SetActiveChannel:
		return *v
	case *Typing:
		return *v
	case *SendMessage:
		return *v
	case *Ack:
		return *v
	}
	return ev
}

func strictUnmarshal(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing data")
	}
	return nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| Outbound                                                                   |
*─────────────────────────────────────────────────────────────────────────────*/

// Frame is an encoded outbound event.
type Frame []byte

// Encode builds the frame for typ/data. Payloads here are plain structs, so
// marshalling cannot fail in practice; a failure yields an error frame.
func Encode(typ string, data any) Frame {
	b, err := json.Marshal(struct {
		Type string `json:"type"`
		Data any    `json:"data"`
	}{typ, data})
	if err != nil {
		return Error("internal error")
	}
	return b
}

type channelRef struct {
	ChannelID string `json:"channelId"`
}

func Joined(channelID string) Frame { return Encode(TypeJoined, channelRef{channelID}) }
func Left(channelID string) Frame   { return Encode(TypeLeft, channelRef{channelID}) }

// Error builds an error frame. Marshalling a single string cannot fail.
func Error(message string) Frame {
	b, _ := json.Marshal(struct {
		Type string `json:"type"`
		Data struct {
			Message string `json:"message"`
		} `json:"data"`
	}{Type: TypeError, Data: struct {
		Message string `json:"message"`
	}{message}})
	return b
}

// TypingData is the outbound typing payload.
type TypingData struct {
	ChannelID string `json:"channelId"`
	UserID    string `json:"userId"`
	IsTyping  bool   `json:"isTyping"`
}

func TypingFrame(channelID, userID string, isTyping bool) Frame {
	return Encode(TypeTyping, TypingData{ChannelID: channelID, UserID: userID, IsTyping: isTyping})
}

// MessageData is the broadcast form of a stored message with its resolved sender.
type MessageData struct {
	ID              string             `json:"id"`
	ChannelID       string             `json:"channelId"`
	Sender          models.UserSummary `json:"sender"`
	Content         string             `json:"content"`
	ParentMessageID *string            `json:"parentMessageId,omitempty"`
	IsDeleted       bool               `json:"isDeleted"`
	CreatedAt       time.Time          `json:"createdAt"`
}

// NewMessageData shapes m for the wire. Deleted messages carry no content.
func NewMessageData(m models.Message, sender models.UserSummary) MessageData {
	d := MessageData{
		ID:        m.ID.Hex(),
		ChannelID: m.ChannelID.Hex(),
		Sender:    sender,
		Content:   m.Content,
		IsDeleted: m.IsDeleted,
		CreatedAt: m.CreatedAt,
	}
	if m.IsDeleted {
		d.Content = ""
	}
	if m.ParentMessageID != nil {
		p := m.ParentMessageID.Hex()
		d.ParentMessageID = &p
	}
	return d
}

func MessageFrame(d MessageData) Frame { return Encode(TypeMessage, d) }

type notificationData struct {
	Notification models.Notification `json:"notification"`
	ChannelID    string              `json:"channelId,omitempty"`
}

func NotificationFrame(n models.Notification) Frame {
	d := notificationData{Notification: n}
	if n.ChannelID != nil {
		d.ChannelID = n.ChannelID.Hex()
	}
	return Encode(TypeNotification, d)
}

func UnreadIndicator(channelID string) Frame {
	return Encode(TypeUnreadIndicator, struct {
		ChannelID string `json:"channelId"`
		Unread    bool   `json:"unread"`
	}{channelID, true})
}

func MessageDeleted(channelID, messageID string) Frame {
	return Encode(TypeMessageDeleted, struct {
		ChannelID string `json:"channelId"`
		MessageID string `json:"messageId"`
	}{channelID, messageID})
}
