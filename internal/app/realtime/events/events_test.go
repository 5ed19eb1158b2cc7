package events

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/dalemusser/stratachat/internal/domain/models"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const hexID = "65f0c0ffee0000000000abcd"

func TestDecode_KnownTypes(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Inbound
	}{
		{"join", `{"type":"join","data":{"channelId":"` + hexID + `"}}`, Join{ChannelID: hexID}},
		{"leave", `{"type":"leave","data":{"channelId":"` + hexID + `"}}`, Leave{ChannelID: hexID}},
		{"typing", `{"type":"typing","data":{"channelId":"` + hexID + `","isTyping":true}}`, Typing{ChannelID: hexID, IsTyping: true}},
		{"ack", `{"type":"ack","data":{"messageId":"` + hexID + `","status":"read"}}`, Ack{MessageID: hexID, Status: "read"}},
		{"clear active", `{"type":"setActiveChannel","data":{"channelId":null}}`, SetActiveChannel{}},
		{"clear active no data", `{"type":"setActiveChannel"}`, SetActiveChannel{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.raw))
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestDecode_SendMessageWithParent(t *testing.T) {
	raw := `{"type":"sendMessage","data":{"channelId":"` + hexID + `","content":"hi","parentMessageId":"` + hexID + `"}}`
	got, err := Decode([]byte(raw))
	require.NoError(t, err)
	sm, ok := got.(SendMessage)
	require.True(t, ok)
	require.Equal(t, "hi", sm.Content)
	require.NotNil(t, sm.ParentMessageID)
	require.Equal(t, hexID, *sm.ParentMessageID)
}

func TestDecode_Rejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want error
	}{
		{"not json", `hello`, ErrMalformed},
		{"unknown type", `{"type":"connect","data":{}}`, ErrUnknownType},
		{"unknown envelope field", `{"type":"join","data":{"channelId":"` + hexID + `"},"x":1}`, ErrMalformed},
		{"unknown data field", `{"type":"join","data":{"channelId":"` + hexID + `","room":"x"}}`, ErrMalformed},
		{"missing channel", `{"type":"join","data":{}}`, ErrInvalid},
		{"bad id", `{"type":"join","data":{"channelId":"general"}}`, ErrInvalid},
		{"empty content", `{"type":"sendMessage","data":{"channelId":"` + hexID + `","content":""}}`, ErrInvalid},
		{"bad ack status", `{"type":"ack","data":{"messageId":"` + hexID + `","status":"sent"}}`, ErrInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.raw))
			require.True(t, errors.Is(err, tt.want), "err = %v, want %v", err, tt.want)
		})
	}
}

func TestOutboundFrames(t *testing.T) {
	var env struct {
		Type string         `json:"type"`
		Data map[string]any `json:"data"`
	}

	require.NoError(t, json.Unmarshal(Error("rate limited"), &env))
	require.Equal(t, TypeError, env.Type)
	require.Equal(t, "rate limited", env.Data["message"])

	require.NoError(t, json.Unmarshal(UnreadIndicator(hexID), &env))
	require.Equal(t, TypeUnreadIndicator, env.Type)
	require.Equal(t, true, env.Data["unread"])
	require.Equal(t, hexID, env.Data["channelId"])

	require.NoError(t, json.Unmarshal(TypingFrame(hexID, "u1", true), &env))
	require.Equal(t, "u1", env.Data["userId"])
}

func TestNewMessageData_BlanksDeleted(t *testing.T) {
	parent := primitive.NewObjectID()
	m := models.Message{
		ID:              primitive.NewObjectID(),
		ChannelID:       primitive.NewObjectID(),
		Content:         "secret",
		ParentMessageID: &parent,
		IsDeleted:       true,
		CreatedAt:       time.Now(),
	}
	d := NewMessageData(m, models.UserSummary{FullName: "Ada"})
	require.Empty(t, d.Content)
	require.True(t, d.IsDeleted)
	require.Equal(t, parent.Hex(), *d.ParentMessageID)
	require.Equal(t, "Ada", d.Sender.FullName)
}
