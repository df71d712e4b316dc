package models

import "time"

// CallbackTypeReceived is the only Z-API callback type that carries a user message.
const CallbackTypeReceived = "ReceivedCallback"

// ReceivedCallback is one record of a Z-API "on message received" webhook.
// Fields not used by the bot pipeline are omitted.
type ReceivedCallback struct {
	Type       string        `json:"type"`
	InstanceID string        `json:"instanceId"`
	MessageID  string        `json:"messageId"`
	Phone      string        `json:"phone"`
	FromMe     bool          `json:"fromMe"`
	IsGroup    bool          `json:"isGroup"`
	Momment    int64         `json:"momment"` // epoch milliseconds; spelling is Z-API's
	SenderName string        `json:"senderName,omitempty"`
	ChatName   string        `json:"chatName,omitempty"`
	Status     string        `json:"status,omitempty"`
	Text       *TextContent  `json:"text,omitempty"`
	Image      *MediaContent `json:"image,omitempty"`
	Audio      *MediaContent `json:"audio,omitempty"`
}

type TextContent struct {
	Message string `json:"message"`
}

// MediaContent is decoded only so media callbacks can be told apart in logs.
type MediaContent struct {
	MimeType string `json:"mimeType,omitempty"`
	Caption  string `json:"caption,omitempty"`
}

// Body returns the text of the message, or "" for non-text callbacks.
func (cb *ReceivedCallback) Body() string {
	if cb.Text == nil {
		return ""
	}
	return cb.Text.Message
}

// ContactName prefers the sender's push name over the chat name.
func (cb *ReceivedCallback) ContactName() string {
	if cb.SenderName != "" {
		return cb.SenderName
	}
	return cb.ChatName
}

// ReceivedAt converts momment to a time, falling back to now when absent.
func (cb *ReceivedCallback) ReceivedAt() time.Time {
	if cb.Momment <= 0 {
		return time.Now()
	}
	return time.UnixMilli(cb.Momment)
}

// SkipReason reports why the callback must not reach the bot pipeline, or ""
// when it should be processed.
func (cb *ReceivedCallback) SkipReason() string {
	switch {
	case cb.FromMe:
		return "from_me"
	case cb.IsGroup:
		return "group"
	case cb.Type != CallbackTypeReceived:
		return "not_received_callback"
	case cb.Body() == "":
		return "no_text"
	}
	return ""
}
