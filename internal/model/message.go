package model

// MediaPayload carries one attachment in full. The data is base64 for the
// whole life of a delivery attempt, there is no streaming.
type MediaPayload struct {
	Data     string `json:"data"`
	MimeType string `json:"mimetype"`
	Filename string `json:"filename"`
}

// InboundMessage is the canonical record built from one raw chat network
// event. Field names follow the hub webhook wire format.
type InboundMessage struct {
	ExternalID string        `json:"wa_message_id"`
	ChatID     string        `json:"chat_id"`
	FromNumber string        `json:"from_number"`
	SenderName string        `json:"sender_name"`
	Timestamp  int64         `json:"timestamp"` // event time in milliseconds
	Text       string        `json:"text"`
	QuotedText string        `json:"quoted_text,omitempty"`
	HasMedia   bool          `json:"has_media,omitempty"`
	Media      *MediaPayload `json:"media,omitempty"`
}

// SentReceipt is returned for a successful outbound send.
type SentReceipt struct {
	MessageID string `json:"messageId"`
	Timestamp int64  `json:"timestamp"`
}

type ChatInfo struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	IsGroup          bool   `json:"isGroup"`
	ParticipantCount *int   `json:"participantCount,omitempty"`
}
