// Package waclient defines the contract between the gateway core and the
// external WhatsApp client. The client itself (protocol negotiation, QR
// pairing, credential persistence) lives outside this repository; the
// gateway only consumes its event stream and command surface.
package waclient

import (
	"context"
	"errors"
	"time"
)

type EventKind string

const (
	EventQR            EventKind = "qr"
	EventAuthenticated EventKind = "authenticated"
	EventReady         EventKind = "ready"
	EventAuthFailure   EventKind = "auth_failure"
	EventDisconnected  EventKind = "disconnected"
	EventMessage       EventKind = "message"
)

var ErrorMessageNotFound = errors.New("message not found")
var ErrorChatNotFound = errors.New("chat not found")

// Event is one item of the client's asynchronous event stream.
type Event struct {
	Kind    EventKind
	QR      string  // qr events: the code to scan
	Reason  string  // auth_failure / disconnected detail
	Message Message // message events only
}

// Media is one attachment as the client hands it over, data base64 encoded.
type Media struct {
	MimeType string
	Filename string
	Data     string
}

// Contact is the client's view of a message sender.
type Contact struct {
	PushName string
	Name     string
	Number   string
}

// Chat describes a conversation. ParticipantCount is nil when the client
// cannot resolve a roster for the chat.
type Chat struct {
	ID               string
	Name             string
	IsGroup          bool
	ParticipantCount *int
}

// SendResult is the client's receipt for an accepted outbound message.
type SendResult struct {
	ID        string
	Timestamp time.Time
}

// Message is one raw inbound message. The accessor methods are cheap; the
// methods taking a context suspend on the client's transport.
type Message interface {
	ID() string
	ChatID() string
	Body() string
	Timestamp() time.Time // zero when the event carried none
	FromMe() bool
	HasQuoted() bool
	HasMedia() bool

	Quoted(ctx context.Context) (Message, error)
	DownloadMedia(ctx context.Context) (*Media, error)
	Contact(ctx context.Context) (*Contact, error)
	Delete(ctx context.Context, forEveryone bool) error
}

// Client is the command surface of the external WhatsApp client.
type Client interface {
	Events() <-chan Event
	SendText(ctx context.Context, chatID string, text string) (*SendResult, error)
	SendMedia(ctx context.Context, chatID string, caption string, media Media) (*SendResult, error)
	MessageByID(ctx context.Context, id string) (Message, error)
	ChatByID(ctx context.Context, chatID string) (*Chat, error)
	Close() error
}
