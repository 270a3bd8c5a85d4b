package ingest

import (
	"context"
	"time"

	"github.com/labstack/gommon/log"
	"uk.co.dudmesh.bitlink/internal/delivery"
	"uk.co.dudmesh.bitlink/internal/model"
	"uk.co.dudmesh.bitlink/internal/session"
	"uk.co.dudmesh.bitlink/pkg/waclient"
)

type service struct {
	client  waclient.Client
	state   *session.State
	channel delivery.Channel
	now     func() time.Time
}

func New(client waclient.Client, state *session.State, channel delivery.Channel) *service {
	return &service{
		client:  client,
		state:   state,
		channel: channel,
		now:     time.Now,
	}
}

// Run consumes the client's event stream until it closes or ctx is done.
// One event is handled to completion before the next is read: a message
// event suspends the loop through quote resolution and media download, so
// queue/push order always matches arrival order.
func (s *service) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-s.client.Events():
			if !ok {
				return nil
			}
			s.handle(ctx, event)
		}
	}
}

func (s *service) handle(ctx context.Context, event waclient.Event) {
	switch event.Kind {
	case waclient.EventMessage:
		s.handleMessage(ctx, event.Message)
	case waclient.EventQR:
		s.state.Apply(event.Kind)
		log.Infof("session phase %s: scan the QR code to pair", session.PhaseAwaitingScan)
	default:
		phase := s.state.Apply(event.Kind)
		if event.Reason != "" {
			log.Infof("session phase %s: %s", phase, event.Reason)
		} else {
			log.Infof("session phase %s", phase)
		}
	}
}

// handleMessage normalizes and delivers one inbound message. Failures are
// logged and contained; a malformed event never stops the stream.
func (s *service) handleMessage(ctx context.Context, raw waclient.Message) {
	if raw == nil {
		log.Errorf("message event without a message, dropping")
		return
	}
	if raw.FromMe() {
		return
	}

	message := s.normalize(ctx, raw)
	if err := s.channel.Deliver(ctx, message); err != nil {
		log.Errorf("delivering message %s: %v", message.ExternalID, err)
	}
}

func (s *service) normalize(ctx context.Context, raw waclient.Message) *model.InboundMessage {
	message := &model.InboundMessage{
		ExternalID: raw.ID(),
		ChatID:     raw.ChatID(),
		FromNumber: model.FromNumber(raw.ChatID()),
		Text:       raw.Body(),
	}
	if message.ExternalID == "" {
		message.ExternalID = model.CreateID()
	}

	if ts := raw.Timestamp(); !ts.IsZero() {
		message.Timestamp = ts.UnixMilli()
	} else {
		message.Timestamp = s.now().UnixMilli()
	}

	if raw.HasQuoted() {
		quoted, err := raw.Quoted(ctx)
		if err != nil {
			log.Errorf("resolving quoted message for %s: %v", message.ExternalID, err)
		} else if quoted != nil {
			message.QuotedText = quoted.Body()
		}
	}

	if raw.HasMedia() {
		media, err := raw.DownloadMedia(ctx)
		if err != nil {
			// keep the text and metadata, deliver without the attachment
			log.Errorf("downloading media for %s: %v", message.ExternalID, err)
		} else if media != nil {
			message.HasMedia = true
			message.Media = &model.MediaPayload{
				Data:     media.Data,
				MimeType: media.MimeType,
				Filename: mediaFilename(media),
			}
		}
	}

	message.SenderName = s.senderName(ctx, raw)

	return message
}

func (s *service) senderName(ctx context.Context, raw waclient.Message) string {
	contact, err := raw.Contact(ctx)
	if err != nil {
		log.Errorf("resolving contact for %s: %v", raw.ID(), err)
		return model.FromNumber(raw.ChatID())
	}
	if contact == nil {
		return model.FromNumber(raw.ChatID())
	}

	switch {
	case contact.PushName != "":
		return contact.PushName
	case contact.Name != "":
		return contact.Name
	case contact.Number != "":
		return contact.Number
	}
	return "Unknown"
}
