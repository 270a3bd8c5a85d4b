package command

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/labstack/gommon/log"
	"uk.co.dudmesh.bitlink/internal/model"
	"uk.co.dudmesh.bitlink/internal/session"
	"uk.co.dudmesh.bitlink/pkg/waclient"
)

// deleteWindowMarker is how the provider words a deletion attempted past
// its roughly 7 minute window. There is no structured error to inspect,
// so this is substring matching and breaks if the upstream wording does.
const deleteWindowMarker = "too old"

type SentLog interface {
	Record(id string, chatID string, sentAt time.Time) error
	MarkDeleted(id string) error
}

type service struct {
	client waclient.Client
	state  *session.State
	ledger SentLog
}

func New(client waclient.Client, state *session.State, ledger SentLog) *service {
	return &service{
		client: client,
		state:  state,
		ledger: ledger,
	}
}

// ready gates every command: the session must be READY at invocation time.
func (s *service) ready() error {
	if !s.state.Ready() {
		return model.ErrorNotReady
	}
	return nil
}

func (s *service) SendText(ctx context.Context, chatID string, text string) (*model.SentReceipt, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if chatID == "" {
		return nil, fmt.Errorf("%w: chatId is required", model.ErrorInvalidArgument)
	}
	if text == "" {
		return nil, fmt.Errorf("%w: message is required", model.ErrorInvalidArgument)
	}

	result, err := s.client.SendText(ctx, chatID, text)
	if err != nil {
		return nil, fmt.Errorf("sending message: %w", err)
	}

	s.record(result.ID, chatID, result.Timestamp)
	return &model.SentReceipt{MessageID: result.ID, Timestamp: result.Timestamp.Unix()}, nil
}

func (s *service) SendMedia(ctx context.Context, chatID string, caption string, media *model.MediaPayload) (*model.SentReceipt, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if chatID == "" {
		return nil, fmt.Errorf("%w: chatId is required", model.ErrorInvalidArgument)
	}
	if media == nil || media.Data == "" {
		return nil, fmt.Errorf("%w: media data is required", model.ErrorInvalidArgument)
	}
	if media.MimeType == "" {
		return nil, fmt.Errorf("%w: media mimetype is required", model.ErrorInvalidArgument)
	}

	filename := media.Filename
	if filename == "" {
		filename = "attachment"
	}

	result, err := s.client.SendMedia(ctx, chatID, caption, waclient.Media{
		MimeType: media.MimeType,
		Filename: filename,
		Data:     media.Data,
	})
	if err != nil {
		return nil, fmt.Errorf("sending media: %w", err)
	}

	s.record(result.ID, chatID, result.Timestamp)
	return &model.SentReceipt{MessageID: result.ID, Timestamp: result.Timestamp.Unix()}, nil
}

func (s *service) Delete(ctx context.Context, messageID string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if messageID == "" {
		return fmt.Errorf("%w: messageId is required", model.ErrorInvalidArgument)
	}

	message, err := s.client.MessageByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, waclient.ErrorMessageNotFound) {
			return model.ErrorNotFound
		}
		return fmt.Errorf("looking up message: %w", err)
	}
	if message == nil {
		return model.ErrorNotFound
	}

	if err := message.Delete(ctx, true); err != nil {
		if strings.Contains(err.Error(), deleteWindowMarker) {
			return model.ErrorDeleteWindowExpired
		}
		return fmt.Errorf("deleting message: %w", err)
	}

	s.markDeleted(messageID)
	return nil
}

func (s *service) ChatInfo(ctx context.Context, chatID string) (*model.ChatInfo, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if chatID == "" {
		return nil, fmt.Errorf("%w: chatId is required", model.ErrorInvalidArgument)
	}

	chat, err := s.client.ChatByID(ctx, chatID)
	if err != nil {
		log.Errorf("looking up chat %s: %v", chatID, err)
		return nil, model.ErrorNotFound
	}

	return &model.ChatInfo{
		ID:               chat.ID,
		Name:             chat.Name,
		IsGroup:          chat.IsGroup,
		ParticipantCount: chat.ParticipantCount,
	}, nil
}

// The ledger is best-effort audit; a write failure never fails the command.

func (s *service) record(id string, chatID string, sentAt time.Time) {
	if s.ledger == nil {
		return
	}
	if err := s.ledger.Record(id, chatID, sentAt); err != nil {
		log.Errorf("recording sent message %s: %v", id, err)
	}
}

func (s *service) markDeleted(id string) {
	if s.ledger == nil {
		return
	}
	if err := s.ledger.MarkDeleted(id); err != nil {
		log.Errorf("marking message %s deleted: %v", id, err)
	}
}
