package waclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/gommon/log"
)

// Bridge is the production Client. It consumes the sidecar's event stream
// over a websocket and issues commands over plain HTTP. The sidecar owns
// the actual WhatsApp session.
type Bridge struct {
	baseURL    string
	httpClient *http.Client
	conn       *websocket.Conn
	events     chan Event
}

func Dial(ctx context.Context, baseURL string) (*Bridge, error) {
	wsURL := "ws" + strings.TrimPrefix(baseURL, "http") + "/events"
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing bridge event stream: %w", err)
	}

	bridge := &Bridge{
		baseURL:    baseURL,
		httpClient: &http.Client{},
		conn:       conn,
		events:     make(chan Event, 16),
	}
	go bridge.readLoop()

	return bridge, nil
}

func (b *Bridge) Events() <-chan Event {
	return b.events
}

func (b *Bridge) Close() error {
	return b.conn.Close()
}

type eventFrame struct {
	Event   string         `json:"event"`
	QR      string         `json:"qr,omitempty"`
	Reason  string         `json:"reason,omitempty"`
	Message *messageRecord `json:"message,omitempty"`
}

type messageRecord struct {
	ID        string `json:"id"`
	ChatID    string `json:"chatId"`
	Body      string `json:"body"`
	Timestamp int64  `json:"timestamp"` // unix seconds, 0 when unknown
	FromMe    bool   `json:"fromMe"`
	HasQuoted bool   `json:"hasQuotedMsg"`
	HasMedia  bool   `json:"hasMedia"`
}

func (b *Bridge) readLoop() {
	defer close(b.events)

	for {
		frame := eventFrame{}
		if err := b.conn.ReadJSON(&frame); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				log.Errorf("bridge: reading event stream: %v", err)
			}
			b.events <- Event{Kind: EventDisconnected, Reason: "event stream closed"}
			return
		}

		switch EventKind(frame.Event) {
		case EventQR:
			b.events <- Event{Kind: EventQR, QR: frame.QR}
		case EventAuthenticated, EventReady:
			b.events <- Event{Kind: EventKind(frame.Event)}
		case EventAuthFailure, EventDisconnected:
			b.events <- Event{Kind: EventKind(frame.Event), Reason: frame.Reason}
		case EventMessage:
			if frame.Message == nil {
				log.Errorf("bridge: message event without message body")
				continue
			}
			b.events <- Event{Kind: EventMessage, Message: &bridgeMessage{record: *frame.Message, bridge: b}}
		default:
			log.Warnf("bridge: unknown event kind: %s", frame.Event)
		}
	}
}

type rpcFailure struct {
	status int
	text   string
}

func (e *rpcFailure) Error() string {
	return e.text
}

func (b *Bridge) rpc(ctx context.Context, method string, params interface{}, result interface{}) error {
	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshalling params: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/rpc/"+method, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling bridge: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		failure := struct {
			Error string `json:"error"`
		}{}
		raw, _ := io.ReadAll(res.Body)
		if err := json.Unmarshal(raw, &failure); err != nil || failure.Error == "" {
			failure.Error = strings.TrimSpace(string(raw))
		}
		return &rpcFailure{status: res.StatusCode, text: failure.Error}
	}

	if result == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(result); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

type sendReceipt struct {
	MessageID string `json:"messageId"`
	Timestamp int64  `json:"timestamp"`
}

func (b *Bridge) SendText(ctx context.Context, chatID string, text string) (*SendResult, error) {
	receipt := sendReceipt{}
	params := map[string]interface{}{"chatId": chatID, "message": text}
	if err := b.rpc(ctx, "sendMessage", params, &receipt); err != nil {
		return nil, err
	}
	return &SendResult{ID: receipt.MessageID, Timestamp: time.Unix(receipt.Timestamp, 0)}, nil
}

func (b *Bridge) SendMedia(ctx context.Context, chatID string, caption string, media Media) (*SendResult, error) {
	receipt := sendReceipt{}
	params := map[string]interface{}{
		"chatId":  chatID,
		"message": caption,
		"media": map[string]string{
			"mimetype": media.MimeType,
			"filename": media.Filename,
			"data":     media.Data,
		},
	}
	if err := b.rpc(ctx, "sendMessage", params, &receipt); err != nil {
		return nil, err
	}
	return &SendResult{ID: receipt.MessageID, Timestamp: time.Unix(receipt.Timestamp, 0)}, nil
}

func (b *Bridge) MessageByID(ctx context.Context, id string) (Message, error) {
	record := messageRecord{}
	err := b.rpc(ctx, "getMessageById", map[string]string{"messageId": id}, &record)
	if err != nil {
		if failure, ok := err.(*rpcFailure); ok && failure.status == http.StatusNotFound {
			return nil, ErrorMessageNotFound
		}
		return nil, err
	}
	return &bridgeMessage{record: record, bridge: b}, nil
}

func (b *Bridge) ChatByID(ctx context.Context, chatID string) (*Chat, error) {
	chat := struct {
		ID               string `json:"id"`
		Name             string `json:"name"`
		IsGroup          bool   `json:"isGroup"`
		ParticipantCount *int   `json:"participantCount"`
	}{}
	err := b.rpc(ctx, "getChatById", map[string]string{"chatId": chatID}, &chat)
	if err != nil {
		if failure, ok := err.(*rpcFailure); ok && failure.status == http.StatusNotFound {
			return nil, ErrorChatNotFound
		}
		return nil, err
	}
	return &Chat{ID: chat.ID, Name: chat.Name, IsGroup: chat.IsGroup, ParticipantCount: chat.ParticipantCount}, nil
}

type bridgeMessage struct {
	record messageRecord
	bridge *Bridge
}

func (m *bridgeMessage) ID() string { return m.record.ID }
func (m *bridgeMessage) ChatID() string { return m.record.ChatID }
func (m *bridgeMessage) Body() string { return m.record.Body }
func (m *bridgeMessage) FromMe() bool { return m.record.FromMe }
func (m *bridgeMessage) HasQuoted() bool {
	return m.record.HasQuoted
}
func (m *bridgeMessage) HasMedia() bool {
	return m.record.HasMedia
}

func (m *bridgeMessage) Timestamp() time.Time {
	if m.record.Timestamp == 0 {
		return time.Time{}
	}
	return time.Unix(m.record.Timestamp, 0)
}

func (m *bridgeMessage) Quoted(ctx context.Context) (Message, error) {
	record := messageRecord{}
	err := m.bridge.rpc(ctx, "getQuotedMessage", map[string]string{"messageId": m.record.ID}, &record)
	if err != nil {
		return nil, err
	}
	return &bridgeMessage{record: record, bridge: m.bridge}, nil
}

func (m *bridgeMessage) DownloadMedia(ctx context.Context) (*Media, error) {
	media := struct {
		MimeType string `json:"mimetype"`
		Filename string `json:"filename"`
		Data     string `json:"data"`
	}{}
	err := m.bridge.rpc(ctx, "downloadMedia", map[string]string{"messageId": m.record.ID}, &media)
	if err != nil {
		return nil, err
	}
	return &Media{MimeType: media.MimeType, Filename: media.Filename, Data: media.Data}, nil
}

func (m *bridgeMessage) Contact(ctx context.Context) (*Contact, error) {
	contact := struct {
		PushName string `json:"pushname"`
		Name     string `json:"name"`
		Number   string `json:"number"`
	}{}
	err := m.bridge.rpc(ctx, "getContact", map[string]string{"messageId": m.record.ID}, &contact)
	if err != nil {
		return nil, err
	}
	return &Contact{PushName: contact.PushName, Name: contact.Name, Number: contact.Number}, nil
}

func (m *bridgeMessage) Delete(ctx context.Context, forEveryone bool) error {
	params := map[string]interface{}{"messageId": m.record.ID, "everyone": forEveryone}
	return m.bridge.rpc(ctx, "deleteMessage", params, nil)
}
