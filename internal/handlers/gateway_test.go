package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"uk.co.dudmesh.bitlink/internal/delivery"
	"uk.co.dudmesh.bitlink/internal/model"
	"uk.co.dudmesh.bitlink/internal/session"
	"uk.co.dudmesh.bitlink/pkg/waclient"
)

const testSecret = "s3cret"

type fakeCommands struct {
	sendTextCalls  int
	lastChatID     string
	lastText       string
	sendMediaCalls int
	deleteCalls    int

	err       error
	deleteErr error
	chat      *model.ChatInfo
	chatErr   error
}

func (f *fakeCommands) SendText(ctx context.Context, chatID string, text string) (*model.SentReceipt, error) {
	f.sendTextCalls++
	f.lastChatID = chatID
	f.lastText = text
	if f.err != nil {
		return nil, f.err
	}
	return &model.SentReceipt{MessageID: "wamid.sent", Timestamp: 1700000000}, nil
}

func (f *fakeCommands) SendMedia(ctx context.Context, chatID string, caption string, media *model.MediaPayload) (*model.SentReceipt, error) {
	f.sendMediaCalls++
	f.lastChatID = chatID
	if f.err != nil {
		return nil, f.err
	}
	return &model.SentReceipt{MessageID: "wamid.media", Timestamp: 1700000000}, nil
}

func (f *fakeCommands) Delete(ctx context.Context, messageID string) error {
	f.deleteCalls++
	return f.deleteErr
}

func (f *fakeCommands) ChatInfo(ctx context.Context, chatID string) (*model.ChatInfo, error) {
	if f.chatErr != nil {
		return nil, f.chatErr
	}
	return f.chat, nil
}

func newServer(commands CommandService, queue MessageQueue, state *session.State) *echo.Echo {
	server := echo.New()
	auth := RequireSecret(testSecret)

	server.GET("/health", Health(state, queue))
	if queue != nil {
		server.GET("/get-messages", Messages(queue), auth)
	}
	server.POST("/send-message", SendMessage(commands), auth)
	server.POST("/delete-message", DeleteMessage(commands), auth)
	server.GET("/chat-info/:chatId", ChatInfo(commands), auth)
	server.POST("/wa/sendText", SendText(commands), auth)
	server.POST("/wa/sendMedia", SendMedia(commands), auth)
	return server
}

func request(server *echo.Echo, method string, path string, body string, secret string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if secret != "" {
		req.Header.Set(SharedSecretHeader, secret)
	}
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	return rec
}

func TestRequireSecret(t *testing.T) {
	assert := assert.New(t)
	commands := &fakeCommands{}
	server := newServer(commands, nil, session.NewState())

	t.Run("Missing Secret", func(t *testing.T) {
		rec := request(server, http.MethodPost, "/send-message", `{"chatId":"1@c.us","message":"hi"}`, "")
		assert.Equal(http.StatusUnauthorized, rec.Code)
		assert.Equal(0, commands.sendTextCalls)
	})

	t.Run("Wrong Secret", func(t *testing.T) {
		rec := request(server, http.MethodPost, "/send-message", `{"chatId":"1@c.us","message":"hi"}`, "nope")
		assert.Equal(http.StatusUnauthorized, rec.Code)
		assert.Equal(0, commands.sendTextCalls)
	})

	t.Run("Correct Secret", func(t *testing.T) {
		rec := request(server, http.MethodPost, "/send-message", `{"chatId":"1@c.us","message":"hi"}`, testSecret)
		assert.Equal(http.StatusOK, rec.Code)
		assert.Equal(1, commands.sendTextCalls)
	})
}

func TestHealth(t *testing.T) {
	assert := assert.New(t)

	t.Run("Not Ready", func(t *testing.T) {
		server := newServer(&fakeCommands{}, nil, session.NewState())
		rec := request(server, http.MethodGet, "/health", "", "")
		assert.Equal(http.StatusOK, rec.Code)

		body := map[string]interface{}{}
		assert.Nil(json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal("not_ready", body["status"])
		assert.Equal(string(session.PhaseUninitialized), body["phase"])
		assert.NotEmpty(body["timestamp"])
	})

	t.Run("Ready With Queue Stats", func(t *testing.T) {
		state := session.NewState()
		state.Apply(waclient.EventReady)
		queue := delivery.NewQueue(10)
		queue.Deliver(context.Background(), &model.InboundMessage{ExternalID: "m1"})

		server := newServer(&fakeCommands{}, queue, state)
		rec := request(server, http.MethodGet, "/health", "", "")
		assert.Equal(http.StatusOK, rec.Code)

		body := map[string]interface{}{}
		assert.Nil(json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal("ready", body["status"])

		stats, ok := body["queue"].(map[string]interface{})
		if assert.True(ok) {
			assert.Equal(float64(1), stats["depth"])
			assert.Equal(false, stats["near_capacity"])
		}
	})
}

func TestGetMessages(t *testing.T) {
	assert := assert.New(t)

	queue := delivery.NewQueue(10)
	queue.Deliver(context.Background(), &model.InboundMessage{ExternalID: "m1", Text: "hello"})
	queue.Deliver(context.Background(), &model.InboundMessage{ExternalID: "m2", Text: "again"})
	server := newServer(&fakeCommands{}, queue, session.NewState())

	t.Run("Drains The Queue", func(t *testing.T) {
		rec := request(server, http.MethodGet, "/get-messages", "", testSecret)
		assert.Equal(http.StatusOK, rec.Code)

		batch := []model.InboundMessage{}
		assert.Nil(json.Unmarshal(rec.Body.Bytes(), &batch))
		if assert.Len(batch, 2) {
			assert.Equal("m1", batch[0].ExternalID)
			assert.Equal("m2", batch[1].ExternalID)
		}
	})

	t.Run("Second Drain Is Empty", func(t *testing.T) {
		rec := request(server, http.MethodGet, "/get-messages", "", testSecret)
		assert.Equal(http.StatusOK, rec.Code)
		assert.Equal("[]", strings.TrimSpace(rec.Body.String()))
	})
}

func TestSendMessageEndpoint(t *testing.T) {
	assert := assert.New(t)

	t.Run("Text Success", func(t *testing.T) {
		commands := &fakeCommands{}
		server := newServer(commands, nil, session.NewState())

		rec := request(server, http.MethodPost, "/send-message", `{"chatId":"1@c.us","message":"hi"}`, testSecret)
		assert.Equal(http.StatusOK, rec.Code)

		body := map[string]interface{}{}
		assert.Nil(json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(true, body["success"])
		assert.Equal("wamid.sent", body["messageId"])
		assert.Equal(1, commands.sendTextCalls)
		assert.Equal(0, commands.sendMediaCalls)
	})

	t.Run("Media Routes To SendMedia", func(t *testing.T) {
		commands := &fakeCommands{}
		server := newServer(commands, nil, session.NewState())

		payload := `{"chatId":"1@c.us","message":"caption","media":{"mimetype":"image/png","filename":"pic.png","data":"aGVsbG8="}}`
		rec := request(server, http.MethodPost, "/send-message", payload, testSecret)
		assert.Equal(http.StatusOK, rec.Code)
		assert.Equal(1, commands.sendMediaCalls)
		assert.Equal(0, commands.sendTextCalls)
	})

	t.Run("Invalid Argument Maps To 400", func(t *testing.T) {
		commands := &fakeCommands{err: fmt.Errorf("%w: chatId is required", model.ErrorInvalidArgument)}
		server := newServer(commands, nil, session.NewState())

		rec := request(server, http.MethodPost, "/send-message", `{"message":"hi"}`, testSecret)
		assert.Equal(http.StatusBadRequest, rec.Code)
	})

	t.Run("Not Ready Maps To 503", func(t *testing.T) {
		commands := &fakeCommands{err: model.ErrorNotReady}
		server := newServer(commands, nil, session.NewState())

		rec := request(server, http.MethodPost, "/send-message", `{"chatId":"1@c.us","message":"hi"}`, testSecret)
		assert.Equal(http.StatusServiceUnavailable, rec.Code)

		body := map[string]interface{}{}
		assert.Nil(json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(false, body["success"])
	})

	t.Run("Other Errors Map To 500", func(t *testing.T) {
		commands := &fakeCommands{err: errors.New("sending message: upstream broke")}
		server := newServer(commands, nil, session.NewState())

		rec := request(server, http.MethodPost, "/send-message", `{"chatId":"1@c.us","message":"hi"}`, testSecret)
		assert.Equal(http.StatusInternalServerError, rec.Code)
	})
}

func TestDeleteMessageEndpoint(t *testing.T) {
	assert := assert.New(t)

	t.Run("Success", func(t *testing.T) {
		commands := &fakeCommands{}
		server := newServer(commands, nil, session.NewState())

		rec := request(server, http.MethodPost, "/delete-message", `{"messageId":"wamid.1"}`, testSecret)
		assert.Equal(http.StatusOK, rec.Code)
		assert.Equal(1, commands.deleteCalls)
	})

	t.Run("Not Found", func(t *testing.T) {
		commands := &fakeCommands{deleteErr: model.ErrorNotFound}
		server := newServer(commands, nil, session.NewState())

		rec := request(server, http.MethodPost, "/delete-message", `{"messageId":"wamid.gone"}`, testSecret)
		assert.Equal(http.StatusNotFound, rec.Code)

		body := map[string]interface{}{}
		assert.Nil(json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal("message not found or may have been already deleted", body["error"])
	})

	t.Run("Expired Window Names The Limit", func(t *testing.T) {
		commands := &fakeCommands{deleteErr: model.ErrorDeleteWindowExpired}
		server := newServer(commands, nil, session.NewState())

		rec := request(server, http.MethodPost, "/delete-message", `{"messageId":"wamid.old"}`, testSecret)
		assert.Equal(http.StatusInternalServerError, rec.Code)
		assert.Contains(rec.Body.String(), "7 minutes")
	})
}

func TestChatInfoEndpoint(t *testing.T) {
	assert := assert.New(t)

	t.Run("Success", func(t *testing.T) {
		count := 3
		commands := &fakeCommands{chat: &model.ChatInfo{ID: "g@g.us", Name: "Ops", IsGroup: true, ParticipantCount: &count}}
		server := newServer(commands, nil, session.NewState())

		rec := request(server, http.MethodGet, "/chat-info/g@g.us", "", testSecret)
		assert.Equal(http.StatusOK, rec.Code)

		body := struct {
			Success bool           `json:"success"`
			Chat    model.ChatInfo `json:"chat"`
		}{}
		assert.Nil(json.Unmarshal(rec.Body.Bytes(), &body))
		assert.True(body.Success)
		assert.Equal("Ops", body.Chat.Name)
	})

	t.Run("Unknown Chat", func(t *testing.T) {
		commands := &fakeCommands{chatErr: model.ErrorNotFound}
		server := newServer(commands, nil, session.NewState())

		rec := request(server, http.MethodGet, "/chat-info/nope", "", testSecret)
		assert.Equal(http.StatusNotFound, rec.Code)
	})
}

func TestSendTextEndpoint(t *testing.T) {
	assert := assert.New(t)

	t.Run("Converts Number To Chat ID", func(t *testing.T) {
		commands := &fakeCommands{}
		server := newServer(commands, nil, session.NewState())

		rec := request(server, http.MethodPost, "/wa/sendText", `{"to":"+44 7911 123456","text":"hi"}`, testSecret)
		assert.Equal(http.StatusOK, rec.Code)
		assert.Equal("447911123456@c.us", commands.lastChatID)
		assert.Equal("hi", commands.lastText)
	})

	t.Run("Missing Fields", func(t *testing.T) {
		commands := &fakeCommands{}
		server := newServer(commands, nil, session.NewState())

		rec := request(server, http.MethodPost, "/wa/sendText", `{"to":"+447911123456"}`, testSecret)
		assert.Equal(http.StatusBadRequest, rec.Code)
		assert.Equal(0, commands.sendTextCalls)
	})
}

func TestSendMediaEndpoint(t *testing.T) {
	assert := assert.New(t)

	t.Run("Success", func(t *testing.T) {
		commands := &fakeCommands{}
		server := newServer(commands, nil, session.NewState())

		payload := `{"to":"+447911123456","caption":"look","mimetype":"image/png","data":"aGVsbG8="}`
		rec := request(server, http.MethodPost, "/wa/sendMedia", payload, testSecret)
		assert.Equal(http.StatusOK, rec.Code)
		assert.Equal(1, commands.sendMediaCalls)
		assert.Equal("447911123456@c.us", commands.lastChatID)
	})

	t.Run("Missing Recipient", func(t *testing.T) {
		commands := &fakeCommands{}
		server := newServer(commands, nil, session.NewState())

		rec := request(server, http.MethodPost, "/wa/sendMedia", `{"mimetype":"image/png","data":"aGVsbG8="}`, testSecret)
		assert.Equal(http.StatusBadRequest, rec.Code)
		assert.Equal(0, commands.sendMediaCalls)
	})
}
