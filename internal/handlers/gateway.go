package handlers

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"uk.co.dudmesh.bitlink/internal/model"
	"uk.co.dudmesh.bitlink/internal/session"
)

const SharedSecretHeader = "X-Shared-Secret"

type CommandService interface {
	SendText(ctx context.Context, chatID string, text string) (*model.SentReceipt, error)
	SendMedia(ctx context.Context, chatID string, caption string, media *model.MediaPayload) (*model.SentReceipt, error)
	Delete(ctx context.Context, messageID string) error
	ChatInfo(ctx context.Context, chatID string) (*model.ChatInfo, error)
}

type MessageQueue interface {
	Drain() []model.InboundMessage
	Len() int
	NearCapacity() bool
}

// RequireSecret gates a route on the shared secret header. The comparison
// runs before any body handling.
func RequireSecret(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			provided := c.Request().Header.Get(SharedSecretHeader)
			if subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
				return c.JSON(http.StatusUnauthorized, errorBody("unauthorized"))
			}
			return next(c)
		}
	}
}

func Health(state *session.State, queue MessageQueue) echo.HandlerFunc {
	return func(c echo.Context) error {
		status := "not_ready"
		if state.Ready() {
			status = "ready"
		}
		body := map[string]interface{}{
			"status":    status,
			"phase":     state.Phase(),
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		}
		if queue != nil {
			body["queue"] = map[string]interface{}{
				"depth":         queue.Len(),
				"near_capacity": queue.NearCapacity(),
			}
		}
		return c.JSON(http.StatusOK, body)
	}
}

// Messages drains the pull queue: everything currently buffered is
// returned exactly once and the queue is left empty.
func Messages(queue MessageQueue) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, queue.Drain())
	}
}

type sendMessageRequest struct {
	ChatID  string              `json:"chatId"`
	Message string              `json:"message"`
	Media   *model.MediaPayload `json:"media"`
}

func SendMessage(commands CommandService) echo.HandlerFunc {
	return func(c echo.Context) error {
		params := &sendMessageRequest{}
		if err := c.Bind(params); err != nil {
			return c.JSON(http.StatusBadRequest, errorBody("invalid request body"))
		}

		ctx := c.Request().Context()
		var receipt *model.SentReceipt
		var err error
		if params.Media != nil && params.Media.Data != "" {
			receipt, err = commands.SendMedia(ctx, params.ChatID, params.Message, params.Media)
		} else {
			receipt, err = commands.SendText(ctx, params.ChatID, params.Message)
		}
		if err != nil {
			return fail(c, err)
		}

		return c.JSON(http.StatusOK, map[string]interface{}{
			"success":   true,
			"messageId": receipt.MessageID,
			"timestamp": receipt.Timestamp,
		})
	}
}

type deleteMessageRequest struct {
	MessageID string `json:"messageId"`
}

func DeleteMessage(commands CommandService) echo.HandlerFunc {
	return func(c echo.Context) error {
		params := &deleteMessageRequest{}
		if err := c.Bind(params); err != nil {
			return c.JSON(http.StatusBadRequest, errorBody("invalid request body"))
		}

		if err := commands.Delete(c.Request().Context(), params.MessageID); err != nil {
			if errors.Is(err, model.ErrorNotFound) {
				return c.JSON(http.StatusNotFound, errorBody("message not found or may have been already deleted"))
			}
			return fail(c, err)
		}
		return c.JSON(http.StatusOK, map[string]interface{}{"success": true})
	}
}

func ChatInfo(commands CommandService) echo.HandlerFunc {
	return func(c echo.Context) error {
		chat, err := commands.ChatInfo(c.Request().Context(), c.Param("chatId"))
		if err != nil {
			return fail(c, err)
		}
		return c.JSON(http.StatusOK, map[string]interface{}{
			"success": true,
			"chat":    chat,
		})
	}
}

type sendTextRequest struct {
	To   string `json:"to"`
	Text string `json:"text"`
}

// SendText is the push-deployment alias taking an E.164 number instead of
// a chat id.
func SendText(commands CommandService) echo.HandlerFunc {
	return func(c echo.Context) error {
		params := &sendTextRequest{}
		if err := c.Bind(params); err != nil {
			return c.JSON(http.StatusBadRequest, errorBody("invalid request body"))
		}
		if params.To == "" || params.Text == "" {
			return c.JSON(http.StatusBadRequest, errorBody("to and text are required"))
		}

		if _, err := commands.SendText(c.Request().Context(), model.ToChatID(params.To), params.Text); err != nil {
			return fail(c, err)
		}
		return c.JSON(http.StatusOK, map[string]interface{}{"success": true})
	}
}

type sendMediaRequest struct {
	To       string `json:"to"`
	Caption  string `json:"caption"`
	Filename string `json:"filename"`
	MimeType string `json:"mimetype"`
	Data     string `json:"data"`
}

func SendMedia(commands CommandService) echo.HandlerFunc {
	return func(c echo.Context) error {
		params := &sendMediaRequest{}
		if err := c.Bind(params); err != nil {
			return c.JSON(http.StatusBadRequest, errorBody("invalid request body"))
		}
		if params.To == "" {
			return c.JSON(http.StatusBadRequest, errorBody("to is required"))
		}

		media := &model.MediaPayload{
			Data:     params.Data,
			MimeType: params.MimeType,
			Filename: params.Filename,
		}
		if _, err := commands.SendMedia(c.Request().Context(), model.ToChatID(params.To), params.Caption, media); err != nil {
			return fail(c, err)
		}
		return c.JSON(http.StatusOK, map[string]interface{}{"success": true})
	}
}

// fail translates a command error to its HTTP status. The body carries a
// readable message and nothing else.
func fail(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, model.ErrorNotReady):
		status = http.StatusServiceUnavailable
	case errors.Is(err, model.ErrorInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, model.ErrorNotFound):
		status = http.StatusNotFound
	}
	return c.JSON(status, errorBody(err.Error()))
}

func errorBody(message string) map[string]interface{} {
	return map[string]interface{}{
		"success": false,
		"error":   message,
	}
}
