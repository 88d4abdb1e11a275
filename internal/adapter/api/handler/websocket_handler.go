package handler

import (
	"context"
	"net/http"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"shopdesk/internal/domain/entity"
	ws "shopdesk/internal/infrastructure/websocket"
	"shopdesk/internal/livesync"
	"shopdesk/internal/usecase"
	"shopdesk/pkg/errors"
	"shopdesk/pkg/logger"
	"shopdesk/pkg/response"
)

const commandTimeout = 15 * time.Second

type WebSocketHandler struct {
	wsManager   *ws.Manager
	authUseCase *usecase.AuthUseCase
	liveUseCase *usecase.LiveUseCase
	upgrader    gorillaws.Upgrader
}

func NewWebSocketHandler(wsManager *ws.Manager, authUseCase *usecase.AuthUseCase, liveUseCase *usecase.LiveUseCase, origins []string) *WebSocketHandler {
	return &WebSocketHandler{
		wsManager:   wsManager,
		authUseCase: authUseCase,
		liveUseCase: liveUseCase,
		upgrader: gorillaws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(origins),
		},
	}
}

func originChecker(origins []string) func(r *http.Request) bool {
	allowAll := len(origins) == 0
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return allowAll || origin == "" || allowed[origin]
	}
}

// HandleWebSocket authenticates the browser, upgrades the connection and mounts a live session on it. The
// token comes from the "token" query parameter since browsers cannot set headers on websocket requests.
func (h *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		token = bearerToken(c.Request().Header.Get("Authorization"))
	}
	if token == "" {
		return response.Error(c, errors.Unauthorized("Authentication required", nil))
	}

	user, err := h.authUseCase.Authenticate(c.Request().Context(), token)
	if err != nil {
		return response.Error(c, err)
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Warn("WebSocket: upgrade failed for %s: %v", user.ID, err)
		return nil
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(c.Request().Context()))
	defer cancel()

	client := ws.NewClient(user.ID, conn)
	h.serve(ctx, client, user)
	return nil
}

// serve blocks until the connection ends.
func (h *WebSocketHandler) serve(ctx context.Context, client *ws.Client, user *entity.User) {
	loop := livesync.NewEventLoop(0)
	go loop.Run(ctx)

	session, err := h.liveUseCase.Start(ctx, user, clientOutbox{client: client}, loop)
	if err != nil {
		loop.Stop()
		code, message := errorReply(err)
		client.SendJSON(ws.ErrorReply(ws.Frame{}, code, message))
		h.wsManager.Register(client)
		go client.WritePump()
		h.wsManager.Unregister(client)
		return
	}

	go func() {
		select {
		case <-session.Done():
			client.Close()
		case <-client.Done():
		}
	}()

	h.wsManager.Serve(ctx, client, &liveConnection{session: session, loop: loop})
}

// clientOutbox turns session events into frames on one connection.
type clientOutbox struct {
	client *ws.Client
}

func (o clientOutbox) Emit(event usecase.Event) {
	o.client.SendJSON(ws.NewMessage(event.Type, event.ConversationID, event.Data))
}

// liveConnection routes the frames of one connection to its live session.
type liveConnection struct {
	session *usecase.LiveSession
	loop    *livesync.EventLoop
}

func (lc *liveConnection) Handle(ctx context.Context, client *ws.Client, frame ws.Frame) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	var (
		data interface{}
		err  error
	)

	switch frame.Type {
	case ws.MessageTypePing:
		client.SendJSON(ws.Pong(frame))
		return

	case ws.MessageTypeOpenConversation:
		err = lc.session.OpenConversation(ctx, frame.ConversationID)

	case ws.MessageTypeCloseConversation:
		lc.session.CloseConversation(ctx, frame.ConversationID)

	case ws.MessageTypeSendMessage:
		var payload ws.SendMessageData
		if err = frame.DecodeData(&payload); err != nil {
			err = errors.BadRequest(err.Error(), nil)
			break
		}
		data, err = lc.session.SendMessage(ctx, usecase.SendMessageInput{
			ConversationID: frame.ConversationID,
			Content:        payload.Content,
			Type:           entity.MessageType(payload.Type),
			ReplyTo:        payload.ReplyTo,
		})

	case ws.MessageTypeTyping:
		err = lc.session.Keystroke(ctx, frame.ConversationID)

	case ws.MessageTypeMarkRead:
		var marked int
		marked, err = lc.session.MarkRead(ctx, frame.ConversationID)
		data = map[string]int{"marked": marked}

	case ws.MessageTypeReact:
		var payload ws.ReactData
		if err = frame.DecodeData(&payload); err != nil {
			err = errors.BadRequest(err.Error(), nil)
			break
		}
		data, err = lc.session.React(ctx, payload.MessageID, payload.Emoji)

	default:
		err = errors.BadRequest("Unknown message type "+frame.Type, nil)
	}

	if err != nil {
		code, message := errorReply(err)
		client.SendJSON(ws.ErrorReply(frame, code, message))
		return
	}
	if frame.RequestID != "" {
		client.SendJSON(ws.Ack(frame, data))
	}
}

func (lc *liveConnection) Closed(client *ws.Client) {
	lc.session.Close()
	lc.loop.Stop()
}

func errorReply(err error) (string, string) {
	if appErr, ok := errors.As(err); ok {
		return appErr.Code, appErr.Message
	}
	logger.Error("WebSocket: unexpected command error: %v", err)
	return errors.CodeInternal, "An unexpected error occurred"
}
