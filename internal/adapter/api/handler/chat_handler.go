package handler

import (
	"fmt"
	"io"

	"github.com/labstack/echo/v4"

	"shopdesk/internal/domain/entity"
	"shopdesk/internal/usecase"
	"shopdesk/pkg/errors"
	"shopdesk/pkg/logger"
	"shopdesk/pkg/response"
)

type ChatHandler struct {
	chatUseCase *usecase.ChatUseCase
	maxFileSize int64
}

func NewChatHandler(chatUseCase *usecase.ChatUseCase) *ChatHandler {
	return &ChatHandler{
		chatUseCase: chatUseCase,
		maxFileSize: 10 * 1024 * 1024,
	}
}

type createDirectRequest struct {
	UserID string `json:"user_id" validate:"required"`
}

type createGroupRequest struct {
	Name         string   `json:"name" validate:"required,min=1,max=80"`
	Description  string   `json:"description" validate:"max=500"`
	Avatar       string   `json:"avatar" validate:"omitempty,url"`
	Participants []string `json:"participants" validate:"required,min=1,dive,required"`
}

type sendMessageRequest struct {
	Content string `json:"content" validate:"required,max=4000"`
	Type    string `json:"type" validate:"omitempty,oneof=text location"`
	ReplyTo string `json:"reply_to"`
}

type reactRequest struct {
	Emoji string `json:"emoji" validate:"required,max=16"`
}

type archiveRequest struct {
	Archived bool `json:"archived"`
}

// CreateDirect returns the direct conversation with the other user, creating it on first use.
func (h *ChatHandler) CreateDirect(c echo.Context) error {
	var req createDirectRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	conv, created, err := h.chatUseCase.CreateDirect(c.Request().Context(), currentUser(c), req.UserID)
	if err != nil {
		return response.Error(c, err)
	}
	if created {
		return response.Created(c, conv)
	}
	return response.Success(c, conv)
}

func (h *ChatHandler) CreateGroup(c echo.Context) error {
	var req createGroupRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	conv, err := h.chatUseCase.CreateGroup(c.Request().Context(), currentUser(c), usecase.CreateGroupInput{
		Name:         req.Name,
		Description:  req.Description,
		Avatar:       req.Avatar,
		Participants: req.Participants,
	})
	if err != nil {
		return response.Error(c, err)
	}
	return response.Created(c, conv)
}

func (h *ChatHandler) ListConversations(c echo.Context) error {
	includeArchived := c.QueryParam("archived") == "true"
	convs, err := h.chatUseCase.ListConversations(c.Request().Context(), currentUser(c).ID, includeArchived)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, convs)
}

func (h *ChatHandler) GetConversation(c echo.Context) error {
	conv, err := h.chatUseCase.Conversation(c.Request().Context(), currentUser(c).ID, c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, conv)
}

func (h *ChatHandler) ListMessages(c echo.Context) error {
	messages, err := h.chatUseCase.ListMessages(c.Request().Context(), currentUser(c).ID, c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, messages)
}

// SendMessage is the HTTP path for clients without a live session. It skips the provisional view.
func (h *ChatHandler) SendMessage(c echo.Context) error {
	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	msg, err := h.chatUseCase.SendMessage(c.Request().Context(), currentUser(c), usecase.SendMessageInput{
		ConversationID: c.Param("id"),
		Content:        req.Content,
		Type:           entity.MessageType(req.Type),
		ReplyTo:        req.ReplyTo,
	}, nil)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Created(c, msg)
}

// SendFile uploads the multipart "file" field and sends it with the optional "caption" field.
func (h *ChatHandler) SendFile(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return response.Error(c, errors.BadRequest("No file uploaded", err))
	}
	logger.Debug("Received file: %s, size: %d bytes, type: %s", file.Filename, file.Size, file.Header.Get("Content-Type"))

	if file.Size > h.maxFileSize {
		logger.Warn("File too large: %d bytes (max: %d)", file.Size, h.maxFileSize)
		return response.Error(c, errors.BadRequest(fmt.Sprintf("File size exceeds maximum allowed (%dMB)", h.maxFileSize/(1024*1024)), nil))
	}

	src, err := file.Open()
	if err != nil {
		return response.Error(c, errors.Internal("Failed to open uploaded file", err))
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, h.maxFileSize+1))
	if err != nil {
		return response.Error(c, errors.Internal("Failed to read uploaded file", err))
	}

	contentType := file.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	msg, err := h.chatUseCase.SendFile(c.Request().Context(), currentUser(c), c.Param("id"), c.FormValue("caption"), usecase.Attachment{
		Name:        file.Filename,
		ContentType: contentType,
		Data:        data,
	}, nil)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Created(c, msg)
}

func (h *ChatHandler) MarkRead(c echo.Context) error {
	marked, err := h.chatUseCase.MarkRead(c.Request().Context(), currentUser(c).ID, c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, map[string]int{"marked": marked})
}

func (h *ChatHandler) React(c echo.Context) error {
	var req reactRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	reactions, err := h.chatUseCase.React(c.Request().Context(), currentUser(c).ID, c.Param("messageId"), req.Emoji)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, reactions)
}

func (h *ChatHandler) Archive(c echo.Context) error {
	var req archiveRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}

	if err := h.chatUseCase.Archive(c.Request().Context(), currentUser(c).ID, c.Param("id"), req.Archived); err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, map[string]bool{"archived": req.Archived})
}

func (h *ChatHandler) DeleteConversation(c echo.Context) error {
	if err := h.chatUseCase.Delete(c.Request().Context(), currentUser(c), c.Param("id")); err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, map[string]string{"message": "Conversation deleted"})
}
