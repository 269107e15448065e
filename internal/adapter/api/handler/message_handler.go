package handler

import (
	"github.com/labstack/echo/v4"

	"parley/internal/domain/entity"
	"parley/internal/usecase"
	"parley/pkg/errors"
	"parley/pkg/response"
)

type MessageHandler struct {
	messageUseCase *usecase.MessageUseCase
	receiptUseCase *usecase.ReceiptUseCase
}

func NewMessageHandler(messageUseCase *usecase.MessageUseCase, receiptUseCase *usecase.ReceiptUseCase) *MessageHandler {
	return &MessageHandler{
		messageUseCase: messageUseCase,
		receiptUseCase: receiptUseCase,
	}
}

type attachmentRequest struct {
	ID   string `json:"id" validate:"required"`
	Type string `json:"type" validate:"required,oneof=image file"`
	Name string `json:"name" validate:"required"`
	URL  string `json:"url" validate:"required,url"`
	Size int64  `json:"size"`
}

type sendMessageRequest struct {
	ChannelID   string              `json:"channel_id" validate:"required"`
	Text        string              `json:"text"`
	Attachments []attachmentRequest `json:"attachments" validate:"omitempty,dive"`
	ReplyToID   string              `json:"reply_to_id"`
}

type editMessageRequest struct {
	Text string `json:"text" validate:"required"`
}

type forwardMessageRequest struct {
	ChannelID string `json:"channel_id" validate:"required"`
}

func (h *MessageHandler) Send(c echo.Context) error {
	uid := c.Get("uid").(string)

	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	attachments := make([]entity.Attachment, len(req.Attachments))
	for i, a := range req.Attachments {
		attachments[i] = entity.Attachment{
			ID:   a.ID,
			Kind: a.Type,
			Name: a.Name,
			URL:  a.URL,
			Size: a.Size,
		}
	}

	msg, err := h.messageUseCase.Send(c.Request().Context(), uid, usecase.SendMessageInput{
		ChannelID:   req.ChannelID,
		Text:        req.Text,
		Attachments: attachments,
		ReplyToID:   req.ReplyToID,
	})
	if err != nil {
		return response.Error(c, err)
	}
	return response.Created(c, msg)
}

func (h *MessageHandler) Fetch(c echo.Context) error {
	uid := c.Get("uid").(string)

	channelID := c.QueryParam("channelId")
	if channelID == "" {
		return response.Error(c, errors.BadRequest("channelId query parameter is required", nil))
	}

	messages, err := h.messageUseCase.Fetch(c.Request().Context(), uid, channelID)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, messages)
}

func (h *MessageHandler) Edit(c echo.Context) error {
	uid := c.Get("uid").(string)

	var req editMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	msg, err := h.messageUseCase.Edit(c.Request().Context(), uid, c.Param("id"), req.Text)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, msg)
}

func (h *MessageHandler) Delete(c echo.Context) error {
	uid := c.Get("uid").(string)

	if err := h.messageUseCase.Delete(c.Request().Context(), uid, c.Param("id")); err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, map[string]string{"status": "deleted"})
}

func (h *MessageHandler) Forward(c echo.Context) error {
	uid := c.Get("uid").(string)

	var req forwardMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	msg, err := h.messageUseCase.Forward(c.Request().Context(), uid, c.Param("id"), req.ChannelID)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Created(c, msg)
}

func (h *MessageHandler) MarkSeen(c echo.Context) error {
	uid := c.Get("uid").(string)

	if err := h.receiptUseCase.MarkSeen(c.Request().Context(), uid, c.Param("id")); err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, map[string]string{"status": "seen"})
}
