package handler

import (
	"github.com/labstack/echo/v4"

	"pasarmobil/internal/usecase"
	"pasarmobil/pkg/errors"
	"pasarmobil/pkg/response"
)

type ChatHandler struct {
	chatUseCase *usecase.ChatUseCase
}

func NewChatHandler(chatUseCase *usecase.ChatUseCase) *ChatHandler {
	return &ChatHandler{
		chatUseCase: chatUseCase,
	}
}

type sendMessageRequest struct {
	ReceiverID string `json:"receiver_id" validate:"required"`
	Body       string `json:"body" validate:"required"`
	ListingID  string `json:"listing_id,omitempty"`
}

// ListConversations returns the user's conversation summaries, most
// recently active first.
func (h *ChatHandler) ListConversations(c echo.Context) error {
	userID := c.Get("uid").(string)

	conversations, err := h.chatUseCase.ListConversations(c.Request().Context(), userID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, conversations)
}

// OpenConversation returns the full message history with one partner.
// Opening the conversation marks the unread batch as read and moves it
// into the caller's archive.
func (h *ChatHandler) OpenConversation(c echo.Context) error {
	userID := c.Get("uid").(string)

	partnerID := c.Param("partnerId")
	if partnerID == "" {
		return response.Error(c, errors.BadRequest("Partner ID is required", nil))
	}

	messages, err := h.chatUseCase.OpenConversation(c.Request().Context(), userID, partnerID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, messages)
}

func (h *ChatHandler) SendMessage(c echo.Context) error {
	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	userID := c.Get("uid").(string)

	message, err := h.chatUseCase.SendMessage(c.Request().Context(), userID, usecase.SendMessageInput{
		ReceiverID: req.ReceiverID,
		Body:       req.Body,
		ListingID:  req.ListingID,
	})
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, message)
}

// DeleteConversation clears the caller's archived history with a
// partner. This only touches the local tier and cannot be undone.
func (h *ChatHandler) DeleteConversation(c echo.Context) error {
	userID := c.Get("uid").(string)

	partnerID := c.Param("partnerId")
	if partnerID == "" {
		return response.Error(c, errors.BadRequest("Partner ID is required", nil))
	}

	h.chatUseCase.DeleteConversation(userID, partnerID)

	return response.Success(c, map[string]string{"status": "deleted"})
}
