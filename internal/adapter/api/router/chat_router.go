package router

import (
	"github.com/labstack/echo/v4"

	"pasarmobil/internal/adapter/api/handler"
	"pasarmobil/internal/adapter/api/middleware"
)

// SetupChatRouter sets up all chat-related routes (excluding WebSocket)
func SetupChatRouter(e *echo.Echo, chatHandler *handler.ChatHandler, authMiddleware *middleware.AuthMiddleware) {
	group := e.Group("/v1")
	group.Use(authMiddleware.Authenticate)

	group.GET("/conversations", chatHandler.ListConversations)                      // GET /v1/conversations - conversation summaries
	group.GET("/conversations/:partnerId/messages", chatHandler.OpenConversation)   // GET /v1/conversations/:partnerId/messages - merged history
	group.DELETE("/conversations/:partnerId", chatHandler.DeleteConversation)       // DELETE /v1/conversations/:partnerId - clear local archive
	group.POST("/messages", chatHandler.SendMessage)                                // POST /v1/messages - send a message
}
