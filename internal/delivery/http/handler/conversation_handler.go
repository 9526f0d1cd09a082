package handler

import (
	"github.com/gin-gonic/gin"
)

type ConversationHandler struct{}

func NewConversationHandler() *ConversationHandler {
	return &ConversationHandler{}
}

type SendMessageRequest struct {
	Text     string `json:"text" binding:"max=4000"`
	ImageURL string `json:"image_url" binding:"omitempty,url"`
}

// SendMessage handles POST /conversations/:participant_id/messages
// @Summary Send a message
// @Description Starts the conversation when there is none. Unknown participants are ignored.
// @Tags conversations
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param participant_id path string true "Participant ID"
// @Param request body SendMessageRequest true "Text and/or image"
// @Success 200 {object} session.View
// @Failure 400 {object} ErrorResponse
// @Router /conversations/{participant_id}/messages [post]
func (h *ConversationHandler) SendMessage(c *gin.Context) {
	s, ok := currentSession(c)
	if !ok {
		return
	}
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	if err := s.SendMessage(c.Request.Context(), c.Param("participant_id"), req.Text, req.ImageURL); err != nil {
		respondError(c, err)
		return
	}
	respondView(c, s)
}

// View handles POST /conversations/:participant_id/view
// @Summary Open a conversation
// @Description Marks it read and makes it the active conversation
// @Tags conversations
// @Security BearerAuth
// @Produce json
// @Param participant_id path string true "Participant ID"
// @Success 200 {object} session.View
// @Router /conversations/{participant_id}/view [post]
func (h *ConversationHandler) View(c *gin.Context) {
	s, ok := currentSession(c)
	if !ok {
		return
	}
	if err := s.ViewConversation(c.Request.Context(), c.Param("participant_id")); err != nil {
		respondError(c, err)
		return
	}
	respondView(c, s)
}

// ClearActive handles DELETE /conversations/active
// @Summary Leave the active conversation
// @Tags conversations
// @Security BearerAuth
// @Produce json
// @Success 200 {object} session.View
// @Router /conversations/active [delete]
func (h *ConversationHandler) ClearActive(c *gin.Context) {
	s, ok := currentSession(c)
	if !ok {
		return
	}
	if err := s.ViewConversation(c.Request.Context(), ""); err != nil {
		respondError(c, err)
		return
	}
	respondView(c, s)
}
