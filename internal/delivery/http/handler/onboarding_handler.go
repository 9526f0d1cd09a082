package handler

import (
	"github.com/gdugdh24/kindred-backend/internal/domain"
	"github.com/gin-gonic/gin"
)

type OnboardingHandler struct{}

func NewOnboardingHandler() *OnboardingHandler {
	return &OnboardingHandler{}
}

// Start handles POST /onboarding/start
// @Summary Start the assistant transcript
// @Description Seeds an empty transcript with the goal question, or a welcome back message after onboarding
// @Tags onboarding
// @Security BearerAuth
// @Produce json
// @Success 200 {object} session.View
// @Router /onboarding/start [post]
func (h *OnboardingHandler) Start(c *gin.Context) {
	s, ok := currentSession(c)
	if !ok {
		return
	}
	if err := s.StartTranscript(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	respondView(c, s)
}

type SelectGoalRequest struct {
	Goal string `json:"goal" binding:"required,relationship_goal"`
}

// SelectGoal handles POST /onboarding/goal
// @Summary Choose relationship goal
// @Tags onboarding
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body SelectGoalRequest true "Goal"
// @Success 200 {object} session.View
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /onboarding/goal [post]
func (h *OnboardingHandler) SelectGoal(c *gin.Context) {
	s, ok := currentSession(c)
	if !ok {
		return
	}
	var req SelectGoalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	goal, err := domain.ParseRelationshipType(req.Goal)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := s.SelectGoal(c.Request.Context(), goal); err != nil {
		respondError(c, err)
		return
	}
	respondView(c, s)
}

type AnswerRequest struct {
	Index  *int   `json:"index" binding:"required,min=0"`
	Answer string `json:"answer" binding:"required"`
}

// Answer handles POST /onboarding/answer
// @Summary Answer an onboarding question
// @Tags onboarding
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body AnswerRequest true "Question index and chosen option"
// @Success 200 {object} session.View
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /onboarding/answer [post]
func (h *OnboardingHandler) Answer(c *gin.Context) {
	s, ok := currentSession(c)
	if !ok {
		return
	}
	var req AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	if err := s.AnswerQuestion(c.Request.Context(), *req.Index, req.Answer); err != nil {
		respondError(c, err)
		return
	}
	respondView(c, s)
}

type SelectOptionRequest struct {
	MessageID string `json:"message_id" binding:"required"`
	Option    string `json:"option" binding:"required"`
}

// SelectOption handles POST /onboarding/options
// @Summary Pick an option offered by a transcript message
// @Tags onboarding
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body SelectOptionRequest true "Message id and option"
// @Success 200 {object} session.View
// @Failure 400 {object} ErrorResponse
// @Router /onboarding/options [post]
func (h *OnboardingHandler) SelectOption(c *gin.Context) {
	s, ok := currentSession(c)
	if !ok {
		return
	}
	var req SelectOptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	if err := s.SelectOption(c.Request.Context(), req.MessageID, req.Option); err != nil {
		respondError(c, err)
		return
	}
	respondView(c, s)
}

type ChatRequest struct {
	Text string `json:"text" binding:"required,max=2000"`
}

// Chat handles POST /onboarding/chat
// @Summary Talk to the assistant after onboarding
// @Tags onboarding
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body ChatRequest true "Message"
// @Success 200 {object} session.View
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /onboarding/chat [post]
func (h *OnboardingHandler) Chat(c *gin.Context) {
	s, ok := currentSession(c)
	if !ok {
		return
	}
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	if err := s.Chat(c.Request.Context(), req.Text); err != nil {
		respondError(c, err)
		return
	}
	respondView(c, s)
}

type CompleteRequest struct {
	Goal string      `json:"goal" binding:"required,relationship_goal"`
	Tags domain.Tags `json:"tags"`
}

// Complete handles POST /onboarding/complete
// @Summary Complete onboarding directly
// @Tags onboarding
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body CompleteRequest true "Goal and tags"
// @Success 200 {object} session.View
// @Failure 400 {object} ErrorResponse
// @Router /onboarding/complete [post]
func (h *OnboardingHandler) Complete(c *gin.Context) {
	s, ok := currentSession(c)
	if !ok {
		return
	}
	var req CompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	goal, err := domain.ParseRelationshipType(req.Goal)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := s.CompleteOnboarding(c.Request.Context(), goal, req.Tags); err != nil {
		respondError(c, err)
		return
	}
	respondView(c, s)
}
