package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type ExploreHandler struct{}

func NewExploreHandler() *ExploreHandler {
	return &ExploreHandler{}
}

// Cards handles GET /explore
// @Summary Explore cards
// @Description Incoming requests first, then discovery candidates
// @Tags explore
// @Security BearerAuth
// @Produce json
// @Success 200 {array} session.ExploreCard
// @Failure 409 {object} ErrorResponse
// @Router /explore [get]
func (h *ExploreHandler) Cards(c *gin.Context) {
	s, ok := currentSession(c)
	if !ok {
		return
	}
	cards, err := s.ExploreCards()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cards)
}

// Explanation handles GET /explore/:user_id/explanation
// @Summary Match explanation
// @Description Compatibility rating and explanation for a candidate
// @Tags explore
// @Security BearerAuth
// @Produce json
// @Param user_id path string true "User ID"
// @Success 200 {object} textgen.Explanation
// @Failure 404 {object} ErrorResponse
// @Router /explore/{user_id}/explanation [get]
func (h *ExploreHandler) Explanation(c *gin.Context) {
	s, ok := currentSession(c)
	if !ok {
		return
	}
	e, err := s.ExplainCandidate(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

// Dismiss handles POST /explore/:user_id/dismiss
// @Summary Dismiss a candidate
// @Description Hides the user from discovery for good and drops any chat with them
// @Tags explore
// @Security BearerAuth
// @Produce json
// @Param user_id path string true "User ID"
// @Success 200 {object} session.View
// @Router /explore/{user_id}/dismiss [post]
func (h *ExploreHandler) Dismiss(c *gin.Context) {
	s, ok := currentSession(c)
	if !ok {
		return
	}
	if err := s.DismissCandidate(c.Request.Context(), c.Param("user_id")); err != nil {
		respondError(c, err)
		return
	}
	respondView(c, s)
}
