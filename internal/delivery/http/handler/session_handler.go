package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/gdugdh24/kindred-backend/internal/domain"
	"github.com/gdugdh24/kindred-backend/internal/usecase/session"
	"github.com/gin-gonic/gin"
)

const heartbeatInterval = 30 * time.Second

type SessionHandler struct {
	heartbeat time.Duration
}

func NewSessionHandler() *SessionHandler {
	return &SessionHandler{heartbeat: heartbeatInterval}
}

// GetView handles GET /session
// @Summary Current view
// @Description Snapshot of everything the client renders: profile, transcript, chats, candidates
// @Tags session
// @Security BearerAuth
// @Produce json
// @Success 200 {object} session.View
// @Failure 401 {object} ErrorResponse
// @Router /session [get]
func (h *SessionHandler) GetView(c *gin.Context) {
	s, ok := currentSession(c)
	if !ok {
		return
	}
	respondView(c, s)
}

// Stream handles GET /session/stream
// @Summary Stream view updates
// @Description Server-sent events: "connected", then a "view" event on every change and periodic "heartbeat" events
// @Tags session
// @Security BearerAuth
// @Produce text/event-stream
// @Success 200 {object} session.View
// @Failure 401 {object} ErrorResponse
// @Router /session/stream [get]
func (h *SessionHandler) Stream(c *gin.Context) {
	s, ok := currentSession(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	views := s.Watch(ctx)
	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	c.SSEvent("connected", gin.H{"status": "connected"})
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case <-heartbeat.C:
			c.SSEvent("heartbeat", gin.H{})
			return true
		case v, ok := <-views:
			if !ok {
				return false
			}
			c.SSEvent("view", v)
			return v.SignedIn
		}
	})
}

type SetPageRequest struct {
	Page string `json:"page" binding:"required"`
}

// SetPage handles PUT /session/page
// @Summary Switch page
// @Description Entering EXPLORE clears the explore notification
// @Tags session
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body SetPageRequest true "Page: AI_CHAT, EXPLORE, CHAT or SETTINGS"
// @Success 200 {object} session.View
// @Failure 400 {object} ErrorResponse
// @Router /session/page [put]
func (h *SessionHandler) SetPage(c *gin.Context) {
	s, ok := currentSession(c)
	if !ok {
		return
	}
	var req SetPageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	page, err := session.ParsePage(req.Page)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := s.SetActivePage(c.Request.Context(), page); err != nil {
		respondError(c, err)
		return
	}
	respondView(c, s)
}

type SetPresenceRequest struct {
	Visible *bool `json:"visible" binding:"required"`
}

// SetPresence handles PUT /session/presence
// @Summary Update presence
// @Description Visible marks the user online, hidden records last seen now
// @Tags session
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body SetPresenceRequest true "Visibility"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Router /session/presence [put]
func (h *SessionHandler) SetPresence(c *gin.Context) {
	s, ok := currentSession(c)
	if !ok {
		return
	}
	var req SetPresenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	if err := s.SetPresence(c.Request.Context(), *req.Visible); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "presence updated"})
}

type UpdateProfileRequest struct {
	Name   string `json:"name" binding:"required,max=100"`
	Avatar string `json:"avatar" binding:"omitempty,url"`
}

// UpdateProfile handles PUT /profile
// @Summary Update my profile
// @Tags profile
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body UpdateProfileRequest true "Name and avatar"
// @Success 200 {object} session.View
// @Failure 400 {object} ErrorResponse
// @Router /profile [put]
func (h *SessionHandler) UpdateProfile(c *gin.Context) {
	s, ok := currentSession(c)
	if !ok {
		return
	}
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	if err := s.UpdateProfile(c.Request.Context(), req.Name, req.Avatar); err != nil {
		respondError(c, err)
		return
	}
	respondView(c, s)
}

type MergeTagsRequest struct {
	Positive []string `json:"positive" binding:"dive,required"`
	Negative []string `json:"negative" binding:"dive,required"`
}

// MergeTags handles POST /profile/tags
// @Summary Add profile tags
// @Description Union the given tags into the profile; only after onboarding
// @Tags profile
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body MergeTagsRequest true "Tags"
// @Success 200 {object} session.View
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /profile/tags [post]
func (h *SessionHandler) MergeTags(c *gin.Context) {
	s, ok := currentSession(c)
	if !ok {
		return
	}
	var req MergeTagsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c)
		return
	}
	tags := domain.Tags{Positive: req.Positive, Negative: req.Negative}
	if err := s.MergeProfileTags(c.Request.Context(), tags); err != nil {
		respondError(c, err)
		return
	}
	respondView(c, s)
}
