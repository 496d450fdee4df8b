package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"reqgather/internal/estimate"
	"reqgather/internal/export"
	"reqgather/internal/interview"
	"reqgather/internal/llm"
	"reqgather/internal/output"
)

type chatRequest struct {
	SessionID string  `json:"session_id" binding:"required,max=128"`
	Answer    *string `json:"answer"`
}

func (h *handler) createSession(c *gin.Context) {
	c.JSON(http.StatusCreated, gin.H{"session_id": uuid.NewString()})
}

func (h *handler) chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	resp, err := h.Interview.Turn(c.Request.Context(), interview.TurnRequest{SessionID: req.SessionID, Answer: req.Answer})
	if err != nil {
		h.fail(c, err)
		return
	}
	if resp.Status == output.StatusComplete {
		c.JSON(http.StatusOK, gin.H{"status": resp.Status, "requirements": resp.Requirements})
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handler) getSession(c *gin.Context) {
	st, err := h.Interview.State(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *handler) deleteSession(c *gin.Context) {
	if err := h.Interview.Reset(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) branding(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	resp, err := h.Branding.Turn(c.Request.Context(), req.SessionID, req.Answer)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handler) sitemap(c *gin.Context) {
	id := c.Param("id")
	var requirements map[string]any
	if err := h.Artefacts.ReadJSON(export.KindRequirements, id, &requirements); err != nil {
		h.fail(c, err)
		return
	}
	profile, _, err := h.Branding.Profile(id)
	if err != nil {
		h.fail(c, err)
		return
	}
	sm, err := h.Estimator.Sitemap(c.Request.Context(), requirements, profile)
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.Artefacts.WriteJSON(export.KindSitemap, id, sm); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sm)
}

func (h *handler) prompts(c *gin.Context) {
	id := c.Param("id")
	var sm estimate.SiteMap
	if err := h.Artefacts.ReadJSON(export.KindSitemap, id, &sm); err != nil {
		h.fail(c, err)
		return
	}
	ps, err := h.Estimator.Prompts(c.Request.Context(), sm)
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.Artefacts.WriteJSON(export.KindPrompts, id, ps); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ps)
}

// fail maps an error to a status code. Upstream and malformed-output
// failures are reported as 502 so clients can retry the same request.
func (h *handler) fail(c *gin.Context, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		h.Log.Error("❌ request failed", zap.String("path", c.FullPath()), zap.Int("status", status), zap.Error(err))
	}
	c.JSON(status, gin.H{"status": "ERROR", "error": err.Error()})
}

func statusOf(err error) int {
	switch {
	case interview.IsClientError(err), errors.Is(err, export.ErrBadSessionID):
		return http.StatusBadRequest
	case errors.Is(err, interview.ErrSessionCompleted):
		return http.StatusConflict
	case errors.Is(err, interview.ErrBrandingRequired):
		return http.StatusForbidden
	case errors.Is(err, export.ErrNotExported):
		return http.StatusNotFound
	case errors.Is(err, interview.ErrUpstream),
		errors.Is(err, interview.ErrMalformedOutput),
		errors.Is(err, llm.ErrAllAttemptsFailed),
		errors.Is(err, output.ErrMalformed):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"status": "ERROR", "error": msg})
}
