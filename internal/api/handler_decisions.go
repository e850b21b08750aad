package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"parking-scheduler-backend/internal/decision"
	"parking-scheduler-backend/internal/parse"
	"parking-scheduler-backend/internal/scheduler"
)

type postDecisionBody struct {
	Action  string  `json:"action" binding:"required,oneof=extend release"`
	Minutes float64 `json:"minutes"`
}

// GetDecisions lists expiries waiting for an answer.
func (h *Handler) GetDecisions(c *gin.Context) {
	if h.decisions == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "decisions are not taken over the API"})
		return
	}
	c.JSON(http.StatusOK, h.decisions.Pending())
}

// PostDecision answers the pending question of one occupant.
func (h *Handler) PostDecision(c *gin.Context) {
	if h.decisions == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "decisions are not taken over the API"})
		return
	}

	var body postDecisionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	d := scheduler.Release()
	if body.Action == "extend" {
		if body.Minutes <= 0 {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "minutes must be positive to extend"})
			return
		}
		extra, err := parse.StayDuration(body.Minutes, h.unit)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		d = scheduler.Extend(extra)
	}

	if err := h.decisions.Answer(c.Param("occupant"), d); err != nil {
		if errors.Is(err, decision.ErrNoQuestion) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"occupant": c.Param("occupant"), "action": d.Action.String()})
}
