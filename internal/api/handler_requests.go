package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"parking-scheduler-backend/internal/parse"
	"parking-scheduler-backend/internal/scheduler"
)

type postRequestBody struct {
	Occupant string  `json:"occupant" binding:"required"`
	Tier     *int    `json:"tier" binding:"required"`
	Slot     string  `json:"slot"`
	Minutes  float64 `json:"minutes" binding:"required"`
}

type admissionResponse struct {
	Occupant     string     `json:"occupant"`
	Seq          uint64     `json:"seq"`
	Queued       bool       `json:"queued"`
	Slot         string     `json:"slot,omitempty"`
	Position     int        `json:"position,omitempty"`
	ScheduledEnd *time.Time `json:"scheduledEnd,omitempty"`
}

// PostRequest handles POST /api/requests. Admitted requests answer 201,
// queued ones 202, requests the caller must correct 422.
func (h *Handler) PostRequest(c *gin.Context) {
	var body postRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	stay, err := parse.StayDuration(body.Minutes, h.unit)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	req := scheduler.Request{
		OccupantID: body.Occupant,
		Tier:       scheduler.Tier(*body.Tier),
		Duration:   stay,
	}
	if body.Slot != "" {
		slotID, err := parse.NormalizeSlot(body.Slot)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		req.SlotID = slotID
	}

	adm, err := h.sched.Submit(req)
	if err != nil {
		var invalid *scheduler.InvalidAdmissionError
		if errors.As(err, &invalid) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": invalid.Reason, "tier": req.Tier.String()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := admissionResponse{
		Occupant: adm.OccupantID,
		Seq:      adm.Seq,
		Queued:   adm.Queued,
		Slot:     adm.SlotID,
		Position: adm.Position,
	}
	if adm.Queued {
		c.JSON(http.StatusAccepted, resp)
		return
	}
	end := adm.ScheduledEnd
	resp.ScheduledEnd = &end
	c.JSON(http.StatusCreated, resp)
}
