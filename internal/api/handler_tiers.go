package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"parking-scheduler-backend/internal/parse"
	"parking-scheduler-backend/internal/scheduler"
	"parking-scheduler-backend/internal/store"
)

// TierResponse represents one tier in GET /api/tiers.
type TierResponse struct {
	Tier       int     `json:"tier"`
	Name       string  `json:"name"`
	Queueing   bool    `json:"queueing"`
	MaxMinutes float64 `json:"maxMinutes,omitempty"`
	Occupied   int     `json:"occupied"`
	Free       int     `json:"free"`
	Waiting    int     `json:"waiting"`
}

type garageResponse struct {
	State  string         `json:"state"`
	Cycle  int            `json:"cycle"`
	Filled int            `json:"filled"`
	Empty  int            `json:"empty"`
	Tiers  []TierResponse `json:"tiers"`
}

// GetTiers handles the GET /api/tiers request.
func (h *Handler) GetTiers(c *gin.Context) {
	snap := h.sched.Snapshot()
	catalog := h.sched.Catalog()

	resp := garageResponse{
		State:  snap.State.String(),
		Cycle:  snap.Cycle,
		Filled: snap.Filled,
		Empty:  snap.Empty,
		Tiers:  make([]TierResponse, 0, len(snap.Tiers)),
	}
	for _, ts := range snap.Tiers {
		tr := TierResponse{
			Tier:     int(ts.Tier),
			Name:     ts.Name,
			Queueing: ts.Queueing,
			Occupied: ts.Occupied,
			Free:     ts.Free,
			Waiting:  ts.Waiting,
		}
		if rule, ok := catalog.Rule(ts.Tier); ok && rule.MaxDuration > 0 {
			tr.MaxMinutes = float64(rule.MaxDuration) / float64(h.unit)
		}
		resp.Tiers = append(resp.Tiers, tr)
	}
	c.JSON(http.StatusOK, resp)
}

// GetTierSlots handles the GET /api/tiers/{tier}/slots request.
func (h *Handler) GetTierSlots(c *gin.Context) {
	tierID, err := parse.ParseTier(c.Param("tier"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid tier"})
		return
	}
	tier := scheduler.Tier(tierID)
	if _, ok := h.sched.Catalog().Rule(tier); !ok {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Unknown tier"})
		return
	}

	atParam := c.Query("at")
	if atParam == "" {
		h.getCurrentSlots(c, tier)
	} else {
		h.getHistoricalSlots(c, tier, atParam)
	}
}

func (h *Handler) getCurrentSlots(c *gin.Context, tier scheduler.Tier) {
	snap := h.sched.Snapshot()
	bound := make(map[string]scheduler.Binding)
	for _, b := range snap.Bindings {
		if b.Tier == tier {
			bound[b.SlotID] = b
		}
	}

	slots := h.sched.Catalog().SlotsInTier(tier)
	response := make([]store.SlotState, 0, len(slots))
	for _, slot := range slots {
		state := store.SlotState{SlotID: slot.ID, IsAvailable: true}
		if n, err := parse.ParseSlotNumber(slot.ID); err == nil {
			state.Floor, state.Seq = n.Floor, n.Seq
		}
		if b, ok := bound[slot.ID]; ok {
			start, end := b.StartedAt, b.ScheduledEnd
			state.IsAvailable = false
			state.OccupantID = b.OccupantID
			state.StartedAt = &start
			state.ScheduledEnd = &end
			state.Extensions = b.Extensions
		}
		response = append(response, state)
	}
	c.JSON(http.StatusOK, response)
}

func (h *Handler) getHistoricalSlots(c *gin.Context, tier scheduler.Tier, atParam string) {
	at, err := time.Parse(time.RFC3339, atParam)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid 'at' timestamp format. Use RFC3339."})
		return
	}
	if h.store == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "history is not recorded"})
		return
	}

	response, err := h.store.SlotsAt(c.Request.Context(), int(tier), at)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Database error during historical lookup"})
		return
	}
	c.JSON(http.StatusOK, response)
}
