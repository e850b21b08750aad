package api

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"parking-scheduler-backend/internal/model"
	"parking-scheduler-backend/internal/scheduler"
)

type subscriptionBody struct {
	Endpoint        string `json:"endpoint" binding:"required"`
	P256DH          string `json:"p256dh" binding:"required"`
	Auth            string `json:"auth" binding:"required"`
	SubscribedTiers []int  `json:"subscribed_tiers"`
}

type subscriptionResponse struct {
	SubscribedTiers []int `json:"subscribed_tiers"`
}

func (h *Handler) unknownTier(ids []int) error {
	catalog := h.sched.Catalog()
	for _, id := range ids {
		if _, ok := catalog.Rule(scheduler.Tier(id)); !ok {
			return fmt.Errorf("unknown tier %d", id)
		}
	}
	return nil
}

// PutSubscription stores a browser push subscription and the tiers it wants
// to hear about, replacing any previous choice for the same endpoint.
func (h *Handler) PutSubscription(c *gin.Context) {
	var body subscriptionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if err := h.unknownTier(body.SubscribedTiers); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sub := model.PushSubscription{Endpoint: body.Endpoint, P256DH: body.P256DH, Auth: body.Auth}
	var tiers []model.Tier
	err := h.store.DB().Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "endpoint"}},
			DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth"}),
		}).Create(&sub).Error; err != nil {
			return err
		}
		if len(body.SubscribedTiers) > 0 {
			if err := tx.Where("id IN ?", body.SubscribedTiers).Order("id").Find(&tiers).Error; err != nil {
				return err
			}
		}
		return tx.Model(&sub).Association("Tiers").Replace(&tiers)
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := subscriptionResponse{SubscribedTiers: make([]int, 0, len(tiers))}
	for _, t := range tiers {
		resp.SubscribedTiers = append(resp.SubscribedTiers, t.ID)
	}
	c.JSON(http.StatusCreated, resp)
}

// DeleteSubscription forgets an endpoint and its tier choices.
func (h *Handler) DeleteSubscription(c *gin.Context) {
	var body struct {
		Endpoint string `json:"endpoint" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	var deleted int64
	sub := model.PushSubscription{Endpoint: body.Endpoint}
	err := h.store.DB().Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&sub).Association("Tiers").Clear(); err != nil {
			return err
		}
		res := tx.Delete(&sub)
		deleted = res.RowsAffected
		return res.Error
	})
	switch {
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	case deleted == 0:
		c.JSON(http.StatusNotFound, gin.H{"error": "subscription not found"})
	default:
		c.Status(http.StatusNoContent)
	}
}

// rawQueryParam reads a parameter without URL-decoding it; push endpoints are
// stored exactly as the browser reported them.
func rawQueryParam(rawQuery, key string) (string, bool) {
	for _, kv := range strings.Split(rawQuery, "&") {
		if strings.HasPrefix(kv, key+"=") {
			return kv[len(key)+1:], true
		}
	}
	return "", false
}

// GetSubscription lists the tiers an endpoint is subscribed to.
func (h *Handler) GetSubscription(c *gin.Context) {
	endpoint, ok := rawQueryParam(c.Request.URL.RawQuery, "endpoint")
	if !ok || endpoint == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "endpoint is required"})
		return
	}

	var sub model.PushSubscription
	if err := h.store.DB().Preload("Tiers").First(&sub, "endpoint = ?", endpoint).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "subscription not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	resp := subscriptionResponse{SubscribedTiers: make([]int, 0, len(sub.Tiers))}
	for _, t := range sub.Tiers {
		resp.SubscribedTiers = append(resp.SubscribedTiers, t.ID)
	}
	sort.Ints(resp.SubscribedTiers)
	c.JSON(http.StatusOK, resp)
}

// GetVAPIDPublicKey hands browsers the key they subscribe with.
func (h *Handler) GetVAPIDPublicKey(c *gin.Context) {
	if h.webpush == nil || h.webpush.VAPIDPublicKey == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "push notifications are not configured"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"public_key": h.webpush.VAPIDPublicKey})
}
