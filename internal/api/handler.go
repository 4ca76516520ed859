package api

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/saviour-labs/alertfeed/internal/changefeed"
	"github.com/saviour-labs/alertfeed/internal/location"
	"github.com/saviour-labs/alertfeed/internal/models"
	"github.com/saviour-labs/alertfeed/internal/store"
)

// Refresher is the foreground trigger: called when the app reports focus.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// TipProducer injects internally generated safety-tip alerts.
type TipProducer interface {
	AddSafetyTip(ctx context.Context, subscriberID, title, description string, tips []string) (*models.Alert, error)
}

type Handler struct {
	store     store.AlertStore
	feed      *changefeed.Feed
	refresher Refresher
	tips      TipProducer
	loc       *location.Manual
}

func NewHandler(st store.AlertStore, feed *changefeed.Feed, refresher Refresher, tips TipProducer, loc *location.Manual) *Handler {
	return &Handler{
		store:     st,
		feed:      feed,
		refresher: refresher,
		tips:      tips,
		loc:       loc,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.health)
	r.GET("/api/users/:userID/alerts", h.listAlerts)
	r.GET("/api/users/:userID/alerts/unread_count", h.unreadCount)
	r.GET("/api/users/:userID/alerts/stream", h.streamAlerts)
	r.POST("/api/users/:userID/alerts/:alertID/read", h.markRead)
	r.POST("/api/users/:userID/safety-tips", h.addSafetyTip)
	r.POST("/api/users/:userID/refresh", h.refresh)
	r.POST("/api/location", h.reportLocation)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) listAlerts(c *gin.Context) {
	alerts, err := h.store.List(c.Request.Context(), c.Param("userID"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to fetch alerts",
		})
		return
	}
	if alerts == nil {
		alerts = []models.Alert{}
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts})
}

func (h *Handler) unreadCount(c *gin.Context) {
	count, err := h.store.CountUnread(c.Request.Context(), c.Param("userID"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to count unread alerts",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": count})
}

func (h *Handler) markRead(c *gin.Context) {
	err := h.store.MarkRead(c.Request.Context(), c.Param("userID"), c.Param("alertID"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to mark alert read",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// streamAlerts pushes full feed snapshots over SSE whenever the subscriber's
// feed commits a mutation.
func (h *Handler) streamAlerts(c *gin.Context) {
	subID, ch := h.feed.Subscribe(c.Param("userID"))
	defer h.feed.Unsubscribe(subID)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	c.Stream(func(_ io.Writer) bool {
		select {
		case snapshot, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent("alerts", snapshot)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

type safetyTipRequest struct {
	Title       string   `json:"title" binding:"required"`
	Description string   `json:"description"`
	Tips        []string `json:"tips"`
}

func (h *Handler) addSafetyTip(c *gin.Context) {
	var req safetyTipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	alert, err := h.tips.AddSafetyTip(c.Request.Context(), c.Param("userID"), req.Title, req.Description, req.Tips)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to add safety tip",
		})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"alert": alert})
}

func (h *Handler) refresh(c *gin.Context) {
	if err := h.refresher.Refresh(c.Request.Context()); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"error": "refresh failed",
		})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "refreshing"})
}

type locationRequest struct {
	Latitude  float64 `json:"latitude" binding:"min=-90,max=90"`
	Longitude float64 `json:"longitude" binding:"min=-180,max=180"`
}

func (h *Handler) reportLocation(c *gin.Context) {
	var req locationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.loc.Update(models.Coordinates{Latitude: req.Latitude, Longitude: req.Longitude})
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
