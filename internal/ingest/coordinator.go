// Package ingest orchestrates one batch of raw alerts through identity,
// annotation, upsert, notification, and eviction.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/saviour-labs/alertfeed/internal/identity"
	"github.com/saviour-labs/alertfeed/internal/models"
	"github.com/saviour-labs/alertfeed/internal/notify"
	"github.com/saviour-labs/alertfeed/internal/observability"
	"github.com/saviour-labs/alertfeed/internal/safety"
	"github.com/saviour-labs/alertfeed/internal/store"
)

// Result reports what one ingestion batch did to a subscriber's feed.
type Result struct {
	Created []string `json:"created"`
	Updated []string `json:"updated"`
	Evicted []string `json:"evicted"`
}

type Coordinator struct {
	store   store.AlertStore
	gateway notify.Gateway
	metrics *observability.Metrics
	clock   clockwork.Clock
	logger  *slog.Logger
}

func NewCoordinator(st store.AlertStore, gateway notify.Gateway, metrics *observability.Metrics, clock clockwork.Clock, logger *slog.Logger) *Coordinator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		store:   st,
		gateway: gateway,
		metrics: metrics,
		clock:   clock,
		logger:  logger,
	}
}

// Ingest reconciles a raw alert batch into the subscriber's feed. A store
// failure on one alert skips that alert and continues; a notification
// failure is logged and the alert still counts as ingested. An empty
// subscriber id makes the whole call a no-op.
func (c *Coordinator) Ingest(ctx context.Context, subscriberID string, raws []models.RawAlert) (Result, error) {
	var result Result
	if subscriberID == "" {
		c.logger.Debug("no subscriber signed in, skipping ingestion")
		return result, nil
	}

	for i, raw := range raws {
		c.metrics.AlertsIngested.Inc()

		alert := c.buildAlert(raw, i)

		if err := c.store.UpsertGlobal(ctx, alert); err != nil {
			c.logger.Error("error upserting global mirror", "id", alert.ID, "error", err)
			c.metrics.AlertsSkipped.Inc()
			continue
		}

		created, evicted, err := c.store.UpsertFeed(ctx, subscriberID, alert)
		if err != nil {
			c.logger.Error("error upserting subscriber feed", "id", alert.ID, "subscriber", subscriberID, "error", err)
			c.metrics.AlertsSkipped.Inc()
			continue
		}

		if created {
			result.Created = append(result.Created, alert.ID)
			c.metrics.AlertsCreated.Inc()
			c.deliver(ctx, alert)
		} else {
			result.Updated = append(result.Updated, alert.ID)
			c.metrics.AlertsUpdated.Inc()
		}
		result.Evicted = append(result.Evicted, evicted...)
		c.metrics.AlertsEvicted.Add(float64(len(evicted)))
	}

	c.logger.Info("ingestion batch done", "subscriber", subscriberID,
		"created", len(result.Created), "updated", len(result.Updated), "evicted", len(result.Evicted))
	return result, nil
}

// AddSafetyTip injects an internally produced safety-tip alert into the
// subscriber's feed only (the mirror holds provider alerts, not tips).
func (c *Coordinator) AddSafetyTip(ctx context.Context, subscriberID, title, description string, tips []string) (*models.Alert, error) {
	if subscriberID == "" {
		c.logger.Debug("no subscriber signed in, skipping safety tip")
		return nil, nil
	}

	now := c.clock.Now()
	alert := &models.Alert{
		ID:          identity.SafetyTipID(now),
		Title:       title,
		Description: description,
		Type:        models.AlertTypeSafety,
		Severity:    models.SeverityInformation,
		Source:      "Saviour App",
		Areas:       "General",
		StartTime:   now,
		EndTime:     now.Add(7 * 24 * time.Hour),
		CreatedAt:   now,
		SafetyTips:  tips,
	}

	created, _, err := c.store.UpsertFeed(ctx, subscriberID, alert)
	if err != nil {
		return nil, fmt.Errorf("error adding safety tip: %w", err)
	}
	if created {
		c.metrics.AlertsCreated.Inc()
		c.deliver(ctx, alert)
	}
	return alert, nil
}

func (c *Coordinator) buildAlert(raw models.RawAlert, batchIndex int) *models.Alert {
	areas := "Your area"
	if len(raw.Tags) > 0 {
		areas = strings.Join(raw.Tags, ", ")
	}

	return &models.Alert{
		ID:          identity.Identify(raw, batchIndex),
		Title:       raw.Event,
		Description: raw.Description,
		Type:        models.AlertTypeWeather,
		Severity:    safety.ClassifySeverity(raw.Event),
		Source:      "OpenWeather",
		Areas:       areas,
		StartTime:   time.Unix(raw.Start, 0).UTC(),
		EndTime:     time.Unix(raw.End, 0).UTC(),
		CreatedAt:   c.clock.Now(),
		SafetyTips:  safety.TipsFor(raw.Event),
	}
}

func (c *Coordinator) deliver(ctx context.Context, alert *models.Alert) {
	err := c.gateway.Deliver(ctx, alert.Title, alert.Description, map[string]string{"alertId": alert.ID})
	if err != nil {
		// Non-fatal: the store write stands, the next trigger self-heals.
		c.logger.Warn("notification delivery failed", "id", alert.ID, "error", err)
		c.metrics.NotificationsFailed.Inc()
		return
	}
	c.metrics.NotificationsSent.Inc()
}
