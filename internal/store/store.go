package store

import (
	"context"

	"github.com/saviour-labs/alertfeed/internal/models"
)

// AlertStore is the durable alert collection: an unbounded global mirror plus
// a bounded per-subscriber feed that owns the eviction policy and the read
// flag. All feed mutations for one subscriber are serialized; different
// subscribers proceed in parallel.
type AlertStore interface {
	// UpsertGlobal inserts or replaces an alert in the global mirror, keyed
	// by id. The mirror is never evicted by this pipeline.
	UpsertGlobal(ctx context.Context, alert *models.Alert) error

	// UpsertFeed inserts or replaces an alert in the subscriber's feed,
	// preserving an existing read flag, then evicts the oldest entries past
	// the feed capacity. Reports whether the id was new and which ids were
	// evicted. The upsert-then-evict sequence is atomic with respect to other
	// writers to the same subscriber's feed.
	UpsertFeed(ctx context.Context, subscriberID string, alert *models.Alert) (created bool, evicted []string, err error)

	// MarkRead flips the subscriber's copy to read. A missing alert is a
	// no-op, not an error.
	MarkRead(ctx context.Context, subscriberID, alertID string) error

	// List returns the subscriber's feed, most recent first.
	List(ctx context.Context, subscriberID string) ([]models.Alert, error)

	// CountUnread returns the number of feed entries not yet marked read.
	CountUnread(ctx context.Context, subscriberID string) (int, error)
}

// FeedPublisher receives the subscriber's full feed snapshot after every
// committed feed mutation, in commit order.
type FeedPublisher interface {
	Publish(subscriberID string, snapshot []models.Alert)
}
