package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/saviour-labs/alertfeed/internal/models"
)

// SQLiteDB implements AlertStore on a local sqlite database. Mirror rows live
// in the alerts table; feed rows are denormalized copies in user_alerts so a
// subscriber's read state and later mirror updates can diverge.
type SQLiteDB struct {
	db          *sql.DB
	maxFeedSize int
	publisher   FeedPublisher

	mu    sync.Mutex
	locks map[string]*sync.Mutex // per-subscriber write serialization
}

func NewSQLiteDB(path string, maxFeedSize int) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	// An in-memory database exists per connection; keep the pool at one so
	// every query sees the same schema.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error while pinging database: %w", err)
	}

	s := &SQLiteDB{
		db:          db,
		maxFeedSize: maxFeedSize,
		locks:       make(map[string]*sync.Mutex),
	}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("error while migrating to database: %w", err)
	}

	return s, nil
}

func (s *SQLiteDB) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS alerts (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT,
			type TEXT NOT NULL,
			severity TEXT NOT NULL,
			source TEXT NOT NULL,
			areas TEXT,
			start_time INTEGER NOT NULL,
			end_time INTEGER NOT NULL,
			created_at INTEGER NOT NULL,
			safety_tips TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS user_alerts (
			user_id TEXT NOT NULL,
			id TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT,
			type TEXT NOT NULL,
			severity TEXT NOT NULL,
			source TEXT NOT NULL,
			areas TEXT,
			start_time INTEGER NOT NULL,
			end_time INTEGER NOT NULL,
			created_at INTEGER NOT NULL,
			safety_tips TEXT NOT NULL,
			is_read INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (user_id, id)
		);

		CREATE INDEX IF NOT EXISTS idx_user_alerts_created ON user_alerts(user_id, created_at);
		CREATE INDEX IF NOT EXISTS idx_user_alerts_unread ON user_alerts(user_id, is_read);
  	`

	_, err := s.db.Exec(schema)
	return err
}

// SetPublisher attaches the change-feed sink. Must be called before writers
// start; snapshots are published after every committed feed mutation.
func (s *SQLiteDB) SetPublisher(p FeedPublisher) {
	s.publisher = p
}

func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

// subscriberLock returns the mutex serializing one subscriber's feed writes.
func (s *SQLiteDB) subscriberLock(subscriberID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[subscriberID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[subscriberID] = l
	}
	return l
}

func (s *SQLiteDB) UpsertGlobal(ctx context.Context, alert *models.Alert) error {
	tips, err := json.Marshal(alert.SafetyTips)
	if err != nil {
		return fmt.Errorf("error encoding safety tips: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO alerts (id, title, description, type, severity, source, areas, start_time, end_time, created_at, safety_tips)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			type = excluded.type,
			severity = excluded.severity,
			source = excluded.source,
			areas = excluded.areas,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			created_at = excluded.created_at,
			safety_tips = excluded.safety_tips`,
		alert.ID, alert.Title, alert.Description, string(alert.Type), string(alert.Severity),
		alert.Source, alert.Areas, alert.StartTime.Unix(), alert.EndTime.Unix(),
		alert.CreatedAt.UnixNano(), string(tips))
	if err != nil {
		return fmt.Errorf("error upserting global alert: %w", err)
	}
	return nil
}

func (s *SQLiteDB) UpsertFeed(ctx context.Context, subscriberID string, alert *models.Alert) (bool, []string, error) {
	if subscriberID == "" {
		return false, nil, fmt.Errorf("subscriber id is required")
	}

	lock := s.subscriberLock(subscriberID)
	lock.Lock()
	defer lock.Unlock()

	created, evicted, err := s.upsertFeedLocked(ctx, subscriberID, alert)
	if err != nil {
		return false, nil, err
	}

	s.publishLocked(ctx, subscriberID)
	return created, evicted, nil
}

func (s *SQLiteDB) upsertFeedLocked(ctx context.Context, subscriberID string, alert *models.Alert) (bool, []string, error) {
	tips, err := json.Marshal(alert.SafetyTips)
	if err != nil {
		return false, nil, fmt.Errorf("error encoding safety tips: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, nil, fmt.Errorf("error beginning transaction: %w", err)
	}
	defer tx.Rollback()

	// Re-ingestion must not reset the read flag, so carry it over when the
	// row already exists.
	var isRead bool
	created := false
	err = tx.QueryRowContext(ctx,
		`SELECT is_read FROM user_alerts WHERE user_id = ? AND id = ?`,
		subscriberID, alert.ID).Scan(&isRead)
	switch {
	case err == sql.ErrNoRows:
		created = true
		isRead = false
	case err != nil:
		return false, nil, fmt.Errorf("error reading existing feed row: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO user_alerts (user_id, id, title, description, type, severity, source, areas, start_time, end_time, created_at, safety_tips, is_read)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			type = excluded.type,
			severity = excluded.severity,
			source = excluded.source,
			areas = excluded.areas,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			created_at = excluded.created_at,
			safety_tips = excluded.safety_tips,
			is_read = excluded.is_read`,
		subscriberID, alert.ID, alert.Title, alert.Description, string(alert.Type), string(alert.Severity),
		alert.Source, alert.Areas, alert.StartTime.Unix(), alert.EndTime.Unix(),
		alert.CreatedAt.UnixNano(), string(tips), isRead)
	if err != nil {
		return false, nil, fmt.Errorf("error upserting feed alert: %w", err)
	}

	// Bound check against the post-write state: everything past the capacity,
	// oldest first, goes.
	rows, err := tx.QueryContext(ctx, `
		SELECT id FROM user_alerts
		WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT -1 OFFSET ?`,
		subscriberID, s.maxFeedSize)
	if err != nil {
		return false, nil, fmt.Errorf("error selecting eviction candidates: %w", err)
	}
	var evicted []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return false, nil, fmt.Errorf("error scanning eviction candidate: %w", err)
		}
		evicted = append(evicted, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return false, nil, fmt.Errorf("error iterating eviction candidates: %w", err)
	}
	rows.Close()

	for _, id := range evicted {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM user_alerts WHERE user_id = ? AND id = ?`,
			subscriberID, id); err != nil {
			return false, nil, fmt.Errorf("error evicting feed alert %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, nil, fmt.Errorf("error committing feed upsert: %w", err)
	}

	return created, evicted, nil
}

func (s *SQLiteDB) MarkRead(ctx context.Context, subscriberID, alertID string) error {
	lock := s.subscriberLock(subscriberID)
	lock.Lock()
	defer lock.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE user_alerts SET is_read = 1 WHERE user_id = ? AND id = ?`,
		subscriberID, alertID)
	if err != nil {
		return fmt.Errorf("error marking alert read: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n > 0 {
		s.publishLocked(ctx, subscriberID)
	}
	return nil
}

func (s *SQLiteDB) List(ctx context.Context, subscriberID string) ([]models.Alert, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, description, type, severity, source, areas, start_time, end_time, created_at, safety_tips, is_read
		FROM user_alerts
		WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC`,
		subscriberID)
	if err != nil {
		return nil, fmt.Errorf("error listing feed: %w", err)
	}
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		var (
			a          models.Alert
			alertType  string
			severity   string
			start, end int64
			createdNs  int64
			tips       string
		)
		if err := rows.Scan(&a.ID, &a.Title, &a.Description, &alertType, &severity,
			&a.Source, &a.Areas, &start, &end, &createdNs, &tips, &a.IsRead); err != nil {
			return nil, fmt.Errorf("error scanning feed row: %w", err)
		}
		a.Type = models.AlertType(alertType)
		a.Severity = models.Severity(severity)
		a.StartTime = time.Unix(start, 0).UTC()
		a.EndTime = time.Unix(end, 0).UTC()
		a.CreatedAt = time.Unix(0, createdNs).UTC()
		a.UserID = subscriberID
		if err := json.Unmarshal([]byte(tips), &a.SafetyTips); err != nil {
			return nil, fmt.Errorf("error decoding safety tips: %w", err)
		}
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feed rows: %w", err)
	}
	return alerts, nil
}

func (s *SQLiteDB) CountUnread(ctx context.Context, subscriberID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM user_alerts WHERE user_id = ? AND is_read = 0`,
		subscriberID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("error counting unread alerts: %w", err)
	}
	return count, nil
}

// GetGlobal fetches one alert from the mirror, nil if absent.
func (s *SQLiteDB) GetGlobal(ctx context.Context, id string) (*models.Alert, error) {
	var (
		a          models.Alert
		alertType  string
		severity   string
		start, end int64
		createdNs  int64
		tips       string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, description, type, severity, source, areas, start_time, end_time, created_at, safety_tips
		FROM alerts WHERE id = ?`, id).
		Scan(&a.ID, &a.Title, &a.Description, &alertType, &severity,
			&a.Source, &a.Areas, &start, &end, &createdNs, &tips)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error getting global alert: %w", err)
	}
	a.Type = models.AlertType(alertType)
	a.Severity = models.Severity(severity)
	a.StartTime = time.Unix(start, 0).UTC()
	a.EndTime = time.Unix(end, 0).UTC()
	a.CreatedAt = time.Unix(0, createdNs).UTC()
	if err := json.Unmarshal([]byte(tips), &a.SafetyTips); err != nil {
		return nil, fmt.Errorf("error decoding safety tips: %w", err)
	}
	return &a, nil
}

// publishLocked snapshots the feed and hands it to the change feed while the
// subscriber lock is still held, so delivery order matches commit order.
func (s *SQLiteDB) publishLocked(ctx context.Context, subscriberID string) {
	if s.publisher == nil {
		return
	}
	snapshot, err := s.List(ctx, subscriberID)
	if err != nil {
		slog.Error("error snapshotting feed for publish", "subscriber", subscriberID, "error", err)
		return
	}
	s.publisher.Publish(subscriberID, snapshot)
}
