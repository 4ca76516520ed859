package models

import "time"

type Severity string

const (
	SeverityExtreme     Severity = "extreme"
	SeverityWarning     Severity = "warning"
	SeverityWatch       Severity = "watch"
	SeverityInformation Severity = "information"
)

type AlertType string

const (
	AlertTypeWeather  AlertType = "weather"
	AlertTypeDisaster AlertType = "disaster"
	AlertTypeSafety   AlertType = "safety"
)

// RawAlert is a hazard notice as handed over by the weather provider.
// It is ephemeral: the pipeline normalizes it into an Alert before persisting.
type RawAlert struct {
	Event       string   // e.g. "Severe Thunderstorm Warning"
	Description string
	Start       int64 // provider start time, unix seconds
	End         int64 // provider end time, unix seconds
	SenderName  string
	Tags        []string
}

// Alert is the persisted entity. The per-subscriber copy carries IsRead and
// UserID; the global mirror copy leaves UserID empty.
type Alert struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Type        AlertType `json:"type"`
	Severity    Severity  `json:"severity"`
	Source      string    `json:"source"` // "OpenWeather", "Saviour App" for internal tips
	Areas       string    `json:"areas"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
	CreatedAt   time.Time `json:"createdAt"` // assigned at ingestion time, not provider time
	SafetyTips  []string  `json:"safetyTips"`
	IsRead      bool      `json:"isRead"`
	UserID      string    `json:"userId,omitempty"`
}

type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}
