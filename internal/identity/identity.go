// Package identity derives stable alert identifiers so that re-ingesting the
// same provider payload upserts instead of duplicating.
package identity

import (
	"fmt"
	"strings"
	"time"

	"github.com/saviour-labs/alertfeed/internal/models"
)

// Identify returns a deterministic id for a raw alert: the lowercased event
// name with whitespace collapsed to dashes, the provider start time, and the
// alert's position within the ingestion batch. The same (event, start, index)
// tuple always yields the same id. Distinct provider alerts sharing that tuple
// collide; that coarse identity is accepted.
func Identify(raw models.RawAlert, batchIndex int) string {
	return fmt.Sprintf("%s-%d-%d", slug(raw.Event), raw.Start, batchIndex)
}

// SafetyTipID names an internally produced safety-tip alert.
func SafetyTipID(now time.Time) string {
	return fmt.Sprintf("safety-tip-%d", now.UnixMilli())
}

func slug(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), "-"))
}
