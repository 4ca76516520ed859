// Package safety classifies alert severity and selects safety tips from the
// alert title. Both classifiers are ordered keyword rule tables over the
// lowercased title; they hold no state and are safe for concurrent use.
package safety

import (
	"strings"

	"github.com/saviour-labs/alertfeed/internal/models"
)

type severityRule struct {
	keywords []string
	severity models.Severity
}

// Checked in order; first matching rule wins.
var severityRules = []severityRule{
	{[]string{"extreme", "severe", "hurricane", "tornado"}, models.SeverityExtreme},
	{[]string{"warning", "storm", "flood"}, models.SeverityWarning},
	{[]string{"watch", "advisory"}, models.SeverityWatch},
}

type tipRule struct {
	keywords []string
	tips     []string
}

var tipRules = []tipRule{
	{[]string{"flood"}, []string{
		"Move to higher ground immediately",
		"Do not walk, swim, or drive through flood waters",
		"Stay off bridges over fast-moving water",
		"Evacuate if told to do so",
	}},
	{[]string{"tornado"}, []string{
		"Go to a basement or an interior room on the lowest floor",
		"Stay away from windows, doors, and outside walls",
		"Do not try to outrun a tornado in a vehicle",
		"Cover your head and neck with your arms",
	}},
	{[]string{"hurricane"}, []string{
		"Evacuate if advised by authorities",
		"Secure your home and outdoor items",
		"Have emergency supplies ready",
		"Stay indoors during the hurricane",
	}},
	{[]string{"thunderstorm"}, []string{
		"When thunder roars, go indoors",
		"Stay away from windows and electrical equipment",
		"Avoid using plumbing fixtures",
		"Do not shelter under trees",
	}},
	{[]string{"heat"}, []string{
		"Stay in air-conditioned areas when possible",
		"Drink plenty of fluids",
		"Wear lightweight, light-colored clothing",
		"Limit outdoor activities during the hottest part of the day",
	}},
	{[]string{"winter", "snow", "ice"}, []string{
		"Stay indoors during the storm",
		"Walk carefully on snowy or icy walkways",
		"Keep dry and change wet clothing frequently",
		"Avoid travel if possible",
	}},
}

var genericTips = []string{
	"Stay informed through local news or weather app",
	"Have an emergency kit ready",
	"Follow instructions from local authorities",
	"Check on vulnerable family members and neighbors",
}

// ClassifySeverity maps an alert title to a severity level. Falls through to
// information when no keyword matches.
func ClassifySeverity(title string) models.Severity {
	lower := strings.ToLower(title)
	for _, rule := range severityRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.severity
			}
		}
	}
	return models.SeverityInformation
}

// TipsFor returns the safety-tip list for the first category matching the
// title, or a generic preparedness list otherwise. The returned slice is a
// copy; callers may keep it.
func TipsFor(title string) []string {
	lower := strings.ToLower(title)
	for _, rule := range tipRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return append([]string(nil), rule.tips...)
			}
		}
	}
	return append([]string(nil), genericTips...)
}
