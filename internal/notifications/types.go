// Package notifications delivers alerts through the configured channels
// and runs the background price alert monitor.
package notifications

import (
	"context"
	"time"
)

// Severity levels for notifications
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// normalizeSeverity maps arbitrary input to a known level, defaulting to info
func normalizeSeverity(s string) Severity {
	switch Severity(s) {
	case SeverityWarning:
		return SeverityWarning
	case SeverityCritical:
		return SeverityCritical
	default:
		return SeverityInfo
	}
}

// icon returns the marker used in text renderings
func (s Severity) icon() string {
	switch s {
	case SeverityCritical:
		return "🚨"
	case SeverityWarning:
		return "⚠️"
	default:
		return "ℹ️"
	}
}

// discordColor returns the embed color for this severity
func (s Severity) discordColor() int {
	switch s {
	case SeverityCritical:
		return 15158332
	case SeverityWarning:
		return 16776960
	default:
		return 3066993
	}
}

// slackColor returns the attachment color for this severity
func (s Severity) slackColor() string {
	switch s {
	case SeverityCritical:
		return "#ff0000"
	case SeverityWarning:
		return "#ff9900"
	default:
		return "#36a64f"
	}
}

// Notification is one message to deliver
type Notification struct {
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Severity  Severity       `json:"severity"`
	Source    string         `json:"source,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Channel delivers notifications to one destination
type Channel interface {
	Name() string
	Send(ctx context.Context, n Notification) error
}
