// Package alerts keeps user price alerts and evaluates their trigger
// conditions against observed prices.
package alerts

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/autofinance/autofinance/internal/config"
	"github.com/autofinance/autofinance/internal/market"
)

// Alert conditions
const (
	ConditionAbove        = "above"
	ConditionBelow        = "below"
	ConditionCrossesAbove = "crosses_above"
	ConditionCrossesBelow = "crosses_below"
)

// ValidCondition reports whether c is a known trigger condition
func ValidCondition(c string) bool {
	switch c {
	case ConditionAbove, ConditionBelow, ConditionCrossesAbove, ConditionCrossesBelow:
		return true
	}
	return false
}

// Alert is a user's standing price alert. LastPrice is per-alert state: an
// alert created after its symbol was already observed still starts with no
// prior price, so crossing conditions cannot fire on its first observation.
type Alert struct {
	AlertID        string     `json:"alert_id"`
	UserID         string     `json:"user_id"`
	Symbol         string     `json:"symbol"`
	Condition      string     `json:"condition"`
	Threshold      float64    `json:"threshold"`
	Message        string     `json:"message"`
	Channel        string     `json:"channel"`
	Active         bool       `json:"active"`
	CreatedAt      time.Time  `json:"created_at"`
	TriggeredAt    *time.Time `json:"triggered_at,omitempty"`
	TriggeredPrice *float64   `json:"triggered_price,omitempty"`
	TriggerCount   int        `json:"trigger_count"`
	LastPrice      *float64   `json:"last_price,omitempty"`
	LastChecked    *time.Time `json:"last_checked,omitempty"`
}

// Registry stores alerts in memory, persisted to a JSON file
type Registry struct {
	mu     sync.Mutex
	alerts map[string]*Alert
	path   string // empty disables persistence
	now    func() time.Time

	log zerolog.Logger
}

// NewRegistry loads the alert store at path. A missing or corrupt file
// starts an empty registry.
func NewRegistry(path string) *Registry {
	r := &Registry{
		alerts: map[string]*Alert{},
		path:   path,
		now:    time.Now,
		log:    config.NewMCPLogger("alert-engine"),
	}
	r.load()
	return r
}

func (r *Registry) load() {
	if r.path == "" {
		return
	}
	data, err := os.ReadFile(r.path)
	if err != nil {
		if !os.IsNotExist(err) {
			r.log.Warn().Err(err).Str("path", r.path).Msg("Alert store unreadable, starting empty")
		}
		return
	}
	var stored []*Alert
	if err := json.Unmarshal(data, &stored); err != nil {
		r.log.Warn().Err(err).Str("path", r.path).Msg("Alert store corrupt, starting empty")
		return
	}
	for _, a := range stored {
		r.alerts[a.AlertID] = a
	}
	r.log.Info().Int("alerts", len(stored)).Msg("Alert store loaded")
}

// saveLocked writes the store. Caller holds the mutex.
func (r *Registry) saveLocked() {
	if r.path == "" {
		return
	}
	stored := make([]*Alert, 0, len(r.alerts))
	for _, a := range r.alerts {
		stored = append(stored, a)
	}
	sort.Slice(stored, func(i, j int) bool { return stored[i].AlertID < stored[j].AlertID })

	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		r.log.Error().Err(err).Msg("Alert store marshal failed")
		return
	}
	if dir := filepath.Dir(r.path); dir != "." {
		_ = os.MkdirAll(dir, 0o755)
	}
	if err := os.WriteFile(r.path, data, 0o644); err != nil {
		r.log.Error().Err(err).Str("path", r.path).Msg("Alert store write failed")
	}
}

// Create registers a new alert and returns it
func (r *Registry) Create(userID, symbol, condition string, threshold float64, message, channel string) (*Alert, error) {
	if userID == "" {
		return nil, fmt.Errorf("user_id is required")
	}
	if !ValidCondition(condition) {
		return nil, fmt.Errorf("unknown condition %q", condition)
	}
	if threshold <= 0 {
		return nil, fmt.Errorf("threshold must be positive")
	}

	symbol = market.NormalizeSymbol(symbol)
	if message == "" {
		message = fmt.Sprintf("%s has %s %s", symbol, condition, formatThreshold(threshold))
	}
	if channel == "" {
		channel = "slack"
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	a := &Alert{
		AlertID:   fmt.Sprintf("%s_%s_%s", userID, symbol, uuid.NewString()[:8]),
		UserID:    userID,
		Symbol:    symbol,
		Condition: condition,
		Threshold: threshold,
		Message:   message,
		Channel:   channel,
		Active:    true,
		CreatedAt: now.UTC(),
	}
	r.alerts[a.AlertID] = a
	r.saveLocked()

	r.log.Info().Str("alert_id", a.AlertID).Str("symbol", symbol).
		Str("condition", condition).Float64("threshold", threshold).Msg("Alert created")
	return a, nil
}

func formatThreshold(v float64) string {
	s := fmt.Sprintf("%g", v)
	return s
}

// conditionMet evaluates a trigger. Crossing conditions need a previous
// price; without one they never fire.
func conditionMet(condition string, threshold, current float64, previous *float64) bool {
	switch condition {
	case ConditionAbove:
		return current > threshold
	case ConditionBelow:
		return current < threshold
	case ConditionCrossesAbove:
		return previous != nil && *previous <= threshold && current > threshold
	case ConditionCrossesBelow:
		return previous != nil && *previous >= threshold && current < threshold
	}
	return false
}

// Check evaluates one alert against a price observation. Crossing conditions
// compare against the alert's own stored last price; the observation is then
// recorded as the new last price. A firing alert deactivates until reset.
func (r *Registry) Check(alertID string, currentPrice float64) (map[string]any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.alerts[alertID]
	if !ok {
		return nil, fmt.Errorf("alert %s not found", alertID)
	}

	result := map[string]any{
		"alert_id":      a.AlertID,
		"symbol":        a.Symbol,
		"condition":     a.Condition,
		"threshold":     a.Threshold,
		"current_price": currentPrice,
		"active":        a.Active,
		"triggered":     false,
	}
	if !a.Active {
		return result, nil
	}

	if conditionMet(a.Condition, a.Threshold, currentPrice, a.LastPrice) {
		now := r.now().UTC()
		price := currentPrice
		a.Active = false
		a.TriggeredAt = &now
		a.TriggeredPrice = &price
		a.TriggerCount++

		result["triggered"] = true
		result["active"] = false
		result["triggered_price"] = currentPrice
		result["message"] = a.Message
		result["channel"] = a.Channel

		r.log.Info().Str("alert_id", a.AlertID).Float64("price", currentPrice).Msg("Alert triggered")
	}

	observed := currentPrice
	checkedAt := r.now().UTC()
	a.LastPrice = &observed
	a.LastChecked = &checkedAt
	r.saveLocked()

	return result, nil
}

// ListUser returns a user's alerts, newest first
func (r *Registry) ListUser(userID string, activeOnly bool) []Alert {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := []Alert{}
	for _, a := range r.alerts {
		if a.UserID != userID {
			continue
		}
		if activeOnly && !a.Active {
			continue
		}
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// AllActive returns every active alert across users
func (r *Registry) AllActive() []Alert {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := []Alert{}
	for _, a := range r.alerts {
		if a.Active {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AlertID < out[j].AlertID })
	return out
}

// Delete removes an alert
func (r *Registry) Delete(alertID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.alerts[alertID]; !ok {
		return false
	}
	delete(r.alerts, alertID)
	r.saveLocked()
	return true
}

// Reset reactivates a triggered alert
func (r *Registry) Reset(alertID string) (*Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.alerts[alertID]
	if !ok {
		return nil, fmt.Errorf("alert %s not found", alertID)
	}
	a.Active = true
	a.TriggeredAt = nil
	a.TriggeredPrice = nil
	r.saveLocked()
	return a, nil
}
