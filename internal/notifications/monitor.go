package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/autofinance/autofinance/internal/alerts"
	"github.com/autofinance/autofinance/internal/config"
	"github.com/autofinance/autofinance/internal/events"
	"github.com/autofinance/autofinance/internal/rpc"
)

// DefaultMonitorUser owns price alerts created without an explicit user
const DefaultMonitorUser = "archestra"

// monitorLogCap bounds the in-memory activity log
const monitorLogCap = 50

// minMonitorInterval is the floor for the polling loop
const minMonitorInterval = 10 * time.Second

// defaultMonitorInterval is used when no interval is given
const defaultMonitorInterval = 60 * time.Second

// Monitor polls live prices and fires registered price alerts
type Monitor struct {
	registry *alerts.Registry
	gateway  *Gateway
	caller   rpc.Caller
	bus      *events.Bus

	mu        sync.Mutex
	activity  []map[string]any
	interval  time.Duration
	cancel    context.CancelFunc
	checking  bool
	lastCheck time.Time

	log zerolog.Logger
}

// NewMonitor creates a price alert monitor over the registry and gateway
func NewMonitor(registry *alerts.Registry, gateway *Gateway, caller rpc.Caller, bus *events.Bus) *Monitor {
	return &Monitor{
		registry: registry,
		gateway:  gateway,
		caller:   caller,
		bus:      bus,
		interval: defaultMonitorInterval,
		log:      config.NewMCPLogger("notification"),
	}
}

// CreateAlert registers a price alert and lazily starts the monitor loop.
// userID defaults to the shared monitor user.
func (m *Monitor) CreateAlert(userID, symbol, condition string, threshold float64, message string) (*alerts.Alert, error) {
	if userID == "" {
		userID = DefaultMonitorUser
	}
	a, err := m.registry.Create(userID, symbol, condition, threshold, message, "")
	if err != nil {
		return nil, err
	}
	if _, err := m.Start(0); err == nil {
		m.log.Info().Str("alert_id", a.AlertID).Msg("Monitor started by alert creation")
	}
	return a, nil
}

// ListAlerts returns a user's alerts, defaulting to the monitor user
func (m *Monitor) ListAlerts(userID string, activeOnly bool) []alerts.Alert {
	if userID == "" {
		userID = DefaultMonitorUser
	}
	return m.registry.ListUser(userID, activeOnly)
}

// DeleteAlert removes an alert
func (m *Monitor) DeleteAlert(alertID string) bool {
	return m.registry.Delete(alertID)
}

func (m *Monitor) logActivity(entry map[string]any) {
	entry["timestamp"] = time.Now().UTC()
	m.activity = append(m.activity, entry)
	if len(m.activity) > monitorLogCap {
		m.activity = m.activity[len(m.activity)-monitorLogCap:]
	}
}

// fetchPrice asks the market service for the live price
func (m *Monitor) fetchPrice(ctx context.Context, symbol string) (float64, error) {
	raw, err := m.caller.Call(ctx, "market", "get_live_price", map[string]any{"symbol": symbol})
	if err != nil {
		return 0, err
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return 0, err
	}
	var quote struct {
		Price float64 `json:"price"`
	}
	if err := json.Unmarshal(data, &quote); err != nil || quote.Price <= 0 {
		return 0, fmt.Errorf("no usable price for %s", symbol)
	}
	return quote.Price, nil
}

// CheckNow runs one evaluation pass over every active alert. Overlapping
// passes are refused.
func (m *Monitor) CheckNow(ctx context.Context) map[string]any {
	m.mu.Lock()
	if m.checking {
		m.mu.Unlock()
		return map[string]any{"skipped": true, "reason": "check already in progress"}
	}
	m.checking = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.checking = false
		m.lastCheck = time.Now().UTC()
		m.mu.Unlock()
	}()

	active := m.registry.AllActive()

	// One quote fetch per symbol regardless of alert count; within a tick
	// every alert on a symbol sees the same observation
	prices := map[string]float64{}
	failed := map[string]bool{}
	for _, a := range active {
		if prices[a.Symbol] != 0 || failed[a.Symbol] {
			continue
		}
		price, err := m.fetchPrice(ctx, a.Symbol)
		if err != nil {
			failed[a.Symbol] = true
			m.log.Warn().Err(err).Str("symbol", a.Symbol).Msg("Price fetch failed")
			m.mu.Lock()
			m.logActivity(map[string]any{
				"event":  "error",
				"symbol": a.Symbol,
				"error":  err.Error(),
			})
			m.mu.Unlock()
			continue
		}
		prices[a.Symbol] = price
	}

	triggered := []string{}
	for _, a := range active {
		price, ok := prices[a.Symbol]
		if !ok {
			continue
		}
		res, err := m.registry.Check(a.AlertID, price)
		if err != nil {
			continue
		}
		if fired, _ := res["triggered"].(bool); fired {
			triggered = append(triggered, a.AlertID)
			m.fire(ctx, a, price)
		}
	}

	m.mu.Lock()
	m.logActivity(map[string]any{
		"event":     "check",
		"checked":   len(active),
		"symbols":   len(prices),
		"triggered": len(triggered),
	})
	m.mu.Unlock()

	return map[string]any{
		"checked":   len(active),
		"symbols":   len(prices),
		"triggered": triggered,
	}
}

// fire broadcasts the alert, publishes the bus event and records the trigger
// in the activity log
func (m *Monitor) fire(ctx context.Context, a alerts.Alert, price float64) {
	_, err := m.gateway.Broadcast(ctx, Notification{
		Title:    fmt.Sprintf("🔔 %s Alert Triggered", a.Symbol),
		Message:  a.Message,
		Severity: SeverityCritical,
		Source:   "alert-monitor",
		Metadata: map[string]any{
			"alert_id":  a.AlertID,
			"condition": a.Condition,
			"threshold": a.Threshold,
			"price":     price,
		},
	})
	if err != nil {
		m.log.Error().Err(err).Str("alert_id", a.AlertID).Msg("Alert broadcast failed")
	}

	if err := m.bus.PublishAlertTriggered(events.AlertTriggered{
		AlertID:        a.AlertID,
		Symbol:         a.Symbol,
		Condition:      a.Condition,
		Threshold:      a.Threshold,
		TriggeredPrice: price,
		UserID:         a.UserID,
		Timestamp:      time.Now().UTC(),
	}); err != nil {
		m.log.Warn().Err(err).Str("alert_id", a.AlertID).Msg("Alert event publish failed")
	}

	m.mu.Lock()
	m.logActivity(map[string]any{
		"event":     "trigger",
		"alert_id":  a.AlertID,
		"symbol":    a.Symbol,
		"condition": a.Condition,
		"threshold": a.Threshold,
		"price":     price,
	})
	m.mu.Unlock()
}

// Start launches the polling loop. Intervals below 10s are raised to 10s;
// zero means the 60s default.
func (m *Monitor) Start(interval time.Duration) (time.Duration, error) {
	if interval <= 0 {
		interval = defaultMonitorInterval
	}
	if interval < minMonitorInterval {
		interval = minMonitorInterval
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return 0, fmt.Errorf("monitor already running")
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.interval = interval

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.CheckNow(ctx)
			}
		}
	}()

	m.log.Info().Dur("interval", interval).Msg("Alert monitor started")
	return interval, nil
}

// Stop halts the polling loop
func (m *Monitor) Stop() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel == nil {
		return false
	}
	m.cancel()
	m.cancel = nil
	m.log.Info().Msg("Alert monitor stopped")
	return true
}

// Status reports the monitor state and recent activity
func (m *Monitor) Status() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()

	status := map[string]any{
		"running":       m.cancel != nil,
		"interval_sec":  int(m.interval.Seconds()),
		"active_alerts": len(m.registry.AllActive()),
		"monitor_log":   append([]map[string]any{}, m.activity...),
	}
	if !m.lastCheck.IsZero() {
		status["last_check"] = m.lastCheck
	}
	return status
}
