// Package events provides the NATS event bus connecting the execution
// service and the alert monitor to downstream consumers.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/autofinance/autofinance/internal/config"
	"github.com/autofinance/autofinance/internal/metrics"
)

// Subjects published on the bus
const (
	SubjectTradeExecuted  = "trades.executed"
	SubjectAlertTriggered = "alerts.triggered"
)

// TradeExecuted is published after every successful trade
type TradeExecuted struct {
	TradeID   string    `json:"trade_id"`
	Symbol    string    `json:"symbol"`
	Action    string    `json:"action"`
	Quantity  float64   `json:"quantity"`
	Price     float64   `json:"price"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// AlertTriggered is published when the alert monitor fires an alert
type AlertTriggered struct {
	AlertID        string    `json:"alert_id"`
	Symbol         string    `json:"symbol"`
	Condition      string    `json:"condition"`
	Threshold      float64   `json:"threshold"`
	TriggeredPrice float64   `json:"triggered_price"`
	UserID         string    `json:"user_id"`
	Timestamp      time.Time `json:"timestamp"`
}

// Bus wraps a NATS connection. A nil *Bus is valid and drops all publishes,
// so services run unchanged when NATS is not configured.
type Bus struct {
	nc  *nats.Conn
	log zerolog.Logger
}

// Connect establishes a NATS connection with retry-friendly options
func Connect(url string) (*Bus, error) {
	nc, err := nats.Connect(url,
		nats.Name("autofinance"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}

	log := config.NewLogger("events")
	log.Info().Str("url", url).Msg("Connected to NATS")
	return &Bus{nc: nc, log: log}, nil
}

func (b *Bus) publish(subject string, v any) error {
	if b == nil || b.nc == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s event: %w", subject, err)
	}
	if err := b.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish %s: %w", subject, err)
	}
	metrics.NATSMessagesPublished.Inc()
	return nil
}

// PublishTradeExecuted publishes a trade execution event
func (b *Bus) PublishTradeExecuted(ev TradeExecuted) error {
	return b.publish(SubjectTradeExecuted, ev)
}

// PublishAlertTriggered publishes an alert trigger event
func (b *Bus) PublishAlertTriggered(ev AlertTriggered) error {
	return b.publish(SubjectAlertTriggered, ev)
}

// SubscribeTradeExecuted delivers trade execution events to fn
func (b *Bus) SubscribeTradeExecuted(fn func(TradeExecuted)) (*nats.Subscription, error) {
	if b == nil || b.nc == nil {
		return nil, fmt.Errorf("bus not connected")
	}
	return b.nc.Subscribe(SubjectTradeExecuted, func(msg *nats.Msg) {
		metrics.NATSMessagesReceived.Inc()
		var ev TradeExecuted
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			b.log.Warn().Err(err).Msg("Dropping malformed trade event")
			return
		}
		fn(ev)
	})
}

// SubscribeAlertTriggered delivers alert trigger events to fn
func (b *Bus) SubscribeAlertTriggered(fn func(AlertTriggered)) (*nats.Subscription, error) {
	if b == nil || b.nc == nil {
		return nil, fmt.Errorf("bus not connected")
	}
	return b.nc.Subscribe(SubjectAlertTriggered, func(msg *nats.Msg) {
		metrics.NATSMessagesReceived.Inc()
		var ev AlertTriggered
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			b.log.Warn().Err(err).Msg("Dropping malformed alert event")
			return
		}
		fn(ev)
	})
}

// Close drains and closes the connection
func (b *Bus) Close() {
	if b == nil || b.nc == nil {
		return
	}
	_ = b.nc.Drain()
	b.nc.Close()
}
