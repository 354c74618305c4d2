package events

import (
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startEmbeddedNATS(t *testing.T) string {
	t.Helper()
	opts := &natsserver.Options{Port: -1}
	ns, err := natsserver.NewServer(opts)
	require.NoError(t, err)
	go ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		t.Fatal("embedded NATS server did not start")
	}
	t.Cleanup(ns.Shutdown)
	return ns.ClientURL()
}

func TestPublishSubscribeTradeExecuted(t *testing.T) {
	url := startEmbeddedNATS(t)

	bus, err := Connect(url)
	require.NoError(t, err)
	defer bus.Close()

	received := make(chan TradeExecuted, 1)
	sub, err := bus.SubscribeTradeExecuted(func(ev TradeExecuted) {
		received <- ev
	})
	require.NoError(t, err)
	defer func() { _ = sub.Unsubscribe() }()

	ev := TradeExecuted{
		TradeID:   "TRD_a1b2c3d4",
		Symbol:    "BTCUSDT",
		Action:    "BUY",
		Quantity:  0.1,
		Price:     67000,
		Value:     6700,
		Timestamp: time.Now().UTC(),
	}
	require.NoError(t, bus.PublishTradeExecuted(ev))

	select {
	case got := <-received:
		assert.Equal(t, ev.TradeID, got.TradeID)
		assert.Equal(t, ev.Symbol, got.Symbol)
		assert.Equal(t, ev.Value, got.Value)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for trade event")
	}
}

func TestPublishSubscribeAlertTriggered(t *testing.T) {
	url := startEmbeddedNATS(t)

	bus, err := Connect(url)
	require.NoError(t, err)
	defer bus.Close()

	received := make(chan AlertTriggered, 1)
	sub, err := bus.SubscribeAlertTriggered(func(ev AlertTriggered) {
		received <- ev
	})
	require.NoError(t, err)
	defer func() { _ = sub.Unsubscribe() }()

	require.NoError(t, bus.PublishAlertTriggered(AlertTriggered{
		AlertID:        "archestra_BTCUSDT_1700000000",
		Symbol:         "BTCUSDT",
		Condition:      "above",
		Threshold:      70000,
		TriggeredPrice: 70150,
		UserID:         "archestra",
	}))

	select {
	case got := <-received:
		assert.Equal(t, "above", got.Condition)
		assert.Equal(t, 70150.0, got.TriggeredPrice)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for alert event")
	}
}

func TestNilBusIsSafe(t *testing.T) {
	var bus *Bus
	assert.NoError(t, bus.PublishTradeExecuted(TradeExecuted{}))
	assert.NoError(t, bus.PublishAlertTriggered(AlertTriggered{}))
	bus.Close()

	_, err := bus.SubscribeTradeExecuted(func(TradeExecuted) {})
	assert.Error(t, err)
}

func TestConnectFailure(t *testing.T) {
	_, err := Connect("nats://127.0.0.1:1")
	assert.Error(t, err)
}
