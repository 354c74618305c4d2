package notifications

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autofinance/autofinance/internal/config"
)

// stubChannel records sends and optionally fails
type stubChannel struct {
	name string
	err  error

	mu   sync.Mutex
	sent []Notification
}

func (s *stubChannel) Name() string { return s.name }

func (s *stubChannel) Send(ctx context.Context, n Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, n)
	return nil
}

func (s *stubChannel) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func stubGateway(channels ...Channel) *Gateway {
	g := NewGateway(context.Background(), config.NotifyConfig{})
	for _, ch := range channels {
		g.AddChannel(ch)
	}
	return g
}

func TestSendToNamedChannel(t *testing.T) {
	slack := &stubChannel{name: "slack"}
	discord := &stubChannel{name: "discord"}
	g := stubGateway(slack, discord)

	rec, err := g.Send(context.Background(), testNotification(SeverityInfo), "slack")
	require.NoError(t, err)
	assert.Equal(t, []string{"slack"}, rec.Channels)
	assert.Equal(t, 1, slack.count())
	assert.Equal(t, 0, discord.count())
}

func TestBroadcastToleratesPartialFailure(t *testing.T) {
	ok := &stubChannel{name: "file"}
	dead := &stubChannel{name: "discord", err: assert.AnError}
	g := stubGateway(ok, dead)

	rec, err := g.Broadcast(context.Background(), testNotification(SeverityCritical))
	require.NoError(t, err)
	assert.Equal(t, []string{"file"}, rec.Channels)
	assert.Contains(t, rec.Failures, "discord")
}

func TestSendFailsWhenAllChannelsFail(t *testing.T) {
	dead := &stubChannel{name: "slack", err: assert.AnError}
	g := stubGateway(dead)

	_, err := g.Send(context.Background(), testNotification(SeverityInfo))
	assert.ErrorContains(t, err, "all 1 channels failed")
}

func TestSendNoMatchingChannels(t *testing.T) {
	g := stubGateway(&stubChannel{name: "slack"})

	_, err := g.Send(context.Background(), testNotification(SeverityInfo), "telegram")
	assert.ErrorContains(t, err, "no matching channels")
}

func TestSendDefaultsTimestampAndSeverity(t *testing.T) {
	ch := &stubChannel{name: "file"}
	g := stubGateway(ch)

	_, err := g.Send(context.Background(), Notification{Title: "t", Message: "m", Severity: "nonsense"})
	require.NoError(t, err)

	require.Equal(t, 1, ch.count())
	assert.Equal(t, SeverityInfo, ch.sent[0].Severity)
	assert.False(t, ch.sent[0].Timestamp.IsZero())
}

func TestHistoryNewestFirstAndCapped(t *testing.T) {
	ch := &stubChannel{name: "file"}
	g := stubGateway(ch)

	for i := 0; i < historyCap+10; i++ {
		_, err := g.Send(context.Background(), testNotification(SeverityInfo))
		require.NoError(t, err)
	}

	assert.Equal(t, historyCap, g.Status()["history_size"])

	history := g.History(0)
	assert.Len(t, history, 20)

	all := g.History(historyCap * 2)
	assert.Len(t, all, historyCap)
}

func TestHistoryJSONLAppend(t *testing.T) {
	dir := t.TempDir()
	g := NewGateway(context.Background(), config.NotifyConfig{LogDir: dir})

	for i := 0; i < 3; i++ {
		_, err := g.Send(context.Background(), testNotification(SeverityInfo))
		require.NoError(t, err)
	}

	file, err := os.Open(filepath.Join(dir, "notifications.jsonl"))
	require.NoError(t, err)
	defer file.Close()

	lines := 0
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines++
	}
	assert.Equal(t, 3, lines)
}

func TestStatusListsChannels(t *testing.T) {
	g := stubGateway(&stubChannel{name: "slack"}, &stubChannel{name: "discord"})

	status := g.Status()
	assert.Equal(t, []string{"discord", "slack"}, status["channels"])
	assert.Equal(t, 2, status["channel_count"])
}

func TestGatewayFromConfigEnablesChannels(t *testing.T) {
	g := NewGateway(context.Background(), config.NotifyConfig{
		LogDir:            t.TempDir(),
		DiscordWebhookURL: "https://discord.test/webhook",
		SlackWebhookURL:   "https://slack.test/webhook",
		WebhookURL:        "https://example.test/hook",
	})

	assert.Equal(t, []string{"discord", "file", "slack", "webhook"}, g.ChannelNames())
}
