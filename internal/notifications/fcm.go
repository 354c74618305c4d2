package notifications

import (
	"context"
	"fmt"
	"os"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// FCMChannel pushes notifications to a Firebase Cloud Messaging topic
type FCMChannel struct {
	client *messaging.Client
	topic  string
}

// NewFCMChannel creates an FCM channel from a service account credentials file
func NewFCMChannel(ctx context.Context, credentialsPath, topic string) (*FCMChannel, error) {
	if credentialsPath == "" {
		return nil, fmt.Errorf("fcm credentials path is required")
	}
	if _, err := os.Stat(credentialsPath); err != nil {
		return nil, fmt.Errorf("fcm credentials unreadable: %w", err)
	}
	if topic == "" {
		topic = "autofinance-alerts"
	}

	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsPath))
	if err != nil {
		return nil, fmt.Errorf("failed to create Firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create messaging client: %w", err)
	}
	return &FCMChannel{client: client, topic: topic}, nil
}

func (f *FCMChannel) Name() string { return "fcm" }

func (f *FCMChannel) Send(ctx context.Context, n Notification) error {
	msg := &messaging.Message{
		Topic: f.topic,
		Notification: &messaging.Notification{
			Title: n.Title,
			Body:  n.Message,
		},
		Data: map[string]string{
			"severity": string(n.Severity),
			"source":   n.Source,
		},
	}
	if n.Severity == SeverityCritical {
		msg.Android = &messaging.AndroidConfig{Priority: "high"}
		msg.APNS = &messaging.APNSConfig{
			Headers: map[string]string{"apns-priority": "10"},
		}
	}

	if _, err := f.client.Send(ctx, msg); err != nil {
		return fmt.Errorf("fcm send failed: %w", err)
	}
	return nil
}
