package notifications

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"
	"time"
)

// EmailChannel sends notifications over SMTP with STARTTLS
type EmailChannel struct {
	host     string
	port     int
	user     string
	password string
	from     string
	to       string
}

// NewEmailChannel creates an SMTP email channel
func NewEmailChannel(host string, port int, user, password, from, to string) *EmailChannel {
	if port == 0 {
		port = 587
	}
	return &EmailChannel{host: host, port: port, user: user, password: password, from: from, to: to}
}

func (e *EmailChannel) Name() string { return "email" }

func (e *EmailChannel) Send(ctx context.Context, n Notification) error {
	subject := fmt.Sprintf("[AutoFinance %s] %s", strings.ToUpper(string(n.Severity)), n.Title)

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", e.from)
	fmt.Fprintf(&msg, "To: %s\r\n", e.to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	fmt.Fprintf(&msg, "%s\n\nSeverity: %s\nTime: %s\n",
		n.Message, n.Severity, n.Timestamp.Format(time.RFC3339))
	if n.Source != "" {
		fmt.Fprintf(&msg, "Source: %s\n", n.Source)
	}

	addr := fmt.Sprintf("%s:%d", e.host, e.port)
	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("smtp dial failed: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: e.host}); err != nil {
			return fmt.Errorf("smtp starttls failed: %w", err)
		}
	}
	if e.user != "" {
		auth := smtp.PlainAuth("", e.user, e.password, e.host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth failed: %w", err)
		}
	}

	if err := client.Mail(e.from); err != nil {
		return err
	}
	for _, rcpt := range strings.Split(e.to, ",") {
		if err := client.Rcpt(strings.TrimSpace(rcpt)); err != nil {
			return err
		}
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write([]byte(msg.String())); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}
