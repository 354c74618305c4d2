package notifications

import (
	"context"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/autofinance/autofinance/internal/alerts"
	"github.com/autofinance/autofinance/internal/config"
	"github.com/autofinance/autofinance/internal/events"
	"github.com/autofinance/autofinance/internal/rpc"
)

// Register adds the gateway tools to a serving harness
func (g *Gateway) Register(srv *rpc.Server) {
	srv.Tool(&mcp.Tool{
		Name:        "send_notification",
		Description: "Send a notification through one channel",
		InputSchema: rpc.Object(map[string]*jsonschema.Schema{
			"channel":  rpc.String("Target channel: file, discord, slack, webhook, email, telegram or fcm"),
			"title":    rpc.String("Notification title"),
			"message":  rpc.String("Notification body"),
			"severity": rpc.String("Severity: info, warning or critical (default info)"),
		}, "channel", "title", "message"),
	}, func(ctx context.Context, req *mcp.CallToolRequest) (any, error) {
		args, err := rpc.Args[struct {
			Channel  string `json:"channel"`
			Title    string `json:"title"`
			Message  string `json:"message"`
			Severity string `json:"severity"`
		}](req)
		if err != nil {
			return nil, err
		}
		rec, err := g.Send(ctx, Notification{
			Title:    args.Title,
			Message:  args.Message,
			Severity: Severity(args.Severity),
		}, args.Channel)
		if err != nil {
			return map[string]any{"success": false, "reason": err.Error(), "failures": rec.Failures}, nil
		}
		return map[string]any{"success": true, "channels": rec.Channels}, nil
	})

	srv.Tool(&mcp.Tool{
		Name:        "send_alert",
		Description: "Broadcast an alert to every configured channel",
		InputSchema: rpc.Object(map[string]*jsonschema.Schema{
			"title":    rpc.String("Alert title"),
			"message":  rpc.String("Alert body"),
			"severity": rpc.String("Severity: info, warning or critical (default info)"),
		}, "title", "message"),
	}, func(ctx context.Context, req *mcp.CallToolRequest) (any, error) {
		args, err := rpc.Args[struct {
			Title    string `json:"title"`
			Message  string `json:"message"`
			Severity string `json:"severity"`
		}](req)
		if err != nil {
			return nil, err
		}
		rec, err := g.Broadcast(ctx, Notification{
			Title:    args.Title,
			Message:  args.Message,
			Severity: Severity(args.Severity),
		})
		if err != nil {
			return map[string]any{
				"success":            false,
				"reason":             err.Error(),
				"failures":           rec.Failures,
				"channels_attempted": len(rec.Channels) + len(rec.Failures),
				"channels_delivered": len(rec.Channels),
			}, nil
		}
		return map[string]any{
			"success":            true,
			"channels":           rec.Channels,
			"failures":           rec.Failures,
			"channels_attempted": len(rec.Channels) + len(rec.Failures),
			"channels_delivered": len(rec.Channels),
		}, nil
	})

	srv.Tool(&mcp.Tool{
		Name:        "send_multi_channel",
		Description: "Send a notification to a chosen set of channels",
		InputSchema: rpc.Object(map[string]*jsonschema.Schema{
			"channels": rpc.StringArray("Target channels"),
			"title":    rpc.String("Notification title"),
			"message":  rpc.String("Notification body"),
			"severity": rpc.String("Severity: info, warning or critical (default info)"),
		}, "channels", "title", "message"),
	}, func(ctx context.Context, req *mcp.CallToolRequest) (any, error) {
		args, err := rpc.Args[struct {
			Channels []string `json:"channels"`
			Title    string   `json:"title"`
			Message  string   `json:"message"`
			Severity string   `json:"severity"`
		}](req)
		if err != nil {
			return nil, err
		}
		rec, err := g.Send(ctx, Notification{
			Title:    args.Title,
			Message:  args.Message,
			Severity: Severity(args.Severity),
		}, args.Channels...)
		if err != nil {
			return map[string]any{"success": false, "reason": err.Error(), "failures": rec.Failures}, nil
		}
		return map[string]any{
			"success":            true,
			"channels":           rec.Channels,
			"failures":           rec.Failures,
			"channels_attempted": len(rec.Channels) + len(rec.Failures),
			"channels_delivered": len(rec.Channels),
		}, nil
	})

	srv.Tool(&mcp.Tool{
		Name:        "get_notification_history",
		Description: "Get recent deliveries, newest first",
		InputSchema: rpc.Object(map[string]*jsonschema.Schema{
			"limit": rpc.Integer("Maximum records to return (default 20)"),
		}),
	}, func(ctx context.Context, req *mcp.CallToolRequest) (any, error) {
		args, err := rpc.Args[struct {
			Limit int `json:"limit"`
		}](req)
		if err != nil {
			return nil, err
		}
		history := g.History(args.Limit)
		return map[string]any{"history": history, "count": len(history)}, nil
	})

	srv.Tool(&mcp.Tool{
		Name:        "get_notification_status",
		Description: "Get the configured channels and history depth",
		InputSchema: rpc.Object(nil),
	}, func(ctx context.Context, req *mcp.CallToolRequest) (any, error) {
		return g.Status(), nil
	})
}

// Register adds the price alert monitor tools to a serving harness
func (m *Monitor) Register(srv *rpc.Server) {
	srv.Tool(&mcp.Tool{
		Name:        "create_price_alert",
		Description: "Create a monitored price alert",
		InputSchema: rpc.Object(map[string]*jsonschema.Schema{
			"symbol":    rpc.String("Ticker symbol, e.g. BTC-USD"),
			"condition": rpc.String("Trigger condition: above, below, crosses_above or crosses_below"),
			"threshold": rpc.Number("Price threshold"),
			"user_id":   rpc.String("Owner (default archestra)"),
			"message":   rpc.String("Custom trigger message (optional)"),
		}, "symbol", "condition", "threshold"),
	}, func(ctx context.Context, req *mcp.CallToolRequest) (any, error) {
		args, err := rpc.Args[struct {
			Symbol    string  `json:"symbol"`
			Condition string  `json:"condition"`
			Threshold float64 `json:"threshold"`
			UserID    string  `json:"user_id"`
			Message   string  `json:"message"`
		}](req)
		if err != nil {
			return nil, err
		}
		alert, err := m.CreateAlert(args.UserID, args.Symbol, args.Condition, args.Threshold, args.Message)
		if err != nil {
			return map[string]any{"success": false, "reason": err.Error()}, nil
		}
		return map[string]any{"success": true, "alert": alert, "monitor": m.Status()}, nil
	})

	srv.Tool(&mcp.Tool{
		Name:        "list_price_alerts",
		Description: "List monitored price alerts for a user",
		InputSchema: rpc.Object(map[string]*jsonschema.Schema{
			"user_id":     rpc.String("Owner (default archestra)"),
			"active_only": rpc.Boolean("Only include active alerts"),
		}),
	}, func(ctx context.Context, req *mcp.CallToolRequest) (any, error) {
		args, err := rpc.Args[struct {
			UserID     string `json:"user_id"`
			ActiveOnly bool   `json:"active_only"`
		}](req)
		if err != nil {
			return nil, err
		}
		list := m.ListAlerts(args.UserID, args.ActiveOnly)
		return map[string]any{"alerts": list, "count": len(list)}, nil
	})

	srv.Tool(&mcp.Tool{
		Name:        "delete_price_alert",
		Description: "Delete a monitored price alert",
		InputSchema: rpc.Object(map[string]*jsonschema.Schema{
			"alert_id": rpc.String("Alert to delete"),
		}, "alert_id"),
	}, func(ctx context.Context, req *mcp.CallToolRequest) (any, error) {
		args, err := rpc.Args[struct {
			AlertID string `json:"alert_id"`
		}](req)
		if err != nil {
			return nil, err
		}
		if !m.DeleteAlert(args.AlertID) {
			return map[string]any{"success": false, "reason": "alert " + args.AlertID + " not found"}, nil
		}
		return map[string]any{"success": true}, nil
	})

	srv.Tool(&mcp.Tool{
		Name:        "check_alerts_now",
		Description: "Run one alert evaluation pass immediately",
		InputSchema: rpc.Object(nil),
	}, func(ctx context.Context, req *mcp.CallToolRequest) (any, error) {
		return m.CheckNow(ctx), nil
	})

	srv.Tool(&mcp.Tool{
		Name:        "start_monitor",
		Description: "Start the background alert polling loop",
		InputSchema: rpc.Object(map[string]*jsonschema.Schema{
			"interval_seconds": rpc.Integer("Polling interval in seconds (default 60, minimum 10)"),
		}),
	}, func(ctx context.Context, req *mcp.CallToolRequest) (any, error) {
		args, err := rpc.Args[struct {
			IntervalSeconds int `json:"interval_seconds"`
		}](req)
		if err != nil {
			return nil, err
		}
		interval, err := m.Start(time.Duration(args.IntervalSeconds) * time.Second)
		if err != nil {
			return map[string]any{"success": false, "reason": err.Error()}, nil
		}
		return map[string]any{"success": true, "interval_sec": int(interval.Seconds())}, nil
	})

	srv.Tool(&mcp.Tool{
		Name:        "stop_monitor",
		Description: "Stop the background alert polling loop",
		InputSchema: rpc.Object(nil),
	}, func(ctx context.Context, req *mcp.CallToolRequest) (any, error) {
		if !m.Stop() {
			return map[string]any{"success": false, "reason": "monitor not running"}, nil
		}
		return map[string]any{"success": true}, nil
	})

	srv.Tool(&mcp.Tool{
		Name:        "get_monitor_status",
		Description: "Get the monitor state and recent activity",
		InputSchema: rpc.Object(nil),
	}, func(ctx context.Context, req *mcp.CallToolRequest) (any, error) {
		return m.Status(), nil
	})
}

// NewServer builds the ready-to-run notification service harness
func NewServer(ctx context.Context, cfg *config.Config, caller rpc.Caller, bus *events.Bus) *rpc.Server {
	srv := rpc.NewServer("notification", config.GetServicePort("notification"))

	gateway := NewGateway(ctx, cfg.Notify)
	gateway.Register(srv)

	registry := alerts.NewRegistry(cfg.Alerts.MonitorStore)
	monitor := NewMonitor(registry, gateway, caller, bus)
	monitor.Register(srv)

	return srv
}
