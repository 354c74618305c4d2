package alerts

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/autofinance/autofinance/internal/config"
	"github.com/autofinance/autofinance/internal/rpc"
)

// Register adds the alert registry tools to a serving harness
func (r *Registry) Register(srv *rpc.Server) {
	srv.Tool(&mcp.Tool{
		Name:        "create_alert",
		Description: "Create a price alert for a user",
		InputSchema: rpc.Object(map[string]*jsonschema.Schema{
			"user_id":   rpc.String("Owner of the alert"),
			"symbol":    rpc.String("Ticker symbol, e.g. BTC-USD"),
			"condition": rpc.String("Trigger condition: above, below, crosses_above or crosses_below"),
			"threshold": rpc.Number("Price threshold"),
			"message":   rpc.String("Custom trigger message (optional)"),
			"channel":   rpc.String("Delivery channel (default slack)"),
		}, "user_id", "symbol", "condition", "threshold"),
	}, func(ctx context.Context, req *mcp.CallToolRequest) (any, error) {
		args, err := rpc.Args[struct {
			UserID    string  `json:"user_id"`
			Symbol    string  `json:"symbol"`
			Condition string  `json:"condition"`
			Threshold float64 `json:"threshold"`
			Message   string  `json:"message"`
			Channel   string  `json:"channel"`
		}](req)
		if err != nil {
			return nil, err
		}
		alert, err := r.Create(args.UserID, args.Symbol, args.Condition, args.Threshold, args.Message, args.Channel)
		if err != nil {
			return map[string]any{"success": false, "reason": err.Error()}, nil
		}
		return map[string]any{"success": true, "alert": alert}, nil
	})

	srv.Tool(&mcp.Tool{
		Name:        "check_alert_condition",
		Description: "Evaluate an alert against a price observation",
		InputSchema: rpc.Object(map[string]*jsonschema.Schema{
			"alert_id":      rpc.String("Alert to evaluate"),
			"current_price": rpc.Number("Latest observed price"),
		}, "alert_id", "current_price"),
	}, func(ctx context.Context, req *mcp.CallToolRequest) (any, error) {
		args, err := rpc.Args[struct {
			AlertID      string  `json:"alert_id"`
			CurrentPrice float64 `json:"current_price"`
		}](req)
		if err != nil {
			return nil, err
		}
		res, err := r.Check(args.AlertID, args.CurrentPrice)
		if err != nil {
			return map[string]any{"success": false, "reason": err.Error()}, nil
		}
		return res, nil
	})

	srv.Tool(&mcp.Tool{
		Name:        "list_user_alerts",
		Description: "List a user's alerts, newest first",
		InputSchema: rpc.Object(map[string]*jsonschema.Schema{
			"user_id":     rpc.String("Owner of the alerts"),
			"active_only": rpc.Boolean("Only include active alerts"),
		}, "user_id"),
	}, func(ctx context.Context, req *mcp.CallToolRequest) (any, error) {
		args, err := rpc.Args[struct {
			UserID     string `json:"user_id"`
			ActiveOnly bool   `json:"active_only"`
		}](req)
		if err != nil {
			return nil, err
		}
		list := r.ListUser(args.UserID, args.ActiveOnly)
		return map[string]any{"alerts": list, "count": len(list)}, nil
	})

	srv.Tool(&mcp.Tool{
		Name:        "delete_alert",
		Description: "Delete an alert",
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
		if !r.Delete(args.AlertID) {
			return map[string]any{"success": false, "reason": "alert " + args.AlertID + " not found"}, nil
		}
		return map[string]any{"success": true}, nil
	})

	srv.Tool(&mcp.Tool{
		Name:        "get_all_active_alerts",
		Description: "List active alerts across all users",
		InputSchema: rpc.Object(nil),
	}, func(ctx context.Context, req *mcp.CallToolRequest) (any, error) {
		list := r.AllActive()
		return map[string]any{"alerts": list, "count": len(list)}, nil
	})

	srv.Tool(&mcp.Tool{
		Name:        "reset_alert",
		Description: "Reactivate a triggered alert",
		InputSchema: rpc.Object(map[string]*jsonschema.Schema{
			"alert_id": rpc.String("Alert to reactivate"),
		}, "alert_id"),
	}, func(ctx context.Context, req *mcp.CallToolRequest) (any, error) {
		args, err := rpc.Args[struct {
			AlertID string `json:"alert_id"`
		}](req)
		if err != nil {
			return nil, err
		}
		alert, err := r.Reset(args.AlertID)
		if err != nil {
			return map[string]any{"success": false, "reason": err.Error()}, nil
		}
		return map[string]any{"success": true, "alert": alert}, nil
	})
}

// NewServer builds the ready-to-run alert engine harness
func NewServer(cfg *config.Config) *rpc.Server {
	srv := rpc.NewServer("alert-engine", config.GetServicePort("alert-engine"))
	NewRegistry(cfg.Alerts.StorePath).Register(srv)
	return srv
}
