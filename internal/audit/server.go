package audit

import (
	"context"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/autofinance/autofinance/internal/config"
	"github.com/autofinance/autofinance/internal/rpc"
)

// parseTime accepts RFC3339 timestamps, returning zero on empty input
func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}

// Register adds the compliance tools to a serving harness
func (l *Log) Register(srv *rpc.Server) {
	srv.Tool(&mcp.Tool{
		Name:        "log_event",
		Description: "Record an audit event in the compliance trail",
		InputSchema: rpc.Object(map[string]*jsonschema.Schema{
			"event_type": rpc.String("Event type: proposal, risk_decision, execution, error or system"),
			"agent_name": rpc.String("Name of the agent or service that produced the event"),
			"action":     rpc.String("Action performed"),
			"details":    {Type: "object", Description: "Arbitrary event payload"},
			"severity":   rpc.String("Severity: info, warning, error or critical (default info)"),
		}, "event_type", "agent_name", "action"),
	}, func(ctx context.Context, req *mcp.CallToolRequest) (any, error) {
		args, err := rpc.Args[struct {
			EventType string         `json:"event_type"`
			AgentName string         `json:"agent_name"`
			Action    string         `json:"action"`
			Details   map[string]any `json:"details"`
			Severity  string         `json:"severity"`
		}](req)
		if err != nil {
			return nil, err
		}
		ev, err := l.Record(ctx, EventType(args.EventType), args.AgentName, args.Action, args.Details, Severity(args.Severity))
		if err != nil {
			return map[string]any{"success": false, "reason": err.Error()}, nil
		}
		return map[string]any{"success": true, "event_id": ev.EventID, "event": ev}, nil
	})

	srv.Tool(&mcp.Tool{
		Name:        "generate_audit_report",
		Description: "Summarize the audit trail with optional time, type and agent filters",
		InputSchema: rpc.Object(map[string]*jsonschema.Schema{
			"start_time": rpc.String("Include events at or after this RFC3339 timestamp"),
			"end_time":   rpc.String("Include events at or before this RFC3339 timestamp"),
			"event_type": rpc.String("Filter by event type"),
			"agent_name": rpc.String("Filter by agent name"),
		}),
	}, func(ctx context.Context, req *mcp.CallToolRequest) (any, error) {
		args, err := rpc.Args[struct {
			StartTime string `json:"start_time"`
			EndTime   string `json:"end_time"`
			EventType string `json:"event_type"`
			AgentName string `json:"agent_name"`
		}](req)
		if err != nil {
			return nil, err
		}
		start, err := parseTime(args.StartTime)
		if err != nil {
			return map[string]any{"success": false, "reason": "invalid start_time: " + err.Error()}, nil
		}
		end, err := parseTime(args.EndTime)
		if err != nil {
			return map[string]any{"success": false, "reason": "invalid end_time: " + err.Error()}, nil
		}
		return l.Report(ReportFilters{
			StartTime: start,
			EndTime:   end,
			EventType: EventType(args.EventType),
			AgentName: args.AgentName,
		}), nil
	})

	srv.Tool(&mcp.Tool{
		Name:        "get_recent_events",
		Description: "Get the most recent audit events, oldest first",
		InputSchema: rpc.Object(map[string]*jsonschema.Schema{
			"limit":      rpc.Integer("Maximum events to return (default 20)"),
			"event_type": rpc.String("Filter by event type"),
		}),
	}, func(ctx context.Context, req *mcp.CallToolRequest) (any, error) {
		args, err := rpc.Args[struct {
			Limit     int    `json:"limit"`
			EventType string `json:"event_type"`
		}](req)
		if err != nil {
			return nil, err
		}
		events := l.Recent(args.Limit, EventType(args.EventType))
		return map[string]any{"events": events, "count": len(events)}, nil
	})

	srv.Tool(&mcp.Tool{
		Name:        "get_compliance_metrics",
		Description: "Get event counts, approval rate and execution success rate",
		InputSchema: rpc.Object(nil),
	}, func(ctx context.Context, req *mcp.CallToolRequest) (any, error) {
		return l.Metrics(), nil
	})

	srv.Tool(&mcp.Tool{
		Name:        "clear_audit_log",
		Description: "Clear the in-memory audit trail",
		InputSchema: rpc.Object(nil),
	}, func(ctx context.Context, req *mcp.CallToolRequest) (any, error) {
		return map[string]any{"success": true, "cleared": l.Clear()}, nil
	})
}

// NewServer builds the ready-to-run compliance service harness
func NewServer(db DBExecutor) *rpc.Server {
	srv := rpc.NewServer("compliance", config.GetServicePort("compliance"))
	NewLog(db).Register(srv)
	return srv
}
