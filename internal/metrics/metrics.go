package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Bounded cardinality constants for metric labels.
// These ensure metrics don't have unbounded label values which can cause memory issues.
const (
	// Provider error categories (bounded set)
	ProviderErrorTimeout     = "timeout"
	ProviderErrorRateLimit   = "rate_limit"
	ProviderErrorAuth        = "authentication"
	ProviderErrorNetwork     = "network"
	ProviderErrorInvalidReq  = "invalid_request"
	ProviderErrorServerError = "server_error"
	ProviderErrorBreakerOpen = "breaker_open"
	ProviderErrorOther       = "other"
)

// NormalizeProviderError maps arbitrary provider errors to a bounded set
func NormalizeProviderError(err error) string {
	if err == nil {
		return ""
	}
	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "circuit breaker"):
		return ProviderErrorBreakerOpen
	case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline"):
		return ProviderErrorTimeout
	case strings.Contains(errStr, "rate") || strings.Contains(errStr, "429"):
		return ProviderErrorRateLimit
	case strings.Contains(errStr, "auth") || strings.Contains(errStr, "401") || strings.Contains(errStr, "403"):
		return ProviderErrorAuth
	case strings.Contains(errStr, "network") || strings.Contains(errStr, "connection"):
		return ProviderErrorNetwork
	case strings.Contains(errStr, "400") || strings.Contains(errStr, "invalid"):
		return ProviderErrorInvalidReq
	case strings.Contains(errStr, "500") || strings.Contains(errStr, "502") || strings.Contains(errStr, "503"):
		return ProviderErrorServerError
	default:
		return ProviderErrorOther
	}
}

// Tool Serving Metrics
var (
	// Tool calls handled by this service
	ToolCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "autofinance_tool_calls_total",
		Help: "Total number of tool calls handled, by tool and status",
	}, []string{"service", "tool", "status"})

	// Tool call duration
	ToolCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "autofinance_tool_call_duration_ms",
		Help:    "Tool call handling duration in milliseconds",
		Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"service", "tool"})

	// HTTP requests
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "autofinance_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status_code"})

	// API request duration
	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "autofinance_api_request_duration_ms",
		Help:    "API request duration in milliseconds",
		Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"method", "path", "status_code"})

	// Errors
	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "autofinance_errors_total",
		Help: "Total number of errors by type",
	}, []string{"type", "component"})
)

// Peer RPC Client Metrics
var (
	// Calls issued to peer services
	PeerCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "autofinance_peer_calls_total",
		Help: "Total number of tool calls issued to peer services",
	}, []string{"peer", "tool", "status"})

	// Peer call duration
	PeerCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "autofinance_peer_call_duration_ms",
		Help:    "Peer tool call duration in milliseconds",
		Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500},
	}, []string{"peer", "tool"})

	// Peer sessions currently open
	PeerSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "autofinance_peer_sessions",
		Help: "Number of currently open peer sessions",
	})
)

// Market Data Metrics
var (
	// Provider requests
	ProviderRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "autofinance_provider_requests_total",
		Help: "Total market data provider requests by provider and status",
	}, []string{"provider", "status"})

	// Provider latency
	ProviderLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "autofinance_provider_latency_ms",
		Help:    "Market data provider latency in milliseconds",
		Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"provider"})

	// Provider errors by category
	ProviderErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "autofinance_provider_errors_total",
		Help: "Total market data provider errors by category",
	}, []string{"provider", "error_type"})

	// Redis cache hit rate
	RedisCacheHitRate = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "autofinance_redis_cache_hit_rate",
		Help: "Redis cache hit rate as a ratio (0.0 to 1.0)",
	})

	// Redis operations
	RedisOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "autofinance_redis_operations_total",
		Help: "Total number of Redis operations by type",
	}, []string{"operation"})
)

// Portfolio Metrics
var (
	// Trades executed
	TradesExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "autofinance_trades_executed_total",
		Help: "Total trades processed by action and outcome",
	}, []string{"action", "status"})

	// Portfolio cash balance
	PortfolioCash = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "autofinance_portfolio_cash",
		Help: "Current portfolio cash balance in USD",
	})

	// Portfolio total value
	PortfolioTotalValue = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "autofinance_portfolio_total_value",
		Help: "Current total portfolio value in USD",
	})

	// Open positions
	OpenPositions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "autofinance_open_positions",
		Help: "Number of currently open positions",
	})

	// Position value by symbol
	PositionValueBySymbol = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "autofinance_position_value_by_symbol",
		Help: "Position value in USD by trading symbol",
	}, []string{"symbol"})

	// Rebalances applied
	RebalancesApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "autofinance_rebalances_applied_total",
		Help: "Total rebalance applications by outcome",
	}, []string{"status"})
)

// Pipeline Metrics
var (
	// Pipeline runs
	PipelineRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "autofinance_pipeline_runs_total",
		Help: "Total supervisor pipeline runs by pipeline and outcome",
	}, []string{"pipeline", "outcome"})

	// Pipeline duration
	PipelineDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "autofinance_pipeline_duration_ms",
		Help:    "Supervisor pipeline duration in milliseconds",
		Buckets: []float64{100, 250, 500, 1000, 2500, 5000, 10000},
	}, []string{"pipeline"})

	// Signal votes cast during pipelines
	SignalVotes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "autofinance_signal_votes_total",
		Help: "Total signal votes by source and direction",
	}, []string{"source", "direction"})

	// Risk decisions
	RiskDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "autofinance_risk_decisions_total",
		Help: "Total risk validation decisions",
	}, []string{"decision"})

	// LLM request duration (news sentiment)
	LLMRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "autofinance_llm_request_duration_ms",
		Help:    "LLM request duration in milliseconds",
		Buckets: []float64{100, 250, 500, 1000, 2500, 5000, 10000},
	})
)

// Audit Metrics
var (
	// Audit events recorded
	AuditEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "autofinance_audit_events_total",
		Help: "Total audit events recorded by event type and severity",
	}, []string{"event_type", "severity"})

	// Audit persistence failures
	AuditLogFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "autofinance_audit_log_failures_total",
		Help: "Total audit persistence failures by error type",
	}, []string{"error_type", "event_type"})

	// Audit persistence latency
	AuditLogLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "autofinance_audit_log_latency_ms",
		Help:    "Audit persistence latency in milliseconds",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
	})
)

// Notification and Alert Metrics
var (
	// Notifications sent
	NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "autofinance_notifications_sent_total",
		Help: "Total notifications sent by channel and outcome",
	}, []string{"channel", "status"})

	// Alerts triggered
	AlertsTriggered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "autofinance_alerts_triggered_total",
		Help: "Total price alerts triggered",
	})

	// Active alerts
	ActiveAlerts = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "autofinance_active_alerts",
		Help: "Number of currently active price alerts",
	})

	// Alert monitor ticks
	MonitorTicks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "autofinance_monitor_ticks_total",
		Help: "Total alert monitor ticks by outcome",
	}, []string{"status"})

	// NATS messages
	NATSMessagesPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "autofinance_nats_messages_published_total",
		Help: "Total number of NATS messages published",
	})

	NATSMessagesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "autofinance_nats_messages_received_total",
		Help: "Total number of NATS messages received",
	})
)

// Helper functions to update metrics

// RecordToolCall records a handled tool call
func RecordToolCall(service, tool, status string, durationMs float64) {
	ToolCalls.WithLabelValues(service, tool, status).Inc()
	ToolCallDuration.WithLabelValues(service, tool).Observe(durationMs)
}

// RecordPeerCall records a tool call issued to a peer service
func RecordPeerCall(peer, tool, status string, durationMs float64) {
	PeerCalls.WithLabelValues(peer, tool, status).Inc()
	PeerCallDuration.WithLabelValues(peer, tool).Observe(durationMs)
}

// RecordAPIRequest records an API request with duration
func RecordAPIRequest(method, path, statusCode string, durationMs float64) {
	APIRequestDuration.WithLabelValues(method, path, statusCode).Observe(durationMs)
	HTTPRequests.WithLabelValues(method, path, statusCode).Inc()
}

// RecordError records an error
func RecordError(errorType, component string) {
	Errors.WithLabelValues(errorType, component).Inc()
}

// RecordProviderRequest records a market data provider call
func RecordProviderRequest(provider string, durationMs float64, err error) {
	ProviderLatency.WithLabelValues(provider).Observe(durationMs)
	if err != nil {
		ProviderRequests.WithLabelValues(provider, "error").Inc()
		ProviderErrors.WithLabelValues(provider, NormalizeProviderError(err)).Inc()
	} else {
		ProviderRequests.WithLabelValues(provider, "success").Inc()
	}
}

// RecordRedisOperation records a Redis operation
func RecordRedisOperation(operation string) {
	RedisOperations.WithLabelValues(operation).Inc()
}

// RecordTrade records a processed trade
func RecordTrade(action string, success bool) {
	status := "executed"
	if !success {
		status = "refused"
	}
	TradesExecuted.WithLabelValues(action, status).Inc()
}

// UpdatePortfolio updates the portfolio snapshot gauges
func UpdatePortfolio(cash, totalValue float64, numPositions int) {
	PortfolioCash.Set(cash)
	PortfolioTotalValue.Set(totalValue)
	OpenPositions.Set(float64(numPositions))
}

// UpdatePositionValue updates position value for a symbol
func UpdatePositionValue(symbol string, value float64) {
	PositionValueBySymbol.WithLabelValues(symbol).Set(value)
}

// RecordPipelineRun records a supervisor pipeline run
func RecordPipelineRun(pipeline, outcome string, durationMs float64) {
	PipelineRuns.WithLabelValues(pipeline, outcome).Inc()
	PipelineDuration.WithLabelValues(pipeline).Observe(durationMs)
}

// RecordSignalVote records a signal vote from an analysis source
func RecordSignalVote(source, direction string) {
	SignalVotes.WithLabelValues(source, direction).Inc()
}

// RecordRiskDecision records a risk validation decision
func RecordRiskDecision(approved bool) {
	decision := "approved"
	if !approved {
		decision = "rejected"
	}
	RiskDecisions.WithLabelValues(decision).Inc()
}

// RecordAuditEvent records an audit event
func RecordAuditEvent(eventType, severity string) {
	AuditEvents.WithLabelValues(eventType, severity).Inc()
}

// RecordAuditLogFailure records an audit persistence failure
func RecordAuditLogFailure(errorType, eventType string) {
	AuditLogFailures.WithLabelValues(errorType, eventType).Inc()
}

// RecordNotification records a notification delivery attempt
func RecordNotification(channel string, success bool) {
	status := "delivered"
	if !success {
		status = "failed"
	}
	NotificationsSent.WithLabelValues(channel, status).Inc()
}

// RecordMonitorTick records an alert monitor tick
func RecordMonitorTick(err error) {
	if err != nil {
		MonitorTicks.WithLabelValues("error").Inc()
		return
	}
	MonitorTicks.WithLabelValues("ok").Inc()
}
