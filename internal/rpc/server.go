// Package rpc provides the shared MCP serving harness and the peer client
// pool used by every AutoFinance service. Services register tools against a
// Server; the harness wires the streamable HTTP transport, session handling,
// /health and /metrics.
package rpc

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"github.com/autofinance/autofinance/internal/config"
	"github.com/autofinance/autofinance/internal/metrics"
)

// ToolFunc handles one tool call and returns the payload to wrap in the
// result envelope. A returned error becomes an {error: …} payload, never a
// JSON-RPC error.
type ToolFunc func(ctx context.Context, req *mcp.CallToolRequest) (any, error)

// Server hosts one AutoFinance service: an MCP server plus the HTTP surface
// shared by all services.
type Server struct {
	name string
	port int
	mcp  *mcp.Server
	log  zerolog.Logger
	http *http.Server
}

// NewServer creates a serving harness for the named service
func NewServer(name string, port int) *Server {
	impl := &mcp.Implementation{
		Name:    name,
		Version: config.Version,
	}
	return &Server{
		name: name,
		port: port,
		mcp:  mcp.NewServer(impl, nil),
		log:  config.NewMCPLogger(name),
	}
}

// Name returns the service name
func (s *Server) Name() string { return s.name }

// Port returns the port the service listens on
func (s *Server) Port() int { return s.port }

// Tool registers a tool. The wrapper records per-call metrics and folds
// handler errors into error payloads.
func (s *Server) Tool(tool *mcp.Tool, fn ToolFunc) {
	s.mcp.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		payload, err := fn(ctx, req)
		elapsed := float64(time.Since(start).Milliseconds())

		if err != nil {
			s.log.Warn().Err(err).Str("tool", tool.Name).Msg("Tool call returned error payload")
			metrics.RecordToolCall(s.name, tool.Name, "error", elapsed)
			return Errorf("%s", err.Error()), nil
		}

		s.log.Debug().
			Str("tool", tool.Name).
			Float64("duration_ms", elapsed).
			Msg("Tool call handled")
		metrics.RecordToolCall(s.name, tool.Name, "success", elapsed)
		return Result(payload), nil
	})
}

// Handler returns the full HTTP handler for the service. Exposed separately
// so tests can mount it on httptest servers.
func (s *Server) Handler() http.Handler {
	streamable := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.mcp
	}, nil)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(cors.Default())

	engine.Any("/mcp", gin.WrapH(metrics.HTTPMiddleware(streamable)))
	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": s.name,
			"version": config.Version,
		})
	})
	engine.GET("/metrics", gin.WrapH(metrics.Handler()))

	return engine
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	s.http = &http.Server{
		Addr:        fmt.Sprintf(":%d", s.port),
		Handler:     s.Handler(),
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Int("port", s.port).Msg("Service listening")
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("service %s failed: %w", s.name, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.log.Info().Msg("Shutting down service")
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown service %s: %w", s.name, err)
	}
	return nil
}
