package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"github.com/autofinance/autofinance/internal/config"
	"github.com/autofinance/autofinance/internal/metrics"
)

// toolCallTimeout bounds a single peer tool call
const toolCallTimeout = 60 * time.Second

// Caller issues tool calls to peer services. Supervisors and the alert
// monitor depend on this interface so tests can substitute fakes.
type Caller interface {
	Call(ctx context.Context, service, tool string, args map[string]any) (map[string]any, error)
}

// Pool maintains one MCP client session per peer service. Sessions are
// created lazily on first call and carry the mcp-session-id affinity the
// streamable transport requires.
type Pool struct {
	owner     string
	host      string
	endpoints map[string]string // explicit endpoint overrides (tests)

	mu       sync.Mutex
	sessions map[string]*mcp.ClientSession

	log zerolog.Logger
}

// NewPool creates a client pool that reaches peers on the given host using
// the standard port map.
func NewPool(owner, host string) *Pool {
	return &Pool{
		owner:    owner,
		host:     host,
		sessions: make(map[string]*mcp.ClientSession),
		log:      config.NewLogger("rpc_pool").With().Str("owner", owner).Logger(),
	}
}

// NewPoolWithEndpoints creates a pool with explicit per-service endpoints,
// bypassing the port map. Used by tests against httptest servers.
func NewPoolWithEndpoints(owner string, endpoints map[string]string) *Pool {
	p := NewPool(owner, "localhost")
	p.endpoints = endpoints
	return p
}

func (p *Pool) endpoint(service string) (string, error) {
	if url, ok := p.endpoints[service]; ok {
		return url, nil
	}
	port := config.GetServicePort(service)
	if port == 0 {
		return "", fmt.Errorf("unknown service %q", service)
	}
	return fmt.Sprintf("http://%s:%d/mcp", p.host, port), nil
}

// session returns the existing session for a service or connects a new one
func (p *Pool) session(ctx context.Context, service string) (*mcp.ClientSession, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if sess, ok := p.sessions[service]; ok {
		return sess, nil
	}

	url, err := p.endpoint(service)
	if err != nil {
		return nil, err
	}

	client := mcp.NewClient(&mcp.Implementation{
		Name:    p.owner,
		Version: config.Version,
	}, nil)

	sess, err := client.Connect(ctx, &mcp.StreamableClientTransport{Endpoint: url}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", service, err)
	}

	p.log.Info().Str("service", service).Str("endpoint", url).Msg("Connected to peer")
	p.sessions[service] = sess
	metrics.PeerSessions.Set(float64(len(p.sessions)))
	return sess, nil
}

// drop discards a session after a failed call so the next call reconnects
func (p *Pool) drop(service string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if sess, ok := p.sessions[service]; ok {
		_ = sess.Close()
		delete(p.sessions, service)
		metrics.PeerSessions.Set(float64(len(p.sessions)))
	}
}

// Call invokes a tool on a peer service and returns the decoded payload
func (p *Pool) Call(ctx context.Context, service, tool string, args map[string]any) (map[string]any, error) {
	callCtx, cancel := context.WithTimeout(ctx, toolCallTimeout)
	defer cancel()

	start := time.Now()
	payload, err := p.call(callCtx, service, tool, args)
	elapsed := float64(time.Since(start).Milliseconds())

	if err != nil {
		metrics.RecordPeerCall(service, tool, "error", elapsed)
		p.log.Warn().Err(err).
			Str("service", service).
			Str("tool", tool).
			Msg("Peer call failed")
		return nil, err
	}

	metrics.RecordPeerCall(service, tool, "success", elapsed)
	return payload, nil
}

func (p *Pool) call(ctx context.Context, service, tool string, args map[string]any) (map[string]any, error) {
	sess, err := p.session(ctx, service)
	if err != nil {
		return nil, err
	}

	res, err := sess.CallTool(ctx, &mcp.CallToolParams{
		Name:      tool,
		Arguments: args,
	})
	if err != nil {
		p.drop(service)
		return nil, fmt.Errorf("tool call %s.%s failed: %w", service, tool, err)
	}

	return unwrapResult(service, tool, res)
}

// unwrapResult extracts the payload from the result envelope. Prefers
// structuredContent.result, falls back to the first JSON text block.
func unwrapResult(service, tool string, res *mcp.CallToolResult) (map[string]any, error) {
	if res.IsError {
		return nil, fmt.Errorf("tool call %s.%s returned error: %s", service, tool, firstText(res))
	}

	if sc, ok := res.StructuredContent.(map[string]any); ok {
		if inner, ok := sc["result"]; ok {
			if m, ok := inner.(map[string]any); ok {
				return m, nil
			}
			return map[string]any{"result": inner}, nil
		}
		return sc, nil
	}

	if text := firstText(res); text != "" {
		var m map[string]any
		if err := json.Unmarshal([]byte(text), &m); err == nil {
			return m, nil
		}
	}

	return nil, fmt.Errorf("tool call %s.%s returned no decodable payload", service, tool)
}

func firstText(res *mcp.CallToolResult) string {
	for _, c := range res.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

// Close closes all open peer sessions
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for service, sess := range p.sessions {
		_ = sess.Close()
		delete(p.sessions, service)
	}
	metrics.PeerSessions.Set(0)
}
