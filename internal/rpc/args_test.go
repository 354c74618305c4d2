package rpc

import (
	"encoding/json"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArgsDecodesMap(t *testing.T) {
	rawArgs, err := json.Marshal(map[string]any{
		"symbol":   "BTCUSDT",
		"quantity": 0.5,
		"dry_run":  true,
	})
	require.NoError(t, err)
	req := &mcp.CallToolRequest{
		Params: &mcp.CallToolParamsRaw{
			Name:      "execute_trade",
			Arguments: rawArgs,
		},
	}

	args, err := Args[struct {
		Symbol   string  `json:"symbol"`
		Quantity float64 `json:"quantity"`
		DryRun   bool    `json:"dry_run"`
	}](req)
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", args.Symbol)
	assert.Equal(t, 0.5, args.Quantity)
	assert.True(t, args.DryRun)
}

func TestArgsDecodesRawJSON(t *testing.T) {
	req := &mcp.CallToolRequest{
		Params: &mcp.CallToolParamsRaw{
			Name:      "get_live_price",
			Arguments: json.RawMessage(`{"symbol":"ETHUSDT"}`),
		},
	}

	args, err := Args[struct {
		Symbol string `json:"symbol"`
	}](req)
	require.NoError(t, err)
	assert.Equal(t, "ETHUSDT", args.Symbol)
}

func TestArgsNilArguments(t *testing.T) {
	req := &mcp.CallToolRequest{Params: &mcp.CallToolParamsRaw{Name: "get_portfolio_state"}}

	args, err := Args[struct {
		Limit int `json:"limit"`
	}](req)
	require.NoError(t, err)
	assert.Zero(t, args.Limit)
}

func TestResultEnvelope(t *testing.T) {
	payload := map[string]any{"success": true, "trade_id": "TRD_a1b2c3d4"}
	res := Result(payload)

	// Structured side carries the payload under "result"
	sc, ok := res.StructuredContent.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, payload, sc["result"])

	// Text side carries the same payload as JSON
	require.Len(t, res.Content, 1)
	tc, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(tc.Text), &decoded))
	assert.Equal(t, true, decoded["success"])
	assert.Equal(t, "TRD_a1b2c3d4", decoded["trade_id"])
}

func TestErrorfEnvelope(t *testing.T) {
	res := Errorf("market unavailable: %s", "timeout")
	sc := res.StructuredContent.(map[string]any)
	inner := sc["result"].(map[string]any)
	assert.Equal(t, "market unavailable: timeout", inner["error"])
}

func TestUnwrapResultFallsBackToText(t *testing.T) {
	res := &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: `{"price":67000.5}`}},
	}
	payload, err := unwrapResult("market", "get_live_price", res)
	require.NoError(t, err)
	assert.Equal(t, 67000.5, payload["price"])
}

func TestUnwrapResultScalar(t *testing.T) {
	res := Result(42.0)
	// Round trip through JSON the way a real transport would deliver it
	raw, err := json.Marshal(res.StructuredContent)
	require.NoError(t, err)
	var sc map[string]any
	require.NoError(t, json.Unmarshal(raw, &sc))
	res.StructuredContent = sc

	payload, err := unwrapResult("simulation", "anything", res)
	require.NoError(t, err)
	assert.Equal(t, 42.0, payload["result"])
}
