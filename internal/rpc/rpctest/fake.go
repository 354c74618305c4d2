// Package rpctest provides test doubles for the rpc package.
package rpctest

import (
	"context"
	"fmt"
	"sync"
)

// Call records one tool call made against the fake
type Call struct {
	Service string
	Tool    string
	Args    map[string]any
}

// FakeCaller implements rpc.Caller with scripted responses. Tests register
// responses or handlers per "service.tool" key and inspect recorded calls.
type FakeCaller struct {
	mu        sync.Mutex
	responses map[string]map[string]any
	errors    map[string]error
	handlers  map[string]func(args map[string]any) (map[string]any, error)
	calls     []Call
}

// NewFakeCaller creates an empty fake
func NewFakeCaller() *FakeCaller {
	return &FakeCaller{
		responses: make(map[string]map[string]any),
		errors:    make(map[string]error),
		handlers:  make(map[string]func(args map[string]any) (map[string]any, error)),
	}
}

func key(service, tool string) string {
	return service + "." + tool
}

// Respond scripts a fixed payload for a service/tool pair
func (f *FakeCaller) Respond(service, tool string, payload map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[key(service, tool)] = payload
}

// Fail scripts an error for a service/tool pair
func (f *FakeCaller) Fail(service, tool string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors[key(service, tool)] = err
}

// Handle scripts a dynamic handler for a service/tool pair
func (f *FakeCaller) Handle(service, tool string, h func(args map[string]any) (map[string]any, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[key(service, tool)] = h
}

// Call implements rpc.Caller
func (f *FakeCaller) Call(_ context.Context, service, tool string, args map[string]any) (map[string]any, error) {
	f.mu.Lock()
	f.calls = append(f.calls, Call{Service: service, Tool: tool, Args: args})
	h, hasHandler := f.handlers[key(service, tool)]
	err, hasErr := f.errors[key(service, tool)]
	payload, hasPayload := f.responses[key(service, tool)]
	f.mu.Unlock()

	if hasHandler {
		return h(args)
	}
	if hasErr {
		return nil, err
	}
	if hasPayload {
		return payload, nil
	}
	return nil, fmt.Errorf("no scripted response for %s.%s", service, tool)
}

// Calls returns a copy of all recorded calls
func (f *FakeCaller) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallsTo returns recorded calls for one service/tool pair
func (f *FakeCaller) CallsTo(service, tool string) []Call {
	var out []Call
	for _, c := range f.Calls() {
		if c.Service == service && c.Tool == tool {
			out = append(out, c)
		}
	}
	return out
}

// Reset clears recorded calls but keeps scripted responses
func (f *FakeCaller) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}
