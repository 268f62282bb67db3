package monitoring

import (
	"context"

	"github.com/ngoclaw/sitebot/internal/domain/service"
)

// InstrumentedLLM wraps an LLMClient and records every call on a Monitor.
type InstrumentedLLM struct {
	next    service.LLMClient
	monitor *Monitor
}

// NewInstrumentedLLM decorates next with call/token/failure counting.
func NewInstrumentedLLM(next service.LLMClient, monitor *Monitor) *InstrumentedLLM {
	return &InstrumentedLLM{next: next, monitor: monitor}
}

var _ service.LLMClient = (*InstrumentedLLM)(nil)

// Generate forwards to the wrapped client.
func (c *InstrumentedLLM) Generate(ctx context.Context, req *service.LLMRequest) (*service.LLMResponse, error) {
	resp, err := c.next.Generate(ctx, req)
	tokens := 0
	if resp != nil {
		tokens = resp.TokensUsed
	}
	c.monitor.RecordModelCall(tokens, err)
	return resp, err
}
