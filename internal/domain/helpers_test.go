package domain_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/davidbz/freeroute/internal/domain"
	"github.com/davidbz/freeroute/internal/mocks"
	"github.com/davidbz/freeroute/internal/store/memory"
)

// fakeClock is a manually advanced clock shared by the services under test.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func freeModel(id string, contextLength int) domain.RemoteModel {
	return domain.RemoteModel{
		ID:            id,
		Name:          id,
		ContextLength: contextLength,
		Pricing:       &domain.RemotePrice{Prompt: "0", Completion: "0"},
	}
}

func paidModel(id string, contextLength int, prompt, completion string) domain.RemoteModel {
	return domain.RemoteModel{
		ID:            id,
		Name:          id,
		ContextLength: contextLength,
		Pricing:       &domain.RemotePrice{Prompt: prompt, Completion: completion},
	}
}

func completion(content string) *domain.ChatCompletionResponse {
	return &domain.ChatCompletionResponse{
		ID: "gen-1",
		Choices: []domain.Choice{{
			Message:      domain.Message{Role: domain.RoleAssistant, Content: content},
			FinishReason: "stop",
		}},
		Usage: &domain.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}
}

func userTask(content string) *domain.TaskRequest {
	return &domain.TaskRequest{
		Messages: []domain.Message{{Role: domain.RoleUser, Content: content}},
	}
}

// stack is a fully wired router over a mock transport.
type stack struct {
	transport *mocks.MockTransport
	clock     *fakeClock
	counters  *memory.CounterStore
	events    *memory.EventLog
	catalog   *domain.CatalogService
	quota     *domain.QuotaTracker
	telemetry *domain.Telemetry
	policy    *domain.PolicyEngine
	executor  *domain.Executor
}

type stackOptions struct {
	quota   domain.QuotaConfig
	policy  domain.RoutingPolicy
	config  domain.ExecutionConfig
	useFake bool
}

func defaultStackOptions() stackOptions {
	return stackOptions{
		quota:  domain.QuotaConfig{RPMLimit: 20, RPDLimit: 1000},
		policy: domain.DefaultRoutingPolicy(),
		config: domain.ExecutionConfig{
			MaxFailovers:   3,
			MaxRetries:     3,
			MaxTotalTime:   time.Minute,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     2 * time.Millisecond,
		},
	}
}

// newStack wires every service. models is returned by the first ListModels call
// and any later call not otherwise expected.
func newStack(t *testing.T, opts stackOptions, models ...domain.RemoteModel) *stack {
	t.Helper()

	s := &stack{
		transport: mocks.NewMockTransport(t),
		clock:     newFakeClock(),
		counters:  memory.NewCounterStore(),
		events:    memory.NewEventLog(memory.DefaultEventCapacity),
	}

	clockOpts := []domain.Option{}
	if opts.useFake {
		clockOpts = append(clockOpts, domain.WithClock(s.clock.Now))
	}

	if models != nil {
		s.transport.EXPECT().ListModels(mock.Anything).Return(models, nil).Maybe()
	}

	s.catalog = domain.NewCatalogService(s.transport, 60, clockOpts...)
	s.quota = domain.NewQuotaTracker(s.counters, opts.quota, clockOpts...)
	s.telemetry = domain.NewTelemetry(s.events, nil, clockOpts...)
	s.policy = domain.NewPolicyEngine(s.catalog, s.telemetry, opts.policy)
	s.executor = domain.NewExecutor(s.transport, s.policy, s.quota, s.telemetry, s.catalog, opts.config, clockOpts...)
	return s
}

func countEvents(events []domain.TelemetryEvent, eventType domain.EventType) int {
	n := 0
	for _, e := range events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

func boolPtr(v bool) *bool {
	return &v
}
