package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/ngoclaw/sitebot/internal/domain/service"
)

type fakeProvider struct {
	name      string
	models    []string
	available bool
	reply     string
	err       error
	calls     int
}

func (f *fakeProvider) Name() string     { return f.name }
func (f *fakeProvider) Models() []string { return f.models }
func (f *fakeProvider) SupportsModel(model string) bool {
	if len(f.models) == 0 {
		return true
	}
	for _, m := range f.models {
		if m == model {
			return true
		}
	}
	return false
}
func (f *fakeProvider) IsAvailable(ctx context.Context) bool { return f.available }
func (f *fakeProvider) Generate(ctx context.Context, req *service.LLMRequest) (*service.LLMResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &service.LLMResponse{Content: f.reply, ModelUsed: req.Model, TokensUsed: 7}, nil
}

func request(model string) *service.LLMRequest {
	return &service.LLMRequest{
		Model:    model,
		Messages: []service.LLMMessage{{Role: "user", Content: "hello"}},
	}
}

func TestRouter_UsesFirstHealthyProvider(t *testing.T) {
	router := NewRouter(zap.NewNop())
	primary := &fakeProvider{name: "primary", available: true, reply: "from primary"}
	secondary := &fakeProvider{name: "secondary", available: true, reply: "from secondary"}
	router.AddProvider(primary)
	router.AddProvider(secondary)

	resp, err := router.Generate(context.Background(), request("gpt-4o-mini"))
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if resp.Content != "from primary" {
		t.Errorf("expected primary reply, got %q", resp.Content)
	}
	if secondary.calls != 0 {
		t.Error("secondary should not be called when primary succeeds")
	}
}

func TestRouter_FallsThroughOnFailure(t *testing.T) {
	router := NewRouter(zap.NewNop())
	broken := &fakeProvider{name: "broken", available: true, err: errors.New("503")}
	healthy := &fakeProvider{name: "healthy", available: true, reply: "ok"}
	router.AddProvider(broken)
	router.AddProvider(healthy)

	resp, err := router.Generate(context.Background(), request("m"))
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if resp.Content != "ok" {
		t.Errorf("expected healthy reply, got %q", resp.Content)
	}

	statuses := router.ListProviders(context.Background())
	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}
	if statuses[0].FailureCount != 1 || statuses[1].TotalCalls != 1 {
		t.Errorf("unexpected stats: %+v", statuses)
	}
}

func TestRouter_SkipsUnavailableAndUnsupported(t *testing.T) {
	router := NewRouter(zap.NewNop())
	offline := &fakeProvider{name: "offline", available: false, reply: "x"}
	other := &fakeProvider{name: "other", available: true, models: []string{"llama3.2"}, reply: "y"}
	router.AddProvider(offline)
	router.AddProvider(other)

	_, err := router.Generate(context.Background(), request("gpt-4o-mini"))
	if err == nil {
		t.Fatal("expected error when no provider can serve the model")
	}
	if !strings.Contains(err.Error(), "no provider available") {
		t.Errorf("unexpected error: %v", err)
	}
	if offline.calls != 0 || other.calls != 0 {
		t.Error("no provider should have been called")
	}
}

func TestRouter_AllFailing(t *testing.T) {
	router := NewRouter(zap.NewNop())
	router.AddProvider(&fakeProvider{name: "a", available: true, err: errors.New("boom")})

	_, err := router.Generate(context.Background(), request("m"))
	if err == nil || !strings.Contains(err.Error(), "all providers failed") {
		t.Fatalf("expected all-failed error, got %v", err)
	}
}

func TestRouter_OpenCircuitSkipsProvider(t *testing.T) {
	router := NewRouter(zap.NewNop())
	broken := &fakeProvider{name: "broken", available: true, err: errors.New("down")}
	router.AddProvider(broken)

	for i := 0; i < DefaultFailureThreshold; i++ {
		_, _ = router.Generate(context.Background(), request("m"))
	}
	if broken.calls != DefaultFailureThreshold {
		t.Fatalf("expected %d calls, got %d", DefaultFailureThreshold, broken.calls)
	}

	_, err := router.Generate(context.Background(), request("m"))
	if err == nil {
		t.Fatal("expected error with open circuit")
	}
	if broken.calls != DefaultFailureThreshold {
		t.Error("open circuit should prevent further calls")
	}
	if state := router.ListProviders(context.Background())[0].CircuitState; state != "open" {
		t.Errorf("expected open circuit, got %s", state)
	}
}

func TestRouter_CancelledContext(t *testing.T) {
	router := NewRouter(zap.NewNop())
	p := &fakeProvider{name: "p", available: true, reply: "x"}
	router.AddProvider(p)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := router.Generate(ctx, request("m")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if p.calls != 0 {
		t.Error("provider should not be called with a cancelled context")
	}
}

func TestCreateProvider_UnknownType(t *testing.T) {
	if _, err := CreateProvider(ProviderConfig{Name: "x", Type: "grpc"}, zap.NewNop()); err == nil {
		t.Fatal("expected error for unknown provider type")
	}
}

func TestSortByPriority(t *testing.T) {
	sorted := SortByPriority([]ProviderConfig{
		{Name: "c", Priority: 3},
		{Name: "a1", Priority: 1},
		{Name: "a2", Priority: 1},
	})
	got := []string{sorted[0].Name, sorted[1].Name, sorted[2].Name}
	want := []string{"a1", "a2", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}
