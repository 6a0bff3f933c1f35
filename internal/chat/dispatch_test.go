package chat

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dbv111m/tb1/internal/config"
	"github.com/dbv111m/tb1/internal/keypool"
	"github.com/dbv111m/tb1/internal/llm"
)

type stubCall struct {
	Key         string
	Model       string
	Temperature float64
	Messages    []llm.Message
}

// stubCompleter records every call and answers through respond.
type stubCompleter struct {
	mu      sync.Mutex
	calls   []stubCall
	respond func(call stubCall) (string, error)
}

func (s *stubCompleter) Complete(_ context.Context, key string, req llm.CompletionRequest) (string, error) {
	call := stubCall{Key: key, Model: req.Model, Temperature: req.Temperature, Messages: req.Messages}
	s.mu.Lock()
	s.calls = append(s.calls, call)
	s.mu.Unlock()
	return s.respond(call)
}

func (s *stubCompleter) recorded() []stubCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]stubCall(nil), s.calls...)
}

type memRegistry struct {
	mu   sync.Mutex
	keys map[string]string
}

func (r *memRegistry) All() (map[string]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]string, len(r.keys))
	for u, k := range r.keys {
		out[u] = k
	}
	return out, nil
}

func (r *memRegistry) Remove(key string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var users []string
	for u, k := range r.keys {
		if k == key {
			users = append(users, u)
			delete(r.keys, u)
		}
	}
	return users, nil
}

type memStore struct {
	mu   sync.Mutex
	data map[string][]llm.Message
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]llm.Message)}
}

func (s *memStore) Get(chatID string) ([]llm.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]llm.Message(nil), s.data[chatID]...), nil
}

func (s *memStore) Set(chatID string, messages []llm.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[chatID] = append([]llm.Message(nil), messages...)
	return nil
}

func (s *memStore) Delete(chatID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, chatID)
	return nil
}

func testModels(t *testing.T) *ModelRegistry {
	t.Helper()
	models, err := NewModelRegistry(&config.ModelsFile{
		Default: "alpha",
		Models: []config.ModelSpec{
			{Name: "alpha", ContextBudget: 50000, Precise: true, Fallback: "beta"},
			{Name: "beta", ContextBudget: 50000, Fallback: "gamma"},
			{Name: "gamma", ContextBudget: 10000},
		},
	})
	if err != nil {
		t.Fatalf("failed to build model registry: %v", err)
	}
	return models
}

func newTestChat(t *testing.T, keys []string, respond func(stubCall) (string, error)) (*Chat, *stubCompleter, *keypool.Pool) {
	t.Helper()

	pool := keypool.New(&memRegistry{keys: map[string]string{}}, 0)
	if err := pool.Load(keys); err != nil {
		t.Fatalf("failed to load pool: %v", err)
	}

	stub := &stubCompleter{respond: respond}
	c := New(pool, newMemStore(), stub, testModels(t), Options{SampleSize: len(keys)})
	return c, stub, pool
}

func TestAskReturnsFirstUsableResponse(t *testing.T) {
	c, stub, _ := newTestChat(t, []string{"k1"}, func(stubCall) (string, error) {
		return "an answer", nil
	})

	got := c.Ask(context.Background(), Request{Prompt: "hi"})
	if got != "an answer" {
		t.Fatalf("expected answer, got %q", got)
	}
	if len(stub.recorded()) != 1 {
		t.Errorf("expected 1 call, got %d", len(stub.recorded()))
	}
}

func TestAskFallbackChain(t *testing.T) {
	c, stub, _ := newTestChat(t, []string{"k1"}, func(call stubCall) (string, error) {
		if call.Model == "gamma" {
			return "from the smallest tier", nil
		}
		return "", nil
	})

	got := c.Ask(context.Background(), Request{Prompt: "hi"})
	if got != "from the smallest tier" {
		t.Fatalf("expected the terminal tier's answer, got %q", got)
	}

	calls := stub.recorded()
	if len(calls) != 3 {
		t.Fatalf("expected 3 calls, got %d", len(calls))
	}
	want := []string{"alpha", "beta", "gamma"}
	for i, m := range want {
		if calls[i].Model != m {
			t.Errorf("call %d used model %q, want %q", i, calls[i].Model, m)
		}
	}
}

func TestAskTerminalEmptyAccepted(t *testing.T) {
	c, stub, _ := newTestChat(t, []string{"k1", "k2"}, func(stubCall) (string, error) {
		return "", nil
	})

	got := c.Ask(context.Background(), Request{Prompt: "hi", Model: "gamma"})
	if got != "" {
		t.Fatalf("expected empty result, got %q", got)
	}

	// the terminal tier has nowhere to fall back, so remaining keys are tried
	if len(stub.recorded()) != 2 {
		t.Errorf("expected 2 calls, got %d", len(stub.recorded()))
	}
}

func TestAskKeyTaxonomy(t *testing.T) {
	// the stub answers by call order, so the assertions hold for any
	// sampling order: first key invalid, second rate-limited, third fine
	n := 0
	var invalidKey, limitedKey string
	var mu sync.Mutex
	c, _, pool := newTestChat(t, []string{"k1", "k2", "k3"}, func(call stubCall) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		n++
		switch n {
		case 1:
			invalidKey = call.Key
			return "", &llm.Failure{Kind: llm.KindInvalidKey, Status: 401, Message: "invalid api key"}
		case 2:
			limitedKey = call.Key
			return "", &llm.Failure{Kind: llm.KindRateLimited, Status: 429, Message: "rate limit reached"}
		default:
			return "made it", nil
		}
	})

	got := c.Ask(context.Background(), Request{Prompt: "hi", Model: "gamma"})
	if got != "made it" {
		t.Fatalf("expected the third key's answer, got %q", got)
	}

	if pool.Contains(invalidKey) {
		t.Errorf("invalid key %q must be removed from the pool", invalidKey)
	}
	if !pool.Contains(limitedKey) {
		t.Errorf("rate-limited key %q must stay in the pool", limitedKey)
	}
}

func TestAskPermissionDeniedKeyStays(t *testing.T) {
	c, _, pool := newTestChat(t, []string{"k1"}, func(stubCall) (string, error) {
		return "", &llm.Failure{Kind: llm.KindPermissionDenied, Status: 403, Message: "permission denied"}
	})

	if got := c.Ask(context.Background(), Request{Prompt: "hi", Model: "gamma"}); got != "" {
		t.Fatalf("expected empty result, got %q", got)
	}
	if !pool.Contains("k1") {
		t.Error("permission-denied must not remove the key")
	}
}

func TestAskTransientErrorDoesNotFallBack(t *testing.T) {
	c, stub, _ := newTestChat(t, []string{"k1", "k2"}, func(stubCall) (string, error) {
		return "", errors.New("connection reset")
	})

	if got := c.Ask(context.Background(), Request{Prompt: "hi"}); got != "" {
		t.Fatalf("expected empty result, got %q", got)
	}

	// errors exhaust keys on one tier; only empty responses walk the chain
	for _, call := range stub.recorded() {
		if call.Model != "alpha" {
			t.Errorf("errors must not trigger fallback, saw model %q", call.Model)
		}
	}
}

func TestAskExplicitKeyOverride(t *testing.T) {
	c, stub, _ := newTestChat(t, []string{"pooled"}, func(stubCall) (string, error) {
		return "ok", nil
	})

	c.Ask(context.Background(), Request{Prompt: "hi", Key: "override"})

	calls := stub.recorded()
	if len(calls) != 1 || calls[0].Key != "override" {
		t.Errorf("expected only the explicit key, got %+v", calls)
	}
}

func TestAskTemperaturePolicy(t *testing.T) {
	// pins the chosen policy: precise tiers halve the base temperature,
	// each fallback hop doubles it back, capped at 2
	c, stub, _ := newTestChat(t, []string{"k1"}, func(call stubCall) (string, error) {
		if call.Model == "beta" {
			return "done", nil
		}
		return "", nil
	})

	c.Ask(context.Background(), Request{Prompt: "hi", Temperature: 1})

	calls := stub.recorded()
	if len(calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(calls))
	}
	if calls[0].Temperature != 0.5 {
		t.Errorf("precise tier temperature = %v, want 0.5", calls[0].Temperature)
	}
	if calls[1].Temperature != 1 {
		t.Errorf("fallback tier temperature = %v, want 1", calls[1].Temperature)
	}
}

func TestAskEmptyRequest(t *testing.T) {
	c, stub, _ := newTestChat(t, []string{"k1"}, func(stubCall) (string, error) {
		return "never", nil
	})

	if got := c.Ask(context.Background(), Request{}); got != "" {
		t.Fatalf("expected empty result, got %q", got)
	}
	if len(stub.recorded()) != 0 {
		t.Error("nothing to send must not reach the provider")
	}
}

func TestAskEmptyPool(t *testing.T) {
	c, stub, _ := newTestChat(t, nil, func(stubCall) (string, error) {
		return "never", nil
	})

	if got := c.Ask(context.Background(), Request{Prompt: "hi"}); got != "" {
		t.Fatalf("expected empty result, got %q", got)
	}
	if len(stub.recorded()) != 0 {
		t.Error("an empty pool must not reach the provider")
	}
}

func TestAskAssemblyOrderAndBudget(t *testing.T) {
	long := make([]byte, 6000)
	for i := range long {
		long[i] = 'x'
	}

	var got []llm.Message
	c, _, _ := newTestChat(t, []string{"k1"}, func(call stubCall) (string, error) {
		got = call.Messages
		return "ok", nil
	})

	history := []llm.Message{
		{Role: llm.RoleUser, Content: string(long)},
		{Role: llm.RoleAssistant, Content: string(long)},
		{Role: llm.RoleUser, Content: "recent question"},
		{Role: llm.RoleAssistant, Content: "recent answer"},
	}

	c.Ask(context.Background(), Request{
		Prompt:  "now",
		System:  "be brief",
		History: history,
		Model:   "gamma", // 10000 char budget
	})

	if len(got) == 0 {
		t.Fatal("no messages sent")
	}
	if got[0].Role != llm.RoleSystem || got[0].Content != "be brief" {
		t.Errorf("system message must come first, got %+v", got[0])
	}
	if got[len(got)-1].Content != "now" {
		t.Errorf("prompt must come last, got %+v", got[len(got)-1])
	}

	total := 0
	for _, m := range got {
		total += len(m.Content)
	}
	if total > 10000 {
		t.Errorf("assembled size %d exceeds the tier budget", total)
	}
	for _, m := range got {
		if m.Content == string(long) {
			t.Error("oldest pair must have been dropped")
		}
	}
}
