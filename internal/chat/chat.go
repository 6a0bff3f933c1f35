// Package chat is the dispatcher: it multiplexes shared credentials over
// remote completion calls, serializes per-conversation turns, and walks
// the model fallback chain when a tier yields nothing usable.
package chat

import (
	"context"
	"time"

	"github.com/dbv111m/tb1/internal/history"
	"github.com/dbv111m/tb1/internal/keypool"
	"github.com/dbv111m/tb1/internal/llm"
	"github.com/dbv111m/tb1/internal/logger"
	"github.com/dbv111m/tb1/internal/session"
)

// Store is the external conversation store the dispatcher reads and
// writes through. Both operations are atomic per conversation id.
type Store interface {
	Get(chatID string) ([]llm.Message, error)
	Set(chatID string, messages []llm.Message) error
	Delete(chatID string) error
}

// TemperaturePolicy is the configurable temperature-adjustment formula:
// precise-family tiers sample at base*PreciseFactor, and each fallback
// hop multiplies the effective temperature by FallbackFactor, capped at
// Max.
type TemperaturePolicy struct {
	PreciseFactor  float64
	FallbackFactor float64
	Max            float64
}

func (p TemperaturePolicy) ForModel(m *Model, temp float64) float64 {
	if m.Precise {
		return temp * p.PreciseFactor
	}
	return temp
}

func (p TemperaturePolicy) OnFallback(effective float64) float64 {
	next := effective * p.FallbackFactor
	if next > p.Max {
		next = p.Max
	}
	return next
}

type Options struct {
	MaxTurns   int
	MaxTokens  int
	SampleSize int
	Timeout    time.Duration
	Policy     TemperaturePolicy
}

func (o Options) withDefaults() Options {
	if o.MaxTurns <= 0 {
		o.MaxTurns = 20
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = 4000
	}
	if o.SampleSize <= 0 {
		o.SampleSize = 4
	}
	if o.Timeout <= 0 {
		o.Timeout = 180 * time.Second
	}
	if o.Policy.PreciseFactor <= 0 {
		o.Policy.PreciseFactor = 0.5
	}
	if o.Policy.FallbackFactor <= 0 {
		o.Policy.FallbackFactor = 2
	}
	if o.Policy.Max <= 0 {
		o.Policy.Max = 2
	}
	return o
}

type Chat struct {
	pool      *keypool.Pool
	sessions  *session.Store
	store     Store
	completer llm.Completer
	models    *ModelRegistry
	opts      Options
}

func New(pool *keypool.Pool, store Store, completer llm.Completer, models *ModelRegistry, opts Options) *Chat {
	return &Chat{
		pool:      pool,
		sessions:  session.NewStore(),
		store:     store,
		completer: completer,
		models:    models,
		opts:      opts.withDefaults(),
	}
}

// SendOptions tune one conversational turn. Zero values mean defaults.
type SendOptions struct {
	System      string
	Model       string
	Temperature float64
	Timeout     time.Duration
	NoMemory    bool
}

// Send runs one conversation turn: fetch history, dispatch, append the
// new turn and persist, all under the conversation's lock, so concurrent
// messages to the same id apply in lock-acquisition order. The reply is
// empty when no usable answer could be produced.
func (c *Chat) Send(ctx context.Context, chatID, query string, opt SendOptions) string {
	sess := c.sessions.Get(chatID)
	sess.Lock()
	defer sess.Unlock()

	mem, err := c.store.Get(chatID)
	if err != nil {
		logger.Error("failed to read history", "chat", chatID, "error", err)
		mem = nil
	}

	resp := c.Ask(ctx, Request{
		Prompt:      query,
		System:      opt.System,
		History:     mem,
		Model:       opt.Model,
		Temperature: opt.Temperature,
		Timeout:     opt.Timeout,
	})

	if resp != "" && !opt.NoMemory {
		mem = history.AppendTurn(mem, query, resp, c.opts.MaxTurns)
		if err := c.store.Set(chatID, mem); err != nil {
			logger.Error("failed to persist history", "chat", chatID, "error", err)
		}
	}

	return resp
}

// Reset replaces the stored history with an empty sequence.
func (c *Chat) Reset(chatID string) error {
	sess := c.sessions.Get(chatID)
	sess.Lock()
	defer sess.Unlock()

	return c.store.Set(chatID, []llm.Message{})
}

// Undo drops the last user/assistant pair. A no-op on histories shorter
// than one turn.
func (c *Chat) Undo(chatID string) error {
	sess := c.sessions.Get(chatID)
	sess.Lock()
	defer sess.Unlock()

	mem, err := c.store.Get(chatID)
	if err != nil {
		return err
	}

	return c.store.Set(chatID, history.DropLastTurn(mem))
}

// HistoryAsText renders the stored history for display.
func (c *Chat) HistoryAsText(chatID string) (string, error) {
	mem, err := c.store.Get(chatID)
	if err != nil {
		return "", err
	}
	return history.Render(mem), nil
}
