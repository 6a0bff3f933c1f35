package chat

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/dbv111m/tb1/internal/history"
	"github.com/dbv111m/tb1/internal/llm"
	"github.com/dbv111m/tb1/internal/logger"
)

// Request describes one stateless dispatch. History is borrowed: the
// dispatcher never mutates the caller's slice.
type Request struct {
	Prompt      string
	System      string
	History     []llm.Message
	Model       string
	Temperature float64
	MaxTokens   int
	Key         string
	Timeout     time.Duration
}

// Ask drives the request/fallback state machine and always returns plain
// text: either a usable answer or "". Provider failures never escape this
// boundary.
func (c *Chat) Ask(ctx context.Context, req Request) (text string) {
	defer func() {
		if r := recover(); r != nil {
			c.recordFailure(req, "internal", r)
			text = ""
		}
	}()

	base := req.Temperature
	if base <= 0 {
		base = 1
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.opts.MaxTokens
	}
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.opts.Timeout
	}

	temp := base

tier:
	for m := c.models.Get(req.Model); m != nil; m = m.Fallback {
		messages := assemble(req, m)
		if len(messages) == 0 {
			return ""
		}

		effective := c.opts.Policy.ForModel(m, temp)

		var keys []string
		if req.Key != "" {
			keys = []string{req.Key}
		} else {
			keys = c.pool.Sample(c.opts.SampleSize)
		}

		for _, key := range keys {
			callCtx, cancel := context.WithTimeout(ctx, timeout)
			resp, err := c.completer.Complete(callCtx, key, llm.CompletionRequest{
				Model:       m.Name,
				Messages:    messages,
				Temperature: effective,
				MaxTokens:   maxTokens,
			})
			cancel()

			if err != nil {
				switch kind := llm.Classify(err); kind {
				case llm.KindInvalidKey:
					c.pool.Remove(key)
				case llm.KindPermissionDenied:
					logger.Warn("key lacks permission", "model", m.Name)
				case llm.KindRateLimited, llm.KindTransient:
					logger.Debug("retrying with next key", "model", m.Name, "kind", kind.String())
				default:
					logger.Warn("provider error", "model", m.Name, "error", err)
				}
				continue
			}

			if resp == "" {
				// an empty answer moves down the chain; the terminal
				// tier just tries the remaining keys
				if m.Fallback != nil {
					temp = c.opts.Policy.OnFallback(effective)
					continue tier
				}
				continue
			}

			return resp
		}

		// candidate keys exhausted without any response: errors do not
		// trigger fallback
		break
	}

	c.recordFailure(req, "exhausted", nil)
	return ""
}

// assemble builds the wire message sequence for one tier: system first,
// then history, then the new user turn, trimmed to the tier's budget.
func assemble(req Request, m *Model) []llm.Message {
	messages := make([]llm.Message, 0, len(req.History)+2)
	if req.System != "" {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: req.System})
	}
	messages = append(messages, req.History...)
	if req.Prompt != "" {
		messages = append(messages, llm.Message{Role: llm.RoleUser, Content: req.Prompt})
	}

	if len(messages) == 0 || (len(messages) == 1 && messages[0].Role == llm.RoleSystem) {
		return nil
	}

	return history.TrimToBudget(messages, m.ContextBudget)
}

func (c *Chat) recordFailure(req Request, reason string, detail any) {
	snapshot, _ := json.Marshal(req.History)
	logger.Error("dispatch failed",
		"id", uuid.NewString(),
		"reason", reason,
		"detail", detail,
		"prompt", req.Prompt,
		"system", req.System,
		"history", string(snapshot),
		"model", req.Model,
		"temperature", req.Temperature,
		"max_tokens", req.MaxTokens,
	)
}
