// Package history holds the pure transformations applied to conversation
// memory: turn appending with trimming, adjacent-duplicate suppression,
// context-budget trimming and display rendering.
package history

import "github.com/dbv111m/tb1/internal/llm"

// AppendTurn appends one user/assistant turn, keeps at most maxTurns of
// the most recent turns, and suppresses adjacent duplicates. Duplicate
// suppression is part of the history contract, not a one-off workaround:
// retried sends have been seen doubling whole turns.
func AppendTurn(mem []llm.Message, userText, assistantText string, maxTurns int) []llm.Message {
	out := make([]llm.Message, 0, len(mem)+2)
	out = append(out, mem...)
	out = append(out,
		llm.Message{Role: llm.RoleUser, Content: userText},
		llm.Message{Role: llm.RoleAssistant, Content: assistantText},
	)

	if maxTurns > 0 && len(out) > maxTurns*2 {
		out = out[len(out)-maxTurns*2:]
	}

	return DedupeAdjacent(out)
}

// DedupeAdjacent drops every message structurally identical to its
// immediate predecessor, keeping the first occurrence. Idempotent.
func DedupeAdjacent(mem []llm.Message) []llm.Message {
	if len(mem) < 2 {
		return mem
	}

	out := make([]llm.Message, 0, len(mem))
	for i, m := range mem {
		if i > 0 && m == mem[i-1] {
			continue
		}
		out = append(out, m)
	}

	return out
}

// DropLastTurn removes the trailing user/assistant pair. Histories with
// fewer than two messages are returned unchanged.
func DropLastTurn(mem []llm.Message) []llm.Message {
	if len(mem) < 2 {
		return mem
	}
	return mem[:len(mem)-2]
}

// Size is the character count of all message content. Context limits are
// really token budgets, but characters are the stable approximation the
// limits were tuned against.
func Size(mem []llm.Message) int {
	total := 0
	for _, m := range mem {
		total += len(m.Content)
	}
	return total
}

// TrimToBudget drops the oldest user/assistant pair until the history fits
// the budget. A system message in position 0 is never dropped. The newest
// message always survives, even when it alone exceeds the budget.
func TrimToBudget(mem []llm.Message, budget int) []llm.Message {
	if budget <= 0 {
		return mem
	}

	for Size(mem) > budget {
		if len(mem) > 0 && mem[0].Role == llm.RoleSystem {
			if len(mem) < 4 {
				break
			}
			trimmed := make([]llm.Message, 0, len(mem)-2)
			trimmed = append(trimmed, mem[0])
			trimmed = append(trimmed, mem[3:]...)
			mem = trimmed
		} else {
			if len(mem) < 3 {
				break
			}
			mem = mem[2:]
		}
	}

	return mem
}
