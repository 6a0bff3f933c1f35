package history

import (
	"strings"

	"github.com/dbv111m/tb1/internal/llm"
)

// hiddenPreamble marks context injected into user turns that should not
// show up when the history is displayed back.
const hiddenPreamble = "[Info to help you answer"

const (
	labelUser = "𝐔𝐒𝐄𝐑"
	labelBot  = "𝐁𝐎𝐓"
)

// Render projects the history to a display string. Pure: no side effects,
// the history itself is untouched.
func Render(mem []llm.Message) string {
	var b strings.Builder

	for _, m := range mem {
		role := m.Role
		switch role {
		case llm.RoleUser:
			role = labelUser
		case llm.RoleAssistant:
			role = labelBot
		}

		text := m.Content
		if m.Role == llm.RoleUser && strings.HasPrefix(text, hiddenPreamble) {
			if end := strings.Index(text, "]"); end >= 0 {
				text = strings.TrimSpace(text[end+1:])
			}
		}

		b.WriteString(role)
		b.WriteString(": ")
		b.WriteString(text)
		b.WriteString("\n")
		if role == labelBot {
			b.WriteString("\n")
		}
	}

	return b.String()
}
