package bot

import "github.com/dbv111m/tb1/internal/chat"

// chatOptions are shared across front ends; per-turn overrides come from
// user commands later if needed.
func chatOptions() chat.SendOptions {
	return chat.SendOptions{}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}

	return s[:max] + "..."
}
