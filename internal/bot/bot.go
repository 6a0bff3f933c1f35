package bot

import "fmt"

func New(cfg Config, svc Services) (Bot, error) {
	switch cfg.Provider {
	case "telegram":
		return newTelegram(cfg.Token, svc)
	case "discord":
		return newDiscord(cfg.Token, svc)
	default:
		return nil, fmt.Errorf("unknown bot provider: %s", cfg.Provider)
	}
}
