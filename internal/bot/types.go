package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/dbv111m/tb1/internal/chat"
	"github.com/dbv111m/tb1/internal/keypool"
	"github.com/dbv111m/tb1/internal/stt"
)

type Bot interface {
	Start(ctx context.Context) error
	Send(chatID int64, message string) error
}

type Config struct {
	Provider string
	Token    string
}

// Services collects everything a front end forwards requests into.
type Services struct {
	Chat     *chat.Chat
	STT      *stt.Service
	Pool     *keypool.Pool
	Registry *keypool.SQLRegistry
}

type telegram struct {
	api *tgbotapi.BotAPI
	svc Services
}
