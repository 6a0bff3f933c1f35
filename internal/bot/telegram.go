package bot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/dbv111m/tb1/internal/logger"
	"github.com/dbv111m/tb1/internal/stt"
)

const maxAudioSize = 20 * 1024 * 1024

func newTelegram(token string, svc Services) (Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	return &telegram{api: api, svc: svc}, nil
}

func (t *telegram) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := t.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update := <-updates:
			if update.Message == nil {
				continue
			}

			go t.handleMessage(ctx, update.Message)
		}
	}
}

func (t *telegram) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	sessionID := fmt.Sprintf("telegram:%d", msg.Chat.ID)

	if msg.IsCommand() {
		t.handleCommand(sessionID, msg)
		return
	}

	text := msg.Text

	if msg.Voice != nil || msg.Audio != nil {
		fileID := ""
		if msg.Voice != nil {
			fileID = msg.Voice.FileID
		} else {
			fileID = msg.Audio.FileID
		}

		audio, err := t.downloadFile(fileID)
		if err != nil {
			logger.Error("failed to download audio", "error", err)
			t.reply(msg, "Could not read the audio.")
			return
		}

		text = t.svc.STT.Transcribe(ctx, audio, stt.Params{Language: msg.From.LanguageCode})
		if text == "" {
			t.reply(msg, "Could not transcribe the audio.")
			return
		}
		logger.Info("voice transcribed", "session", sessionID, "chars", len(text))
	}

	if text == "" {
		return
	}

	logger.Info("message received", "session", sessionID, "from", msg.From.UserName, "text", truncate(text, 50))

	t.sendTyping(msg.Chat.ID)

	response := t.svc.Chat.Send(ctx, sessionID, text, chatOptions())
	if response == "" {
		response = "No answer available, try again later."
	}

	t.reply(msg, response)
}

func (t *telegram) handleCommand(sessionID string, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "start":
		t.reply(msg, "Hello, I am an AI chat bot. Ask me anything, send text or voice messages.")
	case "reset":
		if err := t.svc.Chat.Reset(sessionID); err != nil {
			logger.Error("reset failed", "session", sessionID, "error", err)
			t.reply(msg, "Reset failed.")
			return
		}
		t.reply(msg, "Memory cleared.")
	case "undo":
		if err := t.svc.Chat.Undo(sessionID); err != nil {
			logger.Error("undo failed", "session", sessionID, "error", err)
			t.reply(msg, "Undo failed.")
			return
		}
		t.reply(msg, "Last turn removed.")
	case "mem":
		text, err := t.svc.Chat.HistoryAsText(sessionID)
		if err != nil {
			logger.Error("history render failed", "session", sessionID, "error", err)
			return
		}
		if text == "" {
			text = "Memory is empty."
		}
		t.reply(msg, text)
	case "key":
		key := strings.TrimSpace(msg.CommandArguments())
		if key == "" {
			t.reply(msg, "Usage: /key <api key>. Your key joins the shared pool.")
			return
		}
		if err := t.svc.Registry.Put(sessionID, key); err != nil {
			logger.Error("key save failed", "session", sessionID, "error", err)
			t.reply(msg, "Could not save the key.")
			return
		}
		if err := t.svc.Pool.Reload(); err != nil {
			logger.Error("pool reload failed", "error", err)
		}
		t.reply(msg, "Key added to the shared pool, thank you.")
	default:
		t.reply(msg, "Unknown command.")
	}
}

func (t *telegram) reply(msg *tgbotapi.Message, text string) {
	reply := tgbotapi.NewMessage(msg.Chat.ID, text)
	reply.ReplyToMessageID = msg.MessageID

	if _, err := t.api.Send(reply); err != nil {
		logger.Error("send failed", "error", err)
	}
}

func (t *telegram) sendTyping(chatID int64) {
	action := tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)
	if _, err := t.api.Request(action); err != nil {
		logger.Debug("typing action failed", "error", err)
	}
}

func (t *telegram) Send(chatID int64, message string) error {
	msg := tgbotapi.NewMessage(chatID, message)
	_, err := t.api.Send(msg)
	if err != nil {
		logger.Error("proactive send failed", "error", err, "chatID", chatID)
	}
	return err
}

func (t *telegram) downloadFile(fileID string) ([]byte, error) {
	file, err := t.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, err
	}

	url := file.Link(t.api.Token)

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}

	return io.ReadAll(io.LimitReader(resp.Body, maxAudioSize))
}
