package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/dbv111m/tb1/internal/logger"
)

type discord struct {
	session *discordgo.Session
	svc     Services
	ctx     context.Context
}

func newDiscord(token string, svc Services) (Bot, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}

	d := &discord{session: session, svc: svc}
	session.AddHandler(d.handleMessage)

	return d, nil
}

func (d *discord) Start(ctx context.Context) error {
	d.ctx = ctx

	if err := d.session.Open(); err != nil {
		return err
	}

	<-ctx.Done()
	return d.session.Close()
}

func (d *discord) Send(chatID int64, message string) error {
	channelID := fmt.Sprintf("%d", chatID)
	_, err := d.session.ChannelMessageSend(channelID, message)
	if err != nil {
		logger.Error("discord send failed", "error", err, "channelID", channelID)
	}
	return err
}

func (d *discord) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author.ID == s.State.User.ID {
		return
	}

	sessionID := fmt.Sprintf("discord:%s", m.ChannelID)
	text := m.Content

	switch {
	case text == "!reset":
		if err := d.svc.Chat.Reset(sessionID); err != nil {
			logger.Error("reset failed", "session", sessionID, "error", err)
			return
		}
		d.replyTo(s, m, "Memory cleared.")
		return
	case text == "!undo":
		if err := d.svc.Chat.Undo(sessionID); err != nil {
			logger.Error("undo failed", "session", sessionID, "error", err)
			return
		}
		d.replyTo(s, m, "Last turn removed.")
		return
	case text == "!mem":
		rendered, err := d.svc.Chat.HistoryAsText(sessionID)
		if err != nil {
			logger.Error("history render failed", "session", sessionID, "error", err)
			return
		}
		if rendered == "" {
			rendered = "Memory is empty."
		}
		d.replyTo(s, m, rendered)
		return
	case strings.HasPrefix(text, "!key "):
		key := strings.TrimSpace(strings.TrimPrefix(text, "!key "))
		if err := d.svc.Registry.Put(sessionID, key); err != nil {
			logger.Error("key save failed", "session", sessionID, "error", err)
			return
		}
		if err := d.svc.Pool.Reload(); err != nil {
			logger.Error("pool reload failed", "error", err)
		}
		d.replyTo(s, m, "Key added to the shared pool, thank you.")
		return
	}

	logger.Info("message received", "session", sessionID, "from", m.Author.Username, "text", truncate(text, 50))

	response := d.svc.Chat.Send(d.ctx, sessionID, text, chatOptions())
	if response == "" {
		response = "No answer available, try again later."
	}

	d.replyTo(s, m, response)
}

func (d *discord) replyTo(s *discordgo.Session, m *discordgo.MessageCreate, text string) {
	if _, err := s.ChannelMessageSendReply(m.ChannelID, text, m.Reference()); err != nil {
		logger.Error("discord reply failed", "error", err)
	}
}
