// Package telegram runs the requirements interview inside a Telegram chat.
// Every chat is mapped to its own interview session.
package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"reqgather/internal/auth"
	"reqgather/internal/interview"
	"reqgather/internal/output"
	"reqgather/internal/session"
)

const (
	chatKeyPrefix = "telegram:chat:"
	maxMessageLen = 4000
)

const (
	msgDenied     = "⛔ You are not on the access list for this bot."
	msgHelp       = "Send /start to begin a requirements interview, then answer each question. /reset starts over."
	msgInProgress = "The interview is already running. Please answer the last question, or send /reset to start over."
	msgCompleted  = "This interview is already complete. Send /reset to start a new one."
	msgBranding   = "This deployment needs a company profile before the interview can start. Ask an operator to submit it through POST /v1/branding."
	msgTextOnly   = "Please answer with a text message."
	msgFailed     = "Sorry, something went wrong. Please send your answer again."
	msgReset      = "🔄 Interview reset. Send /start to begin again."
)

// Interview is the part of the engine the bot drives.
type Interview interface {
	Turn(ctx context.Context, req interview.TurnRequest) (interview.TurnResponse, error)
	Reset(ctx context.Context, id string) error
}

type Bot struct {
	api     botAPI
	authSvc *auth.Service
	engine  Interview
	chats   session.KV
	log     *zap.Logger
}

func New(botToken string, authSvc *auth.Service, engine Interview, chats session.KV, log *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, err
	}
	return newBot(api, authSvc, engine, chats, log), nil
}

func newBot(api botAPI, authSvc *auth.Service, engine Interview, chats session.KV, log *zap.Logger) *Bot {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bot{api: api, authSvc: authSvc, engine: engine, chats: chats, log: log}
}

// Start polls for updates until ctx is done.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)
	b.log.Info("🤖 telegram bot started")
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message != nil {
				b.handleIncomingMessage(ctx, update.Message)
			}
		}
	}
}

func (b *Bot) handleIncomingMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	log := b.log.With(zap.Int64("user_id", msg.From.ID), zap.String("username", msg.From.UserName))
	if !b.authSvc.IsAllowed(msg.From.ID) {
		log.Warn("unauthorized access attempt")
		b.sendMessage(msg.Chat.ID, msgDenied)
		return
	}

	chatID := msg.Chat.ID
	switch {
	case msg.IsCommand() && msg.Command() == "start":
		b.turn(ctx, log, chatID, nil)
	case msg.IsCommand() && msg.Command() == "reset":
		b.reset(ctx, log, chatID)
	case msg.IsCommand():
		b.sendMessage(chatID, msgHelp)
	case strings.TrimSpace(msg.Text) == "":
		// Stickers, photos and other non-text messages are not answers.
		b.sendMessage(chatID, msgTextOnly)
	default:
		text := msg.Text
		b.turn(ctx, log, chatID, &text)
	}
}

func (b *Bot) turn(ctx context.Context, log *zap.Logger, chatID int64, answer *string) {
	id, err := b.sessionFor(ctx, chatID)
	if err != nil {
		log.Error("❌ failed to resolve chat session", zap.Error(err))
		b.sendMessage(chatID, msgFailed)
		return
	}
	resp, err := b.engine.Turn(ctx, interview.TurnRequest{SessionID: id, Answer: answer})
	if err != nil {
		b.sendMessage(chatID, b.describeError(log, err))
		return
	}
	b.sendMessage(chatID, render(resp))
}

func (b *Bot) reset(ctx context.Context, log *zap.Logger, chatID int64) {
	id, err := b.sessionFor(ctx, chatID)
	if err == nil {
		err = b.engine.Reset(ctx, id)
	}
	if err == nil {
		err = b.chats.Delete(ctx, chatKey(chatID))
	}
	if err != nil {
		log.Error("❌ reset failed", zap.Error(err))
		b.sendMessage(chatID, msgFailed)
		return
	}
	b.sendMessage(chatID, msgReset)
}

// sessionFor returns the interview session of a chat, creating one on first
// use. Reset drops the mapping so the next interview gets a fresh id.
func (b *Bot) sessionFor(ctx context.Context, chatID int64) (string, error) {
	raw, err := b.chats.Get(ctx, chatKey(chatID))
	if err == nil {
		return string(raw), nil
	}
	if !errors.Is(err, session.ErrNotFound) {
		return "", err
	}
	id := "tg-" + strconv.FormatInt(chatID, 10) + "-" + uuid.NewString()[:8]
	if err := b.chats.Set(ctx, chatKey(chatID), []byte(id), 0); err != nil {
		return "", err
	}
	return id, nil
}

func (b *Bot) describeError(log *zap.Logger, err error) string {
	switch {
	case errors.Is(err, interview.ErrUnexpectedAnswer):
		return msgHelp
	case errors.Is(err, interview.ErrAnswerRequired):
		return msgInProgress
	case errors.Is(err, interview.ErrSessionCompleted):
		return msgCompleted
	case errors.Is(err, interview.ErrBrandingRequired):
		return msgBranding
	}
	log.Error("❌ interview turn failed", zap.Error(err))
	return msgFailed
}

func render(resp interview.TurnResponse) string {
	if resp.Status != output.StatusComplete {
		return resp.Question
	}
	raw, err := json.MarshalIndent(resp.Requirements, "", "  ")
	if err != nil {
		return "✅ Requirements captured."
	}
	text := fmt.Sprintf("✅ Requirements captured.\n\n%s", raw)
	if r := []rune(text); len(r) > maxMessageLen {
		text = string(r[:maxMessageLen]) + "…"
	}
	return text
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		b.log.Warn("failed to send message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func chatKey(chatID int64) string { return chatKeyPrefix + strconv.FormatInt(chatID, 10) }
