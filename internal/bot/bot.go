// Package bot answers /start deep links by consuming the start token and
// pointing the visitor at the link's destination.
package bot

import (
	"context"
	"errors"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"chanlinks-go/internal/tracking"
)

const (
	textWelcome  = "Hi! Open a tracking link to continue."
	textOpen     = "Your link is ready."
	textGone     = "This link is no longer available."
	textUsed     = "This link has already been used."
	textFailed   = "Something went wrong. Please try the link again later."
	buttonOpen   = "Open"
	pollTimeout  = 60
	startCommand = "start"
)

// Sender delivers messages to Telegram; *tgbotapi.BotAPI satisfies it
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TokenConsumer completes the hand-off for a start token
type TokenConsumer interface {
	ConsumeToken(ctx context.Context, token string, visitorID *int64) (*tracking.Destination, error)
}

type Dispatcher struct {
	sender   Sender
	consumer TokenConsumer
}

func NewDispatcher(sender Sender, consumer TokenConsumer) *Dispatcher {
	return &Dispatcher{
		sender:   sender,
		consumer: consumer,
	}
}

// Run long-polls updates until ctx is cancelled
func (d *Dispatcher) Run(ctx context.Context, api *tgbotapi.BotAPI) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeout
	updates := api.GetUpdatesChan(u)

	log.Info().
		Str("bot", api.Self.UserName).
		Msg("Bot dispatcher started")

	for {
		select {
		case <-ctx.Done():
			api.StopReceivingUpdates()
			log.Info().Msg("Bot dispatcher stopped")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			d.HandleUpdate(ctx, update)
		}
	}
}

// HandleUpdate answers /start commands; everything else is ignored
func (d *Dispatcher) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || !msg.IsCommand() || msg.Command() != startCommand {
		return
	}

	token := strings.TrimSpace(msg.CommandArguments())
	if token == "" {
		d.reply(tgbotapi.NewMessage(msg.Chat.ID, textWelcome))
		return
	}

	var visitorID *int64
	if msg.From != nil {
		id := msg.From.ID
		visitorID = &id
	}

	dest, err := d.consumer.ConsumeToken(ctx, token, visitorID)
	switch {
	case err == nil:
		reply := tgbotapi.NewMessage(msg.Chat.ID, textOpen)
		reply.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL(buttonOpen, dest.URL)),
		)
		d.reply(reply)
	case errors.Is(err, tracking.ErrTokenNotFound), errors.Is(err, tracking.ErrLinkNotFound):
		d.reply(tgbotapi.NewMessage(msg.Chat.ID, textGone))
	case errors.Is(err, tracking.ErrTokenConsumed):
		d.reply(tgbotapi.NewMessage(msg.Chat.ID, textUsed))
	default:
		log.Error().
			Err(err).
			Int64("chat_id", msg.Chat.ID).
			Msg("Failed to consume start token")
		d.reply(tgbotapi.NewMessage(msg.Chat.ID, textFailed))
	}
}

func (d *Dispatcher) reply(msg tgbotapi.MessageConfig) {
	if _, err := d.sender.Send(msg); err != nil {
		log.Error().
			Err(err).
			Int64("chat_id", msg.ChatID).
			Msg("Failed to send bot reply")
	}
}
