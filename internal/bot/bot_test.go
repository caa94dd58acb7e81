package bot

import (
	"context"
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chanlinks-go/internal/tracking"
)

type fakeSender struct {
	sent []tgbotapi.Chattable
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

type fakeConsumer struct {
	dest    *tracking.Destination
	err     error
	token   string
	visitor *int64
}

func (f *fakeConsumer) ConsumeToken(_ context.Context, token string, visitorID *int64) (*tracking.Destination, error) {
	f.token = token
	f.visitor = visitorID
	return f.dest, f.err
}

func startUpdate(text string) tgbotapi.Update {
	command := len("/start")
	return tgbotapi.Update{
		Message: &tgbotapi.Message{
			Text: text,
			Chat: &tgbotapi.Chat{ID: 100},
			From: &tgbotapi.User{ID: 555},
			Entities: []tgbotapi.MessageEntity{
				{Type: "bot_command", Offset: 0, Length: command},
			},
		},
	}
}

func TestHandleUpdate_ConsumesToken(t *testing.T) {
	sender := &fakeSender{}
	consumer := &fakeConsumer{dest: &tracking.Destination{URL: "https://t.me/mychannel/42"}}
	d := NewDispatcher(sender, consumer)

	d.HandleUpdate(context.Background(), startUpdate("/start AbC-_1"))

	assert.Equal(t, "AbC-_1", consumer.token)
	require.NotNil(t, consumer.visitor)
	assert.Equal(t, int64(555), *consumer.visitor)

	require.Len(t, sender.sent, 1)
	msg, ok := sender.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, int64(100), msg.ChatID)

	markup, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.NotNil(t, markup.InlineKeyboard[0][0].URL)
	assert.Equal(t, "https://t.me/mychannel/42", *markup.InlineKeyboard[0][0].URL)
}

func TestHandleUpdate_Failures(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"Unknown token", tracking.ErrTokenNotFound, textGone},
		{"Link gone", tracking.ErrLinkNotFound, textGone},
		{"Already used", tracking.ErrTokenConsumed, textUsed},
		{"Internal", errors.New("boom"), textFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &fakeSender{}
			d := NewDispatcher(sender, &fakeConsumer{err: tt.err})

			d.HandleUpdate(context.Background(), startUpdate("/start tok"))

			require.Len(t, sender.sent, 1)
			assert.Equal(t, tt.want, sender.sent[0].(tgbotapi.MessageConfig).Text)
		})
	}
}

func TestHandleUpdate_Ignored(t *testing.T) {
	sender := &fakeSender{}
	consumer := &fakeConsumer{}
	d := NewDispatcher(sender, consumer)

	d.HandleUpdate(context.Background(), tgbotapi.Update{})
	d.HandleUpdate(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{Text: "hello", Chat: &tgbotapi.Chat{ID: 1}}})

	assert.Empty(t, sender.sent)
	assert.Empty(t, consumer.token)
}

func TestHandleUpdate_StartWithoutToken(t *testing.T) {
	sender := &fakeSender{}
	consumer := &fakeConsumer{}
	d := NewDispatcher(sender, consumer)

	d.HandleUpdate(context.Background(), startUpdate("/start"))

	assert.Empty(t, consumer.token)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, textWelcome, sender.sent[0].(tgbotapi.MessageConfig).Text)
}
