package telegram

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oss377/maneBot/internal/config"
	"github.com/oss377/maneBot/internal/registration"
	"github.com/oss377/maneBot/internal/store"

	tele "gopkg.in/telebot.v4"
)

type recorder struct {
	events []registration.Event
}

func (r *recorder) Handle(_ context.Context, ev registration.Event) error {
	r.events = append(r.events, ev)
	return nil
}

func offlineBot(t *testing.T) *tele.Bot {
	t.Helper()
	bot, err := tele.NewBot(tele.Settings{Token: "test", Offline: true})
	require.NoError(t, err)
	return bot
}

func TestHandlersTranslateUpdates(t *testing.T) {
	bot := offlineBot(t)
	rec := &recorder{}
	h := &handlers{svc: rec}
	user := &tele.User{ID: 7}
	chat := &tele.Chat{ID: 7}

	start := bot.NewContext(tele.Update{ID: 1, Message: &tele.Message{Sender: user, Chat: chat, Text: "/start tok", Payload: "tok"}})
	require.NoError(t, h.start(start))

	text := bot.NewContext(tele.Update{ID: 2, Message: &tele.Message{Sender: user, Chat: chat, Text: "John Smith"}})
	require.NoError(t, h.text(text))

	photo := bot.NewContext(tele.Update{ID: 3, Message: &tele.Message{Sender: user, Chat: chat, Photo: &tele.Photo{File: tele.File{FileID: "file-1"}}}})
	require.NoError(t, h.photo(photo))

	cb := bot.NewContext(tele.Update{ID: 4, Callback: &tele.Callback{
		ID:      "cb-1",
		Sender:  user,
		Data:    "/approve 9",
		Message: &tele.Message{ID: 55, Chat: &tele.Chat{ID: 999}, Caption: "proof"},
	}})
	require.NoError(t, h.callback(cb))

	require.Len(t, rec.events, 4)
	assert.Equal(t, registration.Event{Kind: registration.EventStart, From: 7, Text: "tok"}, rec.events[0])
	assert.Equal(t, registration.Event{Kind: registration.EventText, From: 7, Text: "John Smith"}, rec.events[1])
	assert.Equal(t, registration.Event{Kind: registration.EventImage, From: 7, ImageRef: "file-1"}, rec.events[2])
	assert.Equal(t, registration.Event{
		Kind:          registration.EventAction,
		From:          7,
		Text:          "/approve 9",
		InteractionID: "cb-1",
		Message:       registration.MessageRef{ChatID: 999, MessageID: 55},
		Caption:       "proof",
	}, rec.events[3])
}

func TestHandlersIgnoreAnonymousUpdates(t *testing.T) {
	bot := offlineBot(t)
	rec := &recorder{}
	h := &handlers{svc: rec}

	c := bot.NewContext(tele.Update{ID: 1, Message: &tele.Message{Chat: &tele.Chat{ID: 1}, Text: "hi"}})
	require.NoError(t, h.text(c))
	assert.Empty(t, rec.events)
}

func TestMarkup(t *testing.T) {
	inline := markup(registration.SendOptions{Inline: [][]registration.Button{{
		{Text: "Approve", Data: "/approve 1"},
		{Text: "Join", URL: "https://t.me/+g"},
	}}})
	require.Len(t, inline.InlineKeyboard, 1)
	assert.Equal(t, "/approve 1", inline.InlineKeyboard[0][0].Data)
	assert.Equal(t, "https://t.me/+g", inline.InlineKeyboard[0][1].URL)

	reply := markup(registration.SendOptions{Reply: [][]string{{"Back", "Cancel"}}, OneTime: true})
	require.Len(t, reply.ReplyKeyboard, 1)
	assert.True(t, reply.OneTimeKeyboard)

	assert.True(t, markup(registration.SendOptions{RemoveKeyboard: true}).RemoveKeyboard)

	force := markup(registration.SendOptions{Placeholder: "Full name"})
	assert.True(t, force.ForceReply)
	assert.Equal(t, "Full name", force.Placeholder)

	assert.Nil(t, markup(registration.SendOptions{}))
	assert.Equal(t, tele.ModeMarkdown, sendOptions(registration.SendOptions{Markdown: true}).ParseMode)
}

func TestTransportBeforeStart(t *testing.T) {
	tr := NewTransport()
	err := tr.SendText(context.Background(), 1, "hi", registration.SendOptions{})
	assert.ErrorIs(t, err, errNotStarted)
}

func TestRegistryHidesAdminCommands(t *testing.T) {
	cfg := &config.Config{Retreat: config.RetreatConfig{GroupLink: "https://t.me/+g"}}
	require.NoError(t, cfg.Retreat.Normalize())
	cfg.Telegram.AdminID = 999

	app, err := NewApp(cfg, store.NewMemory(), nil)
	require.NoError(t, err)
	defer app.Close()

	reg := app.Registry(&handlers{svc: app.Service()})
	visible := reg.ListCommands(true)
	names := make([]string, 0, len(visible))
	for _, c := range visible {
		names = append(names, c.Text)
	}
	assert.Equal(t, []string{"cancel", "help", "start"}, names)

	for _, c := range registration.AdminCommands() {
		_, cmd, ok := reg.LookupCommand(c.Name)
		require.True(t, ok, c.Name)
		assert.True(t, cmd.AdminOnly, c.Name)
	}
}
