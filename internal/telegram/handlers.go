package telegram

import (
	"context"

	"github.com/oss377/maneBot/core/logger"
	tghelpers "github.com/oss377/maneBot/core/telegram/helpers"
	"github.com/oss377/maneBot/internal/registration"

	tele "gopkg.in/telebot.v4"
)

// EventHandler is the part of the registration service the handlers drive.
type EventHandler interface {
	Handle(ctx context.Context, ev registration.Event) error
}

// handlers turns updates into registration events.
type handlers struct {
	svc EventHandler
}

func (h *handlers) handle(c tele.Context, ev registration.Event) error {
	user := c.Sender()
	if user == nil {
		return nil
	}
	ev.From = user.ID
	return h.svc.Handle(tghelpers.BuildContext(c), ev)
}

func (h *handlers) start(c tele.Context) error {
	payload := ""
	if msg := c.Message(); msg != nil {
		payload = msg.Payload
	}
	return h.handle(c, registration.Event{Kind: registration.EventStart, Text: payload})
}

func (h *handlers) text(c tele.Context) error {
	return h.handle(c, registration.Event{Kind: registration.EventText, Text: c.Text()})
}

func (h *handlers) photo(c tele.Context) error {
	msg := c.Message()
	if msg == nil || msg.Photo == nil {
		return nil
	}
	return h.handle(c, registration.Event{Kind: registration.EventImage, ImageRef: msg.Photo.FileID})
}

func (h *handlers) callback(c tele.Context) error {
	cb := c.Callback()
	ev := registration.Event{
		Kind:          registration.EventAction,
		Text:          cb.Data,
		InteractionID: cb.ID,
	}
	if cb.Message != nil && cb.Message.Chat != nil {
		ev.Message = registration.MessageRef{ChatID: cb.Message.Chat.ID, MessageID: cb.Message.ID}
		ev.Caption = cb.Message.Caption
	}
	return h.handle(c, ev)
}

// limited tells a throttled user to slow down.
func (h *handlers) limited(c tele.Context) error {
	logger.Debug(tghelpers.BuildContext(c), logger.CompTelegram, "limited.notice")
	return tghelpers.SendText(c, "⏳ Please slow down and try again in a moment.")
}
