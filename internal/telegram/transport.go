// Package telegram connects the registration service to the bot runtime:
// it translates updates into registration events and implements the
// service's Transport over telebot.
package telegram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/oss377/maneBot/core/telegram/keyboard"
	"github.com/oss377/maneBot/core/telegram/sender"
	"github.com/oss377/maneBot/internal/registration"

	tele "gopkg.in/telebot.v4"
)

// errNotStarted is returned by sends attempted before the bot runtime is up.
var errNotStarted = errors.New("telegram: transport not started")

// Transport sends service replies through the bot. Calls run inline on the
// dispatcher so the caller learns whether a message was delivered.
type Transport struct {
	mu   sync.RWMutex
	bot  *tele.Bot
	disp *sender.Dispatcher
}

// NewTransport returns a transport that is unusable until Bind.
func NewTransport() *Transport {
	return &Transport{}
}

// Bind attaches the running bot and its dispatcher.
func (t *Transport) Bind(bot *tele.Bot, disp *sender.Dispatcher) {
	t.mu.Lock()
	t.bot, t.disp = bot, disp
	t.mu.Unlock()
}

func (t *Transport) do(ctx context.Context, action, endpoint string, run func(bot *tele.Bot) error) error {
	t.mu.RLock()
	bot, disp := t.bot, t.disp
	t.mu.RUnlock()
	if bot == nil {
		return errNotStarted
	}
	call := func() error { return run(bot) }
	var err error
	if disp != nil {
		err = disp.Do(ctx, action, endpoint, call)
	} else {
		err = call()
	}
	if err != nil && sender.IsBlocked(err) {
		return fmt.Errorf("%w: %w", registration.ErrUnreachable, err)
	}
	return err
}

// SendText implements registration.Transport.
func (t *Transport) SendText(ctx context.Context, to int64, text string, opts registration.SendOptions) error {
	return t.do(ctx, "send.text", "sendMessage", func(bot *tele.Bot) error {
		_, err := bot.Send(tele.ChatID(to), text, sendOptions(opts))
		return err
	})
}

// SendImage re-sends a previously received photo by its file reference.
func (t *Transport) SendImage(ctx context.Context, to int64, imageRef, caption string, opts registration.SendOptions) error {
	return t.do(ctx, "send.photo", "sendPhoto", func(bot *tele.Bot) error {
		photo := &tele.Photo{File: tele.File{FileID: imageRef}, Caption: caption}
		_, err := bot.Send(tele.ChatID(to), photo, sendOptions(opts))
		return err
	})
}

// SendDocument uploads doc as a file.
func (t *Transport) SendDocument(ctx context.Context, to int64, doc registration.Document, opts registration.SendOptions) error {
	return t.do(ctx, "send.document", "sendDocument", func(bot *tele.Bot) error {
		// The reader is rebuilt per attempt since a retry re-uploads.
		file := &tele.Document{
			File:     tele.FromReader(bytes.NewReader(doc.Data)),
			FileName: doc.Name,
			MIME:     doc.MIME,
			Caption:  doc.Caption,
		}
		_, err := bot.Send(tele.ChatID(to), file, sendOptions(opts))
		return err
	})
}

// AnswerInteraction acknowledges an inline button press.
func (t *Transport) AnswerInteraction(ctx context.Context, id, text string, alert bool) error {
	return t.do(ctx, "callback.answer", "answerCallbackQuery", func(bot *tele.Bot) error {
		return bot.Respond(&tele.Callback{ID: id}, &tele.CallbackResponse{Text: text, ShowAlert: alert})
	})
}

// EditCaption replaces the caption of a sent media message. The inline
// keyboard is dropped with it.
func (t *Transport) EditCaption(ctx context.Context, ref registration.MessageRef, caption string) error {
	return t.do(ctx, "edit.caption", "editMessageCaption", func(bot *tele.Bot) error {
		msg := tele.StoredMessage{MessageID: strconv.Itoa(ref.MessageID), ChatID: ref.ChatID}
		_, err := bot.EditCaption(msg, caption)
		return err
	})
}

func sendOptions(opts registration.SendOptions) *tele.SendOptions {
	so := &tele.SendOptions{ReplyMarkup: markup(opts)}
	if opts.Markdown {
		so.ParseMode = tele.ModeMarkdown
	}
	return so
}

func markup(opts registration.SendOptions) *tele.ReplyMarkup {
	switch {
	case len(opts.Inline) > 0:
		rows := make([][]keyboard.InlineBtn, 0, len(opts.Inline))
		for _, row := range opts.Inline {
			btns := make([]keyboard.InlineBtn, 0, len(row))
			for _, b := range row {
				btns = append(btns, keyboard.InlineBtn{Text: b.Text, Data: b.Data, URL: b.URL})
			}
			rows = append(rows, btns)
		}
		return keyboard.InlineButtonsRows(rows...)
	case len(opts.Reply) > 0:
		return keyboard.ReplyButtons(keyboard.ReplyOptions{OneTime: opts.OneTime, Placeholder: opts.Placeholder}, opts.Reply...)
	case opts.RemoveKeyboard:
		return keyboard.RemoveKeyboard()
	case opts.Placeholder != "":
		return &tele.ReplyMarkup{ForceReply: true, Placeholder: opts.Placeholder}
	}
	return nil
}
