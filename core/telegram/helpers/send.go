package helpers

import (
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/oss377/maneBot/core/logger"
	"github.com/oss377/maneBot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

var globalDispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher wires the asynchronous sender used by helper functions.
func SetDispatcher(d *sender.Dispatcher) {
	globalDispatcher.Store(d)
}

// currentDispatcher returns the sender wired by SetDispatcher, if any.
func currentDispatcher() *sender.Dispatcher {
	return globalDispatcher.Load()
}

func sendAsync(c tele.Context, action, endpoint string, run func() error) error {
	disp := currentDispatcher()
	if disp == nil {
		return run()
	}

	ctx := BuildContext(c)
	if err := disp.Enqueue(ctx, action, endpoint, run); err != nil {
		if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
			logger.Warn(ctx, logger.CompSender, "queue.fallback",
				slog.String("action", action),
				logger.Err(err),
			)
			return run()
		}
		return err
	}
	return nil
}

// SendText queues a plain text reply to the current chat. Used for
// middleware notices (rate limiting, admin rejects) that sit outside the
// registration flow.
func SendText(c tele.Context, text string, opts ...*tele.SendOptions) error {
	var sendOpts *tele.SendOptions
	if len(opts) > 0 {
		sendOpts = opts[0]
	}
	return sendAsync(c, "send.text", "sendMessage", func() error {
		if sendOpts != nil {
			return c.Send(text, sendOpts)
		}
		return c.Send(text)
	})
}
