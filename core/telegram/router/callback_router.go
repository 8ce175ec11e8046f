package router

import (
	"log/slog"

	tg "github.com/oss377/maneBot/core/telegram"
	"github.com/oss377/maneBot/core/telegram/callbacks"
	"github.com/oss377/maneBot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CallbackRoute returns a route passing every inline-button press to handler.
// The handler is responsible for answering the callback.
func CallbackRoute(handler tele.HandlerFunc) tg.Route {
	h := func(c tele.Context) error {
		cb := c.Callback()
		if cb == nil || handler == nil {
			return nil
		}
		key := callbacks.Key(cb)
		return handleWithSummary(c, "callback."+normalizeHandlerName(key), func() error {
			return handler(c)
		}, slog.String("cb_key", key))
	}
	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(h)),
	}
}
