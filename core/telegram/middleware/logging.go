package middleware

import (
	"log/slog"
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/oss377/maneBot/core/logger"
	"github.com/oss377/maneBot/core/telegram/callbacks"
	tghelpers "github.com/oss377/maneBot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// seenUpdates keeps processed update IDs for a short while so the receipt
// line is written once even if the middleware wraps several branches.
var seenUpdates = gocache.New(10*time.Second, time.Minute)

func alreadyLogged(updateID int) bool {
	return seenUpdates.Add(strconv.Itoa(updateID), struct{}{}, gocache.DefaultExpiration) != nil
}

// LoggerMiddleware stores a request context on c and logs one receipt line per update.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := tghelpers.BuildContext(c)
		upd := c.Update()

		if logger.ShouldSampleDebug() && !alreadyLogged(upd.ID) {
			attrs := []slog.Attr{slog.String("status", "ok")}
			if chat := c.Chat(); chat != nil {
				attrs = append(attrs, slog.String("chat_type", string(chat.Type)))
			}
			if user := c.Sender(); user != nil && user.LanguageCode != "" {
				attrs = append(attrs, slog.String("lang", user.LanguageCode))
			}

			switch {
			case upd.Callback != nil:
				verb, args := callbacks.Split(upd.Callback.Data)
				attrs = append(attrs, slog.String("cb_key", logger.SanitizeLimit(verb, 128)))
				if args != "" {
					attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(args, 256)))
				}
			case upd.Message != nil && upd.Message.Photo != nil:
				attrs = append(attrs, slog.String("payload", "<photo>"))
			case upd.Message != nil:
				if t := c.Text(); t != "" {
					attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(t, 256)))
				}
			}
			logger.Debug(ctx, logger.CompTelegram, "update.received", attrs...)
		}

		return next(c)
	}
}
