package middleware

import (
	"log/slog"
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/oss377/maneBot/core/logger"
	tghelpers "github.com/oss377/maneBot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// RateLimitOptions configures behaviour of the rate limit middleware.
type RateLimitOptions struct {
	Interval  time.Duration
	Exclude   map[string]struct{}
	OnLimited tele.HandlerFunc
}

// RateLimitMiddleware drops updates from a user that arrive within Interval of
// the previous accepted one. Each user's window is a go-cache entry expiring
// after Interval.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	window := gocache.New(opts.Interval, 10*opts.Interval+time.Minute)
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || opts.Interval <= 0 {
				return next(c)
			}
			if _, skip := opts.Exclude[updateKind(c.Update())]; skip {
				return next(c)
			}

			if err := window.Add(strconv.FormatInt(user.ID, 10), struct{}{}, gocache.DefaultExpiration); err != nil {
				logger.Warn(tghelpers.BuildContext(c), logger.CompTelegram, "tg.rate_limit",
					slog.String("status", "rate_limited"),
					slog.Duration("interval", opts.Interval),
				)
				if opts.OnLimited != nil {
					_ = opts.OnLimited(c)
				}
				return nil
			}
			return next(c)
		}
	}
}

func updateKind(upd tele.Update) string {
	switch {
	case upd.Callback != nil:
		return "callback"
	case upd.Message != nil:
		return "message"
	}
	return "other"
}
