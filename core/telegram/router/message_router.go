package router

import (
	"strings"

	tg "github.com/oss377/maneBot/core/telegram"
	"github.com/oss377/maneBot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// MessageOptions holds handlers for non-command messages.
type MessageOptions struct {
	Text  tele.HandlerFunc
	Photo tele.HandlerFunc
	// Other receives documents, stickers and other media the bot does not
	// process; nil drops them.
	Other tele.HandlerFunc
}

// MessageRoutes builds handlers for text, photo and other media updates.
// Text that matches a registered command alias is dispatched to that command.
func MessageRoutes(reg *tg.Registry, opts MessageOptions) []tg.Route {
	wrap := func(name string, fn tele.HandlerFunc) tele.HandlerFunc {
		h := func(c tele.Context) error {
			if fn == nil {
				return nil
			}
			return handleWithSummary(c, name, func() error { return fn(c) })
		}
		return middleware.RecoverMiddleware(middleware.LoggerMiddleware(h))
	}

	text := func(c tele.Context) error {
		if reg != nil && strings.HasPrefix(c.Text(), "/") {
			if key, cmd, ok := reg.LookupCommand(c.Text()); ok && cmd.Handler != nil && !cmd.AdminOnly {
				return handleWithSummary(c, normalizeHandlerName(key), func() error { return cmd.Handler(c) })
			}
		}
		if opts.Text == nil {
			return nil
		}
		return handleWithSummary(c, "text", func() error { return opts.Text(c) })
	}

	routes := []tg.Route{
		{Endpoint: tele.OnText, Handler: middleware.RecoverMiddleware(middleware.LoggerMiddleware(text))},
		{Endpoint: tele.OnPhoto, Handler: wrap("photo", opts.Photo)},
	}
	if opts.Other != nil {
		routes = append(routes, tg.Route{Endpoint: tele.OnDocument, Handler: wrap("document", opts.Other)})
	}
	return routes
}
