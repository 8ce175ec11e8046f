package router

import (
	"context"
	"log/slog"

	"github.com/oss377/maneBot/core/logger"
	tg "github.com/oss377/maneBot/core/telegram"
	"github.com/oss377/maneBot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CommandRouteOptions configures how commands are wrapped and exposed.
type CommandRouteOptions struct {
	AdminID       int64
	OnAdminReject tele.HandlerFunc
}

// CommandRoutes prepares command handlers wrapped with shared middleware.
func CommandRoutes(reg *tg.Registry, opts CommandRouteOptions) []tg.Route {
	if reg == nil {
		return nil
	}

	adminOpts := middleware.AdminOptions{
		AdminID:  opts.AdminID,
		OnReject: opts.OnAdminReject,
	}

	routes := make([]tg.Route, 0, len(reg.Commands()))
	for cmd, def := range reg.Commands() {
		name := normalizeHandlerName(cmd)
		inner := def.Handler
		if def.AdminOnly {
			inner = middleware.AdminOnlyMiddleware(adminOpts)(inner)
		}
		h := func(c tele.Context) error {
			return handleWithSummary(c, name, func() error { return inner(c) })
		}
		routes = append(routes, tg.Route{
			Endpoint: cmd,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(h)),
		})
	}

	logger.Info(context.Background(), logger.CompWire, "commands.wired",
		slog.String("status", "ok"),
		slog.Int("count", len(routes)),
	)

	return routes
}
