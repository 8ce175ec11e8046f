package telegram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/oss377/maneBot/core/logger"
	coretelegram "github.com/oss377/maneBot/core/telegram"
	"github.com/oss377/maneBot/core/telegram/commands"
	"github.com/oss377/maneBot/core/telegram/router"
	"github.com/oss377/maneBot/internal/config"
	"github.com/oss377/maneBot/internal/invite"
	"github.com/oss377/maneBot/internal/registration"
	"github.com/oss377/maneBot/internal/store"
	"github.com/oss377/maneBot/internal/timers"

	tele "gopkg.in/telebot.v4"
)

// App is the bot application: the registration service, its timers and the
// transport bound once the runtime starts.
type App struct {
	cfg       *config.Config
	svc       *registration.Service
	timers    *timers.Registry
	transport *Transport
	closer    io.Closer

	stopOnce   sync.Once
	stopSweeps context.CancelFunc
	sweepsDone chan struct{}
}

// NewApp wires the service over st. closer, when set, is released by Close.
func NewApp(cfg *config.Config, st store.Store, closer io.Closer) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("telegram app: nil config")
	}
	a := &App{
		cfg:       cfg,
		timers:    timers.New(),
		transport: NewTransport(),
		closer:    closer,
	}
	svc, err := registration.New(registration.Options{
		Store:      st,
		Transport:  a.transport,
		Timers:     a.timers,
		AdminID:    cfg.Telegram.AdminID,
		Retreat:    cfg.Retreat,
		InviteBase: cfg.Retreat.BotURL,
	})
	if err != nil {
		return nil, err
	}
	a.svc = svc
	return a, nil
}

// Service exposes the registration service.
func (a *App) Service() *registration.Service { return a.svc }

// Registry builds the command registry: public commands plus the admin set.
func (a *App) Registry(h *handlers) *coretelegram.Registry {
	reg := coretelegram.NewRegistry()
	reg.RegisterCommand("/start", commands.Command{Handler: h.start, Description: "Start or resume registration"})
	reg.RegisterCommand("/help", commands.Command{Handler: h.text, Description: "How registration works"})
	reg.RegisterCommand("/cancel", commands.Command{Handler: h.text, Description: "Cancel the current step"})
	for _, c := range registration.AdminCommands() {
		reg.RegisterCommand("/"+c.Name, commands.Command{
			Handler:     h.text,
			Description: c.Description,
			AdminOnly:   true,
		})
	}
	return reg
}

// TelegramRunOptions implements the core runner's TelegramApp.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	core := a.cfg.CoreConfig()
	h := &handlers{svc: a.svc}
	reg := a.Registry(h)

	// Non-admins typing an admin command are answered like any other text.
	routes := router.CommandRoutes(reg, router.CommandRouteOptions{
		AdminID:       core.Telegram.AdminID,
		OnAdminReject: h.text,
	})
	routes = append(routes, router.MessageRoutes(reg, router.MessageOptions{
		Text:  h.text,
		Photo: h.photo,
	})...)
	routes = append(routes, router.CallbackRoute(h.callback))

	return coretelegram.RunOptions{
		Config:      core,
		Registry:    reg,
		Middlewares: coretelegram.DefaultMiddlewares(core, h.limited),
		Routes:      routes,
		OnStart:     a.start,
		OnStop:      a.stop,
	}, nil
}

func (a *App) start(ctx context.Context, rt coretelegram.Runtime) error {
	a.transport.Bind(rt.Bot, rt.Dispatcher)

	base := a.cfg.Retreat.BotURL
	if base == "" {
		if rt.Bot.Me == nil || rt.Bot.Me.Username == "" {
			return fmt.Errorf("telegram app: bot username unknown and retreat.bot_url not set")
		}
		base = invite.BaseFromUsername(rt.Bot.Me.Username)
	}
	a.svc.SetInviteBase(base)
	logger.Info(ctx, logger.CompApp, "invite.base", slog.String("url", base))

	sweepCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.stopSweeps = cancel
	a.sweepsDone = make(chan struct{})
	go func() {
		defer close(a.sweepsDone)
		a.svc.RunReminders(sweepCtx)
	}()
	return nil
}

func (a *App) stop(ctx context.Context, _ coretelegram.Runtime) error {
	a.shutdown()
	logger.Info(ctx, logger.CompApp, "stopped", slog.Int("count", a.timers.Pending()))
	return nil
}

// shutdown stops the reminder loop and the timers. Pending delayed messages
// are dropped.
func (a *App) shutdown() {
	a.stopOnce.Do(func() {
		if a.stopSweeps != nil {
			a.stopSweeps()
			<-a.sweepsDone
		}
		a.timers.Stop()
	})
}

// SweepOnce runs a single reminder pass outside the bot runtime. Sends go
// straight to the API without the dispatcher queue.
func (a *App) SweepOnce(ctx context.Context) (registration.SweepReport, error) {
	core := a.cfg.CoreConfig()
	bot, err := tele.NewBot(tele.Settings{
		Token:   core.Telegram.Token,
		Offline: true,
		Client:  coretelegram.BuildHTTPClient(0),
	})
	if err != nil {
		return registration.SweepReport{}, fmt.Errorf("telegram app: bot init: %w", err)
	}
	a.transport.Bind(bot, nil)
	defer a.shutdown()

	start := time.Now()
	rep, err := a.svc.Sweep(ctx)
	logger.Info(ctx, logger.CompReminders, "sweep.once",
		slog.Int("checked", rep.Checked),
		slog.Int("reminded", rep.Reminded),
		slog.Int("sent", rep.Sent),
		slog.Int("failed", rep.Failed),
		slog.Duration("duration", logger.Took(start)),
	)
	return rep, err
}

// Close stops background work and releases the store.
func (a *App) Close() error {
	a.shutdown()
	var errs *multierror.Error
	if a.closer != nil {
		if err := a.closer.Close(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	return errs.ErrorOrNil()
}
