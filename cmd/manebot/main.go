// Command manebot runs the retreat registration bot.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/oss377/maneBot/core/bootstrap"
	"github.com/oss377/maneBot/core/buildinfo"
	corecmd "github.com/oss377/maneBot/core/cmd"
	coredatabase "github.com/oss377/maneBot/core/database"
	"github.com/oss377/maneBot/core/logger"
	"github.com/oss377/maneBot/internal/config"
	"github.com/oss377/maneBot/internal/store"
	"github.com/oss377/maneBot/internal/telegram"
	"github.com/oss377/maneBot/migrations"
)

const (
	configEnvVar      = "CONFIG_PATH"
	defaultConfigPath = "config.yaml"
)

var configPath string

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("load .env: %v", err)
	}
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "manebot",
		Short:        "Telegram bot for retreat registration",
		Version:      buildinfo.Summary(),
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"config file (default: $"+configEnvVar+" or "+defaultConfigPath+")")

	root.AddCommand(serveCmd(), migrateCmd(), sweepCmd())
	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot until interrupted",
		RunE: func(*cobra.Command, []string) error {
			return corecmd.Run(corecmd.Options{
				ConfigPath:        configPath,
				ConfigEnvVar:      configEnvVar,
				DefaultConfigPath: defaultConfigPath,
				LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
					return config.Load(path)
				},
				Bootstrap: func(c corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
					return newApp(c.(*config.Config), true)
				},
			})
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		RunE: func(*cobra.Command, []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			defer shutdownLogger()
			if err := logger.InitLogger(cfg.CoreConfig()); err != nil {
				return fmt.Errorf("logger init: %w", err)
			}
			return migrate(cfg.Database)
		},
	}
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Send payment reminders once and exit",
		RunE: func(*cobra.Command, []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			defer shutdownLogger()
			app, err := newApp(cfg, false)
			if err != nil {
				return err
			}
			defer app.Close()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			rep, err := app.SweepOnce(ctx)
			fmt.Printf("checked %d, reminded %d, sent %d, failed %d\n", rep.Checked, rep.Reminded, rep.Sent, rep.Failed)
			return err
		},
	}
}

func loadConfig() (*config.Config, error) {
	path, err := corecmd.ResolveConfigPath(corecmd.Options{
		ConfigPath:        configPath,
		ConfigEnvVar:      configEnvVar,
		DefaultConfigPath: defaultConfigPath,
	})
	if err != nil {
		return nil, err
	}
	return config.Load(path)
}

func newApp(cfg *config.Config, withMigrations bool) (*telegram.App, error) {
	opts := bootstrap.Options{
		Config:   cfg.CoreConfig(),
		Database: cfg.Database,
	}
	if withMigrations {
		opts.Migrate = migrate
	}
	res, err := bootstrap.Run(opts)
	if err != nil {
		return nil, err
	}
	app, err := telegram.NewApp(cfg, store.NewPostgres(res.DB), res)
	if err != nil {
		_ = res.Close()
		return nil, err
	}
	return app, nil
}

func migrate(db coredatabase.Config) error {
	return coredatabase.RunMigrations(db, migrations.FS)
}

func shutdownLogger() {
	if err := logger.Shutdown(); err != nil {
		log.Printf("logger shutdown error: %v", err)
	}
}
