// Package config loads the application configuration: the core bot settings,
// the database and the retreat-specific values.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	coreconfig "github.com/oss377/maneBot/core/config"
	coredatabase "github.com/oss377/maneBot/core/database"
)

// RetreatConfig holds the event settings used by the registration flow.
type RetreatConfig struct {
	// GroupLink is the invite URL of the attendee group.
	GroupLink string `yaml:"group_link" envconfig:"GROUP_LINK"`
	// BotURL is the public entry point invitations link to. When empty it is
	// derived from the bot username at startup.
	BotURL              string `yaml:"bot_url" envconfig:"BOT_URL"`
	PaymentInstructions string `yaml:"payment_instructions" envconfig:"PAYMENT_INSTRUCTIONS"`
	ContactText         string `yaml:"contact_text" envconfig:"CONTACT_TEXT"`

	IdleTimeout       time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	GroupLinkDelay    time.Duration `yaml:"group_link_delay" envconfig:"GROUP_LINK_DELAY"`
	InviteDelay       time.Duration `yaml:"invite_delay" envconfig:"INVITE_DELAY"`
	ReminderInterval  time.Duration `yaml:"reminder_interval" envconfig:"REMINDER_INTERVAL"`
	ReminderThreshold time.Duration `yaml:"reminder_threshold" envconfig:"REMINDER_THRESHOLD"`
}

// Defaults applied by Normalize to unset durations.
const (
	DefaultIdleTimeout       = 30 * time.Second
	DefaultGroupLinkDelay    = 30 * time.Second
	DefaultInviteDelay       = 120 * time.Second
	DefaultReminderInterval  = time.Hour
	DefaultReminderThreshold = 24 * time.Hour
)

// Normalize fills defaults and validates the retreat section.
func (r *RetreatConfig) Normalize() error {
	if strings.TrimSpace(r.GroupLink) == "" {
		return fmt.Errorf("retreat.group_link is required")
	}
	if _, err := url.ParseRequestURI(r.GroupLink); err != nil {
		return fmt.Errorf("retreat.group_link: %w", err)
	}
	if r.BotURL != "" {
		if _, err := url.ParseRequestURI(r.BotURL); err != nil {
			return fmt.Errorf("retreat.bot_url: %w", err)
		}
	}
	setDefault(&r.IdleTimeout, DefaultIdleTimeout)
	setDefault(&r.GroupLinkDelay, DefaultGroupLinkDelay)
	setDefault(&r.InviteDelay, DefaultInviteDelay)
	setDefault(&r.ReminderInterval, DefaultReminderInterval)
	setDefault(&r.ReminderThreshold, DefaultReminderThreshold)
	return nil
}

func setDefault(d *time.Duration, def time.Duration) {
	if *d <= 0 {
		*d = def
	}
}

// Config is the full application configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database coredatabase.Config `yaml:"database"`
	Retreat  RetreatConfig       `yaml:"retreat"`
}

// CoreConfig exposes the embedded framework configuration.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Config
}

// Load reads path, applies environment overrides and validates every section.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return nil, err
	}
	if err := cfg.Database.Normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Retreat.Normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
