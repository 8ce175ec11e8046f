package database

import (
	"fmt"
	"net/url"
)

// Config holds PostgreSQL connection settings.
type Config struct {
	Host           string `yaml:"host" envconfig:"HOST"`
	Port           string `yaml:"port" envconfig:"PORT"`
	User           string `yaml:"user" envconfig:"USER"`
	Password       string `yaml:"password" envconfig:"PASSWORD"`
	Name           string `yaml:"name" envconfig:"NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"SSLMODE"`
	MaxConnections int    `yaml:"max_connections" envconfig:"MAX_CONNECTIONS"`
	// URL, when set, takes precedence over the discrete fields.
	URL string `yaml:"url" envconfig:"URL"`
}

// Normalize fills defaults for optional fields.
func (c *Config) Normalize() error {
	if c.URL != "" {
		if _, err := url.Parse(c.URL); err != nil {
			return fmt.Errorf("database.url: %w", err)
		}
	} else if c.Host == "" || c.Name == "" {
		return fmt.Errorf("database.host and database.name are required")
	}
	if c.Port == "" {
		c.Port = "5432"
	}
	if c.SSLMode == "" {
		c.SSLMode = "disable"
	}
	if c.MaxConnections <= 0 {
		c.MaxConnections = 10
	}
	return nil
}

// DSN returns a URL-form connection string accepted by lib/pq and golang-migrate.
func (c Config) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + c.Port,
		Path:     "/" + c.Name,
		RawQuery: url.Values{"sslmode": []string{c.SSLMode}}.Encode(),
	}
	return u.String()
}
