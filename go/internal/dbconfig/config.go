package dbconfig

import (
	"fmt"
	"net/url"
)

// Config holds Postgres connection settings. URL, when set, wins over the discrete
// fields.
type Config struct {
	URL      string `envconfig:"DATABASE_URL" default:""`
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER" default:"postgres"`
	Password string `envconfig:"DB_PASSWORD" default:"postgres"`
	Database string `envconfig:"DB_NAME" default:"gameroom"`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
}

// DSN returns the Postgres connection URL.
func (c Config) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(c.User), url.QueryEscape(c.Password), c.Host, c.Port, c.Database, c.SSLMode,
	)
}
