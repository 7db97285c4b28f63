// Package config loads service settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/Shivanand-hulikatti/session-booking/internal/database"
)

// Config is the full service configuration.
type Config struct {
	Port     string `envconfig:"PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	// Storage selects the ledger backend. "memory" keeps everything in
	// process and is meant for local runs only.
	Storage string          `envconfig:"STORAGE" default:"postgres" validate:"oneof=postgres memory"`
	DB      database.Config `envconfig:"DB"`

	RosterFile string `envconfig:"ROSTER_FILE"`
	AdminEmail string `envconfig:"ADMIN_EMAIL" validate:"omitempty,email"`

	Timezone           string `envconfig:"TIMEZONE" default:"Asia/Kolkata"`
	BookingCutoffHour  int    `envconfig:"BOOKING_CUTOFF_HOUR" default:"14" validate:"gte=0,lte=24"`
	BookingHorizonDays int    `envconfig:"BOOKING_HORIZON_DAYS" default:"60" validate:"gte=1"`

	Mail Mail `envconfig:"MAIL"`

	RabbitURL        string `envconfig:"RABBIT_URL"`
	ReminderSchedule string `envconfig:"REMINDER_SCHEDULE" default:"0 18 * * *"`

	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// Mail configures outgoing notifications.
type Mail struct {
	Sender     string `envconfig:"SENDER" default:"log" validate:"oneof=log amqp"`
	From       string `envconfig:"FROM" default:"bookings@localhost"`
	Exchange   string `envconfig:"EXCHANGE" default:"mail"`
	RoutingKey string `envconfig:"ROUTING_KEY" default:"mail.outgoing"`
}

// Load reads envFiles (missing files are ignored) and then the process
// environment. Variables already set in the environment win over the files.
func Load(envFiles ...string) (Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return Config{}, fmt.Errorf("process env: %w", err)
	}
	c.LogLevel = strings.ToLower(c.LogLevel)
	if err := validator.New().Struct(c); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	if c.Mail.Sender == "amqp" && c.RabbitURL == "" {
		return Config{}, errors.New("invalid config: RABBIT_URL is required when MAIL_SENDER=amqp")
	}
	if _, err := c.Location(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Location resolves Timezone.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// SlogLevel maps LogLevel to a slog.Level.
func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
