// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"
)

var configFile = altsrc.StringSourcer("config.toml")

// Mail backends.
const (
	MailBackendSMTP     = "smtp"
	MailBackendPostmark = "postmark"
	MailBackendConsole  = "console"
	MailBackendMemory   = "memory"
)

type Config struct { //nolint:govet // fieldalignment not critical for config structs
	Server       ServerConfig
	Log          LogConfig
	Database     DatabaseConfig
	TLS          TLSConfig
	Session      SessionConfig
	Signing      SigningConfig
	Registration RegistrationConfig
	Recovery     RecoveryConfig
	Mail         MailConfig
}

type TLSConfig struct {
	Mode     string // auto, manual, off
	CertFile string // Path to certificate file
	KeyFile  string // Path to private key file
}

type ServerConfig struct { //nolint:govet // fieldalignment not critical for config structs
	Host        string
	Port        int
	BaseURL     string
	MaxBodySize int // in MB
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // text, json
}

type DatabaseConfig struct {
	DSN string
}

type SessionConfig struct { //nolint:govet // fieldalignment not critical
	CookieName string // Session cookie name
	MaxAge     int    // Session max age in seconds
	HashKey    string // 32-byte hex string for HMAC signing
	BlockKey   string // 32-byte hex string for AES encryption (optional)
}

// SigningConfig holds the secret used for activation and recovery keys.
type SigningConfig struct {
	Key      string // 32-byte hex string for HMAC signing
	BlockKey string // 32-byte hex string for AES encryption (optional)
}

// MaxKeyAge is the largest accepted key max age in seconds (ten years).
const MaxKeyAge = 10 * 365 * 24 * 60 * 60

// RegistrationConfig controls account registration and email activation.
type RegistrationConfig struct { //nolint:govet // fieldalignment not critical
	Open   bool
	Salt   string
	MaxAge int // seconds
}

// MaxAgeDuration returns MaxAge as a time.Duration.
func (c RegistrationConfig) MaxAgeDuration() time.Duration {
	return time.Duration(c.MaxAge) * time.Second
}

// RecoveryConfig controls password recovery keys.
type RecoveryConfig struct {
	Salt   string
	MaxAge int // seconds
}

// MaxAgeDuration returns MaxAge as a time.Duration.
func (c RecoveryConfig) MaxAgeDuration() time.Duration {
	return time.Duration(c.MaxAge) * time.Second
}

// MailConfig selects and configures the outgoing mail backend.
type MailConfig struct { //nolint:govet // fieldalignment not critical
	Backend  string // smtp, postmark, console, memory
	From     string
	FromName string
	ReplyTo  string
	SMTP     SMTPConfig
	Postmark PostmarkConfig
}

type SMTPConfig struct { //nolint:govet // fieldalignment not critical
	Host     string
	Port     int
	Username string
	Password string
	TLS      bool
}

type PostmarkConfig struct {
	ServerToken  string
	AccountToken string
}

func NewFromCLI(cmd *cli.Command) *Config {
	cfg := &Config{
		Server: ServerConfig{
			Host:        cmd.String("host"),
			Port:        int(cmd.Int("port")),
			BaseURL:     cmd.String("base-url"),
			MaxBodySize: int(cmd.Int("max-body-size")),
		},
		Log: LogConfig{
			Level:  cmd.String("log-level"),
			Format: cmd.String("log-format"),
		},
		Database: DatabaseConfig{
			DSN: cmd.String("database-dsn"),
		},
		TLS: TLSConfig{
			Mode:     cmd.String("tls-mode"),
			CertFile: cmd.String("tls-cert-file"),
			KeyFile:  cmd.String("tls-key-file"),
		},
		Session: SessionConfig{
			CookieName: cmd.String("session-cookie-name"),
			MaxAge:     int(cmd.Int("session-max-age")),
			HashKey:    cmd.String("session-hash-key"),
			BlockKey:   cmd.String("session-block-key"),
		},
		Signing: SigningConfig{
			Key:      cmd.String("signing-key"),
			BlockKey: cmd.String("signing-block-key"),
		},
		Registration: RegistrationConfig{
			Open:   cmd.Bool("registration-open"),
			Salt:   cmd.String("registration-salt"),
			MaxAge: int(cmd.Int("registration-max-age")),
		},
		Recovery: RecoveryConfig{
			Salt:   cmd.String("recovery-salt"),
			MaxAge: int(cmd.Int("recovery-max-age")),
		},
		Mail: MailConfig{
			Backend:  cmd.String("mail-backend"),
			From:     cmd.String("mail-from"),
			FromName: cmd.String("mail-from-name"),
			ReplyTo:  cmd.String("mail-reply-to"),
			SMTP: SMTPConfig{
				Host:     cmd.String("smtp-host"),
				Port:     int(cmd.Int("smtp-port")),
				Username: cmd.String("smtp-username"),
				Password: cmd.String("smtp-password"),
				TLS:      cmd.Bool("smtp-tls"),
			},
			Postmark: PostmarkConfig{
				ServerToken:  cmd.String("postmark-server-token"),
				AccountToken: cmd.String("postmark-account-token"),
			},
		},
	}

	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = buildBaseURL(cfg)
	}

	return cfg
}

// Validate reports configuration that would make the service unsafe or
// unusable. Salts have no defaults and must be set explicitly.
func (c *Config) Validate() error {
	var errs []error

	if c.Registration.Salt == "" {
		errs = append(errs, errors.New("registration salt is required"))
	}
	if c.Recovery.Salt == "" {
		errs = append(errs, errors.New("recovery salt is required"))
	}
	if c.Registration.Salt != "" && c.Registration.Salt == c.Recovery.Salt {
		errs = append(errs, errors.New("registration and recovery salts must differ"))
	}
	if c.Registration.MaxAge <= 0 {
		errs = append(errs, errors.New("registration max age must be positive"))
	}
	if c.Recovery.MaxAge <= 0 {
		errs = append(errs, errors.New("recovery max age must be positive"))
	}
	if c.Registration.MaxAge > MaxKeyAge {
		errs = append(errs, fmt.Errorf("registration max age must be at most %d seconds", MaxKeyAge))
	}
	if c.Recovery.MaxAge > MaxKeyAge {
		errs = append(errs, fmt.Errorf("recovery max age must be at most %d seconds", MaxKeyAge))
	}

	switch c.Mail.Backend {
	case MailBackendSMTP, MailBackendPostmark, MailBackendConsole, MailBackendMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown mail backend %q", c.Mail.Backend))
	}
	if c.Mail.From == "" {
		errs = append(errs, errors.New("mail from address is required"))
	}

	switch strings.ToLower(c.TLS.Mode) {
	case "", "auto", "off":
	case "manual":
		if c.TLS.CertFile == "" || c.TLS.KeyFile == "" {
			errs = append(errs, errors.New("manual TLS mode requires certificate and key files"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown TLS mode %q", c.TLS.Mode))
	}

	return errors.Join(errs...)
}

// UseTLS reports whether the server terminates TLS itself.
func (c *Config) UseTLS() bool {
	return shouldUseTLS(strings.ToLower(c.TLS.Mode), c.TLS.CertFile, c.TLS.KeyFile)
}

func buildBaseURL(cfg *Config) string {
	host := cfg.Server.Host
	port := cfg.Server.Port

	scheme := "http"
	if cfg.UseTLS() {
		scheme = "https"
	}

	// Hide default ports in URL
	if (scheme == "http" && port == 80) || (scheme == "https" && port == 443) {
		return fmt.Sprintf("%s://%s", scheme, host)
	}
	return fmt.Sprintf("%s://%s:%d", scheme, host, port)
}

func shouldUseTLS(mode, certFile, keyFile string) bool {
	switch mode {
	case "off":
		return false
	case "manual":
		return true
	default: // "auto" or empty
		return certFile != "" && keyFile != ""
	}
}

// IsLocalhost checks if the host is a localhost address.
func IsLocalhost(host string) bool {
	switch host {
	case "", "localhost", "127.0.0.1", "::1":
		return true
	}
	// Check for *.localhost subdomains (e.g., app.localhost)
	return strings.HasSuffix(host, ".localhost")
}

func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "host",
			Value:   "localhost",
			Usage:   "Host to bind to",
			Sources: cli.NewValueSourceChain(cli.EnvVar("HOST"), toml.TOML("server.host", configFile)),
		},
		&cli.IntFlag{
			Name:    "port",
			Value:   8080,
			Usage:   "Port to listen on",
			Sources: cli.NewValueSourceChain(cli.EnvVar("PORT"), toml.TOML("server.port", configFile)),
		},
		&cli.StringFlag{
			Name:    "base-url",
			Usage:   "Base URL for the application (used in activation links)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("BASE_URL"), toml.TOML("server.base_url", configFile)),
		},
		&cli.IntFlag{
			Name:    "max-body-size",
			Value:   1,
			Usage:   "Maximum request body size in MB",
			Sources: cli.NewValueSourceChain(cli.EnvVar("MAX_BODY_SIZE"), toml.TOML("server.max_body_size", configFile)),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Value:   "info",
			Usage:   "Log level (debug, info, warn, error)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("LOG_LEVEL"), toml.TOML("log.level", configFile)),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Value:   "text",
			Usage:   "Log format (text, json)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("LOG_FORMAT"), toml.TOML("log.format", configFile)),
		},
		&cli.StringFlag{
			Name:    "database-dsn",
			Value:   "./data/accounts.db",
			Usage:   "Database DSN",
			Sources: cli.NewValueSourceChain(cli.EnvVar("DATABASE_DSN"), toml.TOML("database.dsn", configFile)),
		},
		&cli.StringFlag{
			Name:    "tls-mode",
			Value:   "auto",
			Usage:   "TLS mode (auto, manual, off)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("TLS_MODE"), toml.TOML("tls.mode", configFile)),
		},
		&cli.StringFlag{
			Name:    "tls-cert-file",
			Usage:   "Path to TLS certificate file",
			Sources: cli.NewValueSourceChain(cli.EnvVar("TLS_CERT_FILE"), toml.TOML("tls.cert_file", configFile)),
		},
		&cli.StringFlag{
			Name:    "tls-key-file",
			Usage:   "Path to TLS private key file",
			Sources: cli.NewValueSourceChain(cli.EnvVar("TLS_KEY_FILE"), toml.TOML("tls.key_file", configFile)),
		},
		// Session flags
		&cli.StringFlag{
			Name:    "session-cookie-name",
			Value:   "_session",
			Usage:   "Session cookie name",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SESSION_COOKIE_NAME"), toml.TOML("session.cookie_name", configFile)),
		},
		&cli.IntFlag{
			Name:    "session-max-age",
			Value:   604800, // 7 days in seconds
			Usage:   "Session max age in seconds",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SESSION_MAX_AGE"), toml.TOML("session.max_age", configFile)),
		},
		&cli.StringFlag{
			Name:    "session-hash-key",
			Usage:   "Session hash key (32-byte hex, auto-generated if empty in dev)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SESSION_HASH_KEY"), toml.TOML("session.hash_key", configFile)),
		},
		&cli.StringFlag{
			Name:    "session-block-key",
			Usage:   "Session block key for encryption (32-byte hex, optional)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SESSION_BLOCK_KEY"), toml.TOML("session.block_key", configFile)),
		},
		// Signing flags
		&cli.StringFlag{
			Name:    "signing-key",
			Usage:   "Activation key signing secret (32-byte hex, auto-generated if empty in dev)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SIGNING_KEY"), toml.TOML("signing.key", configFile)),
		},
		&cli.StringFlag{
			Name:    "signing-block-key",
			Usage:   "Activation key encryption secret (32-byte hex, optional)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SIGNING_BLOCK_KEY"), toml.TOML("signing.block_key", configFile)),
		},
		// Registration flags
		&cli.BoolFlag{
			Name:    "registration-open",
			Usage:   "Allow new users to register",
			Sources: cli.NewValueSourceChain(cli.EnvVar("REGISTRATION_OPEN"), toml.TOML("registration.open", configFile)),
		},
		&cli.StringFlag{
			Name:    "registration-salt",
			Usage:   "Salt namespacing registration activation keys (required)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("REGISTRATION_SALT"), toml.TOML("registration.salt", configFile)),
		},
		&cli.IntFlag{
			Name:    "registration-max-age",
			Value:   86400,
			Usage:   "Seconds an activation key stays valid",
			Sources: cli.NewValueSourceChain(cli.EnvVar("REGISTRATION_MAX_AGE"), toml.TOML("registration.max_age", configFile)),
		},
		// Recovery flags
		&cli.StringFlag{
			Name:    "recovery-salt",
			Usage:   "Salt namespacing password recovery keys (required)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("RECOVERY_SALT"), toml.TOML("recovery.salt", configFile)),
		},
		&cli.IntFlag{
			Name:    "recovery-max-age",
			Value:   86400,
			Usage:   "Seconds a password recovery key stays valid",
			Sources: cli.NewValueSourceChain(cli.EnvVar("RECOVERY_MAX_AGE"), toml.TOML("recovery.max_age", configFile)),
		},
		// Mail flags
		&cli.StringFlag{
			Name:    "mail-backend",
			Value:   MailBackendConsole,
			Usage:   "Mail backend (smtp, postmark, console, memory)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("MAIL_BACKEND"), toml.TOML("mail.backend", configFile)),
		},
		&cli.StringFlag{
			Name:    "mail-from",
			Value:   "noreply@localhost",
			Usage:   "Sender address for outgoing mail",
			Sources: cli.NewValueSourceChain(cli.EnvVar("MAIL_FROM"), toml.TOML("mail.from", configFile)),
		},
		&cli.StringFlag{
			Name:    "mail-from-name",
			Usage:   "Sender display name for outgoing mail",
			Sources: cli.NewValueSourceChain(cli.EnvVar("MAIL_FROM_NAME"), toml.TOML("mail.from_name", configFile)),
		},
		&cli.StringFlag{
			Name:    "mail-reply-to",
			Usage:   "Reply-To address for outgoing mail",
			Sources: cli.NewValueSourceChain(cli.EnvVar("MAIL_REPLY_TO"), toml.TOML("mail.reply_to", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-host",
			Usage:   "SMTP server host",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_HOST"), toml.TOML("mail.smtp.host", configFile)),
		},
		&cli.IntFlag{
			Name:    "smtp-port",
			Value:   587,
			Usage:   "SMTP server port",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_PORT"), toml.TOML("mail.smtp.port", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-username",
			Usage:   "SMTP username",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_USERNAME"), toml.TOML("mail.smtp.username", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-password",
			Usage:   "SMTP password",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_PASSWORD"), toml.TOML("mail.smtp.password", configFile)),
		},
		&cli.BoolFlag{
			Name:    "smtp-tls",
			Value:   true,
			Usage:   "Require TLS for SMTP (implicit TLS on port 465, STARTTLS otherwise)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SMTP_TLS"), toml.TOML("mail.smtp.tls", configFile)),
		},
		&cli.StringFlag{
			Name:    "postmark-server-token",
			Usage:   "Postmark server API token",
			Sources: cli.NewValueSourceChain(cli.EnvVar("POSTMARK_SERVER_TOKEN"), toml.TOML("mail.postmark.server_token", configFile)),
		},
		&cli.StringFlag{
			Name:    "postmark-account-token",
			Usage:   "Postmark account API token",
			Sources: cli.NewValueSourceChain(cli.EnvVar("POSTMARK_ACCOUNT_TOKEN"), toml.TOML("mail.postmark.account_token", configFile)),
		},
	}
}
