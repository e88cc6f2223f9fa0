// File: config.go
package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/facebookgo/flagenv"
	_ "github.com/joho/godotenv/autoload"
)

var (
	bind                = flag.String("bind", ":28416", "network address to bind HTTP to")
	logLevel            = flag.String("log-level", "info", "logging level (debug, info, warn, error)")
	logPath             = flag.String("log-path", "", "if set, also write logs to this rolling file")
	logMaxSizeMB        = flag.Int("log-max-size-mb", 100, "rotate the log file after this many megabytes")
	logMaxBackups       = flag.Int("log-max-backups", 3, "number of rotated log files to keep")
	logMaxAgeDays       = flag.Int("log-max-age-days", 7, "days to keep rotated log files")
	logCompress         = flag.Bool("log-compress", false, "gzip rotated log files")
	widgetTTL           = flag.Duration("widget-ttl", 10*time.Minute, "drop widgets idle for longer than this")
	reloadRatePerMinute = flag.Int("reload-rate-per-minute", 30, "reload requests allowed per client IP per minute")
	captchaLength       = flag.Int("captcha-length", DefaultLength, "number of characters in each challenge")
	captchaAlphabet     = flag.String("captcha-alphabet", DefaultAlphabet, "characters challenges are drawn from")
	noiseLines          = flag.Int("noise-lines", 6, "default number of noise lines")
)

// Config 运行配置
type Config struct {
	Bind                string
	LogLevel            string
	LogPath             string
	LogMaxSizeMB        int
	LogMaxBackups       int
	LogMaxAgeDays       int
	LogCompress         bool
	WidgetTTL           time.Duration
	ReloadRatePerMinute int
	CaptchaLength       int
	CaptchaAlphabet     string
	NoiseLines          int
}

// DefaultConfig mirrors the flag defaults.
func DefaultConfig() Config {
	return Config{
		Bind:                ":28416",
		LogLevel:            "info",
		LogMaxSizeMB:        100,
		LogMaxBackups:       3,
		LogMaxAgeDays:       7,
		WidgetTTL:           10 * time.Minute,
		ReloadRatePerMinute: 30,
		CaptchaLength:       DefaultLength,
		CaptchaAlphabet:     DefaultAlphabet,
		NoiseLines:          6,
	}
}

// loadConfig reads flags, with environment (and .env) overrides such as
// BIND or LOG_LEVEL.
func loadConfig() (Config, error) {
	flagenv.Parse()
	flag.Parse()

	cfg := Config{
		Bind:                *bind,
		LogLevel:            *logLevel,
		LogPath:             *logPath,
		LogMaxSizeMB:        *logMaxSizeMB,
		LogMaxBackups:       *logMaxBackups,
		LogMaxAgeDays:       *logMaxAgeDays,
		LogCompress:         *logCompress,
		WidgetTTL:           *widgetTTL,
		ReloadRatePerMinute: *reloadRatePerMinute,
		CaptchaLength:       *captchaLength,
		CaptchaAlphabet:     *captchaAlphabet,
		NoiseLines:          *noiseLines,
	}
	return cfg, cfg.Validate()
}

// Validate rejects settings the generator would refuse at request time.
func (c Config) Validate() error {
	if _, err := GenerateCaptcha(c.CaptchaLength, c.CaptchaAlphabet); err != nil {
		return fmt.Errorf("invalid captcha settings: %w", err)
	}
	if c.NoiseLines < 0 {
		return fmt.Errorf("noise-lines must not be negative, got %d", c.NoiseLines)
	}
	if c.ReloadRatePerMinute <= 0 {
		return fmt.Errorf("reload-rate-per-minute must be positive, got %d", c.ReloadRatePerMinute)
	}
	return nil
}
