package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateXNAT(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateXNAT() error {
	if c.XNAT.RequestTimeout < 0 {
		return errors.New("xnat.request_timeout must not be negative")
	}
	if c.XNAT.BaseURL == "" {
		// The base URL may also arrive through launcher arguments.
		return nil
	}
	return ValidateBaseURL(c.XNAT.BaseURL)
}

// ValidateBaseURL checks that a remote service URL uses a supported scheme.
func ValidateBaseURL(raw string) error {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("xnat.base_url: %w", err)
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
	default:
		return fmt.Errorf("xnat.base_url: unsupported scheme %q (want http or https)", parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("xnat.base_url: missing host in %q", raw)
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	if c.Notifications.Email && c.Mail.From == "" {
		return errors.New("mail.from must be set when notifications.email is true")
	}
	if topic := c.Notifications.NtfyTopic; topic != "" {
		if parsed, err := url.Parse(topic); err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("notifications.ntfy_topic must be a full URL, got %q", topic)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "auto", "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}
