package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeXNAT()
	c.normalizeMail()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeXNAT() {
	if strings.TrimSpace(c.XNAT.BaseURL) == "" {
		if value, ok := os.LookupEnv("XNAT_HOST"); ok {
			c.XNAT.BaseURL = value
		}
	}
	if strings.TrimSpace(c.XNAT.Username) == "" {
		if value, ok := os.LookupEnv("XNAT_USER"); ok {
			c.XNAT.Username = value
		}
	}
	if c.XNAT.Password == "" {
		if value, ok := os.LookupEnv("XNAT_PASSWORD"); ok {
			c.XNAT.Password = value
		}
	}
	c.XNAT.BaseURL = strings.TrimRight(strings.TrimSpace(c.XNAT.BaseURL), "/")
	c.XNAT.Username = strings.TrimSpace(c.XNAT.Username)
	if c.XNAT.RequestTimeout == 0 {
		c.XNAT.RequestTimeout = defaultXNATRequestTimeout
	}
}

func (c *Config) normalizeMail() {
	if value, ok := os.LookupEnv("XNATFLOW_MAIL_HOST"); ok && strings.TrimSpace(value) != "" {
		c.Mail.Host = value
	}
	c.Mail.Host = strings.TrimSpace(c.Mail.Host)
	if c.Mail.Host == "" {
		c.Mail.Host = defaultMailHost
	}
	c.Mail.From = strings.TrimSpace(c.Mail.From)
	if c.Mail.From == "" {
		c.Mail.From = defaultMailFrom
	}
	admins := make([]string, 0, len(c.Mail.AdminEmails))
	for _, addr := range c.Mail.AdminEmails {
		if addr = strings.TrimSpace(addr); addr != "" {
			admins = append(admins, addr)
		}
	}
	c.Mail.AdminEmails = admins
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout == 0 {
		c.Notifications.RequestTimeout = defaultNtfyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
