package config

const (
	defaultConfigPath            = "~/.config/xnatflow/config.toml"
	defaultStateDir              = "~/.local/share/xnatflow"
	defaultLogDir                = "~/.local/share/xnatflow/logs"
	defaultLogFormat             = "auto"
	defaultLogLevel              = "info"
	defaultXNATRequestTimeout    = 120
	defaultNtfyRequestTimeout    = 10
	defaultMailHost              = "localhost"
	defaultMailFrom              = "xnatflow@localhost"
	defaultNotificationsEmail    = true
	defaultTLSInsecureSkipVerify = false
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		XNAT: XNAT{
			RequestTimeout:        defaultXNATRequestTimeout,
			TLSInsecureSkipVerify: defaultTLSInsecureSkipVerify,
		},
		Mail: Mail{
			Host: defaultMailHost,
			From: defaultMailFrom,
		},
		Notifications: Notifications{
			Email:          defaultNotificationsEmail,
			RequestTimeout: defaultNtfyRequestTimeout,
		},
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
