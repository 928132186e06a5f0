package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`
	LogFormat         string        `mapstructure:"log_format" yaml:"log_format"`

	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`
	ProblemsPath string `mapstructure:"problems_path" yaml:"problems_path"`

	JWTSecret   string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer   string `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience string `mapstructure:"jwt_audience" yaml:"jwt_audience"`

	Rooms Rooms `mapstructure:"rooms" yaml:"rooms"`
	Match Match `mapstructure:"matchmaking" yaml:"matchmaking"`

	// WSMessagesPerMinute caps inbound messages per connection. Zero disables.
	WSMessagesPerMinute int `mapstructure:"ws_messages_per_minute" yaml:"ws_messages_per_minute"`
}

// Rooms tunes room behavior.
type Rooms struct {
	PairCapacity int           `mapstructure:"pair_capacity" yaml:"pair_capacity"`
	ChatLogCap   int           `mapstructure:"chat_log_cap" yaml:"chat_log_cap"`
	GraceWindow  time.Duration `mapstructure:"grace_window" yaml:"grace_window"`
	IdleTTL      time.Duration `mapstructure:"idle_ttl" yaml:"idle_ttl"`
}

// Match tunes the duel matchmaking queue.
type Match struct {
	Tick          time.Duration `mapstructure:"tick" yaml:"tick"`
	BaseBand      int           `mapstructure:"base_band" yaml:"base_band"`
	WidenStep     int           `mapstructure:"widen_step" yaml:"widen_step"`
	WidenInterval time.Duration `mapstructure:"widen_interval" yaml:"widen_interval"`
	EntryTTL      time.Duration `mapstructure:"entry_ttl" yaml:"entry_ttl"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		LogFormat:         "console",
		DatabasePath:      "codeclash.db",
		ProblemsPath:      "problems.yaml",
		JWTSecret:         "change-me-in-production",
		JWTIssuer:         "codeclash",
		JWTAudience:       "codeclash-clients",
		Rooms: Rooms{
			PairCapacity: 2,
			ChatLogCap:   200,
			GraceWindow:  30 * time.Second,
			IdleTTL:      2 * time.Minute,
		},
		Match: Match{
			Tick:          2 * time.Second,
			BaseBand:      100,
			WidenStep:     50,
			WidenInterval: 5 * time.Second,
			EntryTTL:      60 * time.Second,
		},
		WSMessagesPerMinute: 600,
	}
}
