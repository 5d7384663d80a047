package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`

	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`

	UploadDir      string `mapstructure:"upload_dir" yaml:"upload_dir"`
	MaxUploadBytes int64  `mapstructure:"max_upload_bytes" yaml:"max_upload_bytes"`

	JWTSecret   string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer   string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience string        `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	JWTTTL      time.Duration `mapstructure:"jwt_ttl" yaml:"jwt_ttl"`

	HistoryLimit int  `mapstructure:"history_limit" yaml:"history_limit"`
	MultiRoom    bool `mapstructure:"multi_room" yaml:"multi_room"`

	DefaultRooms []DefaultRoom `mapstructure:"default_rooms" yaml:"default_rooms"`
}

// DefaultRoom describes a room seeded at startup.
type DefaultRoom struct {
	Name        string `mapstructure:"name" yaml:"name"`
	Description string `mapstructure:"description" yaml:"description"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		DatabasePath:      "chatsphere.db",
		UploadDir:         "uploads",
		MaxUploadBytes:    10 << 20,
		JWTSecret:         "chatsphere-secret-key-change-in-production",
		JWTIssuer:         "chatsphere",
		JWTAudience:       "chatsphere-clients",
		JWTTTL:            7 * 24 * time.Hour,
		HistoryLimit:      100,
		MultiRoom:         false,
		DefaultRooms: []DefaultRoom{
			{Name: "general", Description: "General discussions"},
			{Name: "random", Description: "Random talks and fun"},
			{Name: "coding", Description: "Programming and tech talk"},
			{Name: "gaming", Description: "Video games and entertainment"},
		},
	}
}
