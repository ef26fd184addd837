package config

import "time"

type Config struct {
	Server    ServerConfig
	Auth      AuthConfig
	Transport TransportConfig
	History   HistoryConfig
	Log       LogConfig
}

type ServerConfig struct {
	Address         string
	ConnectionLimit ConnectionLimitConfig `mapstructure:"connectionLimit"`
}

// AuthConfig carries the process-wide shared secrets. Rotating the app
// key or secret invalidates every issued but unredeemed grant.
type AuthConfig struct {
	AppKey    string `mapstructure:"appKey"`
	AppSecret string `mapstructure:"appSecret"`
	JWTSecret string `mapstructure:"jwtSecret"`
}

type ConnectionLimitConfig struct {
	MaxPerUser int    `mapstructure:"maxPerUser"`
	Mode       string `mapstructure:"mode"` // "reject" or "cycle"
}

type TransportConfig struct {
	ReadTimeout time.Duration `mapstructure:"readTimeout"`
}

type HistoryConfig struct {
	Limit int
}

type LogConfig struct {
	Level string
}
