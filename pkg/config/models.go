package config

import "time"

type Config struct {
	Server    ServerConfig
	Transport TransportConfig
	Party     PartyConfig
	LogLevel  string `mapstructure:"logLevel"`
}

type ServerConfig struct {
	Address         string
	ConnectionLimit ConnectionLimitConfig `mapstructure:"connectionLimit"`
}

type ConnectionLimitConfig struct {
	MaxPerIP int    `mapstructure:"maxPerIP"`
	Mode     string `mapstructure:"mode"` // "reject" or "cycle"
}

type TransportConfig struct {
	ReadTimeout  time.Duration `mapstructure:"readTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout"`
}

type PartyConfig struct {
	CodeLength   int `mapstructure:"codeLength"`
	CodeAttempts int `mapstructure:"codeAttempts"`
}
