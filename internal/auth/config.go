package auth

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	SigningKey string `mapstructure:"SIGNING_KEY"`
}

func NewConfig(path string) (*Config, error) {
	viper.SetConfigFile(path)
	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("cannot read config from %s: %w", path, err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("cannot unmarshal config: %w", err)
	}

	if cfg.SigningKey == "" {
		return nil, fmt.Errorf("SIGNING_KEY is required")
	}

	return &cfg, nil
}
