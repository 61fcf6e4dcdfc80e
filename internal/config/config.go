package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"Server"`
	Database DatabaseConfig `mapstructure:"Database"`
	Storage  StorageConfig  `mapstructure:"Storage"`
}

type ServerConfig struct {
	Port string `mapstructure:"Port" validate:"required"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"Host" validate:"required"`
	Port     string `mapstructure:"Port" validate:"required"`
	User     string `mapstructure:"User" validate:"required"`
	Password string `mapstructure:"Password" validate:"required"`
	Name     string `mapstructure:"Name" validate:"required"`
	SSLMode  string `mapstructure:"SSLMode"`
}

type StorageConfig struct {
	// Backend: local или s3
	Backend string `mapstructure:"Backend" validate:"required,oneof=local s3"`
	// LocalDir — корень локального хранилища, нужен при Backend=local
	LocalDir string `mapstructure:"LocalDir" validate:"required_if=Backend local"`
	// Retention — срок хранения в корзине, часы
	RetentionHours int `mapstructure:"RetentionHours"`
}

func NewConfig(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)

	// Привязываем переменные окружения
	v.BindEnv("Database.Host", "DATABASE_HOST")
	v.BindEnv("Database.Port", "DATABASE_PORT")
	v.BindEnv("Database.User", "DATABASE_USER")
	v.BindEnv("Database.Password", "DATABASE_PASSWORD")
	v.BindEnv("Database.Name", "DATABASE_NAME")
	v.BindEnv("Database.SSLMode", "DATABASE_SSLMODE")
	v.BindEnv("Server.Port", "HTTP_PORT")
	v.BindEnv("Storage.Backend", "STORAGE_BACKEND")
	v.BindEnv("Storage.LocalDir", "STORAGE_LOCAL_DIR")
	v.BindEnv("Storage.RetentionHours", "STORAGE_RETENTION_HOURS")

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("Warning: using only environment variables: %v\n", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Значения по умолчанию
	if cfg.Server.Port == "" {
		cfg.Server.Port = "2525"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "local"
	}
	if cfg.Storage.Backend == "local" && cfg.Storage.LocalDir == "" {
		cfg.Storage.LocalDir = "/var/lib/fmdrive/files"
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		c.Port,
		c.User,
		c.Password,
		c.Name,
		c.SSLMode,
	)
}
