package conf

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/bytevault/bytevault/internal/pkg/database"
	"github.com/bytevault/bytevault/internal/pkg/logger"
	"github.com/bytevault/bytevault/internal/pkg/redis"
	"github.com/bytevault/bytevault/internal/pkg/workerpool"
)

type Config struct {
	Server   ServerConfig      `mapstructure:"server"`
	Database database.Config   `mapstructure:"database"`
	Redis    redis.Config      `mapstructure:"redis"`
	Log      logger.Config     `mapstructure:"log"`
	Auth     AuthConfig        `mapstructure:"auth"`
	Storage  StorageConfig     `mapstructure:"storage"`
	Worker   WorkerConfig      `mapstructure:"worker"`
	Pool     workerpool.Config `mapstructure:"pool"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	JWTIssuer string `mapstructure:"jwt_issuer"`
}

type StorageConfig struct {
	// DefaultRedundancy is the copy count used when an upload does not ask
	// for one, and for generated variants.
	DefaultRedundancy int `mapstructure:"default_redundancy"`
	// References lists the external tables that hold pointers to files,
	// consulted by orphan detection.
	References []ReferenceConfig `mapstructure:"references"`
	// SeedDimensions inserts the default variant specs on first boot
	SeedDimensions bool `mapstructure:"seed_dimensions"`
}

type ReferenceConfig struct {
	Table  string `mapstructure:"table"`
	Column string `mapstructure:"column"`
}

type WorkerConfig struct {
	Count int `mapstructure:"count"`
}

func LoadConfig(path string) (*Config, error) {
	viper.SetConfigFile(path)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if config.Storage.DefaultRedundancy == 0 {
		config.Storage.DefaultRedundancy = 2
	}
	if config.Worker.Count == 0 {
		config.Worker.Count = 2
	}

	return &config, nil
}
