package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config holds the runtime settings of the engine. Values come from
// config.yaml in the working directory with TRADESHIELD_* environment
// overrides; every field has a usable default.
type Config struct {
	Port         string        `mapstructure:"port"`
	DatabasePath string        `mapstructure:"database_path"`
	JWTSecret    string        `mapstructure:"jwt_secret"`
	Debug        bool          `mapstructure:"debug"`

	// BlockInterval is how often the trigger processor ticks; it stands in
	// for the host chain's block time.
	BlockInterval time.Duration `mapstructure:"block_interval"`

	// EvaluationCap bounds how many orders one tick evaluates per order
	// family, oldest pending first.
	EvaluationCap int `mapstructure:"evaluation_cap"`
}

// Load reads the configuration, tolerating a missing config file
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetDefault("port", "8080")
	v.SetDefault("database_path", "tradeshield.db")
	v.SetDefault("jwt_secret", "tradeshield-secret-key")
	v.SetDefault("debug", false)
	v.SetDefault("block_interval", 5*time.Second)
	v.SetDefault("evaluation_cap", 100)

	v.SetEnvPrefix("TRADESHIELD")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
