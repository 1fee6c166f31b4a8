package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// LoadConfig loads the configuration and sets default values for development/production
func LoadConfig() error {
	viper.SetConfigName("config")
	viper.SetConfigType("json")
	viper.AddConfigPath(".") // Path to look for the config file in

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; create a default one
			return createDefaultConfig()
		}
		return fmt.Errorf("error reading config file: %w", err)
	}

	// Ensure we have sensible defaults in case they are not in the config file
	setDefaults()

	return nil
}

// setDefaults sets default configuration values based on the environment
func setDefaults() {
	// Check the current environment (default is development)
	env := viper.GetString("ENV")
	if env == "" {
		env = "development"
		viper.Set("ENV", env)
	}

	if env == "development" {
		viper.SetDefault("metadata_url", "http://localhost:4000/topshot-data")
		viper.SetDefault("portfolio_db_path", "./dev_flowfolio.db")
		viper.SetDefault("log_level", "debug")
	} else if env == "production" {
		viper.SetDefault("metadata_url", "https://api.vaultopolis.com/topshot-data")
		viper.SetDefault("portfolio_db_path", "/var/lib/flowfolio/flowfolio.db")
		viper.SetDefault("log_level", "info")
	}

	// Common defaults for both environments
	viper.SetDefault("log_file", "")
	viper.SetDefault("metadata_ttl", "1h")
	viper.SetDefault("moment_batch_size", 2500)
	viper.SetDefault("batch_concurrency", 30)
	viper.SetDefault("child_concurrency", 30)
	viper.SetDefault("balance_poll_interval", "60s")
	viper.SetDefault("gateway_timeout", "30s") // 0 disables the per-call deadline
	viper.SetDefault("tx_retention_age", "24h")
	viper.SetDefault("tx_retention_count", 50)
}

// createDefaultConfig creates a new configuration file if it doesn't exist
func createDefaultConfig() error {
	setDefaults()

	// Write the default configuration to a file
	err := viper.SafeWriteConfig()
	if err != nil {
		if os.IsExist(err) {
			// If the config already exists, attempt to overwrite it
			err = viper.WriteConfig()
			if err != nil {
				return fmt.Errorf("error writing config file: %w", err)
			}
		} else {
			return fmt.Errorf("error creating config file: %w", err)
		}
	}

	fmt.Println("Created default configuration file")
	return nil
}
