/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables, providing a
 * centralized and straightforward way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the console service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort             string `mapstructure:"SERVER_PORT"`
	DatabaseURL            string `mapstructure:"DATABASE_URL"`
	RabbitMQURL            string `mapstructure:"RABBITMQ_URL"`
	ReconcileEventExchange string `mapstructure:"RECONCILE_EVENT_EXCHANGE"`
	DLocalSandboxURL       string `mapstructure:"DLOCAL_SANDBOX_URL"`
	DLocalProductionURL    string `mapstructure:"DLOCAL_PRODUCTION_URL"`
	HTTPTimeoutSeconds     int    `mapstructure:"HTTP_TIMEOUT_SECONDS"`

	// AcceptStatusRegressions records whatever status the provider last
	// reported, even when it walks a terminal state back. Set to false to
	// freeze terminal statuses in the ledger.
	AcceptStatusRegressions bool `mapstructure:"ACCEPT_STATUS_REGRESSIONS"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("RECONCILE_EVENT_EXCHANGE", "kyc_console.events")
	viper.SetDefault("DLOCAL_SANDBOX_URL", "https://sandbox.dlocal.com")
	viper.SetDefault("DLOCAL_PRODUCTION_URL", "https://api.dlocal.com")
	viper.SetDefault("HTTP_TIMEOUT_SECONDS", 30)
	viper.SetDefault("ACCEPT_STATUS_REGRESSIONS", true)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("RECONCILE_EVENT_EXCHANGE")
	_ = viper.BindEnv("DLOCAL_SANDBOX_URL")
	_ = viper.BindEnv("DLOCAL_PRODUCTION_URL")
	_ = viper.BindEnv("HTTP_TIMEOUT_SECONDS")
	_ = viper.BindEnv("ACCEPT_STATUS_REGRESSIONS")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		// If the config file is not found, we can ignore the error.
		// For other errors, we should return them.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.DatabaseURL = strings.TrimSpace(config.DatabaseURL)
	config.RabbitMQURL = strings.TrimSpace(config.RabbitMQURL)

	if config.HTTPTimeoutSeconds <= 0 {
		config.HTTPTimeoutSeconds = 30
	}

	return
}
