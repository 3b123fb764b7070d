/**
 * @description
 * Configuration management for the billing service. Settings come from
 * environment variables with sensible defaults for the cron schedules.
 */
package config

import (
	"errors"
	"os"

	"github.com/spf13/viper"
)

// Config holds all configuration for the billing service.
type Config struct {
	ServerPort          string `mapstructure:"SERVER_PORT"`
	DatabaseURL         string `mapstructure:"DATABASE_URL"`
	RabbitMQURL         string `mapstructure:"RABBITMQ_URL"`
	RedisURL            string `mapstructure:"REDIS_URL"`
	JWTSecret           string `mapstructure:"JWT_SECRET"`
	InternalAPIKey      string `mapstructure:"INTERNAL_API_KEY"`
	GatewayURL          string `mapstructure:"GATEWAY_URL"`
	GatewayKeyID        string `mapstructure:"GATEWAY_KEY_ID"`
	GatewayKeySecret    string `mapstructure:"GATEWAY_KEY_SECRET"`
	InvoiceJobSchedule  string `mapstructure:"INVOICE_JOB_SCHEDULE"`
	OverdueJobSchedule  string `mapstructure:"OVERDUE_JOB_SCHEDULE"`
	ReminderJobSchedule string `mapstructure:"REMINDER_JOB_SCHEDULE"`
	ReminderLimitPerDay int    `mapstructure:"REMINDER_LIMIT_PER_DAY"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (Config, error) {
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("INVOICE_JOB_SCHEDULE", "0 0 * * *")    // daily at midnight
	viper.SetDefault("OVERDUE_JOB_SCHEDULE", "0 1 * * *")    // daily at 01:00
	viper.SetDefault("REMINDER_JOB_SCHEDULE", "0 9 * * *")   // daily at 09:00
	viper.SetDefault("REMINDER_LIMIT_PER_DAY", 0)            // 0 disables the reminder cap
	viper.AutomaticEnv()

	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("JWT_SECRET")
	_ = viper.BindEnv("INTERNAL_API_KEY")
	_ = viper.BindEnv("GATEWAY_URL")
	_ = viper.BindEnv("GATEWAY_KEY_ID")
	_ = viper.BindEnv("GATEWAY_KEY_SECRET")
	_ = viper.BindEnv("INVOICE_JOB_SCHEDULE")
	_ = viper.BindEnv("OVERDUE_JOB_SCHEDULE")
	_ = viper.BindEnv("REMINDER_JOB_SCHEDULE")
	_ = viper.BindEnv("REMINDER_LIMIT_PER_DAY")

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return Config{}, err
	}

	if port := os.Getenv("PORT"); port != "" {
		config.ServerPort = port
	}
	if config.DatabaseURL == "" {
		return Config{}, errors.New("DATABASE_URL is required")
	}

	return config, nil
}
