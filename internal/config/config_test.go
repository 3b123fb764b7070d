package config

import (
	"testing"

	"github.com/spf13/viper"
)

func TestLoadConfig_Defaults(t *testing.T) {
	viper.Reset()
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/billing")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "8080" {
		t.Fatalf("expected default port 8080, got %s", cfg.ServerPort)
	}
	if cfg.InvoiceJobSchedule != "0 0 * * *" {
		t.Fatalf("expected default invoice schedule, got %s", cfg.InvoiceJobSchedule)
	}
	if cfg.OverdueJobSchedule != "0 1 * * *" {
		t.Fatalf("expected default overdue schedule, got %s", cfg.OverdueJobSchedule)
	}
	if cfg.ReminderJobSchedule != "0 9 * * *" {
		t.Fatalf("expected default reminder schedule, got %s", cfg.ReminderJobSchedule)
	}
	if cfg.ReminderLimitPerDay != 0 {
		t.Fatalf("expected reminder limit disabled by default, got %d", cfg.ReminderLimitPerDay)
	}
}

func TestLoadConfig_RequiresDatabaseURL(t *testing.T) {
	viper.Reset()
	t.Setenv("DATABASE_URL", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error when DATABASE_URL is missing")
	}
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	viper.Reset()
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/billing")
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("INVOICE_JOB_SCHEDULE", "*/5 * * * *")
	t.Setenv("REMINDER_LIMIT_PER_DAY", "2")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "9000" {
		t.Fatalf("expected port 9000, got %s", cfg.ServerPort)
	}
	if cfg.InvoiceJobSchedule != "*/5 * * * *" {
		t.Fatalf("expected overridden invoice schedule, got %s", cfg.InvoiceJobSchedule)
	}
	if cfg.ReminderLimitPerDay != 2 {
		t.Fatalf("expected reminder limit 2, got %d", cfg.ReminderLimitPerDay)
	}
}

func TestLoadConfig_PlatformPortWins(t *testing.T) {
	viper.Reset()
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/billing")
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("PORT", "3000")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "3000" {
		t.Fatalf("expected PORT to override SERVER_PORT, got %s", cfg.ServerPort)
	}
}
