package config

import "time"

// LoadTestConfig returns Defaults with deterministic secrets and a dedicated test database.
// It reads neither files nor the environment.
func LoadTestConfig() *Config {
	cfg := Defaults()
	cfg.App.Env = "test"
	cfg.Server.Port = 8081

	cfg.Database.Name = "waos_test"
	cfg.Database.User = "test_user"
	cfg.Database.Password = "test_password"
	cfg.Database.ConnectAttempts = 1

	cfg.JWT.Secret = "test-secret-key"
	cfg.JWT.AccessTTL = 15 * time.Minute
	cfg.JWT.RefreshTTL = time.Hour

	cfg.Security.MinPasswordScore = 2
	return cfg
}
