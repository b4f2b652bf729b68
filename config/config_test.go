package config

import "testing"

func TestEnvOverrideWins(t *testing.T) {
	t.Setenv("BETA_THRESHOLD", "12.5")
	t.Setenv("SCREENER_WORKERS", "4")

	cfg := &Config{}
	cfg.ScreenerConfig.BetaThreshold = 55
	cfg.ScreenerConfig.WorkerCount = 16
	applyEnvOverrides(cfg)

	if cfg.ScreenerConfig.BetaThreshold != 12.5 {
		t.Errorf("BetaThreshold = %v, want env value 12.5", cfg.ScreenerConfig.BetaThreshold)
	}
	if cfg.ScreenerConfig.WorkerCount != 4 {
		t.Errorf("WorkerCount = %v, want env value 4", cfg.ScreenerConfig.WorkerCount)
	}
}

func TestFileValueSurvivesUnsetEnv(t *testing.T) {
	t.Setenv("BETA_THRESHOLD", "")
	t.Setenv("SCREENER_WORKERS", "")
	t.Setenv("WEB_PORT", "")
	t.Setenv("LOG_LEVEL", "")

	cfg := &Config{}
	cfg.ScreenerConfig.BetaThreshold = 55
	cfg.ScreenerConfig.WorkerCount = 16
	cfg.ServerConfig.Port = 9090
	cfg.LoggingConfig.Level = "debug"
	applyEnvOverrides(cfg)

	if cfg.ScreenerConfig.BetaThreshold != 55 {
		t.Errorf("BetaThreshold = %v, want file value 55", cfg.ScreenerConfig.BetaThreshold)
	}
	if cfg.ScreenerConfig.WorkerCount != 16 {
		t.Errorf("WorkerCount = %v, want file value 16", cfg.ScreenerConfig.WorkerCount)
	}
	if cfg.ServerConfig.Port != 9090 {
		t.Errorf("Port = %v, want file value 9090", cfg.ServerConfig.Port)
	}
	if cfg.LoggingConfig.Level != "debug" {
		t.Errorf("Level = %q, want file value debug", cfg.LoggingConfig.Level)
	}
}

func TestBuiltinDefaultsWhenUnconfigured(t *testing.T) {
	t.Setenv("BETA_THRESHOLD", "")
	t.Setenv("SCREENER_WORKERS", "")
	t.Setenv("WEB_PORT", "")

	cfg := &Config{}
	applyEnvOverrides(cfg)

	if cfg.ScreenerConfig.BetaThreshold != 30 {
		t.Errorf("BetaThreshold = %v, want default 30", cfg.ScreenerConfig.BetaThreshold)
	}
	if cfg.ScreenerConfig.WorkerCount != 10 {
		t.Errorf("WorkerCount = %v, want default 10", cfg.ScreenerConfig.WorkerCount)
	}
	if cfg.ServerConfig.Port != 8080 {
		t.Errorf("Port = %v, want default 8080", cfg.ServerConfig.Port)
	}
}
