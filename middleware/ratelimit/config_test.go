package ratelimit

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.RedisAddr != "localhost:6379" {
		t.Errorf("RedisAddr = %q, want localhost:6379", cfg.RedisAddr)
	}
	if cfg.RedisPassword != "" {
		t.Errorf("RedisPassword = %q, want empty", cfg.RedisPassword)
	}
	if cfg.RedisDB != 0 {
		t.Errorf("RedisDB = %d, want 0", cfg.RedisDB)
	}
	if cfg.Limit != 30 {
		t.Errorf("Limit = %d, want 30", cfg.Limit)
	}
	if cfg.Window != time.Minute {
		t.Errorf("Window = %v, want 1m", cfg.Window)
	}
	if cfg.KeyPrefix != "sendlimit:" {
		t.Errorf("KeyPrefix = %q, want sendlimit:", cfg.KeyPrefix)
	}
}

func TestConfigOptions(t *testing.T) {
	tests := []struct {
		name   string
		option Option
		check  func(t *testing.T, cfg *Config)
	}{
		{
			name:   "WithRedisAddr",
			option: WithRedisAddr("redis.internal:6380"),
			check: func(t *testing.T, cfg *Config) {
				if cfg.RedisAddr != "redis.internal:6380" {
					t.Errorf("RedisAddr = %q, want redis.internal:6380", cfg.RedisAddr)
				}
			},
		},
		{
			name:   "WithRedisPassword",
			option: WithRedisPassword("secret"),
			check: func(t *testing.T, cfg *Config) {
				if cfg.RedisPassword != "secret" {
					t.Errorf("RedisPassword = %q, want secret", cfg.RedisPassword)
				}
			},
		},
		{
			name:   "WithRedisDB",
			option: WithRedisDB(3),
			check: func(t *testing.T, cfg *Config) {
				if cfg.RedisDB != 3 {
					t.Errorf("RedisDB = %d, want 3", cfg.RedisDB)
				}
			},
		},
		{
			name:   "WithLimit",
			option: WithLimit(10, 30*time.Second),
			check: func(t *testing.T, cfg *Config) {
				if cfg.Limit != 10 {
					t.Errorf("Limit = %d, want 10", cfg.Limit)
				}
				if cfg.Window != 30*time.Second {
					t.Errorf("Window = %v, want 30s", cfg.Window)
				}
			},
		},
		{
			name:   "WithKeyPrefix",
			option: WithKeyPrefix("chat:"),
			check: func(t *testing.T, cfg *Config) {
				if cfg.KeyPrefix != "chat:" {
					t.Errorf("KeyPrefix = %q, want chat:", cfg.KeyPrefix)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.option(&cfg)
			tt.check(t, &cfg)
		})
	}
}

func TestConfigOptions_Combined(t *testing.T) {
	cfg := DefaultConfig()
	for _, opt := range []Option{
		WithRedisAddr("10.0.0.5:6379"),
		WithLimit(5, 10*time.Second),
		WithKeyPrefix("burst:"),
	} {
		opt(&cfg)
	}

	if cfg.RedisAddr != "10.0.0.5:6379" || cfg.Limit != 5 || cfg.Window != 10*time.Second || cfg.KeyPrefix != "burst:" {
		t.Errorf("combined options not applied: %+v", cfg)
	}
}
