package authkit

import (
	"testing"
	"time"
)

func validTestConfig() Config {
	cfg := defaultConfig()
	cfg.Token.AccessSecret = []byte("test-access-secret")
	cfg.Token.RefreshSecret = []byte("test-refresh-secret")
	return cfg
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults with secrets", func(c *Config) {}, false},
		{"missing prefix", func(c *Config) { c.RedisPrefix = "" }, true},
		{"missing access secret", func(c *Config) { c.Token.AccessSecret = nil }, true},
		{"missing refresh secret", func(c *Config) { c.Token.RefreshSecret = nil }, true},
		{"identical secrets", func(c *Config) {
			c.Token.RefreshSecret = []byte("test-access-secret")
		}, true},
		{"access TTL not shorter", func(c *Config) {
			c.Token.AccessTTL = c.Token.RefreshTTL
		}, true},
		{"missing issuer", func(c *Config) { c.Token.Issuer = "" }, true},
		{"zero verify TTL", func(c *Config) { c.Tokens.VerifyTTL = 0 }, true},
		{"negative retention", func(c *Config) { c.Tokens.ExpiredRetention = -time.Hour }, true},
		{"code digits too small", func(c *Config) { c.Codes.Digits = 3 }, true},
		{"code digits too large", func(c *Config) { c.Codes.Digits = 11 }, true},
		{"zero history entries", func(c *Config) { c.History.MaxEntries = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTestConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected a validation error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestCloneConfigCopiesSecrets(t *testing.T) {
	cfg := validTestConfig()
	clone := cloneConfig(cfg)

	cfg.Token.AccessSecret[0] ^= 0xff
	if clone.Token.AccessSecret[0] == cfg.Token.AccessSecret[0] {
		t.Error("clone shares the access secret backing array")
	}
}
