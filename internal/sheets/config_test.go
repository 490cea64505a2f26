package sheets

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigValidate(t *testing.T) {
	oauth := func() Config {
		c := DefaultConfig()
		c.ClientID = "id"
		c.ClientSecret = "secret"
		c.RefreshToken = "token"
		return c
	}

	tests := []struct {
		mutate  func(*Config)
		name    string
		wantErr string
	}{
		{
			name:   "oauth config is valid",
			mutate: func(_ *Config) {},
		},
		{
			name: "service account config is valid",
			mutate: func(c *Config) {
				c.ClientID = ""
				c.ClientSecret = ""
				c.RefreshToken = ""
				c.ServiceAccountPath = "/tmp/sa.json"
			},
		},
		{
			name: "no auth at all",
			mutate: func(c *Config) {
				c.ClientID = ""
				c.ClientSecret = ""
				c.RefreshToken = ""
			},
			wantErr: "no authentication method",
		},
		{
			name: "both auth methods",
			mutate: func(c *Config) {
				c.ServiceAccountPath = "/tmp/sa.json"
			},
			wantErr: "multiple authentication methods",
		},
		{
			name:    "partial oauth counts as none",
			mutate:  func(c *Config) { c.RefreshToken = "" },
			wantErr: "no authentication method",
		},
		{
			name:    "zero batch size",
			mutate:  func(c *Config) { c.BatchSize = 0 },
			wantErr: "batch size",
		},
		{
			name:    "negative retry attempts",
			mutate:  func(c *Config) { c.RetryAttempts = -1 },
			wantErr: "retry attempts",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := oauth()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "Asia/Tokyo", cfg.TimeZone)
	assert.Equal(t, "Classification Report", cfg.SpreadsheetName)
	assert.Equal(t, 1000, cfg.BatchSize)
	assert.True(t, cfg.EnableFormatting)
}
