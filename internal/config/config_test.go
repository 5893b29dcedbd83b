package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveDefaultsDriverDerivation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"auto without backend", Config{StoreDriver: "auto", RequestExpiryHours: 24}, "memory"},
		{"auto with backend", Config{StoreDriver: "auto", BackendURL: "http://api", RequestExpiryHours: 24}, "rest"},
		{"emulator fills backend", Config{StoreDriver: "auto", UseEmulator: true, EmulatorURL: "http://localhost:8790", RequestExpiryHours: 24}, "rest"},
		{"explicit sqlite", Config{StoreDriver: "sqlite", SQLitePath: "/tmp/x.db", RequestExpiryHours: 24}, "sqlite"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, tt.cfg.ResolveDefaults())
			assert.Equal(t, tt.want, tt.cfg.StoreDriver)
		})
	}
}

func TestResolveDefaultsRejectsIncomplete(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"unknown driver", Config{StoreDriver: "bolt", RequestExpiryHours: 24}},
		{"rest without backend", Config{StoreDriver: "rest", RequestExpiryHours: 24}},
		{"sqlite without path", Config{StoreDriver: "sqlite", RequestExpiryHours: 24}},
		{"postgres without dsn", Config{StoreDriver: "postgres", RequestExpiryHours: 24}},
		{"zero expiry", Config{StoreDriver: "memory"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.cfg.ResolveDefaults())
		})
	}
}

func TestNewReadsEnvironment(t *testing.T) {
	t.Setenv("FAMGATE_STORE_DRIVER", "memory")
	t.Setenv("FAMGATE_REQUEST_EXPIRY_HOURS", "6")

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.StoreDriver)
	assert.Equal(t, "famgate-dev", cfg.ProjectID)
	assert.Equal(t, 6*3600, int(cfg.RequestExpiry().Seconds()))
	assert.Equal(t, 8790, cfg.HTTPPort)
}
