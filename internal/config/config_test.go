package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_MemoryDefaults(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", StorageDriverMemory)
	t.Setenv("API_KEYS", " key-a , key-b")

	cfg, err := LoadConfig()

	require.NoError(t, err)
	assert.Equal(t, StorageDriverMemory, cfg.StorageDriver)
	assert.Equal(t, 10*time.Second, cfg.WebhookTimeout)
	assert.Equal(t, 200.0, cfg.DuplicateRadiusMeters)
	assert.Equal(t, 500.0, cfg.VerificationRadiusMeters)
	assert.Equal(t, 3, cfg.PromotionThreshold)
	assert.Equal(t, []string{"key-a", "key-b"}, cfg.APIKeys)
}

func TestLoadConfig_PostgresRequiresDatabaseURL(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", StorageDriverPostgres)
	t.Setenv("DATABASE_URL", "")

	cfg, err := LoadConfig()

	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name:    "unknown driver",
			cfg:     Config{StorageDriver: "sqlite", DuplicateRadiusMeters: 1, VerificationRadiusMeters: 1, PromotionThreshold: 1},
			wantErr: "unknown STORAGE_DRIVER",
		},
		{
			name:    "zero radius",
			cfg:     Config{StorageDriver: StorageDriverMemory, PromotionThreshold: 1},
			wantErr: "radius",
		},
		{
			name:    "zero threshold",
			cfg:     Config{StorageDriver: StorageDriverMemory, DuplicateRadiusMeters: 1, VerificationRadiusMeters: 1},
			wantErr: "PROMOTION_THRESHOLD",
		},
		{
			name: "valid",
			cfg:  Config{StorageDriver: StorageDriverMemory, DuplicateRadiusMeters: 200, VerificationRadiusMeters: 500, PromotionThreshold: 3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
