package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Location(t *testing.T) {
	tests := []struct {
		zone    string
		want    string
		wantErr bool
	}{
		{zone: "", want: time.Local.String()},
		{zone: "Local", want: time.Local.String()},
		{zone: "UTC", want: "UTC"},
		{zone: "Asia/Jakarta", want: "Asia/Jakarta"},
		{zone: "Mars/Olympus", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.zone, func(t *testing.T) {
			loc, err := (&Config{Timezone: tt.zone}).Location()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, loc.String())
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := Config{DatabaseURL: "postgres://localhost/pos", TokenPepper: "pepper", Timezone: "UTC"}
	require.NoError(t, valid.validate())

	noDB := valid
	noDB.DatabaseURL = ""
	assert.ErrorContains(t, noDB.validate(), "database URL is required")

	noPepper := valid
	noPepper.TokenPepper = ""
	assert.ErrorContains(t, noPepper.validate(), "token pepper is required")

	badZone := valid
	badZone.Timezone = "Nowhere/Else"
	assert.ErrorContains(t, badZone.validate(), "load timezone")
}

func TestConfig_ApplyPlatformDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://platform/pos")
	t.Setenv("PORT", "9000")

	cfg := Config{Addr: "0.0.0.0:8080"}
	cfg.applyPlatformDefaults()
	assert.Equal(t, "postgres://platform/pos", cfg.DatabaseURL)
	assert.Equal(t, "0.0.0.0:9000", cfg.Addr)

	explicit := Config{Addr: "127.0.0.1:7000", DatabaseURL: "postgres://explicit/pos"}
	explicit.applyPlatformDefaults()
	assert.Equal(t, "postgres://explicit/pos", explicit.DatabaseURL)
	assert.Equal(t, "127.0.0.1:7000", explicit.Addr)
}
