package graphql

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/phonebook/config"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:   "empty config gets defaults",
			config: Config{},
		},
		{
			name: "valid explicit config",
			config: Config{
				BindAddress: ":9090",
				Path:        "/api/graphql",
				TimeoutStr:  "10s",
			},
		},
		{
			name:    "path without leading slash",
			config:  Config{Path: "graphql"},
			wantErr: true,
		},
		{
			name:    "unparseable timeout",
			config:  Config{TimeoutStr: "soon"},
			wantErr: true,
		},
		{
			name:    "timeout below minimum",
			config:  Config{TimeoutStr: "50ms"},
			wantErr: true,
		},
		{
			name:    "timeout above maximum",
			config:  Config{TimeoutStr: "10m"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, tt.config.BindAddress)
			assert.NotEmpty(t, tt.config.Path)
			assert.NotZero(t, tt.config.Timeout())
		})
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":8080", cfg.BindAddress)
	assert.Equal(t, "/graphql", cfg.Path)
	assert.Equal(t, 30*time.Second, cfg.Timeout())
}

func TestConfigCORSOriginDefault(t *testing.T) {
	cfg := Config{EnableCORS: true}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
}

func TestFromProcessConfig(t *testing.T) {
	procCfg := config.DefaultConfig()
	procCfg.BindAddress = ":9999"
	procCfg.Path = "/gql"
	procCfg.TimeoutStr = "5s"

	cfg := FromProcessConfig(procCfg)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":9999", cfg.BindAddress)
	assert.Equal(t, "/gql", cfg.Path)
	assert.Equal(t, 5*time.Second, cfg.Timeout())
	assert.True(t, cfg.EnablePlayground)
}
