package app

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/docstore"
)

func validConfig() *Config {
	return &Config{StoreDriver: " Memory ", TxMaxAttempts: 3}
}

func TestConfigValidateDrivers(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())
	require.Equal(t, DriverMemory, cfg.StoreDriver)

	cfg = validConfig()
	cfg.StoreDriver = DriverPostgres
	require.ErrorContains(t, cfg.Validate(), "PG_DSN")

	cfg = validConfig()
	cfg.StoreDriver = DriverBolt
	require.ErrorContains(t, cfg.Validate(), "BOLT_PATH")
	cfg.BoltPath = "ledger.db"
	require.NoError(t, cfg.Validate())

	cfg = validConfig()
	cfg.StoreDriver = "sqlite"
	require.ErrorContains(t, cfg.Validate(), "unknown STORE_DRIVER")

	cfg = validConfig()
	cfg.TxMaxAttempts = 0
	require.ErrorContains(t, cfg.Validate(), "LEDGER_TX_MAX_ATTEMPTS")
}

func TestConfigScopes(t *testing.T) {
	cfg := validConfig()
	cfg.JobScopes = []string{"ws1/org1", " ", "ws2/org2"}
	scopes, err := cfg.Scopes()
	require.NoError(t, err)
	require.Equal(t, []docstore.Scope{
		{WorkspaceID: "ws1", OrgID: "org1"},
		{WorkspaceID: "ws2", OrgID: "org2"},
	}, scopes)

	cfg.JobScopes = []string{"ws1"}
	_, err = cfg.Scopes()
	require.ErrorContains(t, err, "JOB_SCOPES")
	require.Error(t, cfg.Validate())
}

func TestConfigIsProduction(t *testing.T) {
	var nilCfg *Config
	require.False(t, nilCfg.IsProduction())
	require.True(t, (&Config{AppEnv: "production"}).IsProduction())
}
