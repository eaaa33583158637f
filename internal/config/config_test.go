package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigReportSettings(t *testing.T) {
	t.Setenv("REPORT_DEFINITION_PATH", "/etc/reports/reports.xml")
	t.Setenv("REPORT_INSTALLED_MODULES", "rule, ifta,,")
	t.Setenv("REPORT_SHOW_CUSTOM_OPTIONS", "false")
	t.Setenv("EVENT_STORE", "SQLite")
	t.Setenv("REPORTDEF_ReportFactory.optionsShowGeozoneID", "true")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "/etc/reports/reports.xml", cfg.ReportDefinitionPath)
	assert.Equal(t, []string{"rule", "ifta"}, cfg.ReportInstalledModules)
	assert.False(t, cfg.ReportShowCustomOpts)
	assert.Equal(t, "sqlite", cfg.EventStore)
	assert.Equal(t, "true", cfg.ReportProperties["ReportFactory.optionsShowGeozoneID"])
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("REPORT_RELOAD_SCHEDULE", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Empty(t, cfg.ReportReloadSchedule)
	assert.True(t, cfg.ReportShowCustomOpts)
	assert.False(t, cfg.ReportIgnoreMissing)
}

func TestLoadConfigMongoTimeout(t *testing.T) {
	t.Setenv("MONGO_CONNECT_TIMEOUT", "3s")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, cfg.MongoTimeout)

	t.Setenv("MONGO_CONNECT_TIMEOUT", "soon")
	cfg, err = LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, cfg.MongoTimeout)
}
