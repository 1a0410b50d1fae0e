package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "https://api.census.gov/data", cfg.Census.BaseURL)
	assert.Equal(t, "acs/acs5", cfg.Census.Dataset)
	assert.Equal(t, "COUNTYFP", cfg.Boundary.FIPSColumn)
	assert.Equal(t, "STATEFP", cfg.Boundary.StateColumn)
	assert.Equal(t, "500k", cfg.Boundary.Resolution)
	assert.Equal(t, "geo.counties", cfg.Boundary.Table)
	assert.Equal(t, "#979797", cfg.Style.BorderColor)
	assert.InDelta(t, 0.6, cfg.Style.BorderWidth, 1e-9)
	assert.Equal(t, "med", cfg.Style.Size)
	assert.Equal(t, "upper left", cfg.Style.LegendLoc)
	assert.InDelta(t, -0.01, cfg.Style.LegX, 1e-9)
	assert.InDelta(t, 0.32, cfg.Style.LegY, 1e-9)
	assert.InDelta(t, 0.92, cfg.Style.TitleY, 1e-9)
	assert.Equal(t, 55, cfg.Style.TitleCharLimit)
	assert.Equal(t, 4, cfg.Render.NumCats)
	assert.Equal(t, 1, cfg.Render.Precision)
	assert.True(t, cfg.Render.PercentFormat)
	assert.Equal(t, "png", cfg.Render.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
log:
  level: debug
style:
  colors: texas_reds
  size: large
render:
  num_cats: 5
  format: svg
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "texas_reds", cfg.Style.Colors)
	assert.Equal(t, "large", cfg.Style.Size)
	assert.Equal(t, 5, cfg.Render.NumCats)
	assert.Equal(t, "svg", cfg.Render.Format)
	// Defaults still apply for unset values
	assert.Equal(t, 1, cfg.Render.Precision)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
render:
  num_cats: 5
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	t.Setenv("CHORO_RENDER_NUM_CATS", "6")
	t.Setenv("CHORO_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 6, cfg.Render.NumCats)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadDotEnv(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("CHORO_CENSUS_API_KEY=from-dotenv\n"), 0o644))
	t.Cleanup(func() { _ = os.Unsetenv("CHORO_CENSUS_API_KEY") })

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Census.APIKey)
}

func TestLoadBadYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("render: [unclosed"), 0o644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with the defaults validation depends on.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Render.NumCats = 4
	cfg.Render.Precision = 1
	cfg.Render.Format = "png"
	cfg.Style.TitleCharLimit = 55
	cfg.Census.BaseURL = "https://api.census.gov/data"
	cfg.Census.Year = 2022
	cfg.Server.Port = 8080
	return cfg
}

func TestValidateRender(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("render"))

	cfg.Render.NumCats = 0
	cfg.Render.Format = "gif"
	err := cfg.Validate("render")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "render.num_cats")
	assert.Contains(t, err.Error(), "render.format")
}

func TestValidateCensus(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("census"))

	cfg.Census.Year = 0
	err := cfg.Validate("census")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "census.year")
}

func TestValidatePostGIS_NoDB(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("postgis")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database_url")

	cfg.Boundary.DatabaseURL = "postgres://localhost/geo"
	assert.NoError(t, cfg.Validate("postgis"))
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
