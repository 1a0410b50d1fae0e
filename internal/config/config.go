package config

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Census   CensusConfig   `yaml:"census" mapstructure:"census"`
	Boundary BoundaryConfig `yaml:"boundary" mapstructure:"boundary"`
	Style    StyleConfig    `yaml:"style" mapstructure:"style"`
	Render   RenderConfig   `yaml:"render" mapstructure:"render"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// CensusConfig configures the Census Data API client.
type CensusConfig struct {
	APIKey      string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	Year        int    `yaml:"year" mapstructure:"year"`
	Dataset     string `yaml:"dataset" mapstructure:"dataset"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// BoundaryConfig configures where county polygons come from.
type BoundaryConfig struct {
	TempDir     string `yaml:"temp_dir" mapstructure:"temp_dir"`
	Year        int    `yaml:"year" mapstructure:"year"`
	Resolution  string `yaml:"resolution" mapstructure:"resolution"`
	FIPSColumn  string `yaml:"fips_column" mapstructure:"fips_column"`
	StateColumn string `yaml:"state_column" mapstructure:"state_column"`
	NameColumn  string `yaml:"name_column" mapstructure:"name_column"`
	Encoding    string `yaml:"encoding" mapstructure:"encoding"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Table       string `yaml:"table" mapstructure:"table"`
}

// StyleConfig holds the default map style.
type StyleConfig struct {
	Colors         string  `yaml:"colors" mapstructure:"colors"`
	BorderColor    string  `yaml:"border_color" mapstructure:"border_color"`
	BorderWidth    float64 `yaml:"border_width" mapstructure:"border_width"`
	Size           string  `yaml:"size" mapstructure:"size"`
	LegendLoc      string  `yaml:"legend_loc" mapstructure:"legend_loc"`
	LegX           float64 `yaml:"leg_x" mapstructure:"leg_x"`
	LegY           float64 `yaml:"leg_y" mapstructure:"leg_y"`
	TitleAlign     string  `yaml:"title_align" mapstructure:"title_align"`
	TitleX         float64 `yaml:"title_x" mapstructure:"title_x"`
	TitleY         float64 `yaml:"title_y" mapstructure:"title_y"`
	TitleCharLimit int     `yaml:"title_char_limit" mapstructure:"title_char_limit"`
	PresetsFile    string  `yaml:"presets_file" mapstructure:"presets_file"`
}

// RenderConfig holds rendering and binning defaults.
type RenderConfig struct {
	OutDir        string `yaml:"out_dir" mapstructure:"out_dir"`
	Format        string `yaml:"format" mapstructure:"format"`
	NumCats       int    `yaml:"num_cats" mapstructure:"num_cats"`
	Precision     int    `yaml:"precision" mapstructure:"precision"`
	PercentFormat bool   `yaml:"percent_format" mapstructure:"percent_format"`
}

// StoreConfig configures the render history database.
type StoreConfig struct {
	Path        string `yaml:"path" mapstructure:"path"`                 // SQLite file
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"` // Postgres instead of SQLite when set
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, config.yaml and CHORO_* environment
// variables, in increasing order of precedence.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("CHORO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("census.api_key", "")
	v.SetDefault("census.base_url", "https://api.census.gov/data")
	v.SetDefault("census.year", 2022)
	v.SetDefault("census.dataset", "acs/acs5")
	v.SetDefault("census.timeout_secs", 60)
	v.SetDefault("boundary.temp_dir", "/tmp/choroshape")
	v.SetDefault("boundary.year", 2022)
	v.SetDefault("boundary.resolution", "500k")
	v.SetDefault("boundary.fips_column", "COUNTYFP")
	v.SetDefault("boundary.state_column", "STATEFP")
	v.SetDefault("boundary.name_column", "NAME")
	v.SetDefault("boundary.encoding", "")
	v.SetDefault("boundary.database_url", "")
	v.SetDefault("boundary.table", "geo.counties")
	v.SetDefault("style.colors", "blues")
	v.SetDefault("style.border_color", "#979797")
	v.SetDefault("style.border_width", 0.6)
	v.SetDefault("style.size", "med")
	v.SetDefault("style.legend_loc", "upper left")
	v.SetDefault("style.leg_x", -0.01)
	v.SetDefault("style.leg_y", 0.32)
	v.SetDefault("style.title_align", "left")
	v.SetDefault("style.title_x", 0.0)
	v.SetDefault("style.title_y", 0.92)
	v.SetDefault("style.title_char_limit", 55)
	v.SetDefault("style.presets_file", "")
	v.SetDefault("render.out_dir", ".")
	v.SetDefault("render.format", "png")
	v.SetDefault("render.num_cats", 4)
	v.SetDefault("render.precision", 1)
	v.SetDefault("render.percent_format", true)
	v.SetDefault("store.path", "choroshape.db")
	v.SetDefault("store.database_url", "")
	v.SetDefault("server.port", 8080)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode depends on. Modes: "render",
// "census", "postgis", "serve".
func (c *Config) Validate(mode string) error {
	var problems []string
	switch mode {
	case "render":
		problems = c.validateRender(problems)
	case "census":
		if c.Census.BaseURL == "" {
			problems = append(problems, "census.base_url is required")
		}
		if c.Census.Year <= 0 {
			problems = append(problems, "census.year must be > 0")
		}
	case "postgis":
		if c.Boundary.DatabaseURL == "" {
			problems = append(problems, "boundary.database_url is required")
		}
	case "serve":
		problems = c.validateRender(problems)
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			problems = append(problems, "server.port must be > 0 and <= 65535")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) validateRender(problems []string) []string {
	if c.Render.NumCats < 1 {
		problems = append(problems, "render.num_cats must be >= 1")
	}
	if c.Render.Precision < 0 {
		problems = append(problems, "render.precision must be >= 0")
	}
	switch strings.ToLower(c.Render.Format) {
	case "png", "jpg", "jpeg", "tif", "tiff", "svg", "pdf":
	default:
		problems = append(problems, "render.format must be one of png, jpg, tiff, svg, pdf")
	}
	if c.Style.TitleCharLimit <= 0 {
		problems = append(problems, "style.title_char_limit must be > 0")
	}
	return problems
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
