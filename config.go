package flow

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/panjf2000/ants/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

const (
	// DefaultMaxBufferSize is the capacity of a node buffer when neither the node nor its Config sets one.
	DefaultMaxBufferSize = 100000
	// DefaultLoggingThresholdRows is the number of records between two progress lines.
	DefaultLoggingThresholdRows = 1000

	envPrefix = "FLOW"
)

// Settings holds the loadable part of a Config.
type Settings struct {
	MaxBufferSize        int    `yaml:"max_buffer_size" mapstructure:"max_buffer_size"`
	LoggingThresholdRows int    `yaml:"logging_threshold_rows" mapstructure:"logging_threshold_rows"`
	DisableAllLogging    bool   `yaml:"disable_all_logging" mapstructure:"disable_all_logging"`
	PoolSize             int    `yaml:"pool_size" mapstructure:"pool_size"` // <= 0 is unbounded
	LogLevel             string `yaml:"log_level" mapstructure:"log_level"`
	LogFormat            string `yaml:"log_format" mapstructure:"log_format"`
	Stage                string `yaml:"stage" mapstructure:"stage"`
}

// ApplyDefaults fills unset settings.
func (s *Settings) ApplyDefaults() {
	if s.MaxBufferSize == 0 {
		s.MaxBufferSize = DefaultMaxBufferSize
	}
	if s.LoggingThresholdRows == 0 {
		s.LoggingThresholdRows = DefaultLoggingThresholdRows
	}
	if s.LogLevel == "" {
		s.LogLevel = "info"
	}
	if s.LogFormat == "" {
		s.LogFormat = "json"
	}
}

// Validate validates the settings.
func (s *Settings) Validate() error {
	if s.MaxBufferSize < 0 {
		return fmt.Errorf("max_buffer_size must not be negative (got: %d)", s.MaxBufferSize)
	}
	if s.LoggingThresholdRows < 0 {
		return fmt.Errorf("logging_threshold_rows must not be negative (got: %d)", s.LoggingThresholdRows)
	}
	if _, err := zerolog.ParseLevel(s.LogLevel); err != nil {
		return fmt.Errorf("log_level is invalid (got: %s): %w", s.LogLevel, err)
	}
	validFormats := []string{"json", "console"}
	if !slices.Contains(validFormats, s.LogFormat) {
		return fmt.Errorf("log_format must be one of %v (got: %s)", validFormats, s.LogFormat)
	}
	return nil
}

// Config is the runtime configuration shared by the nodes of a data flow.
type Config struct {
	Settings
	Logger zerolog.Logger
	Pool   *Pool
}

// ConfigOption customizes NewConfig.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	output      io.Writer
	poolOptions []ants.Option
}

// WithLogOutput sends node logs to w instead of stderr.
func WithLogOutput(w io.Writer) ConfigOption {
	return func(b *configBuilder) { b.output = w }
}

// WithPoolOptions passes options to the underlying ants pool.
func WithPoolOptions(opts ...ants.Option) ConfigOption {
	return func(b *configBuilder) { b.poolOptions = append(b.poolOptions, opts...) }
}

// NewConfig builds a Config from settings: a zerolog logger and a shared Pool.
func NewConfig(settings Settings, opts ...ConfigOption) (*Config, error) {
	settings.ApplyDefaults()
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	b := configBuilder{output: os.Stderr}
	for _, opt := range opts {
		opt(&b)
	}

	logger := newLogger(settings, b.output)
	poolOptions := append([]ants.Option{ants.WithPanicHandler(func(r any) {
		logger.Error().Interface("panic", r).Msg("node loop panicked")
	})}, b.poolOptions...)
	pool, err := NewPoolWithOptions(settings.PoolSize, poolOptions...)
	if err != nil {
		return nil, err
	}
	return &Config{Settings: settings, Logger: logger, Pool: pool}, nil
}

func newLogger(settings Settings, output io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(settings.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	if settings.LogFormat == "console" {
		output = zerolog.ConsoleWriter{Out: output}
	}
	ctx := zerolog.New(output).Level(level).With().Timestamp()
	if settings.Stage != "" {
		ctx = ctx.Str("stage", settings.Stage)
	}
	return ctx.Logger()
}

// Release releases the pool of the config.
func (c *Config) Release() {
	c.Pool.Release()
}

// DefaultConfig returns the configuration used by nodes built without WithConfig.
var DefaultConfig = sync.OnceValue(func() *Config {
	cfg, err := NewConfig(Settings{})
	if err != nil {
		panic(err) // default settings are always valid
	}
	return cfg
})

// LoadOption customizes LoadSettings.
type LoadOption func(*loaderConfig)

type loaderConfig struct {
	configFile string
	envFile    string
}

// WithConfigFile reads settings from a YAML or JSON file.
func WithConfigFile(path string) LoadOption {
	return func(lc *loaderConfig) { lc.configFile = path }
}

// WithEnvFile loads a .env file into the environment before reading FLOW_* variables.
func WithEnvFile(path string) LoadOption {
	return func(lc *loaderConfig) { lc.envFile = path }
}

// LoadSettings reads Settings from an optional file and FLOW_* environment variables, the latter
// taking precedence. Defaults are applied and the result validated.
func LoadSettings(opts ...LoadOption) (Settings, error) {
	var lc loaderConfig
	for _, opt := range opts {
		opt(&lc)
	}

	v := viper.New()
	if lc.configFile != "" {
		v.SetConfigFile(lc.configFile)
		if err := v.ReadInConfig(); err != nil {
			return Settings{}, fmt.Errorf("failed to read config file %s: %w", lc.configFile, err)
		}
	}
	if lc.envFile != "" {
		if err := godotenv.Load(lc.envFile); err != nil {
			return Settings{}, fmt.Errorf("failed to load env file %s: %w", lc.envFile, err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range []string{
		"max_buffer_size", "logging_threshold_rows", "disable_all_logging",
		"pool_size", "log_level", "log_format", "stage",
	} {
		_ = v.BindEnv(key)
	}

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return Settings{}, fmt.Errorf("failed to unmarshal settings: %w", err)
	}
	settings.ApplyDefaults()
	if err := settings.Validate(); err != nil {
		return Settings{}, err
	}
	return settings, nil
}
