package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	apperrors "oispurts/internal/errors"
)

// EnvPrefix namespaces every environment variable
const EnvPrefix = "OISPURTS"

// ClockLayout is the time-of-day format used by schedule settings
const ClockLayout = "15:04"

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Security  SecurityConfig  `yaml:"security" envconfig:"SECURITY"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Paths     PathsConfig     `yaml:"paths" envconfig:"PATHS"`
	Scraper   ScraperConfig   `yaml:"scraper" envconfig:"SCRAPER"`
	Schedule  ScheduleConfig  `yaml:"schedule" envconfig:"SCHEDULE"`
	Retention RetentionConfig `yaml:"retention" envconfig:"RETENTION"`
	Bot       BotConfig       `yaml:"bot" envconfig:"BOT"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
	WebSocket WebSocketConfig `yaml:"websocket" envconfig:"WEBSOCKET"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Enabled         bool          `yaml:"enabled" envconfig:"ENABLED"`
	Port            int           `yaml:"port" envconfig:"PORT" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" validate:"gt=0"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" validate:"gt=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" validate:"gt=0"`
	RequestTimeout  time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT" validate:"gt=0"`
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" validate:"gte=0"`
	Burst   int     `yaml:"burst" envconfig:"BURST" validate:"gte=0"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn warning error"`
	Format   string `yaml:"format" envconfig:"FORMAT" validate:"oneof=json text"`
	Output   string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// PathsConfig contains file system paths configuration
type PathsConfig struct {
	BaseDir      string `yaml:"base_dir" envconfig:"BASE_DIR"`
	DataDir      string `yaml:"data_dir" envconfig:"DATA_DIR" validate:"required"`
	ExcelDir     string `yaml:"excel_dir" envconfig:"EXCEL_DIR" validate:"required"`
	ProcessedDir string `yaml:"processed_dir" envconfig:"PROCESSED_DIR" validate:"required"`
	LogsDir      string `yaml:"logs_dir" envconfig:"LOGS_DIR" validate:"required"`
}

// ScraperConfig controls how the OI spurts export is fetched
type ScraperConfig struct {
	PageURL           string        `yaml:"page_url" envconfig:"PAGE_URL" validate:"required,url"`
	BaseURL           string        `yaml:"base_url" envconfig:"BASE_URL" validate:"required,url"`
	FallbackURLs      []string      `yaml:"fallback_urls" envconfig:"FALLBACK_URLS" validate:"dive,url"`
	UserAgent         string        `yaml:"user_agent" envconfig:"USER_AGENT" validate:"required"`
	RequestTimeout    time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT" validate:"gt=0"`
	MaxRetries        int           `yaml:"max_retries" envconfig:"MAX_RETRIES" validate:"min=1,max=10"`
	RetryDelay        time.Duration `yaml:"retry_delay" envconfig:"RETRY_DELAY" validate:"gte=0"`
	MinFileSize       int           `yaml:"min_file_size" envconfig:"MIN_FILE_SIZE" validate:"gte=0"`
	RequestsPerSecond float64       `yaml:"requests_per_second" envconfig:"REQUESTS_PER_SECOND" validate:"gt=0"`
	UseBrowser        bool          `yaml:"use_browser" envconfig:"USE_BROWSER"`
	Headless          bool          `yaml:"headless" envconfig:"HEADLESS"`
	BrowserTimeout    time.Duration `yaml:"browser_timeout" envconfig:"BROWSER_TIMEOUT" validate:"gt=0"`
}

// ScheduleConfig is the daily collection window
type ScheduleConfig struct {
	Start     string        `yaml:"start" envconfig:"START" validate:"required,clock"`
	End       string        `yaml:"end" envconfig:"END" validate:"required,clock"`
	Interval  time.Duration `yaml:"interval" envconfig:"INTERVAL" validate:"gte=1m"`
	CleanupAt string        `yaml:"cleanup_at" envconfig:"CLEANUP_AT" validate:"required,clock"`
	Location  string        `yaml:"location" envconfig:"LOCATION" validate:"required"`
	Tick      time.Duration `yaml:"tick" envconfig:"TICK" validate:"gte=1s"`
}

// RetentionConfig bounds what is kept on disk
type RetentionConfig struct {
	SnapshotDays int `yaml:"snapshot_days" envconfig:"SNAPSHOT_DAYS" validate:"min=1"`
	MaxRawFiles  int `yaml:"max_raw_files" envconfig:"MAX_RAW_FILES" validate:"min=1"`
}

// BotConfig configures the Telegram chat front end
type BotConfig struct {
	Enabled     bool          `yaml:"enabled" envconfig:"ENABLED"`
	Token       string        `yaml:"token" envconfig:"TOKEN"`
	APIURL      string        `yaml:"api_url" envconfig:"API_URL" validate:"required,url"`
	PollTimeout time.Duration `yaml:"poll_timeout" envconfig:"POLL_TIMEOUT" validate:"gte=0"`
	PageSize    int           `yaml:"page_size" envconfig:"PAGE_SIZE" validate:"min=1,max=100"`
}

// TelemetryConfig toggles tracing and metrics
type TelemetryConfig struct {
	EnableTracing bool   `yaml:"enable_tracing" envconfig:"ENABLE_TRACING"`
	EnableMetrics bool   `yaml:"enable_metrics" envconfig:"ENABLE_METRICS"`
	TraceExporter string `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER" validate:"oneof=stdout none"`
}

// WebSocketConfig contains WebSocket configuration
type WebSocketConfig struct {
	ReadBufferSize  int           `yaml:"read_buffer_size" envconfig:"READ_BUFFER_SIZE" validate:"gt=0"`
	WriteBufferSize int           `yaml:"write_buffer_size" envconfig:"WRITE_BUFFER_SIZE" validate:"gt=0"`
	PingPeriod      time.Duration `yaml:"ping_period" envconfig:"PING_PERIOD" validate:"gt=0"`
	PongWait        time.Duration `yaml:"pong_wait" envconfig:"PONG_WAIT" validate:"gtfield=PingPeriod"`
}

// Load builds the configuration from defaults, an optional YAML file,
// an optional .env file and the environment, then validates it
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, apperrors.NewConfigError("failed to load .env file", err)
	}

	cfg := Default()

	if configFile := getConfigFilePath(); configFile != "" {
		if err := loadFromFile(configFile, cfg); err != nil {
			return nil, apperrors.NewConfigError("failed to load config from file", err).
				WithContext("file", configFile)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, apperrors.NewConfigError("failed to load config from env", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFromFile overlays the YAML file onto cfg; absent keys keep their value
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// Validate checks struct constraints and the cross-field schedule rules
func (c *Config) Validate() error {
	v := newValidator()
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return apperrors.NewConfigError("invalid configuration: "+strings.Join(fields, ", "), err)
		}
		return apperrors.NewConfigError("invalid configuration", err)
	}

	start, _ := time.Parse(ClockLayout, c.Schedule.Start)
	end, _ := time.Parse(ClockLayout, c.Schedule.End)
	if start.After(end) {
		return apperrors.NewConfigError(fmt.Sprintf("schedule start %s is after end %s", c.Schedule.Start, c.Schedule.End), nil)
	}

	if _, err := c.Schedule.TimeLocation(); err != nil {
		return apperrors.NewConfigError("unknown schedule location", err).WithContext("location", c.Schedule.Location)
	}

	if c.Bot.Enabled && c.Bot.Token == "" {
		return apperrors.NewConfigError("bot is enabled but no token is configured", nil)
	}

	return nil
}

// TimeLocation loads the configured time zone
func (s ScheduleConfig) TimeLocation() (*time.Location, error) {
	return time.LoadLocation(s.Location)
}

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		_, err := time.Parse(ClockLayout, fl.Field().String())
		return err == nil
	})
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	if explicit := os.Getenv(EnvPrefix + "_CONFIG_FILE"); explicit != "" {
		return explicit
	}

	locations := []string{
		"config.yaml",
		"configs/config.yaml",
		"../configs/config.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return ""
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Enabled:         true,
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			RequestTimeout:  60 * time.Second,
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"http://localhost:8080"},
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     20,
				Burst:   40,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "both",
			FilePath: "logs/oispurts.log",
		},
		Paths: PathsConfig{
			DataDir:      "data",
			ExcelDir:     "data/excel_files",
			ProcessedDir: "data/processed",
			LogsDir:      "logs",
		},
		Scraper: ScraperConfig{
			PageURL: "https://www.nseindia.com/market-data/oi-spurts",
			BaseURL: "https://www.nseindia.com",
			FallbackURLs: []string{
				"https://www.nseindia.com/api/live-analysis-oi-spurts-underlyings",
				"https://www.nseindia.com/api/equity-stockIndices?index=SECURITIES%20IN%20F%26O",
			},
			UserAgent:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
			RequestTimeout:    30 * time.Second,
			MaxRetries:        3,
			RetryDelay:        5 * time.Second,
			MinFileSize:       1000,
			RequestsPerSecond: 1,
			Headless:          true,
			BrowserTimeout:    90 * time.Second,
		},
		Schedule: ScheduleConfig{
			Start:     "10:00",
			End:       "14:30",
			Interval:  20 * time.Minute,
			CleanupAt: "15:00",
			Location:  "Asia/Kolkata",
			Tick:      30 * time.Second,
		},
		Retention: RetentionConfig{
			SnapshotDays: 7,
			MaxRawFiles:  50,
		},
		Bot: BotConfig{
			APIURL:      "https://api.telegram.org",
			PollTimeout: 30 * time.Second,
			PageSize:    20,
		},
		Telemetry: TelemetryConfig{
			EnableMetrics: true,
			TraceExporter: "none",
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			PingPeriod:      30 * time.Second,
			PongWait:        60 * time.Second,
		},
	}
}
