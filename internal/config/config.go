package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var validate = validator.New()

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Screenshot ScreenshotConfig `mapstructure:"screenshot"`
	Capture    CaptureConfig    `mapstructure:"capture"`
	Browser    BrowserConfig    `mapstructure:"browser"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port" validate:"min=1,max=65535"`
	Mode string `mapstructure:"mode" validate:"oneof=debug release test"`
	// PublicURL is the externally reachable base URL of this service.
	PublicURL string     `mapstructure:"public_url" validate:"omitempty,url"`
	CORS      CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver" validate:"oneof=sqlite postgres"`

	// sqlite
	Path string `mapstructure:"path"`

	// postgres; URL wins over the discrete fields
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`

	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"min=0"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"min=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN returns the connection string for the configured driver.
func (c *DatabaseConfig) DSN() string {
	if c.Driver == "postgres" {
		if c.URL != "" {
			return c.URL
		}
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
	}
	return c.Path
}

type StorageConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Type      string `mapstructure:"type" validate:"omitempty,oneof=r2 s3 s3compatible"`
	Endpoint  string `mapstructure:"endpoint" validate:"required_if=Enabled true"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket" validate:"required_if=Enabled true"`
	Region    string `mapstructure:"region"`
	PublicURL string `mapstructure:"public_url"`
}

type ScreenshotConfig struct {
	// Providers lists provider names in probe order.
	Providers            []string      `mapstructure:"providers" validate:"dive,required"`
	Width                int           `mapstructure:"width" validate:"min=1,max=4000"`
	Height               int           `mapstructure:"height" validate:"min=1,max=4000"`
	ScreenshotMachineKey string        `mapstructure:"screenshotmachine_key"`
	RetryDelay           time.Duration `mapstructure:"retry_delay" validate:"min=0"`
	ProbeTimeout         time.Duration `mapstructure:"probe_timeout" validate:"min=0"`
	// HTTPTimeout is the transport limit of one HTTP request, on by default
	// and separate from ProbeTimeout. 0 disables it.
	HTTPTimeout   time.Duration `mapstructure:"http_timeout" validate:"min=0"`
	UserAgent     string        `mapstructure:"user_agent"`
	MaxImageBytes int64         `mapstructure:"max_image_bytes" validate:"min=0"`
	MaxSessions   int           `mapstructure:"max_sessions" validate:"min=0"`
	// ResolveTimeout bounds a blocking resolve request made over HTTP.
	ResolveTimeout time.Duration `mapstructure:"resolve_timeout" validate:"min=0"`
}

type CaptureConfig struct {
	Workers int  `mapstructure:"workers" validate:"min=1,max=64"`
	Archive bool `mapstructure:"archive"`
	// MaxArchiveBytes caps downloads made for archival.
	MaxArchiveBytes int64 `mapstructure:"max_archive_bytes" validate:"min=0"`
	// Timeout bounds a capture shared by concurrent callers.
	Timeout time.Duration `mapstructure:"timeout" validate:"min=0"`
}

// BrowserConfig configures server-side rendering in headless Chromium.
type BrowserConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	Install           bool          `mapstructure:"install"`
	Width             int           `mapstructure:"width" validate:"min=1,max=4000"`
	Height            int           `mapstructure:"height" validate:"min=1,max=4000"`
	Quality           int           `mapstructure:"quality" validate:"min=1,max=100"`
	Settle            time.Duration `mapstructure:"settle" validate:"min=0"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" validate:"min=0"`
	UserAgent         string        `mapstructure:"user_agent"`
	MaxConcurrent     int           `mapstructure:"max_concurrent" validate:"min=1,max=16"`
}

// Load reads configuration from file, environment and defaults.
// Parameters:
//   - configPath: explicit config file path; empty searches ./configs and ".".
//
// Returns:
//   - *Config: validated configuration.
//   - error: non-nil if the file is unreadable or validation fails.
func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Secrets and deployment-specific values
	v.BindEnv("server.public_url", "PUBLIC_URL")
	v.BindEnv("database.url", "DATABASE_URL")
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("storage.access_key", "STORAGE_ACCESS_KEY")
	v.BindEnv("storage.secret_key", "STORAGE_SECRET_KEY")
	v.BindEnv("screenshot.screenshotmachine_key", "SCREENSHOTMACHINE_API_KEY")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.public_url", "")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/ninjascan.db")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.use_ssl", true)
	v.SetDefault("storage.bucket", "screenshots")

	v.SetDefault("screenshot.providers", []string{"mshots", "microlink", "pagepeeker", "screenshotmachine", "placeholder"})
	v.SetDefault("screenshot.width", 1200)
	v.SetDefault("screenshot.height", 800)
	v.SetDefault("screenshot.screenshotmachine_key", "demo")
	v.SetDefault("screenshot.retry_delay", "500ms")
	v.SetDefault("screenshot.probe_timeout", "0s")
	v.SetDefault("screenshot.http_timeout", "30s")
	v.SetDefault("screenshot.user_agent", "ninjascan/1.0 (+screenshot-probe)")
	v.SetDefault("screenshot.max_image_bytes", 10<<20)
	v.SetDefault("screenshot.max_sessions", 1000)
	v.SetDefault("screenshot.resolve_timeout", "2m")

	v.SetDefault("capture.workers", 4)
	v.SetDefault("capture.archive", false)
	v.SetDefault("capture.max_archive_bytes", 10<<20)
	v.SetDefault("capture.timeout", "2m")

	v.SetDefault("browser.enabled", false)
	v.SetDefault("browser.install", false)
	v.SetDefault("browser.width", 1440)
	v.SetDefault("browser.height", 900)
	v.SetDefault("browser.quality", 85)
	v.SetDefault("browser.settle", "2s")
	v.SetDefault("browser.navigation_timeout", "10s")
	v.SetDefault("browser.user_agent", "")
	v.SetDefault("browser.max_concurrent", 2)
}

// Validate checks struct constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		if ve, ok := err.(validator.ValidationErrors); ok {
			fields := make([]string, 0, len(ve))
			for _, e := range ve {
				fields = append(fields, fmt.Sprintf("%s %s", e.Namespace(), e.ActualTag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(fields, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
