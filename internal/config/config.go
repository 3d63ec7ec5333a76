package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	WindowRolling = "rolling"
	WindowDay     = "day"

	dayLayout = "2006-01-02"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

type Config struct {
	Service    Service
	AppsFlyer  AppsFlyer
	ClickHouse ClickHouse
	Sync       Sync
	SQS        SQS
	Metrics    Metrics
}

type Service struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
}

type AppsFlyer struct {
	Token         string   `envconfig:"TOKEN" required:"true"`
	AppIDs        []string `envconfig:"APP_IDS" required:"true"`
	BaseURL       string   `envconfig:"BASE_URL" default:"https://hq1.appsflyer.com"`
	Report        string   `envconfig:"REPORT" default:"installs_report"`
	ReportVersion string   `envconfig:"REPORT_VERSION" default:"v5"`
	TimeoutSec    int      `envconfig:"TIMEOUT_SEC" default:"120"`
}

type ClickHouse struct {
	Host            string `envconfig:"HOST" required:"true"`
	Port            string `envconfig:"PORT" default:"9000"`
	Database        string `envconfig:"DB" required:"true"`
	User            string `envconfig:"USER" default:""`
	Password        string `envconfig:"PASSWORD" default:""`
	Table           string `envconfig:"TABLE" default:"install"`
	UseTLS          bool   `envconfig:"USE_TLS" default:"false"`
	MaxOpenConns    int    `envconfig:"MAX_OPEN_CONNS" default:"5"`
	MaxIdleConns    int    `envconfig:"MAX_IDLE_CONNS" default:"2"`
	ConnMaxLifetime int    `envconfig:"CONN_MAX_LIFETIME_SEC" default:"3600"`
	DialTimeoutSec  int    `envconfig:"DIAL_TIMEOUT_SEC" default:"5"`
	MaxExecutionSec int    `envconfig:"MAX_EXECUTION_TIME_SEC" default:"60"`
	CheckTable      bool   `envconfig:"CHECK_TABLE" default:"true"`
}

type Sync struct {
	LookbackHours  int    `envconfig:"LOOKBACK_HOURS" default:"2"`
	Timezone       string `envconfig:"TIMEZONE" default:"Asia/Ho_Chi_Minh"`
	UTCOffsetHours int    `envconfig:"UTC_OFFSET_HOURS" default:"7"`
	Window         string `envconfig:"WINDOW" default:"rolling"`
	Day            string `envconfig:"DAY" default:""`
	DryRun         bool   `envconfig:"DRY_RUN" default:"false"`
}

type SQS struct {
	Endpoint string `envconfig:"ENDPOINT"`
	QueueURL string `envconfig:"QUEUE_URL"`
	Region   string `envconfig:"REGION" default:"ap-southeast-1"`
}

type Metrics struct {
	PushgatewayURL string `envconfig:"PUSHGATEWAY_URL"`
	JobName        string `envconfig:"JOB_NAME" default:"appsflyer_install_sync"`
}

// Overrides carries command-line values that take precedence over the environment.
// Zero values leave the environment value in place.
type Overrides struct {
	AppIDs        []string
	LookbackHours int
	Window        string
	Day           string
	DryRun        bool
}

// Load reads the optional dotenv file, processes the environment and applies overrides.
// The returned value is validated and must not be modified afterwards.
func Load(envFile string, overrides Overrides) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	cfg.apply(overrides)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) apply(o Overrides) {
	if len(o.AppIDs) > 0 {
		c.AppsFlyer.AppIDs = o.AppIDs
	}
	if o.LookbackHours > 0 {
		c.Sync.LookbackHours = o.LookbackHours
	}
	if o.Window != "" {
		c.Sync.Window = o.Window
	}
	if o.Day != "" {
		c.Sync.Day = o.Day
	}
	if o.DryRun {
		c.Sync.DryRun = true
	}

	ids := make([]string, 0, len(c.AppsFlyer.AppIDs))
	for _, id := range c.AppsFlyer.AppIDs {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	c.AppsFlyer.AppIDs = ids
}

// Validate checks the values that envconfig cannot express as tags.
func (c *Config) Validate() error {
	if len(c.AppsFlyer.AppIDs) == 0 {
		return errors.New("at least one application id is required")
	}
	if c.AppsFlyer.TimeoutSec <= 0 {
		return fmt.Errorf("appsflyer timeout must be positive, got %d", c.AppsFlyer.TimeoutSec)
	}
	if !tableNamePattern.MatchString(c.ClickHouse.Table) {
		return fmt.Errorf("invalid clickhouse table name: %q", c.ClickHouse.Table)
	}
	if c.ClickHouse.DialTimeoutSec <= 0 || c.ClickHouse.MaxExecutionSec <= 0 {
		return fmt.Errorf("clickhouse timeouts must be positive, got dial=%d max_execution=%d",
			c.ClickHouse.DialTimeoutSec, c.ClickHouse.MaxExecutionSec)
	}
	if c.Sync.LookbackHours < 1 {
		return fmt.Errorf("lookback must be at least 1 hour, got %d", c.Sync.LookbackHours)
	}
	if c.Sync.UTCOffsetHours < -12 || c.Sync.UTCOffsetHours > 14 {
		return fmt.Errorf("utc offset out of range: %d", c.Sync.UTCOffsetHours)
	}

	switch c.Sync.Window {
	case WindowRolling:
	case WindowDay:
		if c.Sync.Day != "" {
			if _, err := time.Parse(dayLayout, c.Sync.Day); err != nil {
				return fmt.Errorf("invalid sync day %q (expected YYYY-MM-DD): %w", c.Sync.Day, err)
			}
		}
	default:
		return fmt.Errorf("unsupported window strategy: %s (supported: rolling, day)", c.Sync.Window)
	}

	return nil
}

// Location is the fixed-offset zone every window is computed in.
func (s Sync) Location() *time.Location {
	return time.FixedZone(s.Timezone, s.UTCOffsetHours*3600)
}

// Lookback returns the rolling window size.
func (s Sync) Lookback() time.Duration {
	return time.Duration(s.LookbackHours) * time.Hour
}

// DialTimeout bounds opening a connection.
func (c ClickHouse) DialTimeout() time.Duration {
	return time.Duration(c.DialTimeoutSec) * time.Second
}

// ConnLifetime is the maximum age of a pooled connection.
func (c ClickHouse) ConnLifetime() time.Duration {
	return time.Duration(c.ConnMaxLifetime) * time.Second
}

// Timeout returns the export request timeout.
func (a AppsFlyer) Timeout() time.Duration {
	return time.Duration(a.TimeoutSec) * time.Second
}
