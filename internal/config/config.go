package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/avstrong/hotel/internal/latefee"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

const envPrefix = "HOTEL"

type Config struct {
	App struct {
		Env      string
		Timezone string
	} `mapstructure:"app"`

	HTTP struct {
		Host              string
		Port              string
		ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
		LivenessEndpoint  string        `mapstructure:"liveness_endpoint"`
	} `mapstructure:"http"`

	Log struct {
		Level  string
		Format string
	} `mapstructure:"log"`

	Storage struct {
		Driver string
	} `mapstructure:"storage"`

	Postgres struct {
		DSN string
	} `mapstructure:"postgres"`

	Redis struct {
		Addr     string
		Password string
		DB       int
		DraftTTL time.Duration `mapstructure:"draft_ttl"`
	} `mapstructure:"redis"`

	Backend struct {
		URL     string
		Timeout time.Duration
	} `mapstructure:"backend"`

	Checkout struct {
		Hour int
	} `mapstructure:"checkout"`

	LateFee latefee.Policy `mapstructure:"latefee"`

	Invoice struct {
		CorrectionTolerance int64 `mapstructure:"correction_tolerance"`
	} `mapstructure:"invoice"`

	Archive struct {
		S3Bucket   string `mapstructure:"s3_bucket"`
		S3Prefix   string `mapstructure:"s3_prefix"`
		S3Region   string `mapstructure:"s3_region"`
		S3Endpoint string `mapstructure:"s3_endpoint"`
	} `mapstructure:"archive"`

	Metrics struct {
		Enabled bool
	} `mapstructure:"metrics"`
}

//nolint:gomnd
func setDefaults(v *viper.Viper) {
	policy := latefee.DefaultPolicy()

	v.SetDefault("app.env", "dev")
	v.SetDefault("app.timezone", "Local")
	v.SetDefault("http.host", "localhost")
	v.SetDefault("http.port", "8092")
	v.SetDefault("http.read_header_timeout", 20*time.Second)
	v.SetDefault("http.liveness_endpoint", "/liveness")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("storage.driver", "memory")
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.draft_ttl", 24*time.Hour)
	v.SetDefault("backend.url", "")
	v.SetDefault("backend.timeout", 3*time.Second)
	v.SetDefault("checkout.hour", 12)
	v.SetDefault("latefee.hourly_rate", policy.HourlyRate)
	v.SetDefault("latefee.nightly_fraction", policy.NightlyFraction)
	v.SetDefault("latefee.cap_at_nightly_rate", policy.CapAtNightlyRate)
	v.SetDefault("latefee.max_fee", policy.MaxFee)
	v.SetDefault("invoice.correction_tolerance", 10)
	v.SetDefault("archive.s3_bucket", "")
	v.SetDefault("archive.s3_prefix", "invoices")
	v.SetDefault("archive.s3_region", "")
	v.SetDefault("archive.s3_endpoint", "")
	v.SetDefault("metrics.enabled", true)
}

// Load reads defaults, then the optional YAML file at path, then HOTEL_* variables
// (a .env file in the working directory is loaded into the environment first).
func Load(path string) (Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)

		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %v: %w", path, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	if err := c.validate(); err != nil {
		return Config{}, err
	}

	return c, nil
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case "memory":
	case "postgres":
		if c.Postgres.DSN == "" {
			return errors.New("postgres.dsn is required for the postgres storage driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	if c.Checkout.Hour < 0 || c.Checkout.Hour > 23 {
		return fmt.Errorf("checkout.hour must be within [0, 23], got %d", c.Checkout.Hour)
	}

	if _, err := c.Location(); err != nil {
		return err
	}

	return nil
}

func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.App.Timezone, err)
	}

	return loc, nil
}
