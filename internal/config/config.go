package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port         string   `mapstructure:"PORT"`
	Env          string   `mapstructure:"ENV"`
	DatabaseURL  string   `mapstructure:"DATABASE_URL"`
	DBMaxConns   int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns   int32    `mapstructure:"DB_MIN_CONNS"`
	AuthSecret   string   `mapstructure:"AUTH_SECRET"`
	AuthIssuer   string   `mapstructure:"AUTH_ISSUER"`
	AuthAudience string   `mapstructure:"AUTH_AUDIENCE"`
	CORSOrigins  []string `mapstructure:"CORS_ORIGINS"`

	// Detection tunables. Defaults match the calibrated scoring model; change
	// them only together with a lexicon recalibration.
	FlagThreshold     int    `mapstructure:"FLAG_THRESHOLD"`
	HysteresisDelta   int    `mapstructure:"HYSTERESIS_DELTA"`
	SeverityMediumMin int    `mapstructure:"SEVERITY_MEDIUM_MIN"`
	SeverityHighMin   int    `mapstructure:"SEVERITY_HIGH_MIN"`
	LexiconPath       string `mapstructure:"LEXICON_PATH"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("FLAG_THRESHOLD", 30)
	v.SetDefault("HYSTERESIS_DELTA", 10)
	v.SetDefault("SEVERITY_MEDIUM_MIN", 31)
	v.SetDefault("SEVERITY_HIGH_MIN", 71)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("AUTH_SECRET")
	v.BindEnv("AUTH_ISSUER")
	v.BindEnv("AUTH_AUDIENCE")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("FLAG_THRESHOLD")
	v.BindEnv("HYSTERESIS_DELTA")
	v.BindEnv("SEVERITY_MEDIUM_MIN")
	v.BindEnv("SEVERITY_HIGH_MIN")
	v.BindEnv("LEXICON_PATH")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		log.Println("WARNING: ============================================================")
		log.Println("WARNING: Server is running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: DevAuthMiddleware is active — all requests get admin access.")
		log.Println("WARNING: Do NOT use this configuration in production.")
		log.Println("WARNING: Set ENV=production and configure AUTH_SECRET for production.")
		log.Println("WARNING: ============================================================")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run. Outside development
// mode AUTH_SECRET must be set so that real JWT authentication is enforced,
// and the detection tunables must describe a coherent scoring model.
func (c *Config) Validate() error {
	if !c.IsDev() && c.AuthSecret == "" {
		return fmt.Errorf(
			"AUTH_SECRET must be set when ENV is %q. "+
				"Refusing to start without authentication configuration", c.Env)
	}

	if c.FlagThreshold < 0 || c.FlagThreshold > 100 {
		return fmt.Errorf("FLAG_THRESHOLD must be in [0,100], got %d", c.FlagThreshold)
	}
	if c.HysteresisDelta < 0 {
		return fmt.Errorf("HYSTERESIS_DELTA must be non-negative, got %d", c.HysteresisDelta)
	}
	if c.SeverityMediumMin <= 0 || c.SeverityHighMin <= c.SeverityMediumMin {
		return fmt.Errorf("severity cut points must satisfy 0 < SEVERITY_MEDIUM_MIN < SEVERITY_HIGH_MIN, got %d and %d",
			c.SeverityMediumMin, c.SeverityHighMin)
	}
	if c.SeverityHighMin > 100 {
		return fmt.Errorf("SEVERITY_HIGH_MIN must be at most 100, got %d", c.SeverityHighMin)
	}

	return nil
}
