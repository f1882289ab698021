package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port          string   `mapstructure:"PORT"`
	Env           string   `mapstructure:"ENV"`
	DatabaseURL   string   `mapstructure:"DATABASE_URL"`
	DBMaxConns    int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns    int32    `mapstructure:"DB_MIN_CONNS"`
	JWTSecret     string   `mapstructure:"JWT_SECRET"`
	AuthIssuer    string   `mapstructure:"AUTH_ISSUER"`
	AuthJWKSURL   string   `mapstructure:"AUTH_JWKS_URL"`
	AuthAudience  string   `mapstructure:"AUTH_AUDIENCE"`
	DefaultTenant string   `mapstructure:"DEFAULT_TENANT"`
	CORSOrigins   []string `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS  float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `mapstructure:"RATE_LIMIT_BURST"`

	// Scheduling defaults, overridable per tenant in hospital settings.
	BusinessHoursStart string `mapstructure:"BUSINESS_HOURS_START"`
	BusinessHoursEnd   string `mapstructure:"BUSINESS_HOURS_END"`
	SlotStepMinutes    int    `mapstructure:"SLOT_STEP_MINUTES"`
	DefaultApptMinutes int    `mapstructure:"DEFAULT_APPT_MINUTES"`
	Timezone           string `mapstructure:"TIMEZONE"`
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
	v.SetDefault("DEFAULT_TENANT", "default")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("BUSINESS_HOURS_START", "08:00")
	v.SetDefault("BUSINESS_HOURS_END", "18:00")
	v.SetDefault("SLOT_STEP_MINUTES", 15)
	v.SetDefault("DEFAULT_APPT_MINUTES", 30)
	v.SetDefault("TIMEZONE", "Europe/Paris")

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("JWT_SECRET")
	v.BindEnv("AUTH_ISSUER")
	v.BindEnv("AUTH_JWKS_URL")
	v.BindEnv("AUTH_AUDIENCE")
	v.BindEnv("DEFAULT_TENANT")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("RATE_LIMIT_RPS")
	v.BindEnv("RATE_LIMIT_BURST")
	v.BindEnv("BUSINESS_HOURS_START")
	v.BindEnv("BUSINESS_HOURS_END")
	v.BindEnv("SLOT_STEP_MINUTES")
	v.BindEnv("DEFAULT_APPT_MINUTES")
	v.BindEnv("TIMEZONE")

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

// Location resolves the configured timezone, falling back to UTC when the
// name is unknown.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Validate checks that the configuration is safe to run. Outside development
// either a JWKS-backed issuer or an HMAC secret must be configured so real
// JWT authentication is enforced.
func (c *Config) Validate() error {
	if !c.IsDev() && c.AuthIssuer == "" && c.JWTSecret == "" {
		return fmt.Errorf(
			"AUTH_ISSUER or JWT_SECRET must be set when ENV=%q. "+
				"Refusing to start without authentication configuration", c.Env)
	}

	if _, err := ParseClock(c.BusinessHoursStart); err != nil {
		return fmt.Errorf("BUSINESS_HOURS_START: %w", err)
	}
	end, err := ParseClock(c.BusinessHoursEnd)
	if err != nil {
		return fmt.Errorf("BUSINESS_HOURS_END: %w", err)
	}
	start, _ := ParseClock(c.BusinessHoursStart)
	if !start.Before(end) {
		return fmt.Errorf("BUSINESS_HOURS_START %q must be before BUSINESS_HOURS_END %q",
			c.BusinessHoursStart, c.BusinessHoursEnd)
	}

	if c.SlotStepMinutes <= 0 {
		return fmt.Errorf("SLOT_STEP_MINUTES must be positive, got %d", c.SlotStepMinutes)
	}
	if c.DefaultApptMinutes <= 0 {
		return fmt.Errorf("DEFAULT_APPT_MINUTES must be positive, got %d", c.DefaultApptMinutes)
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("TIMEZONE %q: %w", c.Timezone, err)
	}

	return nil
}

// Clock is a time of day without a date.
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock parses an "HH:MM" string.
func ParseClock(s string) (Clock, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return Clock{}, fmt.Errorf("invalid clock value %q", s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return Clock{}, fmt.Errorf("invalid clock value %q", s)
	}
	return Clock{Hour: h, Minute: m}, nil
}

// Before reports whether c is earlier in the day than other.
func (c Clock) Before(other Clock) bool {
	if c.Hour != other.Hour {
		return c.Hour < other.Hour
	}
	return c.Minute < other.Minute
}

// Minutes returns the clock value as minutes since midnight.
func (c Clock) Minutes() int {
	return c.Hour*60 + c.Minute
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}
