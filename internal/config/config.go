package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/hperssn/promille/internal/bac"
)

// Duration decodes TOML strings such as "12h" or "90s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	if v < 0 {
		return fmt.Errorf("duration %q must not be negative", string(text))
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type StorageConfig struct {
	SQLitePath     string   `toml:"sqlite_path"`
	PostgresDSN    string   `toml:"postgres_dsn"`
	PersistTimeout Duration `toml:"persist_timeout"`
	RetryBase      Duration `toml:"retry_base"`
	MaxRetries     int      `toml:"max_retries"`
}

type SessionConfig struct {
	ProfilesFile        string   `toml:"profiles_file"`
	InactivityThreshold Duration `toml:"inactivity_threshold"`
	SweepInterval       Duration `toml:"sweep_interval"`
}

type ThresholdConfig struct {
	Caution  float64 `toml:"caution"`
	Warning  float64 `toml:"warning"`
	Danger   float64 `toml:"danger"`
	Critical float64 `toml:"critical"`
}

// ModelConfig overrides calibration constants. Zero fields keep the defaults.
type ModelConfig struct {
	EliminationRate float64         `toml:"elimination_rate"`
	SafetyFactor    float64         `toml:"safety_factor"`
	SoberThreshold  float64         `toml:"sober_threshold"`
	LegalLimit      float64         `toml:"legal_limit"`
	DefaultWeightKg float64         `toml:"default_weight_kg"`
	UnitScale       float64         `toml:"unit_scale"`
	Thresholds      ThresholdConfig `toml:"thresholds"`
	SeriesStep      Duration        `toml:"series_step"`
	FoodWindow      Duration        `toml:"food_window"`
}

type Config struct {
	Server   ServerConfig  `toml:"server"`
	Storage  StorageConfig `toml:"storage"`
	Sessions SessionConfig `toml:"sessions"`
	Model    ModelConfig   `toml:"model"`
}

// SetDefault fills every unset field.
func (c *Config) SetDefault() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = "promille.db"
	}
	if c.Storage.PersistTimeout.Duration == 0 {
		c.Storage.PersistTimeout.Duration = 10 * time.Second
	}
	if c.Storage.RetryBase.Duration == 0 {
		c.Storage.RetryBase.Duration = 200 * time.Millisecond
	}
	if c.Storage.MaxRetries <= 0 {
		c.Storage.MaxRetries = 3
	}
	if c.Sessions.ProfilesFile == "" {
		c.Sessions.ProfilesFile = "profiles.yaml"
	}
	if c.Sessions.InactivityThreshold.Duration == 0 {
		c.Sessions.InactivityThreshold.Duration = 12 * time.Hour
	}
	if c.Sessions.SweepInterval.Duration == 0 {
		c.Sessions.SweepInterval.Duration = time.Hour
	}
}

// Calibration merges the model overrides into the default calibration.
func (c *Config) Calibration() bac.Calibration {
	cal := bac.DefaultCalibration()
	m := c.Model

	set := func(dst *float64, v float64) {
		if v > 0 {
			*dst = v
		}
	}
	set(&cal.EliminationRate, m.EliminationRate)
	set(&cal.SafetyFactor, m.SafetyFactor)
	set(&cal.SoberThreshold, m.SoberThreshold)
	set(&cal.LegalLimit, m.LegalLimit)
	set(&cal.DefaultWeightKg, m.DefaultWeightKg)
	set(&cal.UnitScale, m.UnitScale)
	set(&cal.Thresholds.Caution, m.Thresholds.Caution)
	set(&cal.Thresholds.Warning, m.Thresholds.Warning)
	set(&cal.Thresholds.Danger, m.Thresholds.Danger)
	set(&cal.Thresholds.Critical, m.Thresholds.Critical)

	if m.SeriesStep.Duration > 0 {
		cal.SeriesStep = m.SeriesStep.Duration
	}
	if m.FoodWindow.Duration > 0 {
		cal.FoodWindow = m.FoodWindow.Duration
	}
	return cal
}

// Validate rejects settings the service cannot run with.
func (c *Config) Validate() error {
	th := c.Calibration().Thresholds
	if !(th.Caution < th.Warning && th.Warning < th.Danger && th.Danger < th.Critical) {
		return fmt.Errorf("status thresholds must be strictly ascending, got %v/%v/%v/%v",
			th.Caution, th.Warning, th.Danger, th.Critical)
	}
	if c.Sessions.SweepInterval.Duration > c.Sessions.InactivityThreshold.Duration {
		return fmt.Errorf("sweep interval %s exceeds inactivity threshold %s",
			c.Sessions.SweepInterval, c.Sessions.InactivityThreshold)
	}
	return nil
}

// Load reads the TOML file at path, then applies .env and environment
// overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			log.Printf("Config file %s not found, using defaults", path)
		case err != nil:
			return nil, err
		default:
			if err := toml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	cfg.SetDefault()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func LoadFromBytes(data []byte) (*Config, error) {
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.SetDefault()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	c.Server.Addr = getEnv("PROMILLE_ADDR", c.Server.Addr)
	c.Storage.SQLitePath = getEnv("PROMILLE_SQLITE_PATH", c.Storage.SQLitePath)
	c.Storage.PostgresDSN = getEnv("DATABASE_URL", c.Storage.PostgresDSN)
	c.Storage.MaxRetries = getEnvInt("PROMILLE_MAX_RETRIES", c.Storage.MaxRetries)
	c.Sessions.ProfilesFile = getEnv("PROMILLE_PROFILES", c.Sessions.ProfilesFile)

	for key, dst := range map[string]*Duration{
		"PROMILLE_INACTIVITY":      &c.Sessions.InactivityThreshold,
		"PROMILLE_SWEEP_INTERVAL":  &c.Sessions.SweepInterval,
		"PROMILLE_PERSIST_TIMEOUT": &c.Storage.PersistTimeout,
	} {
		if v := os.Getenv(key); v != "" {
			if err := dst.UnmarshalText([]byte(v)); err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
		}
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if intVal, err := strconv.Atoi(v); err == nil {
			return intVal
		}
		log.Printf("WARN: %s=%q is not an integer, keeping %d", key, v, defaultVal)
	}
	return defaultVal
}
