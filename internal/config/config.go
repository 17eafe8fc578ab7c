package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName                string
	AppEnv                 string
	AppPort                string
	DatabaseURL            string
	RedisURL               string
	NATSURL                string
	EventChannel           string
	JWTSecret              string
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
	EvidenceMaxSizeMB      int
	WalletCacheTTL         time.Duration
	ReconcileInterval      time.Duration
	StreamPingInterval     time.Duration
	Rates                  RateTable
	Verification           VerificationThresholds
}

// RateTable maps an activity type to the credits awarded per unit of quantity.
type RateTable map[string]float64

// Rate returns the configured rate for the activity type.
func (r RateTable) Rate(activityType string) (float64, bool) {
	rate, ok := r[activityType]
	return rate, ok
}

// CyclingThresholds bound the measurements accepted for cycling activities.
type CyclingThresholds struct {
	MinDistanceKm    float64
	MinSpeedKmh      float64
	MaxSpeedKmh      float64
	MaxDurationHours float64
}

// EnergyThresholds bound the declared savings accepted for energy activities.
type EnergyThresholds struct {
	MinSavingsKwh float64
	MaxSavingsKwh float64
}

// VerificationThresholds groups the per-type verification rules. A nil entry means the type has no rules configured.
type VerificationThresholds struct {
	Cycling *CyclingThresholds
	Energy  *EnergyThresholds
	// Tolerance is the fraction of a bound within which a satisfied check is reported as a warning.
	Tolerance float64
}

// DefaultRates mirrors the credit rates used on campus at launch.
func DefaultRates() RateTable {
	return RateTable{
		"cycling":     2,
		"energy":      4,
		"assignments": 5,
		"workshops":   3,
	}
}

// DefaultVerificationThresholds mirrors the launch verification settings.
func DefaultVerificationThresholds() VerificationThresholds {
	return VerificationThresholds{
		Cycling: &CyclingThresholds{
			MinDistanceKm:    1,
			MinSpeedKmh:      5,
			MaxSpeedKmh:      30,
			MaxDurationHours: 3,
		},
		Energy: &EnergyThresholds{
			MinSavingsKwh: 0.5,
			MaxSavingsKwh: 10,
		},
		Tolerance: 0.1,
	}
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("GREEN")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Green Campus API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("events.channel", "green:ledger")
	v.SetDefault("cloudinary.folder", "green-campus/evidence")
	v.SetDefault("evidence.max_size_mb", 10)
	v.SetDefault("wallet.cache_ttl", "2m")
	v.SetDefault("ledger.reconcile_interval", "15m")
	v.SetDefault("stream.ping_interval", "30s")

	rates := DefaultRates()
	for activityType, rate := range rates {
		v.SetDefault("rates."+activityType, rate)
	}

	defaults := DefaultVerificationThresholds()
	v.SetDefault("verification.tolerance", defaults.Tolerance)
	v.SetDefault("verification.cycling.min_distance_km", defaults.Cycling.MinDistanceKm)
	v.SetDefault("verification.cycling.min_speed_kmh", defaults.Cycling.MinSpeedKmh)
	v.SetDefault("verification.cycling.max_speed_kmh", defaults.Cycling.MaxSpeedKmh)
	v.SetDefault("verification.cycling.max_duration_hours", defaults.Cycling.MaxDurationHours)
	v.SetDefault("verification.energy.min_savings_kwh", defaults.Energy.MinSavingsKwh)
	v.SetDefault("verification.energy.max_savings_kwh", defaults.Energy.MaxSavingsKwh)

	cacheTTL, err := parseDuration(v, "wallet.cache_ttl", 2*time.Minute)
	if err != nil {
		return Config{}, fmt.Errorf("invalid wallet cache ttl: %w", err)
	}

	reconcileInterval, err := parseDuration(v, "ledger.reconcile_interval", 15*time.Minute)
	if err != nil {
		return Config{}, fmt.Errorf("invalid reconcile interval: %w", err)
	}

	pingInterval, err := parseDuration(v, "stream.ping_interval", 30*time.Second)
	if err != nil {
		return Config{}, fmt.Errorf("invalid stream ping interval: %w", err)
	}

	for activityType := range rates {
		rates[activityType] = v.GetFloat64("rates." + activityType)
	}

	thresholds := VerificationThresholds{
		Cycling: &CyclingThresholds{
			MinDistanceKm:    v.GetFloat64("verification.cycling.min_distance_km"),
			MinSpeedKmh:      v.GetFloat64("verification.cycling.min_speed_kmh"),
			MaxSpeedKmh:      v.GetFloat64("verification.cycling.max_speed_kmh"),
			MaxDurationHours: v.GetFloat64("verification.cycling.max_duration_hours"),
		},
		Energy: &EnergyThresholds{
			MinSavingsKwh: v.GetFloat64("verification.energy.min_savings_kwh"),
			MaxSavingsKwh: v.GetFloat64("verification.energy.max_savings_kwh"),
		},
		Tolerance: v.GetFloat64("verification.tolerance"),
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		DatabaseURL:            v.GetString("database.url"),
		RedisURL:               v.GetString("redis.url"),
		NATSURL:                v.GetString("nats.url"),
		EventChannel:           v.GetString("events.channel"),
		JWTSecret:              v.GetString("jwt.secret"),
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		EvidenceMaxSizeMB:      v.GetInt("evidence.max_size_mb"),
		WalletCacheTTL:         cacheTTL,
		ReconcileInterval:      reconcileInterval,
		StreamPingInterval:     pingInterval,
		Rates:                  rates,
		Verification:           thresholds,
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	if err := cfg.Verification.Validate(); err != nil {
		return Config{}, err
	}

	if cfg.EvidenceMaxSizeMB <= 0 {
		cfg.EvidenceMaxSizeMB = 10
	}

	return cfg, nil
}

// Validate checks that every configured range is well formed.
func (t VerificationThresholds) Validate() error {
	if t.Tolerance < 0 || t.Tolerance >= 1 {
		return fmt.Errorf("verification tolerance must be in [0,1), got %v", t.Tolerance)
	}
	if c := t.Cycling; c != nil {
		if c.MinSpeedKmh > c.MaxSpeedKmh {
			return fmt.Errorf("cycling min speed %v exceeds max speed %v", c.MinSpeedKmh, c.MaxSpeedKmh)
		}
		if c.MaxDurationHours <= 0 {
			return fmt.Errorf("cycling max duration must be positive")
		}
	}
	if e := t.Energy; e != nil && e.MinSavingsKwh > e.MaxSavingsKwh {
		return fmt.Errorf("energy min savings %v exceeds max savings %v", e.MinSavingsKwh, e.MaxSavingsKwh)
	}
	return nil
}

func parseDuration(v *viper.Viper, key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return fallback, nil
	}
	return time.ParseDuration(raw)
}
