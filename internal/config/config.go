package config

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/RMahshie/arpe/internal/processing"
	"github.com/RMahshie/arpe/internal/resonator"
	"github.com/RMahshie/arpe/internal/storage"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig
	AWS        AWSConfig
	Extraction ExtractionConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           string
	Env            string
	AllowedOrigins []string
	MaxUploadBytes int64
}

// AWSConfig holds AWS/S3 configuration
type AWSConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	S3Bucket        string
	S3Endpoint      string
}

// ExtractionConfig holds the tunables of the extraction pipeline
type ExtractionConfig struct {
	Workers              int
	MinFitPoints         int
	OutlierThreshold     float64
	OutlierMaxIterations int
	AsymmetryThreshold   float64
	FitCurvePoints       int
}

var keys = []string{
	"PORT",
	"ENVIRONMENT",
	"ALLOWED_ORIGINS",
	"MAX_UPLOAD_BYTES",
	"WORKERS",
	"MIN_FIT_POINTS",
	"OUTLIER_THRESHOLD",
	"OUTLIER_MAX_ITERATIONS",
	"ASYMMETRY_THRESHOLD",
	"FIT_CURVE_POINTS",
	"AWS_REGION",
	"AWS_ACCESS_KEY_ID",
	"AWS_SECRET_ACCESS_KEY",
	"S3_BUCKET",
	"S3_ENDPOINT",
}

// Load loads configuration from environment variables and .env files
func Load() (*Config, error) {
	v := viper.New()
	def := resonator.DefaultOptions()

	v.SetDefault("PORT", "8080")
	v.SetDefault("ENVIRONMENT", "dev")
	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000")
	v.SetDefault("MAX_UPLOAD_BYTES", 10<<20)
	v.SetDefault("WORKERS", processing.DefaultWorkers)
	v.SetDefault("MIN_FIT_POINTS", def.MinFitPoints)
	v.SetDefault("OUTLIER_THRESHOLD", def.OutlierThreshold)
	v.SetDefault("OUTLIER_MAX_ITERATIONS", def.MaxFilterIterations)
	v.SetDefault("ASYMMETRY_THRESHOLD", def.AsymmetryThreshold)
	v.SetDefault("FIT_CURVE_POINTS", processing.DefaultFitCurvePoints)
	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("AWS_ACCESS_KEY_ID", "")
	v.SetDefault("AWS_SECRET_ACCESS_KEY", "")
	v.SetDefault("S3_BUCKET", "")
	v.SetDefault("S3_ENDPOINT", "")

	// Environment variables override .env file values
	v.AutomaticEnv()
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	env := v.GetString("ENVIRONMENT")
	if env == "" {
		env = "dev"
	}
	v.SetConfigName(".env." + env)
	v.SetConfigType("env")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read .env.%s: %w", env, err)
		}
	}

	var config Config
	config.Server.Port = v.GetString("PORT")
	config.Server.Env = env
	config.Server.AllowedOrigins = splitList(v.GetString("ALLOWED_ORIGINS"))
	config.Server.MaxUploadBytes = v.GetInt64("MAX_UPLOAD_BYTES")
	config.AWS.Region = v.GetString("AWS_REGION")
	config.AWS.AccessKeyID = v.GetString("AWS_ACCESS_KEY_ID")
	config.AWS.SecretAccessKey = v.GetString("AWS_SECRET_ACCESS_KEY")
	config.AWS.S3Bucket = v.GetString("S3_BUCKET")
	config.AWS.S3Endpoint = v.GetString("S3_ENDPOINT")
	config.Extraction.Workers = v.GetInt("WORKERS")
	config.Extraction.MinFitPoints = v.GetInt("MIN_FIT_POINTS")
	config.Extraction.OutlierThreshold = v.GetFloat64("OUTLIER_THRESHOLD")
	config.Extraction.OutlierMaxIterations = v.GetInt("OUTLIER_MAX_ITERATIONS")
	config.Extraction.AsymmetryThreshold = v.GetFloat64("ASYMMETRY_THRESHOLD")
	config.Extraction.FitCurvePoints = v.GetInt("FIT_CURVE_POINTS")

	if err := config.validate(); err != nil {
		return nil, err
	}

	log.Debug().
		Str("env", env).
		Strs("allowed_origins", config.Server.AllowedOrigins).
		Int("workers", config.Extraction.Workers).
		Bool("s3", config.AWS.S3Bucket != "").
		Msg("Configuration loaded")

	return &config, nil
}

func (c *Config) validate() error {
	e := c.Extraction
	switch {
	case e.Workers < 1:
		return fmt.Errorf("WORKERS must be at least 1, got %d", e.Workers)
	case e.MinFitPoints < 3:
		return fmt.Errorf("MIN_FIT_POINTS must be at least 3, got %d", e.MinFitPoints)
	case e.OutlierThreshold <= 0:
		return fmt.Errorf("OUTLIER_THRESHOLD must be positive, got %g", e.OutlierThreshold)
	case e.OutlierMaxIterations < 1:
		return fmt.Errorf("OUTLIER_MAX_ITERATIONS must be at least 1, got %d", e.OutlierMaxIterations)
	case e.AsymmetryThreshold <= 0:
		return fmt.Errorf("ASYMMETRY_THRESHOLD must be positive, got %g", e.AsymmetryThreshold)
	case e.FitCurvePoints < 2:
		return fmt.Errorf("FIT_CURVE_POINTS must be at least 2, got %d", e.FitCurvePoints)
	case c.Server.MaxUploadBytes <= 0:
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", c.Server.MaxUploadBytes)
	}
	return nil
}

// Resonator returns the pipeline options. Tunables that are not configurable
// keep their defaults.
func (c *Config) Resonator() resonator.Options {
	opts := resonator.DefaultOptions()
	opts.MinFitPoints = c.Extraction.MinFitPoints
	opts.OutlierThreshold = c.Extraction.OutlierThreshold
	opts.MaxFilterIterations = c.Extraction.OutlierMaxIterations
	opts.AsymmetryThreshold = c.Extraction.AsymmetryThreshold
	return opts
}

// Service returns the extraction service configuration
func (c *Config) Service() processing.ServiceConfig {
	return processing.ServiceConfig{
		Workers:        c.Extraction.Workers,
		Resonator:      c.Resonator(),
		FitCurvePoints: c.Extraction.FitCurvePoints,
	}
}

// S3Enabled reports whether a bucket is configured
func (c *Config) S3Enabled() bool {
	return c.AWS.S3Bucket != ""
}

// S3 returns the storage configuration for the configured bucket
func (c *Config) S3() storage.S3Config {
	return storage.S3Config{
		Bucket:         c.AWS.S3Bucket,
		Endpoint:       c.AWS.S3Endpoint,
		Region:         c.AWS.Region,
		AccessKey:      c.AWS.AccessKeyID,
		SecretKey:      c.AWS.SecretAccessKey,
		MaxObjectBytes: c.Server.MaxUploadBytes,
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
