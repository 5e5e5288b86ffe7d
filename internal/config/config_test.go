package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RMahshie/arpe/internal/processing"
	"github.com/RMahshie/arpe/internal/resonator"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "dev", cfg.Server.Env)
	assert.Equal(t, []string{"http://localhost:5173", "http://localhost:3000"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, int64(10<<20), cfg.Server.MaxUploadBytes)
	assert.False(t, cfg.S3Enabled())
	assert.Equal(t, resonator.DefaultOptions(), cfg.Resonator())

	svc := cfg.Service()
	assert.Equal(t, processing.DefaultWorkers, svc.Workers)
	assert.Equal(t, processing.DefaultFitCurvePoints, svc.FitCurvePoints)
}

func TestLoad_Environment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PORT", "9090")
	t.Setenv("ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("WORKERS", "8")
	t.Setenv("MIN_FIT_POINTS", "12")
	t.Setenv("OUTLIER_THRESHOLD", "4.5")
	t.Setenv("OUTLIER_MAX_ITERATIONS", "7")
	t.Setenv("ASYMMETRY_THRESHOLD", "0.1")
	t.Setenv("S3_BUCKET", "sweeps")
	t.Setenv("S3_ENDPOINT", "localhost:9000")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)

	opts := cfg.Resonator()
	assert.Equal(t, 12, opts.MinFitPoints)
	assert.Equal(t, 4.5, opts.OutlierThreshold)
	assert.Equal(t, 7, opts.MaxFilterIterations)
	assert.Equal(t, 0.1, opts.AsymmetryThreshold)
	assert.Equal(t, resonator.DefaultOptions().DelayGridSteps, opts.DelayGridSteps)
	assert.Equal(t, 8, cfg.Service().Workers)

	assert.True(t, cfg.S3Enabled())
	s3 := cfg.S3()
	assert.Equal(t, "sweeps", s3.Bucket)
	assert.Equal(t, "localhost:9000", s3.Endpoint)
	assert.Equal(t, cfg.Server.MaxUploadBytes, s3.MaxObjectBytes)
}

func TestLoad_EnvFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ENVIRONMENT", "test")
	writeFile(t, ".env.test", "WORKERS=2\nPORT=7000\n")
	t.Setenv("PORT", "7001")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "test", cfg.Server.Env)
	assert.Equal(t, 2, cfg.Extraction.Workers)
	assert.Equal(t, "7001", cfg.Server.Port)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		key, value, want string
	}{
		{"WORKERS", "0", "WORKERS"},
		{"MIN_FIT_POINTS", "2", "MIN_FIT_POINTS"},
		{"OUTLIER_THRESHOLD", "-1", "OUTLIER_THRESHOLD"},
		{"OUTLIER_MAX_ITERATIONS", "0", "OUTLIER_MAX_ITERATIONS"},
		{"ASYMMETRY_THRESHOLD", "0", "ASYMMETRY_THRESHOLD"},
		{"FIT_CURVE_POINTS", "1", "FIT_CURVE_POINTS"},
		{"MAX_UPLOAD_BYTES", "0", "MAX_UPLOAD_BYTES"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Chdir(t.TempDir())
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func writeFile(t *testing.T, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(name, []byte(content), 0o644))
}
