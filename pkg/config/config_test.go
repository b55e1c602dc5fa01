package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAppliesDefaults(t *testing.T) {
	c, err := Parse([]byte("environment: test\n"))
	require.NoError(t, err)

	assert.Equal(t, "test", c.Environment)
	assert.Equal(t, 8080, c.Server.Port)
	assert.Equal(t, 15*time.Second, c.Server.ReadTimeout)
	assert.Equal(t, "sqlite", c.Database.Driver)
	assert.Equal(t, 20, c.Prediction.WindowSize)
	assert.Equal(t, 250, c.Prediction.MaxTrainPoints)
	assert.Equal(t, 60, c.Prediction.MinHistory)
	assert.Equal(t, 50, c.Prediction.TopN)
	assert.Equal(t, []int{32}, c.Prediction.Model.LSTMUnits)
	assert.Equal(t, []int{8}, c.Prediction.Model.DenseUnits)
	assert.InDelta(t, 0.001, c.Prediction.Model.LearningRate, 1e-12)
	assert.Equal(t, DefaultHorizons(), c.Prediction.Horizons)
	assert.Equal(t, 10, c.Prediction.Model.Epochs)
}

func TestParseOverridesModelVariant(t *testing.T) {
	raw := `
prediction:
  max_train_points: 0
  model:
    lstm_units: [64, 32]
    dense_units: [16]
    dropout: 0.2
    epochs: 15
    batch_size: 16
  horizons:
    - {name: 1d, days: 1}
    - {name: 1w, days: 7}
`
	c, err := Parse([]byte(raw))
	require.NoError(t, err)

	assert.Equal(t, []int{64, 32}, c.Prediction.Model.LSTMUnits)
	assert.Equal(t, 0.2, c.Prediction.Model.Dropout)
	assert.Equal(t, 15, c.Prediction.Model.Epochs)
	assert.Equal(t, 0, c.Prediction.MaxTrainPoints)
	require.Len(t, c.Prediction.Horizons, 2)
	assert.Equal(t, 7, c.Prediction.Horizons[1].Days)
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"unknown model kind", "prediction:\n  model:\n    kind: transformer\n"},
		{"unknown driver", "database:\n  driver: mysql\n"},
		{"duplicate horizon", "prediction:\n  horizons:\n    - {name: 1d, days: 1}\n    - {name: 1d, days: 2}\n"},
		{"zero-day horizon", "prediction:\n  horizons:\n    - {name: 0d, days: 0}\n"},
		{"history shorter than warmup", "prediction:\n  min_history: 30\n"},
		{"dropout of one", "prediction:\n  model:\n    dropout: 1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.raw))
			assert.Error(t, err)
		})
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("environment: test\n"), 0o600))

	t.Setenv("MARKETPULSE_DB_DSN", ":memory:")
	t.Setenv("PREDICT_MODEL", "LINEAR")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	c, err := LoadWithEnv(path)
	require.NoError(t, err)
	assert.Equal(t, ":memory:", c.Database.DSN)
	assert.Equal(t, "linear", c.Prediction.Model.Kind)
	assert.True(t, c.Kafka.Enabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
}

func TestLoadWithEnvMissingFileUsesDefaults(t *testing.T) {
	c, err := LoadWithEnv(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "development", c.Environment)
}
