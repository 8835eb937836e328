package classifier_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schirrmacher/malwi/internal/classifier"
	"github.com/schirrmacher/malwi/internal/config"
)

func TestHeuristicDriver_NoActivityTokensScoresZero(t *testing.T) {
	d := classifier.NewHeuristicDriver()
	score, err := d.Score(context.Background(), []string{"load_name", "store_name", "return_value"})
	require.NoError(t, err)
	assert.Zero(t, score)
}

func TestHeuristicDriver_HighWeightActivityScoresHigherThanPlainActivity(t *testing.T) {
	d := classifier.NewHeuristicDriver()

	plain, err := d.Score(context.Background(), []string{"filesystem_access", "load_name", "load_name", "load_name"})
	require.NoError(t, err)

	weighted, err := d.Score(context.Background(), []string{"dynamic_code_exec", "load_name", "load_name", "load_name"})
	require.NoError(t, err)

	assert.Greater(t, weighted, plain)
}

func TestHeuristicDriver_EmptyTokensScoresZero(t *testing.T) {
	d := classifier.NewHeuristicDriver()
	score, err := d.Score(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, score)
}

func TestGate_ScoreDelegatesToDriver(t *testing.T) {
	cfg := config.Default().Concurrency
	cfg.ClassifierRateHz = 1000
	cfg.ClassifierWindow = 100 * time.Millisecond

	gate := classifier.NewGate(classifier.NewHeuristicDriver(), cfg)
	score, err := gate.Score(context.Background(), []string{"dynamic_code_exec"})
	require.NoError(t, err)
	assert.Greater(t, score, 0.0)
}

func TestGate_ScoreRespectsContextCancellation(t *testing.T) {
	cfg := config.Concurrency{ClassifierRateHz: 0.001, ClassifierWindow: time.Millisecond}
	gate := classifier.NewGate(classifier.NewHeuristicDriver(), cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	// Burst of 1 is consumed immediately by the limiter's initial token;
	// a second call within the same tiny window must wait past the
	// context deadline and surface its cancellation.
	_, err := gate.Score(ctx, []string{"x"})
	require.NoError(t, err)
	_, err = gate.Score(ctx, []string{"x"})
	assert.Error(t, err)
}
