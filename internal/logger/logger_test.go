package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	for _, env := range []string{"production", "development", ""} {
		log, err := New(env)
		require.NoError(t, err, env)
		assert.NotNil(t, log)
	}
}

func TestForRunAndApp(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	log := ForApp(ForRun(zap.New(core), "ab12cd34"), "id1203171490")

	log.Info("Processing application")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "ab12cd34", fields["run_id"])
	assert.Equal(t, "id1203171490", fields["app_id"])
}
