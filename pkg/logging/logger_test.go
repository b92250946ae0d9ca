package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLevelFallback(t *testing.T) {
	logger, closer, err := New(Options{Level: "shouty"})
	require.NoError(t, err)
	defer closer.Close()

	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, logger.Formatter)
}

func TestNewJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broker.log")

	logger, closer, err := New(Options{Level: "debug", Format: "json", File: path})
	require.NoError(t, err)

	logger.WithField("worker", 1).Debug("dequeued")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"worker":1`)
	assert.Contains(t, string(data), `"msg":"dequeued"`)
}
