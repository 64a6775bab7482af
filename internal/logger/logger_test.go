package logger

import (
	"bytes"
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetLogger_FallsBackToGlobal(t *testing.T) {
	entry := G(context.Background())
	require.NotNil(t, entry)
	assert.Same(t, L.Logger, entry.Logger)
}

func TestWithLogger_RoundTrip(t *testing.T) {
	custom := logrus.New()
	var buf bytes.Buffer
	custom.SetOutput(&buf)

	ctx := WithLogger(context.Background(), logrus.NewEntry(custom).WithField("run", "r1"))
	G(ctx).Warn("hello")

	assert.Contains(t, buf.String(), "hello")
	assert.Contains(t, buf.String(), "run=r1")
}

func TestSetLogLevel(t *testing.T) {
	prev := L.Logger.GetLevel()
	defer L.Logger.SetLevel(prev)

	require.NoError(t, SetLogLevel("debug"))
	assert.Equal(t, logrus.DebugLevel, L.Logger.GetLevel())

	assert.Error(t, SetLogLevel("loud"))
}

func TestSetLogFormat_JSON(t *testing.T) {
	prevOut := L.Logger.Out
	prevFmt := L.Logger.Formatter
	defer func() {
		L.Logger.SetOutput(prevOut)
		L.Logger.Formatter = prevFmt
	}()

	var buf bytes.Buffer
	SetLogOutput(&buf)
	SetLogFormat("json")
	L.Warn("structured")

	assert.Contains(t, buf.String(), `"message":"structured"`)
}
