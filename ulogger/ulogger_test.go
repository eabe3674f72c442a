package ulogger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTestLoggerImplementsLogger(t *testing.T) {
	var _ Logger = TestLogger{}

	var _ Logger = NewVerboseTestLogger(t)
}

func TestNewReturnsZeroLogger(t *testing.T) {
	var buf bytes.Buffer

	logger := New("test", WithWriter(&buf), WithLevel("DEBUG"))
	assert.NotNil(t, logger)

	child := logger.New("child")
	assert.NotNil(t, child)

	dup := logger.Duplicate(WithLevel("ERROR"))
	assert.NotNil(t, dup)
}

func TestSetLogLevel(t *testing.T) {
	var buf bytes.Buffer

	logger := NewZeroLogger("test", WithWriter(&buf))

	logger.SetLogLevel("DEBUG")
	debugLevel := logger.LogLevel()

	logger.SetLogLevel("ERROR")
	errorLevel := logger.LogLevel()

	assert.NotEqual(t, debugLevel, errorLevel)
}
