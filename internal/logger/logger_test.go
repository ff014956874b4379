package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetVerbose(t *testing.T) {
	log := New(&bytes.Buffer{}, false)
	assert.False(t, log.IsVerbose())

	log.SetVerbose(true)
	assert.True(t, log.IsVerbose())

	log.SetVerbose(false)
	assert.False(t, log.IsVerbose())
}

func TestDebug_WhenVerbose(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, true)

	log.Debug("test message %s", "arg")

	assert.Contains(t, buf.String(), "DBG")
	assert.Contains(t, buf.String(), "test message arg")
}

func TestDebug_WhenNotVerbose(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, false)

	log.Debug("test message")
	log.Info("info message")
	log.Section("Import")

	assert.Zero(t, buf.Len())
}

func TestSection(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, true)

	log.Section("Import")

	assert.Contains(t, buf.String(), "=== Import ===")
}

func TestWarn_AlwaysPrinted(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, false)

	log.Warn("uniquing key mismatch on %s", "Issue")

	assert.Contains(t, buf.String(), "WRN")
	assert.Contains(t, buf.String(), "uniquing key mismatch on Issue")
}

func TestWith_SharesVerbosityAndOutput(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, false)
	child := log.With("request", "r-1")

	child.Info("hidden")
	assert.Zero(t, buf.Len())

	log.SetVerbose(true)
	child.Info("shown")

	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), "request=r-1")

	var other bytes.Buffer
	log.SetOutput(&other)
	child.Warn("moved")
	assert.Contains(t, other.String(), "moved")
}

func TestNop_Discards(t *testing.T) {
	log := Nop()
	log.SetVerbose(true)
	log.Debug("nothing")
	log.Warn("nothing")
	assert.NotNil(t, OrNop(nil))
	assert.Same(t, log, OrNop(log))
}
