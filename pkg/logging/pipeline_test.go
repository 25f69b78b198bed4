package logging_test

import (
	"errors"
	"testing"

	"github.com/latoulicious/rpsync/pkg/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockLogger implements the Logger interface for testing
type MockLogger struct {
	InfoCalls  []LogCall
	ErrorCalls []ErrorCall
	WarnCalls  []LogCall
	DebugCalls []LogCall
}

type LogCall struct {
	Message string
	Fields  map[string]interface{}
}

type ErrorCall struct {
	Message string
	Error   error
	Fields  map[string]interface{}
}

func NewMockLogger() *MockLogger {
	return &MockLogger{}
}

func (m *MockLogger) Info(msg string, fields map[string]interface{}) {
	m.InfoCalls = append(m.InfoCalls, LogCall{Message: msg, Fields: fields})
}

func (m *MockLogger) Error(msg string, err error, fields map[string]interface{}) {
	m.ErrorCalls = append(m.ErrorCalls, ErrorCall{Message: msg, Error: err, Fields: fields})
}

func (m *MockLogger) Warn(msg string, fields map[string]interface{}) {
	m.WarnCalls = append(m.WarnCalls, LogCall{Message: msg, Fields: fields})
}

func (m *MockLogger) Debug(msg string, fields map[string]interface{}) {
	m.DebugCalls = append(m.DebugCalls, LogCall{Message: msg, Fields: fields})
}

// the mock records everything on itself regardless of derived context
func (m *MockLogger) WithPipeline(pipeline string) logging.Logger { return m }

func (m *MockLogger) WithContext(ctx map[string]interface{}) logging.Logger { return m }

func TestPipelineLogger_BasicLogging(t *testing.T) {
	baseLogger := NewMockLogger()
	pipelineLogger := logging.NewPipelineLogger(baseLogger, "sync")

	pipelineLogger.Info("Uploading profile", map[string]interface{}{
		"profile_id": "0110234908i1hCr",
		"attempt":    1,
	})

	require.Len(t, baseLogger.InfoCalls, 1)
	call := baseLogger.InfoCalls[0]
	assert.Equal(t, "[sync] Uploading profile", call.Message)
	assert.Equal(t, "sync", call.Fields["pipeline"])
	assert.Equal(t, "0110234908i1hCr", call.Fields["profile_id"])
	assert.Equal(t, 1, call.Fields["attempt"])
}

func TestPipelineLogger_ErrorLogging(t *testing.T) {
	baseLogger := NewMockLogger()
	pipelineLogger := logging.NewPipelineLogger(baseLogger, "commands")

	testError := errors.New("gateway unreachable")
	pipelineLogger.Error("Command failed", testError, map[string]interface{}{"command": "upload"})

	require.Len(t, baseLogger.ErrorCalls, 1)
	call := baseLogger.ErrorCalls[0]
	assert.Contains(t, call.Message, "[commands]")
	assert.Same(t, testError, call.Error)
	assert.Equal(t, "commands", call.Fields["pipeline"])
}

func TestPipelineLogger_FieldOverrides(t *testing.T) {
	baseLogger := NewMockLogger()
	contextLogger := logging.NewPipelineLogger(baseLogger, "sync").WithContext(map[string]interface{}{
		"profile_id": "original",
		"batch_id":   "b1",
	})

	contextLogger.Info("Test message", map[string]interface{}{
		"profile_id": "override",
		"attempt":    2,
	})

	require.Len(t, baseLogger.InfoCalls, 1)
	fields := baseLogger.InfoCalls[0].Fields
	assert.Equal(t, "override", fields["profile_id"])
	assert.Equal(t, "b1", fields["batch_id"])
	assert.Equal(t, 2, fields["attempt"])
}

func TestPipelineLogger_WithPipeline(t *testing.T) {
	baseLogger := NewMockLogger()
	logging.NewPipelineLogger(baseLogger, "sync").WithPipeline("database").Info("Saved version", nil)

	require.Len(t, baseLogger.InfoCalls, 1)
	assert.Equal(t, "[database] Saved version", baseLogger.InfoCalls[0].Message)
	assert.Equal(t, "database", baseLogger.InfoCalls[0].Fields["pipeline"])
}

func TestPipelineLogger_AllLogLevels(t *testing.T) {
	baseLogger := NewMockLogger()
	pipelineLogger := logging.NewPipelineLogger(baseLogger, "test")

	pipelineLogger.Debug("Debug message", nil)
	pipelineLogger.Info("Info message", nil)
	pipelineLogger.Warn("Warn message", nil)
	pipelineLogger.Error("Error message", errors.New("test error"), nil)

	require.Len(t, baseLogger.DebugCalls, 1)
	require.Len(t, baseLogger.InfoCalls, 1)
	require.Len(t, baseLogger.WarnCalls, 1)
	require.Len(t, baseLogger.ErrorCalls, 1)
	assert.Equal(t, "[test] Debug message", baseLogger.DebugCalls[0].Message)
	assert.Equal(t, "[test] Warn message", baseLogger.WarnCalls[0].Message)
}

func TestSyncLogger_WithProfile(t *testing.T) {
	baseLogger := NewMockLogger()
	syncLogger := logging.NewSyncLogger(baseLogger, "batch-42")

	assert.Equal(t, "batch-42", syncLogger.BatchID())

	syncLogger.WithProfile("p1", "Kulyth").Warn("Retrying upload", nil)

	require.Len(t, baseLogger.WarnCalls, 1)
	fields := baseLogger.WarnCalls[0].Fields
	assert.Equal(t, "batch-42", fields["batch_id"])
	assert.Equal(t, "p1", fields["profile_id"])
	assert.Equal(t, "Kulyth", fields["profile_name"])
	assert.Equal(t, "sync", fields["pipeline"])
}

func TestCommandLogger_WithAccount(t *testing.T) {
	baseLogger := NewMockLogger()
	cmdLogger := logging.NewCommandLogger(baseLogger, "upload")

	cmdLogger.WithAccount("ACCOUNT-1").Info("Scanned profiles", map[string]interface{}{"count": 3})

	require.Len(t, baseLogger.InfoCalls, 1)
	fields := baseLogger.InfoCalls[0].Fields
	assert.Equal(t, "upload", fields["command"])
	assert.Equal(t, "ACCOUNT-1", fields["account_id"])
	assert.Equal(t, 3, fields["count"])
}
