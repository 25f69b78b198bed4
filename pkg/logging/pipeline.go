package logging

import (
	"fmt"
)

// PipelineLogger wraps a base logger with pipeline-specific context
type PipelineLogger struct {
	base     Logger
	pipeline string
	context  map[string]interface{}
}

// NewPipelineLogger creates a new pipeline-specific logger
func NewPipelineLogger(base Logger, pipeline string) *PipelineLogger {
	return &PipelineLogger{
		base:     base,
		pipeline: pipeline,
		context:  make(map[string]interface{}),
	}
}

// Info logs informational messages with pipeline context
func (p *PipelineLogger) Info(msg string, fields map[string]interface{}) {
	p.base.Info(fmt.Sprintf("[%s] %s", p.pipeline, msg), p.enrichFields(fields))
}

// Error logs error messages with pipeline context
func (p *PipelineLogger) Error(msg string, err error, fields map[string]interface{}) {
	p.base.Error(fmt.Sprintf("[%s] %s", p.pipeline, msg), err, p.enrichFields(fields))
}

// Warn logs warning messages with pipeline context
func (p *PipelineLogger) Warn(msg string, fields map[string]interface{}) {
	p.base.Warn(fmt.Sprintf("[%s] %s", p.pipeline, msg), p.enrichFields(fields))
}

// Debug logs debug messages with pipeline context
func (p *PipelineLogger) Debug(msg string, fields map[string]interface{}) {
	p.base.Debug(fmt.Sprintf("[%s] %s", p.pipeline, msg), p.enrichFields(fields))
}

// WithPipeline creates a new logger with updated pipeline context
func (p *PipelineLogger) WithPipeline(pipeline string) Logger {
	return &PipelineLogger{
		base:     p.base,
		pipeline: pipeline,
		context:  p.copyContext(),
	}
}

// WithContext creates a new logger with additional context fields
func (p *PipelineLogger) WithContext(ctx map[string]interface{}) Logger {
	return p.withContext(ctx)
}

func (p *PipelineLogger) withContext(ctx map[string]interface{}) *PipelineLogger {
	newContext := p.copyContext()
	for k, v := range ctx {
		newContext[k] = v
	}

	return &PipelineLogger{
		base:     p.base,
		pipeline: p.pipeline,
		context:  newContext,
	}
}

// enrichFields combines pipeline context with provided fields
func (p *PipelineLogger) enrichFields(fields map[string]interface{}) map[string]interface{} {
	enriched := make(map[string]interface{}, len(p.context)+len(fields)+1)

	for k, v := range p.context {
		enriched[k] = v
	}
	// provided fields can override context
	for k, v := range fields {
		enriched[k] = v
	}
	enriched["pipeline"] = p.pipeline

	return enriched
}

// copyContext creates a copy of the current context
func (p *PipelineLogger) copyContext() map[string]interface{} {
	newContext := make(map[string]interface{}, len(p.context))
	for k, v := range p.context {
		newContext[k] = v
	}
	return newContext
}

// SyncLogger tags every entry with the upload batch it belongs to
type SyncLogger struct {
	*PipelineLogger
	batchID string
}

// NewSyncLogger creates a new sync pipeline logger
func NewSyncLogger(base Logger, batchID string) *SyncLogger {
	return &SyncLogger{
		PipelineLogger: NewPipelineLogger(base, "sync").withContext(map[string]interface{}{
			"batch_id": batchID,
		}),
		batchID: batchID,
	}
}

// BatchID returns the batch this logger was created for
func (s *SyncLogger) BatchID() string {
	return s.batchID
}

// WithProfile adds profile context to the sync logger
func (s *SyncLogger) WithProfile(profileID, profileName string) Logger {
	return s.WithContext(map[string]interface{}{
		"profile_id":   profileID,
		"profile_name": profileName,
	})
}

// CommandLogger creates a logger specifically for CLI command operations
type CommandLogger struct {
	*PipelineLogger
	commandName string
}

// NewCommandLogger creates a new command logger
func NewCommandLogger(base Logger, commandName string) *CommandLogger {
	return &CommandLogger{
		PipelineLogger: NewPipelineLogger(base, "commands").withContext(map[string]interface{}{
			"command": commandName,
		}),
		commandName: commandName,
	}
}

// WithAccount adds the game account the command operates on
func (c *CommandLogger) WithAccount(accountID string) Logger {
	return c.WithContext(map[string]interface{}{
		"account_id": accountID,
	})
}
