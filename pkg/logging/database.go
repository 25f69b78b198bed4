package logging

import (
	"time"
)

// DatabaseLogger wraps a base logger with database persistence
type DatabaseLogger struct {
	base       Logger
	component  string
	context    map[string]interface{}
	repository LogRepository
}

// NewDatabaseLogger creates a new database-backed logger
func NewDatabaseLogger(base Logger, component string, repository LogRepository) *DatabaseLogger {
	return &DatabaseLogger{
		base:       base,
		component:  component,
		context:    make(map[string]interface{}),
		repository: repository,
	}
}

// Info logs informational messages and persists to database
func (d *DatabaseLogger) Info(msg string, fields map[string]interface{}) {
	d.base.Info(msg, fields)
	d.persistLog("INFO", msg, nil, fields)
}

// Error logs error messages and persists to database
func (d *DatabaseLogger) Error(msg string, err error, fields map[string]interface{}) {
	d.base.Error(msg, err, fields)
	d.persistLog("ERROR", msg, err, fields)
}

// Warn logs warning messages and persists to database
func (d *DatabaseLogger) Warn(msg string, fields map[string]interface{}) {
	d.base.Warn(msg, fields)
	d.persistLog("WARN", msg, nil, fields)
}

// Debug is not persisted
func (d *DatabaseLogger) Debug(msg string, fields map[string]interface{}) {
	d.base.Debug(msg, fields)
}

// WithPipeline creates a new logger with pipeline context
func (d *DatabaseLogger) WithPipeline(pipeline string) Logger {
	return d.with(d.base.WithPipeline(pipeline), map[string]interface{}{"pipeline": pipeline})
}

// WithContext creates a new logger with additional context fields
func (d *DatabaseLogger) WithContext(ctx map[string]interface{}) Logger {
	return d.with(d.base.WithContext(ctx), ctx)
}

func (d *DatabaseLogger) with(base Logger, ctx map[string]interface{}) *DatabaseLogger {
	newContext := make(map[string]interface{}, len(d.context)+len(ctx))
	for k, v := range d.context {
		newContext[k] = v
	}
	for k, v := range ctx {
		newContext[k] = v
	}
	return &DatabaseLogger{
		base:       base,
		component:  d.component,
		context:    newContext,
		repository: d.repository,
	}
}

// persistLog saves the log entry to the database
func (d *DatabaseLogger) persistLog(level, message string, err error, fields map[string]interface{}) {
	if d.repository == nil {
		return
	}

	allFields := make(map[string]interface{}, len(d.context)+len(fields)+1)
	for k, v := range d.context {
		allFields[k] = v
	}
	for k, v := range fields {
		allFields[k] = v
	}
	allFields["timestamp"] = time.Now().UTC()

	entry := LogEntry{
		Component: d.component,
		Level:     level,
		Message:   message,
		Fields:    allFields,
	}
	if err != nil {
		entry.Error = err.Error()
	}
	if v, ok := allFields["batch_id"].(string); ok {
		entry.BatchID = v
	}
	if v, ok := allFields["profile_id"].(string); ok {
		entry.ProfileID = v
	}
	if v, ok := allFields["command"].(string); ok {
		entry.Command = v
	}

	if saveErr := d.repository.SaveLog(entry); saveErr != nil {
		// base only, so a broken repository can't recurse
		d.base.Error("Failed to persist log to database", saveErr, map[string]interface{}{
			"original_message": message,
			"original_level":   level,
		})
	}
}
