package logging

import (
	"sync"
)

// DefaultLoggerFactory implements LoggerFactory using zap loggers
type DefaultLoggerFactory struct {
	opts    Options
	loggers map[string]Logger
	mu      sync.RWMutex
}

// NewLoggerFactory creates a new logger factory
func NewLoggerFactory(opts Options) LoggerFactory {
	return &DefaultLoggerFactory{
		opts:    opts,
		loggers: make(map[string]Logger),
	}
}

// CreateLogger creates a basic logger for the specified component
func (f *DefaultLoggerFactory) CreateLogger(component string) Logger {
	f.mu.RLock()
	logger, exists := f.loggers[component]
	f.mu.RUnlock()
	if exists {
		return logger
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if logger, exists := f.loggers[component]; exists {
		return logger
	}

	f.loggers[component] = f.build(component)
	return f.loggers[component]
}

func (f *DefaultLoggerFactory) build(component string) Logger {
	zapLogger, err := NewZapLogger(component, f.opts)
	if err != nil {
		// bad level/format in config; fall back to defaults rather than lose logs
		zapLogger, _ = NewZapLogger(component, Options{})
		zapLogger.Warn("invalid logger options, using defaults", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return zapLogger
}

// CreateSyncLogger creates a logger for one upload batch
func (f *DefaultLoggerFactory) CreateSyncLogger(batchID string) Logger {
	return NewSyncLogger(f.CreateLogger("sync"), batchID)
}

// CreateCommandLogger creates a logger for CLI command operations
func (f *DefaultLoggerFactory) CreateCommandLogger(commandName string) *CommandLogger {
	return NewCommandLogger(f.CreateLogger("commands"), commandName)
}

// DatabaseLoggerFactory extends the default factory with database persistence
type DatabaseLoggerFactory struct {
	*DefaultLoggerFactory
	repository LogRepository
}

// NewDatabaseLoggerFactory creates a logger factory with database persistence
func NewDatabaseLoggerFactory(opts Options, repository LogRepository) LoggerFactory {
	return &DatabaseLoggerFactory{
		DefaultLoggerFactory: &DefaultLoggerFactory{
			opts:    opts,
			loggers: make(map[string]Logger),
		},
		repository: repository,
	}
}

// CreateLogger creates a database-backed logger for the specified component
func (f *DatabaseLoggerFactory) CreateLogger(component string) Logger {
	f.mu.Lock()
	defer f.mu.Unlock()

	if logger, exists := f.loggers[component]; exists {
		return logger
	}

	dbLogger := NewDatabaseLogger(f.build(component), component, f.repository)
	f.loggers[component] = dbLogger
	return dbLogger
}

// CreateSyncLogger creates a database-backed logger for one upload batch
func (f *DatabaseLoggerFactory) CreateSyncLogger(batchID string) Logger {
	return NewSyncLogger(f.CreateLogger("sync"), batchID)
}

// CreateCommandLogger creates a database-backed logger for CLI commands
func (f *DatabaseLoggerFactory) CreateCommandLogger(commandName string) *CommandLogger {
	return NewCommandLogger(f.CreateLogger("commands"), commandName)
}

// GlobalLoggerFactory provides a singleton logger factory instance
var (
	globalFactory LoggerFactory
	factoryMu     sync.RWMutex
)

// GetGlobalLoggerFactory returns the global logger factory instance
func GetGlobalLoggerFactory() LoggerFactory {
	factoryMu.RLock()
	f := globalFactory
	factoryMu.RUnlock()
	if f != nil {
		return f
	}

	factoryMu.Lock()
	defer factoryMu.Unlock()
	if globalFactory == nil {
		globalFactory = NewLoggerFactory(Options{})
	}
	return globalFactory
}

// SetGlobalLoggerFactory sets the global logger factory (useful for dependency injection)
func SetGlobalLoggerFactory(factory LoggerFactory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	globalFactory = factory
}
