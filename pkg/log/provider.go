package log

import (
	"sync"
)

var (
	defaultMu     sync.RWMutex
	defaultLogger Logger = NewSlogLogger(nil)
)

// SetLogger replaces the process-wide default logger.
func SetLogger(l Logger) {
	if l == nil {
		return
	}
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = l
}

// GetLogger returns the process-wide default logger.
func GetLogger() Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// GetLoggerWithName returns the default logger tagged with a component name.
func GetLoggerWithName(name string) Logger {
	return GetLogger().With(ComponentKey, name)
}

// OrDefault returns l, or the named default logger when l is nil.
func OrDefault(l Logger, name string) Logger {
	if l != nil {
		return l
	}
	return GetLoggerWithName(name)
}
