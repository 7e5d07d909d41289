// Package logger provides leveled logging for the simulation. It wraps the
// standard log package with level-based filtering so that per-tick chatter
// (strike snapping, memory persistence) can be silenced without losing
// startup and failure reporting.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

// Level represents a logging level.
type Level int

const (
	// DebugLevel logs are voluminous (per-tick detail) and usually disabled.
	DebugLevel Level = iota
	// InfoLevel is the default logging priority.
	InfoLevel
	// WarnLevel logs recoverable drift: snapped strikes, swallowed persistence errors.
	WarnLevel
	// ErrorLevel logs are high-priority; a healthy episode should not produce any.
	ErrorLevel
)

// ParseLevel maps a config string to a Level, defaulting to InfoLevel.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return DebugLevel
	case "warn":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

type leveledLogger struct {
	level  Level
	logger *log.Logger
}

var defaultLogger *leveledLogger

// Init initializes the default logger. Format "text" adds source locations;
// anything else keeps timestamps only.
func Init(level string, format string) {
	InitWithWriter(level, format, os.Stderr)
}

// InitWithWriter is Init with an explicit output destination, used by tests.
func InitWithWriter(level string, format string, w io.Writer) {
	flags := log.LstdFlags | log.Lmicroseconds
	if strings.ToLower(format) == "text" {
		flags |= log.Lshortfile
	}
	defaultLogger = &leveledLogger{
		level:  ParseLevel(level),
		logger: log.New(w, "", flags),
	}
}

func emit(l Level, tag, format string, args ...interface{}) {
	if defaultLogger == nil || defaultLogger.level > l {
		return
	}
	_ = defaultLogger.logger.Output(3, fmt.Sprintf(tag+format, args...))
}

// Debug logs a message at DebugLevel.
func Debug(format string, args ...interface{}) {
	emit(DebugLevel, "[DEBUG] ", format, args...)
}

// Info logs a message at InfoLevel.
func Info(format string, args ...interface{}) {
	emit(InfoLevel, "[INFO] ", format, args...)
}

// Warn logs a message at WarnLevel.
func Warn(format string, args ...interface{}) {
	emit(WarnLevel, "[WARN] ", format, args...)
}

// Error logs a message at ErrorLevel.
func Error(format string, args ...interface{}) {
	emit(ErrorLevel, "[ERROR] ", format, args...)
}

// Fatal logs a message and exits the process. Only startup wiring may call it.
func Fatal(format string, args ...interface{}) {
	msg := fmt.Sprintf("[FATAL] "+format, args...)
	if defaultLogger != nil {
		_ = defaultLogger.logger.Output(2, msg)
	} else {
		log.Print(msg)
	}
	os.Exit(1)
}
