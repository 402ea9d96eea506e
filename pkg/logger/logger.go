package logger

import (
	stderrors "errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/SIMPLYBOYS/tweetpulse/internal/errors"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

var logLevelNames = map[LogLevel]string{
	DEBUG: "DEBUG",
	INFO:  "INFO",
	WARN:  "WARN",
	ERROR: "ERROR",
	FATAL: "FATAL",
}

type Logger struct {
	level   LogLevel
	output  io.Writer
	logger  *log.Logger
	logFile *os.File
	mu      sync.Mutex
	exit    func(int)
}

const logFlags = log.Ldate | log.Ltime | log.LUTC

var (
	defaultLogger *Logger
	once          sync.Once
)

func init() {
	once.Do(func() {
		defaultLogger = NewLogger(INFO, os.Stdout)
	})
}

// NewLogger returns a logger writing to output at or above level.
func NewLogger(level LogLevel, output io.Writer) *Logger {
	return &Logger{
		level:  level,
		output: output,
		logger: log.New(output, "", logFlags),
		exit:   os.Exit,
	}
}

// ParseLevel maps a level name such as "debug" or "WARN" to a LogLevel.
// Unknown names fall back to INFO.
func ParseLevel(name string) LogLevel {
	for level, levelName := range logLevelNames {
		if strings.EqualFold(levelName, strings.TrimSpace(name)) {
			return level
		}
	}
	return INFO
}

// SetLevel sets the logging level
func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// EnableFileLogging mirrors every line into a daily file under directory.
func (l *Logger) EnableFileLogging(directory string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(directory, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	logFile := filepath.Join(directory, fmt.Sprintf("tweetpulse_%s.log", time.Now().UTC().Format("2006-01-02")))
	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	if l.logFile != nil {
		l.logFile.Close()
	}
	l.logFile = file
	l.logger = log.New(io.MultiWriter(l.output, file), "", logFlags)
	return nil
}

// Close releases the log file, if any.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.logFile == nil {
		return nil
	}
	err := l.logFile.Close()
	l.logFile = nil
	l.logger = log.New(l.output, "", logFlags)
	return err
}

func (l *Logger) log(level LogLevel, format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level < l.level {
		return
	}

	_, file, line, _ := runtime.Caller(2)
	l.logger.Printf("[%s] [%s:%d] %s", logLevelNames[level], filepath.Base(file), line, fmt.Sprintf(format, v...))

	if level == FATAL {
		l.exit(1)
	}
}

// Debug logs a debug message
func (l *Logger) Debug(format string, v ...interface{}) {
	l.log(DEBUG, format, v...)
}

// Info logs an info message
func (l *Logger) Info(format string, v ...interface{}) {
	l.log(INFO, format, v...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, v ...interface{}) {
	l.log(WARN, format, v...)
}

// Error logs an error message
func (l *Logger) Error(format string, v ...interface{}) {
	l.log(ERROR, format, v...)
}

// Fatal logs a fatal message and exits the program
func (l *Logger) Fatal(format string, v ...interface{}) {
	l.log(FATAL, format, v...)
}

// Errorf wraps err with the formatted message, logs it and returns it.
func (l *Logger) Errorf(err error, format string, v ...interface{}) error {
	wrapped := fmt.Errorf("%s: %w", fmt.Sprintf(format, v...), err)
	l.log(ERROR, "%v", wrapped)
	return wrapped
}

// Global functions that use the default logger.
// They call log directly so the reported caller is the code that logged.

// SetLevel sets the logging level for the default logger
func SetLevel(level LogLevel) {
	defaultLogger.SetLevel(level)
}

// SetOutput swaps the default logger's writer. Used by tests to capture output.
func SetOutput(w io.Writer) {
	defaultLogger.mu.Lock()
	defer defaultLogger.mu.Unlock()
	defaultLogger.output = w
	if defaultLogger.logFile != nil {
		defaultLogger.logger = log.New(io.MultiWriter(w, defaultLogger.logFile), "", logFlags)
		return
	}
	defaultLogger.logger = log.New(w, "", logFlags)
}

// EnableFileLogging enables file logging for the default logger
func EnableFileLogging(directory string) error {
	return defaultLogger.EnableFileLogging(directory)
}

// Close closes the default logger's file, if any.
func Close() error {
	return defaultLogger.Close()
}

// Debug logs a debug message using the default logger
func Debug(format string, v ...interface{}) {
	defaultLogger.log(DEBUG, format, v...)
}

// Info logs an info message using the default logger
func Info(format string, v ...interface{}) {
	defaultLogger.log(INFO, format, v...)
}

// Warn logs a warning message using the default logger
func Warn(format string, v ...interface{}) {
	defaultLogger.log(WARN, format, v...)
}

// Error logs an error message using the default logger
func Error(format string, v ...interface{}) {
	defaultLogger.log(ERROR, format, v...)
}

// Fatal logs a fatal message and exits the program using the default logger
func Fatal(format string, v ...interface{}) {
	defaultLogger.log(FATAL, format, v...)
}

func Errorf(err error, format string, v ...interface{}) error {
	wrapped := fmt.Errorf("%s: %w", fmt.Sprintf(format, v...), err)
	defaultLogger.log(ERROR, "%v", wrapped)
	return wrapped
}

// LogError logs err with a prefix chosen by its type.
func LogError(err error) {
	var (
		storageErr  *errors.StorageError
		upstreamErr *errors.UpstreamError
		apiErr      *errors.APIError
		wsErr       *errors.WebSocketError
		notFoundErr *errors.NotFoundError
		precondErr  *errors.PreconditionError
	)
	switch {
	case stderrors.As(err, &apiErr):
		defaultLogger.log(ERROR, "API error (status %d): %s - %v", apiErr.StatusCode, apiErr.Message, apiErr.Err)
	case stderrors.As(err, &storageErr):
		defaultLogger.log(ERROR, "Storage error during %s: %v", storageErr.Operation, storageErr.Err)
	case stderrors.As(err, &upstreamErr):
		defaultLogger.log(ERROR, "Upstream error during %s: %v", upstreamErr.Operation, upstreamErr.Err)
	case stderrors.As(err, &wsErr):
		defaultLogger.log(ERROR, "WebSocket error during %s: %v", wsErr.Operation, wsErr.Err)
	case stderrors.As(err, &notFoundErr):
		defaultLogger.log(WARN, "%v", notFoundErr)
	case stderrors.As(err, &precondErr):
		defaultLogger.log(WARN, "Rejected request: %s", precondErr.Message)
	default:
		defaultLogger.log(ERROR, "Unexpected error: %v", err)
	}
}
