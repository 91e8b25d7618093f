package logging

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var logger = zap.NewNop()

// LogLevelEnvVar is the environment variable that controls logging verbosity.
// When unset or empty, logging is silent (no zap output).
// Valid values: "debug", "info", "warn", "error"
const LogLevelEnvVar = "CLMSETUP_LOG_LEVEL"

// maxLoggedBody caps the request log line.
const maxLoggedBody = 80

// Initialize creates a new logger with the specified level writing to stdout.
// If level is empty, it checks CLMSETUP_LOG_LEVEL environment variable.
// If neither is set, logging is disabled (silent mode).
func Initialize(level string) error {
	return build(level, []string{"stdout"})
}

// InitializeFile is like Initialize but writes to the given file path.
// Used by the terminal wizard, which owns stdout.
func InitializeFile(level, path string) error {
	if path == "" {
		return Initialize(level)
	}
	return build(level, []string{path})
}

// InitializeFromEnv initializes the logger from the CLMSETUP_LOG_LEVEL
// environment variable.
func InitializeFromEnv() error {
	return Initialize("")
}

func build(level string, outputs []string) error {
	if level == "" {
		level = os.Getenv(LogLevelEnvVar)
	}

	if level == "" {
		logger = zap.NewNop()
		return nil
	}

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(parseLevel(level)),
		Development:      false,
		Encoding:         "console",
		EncoderConfig:    zap.NewDevelopmentEncoderConfig(),
		OutputPaths:      outputs,
		ErrorOutputPaths: []string{"stderr"},
	}

	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
	if outputs[0] != "stdout" && outputs[0] != "stderr" {
		// No ANSI colours in log files
		config.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	var err error
	logger, err = config.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	return nil
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// SetLogger replaces the global logger. Tests use this with zaptest/observer.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	logger = l
}

// GetLogger returns the global logger instance
func GetLogger() *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return logger
}

// Info logs an info message
func Info(msg string, fields ...zap.Field) {
	GetLogger().Info(msg, fields...)
}

// Debug logs a debug message
func Debug(msg string, fields ...zap.Field) {
	GetLogger().Debug(msg, fields...)
}

// Warn logs a warning message
func Warn(msg string, fields ...zap.Field) {
	GetLogger().Warn(msg, fields...)
}

// Error logs an error message
func Error(msg string, fields ...zap.Field) {
	GetLogger().Error(msg, fields...)
}

// Fatal logs a fatal message and exits
func Fatal(msg string, fields ...zap.Field) {
	GetLogger().Fatal(msg, fields...)
}

// LogHTTPRequest logs a completed API request. The response body is
// appended to the summary and the whole line truncated to 80 characters.
func LogHTTPRequest(method, path string, status int, duration time.Duration, body []byte) {
	line := fmt.Sprintf("%s %s %d in %dms", method, path, status, duration.Milliseconds())
	if len(body) > 0 {
		line += " :: " + string(body)
	}
	Info(truncate(line, maxLoggedBody),
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", status),
		zap.Duration("duration", duration),
	)
}

// LogStepTransition logs a wizard step change
func LogStepTransition(userID int64, from, to int) {
	Info("Wizard step changed",
		zap.Int64("user_id", userID),
		zap.Int("from", from),
		zap.Int("to", to),
	)
}

// LogSimulation logs a simulated device interaction event
func LogSimulation(kind string, generation uint64, event string) {
	Debug("Simulation event",
		zap.String("kind", kind),
		zap.Uint64("generation", generation),
		zap.String("event", event),
	)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}

// Sync flushes any buffered log entries
func Sync() {
	if logger != nil {
		_ = logger.Sync()
	}
}
