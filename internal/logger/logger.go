package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogLevel is a logrus level name.
type LogLevel string

const (
	LevelTrace LogLevel = "trace"
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
	LevelFatal LogLevel = "fatal"
	LevelPanic LogLevel = "panic"
)

// LogFormat selects the logrus formatter.
type LogFormat string

const (
	FormatJSON LogFormat = "json"
	FormatText LogFormat = "text"
)

// Config configures a logger.
type Config struct {
	Level      LogLevel  `yaml:"level" json:"level"`
	Format     LogFormat `yaml:"format" json:"format"`
	Output     string    `yaml:"output" json:"output"`           // stdout, stderr, file
	Filename   string    `yaml:"filename" json:"filename"`       // used when Output is "file"
	MaxSize    int       `yaml:"max_size" json:"max_size"`       // MB per file
	MaxAge     int       `yaml:"max_age" json:"max_age"`         // days
	MaxBackups int       `yaml:"max_backups" json:"max_backups"` // rotated files kept
	Compress   bool      `yaml:"compress" json:"compress"`
	Caller     bool      `yaml:"caller" json:"caller"`
	Timestamp  bool      `yaml:"timestamp" json:"timestamp"`
}

var DefaultConfig = Config{
	Level:      LevelInfo,
	Format:     FormatJSON,
	Output:     "stdout",
	MaxSize:    100,
	MaxAge:     30,
	MaxBackups: 10,
	Compress:   true,
	Caller:     false,
	Timestamp:  true,
}

// ValidLevel reports whether level is one logrus understands.
func ValidLevel(level LogLevel) bool {
	switch level {
	case LevelTrace, LevelDebug, LevelInfo, LevelWarn, LevelError, LevelFatal, LevelPanic:
		return true
	}
	return false
}

// ValidFormat reports whether format is a supported formatter.
func ValidFormat(format LogFormat) bool {
	return format == FormatJSON || format == FormatText
}

// Logger is the logging surface used across the node. Fields are passed as
// alternating key/value pairs.
type Logger interface {
	Trace(msg string, fields ...interface{})
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Fatal(msg string, fields ...interface{})
	Panic(msg string, fields ...interface{})

	WithField(key string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
	WithContext(ctx context.Context) Logger

	SetLevel(level LogLevel)
	GetLevel() LogLevel
}

type contextKey string

const (
	RequestIDKey contextKey = "request_id"
	NodeIDKey    contextKey = "node_id"
)

// StructuredLogger implements Logger on top of logrus.
type StructuredLogger struct {
	logger *logrus.Logger
	entry  *logrus.Entry
	config *Config
	mu     *sync.RWMutex
}

// NewLogger creates a logrus-backed logger from config.
func NewLogger(config Config) Logger {
	return newLogger(config, nil)
}

// NewLoggerWithWriter builds a logger that writes to w regardless of config.Output.
func NewLoggerWithWriter(config Config, w io.Writer) Logger {
	return newLogger(config, w)
}

func newLogger(config Config, w io.Writer) Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(string(config.Level))
	if err != nil {
		level = logrus.InfoLevel
		config.Level = LevelInfo
	}
	logger.SetLevel(level)

	callerPrettyfier := func(f *runtime.Frame) (string, string) {
		filename := filepath.Base(f.File)
		return fmt.Sprintf("%s()", f.Function), fmt.Sprintf("%s:%d", filename, f.Line)
	}

	if config.Format == FormatText {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:    config.Timestamp,
			DisableTimestamp: !config.Timestamp,
			TimestampFormat:  time.RFC3339,
			CallerPrettyfier: callerPrettyfier,
		})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{
			DisableTimestamp: !config.Timestamp,
			TimestampFormat:  time.RFC3339,
			CallerPrettyfier: callerPrettyfier,
		})
	}

	if w == nil {
		w = outputFor(&config)
	}
	logger.SetOutput(w)
	logger.SetReportCaller(config.Caller)

	return &StructuredLogger{
		logger: logger,
		entry:  logrus.NewEntry(logger),
		config: &config,
		mu:     &sync.RWMutex{},
	}
}

func outputFor(config *Config) io.Writer {
	switch config.Output {
	case "stderr":
		return os.Stderr
	case "file":
		if config.Filename == "" {
			config.Filename = "logs/aqstn.log"
		}
		if err := os.MkdirAll(filepath.Dir(config.Filename), 0755); err != nil {
			fmt.Fprintf(os.Stderr, "failed to create log directory: %v\n", err)
			return os.Stdout
		}
		return &lumberjack.Logger{
			Filename:   config.Filename,
			MaxSize:    config.MaxSize,
			MaxAge:     config.MaxAge,
			MaxBackups: config.MaxBackups,
			Compress:   config.Compress,
		}
	default:
		return os.Stdout
	}
}

func (l *StructuredLogger) Trace(msg string, fields ...interface{}) {
	l.logWithFields(logrus.TraceLevel, msg, fields...)
}

func (l *StructuredLogger) Debug(msg string, fields ...interface{}) {
	l.logWithFields(logrus.DebugLevel, msg, fields...)
}

func (l *StructuredLogger) Info(msg string, fields ...interface{}) {
	l.logWithFields(logrus.InfoLevel, msg, fields...)
}

func (l *StructuredLogger) Warn(msg string, fields ...interface{}) {
	l.logWithFields(logrus.WarnLevel, msg, fields...)
}

func (l *StructuredLogger) Error(msg string, fields ...interface{}) {
	l.logWithFields(logrus.ErrorLevel, msg, fields...)
}

// Fatal logs and exits the process through logrus.
func (l *StructuredLogger) Fatal(msg string, fields ...interface{}) {
	l.entryWithFields(fields...).Fatal(msg)
}

// Panic logs and panics through logrus.
func (l *StructuredLogger) Panic(msg string, fields ...interface{}) {
	l.entryWithFields(fields...).Panic(msg)
}

func (l *StructuredLogger) WithField(key string, value interface{}) Logger {
	return l.derive(l.entry.WithField(key, value))
}

func (l *StructuredLogger) WithFields(fields map[string]interface{}) Logger {
	return l.derive(l.entry.WithFields(fields))
}

// WithContext attaches ctx and copies the request and node ids stored in it.
func (l *StructuredLogger) WithContext(ctx context.Context) Logger {
	entry := l.entry.WithContext(ctx)
	if requestID := ctx.Value(RequestIDKey); requestID != nil {
		entry = entry.WithField(string(RequestIDKey), requestID)
	}
	if nodeID := ctx.Value(NodeIDKey); nodeID != nil {
		entry = entry.WithField(string(NodeIDKey), nodeID)
	}
	return l.derive(entry)
}

// SetLevel changes the level of this logger and every logger derived from it.
func (l *StructuredLogger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()

	logrusLevel, err := logrus.ParseLevel(string(level))
	if err != nil {
		return
	}
	l.logger.SetLevel(logrusLevel)
	l.config.Level = level
}

func (l *StructuredLogger) GetLevel() LogLevel {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.config.Level
}

func (l *StructuredLogger) derive(entry *logrus.Entry) Logger {
	return &StructuredLogger{
		logger: l.logger,
		entry:  entry,
		config: l.config,
		mu:     l.mu,
	}
}

func (l *StructuredLogger) entryWithFields(fields ...interface{}) *logrus.Entry {
	entry := l.entry
	if len(fields) > 0 {
		fieldMap := make(map[string]interface{})
		for i := 0; i+1 < len(fields); i += 2 {
			if key, ok := fields[i].(string); ok {
				fieldMap[key] = fields[i+1]
			}
		}
		if len(fieldMap) > 0 {
			entry = entry.WithFields(fieldMap)
		}
	}
	return entry
}

func (l *StructuredLogger) logWithFields(level logrus.Level, msg string, fields ...interface{}) {
	l.entryWithFields(fields...).Log(level, msg)
}

var (
	globalMu     sync.RWMutex
	globalLogger = NewLogger(DefaultConfig)
)

// Init replaces the global logger with one built from config.
func Init(config Config) {
	SetGlobalLogger(NewLogger(config))
}

func SetGlobalLogger(logger Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = logger
}

func GetGlobalLogger() Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

func Trace(msg string, fields ...interface{}) { GetGlobalLogger().Trace(msg, fields...) }
func Debug(msg string, fields ...interface{}) { GetGlobalLogger().Debug(msg, fields...) }
func Info(msg string, fields ...interface{})  { GetGlobalLogger().Info(msg, fields...) }
func Warn(msg string, fields ...interface{})  { GetGlobalLogger().Warn(msg, fields...) }
func Error(msg string, fields ...interface{}) { GetGlobalLogger().Error(msg, fields...) }
func Fatal(msg string, fields ...interface{}) { GetGlobalLogger().Fatal(msg, fields...) }

func WithField(key string, value interface{}) Logger {
	return GetGlobalLogger().WithField(key, value)
}

func WithFields(fields map[string]interface{}) Logger {
	return GetGlobalLogger().WithFields(fields)
}

func WithContext(ctx context.Context) Logger {
	return GetGlobalLogger().WithContext(ctx)
}

// HTTPRequestInfo describes one served request.
type HTTPRequestInfo struct {
	Method     string
	Path       string
	StatusCode int
	Latency    time.Duration
	ClientIP   string
	UserAgent  string
	BodySize   int64
	RequestID  string
	Headers    map[string]string
}

// LogHTTPRequest logs a request on l, at warn for 4xx and error for 5xx.
func LogHTTPRequest(l Logger, info HTTPRequestInfo) {
	fields := map[string]interface{}{
		"method":      info.Method,
		"path":        info.Path,
		"status_code": info.StatusCode,
		"latency":     info.Latency.String(),
		"client_ip":   info.ClientIP,
		"user_agent":  info.UserAgent,
		"body_size":   info.BodySize,
	}
	if info.RequestID != "" {
		fields["request_id"] = info.RequestID
	}
	for k, v := range info.Headers {
		fields["header_"+strings.ToLower(k)] = v
	}

	msg := fmt.Sprintf("%s %s - %d", info.Method, info.Path, info.StatusCode)
	entry := l.WithFields(fields)
	switch {
	case info.StatusCode >= 500:
		entry.Error(msg)
	case info.StatusCode >= 400:
		entry.Warn(msg)
	default:
		entry.Info(msg)
	}
}
