package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel defines the severity of a log message
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

// Logger оборачивает zap.SugaredLogger и сохраняет два стиля вызовов:
// printf (Info, Warn, ...) и key/value (Infow, Warnw, ...).
type Logger struct {
	sugar *zap.SugaredLogger
}

// New creates a new Logger instance
func New(level LogLevel) *Logger {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level.zapLevel())
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableStacktrace = true

	z, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		// Конфигурация статическая, ошибка тут возможна только при недоступном stdout
		z = zap.NewNop()
	}
	return &Logger{sugar: z.Sugar()}
}

// NewNop возвращает логгер, который ничего не пишет (для тестов).
func NewNop() *Logger {
	return &Logger{sugar: zap.NewNop().Sugar()}
}

// FromZap строит Logger поверх готового zap.Logger.
func FromZap(z *zap.Logger) *Logger {
	return &Logger{sugar: z.WithOptions(zap.AddCallerSkip(1)).Sugar()}
}

// ParseLevel переводит строку из конфигурации в LogLevel. Неизвестные значения дают INFO.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	case "fatal":
		return FATAL
	default:
		return INFO
	}
}

func (l LogLevel) zapLevel() zapcore.Level {
	switch l {
	case DEBUG:
		return zapcore.DebugLevel
	case WARN:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	case FATAL:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// With возвращает дочерний логгер с постоянными полями.
func (l *Logger) With(keysAndValues ...any) *Logger {
	return &Logger{sugar: l.sugar.With(keysAndValues...)}
}

// Sync сбрасывает буферы zap.
func (l *Logger) Sync() error {
	return l.sugar.Sync()
}

func (l *Logger) Debug(format string, v ...any) { l.sugar.Debugf(format, v...) }
func (l *Logger) Info(format string, v ...any)  { l.sugar.Infof(format, v...) }
func (l *Logger) Warn(format string, v ...any)  { l.sugar.Warnf(format, v...) }
func (l *Logger) Error(format string, v ...any) { l.sugar.Errorf(format, v...) }
func (l *Logger) Fatal(format string, v ...any) { l.sugar.Fatalf(format, v...) }

func (l *Logger) Debugw(msg string, keysAndValues ...any) { l.sugar.Debugw(msg, keysAndValues...) }
func (l *Logger) Infow(msg string, keysAndValues ...any)  { l.sugar.Infow(msg, keysAndValues...) }
func (l *Logger) Warnw(msg string, keysAndValues ...any)  { l.sugar.Warnw(msg, keysAndValues...) }
func (l *Logger) Errorw(msg string, keysAndValues ...any) { l.sugar.Errorw(msg, keysAndValues...) }
func (l *Logger) Fatalw(msg string, keysAndValues ...any) { l.sugar.Fatalw(msg, keysAndValues...) }
