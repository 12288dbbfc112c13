// Package telemetry wraps zap as the module's structured logger and
// adapts it to logline.Sink, the three-level per-realization log contract
// the orchestrator and its component readers depend on.
package telemetry

import (
	"strings"

	"go.uber.org/zap"

	"github.com/resflow/forward-runner/internal/logline"
)

// Logger is a small wrapper around a zap.SugaredLogger, following the
// shape used throughout this module's ambient stack: construct once via
// New, derive scoped children via With.
type Logger struct {
	SugaredLogger *zap.SugaredLogger
}

// New builds a Logger for "dev" or "prod" mode. Both configurations log at
// debug level; the distinction is encoding (console vs. JSON) and
// sampling, matching zap's own default production/development configs.
func New(mode string) (*Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(mode) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)

	zapLogger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{SugaredLogger: zapLogger.Sugar()}, nil
}

func (l *Logger) Sync() { _ = l.SugaredLogger.Sync() }

func (l *Logger) Debug(msg string, kv ...interface{}) { l.SugaredLogger.Debugw(msg, kv...) }
func (l *Logger) Info(msg string, kv ...interface{})  { l.SugaredLogger.Infow(msg, kv...) }
func (l *Logger) Warn(msg string, kv ...interface{})  { l.SugaredLogger.Warnw(msg, kv...) }
func (l *Logger) Error(msg string, kv ...interface{}) { l.SugaredLogger.Errorw(msg, kv...) }

func (l *Logger) With(kv ...interface{}) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.With(kv...)}
}

// ZapLog adapts a *Logger to logline.Sink, mapping the three log levels to
// zap levels: retry/fail to Warn, progress to Info, per-node detail to
// Debug.
type ZapLog struct {
	Logger *Logger
}

var _ logline.Sink = ZapLog{}

func (z ZapLog) Log(level logline.Level, iens, step1, step2 int, msg string) {
	line := logline.Format(iens, step1, step2, msg)
	switch level {
	case logline.LevelRetryFail:
		z.Logger.Warn(line)
	case logline.LevelNodeDetail:
		z.Logger.Debug(line)
	default:
		z.Logger.Info(line)
	}
}
