package raftengine

import (
	"fmt"
	"io"
	"log"

	"github.com/hashicorp/go-hclog"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// zapHCLogger adapts a zap.Logger to the hclog.Logger interface the Raft
// library logs through.
type zapHCLogger struct {
	logger *zap.Logger
	name   string
	level  zap.AtomicLevel
}

// newZapHCLogger wraps zapLogger for use as the Raft logger. The initial
// level follows the wrapped logger's effective level.
func newZapHCLogger(zapLogger *zap.Logger) hclog.Logger {
	initialLevel := zap.InfoLevel
	if zapLogger.Core().Enabled(zap.DebugLevel) {
		initialLevel = zap.DebugLevel
	}
	return &zapHCLogger{
		logger: zapLogger,
		level:  zap.NewAtomicLevelAt(initialLevel),
	}
}

func (z *zapHCLogger) Log(level hclog.Level, msg string, args ...interface{}) {
	switch level {
	case hclog.Trace, hclog.Debug:
		z.log(zap.DebugLevel, msg, args...)
	case hclog.Info:
		z.log(zap.InfoLevel, msg, args...)
	case hclog.Warn:
		z.log(zap.WarnLevel, msg, args...)
	case hclog.Error:
		z.log(zap.ErrorLevel, msg, args...)
	}
}

func (z *zapHCLogger) Trace(msg string, args ...interface{}) { z.log(zap.DebugLevel, msg, args...) }
func (z *zapHCLogger) Debug(msg string, args ...interface{}) { z.log(zap.DebugLevel, msg, args...) }
func (z *zapHCLogger) Info(msg string, args ...interface{})  { z.log(zap.InfoLevel, msg, args...) }
func (z *zapHCLogger) Warn(msg string, args ...interface{})  { z.log(zap.WarnLevel, msg, args...) }
func (z *zapHCLogger) Error(msg string, args ...interface{}) { z.log(zap.ErrorLevel, msg, args...) }

func (z *zapHCLogger) log(level zapcore.Level, msg string, args ...interface{}) {
	if !z.level.Enabled(level) {
		return
	}
	if ce := z.logger.Check(level, msg); ce != nil {
		ce.Write(argsToZapFields(args...)...)
	}
}

func (z *zapHCLogger) IsTrace() bool { return z.level.Enabled(zap.DebugLevel) }
func (z *zapHCLogger) IsDebug() bool { return z.level.Enabled(zap.DebugLevel) }
func (z *zapHCLogger) IsInfo() bool  { return z.level.Enabled(zap.InfoLevel) }
func (z *zapHCLogger) IsWarn() bool  { return z.level.Enabled(zap.WarnLevel) }
func (z *zapHCLogger) IsError() bool { return z.level.Enabled(zap.ErrorLevel) }

func (z *zapHCLogger) With(args ...interface{}) hclog.Logger {
	return &zapHCLogger{
		logger: z.logger.With(argsToZapFields(args...)...),
		name:   z.name,
		level:  z.level,
	}
}

func (z *zapHCLogger) Named(name string) hclog.Logger {
	newName := name
	if z.name != "" {
		newName = z.name + "." + name
	}
	return &zapHCLogger{
		logger: z.logger.Named(name),
		name:   newName,
		level:  z.level,
	}
}

func (z *zapHCLogger) ResetNamed(name string) hclog.Logger {
	return &zapHCLogger{
		logger: z.logger.Named(name),
		name:   name,
		level:  z.level,
	}
}

func (z *zapHCLogger) GetLevel() hclog.Level {
	switch z.level.Level() {
	case zapcore.DebugLevel:
		return hclog.Debug
	case zapcore.InfoLevel:
		return hclog.Info
	case zapcore.WarnLevel:
		return hclog.Warn
	case zapcore.ErrorLevel:
		return hclog.Error
	default:
		return hclog.NoLevel
	}
}

func (z *zapHCLogger) SetLevel(level hclog.Level) {
	switch level {
	case hclog.Trace, hclog.Debug:
		z.level.SetLevel(zap.DebugLevel)
	case hclog.Warn:
		z.level.SetLevel(zap.WarnLevel)
	case hclog.Error:
		z.level.SetLevel(zap.ErrorLevel)
	default:
		z.level.SetLevel(zap.InfoLevel)
	}
}

func (z *zapHCLogger) ImpliedArgs() []interface{} { return nil }

func (z *zapHCLogger) Name() string { return z.name }

func (z *zapHCLogger) StandardLogger(opts *hclog.StandardLoggerOptions) *log.Logger {
	return log.New(z.StandardWriter(opts), "", 0)
}

func (z *zapHCLogger) StandardWriter(*hclog.StandardLoggerOptions) io.Writer {
	return zap.NewStdLog(z.logger).Writer()
}

func argsToZapFields(args ...interface{}) []zap.Field {
	fields := make([]zap.Field, 0, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprintf("invalid_key_%d", i)
		}
		if i+1 >= len(args) {
			fields = append(fields, zap.Any(key, "(no value)"))
			break
		}
		fields = append(fields, zap.Any(key, args[i+1]))
	}
	return fields
}
