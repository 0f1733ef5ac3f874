package app

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aa-dank/slug-sweep-deduper/internal/sweep"
)

// LogFilename is the log file inside the configured log directory.
const LogFilename = "ssd.log"

// newLogger creates a logger that writes every level to logDir/ssd.log and
// errors to stderr (every level when debug is set). Lines look like:
//
//	<timestamp>\t<level>\t<sessionID>\t<message>\t{"key": value, ...}
//
// It returns the logger and the open log file, which the caller closes.
func newLogger(logDir, sessionID string, debug bool, stderr io.Writer) (*zap.Logger, *os.File, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}

	logPath := filepath.Join(logDir, LogFilename)
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	enc := zapcore.NewConsoleEncoder(encoderConfig())

	stderrLevel := zapcore.ErrorLevel
	if debug {
		stderrLevel = zapcore.DebugLevel
	}

	core := zapcore.NewTee(
		zapcore.NewCore(enc, zapcore.AddSync(f), zapcore.DebugLevel),
		zapcore.NewCore(enc.Clone(), zapcore.Lock(zapcore.AddSync(stderr)), stderrLevel),
	)
	return zap.New(core).Named(sessionID), f, nil
}

func encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = utcTimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.CallerKey = zapcore.OmitKey
	cfg.StacktraceKey = zapcore.OmitKey
	return cfg
}

func utcTimeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.UTC().Format("2006-01-02T15:04:05Z"))
}

// zapAdapter wraps a sugared zap logger to satisfy the sweep.Logger interface.
type zapAdapter struct {
	s *zap.SugaredLogger
}

var _ sweep.Logger = (*zapAdapter)(nil)

func newZapAdapter(l *zap.Logger) *zapAdapter {
	return &zapAdapter{s: l.Sugar()}
}

func (a *zapAdapter) Debug(msg string, args ...any) { a.s.Debugw(msg, args...) }
func (a *zapAdapter) Info(msg string, args ...any)  { a.s.Infow(msg, args...) }
func (a *zapAdapter) Warn(msg string, args ...any)  { a.s.Warnw(msg, args...) }
func (a *zapAdapter) Error(msg string, args ...any) { a.s.Errorw(msg, args...) }
