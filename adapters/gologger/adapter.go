package gologger

import (
	"context"
	"fmt"
	"os"
	"strings"

	glog "github.com/goliatone/go-logger/glog"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Resolve uses deterministic precedence provider > logger > nop.
func Resolve(name string, provider glog.LoggerProvider, logger glog.Logger) (glog.LoggerProvider, glog.Logger) {
	return glog.Resolve(name, provider, logger)
}

// ZapLogger adapts a zap sugared logger to the glog contract. Variadic args
// are treated as alternating key/value pairs.
type ZapLogger struct {
	sugar *zap.SugaredLogger
}

func NewZapLogger(base *zap.Logger) *ZapLogger {
	if base == nil {
		base = zap.NewNop()
	}
	return &ZapLogger{sugar: base.Sugar()}
}

// NewProductionLogger builds a JSON zap logger writing to stderr at level.
func NewProductionLogger(level string) (*ZapLogger, error) {
	parsed, err := zapcore.ParseLevel(strings.TrimSpace(strings.ToLower(level)))
	if err != nil {
		return nil, fmt.Errorf("gologger: invalid level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parsed)
	cfg.OutputPaths = []string{"stderr"}
	base, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return NewZapLogger(base), nil
}

// Trace maps to zap debug; zap has no trace level.
func (l *ZapLogger) Trace(msg string, args ...any) { l.sugared().Debugw(msg, args...) }
func (l *ZapLogger) Debug(msg string, args ...any) { l.sugared().Debugw(msg, args...) }
func (l *ZapLogger) Info(msg string, args ...any)  { l.sugared().Infow(msg, args...) }
func (l *ZapLogger) Warn(msg string, args ...any)  { l.sugared().Warnw(msg, args...) }
func (l *ZapLogger) Error(msg string, args ...any) { l.sugared().Errorw(msg, args...) }

func (l *ZapLogger) Fatal(msg string, args ...any) {
	l.sugared().Errorw(msg, args...)
	_ = l.sugared().Sync()
	os.Exit(1)
}

func (l *ZapLogger) WithContext(context.Context) glog.Logger {
	return l
}

func (l *ZapLogger) WithFields(fields map[string]any) glog.Logger {
	if len(fields) == 0 {
		return l
	}
	args := make([]any, 0, len(fields)*2)
	for key, value := range fields {
		args = append(args, key, value)
	}
	return &ZapLogger{sugar: l.sugared().With(args...)}
}

func (l *ZapLogger) Named(name string) *ZapLogger {
	name = strings.TrimSpace(name)
	if name == "" {
		return l
	}
	return &ZapLogger{sugar: l.sugared().Named(name)}
}

func (l *ZapLogger) Sync() error {
	return l.sugared().Sync()
}

func (l *ZapLogger) sugared() *zap.SugaredLogger {
	if l == nil || l.sugar == nil {
		return zap.NewNop().Sugar()
	}
	return l.sugar
}

// ZapProvider hands out named children of one root logger.
type ZapProvider struct {
	root *ZapLogger
}

func NewZapProvider(root *ZapLogger) *ZapProvider {
	if root == nil {
		root = NewZapLogger(nil)
	}
	return &ZapProvider{root: root}
}

func (p *ZapProvider) GetLogger(name string) glog.Logger {
	if p == nil || p.root == nil {
		return glog.Nop()
	}
	return p.root.Named(name)
}

var (
	_ glog.Logger         = (*ZapLogger)(nil)
	_ glog.FieldsLogger   = (*ZapLogger)(nil)
	_ glog.LoggerProvider = (*ZapProvider)(nil)
)
