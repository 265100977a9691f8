// Package logger builds the zap loggers used across centersweep.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewCLI returns a human-readable console logger. Verbose enables debug output.
func NewCLI(verbose bool) (*zap.SugaredLogger, error) {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	return NewWith(func(cfg *zap.Config) {
		*cfg = zap.NewDevelopmentConfig()
		cfg.Level.SetLevel(level)
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.DisableStacktrace = !verbose
	})
}

// NewWith returns a logger from a modified production config.
func NewWith(cfgFn func(*zap.Config)) (*zap.SugaredLogger, error) {
	cfg := zap.NewProductionConfig()
	cfgFn(&cfg)
	core, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return core.Sugar(), nil
}

// OrNop returns lggr, or a no-op logger when lggr is nil.
func OrNop(lggr *zap.SugaredLogger) *zap.SugaredLogger {
	if lggr == nil {
		return zap.NewNop().Sugar()
	}
	return lggr
}
