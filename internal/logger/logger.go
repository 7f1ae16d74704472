package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options configure New.
type Options struct {
	// Env selects the encoder: prod writes JSON, local/dev/docker a colored console.
	Env string
	// Level overrides the env default: debug, info, warn, error.
	Level string
	// Component names the running command, e.g. "serve" or "index".
	Component string
}

// New builds the process logger. Output goes to stderr so that CLI
// commands keep stdout for their results.
func New(opts Options) (*zap.Logger, error) {
	var cfg zap.Config
	switch opts.Env {
	case "prod":
		cfg = zap.NewProductionConfig()
	case "local", "dev", "docker":
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	default:
		return nil, fmt.Errorf("unknown environment %q for logger", opts.Env)
	}
	cfg.OutputPaths = []string{"stderr"}

	if opts.Level != "" {
		var level zapcore.Level
		if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		cfg.Level = zap.NewAtomicLevelAt(level)
	}

	l, err := cfg.Build(zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	l = l.With(zap.String("service", "paperdex"))
	if opts.Component != "" {
		l = l.Named(opts.Component)
	}
	return l, nil
}
