package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options controls how the process logger is built.
type Options struct {
	JSON  bool
	Debug bool
	// Outputs defaults to stdout.
	Outputs []string
	// Service is attached to every entry when set.
	Service string
}

func (o Options) level() zapcore.Level {
	if o.Debug {
		return zapcore.DebugLevel
	}
	return zapcore.InfoLevel
}

func (o Options) encoding() string {
	if o.JSON {
		return "json"
	}
	return "console"
}

// encoderConfig is shared by the console and JSON encodings.
func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		MessageKey: "step",

		LevelKey:    "level",
		EncodeLevel: zapcore.LowercaseLevelEncoder,

		TimeKey:    "time",
		EncodeTime: zapcore.RFC3339TimeEncoder,

		CallerKey:    "caller",
		EncodeCaller: zapcore.ShortCallerEncoder,

		NameKey:        "logger",
		EncodeDuration: zapcore.StringDurationEncoder,
	}
}

func New(opts Options) (*zap.Logger, error) {
	outputs := opts.Outputs
	if len(outputs) == 0 {
		outputs = []string{"stdout"}
	}

	cfg := zap.Config{
		Encoding:         opts.encoding(),
		Level:            zap.NewAtomicLevelAt(opts.level()),
		OutputPaths:      outputs,
		ErrorOutputPaths: []string{"stderr"},
		EncoderConfig:    encoderConfig(),
	}

	var fields []zap.Option
	if service := strings.TrimSpace(opts.Service); service != "" {
		fields = append(fields, zap.Fields(zap.String("service", service)))
	}

	return cfg.Build(fields...)
}

// TruncateForLog cuts s to limit runes and marks the cut with an ellipsis.
func TruncateForLog(s string, limit int) string {
	s = strings.TrimSpace(s)
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
