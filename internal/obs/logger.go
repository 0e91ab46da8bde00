package obs

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
	App    string `mapstructure:"-"`
	Env    string `mapstructure:"-"`
	Ver    string `mapstructure:"-"`
}

func (c LogConfig) level() zapcore.Level {
	lvl, err := zapcore.ParseLevel(strings.TrimSpace(c.Level))
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

// baseFields tags every entry with the process identity. Empty values are
// left out.
func (c LogConfig) baseFields() []zap.Field {
	fields := make([]zap.Field, 0, 3)
	for _, kv := range [][2]string{{"service", c.App}, {"env", c.Env}, {"version", c.Ver}} {
		if kv[1] != "" {
			fields = append(fields, zap.String(kv[0], kv[1]))
		}
	}
	return fields
}

// NewLogger builds a JSON logger, or a console one when Pretty is set. An
// unknown level falls back to info.
func NewLogger(c LogConfig) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if c.Pretty {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(c.level())
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder

	return cfg.Build(zap.Fields(c.baseFields()...))
}

// Redacted stands in for a credential so its presence shows in logs but not
// its value.
func Redacted(key, secret string) zap.Field {
	if secret == "" {
		return zap.String(key, "")
	}
	return zap.String(key, "[redacted]")
}
