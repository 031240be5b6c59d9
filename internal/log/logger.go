package log

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger 结构化日志接口，键值对形式的字段
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	With(fields ...interface{}) Logger
	Named(name string) Logger
	Sync() error
}

// Config 日志配置
type Config struct {
	// Level 日志级别: debug, info, warn, error
	Level string `yaml:"level" json:"level"`

	// Encoding 输出格式: json, console
	Encoding string `yaml:"encoding" json:"encoding"`

	// AddCaller 是否输出调用位置
	AddCaller bool `yaml:"add_caller" json:"add_caller"`

	// Development 开发模式
	Development bool `yaml:"development" json:"development"`

	// OutputPaths 输出路径，支持 stdout, stderr, 或文件路径
	OutputPaths []string `yaml:"output_paths" json:"output_paths"`

	// TimeFormat 时间格式: iso8601, rfc3339, epoch, millis
	TimeFormat string `yaml:"time_format" json:"time_format"`

	// ColorOutput 彩色输出（仅 console 模式有效）
	ColorOutput bool `yaml:"color_output" json:"color_output"`
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		Level:       "info",
		Encoding:    "json",
		OutputPaths: []string{"stderr"},
		TimeFormat:  "iso8601",
	}
}

type zapLogger struct {
	sugar *zap.SugaredLogger
}

// New 使用配置创建日志实例，输出路径不可用时改写 stderr 并记录告警
func New(cfg Config) Logger {
	return newWithFallback(cfg, []string{"stderr"})
}

func newWithFallback(cfg Config, fallback []string) Logger {
	var zapCfg zap.Config
	if cfg.Development {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	zapCfg.Level = zap.NewAtomicLevelAt(parseLevel(cfg.Level))
	zapCfg.DisableCaller = !cfg.AddCaller
	zapCfg.EncoderConfig.TimeKey = "time"
	zapCfg.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	if enc := strings.ToLower(cfg.Encoding); enc == "console" || enc == "text" {
		zapCfg.Encoding = "console"
		if cfg.ColorOutput {
			zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		} else {
			zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		}
	} else {
		zapCfg.Encoding = "json"
	}

	switch strings.ToLower(cfg.TimeFormat) {
	case "rfc3339":
		zapCfg.EncoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder
	case "epoch":
		zapCfg.EncoderConfig.EncodeTime = zapcore.EpochTimeEncoder
	case "millis":
		zapCfg.EncoderConfig.EncodeTime = zapcore.EpochMillisTimeEncoder
	default:
		zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	if len(cfg.OutputPaths) > 0 {
		zapCfg.OutputPaths = cfg.OutputPaths
	}

	logger, err := zapCfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		zapCfg.OutputPaths = fallback
		fb, fbErr := zapCfg.Build(zap.AddCallerSkip(1))
		if fbErr != nil {
			return NewNop()
		}
		fb.Warn("log output unavailable, falling back",
			zap.Strings("output_paths", cfg.OutputPaths),
			zap.Strings("fallback", fallback),
			zap.Error(err))
		return &zapLogger{sugar: fb.Sugar()}
	}
	return &zapLogger{sugar: logger.Sugar()}
}

// NewNop 空日志（测试与未配置时使用）
func NewNop() Logger {
	return &zapLogger{sugar: zap.NewNop().Sugar()}
}

// FromZap 包装已有的 zap.Logger
func FromZap(l *zap.Logger) Logger {
	if l == nil {
		return NewNop()
	}
	return &zapLogger{sugar: l.Sugar()}
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func (l *zapLogger) Debug(msg string, fields ...interface{}) { l.sugar.Debugw(msg, fields...) }
func (l *zapLogger) Info(msg string, fields ...interface{})  { l.sugar.Infow(msg, fields...) }
func (l *zapLogger) Warn(msg string, fields ...interface{})  { l.sugar.Warnw(msg, fields...) }
func (l *zapLogger) Error(msg string, fields ...interface{}) { l.sugar.Errorw(msg, fields...) }

func (l *zapLogger) With(fields ...interface{}) Logger {
	return &zapLogger{sugar: l.sugar.With(fields...)}
}

func (l *zapLogger) Named(name string) Logger {
	return &zapLogger{sugar: l.sugar.Named(name)}
}

func (l *zapLogger) Sync() error {
	return l.sugar.Sync()
}
