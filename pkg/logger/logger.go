package logger

import (
	"edtech_eval_backend/internal/config"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log 在 InitLogger 之前为空实现，测试和脚本可直接使用
var Log = zap.NewNop()

const serviceName = "edtech-eval"

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
}

// ParseLevel 未配置或无法识别时，debug 模式用 debug，其余用 info
func ParseLevel(level, mode string) zapcore.Level {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(level)))); err == nil && level != "" {
		return l
	}
	if mode == "debug" {
		return zapcore.DebugLevel
	}
	return zapcore.InfoLevel
}

// InitLogger 文件输出 JSON（按大小滚动），控制台输出可读格式
func InitLogger(cfg *config.Config) {
	Log = New(cfg, zapcore.AddSync(os.Stdout))
}

// New 构建 logger，console 为控制台输出目标
func New(cfg *config.Config, console zapcore.WriteSyncer) *zap.Logger {
	level := ParseLevel(cfg.Log.Level, cfg.Server.Mode)
	enc := encoderConfig()

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(enc), console, level),
	}

	if cfg.Log.Path != "" {
		fileWriter := zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.Log.Path,
			MaxSize:    cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAge:     cfg.Log.MaxAgeDays,
			Compress:   true,
		})
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(enc), fileWriter, level))
	}

	return zap.New(zapcore.NewTee(cores...),
		zap.AddCaller(),
		zap.AddStacktrace(zap.ErrorLevel),
		zap.Fields(zap.String("service", serviceName)),
	)
}
