package log

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var Logger = zap.NewNop()

// Conf selects where and how verbosely the process logs.
type Conf struct {
	Level      string
	Output     string
	Path       string
	RotateSize int
	RotateNum  int
	KeepDays   int
}

func EnsureLogger() {
	Logger, _ = zap.NewDevelopment()
	defer Logger.Sync()
}

// Setup replaces the global logger according to conf.
func Setup(conf Conf) error {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	var (
		ws      zapcore.WriteSyncer
		encoder zapcore.Encoder
	)
	switch conf.Output {
	case "", "stdout":
		ws = zapcore.AddSync(os.Stdout)
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	case "file":
		if conf.Path == "" {
			return fmt.Errorf("log path is required when output is 'file'")
		}
		ws = zapcore.AddSync(&lumberjack.Logger{
			Filename:   filepath.Join(conf.Path, "teambot.log"),
			MaxSize:    orDefault(conf.RotateSize, 100),
			MaxBackups: orDefault(conf.RotateNum, 10),
			MaxAge:     orDefault(conf.KeepDays, 7),
			Compress:   true,
		})
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	default:
		return fmt.Errorf("unknown log output %q", conf.Output)
	}

	core := zapcore.NewCore(encoder, ws, ParseLevel(conf.Level))
	Logger = zap.New(core, zap.AddCaller())
	return nil
}

// ParseLevel maps a case-insensitive level name to a zap level, defaulting to info.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return zapcore.DebugLevel
	case "WARN", "WARNING":
		return zapcore.WarnLevel
	case "ERROR":
		return zapcore.ErrorLevel
	case "FATAL":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
