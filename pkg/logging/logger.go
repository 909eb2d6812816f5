package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/backsoul/shikkhapro/pkg/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New crea el logger: un archivo JSON rotado por nivel y la consola con
// colores. El nivel mínimo se puede cambiar en caliente con el AtomicLevel.
func New(projectRoot string, cfg config.LoggingConfig) (*zap.Logger, zap.AtomicLevel, error) {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, level, fmt.Errorf("nivel de log inválido %q: %w", cfg.Level, err)
	}

	encoderConfig := zapcore.EncoderConfig{
		MessageKey:   "message",
		LevelKey:     "level",
		TimeKey:      "time",
		CallerKey:    "caller",
		EncodeLevel:  zapcore.CapitalLevelEncoder,
		EncodeTime:   zapcore.ISO8601TimeEncoder,
		EncodeCaller: zapcore.ShortCallerEncoder,
	}

	logDir := cfg.Directory
	if !filepath.IsAbs(logDir) {
		logDir = filepath.Join(projectRoot, logDir)
	}
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, level, fmt.Errorf("no se pudo crear el directorio de logs: %w", err)
	}

	cores := []zapcore.Core{newConsoleCore(level)}
	for _, l := range []zapcore.Level{zapcore.DebugLevel, zapcore.InfoLevel, zapcore.WarnLevel, zapcore.ErrorLevel} {
		cores = append(cores, newFileCore(logDir, l, level, cfg, encoderConfig))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller()), level, nil
}

// newFileCore escribe solo los mensajes de un nivel en su propio archivo
func newFileCore(logDir string, only zapcore.Level, min zap.AtomicLevel, cfg config.LoggingConfig, encoderConfig zapcore.EncoderConfig) zapcore.Core {
	fileName := filepath.Join(logDir, fmt.Sprintf("%s-%s.log", time.Now().Format("2006-01-02"), only.String()))

	writer := zapcore.AddSync(&lumberjack.Logger{
		Filename:   fileName,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	})

	enabler := zap.LevelEnablerFunc(func(l zapcore.Level) bool {
		return l == only && min.Enabled(l)
	})

	return zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), writer, enabler)
}

func newConsoleCore(min zap.AtomicLevel) zapcore.Core {
	consoleEncoderConfig := zap.NewDevelopmentEncoderConfig()
	consoleEncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder

	return zapcore.NewCore(
		zapcore.NewConsoleEncoder(consoleEncoderConfig),
		zapcore.AddSync(os.Stdout),
		min,
	)
}
