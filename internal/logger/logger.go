package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"os"
)

var log, _ = zap.NewProduction()

// New создаёт логгер, который пишет JSON одновременно в консоль и в файл
func New(path string) (*zap.Logger, error) {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	enc := zapcore.NewJSONEncoder(encCfg)

	sinks := []zapcore.WriteSyncer{zapcore.AddSync(os.Stdout)}
	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, zapcore.AddSync(f))
	}
	core := zapcore.NewCore(enc, zapcore.NewMultiWriteSyncer(sinks...), zap.InfoLevel)
	return zap.New(core, zap.AddCaller()), nil
}

// SetDefault заменяет логгер, которым пользуются функции пакета
func SetDefault(l *zap.Logger) {
	if l != nil {
		log = l
	}
}

func Default() *zap.Logger {
	return log
}

func Info(msg string, fields ...zap.Field) {
	log.Info(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	log.Error(msg, fields...)
}

func LogAdminAction(adminID, action, params string) {
	log.Info("admin_action", zap.String("admin_id", adminID), zap.String("action", action), zap.String("params", params))
}
