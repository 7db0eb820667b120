package observability

import (
	"os"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/log/global"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger returns a JSON logger on stdout. Development mode logs at debug
// level. With exportOTel set, records are also sent to the global OTel
// logger provider.
func NewLogger(env string, exportOTel bool) *zap.Logger {
	level := zap.InfoLevel
	if env == "development" {
		level = zap.DebugLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encCfg),
		zapcore.Lock(os.Stdout),
		level,
	)

	if exportOTel {
		core = zapcore.NewTee(
			core,
			otelzap.NewCore(ServiceName, otelzap.WithLoggerProvider(global.GetLoggerProvider())),
		)
	}

	return zap.New(core,
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	).With(zap.String("service", ServiceName), zap.String("env", env))
}
