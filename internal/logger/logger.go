// Package logger builds the application's zap logger and the echo
// middleware that logs one line per request.
package logger

import (
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pitchdreamers/pitch-booking/internal/config"
)

// New builds a logger from cfg.  Production environments get zap's
// production preset; everything else the development one.
func New(cfg *config.Config) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Env == config.EnvProduction {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Log.Format {
	case "console":
		zapCfg.Encoding = "console"
	default:
		zapCfg.Encoding = "json"
	}

	if cfg.Log.Level != "" {
		if err := zapCfg.Level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
		}
	}

	zapCfg.EncoderConfig.TimeKey = "timestamp"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return zapCfg.Build()
}

const contextKey = "logger"

// FromContext returns the request logger stored by EchoMiddleware, or the
// global zap logger outside of it.
func FromContext(c echo.Context) *zap.Logger {
	if l, ok := c.Get(contextKey).(*zap.Logger); ok {
		return l
	}
	return zap.L()
}

// EchoMiddleware logs method, route, status, latency and request id for
// every request.  Handlers reach a logger tagged with the request id
// through FromContext.
func EchoMiddleware(l *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			reqLogger := l
			if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
				reqLogger = l.With(zap.String("request_id", id))
			}
			c.Set(contextKey, reqLogger)

			err := next(c)
			if err != nil {
				// let echo's error handler write the response first so
				// the logged status is the one the client saw
				c.Error(err)
			}

			req := c.Request()
			res := c.Response()
			fields := []zap.Field{
				zap.String("method", req.Method),
				zap.String("path", req.URL.Path),
				zap.String("route", c.Path()),
				zap.Int("status", res.Status),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", c.RealIP()),
			}
			if id := res.Header().Get(echo.HeaderXRequestID); id != "" {
				fields = append(fields, zap.String("request_id", id))
			}
			if err != nil {
				fields = append(fields, zap.Error(err))
			}

			switch {
			case res.Status >= 500:
				l.Error("http_request", fields...)
			case res.Status >= 400:
				l.Warn("http_request", fields...)
			default:
				l.Info("http_request", fields...)
			}
			return nil
		}
	}
}
