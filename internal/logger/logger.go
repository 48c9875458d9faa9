package logger

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ctxKey string

const sessionIDKey ctxKey = "session_id"

// Config mirrors config.Config's logging fields without importing the package.
type Config struct {
	Level    string
	Encoding string
	// Path is the log file. The terminal belongs to the UI, so an empty
	// path discards output instead of writing to stdout.
	Path string
}

// New builds a zap.Logger writing to cfg.Path. The returned closer releases
// the file once the logger has been synced.
func New(cfg Config) (*zap.Logger, io.Closer, error) {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	level := zapcore.InfoLevel
	if err := level.Set(cfg.Level); err != nil {
		// fall back to info level if parsing fails
		level = zapcore.InfoLevel
	}

	var encoder zapcore.Encoder
	switch cfg.Encoding {
	case "json":
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	default:
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	}

	if cfg.Path == "" {
		return zap.NewNop(), io.NopCloser(nil), nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, nil, err
	}
	f, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}

	core := zapcore.NewCore(
		encoder,
		zapcore.AddSync(zapcore.Lock(f)),
		level,
	)
	return zap.New(core, zap.AddCaller()), f, nil
}

// NewSessionContext tags ctx with a fresh session id for one screen lifetime.
func NewSessionContext(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, sessionIDKey, uuid.NewString())
}

// SessionID returns the id stored by NewSessionContext, if any.
func SessionID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(sessionIDKey).(string)
	return id
}

// WithSession enriches the logger with the session id stored in the context.
func WithSession(ctx context.Context, base *zap.Logger) *zap.Logger {
	if base == nil {
		return base
	}
	if id := SessionID(ctx); id != "" {
		return base.With(zap.String("session_id", id))
	}
	return base
}
