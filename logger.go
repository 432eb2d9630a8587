package userd

// Fields are the structured key/value pairs attached to a log line.
type Fields map[string]any

// Logger is what every package here logs through. cmd/userd picks the backend
// (zap, logrus or slog) from USERD_LOG_BACKEND; the adapters live under log/.
type Logger interface {
	Debug(msg string, f Fields)
	Info(msg string, f Fields)
	Warn(msg string, f Fields)
	Error(msg string, f Fields)
}

// NopLogger discards everything. Constructors fall back to it on a nil Logger.
type NopLogger struct{}

func (NopLogger) Debug(string, Fields) {}

func (NopLogger) Info(string, Fields) {}

func (NopLogger) Warn(string, Fields) {}

func (NopLogger) Error(string, Fields) {}
