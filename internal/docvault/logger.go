package docvault

// Logger receives the service and pipeline log stream. The args follow
// slog conventions: alternating key/value pairs.
//
// The service logs the lazy store open at Debug, completed mutations
// (document/template/result writes) at Info, destructive or degraded
// outcomes (clear, skipped pipeline stages, failed batch items) at Warn,
// and failed operations at Error before folding them into the returned
// envelope.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// NopLogger is a Logger that discards all output. Use in tests.
type NopLogger struct{}

func NewNopLogger() *NopLogger { return &NopLogger{} }

func (*NopLogger) Debug(string, ...any) {}
func (*NopLogger) Info(string, ...any)  {}
func (*NopLogger) Warn(string, ...any)  {}
func (*NopLogger) Error(string, ...any) {}
