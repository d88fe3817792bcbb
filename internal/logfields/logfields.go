package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyCounter    = "counter"
	KeyRegistry   = "registry"
	KeyCount      = "count"
	KeyInterval   = "interval"
	KeySubject    = "subject"
	KeyListen     = "listen"
	KeyPath       = "path"
	KeyDurationMS = "duration_ms"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Counter(name string) slog.Attr   { return slog.String(KeyCounter, name) }
func Registry(id string) slog.Attr    { return slog.String(KeyRegistry, id) }
func Count(v int64) slog.Attr         { return slog.Int64(KeyCount, v) }
func Interval(s string) slog.Attr     { return slog.String(KeyInterval, s) }
func Subject(s string) slog.Attr      { return slog.String(KeySubject, s) }
func Listen(addr string) slog.Attr    { return slog.String(KeyListen, addr) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
