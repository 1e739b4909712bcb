// Package logfields holds the canonical slog attribute keys used across the
// service so log queries stay stable.
package logfields

import "log/slog"

const (
	KeyUserID     = "user_id"
	KeyDay        = "day"
	KeySteps      = "steps_today"
	KeyRaw        = "raw_value"
	KeyDelta      = "delta"
	KeyOp         = "op"
	KeyRequestID  = "request_id"
	KeyDurationMS = "duration_ms"
	KeyError      = "error"
)

func UserID(id int64) slog.Attr       { return slog.Int64(KeyUserID, id) }
func Day(d string) slog.Attr          { return slog.String(KeyDay, d) }
func Steps(n int64) slog.Attr         { return slog.Int64(KeySteps, n) }
func Raw(n int64) slog.Attr           { return slog.Int64(KeyRaw, n) }
func Delta(n int64) slog.Attr         { return slog.Int64(KeyDelta, n) }
func Op(op string) slog.Attr          { return slog.String(KeyOp, op) }
func RequestID(id string) slog.Attr   { return slog.String(KeyRequestID, id) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
