// Package logger provides structured logging built on log/slog.
package logger

import (
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/fx"
)

// Module provides the process-wide *slog.Logger and HTTP access log.
var Module = fx.Module("logger",
	fx.Provide(NewLogger),
	fx.Provide(NewHTTPLogger),
)

// Scope tags a logger call with a dotted component name, e.g. "agents.svc".
func Scope(scope string) slog.Attr {
	return slog.String("scope", scope)
}

// Error attaches an error to a log record under a stable key.
func Error(err error) slog.Attr {
	return slog.Any("error", err)
}

// NewLogger builds the process logger from LOG_LEVEL and GO_ENV.
// JSON output in production, text output otherwise.
func NewLogger() *slog.Logger {
	level := parseLevel(os.Getenv("LOG_LEVEL"))

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(os.Getenv("GO_ENV"), "production") {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "info", "":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// HTTPLogger writes a line-oriented access log independent of the
// structured application log, keeping slog output separate from a
// dedicated HTTP access trail.
type HTTPLogger struct {
	mu  sync.Mutex
	out io.Writer
}

// NewHTTPLogger writes to stdout; a file-backed writer can be substituted
// in deployments that want a separate access-log file.
func NewHTTPLogger() *HTTPLogger {
	return &HTTPLogger{out: os.Stdout}
}

// LogRequest appends one access-log line.
func (h *HTTPLogger) LogRequest(ip, method, uri string, status int, latency time.Duration, userAgent, requestID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	_, _ = io.WriteString(h.out, time.Now().UTC().Format(time.RFC3339)+
		" "+ip+" \""+method+" "+uri+"\" "+http.StatusText(status)+
		" "+latency.String()+" reqid="+requestID+" ua=\""+userAgent+"\"\n")
}
