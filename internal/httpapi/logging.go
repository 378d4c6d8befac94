package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

var logger = zerolog.Nop()

// SetLogger installs the logger used by the HTTP layer.
func SetLogger(l zerolog.Logger) { logger = l }

// parseRequestLevel maps a level name to the verbosity of request logs.
// "off" and "" disable them; "1" is shorthand for debug.
func parseRequestLevel(s string) zerolog.Level {
	switch s = strings.ToLower(strings.TrimSpace(s)); s {
	case "", "off", "disabled":
		return zerolog.Disabled
	case "1":
		return zerolog.DebugLevel
	}
	lvl, err := zerolog.ParseLevel(s)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

var defaultRequestLevel = parseRequestLevel(os.Getenv("SITECND_HTTP_LOG"))

// requestLevel reads ?log= or X-Log-Level, falling back to SITECND_HTTP_LOG.
func requestLevel(r *http.Request) zerolog.Level {
	if v := r.URL.Query().Get("log"); v != "" {
		return parseRequestLevel(v)
	}
	if v := r.Header.Get("X-Log-Level"); v != "" {
		return parseRequestLevel(v)
	}
	return defaultRequestLevel
}

// logEnd reports a finished message. Failures show from error verbosity,
// successes from info.
func logEnd(r *http.Request, lvl zerolog.Level, kind string, status int, start time.Time, err error) {
	if lvl > zerolog.ErrorLevel || (err == nil && lvl > zerolog.InfoLevel) {
		return
	}
	ev := logger.Info()
	if err != nil {
		ev = logger.Warn().Err(err)
	}
	ev = ev.Str("kind", kind).Str("path", r.URL.Path).Int("status", status).Dur("dur", time.Since(start))
	if rid := middleware.GetReqID(r.Context()); rid != "" {
		ev = ev.Str("request_id", rid)
	}
	ev.Msg("message handled")
}

// eventTap logs each NDJSON line written to an event stream.
type eventTap struct {
	buf    []byte
	stream string
}

func (t *eventTap) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	for {
		i := bytes.IndexByte(t.buf, '\n')
		if i < 0 {
			break
		}
		line := bytes.TrimSpace(t.buf[:i])
		t.buf = t.buf[i+1:]
		if len(line) == 0 {
			continue
		}
		var head struct {
			Seq  int64  `json:"seq"`
			Kind string `json:"kind"`
		}
		ev := logger.WithLevel(zerolog.InfoLevel).Str("stream", t.stream)
		if json.Unmarshal(line, &head) == nil {
			ev = ev.Int64("seq", head.Seq).Str("kind", head.Kind)
		} else {
			ev = ev.Bytes("line", line)
		}
		ev.Msg("event sent")
	}
	return len(p), nil
}
