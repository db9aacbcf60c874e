package server

import (
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"
	"github.com/shyim/hellokube/internal/accesslog"
)

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)

		log.Debug("request", "method", r.Method, "path", r.URL.Path, "status", m.Code, "duration", m.Duration, "bytes", m.Written)
	})
}

func recordAccess(recorder accesslog.Recorder) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestedAt := time.Now()
			m := httpsnoop.CaptureMetrics(next, w, r)

			entry := accesslog.Entry{
				Method:      r.Method,
				Path:        r.URL.Path,
				Status:      m.Code,
				Duration:    m.Duration,
				RemoteAddr:  r.RemoteAddr,
				UserAgent:   r.UserAgent(),
				RequestedAt: requestedAt,
			}

			if err := recorder.Record(r.Context(), entry); err != nil {
				log.Warnf("Could not record request %s %s: %s", r.Method, r.URL.Path, err)
			}
		})
	}
}
