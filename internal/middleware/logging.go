// internal/middleware/logging.go
package middleware

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// statusRecorder captures the response code for the request log line.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// LogMiddleware logs the method, path, status and duration of each request.
func LogMiddleware(logger *logrus.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			logger.WithFields(logrus.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   rec.status,
				"duration": time.Since(start),
				"remote":   r.RemoteAddr,
			}).Info("HTTP Request")
		})
	}
}

// LogFeedConnect logs an accepted feed subscription.
func LogFeedConnect(logger *logrus.Logger, remoteAddr, channel string) {
	logger.WithFields(logrus.Fields{
		"remote":  remoteAddr,
		"channel": channel,
	}).Info("feed subscriber connected")
}

// LogFeedDisconnect logs the end of a feed subscription.
func LogFeedDisconnect(logger *logrus.Logger, remoteAddr, channel string, err error) {
	fields := logrus.Fields{
		"remote":  remoteAddr,
		"channel": channel,
	}
	if err != nil {
		fields["error"] = err
	}
	logger.WithFields(fields).Info("feed subscriber disconnected")
}
