package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/region23/desco-balance-bot/pkg/metrics"
)

// Prometheus записывает метрики HTTP запросов.
// Путь подставляется в метку только для известных маршрутов.
func Prometheus(routes ...string) func(http.Handler) http.Handler {
	known := make(map[string]struct{}, len(routes))
	for _, r := range routes {
		known[r] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			endpoint := r.URL.Path
			if _, ok := known[endpoint]; !ok {
				endpoint = "other"
			}

			metrics.RecordHTTPRequest(r.Method, endpoint, strconv.Itoa(wrapped.statusCode), time.Since(start).Seconds())
		})
	}
}

// responseWriter оборачивает http.ResponseWriter для захвата статус-кода
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

// WriteHeader захватывает статус-код ответа
func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
