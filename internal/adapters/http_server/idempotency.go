package httpserver

import (
	"bytes"
	"net/http"
	"time"

	"hotel_rates/internal/domain"
)

// storedResponse is what an idempotent replay returns: the first response,
// verbatim.
type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"contentType"`
	Body        []byte `json:"body"`
}

// Idempotency replays the stored first response for mutating requests that
// carry an Idempotency-Key header. Requests without the header pass through
// untouched. Responses are kept for ttl through the shared cache.
func Idempotency(cache domain.Cache, ttl time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("Idempotency-Key")
			if key == "" || cache == nil {
				next.ServeHTTP(w, r)
				return
			}
			cacheKey := "idem:" + r.Method + ":" + r.URL.Path + ":" + key

			var stored storedResponse
			if ok, _ := cache.Get(r.Context(), cacheKey, &stored); ok {
				w.Header().Set("Content-Type", stored.ContentType)
				w.Header().Set("Idempotency-Replayed", "true")
				w.WriteHeader(stored.Status)
				_, _ = w.Write(stored.Body)
				return
			}

			rec := &recordingWriter{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			// Only successful outcomes are worth replaying; errors may be
			// retried with the same key.
			if rec.Status() < 500 {
				_ = cache.Set(r.Context(), cacheKey, storedResponse{
					Status:      rec.Status(),
					ContentType: rec.Header().Get("Content-Type"),
					Body:        rec.buf.Bytes(),
				}, ttl)
			}
		})
	}
}

type recordingWriter struct {
	http.ResponseWriter
	buf    bytes.Buffer
	status int
}

func (w *recordingWriter) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *recordingWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *recordingWriter) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}
