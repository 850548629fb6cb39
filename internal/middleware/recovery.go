package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"

	"tenantchat/internal/httputil"
)

// startedWriter remembers whether the handler already began its response
type startedWriter struct {
	http.ResponseWriter
	started bool
}

func (w *startedWriter) WriteHeader(status int) {
	w.started = true
	w.ResponseWriter.WriteHeader(status)
}

func (w *startedWriter) Write(b []byte) (int, error) {
	w.started = true
	return w.ResponseWriter.Write(b)
}

func (w *startedWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Recovery turns a handler panic into a 500 problem and logs it with the acting
// principal. If the handler had already started writing, the partial response is
// left as is. http.ErrAbortHandler is re-raised so net/http can drop the connection.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := &startedWriter{ResponseWriter: w}
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}

				principal := httputil.GetPrincipal(r)
				attrs := []interface{}{
					"panic", rec,
					"method", r.Method,
					"path", r.URL.Path,
					"user_id", principal.UserID,
					"response_started", sw.started,
					"stack", string(debug.Stack()),
				}
				if principal.BusinessID != nil {
					attrs = append(attrs, "business_id", *principal.BusinessID)
				}
				logger.Error("handler panicked", attrs...)

				if !sw.started {
					httputil.RespondError(sw, http.StatusInternalServerError, "internal server error")
				}
			}()

			next.ServeHTTP(sw, r)
		})
	}
}
