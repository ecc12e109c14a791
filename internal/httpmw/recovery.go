package httpmw

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/chigozirigeorge/omnixec-sub000/internal/logging"
)

// Recovery converts a panic in any downstream handler into a 500 response
// instead of tearing down the server, logging the stack for diagnosis.
func Recovery(log *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.WithField("panic", fmt.Sprintf("%v", rec)).
						WithField("stack", string(debug.Stack())).
						WithField("path", r.URL.Path).
						Error("panic recovered")
					WriteJSON(w, http.StatusInternalServerError, errorBody{Code: "INTERNAL", Message: "internal server error"})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
