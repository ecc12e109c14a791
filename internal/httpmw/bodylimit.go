package httpmw

import "net/http"

const defaultMaxRequestBodyBytes int64 = 1 << 20 // 1MiB; requests here are small JSON envelopes, not file uploads

// BodyLimit caps request bodies via http.MaxBytesReader so a JSON decoder
// downstream can never be forced to read past the limit.
func BodyLimit(maxBytes int64) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = defaultMaxRequestBodyBytes
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				WriteJSON(w, http.StatusRequestEntityTooLarge, errorBody{Code: "REQUEST_TOO_LARGE", Message: "request body too large"})
				return
			}
			if r.Body != nil && r.Body != http.NoBody {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
