package requestid

import (
	"net/http"
	"regexp"

	"github.com/google/uuid"
)

// Header is the request ID header read from and echoed to clients.
const Header = "X-Request-ID"

const maxIDLength = 128

var validIDRegex = regexp.MustCompile("^[a-zA-Z0-9_-]+$")

// Middleware ensures every request carries an ID: an incoming valid
// X-Request-ID is kept, anything missing or malformed is replaced with a
// fresh UUID. The ID is echoed on the response and stored in the request
// context for log correlation.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(Header)
		if !isValidRequestID(requestID) {
			requestID = uuid.New().String()
		}
		w.Header().Set(Header, requestID)
		next.ServeHTTP(w, r.WithContext(WithContext(r.Context(), requestID)))
	})
}

// isValidRequestID rejects empty, oversized, or non [a-zA-Z0-9_-] IDs so a
// client cannot smuggle arbitrary bytes into logs.
func isValidRequestID(id string) bool {
	if len(id) == 0 || len(id) > maxIDLength {
		return false
	}
	return validIDRegex.MatchString(id)
}
