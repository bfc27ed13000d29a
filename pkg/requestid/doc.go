// Package requestid attaches a correlation identifier to every HTTP
// request so log records for one interaction can be tied together.
//
// Middleware validates a client-supplied "X-Request-ID" header and reuses
// it, or generates a UUIDv4 when the header is missing or malformed. The
// ID is stored in the request context, echoed back in the response header,
// and exposed to structured logging through LoggerExtractor.
//
//	router.Use(requestid.Middleware)
//
//	func handler(w http.ResponseWriter, r *http.Request) {
//		id := requestid.FromContext(r.Context())
//		...
//	}
package requestid
