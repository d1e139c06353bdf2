package middleware

import (
	"net/http"

	"github.com/bd2kgenomics/spinnaker/pkg/requestid"
	"github.com/go-chi/chi/v5/middleware"
)

// RequestIDHeader is read from the request and echoed on the response.
const RequestIDHeader = "X-Request-Id"

// RequestID takes the request id from the X-Request-Id header, from chi's RequestID
// middleware, or generates one. The id is stored with the requestid package and set on
// the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)

		if requestID == "" {
			requestID = middleware.GetReqID(r.Context())
		}

		if requestID == "" {
			requestID = requestid.Generate()
		}

		w.Header().Set(RequestIDHeader, requestID)
		next.ServeHTTP(w, r.WithContext(requestid.ToContext(r.Context(), requestID)))
	})
}
