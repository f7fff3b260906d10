package httpmw

import (
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ContentInfo exposes the active snapshot's identity for response
// headers. The snapshot manager implements it.
type ContentInfo interface {
	ContentVersion() string
	ContentHash() string
}

// ContentHeaders adds X-Content-Version and X-Content-Hash headers so
// responses can be correlated with the snapshot that produced them.
func ContentHeaders(info ContentInfo) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if info != nil {
				v := info.ContentVersion()
				h := info.ContentHash()
				if v != "" {
					w.Header().Set("X-Content-Version", v)
				}
				if h != "" {
					// short hash is plenty for correlation
					if len(h) > 12 {
						h = h[:12]
					}
					w.Header().Set("X-Content-Hash", h)
				}
				if span := trace.SpanFromContext(r.Context()); span != nil && span.IsRecording() {
					if v != "" {
						span.SetAttributes(attribute.String("content.version", v))
					}
					if h != "" {
						span.SetAttributes(attribute.String("content.hash", h))
					}
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
