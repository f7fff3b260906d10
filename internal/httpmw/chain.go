package httpmw

import "net/http"

// Chain applies middlewares so the first one in the list is the
// outermost. Nil entries are skipped, which lets callers disable a
// middleware conditionally without reshuffling the list.
func Chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	wrapped := h
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] == nil {
			continue
		}
		wrapped = mws[i](wrapped)
	}
	return wrapped
}
