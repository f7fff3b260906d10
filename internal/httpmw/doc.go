// Package httpmw provides the HTTP middleware shared by the site, panel
// and ops servers.
//
// Middleware is composed in a fixed order in httpserver.NewHandler:
// security headers, request ID, client IP extraction, rate limiting,
// tracing, content snapshot headers, metrics, structured logging, panic
// recovery, and the chi router. Each middleware is independent and can
// be tested on its own. User-supplied data (query params, user agents,
// arbitrary headers) is kept out of logs to avoid PII leaks and log
// injection.
package httpmw
