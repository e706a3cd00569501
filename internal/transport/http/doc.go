// Package http contains the chi HTTP handlers of the cancellation
// dashboard API. Handlers are thin: they decode query parameters into
// a FilterSpec, call the dashboard service, and render JSON or RFC
// 7807 problem responses. Route wiring happens in internal/app.
package http
