// Package server hosts the Fiber HTTP service used by serve mode and the
// shared outbound HTTP client used to reach the SDC. The app exposes health
// and Prometheus endpoints under /-/ and a JSON sync endpoint that hands
// requests to the loader engine. Keep exports narrow and accept explicit
// dependencies.
package server
