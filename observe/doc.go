// Package observe records authentication activity as OpenTelemetry
// metrics and exposes them for Prometheus scraping.
package observe
