// Package api provides a REST API server for inspecting and sweeping loaded
// IRM models.
//
// Implements HTTP REST API using Gin framework with a standard response
// format, CORS support, rate limiting, and model-inspection and sweep
// endpoints.
package api
