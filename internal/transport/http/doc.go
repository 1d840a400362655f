// Package http implements the HTTP handlers of the scorelens API. Handlers
// stay thin: they decode and validate the request, call a service from
// internal/services and render the result with go-chi/render.
//
// # Routes
//
//	GET  /api/health              liveness summary
//	GET  /api/health/ready        tables and output directory checks (503 when not ready)
//	GET  /api/health/live         runtime details
//	GET  /api/version             build information
//	POST /api/v1/analyze          JSON records and options
//	POST /api/v1/analyze/upload   multipart document in "file", options as form fields
//	POST /api/v1/traits           free text to traits and ratings
//	GET  /metrics                 Prometheus scrape
//
// Both analyze endpoints accept ?export=csv,json,xlsx to also write the
// report to the output directory; the written paths come back in "files".
//
// # Errors
//
// Every failure goes through errors.ErrorHandler and is returned as RFC 7807
// problem details:
//
//	{
//	    "type": "/errors/input/shape",
//	    "title": "Malformed Input",
//	    "status": 400,
//	    "detail": "field \"name\" holds a non-scalar value of type string",
//	    "instance": "/api/v1/analyze",
//	    "trace_id": "4b0c..."
//	}
//
// Rows the pipeline rejects are not errors; they are reported in the
// response's "rejected" list and quality summary.
package http
