// Package app wires the scorelens HTTP server: configuration, logging,
// OpenTelemetry, reference tables, the analytics services, the router and
// the http.Server lifecycle.
//
// # Initialization Flow
//
//	1. Load configuration (defaults, config.yaml, SCORELENS_* environment)
//	2. Initialize the process logger
//	3. Resolve and create the output and log directories
//	4. Load the reference tables
//	5. Initialize tracing and metrics
//	6. Build the parser, pipeline, exporter and services
//	7. Mount handlers behind the middleware chain
//
// # Usage
//
//	application, err := app.NewApplication()
//	if err != nil {
//	    slog.Error("failed to initialize application", slog.String("error", err.Error()))
//	    os.Exit(1)
//	}
//	if err := application.Run(); err != nil {
//	    os.Exit(1)
//	}
//
// Tests build an Application with New and a config of their own, then drive
// Router through httptest.
//
// Initialization errors are returned to the caller; the package never calls
// os.Exit.
package app
