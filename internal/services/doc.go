// Package services sits between the HTTP handlers or CLI and the analytics
// packages.
//
// AnalysisService validates and parses documents, runs the pipeline and
// exports reports. HealthService answers health, readiness and liveness
// probes. Services take their collaborators in constructors and receive a
// context on every call; they hold no per-run state.
//
//	svc := services.NewAnalysisService(parser, pipeline, exp, validator, logger)
//	report, err := svc.AnalyzeFiles(ctx, []string{"term1/"}, "", dataprocessing.Options{TopN: 3})
package services
