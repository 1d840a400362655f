// Package shared holds helpers used by more than one package that belong to
// no single layer.
//
// The testutil subpackage captures slog output so tests can assert on what a
// component logged:
//
//	logger, logs := testutil.NewTestLogger(t)
//	n := schema.NewNormalizer(tables, cfg, logger)
//	...
//	assert.True(t, logs.ContainsMessage("unmapped columns"))
package shared
