// Package schema maps heterogeneous source columns onto the canonical
// academic-record fields and converts score representations.
//
// Column names are compared after NormalizeKey against a synonym table. A
// name with no exact synonym falls back to the closest synonym by optimal
// string alignment distance, accepted only within the configured bound and
// below half the name's length. Caller hints override both.
//
// Scores arrive as numbers, "85%", "74/100", "74 of 100", letter grades or
// plain numeric strings. Anything else is flagged on the record as a type
// coercion failure for the cleaner to report.
package schema
