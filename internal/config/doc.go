// Package config loads scorelens configuration and reference tables.
//
// # Configuration Sources
//
// Values are applied in this order, later sources winning:
//
//	1. Built-in defaults (Default)
//	2. A YAML file: $SCORELENS_CONFIG_FILE, config.yaml or configs/config.yaml
//	3. Environment variables with the SCORELENS_ prefix
//
// Environment variables follow the struct nesting:
//
//	SCORELENS_SERVER_PORT=9090
//	SCORELENS_LOGGING_LEVEL=debug
//	SCORELENS_ANALYTICS_TREND_EPSILON=0.05
//	SCORELENS_ANALYTICS_DEFAULT_TOP_N=3
//	SCORELENS_SECURITY_ALLOWED_ORIGINS=http://a.example,http://b.example
//
// The merged struct is validated with go-playground/validator tags.
//
// # Reference Tables
//
// Grade letters, column synonyms, the trait lexicon, rating spellings and
// report-card section names live in Tables. DefaultTables covers common
// report cards; LoadTables overlays a YAML file on top:
//
//	grades:
//	  "A1": 95
//	synonyms:
//	  score: ["marks obtained", "mark"]
//	lexicon:
//	  curious: ["asks questions", "curious"]
package config
