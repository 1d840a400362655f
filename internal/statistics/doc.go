// Package statistics computes descriptive summaries over cleaned records and
// ranks the resulting groups.
//
// Scores are summarized on the percent scale (Score/MaxScore*100). Summaries
// are order independent: values are sorted before anything is summed.
package statistics
