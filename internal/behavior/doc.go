// Package behavior finds behavioural traits and attribute ratings in the
// free text of report cards and teacher comments.
//
// Trait detection is a deterministic lexicon matcher. Each indicator phrase
// can match three ways, from most to least specific:
//
//   - exact: the phrase's words appear contiguously
//   - gapped: the words appear in order with at most MaxGap words between
//     neighbours
//   - fuzzy: the words appear contiguously but long words may differ by one
//     edit, which absorbs common OCR damage
//
// Confidence is the kind's base score plus a small bonus per phrase word.
// The bonus is capped so that every exact match outranks every gapped match,
// which outranks every fuzzy match.
package behavior
