// Package trend fits a least-squares line through each (student, subject)
// score history and projects the next assessment.
package trend
